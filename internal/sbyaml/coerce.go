package sbyaml

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	errMissingClassName = errors.New("StartClass value missing required ClassName pair")
	errMissingEndClass  = errors.New("record missing terminating EndClass")
)

// unescapeTable is the fixed substitution table applied, in order, to
// scalar string fields (spec §4.2).
var unescapeTable = []struct{ from, to string }{
	{"_#9;", "\t"},
	{"_#10;", "\n"},
	{"_#13;", "\r"},
	{"_#34;", "\""},
	{"_#58;", ":"},
	{"_#92;", "\\"},
	{"_#91;", "["},
	{"_#93;", "]"},
	{"_#124;", "|"},
	{"_#60;", "<"},
	{"_#62;", ">"},
	{"_#32;", " "},
	{"__empty", ""},
}

// UnescapeString applies the fixed substitution table to s. Idempotent on
// strings that contain none of the table's trigger substrings.
func UnescapeString(s string) string {
	for _, rule := range unescapeTable {
		s = strings.ReplaceAll(s, rule.from, rule.to)
	}
	return s
}

func (d *Decoder) warnf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Printf("sbyaml: "+format, args...)
	}
}

// CoerceString decodes a scalar string field.
func (d *Decoder) CoerceString(node *yaml.Node) string {
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return UnescapeString(node.Value)
}

// CoerceBool decodes a scalar boolean field.
func (d *Decoder) CoerceBool(node *yaml.Node) bool {
	if node == nil || node.Kind != yaml.ScalarNode {
		return false
	}
	b, err := strconv.ParseBool(node.Value)
	if err != nil {
		d.warnf("coercion: %q is not a bool, using false", node.Value)
		return false
	}
	return b
}

// CoerceInt32 decodes a scalar int32 field. Per §4.2's numeric semantics,
// overflow of signed 32-bit width is NOT an error: it is logged and the
// field is left at its zero value, tolerating fields that upstream
// encodes as unsigned 32-bit magnitudes.
func (d *Decoder) CoerceInt32(node *yaml.Node) int32 {
	if node == nil || node.Kind != yaml.ScalarNode {
		return 0
	}
	v, err := strconv.ParseInt(node.Value, 10, 64)
	if err != nil {
		d.warnf("coercion: %q is not an integer, using 0", node.Value)
		return 0
	}
	if v < math.MinInt32 || v > math.MaxInt32 {
		d.warnf("coercion: %d overflows int32, using 0", v)
		return 0
	}
	return int32(v)
}

// CoerceInt64 decodes a scalar int64 field.
func (d *Decoder) CoerceInt64(node *yaml.Node) int64 {
	if node == nil || node.Kind != yaml.ScalarNode {
		return 0
	}
	v, err := strconv.ParseInt(node.Value, 10, 64)
	if err != nil {
		d.warnf("coercion: %q is not an integer, using 0", node.Value)
		return 0
	}
	return v
}

// CoerceFloat32 decodes a scalar float32 field.
func (d *Decoder) CoerceFloat32(node *yaml.Node) float32 {
	if node == nil || node.Kind != yaml.ScalarNode {
		return 0
	}
	v, err := strconv.ParseFloat(node.Value, 32)
	if err != nil {
		d.warnf("coercion: %q is not a float, using 0", node.Value)
		return 0
	}
	return float32(v)
}

// CoerceFloat64 decodes a scalar float64 field.
func (d *Decoder) CoerceFloat64(node *yaml.Node) float64 {
	if node == nil || node.Kind != yaml.ScalarNode {
		return 0
	}
	v, err := strconv.ParseFloat(node.Value, 64)
	if err != nil {
		d.warnf("coercion: %q is not a float, using 0", node.Value)
		return 0
	}
	return v
}

// vectorElements validates the length-prefixed vector encoding: the
// sequence's first element states the expected element count; a mismatch
// against the actual trailing element count is logged and the actual
// length is used (spec §4.2, invariant 4).
func (d *Decoder) vectorElements(node *yaml.Node) []*yaml.Node {
	if node == nil || node.Kind != yaml.SequenceNode || len(node.Content) == 0 {
		return nil
	}
	declared, err := strconv.Atoi(node.Content[0].Value)
	actual := node.Content[1:]
	if err == nil && declared != len(actual) {
		d.warnf("coercion: vector declares length %d but has %d elements, using actual", declared, len(actual))
	}
	return actual
}

// CoerceInt32Vector decodes a length-prefixed vector of int32 scalars.
func (d *Decoder) CoerceInt32Vector(node *yaml.Node) []int32 {
	elems := d.vectorElements(node)
	out := make([]int32, len(elems))
	for i, e := range elems {
		out[i] = d.CoerceInt32(e)
	}
	return out
}

// CoerceFloat64Vector decodes a length-prefixed vector of float64 scalars.
func (d *Decoder) CoerceFloat64Vector(node *yaml.Node) []float64 {
	elems := d.vectorElements(node)
	out := make([]float64, len(elems))
	for i, e := range elems {
		out[i] = d.CoerceFloat64(e)
	}
	return out
}

// CoerceFloat64VectorRaw decodes a plain (non length-prefixed) sequence of
// float64 scalars, for the handful of document sections that pack a flat
// vector without a declared-length header element.
func (d *Decoder) CoerceFloat64VectorRaw(node *yaml.Node) []float64 {
	if node == nil || node.Kind != yaml.SequenceNode {
		return nil
	}
	out := make([]float64, len(node.Content))
	for i, e := range node.Content {
		out[i] = d.CoerceFloat64(e)
	}
	return out
}

// CoerceStringVector decodes a length-prefixed vector of string scalars.
func (d *Decoder) CoerceStringVector(node *yaml.Node) []string {
	elems := d.vectorElements(node)
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = d.CoerceString(e)
	}
	return out
}
