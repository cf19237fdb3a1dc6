package sbyaml

import (
	"log"

	"gopkg.in/yaml.v3"

	"github.com/nicolapapp/bioformats/internal/sberr"
)

// SetFieldFunc attempts to coerce value into a declared field of the
// record named key. It returns matched=false when key is not a declared
// field name (the caller then forwards the pair to the unknown-field
// hook). Coercion failures are logged by the callee per §4.2's numeric
// semantics and must not be returned as errors here.
type SetFieldFunc func(key string, value *yaml.Node) (matched bool)

// UnknownFieldFunc receives key/value pairs whose key is not a declared
// field of the record being decoded (e.g. flattened dotted names like
// mStageOffsetMicrons.mX and polymorphic vertex arrays). ClassName itself
// is never forwarded here.
type UnknownFieldFunc func(key string, value *yaml.Node)

// Decoder decodes structured records from a Document. A Decoder is
// stateless beyond its logger; the same Decoder may decode many records
// from many cursors.
type Decoder struct {
	Logger *log.Logger
}

// NewDecoder returns a Decoder using the given logger, defaulting to
// log.Default() when nil.
func NewDecoder(logger *log.Logger) *Decoder {
	if logger == nil {
		logger = log.Default()
	}
	return &Decoder{Logger: logger}
}

// DecodeRecord decodes one record of the given canonical class name
// starting at cursor's current position (§4.2 steps 1-4). It returns
// matched=false, err=nil when the class name at the next StartClass does
// not match className (the cursor is left unchanged, per spec); a
// structural error (missing ClassName, missing EndClass) is returned as a
// *sberr.Error of Kind Format. StartClass/EndClass pairs nested inside the
// record are forwarded to the hooks like any other pair; the record ends at
// its own matching EndClass.
func (d *Decoder) DecodeRecord(cur *Cursor, className string, setField SetFieldFunc, unknown UnknownFieldFunc) (matched bool, err error) {
	pairs := cur.doc.Pairs
	i := cur.pos
	for i < len(pairs) {
		switch pairs[i].Key {
		case "EndClass":
			return false, nil
		case "StartClass":
			goto found
		}
		i++
	}
	return false, nil

found:
	startIdx := i
	nested := mappingPairs(pairs[startIdx].Value)
	if len(nested) == 0 || nested[0].Key != "ClassName" {
		return false, sberr.New(sberr.Format, "sbyaml.DecodeRecord", errMissingClassName)
	}
	gotName := UnescapeString(nested[0].Value.Value)
	if gotName != className {
		return false, nil
	}

	for _, p := range nested[1:] {
		d.dispatch(p.Key, p.Value, setField, unknown)
	}

	i = startIdx + 1
	depth := 0
	for i < len(pairs) {
		switch pairs[i].Key {
		case "StartClass":
			depth++
		case "EndClass":
			if depth == 0 {
				cur.pos = i + 1
				return true, nil
			}
			depth--
		}
		d.dispatch(pairs[i].Key, pairs[i].Value, setField, unknown)
		i++
	}
	return false, sberr.New(sberr.Format, "sbyaml.DecodeRecord", errMissingEndClass)
}

func (d *Decoder) dispatch(key string, value *yaml.Node, setField SetFieldFunc, unknown UnknownFieldFunc) {
	if key == "ClassName" {
		return
	}
	if setField != nil && setField(key, value) {
		return
	}
	if unknown != nil {
		unknown(key, value)
	}
}

// SkipRecord advances the cursor past a single StartClass/EndClass block
// regardless of its class name, discarding every attribute. Used to skip
// record types a caller has no interest in while scanning siblings.
func (d *Decoder) SkipRecord(cur *Cursor) bool {
	pairs := cur.doc.Pairs
	i := cur.pos
	for i < len(pairs) && pairs[i].Key != "StartClass" {
		if pairs[i].Key == "EndClass" {
			return false
		}
		i++
	}
	if i >= len(pairs) {
		return false
	}
	depth := 1
	i++
	for i < len(pairs) {
		switch pairs[i].Key {
		case "StartClass":
			depth++
		case "EndClass":
			depth--
			if depth == 0 {
				cur.pos = i + 1
				return true
			}
		}
		i++
	}
	return false
}
