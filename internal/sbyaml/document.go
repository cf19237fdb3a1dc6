// Package sbyaml implements the structured record decoder (spec §4.2):
// it turns a metadata document's ordered key/value stream — sentinel keys
// StartClass/EndClass bracketing a class's attribute pairs, ClassName
// naming the class — into strongly-typed records. Documents are parsed
// with gopkg.in/yaml.v3's node API so that repeated sentinel keys and
// document order are preserved exactly as written, the same library this
// module's lineage already uses for config loading.
package sbyaml

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nicolapapp/bioformats/internal/sberr"
)

// Pair is one key/value entry in a document's ordered attribute stream.
type Pair struct {
	Key   string
	Value *yaml.Node
}

// Document is the ordered list of key/value pairs produced by parsing one
// metadata .yaml file.
type Document struct {
	Pairs []Pair
}

// ParseDocument parses data as a single top-level YAML mapping and returns
// its key/value pairs in document order, including repeated sentinel keys
// (StartClass/EndClass may legally repeat).
func ParseDocument(data []byte) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, sberr.New(sberr.Format, "sbyaml.ParseDocument", err)
	}
	if len(root.Content) == 0 {
		return &Document{}, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, sberr.New(sberr.Format, "sbyaml.ParseDocument", fmt.Errorf("top-level node is not a mapping"))
	}
	return &Document{Pairs: mappingPairs(top)}, nil
}

func mappingPairs(n *yaml.Node) []Pair {
	pairs := make([]Pair, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		pairs = append(pairs, Pair{Key: n.Content[i].Value, Value: n.Content[i+1]})
	}
	return pairs
}

// Cursor tracks a read position within a Document's pair stream.
type Cursor struct {
	doc *Document
	pos int
}

// NewCursor returns a cursor positioned at the start of doc.
func NewCursor(doc *Document) *Cursor {
	return &Cursor{doc: doc}
}

// Pos returns the current pair index.
func (c *Cursor) Pos() int { return c.pos }

// SetPos repositions the cursor.
func (c *Cursor) SetPos(i int) { c.pos = i }

// Done reports whether the cursor has consumed the whole document.
func (c *Cursor) Done() bool { return c.pos >= len(c.doc.Pairs) }

// TakeKey consumes the current pair if its key equals key, returning its
// value node and advancing the cursor past it. Returns ok=false without
// advancing if the cursor is exhausted or its current key doesn't match —
// this is the bare scalar/sequence counterpart to DecodeRecord, for
// document sections that are plain top-level key/value runs rather than
// StartClass/ClassName-wrapped records.
func (c *Cursor) TakeKey(key string) (value *yaml.Node, ok bool) {
	if c.pos >= len(c.doc.Pairs) || c.doc.Pairs[c.pos].Key != key {
		return nil, false
	}
	value = c.doc.Pairs[c.pos].Value
	c.pos++
	return value, true
}

// FindNextClass scans forward from the cursor's current position for the
// next StartClass sentinel and returns its nested ClassName and pair
// index, without consuming it.
func FindNextClass(c *Cursor) (className string, pos int, found bool) {
	pairs := c.doc.Pairs
	for i := c.pos; i < len(pairs); i++ {
		if pairs[i].Key != "StartClass" {
			continue
		}
		name, ok := startClassName(pairs[i].Value)
		if !ok {
			continue
		}
		return name, i, true
	}
	return "", 0, false
}

// FindNextClassName is FindNextClass without the found flag, returning ""
// when no further StartClass sentinel remains. Convenient as a loop
// condition when scanning a homogeneous run of sibling records.
func FindNextClassName(c *Cursor) string {
	name, _, ok := FindNextClass(c)
	if !ok {
		return ""
	}
	return name
}

func startClassName(startValue *yaml.Node) (string, bool) {
	if startValue == nil || startValue.Kind != yaml.MappingNode {
		return "", false
	}
	nested := mappingPairs(startValue)
	if len(nested) == 0 || nested[0].Key != "ClassName" {
		return "", false
	}
	return UnescapeString(nested[0].Value.Value), true
}
