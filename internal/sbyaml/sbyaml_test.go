package sbyaml

import (
	"testing"

	"gopkg.in/yaml.v3"
)

const imageRecordDoc = `
StartClass: {ClassName: ImageRecord}
mWidth: "512"
mHeight: "256"
StartClass: {ClassName: LensDef}
mMicronPerPixel: "0.325"
EndClass: null
mUnknownField: "extra"
EndClass: null
`

func TestDecodeRecordComposite(t *testing.T) {
	doc, err := ParseDocument([]byte(imageRecordDoc))
	if err != nil {
		t.Fatal(err)
	}
	cur := NewCursor(doc)
	d := NewDecoder(nil)

	var width, height int32
	var unknowns []string
	matched, err := d.DecodeRecord(cur, "ImageRecord",
		func(key string, v *yaml.Node) bool {
			switch key {
			case "mWidth":
				width = d.CoerceInt32(v)
				return true
			case "mHeight":
				height = d.CoerceInt32(v)
				return true
			}
			return false
		},
		func(key string, v *yaml.Node) {
			unknowns = append(unknowns, key)
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	if !matched {
		t.Fatal("expected match")
	}
	if width != 512 || height != 256 {
		t.Fatalf("width=%d height=%d", width, height)
	}
	// the nested LensDef StartClass/EndClass pair and the inner field
	// are all forwarded to the unknown hook since no setField recognised them.
	found := false
	for _, k := range unknowns {
		if k == "mUnknownField" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected mUnknownField in unknowns, got %v", unknowns)
	}

	// cursor should now sit past the final EndClass.
	if !cur.Done() {
		t.Fatalf("expected cursor exhausted, pos=%d of %d", cur.Pos(), len(doc.Pairs))
	}
}

func TestDecodeRecordClassNameMismatch(t *testing.T) {
	doc, err := ParseDocument([]byte(`
StartClass: {ClassName: ChannelRecord}
mName: "GFP"
EndClass: null
`))
	if err != nil {
		t.Fatal(err)
	}
	cur := NewCursor(doc)
	d := NewDecoder(nil)
	startPos := cur.Pos()

	matched, err := d.DecodeRecord(cur, "ImageRecord", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if matched {
		t.Fatal("expected no match")
	}
	if cur.Pos() != startPos {
		t.Fatalf("cursor should be left unchanged on mismatch, got %d want %d", cur.Pos(), startPos)
	}
}

func TestFindNextClass(t *testing.T) {
	doc, err := ParseDocument([]byte(`
StartClass: {ClassName: AlignRecord}
mX: "1"
EndClass: null
StartClass: {ClassName: RatioRecord}
mY: "2"
EndClass: null
`))
	if err != nil {
		t.Fatal(err)
	}
	cur := NewCursor(doc)
	name, pos, ok := FindNextClass(cur)
	if !ok || name != "AlignRecord" || pos != 0 {
		t.Fatalf("FindNextClass = %q,%d,%v", name, pos, ok)
	}

	d := NewDecoder(nil)
	d.SkipRecord(cur)
	name, _, ok = FindNextClass(cur)
	if !ok || name != "RatioRecord" {
		t.Fatalf("FindNextClass after skip = %q,%v", name, ok)
	}
}

func TestUnescapeString(t *testing.T) {
	cases := map[string]string{
		"a_#58;b":  "a:b",
		"_#91;x_#93;": "[x]",
		"plain":    "plain",
		"__empty":  "",
	}
	for in, want := range cases {
		if got := UnescapeString(in); got != want {
			t.Errorf("UnescapeString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCoerceInt32Overflow(t *testing.T) {
	d := NewDecoder(nil)
	node := &yaml.Node{Kind: yaml.ScalarNode, Value: "4294967295"} // 2^32-1, unsigned-encoded
	got := d.CoerceInt32(node)
	if got != 0 {
		t.Fatalf("CoerceInt32 overflow should yield 0, got %d", got)
	}
}

func TestCoerceInt32VectorLengthMismatch(t *testing.T) {
	d := NewDecoder(nil)
	seq := &yaml.Node{Kind: yaml.SequenceNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "5"}, // declares 5, only 3 follow
		{Kind: yaml.ScalarNode, Value: "1"},
		{Kind: yaml.ScalarNode, Value: "2"},
		{Kind: yaml.ScalarNode, Value: "3"},
	}}
	got := d.CoerceInt32Vector(seq)
	if len(got) != 3 {
		t.Fatalf("expected actual length 3, got %d", len(got))
	}
}
