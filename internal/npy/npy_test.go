package npy

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zstd"
)

// buildHeader writes a minimal valid NPY prefix+header for the given
// shape/dtype/minor version, padding the textual header with spaces and a
// trailing newline so that the 10-byte prefix plus the text is a multiple
// of 16 bytes.
func buildHeader(minorVersion uint8, dtype string, shape []int) []byte {
	shapeStr := ""
	for i, s := range shape {
		if i > 0 {
			shapeStr += ", "
		}
		shapeStr += itoa(s)
	}
	if len(shape) == 1 {
		shapeStr += ","
	}
	text := "{'descr': '<" + dtype + "', 'fortran_order': False, 'shape': (" + shapeStr + "), }"
	for (10+len(text)+1)%16 != 0 {
		text += " "
	}
	text += "\n"

	buf := new(bytes.Buffer)
	buf.WriteByte(0x93)
	buf.WriteString("NUMPY")
	buf.WriteByte(1) // major
	buf.WriteByte(minorVersion)
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, uint16(len(text)))
	buf.Write(lenBytes)
	buf.WriteString(text)
	return buf.Bytes()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		return "-" + string(digits)
	}
	return string(digits)
}

func TestParseHeaderUncompressed(t *testing.T) {
	raw := buildHeader(0, "u2", []int{2, 2})
	h, err := ParseHeader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if h.Algorithm() != AlgorithmNone {
		t.Fatalf("expected AlgorithmNone, got %v", h.Algorithm())
	}
	if h.BytesPerPix != 2 {
		t.Fatalf("BytesPerPix = %d", h.BytesPerPix)
	}
	if len(h.Shape) != 2 || h.Shape[0] != 2 || h.Shape[1] != 2 {
		t.Fatalf("Shape = %v", h.Shape)
	}
	if h.PlaneSize() != 8 {
		t.Fatalf("PlaneSize = %d, want 8", h.PlaneSize())
	}
	if h.DataOffset() != int64(len(raw)) {
		t.Fatalf("DataOffset = %d, want %d", h.DataOffset(), len(raw))
	}
}

// TestS1Uncompressed implements scenario S1 from spec §8: an 8-byte plane
// follows the header directly with no block dictionary.
func TestS1Uncompressed(t *testing.T) {
	raw := buildHeader(0, "u2", []int{2, 2})
	planeBytes := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	full := append(raw, planeBytes...)

	h, err := ParseHeader(bytes.NewReader(full))
	if err != nil {
		t.Fatal(err)
	}
	got := full[h.DataOffset() : h.DataOffset()+h.PlaneSize()]
	if !bytes.Equal(got, planeBytes) {
		t.Fatalf("got %v, want %v", got, planeBytes)
	}
}

// TestS2Compressed implements scenario S2: minor version 1 (Zstd), one
// block whose dictionary entry is (offset=0,length=L) and whose payload
// decompresses to the S1 bytes.
func TestS2Compressed(t *testing.T) {
	raw := buildHeader(1, "u2", []int{2, 2})
	planeBytes := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatal(err)
	}
	compressed := enc.EncodeAll(planeBytes, nil)
	enc.Close()

	dict := make([]byte, 16)
	binary.LittleEndian.PutUint64(dict[0:8], 0)
	binary.LittleEndian.PutUint64(dict[8:16], uint64(len(compressed)))

	full := append(append(append([]byte{}, raw...), dict...), compressed...)

	h, err := ParseHeader(bytes.NewReader(full))
	if err != nil {
		t.Fatal(err)
	}
	if !h.Compressed() || h.Algorithm() != AlgorithmZstd {
		t.Fatalf("expected compressed zstd header")
	}

	blocks, err := ReadBlockDictionary(bytes.NewReader(full[len(raw):]), h.ExpectedBlockCount())
	if err != nil {
		t.Fatal(err)
	}
	h.Blocks = blocks
	if len(blocks) != 1 || blocks[0].Offset != 0 || blocks[0].Length != uint64(len(compressed)) {
		t.Fatalf("blocks = %+v", blocks)
	}

	dataStart := h.BlockDataOffset(0)
	blockBytes := full[dataStart : dataStart+int64(blocks[0].Length)]
	out, err := Decompress(h.Algorithm(), blockBytes, int(h.PlaneSize()))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, planeBytes) {
		t.Fatalf("got %v, want %v", out, planeBytes)
	}
}

func TestDecompressUnsupportedTag(t *testing.T) {
	_, err := Decompress(AlgorithmLZ4, []byte{1, 2, 3}, 3)
	if err == nil {
		t.Fatal("expected Unsupported error")
	}
}

func TestBlockDataOffsetRecurrence(t *testing.T) {
	h := &Header{
		MinorVersion: 1,
		headerEnd:    100,
		Blocks: []BlockEntry{
			{Offset: 0, Length: 50},
			{Offset: 50, Length: 30},
		},
	}
	// DataOffset = headerEnd + #blocks*16 = 100 + 32 = 132
	if h.DataOffset() != 132 {
		t.Fatalf("DataOffset = %d", h.DataOffset())
	}
	if h.BlockDataOffset(0) != 132 {
		t.Fatalf("block 0 offset = %d", h.BlockDataOffset(0))
	}
	if h.BlockDataOffset(1) != 132+50 {
		t.Fatalf("block 1 offset = %d", h.BlockDataOffset(1))
	}
}
