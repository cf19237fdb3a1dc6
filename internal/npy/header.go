// Package npy implements the NPY plane-file header, block dictionary and
// codec dispatch (spec §4.3, §4.4): the binary layout used for every
// ImageData_*/MaskData_*/HistogramData_* file, optionally extended with a
// per-block dictionary when the minor version repurposes itself as a
// compression algorithm tag.
package npy

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/nicolapapp/bioformats/internal/sberr"
)

// Algorithm identifies a block compression codec (spec §4.4).
type Algorithm uint8

const (
	AlgorithmNone   Algorithm = 0
	AlgorithmZstd   Algorithm = 1
	AlgorithmZlib   Algorithm = 2
	AlgorithmLZ4    Algorithm = 3
	AlgorithmJetRaw Algorithm = 4
	AlgorithmRLE    Algorithm = 5
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmNone:
		return "none"
	case AlgorithmZstd:
		return "zstd"
	case AlgorithmZlib:
		return "zlib"
	case AlgorithmLZ4:
		return "lz4"
	case AlgorithmJetRaw:
		return "jetraw"
	case AlgorithmRLE:
		return "rle"
	default:
		return fmt.Sprintf("algorithm(%d)", uint8(a))
	}
}

// blockEntrySize is the byte width of one (offset,length) dictionary entry.
const blockEntrySize = 16

// Header describes a parsed NPY array header plus, when compressed, its
// block dictionary (spec §4.3).
type Header struct {
	MajorVersion uint8
	MinorVersion uint8 // doubles as the compression Algorithm tag
	HeaderLen    uint16

	LittleEndian bool
	DType        string // e.g. "u2", "i2", "u4", "i4"
	BytesPerPix  int
	FortranOrder bool
	Shape        []int

	// Blocks holds one (offset,length) pair per dictionary entry, present
	// only when Algorithm() != AlgorithmNone.
	Blocks []BlockEntry

	// headerEnd is the file offset where the raw header text ends; data
	// (or the block dictionary, if present) begins there.
	headerEnd int64
}

// BlockEntry locates one compressed block within a plane file.
type BlockEntry struct {
	Offset uint64
	Length uint64
}

// Algorithm returns the compression algorithm the minor version encodes.
func (h *Header) Algorithm() Algorithm { return Algorithm(h.MinorVersion) }

// Compressed reports whether this header describes a block-dictionary layout.
func (h *Header) Compressed() bool { return h.MinorVersion != 0 }

// PlaneSize returns width * height * bytesPerPixel for a 2-D plane.
func (h *Header) PlaneSize() int64 {
	if len(h.Shape) < 2 {
		return 0
	}
	w := h.Shape[len(h.Shape)-1]
	height := h.Shape[len(h.Shape)-2]
	return int64(w) * int64(height) * int64(h.BytesPerPix)
}

// DataOffset returns the file offset where plane/block data begins
// (immediately after the header text, or after the block dictionary when
// compressed).
func (h *Header) DataOffset() int64 {
	if !h.Compressed() {
		return h.headerEnd
	}
	return h.headerEnd + int64(len(h.Blocks))*blockEntrySize
}

// BlockDataOffset returns the absolute file offset of block k's data, per
// the recurrence in spec §4.3: block 0 starts at DataOffset(); block k≥1
// starts at offset[k-1] + length[k-1] (both relative to DataOffset()).
func (h *Header) BlockDataOffset(k int) int64 {
	if k == 0 {
		return h.DataOffset()
	}
	prev := h.Blocks[k-1]
	return h.DataOffset() + int64(prev.Offset) + int64(prev.Length)
}

var descrRe = regexp.MustCompile(`'descr'\s*:\s*'([<>])?([a-zA-Z])(\d+)'`)
var fortranRe = regexp.MustCompile(`'fortran_order'\s*:\s*(True|False)`)
var shapeRe = regexp.MustCompile(`'shape'\s*:\s*\(([^)]*)\)`)

// ParseHeader reads and parses the 10-byte binary prefix and textual
// header at the current position of r (expected to be file offset 0). It
// does not read the block dictionary; call ReadBlockDictionary separately
// once Compressed() is known.
func ParseHeader(r io.Reader) (*Header, error) {
	prefix := make([]byte, 10)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return nil, sberr.New(sberr.Io, "npy.ParseHeader", err)
	}
	if prefix[0] != 0x93 || string(prefix[1:6]) != "NUMPY" {
		return nil, sberr.New(sberr.Format, "npy.ParseHeader", fmt.Errorf("missing NUMPY magic"))
	}

	h := &Header{
		MajorVersion: prefix[6],
		MinorVersion: prefix[7],
		HeaderLen:    binary.LittleEndian.Uint16(prefix[8:10]),
	}

	headerText := make([]byte, h.HeaderLen)
	if _, err := io.ReadFull(r, headerText); err != nil {
		return nil, sberr.New(sberr.Io, "npy.ParseHeader", err)
	}
	if !bytes.Contains(headerText, []byte("\n")) {
		return nil, sberr.New(sberr.Format, "npy.ParseHeader", fmt.Errorf("header missing trailing newline"))
	}
	h.headerEnd = 10 + int64(h.HeaderLen)

	text := string(headerText)

	m := descrRe.FindStringSubmatch(text)
	if m == nil {
		return nil, sberr.New(sberr.Format, "npy.ParseHeader", fmt.Errorf("missing or unparseable descr"))
	}
	h.LittleEndian = m[1] != ">"
	h.DType = m[2] + m[3]
	bits, err := strconv.Atoi(m[3])
	if err != nil {
		return nil, sberr.New(sberr.Format, "npy.ParseHeader", fmt.Errorf("bad dtype width %q", m[3]))
	}
	h.BytesPerPix = bits
	if h.BytesPerPix != 2 && h.BytesPerPix != 4 {
		return nil, sberr.New(sberr.Format, "npy.ParseHeader", fmt.Errorf("unsupported bytes-per-pixel %d", h.BytesPerPix))
	}

	if fm := fortranRe.FindStringSubmatch(text); fm != nil {
		h.FortranOrder = fm[1] == "True"
	}

	sm := shapeRe.FindStringSubmatch(text)
	if sm == nil {
		return nil, sberr.New(sberr.Format, "npy.ParseHeader", fmt.Errorf("missing shape"))
	}
	for _, tok := range strings.Split(sm[1], ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n <= 0 {
			return nil, sberr.New(sberr.Format, "npy.ParseHeader", fmt.Errorf("non-positive shape element %q", tok))
		}
		h.Shape = append(h.Shape, n)
	}
	if len(h.Shape) == 0 {
		return nil, sberr.New(sberr.Format, "npy.ParseHeader", fmt.Errorf("empty shape"))
	}

	return h, nil
}

// ReadBlockDictionary reads the #blocks*16-byte (offset,length) table
// immediately following the header. blockCount is normally shape[0] when
// the shape has three dimensions (spec §4.3).
func ReadBlockDictionary(r io.Reader, blockCount int) ([]BlockEntry, error) {
	buf := make([]byte, blockCount*blockEntrySize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, sberr.New(sberr.Io, "npy.ReadBlockDictionary", err)
	}
	entries := make([]BlockEntry, blockCount)
	for i := 0; i < blockCount; i++ {
		off := i * blockEntrySize
		entries[i] = BlockEntry{
			Offset: binary.LittleEndian.Uint64(buf[off : off+8]),
			Length: binary.LittleEndian.Uint64(buf[off+8 : off+16]),
		}
	}
	return entries, nil
}

// ExpectedBlockCount returns the number of blocks the dictionary should
// contain for this header's shape: shape[0] when the shape is 3-D, 1
// otherwise.
func (h *Header) ExpectedBlockCount() int {
	if len(h.Shape) == 3 {
		return h.Shape[0]
	}
	return 1
}
