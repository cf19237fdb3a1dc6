package capture

import (
	"fmt"
	"io"
	"math"

	"github.com/nicolapapp/bioformats/internal/container"
	"github.com/nicolapapp/bioformats/internal/npy"
	"github.com/nicolapapp/bioformats/internal/sberr"
)

// ReadPlane serves one (t,z,c) plane into out, implementing spec §4.6
// "Serve a plane". positionIdx is always 0 here: the published axis order
// folds position into the raw timepoint index before this call, per
// spec's note that "position is encoded into the raw timepoint index
// upstream and always passed as 0 here".
func (g *Group) ReadPlane(t, z, c int, out []byte) error {
	rawT := t
	path := container.ImageDataPath(g.Dir, c, rawT, g.Compressed)
	if g.SFMT && t > 0 {
		path = container.RenameToTP0(path)
	}

	f, err := g.files.Open(path)
	if err != nil {
		return err
	}

	if !g.cache.valid || g.cache.channel != c || g.cache.timepoint != t {
		// io.NewSectionReader gives a cursor independent of the file's shared
		// OS-level read offset, so re-parsing a cached, already-read-from
		// handle (e.g. an SFMT file revisited at a different logical t)
		// always starts at the true header offset.
		header, err := npy.ParseHeader(io.NewSectionReader(f, 0, math.MaxInt64))
		if err != nil {
			return err
		}
		if header.Compressed() {
			// header.Blocks is still nil here, so DataOffset() resolves to the
			// dictionary's start (headerEnd + 0), not the post-dictionary data start.
			dictReader := io.NewSectionReader(f, header.DataOffset(), math.MaxInt64)
			blocks, err := npy.ReadBlockDictionary(dictReader, header.ExpectedBlockCount())
			if err != nil {
				return err
			}
			header.Blocks = blocks
		}
		g.cache = planeCache{valid: true, channel: c, timepoint: t, header: header}
	}

	h := g.cache.header
	planeSize := h.PlaneSize()
	if int64(len(out)) < planeSize {
		return sberr.New(sberr.Format, "capture.ReadPlane", fmt.Errorf("output buffer too small: have %d want %d", len(out), planeSize))
	}

	if !h.Compressed() {
		var seekOffset int64
		if g.SFMT {
			seekOffset = h.DataOffset() + planeSize*int64(t)
		} else {
			seekOffset = h.DataOffset() + planeSize*int64(z)
		}
		if _, err := f.ReadAt(out[:planeSize], seekOffset); err != nil {
			return sberr.New(sberr.Io, "capture.ReadPlane", err)
		}
		return nil
	}

	block := z
	if block >= len(h.Blocks) {
		return sberr.New(sberr.Format, "capture.ReadPlane", fmt.Errorf("block index %d out of range (%d blocks)", block, len(h.Blocks)))
	}
	dataStart := h.BlockDataOffset(block)
	compressed := make([]byte, h.Blocks[block].Length)
	if _, err := f.ReadAt(compressed, dataStart); err != nil {
		return sberr.New(sberr.Io, "capture.ReadPlane", err)
	}

	decoded, err := npy.Decompress(h.Algorithm(), compressed, int(planeSize))
	if err != nil {
		return err
	}
	if int64(len(decoded)) != planeSize {
		if g.Logger != nil {
			g.Logger.Printf("capture.ReadPlane: decompressed size %d does not match expected plane size %d (channel %d, t %d, z %d)", len(decoded), planeSize, c, t, z)
		}
		copy(out, decoded)
		return nil
	}
	copy(out[:planeSize], decoded)
	return nil
}
