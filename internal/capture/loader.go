package capture

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicolapapp/bioformats/internal/container"
	"github.com/nicolapapp/bioformats/internal/filecache"
	"github.com/nicolapapp/bioformats/internal/npy"
	"github.com/nicolapapp/bioformats/internal/sberr"
	"github.com/nicolapapp/bioformats/internal/sbyaml"
)

// Load loads one image group's metadata in the fixed order mandated by
// spec §4.6, then derives its effective shape and position count. Any
// failure aborts the group load entirely — the caller (Slide.Open)
// excludes the group from its published list rather than propagating
// a partially loaded Group.
func Load(dec *sbyaml.Decoder, groupDir, title string, compressed bool, files *filecache.Cache) (*Group, error) {
	g := &Group{
		Title:      title,
		Dir:        groupDir,
		Compressed: compressed,
		files:      files,
		Logger:     dec.Logger,
	}

	imageDoc, err := readDocument(filepath.Join(groupDir, "ImageRecord.yaml"))
	if err != nil {
		return nil, err
	}
	g.Image, err = decodeImageRecord(dec, imageDoc)
	if err != nil {
		return nil, err
	}
	if g.Image.Width <= 0 || g.Image.Height <= 0 || g.Image.NumPlanes < 1 ||
		g.Image.NumChannels < 1 || g.Image.NumTimepoints < 1 {
		return nil, sberr.New(sberr.Format, "capture.Load", errInvalidDimensions)
	}

	if chDoc, err := readDocument(filepath.Join(groupDir, "ChannelRecord.yaml")); err == nil {
		g.Channels, err = decodeChannelRecords(dec, chDoc, int(g.Image.NumChannels))
		if err != nil {
			return nil, err
		}
	} else if !sberr.Is(err, sberr.NotFound) {
		return nil, err
	}

	if maskDoc, err := readDocument(filepath.Join(groupDir, "MaskRecord.yaml")); err == nil {
		g.Masks, err = decodeMasks(dec, maskDoc, int(g.Image.NumTimepoints))
		if err != nil {
			return nil, err
		}
	} else if !sberr.Is(err, sberr.NotFound) {
		return nil, err
	}

	// Unlike the other optional documents, a missing AnnotationRecord.yaml
	// aborts the group load entirely (the original's LoadAnnotations
	// returns false on FileNotFoundException rather than tolerating it).
	annDoc, err := readDocument(filepath.Join(groupDir, "AnnotationRecord.yaml"))
	if err != nil {
		return nil, err
	}
	g.Annotations, err = decodeAnnotations(dec, annDoc, int(g.Image.NumTimepoints))
	if err != nil {
		return nil, err
	}

	if etDoc, err := readDocument(filepath.Join(groupDir, "ElapsedTimes.yaml")); err == nil {
		g.Elapsed, err = decodeElapsedTimes(dec, etDoc)
		if err != nil {
			return nil, err
		}
	} else if !sberr.Is(err, sberr.NotFound) {
		return nil, err
	}

	if saDoc, err := readDocument(filepath.Join(groupDir, "SAPositionData.yaml")); err == nil {
		g.SAPos, err = decodeSAPositions(dec, saDoc)
		if err != nil {
			return nil, err
		}
	} else if !sberr.Is(err, sberr.NotFound) {
		return nil, err
	}

	if spDoc, err := readDocument(filepath.Join(groupDir, "StagePositionData.yaml")); err == nil {
		g.Stage, err = decodeStagePositions(dec, spDoc)
		if err != nil {
			return nil, err
		}
	} else if !sberr.Is(err, sberr.NotFound) {
		return nil, err
	}

	if auxDoc, err := readDocument(filepath.Join(groupDir, "AuxData.yaml")); err == nil {
		g.Aux, err = decodeAuxData(dec, auxDoc)
		if err != nil {
			return nil, err
		}
	} else if !sberr.Is(err, sberr.NotFound) {
		return nil, err
	}

	if err := detectShape(g); err != nil {
		return nil, err
	}
	detectPositions(g)

	return g, nil
}

var errInvalidDimensions = errors.New("image record has non-positive dimension")

// detectShape implements spec §4.6 "Counting image files (determining shape)".
func detectShape(g *Group) error {
	entries, err := os.ReadDir(g.Dir)
	if err != nil {
		return sberr.New(sberr.Io, "capture.detectShape", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "ImageData_") {
			files = append(files, e.Name())
		}
	}
	f := len(files)
	numChannels := int(g.Image.NumChannels)
	numTimepoints := int(g.Image.NumTimepoints)

	switch {
	case f == numChannels*numTimepoints:
		g.NumTimepointsRaw = numTimepoints

	case f == numChannels && g.Image.NumPlanes == 1:
		maxT := 0
		sfmt := false
		for ch := 0; ch < numChannels; ch++ {
			path := container.ImageDataPath(g.Dir, ch, 0, g.Compressed)
			h, err := parsePlaneHeaderOnly(path)
			if err != nil {
				continue
			}
			if len(h.Shape) == 3 && h.Shape[0] > 1 {
				sfmt = true
				if h.Shape[0] > maxT {
					maxT = h.Shape[0]
				}
			}
		}
		if sfmt {
			g.SFMT = true
			g.NumTimepointsRaw = maxT
		} else {
			g.NumTimepointsRaw = numTimepoints
		}

	default:
		maxCh, maxTp := -1, -1
		for _, name := range files {
			if ch, ok := container.ChannelOf(name); ok && ch > maxCh {
				maxCh = ch
			}
			if tp, ok := container.TimepointOf(name); ok && tp > maxTp {
				maxTp = tp
			}
		}
		if maxCh < 0 || maxTp < 0 {
			return sberr.New(sberr.Format, "capture.detectShape", errUnresolvedShape)
		}
		g.Image.NumChannels = int32(maxCh + 1)
		g.NumTimepointsRaw = maxTp + 1
	}

	return nil
}

var errUnresolvedShape = errors.New("could not resolve #channels/#timepoints from filenames")

func parsePlaneHeaderOnly(path string) (*npy.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return npy.ParseHeader(f)
}

// detectPositions implements spec §4.6 "Position count".
func detectPositions(g *Group) {
	if len(g.Stage) <= 1 {
		g.NumPositions = 1
	} else {
		n := 1
		x0, y0 := g.Stage[0].X, g.Stage[0].Y
		for i := 1; i < len(g.Stage); i++ {
			if g.Stage[i].X == x0 && g.Stage[i].Y == y0 {
				break
			}
			n++
		}
		g.NumPositions = n
	}
	if g.NumTimepointsRaw == 0 {
		g.NumTimepointsRaw = int(g.Image.NumTimepoints)
	}
	g.NumTimepoints = g.NumTimepointsRaw / g.NumPositions
	if g.NumTimepoints < 1 {
		g.NumTimepoints = 1
	}
}
