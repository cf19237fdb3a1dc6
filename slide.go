// Package bioformats reads SlideBook7 .sldy/.sldyz slide containers: a
// directory-packaged tree of per-capture metadata documents and NPY pixel
// files (spec §6). Slide is the public reader handle; open one slide,
// read as many planes as needed, then Close it.
package bioformats

import (
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/nicolapapp/bioformats/internal/capture"
	"github.com/nicolapapp/bioformats/internal/container"
	"github.com/nicolapapp/bioformats/internal/filecache"
	"github.com/nicolapapp/bioformats/internal/metadata"
	"github.com/nicolapapp/bioformats/internal/sberr"
	"github.com/nicolapapp/bioformats/internal/sbyaml"
)

// Slide is an opened slide container: its root directory plus every
// successfully loaded image group ("capture"), indexed in directory-scan
// order.
type Slide struct {
	path       string
	root       string
	compressed bool

	captures []*capture.Group
	files    *filecache.Cache
	logger   *log.Logger
}

// Open resolves path (a .sldy or .sldyz file) to its sibling .dir
// directory, loads every valid .imgdir group beneath it, and returns the
// resulting Slide. A slide with zero valid groups returns EmptyContainer
// (spec §7).
func Open(path string) (*Slide, error) {
	return OpenWithLogger(path, nil)
}

// OpenWithLogger is Open with an explicit logger threaded through the
// record decoder (nil defaults to log.Default(), as sbyaml.NewDecoder does).
func OpenWithLogger(path string, logger *log.Logger) (*Slide, error) {
	root, err := container.SlideRoot(path)
	if err != nil {
		return nil, err
	}
	compressed := container.Compressed(path)

	titles, err := container.ListImageGroups(root)
	if err != nil {
		return nil, err
	}

	files := filecache.New(filecache.DefaultCapacity)
	dec := sbyaml.NewDecoder(logger)

	s := &Slide{path: path, root: root, compressed: compressed, files: files, logger: logger}

	for _, title := range titles {
		groupDir := filepath.Join(root, strings.ReplaceAll(title, "/", string(filepath.Separator))+".imgdir")
		g, err := capture.Load(dec, groupDir, title, compressed, files)
		if err != nil {
			s.logf("skipping group %q: %v", title, err)
			continue
		}
		s.captures = append(s.captures, g)
	}

	if len(s.captures) == 0 {
		files.Close()
		return nil, sberr.EmptyContainer
	}

	return s, nil
}

func (s *Slide) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// NumCaptures returns the number of successfully loaded image groups.
func (s *Slide) NumCaptures() int { return len(s.captures) }

// Dimensions returns the published shape of capture series.
func (s *Slide) Dimensions(series int) (capture.Dimensions, error) {
	g, err := s.capture(series)
	if err != nil {
		return capture.Dimensions{}, err
	}
	return g.Dimensions(), nil
}

// Facts returns the external metadata emission facts for capture series
// (spec §4.7).
func (s *Slide) Facts(series int) (metadata.CaptureFacts, error) {
	g, err := s.capture(series)
	if err != nil {
		return metadata.CaptureFacts{}, err
	}
	return metadata.BuildCaptureFacts(g), nil
}

// ReadPlane reads capture series's (positionIdx, t, z, c) plane into outBuf.
// positionIdx and t are combined into the raw on-disk timepoint index
// (t*numPositions + positionIdx) before the capture's own ReadPlane, which
// always operates on a single flattened raw timepoint (spec §4.6).
func (s *Slide) ReadPlane(series, positionIdx, t, z, c int, outBuf []byte) error {
	g, err := s.capture(series)
	if err != nil {
		return err
	}
	rawT := t*g.NumPositions + positionIdx
	return g.ReadPlane(rawT, z, c, outBuf)
}

func (s *Slide) capture(series int) (*capture.Group, error) {
	if series < 0 || series >= len(s.captures) {
		return nil, sberr.New(sberr.NotFound, "Slide.capture", nil)
	}
	return s.captures[series], nil
}

var excludedSuffixes = []string{".lck", ".copy", ".dat"}

// UsedFiles enumerates the slide sentinel file plus every file under the
// root directory, excluding locks, copies, .dat files, and (if
// includePixels is false) .npy/.npyz pixel files (spec §6).
func (s *Slide) UsedFiles(includePixels bool) ([]string, error) {
	files := []string{s.path}

	err := filepath.WalkDir(s.root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		for _, suf := range excludedSuffixes {
			if strings.HasSuffix(name, suf) {
				return nil
			}
		}
		if !includePixels && (strings.HasSuffix(name, ".npy") || strings.HasSuffix(name, ".npyz")) {
			return nil
		}
		files = append(files, p)
		return nil
	})
	if err != nil {
		return nil, sberr.New(sberr.Io, "Slide.UsedFiles", err)
	}
	return files, nil
}

// Close releases every open file handle held by this slide's file cache.
func (s *Slide) Close() error {
	return s.files.Close()
}
