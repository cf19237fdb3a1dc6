// Package container maps a slide path to its on-disk directory tree:
// enumerating image-group directories and deriving canonical file paths
// for image, mask and histogram data keyed by (group, channel, timepoint).
package container

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/nicolapapp/bioformats/internal/sberr"
)

const (
	sldySuffix  = ".sldy"
	sldyzSuffix = ".sldyz"
	dirSuffix   = ".dir"
	groupSuffix = ".imgdir"

	// ImageRecordFile is the metadata document every valid image group must contain.
	ImageRecordFile = "ImageRecord.yaml"
)

// SlideRoot strips the .sldy/.sldyz suffix from path and appends .dir.
func SlideRoot(path string) (string, error) {
	switch {
	case strings.HasSuffix(path, sldyzSuffix):
		return strings.TrimSuffix(path, sldyzSuffix) + dirSuffix, nil
	case strings.HasSuffix(path, sldySuffix):
		return strings.TrimSuffix(path, sldySuffix) + dirSuffix, nil
	default:
		return "", sberr.PathSyntax
	}
}

// Compressed reports whether path denotes a compressed (.sldyz) container.
func Compressed(path string) bool {
	return strings.HasSuffix(path, sldyzSuffix)
}

// ListImageGroups lists the direct subdirectories of root ending .imgdir
// that contain ImageRecord.yaml and at least one .npy/.npyz file, returning
// their titles (basename with .imgdir stripped, backslashes normalised).
func ListImageGroups(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, sberr.New(sberr.Io, "container.ListImageGroups", err)
	}

	var titles []string
	for _, e := range entries {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), groupSuffix) {
			continue
		}
		groupDir := filepath.Join(root, e.Name())
		if !isValidGroup(groupDir) {
			continue
		}
		title := strings.TrimSuffix(e.Name(), groupSuffix)
		title = strings.ReplaceAll(title, "\\", "/")
		titles = append(titles, title)
	}
	return titles, nil
}

func isValidGroup(groupDir string) bool {
	if _, err := os.Stat(filepath.Join(groupDir, ImageRecordFile)); err != nil {
		return false
	}
	entries, err := os.ReadDir(groupDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".npy") || strings.HasSuffix(e.Name(), ".npyz") {
			return true
		}
	}
	return false
}

func pixelExt(compressed bool) string {
	if compressed {
		return ".npyz"
	}
	return ".npy"
}

// ImageDataPath returns <groupDir>/ImageData_Ch<channel>_TP<timepoint:07d><ext>.
func ImageDataPath(groupDir string, channel, timepoint int, compressed bool) string {
	return filepath.Join(groupDir, fmt.Sprintf("ImageData_Ch%d_TP%07d%s", channel, timepoint, pixelExt(compressed)))
}

// MaskDataPath returns <groupDir>/MaskData_TP<timepoint:07d>.npy.
func MaskDataPath(groupDir string, timepoint int) string {
	return filepath.Join(groupDir, fmt.Sprintf("MaskData_TP%07d.npy", timepoint))
}

// HistogramDataPath returns <groupDir>/HistogramData_Ch<channel>_TP<timepoint:07d>.npy.
func HistogramDataPath(groupDir string, channel, timepoint int) string {
	return filepath.Join(groupDir, fmt.Sprintf("HistogramData_Ch%d_TP%07d.npy", channel, timepoint))
}

// HistogramSummaryPath returns <groupDir>/HistogramSummary_Ch<channel>.npy.
func HistogramSummaryPath(groupDir string, channel int) string {
	return filepath.Join(groupDir, fmt.Sprintf("HistogramSummary_Ch%d.npy", channel))
}

var (
	chanRe = regexp.MustCompile(`_Ch(\d+)`)
	tpRe   = regexp.MustCompile(`_TP(\d{7})`)
)

// ChannelOf parses the digits following the last _Ch token in path.
func ChannelOf(path string) (int, bool) {
	m := chanRe.FindAllStringSubmatch(path, -1)
	if len(m) == 0 {
		return 0, false
	}
	last := m[len(m)-1]
	n, err := strconv.Atoi(last[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// TimepointOf parses the exactly-7-digit token following the last _TP in path.
func TimepointOf(path string) (int, bool) {
	m := tpRe.FindAllStringSubmatch(path, -1)
	if len(m) == 0 {
		return 0, false
	}
	last := m[len(m)-1]
	n, err := strconv.Atoi(last[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// RenameToTP0 rewrites the 7-digit timepoint token in path to 0000000.
func RenameToTP0(path string) string {
	return tpRe.ReplaceAllString(path, "_TP0000000")
}
