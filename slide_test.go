package bioformats

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func npyHeader(shape []int) []byte {
	shapeStr := ""
	for i, s := range shape {
		if i > 0 {
			shapeStr += ", "
		}
		shapeStr += itoaTest(s)
	}
	if len(shape) == 1 {
		shapeStr += ","
	}
	text := "{'descr': '<u2', 'fortran_order': False, 'shape': (" + shapeStr + "), }"
	for (10+len(text)+1)%16 != 0 {
		text += " "
	}
	text += "\n"
	buf := make([]byte, 0, 10+len(text))
	buf = append(buf, 0x93)
	buf = append(buf, []byte("NUMPY")...)
	buf = append(buf, 1, 0)
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, uint16(len(text)))
	buf = append(buf, lenBytes...)
	buf = append(buf, []byte(text)...)
	return buf
}

func itoaTest(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// TestOpenReadPlaneS1 builds spec scenario S1 end-to-end through the
// public Slide API: one slide, one group, one channel/timepoint plane.
func TestOpenReadPlaneS1(t *testing.T) {
	root := t.TempDir()
	slidePath := filepath.Join(root, "demo.sldy")
	writeTestFile(t, slidePath, []byte{})

	dirRoot := filepath.Join(root, "demo.dir")
	groupDir := filepath.Join(dirRoot, "cap.imgdir")

	imageRecord := `
StartClass: {ClassName: CImageRecord70}
mWidth: "2"
mHeight: "2"
mNumPlanes: "1"
mNumChannels: "1"
mNumTimepoints: "1"
EndClass: null
`
	writeTestFile(t, filepath.Join(groupDir, "ImageRecord.yaml"), []byte(imageRecord))

	annotationRecord := `
StartClass: {ClassName: CDataTableHeaderRecord70}
EndClass: null
`
	writeTestFile(t, filepath.Join(groupDir, "AnnotationRecord.yaml"), []byte(annotationRecord))

	planeBytes := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	full := append(append([]byte{}, npyHeader([]int{2, 2})...), planeBytes...)
	writeTestFile(t, filepath.Join(groupDir, "ImageData_Ch0_TP0000000.npy"), full)

	s, err := Open(slidePath)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.NumCaptures() != 1 {
		t.Fatalf("NumCaptures = %d, want 1", s.NumCaptures())
	}

	buf := make([]byte, 8)
	if err := s.ReadPlane(0, 0, 0, 0, 0, buf); err != nil {
		t.Fatal(err)
	}
	for i := range planeBytes {
		if buf[i] != planeBytes[i] {
			t.Fatalf("mismatch at %d: got %v want %v", i, buf, planeBytes)
		}
	}

	files, err := s.UsedFiles(true)
	if err != nil {
		t.Fatal(err)
	}
	foundSlide, foundPixel := false, false
	for _, f := range files {
		if f == slidePath {
			foundSlide = true
		}
		if filepath.Base(f) == "ImageData_Ch0_TP0000000.npy" {
			foundPixel = true
		}
	}
	if !foundSlide || !foundPixel {
		t.Fatalf("UsedFiles(true) missing expected entries: %v", files)
	}

	noPixels, err := s.UsedFiles(false)
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range noPixels {
		if filepath.Ext(f) == ".npy" {
			t.Fatalf("UsedFiles(false) should exclude pixel files, got %v", noPixels)
		}
	}
}

// TestOpenEmptyContainer covers the zero-valid-groups failure path (spec §7).
func TestOpenEmptyContainer(t *testing.T) {
	root := t.TempDir()
	slidePath := filepath.Join(root, "empty.sldy")
	writeTestFile(t, slidePath, []byte{})
	if err := os.MkdirAll(filepath.Join(root, "empty.dir"), 0o755); err != nil {
		t.Fatal(err)
	}

	_, err := Open(slidePath)
	if err == nil {
		t.Fatal("expected EmptyContainer error")
	}
}
