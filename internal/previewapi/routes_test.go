package previewapi

import (
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nicolapapp/bioformats/internal/previewcache"
	"github.com/nicolapapp/bioformats/internal/previewrender"
)

func writeFixtureFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func buildFixtureSlide(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	slidePath := filepath.Join(root, "demo.sldy")
	writeFixtureFile(t, slidePath, []byte{})

	groupDir := filepath.Join(root, "demo.dir", "cap.imgdir")
	imageRecord := `
StartClass: {ClassName: CImageRecord70}
mWidth: "2"
mHeight: "2"
mNumPlanes: "1"
mNumChannels: "1"
mNumTimepoints: "1"
EndClass: null
`
	writeFixtureFile(t, filepath.Join(groupDir, "ImageRecord.yaml"), []byte(imageRecord))

	annotationRecord := `
StartClass: {ClassName: CDataTableHeaderRecord70}
EndClass: null
`
	writeFixtureFile(t, filepath.Join(groupDir, "AnnotationRecord.yaml"), []byte(annotationRecord))

	text := "{'descr': '<u2', 'fortran_order': False, 'shape': (2, 2), }"
	for (10+len(text)+1)%16 != 0 {
		text += " "
	}
	text += "\n"
	header := make([]byte, 0, 10+len(text))
	header = append(header, 0x93)
	header = append(header, []byte("NUMPY")...)
	header = append(header, 1, 0)
	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, uint16(len(text)))
	header = append(header, lenBytes...)
	header = append(header, []byte(text)...)

	planeBytes := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	full := append(append([]byte{}, header...), planeBytes...)
	writeFixtureFile(t, filepath.Join(groupDir, "ImageData_Ch0_TP0000000.npy"), full)

	return slidePath
}

func newTestRouter(t *testing.T) (http.Handler, string) {
	t.Helper()
	reg := NewRegistry()
	handle, err := reg.Register("demo", buildFixtureSlide(t))
	if err != nil {
		t.Fatal(err)
	}

	cache, err := previewcache.NewManager(previewcache.Config{TileCacheSizeMB: 8, TileTTL: time.Minute, PlaneCacheEntries: 4})
	if err != nil {
		t.Fatal(err)
	}
	renderer := previewrender.NewRenderer(previewrender.Config{DefaultColormap: "grays"})

	router := NewRouter(RouterConfig{Registry: reg, Cache: cache, Renderer: renderer})
	return router, handle.ID
}

func TestListSlides(t *testing.T) {
	router, id := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/slides", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].ID != id {
		t.Fatalf("got %v", out)
	}
}

func TestCaptureInfo(t *testing.T) {
	router, id := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/slides/"+id+"/captures/0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestPlaneEndpointReturnsPNG(t *testing.T) {
	router, id := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/slides/"+id+"/captures/0/plane?position=0&t=0&z=0&c=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content-type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected non-empty PNG body")
	}
}

func TestUnknownSlideIs404(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/slides/does-not-exist/captures/0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestFilesEndpoint(t *testing.T) {
	router, id := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/slides/"+id+"/files", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var files []string
	if err := json.NewDecoder(rec.Body).Decode(&files); err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("expected at least the slide sentinel file")
	}
}
