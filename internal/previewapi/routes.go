// Package previewapi exposes a small HTTP inspection/preview surface over
// one or more opened slides, adapted from the teacher's chi-based router
// and CORS wiring.
package previewapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	bioformats "github.com/nicolapapp/bioformats"
	"github.com/nicolapapp/bioformats/internal/previewcache"
	"github.com/nicolapapp/bioformats/internal/previewrender"
)

// Handle is one registered, opened slide.
type Handle struct {
	ID    string
	Name  string
	Slide *bioformats.Slide
}

// Registry holds every slide this server instance has opened, keyed by a
// UUID stamped at registration time.
type Registry struct {
	byID map[string]*Handle
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Handle)}
}

// Register opens path and stamps it with a new UUID handle.
func (r *Registry) Register(name, path string) (*Handle, error) {
	s, err := bioformats.Open(path)
	if err != nil {
		return nil, err
	}
	h := &Handle{ID: uuid.NewString(), Name: name, Slide: s}
	r.byID[h.ID] = h
	return h, nil
}

// Get returns the handle for id, if registered.
func (r *Registry) Get(id string) (*Handle, bool) {
	h, ok := r.byID[id]
	return h, ok
}

// List returns every registered handle.
func (r *Registry) List() []*Handle {
	out := make([]*Handle, 0, len(r.byID))
	for _, h := range r.byID {
		out = append(out, h)
	}
	return out
}

// RouterConfig configures the router.
type RouterConfig struct {
	Registry    *Registry
	CORSOrigins []string
	Cache       *previewcache.Manager
	Renderer    *previewrender.Renderer
}

// NewRouter builds the chi router exposing /slides, /slides/{id}/captures/{series},
// /slides/{id}/captures/{series}/plane and /slides/{id}/files.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET"},
	}))

	api := &handlers{cfg: cfg}

	r.Get("/slides", api.listSlides)
	r.Get("/slides/{id}/captures/{series}", api.captureInfo)
	r.Get("/slides/{id}/captures/{series}/plane", api.plane)
	r.Get("/slides/{id}/files", api.files)

	return r
}

type handlers struct {
	cfg RouterConfig
}

func (h *handlers) listSlides(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	var out []entry
	for _, handle := range h.cfg.Registry.List() {
		out = append(out, entry{ID: handle.ID, Name: handle.Name})
	}
	writeJSON(w, out)
}

func (h *handlers) handle(w http.ResponseWriter, r *http.Request) (*Handle, bool) {
	id := chi.URLParam(r, "id")
	handle, ok := h.cfg.Registry.Get(id)
	if !ok {
		http.Error(w, "slide not found", http.StatusNotFound)
		return nil, false
	}
	return handle, true
}

func seriesParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	series, err := strconv.Atoi(chi.URLParam(r, "series"))
	if err != nil {
		http.Error(w, "invalid series", http.StatusBadRequest)
		return 0, false
	}
	return series, true
}

func (h *handlers) captureInfo(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.handle(w, r)
	if !ok {
		return
	}
	series, ok := seriesParam(w, r)
	if !ok {
		return
	}
	facts, err := handle.Slide.Facts(series)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, facts)
}

func (h *handlers) plane(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.handle(w, r)
	if !ok {
		return
	}
	series, ok := seriesParam(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	position := intParam(q, "position", 0)
	t := intParam(q, "t", 0)
	z := intParam(q, "z", 0)
	c := intParam(q, "c", 0)
	colormapName := q.Get("colormap")
	if colormapName == "" {
		colormapName = "grays"
	}

	dims, err := handle.Slide.Dimensions(series)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	cacheKey := previewcache.TileKey(handle.ID, series, position, t, z, []int{c}, colormapName)
	if h.cfg.Cache != nil {
		if png, ok := h.cfg.Cache.GetTile(cacheKey); ok {
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
			return
		}
	}

	planeKey := previewcache.PlaneKey(handle.ID, series, position, t, z, c)
	var raw []byte
	if h.cfg.Cache != nil {
		raw, _ = h.cfg.Cache.GetPlane(planeKey)
	}
	if raw == nil {
		raw = make([]byte, dims.Width*dims.Height*dims.BytesPerPixel)
		if err := handle.Slide.ReadPlane(series, position, t, z, c, raw); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if h.cfg.Cache != nil {
			h.cfg.Cache.SetPlane(planeKey, raw)
		}
	}

	png, err := h.cfg.Renderer.RenderSingleChannel(raw, dims.Width, dims.Height, colormapName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if h.cfg.Cache != nil {
		h.cfg.Cache.SetTile(cacheKey, png)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (h *handlers) files(w http.ResponseWriter, r *http.Request) {
	handle, ok := h.handle(w, r)
	if !ok {
		return
	}
	includePixels := r.URL.Query().Get("include_pixels") == "true"
	files, err := handle.Slide.UsedFiles(includePixels)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, files)
}

func intParam(q interface{ Get(string) string }, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
