// Command sbinspect opens a SlideBook slide and either prints a JSON
// summary of its captures, or (with -serve) hosts the preview HTTP API
// over a directory of slides.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	bioformats "github.com/nicolapapp/bioformats"
	"github.com/nicolapapp/bioformats/internal/config"
	"github.com/nicolapapp/bioformats/internal/previewapi"
	"github.com/nicolapapp/bioformats/internal/previewcache"
	"github.com/nicolapapp/bioformats/internal/previewrender"
)

func main() {
	configPath := flag.String("config", "config/sbinspect.yaml", "Path to preview server configuration file")
	serveAddr := flag.String("serve", "", "If set, serve the preview HTTP API on this address instead of printing a summary")
	includePixels := flag.Bool("include-pixels", false, "Include pixel files in the used-files listing")
	flag.Parse()

	if *serveAddr != "" {
		runServer(*configPath, *serveAddr)
		return
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: sbinspect <path-to.sldy|.sldyz>")
		os.Exit(2)
	}
	inspect(flag.Arg(0), *includePixels)
}

func inspect(path string, includePixels bool) {
	slide, err := bioformats.Open(path)
	if err != nil {
		log.Fatalf("sbinspect: open %s: %v", path, err)
	}
	defer slide.Close()

	type summary struct {
		Path     string   `json:"path"`
		Captures []any    `json:"captures"`
		Files    []string `json:"used_files"`
	}

	out := summary{Path: path}
	for i := 0; i < slide.NumCaptures(); i++ {
		facts, err := slide.Facts(i)
		if err != nil {
			log.Printf("sbinspect: capture %d facts: %v", i, err)
			continue
		}
		out.Captures = append(out.Captures, facts)
	}

	files, err := slide.UsedFiles(includePixels)
	if err != nil {
		log.Fatalf("sbinspect: used files: %v", err)
	}
	out.Files = files

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("sbinspect: encode summary: %v", err)
	}
}

func runServer(configPath, addr string) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("sbinspect: load configuration: %v", err)
	}

	log.Printf("Starting sbinspect preview server on %s", addr)

	registry := previewapi.NewRegistry()
	entries, err := os.ReadDir(cfg.Slides.Dir)
	if err != nil {
		log.Fatalf("sbinspect: read slides dir %s: %v", cfg.Slides.Dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".sldy") && !strings.HasSuffix(name, ".sldyz") {
			continue
		}
		path := filepath.Join(cfg.Slides.Dir, name)
		handle, err := registry.Register(strings.TrimSuffix(name, filepath.Ext(name)), path)
		if err != nil {
			log.Printf("sbinspect: skipping %s: %v", path, err)
			continue
		}
		log.Printf("Registered slide %q as %s (%d captures)", handle.Name, handle.ID, handle.Slide.NumCaptures())
	}

	cache, err := previewcache.NewManager(previewcache.Config{
		TileCacheSizeMB:   cfg.Cache.TileCacheSizeMB,
		TileTTL:           time.Duration(cfg.Cache.TileTTLMinutes) * time.Minute,
		PlaneCacheEntries: cfg.Cache.PlaneCacheEntries,
	})
	if err != nil {
		log.Fatalf("sbinspect: init cache: %v", err)
	}
	defer cache.Close()

	renderer := previewrender.NewRenderer(previewrender.Config{DefaultColormap: cfg.Render.DefaultColormap})

	router := previewapi.NewRouter(previewapi.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		Cache:       cache,
		Renderer:    renderer,
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Preview server listening on http://%s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("sbinspect: server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down preview server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("sbinspect: server forced to shutdown: %v", err)
	}

	log.Println("Preview server stopped")
}
