package download

import (
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/andybalholm/brotli"
)

const okPlaylist = "#EXTM3U\n#EXTINF:-1,Ch\nhttp://h/1.ts\n"

func TestLoadLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "local.m3u")
	if err := os.WriteFile(path, []byte(okPlaylist), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Load(context.Background(), path, Config{Quiet: true})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != okPlaylist {
		t.Errorf("got %q", got)
	}
}

func TestLoadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okPlaylist))
	}))
	defer srv.Close()
	got, err := Load(context.Background(), srv.URL, Config{Quiet: true, Client: srv.Client()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != okPlaylist {
		t.Errorf("got %q", got)
	}
}

func TestLoadAcceptsM3UBodyDespiteStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(okPlaylist))
	}))
	defer srv.Close()
	got, err := Load(context.Background(), srv.URL, Config{Quiet: true, Client: srv.Client()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.Contains(got, "#EXTM3U") {
		t.Errorf("got %q", got)
	}
}

func TestLoadRotatesAgentsAndVariants(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("type") == "m3u_plus" && r.UserAgent() == "VLC/3.0" {
			w.Write([]byte(okPlaylist))
			return
		}
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("<html><head><title>Access Denied</title></head></html>"))
	}))
	defer srv.Close()

	got, err := Load(context.Background(), srv.URL, Config{
		Quiet:         true,
		Client:        srv.Client(),
		UserAgents:    []string{"Mozilla/5.0", "VLC/3.0"},
		QueryVariants: []string{"type=m3u_plus"},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != okPlaylist {
		t.Errorf("got %q", got)
	}
	// Bare URL x2 agents rejected, then variant with first agent rejected,
	// variant with second agent accepted.
	if calls.Load() != 4 {
		t.Errorf("calls = %d, want 4", calls.Load())
	}
}

func TestLoadErrorCarriesPageTitle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("<html><head><title>Blocked by CDN</title></head><body>no</body></html>"))
	}))
	defer srv.Close()

	_, err := Load(context.Background(), srv.URL, Config{Quiet: true, Client: srv.Client()})
	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if derr.Status != http.StatusForbidden || derr.PageTitle != "Blocked by CDN" {
		t.Errorf("err = %+v", derr)
	}
}

func TestLoadDecodesGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			t.Error("gzip not offered")
		}
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte(okPlaylist))
		gz.Close()
	}))
	defer srv.Close()
	got, err := Load(context.Background(), srv.URL, Config{Quiet: true, Client: srv.Client()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != okPlaylist {
		t.Errorf("got %q", got)
	}
}

func TestLoadDecodesBrotli(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "br") {
			t.Error("brotli not offered")
		}
		w.Header().Set("Content-Encoding", "br")
		bw := brotli.NewWriter(w)
		bw.Write([]byte(okPlaylist))
		bw.Close()
	}))
	defer srv.Close()
	got, err := Load(context.Background(), srv.URL, Config{Quiet: true, Client: srv.Client()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != okPlaylist {
		t.Errorf("got %q", got)
	}
}

func TestLoadSavesCopy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okPlaylist))
	}))
	defer srv.Close()
	dir := t.TempDir()
	if _, err := Load(context.Background(), srv.URL, Config{Quiet: true, Client: srv.Client(), SaveCopy: true, SaveDir: dir}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "playlist_*.m3u"))
	if len(matches) != 1 {
		t.Fatalf("saved copies = %v", matches)
	}
}

func TestPageTitle(t *testing.T) {
	if got := pageTitle("<html><head><title> Err 1020 </title></head></html>"); got != "Err 1020" {
		t.Errorf("got %q", got)
	}
	if got := pageTitle("not html at all"); got != "" {
		t.Errorf("got %q", got)
	}
}
