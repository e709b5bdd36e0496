package probe

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/snapetech/iptvcheckr/internal/playlist"
)

// fakeFFProbe writes a shell script that mimics ffprobe and returns its path.
func fakeFFProbe(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script ffprobe stand-in")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake ffprobe: %v", err)
	}
	return path
}

const videoJSON = `{"streams":[{"codec_name":"h264","width":1920,"height":1080}],"format":{"duration":"0"}}`

func TestRunMarksOK(t *testing.T) {
	bin := fakeFFProbe(t, `printf '%s' '`+videoJSON+`'`)
	e := &playlist.Entry{URL: "http://host/stream.ts"}
	results := Run(context.Background(), []*playlist.Entry{e}, Config{Workers: 1, Timeout: 2 * time.Second, Binary: bin, Quiet: true})
	if len(results) != 1 {
		t.Fatalf("results = %d", len(results))
	}
	if !results[0].OK || results[0].Note != "OK" {
		t.Fatalf("result = %+v", results[0])
	}
	if e.Status != playlist.StatusOK {
		t.Errorf("entry status = %q", e.Status)
	}
}

func TestRunMarksFailOnExitError(t *testing.T) {
	bin := fakeFFProbe(t, `echo 'Connection refused' >&2; exit 1`)
	e := &playlist.Entry{URL: "http://host/dead.ts"}
	results := Run(context.Background(), []*playlist.Entry{e}, Config{Workers: 1, Timeout: 2 * time.Second, Binary: bin, Quiet: true})
	if len(results) != 1 || results[0].OK {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Note != "Connection refused" {
		t.Errorf("note = %q", results[0].Note)
	}
	if e.Status != playlist.StatusFail {
		t.Errorf("entry status = %q", e.Status)
	}
}

func TestRunMarksFailOnNoVideoStream(t *testing.T) {
	bin := fakeFFProbe(t, `printf '%s' '{"streams":[],"format":{}}'`)
	e := &playlist.Entry{URL: "http://host/audio.ts"}
	results := Run(context.Background(), []*playlist.Entry{e}, Config{Workers: 1, Timeout: 2 * time.Second, Binary: bin, Quiet: true})
	if len(results) != 1 || results[0].OK {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Note != "no video stream" {
		t.Errorf("note = %q", results[0].Note)
	}
}

func TestRunTimeout(t *testing.T) {
	bin := fakeFFProbe(t, `sleep 30`)
	e := &playlist.Entry{URL: "http://host/stall.ts"}
	start := time.Now()
	results := Run(context.Background(), []*playlist.Entry{e}, Config{Workers: 1, Timeout: time.Second, Binary: bin, Quiet: true})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("probe took %v, timeout not enforced", elapsed)
	}
	if len(results) != 1 || results[0].OK {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Note != "ffprobe timeout" {
		t.Errorf("note = %q", results[0].Note)
	}
}

func TestRunRejectsUnsupportedScheme(t *testing.T) {
	e := &playlist.Entry{URL: "ftp://host/file.ts"}
	results := Run(context.Background(), []*playlist.Entry{e}, Config{Workers: 1, Timeout: time.Second, Binary: "/nonexistent", Quiet: true})
	if len(results) != 1 || results[0].OK {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Note != "unsupported URL scheme" {
		t.Errorf("note = %q", results[0].Note)
	}
}

func TestRunConcurrent(t *testing.T) {
	bin := fakeFFProbe(t, `printf '%s' '`+videoJSON+`'`)
	entries := make([]*playlist.Entry, 20)
	for i := range entries {
		entries[i] = &playlist.Entry{URL: "http://host/s.ts"}
	}
	results := Run(context.Background(), entries, Config{Workers: 8, Timeout: 2 * time.Second, Binary: bin, Quiet: true})
	if len(results) != len(entries) {
		t.Fatalf("results = %d, want %d", len(results), len(entries))
	}
	for _, r := range results {
		if !r.OK {
			t.Fatalf("result = %+v", r)
		}
	}
}

func TestRunCancelledReturnsPartial(t *testing.T) {
	bin := fakeFFProbe(t, `sleep 30`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	entries := []*playlist.Entry{{URL: "http://host/a.ts"}, {URL: "http://host/b.ts"}}
	results := Run(ctx, entries, Config{Workers: 1, Timeout: 2 * time.Second, Binary: bin, Quiet: true})
	if len(results) != 0 {
		t.Fatalf("results = %+v, want none after pre-cancelled ctx", results)
	}
	for _, e := range entries {
		if e.Status != playlist.StatusUnknown {
			t.Errorf("entry %q status = %q, want unchanged", e.URL, e.Status)
		}
	}
}
