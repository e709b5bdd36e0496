// Package probe verifies stream playability by running an external ffprobe
// against each candidate URL. A stream passes when ffprobe exits cleanly and
// reports a video stream with a codec name; everything else fails with a
// human-readable note.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/snapetech/iptvcheckr/internal/metrics"
	"github.com/snapetech/iptvcheckr/internal/playlist"
	"github.com/snapetech/iptvcheckr/internal/pool"
	"github.com/snapetech/iptvcheckr/internal/safeurl"
)

// maxTimeout is the hard cap on the per-URL ffprobe budget. Providers with
// dead endpoints stall for the full budget; anything above this wastes hours
// on large playlists regardless of configuration.
const maxTimeout = 10 * time.Second

// Config drives a probe run.
type Config struct {
	Workers       int
	Timeout       time.Duration // per URL; capped at maxTimeout, floor 1s
	ProgressEvery int           // emit a progress line every N completions; <=0 disables
	Binary        string        // ffprobe binary; "" = "ffprobe" from PATH
	Quiet         bool
}

// Result is one probed entry's outcome.
type Result struct {
	Entry *playlist.Entry
	OK    bool
	Note  string
}

type ffprobeOutput struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Run probes every entry and returns results in completion order. Each
// entry's Status and Note are updated in place. Cancelling ctx stops
// scheduling new probes and returns the results collected so far; that is a
// partial return, not an error.
func Run(ctx context.Context, entries []*playlist.Entry, cfg Config) []Result {
	total := len(entries)
	if total == 0 {
		return nil
	}
	timeout := cfg.Timeout
	if timeout > maxTimeout {
		timeout = maxTimeout
	}
	if timeout < time.Second {
		timeout = time.Second
	}

	var mu sync.Mutex
	results := make([]Result, 0, total)
	done := 0

	pool.Run(ctx, cfg.Workers, total, func(i int) {
		e := entries[i]
		ok, note := inspect(ctx, cfg.Binary, e.URL, timeout)
		if ctx.Err() != nil && !ok {
			// Interrupted mid-probe: outcome is indeterminate, don't record it.
			return
		}
		mu.Lock()
		if ok {
			e.Status = playlist.StatusOK
			metrics.ProbesTotal.WithLabelValues("ok").Inc()
		} else {
			e.Status = playlist.StatusFail
			metrics.ProbesTotal.WithLabelValues("fail").Inc()
		}
		e.Note = note
		results = append(results, Result{Entry: e, OK: ok, Note: note})
		done++
		d := done
		mu.Unlock()
		if !cfg.Quiet && cfg.ProgressEvery > 0 && (d == total || d%cfg.ProgressEvery == 0) {
			log.Printf("probe: %d/%d checked", d, total)
		}
	})
	return results
}

// inspect runs one ffprobe invocation. Returns ok plus a note: "OK", the
// process's error text, "ffprobe timeout", or "no video stream".
func inspect(ctx context.Context, binary, streamURL string, timeout time.Duration) (bool, string) {
	if !safeurl.IsProbeTarget(streamURL) {
		return false, "unsupported URL scheme"
	}
	if binary == "" {
		binary = "ffprobe"
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_name,width,height",
		"-show_entries", "format=duration",
		"-of", "json",
		streamURL,
	)
	out, err := cmd.Output()
	if cctx.Err() == context.DeadlineExceeded {
		return false, "ffprobe timeout"
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if msg := strings.TrimSpace(string(exitErr.Stderr)); msg != "" {
				return false, msg
			}
		}
		return false, "ffprobe error: " + err.Error()
	}
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return false, "ffprobe output not parseable"
	}
	if len(parsed.Streams) == 0 || parsed.Streams[0].CodecName == "" {
		return false, "no video stream"
	}
	return true, "OK"
}
