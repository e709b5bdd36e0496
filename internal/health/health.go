package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"time"
)

// CheckProvider fetches the playlist URL. Returns nil if OK, error with message if not.
func CheckProvider(ctx context.Context, m3uURL string) error {
	if m3uURL == "" {
		return fmt.Errorf("no M3U source configured")
	}
	// Some providers don't support HEAD; use GET and close body immediately.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m3uURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("provider unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// CheckFFProbe verifies the probe binary exists and runs.
func CheckFFProbe(ctx context.Context, binary string) error {
	if binary == "" {
		binary = "ffprobe"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", binary, err)
	}
	cmd := exec.CommandContext(ctx, binary, "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s -version failed: %w", binary, err)
	}
	return nil
}
