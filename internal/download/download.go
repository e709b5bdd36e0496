// Package download fetches the source playlist. Providers are picky about
// clients: some demand a particular query suffix or player user agent before
// they serve the real playlist instead of an HTML error page, so the loader
// rotates through configured query variants and user agents until one
// combination yields M3U content.
package download

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html"

	"github.com/snapetech/iptvcheckr/internal/httpclient"
	"github.com/snapetech/iptvcheckr/internal/metrics"
)

// Config controls playlist fetching.
type Config struct {
	Timeout       time.Duration
	UserAgents    []string // tried in order; empty falls back to the default client UA
	QueryVariants []string // raw query fragments appended to the source URL
	SaveCopy      bool
	SaveDir       string
	Quiet         bool

	// Client overrides the HTTP client; nil builds one from Timeout.
	Client *http.Client
}

// Error is the terminal failure after every variant/agent combination was
// rejected. PageTitle carries the provider's HTML error page title when one
// could be extracted.
type Error struct {
	URL       string
	Status    int
	PageTitle string
	Err       error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("download %s: %v", e.URL, e.Err)
	case e.PageTitle != "":
		return fmt.Sprintf("download %s: HTTP %d (%s)", e.URL, e.Status, e.PageTitle)
	default:
		return fmt.Sprintf("download %s: HTTP %d", e.URL, e.Status)
	}
}

func (e *Error) Unwrap() error { return e.Err }

var urlRe = regexp.MustCompile(`(?i)^https?://`)

// Load returns the playlist text behind locator. A locator without an http(s)
// scheme is read as a local file. Remote fetches accept a response when the
// status is 200 or the body contains #EXTM3U, whichever comes first across
// the variant/agent rotation.
func Load(ctx context.Context, locator string, cfg Config) (string, error) {
	if !urlRe.MatchString(locator) {
		data, err := os.ReadFile(locator)
		if err != nil {
			return "", fmt.Errorf("download: read %s: %w", locator, err)
		}
		return string(data), nil
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = httpclient.WithTimeout(timeout)
	}

	variants := []string{locator}
	for _, q := range cfg.QueryVariants {
		if q != "" {
			variants = append(variants, appendQuery(locator, q))
		}
	}
	agents := cfg.UserAgents
	if len(agents) == 0 {
		agents = []string{httpclient.UserAgent}
	}

	var lastErr *Error
	for _, u := range variants {
		for _, ua := range agents {
			metrics.DownloadAttempts.Inc()
			body, status, err := fetch(ctx, client, u, ua)
			if err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				lastErr = &Error{URL: u, Err: err}
				continue
			}
			if status == http.StatusOK || strings.Contains(body, "#EXTM3U") {
				if cfg.SaveCopy {
					saveCopy(cfg.SaveDir, body, cfg.Quiet)
				}
				return body, nil
			}
			title := pageTitle(body)
			lastErr = &Error{URL: u, Status: status, PageTitle: title}
			if !cfg.Quiet {
				log.Printf("download: rejected HTTP %d (ua=%q, title=%q)", status, ua, title)
			}
		}
	}
	if lastErr == nil {
		lastErr = &Error{URL: locator, Err: fmt.Errorf("no fetch attempted")}
	}
	return "", lastErr
}

func fetch(ctx context.Context, client *http.Client, u, ua string) (body string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Accept", "*/*")
	// Asking for brotli alongside gzip means decoding both ourselves: the
	// transport only auto-decompresses when it injected the header itself.
	req.Header.Set("Accept-Encoding", "gzip, br")
	if ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var r io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, gerr := gzip.NewReader(resp.Body)
		if gerr != nil {
			return "", 0, fmt.Errorf("gzip response: %w", gerr)
		}
		defer gz.Close()
		r = gz
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	return string(data), resp.StatusCode, nil
}

// pageTitle extracts the <title> text of an HTML error page for diagnostics.
// Returns "" when the body is not parseable HTML or has no title.
func pageTitle(body string) string {
	const maxSniff = 64 << 10
	if len(body) > maxSniff {
		body = body[:maxSniff]
	}
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			title = strings.TrimSpace(sb.String())
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

func appendQuery(u, extra string) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + extra
}

func saveCopy(dir string, body string, quiet bool) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("download: save copy: %v", err)
		return
	}
	name := "playlist_" + time.Now().Format("20060102_150405") + ".m3u"
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		log.Printf("download: save copy: %v", err)
		return
	}
	if !quiet {
		log.Printf("download: playlist saved to %s", path)
	}
}
