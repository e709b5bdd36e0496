package tmdb

import (
	"context"
	"regexp"
	"strings"
)

// maxQueryCandidates caps the simplification ladder per cluster.
const maxQueryCandidates = 6

var dashSplitRe = regexp.MustCompile(`\s[-–—]\s`)

// SimplifyQuery generates progressively simpler search candidates from a
// cleaned series title: the original, the text before the first dash, before
// the first parenthesis, before the first colon, then token prefixes down to
// two tokens. Duplicates are removed preserving first-seen order; at most six
// candidates are returned.
func SimplifyQuery(q string) []string {
	t := strings.TrimSpace(q)
	if t == "" {
		return nil
	}
	var cands []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] || len(cands) >= maxQueryCandidates {
			return
		}
		seen[s] = true
		cands = append(cands, s)
	}

	add(t)
	if parts := dashSplitRe.Split(t, 2); len(parts) == 2 {
		add(parts[0])
	}
	if i := strings.IndexByte(t, '('); i > 0 {
		add(t[:i])
	}
	if i := strings.IndexByte(t, ':'); i > 0 {
		add(t[:i])
	}
	toks := strings.Fields(t)
	for keep := len(toks) - 1; keep >= 2; keep-- {
		add(strings.Join(toks[:keep], " "))
	}
	return cands
}

// ResolveTitle runs the full search policy for one cluster query: every
// simplified candidate against the tv endpoint first, then every candidate
// against the multi endpoint. The first hit wins; no ranking is applied
// beyond the provider's own result order. A transient error on one candidate
// does not stop the remaining candidates; it is only surfaced when nothing
// else produced a hit or a definitive miss.
func (c *Client) ResolveTitle(ctx context.Context, query string) (*Match, error) {
	cands := SimplifyQuery(query)
	if len(cands) == 0 {
		return nil, ErrNoResults
	}
	var lastErr error
	sawMiss := false
	for _, search := range []func(context.Context, string) (*Match, error){c.SearchTV, c.SearchMulti} {
		for _, q := range cands {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			m, err := search(ctx, q)
			if err == nil {
				return m, nil
			}
			switch {
			case err == ErrNoResults:
				sawMiss = true
			case IsPermanent(err):
				lastErr = err
			default:
				if lastErr == nil {
					lastErr = err
				}
			}
		}
	}
	if lastErr != nil && !sawMiss {
		return nil, lastErr
	}
	if lastErr != nil && IsPermanent(lastErr) {
		return nil, lastErr
	}
	return nil, ErrNoResults
}
