// Package cluster groups playlist entries into series/movie occurrence
// clusters. Entries land in the same cluster when their region prefix and
// normalized series key agree; every cluster triggers at most one external
// metadata lookup downstream.
package cluster

import (
	"net/url"
	"sort"
	"strings"

	"github.com/snapetech/iptvcheckr/internal/playlist"
	"github.com/snapetech/iptvcheckr/internal/title"
)

// Member is one playlist entry with its parsed series tokens.
type Member struct {
	Entry   *playlist.Entry
	Base    string // noise-stripped series text before the first SxxEyy token
	Season  int
	Episode int
	HasSE   bool
	Tail    string // provider's episode-name text after the token
}

// Cluster is the set of entries believed to be the same show or movie within
// one region/provider context. Ephemeral: rebuilt from the playlist each run.
type Cluster struct {
	Key      string // lowercased "prefix::titlekey"
	Prefix   string
	TitleKey string
	Members  []Member
	Series   bool   // any member carried a season/episode token
	Query    string // representative search text: longest base observed

	fingerprints map[string]struct{}
}

// Fingerprints returns the sorted provider-locality fingerprints (host plus
// parent path segment) seen across members. Observability only; never part of
// the cluster key unless the title key is empty.
func (c *Cluster) Fingerprints() []string {
	out := make([]string, 0, len(c.fingerprints))
	for fp := range c.fingerprints {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

// SampleTitles returns up to n member raw titles for observability records.
func (c *Cluster) SampleTitles(n int) []string {
	if n > len(c.Members) {
		n = len(c.Members)
	}
	out := make([]string, 0, n)
	for _, m := range c.Members[:n] {
		out = append(out, m.Entry.RawTitle)
	}
	return out
}

// Build groups entries by cluster key. Two entries with unchanged titles and
// URLs always land in the same cluster across runs: key computation has no
// randomness and no map-iteration dependence. Members keep playlist order.
func Build(entries []*playlist.Entry) map[string]*Cluster {
	clusters := make(map[string]*Cluster)
	for _, e := range entries {
		prefix := prefixFor(e)
		base, season, episode, hasSE, tail := title.SplitSeriesTokens(title.StripPrefix(e.RawTitle))
		fp := URLFingerprint(e.URL)
		titleKey := title.SeriesKey(base)
		if titleKey == "" {
			// Uninformative title: fall back to the URL-derived fingerprint.
			titleKey = strings.TrimSpace(strings.ReplaceAll(fp, "/", " "))
		}
		key := strings.ToLower(prefix + "::" + titleKey)

		c := clusters[key]
		if c == nil {
			c = &Cluster{
				Key:          key,
				Prefix:       prefix,
				TitleKey:     titleKey,
				fingerprints: make(map[string]struct{}),
			}
			clusters[key] = c
		}
		c.Members = append(c.Members, Member{
			Entry:   e,
			Base:    base,
			Season:  season,
			Episode: episode,
			HasSE:   hasSE,
			Tail:    tail,
		})
		if fp != "" {
			c.fingerprints[fp] = struct{}{}
		}
		if hasSE {
			c.Series = true
		}
		if len(base) > len(c.Query) {
			c.Query = base
		}
	}
	return clusters
}

// SortedKeys returns cluster keys in lexical order for deterministic
// scheduling and logging.
func SortedKeys(clusters map[string]*Cluster) []string {
	keys := make([]string, 0, len(clusters))
	for k := range clusters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func prefixFor(e *playlist.Entry) string {
	if p, ok := title.FindPrefix(e.GroupLabel); ok {
		return p
	}
	if p, ok := title.FindPrefix(e.RawTitle); ok {
		return p
	}
	return title.DefaultPrefix
}

// URLFingerprint returns the coarse provider-locality signal for a stream
// URL: lowercased host plus the second-to-last path segment.
func URLFingerprint(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	fp := u.Host
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segs) >= 2 {
		fp += "/" + segs[len(segs)-2]
	}
	return strings.ToLower(fp)
}
