package playlist

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const maxLineSize = 1 << 20 // 1 MiB per line

var attrRe = regexp.MustCompile(`(\w[\w-]*)\s*=\s*"([^"]*)"`)

// Parse reads an M3U document and returns its entries in document order.
// Blank and comment lines between an #EXTINF header and its URL are skipped,
// matching how providers interleave #EXTGRP and #EXTVLCOPT lines.
func Parse(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)
	var entries []Entry
	var extinf string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			extinf = line
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if extinf != "" {
			entries = append(entries, entryFromEXTINF(extinf, line))
			extinf = ""
		}
	}
	return entries, sc.Err()
}

// ParseString parses an M3U document held in memory.
func ParseString(text string) ([]Entry, error) {
	return Parse(strings.NewReader(text))
}

func entryFromEXTINF(extinf, url string) Entry {
	header := extinf
	title := ""
	if i := strings.Index(extinf, ","); i >= 0 {
		header, title = extinf[:i], strings.TrimSpace(extinf[i+1:])
	}
	attrs := map[string]string{}
	for _, m := range attrRe.FindAllStringSubmatch(header, -1) {
		attrs[strings.ToLower(m[1])] = m[2]
	}
	if title == "" {
		title = url
	}
	return Entry{
		URL:        url,
		RawTitle:   title,
		GroupLabel: attrs["group-title"],
		TvgID:      attrs["tvg-id"],
		TvgName:    attrs["tvg-name"],
		TvgLogo:    attrs["tvg-logo"],
	}
}

// Write serializes entries as an M3U document. DisplayTitle wins over the raw
// title when set; attribute order is fixed so output diffs cleanly.
func Write(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("#EXTM3U\n"); err != nil {
		return err
	}
	for i := range entries {
		e := &entries[i]
		var attrs []string
		add := func(k, v string) {
			if v != "" {
				attrs = append(attrs, fmt.Sprintf("%s=%q", k, v))
			}
		}
		add("tvg-id", e.TvgID)
		add("tvg-name", e.Title())
		add("tvg-logo", e.TvgLogo)
		add("group-title", e.GroupLabel)
		if _, err := fmt.Fprintf(bw, "#EXTINF:-1 %s,%s\n%s\n", strings.Join(attrs, " "), e.Title(), e.URL); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile writes entries to path, creating parent directories as needed.
func WriteFile(path string, entries []Entry) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err := Write(f, entries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// SortForOutput orders entries deterministically for presentation: group,
// then series key, then season, episode, then display title. seriesKey maps a
// title to its normalized series key; completion order of prior probe or
// enrichment work never leaks into the written playlist.
func SortForOutput(entries []Entry, seriesKey func(string) string) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := &entries[i], &entries[j]
		if a.GroupLabel != b.GroupLabel {
			return a.GroupLabel < b.GroupLabel
		}
		ak, bk := seriesKey(a.Title()), seriesKey(b.Title())
		if ak != bk {
			return ak < bk
		}
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		if a.Episode != b.Episode {
			return a.Episode < b.Episode
		}
		if a.Title() != b.Title() {
			return a.Title() < b.Title()
		}
		return a.URL < b.URL
	})
}

// FilterByGroup applies include/exclude substring filters against the group
// label. With includesOnly set and a non-empty include list, only matching
// groups pass; otherwise everything not excluded passes.
func FilterByGroup(entries []Entry, includes, excludes []string, includesOnly bool) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if matchAny(e.GroupLabel, excludes) {
			continue
		}
		if includesOnly && len(includes) > 0 && !matchAny(e.GroupLabel, includes) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func matchAny(hay string, needles []string) bool {
	h := strings.ToLower(hay)
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(h, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
