package playlist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleM3U = `#EXTM3U
#EXTINF:-1 tvg-id="ch1" tvg-name="Friends S01 E01" tvg-logo="http://img/1.png" group-title="|EN| - Series",EN - Friends S01 E01
http://host/live/u/p/1.ts
#EXTINF:-1 group-title="|DE| - Serien",DE - Tatort
#EXTGRP:ignored
http://host/live/u/p/2.ts

#EXTINF:-1,Bare Title
http://host/live/u/p/3.ts
`

func TestParse(t *testing.T) {
	entries, err := ParseString(sampleM3U)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	e := entries[0]
	if e.URL != "http://host/live/u/p/1.ts" {
		t.Errorf("url = %q", e.URL)
	}
	if e.RawTitle != "EN - Friends S01 E01" {
		t.Errorf("title = %q", e.RawTitle)
	}
	if e.TvgID != "ch1" || e.TvgName != "Friends S01 E01" || e.TvgLogo != "http://img/1.png" {
		t.Errorf("attrs = %q %q %q", e.TvgID, e.TvgName, e.TvgLogo)
	}
	if e.GroupLabel != "|EN| - Series" {
		t.Errorf("group = %q", e.GroupLabel)
	}

	// Comment line between EXTINF and URL is skipped.
	if entries[1].URL != "http://host/live/u/p/2.ts" {
		t.Errorf("entry 1 url = %q", entries[1].URL)
	}
	if entries[2].RawTitle != "Bare Title" {
		t.Errorf("entry 2 title = %q", entries[2].RawTitle)
	}
}

func TestParseEmptyTitleFallsBackToURL(t *testing.T) {
	entries, err := ParseString("#EXTM3U\n#EXTINF:-1,\nhttp://host/x.ts\n")
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if len(entries) != 1 || entries[0].RawTitle != "http://host/x.ts" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	in, err := ParseString(sampleM3U)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	var sb strings.Builder
	if err := Write(&sb, in); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out, err := ParseString(sb.String())
	if err != nil {
		t.Fatalf("re-parse: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("got %d entries, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i].URL != in[i].URL || out[i].GroupLabel != in[i].GroupLabel {
			t.Errorf("entry %d: %+v vs %+v", i, out[i], in[i])
		}
	}
}

func TestWriteUsesDisplayTitle(t *testing.T) {
	entries := []Entry{{URL: "http://h/1.ts", RawTitle: "raw", DisplayTitle: "EN - Friends S01 E01"}}
	var sb strings.Builder
	if err := Write(&sb, entries); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(sb.String(), ",EN - Friends S01 E01\n") {
		t.Errorf("output missing display title:\n%s", sb.String())
	}
	if strings.Contains(sb.String(), ",raw\n") {
		t.Errorf("raw title leaked into output:\n%s", sb.String())
	}
}

func TestWriteFileCreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "ok.m3u")
	if err := WriteFile(path, nil); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "#EXTM3U\n" {
		t.Errorf("content = %q", data)
	}
}

func TestSortForOutput(t *testing.T) {
	key := func(s string) string { return strings.ToLower(s) }
	entries := []Entry{
		{URL: "u3", DisplayTitle: "show", GroupLabel: "B", Season: 1, Episode: 2},
		{URL: "u1", DisplayTitle: "show", GroupLabel: "A", Season: 2, Episode: 1},
		{URL: "u2", DisplayTitle: "show", GroupLabel: "A", Season: 1, Episode: 5},
	}
	SortForOutput(entries, key)
	got := []string{entries[0].URL, entries[1].URL, entries[2].URL}
	want := []string{"u2", "u1", "u3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestFilterByGroup(t *testing.T) {
	entries := []Entry{
		{URL: "a", GroupLabel: "|EN| - Series"},
		{URL: "b", GroupLabel: "|EN| - Adult"},
		{URL: "c", GroupLabel: "|DE| - Serien"},
	}

	got := FilterByGroup(entries, []string{"series"}, []string{"adult"}, true)
	if len(got) != 1 || got[0].URL != "a" {
		t.Fatalf("includes-only: %+v", got)
	}

	got = FilterByGroup(entries, []string{"series"}, []string{"adult"}, false)
	if len(got) != 2 {
		t.Fatalf("all-minus-excludes: %+v", got)
	}
}
