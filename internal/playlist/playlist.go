// Package playlist parses and writes M3U playlists as a flat, ordered list of
// stream entries. It is a pure text transform: no network, no enrichment.
package playlist

// ProbeStatus is the last known playability of an entry's stream URL.
type ProbeStatus string

const (
	StatusUnknown ProbeStatus = ""
	StatusOK      ProbeStatus = "OK"
	StatusFail    ProbeStatus = "FAIL"
)

// Entry is one stream candidate from the playlist. URL is the stable identity
// across runs; everything else may change between provider exports.
type Entry struct {
	URL        string
	RawTitle   string
	GroupLabel string
	TvgID      string
	TvgName    string
	TvgLogo    string

	// Computed during a run.
	DisplayTitle     string
	Season           int
	Episode          int
	HasSeasonEpisode bool
	Status           ProbeStatus
	Note             string
}

// Title returns the best available display text for the entry: the computed
// DisplayTitle when set, else the raw provider title, else the URL.
func (e *Entry) Title() string {
	if e.DisplayTitle != "" {
		return e.DisplayTitle
	}
	if e.RawTitle != "" {
		return e.RawTitle
	}
	return e.URL
}
