// Package title normalizes noisy IPTV provider titles. Providers decorate the
// same show in many ways ("EN - Friends S01 E02 The One...", "|EN| - Friends
// 1080p S01E02"); these helpers strip the decoration down to a stable series
// key so differently-decorated forms of one show compare equal.
//
// All functions are pure text transforms with no I/O.
package title

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultPrefix is the region code assumed when a title carries none.
const DefaultPrefix = "EN"

var (
	// Leading "|EN| - " / "EN - " / "EXYU|" style region prefixes.
	prefixSepRe  = regexp.MustCompile(`(?i)^\s*\|?([A-Za-z]{2,4})\|?\s*[|\-]\s*`)
	prefixBareRe = regexp.MustCompile(`^\|?([A-Z]{2,4})\|?\b`)

	// Resolution / codec / source noise.
	techRe = regexp.MustCompile(`(?i)\b(4k|8k|2160p|1440p|1080p|720p|480p|uhd|hdr10\+?|hdr|dolby\s+vision|dv|h\.?264|x264|h\.?265|x265|hevc|aac|ddp(\.\d+)?|atmos|truehd|bd(rip)?|web[- ]?dl|web[- ]?rip|hdtv|remux)\b`)

	// Country and year decorations.
	countryTagRe    = regexp.MustCompile(`\(([A-Z]{2,4})\)`)
	yearRangeRe     = regexp.MustCompile(`\(\s*(19|20)\d{2}\s*[-– ]\s*(19|20)\d{2}\s*\)`)
	yearParenRe     = regexp.MustCompile(`[(\[{]\s*(19|20)\d{2}\s*[)\]}]`)
	yearTrailRe     = regexp.MustCompile(`\b(19|20)\d{2}\s*$`)
	yearAfterDashRe = regexp.MustCompile(`\s*[-–—]\s*((19|20)\d{2}\b)`)

	// Generic multilingual episode/part/chapter ordinals.
	epLabelRe = regexp.MustCompile(`(?i)\b(episode|folge|chapter|cap[ií]tulo|capitolo|episodio|part|teil)\s*[#:\-]?\s*[IVXLC\d]+\b`)

	// Season/episode tokens, whitespace-tolerant, 1-2 digits each.
	seTokenRe = regexp.MustCompile(`(?i)\bS\s?(\d{1,2})\s*E\s?(\d{1,2})\b`)

	spaceRe       = regexp.MustCompile(`\s+`)
	nonAlphaNumRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// articles dropped (once, leading only) when building a series key.
var articles = map[string]bool{
	"the": true, "a": true, "an": true,
	"el": true, "la": true, "los": true, "las": true,
	"le": true, "les": true, "un": true, "une": true,
	"der": true, "die": true, "das": true,
	"il": true, "lo": true,
}

// DetectPrefix returns the leading 2-4 letter region code of a group label or
// title ("|EXYU| - ..." -> "EXYU"), or DefaultPrefix when absent.
func DetectPrefix(s string) string {
	if p, ok := FindPrefix(s); ok {
		return p
	}
	return DefaultPrefix
}

// FindPrefix is DetectPrefix without the default: ok is false when the text
// carries no recognizable region prefix.
func FindPrefix(s string) (prefix string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if m := prefixSepRe.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1]), true
	}
	// Bare uppercase code without separator ("EXYU Show"). Lowercase words
	// like "Show" must not match, so this pattern is case-sensitive.
	if m := prefixBareRe.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1]), true
	}
	return "", false
}

// StripPrefix removes a detected leading region prefix and its separator.
func StripPrefix(s string) string {
	return strings.TrimSpace(prefixSepRe.ReplaceAllString(s, ""))
}

// StripSeasonEpisode removes every SxxEyy token from s and reports the first
// season/episode pair encountered. Later duplicate tokens are discarded, never
// averaged or overwritten. Three-digit episode numbers are not recognized.
func StripSeasonEpisode(s string) (out string, season, episode int, ok bool) {
	if s == "" {
		return "", 0, 0, false
	}
	for _, m := range seTokenRe.FindAllStringSubmatch(s, -1) {
		season, episode = atoi2(m[1]), atoi2(m[2])
		ok = true
		break
	}
	out = seTokenRe.ReplaceAllString(s, " ")
	out = squeeze(out)
	return out, season, episode, ok
}

// StripNoise removes resolution/codec tags, country tags, year decorations and
// generic episode-ordinal labels, then collapses whitespace and trims
// dash-like punctuation.
func StripNoise(s string) string {
	s = " " + s + " "
	s = techRe.ReplaceAllString(s, " ")
	s = countryTagRe.ReplaceAllString(s, " ")
	s = yearRangeRe.ReplaceAllString(s, " ")
	s = yearParenRe.ReplaceAllString(s, " ")
	s = yearAfterDashRe.ReplaceAllString(s, " $1")
	s = squeeze(s)
	s = yearTrailRe.ReplaceAllString(s, "")
	s = epLabelRe.ReplaceAllString(s, " ")
	s = squeeze(s)
	return strings.Trim(s, " -–—\t\r\n")
}

// SplitSeriesTokens splits a prefix-free raw title into the series base, the
// first season/episode pair, and the provider's episode-name tail (the text
// after the first SxxEyy token, noise-stripped). Titles without a token come
// back whole as base with an empty tail.
func SplitSeriesTokens(s string) (base string, season, episode int, ok bool, tail string) {
	loc := seTokenRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return StripNoise(s), 0, 0, false, ""
	}
	season = atoi2(s[loc[2]:loc[3]])
	episode = atoi2(s[loc[4]:loc[5]])
	base = StripNoise(s[:loc[0]])
	rest, _, _, _ := StripSeasonEpisode(s[loc[1]:])
	tail = StripNoise(rest)
	return base, season, episode, true, tail
}

// SeriesKey derives the canonical series key for a raw title: prefix and
// SxxEyy tokens stripped, noise removed, accents folded to ASCII, lowercased,
// one leading article dropped, non-alphanumeric runs collapsed to single
// spaces. The key is stable across provider-specific decoration; an empty
// result means the title was uninformative and the caller must fall back to a
// URL-derived fingerprint.
func SeriesKey(s string) string {
	s = StripPrefix(s)
	s, _, _, _ = StripSeasonEpisode(s)
	s = StripNoise(s)
	s = strings.ToLower(foldASCII(s))
	s = nonAlphaNumRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i > 0 && articles[s[:i]] {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// CleanDisplayTitle is the display-safe variant of StripNoise: decoration
// removed, casing and word order preserved.
func CleanDisplayTitle(s string) string {
	return StripNoise(s)
}

var asciiFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func foldASCII(s string) string {
	out, _, err := transform.String(asciiFolder, s)
	if err != nil {
		return s
	}
	return out
}

func squeeze(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func atoi2(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		n = n*10 + int(s[i]-'0')
	}
	return n
}
