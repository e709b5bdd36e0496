// Package config loads runtime settings from the environment, optionally
// seeded from a .env file. Every knob has a safe default; only the playlist
// source is mandatory for a run.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds downloader + prober + enrichment settings.
type Config struct {
	// Playlist source: URL or local file path.
	SourceM3U string

	// Outputs
	DBPath   string // inventory sqlite
	OKM3U    string
	FailM3U  string
	OKXLSX   string
	FailXLSX string
	AddCSV   bool // write .csv next to each .xlsx

	// Group filters
	IncludeGroups []string
	ExcludeGroups []string
	IncludesOnly  bool // true = only included groups pass; false = all minus excludes

	// HTTP download
	HTTPTimeout       time.Duration
	UserAgents        []string // rotation order, first is default
	QueryAutoVariants []string // query strings appended to the source URL as fallbacks
	DownloadDir       string   // where to save a copy of the fetched M3U; "" = don't save

	// Probe
	ProbeWorkers       int
	ProbeTimeout       time.Duration // per-URL ffprobe budget, hard-capped at 10s
	ProbeOKRecheck     time.Duration // re-verify OK streams after this long
	ProbeFailRetry     time.Duration // re-try FAIL streams after this long
	ProbeMaxPerRun     int           // 0 = unlimited
	ProbeProgressEvery int
	FFProbeBin         string

	// TMDB enrichment
	TMDBEnabled     bool
	TMDBAPIKey      string
	TMDBLanguage    string
	TMDBWorkers     int
	TMDBRateLimit   float64 // requests per second across all lookup workers
	TMDBCachePath   string  // lookup-cache sqlite
	TMDBEnrichFails bool    // also enrich entries whose probe failed

	// Observability
	MetricsListen string // host:port for /metrics during a run; "" = disabled
	Quiet         bool
}

// Load reads config from environment. Call LoadEnvFile(".env") before Load()
// to use a .env file.
func Load() *Config {
	c := &Config{
		SourceM3U:          os.Getenv("IPTV_CHECKR_SOURCE_M3U"),
		DBPath:             getEnv("IPTV_CHECKR_DB", "output/inventory.sqlite"),
		OKM3U:              getEnv("IPTV_CHECKR_OK_M3U", "output/ok.m3u"),
		FailM3U:            getEnv("IPTV_CHECKR_FAIL_M3U", "output/fail.m3u"),
		OKXLSX:             getEnv("IPTV_CHECKR_OK_XLSX", "output/ok.xlsx"),
		FailXLSX:           getEnv("IPTV_CHECKR_FAIL_XLSX", "output/fail.xlsx"),
		AddCSV:             getEnvBool("IPTV_CHECKR_ADD_CSV", false),
		IncludeGroups:      getEnvList("IPTV_CHECKR_INCLUDE_GROUPS"),
		ExcludeGroups:      getEnvList("IPTV_CHECKR_EXCLUDE_GROUPS"),
		IncludesOnly:       getEnvBool("IPTV_CHECKR_INCLUDES_ONLY", true),
		HTTPTimeout:        getEnvDuration("IPTV_CHECKR_HTTP_TIMEOUT", 30*time.Second),
		UserAgents:         getEnvList("IPTV_CHECKR_USER_AGENTS"),
		QueryAutoVariants:  getEnvList("IPTV_CHECKR_QUERY_VARIANTS"),
		DownloadDir:        os.Getenv("IPTV_CHECKR_DOWNLOAD_DIR"),
		ProbeWorkers:       getEnvInt("IPTV_CHECKR_PROBE_WORKERS", 16),
		ProbeTimeout:       getEnvDuration("IPTV_CHECKR_PROBE_TIMEOUT", 8*time.Second),
		ProbeOKRecheck:     getEnvDuration("IPTV_CHECKR_PROBE_OK_RECHECK", 24*time.Hour),
		ProbeFailRetry:     getEnvDuration("IPTV_CHECKR_PROBE_FAIL_RETRY", 30*time.Minute),
		ProbeMaxPerRun:     getEnvInt("IPTV_CHECKR_PROBE_MAX_PER_RUN", 0),
		ProbeProgressEvery: getEnvInt("IPTV_CHECKR_PROBE_PROGRESS_EVERY", 250),
		FFProbeBin:         getEnv("IPTV_CHECKR_FFPROBE", "ffprobe"),
		TMDBEnabled:        getEnvBool("IPTV_CHECKR_TMDB_ENABLED", false),
		TMDBAPIKey:         os.Getenv("IPTV_CHECKR_TMDB_API_KEY"),
		TMDBLanguage:       getEnv("IPTV_CHECKR_TMDB_LANGUAGE", "en-US"),
		TMDBWorkers:        getEnvInt("IPTV_CHECKR_TMDB_WORKERS", 8),
		TMDBRateLimit:      getEnvFloat("IPTV_CHECKR_TMDB_RPS", 15),
		TMDBCachePath:      getEnv("IPTV_CHECKR_TMDB_CACHE", "output/tmdb_cache.sqlite"),
		TMDBEnrichFails:    getEnvBool("IPTV_CHECKR_TMDB_ENRICH_FAILS", true),
		MetricsListen:      os.Getenv("IPTV_CHECKR_METRICS_LISTEN"),
		Quiet:              getEnvBool("IPTV_CHECKR_QUIET", false),
	}
	if c.ProbeWorkers <= 0 {
		c.ProbeWorkers = 1
	}
	if c.TMDBWorkers <= 0 {
		c.TMDBWorkers = 1
	}
	if c.TMDBRateLimit <= 0 {
		c.TMDBRateLimit = 15
	}
	if c.ProbeProgressEvery <= 0 {
		c.ProbeProgressEvery = 250
	}
	return c
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, _ := strconv.Atoi(v)
		return n
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "yes")
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvList splits a comma-separated env value, trimming blanks.
func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
