package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.ProbeWorkers != 16 {
		t.Errorf("ProbeWorkers = %d", cfg.ProbeWorkers)
	}
	if cfg.ProbeTimeout != 8*time.Second {
		t.Errorf("ProbeTimeout = %v", cfg.ProbeTimeout)
	}
	if cfg.ProbeOKRecheck != 24*time.Hour || cfg.ProbeFailRetry != 30*time.Minute {
		t.Errorf("cadence = %v / %v", cfg.ProbeOKRecheck, cfg.ProbeFailRetry)
	}
	if cfg.TMDBLanguage != "en-US" || cfg.TMDBWorkers != 8 || cfg.TMDBRateLimit != 15 {
		t.Errorf("tmdb = %q %d %v", cfg.TMDBLanguage, cfg.TMDBWorkers, cfg.TMDBRateLimit)
	}
	if !cfg.TMDBEnrichFails || cfg.TMDBEnabled {
		t.Errorf("tmdb flags = %v %v", cfg.TMDBEnrichFails, cfg.TMDBEnabled)
	}
	if !cfg.IncludesOnly {
		t.Error("IncludesOnly should default true")
	}
	if cfg.FFProbeBin != "ffprobe" {
		t.Errorf("FFProbeBin = %q", cfg.FFProbeBin)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IPTV_CHECKR_SOURCE_M3U", "http://prov/get.php")
	t.Setenv("IPTV_CHECKR_PROBE_WORKERS", "4")
	t.Setenv("IPTV_CHECKR_PROBE_TIMEOUT", "5s")
	t.Setenv("IPTV_CHECKR_INCLUDE_GROUPS", "Series, Movies ,")
	t.Setenv("IPTV_CHECKR_TMDB_ENABLED", "true")
	t.Setenv("IPTV_CHECKR_TMDB_RPS", "2.5")
	t.Setenv("IPTV_CHECKR_QUIET", "yes")

	cfg := Load()
	if cfg.SourceM3U != "http://prov/get.php" {
		t.Errorf("SourceM3U = %q", cfg.SourceM3U)
	}
	if cfg.ProbeWorkers != 4 || cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("probe = %d %v", cfg.ProbeWorkers, cfg.ProbeTimeout)
	}
	if len(cfg.IncludeGroups) != 2 || cfg.IncludeGroups[0] != "Series" || cfg.IncludeGroups[1] != "Movies" {
		t.Errorf("IncludeGroups = %v", cfg.IncludeGroups)
	}
	if !cfg.TMDBEnabled || cfg.TMDBRateLimit != 2.5 || !cfg.Quiet {
		t.Errorf("overrides lost: %+v", cfg)
	}
}

func TestLoadClampsZeroWorkers(t *testing.T) {
	t.Setenv("IPTV_CHECKR_PROBE_WORKERS", "0")
	t.Setenv("IPTV_CHECKR_TMDB_WORKERS", "-3")
	cfg := Load()
	if cfg.ProbeWorkers != 1 || cfg.TMDBWorkers != 1 {
		t.Errorf("workers = %d %d", cfg.ProbeWorkers, cfg.TMDBWorkers)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nIPTV_CHECKR_TEST_A=plain\nIPTV_CHECKR_TEST_B=\"quoted value\"\n\nbroken line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("IPTV_CHECKR_TEST_A", "")
	t.Setenv("IPTV_CHECKR_TEST_B", "")
	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("IPTV_CHECKR_TEST_A"); got != "plain" {
		t.Errorf("A = %q", got)
	}
	if got := os.Getenv("IPTV_CHECKR_TEST_B"); got != "quoted value" {
		t.Errorf("B = %q", got)
	}
}

func TestLoadEnvFileMissingIsFine(t *testing.T) {
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
}
