// Command iptv-checkr: verify an IPTV playlist end to end (run), or execute
// the stages separately.
//
//	run     Full cycle: download M3U, update inventory, probe due streams,
//	        enrich metadata, write OK/FAIL playlists and spreadsheets.
//	probe   Download, update inventory and probe due streams only.
//	enrich  Re-derive display titles and genre groups for an existing M3U file.
//	export  Rebuild playlists and spreadsheets from current inventory state,
//	        without probing.
//	check   Preflight: provider reachable, ffprobe present.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/snapetech/iptvcheckr/internal/config"
	"github.com/snapetech/iptvcheckr/internal/download"
	"github.com/snapetech/iptvcheckr/internal/enrich"
	"github.com/snapetech/iptvcheckr/internal/health"
	"github.com/snapetech/iptvcheckr/internal/inventory"
	"github.com/snapetech/iptvcheckr/internal/metrics"
	"github.com/snapetech/iptvcheckr/internal/playlist"
	"github.com/snapetech/iptvcheckr/internal/probe"
	"github.com/snapetech/iptvcheckr/internal/report"
	"github.com/snapetech/iptvcheckr/internal/title"
)

func main() {
	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runSource := runCmd.String("source", "", "playlist URL or file (overrides IPTV_CHECKR_SOURCE_M3U)")
	runEnv := runCmd.String("env", ".env", "path to .env file (empty to skip)")

	probeCmd := flag.NewFlagSet("probe", flag.ExitOnError)
	probeSource := probeCmd.String("source", "", "playlist URL or file (overrides IPTV_CHECKR_SOURCE_M3U)")
	probeEnv := probeCmd.String("env", ".env", "path to .env file (empty to skip)")

	enrichCmd := flag.NewFlagSet("enrich", flag.ExitOnError)
	enrichIn := enrichCmd.String("in", "", "input M3U file")
	enrichOut := enrichCmd.String("out", "", "output M3U file")
	enrichEnv := enrichCmd.String("env", ".env", "path to .env file (empty to skip)")

	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	exportSource := exportCmd.String("source", "", "playlist URL or file (overrides IPTV_CHECKR_SOURCE_M3U)")
	exportEnv := exportCmd.String("env", ".env", "path to .env file (empty to skip)")

	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkEnv := checkCmd.String("env", ".env", "path to .env file (empty to skip)")

	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <run|probe|enrich|export|check> [flags]\n", os.Args[0])
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		_ = runCmd.Parse(os.Args[2:])
		cfg := loadConfig(*runEnv, *runSource)
		if err := runOnce(ctx, cfg, stageAll); err != nil {
			log.Fatalf("run: %v", err)
		}
	case "probe":
		_ = probeCmd.Parse(os.Args[2:])
		cfg := loadConfig(*probeEnv, *probeSource)
		if err := runOnce(ctx, cfg, stageProbe); err != nil {
			log.Fatalf("probe: %v", err)
		}
	case "enrich":
		_ = enrichCmd.Parse(os.Args[2:])
		if *enrichIn == "" || *enrichOut == "" {
			log.Fatal("enrich: -in and -out are required")
		}
		cfg := loadConfig(*enrichEnv, "")
		if err := enrichFile(ctx, cfg, *enrichIn, *enrichOut); err != nil {
			log.Fatalf("enrich: %v", err)
		}
	case "export":
		_ = exportCmd.Parse(os.Args[2:])
		cfg := loadConfig(*exportEnv, *exportSource)
		if err := runOnce(ctx, cfg, stageExport); err != nil {
			log.Fatalf("export: %v", err)
		}
	case "check":
		_ = checkCmd.Parse(os.Args[2:])
		cfg := loadConfig(*checkEnv, "")
		if err := preflight(ctx, cfg); err != nil {
			log.Fatalf("check: %v", err)
		}
		log.Print("check: all good")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func loadConfig(envPath, sourceOverride string) *config.Config {
	if envPath != "" {
		if err := config.LoadEnvFile(envPath); err != nil && !os.IsNotExist(err) {
			log.Printf("env file %s: %v", envPath, err)
		}
	}
	cfg := config.Load()
	if sourceOverride != "" {
		cfg.SourceM3U = sourceOverride
	}
	return cfg
}

func preflight(ctx context.Context, cfg *config.Config) error {
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if strings.HasPrefix(cfg.SourceM3U, "http://") || strings.HasPrefix(cfg.SourceM3U, "https://") {
		if err := health.CheckProvider(cctx, cfg.SourceM3U); err != nil {
			return err
		}
	}
	return health.CheckFFProbe(cctx, cfg.FFProbeBin)
}

// stage selects which parts of the cycle runOnce executes.
type stage int

const (
	stageAll stage = iota
	stageProbe
	stageExport // skip probing, rebuild outputs from inventory state
)

func runOnce(ctx context.Context, cfg *config.Config, st stage) error {
	if cfg.SourceM3U == "" {
		return fmt.Errorf("no playlist source: set IPTV_CHECKR_SOURCE_M3U or pass -source")
	}
	if cfg.MetricsListen != "" {
		metrics.Serve(cfg.MetricsListen)
	}
	if !cfg.Quiet {
		log.Printf("loading playlist from %s", cfg.SourceM3U)
	}

	text, err := download.Load(ctx, cfg.SourceM3U, download.Config{
		Timeout:       cfg.HTTPTimeout,
		UserAgents:    cfg.UserAgents,
		QueryVariants: cfg.QueryAutoVariants,
		SaveCopy:      cfg.DownloadDir != "",
		SaveDir:       cfg.DownloadDir,
		Quiet:         cfg.Quiet,
	})
	if err != nil {
		return err
	}

	entries, err := playlist.ParseString(text)
	if err != nil {
		return err
	}
	if !cfg.Quiet {
		log.Printf("entries detected: %d", len(entries))
	}

	filtered := playlist.FilterByGroup(entries, cfg.IncludeGroups, cfg.ExcludeGroups, cfg.IncludesOnly)
	if !cfg.Quiet {
		log.Printf("after group filter: %d", len(filtered))
	}

	store, err := inventory.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ptrs := make([]*playlist.Entry, len(filtered))
	byURL := make(map[string]*playlist.Entry, len(filtered))
	for i := range filtered {
		ptrs[i] = &filtered[i]
		if _, dup := byURL[filtered[i].URL]; !dup {
			byURL[filtered[i].URL] = ptrs[i]
		}
	}
	if err := store.BulkUpsert(ctx, ptrs); err != nil {
		return err
	}

	var failNotes map[string]string
	if st != stageExport {
		failNotes, err = probeDue(ctx, cfg, store, byURL)
		if err != nil {
			return err
		}
	}
	if st == stageProbe {
		return nil
	}

	rows, err := store.FetchAll(ctx)
	if err != nil {
		return err
	}
	var okItems, failItems []*playlist.Entry
	for _, e := range ptrs {
		switch rows[e.URL].Status {
		case playlist.StatusOK:
			e.Status = playlist.StatusOK
			okItems = append(okItems, e)
		case playlist.StatusFail:
			e.Status = playlist.StatusFail
			failItems = append(failItems, e)
		}
	}
	if !cfg.Quiet {
		log.Printf("inventory state: %d OK / %d FAIL within filtered playlist", len(okItems), len(failItems))
	}

	toEnrich := okItems
	if cfg.TMDBEnrichFails {
		toEnrich = append(append([]*playlist.Entry{}, okItems...), failItems...)
	}
	switch {
	case cfg.TMDBEnabled && cfg.TMDBAPIKey == "":
		log.Print("TMDB enabled but no API key configured; grouping falls back to |PREFIX| - Uncategorized")
		enrich.ApplyFallback(toEnrich)
	case cfg.TMDBEnabled:
		if !cfg.Quiet {
			log.Printf("metadata enrichment for %d entries", len(toEnrich))
		}
		if err := enrich.Run(ctx, toEnrich, enrich.Config{
			APIKey:    cfg.TMDBAPIKey,
			Language:  cfg.TMDBLanguage,
			Workers:   cfg.TMDBWorkers,
			RateLimit: cfg.TMDBRateLimit,
			CachePath: cfg.TMDBCachePath,
			Quiet:     cfg.Quiet,
		}); err != nil {
			return err
		}
	default:
		enrich.ApplyFallback(toEnrich)
	}

	if err := writeOutputs(cfg, okItems, failItems, rows, failNotes); err != nil {
		return err
	}
	if !cfg.Quiet {
		log.Print("done")
	}
	return nil
}

// probeDue probes the inventory's stale subset of the current playlist and
// records the outcomes. Returns failure notes keyed by URL for the report.
func probeDue(ctx context.Context, cfg *config.Config, store *inventory.Store, byURL map[string]*playlist.Entry) (map[string]string, error) {
	dueURLs, err := store.DueForProbe(ctx, cfg.ProbeOKRecheck, cfg.ProbeFailRetry, cfg.ProbeMaxPerRun)
	if err != nil {
		return nil, err
	}
	var due []*playlist.Entry
	for _, u := range dueURLs {
		if e, ok := byURL[u]; ok {
			due = append(due, e)
		}
	}
	if !cfg.Quiet {
		log.Printf("probing %d due streams (workers=%d)", len(due), cfg.ProbeWorkers)
	}
	if len(due) == 0 {
		return nil, nil
	}

	results := probe.Run(ctx, due, probe.Config{
		Workers:       cfg.ProbeWorkers,
		Timeout:       cfg.ProbeTimeout,
		ProgressEvery: cfg.ProbeProgressEvery,
		Binary:        cfg.FFProbeBin,
		Quiet:         cfg.Quiet,
	})

	var okURLs, failURLs []string
	notes := make(map[string]string)
	for _, r := range results {
		if r.OK {
			okURLs = append(okURLs, r.Entry.URL)
		} else {
			failURLs = append(failURLs, r.Entry.URL)
			notes[r.Entry.URL] = r.Note
		}
	}
	if err := store.MarkResults(ctx, okURLs, failURLs); err != nil {
		return nil, err
	}
	if !cfg.Quiet {
		log.Printf("saved: %d OK, %d FAIL", len(okURLs), len(failURLs))
	}
	return notes, nil
}

func writeOutputs(cfg *config.Config, okItems, failItems []*playlist.Entry, rows map[string]inventory.Row, failNotes map[string]string) error {
	writeM3U := func(path string, items []*playlist.Entry) error {
		out := make([]playlist.Entry, len(items))
		for i, e := range items {
			out[i] = *e
		}
		playlist.SortForOutput(out, title.SeriesKey)
		return playlist.WriteFile(path, out)
	}
	if err := writeM3U(cfg.OKM3U, okItems); err != nil {
		return err
	}
	if err := writeM3U(cfg.FailM3U, failItems); err != nil {
		return err
	}

	toRow := func(e *playlist.Entry) report.Row {
		st := rows[e.URL]
		return report.Row{
			Group:       e.GroupLabel,
			Title:       e.Title(),
			LastOK:      st.LastOK,
			LastChecked: st.LastChecked,
			FailCount:   st.FailCount,
			URL:         e.URL,
			Logo:        e.TvgLogo,
		}
	}
	okRows := make([]report.Row, 0, len(okItems))
	for _, e := range okItems {
		okRows = append(okRows, toRow(e))
	}
	failRows := make([]report.Row, 0, len(failItems))
	for _, e := range failItems {
		r := toRow(e)
		if r.Reason = failNotes[e.URL]; r.Reason == "" {
			r.Reason = e.Note
		}
		failRows = append(failRows, r)
	}
	if err := report.WriteOK(cfg.OKXLSX, okRows, cfg.AddCSV); err != nil {
		return err
	}
	return report.WriteFail(cfg.FailXLSX, failRows, cfg.AddCSV)
}

// enrichFile runs metadata enrichment over a standalone M3U file.
func enrichFile(ctx context.Context, cfg *config.Config, inPath, outPath string) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	entries, err := playlist.ParseString(string(data))
	if err != nil {
		return err
	}
	ptrs := make([]*playlist.Entry, len(entries))
	for i := range entries {
		ptrs[i] = &entries[i]
	}
	if err := enrich.Run(ctx, ptrs, enrich.Config{
		APIKey:    cfg.TMDBAPIKey,
		Language:  cfg.TMDBLanguage,
		Workers:   cfg.TMDBWorkers,
		RateLimit: cfg.TMDBRateLimit,
		CachePath: cfg.TMDBCachePath,
		Quiet:     cfg.Quiet,
	}); err != nil {
		return err
	}
	playlist.SortForOutput(entries, title.SeriesKey)
	return playlist.WriteFile(outPath, entries)
}
