// Package enrich coordinates series-level metadata resolution: it clusters
// playlist entries, consults the persistent lookup cache, schedules at most
// one external lookup per unresolved cluster, and rewrites every member's
// display title, group label and logo from the cluster's shared outcome.
package enrich

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/time/rate"

	"github.com/snapetech/iptvcheckr/internal/cluster"
	"github.com/snapetech/iptvcheckr/internal/metacache"
	"github.com/snapetech/iptvcheckr/internal/metrics"
	"github.com/snapetech/iptvcheckr/internal/playlist"
	"github.com/snapetech/iptvcheckr/internal/pool"
	"github.com/snapetech/iptvcheckr/internal/title"
	"github.com/snapetech/iptvcheckr/internal/tmdb"
)

// Resolver is the slice of the metadata client the coordinator depends on.
type Resolver interface {
	ResolveTitle(ctx context.Context, query string) (*tmdb.Match, error)
	GenreLists(ctx context.Context) (movie, tv map[int]string, err error)
	DetailGenre(ctx context.Context, mediaType string, id int64) (string, error)
}

// Config carries the enrichment settings read from the environment.
type Config struct {
	APIKey    string
	Language  string
	Workers   int
	RateLimit float64 // lookups per second across all workers; <=0 means unlimited
	CachePath string
	Quiet     bool
}

// Run is the pipeline entry point. An empty API key disables enrichment
// entirely: entries get locally-derived display titles via ApplyFallback and
// no network or cache activity occurs.
func Run(ctx context.Context, entries []*playlist.Entry, cfg Config) error {
	if strings.TrimSpace(cfg.APIKey) == "" {
		ApplyFallback(entries)
		return nil
	}
	client, err := tmdb.New(cfg.APIKey, cfg.Language)
	if err != nil {
		return err
	}
	cache, err := metacache.Open(cfg.CachePath)
	if err != nil {
		return fmt.Errorf("enrich: open metadata cache: %w", err)
	}
	defer cache.Close()

	c := NewCoordinator(client, cache, cfg)
	return c.Enrich(ctx, entries)
}

// Coordinator runs the cache-then-lookup-then-apply cycle for one batch of
// entries. Safe for a single Enrich call at a time.
type Coordinator struct {
	client  Resolver
	cache   *metacache.Cache
	lang    string
	workers int
	limiter *rate.Limiter
	quiet   bool
}

func NewCoordinator(client Resolver, cache *metacache.Cache, cfg Config) *Coordinator {
	lim := rate.Limit(rate.Inf)
	if cfg.RateLimit > 0 {
		lim = rate.Limit(cfg.RateLimit)
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	lang := cfg.Language
	if lang == "" {
		lang = "en-US"
	}
	return &Coordinator{
		client:  client,
		cache:   cache,
		lang:    lang,
		workers: workers,
		limiter: rate.NewLimiter(lim, 1),
		quiet:   cfg.Quiet,
	}
}

// Enrich resolves metadata for every cluster in entries and rewrites the
// entries in place. Lookup-record persistence is authoritative: a cache write
// failure aborts the run. Cluster observability writes are best-effort.
func (c *Coordinator) Enrich(ctx context.Context, entries []*playlist.Entry) error {
	clusters := cluster.Build(entries)
	keys := cluster.SortedKeys(clusters)
	metrics.ClustersBuilt.Set(float64(len(clusters)))

	movieGenres, tvGenres := c.genreTaxonomy(ctx)

	// Partition against the cache. Negative records count as resolved: the
	// cluster falls back locally and no lookup is scheduled.
	resolved := make(map[string]*metacache.Record, len(clusters))
	var pending []string
	for _, key := range keys {
		cl := clusters[key]
		if err := c.cache.PutClusterMeta(ctx, &metacache.ClusterMeta{
			ClusterKey:   key,
			TitleKey:     cl.TitleKey,
			Prefix:       cl.Prefix,
			Fingerprints: cl.Fingerprints(),
			Samples:      cl.SampleTitles(3),
		}); err != nil && !c.quiet {
			log.Printf("enrich: cluster meta for %s not recorded: %v", key, err)
		}
		rec, err := c.cache.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("enrich: read cache for %s: %w", key, err)
		}
		switch {
		case rec == nil:
			pending = append(pending, key)
		case rec.Negative:
			resolved[key] = rec
			metrics.LookupsTotal.WithLabelValues("cached").Inc()
		case cl.Series && rec.MediaType != "tv":
			// A series-hinted cluster only trusts a TV record; anything else
			// gets looked up again.
			pending = append(pending, key)
		default:
			resolved[key] = rec
			metrics.LookupsTotal.WithLabelValues("cached").Inc()
		}
	}

	if !c.quiet {
		log.Printf("enrich: %d clusters, %d cached, %d to look up",
			len(clusters), len(resolved), len(pending))
	}

	// Lookup phase. One query per pending cluster, rate limited globally.
	results := make([]*metacache.Record, len(pending))
	errs := make([]error, len(pending))
	pool.Run(ctx, c.workers, len(pending), func(i int) {
		results[i], errs[i] = c.lookup(ctx, clusters[pending[i]], movieGenres, tvGenres)
	})
	for i, key := range pending {
		if errs[i] != nil {
			return errs[i]
		}
		if results[i] != nil {
			resolved[key] = results[i]
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Apply phase: every member of a cluster gets the same group label and
	// the same title base.
	for _, key := range keys {
		applyCluster(clusters[key], resolved[key])
	}
	return nil
}

// lookup resolves one cluster against the external client and persists the
// outcome. Returns (nil, nil) for transient failures: the cluster degrades to
// fallback naming this run and stays uncached so a later run retries.
func (c *Coordinator) lookup(ctx context.Context, cl *cluster.Cluster, movieGenres, tvGenres map[int]string) (*metacache.Record, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, nil
	}
	match, err := c.client.ResolveTitle(ctx, cl.Query)
	if err != nil {
		if tmdb.IsPermanent(err) {
			rec := &metacache.Record{
				ClusterKey: cl.Key,
				Negative:   true,
				LastError:  err.Error(),
			}
			if perr := c.cache.Put(ctx, rec); perr != nil {
				return nil, fmt.Errorf("enrich: persist negative for %s: %w", cl.Key, perr)
			}
			metrics.LookupsTotal.WithLabelValues("negative").Inc()
			return rec, nil
		}
		metrics.LookupsTotal.WithLabelValues("error").Inc()
		if !c.quiet {
			log.Printf("enrich: lookup %q failed, will retry next run: %v", cl.Query, err)
		}
		return nil, nil
	}

	genre := c.genreFor(ctx, match, movieGenres, tvGenres)
	rec := &metacache.Record{
		ClusterKey: cl.Key,
		MediaType:  match.MediaType,
		TMDBID:     match.ID,
		Title:      match.Title,
		PosterPath: match.PosterPath,
		Genre:      genre,
	}
	if err := c.cache.Put(ctx, rec); err != nil {
		return nil, fmt.Errorf("enrich: persist match for %s: %w", cl.Key, err)
	}
	metrics.LookupsTotal.WithLabelValues("match").Inc()
	return rec, nil
}

// genreFor maps the match's first known genre id through the taxonomy, then
// asks the detail endpoint, then gives up with an empty genre.
func (c *Coordinator) genreFor(ctx context.Context, match *tmdb.Match, movieGenres, tvGenres map[int]string) string {
	table := movieGenres
	if match.MediaType == "tv" {
		table = tvGenres
	}
	for _, id := range match.GenreIDs {
		if name, ok := table[id]; ok {
			return name
		}
	}
	if match.ID == 0 {
		return ""
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return ""
	}
	name, err := c.client.DetailGenre(ctx, match.MediaType, match.ID)
	if err != nil {
		if !c.quiet {
			log.Printf("enrich: genre detail for %s/%d: %v", match.MediaType, match.ID, err)
		}
		return ""
	}
	return name
}

// genreTaxonomy returns the id-to-name genre maps, preferring the cached copy
// for the configured language. Taxonomy failures degrade to per-title detail
// lookups rather than aborting the run.
func (c *Coordinator) genreTaxonomy(ctx context.Context) (movie, tv map[int]string) {
	m, t, ok, err := c.cache.GetGenres(ctx, c.lang)
	if err != nil && !c.quiet {
		log.Printf("enrich: read genre taxonomy cache: %v", err)
	}
	if ok {
		return m, t
	}
	m, t, err = c.client.GenreLists(ctx)
	if err != nil {
		if !c.quiet {
			log.Printf("enrich: genre taxonomy unavailable: %v", err)
		}
		return map[int]string{}, map[int]string{}
	}
	if err := c.cache.PutGenres(ctx, c.lang, m, t); err != nil && !c.quiet {
		log.Printf("enrich: genre taxonomy not cached: %v", err)
	}
	return m, t
}

// applyCluster rewrites every member from the cluster's shared record. A nil
// or negative record produces fallback naming from the locally parsed title.
func applyCluster(cl *cluster.Cluster, rec *metacache.Record) {
	base := ""
	genre := ""
	poster := ""
	if rec != nil && rec.Positive() {
		base = title.CleanDisplayTitle(title.StripPrefix(rec.Title))
		genre = rec.Genre
		if rec.PosterPath != "" {
			poster = fmt.Sprintf(tmdb.PosterURLTemplate, rec.PosterPath)
		}
	}
	for i := range cl.Members {
		applyMember(cl, &cl.Members[i], base, genre, poster)
	}
}

func applyMember(cl *cluster.Cluster, m *cluster.Member, base, genre, poster string) {
	e := m.Entry
	b := base
	if b == "" {
		b = m.Base
	}
	if b == "" {
		b = title.CleanDisplayTitle(title.StripPrefix(e.RawTitle))
	}
	display := cl.Prefix + " - " + b
	if m.HasSE {
		display += fmt.Sprintf(" S%02d E%02d", m.Season, m.Episode)
	}
	if m.Tail != "" {
		display += " " + m.Tail
	}
	g := genre
	if g == "" {
		g = "Uncategorized"
	}
	e.DisplayTitle = display
	e.GroupLabel = "|" + cl.Prefix + "| - " + g
	e.Season, e.Episode, e.HasSeasonEpisode = m.Season, m.Episode, m.HasSE
	if poster != "" {
		e.TvgLogo = poster
	}
}

// ApplyFallback gives every entry a locally-derived display title and group
// label without touching the cache or the network. Used when enrichment is
// disabled.
func ApplyFallback(entries []*playlist.Entry) {
	clusters := cluster.Build(entries)
	for _, key := range cluster.SortedKeys(clusters) {
		applyCluster(clusters[key], nil)
	}
}
