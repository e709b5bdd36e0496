// Package tmdb is the client for the external media database: series/movie
// search with progressive query simplification, and the genre taxonomy
// endpoints. It never touches per-episode endpoints.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/snapetech/iptvcheckr/internal/httpclient"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.themoviedb.org/3"

// PosterURLTemplate composes a poster path into a fetchable image URL.
const PosterURLTemplate = "https://image.tmdb.org/t/p/w154%s"

// ErrNoResults means the search succeeded but returned an empty result set.
// A cluster resolving to ErrNoResults is cached as a negative record and not
// re-queried on later runs.
var ErrNoResults = errors.New("tmdb: no results")

// StatusError is a non-200 API response that survived the transport retry.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	switch {
	case e.Code == http.StatusUnauthorized:
		return "tmdb: 401 unauthorized (bad API key?)"
	case e.Code == http.StatusTooManyRequests:
		return "tmdb: 429 rate limited"
	case e.Code >= 500:
		return fmt.Sprintf("tmdb: %d server error", e.Code)
	default:
		return fmt.Sprintf("tmdb: http %d", e.Code)
	}
}

// IsPermanent reports whether err is a permanent lookup outcome (no results,
// bad credentials) that should be recorded as a negative cache entry.
// Transient outcomes (rate limits, 5xx, transport errors) are not cached so a
// later run can retry them.
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNoResults) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusUnauthorized || se.Code == http.StatusNotFound
	}
	return false
}

// Match is the first-match selection from a search response.
type Match struct {
	ID         int64
	MediaType  string // "tv" or "movie"
	Title      string
	PosterPath string
	GenreIDs   []int
}

// PosterURL returns the full image URL for the match's poster, or "" when the
// provider returned none.
func (m *Match) PosterURL() string {
	if m == nil || m.PosterPath == "" {
		return ""
	}
	return fmt.Sprintf(PosterURLTemplate, m.PosterPath)
}

type searchResult struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Title      string `json:"title"`
	MediaType  string `json:"media_type"`
	PosterPath string `json:"poster_path"`
	GenreIDs   []int  `json:"genre_ids"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// Client issues search and taxonomy queries against the media database.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	retry      httpclient.RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL points the client at a different API root (tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// New creates a metadata client. The API key must be non-empty; callers are
// expected to skip enrichment entirely when no key is configured.
func New(apiKey, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb: api key required")
	}
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		language:   strings.TrimSpace(language),
		httpClient: httpclient.WithTimeout(10 * time.Second),
		retry:      httpclient.DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SearchTV searches the tv endpoint and returns the provider's first result.
func (c *Client) SearchTV(ctx context.Context, query string) (*Match, error) {
	var payload searchResponse
	if err := c.get(ctx, "/search/tv", url.Values{"query": {query}, "include_adult": {"true"}}, &payload); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, ErrNoResults
	}
	best := payload.Results[0]
	return &Match{
		ID:         best.ID,
		MediaType:  "tv",
		Title:      best.Name,
		PosterPath: best.PosterPath,
		GenreIDs:   best.GenreIDs,
	}, nil
}

// SearchMulti searches the mixed movie/tv endpoint. A tv-typed result is
// preferred when present among the returned candidates; otherwise the first
// result wins.
func (c *Client) SearchMulti(ctx context.Context, query string) (*Match, error) {
	var payload searchResponse
	if err := c.get(ctx, "/search/multi", url.Values{"query": {query}, "include_adult": {"true"}}, &payload); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, ErrNoResults
	}
	best := payload.Results[0]
	for _, r := range payload.Results {
		if r.MediaType == "tv" {
			best = r
			break
		}
	}
	name := best.Name
	if name == "" {
		name = best.Title
	}
	return &Match{
		ID:         best.ID,
		MediaType:  best.MediaType,
		Title:      name,
		PosterPath: best.PosterPath,
		GenreIDs:   best.GenreIDs,
	}, nil
}

type genreList struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// GenreLists fetches the movie and tv genre taxonomies for the client's
// language.
func (c *Client) GenreLists(ctx context.Context) (movie, tv map[int]string, err error) {
	var m, t genreList
	if err := c.get(ctx, "/genre/movie/list", nil, &m); err != nil {
		return nil, nil, err
	}
	if err := c.get(ctx, "/genre/tv/list", nil, &t); err != nil {
		return nil, nil, err
	}
	movie = make(map[int]string, len(m.Genres))
	for _, g := range m.Genres {
		movie[g.ID] = g.Name
	}
	tv = make(map[int]string, len(t.Genres))
	for _, g := range t.Genres {
		tv[g.ID] = g.Name
	}
	return movie, tv, nil
}

// DetailGenre fetches the detail endpoint for a matched title and returns its
// first genre name. Fallback for matches whose search result carried no genre
// ids; "" with nil error means the detail record had none either.
func (c *Client) DetailGenre(ctx context.Context, mediaType string, id int64) (string, error) {
	if id <= 0 || (mediaType != "movie" && mediaType != "tv") {
		return "", nil
	}
	var payload struct {
		Genres []struct {
			Name string `json:"name"`
		} `json:"genres"`
	}
	if err := c.get(ctx, fmt.Sprintf("/%s/%d", mediaType, id), nil, &payload); err != nil {
		return "", err
	}
	if len(payload.Genres) == 0 {
		return "", nil
	}
	return strings.TrimSpace(payload.Genres[0].Name), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("tmdb: parse url: %w", err)
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("tmdb: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", httpclient.UserAgent)

	release := httpclient.GlobalHostSem.Acquire(c.baseURL)
	resp, err := httpclient.DoWithRetry(ctx, c.httpClient, req, c.retry)
	release()
	if err != nil {
		return fmt.Errorf("tmdb: execute request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("tmdb: decode response: %w", err)
	}
	return nil
}
