package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultBaseURL    = "https://api.themoviedb.org/3"
	posterBaseURL     = "https://image.tmdb.org/t/p/w500"
	backdropBaseURL   = "https://image.tmdb.org/t/p/original"
	defaultLanguage   = "en-US"
	redisCachePrefix  = "mcatalog:tmdb:"
	maxResponseBytes  = 512 * 1024
	maxErrorBodyBytes = 1024
)

// Client fetches movie details from TMDB. It is optional: without an API
// key every call returns empty results and the rest of the service keeps
// serving the local dataset.
type Client struct {
	apiKey   string
	baseURL  string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
}

type Config struct {
	APIKey   string
	BaseURL  string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
}

type genreRef struct {
	Name string `json:"name"`
}

type MovieDetail struct {
	ID           int        `json:"id"`
	Title        string     `json:"title,omitempty"`
	Overview     string     `json:"overview,omitempty"`
	PosterPath   string     `json:"poster_path,omitempty"`
	BackdropPath string     `json:"backdrop_path,omitempty"`
	VoteAverage  float64    `json:"vote_average,omitempty"`
	Popularity   float64    `json:"popularity,omitempty"`
	ReleaseDate  string     `json:"release_date,omitempty"`
	Runtime      int        `json:"runtime,omitempty"`
	Tagline      string     `json:"tagline,omitempty"`
	GenreRefs    []genreRef `json:"genres,omitempty"`
}

func (d MovieDetail) Year() int {
	if len(d.ReleaseDate) < 4 {
		return 0
	}
	year := 0
	for _, c := range d.ReleaseDate[:4] {
		if c < '0' || c > '9' {
			return 0
		}
		year = year*10 + int(c-'0')
	}
	return year
}

func (d MovieDetail) Genres() []string {
	names := make([]string, 0, len(d.GenreRefs))
	for _, g := range d.GenreRefs {
		if g.Name != "" {
			names = append(names, g.Name)
		}
	}
	return names
}

func (d MovieDetail) PosterURL() string {
	if d.PosterPath == "" {
		return ""
	}
	return posterBaseURL + d.PosterPath
}

func (d MovieDetail) BackdropURL() string {
	if d.BackdropPath == "" {
		return ""
	}
	return backdropBaseURL + d.BackdropPath
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 7 * 24 * time.Hour
	}
	return &Client{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
	}
}

func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

// Movie fetches full details for a single TMDB movie id.
func (c *Client) Movie(ctx context.Context, id int, lang string) (*MovieDetail, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if lang == "" {
		lang = defaultLanguage
	}

	cacheKey := redisCachePrefix + "movie:" + strconv.Itoa(id) + ":" + lang
	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var detail MovieDetail
			if json.Unmarshal(data, &detail) == nil {
				return &detail, nil
			}
		}
	}

	params := url.Values{
		"api_key":  {c.apiKey},
		"language": {lang},
	}
	body, err := c.get(ctx, fmt.Sprintf("%s/movie/%d?%s", c.baseURL, id, params.Encode()))
	if err != nil {
		return nil, err
	}

	var detail MovieDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, err
	}

	if c.redis != nil {
		if data, err := json.Marshal(detail); err == nil {
			_ = c.redis.Set(ctx, cacheKey, data, c.cacheTTL).Err()
		}
	}

	return &detail, nil
}

// SearchMovies resolves a free-text title to TMDB movie candidates.
func (c *Client) SearchMovies(ctx context.Context, query string, lang string) ([]MovieDetail, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if lang == "" {
		lang = defaultLanguage
	}
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, nil
	}

	cacheKey := redisCachePrefix + "search:" + strings.ToLower(trimmed) + ":" + lang
	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var results []MovieDetail
			if json.Unmarshal(data, &results) == nil {
				return results, nil
			}
		}
	}

	params := url.Values{
		"api_key":  {c.apiKey},
		"query":    {trimmed},
		"language": {lang},
	}
	body, err := c.get(ctx, c.baseURL+"/search/movie?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var response struct {
		Results []MovieDetail `json:"results"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, err
	}

	if c.redis != nil {
		if data, err := json.Marshal(response.Results); err == nil {
			_ = c.redis.Set(ctx, cacheKey, data, c.cacheTTL).Err()
		}
	}

	return response.Results, nil
}

func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, fmt.Errorf("tmdb HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
}
