package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"moviestream/catalogservice/internal/metrics"
)

const (
	redisCachePrefix  = "mcatalog:recommend:"
	maxResponseBytes  = 1 * 1024 * 1024
	maxErrorBodyBytes = 1024
)

// ErrUnavailable means the recommendation service could not produce a
// result after retries.
var ErrUnavailable = errors.New("recommendation service unavailable")

// Client calls the external recommendation service. Input is a set of
// movie titles the user liked; output is a ranked list of suggested
// titles. The service is optional: without an endpoint every call
// returns ErrUnavailable.
type Client struct {
	endpoint string
	http     *http.Client
	redis    *redis.Client
	cacheTTL time.Duration
	retry    RetryConfig
}

type Config struct {
	Endpoint string
	Client   *http.Client
	Redis    *redis.Client
	CacheTTL time.Duration
	Retry    *RetryConfig
}

type serviceResponse struct {
	Status          string   `json:"status"`
	Recommendations []string `json:"recommendations"`
	Exception       string   `json:"exception"`
}

func NewClient(cfg Config) *Client {
	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 6 * time.Hour
	}
	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	return &Client{
		endpoint: strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		http:     httpClient,
		redis:    cfg.Redis,
		cacheTTL: cacheTTL,
		retry:    retry,
	}
}

func (c *Client) Enabled() bool {
	return c.endpoint != ""
}

// Recommend returns suggested titles for the given liked titles. Titles
// are lowercased and deduplicated before being sent; their order does
// not affect the cache key.
func (c *Client) Recommend(ctx context.Context, titles []string) ([]string, error) {
	if !c.Enabled() {
		return nil, ErrUnavailable
	}

	normalized := normalizeTitles(titles)
	if len(normalized) == 0 {
		return nil, nil
	}

	cacheKey := redisCachePrefix + cacheKeyFor(normalized)
	if c.redis != nil {
		data, err := c.redis.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached []string
			if json.Unmarshal(data, &cached) == nil {
				metrics.CacheHitsTotal.WithLabelValues("recommend").Inc()
				return cached, nil
			}
		}
		metrics.CacheMissesTotal.WithLabelValues("recommend").Inc()
	}

	reqURL := c.endpoint + "/recommend/" + url.PathEscape(strings.Join(normalized, ","))

	start := time.Now()
	var result []string
	err := retryWithBackoff(ctx, c.retry, func() error {
		titles, err := c.fetch(ctx, reqURL)
		if err != nil {
			return err
		}
		result = titles
		return nil
	})
	metrics.RecommendRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecommendRequestsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	metrics.RecommendRequestsTotal.WithLabelValues("ok").Inc()

	if c.redis != nil {
		if data, err := json.Marshal(result); err == nil {
			_ = c.redis.Set(ctx, cacheKey, data, c.cacheTTL).Err()
		}
	}

	return result, nil
}

func (c *Client) fetch(ctx context.Context, reqURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}

	var payload serviceResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	if payload.Exception != "" {
		return nil, fmt.Errorf("recommend upstream: %s", payload.Exception)
	}
	if payload.Recommendations == nil {
		return []string{}, nil
	}
	return payload.Recommendations, nil
}

func normalizeTitles(titles []string) []string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, title := range titles {
		lowered := strings.ToLower(strings.TrimSpace(title))
		if lowered == "" {
			continue
		}
		if _, ok := seen[lowered]; ok {
			continue
		}
		seen[lowered] = struct{}{}
		out = append(out, lowered)
	}
	return out
}

func cacheKeyFor(normalized []string) string {
	sorted := make([]string, len(normalized))
	copy(sorted, normalized)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
