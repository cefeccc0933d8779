package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/singleflight"

	"moviestream/catalogservice/internal/domain"
	"moviestream/catalogservice/internal/metrics"
)

var (
	// ErrFetch wraps network and HTTP-status failures retrieving the payload.
	ErrFetch = errors.New("dataset fetch failed")
	// ErrParse means the payload is still invalid JSON after token repair.
	ErrParse = errors.New("dataset parse failed")
	// ErrEmptyDataset means the payload parsed but produced zero usable records.
	ErrEmptyDataset = errors.New("dataset contains no usable records")
)

// The dataset is exported from a dataframe and carries bare NaN/Infinity
// and undefined tokens that strict JSON rejects. They only ever appear in
// value position, so a targeted rewrite to null before parsing is enough.
var invalidTokenPattern = regexp.MustCompile(`:\s*(?:NaN|-Infinity|Infinity|undefined)\s*([,}\]])`)

const maxDatasetBytes = int64(256 * 1024 * 1024)

// LoadStatus describes the loader's last load attempt for diagnostics.
type LoadStatus struct {
	Loaded    bool       `json:"loaded"`
	Entries   int        `json:"entries"`
	LoadedAt  *time.Time `json:"loadedAt,omitempty"`
	ElapsedMS int64      `json:"elapsedMs,omitempty"`
	LastError string     `json:"lastError,omitempty"`
}

// Loader owns the one-time dataset load lifecycle: fetch, repair, parse,
// filter, normalize, cache. The cached collection is immutable; Reload
// replaces it wholesale, never in place.
type Loader struct {
	endpoint  string
	userAgent string
	client    *http.Client

	group   singleflight.Group
	entries atomic.Pointer[[]domain.CatalogEntry]

	statusMu sync.Mutex
	status   LoadStatus
}

type LoaderConfig struct {
	Endpoint  string
	UserAgent string
	Client    *http.Client
}

func NewLoader(cfg LoaderConfig) *Loader {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Loader{
		endpoint:  strings.TrimSpace(cfg.Endpoint),
		userAgent: cfg.UserAgent,
		client:    client,
	}
}

// Load returns the cached collection, fetching it on first use.
// Concurrent first loads are coalesced; repeat calls are cheap.
func (l *Loader) Load(ctx context.Context) ([]domain.CatalogEntry, error) {
	if cached := l.entries.Load(); cached != nil {
		return *cached, nil
	}
	return l.loadShared(ctx)
}

// Reload fetches the dataset again and swaps the cached collection
// atomically on success. On failure the previous collection, if any,
// stays in place so readers never observe a partial catalog.
func (l *Loader) Reload(ctx context.Context) ([]domain.CatalogEntry, error) {
	return l.loadShared(ctx)
}

// Cached returns the current collection without triggering a load.
func (l *Loader) Cached() ([]domain.CatalogEntry, bool) {
	if cached := l.entries.Load(); cached != nil {
		return *cached, true
	}
	return nil, false
}

func (l *Loader) Status() LoadStatus {
	l.statusMu.Lock()
	defer l.statusMu.Unlock()
	return l.status
}

func (l *Loader) loadShared(ctx context.Context) ([]domain.CatalogEntry, error) {
	result, err, _ := l.group.Do("load", func() (any, error) {
		return l.loadOnce(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.CatalogEntry), nil
}

func (l *Loader) loadOnce(ctx context.Context) ([]domain.CatalogEntry, error) {
	startedAt := time.Now()
	entries, err := l.fetchAndNormalize(ctx)
	elapsed := time.Since(startedAt)

	l.statusMu.Lock()
	if err != nil {
		l.status.LastError = err.Error()
		metrics.CatalogLoadsTotal.WithLabelValues("error").Inc()
	} else {
		loadedAt := time.Now()
		l.status = LoadStatus{
			Loaded:    true,
			Entries:   len(entries),
			LoadedAt:  &loadedAt,
			ElapsedMS: elapsed.Milliseconds(),
		}
		metrics.CatalogLoadsTotal.WithLabelValues("ok").Inc()
		metrics.CatalogLoadDuration.Observe(elapsed.Seconds())
		metrics.CatalogEntries.Set(float64(len(entries)))
	}
	l.statusMu.Unlock()

	if err != nil {
		return nil, err
	}
	l.entries.Store(&entries)
	return entries, nil
}

func (l *Loader) fetchAndNormalize(ctx context.Context) ([]domain.CatalogEntry, error) {
	payload, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}

	repaired := RepairDatasetJSON(payload)

	var rawRecords []domain.RawRecord
	if err := json.Unmarshal(repaired, &rawRecords); err != nil {
		// Non-array payloads degrade to an empty collection; anything
		// else is a genuine parse failure.
		var fallback any
		if fallbackErr := json.Unmarshal(repaired, &fallback); fallbackErr != nil {
			return nil, fmt.Errorf("%w: %s", ErrParse, err)
		}
		rawRecords = nil
	}

	entries := make([]domain.CatalogEntry, 0, len(rawRecords))
	for _, raw := range rawRecords {
		if !hasIdentity(raw) {
			continue
		}
		entries = append(entries, Normalize(raw))
	}
	if len(entries) == 0 {
		return nil, ErrEmptyDataset
	}
	return entries, nil
}

func (l *Loader) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetch, err)
	}
	if l.userAgent != "" {
		req.Header.Set("User-Agent", l.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrFetch, resp.StatusCode)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxDatasetBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetch, err)
	}
	return payload, nil
}

// RepairDatasetJSON rewrites the dataset's invalid numeric tokens to the
// JSON null literal, covering both comma-separated and terminal positions.
func RepairDatasetJSON(payload []byte) []byte {
	return invalidTokenPattern.ReplaceAll(payload, []byte(": null$1"))
}
