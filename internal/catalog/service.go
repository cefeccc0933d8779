package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"moviestream/catalogservice/internal/domain"
	"moviestream/catalogservice/internal/metrics"
)

var (
	ErrUnknownGenre  = errors.New("unknown genre")
	ErrEntryNotFound = errors.New("catalog entry not found")
)

const (
	maxSearchLimit  = 50
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service is the read-side facade over the loaded catalog: ranked search,
// genre browsing and entry lookup. Partitions are memoized per sort mode
// and rebuilt only when the sort mode is first used or the catalog is
// reloaded, never per request.
type Service struct {
	loader *Loader
	logger *slog.Logger

	mu         sync.RWMutex
	partitions map[domain.GenreSortMode]map[string][]domain.CatalogEntry
	byID       map[string]domain.CatalogEntry
	generation *[]domain.CatalogEntry
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(loader *Loader, opts ...ServiceOption) *Service {
	svc := &Service{
		loader:     loader,
		logger:     slog.Default(),
		partitions: make(map[domain.GenreSortMode]map[string][]domain.CatalogEntry),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Warm loads the catalog ahead of the first request. Failure is reported
// but not fatal: the first request retries through the same loader.
func (s *Service) Warm(ctx context.Context) {
	startedAt := time.Now()
	entries, err := s.loader.Load(ctx)
	if err != nil {
		s.logger.Warn("catalog warm-up failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("catalog loaded",
		slog.Int("entries", len(entries)),
		slog.Int64("elapsedMs", time.Since(startedAt).Milliseconds()),
	)
}

// Search ranks the catalog against a free-text query. Blank queries yield
// an empty item list rather than an error.
func (s *Service) Search(ctx context.Context, query string, limit int) (domain.SearchResponse, error) {
	startedAt := time.Now()
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	entries, err := s.loader.Load(ctx)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	items := SearchEntries(entries, query, limit)
	elapsed := time.Since(startedAt)
	metrics.SearchRequestsTotal.Inc()
	metrics.SearchDuration.Observe(elapsed.Seconds())

	return domain.SearchResponse{
		Query:     strings.TrimSpace(query),
		Items:     items,
		Total:     len(items),
		Limit:     limit,
		ElapsedMS: elapsed.Milliseconds(),
	}, nil
}

// GenrePreviews returns the inline browsing row for every featured genre
// that has at least one entry, in vocabulary order.
func (s *Service) GenrePreviews(ctx context.Context, sortBy domain.GenreSortMode) ([]domain.GenrePreview, error) {
	partitions, err := s.partitionsFor(ctx, sortBy)
	if err != nil {
		return nil, err
	}
	previews := make([]domain.GenrePreview, 0, len(domain.FeaturedGenres))
	for _, genre := range domain.FeaturedGenres {
		bucket := partitions[genre]
		if len(bucket) == 0 {
			continue
		}
		previews = append(previews, domain.GenrePreview{
			Genre: genre,
			Total: len(bucket),
			Items: Preview(bucket),
		})
	}
	return previews, nil
}

// GenrePage returns one page of the full drill-down view for a genre.
func (s *Service) GenrePage(ctx context.Context, genre string, sortBy domain.GenreSortMode, page, pageSize int) (domain.GenrePage, error) {
	if !domain.IsFeaturedGenre(genre) {
		return domain.GenrePage{}, ErrUnknownGenre
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	partitions, err := s.partitionsFor(ctx, sortBy)
	if err != nil {
		return domain.GenrePage{}, err
	}
	bucket := partitions[genre]
	items := Paginate(bucket, page, pageSize)

	return domain.GenrePage{
		Genre:    genre,
		SortBy:   sortBy,
		Page:     page,
		PageSize: pageSize,
		Total:    len(bucket),
		HasMore:  page*pageSize < len(bucket),
		Items:    items,
	}, nil
}

// Entry looks up a single catalog entry by id.
func (s *Service) Entry(ctx context.Context, id string) (domain.CatalogEntry, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.CatalogEntry{}, ErrEntryNotFound
	}

	entries, err := s.loader.Load(ctx)
	if err != nil {
		return domain.CatalogEntry{}, err
	}

	s.mu.RLock()
	index := s.byID
	current := s.generation != nil && (*s.generation) != nil && sameCollection(*s.generation, entries)
	s.mu.RUnlock()

	if !current || index == nil {
		index = s.rebuildIndex(entries)
	}

	entry, ok := index[id]
	if !ok {
		return domain.CatalogEntry{}, ErrEntryNotFound
	}
	return entry, nil
}

// Status reports load diagnostics for the status endpoint.
func (s *Service) Status() LoadStatus {
	return s.loader.Status()
}

// Reload discards the cached catalog and derived views wholesale and
// replaces them atomically. On failure the previous state stays intact.
func (s *Service) Reload(ctx context.Context) (LoadStatus, error) {
	entries, err := s.loader.Reload(ctx)
	if err != nil {
		return s.loader.Status(), err
	}

	s.mu.Lock()
	s.partitions = make(map[domain.GenreSortMode]map[string][]domain.CatalogEntry)
	s.byID = nil
	s.generation = &entries
	s.mu.Unlock()

	s.logger.Info("catalog reloaded", slog.Int("entries", len(entries)))
	return s.loader.Status(), nil
}

func (s *Service) partitionsFor(ctx context.Context, sortBy domain.GenreSortMode) (map[string][]domain.CatalogEntry, error) {
	entries, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	cached, ok := s.partitions[sortBy]
	current := s.generation != nil && sameCollection(*s.generation, entries)
	s.mu.RUnlock()
	if ok && current {
		return cached, nil
	}

	built := Partition(entries, domain.FeaturedGenres, sortBy)

	s.mu.Lock()
	if s.generation == nil || !sameCollection(*s.generation, entries) {
		// Collection changed underneath us; drop every derived view.
		s.partitions = make(map[domain.GenreSortMode]map[string][]domain.CatalogEntry)
		s.byID = nil
		s.generation = &entries
	}
	s.partitions[sortBy] = built
	s.mu.Unlock()

	metrics.GenrePartitionBuildsTotal.Inc()
	return built, nil
}

func (s *Service) rebuildIndex(entries []domain.CatalogEntry) map[string]domain.CatalogEntry {
	index := make(map[string]domain.CatalogEntry, len(entries))
	for _, entry := range entries {
		index[entry.ID] = entry
	}

	s.mu.Lock()
	if s.generation == nil || !sameCollection(*s.generation, entries) {
		s.partitions = make(map[domain.GenreSortMode]map[string][]domain.CatalogEntry)
		s.generation = &entries
	}
	s.byID = index
	s.mu.Unlock()
	return index
}

// sameCollection reports whether two collections are the same loaded
// snapshot. Collections are immutable post-load, so comparing identity of
// the backing array is sufficient and cheap.
func sameCollection(a, b []domain.CatalogEntry) bool {
	if len(a) != len(b) {
		return false
	}
	return len(a) == 0 || &a[0] == &b[0]
}
