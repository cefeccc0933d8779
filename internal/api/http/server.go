package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"moviestream/catalogservice/internal/catalog"
	"moviestream/catalogservice/internal/domain"
	"moviestream/catalogservice/internal/providers/tmdb"
	"moviestream/catalogservice/internal/users"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type CatalogService interface {
	Search(ctx context.Context, query string, limit int) (domain.SearchResponse, error)
	GenrePreviews(ctx context.Context, sortBy domain.GenreSortMode) ([]domain.GenrePreview, error)
	GenrePage(ctx context.Context, genre string, sortBy domain.GenreSortMode, page, pageSize int) (domain.GenrePage, error)
	Entry(ctx context.Context, id string) (domain.CatalogEntry, error)
	Status() catalog.LoadStatus
	Reload(ctx context.Context) (catalog.LoadStatus, error)
}

type TMDBService interface {
	Movie(ctx context.Context, id int, lang string) (*tmdb.MovieDetail, error)
	SearchMovies(ctx context.Context, query string, lang string) ([]tmdb.MovieDetail, error)
	Enabled() bool
}

type RecommendService interface {
	Recommend(ctx context.Context, titles []string) ([]string, error)
	Enabled() bool
}

type UserStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Preferences(ctx context.Context, userID string) (domain.Preferences, error)
	SavePreferences(ctx context.Context, userID string, prefs domain.Preferences) error
	AddMovie(ctx context.Context, userID string, kind domain.MovieListKind, ref domain.MovieRef) error
	RemoveMovie(ctx context.Context, userID string, kind domain.MovieListKind, movieID string) (bool, error)
	ListMovies(ctx context.Context, userID string, kind domain.MovieListKind) ([]domain.MovieRef, error)
}

type Server struct {
	catalog        CatalogService
	tmdb           TMDBService
	recommend      RecommendService
	store          UserStore
	tokens         *users.TokenService
	logger         *slog.Logger
	requestTimeout time.Duration
}

const (
	maxQueryLength  = 500
	maxBodyBytes    = 1 << 20
	defaultPageSize = 20
	maxPageSize     = 100
)

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithTMDB(client TMDBService) ServerOption {
	return func(s *Server) {
		s.tmdb = client
	}
}

func WithRecommendations(client RecommendService) ServerOption {
	return func(s *Server) {
		s.recommend = client
	}
}

func WithUsers(store UserStore, tokens *users.TokenService) ServerOption {
	return func(s *Server) {
		s.store = store
		s.tokens = tokens
	}
}

// WithRequestTimeout bounds every request except reloads and image
// proxying with a context deadline.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.requestTimeout = d
	}
}

func NewServer(catalogService CatalogService, options ...ServerOption) *Server {
	server := &Server{
		catalog: catalogService,
		logger:  slog.Default(),
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/catalog/search", s.handleSearch)
	mux.HandleFunc("/catalog/genres", s.handleGenres)
	mux.HandleFunc("/catalog/genres/", s.handleGenrePage)
	mux.HandleFunc("/catalog/movies/", s.handleMovie)
	mux.HandleFunc("/catalog/status", s.handleStatus)
	mux.HandleFunc("/catalog/reload", s.handleReload)
	mux.HandleFunc("/catalog/image", s.handleImageProxy)
	mux.HandleFunc("/recommendations", s.handleRecommendations)
	mux.HandleFunc("/auth/register", s.handleRegister)
	mux.HandleFunc("/auth/login", s.handleLogin)
	mux.HandleFunc("/user/preferences", s.requireAuth(s.handlePreferences))
	mux.HandleFunc("/user/favorites", s.requireAuth(s.handleMovieList(domain.ListFavorites)))
	mux.HandleFunc("/user/favorites/", s.requireAuth(s.handleMovieListItem(domain.ListFavorites)))
	mux.HandleFunc("/user/watchlist", s.requireAuth(s.handleMovieList(domain.ListWatchlist)))
	mux.HandleFunc("/user/watchlist/", s.requireAuth(s.handleMovieListItem(domain.ListWatchlist)))
	mux.HandleFunc("/user/watched", s.requireAuth(s.handleMovieList(domain.ListWatched)))
	mux.HandleFunc("/user/watched/", s.requireAuth(s.handleMovieListItem(domain.ListWatched)))
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "movie-catalog",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	return recoveryMiddleware(s.logger, rateLimitMiddleware(50, 100,
		metricsMiddleware(timeoutMiddleware(s.requestTimeout, traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) > maxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max 500 characters)")
		return
	}
	limit, err := parsePositiveInt(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}

	response, err := s.catalog.Search(r.Context(), query, limit)
	if err != nil {
		s.logger.Warn("search request failed",
			slog.String("query", truncate(query, 80)),
			slog.String("error", err.Error()),
		)
		s.writeCatalogError(w, err)
		return
	}

	s.logger.Info("search completed",
		slog.String("query", truncate(query, 80)),
		slog.Int("total", response.Total),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGenres(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/genres" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	sortBy := domain.NormalizeGenreSortMode(strings.TrimSpace(r.URL.Query().Get("sortBy")))
	previews, err := s.catalog.GenrePreviews(r.Context(), sortBy)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sortBy": string(sortBy),
		"items":  previews,
	})
}

func (s *Server) handleGenrePage(w http.ResponseWriter, r *http.Request) {
	genre := strings.TrimPrefix(r.URL.Path, "/catalog/genres/")
	if genre == "" || strings.Contains(genre, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	sortBy := domain.NormalizeGenreSortMode(strings.TrimSpace(r.URL.Query().Get("sortBy")))
	page, err := parsePositiveInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page")
		return
	}
	pageSize, err := parsePositiveInt(r, "pageSize", defaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid pageSize")
		return
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	result, err := s.catalog.GenrePage(r.Context(), genre, sortBy, page, pageSize)
	if err != nil {
		s.writeCatalogError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMovie(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/catalog/movies/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	entry, err := s.catalog.Entry(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, entry)
		return
	}
	if !errors.Is(err, catalog.ErrEntryNotFound) {
		s.writeCatalogError(w, err)
		return
	}

	// Not in the local dataset: fall back to TMDB when configured.
	if s.tmdb != nil && s.tmdb.Enabled() {
		if numericID, convErr := strconv.Atoi(id); convErr == nil {
			detail, tmdbErr := s.tmdb.Movie(r.Context(), numericID, strings.TrimSpace(r.URL.Query().Get("lang")))
			if tmdbErr == nil && detail != nil {
				writeJSON(w, http.StatusOK, domain.CatalogEntry{
					ID:          strconv.Itoa(detail.ID),
					Title:       detail.Title,
					Overview:    detail.Overview,
					Genres:      detail.Genres(),
					ReleaseYear: detail.Year(),
					Rating:      detail.VoteAverage,
					Popularity:  detail.Popularity,
					PosterURL:   detail.PosterURL(),
					BackdropURL: detail.BackdropURL(),
				})
				return
			}
			if tmdbErr != nil {
				s.logger.Warn("tmdb movie lookup failed",
					slog.String("id", id),
					slog.String("error", tmdbErr.Error()),
				)
			}
		}
	}

	writeError(w, http.StatusNotFound, "not_found", "movie not found")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/status" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Status())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/catalog/reload" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog service is not configured")
		return
	}

	status, err := s.catalog.Reload(r.Context())
	if err != nil {
		s.logger.Warn("catalog reload failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"reloaded": false,
			"status":   status,
		})
		return
	}
	s.logger.Info("catalog reloaded", slog.Int("entries", status.Entries))
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded": true,
		"status":   status,
	})
}

// handleRecommendations serves suggestions either for an explicit
// titles= list or, when the caller authenticates instead, from their
// favorite movies.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/recommendations" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.recommend == nil || !s.recommend.Enabled() {
		writeError(w, http.StatusNotImplemented, "not_configured", "recommendation service is not configured")
		return
	}

	titles := splitTitles(r.URL.Query().Get("titles"))
	if len(titles) == 0 {
		if s.store == nil || s.tokens == nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "titles parameter is required")
			return
		}
		claims, err := s.bearerClaims(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "provide a titles parameter or a bearer token")
			return
		}
		prefs, err := s.store.Preferences(r.Context(), claims.UserID)
		if err != nil {
			s.logger.Error("load preferences failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load preferences")
			return
		}
		for _, movie := range prefs.FavoriteMovies {
			titles = append(titles, movie.Title)
		}
	}
	if len(titles) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"items": []string{}})
		return
	}

	items, err := s.recommend.Recommend(r.Context(), titles)
	if err != nil {
		s.logger.Warn("recommendations failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "upstream_error", "recommendation service unavailable")
		return
	}
	if items == nil {
		items = []string{}
	}

	response := map[string]any{"items": items}
	if s.tmdb != nil && s.tmdb.Enabled() {
		response["movies"] = s.resolveRecommendedMovies(r.Context(), items)
	}
	writeJSON(w, http.StatusOK, response)
}

const maxResolvedRecommendations = 10

// resolveRecommendedMovies looks up recommended titles on TMDB so the
// caller gets posters and ids alongside the bare title list. Lookup
// failures drop the title rather than failing the request.
func (s *Server) resolveRecommendedMovies(ctx context.Context, titles []string) []domain.CatalogEntry {
	resolved := make([]domain.CatalogEntry, 0, len(titles))
	for _, title := range titles {
		if len(resolved) >= maxResolvedRecommendations {
			break
		}
		candidates, err := s.tmdb.SearchMovies(ctx, title, "")
		if err != nil {
			s.logger.Warn("tmdb title lookup failed",
				slog.String("title", truncate(title, 80)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(candidates) == 0 {
			continue
		}
		detail := candidates[0]
		resolved = append(resolved, domain.CatalogEntry{
			ID:          strconv.Itoa(detail.ID),
			Title:       detail.Title,
			Overview:    detail.Overview,
			Genres:      detail.Genres(),
			ReleaseYear: detail.Year(),
			Rating:      detail.VoteAverage,
			Popularity:  detail.Popularity,
			PosterURL:   detail.PosterURL(),
			BackdropURL: detail.BackdropURL(),
		})
	}
	return resolved
}

func splitTitles(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (s *Server) writeCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrUnknownGenre):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, catalog.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, catalog.ErrFetch), errors.Is(err, catalog.ErrEmptyDataset):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "catalog dataset is unavailable")
	case errors.Is(err, catalog.ErrParse):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "catalog dataset is malformed")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "catalog request failed")
	}
}

func decodeJSONBody(r *http.Request, dest any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
