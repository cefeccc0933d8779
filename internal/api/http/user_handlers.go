package apihttp

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"moviestream/catalogservice/internal/domain"
	"moviestream/catalogservice/internal/users"
)

const minPasswordLength = 8

type authedHandler func(w http.ResponseWriter, r *http.Request, claims *users.Claims)

// requireAuth wraps a handler with bearer-token validation. Without a
// configured user store the wrapped routes report 501.
func (s *Server) requireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil || s.tokens == nil {
			writeError(w, http.StatusNotImplemented, "not_configured", "user accounts are not configured")
			return
		}

		claims, err := s.bearerClaims(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		next(w, r, claims)
	}
}

// bearerClaims validates the Authorization header and returns its claims.
func (s *Server) bearerClaims(r *http.Request) (*users.Claims, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		return nil, errors.New("missing bearer token")
	}
	claims, err := s.tokens.Parse(strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
	if err != nil {
		return nil, errors.New("invalid or expired token")
	}
	return claims, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/auth/register" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil || s.tokens == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "user accounts are not configured")
		return
	}

	var payload struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	name := strings.TrimSpace(payload.Name)
	email := strings.TrimSpace(strings.ToLower(payload.Email))
	if name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "name is required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid email")
		return
	}
	if len(payload.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "password must be at least 8 characters")
		return
	}

	hash, err := users.HashPassword(payload.Password)
	if err != nil {
		s.logger.Error("hash password failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "registration failed")
		return
	}

	user, err := s.store.CreateUser(r.Context(), name, email, hash)
	if err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			writeError(w, http.StatusConflict, "conflict", "email already registered")
			return
		}
		s.logger.Error("create user failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "registration failed")
		return
	}

	token, expiresAt, err := s.tokens.Sign(user)
	if err != nil {
		s.logger.Error("sign token failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "registration failed")
		return
	}

	s.logger.Info("user registered", slog.String("userId", user.ID))
	writeJSON(w, http.StatusCreated, map[string]any{
		"user":      user,
		"token":     token,
		"expiresAt": expiresAt.UTC(),
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/auth/login" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil || s.tokens == nil {
		writeError(w, http.StatusNotImplemented, "not_configured", "user accounts are not configured")
		return
	}

	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	user, err := s.store.GetByEmail(r.Context(), payload.Email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
			return
		}
		s.logger.Error("get user failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}
	if !users.CheckPassword(user.PasswordHash, payload.Password) {
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid email or password")
		return
	}

	token, expiresAt, err := s.tokens.Sign(user)
	if err != nil {
		s.logger.Error("sign token failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "login failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":      user,
		"token":     token,
		"expiresAt": expiresAt.UTC(),
	})
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request, claims *users.Claims) {
	if r.URL.Path != "/user/preferences" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		prefs, err := s.store.Preferences(r.Context(), claims.UserID)
		if err != nil {
			s.logger.Error("load preferences failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to load preferences")
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	case http.MethodPut:
		var prefs domain.Preferences
		if err := decodeJSONBody(r, &prefs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		if prefs.FavoriteMovies == nil {
			prefs.FavoriteMovies = []domain.FavoriteMovie{}
		}
		if prefs.FavoriteGenres == nil {
			prefs.FavoriteGenres = []string{}
		}
		if prefs.PreferredLanguages == nil {
			prefs.PreferredLanguages = []string{}
		}
		for _, genre := range prefs.FavoriteGenres {
			if !domain.IsFeaturedGenre(genre) {
				writeError(w, http.StatusBadRequest, "invalid_request", "unknown genre: "+genre)
				return
			}
		}
		if err := s.store.SavePreferences(r.Context(), claims.UserID, prefs); err != nil {
			s.logger.Error("save preferences failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to save preferences")
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleMovieList serves GET (list) and POST (add) for one of the
// user's movie lists.
func (s *Server) handleMovieList(kind domain.MovieListKind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, claims *users.Claims) {
		switch r.Method {
		case http.MethodGet:
			items, err := s.store.ListMovies(r.Context(), claims.UserID, kind)
			if err != nil {
				s.logger.Error("list movies failed", slog.String("list", string(kind)), slog.String("error", err.Error()))
				writeError(w, http.StatusInternalServerError, "internal_error", "failed to load list")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"items": items})
		case http.MethodPost:
			var ref domain.MovieRef
			if err := decodeJSONBody(r, &ref); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
			ref.MovieID = strings.TrimSpace(ref.MovieID)
			if ref.MovieID == "" {
				writeError(w, http.StatusBadRequest, "invalid_request", "movieId is required")
				return
			}
			if err := s.store.AddMovie(r.Context(), claims.UserID, kind, ref); err != nil {
				if errors.Is(err, users.ErrAlreadyInList) {
					writeError(w, http.StatusConflict, "conflict", "movie already in list")
					return
				}
				s.logger.Error("add movie failed", slog.String("list", string(kind)), slog.String("error", err.Error()))
				writeError(w, http.StatusInternalServerError, "internal_error", "failed to update list")
				return
			}
			writeJSON(w, http.StatusCreated, map[string]any{"added": true})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

// handleMovieListItem serves DELETE /user/{list}/{movieId}.
func (s *Server) handleMovieListItem(kind domain.MovieListKind) authedHandler {
	prefix := "/user/" + string(kind) + "/"
	return func(w http.ResponseWriter, r *http.Request, claims *users.Claims) {
		movieID := strings.TrimPrefix(r.URL.Path, prefix)
		if movieID == "" || strings.Contains(movieID, "/") {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		removed, err := s.store.RemoveMovie(r.Context(), claims.UserID, kind, movieID)
		if err != nil {
			s.logger.Error("remove movie failed", slog.String("list", string(kind)), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to update list")
			return
		}
		if !removed {
			writeError(w, http.StatusNotFound, "not_found", "movie not in list")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"removed": true})
	}
}
