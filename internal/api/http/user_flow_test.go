package apihttp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"moviestream/catalogservice/internal/domain"
	"moviestream/catalogservice/internal/users"
)

func newUserTestHandler(t *testing.T, extra ...ServerOption) http.Handler {
	t.Helper()
	db, err := users.Open(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := users.NewStore(db)
	tokens := &users.TokenService{Secret: []byte("test-secret"), Issuer: "movie-catalog", Duration: time.Hour}
	options := append([]ServerOption{WithUsers(store, tokens)}, extra...)
	return NewServer(&fakeCatalogService{}, options...).Handler()
}

func doJSON(t *testing.T, handler http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func registerTestUser(t *testing.T, handler http.Handler) string {
	t.Helper()
	rec := doJSON(t, handler, http.MethodPost, "/auth/register", "",
		`{"name": "Test User", "email": "person@example.com", "password": "longenoughpw"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if payload.Token == "" {
		t.Fatal("expected a token")
	}
	return payload.Token
}

func TestRegisterLoginFlow(t *testing.T) {
	handler := newUserTestHandler(t)
	registerTestUser(t, handler)

	// Duplicate registration conflicts.
	rec := doJSON(t, handler, http.MethodPost, "/auth/register", "",
		`{"name": "Other", "email": "person@example.com", "password": "longenoughpw"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rec.Code)
	}

	// Correct credentials log in.
	rec = doJSON(t, handler, http.MethodPost, "/auth/login", "",
		`{"email": "Person@Example.com", "password": "longenoughpw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Wrong password is rejected without detail.
	rec = doJSON(t, handler, http.MethodPost, "/auth/login", "",
		`{"email": "person@example.com", "password": "wrongpassword"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	handler := newUserTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing name", body: `{"email": "a@b.com", "password": "longenoughpw"}`},
		{name: "bad email", body: `{"name": "X", "email": "not-an-email", "password": "longenoughpw"}`},
		{name: "short password", body: `{"name": "X", "email": "a@b.com", "password": "short"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/auth/register", "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestPreferencesFlow(t *testing.T) {
	handler := newUserTestHandler(t)
	token := registerTestUser(t, handler)

	// Unauthenticated access is rejected.
	rec := doJSON(t, handler, http.MethodGet, "/user/preferences", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	// Fresh account has an empty document.
	rec = doJSON(t, handler, http.MethodGet, "/user/preferences", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var prefs domain.Preferences
	if err := json.NewDecoder(rec.Body).Decode(&prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if len(prefs.FavoriteMovies) != 0 {
		t.Fatalf("expected empty preferences, got %+v", prefs)
	}

	rec = doJSON(t, handler, http.MethodPut, "/user/preferences", token, `{
		"favoriteMovies": [{"movieId": "603", "movieName": "The Matrix"}],
		"favoriteGenres": ["Action"],
		"preferredLanguages": ["en"]
	}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save preferences: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/user/preferences", token, "")
	if err := json.NewDecoder(rec.Body).Decode(&prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if len(prefs.FavoriteMovies) != 1 || prefs.FavoriteMovies[0].Title != "The Matrix" {
		t.Fatalf("unexpected preferences after save: %+v", prefs)
	}

	// Genres outside the featured vocabulary are rejected.
	rec = doJSON(t, handler, http.MethodPut, "/user/preferences", token,
		`{"favoriteGenres": ["Action", "Slapstick"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown genre, got %d: %s", rec.Code, rec.Body.String())
	}

	// The rejected save must not overwrite the stored document.
	rec = doJSON(t, handler, http.MethodGet, "/user/preferences", token, "")
	if err := json.NewDecoder(rec.Body).Decode(&prefs); err != nil {
		t.Fatalf("decode preferences: %v", err)
	}
	if len(prefs.FavoriteMovies) != 1 {
		t.Fatalf("preferences changed by rejected save: %+v", prefs)
	}
}

func TestMovieListFlow(t *testing.T) {
	handler := newUserTestHandler(t)
	token := registerTestUser(t, handler)

	rec := doJSON(t, handler, http.MethodPost, "/user/favorites", token,
		`{"movieId": "603", "movieName": "The Matrix", "posterUrl": "/m.jpg"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add favorite: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Adding the same movie again conflicts.
	rec = doJSON(t, handler, http.MethodPost, "/user/favorites", token,
		`{"movieId": "603", "movieName": "The Matrix"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("re-add favorite: expected 409, got %d: %s", rec.Code, rec.Body.String())
	}

	// Missing movieId is rejected.
	rec = doJSON(t, handler, http.MethodPost, "/user/watchlist", token, `{"movieName": "No ID"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing movieId, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/user/favorites", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list favorites: expected 200, got %d", rec.Code)
	}
	var listPayload struct {
		Items []domain.MovieRef `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&listPayload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listPayload.Items) != 1 || listPayload.Items[0].MovieID != "603" {
		t.Fatalf("unexpected favorites: %+v", listPayload.Items)
	}

	// Other lists stay empty.
	rec = doJSON(t, handler, http.MethodGet, "/user/watched", token, "")
	if err := json.NewDecoder(rec.Body).Decode(&listPayload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listPayload.Items) != 0 {
		t.Fatalf("expected empty watched list, got %+v", listPayload.Items)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/user/favorites/603", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("remove favorite: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodDelete, "/user/favorites/603", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for repeated delete, got %d", rec.Code)
	}
}

func TestRecommendationsFromFavorites(t *testing.T) {
	recommender := &fakeRecommendService{items: []string{"Equilibrium"}}
	handler := newUserTestHandler(t, WithRecommendations(recommender))
	token := registerTestUser(t, handler)

	// Without titles and without a token there is nothing to recommend from.
	rec := doJSON(t, handler, http.MethodGet, "/recommendations", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without titles or token, got %d", rec.Code)
	}

	// Authenticated with no favorites yet: empty result, no upstream call.
	rec = doJSON(t, handler, http.MethodGet, "/recommendations", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if recommender.lastTitles != nil {
		t.Fatalf("expected no upstream call, got titles %v", recommender.lastTitles)
	}

	rec = doJSON(t, handler, http.MethodPut, "/user/preferences", token,
		`{"favoriteMovies": [{"movieId": "603", "movieName": "The Matrix"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("save preferences: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/recommendations", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(recommender.lastTitles) != 1 || recommender.lastTitles[0] != "The Matrix" {
		t.Fatalf("expected favorites-driven titles, got %v", recommender.lastTitles)
	}
	var payload struct {
		Items []string `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0] != "Equilibrium" {
		t.Fatalf("unexpected items: %v", payload.Items)
	}
}
