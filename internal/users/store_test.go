package users

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"moviestream/catalogservice/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "users.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func mustCreateUser(t *testing.T, store *Store, email string) *domain.User {
	t.Helper()
	user, err := store.CreateUser(context.Background(), "Test User", email, "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestCreateAndGetUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := mustCreateUser(t, store, "Person@Example.com")
	if created.ID == "" {
		t.Fatal("expected generated user id")
	}
	// Emails are stored lowercased.
	if created.Email != "person@example.com" {
		t.Fatalf("expected lowercased email, got %q", created.Email)
	}

	byEmail, err := store.GetByEmail(ctx, "PERSON@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.ID != created.ID {
		t.Fatal("lookup by email returned a different user")
	}

	byID, err := store.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Email != created.Email {
		t.Fatal("lookup by id returned a different user")
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := newTestStore(t)
	mustCreateUser(t, store, "person@example.com")

	_, err := store.CreateUser(context.Background(), "Other", "person@example.com", "hash2")
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestGetUserNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, store, "person@example.com")

	// No document yet: empty slices, not nils.
	prefs, err := store.Preferences(ctx, user.ID)
	if err != nil {
		t.Fatalf("get preferences: %v", err)
	}
	if prefs.FavoriteMovies == nil || prefs.FavoriteGenres == nil || prefs.PreferredLanguages == nil {
		t.Fatalf("expected empty document, got %+v", prefs)
	}

	saved := domain.Preferences{
		FavoriteMovies: []domain.FavoriteMovie{
			{MovieID: "603", Title: "The Matrix"},
			{MovieID: "27205", Title: "Inception"},
		},
		FavoriteGenres:     []string{"Action", "Science Fiction"},
		PreferredLanguages: []string{"en"},
	}
	if err := store.SavePreferences(ctx, user.ID, saved); err != nil {
		t.Fatalf("save preferences: %v", err)
	}

	loaded, err := store.Preferences(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload preferences: %v", err)
	}
	if !reflect.DeepEqual(loaded, saved) {
		t.Fatalf("round trip mismatch: %+v vs %+v", loaded, saved)
	}

	// Saving again overwrites the document.
	saved.FavoriteGenres = []string{"Horror"}
	if err := store.SavePreferences(ctx, user.ID, saved); err != nil {
		t.Fatalf("overwrite preferences: %v", err)
	}
	loaded, err = store.Preferences(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload preferences: %v", err)
	}
	if !reflect.DeepEqual(loaded.FavoriteGenres, []string{"Horror"}) {
		t.Fatalf("expected overwritten genres, got %v", loaded.FavoriteGenres)
	}
}

func TestMovieListsAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, store, "person@example.com")

	ref := domain.MovieRef{MovieID: "603", Title: "The Matrix", PosterURL: "/m.jpg"}
	if err := store.AddMovie(ctx, user.ID, domain.ListFavorites, ref); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	if err := store.AddMovie(ctx, user.ID, domain.ListWatchlist, ref); err != nil {
		t.Fatalf("add watchlist: %v", err)
	}

	favorites, err := store.ListMovies(ctx, user.ID, domain.ListFavorites)
	if err != nil {
		t.Fatalf("list favorites: %v", err)
	}
	if len(favorites) != 1 || favorites[0].MovieID != "603" || favorites[0].Title != "The Matrix" {
		t.Fatalf("unexpected favorites: %+v", favorites)
	}

	watched, err := store.ListMovies(ctx, user.ID, domain.ListWatched)
	if err != nil {
		t.Fatalf("list watched: %v", err)
	}
	if len(watched) != 0 {
		t.Fatalf("expected empty watched list, got %+v", watched)
	}

	// Removing from one list leaves the other intact.
	removed, err := store.RemoveMovie(ctx, user.ID, domain.ListFavorites, "603")
	if err != nil || !removed {
		t.Fatalf("remove favorite: removed=%v err=%v", removed, err)
	}
	watchlist, err := store.ListMovies(ctx, user.ID, domain.ListWatchlist)
	if err != nil {
		t.Fatalf("list watchlist: %v", err)
	}
	if len(watchlist) != 1 {
		t.Fatalf("watchlist must be unaffected, got %+v", watchlist)
	}
}

func TestAddDuplicateMovieConflicts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, store, "person@example.com")

	ref := domain.MovieRef{MovieID: "603", Title: "The Matrix", PosterURL: "/m.jpg"}
	if err := store.AddMovie(ctx, user.ID, domain.ListFavorites, ref); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.AddMovie(ctx, user.ID, domain.ListFavorites, ref); !errors.Is(err, ErrAlreadyInList) {
		t.Fatalf("expected ErrAlreadyInList on re-add, got %v", err)
	}

	// The same movie can still live on a different list.
	if err := store.AddMovie(ctx, user.ID, domain.ListWatchlist, ref); err != nil {
		t.Fatalf("add to other list: %v", err)
	}

	items, err := store.ListMovies(ctx, user.ID, domain.ListFavorites)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected a single row, got %d", len(items))
	}
	if items[0].Title != "The Matrix" || items[0].PosterURL != "/m.jpg" {
		t.Fatalf("unexpected row: %+v", items[0])
	}
}

func TestRemoveMissingMovie(t *testing.T) {
	store := newTestStore(t)
	user := mustCreateUser(t, store, "person@example.com")

	removed, err := store.RemoveMovie(context.Background(), user.ID, domain.ListFavorites, "999")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed {
		t.Fatal("expected removed=false for a missing row")
	}
}

func TestDeleteUserCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, store, "person@example.com")

	if err := store.AddMovie(ctx, user.ID, domain.ListFavorites, domain.MovieRef{MovieID: "603"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := store.DB.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, user.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	var count int
	err := store.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM user_movies WHERE user_id = ?`, user.ID).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected cascade delete, found %d rows", count)
	}
}
