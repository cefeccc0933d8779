package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"moviestream/catalogservice/internal/domain"
)

var (
	ErrEmailTaken    = errors.New("email already registered")
	ErrNotFound      = errors.New("user not found")
	ErrAlreadyInList = errors.New("movie already in list")
)

// Store persists accounts, preference documents and per-user movie
// lists (favorites, watchlist, already watched).
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (*domain.User, error) {
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Email:        strings.TrimSpace(strings.ToLower(email)),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`, email)
	return scanUser(row)
}

func (s *Store) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE id = ?
	`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// Preferences returns the user's stored preference document, or an
// empty document when none was saved yet.
func (s *Store) Preferences(ctx context.Context, userID string) (domain.Preferences, error) {
	empty := domain.Preferences{
		FavoriteMovies:     []domain.FavoriteMovie{},
		FavoriteGenres:     []string{},
		PreferredLanguages: []string{},
	}

	var payload string
	err := s.DB.QueryRowContext(ctx, `
		SELECT payload FROM preferences WHERE user_id = ?
	`, userID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return empty, nil
	}
	if err != nil {
		return empty, fmt.Errorf("get preferences: %w", err)
	}

	var prefs domain.Preferences
	if err := json.Unmarshal([]byte(payload), &prefs); err != nil {
		return empty, fmt.Errorf("decode preferences: %w", err)
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
	return prefs, nil
}

func (s *Store) SavePreferences(ctx context.Context, userID string, prefs domain.Preferences) error {
	payload, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO preferences (user_id, payload)
		VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload
	`, userID, string(payload))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// AddMovie adds a movie to one of the user's lists. Adding an already
// present movie is rejected with ErrAlreadyInList.
func (s *Store) AddMovie(ctx context.Context, userID string, kind domain.MovieListKind, ref domain.MovieRef) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO user_movies (user_id, list, movie_id, title, poster_url, added_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, userID, string(kind), ref.MovieID, ref.Title, ref.PosterURL)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
			return ErrAlreadyInList
		}
		return fmt.Errorf("add %s movie: %w", kind, err)
	}
	return nil
}

func (s *Store) RemoveMovie(ctx context.Context, userID string, kind domain.MovieListKind, movieID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM user_movies
		WHERE user_id = ? AND list = ? AND movie_id = ?
	`, userID, string(kind), movieID)
	if err != nil {
		return false, fmt.Errorf("remove %s movie: %w", kind, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) ListMovies(ctx context.Context, userID string, kind domain.MovieListKind) ([]domain.MovieRef, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT movie_id, title, poster_url, added_at
		FROM user_movies
		WHERE user_id = ? AND list = ?
		ORDER BY added_at DESC, movie_id
	`, userID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list %s movies: %w", kind, err)
	}
	defer rows.Close()

	out := make([]domain.MovieRef, 0, 16)
	for rows.Next() {
		var ref domain.MovieRef
		if err := rows.Scan(&ref.MovieID, &ref.Title, &ref.PosterURL, &ref.AddedAt); err != nil {
			return nil, fmt.Errorf("scan %s movie: %w", kind, err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
