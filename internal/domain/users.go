package domain

import "time"

// MovieListKind names one of the per-user movie lists.
type MovieListKind string

const (
	ListFavorites MovieListKind = "favorites"
	ListWatchlist MovieListKind = "watchlist"
	ListWatched   MovieListKind = "watched"
)

func NormalizeMovieListKind(raw string) (MovieListKind, bool) {
	switch MovieListKind(raw) {
	case ListFavorites, ListWatchlist, ListWatched:
		return MovieListKind(raw), true
	default:
		return "", false
	}
}

// MovieRef is one saved movie in a user list. Only the identity and the
// display fields captured at save time are persisted; everything else is
// resolved from the catalog on read.
type MovieRef struct {
	MovieID   string    `json:"movieId"`
	Title     string    `json:"movieName"`
	PosterURL string    `json:"posterUrl,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

// FavoriteMovie is the preference-payload shape for a favorite movie, as
// accepted and returned by the preferences endpoint.
type FavoriteMovie struct {
	MovieID string `json:"movieId"`
	Title   string `json:"movieName"`
}

// Preferences is the per-user preference document.
type Preferences struct {
	FavoriteMovies     []FavoriteMovie `json:"favoriteMovies"`
	FavoriteGenres     []string        `json:"favoriteGenres"`
	PreferredLanguages []string        `json:"preferredLanguages"`
}

// User is a registered account. PasswordHash never crosses the HTTP
// boundary.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}
