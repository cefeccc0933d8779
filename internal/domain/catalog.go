package domain

import "strings"

// RawRecord is one dataset object as parsed from the repaired payload,
// before normalization. Fields may be absent, null, or carry values of
// the wrong type.
type RawRecord map[string]any

// CatalogEntry is one normalized movie record. Entries are immutable
// once the catalog is loaded; consumers share references, never copies.
type CatalogEntry struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Overview         string   `json:"overview,omitempty"`
	Genres           []string `json:"genres"`
	ReleaseYear      int      `json:"releaseYear,omitempty"`
	Rating           float64  `json:"rating"`
	Popularity       float64  `json:"popularity"`
	PosterURL        string   `json:"posterUrl,omitempty"`
	BackdropURL      string   `json:"backdropUrl,omitempty"`
	OriginalLanguage string   `json:"originalLanguage,omitempty"`
}

// HasGenre reports whether the entry belongs to the genre. Membership is
// a case-sensitive exact match: the genre vocabulary is a fixed list and
// dataset genre names are already canonical.
func (e CatalogEntry) HasGenre(genre string) bool {
	for _, g := range e.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// SearchResult is an ephemeral projection of a CatalogEntry plus its
// relevance score, recomputed per query.
type SearchResult struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Year      int      `json:"year,omitempty"`
	Rating    float64  `json:"rating"`
	Genres    []string `json:"genres,omitempty"`
	PosterURL string   `json:"posterUrl,omitempty"`
	Overview  string   `json:"overview,omitempty"`
	Score     float64  `json:"score"`
}

type GenreSortMode string

const (
	// GenreSortRating orders by the composite 0.7*rating + 0.3*popularity.
	GenreSortRating     GenreSortMode = "rating"
	GenreSortPopularity GenreSortMode = "popularity"
	GenreSortYear       GenreSortMode = "year"
)

func NormalizeGenreSortMode(raw string) GenreSortMode {
	switch GenreSortMode(strings.ToLower(strings.TrimSpace(raw))) {
	case GenreSortPopularity:
		return GenreSortPopularity
	case GenreSortYear:
		return GenreSortYear
	default:
		return GenreSortRating
	}
}

// FeaturedGenres is the fixed genre vocabulary used for partitioning and
// preference validation. Order is the display order of the browsing rows.
var FeaturedGenres = []string{
	"Action",
	"Adventure",
	"Animation",
	"Comedy",
	"Crime",
	"Documentary",
	"Drama",
	"Family",
	"Fantasy",
	"History",
	"Horror",
	"Music",
	"Mystery",
	"Romance",
	"Science Fiction",
	"Thriller",
	"TV Movie",
	"War",
	"Western",
}

var featuredGenreSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(FeaturedGenres))
	for _, g := range FeaturedGenres {
		set[g] = struct{}{}
	}
	return set
}()

func IsFeaturedGenre(name string) bool {
	_, ok := featuredGenreSet[name]
	return ok
}

// GenrePreview is the small at-a-glance browsing row for one genre.
type GenrePreview struct {
	Genre string         `json:"genre"`
	Total int            `json:"total"`
	Items []CatalogEntry `json:"items"`
}

// GenrePage is one page of the full drill-down view for a genre.
type GenrePage struct {
	Genre    string         `json:"genre"`
	SortBy   GenreSortMode  `json:"sortBy"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Total    int            `json:"total"`
	HasMore  bool           `json:"hasMore"`
	Items    []CatalogEntry `json:"items"`
}

// SearchResponse is the HTTP payload for a ranked catalog search.
type SearchResponse struct {
	Query     string         `json:"query"`
	Items     []SearchResult `json:"items"`
	Total     int            `json:"total"`
	Limit     int            `json:"limit"`
	ElapsedMS int64          `json:"elapsedMs"`
}
