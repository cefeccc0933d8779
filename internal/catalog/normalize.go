package catalog

import (
	"math"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"moviestream/catalogservice/internal/domain"
)

const (
	// TMDB image tiers. Posters use the w500 tier for card rendering,
	// backdrops the original tier for full-bleed headers.
	posterImageBase   = "https://image.tmdb.org/t/p/w500"
	backdropImageBase = "https://image.tmdb.org/t/p/original"

	untitledFallback = "Untitled"
)

// Normalize turns one raw dataset record into a canonical CatalogEntry.
// It is total: any malformed field degrades to its documented default
// rather than failing the record.
func Normalize(raw domain.RawRecord) domain.CatalogEntry {
	return domain.CatalogEntry{
		ID:               stringValue(raw["id"]),
		Title:            normalizeTitle(raw),
		Overview:         strings.TrimSpace(stringValue(raw["overview"])),
		Genres:           normalizeGenres(raw["genres"]),
		ReleaseYear:      releaseYear(stringValue(raw["release_date"])),
		Rating:           clampFloat(raw["vote_average"], 0, 10),
		Popularity:       clampFloat(raw["popularity"], 0, math.MaxFloat64),
		PosterURL:        imageURL(posterImageBase, raw["poster_path"]),
		BackdropURL:      imageURL(backdropImageBase, raw["backdrop_path"]),
		OriginalLanguage: strings.TrimSpace(stringValue(raw["original_language"])),
	}
}

// hasIdentity reports whether a raw record carries a usable id and at
// least one title candidate. Records failing this are dropped by the
// loader before normalization.
func hasIdentity(raw domain.RawRecord) bool {
	if stringValue(raw["id"]) == "" {
		return false
	}
	return stringValue(raw["title"]) != "" || stringValue(raw["name"]) != ""
}

func normalizeTitle(raw domain.RawRecord) string {
	if title := strings.TrimSpace(stringValue(raw["title"])); title != "" {
		return title
	}
	if name := strings.TrimSpace(stringValue(raw["name"])); name != "" {
		return name
	}
	return untitledFallback
}

// normalizeGenres accepts the three encodings the dataset uses: a native
// JSON array, a single-quoted pseudo-JSON string ("['Action', 'Drama']"),
// and a plain comma-separated string. All yield the same ordered slice.
func normalizeGenres(value any) []string {
	switch v := value.(type) {
	case nil:
		return []string{}
	case []any:
		genres := make([]string, 0, len(v))
		for _, item := range v {
			if g := strings.TrimSpace(stringValue(item)); g != "" {
				genres = append(genres, g)
			}
		}
		return genres
	case []string:
		genres := make([]string, 0, len(v))
		for _, item := range v {
			if g := strings.TrimSpace(item); g != "" {
				genres = append(genres, g)
			}
		}
		return genres
	case string:
		return parseGenreString(v)
	default:
		return []string{}
	}
}

func parseGenreString(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []string{}
	}

	var parsed []string
	candidate := strings.ReplaceAll(trimmed, "'", `"`)
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil {
		genres := make([]string, 0, len(parsed))
		for _, g := range parsed {
			if g = strings.TrimSpace(g); g != "" {
				genres = append(genres, g)
			}
		}
		return genres
	}

	parts := strings.Split(trimmed, ",")
	genres := make([]string, 0, len(parts))
	for _, part := range parts {
		if g := strings.TrimSpace(part); g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

// releaseYear derives the year from the leading 4 characters of a date
// string. Anything shorter or non-numeric yields 0 (unknown).
func releaseYear(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0
	}
	return year
}

// clampFloat coerces a raw numeric field to a finite value within
// [minimum, maximum], defaulting to the minimum for anything invalid.
func clampFloat(value any, minimum, maximum float64) float64 {
	parsed := floatValue(value)
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return minimum
	}
	if parsed < minimum {
		return minimum
	}
	if parsed > maximum {
		return maximum
	}
	return parsed
}

func imageURL(base string, value any) string {
	path := strings.TrimSpace(stringValue(value))
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

func stringValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) && !math.IsNaN(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func floatValue(value any) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		return parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}
