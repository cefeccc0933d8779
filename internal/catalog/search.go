package catalog

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"moviestream/catalogservice/internal/domain"
)

const (
	// Empirically tuned relevance tiers. Changing them changes observable
	// ranking order, so they are fixed constants rather than configuration.
	scoreTitlePrefix   = 100
	scoreWordBoundary  = 90
	scoreSubstring     = 50
	scoreWordPrefix    = 25
	scoreCharWordStart = 50

	defaultSearchLimit = 10
	overviewSnippetLen = 100
)

var titleCaser = cases.Title(language.English, cases.NoLower)

// SearchEntries ranks the collection against a free-text query and returns
// at most limit results, best first. An empty or whitespace-only query
// yields no results: rendering the whole catalog on a blank input is never
// what the caller wants.
//
// Output is deterministic for identical input, so debounced re-invocation
// with the same committed query cannot reorder visibly.
func SearchEntries(entries []domain.CatalogEntry, query string, limit int) []domain.SearchResult {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return []domain.SearchResult{}
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	type scored struct {
		entry domain.CatalogEntry
		score float64
	}
	matches := make([]scored, 0, limit*4)
	for _, entry := range entries {
		score := scoreTitle(strings.ToLower(entry.Title), normalized)
		if score <= 0 {
			continue
		}
		matches = append(matches, scored{entry: entry, score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		left, right := matches[i], matches[j]
		if left.score != right.score {
			return left.score > right.score
		}
		if left.entry.Rating != right.entry.Rating {
			return left.entry.Rating > right.entry.Rating
		}
		return left.entry.ReleaseYear > right.entry.ReleaseYear
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]domain.SearchResult, 0, len(matches))
	for _, match := range matches {
		results = append(results, domain.SearchResult{
			ID:        match.entry.ID,
			Title:     titleCaser.String(match.entry.Title),
			Year:      match.entry.ReleaseYear,
			Rating:    match.entry.Rating,
			Genres:    match.entry.Genres,
			PosterURL: match.entry.PosterURL,
			Overview:  snippet(match.entry.Overview, overviewSnippetLen),
			Score:     match.score,
		})
	}
	return results
}

// scoreTitle implements the relevance tiers. Both inputs are lower-cased.
// Single-character queries only match title or word starts; longer queries
// additionally match word-boundary and mid-word substrings.
func scoreTitle(title, query string) float64 {
	if title == "" {
		return 0
	}

	if len(query) == 1 {
		if strings.HasPrefix(title, query) {
			return scoreTitlePrefix
		}
		if anyWordHasPrefix(title, query) {
			return scoreCharWordStart
		}
		return 0
	}

	if strings.HasPrefix(title, query) {
		return scoreTitlePrefix
	}
	if strings.Contains(title, " "+query) {
		return scoreWordBoundary
	}
	if strings.Contains(title, query) {
		return scoreSubstring
	}
	if anyWordHasPrefix(title, query) {
		return scoreWordPrefix
	}
	return 0
}

func anyWordHasPrefix(title, prefix string) bool {
	for _, word := range strings.Fields(title) {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}

// snippet truncates to limit characters, not bytes, so a multi-byte rune
// on the boundary is never split.
func snippet(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}
