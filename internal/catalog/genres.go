package catalog

import (
	"sort"

	"moviestream/catalogservice/internal/domain"
)

const (
	// genrePreviewCount is the fixed size of the at-a-glance browsing row.
	genrePreviewCount = 20

	compositeRatingWeight     = 0.7
	compositePopularityWeight = 0.3
)

// Partition splits the collection into per-genre slices, each sorted by
// the given mode. Membership is a case-sensitive exact match against the
// entry's genre sequence. Entries are shared, not copied; the returned
// slices must be treated as read-only.
func Partition(entries []domain.CatalogEntry, genres []string, sortBy domain.GenreSortMode) map[string][]domain.CatalogEntry {
	partitions := make(map[string][]domain.CatalogEntry, len(genres))
	for _, genre := range genres {
		partitions[genre] = nil
	}
	for _, entry := range entries {
		for _, genre := range entry.Genres {
			if bucket, ok := partitions[genre]; ok {
				partitions[genre] = append(bucket, entry)
			}
		}
	}
	for genre, bucket := range partitions {
		sortEntries(bucket, sortBy)
		if bucket == nil {
			partitions[genre] = []domain.CatalogEntry{}
		}
	}
	return partitions
}

func sortEntries(entries []domain.CatalogEntry, sortBy domain.GenreSortMode) {
	sort.SliceStable(entries, func(i, j int) bool {
		left, right := entries[i], entries[j]
		switch sortBy {
		case domain.GenreSortPopularity:
			if left.Popularity != right.Popularity {
				return left.Popularity > right.Popularity
			}
		case domain.GenreSortYear:
			if left.ReleaseYear != right.ReleaseYear {
				return left.ReleaseYear > right.ReleaseYear
			}
		default:
			leftScore := compositeScore(left)
			rightScore := compositeScore(right)
			if leftScore != rightScore {
				return leftScore > rightScore
			}
		}
		// Stable secondary ordering keeps pagination deterministic.
		if left.Rating != right.Rating {
			return left.Rating > right.Rating
		}
		return left.ID < right.ID
	})
}

func compositeScore(entry domain.CatalogEntry) float64 {
	return compositeRatingWeight*entry.Rating + compositePopularityWeight*entry.Popularity
}

// Paginate returns page p (1-indexed) of size s from an already-sorted
// sequence: the slice [(p-1)*s, p*s). Out-of-range pages yield an empty
// slice, never an error.
func Paginate(entries []domain.CatalogEntry, page, pageSize int) []domain.CatalogEntry {
	if page < 1 || pageSize < 1 {
		return []domain.CatalogEntry{}
	}
	start := (page - 1) * pageSize
	if start >= len(entries) {
		return []domain.CatalogEntry{}
	}
	end := start + pageSize
	if end > len(entries) {
		end = len(entries)
	}
	return entries[start:end]
}

// Preview returns the fixed-size window shown inline before drill-down.
// It is the head of the same sorted sequence the full view paginates,
// never a separately computed ordering.
func Preview(entries []domain.CatalogEntry) []domain.CatalogEntry {
	if len(entries) <= genrePreviewCount {
		return entries
	}
	return entries[:genrePreviewCount]
}
