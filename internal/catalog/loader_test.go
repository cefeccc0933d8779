package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

const sampleDataset = `[
	{"id": 603, "title": "The Matrix", "genres": "['Action', 'Science Fiction']", "release_date": "1999-03-30", "vote_average": 8.7, "popularity": NaN, "poster_path": "/matrix.jpg"},
	{"id": 27205, "title": "Inception", "genres": ["Action", "Science Fiction"], "release_date": "2010-07-15", "vote_average": Infinity, "popularity": 90.2},
	{"id": 11, "name": "Star Wars", "genres": "Action, Adventure", "release_date": "1977-05-25", "vote_average": 8.2, "popularity": undefined},
	{"title": "No Identity", "vote_average": 5.0},
	{"id": 99, "vote_average": -Infinity}
]`

func newTestLoader(t *testing.T, handler http.HandlerFunc) (*Loader, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	loader := NewLoader(LoaderConfig{
		Endpoint:  server.URL,
		UserAgent: "movie-catalog-test/1.0",
		Client:    server.Client(),
	})
	return loader, server
}

func TestLoaderRepairsAndNormalizes(t *testing.T) {
	loader, _ := newTestLoader(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleDataset))
	})

	entries, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Records without id or title/name are dropped.
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	matrix := entries[0]
	if matrix.ID != "603" || matrix.Title != "The Matrix" {
		t.Fatalf("unexpected first entry: %+v", matrix)
	}
	// NaN popularity repaired to null, normalized to 0.
	if matrix.Popularity != 0 {
		t.Fatalf("expected popularity 0 after repair, got %v", matrix.Popularity)
	}
	// Infinity rating repaired to null, normalized to 0.
	if entries[1].Rating != 0 {
		t.Fatalf("expected rating 0 after repair, got %v", entries[1].Rating)
	}
	// name fallback.
	if entries[2].Title != "Star Wars" {
		t.Fatalf("expected name fallback, got %q", entries[2].Title)
	}

	status := loader.Status()
	if !status.Loaded || status.Entries != 3 || status.LoadedAt == nil {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestLoaderCachesAcrossCalls(t *testing.T) {
	var hits atomic.Int32
	loader, _ := newTestLoader(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[{"id": 1, "title": "Heat"}]`))
	})

	ctx := context.Background()
	first, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := loader.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected a single upstream fetch, got %d", hits.Load())
	}
	// Same backing snapshot.
	if &first[0] != &second[0] {
		t.Fatal("expected repeated loads to share the cached snapshot")
	}
}

func TestLoaderFetchError(t *testing.T) {
	loader, _ := newTestLoader(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := loader.Load(context.Background())
	if !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
	if status := loader.Status(); status.Loaded || status.LastError == "" {
		t.Fatalf("expected failed status with error, got %+v", status)
	}
}

func TestLoaderParseError(t *testing.T) {
	loader, _ := newTestLoader(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"id": 1, "title": `))
	})

	_, err := loader.Load(context.Background())
	if !errors.Is(err, ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
}

func TestLoaderNonArrayPayloadIsEmptyDataset(t *testing.T) {
	loader, _ := newTestLoader(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error": "not a list"}`))
	})

	_, err := loader.Load(context.Background())
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestLoaderEmptyArray(t *testing.T) {
	loader, _ := newTestLoader(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	_, err := loader.Load(context.Background())
	if !errors.Is(err, ErrEmptyDataset) {
		t.Fatalf("expected ErrEmptyDataset, got %v", err)
	}
}

func TestLoaderReloadKeepsOldSnapshotOnFailure(t *testing.T) {
	var fail atomic.Bool
	loader, _ := newTestLoader(t, func(w http.ResponseWriter, _ *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"id": 1, "title": "Heat"}]`))
	})

	ctx := context.Background()
	if _, err := loader.Load(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fail.Store(true)
	if _, err := loader.Reload(ctx); !errors.Is(err, ErrFetch) {
		t.Fatalf("expected ErrFetch on reload, got %v", err)
	}

	cached, ok := loader.Cached()
	if !ok || len(cached) != 1 {
		t.Fatal("previous snapshot must survive a failed reload")
	}
}

func TestRepairDatasetJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "nan mid-object", in: `{"a": NaN, "b": 1}`, want: `{"a": null, "b": 1}`},
		{name: "infinity terminal", in: `{"a": Infinity}`, want: `{"a": null}`},
		{name: "negative infinity", in: `{"a": -Infinity, "b": 2}`, want: `{"a": null, "b": 2}`},
		{name: "undefined", in: `{"a": undefined}`, want: `{"a": null}`},
		{name: "valid untouched", in: `{"a": "NaN station", "b": 1.5}`, want: `{"a": "NaN station", "b": 1.5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(RepairDatasetJSON([]byte(tt.in))); got != tt.want {
				t.Fatalf("RepairDatasetJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
