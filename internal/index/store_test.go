package index

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/mwarner/jobscout/internal/model"
)

func TestFileStoreLoadMissingReturnsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "index.json"))

	ix, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(ix.Postings) != 0 {
		t.Errorf("fresh load returned %d postings, want 0", len(ix.Postings))
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "index.json"))
	ctx := context.Background()

	ix := New()
	ix.Merge([]model.Posting{{ID: "42", URL: "https://x/jobs/view/42", Title: "Eng"}}, false)
	ix.ProfileChanged("profile text")

	if err := s.Save(ctx, ix); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Postings["42"] == nil || got.Postings["42"].Title != "Eng" {
		t.Errorf("posting lost in round trip: %+v", got.Postings["42"])
	}
	if got.ProfileHash != ix.ProfileHash {
		t.Errorf("profile hash lost: %q vs %q", got.ProfileHash, ix.ProfileHash)
	}
}

func TestFileStoreSaveOverwrites(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "index.json"))
	ctx := context.Background()

	first := New()
	first.Merge([]model.Posting{{ID: "1", URL: "u1", Title: "a"}, {ID: "2", URL: "u2", Title: "b"}}, false)
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Full overwrite: a smaller index replaces the larger one wholesale.
	second := New()
	second.Merge([]model.Posting{{ID: "3", URL: "u3", Title: "c"}}, false)
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Postings) != 1 || got.Postings["3"] == nil {
		t.Errorf("overwrite not whole-value: %d postings", len(got.Postings))
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	ix, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("initial Load: %v", err)
	}
	if len(ix.Postings) != 0 {
		t.Fatalf("fresh sqlite load returned %d postings", len(ix.Postings))
	}

	ix.Merge([]model.Posting{{ID: "7", URL: "https://x/jobs/view/7", Title: "SRE"}}, false)
	if err := s.Save(ctx, ix); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Save again to exercise the upsert path.
	if err := s.Save(ctx, ix); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Postings["7"] == nil || got.Postings["7"].Title != "SRE" {
		t.Errorf("posting lost in sqlite round trip: %+v", got.Postings["7"])
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ix := New()
	ix.Merge([]model.Posting{{ID: "9", URL: "u", Title: "Dev"}}, false)
	if err := s.Save(ctx, ix); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Postings["9"] == nil {
		t.Error("posting lost in memory round trip")
	}
}
