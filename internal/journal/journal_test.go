package journal_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"emgpipe/internal/journal"
)

func openStore(t *testing.T) *journal.Store {
	t.Helper()
	store, err := journal.OpenPath(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndList(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	id, err := store.Record(ctx, journal.Entry{
		Workfolder: "/data/session01",
		BaseName:   "trial_a",
		Direction:  journal.DirectionReverse,
		Outcome:    journal.OutcomeOK,
		Duration:   420 * time.Millisecond,
		RequestID:  "req-1",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero row id")
	}

	entries, err := store.List(ctx, false, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.BaseName != "trial_a" || entry.Direction != journal.DirectionReverse {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Duration != 420*time.Millisecond {
		t.Fatalf("duration round-trip: got %v", entry.Duration)
	}
	if entry.CreatedAt.IsZero() {
		t.Fatal("expected created timestamp")
	}
}

func TestListOnlyFailed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, outcome := range []string{journal.OutcomeOK, journal.OutcomeFailed, journal.OutcomeOK} {
		entry := journal.Entry{
			Workfolder: "/data/session01",
			BaseName:   "trial_a",
			Direction:  journal.DirectionForward,
			Outcome:    outcome,
		}
		if outcome == journal.OutcomeFailed {
			entry.ErrorText = "container structure missing"
		}
		if _, err := store.Record(ctx, entry); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	failed, err := store.List(ctx, true, 10)
	if err != nil {
		t.Fatalf("List failed-only: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("expected 1 failed entry, got %d", len(failed))
	}
	if failed[0].ErrorText == "" {
		t.Fatal("expected error text on failed entry")
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Total != 3 || counts.OK != 2 || counts.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, base := range []string{"one", "two", "three"} {
		if _, err := store.Record(ctx, journal.Entry{
			Workfolder: "/data/session01",
			BaseName:   base,
			Direction:  journal.DirectionForward,
			Outcome:    journal.OutcomeOK,
		}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	entries, err := store.List(ctx, false, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].BaseName != "three" || entries[1].BaseName != "two" {
		t.Fatalf("expected newest first, got %s then %s", entries[0].BaseName, entries[1].BaseName)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal.db")
	store, err := journal.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.Record(context.Background(), journal.Entry{
		Workfolder: "/data/session01",
		BaseName:   "trial_a",
		Direction:  journal.DirectionMultiGrid,
		Outcome:    journal.OutcomeOK,
	}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := journal.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	counts, err := reopened.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Total != 1 {
		t.Fatalf("expected 1 row after reopen, got %d", counts.Total)
	}
}
