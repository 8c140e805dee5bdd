package journal

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/sqlite"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db, nil)
}

// failingStore rejects every write.
type failingStore struct{}

func (failingStore) AppendEntry(context.Context, domain.LogEntry) (int64, error) {
	return 0, errors.New("disk full")
}
func (failingStore) ListEntries(context.Context) ([]domain.LogEntry, error) { return nil, nil }

func TestAppend_StampsTimestamp(t *testing.T) {
	j := newTestJournal(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.SetClock(func() time.Time { return fixed })

	if !j.Append(context.Background(), domain.LogEntry{Type: domain.EntryIssue, Amount: 500}) {
		t.Fatal("Append() = false, want true")
	}

	entries, _ := j.List(context.Background())
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if !entries[0].Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", entries[0].Timestamp, fixed)
	}
}

func TestAppend_FailureIsSwallowed(t *testing.T) {
	j := New(failingStore{}, nil)
	if j.Append(context.Background(), domain.LogEntry{Type: domain.EntryIssue}) {
		t.Error("Append() = true on failing store, want false")
	}
}

func TestAppend_CancelledContextStillWrites(t *testing.T) {
	j := newTestJournal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if !j.Append(ctx, domain.LogEntry{Type: domain.EntryPurchase}) {
		t.Error("Append() with cancelled ctx = false, want true")
	}
}

func TestAppend_ConcurrentKeepsEveryEntry(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			j.Append(ctx, domain.LogEntry{Type: domain.EntryPurchase, Details: fmt.Sprintf("p%d", i), Amount: 1})
		}(i)
	}
	wg.Wait()

	entries, _ := j.List(ctx)
	if len(entries) != 20 {
		t.Fatalf("len(entries) = %d, want 20", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].ID <= entries[i-1].ID {
			t.Errorf("entries out of order at %d: %d after %d", i, entries[i].ID, entries[i-1].ID)
		}
	}
}

func TestCountMatchingAndSince(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC()

	j.Append(ctx, domain.LogEntry{Timestamp: now.Add(-48 * time.Hour), Type: domain.EntryIssue})
	j.Append(ctx, domain.LogEntry{Timestamp: now.Add(-time.Hour), Type: domain.EntryPurchase})
	j.Append(ctx, domain.LogEntry{Timestamp: now, Type: domain.EntryPurchase})

	n, err := j.CountMatching(ctx, func(e domain.LogEntry) bool { return e.Type == domain.EntryPurchase })
	if err != nil {
		t.Fatalf("CountMatching() error: %v", err)
	}
	if n != 2 {
		t.Errorf("CountMatching(PURCHASE) = %d, want 2", n)
	}

	n, _ = j.CountSince(ctx, now.Add(-24*time.Hour))
	if n != 2 {
		t.Errorf("CountSince(24h) = %d, want 2", n)
	}
}
