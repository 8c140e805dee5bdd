// Package journal is the append-only transaction journal.
//
// Appends never fail the caller: by the time an entry is written the ledger
// mutation it describes has already happened, so a write failure is logged
// and counted for operators instead of being returned.
package journal

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/observability"
)

// Journal serializes appends so insertion order is event order.
type Journal struct {
	mu    sync.Mutex
	store domain.JournalStore
	log   *zap.Logger
	now   func() time.Time
}

// New creates a journal over store.
func New(store domain.JournalStore, log *zap.Logger) *Journal {
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{store: store, log: log.Named("journal"), now: time.Now}
}

// SetClock replaces the timestamp source.
func (j *Journal) SetClock(now func() time.Time) { j.now = now }

// Append records an entry. A zero timestamp is stamped with the current time.
// It reports whether the entry was persisted.
func (j *Journal) Append(ctx context.Context, e domain.LogEntry) bool {
	// The ledger call already succeeded; a cancelled request must not drop
	// its audit trail.
	ctx = context.WithoutCancel(ctx)

	j.mu.Lock()
	defer j.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = j.now().UTC()
	}
	if _, err := j.store.AppendEntry(ctx, e); err != nil {
		observability.JournalWriteFailures.WithLabelValues("journal").Inc()
		j.log.Error("journal append failed",
			zap.String("type", string(e.Type)),
			zap.String("tx_hash", e.TxHash),
			zap.Error(err))
		return false
	}
	return true
}

// List returns every entry in insertion order.
func (j *Journal) List(ctx context.Context) ([]domain.LogEntry, error) {
	return j.store.ListEntries(ctx)
}

// CountMatching counts entries for which match returns true.
func (j *Journal) CountMatching(ctx context.Context, match func(domain.LogEntry) bool) (int, error) {
	entries, err := j.store.ListEntries(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if match(e) {
			n++
		}
	}
	return n, nil
}

// CountSince counts entries stamped strictly after since.
func (j *Journal) CountSince(ctx context.Context, since time.Time) (int, error) {
	return j.CountMatching(ctx, func(e domain.LogEntry) bool {
		return e.Timestamp.After(since)
	})
}
