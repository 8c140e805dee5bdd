// Package notify is the capped regulatory notification feed read by the
// government and the pollution body.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/observability"
)

// Notifier is the tag stamped on every system notification.
const Notifier = "system"

// DefaultRecentLimit is how many notifications the government view shows.
const DefaultRecentLimit = 50

// Bus appends notifications and evicts the oldest beyond capacity.
type Bus struct {
	mu       sync.Mutex
	store    domain.NotificationStore
	capacity int
	log      *zap.Logger
	now      func() time.Time
}

// New creates a bus. A non-positive capacity uses the default of 1000.
func New(store domain.NotificationStore, capacity int, log *zap.Logger) *Bus {
	if capacity <= 0 {
		capacity = domain.DefaultNotificationCapacity
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{store: store, capacity: capacity, log: log.Named("notify"), now: time.Now}
}

// SetClock replaces the timestamp source.
func (b *Bus) SetClock(now func() time.Time) { b.now = now }

// Publish appends a notification. Failures are logged, never returned.
func (b *Bus) Publish(ctx context.Context, action domain.Action, details, subject string) (domain.Notification, bool) {
	ctx = context.WithoutCancel(ctx)

	n := domain.Notification{
		ID:         string(action) + "_" + uuid.NewString(),
		Timestamp:  b.now().UTC(),
		Action:     action,
		Details:    details,
		Subject:    subject,
		NotifiedBy: Notifier,
	}

	b.mu.Lock()
	evicted, err := b.store.AppendNotification(ctx, n, b.capacity)
	b.mu.Unlock()

	if err != nil {
		observability.JournalWriteFailures.WithLabelValues("notifications").Inc()
		b.log.Error("notification append failed",
			zap.String("action", string(action)),
			zap.String("subject", subject),
			zap.Error(err))
		return n, false
	}

	observability.NotificationsTotal.WithLabelValues(string(action)).Inc()
	if evicted > 0 {
		observability.NotificationsEvicted.Add(float64(evicted))
	}
	b.log.Info("regulatory notification",
		zap.String("action", string(action)),
		zap.String("details", details))
	return n, true
}

// Recent returns the newest limit notifications, oldest first.
func (b *Bus) Recent(ctx context.Context, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return b.store.ListNotifications(ctx, limit)
}
