// Package milestone tracks quota progress per factory and raises the
// compliance milestone notifications.
//
// Each factory has a small bitfield of bands already crossed for its current
// quota instance. The bitfield is persisted, so a milestone is emitted at most
// once per (factory, quota instance, band) no matter how many notifications
// the capped feed has since evicted.
package milestone

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/observability"
)

// Publisher raises regulatory notifications.
type Publisher interface {
	Publish(ctx context.Context, action domain.Action, details, subject string) (domain.Notification, bool)
}

// Tracker evaluates factory progress. Evaluations for one factory are
// serialized; different factories proceed in parallel.
type Tracker struct {
	store domain.MilestoneStore
	bus   Publisher
	log   *zap.Logger
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a tracker.
func New(store domain.MilestoneStore, bus Publisher, log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		store: store,
		bus:   bus,
		log:   log.Named("milestone"),
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (t *Tracker) lock(factory string) func() {
	t.mu.Lock()
	l, ok := t.locks[factory]
	if !ok {
		l = &sync.Mutex{}
		t.locks[factory] = l
	}
	t.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Evaluate checks the factory's current progress and emits the milestone for
// the band it is in, unless that band was already emitted for this quota
// instance. A band is only emitted while progress is inside it: a purchase
// that jumps from 40% to 80% emits the 75% milestone and skips 50%.
// Returns the band emitted, or zero.
func (t *Tracker) Evaluate(ctx context.Context, factory string, fs domain.FactoryState) (domain.Band, error) {
	if !fs.HasQuota {
		return 0, nil
	}
	band := domain.BandFor(fs.Progress(), fs.QuotaMet())
	if band == 0 {
		return 0, nil
	}

	ctx = context.WithoutCancel(ctx)
	unlock := t.lock(factory)
	defer unlock()

	state, err := t.store.LoadMilestone(ctx, factory)
	if err != nil {
		return 0, fmt.Errorf("load milestone %s: %w", factory, err)
	}
	switch {
	case fs.QuotaSeq < state.QuotaSeq:
		// Snapshot taken before a quota change; that instance is closed.
		t.log.Debug("stale quota snapshot ignored",
			zap.String("factory", factory),
			zap.Int64("quota_seq", fs.QuotaSeq),
			zap.Int64("current_seq", state.QuotaSeq))
		return 0, nil
	case fs.QuotaSeq > state.QuotaSeq:
		// New quota instance: earlier bands no longer count.
		state = domain.MilestoneState{Factory: factory, QuotaSeq: fs.QuotaSeq}
	}
	if state.Bands.Has(band) {
		return 0, nil
	}

	// Persist before publishing so a crash can lose a milestone but never
	// emit one twice.
	state.Bands |= band
	state.UpdatedAt = t.now().UTC()
	if err := t.store.SaveMilestone(ctx, state); err != nil {
		return 0, fmt.Errorf("save milestone %s: %w", factory, err)
	}

	action, details := describe(factory, band, fs)
	t.bus.Publish(ctx, action, details, factory)
	observability.MilestonesEmitted.WithLabelValues(band.Label()).Inc()
	t.log.Info("milestone reached",
		zap.String("factory", factory),
		zap.String("band", band.Label()),
		zap.Int64("quota_seq", fs.QuotaSeq))
	return band, nil
}

// Reset starts a fresh bitfield for a new quota instance.
func (t *Tracker) Reset(ctx context.Context, factory string, quotaSeq int64) error {
	unlock := t.lock(factory)
	defer unlock()

	return t.store.SaveMilestone(context.WithoutCancel(ctx), domain.MilestoneState{
		Factory:   factory,
		QuotaSeq:  quotaSeq,
		UpdatedAt: t.now().UTC(),
	})
}

func describe(factory string, band domain.Band, fs domain.FactoryState) (domain.Action, string) {
	short := domain.ShortAddress(factory, 10)
	switch band {
	case domain.Band50, domain.Band75:
		return domain.ActionComplianceMilestone, fmt.Sprintf(
			"Factory %s... has reached %s%% of environmental quota (%d/%d GHC)",
			short, band.Label(), fs.Purchased, fs.QuotaAmount)
	}
	return domain.ActionQuotaCompletion, fmt.Sprintf(
		"Factory %s... has completed environmental quota (%d/%d GHC) - eligible for certificate",
		short, fs.Purchased, fs.QuotaAmount)
}
