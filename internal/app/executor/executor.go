// Package executor bounds how many orchestrator operations run at once.
//
// The pool:
//  1. Waits for a free slot, or gives up when the caller's deadline passes
//  2. Runs the operation on the caller's goroutine
//  3. Releases the slot and records completion or failure
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/observability"
)

// Config controls pool behavior.
type Config struct {
	MaxConcurrent int           // Maximum concurrent operations (default: 8)
	AcquireWait   time.Duration // How long to wait for a slot (default: 10s)
}

// DefaultConfig returns safe pool defaults.
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 8,
		AcquireWait:   10 * time.Second,
	}
}

// Pool is a fixed-size semaphore in front of the orchestrator.
type Pool struct {
	mu        sync.RWMutex
	config    Config
	log       *zap.Logger
	sem       chan struct{} // Concurrency semaphore
	active    int
	completed int64
	failed    int64
	rejected  int64
}

// New creates a pool.
func New(cfg Config, log *zap.Logger) *Pool {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	if cfg.AcquireWait <= 0 {
		cfg.AcquireWait = DefaultConfig().AcquireWait
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{
		config: cfg,
		log:    log.Named("pool"),
		sem:    make(chan struct{}, cfg.MaxConcurrent),
	}
}

// Run executes fn once a slot is free. It fails with ErrPoolSaturated when
// no slot frees up before ctx is done or AcquireWait passes.
func (p *Pool) Run(ctx context.Context, op string, fn func(context.Context) error) error {
	wait := time.NewTimer(p.config.AcquireWait)
	defer wait.Stop()

	select {
	case p.sem <- struct{}{}:
		// Got a slot
	case <-ctx.Done():
		return p.reject(op, ctx.Err())
	case <-wait.C:
		return p.reject(op, nil)
	}
	defer func() { <-p.sem }()

	p.mu.Lock()
	p.active++
	p.mu.Unlock()
	observability.PoolActive.Inc()

	err := fn(ctx)

	observability.PoolActive.Dec()
	p.mu.Lock()
	p.active--
	if err != nil {
		p.failed++
	} else {
		p.completed++
	}
	p.mu.Unlock()
	return err
}

func (p *Pool) reject(op string, cause error) error {
	p.mu.Lock()
	p.rejected++
	p.mu.Unlock()
	observability.PoolRejected.Inc()
	p.log.Warn("operation rejected", zap.String("op", op), zap.Int("max_slots", p.config.MaxConcurrent))
	if cause != nil {
		return fmt.Errorf("%s: %w (%v)", op, domain.ErrPoolSaturated, cause)
	}
	return fmt.Errorf("%s: %w", op, domain.ErrPoolSaturated)
}

// Stats returns pool statistics.
type Stats struct {
	Active    int   `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
	MaxSlots  int   `json:"max_slots"`
	FreeSlots int   `json:"free_slots"`
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return Stats{
		Active:    p.active,
		Completed: p.completed,
		Failed:    p.failed,
		Rejected:  p.rejected,
		MaxSlots:  p.config.MaxConcurrent,
		FreeSlots: p.config.MaxConcurrent - p.active,
	}
}

// ActiveCount returns the number of operations holding a slot.
func (p *Pool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active
}
