package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/domain"
)

// DefaultTimeout bounds every ledger call.
const DefaultTimeout = 5 * time.Second

// Adapter wraps a ledger backend behind a stable, timeout-bounded surface.
// Each call runs in its own goroutine so a backend that ignores its context
// still cannot block the caller past the deadline. A call that times out may
// still complete on the ledger; the adapter does not undo it.
type Adapter struct {
	backend domain.Ledger
	timeout time.Duration
	log     *zap.Logger
}

// NewAdapter creates a ledger adapter. A zero timeout uses DefaultTimeout.
func NewAdapter(backend domain.Ledger, timeout time.Duration, log *zap.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{backend: backend, timeout: timeout, log: log.Named("ledger")}
}

// call runs fn with the adapter timeout and normalizes deadline errors.
func call[T any](ctx context.Context, a *Adapter, op string, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return zero, fmt.Errorf("ledger %s: %w", op, domain.ErrTimeout)
			}
			return zero, fmt.Errorf("ledger %s: %w", op, r.err)
		}
		return r.v, nil
	case <-callCtx.Done():
		a.log.Warn("ledger call abandoned", zap.String("op", op), zap.Duration("timeout", a.timeout))
		return zero, fmt.Errorf("ledger %s: %w", op, domain.ErrTimeout)
	}
}

// IssueCredits mints credits to a producer.
func (a *Adapter) IssueCredits(ctx context.Context, producer string, amount int64) (string, error) {
	return call(ctx, a, "issueCredits", func(ctx context.Context) (string, error) {
		return a.backend.IssueCredits(ctx, producer, amount)
	})
}

// TransferCredits atomically moves credits between accounts.
func (a *Adapter) TransferCredits(ctx context.Context, from, to string, amount int64, meta domain.PriceMeta) (string, error) {
	return call(ctx, a, "transferCredits", func(ctx context.Context) (string, error) {
		return a.backend.TransferCredits(ctx, from, to, amount, meta)
	})
}

// BalanceOf returns the balance of addr.
func (a *Adapter) BalanceOf(ctx context.Context, addr string) (int64, error) {
	return call(ctx, a, "balanceOf", func(ctx context.Context) (int64, error) {
		return a.backend.BalanceOf(ctx, addr)
	})
}

// IsFrozen reports whether addr is frozen.
func (a *Adapter) IsFrozen(ctx context.Context, addr string) (bool, error) {
	return call(ctx, a, "isFrozen", func(ctx context.Context) (bool, error) {
		return a.backend.IsFrozen(ctx, addr)
	})
}

// SetFrozen freezes or unfreezes addr.
func (a *Adapter) SetFrozen(ctx context.Context, addr string, frozen bool) (string, error) {
	return call(ctx, a, "setFrozen", func(ctx context.Context) (string, error) {
		return a.backend.SetFrozen(ctx, addr, frozen)
	})
}

// ProducerState returns the producer record for addr.
func (a *Adapter) ProducerState(ctx context.Context, addr string) (domain.ProducerState, error) {
	return call(ctx, a, "getProducerState", func(ctx context.Context) (domain.ProducerState, error) {
		return a.backend.ProducerState(ctx, addr)
	})
}

// SetCertified certifies or decertifies a producer.
func (a *Adapter) SetCertified(ctx context.Context, addr string, certified bool) (string, error) {
	return call(ctx, a, "setCertified", func(ctx context.Context) (string, error) {
		return a.backend.SetCertified(ctx, addr, certified)
	})
}

// FactoryState returns the factory record for addr.
func (a *Adapter) FactoryState(ctx context.Context, addr string) (domain.FactoryState, error) {
	return call(ctx, a, "getFactoryState", func(ctx context.Context) (domain.FactoryState, error) {
		return a.backend.FactoryState(ctx, addr)
	})
}

// SetQuota sets a new quota for a factory.
func (a *Adapter) SetQuota(ctx context.Context, addr string, amount int64) (string, error) {
	return call(ctx, a, "setQuota", func(ctx context.Context) (string, error) {
		return a.backend.SetQuota(ctx, addr, amount)
	})
}

var _ domain.Ledger = (*Adapter)(nil)
var _ domain.Ledger = (*Memory)(nil)
