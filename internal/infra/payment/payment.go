// Package payment wraps the payment-collection collaborator. The core only
// needs charge-then-confirm: a charge either succeeds with a payment id or
// is declined for reasons the core does not interpret.
package payment

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.jetify.com/typeid/v2"
	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/domain"
)

// ─── Mock Gateway ───────────────────────────────────────────────────────────

// GatewayConfig controls the mock gateway.
type GatewayConfig struct {
	Name        string        // Gateway tag stored on payment records
	SuccessRate float64       // Probability a charge succeeds (0..1)
	Latency     time.Duration // Simulated processing delay
}

// DefaultGatewayConfig returns the demo gateway defaults.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Name:        "razorpay_mock",
		SuccessRate: 0.9,
		Latency:     500 * time.Millisecond,
	}
}

// MockGateway simulates a card gateway that declines a fraction of charges.
type MockGateway struct {
	cfg GatewayConfig

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockGateway creates a gateway. A nil rng seeds from the clock.
func NewMockGateway(cfg GatewayConfig, rng *rand.Rand) *MockGateway {
	if rng == nil {
		now := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(now, now>>17))
	}
	return &MockGateway{cfg: cfg, rng: rng}
}

// Name returns the gateway tag.
func (g *MockGateway) Name() string { return g.cfg.Name }

// Charge simulates collecting currency from payer.
func (g *MockGateway) Charge(ctx context.Context, payer string, credits int64, currency decimal.Decimal) (domain.ChargeResult, error) {
	if g.cfg.Latency > 0 {
		select {
		case <-ctx.Done():
			return domain.ChargeResult{}, ctx.Err()
		case <-time.After(g.cfg.Latency):
		}
	}

	g.mu.Lock()
	roll := g.rng.Float64()
	g.mu.Unlock()

	if roll >= g.cfg.SuccessRate {
		return domain.ChargeResult{Success: false, Reason: domain.ErrPaymentDeclined.Error()}, nil
	}

	tid, err := typeid.Generate("pay")
	if err != nil {
		return domain.ChargeResult{}, fmt.Errorf("generate payment id: %w", err)
	}
	return domain.ChargeResult{Success: true, PaymentID: tid.String()}, nil
}

// ─── Adapter ────────────────────────────────────────────────────────────────

// DefaultTimeout bounds every charge.
const DefaultTimeout = 5 * time.Second

// Adapter applies a timeout to charges and turns declines into errors.
// It never retries: a charge may have been taken even when the call timed out.
type Adapter struct {
	gateway domain.PaymentGateway
	timeout time.Duration
	log     *zap.Logger
}

// NewAdapter wraps a gateway. A zero timeout uses DefaultTimeout.
func NewAdapter(gw domain.PaymentGateway, timeout time.Duration, log *zap.Logger) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Adapter{gateway: gw, timeout: timeout, log: log.Named("payment")}
}

// Gateway returns the wrapped gateway's tag.
func (a *Adapter) Gateway() string { return a.gateway.Name() }

// Charge collects currency for credits. On success it returns the payment id.
func (a *Adapter) Charge(ctx context.Context, payer string, credits int64, currency decimal.Decimal) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	type result struct {
		res domain.ChargeResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := a.gateway.Charge(ctx, payer, credits, currency)
		done <- result{res, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return "", fmt.Errorf("charge %s: %w", payer, domain.ErrTimeout)
			}
			return "", fmt.Errorf("charge %s: %w", payer, r.err)
		}
		if !r.res.Success {
			a.log.Info("charge declined",
				zap.String("payer", payer),
				zap.Int64("credits", credits),
				zap.String("reason", r.res.Reason))
			return "", fmt.Errorf("charge %s: %w", payer, domain.ErrPaymentDeclined)
		}
		return r.res.PaymentID, nil
	case <-ctx.Done():
		a.log.Warn("charge abandoned", zap.String("payer", payer), zap.Duration("timeout", a.timeout))
		return "", fmt.Errorf("charge %s: %w", payer, domain.ErrTimeout)
	}
}

// Quote returns the currency amount for credits at the given unit price.
func Quote(credits int64, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(credits))
}
