package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veridichain/veridi/internal/domain"
)

const (
	producer = "0xproducer0000000001"
	factory  = "0xfactory00000000001"
	citizen  = "0xcitizen00000000001"
)

func newTestLedger(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	m.Register(domain.Account{Address: producer, Role: domain.RoleProducer})
	m.Register(domain.Account{Address: factory, Role: domain.RoleFactory})
	m.Register(domain.Account{Address: citizen, Role: domain.RoleCitizen})
	return m
}

// ─── Memory Ledger ──────────────────────────────────────────────────────────

func TestMemory_IssueRequiresCertification(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	if _, err := m.IssueCredits(ctx, producer, 100); !errors.Is(err, domain.ErrProducerNotCertified) {
		t.Fatalf("IssueCredits() uncertified error = %v, want ErrProducerNotCertified", err)
	}

	m.SetCertified(ctx, producer, true)
	if _, err := m.IssueCredits(ctx, producer, 500); err != nil {
		t.Fatalf("IssueCredits() error: %v", err)
	}

	bal, _ := m.BalanceOf(ctx, producer)
	if bal != 500 {
		t.Errorf("balance = %d, want 500", bal)
	}
	ps, _ := m.ProducerState(ctx, producer)
	if ps.TotalIssued != 500 {
		t.Errorf("TotalIssued = %d, want 500", ps.TotalIssued)
	}
}

func TestMemory_IssueInactiveProducer(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()
	m.SetCertified(ctx, producer, true)
	m.SetActive(producer, false)

	if _, err := m.IssueCredits(ctx, producer, 1); !errors.Is(err, domain.ErrProducerInactive) {
		t.Errorf("error = %v, want ErrProducerInactive", err)
	}
}

func TestMemory_TransferCountsTowardQuota(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()
	m.SetCertified(ctx, producer, true)
	m.IssueCredits(ctx, producer, 2000)
	m.SetQuota(ctx, factory, 1000)

	if _, err := m.TransferCredits(ctx, producer, factory, 600, domain.PriceMeta{}); err != nil {
		t.Fatalf("TransferCredits() error: %v", err)
	}
	fs, _ := m.FactoryState(ctx, factory)
	if fs.Purchased != 600 {
		t.Errorf("Purchased = %d, want 600", fs.Purchased)
	}
	if fs.QuotaMet() {
		t.Error("QuotaMet() = true at 600/1000")
	}

	m.TransferCredits(ctx, producer, factory, 500, domain.PriceMeta{})
	fs, _ = m.FactoryState(ctx, factory)
	if !fs.QuotaMet() {
		t.Errorf("QuotaMet() = false at %d/%d", fs.Purchased, fs.QuotaAmount)
	}
}

func TestMemory_TransferInsufficientBalance(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()
	m.SetCertified(ctx, producer, true)
	m.IssueCredits(ctx, producer, 10)

	_, err := m.TransferCredits(ctx, producer, citizen, 11, domain.PriceMeta{})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("error = %v, want ErrInsufficientBalance", err)
	}
	bal, _ := m.BalanceOf(ctx, producer)
	if bal != 10 {
		t.Errorf("producer balance = %d after failed transfer, want 10", bal)
	}
}

func TestMemory_FrozenBlocksTransfers(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()
	m.SetCertified(ctx, producer, true)
	m.IssueCredits(ctx, producer, 100)
	m.SetFrozen(ctx, citizen, true)

	if _, err := m.TransferCredits(ctx, producer, citizen, 5, domain.PriceMeta{}); !errors.Is(err, domain.ErrAccountFrozen) {
		t.Errorf("transfer to frozen error = %v, want ErrAccountFrozen", err)
	}

	m.SetFrozen(ctx, citizen, false)
	if _, err := m.TransferCredits(ctx, producer, citizen, 5, domain.PriceMeta{}); err != nil {
		t.Errorf("transfer after unfreeze error: %v", err)
	}
}

func TestMemory_SetQuotaStartsNewInstance(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()
	m.SetCertified(ctx, producer, true)
	m.IssueCredits(ctx, producer, 100)
	m.SetQuota(ctx, factory, 50)
	m.TransferCredits(ctx, producer, factory, 40, domain.PriceMeta{})

	m.SetQuota(ctx, factory, 80)
	fs, _ := m.FactoryState(ctx, factory)
	if fs.Purchased != 0 {
		t.Errorf("Purchased = %d after new quota, want 0", fs.Purchased)
	}
	if fs.QuotaSeq != 2 {
		t.Errorf("QuotaSeq = %d, want 2", fs.QuotaSeq)
	}
}

func TestMemory_ResumeQuotaSeq(t *testing.T) {
	m := newTestLedger(t)
	ctx := context.Background()

	if err := m.ResumeQuotaSeq(factory, 4); err != nil {
		t.Fatalf("ResumeQuotaSeq() error: %v", err)
	}
	fs, _ := m.FactoryState(ctx, factory)
	if fs.HasQuota {
		t.Errorf("HasQuota = true after resume, want false")
	}
	// A lower number never moves the counter back.
	m.ResumeQuotaSeq(factory, 2)

	m.SetQuota(ctx, factory, 100)
	fs, _ = m.FactoryState(ctx, factory)
	if fs.QuotaSeq != 5 {
		t.Errorf("QuotaSeq = %d, want 5", fs.QuotaSeq)
	}

	if err := m.ResumeQuotaSeq(citizen, 1); !errors.Is(err, domain.ErrNotFactory) {
		t.Errorf("ResumeQuotaSeq(citizen) error = %v, want ErrNotFactory", err)
	}
}

func TestMemory_UnknownAddress(t *testing.T) {
	m := newTestLedger(t)
	if _, err := m.BalanceOf(context.Background(), "0xnobody"); !errors.Is(err, domain.ErrUnknownAddress) {
		t.Errorf("error = %v, want ErrUnknownAddress", err)
	}
}

// ─── Adapter ────────────────────────────────────────────────────────────────

// slowLedger ignores its context and blocks every call.
type slowLedger struct {
	*Memory
	delay time.Duration
}

func (s *slowLedger) BalanceOf(_ context.Context, addr string) (int64, error) {
	time.Sleep(s.delay)
	return s.Memory.BalanceOf(context.Background(), addr)
}

func TestAdapter_TimeoutIsRetryable(t *testing.T) {
	backend := &slowLedger{Memory: newTestLedger(t), delay: 200 * time.Millisecond}
	a := NewAdapter(backend, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := a.BalanceOf(context.Background(), producer)
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
	if time.Since(start) > 150*time.Millisecond {
		t.Errorf("adapter blocked %v, want about the 20ms timeout", time.Since(start))
	}
	if !domain.IsRetryable(err) {
		t.Error("timeout should be retryable")
	}
}

func TestAdapter_PassesThroughErrors(t *testing.T) {
	a := NewAdapter(newTestLedger(t), time.Second, nil)
	_, err := a.IssueCredits(context.Background(), producer, 10)
	if !errors.Is(err, domain.ErrProducerNotCertified) {
		t.Errorf("error = %v, want ErrProducerNotCertified", err)
	}
}
