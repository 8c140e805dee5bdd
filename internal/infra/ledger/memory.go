// Package ledger provides the value-transfer ledger collaborator: an
// in-process reference ledger and the timeout-bounded Adapter the
// orchestrator talks to.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/veridichain/veridi/internal/domain"
)

// account is the ledger-side record. It never leaves this package.
type account struct {
	role     domain.Role
	balance  int64
	frozen   bool
	producer domain.ProducerState
	factory  domain.FactoryState
}

// Memory is a lock-protected reference ledger. It enforces the same rules a
// deployed credit contract would: certified and active producers only,
// frozen accounts cannot move credits, and transfers never overdraw.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*account
	txCount  int64
}

// NewMemory creates an empty ledger.
func NewMemory() *Memory {
	return &Memory{accounts: make(map[string]*account)}
}

// Register creates the ledger record for an account. Producers start
// active and uncertified. Registering an existing address is a no-op.
func (m *Memory) Register(a domain.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.Address]; ok {
		return
	}
	rec := &account{role: a.Role}
	if a.Role == domain.RoleProducer {
		rec.producer.Active = true
	}
	m.accounts[a.Address] = rec
}

// SetActive toggles a producer's active flag.
func (m *Memory) SetActive(addr string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.producerLocked(addr)
	if err != nil {
		return err
	}
	rec.producer.Active = active
	return nil
}

// ResumeQuotaSeq raises a factory's quota instance counter to at least seq
// so the next SetQuota continues numbering from persisted state. It does not
// set a quota.
func (m *Memory) ResumeQuotaSeq(addr string, seq int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.lookupLocked(addr)
	if err != nil {
		return err
	}
	if rec.role != domain.RoleFactory {
		return fmt.Errorf("resume quota on %s: %w", addr, domain.ErrNotFactory)
	}
	if seq > rec.factory.QuotaSeq {
		rec.factory.QuotaSeq = seq
	}
	return nil
}

// TxCount returns the number of mutating transactions applied.
func (m *Memory) TxCount() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.txCount
}

// ─── Mutations ──────────────────────────────────────────────────────────────

// IssueCredits mints amount credits to a certified, active, unfrozen producer.
func (m *Memory) IssueCredits(ctx context.Context, producer string, amount int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.producerLocked(producer)
	if err != nil {
		return "", err
	}
	if rec.frozen {
		return "", fmt.Errorf("issue to %s: %w", producer, domain.ErrAccountFrozen)
	}
	if !rec.producer.Certified {
		return "", fmt.Errorf("issue to %s: %w", producer, domain.ErrProducerNotCertified)
	}
	if !rec.producer.Active {
		return "", fmt.Errorf("issue to %s: %w", producer, domain.ErrProducerInactive)
	}
	rec.balance += amount
	rec.producer.TotalIssued += amount
	return m.nextTxLocked(), nil
}

// TransferCredits moves amount from one account to another. A factory
// receiving credits counts them toward its active quota.
func (m *Memory) TransferCredits(ctx context.Context, from, to string, amount int64, _ domain.PriceMeta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := m.lookupLocked(from)
	if err != nil {
		return "", err
	}
	dst, err := m.lookupLocked(to)
	if err != nil {
		return "", err
	}
	if src.frozen {
		return "", fmt.Errorf("transfer from %s: %w", from, domain.ErrAccountFrozen)
	}
	if dst.frozen {
		return "", fmt.Errorf("transfer to %s: %w", to, domain.ErrAccountFrozen)
	}
	if src.balance < amount {
		return "", fmt.Errorf("transfer from %s: %w", from, domain.ErrInsufficientBalance)
	}
	src.balance -= amount
	dst.balance += amount
	if dst.role == domain.RoleFactory && dst.factory.HasQuota {
		dst.factory.Purchased += amount
	}
	return m.nextTxLocked(), nil
}

// SetFrozen freezes or unfreezes any registered account.
func (m *Memory) SetFrozen(ctx context.Context, addr string, frozen bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.lookupLocked(addr)
	if err != nil {
		return "", err
	}
	rec.frozen = frozen
	return m.nextTxLocked(), nil
}

// SetCertified certifies or decertifies a producer.
func (m *Memory) SetCertified(ctx context.Context, addr string, certified bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.producerLocked(addr)
	if err != nil {
		return "", err
	}
	rec.producer.Certified = certified
	return m.nextTxLocked(), nil
}

// SetQuota replaces the factory's quota and starts a new quota instance:
// purchases counted toward the previous quota do not carry over.
func (m *Memory) SetQuota(ctx context.Context, addr string, amount int64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if amount <= 0 {
		return "", domain.ErrInvalidAmount
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.lookupLocked(addr)
	if err != nil {
		return "", err
	}
	if rec.role != domain.RoleFactory {
		return "", fmt.Errorf("set quota on %s: %w", addr, domain.ErrNotFactory)
	}
	if rec.frozen {
		return "", fmt.Errorf("set quota on %s: %w", addr, domain.ErrAccountFrozen)
	}
	rec.factory = domain.FactoryState{
		HasQuota:    true,
		QuotaAmount: amount,
		QuotaSeq:    rec.factory.QuotaSeq + 1,
	}
	return m.nextTxLocked(), nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// BalanceOf returns the credit balance of addr.
func (m *Memory) BalanceOf(ctx context.Context, addr string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.lookupLocked(addr)
	if err != nil {
		return 0, err
	}
	return rec.balance, nil
}

// IsFrozen reports whether addr is frozen.
func (m *Memory) IsFrozen(ctx context.Context, addr string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.lookupLocked(addr)
	if err != nil {
		return false, err
	}
	return rec.frozen, nil
}

// ProducerState returns a copy of the producer record.
func (m *Memory) ProducerState(ctx context.Context, addr string) (domain.ProducerState, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProducerState{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.producerLocked(addr)
	if err != nil {
		return domain.ProducerState{}, err
	}
	return rec.producer, nil
}

// FactoryState returns a copy of the factory record.
func (m *Memory) FactoryState(ctx context.Context, addr string) (domain.FactoryState, error) {
	if err := ctx.Err(); err != nil {
		return domain.FactoryState{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, err := m.lookupLocked(addr)
	if err != nil {
		return domain.FactoryState{}, err
	}
	if rec.role != domain.RoleFactory {
		return domain.FactoryState{}, fmt.Errorf("%s: %w", addr, domain.ErrNotFactory)
	}
	return rec.factory, nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (m *Memory) lookupLocked(addr string) (*account, error) {
	rec, ok := m.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr, domain.ErrUnknownAddress)
	}
	return rec, nil
}

func (m *Memory) producerLocked(addr string) (*account, error) {
	rec, err := m.lookupLocked(addr)
	if err != nil {
		return nil, err
	}
	if rec.role != domain.RoleProducer {
		return nil, fmt.Errorf("%s: %w", addr, domain.ErrNotProducer)
	}
	return rec, nil
}

// nextTxLocked returns a fresh transaction hash.
func (m *Memory) nextTxLocked() string {
	m.txCount++
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
