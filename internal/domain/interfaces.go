package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// PriceMeta travels with a purchase transfer so the ledger can record the
// settlement price.
type PriceMeta struct {
	Currency  decimal.Decimal
	PaymentID string
}

// Ledger is the value-transfer ledger. It is the source of truth for
// balances, freezes, certification and quotas. Mutations for one account
// are serialized by the implementation.
type Ledger interface {
	IssueCredits(ctx context.Context, producer string, amount int64) (txHash string, err error)
	TransferCredits(ctx context.Context, from, to string, amount int64, meta PriceMeta) (txHash string, err error)
	BalanceOf(ctx context.Context, addr string) (int64, error)
	IsFrozen(ctx context.Context, addr string) (bool, error)
	SetFrozen(ctx context.Context, addr string, frozen bool) (txHash string, err error)
	ProducerState(ctx context.Context, addr string) (ProducerState, error)
	SetCertified(ctx context.Context, addr string, certified bool) (txHash string, err error)
	FactoryState(ctx context.Context, addr string) (FactoryState, error)
	SetQuota(ctx context.Context, addr string, amount int64) (txHash string, err error)
}

// ChargeResult is what the payment collaborator reports for a charge.
type ChargeResult struct {
	Success   bool
	PaymentID string
	Reason    string
}

// PaymentGateway charges a payer. Retries are not guaranteed to be safe.
type PaymentGateway interface {
	Charge(ctx context.Context, payer string, credits int64, currency decimal.Decimal) (ChargeResult, error)
	Name() string
}

// JournalStore persists transaction journal entries in insertion order.
type JournalStore interface {
	AppendEntry(ctx context.Context, e LogEntry) (int64, error)
	ListEntries(ctx context.Context) ([]LogEntry, error)
}

// PaymentStore persists successful payment records.
type PaymentStore interface {
	InsertPayment(ctx context.Context, p PaymentRecord) error
	ListPayments(ctx context.Context, payer string) ([]PaymentRecord, error)
}

// CertificateStore persists compliance certificates.
type CertificateStore interface {
	InsertCertificate(ctx context.Context, c Certificate) error
	ListCertificates(ctx context.Context, factory string) ([]Certificate, error)
	CountCertificates(ctx context.Context) (int, error)
	HasCertificate(ctx context.Context, factory string, quotaSeq int64) (bool, error)
}

// NotificationStore persists the capped regulatory feed. AppendNotification
// evicts the oldest rows beyond capacity and reports how many were evicted.
type NotificationStore interface {
	AppendNotification(ctx context.Context, n Notification, capacity int) (evicted int64, err error)
	ListNotifications(ctx context.Context, limit int) ([]Notification, error)
}

// MilestoneState is the persisted milestone bitfield for one factory.
type MilestoneState struct {
	Factory   string
	QuotaSeq  int64
	Bands     Band
	UpdatedAt time.Time
}

// MilestoneStore persists per-factory milestone bitfields.
type MilestoneStore interface {
	LoadMilestone(ctx context.Context, factory string) (MilestoneState, error)
	SaveMilestone(ctx context.Context, s MilestoneState) error
}

// Directory resolves the fixed role bindings.
type Directory interface {
	Accounts() []Account
	Lookup(addr string) (Account, bool)
	ByRole(role Role) []Account
}
