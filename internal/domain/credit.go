package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Journal Types ──────────────────────────────────────────────────────────
// These live in domain because they represent core business rules.
// Insertion order of journal entries is the canonical event order.

// EntryType is the business reason recorded for a journal entry.
type EntryType string

const (
	EntryIssue       EntryType = "ISSUE"
	EntryPurchase    EntryType = "PURCHASE"
	EntryQuotaSet    EntryType = "QUOTA_SET"
	EntryRegulatory  EntryType = "REGULATORY"
	EntryCertificate EntryType = "CERTIFICATE"
	EntryAudit       EntryType = "AUDIT"
)

// LogEntry is a single append-only row in the transaction journal.
type LogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EntryType `json:"type"`
	Details   string    `json:"details"`
	Amount    int64     `json:"amount_ghc"`
	TxHash    string    `json:"tx_hash"`
}

// ─── Payment Types ──────────────────────────────────────────────────────────

// PaymentStatus is always SUCCESS for persisted records; declined charges
// are never stored.
type PaymentStatus string

const PaymentSuccess PaymentStatus = "SUCCESS"

// PaymentRecord is written after a successful charge and before the ledger
// transfer is attempted.
type PaymentRecord struct {
	PaymentID string          `json:"payment_id"`
	Payer     string          `json:"user_address"`
	Credits   int64           `json:"amount_ghc"`
	Currency  decimal.Decimal `json:"amount_rupees"`
	Gateway   string          `json:"gateway"`
	Status    PaymentStatus   `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

// ─── Certificate Types ──────────────────────────────────────────────────────

// ComplianceQuotaMet is the only compliance status a certificate carries.
const ComplianceQuotaMet = "QUOTA_MET"

// Certificate attests that a factory met its quota. Certificates are
// immutable; there is no update or revocation.
type Certificate struct {
	ID               string    `json:"certificate_id"`
	Factory          string    `json:"factory_address"`
	QuotaSeq         int64     `json:"quota_seq"`
	QuotaAmount      int64     `json:"quota_amount"`
	Purchased        int64     `json:"credits_purchased"`
	IssueDate        time.Time `json:"issue_date"`
	IssuedBy         string    `json:"issued_by"`
	Status           string    `json:"compliance_status"`
	BenefitsEligible bool      `json:"benefits_eligible"`
}

// ─── Notification Types ─────────────────────────────────────────────────────

// Action classifies a regulatory notification.
type Action string

const (
	ActionCreditIssuance      Action = "CREDIT_ISSUANCE"
	ActionCreditPurchase      Action = "CREDIT_PURCHASE"
	ActionQuotaCompletion     Action = "QUOTA_COMPLETION"
	ActionRegulatoryAction    Action = "REGULATORY_ACTION"
	ActionComplianceMilestone Action = "COMPLIANCE_MILESTONE"
)

// DefaultNotificationCapacity is the number of notifications retained;
// older ones are evicted first.
const DefaultNotificationCapacity = 1000

// Notification is an entry in the capped regulatory feed.
type Notification struct {
	ID         string    `json:"notification_id"`
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	Details    string    `json:"details"`
	Subject    string    `json:"subject_address,omitempty"`
	NotifiedBy string    `json:"notified_by"`
}

// ─── Milestone Bands ────────────────────────────────────────────────────────

// Band is a bitfield of compliance milestones a factory has crossed for its
// current quota.
type Band uint8

const (
	Band50 Band = 1 << iota
	Band75
	BandComplete
)

// Has reports whether every bit of o is set in b.
func (b Band) Has(o Band) bool { return b&o == o }

// Label returns the metric label for a single band.
func (b Band) Label() string {
	switch b {
	case Band50:
		return "50"
	case Band75:
		return "75"
	case BandComplete:
		return "complete"
	}
	return "none"
}

// BandFor returns the band a factory is in for the given progress. Progress
// in [50,75) maps to Band50 and [75,100) to Band75; a met quota maps to
// BandComplete. Zero means no band.
func BandFor(progress float64, met bool) Band {
	switch {
	case met:
		return BandComplete
	case progress >= 75 && progress < 100:
		return Band75
	case progress >= 50 && progress < 75:
		return Band50
	}
	return 0
}
