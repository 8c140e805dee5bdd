// Package report derives system-wide compliance statistics, system health
// and per-factory quota progress. Every report is a read-only view computed
// from the ledger, the journal and the certificate store at call time.
package report

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/veridichain/veridi/internal/domain"
)

// ─── Collaborators ──────────────────────────────────────────────────────────

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	BalanceOf(ctx context.Context, addr string) (int64, error)
	IsFrozen(ctx context.Context, addr string) (bool, error)
	ProducerState(ctx context.Context, addr string) (domain.ProducerState, error)
	FactoryState(ctx context.Context, addr string) (domain.FactoryState, error)
}

// EntryLister reads the journal.
type EntryLister interface {
	List(ctx context.Context) ([]domain.LogEntry, error)
}

// CertificateCounter counts issued certificates.
type CertificateCounter interface {
	Count(ctx context.Context) (int, error)
}

// Aggregator computes reports.
type Aggregator struct {
	ledger  LedgerReader
	journal EntryLister
	certs   CertificateCounter
	dir     domain.Directory
	now     func() time.Time
}

// New creates an aggregator.
func New(ledger LedgerReader, journal EntryLister, certs CertificateCounter, dir domain.Directory) *Aggregator {
	return &Aggregator{ledger: ledger, journal: journal, certs: certs, dir: dir, now: time.Now}
}

// SetClock replaces the time source.
func (a *Aggregator) SetClock(now func() time.Time) { a.now = now }

func round1(x float64) float64 { return math.Round(x*10) / 10 }

// ─── Compliance Report ──────────────────────────────────────────────────────

// Health grades for the compliance rate.
const (
	HealthExcellent        = "EXCELLENT"
	HealthGood             = "GOOD"
	HealthNeedsImprovement = "NEEDS_IMPROVEMENT"
)

// ComplianceReport summarizes quota compliance across all accounts.
type ComplianceReport struct {
	TotalCredits        int64   `json:"total_credits"`
	ActiveProducers     int     `json:"active_producers"`
	FactoriesWithQuotas int     `json:"factories_with_quotas"`
	CompliantFactories  int     `json:"compliant_factories"`
	CertificatesIssued  int     `json:"certificates_issued"`
	FrozenAccounts      int     `json:"frozen_accounts"`
	ComplianceRate      float64 `json:"compliance_rate"`
	SystemHealth        string  `json:"system_health"`
}

// ComplianceRate returns compliant/withQuota as a percentage. With no
// quotas set the system is vacuously compliant.
func ComplianceRate(compliant, withQuota int) float64 {
	if withQuota == 0 {
		return 100
	}
	return float64(compliant) / float64(withQuota) * 100
}

// HealthFor grades a compliance rate.
func HealthFor(rate float64) string {
	switch {
	case rate >= 90:
		return HealthExcellent
	case rate >= 70:
		return HealthGood
	}
	return HealthNeedsImprovement
}

// Compliance computes the compliance report.
func (a *Aggregator) Compliance(ctx context.Context) (ComplianceReport, error) {
	var r ComplianceReport

	for _, acc := range a.dir.Accounts() {
		bal, err := a.ledger.BalanceOf(ctx, acc.Address)
		if err != nil {
			return r, fmt.Errorf("balance of %s: %w", acc.Address, err)
		}
		r.TotalCredits += bal

		frozen, err := a.ledger.IsFrozen(ctx, acc.Address)
		if err != nil {
			return r, fmt.Errorf("frozen state of %s: %w", acc.Address, err)
		}
		if frozen {
			r.FrozenAccounts++
		}

		switch acc.Role {
		case domain.RoleProducer:
			ps, err := a.ledger.ProducerState(ctx, acc.Address)
			if err != nil {
				return r, fmt.Errorf("producer %s: %w", acc.Address, err)
			}
			if ps.CanIssue() {
				r.ActiveProducers++
			}
		case domain.RoleFactory:
			fs, err := a.ledger.FactoryState(ctx, acc.Address)
			if err != nil {
				return r, fmt.Errorf("factory %s: %w", acc.Address, err)
			}
			if fs.HasQuota {
				r.FactoriesWithQuotas++
				if fs.QuotaMet() {
					r.CompliantFactories++
				}
			}
		case domain.RoleCitizen, domain.RoleGovernment, domain.RolePollutionBody:
		}
	}

	n, err := a.certs.Count(ctx)
	if err != nil {
		return r, fmt.Errorf("count certificates: %w", err)
	}
	r.CertificatesIssued = n

	rate := ComplianceRate(r.CompliantFactories, r.FactoriesWithQuotas)
	r.ComplianceRate = round1(rate)
	r.SystemHealth = HealthFor(rate)
	return r, nil
}

// ─── System Health ──────────────────────────────────────────────────────────

// System status values.
const (
	StatusHealthy           = "HEALTHY"
	StatusAttentionRequired = "ATTENTION_REQUIRED"
	StatusCritical          = "CRITICAL"
)

// SystemHealth is the government's operational dashboard.
type SystemHealth struct {
	Status            string   `json:"status"`
	ActiveUsers       int      `json:"active_users"`
	DailyTransactions int      `json:"daily_transactions"`
	CreditUtilization int      `json:"credit_utilization"`
	NetworkStability  string   `json:"network_stability"`
	Alerts            []string `json:"alerts"`
}

// Utilization estimates credit utilization from today's activity, capped at 85.
func Utilization(daily int) int {
	return min(85, daily*10+20)
}

// StatusFor grades the number of alerts.
func StatusFor(alerts int) string {
	switch {
	case alerts == 0:
		return StatusHealthy
	case alerts <= 2:
		return StatusAttentionRequired
	}
	return StatusCritical
}

// SystemHealth computes the health dashboard.
func (a *Aggregator) SystemHealth(ctx context.Context) (SystemHealth, error) {
	accounts := a.dir.Accounts()
	h := SystemHealth{ActiveUsers: len(accounts), NetworkStability: "STABLE", Alerts: []string{}}

	entries, err := a.journal.List(ctx)
	if err != nil {
		return h, fmt.Errorf("read journal: %w", err)
	}
	y, m, d := a.now().UTC().Date()
	for _, e := range entries {
		ey, em, ed := e.Timestamp.UTC().Date()
		if ey == y && em == m && ed == d {
			h.DailyTransactions++
		}
	}
	h.CreditUtilization = Utilization(h.DailyTransactions)

	if h.DailyTransactions > 100 {
		h.Alerts = append(h.Alerts, "High transaction volume detected")
	}
	if h.CreditUtilization > 90 {
		h.Alerts = append(h.Alerts, "Credit utilization approaching maximum")
	}

	frozen := 0
	for _, acc := range accounts {
		f, err := a.ledger.IsFrozen(ctx, acc.Address)
		if err != nil {
			return h, fmt.Errorf("frozen state of %s: %w", acc.Address, err)
		}
		if f {
			frozen++
		}
	}
	if frozen > 0 {
		h.Alerts = append(h.Alerts, fmt.Sprintf("%d account(s) currently frozen", frozen))
	}

	h.Status = StatusFor(len(h.Alerts))
	return h, nil
}

// ─── Factory Progress ───────────────────────────────────────────────────────

// Factory progress status values.
const (
	ProgressQuotaMet   = "QUOTA_MET"
	ProgressInProgress = "IN_PROGRESS"
	ProgressNotStarted = "NOT_STARTED"
	ProgressNoQuota    = "NO_QUOTA_SET"
)

// FactoryProgress is one factory's progress toward its quota.
type FactoryProgress struct {
	Address            string  `json:"address"`
	Quota              int64   `json:"quota"`
	Purchased          int64   `json:"credits_purchased"`
	ProgressPercentage float64 `json:"progress_percentage"`
	Status             string  `json:"status"`
	QuotaMet           bool    `json:"quota_met"`
}

// ProgressOf builds the progress row for a factory state.
func ProgressOf(addr string, fs domain.FactoryState) FactoryProgress {
	if !fs.HasQuota {
		return FactoryProgress{Address: addr, Status: ProgressNoQuota}
	}
	p := FactoryProgress{
		Address:            addr,
		Quota:              fs.QuotaAmount,
		Purchased:          fs.Purchased,
		ProgressPercentage: round1(fs.Progress()),
		QuotaMet:           fs.QuotaMet(),
	}
	switch {
	case p.QuotaMet:
		p.Status = ProgressQuotaMet
	case fs.Progress() > 0:
		p.Status = ProgressInProgress
	default:
		p.Status = ProgressNotStarted
	}
	return p
}

// FactoryProgress lists every factory's progress in provisioning order.
func (a *Aggregator) FactoryProgress(ctx context.Context) ([]FactoryProgress, error) {
	out := []FactoryProgress{}
	for _, acc := range a.dir.ByRole(domain.RoleFactory) {
		fs, err := a.ledger.FactoryState(ctx, acc.Address)
		if err != nil {
			return nil, fmt.Errorf("factory %s: %w", acc.Address, err)
		}
		out = append(out, ProgressOf(acc.Address, fs))
	}
	return out, nil
}
