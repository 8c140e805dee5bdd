package report

import (
	"context"
	"testing"
	"time"

	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/ledger"
)

const (
	producer = "0xproducer0000000001"
	factoryA = "0xfactoryA0000000001"
	factoryB = "0xfactoryB0000000001"
	citizen  = "0xcitizen00000000001"
	gov      = "0xgovernment00000001"
)

var now = time.Date(2026, 8, 1, 15, 0, 0, 0, time.UTC)

type stubJournal []domain.LogEntry

func (s stubJournal) List(context.Context) ([]domain.LogEntry, error) { return s, nil }

type stubCerts int

func (s stubCerts) Count(context.Context) (int, error) { return int(s), nil }

type fixture struct {
	agg    *Aggregator
	ledger *ledger.Memory
}

func newFixture(t *testing.T, j stubJournal, certs int) *fixture {
	t.Helper()
	accounts := []domain.Account{
		{Address: producer, Role: domain.RoleProducer},
		{Address: factoryA, Role: domain.RoleFactory},
		{Address: factoryB, Role: domain.RoleFactory},
		{Address: citizen, Role: domain.RoleCitizen},
		{Address: gov, Role: domain.RoleGovernment},
	}
	dir, err := domain.NewDirectory(accounts)
	if err != nil {
		t.Fatalf("NewDirectory() error: %v", err)
	}
	mem := ledger.NewMemory()
	for _, a := range accounts {
		mem.Register(a)
	}
	agg := New(mem, j, stubCerts(certs), dir)
	agg.SetClock(func() time.Time { return now })
	return &fixture{agg: agg, ledger: mem}
}

// ─── Compliance ─────────────────────────────────────────────────────────────

func TestComplianceRate(t *testing.T) {
	tests := []struct {
		compliant, withQuota int
		want                 float64
	}{
		{0, 0, 100},
		{1, 1, 100},
		{1, 2, 50},
		{0, 3, 0},
	}
	for _, tt := range tests {
		if got := ComplianceRate(tt.compliant, tt.withQuota); got != tt.want {
			t.Errorf("ComplianceRate(%d, %d) = %v, want %v", tt.compliant, tt.withQuota, got, tt.want)
		}
	}
}

func TestHealthFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{100, HealthExcellent}, {90, HealthExcellent}, {89.9, HealthGood},
		{70, HealthGood}, {69.9, HealthNeedsImprovement}, {0, HealthNeedsImprovement},
	}
	for _, tt := range tests {
		if got := HealthFor(tt.rate); got != tt.want {
			t.Errorf("HealthFor(%v) = %s, want %s", tt.rate, got, tt.want)
		}
	}
}

func TestCompliance_NoQuotasIsVacuouslyCompliant(t *testing.T) {
	f := newFixture(t, nil, 0)
	r, err := f.agg.Compliance(context.Background())
	if err != nil {
		t.Fatalf("Compliance() error: %v", err)
	}
	if r.ComplianceRate != 100 || r.SystemHealth != HealthExcellent {
		t.Errorf("rate/health = %v/%s, want 100/EXCELLENT", r.ComplianceRate, r.SystemHealth)
	}
	if r.ActiveProducers != 0 {
		t.Errorf("ActiveProducers = %d, want 0 (uncertified)", r.ActiveProducers)
	}
}

func TestCompliance_Counts(t *testing.T) {
	f := newFixture(t, nil, 2)
	ctx := context.Background()
	f.ledger.SetCertified(ctx, producer, true)
	f.ledger.IssueCredits(ctx, producer, 3000)
	f.ledger.SetQuota(ctx, factoryA, 1000)
	f.ledger.SetQuota(ctx, factoryB, 1000)
	f.ledger.TransferCredits(ctx, producer, factoryA, 1000, domain.PriceMeta{})
	f.ledger.SetFrozen(ctx, citizen, true)

	r, err := f.agg.Compliance(ctx)
	if err != nil {
		t.Fatalf("Compliance() error: %v", err)
	}
	want := ComplianceReport{
		TotalCredits:        3000,
		ActiveProducers:     1,
		FactoriesWithQuotas: 2,
		CompliantFactories:  1,
		CertificatesIssued:  2,
		FrozenAccounts:      1,
		ComplianceRate:      50,
		SystemHealth:        HealthNeedsImprovement,
	}
	if r != want {
		t.Errorf("Compliance() = %+v, want %+v", r, want)
	}
}

// ─── System Health ──────────────────────────────────────────────────────────

func TestUtilization(t *testing.T) {
	tests := []struct{ daily, want int }{{0, 20}, {3, 50}, {6, 80}, {7, 85}, {500, 85}}
	for _, tt := range tests {
		if got := Utilization(tt.daily); got != tt.want {
			t.Errorf("Utilization(%d) = %d, want %d", tt.daily, got, tt.want)
		}
	}
}

func TestSystemHealth(t *testing.T) {
	j := stubJournal{
		{Timestamp: now.Add(-time.Hour)},
		{Timestamp: now.Add(-2 * time.Hour)},
		{Timestamp: now.Add(-24 * time.Hour)},
	}
	f := newFixture(t, j, 0)

	h, err := f.agg.SystemHealth(context.Background())
	if err != nil {
		t.Fatalf("SystemHealth() error: %v", err)
	}
	if h.Status != StatusHealthy {
		t.Errorf("Status = %s, want HEALTHY", h.Status)
	}
	if h.DailyTransactions != 2 {
		t.Errorf("DailyTransactions = %d, want 2", h.DailyTransactions)
	}
	if h.CreditUtilization != 40 {
		t.Errorf("CreditUtilization = %d, want 40", h.CreditUtilization)
	}
	if h.ActiveUsers != 5 {
		t.Errorf("ActiveUsers = %d, want 5", h.ActiveUsers)
	}
	if h.NetworkStability != "STABLE" {
		t.Errorf("NetworkStability = %q, want STABLE", h.NetworkStability)
	}
}

func TestSystemHealth_FrozenAlert(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	f.ledger.SetFrozen(ctx, citizen, true)
	f.ledger.SetFrozen(ctx, factoryA, true)

	h, _ := f.agg.SystemHealth(ctx)
	if h.Status != StatusAttentionRequired {
		t.Errorf("Status = %s, want ATTENTION_REQUIRED", h.Status)
	}
	if len(h.Alerts) != 1 || h.Alerts[0] != "2 account(s) currently frozen" {
		t.Errorf("Alerts = %v", h.Alerts)
	}
}

func TestStatusFor(t *testing.T) {
	if StatusFor(0) != StatusHealthy || StatusFor(2) != StatusAttentionRequired || StatusFor(3) != StatusCritical {
		t.Error("StatusFor thresholds wrong")
	}
}

// ─── Factory Progress ───────────────────────────────────────────────────────

func TestProgressOf(t *testing.T) {
	tests := []struct {
		name   string
		fs     domain.FactoryState
		status string
		pct    float64
	}{
		{"no quota", domain.FactoryState{}, ProgressNoQuota, 0},
		{"not started", domain.FactoryState{HasQuota: true, QuotaAmount: 1000}, ProgressNotStarted, 0},
		{"in progress", domain.FactoryState{HasQuota: true, QuotaAmount: 3, Purchased: 1}, ProgressInProgress, 33.3},
		{"met", domain.FactoryState{HasQuota: true, QuotaAmount: 1000, Purchased: 1100}, ProgressQuotaMet, 110},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProgressOf("0xf", tt.fs)
			if p.Status != tt.status {
				t.Errorf("Status = %s, want %s", p.Status, tt.status)
			}
			if p.ProgressPercentage != tt.pct {
				t.Errorf("ProgressPercentage = %v, want %v", p.ProgressPercentage, tt.pct)
			}
		})
	}
}

func TestFactoryProgress_ListsFactories(t *testing.T) {
	f := newFixture(t, nil, 0)
	ctx := context.Background()
	f.ledger.SetQuota(ctx, factoryB, 500)

	rows, err := f.agg.FactoryProgress(ctx)
	if err != nil {
		t.Fatalf("FactoryProgress() error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].Status != ProgressNoQuota || rows[1].Status != ProgressNotStarted {
		t.Errorf("statuses = %s, %s", rows[0].Status, rows[1].Status)
	}
}
