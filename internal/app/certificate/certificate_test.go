package certificate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/veridichain/veridi/internal/app/journal"
	"github.com/veridichain/veridi/internal/app/notify"
	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/sqlite"
)

const factory = "0xfa11c0ffee000000001"

// stubFactory returns a fixed factory state.
type stubFactory struct {
	state domain.FactoryState
	err   error
}

func (s *stubFactory) FactoryState(context.Context, string) (domain.FactoryState, error) {
	return s.state, s.err
}

type fixture struct {
	issuer  *Issuer
	ledger  *stubFactory
	journal *journal.Journal
	bus     *notify.Bus
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	f := &fixture{ledger: &stubFactory{}, journal: journal.New(db, nil), bus: notify.New(db, 100, nil)}
	f.issuer = New(cfg, f.ledger, db, f.journal, f.bus, nil)
	f.issuer.SetClock(func() time.Time { return time.Date(2026, 5, 17, 9, 30, 0, 0, time.UTC) })
	return f
}

func TestCertificateID(t *testing.T) {
	got := CertificateID(factory, time.Date(2026, 5, 17, 23, 0, 0, 0, time.UTC))
	if got != "CERT-20260517-0XFA11C0" {
		t.Errorf("CertificateID() = %q, want CERT-20260517-0XFA11C0", got)
	}
}

func TestIssue_NoQuota(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	_, err := f.issuer.Issue(context.Background(), factory)
	if !errors.Is(err, domain.ErrQuotaNotSet) {
		t.Fatalf("error = %v, want ErrQuotaNotSet", err)
	}
	if domain.KindOf(err) != domain.KindCompliance {
		t.Errorf("kind = %v, want compliance", domain.KindOf(err))
	}
}

func TestIssue_AlmostMetStillFails(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.ledger.state = domain.FactoryState{HasQuota: true, QuotaAmount: 1000, Purchased: 999, QuotaSeq: 1}

	_, err := f.issuer.Issue(context.Background(), factory)
	if !errors.Is(err, domain.ErrQuotaNotMet) {
		t.Fatalf("error = %v, want ErrQuotaNotMet", err)
	}
	var de *domain.Error
	if !errors.As(err, &de) || de.Progress == nil {
		t.Fatal("compliance error should carry progress")
	}
	if p := *de.Progress; p < 99.89 || p >= 100 {
		t.Errorf("Progress = %v, want about 99.9", p)
	}
	if n, _ := f.issuer.Count(context.Background()); n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

func TestIssue_Success(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	f.ledger.state = domain.FactoryState{HasQuota: true, QuotaAmount: 1000, Purchased: 1100, QuotaSeq: 1}

	cert, err := f.issuer.Issue(ctx, factory)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if cert.QuotaAmount != 1000 || cert.Purchased != 1100 {
		t.Errorf("snapshot = %d/%d, want 1100/1000", cert.Purchased, cert.QuotaAmount)
	}
	if cert.IssuedBy != DefaultIssuedBy || cert.Status != domain.ComplianceQuotaMet || !cert.BenefitsEligible {
		t.Errorf("certificate = %+v", cert)
	}

	entries, _ := f.journal.List(ctx)
	if len(entries) != 1 || entries[0].Type != domain.EntryCertificate {
		t.Fatalf("journal = %+v, want one CERTIFICATE entry", entries)
	}
	if entries[0].TxHash != "cert_"+cert.ID {
		t.Errorf("TxHash = %q, want cert_%s", entries[0].TxHash, cert.ID)
	}
	notes, _ := f.bus.Recent(ctx, 10)
	if len(notes) != 1 || notes[0].Action != domain.ActionRegulatoryAction || notes[0].Subject != factory {
		t.Errorf("notifications = %+v, want one REGULATORY_ACTION for the factory", notes)
	}
}

func TestIssue_DuplicatesAllowedByDefault(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	ctx := context.Background()
	f.ledger.state = domain.FactoryState{HasQuota: true, QuotaAmount: 10, Purchased: 10, QuotaSeq: 1}

	f.issuer.Issue(ctx, factory)
	if _, err := f.issuer.Issue(ctx, factory); err != nil {
		t.Fatalf("second Issue() error: %v", err)
	}
	if n, _ := f.issuer.Count(ctx); n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}
}

func TestIssue_RejectDuplicates(t *testing.T) {
	f := newFixture(t, Config{RejectDuplicates: true})
	ctx := context.Background()
	f.ledger.state = domain.FactoryState{HasQuota: true, QuotaAmount: 10, Purchased: 10, QuotaSeq: 1}

	if _, err := f.issuer.Issue(ctx, factory); err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if _, err := f.issuer.Issue(ctx, factory); !errors.Is(err, domain.ErrDuplicateCertificate) {
		t.Errorf("second Issue() error = %v, want ErrDuplicateCertificate", err)
	}

	// A new quota instance may be certified again.
	f.ledger.state.QuotaSeq = 2
	if _, err := f.issuer.Issue(ctx, factory); err != nil {
		t.Errorf("Issue() on new quota error: %v", err)
	}
}

func TestIssue_UnknownFactory(t *testing.T) {
	f := newFixture(t, DefaultConfig())
	f.ledger.err = domain.ErrUnknownAddress

	_, err := f.issuer.Issue(context.Background(), "0xnobody")
	if domain.KindOf(err) != domain.KindNotFound {
		t.Errorf("kind = %v, want not_found", domain.KindOf(err))
	}
}
