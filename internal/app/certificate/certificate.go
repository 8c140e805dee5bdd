// Package certificate mints compliance certificates for factories that have
// met their quota. Certificates are immutable once stored.
package certificate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/observability"
)

const op = "issue_certificate"

// DefaultIssuedBy is the issuing body stamped on certificates.
const DefaultIssuedBy = "State Pollution Control Board"

// Config controls issuance.
type Config struct {
	IssuedBy string
	// RejectDuplicates refuses a second certificate for the same quota
	// instance. Off by default: repeated issuance yields extra certificates.
	RejectDuplicates bool
}

// DefaultConfig returns issuance defaults.
func DefaultConfig() Config {
	return Config{IssuedBy: DefaultIssuedBy}
}

// FactoryReader reads a factory's quota state.
type FactoryReader interface {
	FactoryState(ctx context.Context, addr string) (domain.FactoryState, error)
}

// Appender records journal entries.
type Appender interface {
	Append(ctx context.Context, e domain.LogEntry) bool
}

// Publisher raises regulatory notifications.
type Publisher interface {
	Publish(ctx context.Context, action domain.Action, details, subject string) (domain.Notification, bool)
}

// Issuer checks quota completion and records certificates.
type Issuer struct {
	cfg     Config
	ledger  FactoryReader
	store   domain.CertificateStore
	journal Appender
	bus     Publisher
	log     *zap.Logger
	now     func() time.Time
}

// New creates an issuer.
func New(cfg Config, ledger FactoryReader, store domain.CertificateStore, journal Appender, bus Publisher, log *zap.Logger) *Issuer {
	if cfg.IssuedBy == "" {
		cfg.IssuedBy = DefaultIssuedBy
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Issuer{
		cfg:     cfg,
		ledger:  ledger,
		store:   store,
		journal: journal,
		bus:     bus,
		log:     log.Named("certificate"),
		now:     time.Now,
	}
}

// SetClock replaces the time source used for ids and issue dates.
func (i *Issuer) SetClock(now func() time.Time) { i.now = now }

// CertificateID derives the human-legible id for a factory on a given day.
// Ids repeat for the same factory on the same day.
func CertificateID(factory string, day time.Time) string {
	return fmt.Sprintf("CERT-%s-%s", day.UTC().Format("20060102"), strings.ToUpper(domain.ShortAddress(factory, 8)))
}

// Issue mints a certificate. It fails with a compliance error when the
// factory has no quota or has not met it, however close progress is.
func (i *Issuer) Issue(ctx context.Context, factory string) (domain.Certificate, error) {
	fs, err := i.ledger.FactoryState(ctx, factory)
	if err != nil {
		return domain.Certificate{}, domain.ClassifyLedger(op, "", err)
	}
	if !fs.HasQuota {
		return domain.Certificate{}, domain.NewError(domain.KindCompliance, op,
			"Factory has not set an environmental quota.", domain.ErrQuotaNotSet)
	}
	if !fs.QuotaMet() {
		e := domain.NewError(domain.KindCompliance, op,
			fmt.Sprintf("Factory has not met quota requirements. Progress: %d/%d GHC", fs.Purchased, fs.QuotaAmount),
			domain.ErrQuotaNotMet)
		progress := fs.Progress()
		e.Progress = &progress
		return domain.Certificate{}, e
	}
	if i.cfg.RejectDuplicates {
		dup, err := i.store.HasCertificate(ctx, factory, fs.QuotaSeq)
		if err != nil {
			return domain.Certificate{}, domain.NewError(domain.KindInternal, op, "certificate lookup failed", err)
		}
		if dup {
			return domain.Certificate{}, domain.NewError(domain.KindCompliance, op,
				"A certificate was already issued for this quota.", domain.ErrDuplicateCertificate)
		}
	}

	now := i.now().UTC()
	cert := domain.Certificate{
		ID:               CertificateID(factory, now),
		Factory:          factory,
		QuotaSeq:         fs.QuotaSeq,
		QuotaAmount:      fs.QuotaAmount,
		Purchased:        fs.Purchased,
		IssueDate:        now,
		IssuedBy:         i.cfg.IssuedBy,
		Status:           domain.ComplianceQuotaMet,
		BenefitsEligible: true,
	}
	if err := i.store.InsertCertificate(ctx, cert); err != nil {
		return domain.Certificate{}, domain.NewError(domain.KindInternal, op, "certificate could not be stored", err)
	}
	observability.CertificatesIssued.Inc()

	i.journal.Append(ctx, domain.LogEntry{
		Timestamp: now,
		Type:      domain.EntryCertificate,
		Details:   fmt.Sprintf("Compliance certificate %s issued to factory", cert.ID),
		TxHash:    "cert_" + cert.ID,
	})
	i.bus.Publish(ctx, domain.ActionRegulatoryAction,
		fmt.Sprintf("Government action: Compliance certificate %s issued - factory eligible for benefits", cert.ID),
		factory)

	i.log.Info("certificate issued",
		zap.String("certificate_id", cert.ID),
		zap.String("factory", factory),
		zap.Int64("quota", cert.QuotaAmount),
		zap.Int64("purchased", cert.Purchased))
	return cert, nil
}

// List returns certificates for factory, or all certificates when factory
// is empty.
func (i *Issuer) List(ctx context.Context, factory string) ([]domain.Certificate, error) {
	return i.store.ListCertificates(ctx, factory)
}

// Count returns the number of certificates issued.
func (i *Issuer) Count(ctx context.Context) (int, error) {
	return i.store.CountCertificates(ctx)
}
