// Package credits is the credit operations orchestrator: the entry points
// for issuance, purchase, quota setting, regulatory actions and certificate
// issuance, plus the read-only views served to each role.
//
// Every operation authorizes the caller's role, performs exactly one ledger
// mutation, then records best-effort side effects (journal, notifications,
// milestones). Side-effect failures are logged and never undo the ledger.
// All failures leave the orchestrator as *domain.Error.
package credits

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/app/audit"
	"github.com/veridichain/veridi/internal/app/certificate"
	"github.com/veridichain/veridi/internal/app/executor"
	"github.com/veridichain/veridi/internal/app/journal"
	"github.com/veridichain/veridi/internal/app/milestone"
	"github.com/veridichain/veridi/internal/app/notify"
	"github.com/veridichain/veridi/internal/app/report"
	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/observability"
)

// ─── Operations ─────────────────────────────────────────────────────────────

// Operation names, used for authorization, spans and metrics.
const (
	OpIssue            = "issue"
	OpPurchase         = "purchase"
	OpSetQuota         = "set_quota"
	OpFreeze           = "freeze"
	OpCertify          = "certify_producer"
	OpIssueCertificate = "issue_certificate"
	OpAudit            = "audit"
	OpBalances         = "balances"
	OpTransactions     = "transactions"
	OpNotifications    = "notifications"
	OpAccountDetails   = "account_details"
	OpSystemHealth     = "system_health"
	OpComplianceReport = "compliance_report"
	OpCertificates     = "certificates"
	OpFactoryProgress  = "factory_progress"
	OpPayments         = "payments"
	OpOperations       = "operations"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// Config holds the marketplace rules.
type Config struct {
	PricePerCredit decimal.Decimal // currency per credit (default 310)
	CurrencySymbol string          // shown in messages (default ₹)
	MaxPerIssue    int64           // per-issuance cap (default 10000)
	RecentLimit    int             // notifications shown to the government (default 50)
}

// DefaultConfig returns the marketplace defaults.
func DefaultConfig() Config {
	return Config{
		PricePerCredit: decimal.NewFromInt(310),
		CurrencySymbol: "₹",
		MaxPerIssue:    10_000,
		RecentLimit:    notify.DefaultRecentLimit,
	}
}

// ─── Collaborators ──────────────────────────────────────────────────────────

// Charger collects payment for credits.
type Charger interface {
	Charge(ctx context.Context, payer string, credits int64, currency decimal.Decimal) (paymentID string, err error)
	Gateway() string
}

// Deps are the collaborators injected into the service.
type Deps struct {
	Directory    domain.Directory
	Ledger       domain.Ledger
	Payments     Charger
	PaymentStore domain.PaymentStore
	Journal      *journal.Journal
	Bus          *notify.Bus
	Milestones   *milestone.Tracker
	Certificates *certificate.Issuer
	Audit        *audit.Engine
	Reports      *report.Aggregator
	Pool         *executor.Pool
	Tracer       *observability.Tracer
}

// Service is the orchestrator.
type Service struct {
	cfg  Config
	deps Deps
	log *zap.Logger
	now func() time.Time
}

// New creates the orchestrator.
func New(cfg Config, deps Deps, log *zap.Logger) *Service {
	if cfg.PricePerCredit.IsZero() {
		cfg.PricePerCredit = DefaultConfig().PricePerCredit
	}
	if cfg.CurrencySymbol == "" {
		cfg.CurrencySymbol = DefaultConfig().CurrencySymbol
	}
	if cfg.MaxPerIssue <= 0 {
		cfg.MaxPerIssue = DefaultConfig().MaxPerIssue
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = DefaultConfig().RecentLimit
	}
	if deps.Pool == nil {
		deps.Pool = executor.New(executor.DefaultConfig(), log)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, deps: deps, log: log.Named("credits"), now: time.Now}
}

// Config returns the marketplace rules in effect.
func (s *Service) Config() Config { return s.cfg }

// SetClock replaces the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Caller resolves the account that holds role. With several accounts bound
// to one role, the first provisioned one acts.
func (s *Service) Caller(role domain.Role) (domain.Account, error) {
	accounts := s.deps.Directory.ByRole(role)
	if len(accounts) == 0 {
		return domain.Account{}, domain.NewError(domain.KindNotFound, "resolve_caller",
			"No account is bound to role "+role.String()+".", domain.ErrUnknownAddress)
	}
	return accounts[0], nil
}

// ─── Authorization ──────────────────────────────────────────────────────────

// open operations are permitted to every provisioned account.
var open = map[string]bool{
	OpBalances:     true,
	OpTransactions: true,
	OpPayments:     true,
	OpCertificates: true,
}

// allowed reports whether role may perform op. Every role is listed so a
// new role cannot slip through unhandled.
func allowed(op string, r domain.Role) bool {
	if open[op] {
		return r.Valid()
	}
	switch r {
	case domain.RoleProducer:
		return op == OpIssue
	case domain.RoleFactory:
		return op == OpPurchase || op == OpSetQuota
	case domain.RoleCitizen:
		return op == OpPurchase
	case domain.RoleGovernment:
		switch op {
		case OpFreeze, OpCertify, OpAudit, OpNotifications, OpAccountDetails,
			OpSystemHealth, OpComplianceReport, OpOperations:
			return true
		}
		return false
	case domain.RolePollutionBody:
		return op == OpIssueCertificate || op == OpComplianceReport || op == OpFactoryProgress
	}
	return false
}

var denied = map[string]string{
	OpIssue:            "Only certified hydrogen producers can issue credits.",
	OpPurchase:         "Only factories and citizens can purchase credits.",
	OpSetQuota:         "Only factories can set quotas.",
	OpFreeze:           "Only government officials can freeze accounts.",
	OpCertify:          "Only government officials can certify producers.",
	OpAudit:            "Only government officials can conduct audits.",
	OpNotifications:    "Only government officials can view regulatory notifications.",
	OpAccountDetails:   "Only government officials can view account details.",
	OpSystemHealth:     "Only government officials can view system health.",
	OpComplianceReport: "Only government and pollution body officials can view compliance reports.",
	OpIssueCertificate: "Only state pollution bodies can issue certificates.",
	OpFactoryProgress:  "Only state pollution bodies can view factory progress.",
	OpOperations:       "Only government officials can view operation traces.",
}

// authorize checks the caller is a provisioned account and that its role
// may perform op.
func (s *Service) authorize(op string, caller domain.Account) error {
	bound, ok := s.deps.Directory.Lookup(caller.Address)
	if !ok || bound.Role != caller.Role {
		return domain.Forbidden(op, "Caller is not a provisioned account.")
	}
	if !allowed(op, caller.Role) {
		return domain.Forbidden(op, denied[op])
	}
	return nil
}

// ─── Execution ──────────────────────────────────────────────────────────────

// mutate runs a mutating operation inside the worker pool and records a span.
func (s *Service) mutate(ctx context.Context, op string, caller domain.Account, fn func(context.Context) (Result, error)) (Result, error) {
	span := s.deps.Tracer.StartSpan(ctx, op, map[string]string{"role": caller.Role.String()})

	var res Result
	err := s.deps.Pool.Run(ctx, op, func(ctx context.Context) error {
		var err error
		res, err = fn(ctx)
		return err
	})
	err = boundary(op, err)
	s.endSpan(span, err)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// read records a span around a read-only view.
func read[T any](ctx context.Context, s *Service, op string, caller domain.Account, fn func(context.Context) (T, error)) (T, error) {
	span := s.deps.Tracer.StartSpan(ctx, op, map[string]string{"role": caller.Role.String()})
	out, err := fn(ctx)
	err = boundary(op, err)
	s.endSpan(span, err)
	return out, err
}

func (s *Service) endSpan(span *observability.Span, err error) {
	if err != nil {
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["kind"] = domain.KindOf(err).String()
	}
	s.deps.Tracer.EndSpan(span, err)
}

// boundary converts any failure into a *domain.Error.
func boundary(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, domain.ErrPoolSaturated) {
		return domain.NewError(domain.KindInternal, op, "The system is busy. Try again shortly.", err)
	}
	return domain.NewError(domain.KindInternal, op, "", err)
}

// ledgerError attaches the caller-facing message for a ledger failure.
func ledgerError(op, prefix string, err error) *domain.Error {
	var msg string
	switch {
	case errors.Is(err, domain.ErrAccountFrozen):
		msg = "Account is frozen by government. Contact authorities."
	case errors.Is(err, domain.ErrProducerNotCertified):
		msg = "Producer certification required. Contact government for certification."
	case errors.Is(err, domain.ErrProducerInactive):
		msg = "Producer account is not active. Contact government."
	case errors.Is(err, domain.ErrInsufficientBalance):
		msg = "Insufficient balance."
	case errors.Is(err, domain.ErrTimeout):
		msg = "The ledger did not respond in time. Try again."
	case errors.Is(err, domain.ErrUnknownAddress):
		msg = "Address not found in system."
	case errors.Is(err, domain.ErrNotProducer), errors.Is(err, domain.ErrNotFactory):
		return domain.Invalid(op, prefix+err.Error(), err)
	}
	if msg == "" {
		msg = prefix + err.Error()
	}
	return domain.ClassifyLedger(op, msg, err)
}

// money formats a currency amount for messages.
func (s *Service) money(d decimal.Decimal) string {
	return s.cfg.CurrencySymbol + d.String()
}
