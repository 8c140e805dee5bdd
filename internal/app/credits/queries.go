package credits

import (
	"context"
	"fmt"
	"strings"

	"github.com/veridichain/veridi/internal/app/report"
	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/observability"
)

// ─── Open Views ─────────────────────────────────────────────────────────────

// Balances returns every provisioned account's ledger state.
func (s *Service) Balances(ctx context.Context, caller domain.Account) ([]domain.AccountState, error) {
	if err := s.authorize(OpBalances, caller); err != nil {
		return nil, err
	}
	return read(ctx, s, OpBalances, caller, func(ctx context.Context) ([]domain.AccountState, error) {
		accounts := s.deps.Directory.Accounts()
		out := make([]domain.AccountState, 0, len(accounts))
		for _, acc := range accounts {
			st, err := s.accountState(ctx, acc)
			if err != nil {
				return nil, err
			}
			out = append(out, st)
		}
		return out, nil
	})
}

// Transactions returns the journal in insertion order.
func (s *Service) Transactions(ctx context.Context, caller domain.Account) ([]domain.LogEntry, error) {
	if err := s.authorize(OpTransactions, caller); err != nil {
		return nil, err
	}
	return read(ctx, s, OpTransactions, caller, func(ctx context.Context) ([]domain.LogEntry, error) {
		return s.deps.Journal.List(ctx)
	})
}

// Payments returns the caller's own successful payments.
func (s *Service) Payments(ctx context.Context, caller domain.Account) ([]domain.PaymentRecord, error) {
	if err := s.authorize(OpPayments, caller); err != nil {
		return nil, err
	}
	return read(ctx, s, OpPayments, caller, func(ctx context.Context) ([]domain.PaymentRecord, error) {
		recs, err := s.deps.PaymentStore.ListPayments(ctx, caller.Address)
		if recs == nil && err == nil {
			recs = []domain.PaymentRecord{}
		}
		return recs, err
	})
}

// Certificates lists certificates visible to the caller: all of them for
// pollution bodies, a factory's own, none for anyone else.
func (s *Service) Certificates(ctx context.Context, caller domain.Account) ([]domain.Certificate, error) {
	if err := s.authorize(OpCertificates, caller); err != nil {
		return nil, err
	}
	return read(ctx, s, OpCertificates, caller, func(ctx context.Context) ([]domain.Certificate, error) {
		var (
			certs []domain.Certificate
			err   error
		)
		switch caller.Role {
		case domain.RolePollutionBody:
			certs, err = s.deps.Certificates.List(ctx, "")
		case domain.RoleFactory:
			certs, err = s.deps.Certificates.List(ctx, caller.Address)
		case domain.RoleProducer, domain.RoleCitizen, domain.RoleGovernment:
		}
		if certs == nil && err == nil {
			certs = []domain.Certificate{}
		}
		return certs, err
	})
}

// ─── Government Views ───────────────────────────────────────────────────────

// Notifications returns the most recent regulatory notifications, oldest first.
func (s *Service) Notifications(ctx context.Context, caller domain.Account) ([]domain.Notification, error) {
	if err := s.authorize(OpNotifications, caller); err != nil {
		return nil, err
	}
	return read(ctx, s, OpNotifications, caller, func(ctx context.Context) ([]domain.Notification, error) {
		return s.deps.Bus.Recent(ctx, s.cfg.RecentLimit)
	})
}

// AccountDetails is the government's view of one account.
type AccountDetails struct {
	domain.AccountState
	Factory          *report.FactoryProgress `json:"factory,omitempty"`
	TransactionCount int                     `json:"transaction_count"`
}

// AccountDetails looks up one account. The transaction count is the number
// of journal entries whose details mention the account's short address.
func (s *Service) AccountDetails(ctx context.Context, caller domain.Account, addr string) (AccountDetails, error) {
	if err := s.authorize(OpAccountDetails, caller); err != nil {
		return AccountDetails{}, err
	}
	if addr == "" {
		return AccountDetails{}, domain.Invalid(OpAccountDetails, "Address parameter required.", domain.ErrMissingField)
	}
	acc, ok := s.deps.Directory.Lookup(addr)
	if !ok {
		return AccountDetails{}, domain.NewError(domain.KindNotFound, OpAccountDetails,
			"Address not found in system.", domain.ErrUnknownAddress)
	}

	return read(ctx, s, OpAccountDetails, caller, func(ctx context.Context) (AccountDetails, error) {
		st, err := s.accountState(ctx, acc)
		if err != nil {
			return AccountDetails{}, err
		}
		d := AccountDetails{AccountState: st}

		switch acc.Role {
		case domain.RoleFactory:
			fs, err := s.deps.Ledger.FactoryState(ctx, acc.Address)
			if err != nil {
				return AccountDetails{}, ledgerError(OpAccountDetails, "", err)
			}
			p := report.ProgressOf(acc.Address, fs)
			d.Factory = &p
		case domain.RoleProducer, domain.RoleCitizen, domain.RoleGovernment, domain.RolePollutionBody:
		}

		short := domain.ShortAddress(acc.Address, 10)
		n, err := s.deps.Journal.CountMatching(ctx, func(e domain.LogEntry) bool {
			return strings.Contains(e.Details, short)
		})
		if err != nil {
			return AccountDetails{}, fmt.Errorf("count transactions: %w", err)
		}
		d.TransactionCount = n
		return d, nil
	})
}

// SystemHealth returns the operational dashboard.
func (s *Service) SystemHealth(ctx context.Context, caller domain.Account) (report.SystemHealth, error) {
	if err := s.authorize(OpSystemHealth, caller); err != nil {
		return report.SystemHealth{}, err
	}
	return read(ctx, s, OpSystemHealth, caller, s.deps.Reports.SystemHealth)
}

// Operations returns the most recent orchestrator spans.
func (s *Service) Operations(ctx context.Context, caller domain.Account, limit int) ([]observability.Span, error) {
	if err := s.authorize(OpOperations, caller); err != nil {
		return nil, err
	}
	if s.deps.Tracer == nil {
		return []observability.Span{}, nil
	}
	return s.deps.Tracer.Spans(limit), nil
}

// ─── Compliance Views ───────────────────────────────────────────────────────

// ComplianceReport returns the system-wide compliance statistics.
func (s *Service) ComplianceReport(ctx context.Context, caller domain.Account) (report.ComplianceReport, error) {
	if err := s.authorize(OpComplianceReport, caller); err != nil {
		return report.ComplianceReport{}, err
	}
	return read(ctx, s, OpComplianceReport, caller, s.deps.Reports.Compliance)
}

// FactoryProgress lists every factory's quota progress.
func (s *Service) FactoryProgress(ctx context.Context, caller domain.Account) ([]report.FactoryProgress, error) {
	if err := s.authorize(OpFactoryProgress, caller); err != nil {
		return nil, err
	}
	return read(ctx, s, OpFactoryProgress, caller, s.deps.Reports.FactoryProgress)
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (s *Service) accountState(ctx context.Context, acc domain.Account) (domain.AccountState, error) {
	st := domain.AccountState{Account: acc}
	var err error
	if st.Balance, err = s.deps.Ledger.BalanceOf(ctx, acc.Address); err != nil {
		return st, ledgerError(OpBalances, "", err)
	}
	if st.Frozen, err = s.deps.Ledger.IsFrozen(ctx, acc.Address); err != nil {
		return st, ledgerError(OpBalances, "", err)
	}
	switch acc.Role {
	case domain.RoleProducer:
		ps, err := s.deps.Ledger.ProducerState(ctx, acc.Address)
		if err != nil {
			return st, ledgerError(OpBalances, "", err)
		}
		st.Producer = &ps
	case domain.RoleFactory:
		fs, err := s.deps.Ledger.FactoryState(ctx, acc.Address)
		if err != nil {
			return st, ledgerError(OpBalances, "", err)
		}
		st.Factory = &fs
	case domain.RoleCitizen, domain.RoleGovernment, domain.RolePollutionBody:
	}
	return st, nil
}
