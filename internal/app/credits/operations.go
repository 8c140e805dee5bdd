package credits

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/veridichain/veridi/internal/app/audit"
	"github.com/veridichain/veridi/internal/app/report"
	"github.com/veridichain/veridi/internal/domain"
	"github.com/veridichain/veridi/internal/infra/observability"
	"github.com/veridichain/veridi/internal/infra/payment"
)

// Result is returned by every mutating operation.
type Result struct {
	Message       string                  `json:"message"`
	TxHash        string                  `json:"tx_hash,omitempty"`
	PaymentID     string                  `json:"payment_id,omitempty"`
	CreditsIssued int64                   `json:"credits_issued,omitempty"`
	HydrogenKg    int64                   `json:"hydrogen_kg,omitempty"`
	Value         *decimal.Decimal        `json:"value_rupees,omitempty"`
	Quota         *report.FactoryProgress `json:"quota,omitempty"`
	Certificate   *domain.Certificate     `json:"certificate,omitempty"`
	Audit         *audit.Result           `json:"audit_results,omitempty"`
}

// ─── Issue ──────────────────────────────────────────────────────────────────

// Issue mints credits for hydrogen produced, one credit per kilogram. The
// producer must be certified and active and the amount within (0, cap].
func (s *Service) Issue(ctx context.Context, caller domain.Account, amountKg int64) (Result, error) {
	if err := s.authorize(OpIssue, caller); err != nil {
		return Result{}, err
	}
	if amountKg <= 0 {
		return Result{}, domain.Invalid(OpIssue, "Invalid amount. Please enter kilograms of hydrogen produced.", domain.ErrInvalidAmount)
	}
	if amountKg > s.cfg.MaxPerIssue {
		return Result{}, domain.Invalid(OpIssue,
			fmt.Sprintf("Amount too large. Maximum %d kg per issuance.", s.cfg.MaxPerIssue), domain.ErrIssuanceCap)
	}

	return s.mutate(ctx, OpIssue, caller, func(ctx context.Context) (Result, error) {
		ps, err := s.deps.Ledger.ProducerState(ctx, caller.Address)
		if err != nil {
			return Result{}, ledgerError(OpIssue, "Credit issuance failed: ", err)
		}
		if !ps.Certified {
			return Result{}, domain.NewError(domain.KindLedger, OpIssue,
				"Producer is not certified. Contact government for certification.", domain.ErrProducerNotCertified)
		}
		if !ps.Active {
			return Result{}, domain.NewError(domain.KindLedger, OpIssue,
				"Producer account is not active. Contact government.", domain.ErrProducerInactive)
		}

		credits := amountKg
		tx, err := s.deps.Ledger.IssueCredits(ctx, caller.Address, credits)
		if err != nil {
			return Result{}, ledgerError(OpIssue, "Credit issuance failed: ", err)
		}
		value := payment.Quote(credits, s.cfg.PricePerCredit)

		s.deps.Journal.Append(ctx, domain.LogEntry{
			Type:    domain.EntryIssue,
			Details: fmt.Sprintf("Producer issued %d GHC for %dkg H2 production (%s value)", credits, amountKg, s.money(value)),
			Amount:  credits,
			TxHash:  tx,
		})
		s.deps.Bus.Publish(ctx, domain.ActionCreditIssuance,
			fmt.Sprintf("Producer %s... issued %d GHC credits. Value: %s, H2 Production: %dkg",
				domain.ShortAddress(caller.Address, 10), credits, s.money(value), amountKg),
			caller.Address)

		s.log.Info("credits issued",
			zap.String("producer", caller.Address),
			zap.Int64("credits", credits),
			zap.String("tx_hash", tx))
		return Result{
			Message:       fmt.Sprintf("SUCCESS: Issued %d GHC for %dkg hydrogen production. Total value: %s", credits, amountKg, s.money(value)),
			TxHash:        tx,
			CreditsIssued: credits,
			HydrogenKg:    amountKg,
			Value:         &value,
		}, nil
	})
}

// ─── Purchase ───────────────────────────────────────────────────────────────

// Purchase buys credits from the marketplace. The charge happens first; a
// declined charge touches neither the ledger nor the journal. A charge that
// succeeds is recorded before the transfer is attempted and is never retried.
func (s *Service) Purchase(ctx context.Context, caller domain.Account, amount int64) (Result, error) {
	if err := s.authorize(OpPurchase, caller); err != nil {
		return Result{}, err
	}
	if amount <= 0 {
		return Result{}, domain.Invalid(OpPurchase, "Invalid amount.", domain.ErrInvalidAmount)
	}

	return s.mutate(ctx, OpPurchase, caller, func(ctx context.Context) (Result, error) {
		// A frozen buyer would be charged for a transfer the ledger must refuse.
		frozen, err := s.deps.Ledger.IsFrozen(ctx, caller.Address)
		if err != nil {
			return Result{}, ledgerError(OpPurchase, "Purchase failed: ", err)
		}
		if frozen {
			return Result{}, ledgerError(OpPurchase, "", domain.ErrAccountFrozen)
		}

		cost := payment.Quote(amount, s.cfg.PricePerCredit)
		paymentID, err := s.deps.Payments.Charge(ctx, caller.Address, amount, cost)
		if err != nil {
			return Result{}, s.paymentError(err)
		}
		observability.PaymentsTotal.WithLabelValues("success").Inc()
		s.recordPayment(ctx, caller.Address, amount, cost, paymentID)

		supplier, err := s.supplier(ctx, amount)
		if err != nil {
			s.log.Warn("charge taken without settlement",
				zap.String("payment_id", paymentID),
				zap.String("buyer", caller.Address),
				zap.Error(err))
			return Result{}, err
		}

		tx, err := s.deps.Ledger.TransferCredits(ctx, supplier, caller.Address, amount,
			domain.PriceMeta{Currency: cost, PaymentID: paymentID})
		if err != nil {
			s.log.Warn("charge taken without settlement",
				zap.String("payment_id", paymentID),
				zap.String("buyer", caller.Address),
				zap.Error(err))
			return Result{}, ledgerError(OpPurchase, "Purchase failed: ", err)
		}

		s.deps.Journal.Append(ctx, domain.LogEntry{
			Type:    domain.EntryPurchase,
			Details: fmt.Sprintf("%s purchased %d GHC for %s", caller.Role.Title(), amount, s.money(cost)),
			Amount:  amount,
			TxHash:  tx,
		})
		s.deps.Bus.Publish(ctx, domain.ActionCreditPurchase,
			fmt.Sprintf("Credit purchase: %d GHC from %s... to %s... Buyer: %s, Cost: %s",
				amount, domain.ShortAddress(supplier, 10), domain.ShortAddress(caller.Address, 10),
				caller.Role.Title(), s.money(cost)),
			caller.Address)

		res := Result{TxHash: tx, PaymentID: paymentID}
		quotaMsg := ""
		switch caller.Role {
		case domain.RoleFactory:
			quotaMsg, res.Quota = s.afterFactoryPurchase(ctx, caller.Address)
		case domain.RoleCitizen, domain.RoleProducer, domain.RoleGovernment, domain.RolePollutionBody:
		}
		res.Message = fmt.Sprintf("Successfully purchased %d GHC for %s.%s", amount, s.money(cost), quotaMsg)

		s.log.Info("credits purchased",
			zap.String("buyer", caller.Address),
			zap.String("supplier", supplier),
			zap.Int64("credits", amount),
			zap.String("payment_id", paymentID),
			zap.String("tx_hash", tx))
		return res, nil
	})
}

func (s *Service) paymentError(err error) *domain.Error {
	switch {
	case errors.Is(err, domain.ErrPaymentDeclined):
		observability.PaymentsTotal.WithLabelValues("declined").Inc()
		return domain.NewError(domain.KindPayment, OpPurchase, "Payment failed: Payment gateway declined the transaction", err)
	case errors.Is(err, domain.ErrTimeout):
		observability.PaymentsTotal.WithLabelValues("timeout").Inc()
		return domain.NewError(domain.KindPayment, OpPurchase,
			"Payment status unknown: the gateway did not respond in time. Check your payments before retrying.", err)
	}
	observability.PaymentsTotal.WithLabelValues("error").Inc()
	return domain.NewError(domain.KindPayment, OpPurchase, "Payment failed: "+err.Error(), err)
}

// recordPayment persists a successful charge. A store failure is logged:
// the money has moved and the caller must still get a result.
func (s *Service) recordPayment(ctx context.Context, payer string, credits int64, cost decimal.Decimal, paymentID string) {
	rec := domain.PaymentRecord{
		PaymentID: paymentID,
		Payer:     payer,
		Credits:   credits,
		Currency:  cost,
		Gateway:   s.deps.Payments.Gateway(),
		Status:    domain.PaymentSuccess,
		Timestamp: s.now().UTC(),
	}
	if err := s.deps.PaymentStore.InsertPayment(context.WithoutCancel(ctx), rec); err != nil {
		observability.JournalWriteFailures.WithLabelValues("payments").Inc()
		s.log.Error("payment record not saved",
			zap.String("payment_id", paymentID),
			zap.String("payer", payer),
			zap.Error(err))
	}
}

// supplier picks the first producer holding enough credits.
func (s *Service) supplier(ctx context.Context, amount int64) (string, error) {
	for _, p := range s.deps.Directory.ByRole(domain.RoleProducer) {
		bal, err := s.deps.Ledger.BalanceOf(ctx, p.Address)
		if err != nil {
			return "", ledgerError(OpPurchase, "Purchase failed: ", err)
		}
		if bal >= amount {
			return p.Address, nil
		}
	}
	return "", domain.NewError(domain.KindLedger, OpPurchase,
		"Insufficient credits available in marketplace.", domain.ErrInsufficientSupply)
}

// afterFactoryPurchase re-evaluates milestones and builds the quota message.
func (s *Service) afterFactoryPurchase(ctx context.Context, factory string) (string, *report.FactoryProgress) {
	fs, err := s.deps.Ledger.FactoryState(ctx, factory)
	if err != nil {
		s.log.Error("quota status unavailable", zap.String("factory", factory), zap.Error(err))
		return "", nil
	}
	if _, err := s.deps.Milestones.Evaluate(ctx, factory, fs); err != nil {
		s.log.Error("milestone evaluation failed", zap.String("factory", factory), zap.Error(err))
	}
	if !fs.HasQuota {
		return "", nil
	}

	progress := report.ProgressOf(factory, fs)
	if fs.QuotaMet() {
		return fmt.Sprintf(" Congratulations! You have met your environmental quota of %d GHC.", fs.QuotaAmount), &progress
	}
	return fmt.Sprintf(" Progress: %d/%d GHC (%d remaining to meet quota).", fs.Purchased, fs.QuotaAmount, fs.Remaining()), &progress
}

// ─── Set Quota ──────────────────────────────────────────────────────────────

// SetQuota replaces the caller factory's quota. The new quota starts from
// zero purchases and a fresh milestone record.
func (s *Service) SetQuota(ctx context.Context, caller domain.Account, amount int64) (Result, error) {
	if err := s.authorize(OpSetQuota, caller); err != nil {
		return Result{}, err
	}
	if amount <= 0 {
		return Result{}, domain.Invalid(OpSetQuota, "Invalid quota amount.", domain.ErrInvalidAmount)
	}

	return s.mutate(ctx, OpSetQuota, caller, func(ctx context.Context) (Result, error) {
		tx, err := s.deps.Ledger.SetQuota(ctx, caller.Address, amount)
		if err != nil {
			return Result{}, ledgerError(OpSetQuota, "Quota setting failed: ", err)
		}

		if fs, err := s.deps.Ledger.FactoryState(ctx, caller.Address); err != nil {
			s.log.Error("quota state unavailable", zap.String("factory", caller.Address), zap.Error(err))
		} else if err := s.deps.Milestones.Reset(ctx, caller.Address, fs.QuotaSeq); err != nil {
			s.log.Error("milestone reset failed", zap.String("factory", caller.Address), zap.Error(err))
		}

		s.deps.Journal.Append(ctx, domain.LogEntry{
			Type:    domain.EntryQuotaSet,
			Details: fmt.Sprintf("Factory set environmental quota to %d GHC", amount),
			Amount:  amount,
			TxHash:  tx,
		})
		s.deps.Bus.Publish(ctx, domain.ActionRegulatoryAction,
			fmt.Sprintf("Government action: Factory set environmental quota to %d GHC", amount),
			caller.Address)

		return Result{
			Message: fmt.Sprintf("Environmental quota set to %d GHC. Start purchasing credits to meet your compliance target.", amount),
			TxHash:  tx,
		}, nil
	})
}

// ─── Regulatory Actions ─────────────────────────────────────────────────────

// Freeze freezes or unfreezes an account.
func (s *Service) Freeze(ctx context.Context, caller domain.Account, target string, frozen bool) (Result, error) {
	if err := s.authorize(OpFreeze, caller); err != nil {
		return Result{}, err
	}
	if target == "" {
		return Result{}, domain.Invalid(OpFreeze, "Invalid address.", domain.ErrMissingField)
	}

	return s.mutate(ctx, OpFreeze, caller, func(ctx context.Context) (Result, error) {
		tx, err := s.deps.Ledger.SetFrozen(ctx, target, frozen)
		if err != nil {
			return Result{}, ledgerError(OpFreeze, "Action failed: ", err)
		}
		action := "FROZEN"
		if !frozen {
			action = "UNFROZEN"
		}
		short := domain.ShortAddress(target, 12)

		s.deps.Journal.Append(ctx, domain.LogEntry{
			Type:    domain.EntryRegulatory,
			Details: fmt.Sprintf("Government %s account %s...", action, short),
			TxHash:  tx,
		})
		s.deps.Bus.Publish(ctx, domain.ActionRegulatoryAction,
			fmt.Sprintf("Government action: Account %s... has been %s", short, strings.ToLower(action)),
			target)

		s.log.Info("account frozen state changed", zap.String("target", target), zap.Bool("frozen", frozen))
		return Result{Message: fmt.Sprintf("Account has been %s.", strings.ToLower(action)), TxHash: tx}, nil
	})
}

// CertifyProducer certifies or decertifies a producer.
func (s *Service) CertifyProducer(ctx context.Context, caller domain.Account, producer string, certified bool) (Result, error) {
	if err := s.authorize(OpCertify, caller); err != nil {
		return Result{}, err
	}
	if producer == "" {
		return Result{}, domain.Invalid(OpCertify, "Invalid producer address.", domain.ErrMissingField)
	}

	return s.mutate(ctx, OpCertify, caller, func(ctx context.Context) (Result, error) {
		tx, err := s.deps.Ledger.SetCertified(ctx, producer, certified)
		if err != nil {
			return Result{}, ledgerError(OpCertify, "Certification failed: ", err)
		}
		action := "CERTIFIED"
		if !certified {
			action = "DECERTIFIED"
		}
		short := domain.ShortAddress(producer, 12)

		s.deps.Journal.Append(ctx, domain.LogEntry{
			Type:    domain.EntryRegulatory,
			Details: fmt.Sprintf("Government %s producer %s...", action, short),
			TxHash:  tx,
		})
		s.deps.Bus.Publish(ctx, domain.ActionRegulatoryAction,
			fmt.Sprintf("Government action: Producer %s... has been %s", short, strings.ToLower(action)),
			producer)

		s.log.Info("producer certification changed", zap.String("producer", producer), zap.Bool("certified", certified))
		return Result{Message: fmt.Sprintf("Producer has been %s successfully.", strings.ToLower(action)), TxHash: tx}, nil
	})
}

// ─── Certificates ───────────────────────────────────────────────────────────

// IssueCertificate certifies that a factory met its quota.
func (s *Service) IssueCertificate(ctx context.Context, caller domain.Account, factory string) (Result, error) {
	if err := s.authorize(OpIssueCertificate, caller); err != nil {
		return Result{}, err
	}
	if factory == "" {
		return Result{}, domain.Invalid(OpIssueCertificate, "Invalid factory address.", domain.ErrMissingField)
	}

	return s.mutate(ctx, OpIssueCertificate, caller, func(ctx context.Context) (Result, error) {
		cert, err := s.deps.Certificates.Issue(ctx, factory)
		if err != nil {
			return Result{}, err
		}
		return Result{
			Message:     fmt.Sprintf("Compliance certificate %s issued successfully. Factory is eligible for environmental benefits.", cert.ID),
			TxHash:      "cert_" + cert.ID,
			Certificate: &cert,
		}, nil
	})
}

// ─── Audit ──────────────────────────────────────────────────────────────────

// Audit runs the risk assessment and journals its outcome.
func (s *Service) Audit(ctx context.Context, caller domain.Account) (Result, error) {
	if err := s.authorize(OpAudit, caller); err != nil {
		return Result{}, err
	}

	return s.mutate(ctx, OpAudit, caller, func(ctx context.Context) (Result, error) {
		res, err := s.deps.Audit.Run(ctx)
		if err != nil {
			return Result{}, domain.NewError(domain.KindInternal, OpAudit, "Audit failed: "+err.Error(), err)
		}
		s.deps.Journal.Append(ctx, domain.LogEntry{
			Timestamp: res.Timestamp,
			Type:      domain.EntryAudit,
			Details:   fmt.Sprintf("System audit conducted - %s risk level detected", res.RiskLevel),
			TxHash:    "audit_" + strconv.FormatInt(res.Timestamp.Unix(), 10),
		})
		s.log.Info("audit journaled", zap.String("risk_level", string(res.RiskLevel)), zap.Int("factors", len(res.RiskFactors)))
		return Result{Message: "Audit completed successfully.", Audit: &res}, nil
	})
}
