package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Input errors
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	ErrIssuanceCap   = errors.New("amount exceeds the per-issuance cap")
	ErrUnknownRole   = errors.New("unknown role")
	ErrMissingField  = errors.New("required field missing")

	// Authorization errors
	ErrForbidden = errors.New("role not permitted for this operation")

	// Ledger errors
	ErrUnknownAddress       = errors.New("address not registered on ledger")
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrInsufficientSupply   = errors.New("insufficient credits available in marketplace")
	ErrAccountFrozen        = errors.New("account is frozen")
	ErrProducerNotCertified = errors.New("producer is not certified")
	ErrProducerInactive     = errors.New("producer account is not active")
	ErrNotProducer          = errors.New("address is not a producer")
	ErrNotFactory           = errors.New("address is not a factory")
	ErrTimeout              = errors.New("collaborator call timed out")

	// Payment errors
	ErrPaymentDeclined = errors.New("payment gateway declined the transaction")

	// Compliance errors
	ErrQuotaNotSet          = errors.New("factory has not set an environmental quota")
	ErrQuotaNotMet          = errors.New("factory has not met quota requirements")
	ErrDuplicateCertificate = errors.New("certificate already issued for this quota")

	// Pool errors
	ErrPoolSaturated = errors.New("worker pool saturated")
)

// ─── Error Kinds ────────────────────────────────────────────────────────────

// Kind categorizes a failure returned at the orchestrator boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindAuthorization
	KindValidation
	KindLedger
	KindPayment
	KindCompliance
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindLedger:
		return "ledger"
	case KindPayment:
		return "payment"
	case KindCompliance:
		return "compliance"
	case KindNotFound:
		return "not_found"
	}
	return "internal"
}

// Error is a categorized failure with a human-readable message.
type Error struct {
	Kind      Kind
	Op        string
	Msg       string
	Err       error
	Retryable bool
	// Progress carries quota progress (percent) on compliance failures.
	Progress *float64
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the text shown to the caller.
func (e *Error) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String() + " error"
}

// NewError builds a categorized error.
func NewError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err, Retryable: errors.Is(err, ErrTimeout) || errors.Is(err, ErrPoolSaturated)}
}

// Forbidden reports an authorization failure.
func Forbidden(op, msg string) *Error {
	return NewError(KindAuthorization, op, msg, ErrForbidden)
}

// Invalid reports malformed or out-of-range input.
func Invalid(op, msg string, err error) *Error {
	return NewError(KindValidation, op, msg, err)
}

// KindOf returns the kind of err, or KindInternal when it is uncategorized.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// IsRetryable reports whether the caller may retry the operation.
func IsRetryable(err error) bool {
	var de *Error
	if errors.As(err, &de) && de.Retryable {
		return true
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrPoolSaturated)
}

// ClassifyLedger maps a ledger failure to a kind. Unknown addresses become
// NotFound; everything else the ledger rejects is a Ledger error.
func ClassifyLedger(op, msg string, err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, ErrUnknownAddress) {
		return NewError(KindNotFound, op, msg, err)
	}
	return NewError(KindLedger, op, msg, err)
}
