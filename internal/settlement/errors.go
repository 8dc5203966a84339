package settlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by Store implementations when a record does
// not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned by Store implementations when an insert
// violates a uniqueness constraint. The session manager relies on it to
// make find-or-open retryable instead of racy.
var ErrDuplicate = errors.New("duplicate record")

// ValidationError marks a missing or invalid mandatory field, detected
// before any mutation. The caller can resubmit corrected input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

func newValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ConversionNotFoundError means no exchange rate row covers the
// requested conversion. It is never degraded to a zero amount.
type ConversionNotFoundError struct {
	From     string
	To       string
	RateType string
	AsOf     time.Time
}

func (e *ConversionNotFoundError) Error() string {
	return fmt.Sprintf("no %s conversion rate from %s to %s as of %s",
		e.RateType, e.From, e.To, e.AsOf.Format("2006-01-02"))
}

// DocumentProcessingError carries the document processor's message
// verbatim when a status transition is rejected.
type DocumentProcessingError struct {
	Ref     DocumentRef
	Message string
}

func (e *DocumentProcessingError) Error() string {
	return fmt.Sprintf("processing %s %d failed: %s", e.Ref.Kind, e.Ref.ID, e.Message)
}

// WriteOffToleranceError is a policy violation: the residual open
// amount exceeds the configured write-off tolerance.
type WriteOffToleranceError struct {
	OpenAmount decimal.Decimal
	Tolerance  decimal.Decimal
	Currency   string
}

func (e *WriteOffToleranceError) Error() string {
	return fmt.Sprintf("open amount %s %s exceeds write-off tolerance %s",
		e.OpenAmount.StringFixed(2), e.Currency, e.Tolerance.StringFixed(2))
}

// MaxDiscountError is a policy violation: the requested flat discount
// exceeds the caller's maximum discount ceiling.
type MaxDiscountError struct {
	RequestedPct decimal.Decimal
	CeilingPct   decimal.Decimal
}

func (e *MaxDiscountError) Error() string {
	return fmt.Sprintf("discount %s%% exceeds maximum allowed %s%%",
		e.RequestedPct.String(), e.CeilingPct.String())
}

// MaxRefundError is a policy violation on the refund amount or the
// seller's accumulated daily refund total.
type MaxRefundError struct {
	Requested decimal.Decimal
	Ceiling   decimal.Decimal
	Daily     bool
}

func (e *MaxRefundError) Error() string {
	if e.Daily {
		return fmt.Sprintf("refund %s exceeds remaining daily refund ceiling %s",
			e.Requested.StringFixed(2), e.Ceiling.StringFixed(2))
	}
	return fmt.Sprintf("refund %s exceeds maximum refund %s",
		e.Requested.StringFixed(2), e.Ceiling.StringFixed(2))
}

// UnauthorizedError is returned by the supervisor authorization gate.
type UnauthorizedError struct {
	Capability Capability
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("not authorized for %s", e.Capability)
}

// IsPolicyViolation reports whether err is a well-formed request denied
// at the current privilege level, resolvable through the supervisor
// gate rather than by resubmitting different data.
func IsPolicyViolation(err error) bool {
	var wo *WriteOffToleranceError
	var md *MaxDiscountError
	var mr *MaxRefundError
	return errors.As(err, &wo) || errors.As(err, &md) || errors.As(err, &mr)
}
