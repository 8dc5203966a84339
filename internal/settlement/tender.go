package settlement

import "fmt"

// TenderType is the closed set of payment instruments. The payment
// factory switches exhaustively over these; adding a value here must be
// matched there.
type TenderType string

const (
	TenderCash           TenderType = "cash"
	TenderCheck          TenderType = "check"
	TenderCard           TenderType = "card"
	TenderDirectDebit    TenderType = "direct_debit"
	TenderMobileTransfer TenderType = "mobile_transfer"
	TenderCreditMemo     TenderType = "credit_memo"
	TenderZelle          TenderType = "zelle"
)

func ParseTenderType(s string) (TenderType, error) {
	switch t := TenderType(s); t {
	case TenderCash, TenderCheck, TenderCard, TenderDirectDebit,
		TenderMobileTransfer, TenderCreditMemo, TenderZelle:
		return t, nil
	}
	return "", fmt.Errorf("unknown tender type %q", s)
}

// Capability names the supervisor-gated actions.
type Capability string

const (
	CapApplyDiscount Capability = "apply_discount"
	CapRefund        Capability = "refund"
	CapWriteOff      Capability = "write_off"
	CapCloseCash     Capability = "close_cash"
)

func ParseCapability(s string) (Capability, error) {
	switch c := Capability(s); c {
	case CapApplyDiscount, CapRefund, CapWriteOff, CapCloseCash:
		return c, nil
	}
	return "", fmt.Errorf("unknown capability %q", s)
}
