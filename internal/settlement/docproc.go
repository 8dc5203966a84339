package settlement

import "context"

// DocumentKind identifies which table a DocumentRef points into.
type DocumentKind string

const (
	DocOrder         DocumentKind = "order"
	DocPayment       DocumentKind = "payment"
	DocAllocation    DocumentKind = "allocation"
	DocCreditMemo    DocumentKind = "credit_memo"
	DocBankStatement DocumentKind = "bank_statement"
)

type DocumentRef struct {
	Kind DocumentKind
	ID   int64
}

// DocumentProcessor performs the ledger-level side effects of a status
// transition. The engine treats it as opaque: a returned error aborts
// the enclosing transaction and surfaces the processor's message
// verbatim, and no status change is persisted.
type DocumentProcessor interface {
	Complete(ctx context.Context, tx Store, ref DocumentRef) error
}

// NoopProcessor accepts every transition. Used where ledger posting is
// handled out of band.
type NoopProcessor struct{}

func (NoopProcessor) Complete(_ context.Context, _ Store, _ DocumentRef) error { return nil }
