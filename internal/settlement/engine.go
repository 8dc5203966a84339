package settlement

import (
	"context"
	"time"

	"tillpoint/internal/database/models"
)

// Engine is the order settlement and payment allocation core. All
// entry points run as one atomic unit against the Store; the document
// processor is the only external collaborator with side effects of its
// own, and it runs inside the same unit.
type Engine struct {
	store     Store
	converter *Converter
	processor DocumentProcessor
	now       func() time.Time
}

type EngineOption func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(store Store, converter *Converter, processor DocumentProcessor, opts ...EngineOption) *Engine {
	e := &Engine{
		store:     store,
		converter: converter,
		processor: processor,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// complete drives a document through the processor and persists its
// completed status. A processor rejection leaves the document untouched
// and aborts the enclosing transaction.
func (e *Engine) complete(ctx context.Context, tx Store, ref DocumentRef, persist func() error) error {
	if err := e.processor.Complete(ctx, tx, ref); err != nil {
		return &DocumentProcessingError{Ref: ref, Message: err.Error()}
	}
	return persist()
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func (e *Engine) getActiveSeller(ctx context.Context, tx Store, posID, userID int64) (*models.SellerAllocation, error) {
	seller, err := tx.FindSellerAllocation(ctx, posID, userID)
	if err != nil {
		if err == ErrNotFound {
			return nil, newValidation("seller", "seller is not allocated to this point of sale")
		}
		return nil, err
	}
	if !seller.IsActive {
		return nil, newValidation("seller", "seller allocation is deactivated")
	}
	return seller, nil
}
