package oracle

import (
	"context"
	"sync/atomic"

	"github.com/orgmesh-labs/orgmesh/internal/models"
)

// Budgeted caps the number of calls forwarded to the wrapped oracle.
// Once the budget is exhausted it returns the Unknown quadruple without
// any network attempt.
type Budgeted struct {
	oracle    Oracle
	remaining atomic.Int64
}

// NewBudgeted wraps an oracle with a maximum-call budget.
func NewBudgeted(o Oracle, maxCalls int) *Budgeted {
	b := &Budgeted{oracle: o}
	b.remaining.Store(int64(maxCalls))
	return b
}

// Classify forwards while budget remains; a failed call still consumes
// its slot.
func (b *Budgeted) Classify(ctx context.Context, req Request) (*models.Enrichment, error) {
	if b.remaining.Add(-1) < 0 {
		return Unknown(), nil
	}
	return b.oracle.Classify(ctx, req)
}

// Remaining reports the budget left; negative values clamp to zero.
func (b *Budgeted) Remaining() int {
	n := b.remaining.Load()
	if n < 0 {
		return 0
	}
	return int(n)
}
