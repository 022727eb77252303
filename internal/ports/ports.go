package ports

import (
	"context"

	"intake/internal/domain"
)

// Extractor reads candidate vehicle fields from a document image. Fields it
// cannot read are left empty, never guessed.
type Extractor interface {
	Extract(ctx context.Context, doc domain.Document) (domain.VehicleFields, error)
}

// DecisionPolicy decides per field whether a candidate value should replace
// the current one. Implementations are stateless per call.
type DecisionPolicy interface {
	Decide(ctx context.Context, candidates, currents domain.VehicleFields) (domain.Decisions, error)
}
