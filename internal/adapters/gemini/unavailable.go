package gemini

import (
	"context"

	"intake/internal/domain"
)

// Unavailable stands in for both services when no API key is configured.
// Every scan fails with ErrServiceUnavailable and users enter values by hand.
type Unavailable struct{}

func (Unavailable) Extract(context.Context, domain.Document) (domain.VehicleFields, error) {
	return domain.VehicleFields{}, domain.ErrServiceUnavailable
}

func (Unavailable) Decide(context.Context, domain.VehicleFields, domain.VehicleFields) (domain.Decisions, error) {
	return domain.Decisions{}, domain.ErrServiceUnavailable
}
