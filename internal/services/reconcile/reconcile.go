// Package reconcile merges OCR candidate values into a record's vehicle
// fields under a decision policy.
//
// A field is overwritten only when the policy approves it and the candidate
// is non-empty. The chassis number is only ever written by the registration
// document; later documents cannot replace it whatever the policy says.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"intake/internal/domain"
	"intake/internal/ports"
)

// identityFields are established by the canonical source only.
var identityFields = map[domain.Field]domain.DocumentSource{
	domain.FieldChassisNumber: domain.SourceRegistration,
}

// FieldsFor returns the fields evaluated for a scan of source. Both documents
// cover the full vehicle field set.
// TODO: restrict label scans to plate fields once product confirms whether a
// label may overwrite owner/trade name set from the registration document.
func FieldsFor(source domain.DocumentSource) []domain.Field {
	return domain.VehicleFieldOrder
}

// Writable reports whether a scan of source may write field f at all.
func Writable(f domain.Field, source domain.DocumentSource) bool {
	canonical, ok := identityFields[f]
	return !ok || canonical == source
}

// Apply returns current with every approved, non-empty, writable candidate
// applied to fields. It is pure.
func Apply(current, candidate domain.VehicleFields, decisions domain.Decisions, source domain.DocumentSource, fields []domain.Field) domain.VehicleFields {
	out := current
	for _, f := range fields {
		value := strings.TrimSpace(candidate.Get(f))
		if value == "" || !decisions.Approved(f) || !Writable(f, source) {
			continue
		}
		out = out.Set(f, value)
	}
	return out
}

// Result describes one reconciliation pass.
type Result struct {
	Candidates domain.VehicleFields `json:"candidates"`
	Decisions  domain.Decisions     `json:"decisions"`
	Fields     domain.VehicleFields `json:"fields"`
	Changed    []domain.Field       `json:"changed"`
}

type Reconciler struct {
	extractor ports.Extractor
	policy    ports.DecisionPolicy
	log       *zap.Logger
}

func New(extractor ports.Extractor, policy ports.DecisionPolicy, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{extractor: extractor, policy: policy, log: log}
}

// Run extracts candidates from doc, asks the policy, and returns the merged
// fields. On any error no fields are returned, so callers apply all or nothing.
func (r *Reconciler) Run(ctx context.Context, doc domain.Document, current domain.VehicleFields) (Result, error) {
	if len(doc.Data) == 0 {
		return Result{}, fmt.Errorf("%s document: %w", doc.Source, domain.ErrFileUnreadable)
	}
	candidates, err := r.extractor.Extract(ctx, doc)
	if err != nil {
		return Result{}, classify("extract", err)
	}
	candidates = candidates.Normalized()

	decisions, err := r.policy.Decide(ctx, candidates, current)
	if err != nil {
		return Result{}, classify("decide", err)
	}

	fields := FieldsFor(doc.Source)
	merged := Apply(current, candidates, decisions, doc.Source, fields)
	res := Result{Candidates: candidates, Decisions: decisions, Fields: merged}
	for _, f := range fields {
		if merged.Get(f) != current.Get(f) {
			res.Changed = append(res.Changed, f)
		}
		if f == domain.FieldChassisNumber && !Writable(f, doc.Source) && decisions.Approved(f) &&
			candidates.Get(f) != "" && candidates.Get(f) != current.Get(f) {
			r.log.Warn("ignored chassis number from non-canonical document",
				zap.String("source", string(doc.Source)),
				zap.String("current", current.Get(f)),
				zap.String("candidate", candidates.Get(f)))
		}
	}
	return res, nil
}

func classify(stage string, err error) error {
	switch {
	case errors.Is(err, domain.ErrServiceUnavailable),
		errors.Is(err, domain.ErrFileUnreadable),
		errors.Is(err, domain.ErrScanFailed):
		return fmt.Errorf("%s: %w", stage, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", stage, domain.Wrap(domain.ErrServiceUnavailable, err))
	}
	return fmt.Errorf("%s: %w", stage, domain.Wrap(domain.ErrScanFailed, err))
}
