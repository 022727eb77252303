package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"intake/internal/domain"
)

const policySystem = `You decide, per field, whether a newly scanned value should replace the value already on file.
Approve when the current value is empty, or when the new value is a clearly better reading of the same data
(fixes OCR errors, completes truncation). Reject when the new value is empty, less complete, or refers to a
different vehicle or person. Answer with one boolean per field.`

// Policy implements ports.DecisionPolicy.
type Policy struct{ c *Client }

func NewPolicy(c *Client) *Policy { return &Policy{c: c} }

func (p *Policy) Decide(ctx context.Context, candidates, currents domain.VehicleFields) (domain.Decisions, error) {
	payload, err := json.Marshal(struct {
		New     domain.VehicleFields `json:"new"`
		Current domain.VehicleFields `json:"current"`
	}{candidates, currents})
	if err != nil {
		return domain.Decisions{}, err
	}
	parts := []*genai.Part{genai.NewPartFromText("Decide which fields to override:\n" + string(payload))}
	text, err := p.c.generateJSON(ctx, policySystem, parts, decisionsSchema())
	if err != nil {
		return domain.Decisions{}, err
	}
	return parseDecisions(text)
}

func parseDecisions(text string) (domain.Decisions, error) {
	var out domain.Decisions
	if err := json.Unmarshal([]byte(stripFence(text)), &out); err != nil {
		return domain.Decisions{}, domain.Wrap(domain.ErrScanFailed, fmt.Errorf("decode decisions: %w", err))
	}
	return out, nil
}
