package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"intake/internal/domain"
)

var fieldHints = map[domain.Field]string{
	domain.FieldChassisNumber:      "Vehicle identification number (VIN / chassis number, field E on a registration certificate).",
	domain.FieldBrand:              "Make of the vehicle (field D.1).",
	domain.FieldType:               "Type designation (field D.2).",
	domain.FieldTradeName:          "Commercial description / trade name (field D.3).",
	domain.FieldOwner:              "Name of the registered holder or owner.",
	domain.FieldTypeApprovalNumber: "EU type-approval number, e.g. e4*2007/46*0001*05 (field K).",
	domain.FieldTypeAndVariant:     "Type, variant and version as printed together on the label.",
}

const extractSystem = `You read vehicle documents. Return only values printed on the image.
Leave a field as an empty string when it is absent or unreadable. Never guess or complete partial values.`

// Extractor implements ports.Extractor.
type Extractor struct{ c *Client }

func NewExtractor(c *Client) *Extractor { return &Extractor{c: c} }

func (e *Extractor) Extract(ctx context.Context, doc domain.Document) (domain.VehicleFields, error) {
	if len(doc.Data) == 0 {
		return domain.VehicleFields{}, domain.ErrFileUnreadable
	}
	mime := doc.MIMEType
	if !strings.HasPrefix(mime, "image/") && mime != "application/pdf" {
		mime = http.DetectContentType(doc.Data)
	}
	prompt := fmt.Sprintf("Extract the vehicle fields from this %s.", documentNoun(doc.Source))
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(doc.Data, mime),
	}
	text, err := e.c.generateJSON(ctx, extractSystem, parts, fieldsSchema(fieldHints))
	if err != nil {
		return domain.VehicleFields{}, err
	}
	fields, err := parseFields(text)
	if err != nil {
		return domain.VehicleFields{}, err
	}
	e.c.log.Debug("fields extracted", zap.String("source", string(doc.Source)), zap.String("document", doc.Name))
	return fields, nil
}

func parseFields(text string) (domain.VehicleFields, error) {
	var out domain.VehicleFields
	if err := json.Unmarshal([]byte(stripFence(text)), &out); err != nil {
		return domain.VehicleFields{}, domain.Wrap(domain.ErrScanFailed, fmt.Errorf("decode fields: %w", err))
	}
	return out.Normalized(), nil
}

func documentNoun(s domain.DocumentSource) string {
	if s == domain.SourceLabel {
		return "vehicle identification label (type plate)"
	}
	return "vehicle registration certificate"
}

// stripFence removes a ```json fence some models add despite the schema.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}
