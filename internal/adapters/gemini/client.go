// Package gemini implements the extraction service and the override decision
// policy on Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"intake/internal/domain"
)

const DefaultModel = "gemini-2.5-flash"

type Config struct {
	APIKey string
	Model  string
}

// generator is the slice of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client holds one genai client shared by Extractor and Policy.
type Client struct {
	models generator
	model  string
	log    *zap.Logger
}

func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newClient(client.Models, model, log), nil
}

func newClient(models generator, model string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{models: models, model: model, log: log}
}

// generateJSON sends parts with a JSON response schema and returns the raw text.
func (c *Client) generateJSON(ctx context.Context, system string, parts []*genai.Part, schema *genai.Schema) (string, error) {
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    schema,
	}
	resp, err := c.models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		return "", classify(err)
	}
	if resp == nil {
		return "", fmt.Errorf("empty response: %w", domain.ErrScanFailed)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("empty response: %w", domain.ErrScanFailed)
	}
	return text, nil
}

// classify maps API failures onto the domain taxonomy: overload and
// unavailability become ErrServiceUnavailable, the rest ErrScanFailed.
func classify(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code = apiErrPtr.Code
	}
	switch code {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusGatewayTimeout, http.StatusInternalServerError:
		return domain.Wrap(domain.ErrServiceUnavailable, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(strings.ToLower(err.Error()), "overloaded") {
		return domain.Wrap(domain.ErrServiceUnavailable, err)
	}
	return domain.Wrap(domain.ErrScanFailed, err)
}

// fieldsSchema describes a VehicleFields object of optional strings.
func fieldsSchema(describe map[domain.Field]string) *genai.Schema {
	props := make(map[string]*genai.Schema, len(domain.VehicleFieldOrder))
	order := make([]string, 0, len(domain.VehicleFieldOrder))
	for _, f := range domain.VehicleFieldOrder {
		props[string(f)] = &genai.Schema{Type: genai.TypeString, Description: describe[f]}
		order = append(order, string(f))
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props, PropertyOrdering: order}
}

func decisionsSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(domain.VehicleFieldOrder))
	order := make([]string, 0, len(domain.VehicleFieldOrder))
	for _, f := range domain.VehicleFieldOrder {
		props[string(f)] = &genai.Schema{Type: genai.TypeBoolean}
		order = append(order, string(f))
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: order, PropertyOrdering: order}
}
