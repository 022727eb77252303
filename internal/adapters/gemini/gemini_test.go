package gemini

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"intake/internal/domain"
)

type fakeModels struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestExtractSendsImageAndParsesFields(t *testing.T) {
	m := &fakeModels{text: `{"chassisNumber":" YV2RT40A5KB123456 ","brand":"VOLVO","owner":""}`}
	ex := NewExtractor(newClient(m, "test-model", nil))

	got, err := ex.Extract(context.Background(), domain.Document{
		Source: domain.SourceRegistration, Name: "reg.jpg", MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.VehicleFields{ChassisNumber: "YV2RT40A5KB123456", Brand: "VOLVO"}, got)

	assert.Equal(t, "test-model", m.model)
	require.Len(t, m.contents, 1)
	require.Len(t, m.contents[0].Parts, 2)
	require.NotNil(t, m.contents[0].Parts[1].InlineData)
	assert.Equal(t, "image/jpeg", m.contents[0].Parts[1].InlineData.MIMEType)
	assert.Equal(t, "application/json", m.config.ResponseMIMEType)
	assert.Contains(t, m.config.ResponseSchema.Properties, "typeApprovalNumber")
}

func TestExtractSniffsUnknownMIMEType(t *testing.T) {
	m := &fakeModels{text: `{}`}
	ex := NewExtractor(newClient(m, "test-model", nil))
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	_, err := ex.Extract(context.Background(), domain.Document{Source: domain.SourceLabel, MIMEType: "application/octet-stream", Data: png})
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.contents[0].Parts[1].InlineData.MIMEType)
}

func TestExtractRejectsEmptyDocument(t *testing.T) {
	m := &fakeModels{}
	_, err := NewExtractor(newClient(m, "x", nil)).Extract(context.Background(), domain.Document{})
	assert.ErrorIs(t, err, domain.ErrFileUnreadable)
	assert.Nil(t, m.contents)
}

func TestDecideParsesBooleans(t *testing.T) {
	m := &fakeModels{text: "```json\n{\"chassisNumber\":true,\"brand\":false,\"owner\":true}\n```"}
	got, err := NewPolicy(newClient(m, "x", nil)).Decide(context.Background(),
		domain.VehicleFields{ChassisNumber: "CH1"}, domain.VehicleFields{})
	require.NoError(t, err)
	assert.Equal(t, domain.Decisions{ChassisNumber: true, Owner: true}, got)
	assert.Contains(t, m.contents[0].Parts[0].Text, `"new":{"chassisNumber":"CH1"`)
}

func TestMalformedResponseIsScanFailure(t *testing.T) {
	m := &fakeModels{text: "sorry, I cannot read this"}
	_, err := NewPolicy(newClient(m, "x", nil)).Decide(context.Background(), domain.VehicleFields{}, domain.VehicleFields{})
	assert.ErrorIs(t, err, domain.ErrScanFailed)

	m.text = "   "
	_, err = NewExtractor(newClient(m, "x", nil)).Extract(context.Background(), domain.Document{Data: []byte("x"), MIMEType: "image/png"})
	assert.ErrorIs(t, err, domain.ErrScanFailed)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want error
	}{
		{genai.APIError{Code: 429, Message: "Resource has been exhausted"}, domain.ErrServiceUnavailable},
		{fmt.Errorf("call: %w", genai.APIError{Code: 503, Message: "The model is overloaded"}), domain.ErrServiceUnavailable},
		{genai.APIError{Code: 400, Message: "invalid argument"}, domain.ErrScanFailed},
		{errors.New("model is overloaded, try later"), domain.ErrServiceUnavailable},
		{context.DeadlineExceeded, domain.ErrServiceUnavailable},
		{errors.New("boom"), domain.ErrScanFailed},
	}
	for _, tc := range cases {
		assert.ErrorIs(t, classify(tc.err), tc.want, tc.err.Error())
	}
}

func TestUnavailable(t *testing.T) {
	_, err := Unavailable{}.Extract(context.Background(), domain.Document{})
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	_, err = Unavailable{}.Decide(context.Background(), domain.VehicleFields{}, domain.VehicleFields{})
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}
