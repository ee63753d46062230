package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns a canned response and records the last request.
type fakeClient struct {
	resp *MessageResponse
	err  error
	last MessageRequest
}

func (f *fakeClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	f.last = req
	return f.resp, f.err
}

func textResponse(text string) *MessageResponse {
	return &MessageResponse{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

func TestExtract(t *testing.T) {
	fc := &fakeClient{resp: textResponse(
		`{"name": "DIPIRONA MONOIDRATADA", "lab": "EMS", "mg": 500, "units": 10}`,
	)}
	e := NewExtractor(fc, ExtractorConfig{Model: "claude-haiku-4-5-20251001"})

	attrs, err := e.Extract(context.Background(), "DIP MONO 500MG CX 10 CP EMS")
	require.NoError(t, err)
	assert.Equal(t, "DIPIRONA MONOIDRATADA", attrs.Name)
	assert.Equal(t, "EMS", attrs.Lab)
	assert.Equal(t, 500.0, attrs.MG)
	assert.Equal(t, 10, attrs.Units)

	assert.Equal(t, "claude-haiku-4-5-20251001", fc.last.Model)
	require.Len(t, fc.last.Messages, 1)
	assert.Equal(t, "DIP MONO 500MG CX 10 CP EMS", fc.last.Messages[0].Content)
	require.NotNil(t, fc.last.Temperature)
	assert.Zero(t, *fc.last.Temperature)
}

func TestExtractStripsCodeFences(t *testing.T) {
	fc := &fakeClient{resp: textResponse("```json\n{\"name\": \"NOVALGINA\", \"mg\": 1000}\n```")}
	e := NewExtractor(fc, ExtractorConfig{Model: "m"})

	attrs, err := e.Extract(context.Background(), "NOVALG 1G")
	require.NoError(t, err)
	assert.Equal(t, "NOVALGINA", attrs.Name)
	assert.Equal(t, 1000.0, attrs.MG)
}

func TestExtractRejectsMissingName(t *testing.T) {
	fc := &fakeClient{resp: textResponse(`{"mg": 500}`)}
	e := NewExtractor(fc, ExtractorConfig{Model: "m"})

	_, err := e.Extract(context.Background(), "500MG")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no name")
}

func TestExtractRejectsProse(t *testing.T) {
	fc := &fakeClient{resp: textResponse("I could not identify this product.")}
	e := NewExtractor(fc, ExtractorConfig{Model: "m"})

	_, err := e.Extract(context.Background(), "???")
	require.Error(t, err)
}

func TestEstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 500_000}
	assert.InDelta(t, 0.80+2.00, u.EstimateCost("claude-haiku-4-5-20251001"), 0.0001)
	assert.Zero(t, u.EstimateCost("unknown-model"))
}
