package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigiapreco/cmed-cli/pkg/anthropic"
)

type cannedClient struct {
	text string
}

func (c *cannedClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: c.text}},
	}, nil
}

func TestAttributeExtractorAdapter(t *testing.T) {
	client := &cannedClient{text: `{"name": "NOVALGINA", "lab": "SANOFI", "mg": 1000, "units": 10}`}
	a := attributeExtractor{ex: anthropic.NewExtractor(client, anthropic.ExtractorConfig{Model: "m"})}

	attrs, err := a.ExtractAttributes(context.Background(), "NOVALG 1G C/10")
	require.NoError(t, err)
	assert.Equal(t, "NOVALGINA", attrs.Name)
	assert.Equal(t, "SANOFI", attrs.Lab)
	assert.Equal(t, 1000.0, attrs.Quantities.MG)
	assert.Equal(t, 10, attrs.Quantities.UnitCount)
	assert.Zero(t, attrs.Quantities.ML)
}
