package anthropic

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Attributes is the structured tuple extracted from one raw invoice
// description. Zero numeric fields mean the attribute is absent.
type Attributes struct {
	Name  string  `json:"name"`
	Lab   string  `json:"lab"`
	MG    float64 `json:"mg"`
	ML    float64 `json:"ml"`
	UI    float64 `json:"ui"`
	Units int     `json:"units"`
}

// ExtractorConfig tunes the extraction calls.
type ExtractorConfig struct {
	Model          string
	MaxTokens      int64
	RequestsPerSec float64
}

const extractSystemPrompt = `You extract structured attributes from Brazilian pharmaceutical invoice line descriptions (NFe).
Given one description, respond with ONLY a JSON object, no prose:
{"name": "<product or active ingredient name, uppercase, no dosage>",
 "lab": "<manufacturer name if present, else empty>",
 "mg": <dosage in milligrams, 0 if absent>,
 "ml": <volume in milliliters, 0 if absent>,
 "ui": <international units, 0 if absent>,
 "units": <package unit count, 0 if absent>}
Convert grams to milligrams. Descriptions are often abbreviated and misspelled; normalize to the registered commercial name when it is recognizable.`

// Extractor calls the API to derive matching attributes for
// descriptions that every other cascade stage failed on. Calls are rate
// limited; one failed extraction never aborts a batch.
type Extractor struct {
	client  Client
	cfg     ExtractorConfig
	limiter *rate.Limiter
	log     *zap.Logger
}

// NewExtractor wires an extractor over a client.
func NewExtractor(client Client, cfg ExtractorConfig) *Extractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2
	}
	return &Extractor{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		log:     zap.L().With(zap.String("component", "anthropic")),
	}
}

// Extract asks the model for the structured attributes of one raw
// description.
func (e *Extractor) Extract(ctx context.Context, description string) (Attributes, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return Attributes{}, eris.Wrap(err, "anthropic: rate limit wait")
	}

	temp := 0.0
	resp, err := e.client.CreateMessage(ctx, MessageRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		System:      extractSystemPrompt,
		Messages:    []Message{{Role: "user", Content: description}},
		Temperature: &temp,
	})
	if err != nil {
		return Attributes{}, err
	}
	resp.Usage.LogCost(e.cfg.Model, "extract")

	var text strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}

	attrs, err := parseAttributes(text.String())
	if err != nil {
		return Attributes{}, err
	}
	e.log.Debug("extracted attributes",
		zap.String("description", description),
		zap.String("name", attrs.Name))
	return attrs, nil
}

// parseAttributes decodes the model's JSON answer, tolerating markdown
// code fences around it.
func parseAttributes(text string) (Attributes, error) {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}

	var attrs Attributes
	if err := json.Unmarshal([]byte(s), &attrs); err != nil {
		return Attributes{}, eris.Wrap(err, "anthropic: parse extraction response")
	}
	if attrs.Name == "" {
		return Attributes{}, eris.New("anthropic: extraction returned no name")
	}
	return attrs, nil
}
