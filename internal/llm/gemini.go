package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"smart-shopping-list/internal/config"
	"smart-shopping-list/internal/metrics"
	"smart-shopping-list/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const agentName = "product_suggester"

// GeminiSuggester proposes product details with a Gemini vision model.
type GeminiSuggester struct {
	client    *genai.Client
	model     ContentGenerator
	modelName string
	limiter   *rate.Limiter
	recorder  MetaRecorder
	locale    string
	log       logrus.FieldLogger
}

var _ Suggester = (*GeminiSuggester)(nil)

// NewGeminiSuggester creates a suggester from cfg. Without an API key the
// suggester is disabled rather than failing.
func NewGeminiSuggester(ctx context.Context, cfg *config.Config, recorder MetaRecorder) (*GeminiSuggester, error) {
	if !cfg.SuggestionsEnabled() {
		logrus.Warn("GEMINI_API_KEY is not set, product suggestions are disabled")
		return Disabled(), nil
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.GeminiModel)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = suggestionSchema()

	s := newSuggester(model, cfg.GeminiModel, cfg.SuggestionsPerMinute, cfg.Locale, recorder)
	s.client = client
	return s, nil
}

// Disabled returns a suggester that never suggests.
func Disabled() *GeminiSuggester {
	return &GeminiSuggester{log: logrus.StandardLogger()}
}

func newSuggester(model ContentGenerator, modelName string, perMinute int, locale string, recorder MetaRecorder) *GeminiSuggester {
	if perMinute < 1 {
		perMinute = 1
	}
	return &GeminiSuggester{
		model:     model,
		modelName: modelName,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute),
		recorder:  recorder,
		locale:    locale,
		log:       logrus.StandardLogger(),
	}
}

func suggestionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name": {
				Type:        genai.TypeString,
				Description: "The name of the product (max 5 words).",
			},
			"description": {
				Type:        genai.TypeString,
				Description: "A short description of the product (max 20 words).",
			},
		},
		Required: []string{"name", "description"},
	}
}

// Available reports whether suggestions can be requested at all.
func (s *GeminiSuggester) Available() bool {
	return s.model != nil
}

// SuggestFromDataURL decodes a base64 image data URL and suggests from it.
func (s *GeminiSuggester) SuggestFromDataURL(ctx context.Context, dataURL string) *Suggestion {
	if !s.Available() {
		s.log.Warn("Product suggestions are disabled")
		return nil
	}
	mimeType, data, err := ParseDataURL(dataURL)
	if err != nil {
		s.log.WithError(err).Warn("Cannot suggest product details")
		return nil
	}
	return s.Suggest(ctx, data, mimeType)
}

// Suggest asks the model for a product name and description matching image.
func (s *GeminiSuggester) Suggest(ctx context.Context, image []byte, mimeType string) *Suggestion {
	if !s.Available() {
		s.log.Warn("Product suggestions are disabled")
		return nil
	}
	if len(image) == 0 {
		s.log.Warn("Cannot suggest product details from an empty image")
		return nil
	}
	if !s.limiter.Allow() {
		s.log.Warn("Product suggestion rate limit reached")
		s.finish(ctx, shared.AgentMeta{Outcome: shared.OutcomeRateLimited})
		return nil
	}

	start := time.Now()
	resp, err := s.model.GenerateContent(ctx,
		genai.Blob{MIMEType: mimeType, Data: image},
		genai.Text(promptFor(s.locale)),
	)
	meta := shared.AgentMeta{Latency: time.Since(start), Usage: s.usage(resp)}
	if err != nil {
		s.log.WithError(err).Warn("Failed to suggest product details")
		meta.Outcome = shared.OutcomeFailed
		s.finish(ctx, meta)
		return nil
	}

	suggestion, reason := parseSuggestion(responseText(resp))
	if suggestion == nil {
		s.log.WithField("reason", reason).Warn("Model response did not contain a product suggestion")
		meta.Outcome = shared.OutcomeInvalid
		s.finish(ctx, meta)
		return nil
	}

	meta.Outcome = shared.OutcomeOK
	s.finish(ctx, meta)
	return suggestion
}

// Close closes the underlying Gemini client.
func (s *GeminiSuggester) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *GeminiSuggester) finish(ctx context.Context, meta shared.AgentMeta) {
	meta.AgentName = agentName
	metrics.ObserveSuggestion(meta.Outcome)
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordMeta(ctx, meta); err != nil {
		s.log.WithError(err).Warn("Failed to record suggestion metrics")
	}
}

func (s *GeminiSuggester) usage(resp *genai.GenerateContentResponse) shared.TokenUsage {
	u := shared.TokenUsage{Model: s.modelName}
	if resp == nil || resp.UsageMetadata == nil {
		return u
	}
	u.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
	u.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	u.TotalTokens = int(resp.UsageMetadata.TotalTokenCount)
	return u
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return strings.TrimSpace(b.String())
}

// parseSuggestion accepts a JSON object whose name and description are both strings.
func parseSuggestion(text string) (*Suggestion, string) {
	if text == "" {
		return nil, "empty response"
	}
	if !gjson.Valid(text) {
		return nil, "response is not JSON"
	}
	doc := gjson.Parse(text)
	if !doc.IsObject() {
		return nil, "response is not a JSON object"
	}
	name, description := doc.Get("name"), doc.Get("description")
	if name.Type != gjson.String || description.Type != gjson.String {
		return nil, "name or description missing or not a string"
	}
	return &Suggestion{Name: name.String(), Description: description.String()}, ""
}
