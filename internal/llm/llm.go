package llm

import (
	"context"

	"smart-shopping-list/internal/shared"

	"github.com/google/generative-ai-go/genai"
)

// Suggestion is a proposed product name and description for an image.
type Suggestion struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Suggester proposes product details from a product photo. A nil result means
// "no suggestion"; failures are never surfaced as errors.
type Suggester interface {
	Available() bool
	Suggest(ctx context.Context, image []byte, mimeType string) *Suggestion
	SuggestFromDataURL(ctx context.Context, dataURL string) *Suggestion
}

// ContentGenerator is the multimodal call of a generative model.
// *genai.GenerativeModel satisfies it.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// MetaRecorder persists the metadata of completed model calls.
type MetaRecorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}
