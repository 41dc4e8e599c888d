// Package gateway wraps the external model capabilities consumed by the
// application: text embedding ("text -> fixed-length vector") and grounded
// generation ("message sequence -> text"). The production implementations
// talk to the Gemini API; both are constructed once at process start from a
// shared client and injected into the components that need them.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/supportdesk/go-kb-backend/internal/config"
	"github.com/supportdesk/go-kb-backend/internal/domain"
)

// Embedder converts text into a fixed-dimension semantic vector.
//
// Implementations must be safe for concurrent use, honor the context, and
// return an error for unreachable capability or malformed output; callers
// map any error to the embedding-unavailable failure kind.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Turn is one prior utterance replayed into a generation request.
type Turn struct {
	Role    string // domain.RoleUser or domain.RoleAssistant
	Content string
}

// Generator produces an answer from a system instruction, prior turns, and
// the new question.
//
// Implementations must be safe for concurrent use and honor the context;
// callers map any error to the generation-failed failure kind.
type Generator interface {
	Generate(ctx context.Context, system string, history []Turn, question string) (string, error)
}

// NewGeminiClient dials the Gemini API once for the process lifetime.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// GeminiEmbedder implements Embedder over a Gemini embedding model.
type GeminiEmbedder struct {
	model   *genai.EmbeddingModel
	dim     int
	timeout time.Duration
}

// NewGeminiEmbedder binds the configured embedding model from a shared client.
func NewGeminiEmbedder(client *genai.Client, cfg config.GenAIConfig) *GeminiEmbedder {
	return &GeminiEmbedder{
		model:   client.EmbeddingModel(cfg.EmbeddingModel),
		dim:     cfg.EmbeddingDim,
		timeout: cfg.EmbedTimeout,
	}
}

// Embed returns the embedding vector for text. The call is bounded by the
// configured timeout; a transport failure, a timeout, or a response with the
// wrong dimensionality is an error.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if res == nil || res.Embedding == nil {
		return nil, fmt.Errorf("embedding response empty")
	}
	if got := len(res.Embedding.Values); got != e.dim {
		return nil, fmt.Errorf("embedding dimensionality %d, want %d", got, e.dim)
	}
	return res.Embedding.Values, nil
}

// GeminiGenerator implements Generator over a Gemini chat model.
type GeminiGenerator struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiGenerator binds the configured generative model from a shared client.
func NewGeminiGenerator(client *genai.Client, cfg config.GenAIConfig) *GeminiGenerator {
	return &GeminiGenerator{
		client:  client,
		model:   cfg.GenerativeModel,
		timeout: cfg.GenerateTimeout,
	}
}

// Generate sends system instruction + replayed history + question as one chat
// exchange and returns the generated text. The call is bounded by the
// configured timeout; an empty candidate set is an error.
func (g *GeminiGenerator) Generate(ctx context.Context, system string, history []Turn, question string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

	session := model.StartChat()
	for _, t := range history {
		role := "user"
		if t.Role == domain.RoleAssistant {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(question))
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	answer := flattenResponse(resp)
	if answer == "" {
		return "", fmt.Errorf("generation returned no text")
	}
	return answer, nil
}

// flattenResponse joins the text parts of the first candidate.
func flattenResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(b.String())
}

var (
	_ Embedder  = (*GeminiEmbedder)(nil)
	_ Generator = (*GeminiGenerator)(nil)
)
