package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/supportdesk/go-kb-backend/internal/gateway"
	"github.com/supportdesk/go-kb-backend/internal/repo"
	"github.com/supportdesk/go-kb-backend/internal/retrieval"
)

// systemPromptTmpl instructs the model to answer strictly from the supplied
// excerpts. The excerpts are injected per request; history carries no
// context blocks, so each turn stands on its own retrieval.
const systemPromptTmpl = `You are a support assistant answering questions about a single product's user manuals.

Answer using ONLY the manual excerpts below. If the excerpts do not contain the answer, say you could not find it in the manuals. Never invent steps, settings, or product behavior that the excerpts do not state. Answer in the language of the question.

Manual excerpts:
%s`

// Retriever finds the chunks most similar to a query embedding, hard-scoped
// to one service.
type Retriever interface {
	Search(ctx context.Context, queryVector []float32, serviceID, limit int) ([]retrieval.Result, error)
}

// Answer is the outcome of one Ask turn.
type Answer struct {
	// SessionID identifies the (user, service) conversation.
	SessionID string `json:"session_id"`
	// Text is the assistant answer shown to the user.
	Text string `json:"answer"`
	// Grounded is false on the fixed decline path.
	Grounded bool `json:"grounded"`
	// ChunkIDs are the retrieved chunks the answer was generated from.
	ChunkIDs []string `json:"context_chunk_ids"`
	// SourcePages are the distinct manual pages backing the answer, in
	// retrieval rank order.
	SourcePages []int `json:"source_pages"`
	// ResponseTime is the end-to-end duration in seconds.
	ResponseTime float64 `json:"response_time"`
}

// ChatService orchestrates one grounded conversation turn: embed the
// question, retrieve in-service chunks, replay recent history, generate, and
// persist the turn and its query log together.
type ChatService struct {
	DB        *gorm.DB
	Embedder  gateway.Embedder
	Retriever Retriever
	Generator gateway.Generator
	Log       zerolog.Logger

	// DeclineAnswer is returned verbatim when retrieval is empty.
	DeclineAnswer string
	// RetrievalLimit caps retrieved chunks per question.
	RetrievalLimit int
	// HistoryWindow caps prior messages replayed to the model.
	HistoryWindow int
	// MaxQuestionLen caps accepted question length in runes.
	MaxQuestionLen int
}

// SessionKey derives the deterministic conversation id for a (user, service)
// pair. The same pair always maps to the same session, so history survives
// restarts without a session store.
func SessionKey(userID string, serviceID int) string {
	name := fmt.Sprintf("user_%s_service_%d", userID, serviceID)
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(name)).String()
}

// Ask answers one question for userID scoped to serviceID.
//
// When no chunk of the service matches, the fixed decline answer is returned
// and neither history nor the query log is written; a declined turn must not
// pollute the model's context on the next question.
func (s *ChatService) Ask(ctx context.Context, userID string, serviceID int, question string) (*Answer, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Ask",
		trace.WithAttributes(attribute.Int("service.id", serviceID)),
	)
	defer span.End()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if s.MaxQuestionLen > 0 && utf8.RuneCountInString(question) > s.MaxQuestionLen {
		return nil, ErrQuestionTooLong
	}

	if _, err := repo.GetService(ctx, s.DB, serviceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	started := time.Now()
	sessionID := SessionKey(userID, serviceID)

	vec, err := s.Embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	results, err := s.Retriever.Search(ctx, vec, serviceID, s.RetrievalLimit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		s.Log.Info().
			Str("session_id", sessionID).
			Int("service_id", serviceID).
			Msg("no matching chunks, declining")
		return &Answer{
			SessionID:    sessionID,
			Text:         s.DeclineAnswer,
			Grounded:     false,
			ChunkIDs:     []string{},
			SourcePages:  []int{},
			ResponseTime: time.Since(started).Seconds(),
		}, nil
	}

	contextBlock, chunkIDs, pages := buildContext(results)

	turns, err := repo.ListRecentTurns(ctx, s.DB, sessionID, s.HistoryWindow)
	if err != nil {
		return nil, err
	}
	history := make([]gateway.Turn, 0, len(turns))
	for _, t := range turns {
		history = append(history, gateway.Turn{Role: t.Role, Content: t.Content})
	}

	system := fmt.Sprintf(systemPromptTmpl, contextBlock)
	answer, err := s.Generator.Generate(ctx, system, history, question)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	elapsed := time.Since(started).Seconds()

	// History and the query log commit together: a logged question always
	// has its turn pair and vice versa.
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.AppendTurnPair(tx, sessionID, question, answer); err != nil {
			return err
		}
		_, err := repo.CreateQueryLog(tx, userID, serviceID, question, answer, chunkIDs, elapsed)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Answer{
		SessionID:    sessionID,
		Text:         answer,
		Grounded:     true,
		ChunkIDs:     chunkIDs,
		SourcePages:  pages,
		ResponseTime: elapsed,
	}, nil
}

// buildContext renders retrieved chunks as the prompt's excerpt block and
// collects their ids and distinct page numbers in rank order.
func buildContext(results []retrieval.Result) (string, []string, []int) {
	var b strings.Builder
	ids := make([]string, 0, len(results))
	pages := make([]int, 0, len(results))
	seen := make(map[int]bool, len(results))
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Page %d]: %s", r.PageNumber, r.Content)
		ids = append(ids, r.ChunkID)
		if !seen[r.PageNumber] {
			seen[r.PageNumber] = true
			pages = append(pages, r.PageNumber)
		}
	}
	return b.String(), ids, pages
}
