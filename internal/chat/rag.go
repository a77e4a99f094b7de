package chat

import (
	"context"

	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
)

// retrievalTopK is k in the per-query top-k retrieval (§4.7 step 4).
const retrievalTopK = 2

// windowSize is W, the rolling history window (§3 default W=10).
const windowSize = 10

// Engine runs the full per-request RAG algorithm (§4.7).
type Engine struct {
	sessions *Store
	model    ChatModel
	vectors  VectorStore
	log      zerolog.Logger
}

// NewEngine builds an Engine from its dependencies.
func NewEngine(sessions *Store, model ChatModel, vectors VectorStore, log zerolog.Logger) *Engine {
	return &Engine{sessions: sessions, model: model, vectors: vectors, log: log.With().Str("component", "chat.rag").Logger()}
}

// Ask runs steps 1–5 of §4.7, forwarding each generated chunk to
// onChunk, then persists the exchange (step 6) unless ctx was
// cancelled mid-stream — in which case persistence is skipped and the
// exchange is treated as never having happened.
func (e *Engine) Ask(ctx context.Context, userID, sessionID, question string, onChunk func(string)) error {
	exists, err := e.sessions.Exists(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if !exists {
		return errs.NotFound("chat session not found")
	}

	history, err := e.sessions.Window(ctx, userID, sessionID, windowSize)
	if err != nil {
		return err
	}

	standalone := question
	if len(history) > 0 {
		standalone, err = e.model.Rewrite(ctx, history, question)
		if err != nil {
			return err
		}
	}

	queries, err := e.model.ExpandQueries(ctx, standalone)
	if err != nil {
		return err
	}

	var allDocs []Document
	for _, q := range queries {
		docs, err := e.vectors.Search(ctx, q, retrievalTopK)
		if err != nil {
			return err
		}
		allDocs = append(allDocs, docs...)
	}
	allDocs = DedupeByContent(allDocs)

	contextDocs := make([]string, len(allDocs))
	for i, d := range allDocs {
		contextDocs[i] = d.Content
	}

	answer, err := e.model.StreamAnswer(ctx, contextDocs, history, standalone, onChunk)
	if err != nil {
		// A cancellation mid-stream ends the stream cleanly without
		// persisting (§4.7 "Cancellation"); any other generation error
		// is surfaced, also without persisting a partial exchange.
		return err
	}

	if err := ctx.Err(); err != nil {
		return nil
	}
	return e.sessions.Append(context.WithoutCancel(ctx), userID, sessionID, question, answer)
}
