package chat

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
)

// OpenAIEmbedder is the Embedder backing PGVectorStore, talking to the
// same OpenAI-compatible endpoint as OpenAIChatModel but against the
// embeddings endpoint instead of chat completions — the closest
// in-pack equivalent to the original's DashScopeEmbeddings client.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIEmbedder builds an Embedder over baseURL/apiKey, using model
// for every embedding call (e.g. "text-embedding-3-small").
func NewOpenAIEmbedder(baseURL, apiKey, model string, log zerolog.Logger) *OpenAIEmbedder {
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))
	return &OpenAIEmbedder{client: &client, model: model, log: log.With().Str("component", "chat.embed").Logger()}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: e.model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "embed text")
	}
	if len(resp.Data) == 0 {
		return nil, errs.New(errs.KindInternal, "embedding response contained no data")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, f := range resp.Data[0].Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}
