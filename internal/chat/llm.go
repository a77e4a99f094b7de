package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
)

// maxExpandedQueries caps the multi-query expansion at 4 total,
// including the original (§4.7 step 3).
const maxExpandedQueries = 4

// ChatModel is the narrow LLM surface C7 depends on: rewriting a
// question given history, proposing alternative queries, and
// streaming a final answer. Implemented here over openai-go against
// an OpenAI-compatible provider, mirroring the original's
// init_chat_model(model='qwen-flash', model_provider='openai').
type ChatModel interface {
	// Rewrite resolves pronouns/ellipsis in question using history,
	// returning a self-contained standalone question.
	Rewrite(ctx context.Context, history []Envelope, question string) (string, error)
	// ExpandQueries returns question itself first, followed by up to 3
	// alternative phrasings of it (synonym expansion, sub-question
	// decomposition).
	ExpandQueries(ctx context.Context, question string) ([]string, error)
	// StreamAnswer generates the final answer for a RAG(context) +
	// history + question prompt, invoking onChunk for each delta.
	// It must stop and return ctx.Err() if ctx is cancelled mid-stream.
	StreamAnswer(ctx context.Context, contextDocs []string, history []Envelope, question string, onChunk func(string)) (string, error)
}

// OpenAIChatModel is the openai-go-backed ChatModel.
type OpenAIChatModel struct {
	client *openai.Client
	model  string
	log    zerolog.Logger
}

// NewOpenAIChatModel builds a ChatModel talking to baseURL (an
// OpenAI-compatible endpoint) with apiKey, using model for every call.
func NewOpenAIChatModel(baseURL, apiKey, model string, log zerolog.Logger) *OpenAIChatModel {
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))
	return &OpenAIChatModel{client: &client, model: model, log: log.With().Str("component", "chat.llm").Logger()}
}

func (m *OpenAIChatModel) Rewrite(ctx context.Context, history []Envelope, question string) (string, error) {
	if len(history) == 0 {
		return question, nil
	}

	prompt := "Rewrite the final user question into a self-contained standalone question, " +
		"resolving any pronouns or references using the conversation history below. " +
		"Reply with only the rewritten question.\n\n" + formatHistory(history) + "\nQuestion: " + question

	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: m.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, err, "rewrite chat question")
	}
	rewritten := strings.TrimSpace(firstChoiceContent(resp))
	if rewritten == "" {
		return question, nil
	}
	return rewritten, nil
}

func (m *OpenAIChatModel) ExpandQueries(ctx context.Context, question string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Propose up to %d alternative search queries for the question below — synonym "+
			"expansion or sub-question decomposition. Reply with one query per line, no numbering.\n\nQuestion: %s",
		maxExpandedQueries-1, question,
	)
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: m.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "expand chat queries")
	}

	queries := []string{question}
	for _, line := range strings.Split(firstChoiceContent(resp), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == question {
			continue
		}
		queries = append(queries, line)
		if len(queries) >= maxExpandedQueries {
			break
		}
	}
	return queries, nil
}

func (m *OpenAIChatModel) StreamAnswer(ctx context.Context, contextDocs []string, history []Envelope, question string, onChunk func(string)) (string, error) {
	messages := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(ragSystemPrompt(contextDocs)),
	}
	for _, h := range history {
		if h.Role == RoleAssistant {
			messages = append(messages, openai.AssistantMessage(h.Content))
		} else {
			messages = append(messages, openai.UserMessage(h.Content))
		}
	}
	messages = append(messages, openai.UserMessage(question))

	stream := m.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    m.model,
		Messages: messages,
	})
	defer stream.Close()

	var full strings.Builder
	for stream.Next() {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		chunk := stream.Current()
		for _, choice := range chunk.Choices {
			delta := choice.Delta.Content
			if delta == "" {
				continue
			}
			full.WriteString(delta)
			onChunk(delta)
		}
	}
	if err := stream.Err(); err != nil {
		return full.String(), errs.Wrap(errs.KindInternal, err, "stream chat answer")
	}
	return full.String(), nil
}

func ragSystemPrompt(contextDocs []string) string {
	if len(contextDocs) == 0 {
		return "You are a helpful medical education assistant. Answer using your general knowledge."
	}
	return "You are a helpful medical education assistant. Answer using only the context below when relevant.\n\nContext:\n" +
		strings.Join(contextDocs, "\n---\n")
}

func formatHistory(history []Envelope) string {
	var b strings.Builder
	for _, h := range history {
		b.WriteString(string(h.Role))
		b.WriteString(": ")
		b.WriteString(h.Content)
		b.WriteString("\n")
	}
	return b.String()
}

func firstChoiceContent(resp *openai.ChatCompletion) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}
