package chat

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
)

// Document is one retrieved passage (§4.7 step 4).
type Document struct {
	Content string
}

// Embedder turns text into the vector the store's similarity search
// is indexed on. A separate interface from ChatModel because the
// original uses a distinct embeddings client (DashScopeEmbeddings)
// from the chat model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorStore is the retrieval side of RAG: nearest-neighbor search
// over an embedded document collection.
type VectorStore interface {
	// Search returns the topK nearest documents to query.
	Search(ctx context.Context, query string, topK int) ([]Document, error)
}

// PGVectorStore is a VectorStore backed by a pgvector-enabled Postgres
// column, accessed via jackc/pgx/v5 — the closest in-pack Go
// equivalent to the original's langchain_postgres.PGVector store.
type PGVectorStore struct {
	pool     *pgxpool.Pool
	table    string
	embedder Embedder
	log      zerolog.Logger
}

// NewPGVectorStore builds a PGVectorStore reading from table, which
// must have a `content text` column and an `embedding vector` column
// (the pgvector extension's type).
func NewPGVectorStore(pool *pgxpool.Pool, table string, embedder Embedder, log zerolog.Logger) *PGVectorStore {
	return &PGVectorStore{pool: pool, table: table, embedder: embedder, log: log.With().Str("component", "chat.vectorstore").Logger()}
}

func (v *PGVectorStore) Search(ctx context.Context, query string, topK int) ([]Document, error) {
	vec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "embed retrieval query")
	}

	rows, err := v.pool.Query(ctx,
		"SELECT content FROM "+v.table+" ORDER BY embedding <=> $1 LIMIT $2",
		pgVector(vec), topK,
	)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "vector similarity search")
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, errs.Wrap(errs.KindInternal, err, "scan vector search row")
		}
		docs = append(docs, Document{Content: content})
	}
	return docs, rows.Err()
}

// pgVector renders a float32 slice in pgvector's textual input format
// (e.g. "[0.1,0.2,0.3]"), avoiding a dependency on pgvector-go's
// bespoke wire codec for a single textual query parameter.
func pgVector(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', 8, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// DedupeByContent removes documents whose stripped page content is an
// exact duplicate of one already seen, preserving first-seen order
// (§4.7 step 4).
func DedupeByContent(docs []Document) []Document {
	seen := make(map[string]struct{}, len(docs))
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		key := strings.TrimSpace(d.Content)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}
