// Package chat implements chat session memory and multi-query RAG
// (C7): a rolling per-session message window kept in the keyed store,
// history-aware query rewriting and expansion, deduplicated vector
// retrieval, and streamed generation with post-stream persistence
// that is skipped if the caller disconnects mid-stream.
//
// Grounded on the original LangChain-based core/ai.py (init_chat_model
// over an OpenAI-compatible provider, PGVector for retrieval) and the
// session shape spec.md §3 describes for the keyed store (a hash of
// {last_message, created_time, session_id} plus an append-only message
// list and a per-user session-id set). The Go LLM client uses
// github.com/openai/openai-go (grounded on the gravitational/teleport
// sibling repo's dependency on it — the same "OpenAI-compatible chat
// model" shape the original's init_chat_model(model_provider='openai')
// targets) and the vector store uses github.com/jackc/pgx/v5 against a
// pgvector-enabled Postgres column (grounded on the pack's jackc/pgx
// usage as the Go equivalent of the original's langchain_postgres
// PGVector store) — no Go vector-database client appears anywhere in
// the example pack, so this is the closest in-pack stack to the
// original's PGVector client, justified in the project's design ledger.
package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
	"medschool-core/internal/keyedstore"
)

// Role is one of the two message envelope roles (§3).
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Envelope is one stored chat turn.
type Envelope struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Session is the hash half of the per-(user, session) structure.
type Session struct {
	SessionID   string `json:"session_id"`
	CreatedTime string `json:"created_time"`
	LastMessage string `json:"last_message"`
}

// lastMessagePreviewLen bounds the last_message field stored in the
// session hash (§4.7 step 6: "a 20-char prefix of the final answer").
const lastMessagePreviewLen = 20

// Store is the keyed-store-backed session memory: a hash, an
// append-only message list, and a per-user session-id set, with the
// invariant that the hash exists iff the session id is in the user's
// set (§3).
type Store struct {
	kv  keyedstore.Store
	log zerolog.Logger
}

// NewStore builds a Store over kv.
func NewStore(kv keyedstore.Store, log zerolog.Logger) *Store {
	return &Store{kv: kv, log: log.With().Str("component", "chat.session").Logger()}
}

func sessionHashKey(userID, sessionID string) string { return fmt.Sprintf("chat:%s:%s:meta", userID, sessionID) }
func sessionListKey(userID, sessionID string) string { return fmt.Sprintf("chat:%s:%s:messages", userID, sessionID) }
func userSessionSetKey(userID string) string         { return fmt.Sprintf("chat:%s:sessions", userID) }

// CreateSession writes the session hash and then registers the id in
// the user's session set. These are two separate store calls, not one
// atomic operation: if the second fails, the hash is left in place
// without a set entry.
func (s *Store) CreateSession(ctx context.Context, userID, sessionID string) (Session, error) {
	sess := Session{SessionID: sessionID, CreatedTime: time.Now().UTC().Format(time.RFC3339)}
	if err := s.kv.HSet(ctx, sessionHashKey(userID, sessionID), map[string]string{
		"session_id":   sess.SessionID,
		"created_time": sess.CreatedTime,
		"last_message": "",
	}); err != nil {
		return Session{}, errs.Wrap(errs.KindInternal, err, "write chat session hash")
	}
	if err := s.kv.SAdd(ctx, userSessionSetKey(userID), sessionID); err != nil {
		return Session{}, errs.Wrap(errs.KindInternal, err, "register chat session id")
	}
	return sess, nil
}

// Exists checks the session-id set, the side of the invariant the
// hash's existence is defined against.
func (s *Store) Exists(ctx context.Context, userID, sessionID string) (bool, error) {
	ids, err := s.kv.SMembers(ctx, userSessionSetKey(userID))
	if err != nil {
		return false, errs.Wrap(errs.KindInternal, err, "read user session set")
	}
	for _, id := range ids {
		if id == sessionID {
			return true, nil
		}
	}
	return false, nil
}

// Window returns the last W message envelopes for (userID, sessionID)
// in chronological order, oldest first (§4.7 step 1).
func (s *Store) Window(ctx context.Context, userID, sessionID string, w int) ([]Envelope, error) {
	raw, err := s.kv.LRange(ctx, sessionListKey(userID, sessionID), int64(-w), -1)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, err, "read chat session window")
	}
	out := make([]Envelope, 0, len(raw))
	for _, r := range raw {
		out = append(out, decodeEnvelope(r))
	}
	return out, nil
}

// Append persists the user question and assistant answer and updates
// last_message with its 20-char prefix (§4.7 step 6). Callers must not
// call this after a cancelled stream — the spec treats that exchange
// as never having happened.
func (s *Store) Append(ctx context.Context, userID, sessionID, question, answer string) error {
	listKey := sessionListKey(userID, sessionID)
	if err := s.kv.RPush(ctx, listKey, encodeEnvelope(Envelope{Role: RoleUser, Content: question}), encodeEnvelope(Envelope{Role: RoleAssistant, Content: answer})); err != nil {
		return errs.Wrap(errs.KindInternal, err, "append chat turn")
	}

	preview := answer
	if runes := []rune(preview); len(runes) > lastMessagePreviewLen {
		preview = string(runes[:lastMessagePreviewLen])
	}
	if err := s.kv.HSet(ctx, sessionHashKey(userID, sessionID), map[string]string{"last_message": preview}); err != nil {
		return errs.Wrap(errs.KindInternal, err, "update session last_message")
	}
	return nil
}

func encodeEnvelope(e Envelope) string {
	return string(e.Role) + "\x1f" + e.Content
}

func decodeEnvelope(raw string) Envelope {
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\x1f' {
			return Envelope{Role: Role(raw[:i]), Content: raw[i+1:]}
		}
	}
	return Envelope{Role: RoleUser, Content: raw}
}
