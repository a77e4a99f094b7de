package api

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"medschool-core/internal/errs"
	"medschool-core/internal/idgen"
)

type createChatSessionResponse struct {
	SessionID string `json:"session_id"`
}

// CreateChatSession handles POST /api/v1/ai/chat/create-session, the
// session bootstrap C7 depends on before the first /ai/chat call.
func (h *Handler) CreateChatSession(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, errs.Unauthorized("missing authentication"))
		return
	}
	sessionID := idgen.New()
	if _, err := h.chatStore.CreateSession(c.Request.Context(), claims.UserID, sessionID); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, createChatSessionResponse{SessionID: sessionID})
}

type chatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Question  string `json:"question" binding:"required"`
}

// Chat handles POST /api/v1/ai/chat (§6: streaming text/event-stream,
// C7). Each generated chunk is flushed as one SSE "message" event;
// errors mid-stream end the stream cleanly with an "error" event
// rather than an HTTP status change, since headers are already sent.
func (h *Handler) Chat(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, errs.Unauthorized("missing authentication"))
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	flusher, canFlush := c.Writer.(interface{ Flush() })
	onChunk := func(chunk string) {
		fmt.Fprintf(c.Writer, "event: message\ndata: %s\n\n", sseEscape(chunk))
		if canFlush {
			flusher.Flush()
		}
	}

	err := h.chat.Ask(c.Request.Context(), claims.UserID, req.SessionID, req.Question, onChunk)
	if err != nil {
		fmt.Fprintf(c.Writer, "event: error\ndata: %s\n\n", sseEscape(err.Error()))
		if canFlush {
			flusher.Flush()
		}
		return
	}
	fmt.Fprint(c.Writer, "event: done\ndata: {}\n\n")
	if canFlush {
		flusher.Flush()
	}
}

// sseEscape keeps a chunk on a single SSE data line; newlines would
// otherwise be parsed as separate data fields.
func sseEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, ' ')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}
