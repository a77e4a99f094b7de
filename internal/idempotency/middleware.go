package idempotency

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"

	"medschool-core/internal/errs"
)

// HeaderName is the client-supplied idempotency key header (§4.3).
const HeaderName = "Idempotency-Key"

// capturedResponse is what the gate stores/replays: the downstream
// handler's status and (base64-encoded, for safe JSON round-tripping)
// body.
type capturedResponse struct {
	Status  int    `json:"status"`
	BodyB64 string `json:"body"`
}

// responseRecorder wraps gin.ResponseWriter to capture the body a
// handler writes, mirroring the forgo-saga idempotencyResponseWriter
// pattern — necessary because Gin handlers write directly to the
// writer rather than returning a value.
type responseRecorder struct {
	gin.ResponseWriter
	status int
	body   []byte
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body = append(r.body, b...)
	return r.ResponseWriter.Write(b)
}

// Middleware guards the wrapped route group with the idempotency gate.
// On the winning path it runs the rest of the chain and captures the
// response; on a replay it writes the captured status/body directly
// without re-running the chain, marking X-Idempotency-Replayed.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderName)
		if key == "" {
			c.Next()
			return
		}

		original := c.Writer
		ran := false

		resp, err := g.Run(c.Request.Context(), key, func(ctx context.Context) (any, error) {
			ran = true
			rec := &responseRecorder{ResponseWriter: original, status: 200}
			c.Writer = rec
			c.Next()
			c.Writer = original
			if len(c.Errors) > 0 {
				return nil, c.Errors.Last().Err
			}
			if rec.status >= http.StatusBadRequest {
				return nil, errs.New(errs.KindInternal, "idempotent handler responded with an error status")
			}
			return capturedResponse{Status: rec.status, BodyB64: base64.StdEncoding.EncodeToString(rec.body)}, nil
		})
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if ran {
			// Already written through to original by the wrapped writer.
			return
		}

		captured := toCapturedResponse(resp)
		body, decodeErr := base64.StdEncoding.DecodeString(captured.BodyB64)
		if decodeErr != nil {
			_ = c.Error(decodeErr)
			c.Abort()
			return
		}
		c.Header("X-Idempotency-Replayed", "true")
		c.Data(captured.Status, "application/json; charset=utf-8", body)
	}
}

// toCapturedResponse handles both the in-process winner path (a
// capturedResponse value returned directly) and the replay path
// (the gate decoded it from stored JSON into a generic map).
func toCapturedResponse(resp any) capturedResponse {
	if c, ok := resp.(capturedResponse); ok {
		return c
	}
	m, ok := resp.(map[string]any)
	if !ok {
		return capturedResponse{}
	}
	var c capturedResponse
	if s, ok := m["status"].(float64); ok {
		c.Status = int(s)
	}
	if b, ok := m["body"].(string); ok {
		c.BodyB64 = b
	}
	return c
}
