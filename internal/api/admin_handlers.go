package api

import (
	"github.com/gin-gonic/gin"
)

// AdminListSessions reports the client ids with a live WebSocket
// connection on this replica, backing the operator CLI's "sessions"
// command.
func (h *Handler) AdminListSessions(c *gin.Context) {
	ids := h.sessions.ClientIDs()
	writeOK(c, gin.H{"client_ids": ids, "count": len(ids)})
}

// AdminForceExpireIdempotencyKey deletes the idempotency record for
// key, unblocking a caller stuck behind a PROCESSING record left by a
// crashed winner.
func (h *Handler) AdminForceExpireIdempotencyKey(c *gin.Context) {
	key := c.Param("key")
	if err := h.idempotent.ForceExpire(c.Request.Context(), key); err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"key": key, "expired": true})
}
