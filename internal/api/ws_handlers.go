package api

import (
	"github.com/gin-gonic/gin"

	"medschool-core/internal/errs"
)

// WebSocket handles GET /api/v1/ws/{client_id} (§6: "token query
// param"), C4's connection entry point. Auth is done here rather than
// via the Auth middleware because the WebSocket handshake carries its
// token as a query parameter, not an Authorization header.
func (h *Handler) WebSocket(c *gin.Context) {
	clientID := c.Param("client_id")
	token := c.Query("token")
	claims, err := h.verifier.Parse(token)
	if err != nil || claims.UserID != clientID {
		c.Status(401)
		return
	}
	h.sessions.Handler(c, clientID)
}

type wsSendRequest struct {
	Message string `json:"message" binding:"required"`
}

// WSSend handles POST /api/v1/ws/send/{client_id}, the directed-send
// scenario (§8 scenario 4).
func (h *Handler) WSSend(c *gin.Context) {
	var req wsSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}
	clientID := c.Param("client_id")
	if delivered := h.sessions.SendTo(clientID, []byte(req.Message)); !delivered {
		writeError(c, errs.NotFound("client is not connected"))
		return
	}
	writeOK(c, gin.H{"message": "Message sent", "client_id": clientID})
}

type wsBroadcastRequest struct {
	Content string `json:"content" binding:"required"`
}

// WSBroadcast handles POST /api/v1/ws/broadcast.
func (h *Handler) WSBroadcast(c *gin.Context) {
	var req wsBroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}
	h.sessions.Broadcast([]byte(req.Content))
	writeOK(c, gin.H{"recipients": h.sessions.Count()})
}
