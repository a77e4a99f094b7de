package api

import (
	"github.com/gin-gonic/gin"

	"medschool-core/internal/errs"
)

// loginRequest carries the strategy tag plus whichever credential
// field that strategy needs; password/SMS-code/OAuth-token
// verification itself is an external collaborator (§1 Non-goals) —
// this handler only issues a token once the caller is trusted.
type loginRequest struct {
	Strategy string `json:"strategy" binding:"required"` // "account", "sms", "dingtalk"
	UserID   string `json:"user_id" binding:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

// Login handles POST /api/v1/user/login. Real credential verification
// (password hashing, SMS code check, OAuth handshake) lives outside
// this core; this handler stands in for "the caller has already been
// authenticated by that strategy" and issues the bearer token the rest
// of the API depends on.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}
	switch req.Strategy {
	case "account", "sms", "dingtalk":
	default:
		writeError(c, errs.Business(40101, "unsupported login strategy"))
		return
	}

	token, err := h.verifier.Issue(req.UserID, h.accessTTL)
	if err != nil {
		writeError(c, errs.Wrap(errs.KindInternal, err, "issue access token"))
		return
	}
	writeOK(c, loginResponse{Token: token})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshToken handles POST /api/v1/user/refresh-token. Refresh-token
// storage/rotation is external; this re-issues an access token for the
// subject encoded in the (already-verified) refresh token.
func (h *Handler) RefreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}
	claims, err := h.verifier.Parse(req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	token, err := h.verifier.Issue(claims.UserID, h.accessTTL)
	if err != nil {
		writeError(c, errs.Wrap(errs.KindInternal, err, "issue access token"))
		return
	}
	writeOK(c, loginResponse{Token: token})
}
