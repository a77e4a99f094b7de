package api

import (
	"github.com/gin-gonic/gin"

	"medschool-core/internal/behavior"
	"medschool-core/internal/errs"
)

type courseRecommendRequest struct {
	N                 int  `json:"top_n"`
	ExcludeInteracted bool `json:"exclude_interacted"`
}

// CourseRecommend handles POST /api/v1/recommendation/course-recommend
// (C6).
func (h *Handler) CourseRecommend(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, errs.Unauthorized("missing authentication"))
		return
	}
	var req courseRecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}
	n := req.N
	if n <= 0 {
		n = 10
	}

	recs, err := h.recommend.Recommend(c.Request.Context(), claims.UserID, n, req.ExcludeInteracted)
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"items": recs})
}

type recordBehaviorRequest struct {
	CourseID    string         `json:"course_id" binding:"required"`
	Action      string         `json:"action" binding:"required"`
	ActionValue *float64       `json:"action_value"`
	Extra       map[string]any `json:"extra"`
}

// RecordBehavior handles POST /api/v1/recommendation/record-behavior
// (C5 publisher).
func (h *Handler) RecordBehavior(c *gin.Context) {
	claims, ok := ClaimsFrom(c)
	if !ok {
		writeError(c, errs.Unauthorized("missing authentication"))
		return
	}
	var req recordBehaviorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errs.Validation(err.Error()))
		return
	}

	accepted, err := h.behaviors.Record(c.Request.Context(), behavior.RecordRequest{
		UserID:      claims.UserID,
		CourseID:    req.CourseID,
		Action:      behavior.ActionType(req.Action),
		ActionValue: req.ActionValue,
		Extra:       req.Extra,
		IP:          clientIP(c),
		UserAgent:   c.Request.UserAgent(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	writeOK(c, gin.H{"accepted": accepted})
}

// clientIP honors X-Forwarded-For's first hop (§6 "Headers consumed")
// ahead of Gin's own RemoteAddr-derived ClientIP.
func clientIP(c *gin.Context) string {
	if fwd := c.Request.Header.Get("X-Forwarded-For"); fwd != "" {
		for i, ch := range fwd {
			if ch == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	return c.ClientIP()
}
