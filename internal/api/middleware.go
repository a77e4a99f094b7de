// Package api assembles the Gin HTTP surface: request logging,
// panic recovery, bearer-token auth, the idempotency gate, and one
// error-handling middleware that maps internal/errs.Kind to the
// {code, message, data} response envelope, replacing the teacher's ad
// hoc gin.H{"error": ...} call sites with a single place.
package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medschool-core/internal/errs"
	"medschool-core/internal/user"
)

// Logger is a Gin middleware that logs every request with method,
// path, status, and latency via zerolog instead of the teacher's bare
// log.Printf.
func Logger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("client_ip", c.ClientIP()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Recovery wraps Gin's panic recovery, logging the panic struct with
// zerolog and responding through the same error envelope every other
// failure uses.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Interface("panic", rec).Str("path", c.Request.URL.Path).Msg("recovered panic")
				writeError(c, errs.Wrap(errs.KindInternal, nil, "internal server error"))
				c.Abort()
			}
		}()
		c.Next()
	}
}

// claimsKey is the gin.Context key auth stores the verified Claims
// under.
const claimsKey = "user.claims"

// Auth verifies the bearer token on every request in the group it is
// mounted on and stores the resulting user.Claims on the context.
func Auth(verifier *user.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := verifier.ParseHeader(c.GetHeader("Authorization"))
		if err != nil {
			writeError(c, err)
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// AdminAuth guards the operator-only routes cmd/admin calls, checking
// a static bearer token against configured admin.token rather than a
// user.Verifier — these routes act on process-local state (live
// sessions, idempotency records), not on a particular user's identity.
func AdminAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" || c.GetHeader("Authorization") != "Bearer "+token {
			writeError(c, errs.Unauthorized("invalid or missing admin token"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFrom reads the Claims Auth attached to c.
func ClaimsFrom(c *gin.Context) (user.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return user.Claims{}, false
	}
	claims, ok := v.(user.Claims)
	return claims, ok
}

// ErrorHandler inspects any error attached to the Gin context by a
// handler that returned early via c.Error(err) and writes the
// envelope — most handlers call writeError directly instead, but this
// catches anything that falls through without one.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, c.Errors.Last().Err)
	}
}

// writeError maps err to the {code, message, data} envelope and the
// transport status for its Kind (§7).
func writeError(c *gin.Context, err error) {
	e, ok := errs.As(err)
	if !ok {
		e = errs.Wrap(errs.KindInternal, err, "internal server error")
	}
	c.JSON(e.Kind.StatusCode(), errs.Envelope{Code: e.Code, Message: e.Message})
}

// writeOK writes a successful {code:200, message:"ok", data} envelope.
func writeOK(c *gin.Context, data any) {
	c.JSON(200, errs.Envelope{Code: 200, Message: "ok", Data: data})
}
