package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/safar/boutique-store/internal/auth"
	"github.com/safar/boutique-store/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	HeaderUserID    = "X-User-ID"
	HeaderUserRole  = "X-User-Role"
	HeaderSessionID = "X-Session-ID"
	SessionCookie   = "boutique_session"

	identityKey = "identity"
)

// IdentityMiddleware turns the gateway's identity headers into an
// auth.Identity. Callers without a user id are anonymous and get a session id,
// minted on first contact and kept in a cookie.
func IdentityMiddleware(sessionTTL time.Duration, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := c.GetHeader(HeaderUserID); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			role := models.Role(c.GetHeader(HeaderUserRole))
			if err != nil || id <= 0 || !role.Valid() {
				log.WithFields(logrus.Fields{"user_id": raw, "role": role}).Warn("rejecting malformed identity headers")
				ErrorResponse(c, http.StatusUnauthorized, "invalid user identification")
				return
			}
			c.Set(identityKey, auth.User(id, role))
			c.Next()
			return
		}

		sid := c.GetHeader(HeaderSessionID)
		if sid == "" {
			sid, _ = c.Cookie(SessionCookie)
		}
		if sid == "" {
			sid = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, sid, int(sessionTTL.Seconds()), "/", "", false, true)

		c.Set(identityKey, auth.Anonymous(sid))
		c.Next()
	}
}

func identity(c *gin.Context) auth.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(auth.Identity); ok {
			return id
		}
	}
	return auth.Identity{}
}

func RequestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		latency := time.Since(startTime)
		statusCode := c.Writer.Status()

		entry := logger.WithFields(logrus.Fields{
			"status_code": statusCode,
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_ip":   c.ClientIP(),
			"latency_ms":  latency.Milliseconds(),
			"identity":    identity(c).String(),
		})

		switch {
		case statusCode >= 500:
			entry.Error("request completed with server error")
		case statusCode >= 400:
			entry.Warn("request completed with client error")
		default:
			entry.Info("request completed")
		}
	}
}
