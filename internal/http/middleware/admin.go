package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/http/response"
)

const HeaderAdminKey = "X-Admin-Key"

// RequireAdminKey rejects requests whose X-Admin-Key differs from key.
// An empty key disables the check.
func RequireAdminKey(key string) gin.HandlerFunc {
	if key == "" {
		return func(c *gin.Context) { c.Next() }
	}
	want := []byte(key)
	return func(c *gin.Context) {
		got := []byte(c.GetHeader(HeaderAdminKey))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("invalid admin key"))
			c.Abort()
			return
		}
		c.Next()
	}
}
