package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	apperr "github.com/flatfinder/flatfinder/internal/errors"
)

// userHeader carries the uid minted by the external auth provider. The
// service trusts it as an opaque identity; verifying it is the gateway's job.
const userHeader = "X-User-ID"

// RequireUser rejects requests without a uid and stashes it in the context.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(userHeader))
		if uid == "" {
			apperr.Respond(c, apperr.Unauthenticated("missing "+userHeader+" header"))
			return
		}
		c.Set("uid", uid)
		c.Next()
	}
}
