package middleware

import (
	"github.com/abhissng/conduit/blame"
	"github.com/abhissng/conduit/utils/constant"
	"github.com/abhissng/conduit/utils/helpers"
	"github.com/gin-gonic/gin"
)

// AbortWithBlame stops the chain and writes b as an error response. Causes
// are only exposed outside production.
func AbortWithBlame(c *gin.Context, b blame.Blame) {
	var opts []blame.SendErrorResponseOption
	if helpers.IsProdEnvironment() {
		opts = append(opts, blame.WithoutCauses())
	}
	c.AbortWithStatusJSON(helpers.FetchHTTPStatusCode(b.FetchResponseType()), b.FetchErrorResponse(opts...))
}

// FetchClaims returns the claims stored by JWTAuthMiddleware, or nil.
func FetchClaims(c *gin.Context) map[string]any {
	v, ok := c.Get(constant.Claims)
	if !ok {
		return nil
	}
	claims, _ := v.(map[string]any)
	return claims
}
