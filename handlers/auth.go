package handlers

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// BearerAuth rejects requests whose bearer token does not match tokenHash,
// a bcrypt hash. Verified tokens are remembered so bcrypt runs once per token.
func BearerAuth(tokenHash string) gin.HandlerFunc {
	var verified sync.Map

	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok || tokenHash == "" {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid bearer token")
			return
		}

		if _, hit := verified.Load(token); !hit {
			if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid bearer token")
				return
			}
			verified.Store(token, struct{}{})
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
