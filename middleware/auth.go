package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docqa-backend/internal/auth"
	"docqa-backend/models"
	"docqa-backend/utils"
)

type AuthMiddleware struct {
	tokens *auth.TokenService
}

func NewAuthMiddleware(tokens *auth.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth validates the bearer token and stores the caller's identity
// on the request context. Every protected handler reads the owner identity
// from here, never from the request body.
func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := a.tokens.ValidateAccessToken(c.Request.Context(), tokenString)
		if err != nil {
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_role", claims.Role)
		c.Next()
	}
}

// RequireRole gates a route group on the caller's role. Must run after
// RequireAuth.
func (a *AuthMiddleware) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("user_role") != role {
			utils.RespondWithError(c, http.StatusForbidden, "forbidden", "Insufficient permissions", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated owner identity set by RequireAuth.
func CurrentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// IsAdmin reports whether the caller carries the admin role.
func IsAdmin(c *gin.Context) bool {
	return c.GetString("user_role") == models.RoleAdmin
}
