package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"lexportal-backend/pkg/jwt"
	"lexportal-backend/pkg/response"
)

// Gin context keys set by AuthMiddleware
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
	ContextName   = "name"
)

// AuthMiddleware creates a Gin middleware that validates JWT tokens.
// Browsers cannot set headers on a WebSocket upgrade, so the token may also
// come as the "token" query parameter.
// If valid, it sets user_id, role and name in the Gin context.
//
// The practice has exactly one lawyer, lawyerID. A lawyer-role token for any
// other subject, or a client-role token for lawyerID, is rejected so that
// role checks and identity checks always agree.
func AuthMiddleware(jwtManager *jwt.JWTManager, lawyerID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "Authorization header required")
			c.Abort()
			return
		}

		claims, err := jwtManager.ValidateToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Invalid token")
			c.Abort()
			return
		}

		if (claims.Role == jwt.RoleLawyer) != (claims.UserID == lawyerID) {
			response.Forbidden(c, "Role does not match the practice lawyer")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextName, claims.Name)
		c.Next()
	}
}

// RequireRole rejects authenticated users whose role is not listed
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		response.Forbidden(c, "Insufficient role")
		c.Abort()
	}
}

// UserID returns the authenticated user id, empty when unauthenticated
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// Role returns the authenticated role
func Role(c *gin.Context) string {
	return c.GetString(ContextRole)
}

func bearerToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}
