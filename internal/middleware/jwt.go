package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eventportal/backend/internal/auth"
	"github.com/eventportal/backend/pkg/apperror"
	"github.com/eventportal/backend/pkg/response"
)

const (
	// ContextUserID holds the operator uuid.UUID.
	ContextUserID = "user_id"
	// ContextUserRole holds the operator models.Role.
	ContextUserRole = "user_role"
	// ContextUserEmail holds the operator email.
	ContextUserEmail = "user_email"
)

var errMissingToken = apperror.New(apperror.KindUnauthenticated, apperror.CodeUnauthenticated, "missing bearer token")

// JWT requires a valid operator bearer token and stores its claims in the context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			response.Error(c, errMissingToken)
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
