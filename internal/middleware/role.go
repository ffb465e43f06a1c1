package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/eventportal/backend/internal/models"
	"github.com/eventportal/backend/pkg/apperror"
	"github.com/eventportal/backend/pkg/response"
)

var errForbidden = apperror.New(apperror.KindForbidden, apperror.CodeForbidden, "role not allowed")

// RequireRole allows only operators with one of roles. It must run after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, ok := c.Get(ContextUserRole)
		if !ok {
			response.Error(c, errMissingToken)
			c.Abort()
			return
		}
		if _, ok := allowed[role.(models.Role)]; !ok {
			response.Error(c, errForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
