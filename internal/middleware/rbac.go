package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/carpool-api/internal/models"
	appErrors "github.com/noah-isme/carpool-api/pkg/errors"
	"github.com/noah-isme/carpool-api/pkg/response"
)

// RBAC enforces role-based access control for routes. Besides role names it
// understands two marker grants: "SELF" passes when the :id route param is
// the caller's user id, and "OWN_FAMILY" passes when the :familyId route
// param is the caller's family.
func RBAC(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		allowSelf := false
		allowOwnFamily := false
		allowedRoles := make(map[models.UserRole]struct{})

		for _, a := range allowed {
			switch a {
			case "SELF":
				allowSelf = true
			case "OWN_FAMILY":
				allowOwnFamily = true
			default:
				allowedRoles[models.UserRole(a)] = struct{}{}
			}
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if targetID := c.Param("id"); targetID != "" && targetID == claims.UserID {
				c.Next()
				return
			}
		}

		if allowOwnFamily && claims.FamilyID != "" {
			if targetID := c.Param("familyId"); targetID != "" && targetID == claims.FamilyID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireRoles is a helper that accepts a list of roles.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	return RBAC(allowed...)
}
