package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/carpool-api/internal/middleware"
	"github.com/noah-isme/carpool-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// familyIDFromClaims returns the caller's family attachment, nil when the
// account has no family yet.
func familyIDFromClaims(claims *models.JWTClaims) *string {
	if claims == nil || claims.FamilyID == "" {
		return nil
	}
	id := claims.FamilyID
	return &id
}
