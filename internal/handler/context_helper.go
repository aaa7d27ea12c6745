package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coop-registration-api/internal/middleware"
	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
	"github.com/noah-isme/coop-registration-api/pkg/response"
)

// currentUser returns the caller's claims, writing a 401 when the route was not behind JWT.
func currentUser(c *gin.Context) (*models.JWTClaims, bool) {
	claims := middleware.ClaimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message))
		return false
	}
	return true
}
