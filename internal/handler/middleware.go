package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/wearable-sync/internal/dto"
)

// authenticate validates the bearer token and adds user info to context.
// On failure the 401 response is written and false returned.
func (h *IntegrationHandler) authenticate(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Authorization header is required",
		})
		return "", false
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Invalid authorization header format",
		})
		return "", false
	}

	claims, err := h.auth.Authenticate(c.Request.Context(), parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error:   "Unauthorized",
			Message: "Invalid or expired token",
		})
		return "", false
	}

	c.Set("user_id", claims.UserID)
	c.Set("email", claims.Email)

	return claims.UserID, true
}
