package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/wearable-sync/internal/dto"
	"go.uber.org/zap"
)

// allow applies the per-action rate limit to subject. When the limit is
// exceeded the 429 response is written and false returned. Limiter failures
// let the request through.
func (h *IntegrationHandler) allow(c *gin.Context, action, subject string) bool {
	if h.limiter == nil || h.rateLimit.Requests <= 0 {
		return true
	}

	key := fmt.Sprintf("whoop:%s:%s", action, subject)
	allowed, retryAfter, err := h.limiter.Allow(c.Request.Context(), key, h.rateLimit.Requests, h.rateLimit.Window)
	if err != nil {
		h.logger.Warn("Rate limiter unavailable", zap.String("action", action), zap.Error(err))
		return true
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(h.rateLimit.Requests))
	if allowed {
		return true
	}

	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
		Error:   "Too Many Requests",
		Message: fmt.Sprintf("rate limit exceeded, try again in %v", retryAfter),
	})
	return false
}
