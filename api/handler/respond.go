// Package handler implements the HTTP endpoints of the crawl service.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pricecrawl/models"
)

// respondError maps err to an HTTP status code and writes a structured
// JSON error response.
func respondError(c *gin.Context, err error) {
	c.JSON(statusOf(err), models.ErrorResponse{Error: models.ToErrorDetail(err)})
}

func invalidInput(c *gin.Context, err error) {
	respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, err.Error(), err))
}

// statusOf translates error codes to HTTP status codes.
func statusOf(err error) int {
	switch models.CodeOf(err) {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation, models.ErrCodeSessionLost, models.ErrCodeBrowserCrash:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRunActive:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
