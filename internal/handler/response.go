package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"habitsync/internal/apperr"
)

// StatusOf maps an error's kind to the HTTP status it is served with.
func StatusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(StatusOf(err), gin.H{
		"error":   apperr.KindOf(err).String(),
		"message": err.Error(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   apperr.KindValidation.String(),
		"message": msg,
	})
}
