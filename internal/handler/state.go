package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"habitsync/internal/service"
)

type StateHandler struct {
	gateway *service.Gateway
}

func NewStateHandler(gateway *service.Gateway) *StateHandler {
	return &StateHandler{gateway: gateway}
}

// GetState handles GET /api/state, the full-state fetch clients resync from.
func (h *StateHandler) GetState(c *gin.Context) {
	st, err := h.gateway.State(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// GetStats handles GET /api/stats
func (h *StateHandler) GetStats(c *gin.Context) {
	summary, err := h.gateway.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
