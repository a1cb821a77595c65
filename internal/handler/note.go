package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"habitsync/internal/service"
)

type NoteHandler struct {
	gateway *service.Gateway
}

func NewNoteHandler(gateway *service.Gateway) *NoteHandler {
	return &NoteHandler{gateway: gateway}
}

// GetDailyNote handles GET /api/notes/daily/:dateKey
func (h *NoteHandler) GetDailyNote(c *gin.Context) {
	note, err := h.gateway.GetDailyNote(c.Request.Context(), c.Param("dateKey"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"note": note.Note})
}

// SetDailyNote handles POST /api/notes/daily
func (h *NoteHandler) SetDailyNote(c *gin.Context) {
	var req struct {
		DateKey string `json:"dateKey"`
		Note    string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	note, err := h.gateway.SetDailyNote(c.Request.Context(), req.DateKey, req.Note)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}

// GetGlobalNote handles GET /api/notes/global
func (h *NoteHandler) GetGlobalNote(c *gin.Context) {
	note, err := h.gateway.GetGlobalNote(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": note.Content})
}

// SetGlobalNote handles POST /api/notes/global
func (h *NoteHandler) SetGlobalNote(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	note, err := h.gateway.SetGlobalNote(c.Request.Context(), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, note)
}
