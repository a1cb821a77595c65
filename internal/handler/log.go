package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"habitsync/internal/service"
)

type LogHandler struct {
	gateway *service.Gateway
}

func NewLogHandler(gateway *service.Gateway) *LogHandler {
	return &LogHandler{gateway: gateway}
}

type setLogRequest struct {
	DateKey   string `json:"dateKey"`
	HabitID   string `json:"habitId"`
	Completed *bool  `json:"completed"`
}

// GetRange handles GET /api/logs?startDate=&endDate=
func (h *LogHandler) GetRange(c *gin.Context) {
	entries, err := h.gateway.GetLogRange(c.Request.Context(), c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GetDay handles GET /api/logs/:dateKey
func (h *LogHandler) GetDay(c *gin.Context) {
	day, err := h.gateway.GetDay(c.Request.Context(), c.Param("dateKey"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

// SetLog handles POST /api/logs
func (h *LogHandler) SetLog(c *gin.Context) {
	var req setLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	if req.Completed == nil {
		badRequest(c, "completed is required")
		return
	}
	entry, err := h.gateway.SetLog(c.Request.Context(), req.DateKey, req.HabitID, *req.Completed)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// MarkDayPerfect handles POST /api/days/:dateKey/perfect
func (h *LogHandler) MarkDayPerfect(c *gin.Context) {
	day, err := h.gateway.MarkDayPerfect(c.Request.Context(), c.Param("dateKey"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"dateKey": c.Param("dateKey"),
		"habits":  day.Habits,
		"note":    day.Note,
	})
}
