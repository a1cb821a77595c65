package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"habitsync/internal/service"
)

type HabitHandler struct {
	gateway *service.Gateway
}

func NewHabitHandler(gateway *service.Gateway) *HabitHandler {
	return &HabitHandler{gateway: gateway}
}

// ListHabits handles GET /api/habits
func (h *HabitHandler) ListHabits(c *gin.Context) {
	habits, err := h.gateway.ListHabits(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, habits)
}

// CreateHabit handles POST /api/habits
func (h *HabitHandler) CreateHabit(c *gin.Context) {
	var req service.HabitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	habit, err := h.gateway.CreateHabit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, habit)
}

// UpdateHabit handles PUT /api/habits/:id
func (h *HabitHandler) UpdateHabit(c *gin.Context) {
	var req service.HabitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	req.ID = c.Param("id")
	habit, err := h.gateway.UpdateHabit(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, habit)
}

// DeleteHabit handles DELETE /api/habits/:id
func (h *HabitHandler) DeleteHabit(c *gin.Context) {
	id := c.Param("id")
	if err := h.gateway.DeleteHabit(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}
