package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"habitsync/internal/handler"
	"habitsync/internal/hub"
	"habitsync/internal/service"
)

func NewRouter(gateway *service.Gateway, h *hub.Hub, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), CORSMiddleware(), TraceMiddleware(), RequestLogMiddleware(log))

	// Health endpoints
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "peers": h.Len()})
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := gateway.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "store_not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", gin.WrapH(h.Handler()))

	stateHandler := handler.NewStateHandler(gateway)
	habitHandler := handler.NewHabitHandler(gateway)
	logHandler := handler.NewLogHandler(gateway)
	noteHandler := handler.NewNoteHandler(gateway)

	api := r.Group("/api")
	{
		api.GET("/state", stateHandler.GetState)
		api.GET("/stats", stateHandler.GetStats)

		api.GET("/habits", habitHandler.ListHabits)
		api.POST("/habits", habitHandler.CreateHabit)
		api.PUT("/habits/:id", habitHandler.UpdateHabit)
		api.DELETE("/habits/:id", habitHandler.DeleteHabit)

		api.GET("/logs", logHandler.GetRange)
		api.POST("/logs", logHandler.SetLog)
		api.GET("/logs/:dateKey", logHandler.GetDay)
		api.POST("/days/:dateKey/perfect", logHandler.MarkDayPerfect)

		api.GET("/notes/daily/:dateKey", noteHandler.GetDailyNote)
		api.POST("/notes/daily", noteHandler.SetDailyNote)
		api.GET("/notes/global", noteHandler.GetGlobalNote)
		api.POST("/notes/global", noteHandler.SetGlobalNote)
	}

	return r
}
