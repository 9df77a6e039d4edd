package router

import (
	"github.com/gin-gonic/gin"

	"basegraph.app/triage/internal/http/handler"
	"basegraph.app/triage/internal/service"
)

func SetupRoutes(router *gin.Engine, tickets service.TicketService) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	ticketHandler := handler.NewTicketHandler(tickets)

	v1 := router.Group("/api/v1")
	{
		TicketRouter(v1.Group("/tickets"), ticketHandler)
		TriageRouter(v1.Group("/triage"), ticketHandler)
	}
}

func TicketRouter(rg *gin.RouterGroup, h *handler.TicketHandler) {
	rg.POST("", h.Submit)
	rg.GET("", h.Search)
	rg.GET("/:id", h.Get)
	rg.DELETE("/:id", h.Delete)
}

// TriageRouter exposes the read-only queue views.
func TriageRouter(rg *gin.RouterGroup, h *handler.TicketHandler) {
	rg.GET("/pending", h.Pending)
	rg.GET("/due", h.Due)
	rg.GET("/stats", h.Stats)
}
