package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all API v1 routes. Alert and responder routes sit
// behind the API-key middleware; the WebSocket endpoint authenticates in-band
// and the health check is open.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	authorized := api.Group("", APIKeyAuthMiddleware(h.cfg, h.logger))

	alerts := authorized.Group("/alerts")
	{
		alerts.POST("", h.createAlert)
		alerts.GET("", h.listAlerts)
		alerts.GET("/:id", h.getAlert)
		alerts.POST("/:id/accept", h.acceptAlert)
		alerts.POST("/:id/resolve", h.resolveAlert)
		alerts.POST("/:id/cancel", h.cancelAlert)
		alerts.DELETE("/:id", h.deleteAlert)
	}

	responders := authorized.Group("/responders")
	{
		responders.POST("", h.registerResponder)
		responders.PUT("/:id/location", h.updateResponderLocation)
	}

	// Realtime stream
	api.GET("/ws", h.serveWS)

	// Health-check
	api.GET("/system/health", h.healthCheck)
}
