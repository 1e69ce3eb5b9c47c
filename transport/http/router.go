package http

import (
	"github.com/gin-gonic/gin"

	"github.com/openfleet/fleetd/ports"
)

// SetupRouter creates and configures the gin router
func SetupRouter(h *Handlers, store ports.Store) *gin.Engine {
	router := gin.Default()

	// Public routes
	public := router.Group("/public")
	{
		public.GET("/oracles", h.Oracles)
		public.GET("/settings", h.PublicSettings)
	}
	router.GET("/identity/vehicle/:tokenId", h.VehicleIdentity)

	// Operator routes (bearer token required, forwarded to the backend)
	fleet := router.Group("/fleet")
	fleet.Use(CaptureToken(store))
	{
		fleet.POST("/onboard", h.Onboard)
		fleet.POST("/transfer", h.Transfer)
		fleet.POST("/disconnect", h.Disconnect)
		fleet.POST("/delete", h.Delete)
		fleet.GET("/jobs/:id", h.JobStatus)
		fleet.GET("/groups", h.Groups)
		fleet.GET("/settings", h.Settings)
		fleet.GET("/account/:email", h.Account)

		fleet.POST("/oracle", h.SelectOracle)
		fleet.GET("/tenants", h.Tenants)
		fleet.POST("/tenant", h.SelectTenant)
	}

	return router
}
