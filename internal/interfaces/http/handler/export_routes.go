package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/storefront/backend/internal/interfaces/http/router"
)

// ExportRoutes creates the route group for image export endpoints.
// renderLimit guards the routes that start a render.
func ExportRoutes(handler *ExportHandler, renderLimit gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("export", "/export")

	render := []gin.HandlerFunc{}
	if renderLimit != nil {
		render = append(render, renderLimit)
	}

	// Rendering
	group.POST("/warranty-cards", append(render, handler.ExportWarrantyCard)...)
	group.POST("/html", append(render, handler.ExportHTML)...)
	group.POST("/preview", append(render, handler.Preview)...)

	// Jobs
	group.GET("/jobs", handler.ListJobs)
	group.GET("/jobs/:id", handler.GetJob)
	group.GET("/jobs/:id/download", handler.DownloadArtifact)
	group.GET("/jobs/:id/thumbnail", handler.Thumbnail)
	group.DELETE("/jobs/:id", handler.DeleteJob)

	return group
}

// SystemRoutes creates the route group for system endpoints
func SystemRoutes(handler *SystemHandler) *router.DomainGroup {
	group := router.NewDomainGroup("system", "/system")
	group.GET("/ping", handler.Ping)
	group.GET("/info", handler.GetSystemInfo)
	return group
}
