package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/railmadad/complaint-api/internal/middleware"
)

// Handlers bundles every HTTP handler mounted under the API prefix.
type Handlers struct {
	Auth      *AuthHandler
	Location  *LocationHandler
	Ticket    *TicketHandler
	Complaint *ComplaintHandler
	ML        *MLHandler
	Admin     *AdminHandler
}

// RegisterRoutes mounts the API on group. auth guards bearer-protected routes;
// optionalAuth identifies the caller when a token is sent but admits anonymous
// complaint submissions.
func RegisterRoutes(group *gin.RouterGroup, h Handlers, auth, optionalAuth gin.HandlerFunc) {
	authGroup := group.Group("/auth")
	authGroup.POST("/register", h.Auth.Register)
	authGroup.POST("/login", h.Auth.Login)
	authGroup.GET("/me", auth, h.Auth.Me)

	group.POST("/location/resolve", h.Location.Resolve)
	group.POST("/ticket/extract", h.Ticket.Extract)
	group.POST("/ml/predict", h.ML.Predict)

	complaints := group.Group("/complaint")
	complaints.GET("/:id/image", h.Complaint.Image)
	complaints.POST("/submit", optionalAuth, h.Complaint.Submit)
	complaints.GET("/my", auth, h.Complaint.My)
	complaints.GET("/:id", auth, h.Complaint.Get)

	admin := group.Group("/admin", auth, middleware.RequireAdmin())
	admin.GET("/complaints", h.Admin.List)
	admin.GET("/complaints/map", h.Admin.Map)
	admin.GET("/complaints/export", h.Admin.Export)
	admin.PATCH("/complaints/:id/status", h.Admin.UpdateStatus)
	admin.PUT("/complaints/:id/status", h.Admin.UpdateStatus)
	admin.PATCH("/complaints/:id/assign", h.Admin.Assign)
	admin.PUT("/complaints/:id/assign", h.Admin.Assign)
	admin.GET("/complaints/:id/history", h.Admin.History)
	admin.GET("/insights", h.Admin.Insights)
}
