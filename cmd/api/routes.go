package main

import (
	"supportdesk/internal/auth"
	"supportdesk/internal/gateway"
	"supportdesk/internal/httpapi"
	"supportdesk/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, hub *gateway.Hub, m *auth.Manager) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Gateway handshake. Tokens are optional here: donors connect anonymous
	// and join their query rooms, staff connect with a bearer token.
	r.GET("/ws", gateway.ServeWS(hub, m))

	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	// NOTE: Placeholder login; real credential validation is not implemented.
	v1.POST("/auth/login", h.Login)

	// Donor surface. Donor apps identify by donor_id in the payload; these
	// routes carry no staff JWT.
	donor := v1.Group("/donor")
	{
		donor.POST("/queries", h.CreateQuery)
		donor.GET("/queries/:query_id", h.GetQuery)
		donor.GET("/queries/:query_id/messages", h.ListMessages)
		donor.POST("/queries/:query_id/messages", h.DonorSendMessage)
		donor.POST("/queries/:query_id/read", h.DonorMarkRead)
		donor.POST("/queries/:query_id/call-requests", h.RequestCall)
		donor.GET("/queries/:query_id/calls/active", h.ActiveCall)
		donor.POST("/calls/:session_id/end", h.DonorEndCall)
	}

	// Staff surface.
	staff := v1.Group("/")
	staff.Use(auth.RequireAccessToken(m))
	staff.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor, rbac.RoleSuperAdmin))
	{
		staff.GET("/queries", h.ListQueries)
		staff.GET("/queries/:query_id", h.GetQuery)
		staff.GET("/queries/:query_id/messages", h.ListMessages)
		staff.POST("/queries/:query_id/messages", h.AgentSendMessage)
		staff.POST("/queries/:query_id/read", h.AgentMarkRead)
		staff.POST("/queries/:query_id/accept", h.AcceptQuery)
		staff.POST("/queries/:query_id/resolve", h.ResolveQuery)
		staff.POST("/queries/:query_id/transfer", h.TransferQuery)

		staff.GET("/queries/:query_id/call-requests", h.ListCallRequests)
		staff.POST("/queries/:query_id/call-requests/accept", h.AcceptCallRequest)
		staff.POST("/queries/:query_id/call-requests/reject", h.RejectCallRequest)
		staff.POST("/queries/:query_id/calls", h.StartCall)
		staff.GET("/queries/:query_id/calls/active", h.ActiveCall)
		staff.PATCH("/calls/:session_id/status", h.UpdateCallStatus)
		staff.POST("/calls/:session_id/end", h.EndCall)
	}

	// Supervisor-only removal.
	admin := v1.Group("/admin")
	admin.Use(auth.RequireAccessToken(m))
	admin.Use(rbac.RequireAnyRole(rbac.RoleSupervisor, rbac.RoleSuperAdmin))
	{
		admin.DELETE("/queries/:query_id", h.DeleteQuery)
		admin.GET("/reports/queries", h.QueriesSummary)
		admin.GET("/reports/calls", h.CallsSummary)
	}
}
