package tickets

import (
	"boxoffice/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupTicketRoutes configures all ticket-related routes
func SetupTicketRoutes(rg *gin.RouterGroup, controller Controller, auth gin.HandlerFunc) {
	tickets := rg.Group("/tickets")
	{
		tickets.POST("/reserve", controller.ReserveTicket)                     // POST /api/v1/tickets/reserve
		tickets.POST("/purchase", controller.PurchaseTicket)                   // POST /api/v1/tickets/purchase
		tickets.POST("/:id/cancel", controller.CancelTicket)                   // POST /api/v1/tickets/:id/cancel
		tickets.GET("", controller.ListTickets)                                // GET /api/v1/tickets?limit=&offset=
		tickets.GET("/:id", controller.GetTicket)                              // GET /api/v1/tickets/:id
		tickets.GET("/event/:eventId", controller.GetEventTickets)             // GET /api/v1/tickets/event/:eventId
		tickets.GET("/customer/:email", controller.GetCustomerTickets)         // GET /api/v1/tickets/customer/:email
		tickets.GET("/availability/:ticketTypeId", controller.GetAvailability) // GET /api/v1/tickets/availability/:ticketTypeId
	}

	admin := rg.Group("/admin")
	admin.Use(auth, middleware.RequireAdmin())
	{
		admin.POST("/tickets/sweep", controller.SweepExpired)        // POST /api/v1/admin/tickets/sweep
		admin.GET("/ticket-types/:id/audit", controller.AuditLedger) // GET /api/v1/admin/ticket-types/:id/audit
	}
}

// Route definitions for reference:
//
// RESERVATION FLOW
// POST   /api/v1/tickets/reserve           - Hold one unit for 15 minutes
// Request body: { "ticket_type_id": "...", "customer_email": "...", "customer_name": "..." }
// POST   /api/v1/tickets/purchase          - Settle a live hold
// Request body: { "ticket_id": "...", "payment_reference": "..." }
// POST   /api/v1/tickets/:id/cancel        - Cancel and return the unit if still held
//
// QUERIES
// GET    /api/v1/tickets                   - All tickets, newest first (limit<=200, offset)
// GET    /api/v1/tickets/:id
// GET    /api/v1/tickets/event/:eventId
// GET    /api/v1/tickets/customer/:email
// GET    /api/v1/tickets/availability/:ticketTypeId
//
// ADMIN (JWT, role ADMIN)
// POST   /api/v1/admin/tickets/sweep       - Run the expiry sweep now
// GET    /api/v1/admin/ticket-types/:id/audit
