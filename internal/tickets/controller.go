package tickets

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"boxoffice/internal/shared/middleware"
	"boxoffice/internal/shared/utils/response"
	"boxoffice/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	ReserveTicket(c *gin.Context)
	PurchaseTicket(c *gin.Context)
	CancelTicket(c *gin.Context)
	GetTicket(c *gin.Context)
	ListTickets(c *gin.Context)
	GetEventTickets(c *gin.Context)
	GetCustomerTickets(c *gin.Context)
	GetAvailability(c *gin.Context)
	SweepExpired(c *gin.Context)
	AuditLedger(c *gin.Context)
}

type controller struct {
	service Service
	logger  *logger.Logger
}

func NewController(service Service, log *logger.Logger) Controller {
	if log == nil {
		log = logger.GetDefault()
	}
	return &controller{service: service, logger: log}
}

// ReserveTicket godoc
// @Summary      Reserve a ticket
// @Description  Holds one unit of a ticket type for the reservation window
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        request  body      ReserveTicketRequest  true  "Reservation"
// @Success      201      {object}  response.StandardApiResponse{data=TicketResponse}
// @Failure      400      {object}  response.StandardApiResponse
// @Failure      404      {object}  response.StandardApiResponse
// @Failure      409      {object}  response.StandardApiResponse
// @Router       /tickets/reserve [post]
func (ctrl *controller) ReserveTicket(c *gin.Context) {
	var req ReserveTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	ticket, err := ctrl.service.Reserve(c.Request.Context(), req)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Ticket reserved successfully", toTicketResponse(ticket), nil)
}

// PurchaseTicket godoc
// @Summary      Purchase a reserved ticket
// @Tags         tickets
// @Accept       json
// @Produce      json
// @Param        request  body      PurchaseTicketRequest  true  "Purchase"
// @Success      200      {object}  response.StandardApiResponse{data=TicketResponse}
// @Failure      400      {object}  response.StandardApiResponse
// @Failure      404      {object}  response.StandardApiResponse
// @Failure      409      {object}  response.StandardApiResponse
// @Router       /tickets/purchase [post]
func (ctrl *controller) PurchaseTicket(c *gin.Context) {
	var req PurchaseTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	ticket, err := ctrl.service.Purchase(c.Request.Context(), req)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket purchased successfully", toTicketResponse(ticket), nil)
}

// CancelTicket godoc
// @Summary      Cancel a ticket
// @Tags         tickets
// @Produce      json
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  response.StandardApiResponse{data=TicketResponse}
// @Failure      404  {object}  response.StandardApiResponse
// @Failure      409  {object}  response.StandardApiResponse
// @Router       /tickets/{id}/cancel [post]
func (ctrl *controller) CancelTicket(c *gin.Context) {
	ticketID, ok := parseUUIDParam(c, "id", "Invalid ticket ID")
	if !ok {
		return
	}

	ticket, err := ctrl.service.Cancel(c.Request.Context(), ticketID)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket cancelled successfully", toTicketResponse(ticket), nil)
}

// GetTicket godoc
// @Summary      Get a ticket
// @Tags         tickets
// @Produce      json
// @Param        id   path      string  true  "Ticket ID"
// @Success      200  {object}  response.StandardApiResponse{data=TicketResponse}
// @Failure      404  {object}  response.StandardApiResponse
// @Router       /tickets/{id} [get]
func (ctrl *controller) GetTicket(c *gin.Context) {
	ticketID, ok := parseUUIDParam(c, "id", "Invalid ticket ID")
	if !ok {
		return
	}

	ticket, err := ctrl.service.GetTicket(c.Request.Context(), ticketID)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ticket retrieved successfully", toTicketResponse(ticket), nil)
}

// ListTickets godoc
// @Summary      List all tickets, newest first
// @Tags         tickets
// @Produce      json
// @Param        limit   query     int  false  "Page size (default 50, max 200)"
// @Param        offset  query     int  false  "Tickets to skip"
// @Success      200     {object}  response.StandardApiResponse{data=TicketPageResponse}
// @Router       /tickets [get]
func (ctrl *controller) ListTickets(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultListLimit)))
	if err != nil || limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	tickets, err := ctrl.service.ListTickets(c.Request.Context(), limit, offset)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Tickets retrieved successfully", toTicketPageResponse(tickets, limit, offset), nil)
}

// GetEventTickets godoc
// @Summary      List tickets for an event
// @Tags         tickets
// @Produce      json
// @Param        eventId  path      string  true  "Event ID"
// @Success      200      {object}  response.StandardApiResponse{data=TicketListResponse}
// @Router       /tickets/event/{eventId} [get]
func (ctrl *controller) GetEventTickets(c *gin.Context) {
	eventID, ok := parseUUIDParam(c, "eventId", "Invalid event ID")
	if !ok {
		return
	}

	tickets, err := ctrl.service.ListTicketsByEvent(c.Request.Context(), eventID)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Tickets retrieved successfully", toTicketListResponse(tickets), nil)
}

// GetCustomerTickets godoc
// @Summary      List tickets for a customer email
// @Tags         tickets
// @Produce      json
// @Param        email  path      string  true  "Customer email"
// @Success      200    {object}  response.StandardApiResponse{data=TicketListResponse}
// @Failure      400    {object}  response.StandardApiResponse
// @Router       /tickets/customer/{email} [get]
func (ctrl *controller) GetCustomerTickets(c *gin.Context) {
	tickets, err := ctrl.service.ListTicketsByCustomer(c.Request.Context(), c.Param("email"))
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Tickets retrieved successfully", toTicketListResponse(tickets), nil)
}

// GetAvailability godoc
// @Summary      Live availability of a ticket type
// @Tags         tickets
// @Produce      json
// @Param        ticketTypeId  path      string  true  "Ticket type ID"
// @Success      200           {object}  response.StandardApiResponse{data=AvailabilityResponse}
// @Failure      404           {object}  response.StandardApiResponse
// @Router       /tickets/availability/{ticketTypeId} [get]
func (ctrl *controller) GetAvailability(c *gin.Context) {
	ticketTypeID, ok := parseUUIDParam(c, "ticketTypeId", "Invalid ticket type ID")
	if !ok {
		return
	}

	availability, err := ctrl.service.GetAvailability(c.Request.Context(), ticketTypeID)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Availability retrieved successfully", toAvailabilityResponse(availability), nil)
}

// SweepExpired godoc
// @Summary      Expire stale reservations now
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.StandardApiResponse{data=SweepResponse}
// @Router       /admin/tickets/sweep [post]
func (ctrl *controller) SweepExpired(c *gin.Context) {
	expired, err := ctrl.service.SweepExpired(c.Request.Context())
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	ctrl.logger.InfoContext(c.Request.Context(), "Manual expiry sweep",
		slog.String("operator", middleware.OperatorID(c)),
		slog.Int("expired", expired),
	)
	response.RespondJSON(c, "success", http.StatusOK, "Expired reservations swept", SweepResponse{Expired: expired}, nil)
}

// AuditLedger godoc
// @Summary      Check the inventory ledger of a ticket type
// @Tags         admin
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Ticket type ID"
// @Success      200  {object}  response.StandardApiResponse{data=LedgerAudit}
// @Failure      404  {object}  response.StandardApiResponse
// @Router       /admin/ticket-types/{id}/audit [get]
func (ctrl *controller) AuditLedger(c *gin.Context) {
	ticketTypeID, ok := parseUUIDParam(c, "id", "Invalid ticket type ID")
	if !ok {
		return
	}

	audit, err := ctrl.service.AuditLedger(c.Request.Context(), ticketTypeID)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Ledger audit completed", audit, nil)
}

func parseUUIDParam(c *gin.Context, name, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, message, nil, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// respondError maps the error taxonomy onto HTTP status codes.
func (ctrl *controller) respondError(c *gin.Context, err error) {
	status := httpStatusFor(err)
	detail := ErrorDetail{Code: ErrorCode(err)}

	message := err.Error()
	if status == http.StatusInternalServerError {
		ctrl.logger.LogHTTPError(c, err, status)
		message = "Internal server error"
	}
	if errors.Is(err, ErrValidation) {
		detail.Detail = err.Error()
		message = "Validation failed"
	}

	response.RespondJSON(c, "error", status, message, nil, detail)
}

func httpStatusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBusinessRule):
		return http.StatusConflict
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
