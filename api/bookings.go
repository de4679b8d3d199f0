package api

import (
	"context"
	"net/http"

	"github.com/Domenick1991/galaxium/internal/apperr"
	"github.com/Domenick1991/galaxium/internal/domain"
	"github.com/Domenick1991/galaxium/internal/orchestrator"
	"github.com/gin-gonic/gin"
)

// BookingWorkflow is the set of intents the presentation layer can send.
type BookingWorkflow interface {
	View() orchestrator.View
	SelectFlight(flightID int64, class domain.SeatClass) error
	Identify(ctx context.Context, req orchestrator.IdentifyRequest) (*domain.User, error)
	ConfirmBooking(ctx context.Context) (*domain.Booking, error)
	Abandon() error
	LoadBookings(ctx context.Context) ([]domain.Booking, error)
	RequestCancellation(bookingID int64) error
	ConfirmCancellation(ctx context.Context) (*domain.Booking, error)
	AbandonCancellation() error
	Logout(ctx context.Context) error
}

type BookingHandler struct {
	workflow BookingWorkflow
}

type selectFlightRequest struct {
	FlightID  int64  `json:"flight_id" binding:"required"`
	SeatClass string `json:"seat_class" binding:"required"`
}

type identifyRequest struct {
	Mode  string `json:"mode"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type cancellationRequest struct {
	BookingID int64 `json:"booking_id" binding:"required"`
}

type bookingResponse struct {
	Booking domain.Booking    `json:"booking"`
	View    orchestrator.View `json:"view"`
}

func NewBookingHandler(workflow BookingWorkflow) *BookingHandler {
	return &BookingHandler{workflow: workflow}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.GET("/view", h.view)
	router.POST("/selection", h.selectFlight)
	router.DELETE("/selection", h.abandon)
	router.POST("/identify", h.identify)
	router.POST("/bookings", h.confirm)
	router.GET("/bookings", h.list)
	router.POST("/cancellations", h.requestCancellation)
	router.POST("/cancellations/confirm", h.confirmCancellation)
	router.DELETE("/cancellations", h.abandonCancellation)
	router.POST("/logout", h.logout)
}

func (h *BookingHandler) view(c *gin.Context) {
	c.JSON(http.StatusOK, h.workflow.View())
}

func (h *BookingHandler) selectFlight(c *gin.Context) {
	var req selectFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	class, err := domain.ParseSeatClass(req.SeatClass)
	if err != nil {
		writeError(c, apperr.Validation(apperr.CodeInvalidSeatClass, "Please choose economy, business or galaxium."))
		return
	}
	if err := h.workflow.SelectFlight(req.FlightID, class); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workflow.View())
}

func (h *BookingHandler) abandon(c *gin.Context) {
	if err := h.workflow.Abandon(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workflow.View())
}

func (h *BookingHandler) identify(c *gin.Context) {
	var req identifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	mode, err := orchestrator.ParseIdentifyMode(req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	if _, err := h.workflow.Identify(c.Request.Context(), orchestrator.IdentifyRequest{
		Mode:  mode,
		Name:  req.Name,
		Email: req.Email,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workflow.View())
}

func (h *BookingHandler) confirm(c *gin.Context) {
	booking, err := h.workflow.ConfirmBooking(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bookingResponse{Booking: *booking, View: h.workflow.View()})
}

func (h *BookingHandler) list(c *gin.Context) {
	if _, err := h.workflow.LoadBookings(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workflow.View())
}

func (h *BookingHandler) requestCancellation(c *gin.Context) {
	var req cancellationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.workflow.RequestCancellation(req.BookingID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workflow.View())
}

func (h *BookingHandler) confirmCancellation(c *gin.Context) {
	booking, err := h.workflow.ConfirmCancellation(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookingResponse{Booking: *booking, View: h.workflow.View()})
}

func (h *BookingHandler) abandonCancellation(c *gin.Context) {
	if err := h.workflow.AbandonCancellation(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workflow.View())
}

func (h *BookingHandler) logout(c *gin.Context) {
	if err := h.workflow.Logout(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.workflow.View())
}

var (
	_ BookingWorkflow = (*orchestrator.Orchestrator)(nil)
	_ FlightBrowser   = (*orchestrator.Orchestrator)(nil)
)
