package handler

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/aman-churiwal/crm-relay/internal/crm"
	"github.com/aman-churiwal/crm-relay/internal/middleware"
	"github.com/aman-churiwal/crm-relay/internal/service"
	"github.com/gin-gonic/gin"
)

type BookingHandler struct {
	service *service.BookingService
}

func NewBookingHandler(service *service.BookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Handles POST /upsertContact
func (h *BookingHandler) UpsertContact(c *gin.Context) {
	var form crm.ContactForm
	if !bindBody(c, &form) {
		return
	}

	contactID, err := h.service.UpsertContact(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{"contactId": contactID}})
}

// Handles GET /getCalendar
func (h *BookingHandler) GetCalendar(c *gin.Context) {
	settings, err := h.service.GetCalendar(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": settings})
}

// Handles GET /getCalendarEvents
func (h *BookingHandler) GetCalendarEvents(c *gin.Context) {
	var query service.BookingWindowQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	events, err := h.service.GetCalendarEvents(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

// Handles GET /getBlockedSlots
func (h *BookingHandler) GetBlockedSlots(c *gin.Context) {
	var query service.BookingWindowQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	slots, err := h.service.GetBlockedSlots(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": slots})
}

// Handles POST /makeAppointment
func (h *BookingHandler) MakeAppointment(c *gin.Context) {
	var req service.AppointmentRequest
	if !bindBody(c, &req) {
		return
	}

	appointmentID, err := h.service.MakeAppointment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": appointmentID})
}

// bindBody decodes a required JSON body and answers 400 itself on failure.
func bindBody(c *gin.Context, dst interface{}) bool {
	err := c.ShouldBindJSON(dst)
	switch {
	case err == nil:
		return true
	case errors.Is(err, io.EOF):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Request body is required"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
	}
	return false
}

// respondError maps service errors to responses. Upstream and internal
// details only go to the log.
func respondError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	log.Printf("[%s] %s %s failed: %v", c.GetString(middleware.RequestIDKey), c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
}
