package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trailpass/experience-booking/internal/service"
)

// WaitlistHandler exposes waitlist joining for customers and manual
// promotion for operators.
type WaitlistHandler struct {
	Waitlist *service.WaitlistService
}

// NewWaitlistHandler constructs a WaitlistHandler.
func NewWaitlistHandler(waitlist *service.WaitlistService) *WaitlistHandler {
	if waitlist == nil {
		panic("nil waitlist service passed to NewWaitlistHandler")
	}
	return &WaitlistHandler{Waitlist: waitlist}
}

// Join handles POST /v1/slots/:id/waitlist.  Joining is only allowed
// on full, not-yet-started slots of waitlist-enabled products, and a
// user holds at most one active entry per slot.
func (h *WaitlistHandler) Join(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	entry, err := h.Waitlist.Join(c.Request().Context(), slotID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"entry_id":   entry.ID.String(),
		"position":   entry.Position,
		"status":     string(entry.Status),
		"created_at": entry.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// PromoteNext handles POST /v1/admin/slots/:id/waitlist/promote.  It
// offers the slot to the head of the waitlist without waiting for a
// cancellation, e.g. after an operator raised capacity.
func (h *WaitlistHandler) PromoteNext(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	userID, promoted, err := h.Waitlist.PromoteNext(c.Request().Context(), slotID)
	if err != nil {
		return respondError(c, err)
	}
	if !promoted {
		return c.JSON(http.StatusOK, echo.Map{"promoted": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"promoted": true, "user_id": userID})
}
