package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/trailpass/experience-booking/internal/money"
	"github.com/trailpass/experience-booking/internal/queue"
	"github.com/trailpass/experience-booking/internal/service"
)

// BookingHandler exposes the checkout flow: placing and cancelling
// holds, confirming bookings at payment success, and the booking
// lifecycle operations.  All methods assume JWT authentication has
// already been performed by middleware; check-in and no-show
// additionally sit behind the ADMIN role check at the router.
type BookingHandler struct {
	Reservations *service.ReservationService
	Bookings     *service.BookingService
	Validate     *validator.Validate
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(reservations *service.ReservationService, bookings *service.BookingService) *BookingHandler {
	if reservations == nil || bookings == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{
		Reservations: reservations,
		Bookings:     bookings,
		Validate:     validator.New(),
	}
}

// PlaceHold handles POST /v1/slots/:id/hold.  The body carries a
// person-type quantity map; the response includes the hold id the
// client needs for confirmation and the computed total price.
func (h *BookingHandler) PlaceHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		Quantities map[string]int `json:"quantities" validate:"required,min=1"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Validate.Struct(body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	res, err := h.Reservations.PlaceHold(c.Request().Context(), slotID, userID, quantitiesFromJSON(body.Quantities))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"hold_id":     res.Hold.ID.String(),
		"status":      string(res.Hold.Status),
		"expires_at":  res.Hold.ExpiresAt.UTC().Format(time.RFC3339),
		"quantities":  quantitiesToJSON(res.Hold.Quantities),
		"total_price": money.CentsToString(res.TotalPriceCents),
	})
}

// CancelHold handles DELETE /v1/holds/:id.  Releasing the hold frees
// its capacity immediately and may promote the next waitlist entry.
func (h *BookingHandler) CancelHold(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holdID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
	}
	if err := h.Reservations.CancelHold(c.Request().Context(), holdID, userID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Confirm handles POST /v1/holds/:id/confirm.  Called by the order
// flow after the payment collaborator reports success; the optional
// body can tie the booking to an order line and restate the per-type
// quantities.  A booking.confirmed event is published best-effort.
func (h *BookingHandler) Confirm(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	holdID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid hold id"})
	}
	var body struct {
		OrderItemID *uint64        `json:"order_item_id"`
		Quantities  map[string]int `json:"quantities"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	detail, err := h.Bookings.Confirm(c.Request().Context(), holdID, body.OrderItemID, userID, quantitiesFromJSON(body.Quantities))
	if err != nil {
		return respondError(c, err)
	}

	ev := queue.BookingConfirmedEvent{
		BookingID:      detail.Booking.ID,
		UserID:         userID,
		AvailabilityID: detail.Booking.AvailabilityID,
		SlotStart:      detail.SlotStart.UTC().Format(time.RFC3339),
		ProductName:    detail.ProductName,
		TotalPrice:     money.CentsToString(detail.TotalPriceCents),
		ConfirmedAt:    time.Now().UTC().Format(time.RFC3339),
	}
	// failures are already logged by the publisher; confirmation stands
	_ = queue.PublishBookingConfirmed(c.Request().Context(), ev)

	out := bookingToJSON(detail.Booking)
	return c.JSON(http.StatusCreated, echo.Map{
		"booking":      out,
		"slot_start":   ev.SlotStart,
		"product_name": detail.ProductName,
	})
}

// ListMyBookings handles GET /v1/bookings.
func (h *BookingHandler) ListMyBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]bookingJSON, 0, len(bookings))
	for i := range bookings {
		out = append(out, bookingToJSON(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// GetMyBooking handles GET /v1/bookings/:id.
func (h *BookingHandler) GetMyBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.Get(c.Request().Context(), bookingID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingToJSON(b))
}

// Cancel handles POST /v1/bookings/:id/cancel.  Only the booking owner
// may cancel; released capacity goes to the waitlist first.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.Cancel(c.Request().Context(), bookingID, userID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingToJSON(b))
}

// CheckIn handles POST /v1/admin/bookings/:id/checkin.  Check-in is
// only valid on the slot's calendar day (UTC).
func (h *BookingHandler) CheckIn(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.CheckIn(c.Request().Context(), bookingID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingToJSON(b))
}

// MarkNoShow handles POST /v1/admin/bookings/:id/no-show.  No-show
// keeps the capacity attributed since the slot already passed.
func (h *BookingHandler) MarkNoShow(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	b, err := h.Bookings.MarkNoShow(c.Request().Context(), bookingID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, bookingToJSON(b))
}
