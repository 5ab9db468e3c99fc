package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trailpass/experience-booking/internal/repository"
	"github.com/trailpass/experience-booking/internal/service"
)

// PublicSlotHandler serves the unauthenticated availability surface:
// browsing a product's slots and inspecting a single slot.  The status
// returned is always the derived one, so a caller sees "full" or
// "in_progress" without any sweep having run.
type PublicSlotHandler struct {
	Slots *service.SlotService
}

// NewPublicSlotHandler constructs a PublicSlotHandler.
func NewPublicSlotHandler(slots *service.SlotService) *PublicSlotHandler {
	if slots == nil {
		panic("nil slot service passed to NewPublicSlotHandler")
	}
	return &PublicSlotHandler{Slots: slots}
}

// ListSlots handles GET /v1/products/:id/slots.  Optional query
// parameters: date_from and date_to ("2006-01-02", inclusive), page
// and page_size for pagination.
func (h *PublicSlotHandler) ListSlots(c echo.Context) error {
	productID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	q := repository.SlotListQuery{ProductID: productID, Page: 1, PageSize: 20}
	if s := c.QueryParam("date_from"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date_from"})
		}
		q.DateFrom = t
	}
	if s := c.QueryParam("date_to"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid date_to"})
		}
		// inclusive day filter: extend to the end of the day
		q.DateTo = t.Add(24*time.Hour - time.Second)
	}
	if s := c.QueryParam("page"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			q.Page = n
		}
	}
	if s := c.QueryParam("page_size"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 100 {
			q.PageSize = n
		}
	}

	views, total, err := h.Slots.ListSlots(c.Request().Context(), q)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]slotJSON, 0, len(views))
	for _, v := range views {
		out = append(out, slotToJSON(v))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"slots":     out,
		"total":     total,
		"page":      q.Page,
		"page_size": q.PageSize,
	})
}

// GetSlot handles GET /v1/slots/:id.
func (h *PublicSlotHandler) GetSlot(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	view, err := h.Slots.GetSlot(c.Request().Context(), slotID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, slotToJSON(*view))
}
