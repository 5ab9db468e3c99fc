package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trailpass/experience-booking/internal/model"
	"github.com/trailpass/experience-booking/internal/money"
	"github.com/trailpass/experience-booking/internal/service"
)

// AdminSlotHandler exposes slot management to operators: creating
// availability (single and bulk) and overriding a slot's status.
// Routes using it must sit behind JWT auth plus the ADMIN role check.
type AdminSlotHandler struct {
	Slots    *service.SlotService
	Validate *validator.Validate
}

// NewAdminSlotHandler constructs an AdminSlotHandler.
func NewAdminSlotHandler(slots *service.SlotService) *AdminSlotHandler {
	if slots == nil {
		panic("nil slot service passed to NewAdminSlotHandler")
	}
	return &AdminSlotHandler{Slots: slots, Validate: validator.New()}
}

// slotRequest is one slot to create.  Prices use two-decimal strings
// ("12.50") and are converted to cents at the boundary.
type slotRequest struct {
	Date     string         `json:"date" validate:"required,datetime=2006-01-02"`
	Time     string         `json:"time" validate:"required,datetime=15:04"`
	Capacity int            `json:"capacity" validate:"required,gt=0"`
	Prices   []priceRequest `json:"prices" validate:"required,min=1,dive"`
}

type priceRequest struct {
	PersonType string `json:"person_type" validate:"required,oneof=adult child pet"`
	Price      string `json:"price" validate:"required"`
}

func (r slotRequest) toInput() (service.SlotInput, error) {
	in := service.SlotInput{
		Date:     r.Date,
		Time:     r.Time,
		Capacity: r.Capacity,
		Prices:   make([]model.PriceEntry, 0, len(r.Prices)),
	}
	for _, p := range r.Prices {
		cents, err := money.ParseToCents(p.Price)
		if err != nil {
			return service.SlotInput{}, err
		}
		in.Prices = append(in.Prices, model.PriceEntry{
			PersonType:     model.PersonType(p.PersonType),
			UnitPriceCents: cents,
		})
	}
	return in, nil
}

// CreateSlot handles POST /v1/admin/products/:id/slots.  It creates a
// single availability slot and returns it with a 201 status.
func (h *AdminSlotHandler) CreateSlot(c echo.Context) error {
	productID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	var body slotRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Validate.Struct(body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	in, err := body.toInput()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	view, err := h.Slots.CreateSlot(c.Request().Context(), productID, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, slotToJSON(*view))
}

// CreateSlots handles POST /v1/admin/products/:id/slots/bulk.  All
// slots are created in one transaction: either every slot lands or
// none do.
func (h *AdminSlotHandler) CreateSlots(c echo.Context) error {
	productID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
	}
	var body struct {
		Slots []slotRequest `json:"slots" validate:"required,min=1,dive"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Validate.Struct(body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	inputs := make([]service.SlotInput, 0, len(body.Slots))
	for _, r := range body.Slots {
		in, err := r.toInput()
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		inputs = append(inputs, in)
	}
	views, err := h.Slots.CreateSlots(c.Request().Context(), productID, inputs)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]slotJSON, 0, len(views))
	for _, v := range views {
		out = append(out, slotToJSON(v))
	}
	return c.JSON(http.StatusCreated, echo.Map{"slots": out})
}

// UpdateSlotStatus handles PATCH /v1/admin/slots/:id/status.  It stores
// an operator override such as "closed" or "canceled" on the slot.
func (h *AdminSlotHandler) UpdateSlotStatus(c echo.Context) error {
	slotID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	var body struct {
		Status string `json:"status" validate:"required"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := h.Validate.Struct(body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	view, err := h.Slots.SetSlotStatus(c.Request().Context(), slotID, model.SlotStatus(body.Status))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, slotToJSON(*view))
}
