package handler // handler defines the HTTP transport for the reservation engine

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/trailpass/experience-booking/internal/errs"
	"github.com/trailpass/experience-booking/internal/model"
	"github.com/trailpass/experience-booking/internal/money"
	"github.com/trailpass/experience-booking/internal/service"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64.
// JWTAuth stores the raw "sub" claim, whose concrete type depends on how the
// identity service encoded it, so every plausible representation is handled.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// respondError translates an engine error into an HTTP response.  Domain
// errors carry a kind that maps onto a status code; anything else is an
// internal failure and the message is not leaked to the caller.
func respondError(c echo.Context, err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		switch e.Kind {
		case errs.KindValidation:
			return c.JSON(http.StatusBadRequest, echo.Map{"error": e.Message})
		case errs.KindNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"error": e.Message})
		case errs.KindConflict:
			return c.JSON(http.StatusConflict, echo.Map{"error": e.Message})
		}
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// pathID parses a numeric path parameter, rejecting zero.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// priceJSON is the wire shape of a per-person-type price.
type priceJSON struct {
	PersonType string `json:"person_type"`
	Price      string `json:"price"`
}

// slotJSON is the wire shape of an availability slot.
type slotJSON struct {
	ID                uint64      `json:"id"`
	ProductID         uint64      `json:"product_id"`
	Date              string      `json:"date"`
	Time              string      `json:"time"`
	TotalCapacity     int         `json:"total_capacity"`
	RemainingCapacity int         `json:"remaining_capacity"`
	Status            string      `json:"status"`
	Prices            []priceJSON `json:"prices"`
}

func slotToJSON(v service.SlotView) slotJSON {
	out := slotJSON{
		ID:                v.Slot.ID,
		ProductID:         v.Slot.ProductID,
		Date:              v.Slot.SlotStart.UTC().Format("2006-01-02"),
		Time:              v.Slot.SlotStart.UTC().Format("15:04"),
		TotalCapacity:     v.Slot.TotalCapacity,
		RemainingCapacity: v.RemainingCapacity,
		Status:            string(v.EffectiveStatus),
		Prices:            make([]priceJSON, 0, len(v.Slot.Prices)),
	}
	for _, p := range v.Slot.Prices {
		out.Prices = append(out.Prices, priceJSON{
			PersonType: string(p.PersonType),
			Price:      money.CentsToString(p.UnitPriceCents),
		})
	}
	return out
}

// quantitiesFromJSON converts the request's person-type map into model
// types.  Unknown person types are passed through untouched; the service
// layer rejects them with a validation error naming the offending type.
func quantitiesFromJSON(in map[string]int) map[model.PersonType]int {
	if in == nil {
		return nil
	}
	out := make(map[model.PersonType]int, len(in))
	for k, v := range in {
		out[model.PersonType(k)] = v
	}
	return out
}

func quantitiesToJSON(in map[model.PersonType]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[string(k)] = v
	}
	return out
}

// bookingJSON is the wire shape of a confirmed booking.
type bookingJSON struct {
	ID             uint64            `json:"id"`
	AvailabilityID uint64            `json:"availability_id"`
	OrderItemID    *uint64           `json:"order_item_id,omitempty"`
	Status         string            `json:"status"`
	TotalQuantity  int               `json:"total_quantity"`
	TotalPrice     string            `json:"total_price"`
	Items          []bookingItemJSON `json:"items"`
	CreatedAt      string            `json:"created_at"`
}

type bookingItemJSON struct {
	PersonType string `json:"person_type"`
	Quantity   int    `json:"quantity"`
	UnitPrice  string `json:"unit_price"`
	TotalPrice string `json:"total_price"`
}

func bookingToJSON(b *model.Booking) bookingJSON {
	out := bookingJSON{
		ID:             b.ID,
		AvailabilityID: b.AvailabilityID,
		OrderItemID:    b.OrderItemID,
		Status:         string(b.Status),
		TotalQuantity:  b.TotalQuantity(),
		TotalPrice:     money.CentsToString(b.TotalPriceCents()),
		Items:          make([]bookingItemJSON, 0, len(b.Items)),
		CreatedAt:      b.CreatedAt.UTC().Format(time.RFC3339),
	}
	for _, it := range b.Items {
		out.Items = append(out.Items, bookingItemJSON{
			PersonType: string(it.PersonType),
			Quantity:   it.Quantity,
			UnitPrice:  money.CentsToString(it.UnitPriceCents),
			TotalPrice: money.CentsToString(it.TotalPriceCents),
		})
	}
	return out
}
