package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/trailpass/experience-booking/internal/availability"
	"github.com/trailpass/experience-booking/internal/errs"
	"github.com/trailpass/experience-booking/internal/model"
	"github.com/trailpass/experience-booking/internal/repository"
)

// SlotService creates and lists availability slots.  Creation is an
// admin operation; listing derives the effective status per read.
type SlotService struct {
	slots    SlotStore
	products ProductFinder
	log      zerolog.Logger
	now      func() time.Time
}

// NewSlotService constructs a SlotService.
func NewSlotService(slots SlotStore, products ProductFinder, log zerolog.Logger) *SlotService {
	return &SlotService{
		slots:    slots,
		products: products,
		log:      log.With().Str("component", "slot_service").Logger(),
		now:      time.Now,
	}
}

// SlotInput describes one slot to create.  Date is "2006-01-02" and
// Time is "15:04", both UTC.
type SlotInput struct {
	Date     string
	Time     string
	Capacity int
	Prices   []model.PriceEntry
}

// SlotView is a slot enriched with its derived status and remaining
// capacity, the shape handed to the transport layer.
type SlotView struct {
	Slot              model.AvailabilitySlot
	EffectiveStatus   model.SlotStatus
	RemainingCapacity int
}

// CreateSlot creates a single slot for a product.
func (s *SlotService) CreateSlot(ctx context.Context, productID uint64, in SlotInput) (*SlotView, error) {
	views, err := s.CreateSlots(ctx, productID, []SlotInput{in})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// CreateSlots bulk-creates slots for a product.  All inputs are
// validated before anything is written; either every slot is created
// or none.
func (s *SlotService) CreateSlots(ctx context.Context, productID uint64, inputs []SlotInput) ([]SlotView, error) {
	if len(inputs) == 0 {
		return nil, errs.Validationf("at least one slot is required")
	}
	product, err := s.products.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, errs.NotFoundf("product %d not found", productID)
		}
		return nil, err
	}
	if !product.Bookable() {
		return nil, errs.Validationf("product %d is not a bookable type", productID)
	}

	now := s.now()
	slots := make([]*model.AvailabilitySlot, 0, len(inputs))
	for _, in := range inputs {
		start, err := parseSlotStart(in.Date, in.Time)
		if err != nil {
			return nil, err
		}
		if !start.After(now) {
			return nil, errs.Validationf("slot start %s is in the past", start.Format(time.RFC3339))
		}
		if in.Capacity < 0 {
			return nil, errs.Validationf("capacity must not be negative")
		}
		if len(in.Prices) == 0 {
			return nil, errs.Validationf("at least one price entry is required")
		}
		seen := map[model.PersonType]bool{}
		for _, p := range in.Prices {
			if !p.PersonType.Valid() {
				return nil, errs.Validationf("unknown person type %q", p.PersonType)
			}
			if seen[p.PersonType] {
				return nil, errs.Validationf("duplicate price entry for person type %q", p.PersonType)
			}
			if p.UnitPriceCents < 0 {
				return nil, errs.Validationf("price for %q must not be negative", p.PersonType)
			}
			seen[p.PersonType] = true
		}
		slots = append(slots, &model.AvailabilitySlot{
			ProductID:     productID,
			SlotStart:     start,
			TotalCapacity: in.Capacity,
			IsActive:      true,
			Prices:        in.Prices,
		})
	}
	if err := s.slots.CreateBulk(ctx, slots); err != nil {
		return nil, err
	}
	views := make([]SlotView, 0, len(slots))
	for _, slot := range slots {
		views = append(views, SlotView{
			Slot:              *slot,
			EffectiveStatus:   availability.EffectiveStatus(slot, now),
			RemainingCapacity: slot.RemainingCapacity(),
		})
	}
	return views, nil
}

// ListSlots returns a page of a product's slots with derived statuses.
func (s *SlotService) ListSlots(ctx context.Context, q repository.SlotListQuery) ([]SlotView, int64, error) {
	slots, total, err := s.slots.ListByProduct(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	views := make([]SlotView, 0, len(slots))
	for i := range slots {
		views = append(views, SlotView{
			Slot:              slots[i],
			EffectiveStatus:   availability.EffectiveStatus(&slots[i], now),
			RemainingCapacity: slots[i].RemainingCapacity(),
		})
	}
	return views, total, nil
}

// GetSlot returns one slot with its derived status.
func (s *SlotService) GetSlot(ctx context.Context, id uint64) (*SlotView, error) {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, errs.NotFoundf("availability slot %d not found", id)
		}
		return nil, err
	}
	now := s.now()
	return &SlotView{
		Slot:              *slot,
		EffectiveStatus:   availability.EffectiveStatus(slot, now),
		RemainingCapacity: slot.RemainingCapacity(),
	}, nil
}

// SetSlotStatus stores an admin status override on a slot and returns
// the refreshed view.  Terminal overrides (closed, canceled, completed)
// win over the derived status; storing "available" records intent but
// still yields to capacity and clock derivation.
func (s *SlotService) SetSlotStatus(ctx context.Context, id uint64, status model.SlotStatus) (*SlotView, error) {
	switch status {
	case model.SlotStatusAvailable, model.SlotStatusFull, model.SlotStatusInProgress,
		model.SlotStatusCompleted, model.SlotStatusClosed, model.SlotStatusCanceled:
	default:
		return nil, errs.Validationf("unknown slot status %q", status)
	}
	if err := s.slots.SetStoredStatus(ctx, id, status); err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, errs.NotFoundf("availability slot %d not found", id)
		}
		return nil, err
	}
	return s.GetSlot(ctx, id)
}

func parseSlotStart(date, clock string) (time.Time, error) {
	start, err := time.Parse("2006-01-02 15:04", date+" "+clock)
	if err != nil {
		return time.Time{}, errs.Validationf("invalid slot date/time %q %q", date, clock)
	}
	return start.UTC(), nil
}
