package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trailpass/experience-booking/internal/errs"
	"github.com/trailpass/experience-booking/internal/model"
	"github.com/trailpass/experience-booking/internal/repository"
)

// BookingService is the booking lifecycle: it promotes paid holds into
// confirmed bookings and drives the post-confirmation status machine
// (check-in, cancel, no-show).
type BookingService struct {
	slots    SlotStore
	holds    HoldStore
	bookings BookingStore
	waitlist WaitlistStore
	promoter WaitlistPromoter
	products ProductFinder
	log      zerolog.Logger
	now      func() time.Time
}

// NewBookingService constructs a BookingService.  waitlist, promoter
// and products may be nil when those collaborations are not wired.
func NewBookingService(slots SlotStore, holds HoldStore, bookings BookingStore, waitlist WaitlistStore, promoter WaitlistPromoter, products ProductFinder, log zerolog.Logger) *BookingService {
	return &BookingService{
		slots:    slots,
		holds:    holds,
		bookings: bookings,
		waitlist: waitlist,
		promoter: promoter,
		products: products,
		log:      log.With().Str("component", "booking_lifecycle").Logger(),
		now:      time.Now,
	}
}

// BookingDetail is a booking enriched with slot and product context
// for the caller.
type BookingDetail struct {
	Booking         *model.Booking
	SlotStart       time.Time
	ProductName     string
	TotalPriceCents int64
	Quantities      map[model.PersonType]int
}

// Confirm promotes a pending hold into a confirmed booking after the
// payment collaborator reports success.  The held capacity was already
// counted at hold time and is not incremented again; it stays
// attributed to the booking until cancellation.
func (s *BookingService) Confirm(ctx context.Context, requestID uuid.UUID, orderItemID *uint64, userID uint64, quantities map[model.PersonType]int) (*BookingDetail, error) {
	hold, err := s.holds.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrHoldNotFound) {
			return nil, errs.NotFoundf("booking request not found")
		}
		return nil, err
	}
	if hold.Status != model.HoldStatusPendingPayment {
		return nil, errs.Conflictf("booking request is %s, expected pending_payment", hold.Status)
	}
	if quantities == nil {
		quantities = hold.Quantities
	}
	total := 0
	for _, q := range quantities {
		total += q
	}
	if total != hold.Quantity {
		return nil, errs.Validationf("quantities sum to %d but the hold reserved %d", total, hold.Quantity)
	}

	// Guarded transition: only one confirmation can win, and a hold
	// already expired or cancelled by the sweeper cannot be revived.
	err = s.holds.TransitionStatus(ctx, requestID, model.HoldStatusPendingPayment, model.HoldStatusConfirmed)
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil, errs.Conflictf("booking request is no longer pending")
		}
		if errors.Is(err, repository.ErrHoldNotFound) {
			return nil, errs.NotFoundf("booking request not found")
		}
		return nil, err
	}

	slot, err := s.slots.GetByID(ctx, hold.AvailabilityID)
	if err != nil {
		return nil, err
	}
	items := make([]model.BookingItem, 0, len(quantities))
	for _, pt := range []model.PersonType{model.PersonTypeAdult, model.PersonTypeChild, model.PersonTypePet} {
		q := quantities[pt]
		if q <= 0 {
			continue
		}
		// Missing price defaults to zero; presence was validated at
		// hold time.
		unit, _ := slot.PriceFor(pt)
		items = append(items, model.BookingItem{
			PersonType:      pt,
			Quantity:        q,
			UnitPriceCents:  unit,
			TotalPriceCents: unit * int64(q),
		})
	}
	booking := &model.Booking{
		OrderItemID:    orderItemID,
		UserID:         userID,
		AvailabilityID: hold.AvailabilityID,
		Status:         model.BookingStatusConfirmed,
		Items:          items,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	// Close out any live waitlist claim this user was booking against.
	if s.waitlist != nil {
		if err := s.waitlist.ConvertActive(ctx, hold.AvailabilityID, userID, s.now()); err != nil {
			s.log.Warn().Err(err).Uint64("slot_id", hold.AvailabilityID).Uint64("user_id", userID).
				Msg("failed to convert waitlist entry")
		}
	}

	detail := &BookingDetail{
		Booking:         booking,
		SlotStart:       slot.SlotStart,
		TotalPriceCents: booking.TotalPriceCents(),
		Quantities:      quantities,
	}
	if s.products != nil {
		if product, perr := s.products.FindProduct(ctx, slot.ProductID); perr == nil {
			detail.ProductName = product.Name
		}
	}
	return detail, nil
}

// CheckIn transitions a confirmed booking to checked_in.  Check-in is
// same-day only: the slot's calendar date (UTC) must equal today's.
func (s *BookingService) CheckIn(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, errs.NotFoundf("booking not found")
		}
		return nil, err
	}
	if booking.Status != model.BookingStatusConfirmed {
		return nil, errs.Conflictf("booking is %s, expected confirmed", booking.Status)
	}
	slot, err := s.slots.GetByID(ctx, booking.AvailabilityID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	slotDay := slot.SlotStart.UTC()
	if slotDay.Year() != now.Year() || slotDay.YearDay() != now.YearDay() {
		return nil, errs.Conflictf("check-in is only allowed on the slot's date")
	}
	if err := s.transition(ctx, bookingID, model.BookingStatusCheckedIn); err != nil {
		return nil, err
	}
	booking.Status = model.BookingStatusCheckedIn
	return booking, nil
}

// Cancel cancels a confirmed booking owned by userID, releases its
// capacity and offers the freed spots to the waitlist.  The payment
// refund is the order collaborator's responsibility.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	booking, err := s.bookings.GetByIDForUser(ctx, bookingID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, errs.NotFoundf("booking not found")
		}
		return nil, err
	}
	if booking.Status != model.BookingStatusConfirmed {
		return nil, errs.Conflictf("booking is %s, expected confirmed", booking.Status)
	}
	// Status flip and capacity release commit together; a failure on
	// either side leaves the booking confirmed so the cancel can be
	// retried.
	err = s.bookings.TransitionAndRelease(ctx, bookingID,
		model.BookingStatusConfirmed, model.BookingStatusCancelled,
		booking.AvailabilityID, booking.TotalQuantity())
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil, errs.Conflictf("booking is no longer confirmed")
		}
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, errs.NotFoundf("booking not found")
		}
		return nil, err
	}
	booking.Status = model.BookingStatusCancelled
	if s.promoter != nil {
		if _, _, err := s.promoter.PromoteNext(ctx, booking.AvailabilityID); err != nil {
			s.log.Warn().Err(err).Uint64("slot_id", booking.AvailabilityID).Msg("waitlist promotion failed")
		}
	}
	return booking, nil
}

// MarkNoShow transitions a confirmed booking to no_show once the slot
// has started.  Capacity is not released: the opportunity lapsed with
// the slot, and no waitlist promotion happens.
func (s *BookingService) MarkNoShow(ctx context.Context, bookingID uint64) (*model.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, errs.NotFoundf("booking not found")
		}
		return nil, err
	}
	if booking.Status != model.BookingStatusConfirmed {
		return nil, errs.Conflictf("booking is %s, expected confirmed", booking.Status)
	}
	slot, err := s.slots.GetByID(ctx, booking.AvailabilityID)
	if err != nil {
		return nil, err
	}
	if slot.SlotStart.After(s.now()) {
		return nil, errs.Conflictf("slot has not started yet")
	}
	if err := s.transition(ctx, bookingID, model.BookingStatusNoShow); err != nil {
		return nil, err
	}
	booking.Status = model.BookingStatusNoShow
	return booking, nil
}

// ListByUser returns the user's bookings, newest first.
func (s *BookingService) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// Get returns one booking owned by userID.  Bookings of other users
// read as missing.
func (s *BookingService) Get(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
	booking, err := s.bookings.GetByIDForUser(ctx, bookingID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, errs.NotFoundf("booking not found")
		}
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) transition(ctx context.Context, bookingID uint64, to model.BookingStatus) error {
	err := s.bookings.TransitionStatus(ctx, bookingID, model.BookingStatusConfirmed, to)
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return errs.Conflictf("booking is no longer confirmed")
		}
		if errors.Is(err, repository.ErrBookingNotFound) {
			return errs.NotFoundf("booking not found")
		}
		return err
	}
	return nil
}
