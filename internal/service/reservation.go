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

// DefaultHoldTTL is how long a hold blocks capacity before the sweeper
// may expire it.
const DefaultHoldTTL = 10 * time.Minute

// ReservationService is the reservation ledger: it places TTL-bound
// holds against slot capacity, cancels them, and expires the stale
// ones on behalf of the sweeper.
type ReservationService struct {
	slots    SlotStore
	holds    HoldStore
	promoter WaitlistPromoter
	holdTTL  time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewReservationService constructs a ReservationService.  promoter may
// be nil when waitlist chaining is not wired (tests); holdTTL <= 0
// falls back to DefaultHoldTTL.
func NewReservationService(slots SlotStore, holds HoldStore, promoter WaitlistPromoter, holdTTL time.Duration, log zerolog.Logger) *ReservationService {
	if holdTTL <= 0 {
		holdTTL = DefaultHoldTTL
	}
	return &ReservationService{
		slots:    slots,
		holds:    holds,
		promoter: promoter,
		holdTTL:  holdTTL,
		log:      log.With().Str("component", "reservation_ledger").Logger(),
		now:      time.Now,
	}
}

// HoldResult is a placed hold together with its computed total price.
type HoldResult struct {
	Hold            *model.BookingRequest
	TotalPriceCents int64
}

// PlaceHold claims capacity on a slot for the duration of checkout.
//
// The remaining-capacity comparison below is advisory: it exists to
// produce a useful conflict message from fresh numbers.  The actual
// gate is the store's conditional atomic increment, which rejects the
// claim when concurrent callers got there first.
func (s *ReservationService) PlaceHold(ctx context.Context, availabilityID, userID uint64, quantities map[model.PersonType]int) (*HoldResult, error) {
	slot, err := s.slots.GetByID(ctx, availabilityID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, errs.NotFoundf("availability slot %d not found", availabilityID)
		}
		return nil, err
	}
	now := s.now()
	if slot.StoredStatus != "" && slot.StoredStatus != model.SlotStatusAvailable {
		return nil, errs.Conflictf("slot is not open for booking (status: %s)", slot.StoredStatus)
	}
	if !slot.SlotStart.After(now) {
		return nil, errs.Conflictf("slot has already started")
	}

	quantity := 0
	for pt, q := range quantities {
		if q < 0 {
			return nil, errs.Validationf("quantity for %q must not be negative", pt)
		}
		quantity += q
	}
	if quantity <= 0 {
		return nil, errs.Validationf("total quantity must be greater than zero")
	}

	if available := slot.RemainingCapacity(); quantity > available {
		return nil, errs.Conflictf("Not enough capacity. Requested: %d, available: %d", quantity, available)
	}

	var totalCents int64
	for pt, q := range quantities {
		if q == 0 {
			continue
		}
		if !pt.Valid() {
			return nil, errs.Validationf("unknown person type %q", pt)
		}
		unit, ok := slot.PriceFor(pt)
		if !ok {
			return nil, errs.Validationf("no price configured for person type %q", pt)
		}
		totalCents += unit * int64(q)
	}

	// Claim capacity first; the hold row is only created once the
	// conditional increment committed, so a lost race leaves nothing
	// behind.
	if err := s.slots.Reserve(ctx, availabilityID, quantity); err != nil {
		if errors.Is(err, repository.ErrCapacityExceeded) {
			available := 0
			if fresh, ferr := s.slots.GetByID(ctx, availabilityID); ferr == nil {
				available = fresh.RemainingCapacity()
			}
			return nil, errs.Conflictf("Not enough capacity. Requested: %d, available: %d", quantity, available)
		}
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, errs.NotFoundf("availability slot %d not found", availabilityID)
		}
		return nil, err
	}

	hold := &model.BookingRequest{
		ID:             uuid.New(),
		AvailabilityID: availabilityID,
		UserID:         userID,
		Quantity:       quantity,
		Quantities:     quantities,
		Status:         model.HoldStatusPendingPayment,
		ExpiresAt:      now.Add(s.holdTTL),
	}
	if err := s.holds.Create(ctx, hold); err != nil {
		// Give the claimed capacity back; the decrement clamps at zero.
		if relErr := s.slots.Release(ctx, availabilityID, quantity); relErr != nil {
			s.log.Error().Err(relErr).Uint64("slot_id", availabilityID).Int("quantity", quantity).
				Msg("failed to release capacity after hold creation failure")
		}
		return nil, err
	}
	return &HoldResult{Hold: hold, TotalPriceCents: totalCents}, nil
}

// CancelHold cancels a pending hold and releases its capacity exactly
// once.  Freed capacity is offered to the waitlist.
func (s *ReservationService) CancelHold(ctx context.Context, holdID uuid.UUID, userID uint64) error {
	hold, err := s.holds.GetByID(ctx, holdID)
	if err != nil {
		if errors.Is(err, repository.ErrHoldNotFound) {
			return errs.NotFoundf("booking request not found")
		}
		return err
	}
	if hold.UserID != userID {
		// Ownership failures read like missing rows.
		return errs.NotFoundf("booking request not found")
	}
	// Status flip and capacity release commit together; a failure on
	// either side leaves the hold pending so the cancel can be retried.
	err = s.holds.TransitionAndRelease(ctx, holdID,
		model.HoldStatusPendingPayment, model.HoldStatusCancelled,
		hold.AvailabilityID, hold.Quantity)
	if err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return errs.Conflictf("booking request is no longer pending")
		}
		if errors.Is(err, repository.ErrHoldNotFound) {
			return errs.NotFoundf("booking request not found")
		}
		return err
	}
	s.offerToWaitlist(ctx, hold.AvailabilityID)
	return nil
}

// ExpireStaleHolds expires every pending hold whose TTL has lapsed and
// releases the held capacity per slot.  The store performs both writes
// in one transaction, so a failed sweep leaves every hold pending and
// a re-run picks them all up again; rows already expired are never
// matched twice.  Returns the number of slots whose capacity changed.
func (s *ReservationService) ExpireStaleHolds(ctx context.Context) (int, error) {
	groups, err := s.holds.ExpireDue(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, g := range groups {
		s.log.Info().Uint64("slot_id", g.AvailabilityID).Int("quantity", g.Quantity).
			Msg("released capacity from expired holds")
		s.offerToWaitlist(ctx, g.AvailabilityID)
	}
	return len(groups), nil
}

// offerToWaitlist is a best-effort side effect; failures are logged
// and never fail the primary operation.
func (s *ReservationService) offerToWaitlist(ctx context.Context, availabilityID uint64) {
	if s.promoter == nil {
		return
	}
	if _, _, err := s.promoter.PromoteNext(ctx, availabilityID); err != nil {
		s.log.Warn().Err(err).Uint64("slot_id", availabilityID).Msg("waitlist promotion failed")
	}
}
