package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/trailpass/experience-booking/internal/errs"
	"github.com/trailpass/experience-booking/internal/model"
	"github.com/trailpass/experience-booking/internal/repository"
)

// DefaultClaimWindow is how long a notified user has to convert their
// waitlist spot into a booking before forfeiting it.
const DefaultClaimWindow = 30 * time.Minute

// NotificationKindWaitlistSpot identifies a spot-available message.
const NotificationKindWaitlistSpot = "waitlist_spot_available"

// WaitlistService is the waitlist coordinator: a strict FIFO queue per
// full slot, promoted one entry at a time as capacity frees up.
type WaitlistService struct {
	slots       SlotStore
	entries     WaitlistStore
	products    ProductFinder
	notifier    Notifier
	claimWindow time.Duration
	log         zerolog.Logger
	now         func() time.Time
}

// NewWaitlistService constructs a WaitlistService.  notifier may be
// nil (promotions then happen silently); claimWindow <= 0 falls back
// to DefaultClaimWindow.
func NewWaitlistService(slots SlotStore, entries WaitlistStore, products ProductFinder, notifier Notifier, claimWindow time.Duration, log zerolog.Logger) *WaitlistService {
	if claimWindow <= 0 {
		claimWindow = DefaultClaimWindow
	}
	return &WaitlistService{
		slots:       slots,
		entries:     entries,
		products:    products,
		notifier:    notifier,
		claimWindow: claimWindow,
		log:         log.With().Str("component", "waitlist_coordinator").Logger(),
		now:         time.Now,
	}
}

// Join adds the user to the waitlist of a full slot and returns the
// entry with its assigned position.
func (s *WaitlistService) Join(ctx context.Context, availabilityID, userID uint64) (*model.WaitlistEntry, error) {
	slot, err := s.slots.GetByID(ctx, availabilityID)
	if err != nil {
		if errors.Is(err, repository.ErrSlotNotFound) {
			return nil, errs.NotFoundf("availability slot %d not found", availabilityID)
		}
		return nil, err
	}
	now := s.now()
	if slot.StoredStatus.Overrides() {
		return nil, errs.Conflictf("slot is %s", slot.StoredStatus)
	}
	if !slot.SlotStart.After(now) {
		return nil, errs.Conflictf("slot has already started")
	}
	product, err := s.products.FindProduct(ctx, slot.ProductID)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, errs.NotFoundf("product %d not found", slot.ProductID)
		}
		return nil, err
	}
	if !product.WaitlistEnabled {
		return nil, errs.Validationf("waitlist is disabled for this product")
	}
	if slot.RemainingCapacity() > 0 {
		return nil, errs.Validationf("slot still has remaining capacity; book it directly")
	}
	// Friendly pre-check; the store's unique key is what actually
	// enforces one active entry per user, so a join racing past this
	// read still fails at Create.
	active, err := s.entries.HasActiveEntry(ctx, availabilityID, userID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, errs.Conflictf("user is already on the waitlist for this slot")
	}
	entry := &model.WaitlistEntry{
		ID:             uuid.New(),
		AvailabilityID: availabilityID,
		UserID:         userID,
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrWaitlistDuplicate) {
			return nil, errs.Conflictf("user is already on the waitlist for this slot")
		}
		return nil, err
	}
	return entry, nil
}

// PromoteNext notifies the earliest waiting entry for the slot and
// stamps its claim deadline.  Returns the notified user id, or false
// when the queue was empty.  Notification dispatch is fire-and-forget:
// a delivery failure never rolls the promotion back.
func (s *WaitlistService) PromoteNext(ctx context.Context, availabilityID uint64) (uint64, bool, error) {
	now := s.now()
	entry, err := s.entries.PromoteNext(ctx, availabilityID, now, now.Add(s.claimWindow))
	if err != nil {
		return 0, false, err
	}
	if entry == nil {
		return 0, false, nil
	}
	if s.notifier != nil {
		n := Notification{
			Kind:           NotificationKindWaitlistSpot,
			UserID:         entry.UserID,
			AvailabilityID: availabilityID,
			Message:        fmt.Sprintf("A spot opened up. Claim it before %s.", entry.ExpiredAt.Format(time.RFC3339)),
			ClaimDeadline:  entry.ExpiredAt,
		}
		if err := s.notifier.Send(ctx, n); err != nil {
			s.log.Warn().Err(err).Uint64("user_id", entry.UserID).Uint64("slot_id", availabilityID).
				Msg("waitlist notification failed")
		}
	}
	s.log.Info().Uint64("user_id", entry.UserID).Uint64("slot_id", availabilityID).
		Int("position", entry.Position).Msg("waitlist entry notified")
	return entry.UserID, true, nil
}

// ExpireLapsedClaims expires notified entries whose claim deadline has
// passed and immediately offers each affected slot to the next waiting
// entry, so freed capacity keeps moving down the queue.  Sweep-driven
// and idempotent, symmetric with hold expiry.
func (s *WaitlistService) ExpireLapsedClaims(ctx context.Context) (int, error) {
	slotIDs, err := s.entries.ExpireLapsed(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, slotID := range slotIDs {
		if _, _, err := s.PromoteNext(ctx, slotID); err != nil {
			s.log.Warn().Err(err).Uint64("slot_id", slotID).Msg("re-promotion after claim lapse failed")
		}
	}
	return len(slotIDs), nil
}
