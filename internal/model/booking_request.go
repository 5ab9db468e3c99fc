package model

import (
	"time"

	"github.com/google/uuid"
)

// HoldStatus enumerates the lifecycle states of a booking request.
// Transitions not present in holdTransitions are rejected by the
// services as conflicts.
type HoldStatus string

const (
	HoldStatusCart           HoldStatus = "cart"
	HoldStatusPendingPayment HoldStatus = "pending_payment"
	HoldStatusConfirmed      HoldStatus = "confirmed"
	HoldStatusExpired        HoldStatus = "expired"
	HoldStatusCancelled      HoldStatus = "cancelled"
)

var holdTransitions = map[HoldStatus][]HoldStatus{
	HoldStatusCart:           {HoldStatusPendingPayment, HoldStatusCancelled},
	HoldStatusPendingPayment: {HoldStatusConfirmed, HoldStatusExpired, HoldStatusCancelled},
}

// CanTransitionTo reports whether moving from s to next is a legal
// hold transition.
func (s HoldStatus) CanTransitionTo(next HoldStatus) bool {
	for _, t := range holdTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether the hold can no longer change state.
func (s HoldStatus) Terminal() bool {
	return len(holdTransitions[s]) == 0
}

// BookingRequest is a temporary, TTL-bound claim on slot capacity made
// during checkout.  While the request is pending_payment and not yet
// expired, its quantity is counted in the slot's reserved_count.
//
// Fields:
//  ID             – primary key (UUID, generated at creation).
//  AvailabilityID – slot the capacity is claimed on.
//  UserID         – user checking out.
//  Quantity       – total participants across person types.
//  Quantities     – per-person-type breakdown, kept for confirmation.
//  Status         – see HoldStatus.
//  ExpiresAt      – creation time + hold TTL; enforced lazily by the
//                   sweeper, not by a live timer.
type BookingRequest struct {
	ID             uuid.UUID
	AvailabilityID uint64
	UserID         uint64
	Quantity       int
	Quantities     map[PersonType]int
	Status         HoldStatus
	ExpiresAt      time.Time
	CreatedAt      time.Time
}
