// Package service implements the reservation engine's operations over
// narrow storage interfaces: hold placement and release, booking
// lifecycle transitions, and waitlist coordination.  Capacity
// correctness is delegated to the SlotStore's atomic conditional
// arithmetic; the services never read-modify-write the counter.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trailpass/experience-booking/internal/model"
	"github.com/trailpass/experience-booking/internal/repository"
)

// SlotStore is the persistence surface for availability slots.
// Reserve must perform the capacity check and the increment as one
// conditional atomic update, returning repository.ErrCapacityExceeded
// when the bound would be violated.  Release clamps at zero.
type SlotStore interface {
	Create(ctx context.Context, slot *model.AvailabilitySlot) error
	CreateBulk(ctx context.Context, slots []*model.AvailabilitySlot) error
	GetByID(ctx context.Context, id uint64) (*model.AvailabilitySlot, error)
	ListByProduct(ctx context.Context, q repository.SlotListQuery) ([]model.AvailabilitySlot, int64, error)
	Reserve(ctx context.Context, id uint64, qty int) error
	Release(ctx context.Context, id uint64, qty int) error
	SetStoredStatus(ctx context.Context, id uint64, status model.SlotStatus) error
}

// HoldStore is the persistence surface for booking requests.
// TransitionAndRelease and ExpireDue pair the status change with the
// capacity decrement atomically: both commit or neither does, so a
// hold can never be stranded out of pending_payment with its quantity
// still counted against the slot.
type HoldStore interface {
	Create(ctx context.Context, hold *model.BookingRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.BookingRequest, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.HoldStatus) error
	TransitionAndRelease(ctx context.Context, id uuid.UUID, from, to model.HoldStatus, availabilityID uint64, qty int) error
	ExpireDue(ctx context.Context, now time.Time) ([]repository.ExpiredHoldGroup, error)
}

// BookingStore is the persistence surface for confirmed bookings.
// TransitionAndRelease carries the same atomicity contract as the
// HoldStore method of the same name.
type BookingStore interface {
	Create(ctx context.Context, b *model.Booking) error
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Booking, error)
	TransitionStatus(ctx context.Context, id uint64, from, to model.BookingStatus) error
	TransitionAndRelease(ctx context.Context, id uint64, from, to model.BookingStatus, availabilityID uint64, qty int) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error)
}

// WaitlistStore is the persistence surface for waitlist entries.
type WaitlistStore interface {
	Create(ctx context.Context, e *model.WaitlistEntry) error
	HasActiveEntry(ctx context.Context, availabilityID, userID uint64) (bool, error)
	PromoteNext(ctx context.Context, availabilityID uint64, now, deadline time.Time) (*model.WaitlistEntry, error)
	ExpireLapsed(ctx context.Context, now time.Time) ([]uint64, error)
	ConvertActive(ctx context.Context, availabilityID, userID uint64, now time.Time) error
}

// ProductFinder is the narrow catalog collaborator (external to this
// engine) used to validate bookability and waitlist settings.
type ProductFinder interface {
	FindProduct(ctx context.Context, id uint64) (*model.Product, error)
}

// Notification is the payload handed to the dispatch collaborator.
type Notification struct {
	Kind           string
	UserID         uint64
	AvailabilityID uint64
	Message        string
	ClaimDeadline  *time.Time
}

// Notifier dispatches user notifications.  Dispatch is fire-and-forget:
// a failure is logged by the caller and never rolls back the
// transition that triggered it.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// WaitlistPromoter is the slice of the waitlist coordinator the other
// services need when freed capacity should be offered to the queue.
type WaitlistPromoter interface {
	PromoteNext(ctx context.Context, availabilityID uint64) (uint64, bool, error)
}
