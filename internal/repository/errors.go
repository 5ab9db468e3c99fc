// Package repository implements MySQL persistence for the reservation
// engine.  This file defines sentinel errors shared across the
// repositories so higher layers can distinguish failure scenarios
// without string matching.
package repository

import "errors"

// ErrSlotNotFound is returned when an availability slot id does not
// resolve to a row.
var ErrSlotNotFound = errors.New("availability slot not found")

// ErrCapacityExceeded is returned by Reserve when the conditional
// atomic increment would push reserved_count past total_capacity.
// The increment is rejected by the store itself, so two racing holds
// can never both pass.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// ErrHoldNotFound is returned when a booking request id does not
// resolve to a row.
var ErrHoldNotFound = errors.New("booking request not found")

// ErrBookingNotFound is returned when a booking id does not resolve
// to a row visible to the caller.
var ErrBookingNotFound = errors.New("booking not found")

// ErrProductNotFound is returned when a product id does not resolve
// to a row.
var ErrProductNotFound = errors.New("product not found")

// ErrStaleTransition is returned when a guarded status update matched
// no rows, i.e. the entity already left the expected state.
var ErrStaleTransition = errors.New("stale status transition")

// ErrWaitlistDuplicate is returned when an insert collides with the
// unique key that allows one non-terminal waitlist entry per user and
// slot.  It is the backstop for joins that raced past the service's
// pre-check.
var ErrWaitlistDuplicate = errors.New("user already has an active waitlist entry")
