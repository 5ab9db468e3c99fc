package model

import (
	"time"

	"github.com/google/uuid"
)

// WaitlistStatus enumerates the states of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistStatusWaiting   WaitlistStatus = "waiting"
	WaitlistStatusNotified  WaitlistStatus = "notified"
	WaitlistStatusExpired   WaitlistStatus = "expired"
	WaitlistStatusConverted WaitlistStatus = "converted"
)

// Terminal reports whether the entry no longer occupies a queue spot.
func (s WaitlistStatus) Terminal() bool {
	return s == WaitlistStatusExpired || s == WaitlistStatusConverted
}

// WaitlistEntry is a FIFO position for a user wanting a full slot.  At
// most one non-terminal entry exists per (availability, user) pair.
//
// Fields:
//  Position   – monotonically assigned per slot; the FIFO contract.
//  NotifiedAt – set when the entry is promoted to notified.
//  ExpiredAt  – claim deadline (notifiedAt + claim window); the claim
//               lapse is evaluated lazily against the wall clock.
type WaitlistEntry struct {
	ID             uuid.UUID
	AvailabilityID uint64
	UserID         uint64
	Position       int
	Status         WaitlistStatus
	NotifiedAt     *time.Time
	ExpiredAt      *time.Time
	CreatedAt      time.Time
}

// CanNotify reports whether the entry is eligible for promotion.
func (e *WaitlistEntry) CanNotify() bool {
	return e.Status == WaitlistStatusWaiting
}

// CanConvert reports whether the entry holds a live claim at now, i.e.
// it was notified and the claim deadline has not passed.
func (e *WaitlistEntry) CanConvert(now time.Time) bool {
	return e.Status == WaitlistStatusNotified && e.ExpiredAt != nil && now.Before(*e.ExpiredAt)
}

// IsExpired reports whether the entry has forfeited its turn, either
// explicitly or because a notified claim deadline has lapsed.
func (e *WaitlistEntry) IsExpired(now time.Time) bool {
	if e.Status == WaitlistStatusExpired {
		return true
	}
	return e.Status == WaitlistStatusNotified && e.ExpiredAt != nil && !now.Before(*e.ExpiredAt)
}
