package model

import "time"

// SlotStatus enumerates the states an availability slot can be in.  The
// stored value on a slot is an optional admin override; the status a
// caller actually sees is derived at read time from the override, the
// capacity counters and the wall clock (see internal/availability).
type SlotStatus string

const (
	SlotStatusAvailable  SlotStatus = "available"
	SlotStatusFull       SlotStatus = "full"
	SlotStatusInProgress SlotStatus = "in_progress"
	SlotStatusCompleted  SlotStatus = "completed"
	SlotStatusClosed     SlotStatus = "closed"
	SlotStatusCanceled   SlotStatus = "canceled"
)

// Overrides reports whether this stored status is a terminal admin
// override that always wins over the derived status.
func (s SlotStatus) Overrides() bool {
	switch s {
	case SlotStatusCanceled, SlotStatusClosed, SlotStatusCompleted:
		return true
	}
	return false
}

// PersonType enumerates the participant categories a slot may be priced
// for.  Each slot carries at least one price entry.
type PersonType string

const (
	PersonTypeAdult PersonType = "adult"
	PersonTypeChild PersonType = "child"
	PersonTypePet   PersonType = "pet"
)

// Valid reports whether the person type is one of the known categories.
func (p PersonType) Valid() bool {
	switch p {
	case PersonTypeAdult, PersonTypeChild, PersonTypePet:
		return true
	}
	return false
}

// PriceEntry is the per-person-type unit price of a slot.  Prices are
// stored as integer cents and rendered as two-decimal strings at the
// API boundary.
type PriceEntry struct {
	PersonType     PersonType // priced participant category
	UnitPriceCents int64      // unit price in cents
}

// AvailabilitySlot is a bookable dated/timed instance of a product with
// finite capacity.
//
// Fields:
//  ID            – primary key identifier.
//  ProductID     – product this slot belongs to.
//  SlotStart     – the fixed start instant (date + time, UTC).
//  TotalCapacity – maximum confirmed-plus-held participants.
//  ReservedCount – live counter of capacity claimed by active holds and
//                  non-cancelled confirmed bookings.  Mutated only via
//                  atomic conditional arithmetic in the repository;
//                  never read-modify-written in application code.
//  StoredStatus  – optional admin override; empty when unset.
//  IsActive      – soft-delete flag.
//  Prices        – at least one PriceEntry.
type AvailabilitySlot struct {
	ID            uint64
	ProductID     uint64
	SlotStart     time.Time
	TotalCapacity int
	ReservedCount int
	StoredStatus  SlotStatus // "" means no override
	IsActive      bool
	Prices        []PriceEntry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RemainingCapacity returns the capacity still open for holds.  Never
// negative: the store clamps decrements at zero and rejects increments
// past TotalCapacity.
func (s *AvailabilitySlot) RemainingCapacity() int {
	rem := s.TotalCapacity - s.ReservedCount
	if rem < 0 {
		return 0
	}
	return rem
}

// PriceFor returns the unit price in cents for the given person type
// and whether a price entry exists for it.
func (s *AvailabilitySlot) PriceFor(pt PersonType) (int64, bool) {
	for _, p := range s.Prices {
		if p.PersonType == pt {
			return p.UnitPriceCents, true
		}
	}
	return 0, false
}
