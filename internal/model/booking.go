package model

import "time"

// BookingStatus enumerates the post-confirmation states of a booking.
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCheckedIn BookingStatus = "checked_in"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusConfirmed: {BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusNoShow},
}

// CanTransitionTo reports whether moving from s to next is a legal
// booking transition.  checked_in, cancelled and no_show are terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// BookingItem is one person-type line of a booking with its frozen
// pricing.  Only person types with quantity > 0 produce a line.
type BookingItem struct {
	ID              uint64
	BookingID       uint64
	PersonType      PersonType
	Quantity        int
	UnitPriceCents  int64
	TotalPriceCents int64
}

// Booking is a confirmed reservation created from a BookingRequest at
// payment success.  Its total item quantity stays reflected in the
// slot's reserved_count until the booking is cancelled; no_show does
// not release capacity since the slot already passed.
//
// Fields:
//  ID             – primary key identifier.
//  OrderItemID    – optional tie to an external order line.
//  UserID         – owner of the booking.
//  AvailabilityID – the booked slot.
//  Status         – see BookingStatus.
//  Items          – ordered person-type lines.
type Booking struct {
	ID             uint64
	OrderItemID    *uint64
	UserID         uint64
	AvailabilityID uint64
	Status         BookingStatus
	Items          []BookingItem
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TotalQuantity returns the sum of item quantities, the amount held in
// the slot's reserved_count on behalf of this booking.
func (b *Booking) TotalQuantity() int {
	total := 0
	for _, it := range b.Items {
		total += it.Quantity
	}
	return total
}

// TotalPriceCents returns the booking total in cents.
func (b *Booking) TotalPriceCents() int64 {
	var total int64
	for _, it := range b.Items {
		total += it.TotalPriceCents
	}
	return total
}
