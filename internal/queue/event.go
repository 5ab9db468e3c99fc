// Package queue defines message payloads exchanged over the message
// broker and the consumer/publisher that move them.
package queue

// WaitlistSpotAvailableEvent is published when a waitlist entry is
// promoted.  Downstream consumers notify the user through whatever
// channel they own; the claim deadline tells the user how long the
// offered spot stays theirs.
type WaitlistSpotAvailableEvent struct {
	UserID         uint64 `json:"user_id"`
	AvailabilityID uint64 `json:"availability_id"`
	Message        string `json:"message"`
	ClaimDeadline  string `json:"claim_deadline"`
	NotifiedAt     string `json:"notified_at"`
}

// BookingConfirmedEvent is published when a hold is promoted into a
// confirmed booking.  It carries enough context for downstream
// consumers to log or notify without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID      uint64 `json:"booking_id"`
	UserID         uint64 `json:"user_id"`
	AvailabilityID uint64 `json:"availability_id"`
	SlotStart      string `json:"slot_start"`
	ProductName    string `json:"product_name"`
	TotalPrice     string `json:"total_price"`
	ConfirmedAt    string `json:"confirmed_at"`
}

// Queue names.  Both queues are declared durable by publisher and
// consumer alike so declaration order does not matter.
const (
	WaitlistQueueName = "waitlist.spot_available"
	BookingQueueName  = "booking.confirmed"
)
