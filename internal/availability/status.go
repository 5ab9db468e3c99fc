// Package availability derives the effective display status of a slot
// from its stored override, its capacity counters and the wall clock.
// The derivation is a pure function and is recomputed on every read;
// it is never written back to the slot except by explicit admin action.
package availability

import (
	"time"

	"github.com/trailpass/experience-booking/internal/model"
)

// InProgressWindow is how long after its start a slot reads as
// in_progress before flipping to completed.
const InProgressWindow = 4 * time.Hour

// EffectiveStatus computes the status callers see for a slot at now.
//
// Terminal admin overrides (canceled, closed, completed) always win.
// A started slot is in_progress for InProgressWindow, then completed.
// A slot at capacity is full.  Everything else is available.
func EffectiveStatus(slot *model.AvailabilitySlot, now time.Time) model.SlotStatus {
	if slot.StoredStatus.Overrides() {
		return slot.StoredStatus
	}
	if !slot.SlotStart.After(now) {
		if now.After(slot.SlotStart.Add(InProgressWindow)) {
			return model.SlotStatusCompleted
		}
		return model.SlotStatusInProgress
	}
	if slot.ReservedCount >= slot.TotalCapacity {
		return model.SlotStatusFull
	}
	return model.SlotStatusAvailable
}
