package availability

import (
	"testing"
	"time"

	"github.com/trailpass/experience-booking/internal/model"
)

func TestEffectiveStatus(t *testing.T) {
	start := time.Date(2026, 7, 12, 14, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		stored   model.SlotStatus
		capacity int
		reserved int
		now      time.Time
		want     model.SlotStatus
	}{
		{"open with capacity", "", 10, 3, start.Add(-time.Hour), model.SlotStatusAvailable},
		{"at capacity", "", 10, 10, start.Add(-time.Hour), model.SlotStatusFull},
		{"zero capacity is born full", "", 0, 0, start.Add(-time.Hour), model.SlotStatusFull},
		{"started", "", 10, 3, start, model.SlotStatusInProgress},
		{"inside the in-progress window", "", 10, 3, start.Add(InProgressWindow), model.SlotStatusInProgress},
		{"past the in-progress window", "", 10, 3, start.Add(InProgressWindow + time.Second), model.SlotStatusCompleted},
		{"full slot that started reads in_progress", "", 10, 10, start.Add(time.Hour), model.SlotStatusInProgress},
		{"canceled override wins", model.SlotStatusCanceled, 10, 3, start.Add(-time.Hour), model.SlotStatusCanceled},
		{"closed override wins over full", model.SlotStatusClosed, 10, 10, start.Add(-time.Hour), model.SlotStatusClosed},
		{"completed override wins before start", model.SlotStatusCompleted, 10, 3, start.Add(-time.Hour), model.SlotStatusCompleted},
		{"stored available does not override the clock", model.SlotStatusAvailable, 10, 3, start.Add(time.Hour), model.SlotStatusInProgress},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot := &model.AvailabilitySlot{
				SlotStart:     start,
				TotalCapacity: tc.capacity,
				ReservedCount: tc.reserved,
				StoredStatus:  tc.stored,
			}
			if got := EffectiveStatus(slot, tc.now); got != tc.want {
				t.Fatalf("EffectiveStatus() = %s, want %s", got, tc.want)
			}
		})
	}
}
