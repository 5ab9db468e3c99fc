package model

import "testing"

func TestHoldStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to HoldStatus }{
		{HoldStatusCart, HoldStatusPendingPayment},
		{HoldStatusCart, HoldStatusCancelled},
		{HoldStatusPendingPayment, HoldStatusConfirmed},
		{HoldStatusPendingPayment, HoldStatusExpired},
		{HoldStatusPendingPayment, HoldStatusCancelled},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	forbidden := []struct{ from, to HoldStatus }{
		{HoldStatusExpired, HoldStatusPendingPayment},
		{HoldStatusExpired, HoldStatusConfirmed},
		{HoldStatusCancelled, HoldStatusPendingPayment},
		{HoldStatusConfirmed, HoldStatusCancelled},
		{HoldStatusCart, HoldStatusConfirmed},
	}
	for _, tr := range forbidden {
		if tr.from.CanTransitionTo(tr.to) {
			t.Errorf("%s -> %s should be rejected", tr.from, tr.to)
		}
	}

	for _, s := range []HoldStatus{HoldStatusConfirmed, HoldStatusExpired, HoldStatusCancelled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	if HoldStatusPendingPayment.Terminal() {
		t.Error("pending_payment should not be terminal")
	}
}

func TestBookingStatusTransitions(t *testing.T) {
	for _, to := range []BookingStatus{BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusNoShow} {
		if !BookingStatusConfirmed.CanTransitionTo(to) {
			t.Errorf("confirmed -> %s should be allowed", to)
		}
	}
	for _, from := range []BookingStatus{BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusNoShow} {
		for _, to := range []BookingStatus{BookingStatusConfirmed, BookingStatusCheckedIn, BookingStatusCancelled, BookingStatusNoShow} {
			if from.CanTransitionTo(to) {
				t.Errorf("%s -> %s should be rejected", from, to)
			}
		}
	}
}

func TestWaitlistStatusTerminal(t *testing.T) {
	for _, s := range []WaitlistStatus{WaitlistStatusExpired, WaitlistStatusConverted} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []WaitlistStatus{WaitlistStatusWaiting, WaitlistStatusNotified} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestSlotStatusOverrides(t *testing.T) {
	for _, s := range []SlotStatus{SlotStatusCanceled, SlotStatusClosed, SlotStatusCompleted} {
		if !s.Overrides() {
			t.Errorf("%s should override the derived status", s)
		}
	}
	for _, s := range []SlotStatus{SlotStatusAvailable, SlotStatusFull, SlotStatusInProgress, SlotStatus("")} {
		if s.Overrides() {
			t.Errorf("%s should not override the derived status", s)
		}
	}
}
