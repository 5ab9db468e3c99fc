package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailpass/experience-booking/internal/errs"
	"github.com/trailpass/experience-booking/internal/model"
)

type bookingFixture struct {
	slots    *fakeSlotStore
	holds    *fakeHoldStore
	bookings *fakeBookingStore
	waitlist *fakeWaitlistStore
	promoter *fakePromoter
	svc      *BookingService
}

func newBookingFixture(slots ...*model.AvailabilitySlot) *bookingFixture {
	f := &bookingFixture{
		slots:    newFakeSlotStore(slots...),
		holds:    newFakeHoldStore(),
		bookings: newFakeBookingStore(),
		waitlist: &fakeWaitlistStore{},
		promoter: &fakePromoter{},
	}
	f.holds.slots = f.slots
	f.bookings.slots = f.slots
	products := newFakeProducts(&model.Product{ID: 1, Type: model.ProductTypeExperience, Name: "Sunset Kayak Tour", WaitlistEnabled: true})
	f.svc = NewBookingService(f.slots, f.holds, f.bookings, f.waitlist, f.promoter, products, zerolog.Nop())
	f.svc.now = func() time.Time { return testNow }
	return f
}

// pendingHold seeds a pending_payment hold whose quantity is already
// counted in the slot's reserved_count, as PlaceHold leaves things.
func (f *bookingFixture) pendingHold(t *testing.T, slotID, userID uint64, quantities map[model.PersonType]int) *model.BookingRequest {
	t.Helper()
	total := 0
	for _, q := range quantities {
		total += q
	}
	require.NoError(t, f.slots.Reserve(context.Background(), slotID, total))
	hold := &model.BookingRequest{
		ID:             uuid.New(),
		AvailabilityID: slotID,
		UserID:         userID,
		Quantity:       total,
		Quantities:     quantities,
		Status:         model.HoldStatusPendingPayment,
		ExpiresAt:      testNow.Add(DefaultHoldTTL),
	}
	require.NoError(t, f.holds.Create(context.Background(), hold))
	return hold
}

func TestConfirmCreatesBookingWithFrozenPrices(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0))
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{
		model.PersonTypeAdult: 2,
		model.PersonTypeChild: 1,
	})

	orderItem := uint64(777)
	detail, err := f.svc.Confirm(context.Background(), hold.ID, &orderItem, 42, nil)
	require.NoError(t, err)

	b := detail.Booking
	assert.Equal(t, model.BookingStatusConfirmed, b.Status)
	assert.Equal(t, uint64(42), b.UserID)
	require.NotNil(t, b.OrderItemID)
	assert.Equal(t, orderItem, *b.OrderItemID)
	require.Len(t, b.Items, 2)
	assert.Equal(t, model.PersonTypeAdult, b.Items[0].PersonType)
	assert.Equal(t, int64(2000), b.Items[0].TotalPriceCents)
	assert.Equal(t, model.PersonTypeChild, b.Items[1].PersonType)
	assert.Equal(t, int64(500), b.Items[1].TotalPriceCents)
	assert.Equal(t, int64(2500), detail.TotalPriceCents)
	assert.Equal(t, "Sunset Kayak Tour", detail.ProductName)

	// Confirmation converts the hold, it does not claim capacity again.
	assert.Equal(t, 3, f.slots.slots[1].ReservedCount)
	stored, _ := f.holds.GetByID(context.Background(), hold.ID)
	assert.Equal(t, model.HoldStatusConfirmed, stored.Status)
}

func TestConfirmRestatedQuantitiesMustMatchHold(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0))
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 3})

	_, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, map[model.PersonType]int{
		model.PersonTypeAdult: 2,
	})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))

	// A redistribution with the same total is allowed.
	detail, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, map[model.PersonType]int{
		model.PersonTypeAdult: 2,
		model.PersonTypeChild: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, detail.Booking.TotalQuantity())
}

func TestConfirmRejectsNonPendingHold(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0))
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 1})
	require.NoError(t, f.holds.TransitionStatus(context.Background(), hold.ID, model.HoldStatusPendingPayment, model.HoldStatusExpired))

	_, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err), "an expired hold cannot be revived")
}

func TestConfirmTwiceConflicts(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0))
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 1})

	_, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.NoError(t, err)

	_, err = f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
	assert.Len(t, f.bookings.bookings, 1)
}

func TestConfirmConvertsWaitlistEntry(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0))
	entry := &model.WaitlistEntry{ID: uuid.New(), AvailabilityID: 1, UserID: 42}
	require.NoError(t, f.waitlist.Create(context.Background(), entry))
	deadline := testNow.Add(DefaultClaimWindow)
	_, err := f.waitlist.PromoteNext(context.Background(), 1, testNow, deadline)
	require.NoError(t, err)

	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 1})
	_, err = f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.NoError(t, err)

	assert.Equal(t, model.WaitlistStatusConverted, f.waitlist.entries[0].Status)
}

func TestCheckInOnSlotDay(t *testing.T) {
	slot := testSlot(1, 5, 0)
	slot.SlotStart = testNow.Add(3 * time.Hour) // same UTC day
	f := newBookingFixture(slot)
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 1})
	detail, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.NoError(t, err)

	b, err := f.svc.CheckIn(context.Background(), detail.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCheckedIn, b.Status)
}

func TestCheckInWrongDay(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0)) // starts in two days
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 1})
	detail, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.NoError(t, err)

	_, err = f.svc.CheckIn(context.Background(), detail.Booking.ID)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestCancelReleasesCapacityAndPromotes(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0))
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 2, model.PersonTypeChild: 1})
	detail, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.NoError(t, err)
	require.Equal(t, 3, f.slots.slots[1].ReservedCount)

	b, err := f.svc.Cancel(context.Background(), detail.Booking.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, b.Status)
	assert.Equal(t, 0, f.slots.slots[1].ReservedCount)
	assert.Equal(t, []uint64{1}, f.promoter.calls)

	// Cancelling again must not release twice.
	_, err = f.svc.Cancel(context.Background(), detail.Booking.ID, 42)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
	assert.Equal(t, 0, f.slots.slots[1].ReservedCount)
}

func TestCancelRecoversAfterFailedRelease(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0))
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 2})
	detail, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.NoError(t, err)

	f.bookings.txErr = errors.New("connection reset")
	_, err = f.svc.Cancel(context.Background(), detail.Booking.ID, 42)
	require.Error(t, err)

	// Nothing committed: the booking stays confirmed and its capacity
	// stays counted, so the cancel can simply be retried.
	stored, getErr := f.bookings.GetByID(context.Background(), detail.Booking.ID)
	require.NoError(t, getErr)
	assert.Equal(t, model.BookingStatusConfirmed, stored.Status)
	assert.Equal(t, 2, f.slots.slots[1].ReservedCount)

	b, err := f.svc.Cancel(context.Background(), detail.Booking.ID, 42)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, b.Status)
	assert.Equal(t, 0, f.slots.slots[1].ReservedCount)
}

func TestCancelWrongUser(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0))
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 1})
	detail, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), detail.Booking.ID, 7)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Equal(t, 1, f.slots.slots[1].ReservedCount)
}

func TestMarkNoShowRequiresStartedSlot(t *testing.T) {
	f := newBookingFixture(testSlot(1, 5, 0))
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 2})
	detail, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.NoError(t, err)

	_, err = f.svc.MarkNoShow(context.Background(), detail.Booking.ID)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err), "no-show before the slot starts must be rejected")

	// Once the slot has started the transition goes through, and the
	// capacity stays attributed.
	f.svc.now = func() time.Time { return f.slots.slots[1].SlotStart.Add(time.Hour) }
	b, err := f.svc.MarkNoShow(context.Background(), detail.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusNoShow, b.Status)
	assert.Equal(t, 2, f.slots.slots[1].ReservedCount)
	assert.Empty(t, f.promoter.calls)
}

func TestCheckedInBookingCannotBeCancelled(t *testing.T) {
	slot := testSlot(1, 5, 0)
	slot.SlotStart = testNow.Add(3 * time.Hour)
	f := newBookingFixture(slot)
	hold := f.pendingHold(t, 1, 42, map[model.PersonType]int{model.PersonTypeAdult: 1})
	detail, err := f.svc.Confirm(context.Background(), hold.ID, nil, 42, nil)
	require.NoError(t, err)
	_, err = f.svc.CheckIn(context.Background(), detail.Booking.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), detail.Booking.ID, 42)
	require.Error(t, err)
	assert.True(t, errs.IsConflict(err))
}

func TestListByUser(t *testing.T) {
	f := newBookingFixture(testSlot(1, 10, 0))
	for _, user := range []uint64{42, 42, 7} {
		hold := f.pendingHold(t, 1, user, map[model.PersonType]int{model.PersonTypeAdult: 1})
		_, err := f.svc.Confirm(context.Background(), hold.ID, nil, user, nil)
		require.NoError(t, err)
	}

	mine, err := f.svc.ListByUser(context.Background(), 42)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}
