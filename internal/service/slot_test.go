package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailpass/experience-booking/internal/errs"
	"github.com/trailpass/experience-booking/internal/model"
)

func newSlotFixture(products ...*model.Product) (*SlotService, *fakeSlotStore) {
	slots := newFakeSlotStore()
	if len(products) == 0 {
		products = []*model.Product{{ID: 1, Type: model.ProductTypeExperience, Name: "Sunset Kayak Tour"}}
	}
	svc := NewSlotService(slots, newFakeProducts(products...), zerolog.Nop())
	svc.now = func() time.Time { return testNow }
	return svc, slots
}

func validInput() SlotInput {
	return SlotInput{
		Date:     "2026-07-12",
		Time:     "14:30",
		Capacity: 8,
		Prices: []model.PriceEntry{
			{PersonType: model.PersonTypeAdult, UnitPriceCents: 1250},
		},
	}
}

func TestCreateSlotParsesStartAndDerivesStatus(t *testing.T) {
	svc, slots := newSlotFixture()

	view, err := svc.CreateSlot(context.Background(), 1, validInput())
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 7, 12, 14, 30, 0, 0, time.UTC), view.Slot.SlotStart)
	assert.Equal(t, model.SlotStatusAvailable, view.EffectiveStatus)
	assert.Equal(t, 8, view.RemainingCapacity)
	assert.Len(t, slots.slots, 1)
}

func TestCreateSlotsAllOrNothing(t *testing.T) {
	svc, slots := newSlotFixture()

	bad := validInput()
	bad.Prices = nil
	_, err := svc.CreateSlots(context.Background(), 1, []SlotInput{validInput(), bad})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Empty(t, slots.slots, "a failing input must not leave partial slots behind")
}

func TestCreateSlotValidation(t *testing.T) {
	past := validInput()
	past.Date = "2026-07-01"

	dup := validInput()
	dup.Prices = append(dup.Prices, model.PriceEntry{PersonType: model.PersonTypeAdult, UnitPriceCents: 900})

	negative := validInput()
	negative.Prices = []model.PriceEntry{{PersonType: model.PersonTypeAdult, UnitPriceCents: -1}}

	unknown := validInput()
	unknown.Prices = []model.PriceEntry{{PersonType: "senior", UnitPriceCents: 100}}

	badDate := validInput()
	badDate.Date = "12/07/2026"

	cases := []struct {
		name string
		in   SlotInput
	}{
		{"start in the past", past},
		{"duplicate price entry", dup},
		{"negative price", negative},
		{"unknown person type", unknown},
		{"malformed date", badDate},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _ := newSlotFixture()
			_, err := svc.CreateSlot(context.Background(), 1, tc.in)
			require.Error(t, err)
			assert.True(t, errs.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestCreateSlotRejectsNonBookableProduct(t *testing.T) {
	svc, _ := newSlotFixture(&model.Product{ID: 1, Type: model.ProductTypeItem, Name: "Gift Card"})
	_, err := svc.CreateSlot(context.Background(), 1, validInput())
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestCreateSlotUnknownProduct(t *testing.T) {
	svc, _ := newSlotFixture()
	_, err := svc.CreateSlot(context.Background(), 99, validInput())
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestSetSlotStatus(t *testing.T) {
	svc, slots := newSlotFixture()
	view, err := svc.CreateSlot(context.Background(), 1, validInput())
	require.NoError(t, err)

	updated, err := svc.SetSlotStatus(context.Background(), view.Slot.ID, model.SlotStatusClosed)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusClosed, updated.EffectiveStatus, "a terminal override wins over derivation")
	assert.Equal(t, model.SlotStatusClosed, slots.slots[view.Slot.ID].StoredStatus)
}

func TestSetSlotStatusRejectsUnknownValue(t *testing.T) {
	svc, _ := newSlotFixture()
	view, err := svc.CreateSlot(context.Background(), 1, validInput())
	require.NoError(t, err)

	_, err = svc.SetSlotStatus(context.Background(), view.Slot.ID, "postponed")
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
}

func TestSetSlotStatusUnknownSlot(t *testing.T) {
	svc, _ := newSlotFixture()
	_, err := svc.SetSlotStatus(context.Background(), 99, model.SlotStatusClosed)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestGetSlotDerivesFullStatus(t *testing.T) {
	svc, slots := newSlotFixture()
	view, err := svc.CreateSlot(context.Background(), 1, validInput())
	require.NoError(t, err)
	require.NoError(t, slots.Reserve(context.Background(), view.Slot.ID, 8))

	got, err := svc.GetSlot(context.Background(), view.Slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusFull, got.EffectiveStatus)
	assert.Equal(t, 0, got.RemainingCapacity)
}
