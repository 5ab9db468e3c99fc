package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trailpass/experience-booking/internal/model"
	"github.com/trailpass/experience-booking/internal/repository"
)

// The fakes below mirror the repository contracts: conditional
// capacity arithmetic, guarded status transitions and FIFO promotion,
// without a database underneath.

type fakeSlotStore struct {
	slots    map[uint64]*model.AvailabilitySlot
	reserves int
	releases int
}

func newFakeSlotStore(slots ...*model.AvailabilitySlot) *fakeSlotStore {
	s := &fakeSlotStore{slots: map[uint64]*model.AvailabilitySlot{}}
	for _, slot := range slots {
		s.slots[slot.ID] = slot
	}
	return s
}

func (s *fakeSlotStore) Create(_ context.Context, slot *model.AvailabilitySlot) error {
	slot.ID = uint64(len(s.slots) + 1)
	s.slots[slot.ID] = slot
	return nil
}

func (s *fakeSlotStore) CreateBulk(ctx context.Context, slots []*model.AvailabilitySlot) error {
	for _, slot := range slots {
		if err := s.Create(ctx, slot); err != nil {
			return err
		}
	}
	return nil
}

func (s *fakeSlotStore) GetByID(_ context.Context, id uint64) (*model.AvailabilitySlot, error) {
	slot, ok := s.slots[id]
	if !ok {
		return nil, repository.ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (s *fakeSlotStore) ListByProduct(_ context.Context, q repository.SlotListQuery) ([]model.AvailabilitySlot, int64, error) {
	var out []model.AvailabilitySlot
	for _, slot := range s.slots {
		if slot.ProductID == q.ProductID {
			out = append(out, *slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotStart.Before(out[j].SlotStart) })
	return out, int64(len(out)), nil
}

func (s *fakeSlotStore) Reserve(_ context.Context, id uint64, qty int) error {
	slot, ok := s.slots[id]
	if !ok {
		return repository.ErrSlotNotFound
	}
	if slot.ReservedCount+qty > slot.TotalCapacity {
		return repository.ErrCapacityExceeded
	}
	slot.ReservedCount += qty
	s.reserves++
	return nil
}

func (s *fakeSlotStore) Release(_ context.Context, id uint64, qty int) error {
	slot, ok := s.slots[id]
	if !ok {
		return repository.ErrSlotNotFound
	}
	slot.ReservedCount -= qty
	if slot.ReservedCount < 0 {
		slot.ReservedCount = 0
	}
	s.releases++
	return nil
}

func (s *fakeSlotStore) SetStoredStatus(_ context.Context, id uint64, status model.SlotStatus) error {
	slot, ok := s.slots[id]
	if !ok {
		return repository.ErrSlotNotFound
	}
	slot.StoredStatus = status
	return nil
}

type fakeHoldStore struct {
	holds map[uuid.UUID]*model.BookingRequest
	order []uuid.UUID
	// slots receives the capacity decrements that TransitionAndRelease
	// and ExpireDue fold into their transactions.
	slots *fakeSlotStore
	// createErr forces the next Create to fail, for compensation paths.
	createErr error
	// txErr makes the next TransitionAndRelease or ExpireDue fail
	// without mutating anything, as a rolled-back transaction would.
	txErr error
}

func newFakeHoldStore() *fakeHoldStore {
	return &fakeHoldStore{holds: map[uuid.UUID]*model.BookingRequest{}}
}

func (s *fakeHoldStore) Create(_ context.Context, hold *model.BookingRequest) error {
	if s.createErr != nil {
		err := s.createErr
		s.createErr = nil
		return err
	}
	cp := *hold
	s.holds[hold.ID] = &cp
	s.order = append(s.order, hold.ID)
	return nil
}

func (s *fakeHoldStore) GetByID(_ context.Context, id uuid.UUID) (*model.BookingRequest, error) {
	hold, ok := s.holds[id]
	if !ok {
		return nil, repository.ErrHoldNotFound
	}
	cp := *hold
	return &cp, nil
}

func (s *fakeHoldStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to model.HoldStatus) error {
	hold, ok := s.holds[id]
	if !ok {
		return repository.ErrHoldNotFound
	}
	if hold.Status != from {
		return repository.ErrStaleTransition
	}
	hold.Status = to
	return nil
}

func (s *fakeHoldStore) TransitionAndRelease(ctx context.Context, id uuid.UUID, from, to model.HoldStatus, availabilityID uint64, qty int) error {
	if s.txErr != nil {
		err := s.txErr
		s.txErr = nil
		return err
	}
	if err := s.TransitionStatus(ctx, id, from, to); err != nil {
		return err
	}
	return s.slots.Release(ctx, availabilityID, qty)
}

func (s *fakeHoldStore) ExpireDue(ctx context.Context, now time.Time) ([]repository.ExpiredHoldGroup, error) {
	if s.txErr != nil {
		err := s.txErr
		s.txErr = nil
		return nil, err
	}
	var groups []repository.ExpiredHoldGroup
	idx := map[uint64]int{}
	for _, id := range s.order {
		hold := s.holds[id]
		if hold.Status != model.HoldStatusPendingPayment || !hold.ExpiresAt.Before(now) {
			continue
		}
		hold.Status = model.HoldStatusExpired
		if i, ok := idx[hold.AvailabilityID]; ok {
			groups[i].Quantity += hold.Quantity
			continue
		}
		idx[hold.AvailabilityID] = len(groups)
		groups = append(groups, repository.ExpiredHoldGroup{AvailabilityID: hold.AvailabilityID, Quantity: hold.Quantity})
	}
	for _, g := range groups {
		if err := s.slots.Release(ctx, g.AvailabilityID, g.Quantity); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

type fakeBookingStore struct {
	bookings map[uint64]*model.Booking
	nextID   uint64
	slots    *fakeSlotStore
	// txErr makes the next TransitionAndRelease fail without mutating
	// anything, as a rolled-back transaction would.
	txErr error
}

func newFakeBookingStore() *fakeBookingStore {
	return &fakeBookingStore{bookings: map[uint64]*model.Booking{}, nextID: 1}
}

func (s *fakeBookingStore) Create(_ context.Context, b *model.Booking) error {
	b.ID = s.nextID
	s.nextID++
	for i := range b.Items {
		b.Items[i].BookingID = b.ID
	}
	cp := *b
	s.bookings[b.ID] = &cp
	return nil
}

func (s *fakeBookingStore) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	b, ok := s.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeBookingStore) GetByIDForUser(_ context.Context, id, userID uint64) (*model.Booking, error) {
	b, ok := s.bookings[id]
	if !ok || b.UserID != userID {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *fakeBookingStore) TransitionStatus(_ context.Context, id uint64, from, to model.BookingStatus) error {
	b, ok := s.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	if b.Status != from {
		return repository.ErrStaleTransition
	}
	b.Status = to
	return nil
}

func (s *fakeBookingStore) TransitionAndRelease(ctx context.Context, id uint64, from, to model.BookingStatus, availabilityID uint64, qty int) error {
	if s.txErr != nil {
		err := s.txErr
		s.txErr = nil
		return err
	}
	if err := s.TransitionStatus(ctx, id, from, to); err != nil {
		return err
	}
	return s.slots.Release(ctx, availabilityID, qty)
}

func (s *fakeBookingStore) ListByUser(_ context.Context, userID uint64) ([]model.Booking, error) {
	var out []model.Booking
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeWaitlistStore struct {
	entries []*model.WaitlistEntry
	// staleActiveCheck makes HasActiveEntry report no entry, modeling
	// the window where a concurrent join has inserted but this caller's
	// pre-check read ran before the commit.
	staleActiveCheck bool
}

func (s *fakeWaitlistStore) Create(_ context.Context, e *model.WaitlistEntry) error {
	// The unique key on (availability_id, user_id, is_active) rejects a
	// second non-terminal entry regardless of what the pre-check saw.
	for _, x := range s.entries {
		if x.AvailabilityID == e.AvailabilityID && x.UserID == e.UserID && !x.Status.Terminal() {
			return repository.ErrWaitlistDuplicate
		}
	}
	max := 0
	for _, x := range s.entries {
		if x.AvailabilityID == e.AvailabilityID && x.Position > max {
			max = x.Position
		}
	}
	e.Position = max + 1
	e.Status = model.WaitlistStatusWaiting
	s.entries = append(s.entries, e)
	return nil
}

func (s *fakeWaitlistStore) HasActiveEntry(_ context.Context, availabilityID, userID uint64) (bool, error) {
	if s.staleActiveCheck {
		return false, nil
	}
	for _, e := range s.entries {
		if e.AvailabilityID == availabilityID && e.UserID == userID && !e.Status.Terminal() {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeWaitlistStore) PromoteNext(_ context.Context, availabilityID uint64, now, deadline time.Time) (*model.WaitlistEntry, error) {
	var next *model.WaitlistEntry
	for _, e := range s.entries {
		if e.AvailabilityID != availabilityID || e.Status != model.WaitlistStatusWaiting {
			continue
		}
		if next == nil || e.Position < next.Position {
			next = e
		}
	}
	if next == nil {
		return nil, nil
	}
	notifiedAt := now
	next.Status = model.WaitlistStatusNotified
	next.NotifiedAt = &notifiedAt
	next.ExpiredAt = &deadline
	cp := *next
	return &cp, nil
}

func (s *fakeWaitlistStore) ExpireLapsed(_ context.Context, now time.Time) ([]uint64, error) {
	var slotIDs []uint64
	seen := map[uint64]bool{}
	for _, e := range s.entries {
		if e.Status != model.WaitlistStatusNotified || e.ExpiredAt == nil || now.Before(*e.ExpiredAt) {
			continue
		}
		e.Status = model.WaitlistStatusExpired
		if !seen[e.AvailabilityID] {
			seen[e.AvailabilityID] = true
			slotIDs = append(slotIDs, e.AvailabilityID)
		}
	}
	return slotIDs, nil
}

func (s *fakeWaitlistStore) ConvertActive(_ context.Context, availabilityID, userID uint64, _ time.Time) error {
	for _, e := range s.entries {
		if e.AvailabilityID == availabilityID && e.UserID == userID && !e.Status.Terminal() {
			e.Status = model.WaitlistStatusConverted
		}
	}
	return nil
}

type fakeProducts struct {
	products map[uint64]*model.Product
}

func newFakeProducts(products ...*model.Product) *fakeProducts {
	f := &fakeProducts{products: map[uint64]*model.Product{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProducts) FindProduct(_ context.Context, id uint64) (*model.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

type fakeNotifier struct {
	sent []Notification
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, msg Notification) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

type fakePromoter struct {
	calls []uint64
}

func (p *fakePromoter) PromoteNext(_ context.Context, availabilityID uint64) (uint64, bool, error) {
	p.calls = append(p.calls, availabilityID)
	return 0, false, nil
}
