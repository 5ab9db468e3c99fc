package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/trailpass/experience-booking/internal/model"
)

// BookingRepo provides data access to bookings and booking_items.
// A booking's items are frozen at confirmation; only the status and
// the updated_at column change afterwards.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// Create inserts a booking and its items in one transaction and
// populates the generated IDs and timestamps.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `INSERT INTO bookings (order_item_id, user_id, availability_id, status) VALUES (?, ?, ?, ?)`
	var orderItem sql.NullInt64
	if b.OrderItemID != nil {
		orderItem = sql.NullInt64{Int64: int64(*b.OrderItemID), Valid: true}
	}
	res, err := tx.ExecContext(ctx, q, orderItem, b.UserID, b.AvailabilityID, string(b.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)

	if len(b.Items) > 0 {
		query := `INSERT INTO booking_items (booking_id, person_type, quantity, unit_price_cents, total_price_cents) VALUES `
		args := make([]interface{}, 0, len(b.Items)*5)
		for i := range b.Items {
			b.Items[i].BookingID = b.ID
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			it := b.Items[i]
			args = append(args, b.ID, string(it.PersonType), it.Quantity, it.UnitPriceCents, it.TotalPriceCents)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	const sel = `SELECT created_at, updated_at FROM bookings WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// GetByID loads a booking with its items.  Returns ErrBookingNotFound
// when the id does not resolve.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT id, order_item_id, user_id, availability_id, status, created_at, updated_at
	           FROM bookings WHERE id = ?`
	return r.getOne(ctx, q, id)
}

// GetByIDForUser loads a booking for its owner.  Ownership is folded
// into the WHERE clause, so a booking owned by someone else reads
// exactly like a missing one.
func (r *BookingRepo) GetByIDForUser(ctx context.Context, id, userID uint64) (*model.Booking, error) {
	const q = `SELECT id, order_item_id, user_id, availability_id, status, created_at, updated_at
	           FROM bookings WHERE id = ? AND user_id = ?`
	return r.getOne(ctx, q, id, userID)
}

func (r *BookingRepo) getOne(ctx context.Context, q string, args ...any) (*model.Booking, error) {
	b := &model.Booking{}
	var orderItem sql.NullInt64
	var status string
	err := r.db.QueryRowContext(ctx, q, args...).Scan(
		&b.ID, &orderItem, &b.UserID, &b.AvailabilityID, &status, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if orderItem.Valid {
		v := uint64(orderItem.Int64)
		b.OrderItemID = &v
	}
	b.Status = model.BookingStatus(status)
	items, err := r.itemsFor(ctx, []uint64{b.ID})
	if err != nil {
		return nil, err
	}
	b.Items = items[b.ID]
	return b, nil
}

// TransitionStatus moves a booking between statuses with a guarded
// update.  Returns ErrBookingNotFound for a missing id and
// ErrStaleTransition when the booking already left the expected
// status.
func (r *BookingRepo) TransitionStatus(ctx context.Context, id uint64, from, to model.BookingStatus) error {
	const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists uint64
		err := r.db.QueryRowContext(ctx, `SELECT id FROM bookings WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return err
		}
		return ErrStaleTransition
	}
	return nil
}

// TransitionAndRelease performs the guarded status update and returns
// the booking's capacity to its slot in one transaction.  Either both
// writes commit or neither does.  Error semantics match
// TransitionStatus.
func (r *BookingRepo) TransitionAndRelease(ctx context.Context, id uint64, from, to model.BookingStatus, availabilityID uint64, qty int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(to), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists uint64
		err := tx.QueryRowContext(ctx, `SELECT id FROM bookings WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrBookingNotFound
		}
		if err != nil {
			return err
		}
		return ErrStaleTransition
	}
	if _, err := tx.ExecContext(ctx, releaseCapacitySQL, qty, qty, availabilityID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ListByUser returns a user's bookings, newest first, with items
// populated in a single follow-up query.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
	const q = `SELECT id, order_item_id, user_id, availability_id, status, created_at, updated_at
	           FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bookings := make([]model.Booking, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var b model.Booking
		var orderItem sql.NullInt64
		var status string
		if err := rows.Scan(&b.ID, &orderItem, &b.UserID, &b.AvailabilityID, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		if orderItem.Valid {
			v := uint64(orderItem.Int64)
			b.OrderItemID = &v
		}
		b.Status = model.BookingStatus(status)
		index[b.ID] = len(bookings)
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(bookings) == 0 {
		return bookings, nil
	}
	ids := make([]uint64, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, its := range items {
		bookings[index[id]].Items = its
	}
	return bookings, nil
}

func (r *BookingRepo) itemsFor(ctx context.Context, ids []uint64) (map[uint64][]model.BookingItem, error) {
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT id, booking_id, person_type, quantity, unit_price_cents, total_price_cents
	      FROM booking_items
	      WHERE booking_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY booking_id, person_type`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]model.BookingItem, len(ids))
	for rows.Next() {
		var it model.BookingItem
		var pt string
		if err := rows.Scan(&it.ID, &it.BookingID, &pt, &it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents); err != nil {
			return nil, err
		}
		it.PersonType = model.PersonType(pt)
		out[it.BookingID] = append(out[it.BookingID], it)
	}
	return out, rows.Err()
}
