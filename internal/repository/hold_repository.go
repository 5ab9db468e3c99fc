package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/trailpass/experience-booking/internal/model"
)

// HoldRepo provides data access to booking_requests.  Status changes
// are guarded updates that match the expected current status, so a
// request can only leave pending_payment once regardless of how many
// callers race on it.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a HoldRepo bound to the provided database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

// Create inserts a booking request.  The caller supplies the UUID.
func (r *HoldRepo) Create(ctx context.Context, hold *model.BookingRequest) error {
	const q = `INSERT INTO booking_requests
	           (id, availability_id, user_id, quantity, qty_adult, qty_child, qty_pet, status, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		hold.ID.String(),
		hold.AvailabilityID,
		hold.UserID,
		hold.Quantity,
		hold.Quantities[model.PersonTypeAdult],
		hold.Quantities[model.PersonTypeChild],
		hold.Quantities[model.PersonTypePet],
		string(hold.Status),
		hold.ExpiresAt.UTC().Format(dbTimeLayout),
	)
	if err != nil {
		return err
	}
	const sel = `SELECT created_at FROM booking_requests WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, hold.ID.String()).Scan(&hold.CreatedAt)
}

// GetByID loads a booking request.  Returns ErrHoldNotFound when the
// id does not resolve.
func (r *HoldRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.BookingRequest, error) {
	const q = `SELECT id, availability_id, user_id, quantity, qty_adult, qty_child, qty_pet, status, expires_at, created_at
	           FROM booking_requests WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id.String()))
}

func (r *HoldRepo) scanOne(row *sql.Row) (*model.BookingRequest, error) {
	var (
		rawID                  string
		hold                   model.BookingRequest
		qtyAdult, qtyChild, qtyPet int
		status                 string
	)
	err := row.Scan(&rawID, &hold.AvailabilityID, &hold.UserID, &hold.Quantity,
		&qtyAdult, &qtyChild, &qtyPet, &status, &hold.ExpiresAt, &hold.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHoldNotFound
		}
		return nil, err
	}
	hold.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, err
	}
	hold.Status = model.HoldStatus(status)
	hold.Quantities = map[model.PersonType]int{}
	if qtyAdult > 0 {
		hold.Quantities[model.PersonTypeAdult] = qtyAdult
	}
	if qtyChild > 0 {
		hold.Quantities[model.PersonTypeChild] = qtyChild
	}
	if qtyPet > 0 {
		hold.Quantities[model.PersonTypePet] = qtyPet
	}
	return &hold, nil
}

// TransitionStatus moves a request from one status to another with a
// guarded update.  Returns ErrHoldNotFound when the id does not exist
// and ErrStaleTransition when the request already left the expected
// status, which makes release-side effects run exactly once.
func (r *HoldRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.HoldStatus) error {
	const q = `UPDATE booking_requests SET status = ? WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, string(to), id.String(), string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists string
		err := r.db.QueryRowContext(ctx, `SELECT id FROM booking_requests WHERE id = ?`, id.String()).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrHoldNotFound
		}
		if err != nil {
			return err
		}
		return ErrStaleTransition
	}
	return nil
}

// TransitionAndRelease performs the guarded status update and returns
// the request's capacity to its slot in a single transaction.  Either
// both writes commit or neither does, so a failed release can never
// strand a request in the target status with its quantity still
// counted.  Error semantics match TransitionStatus.
func (r *HoldRepo) TransitionAndRelease(ctx context.Context, id uuid.UUID, from, to model.HoldStatus, availabilityID uint64, qty int) error {
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

	const q = `UPDATE booking_requests SET status = ? WHERE id = ? AND status = ?`
	res, err := tx.ExecContext(ctx, q, string(to), id.String(), string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists string
		err := tx.QueryRowContext(ctx, `SELECT id FROM booking_requests WHERE id = ?`, id.String()).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrHoldNotFound
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

// ExpiredHoldGroup sums the quantities of holds expired for one slot.
type ExpiredHoldGroup struct {
	AvailabilityID uint64
	Quantity       int
}

// ExpireDue marks every pending_payment request whose expiry has
// passed as expired and decrements each slot's reserved_count by the
// expired quantity, all in one transaction, returning the quantity
// grouped by slot.  Rows are locked for the duration of the
// transaction so a concurrent sweep cannot double-count them; because
// the status flip and the capacity release commit together, a failure
// anywhere rolls the whole sweep back and leaves every hold
// pending_payment for the next run.  Re-running after a completed
// sweep matches nothing and is a no-op.
func (r *HoldRepo) ExpireDue(ctx context.Context, now time.Time) ([]ExpiredHoldGroup, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cutoff := now.UTC().Format(dbTimeLayout)
	const sel = `SELECT availability_id, quantity
	             FROM booking_requests
	             WHERE status = ? AND expires_at < ?
	             FOR UPDATE`
	rows, err := tx.QueryContext(ctx, sel, string(model.HoldStatusPendingPayment), cutoff)
	if err != nil {
		return nil, err
	}
	sums := make(map[uint64]int)
	order := make([]uint64, 0)
	for rows.Next() {
		var slotID uint64
		var qty int
		if scanErr := rows.Scan(&slotID, &qty); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		if _, seen := sums[slotID]; !seen {
			order = append(order, slotID)
		}
		sums[slotID] += qty
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	groups := make([]ExpiredHoldGroup, 0, len(order))
	for _, slotID := range order {
		groups = append(groups, ExpiredHoldGroup{AvailabilityID: slotID, Quantity: sums[slotID]})
	}
	if len(groups) == 0 {
		_ = tx.Rollback()
		return nil, nil
	}
	const upd = `UPDATE booking_requests SET status = ? WHERE status = ? AND expires_at < ?`
	if _, err := tx.ExecContext(ctx, upd,
		string(model.HoldStatusExpired), string(model.HoldStatusPendingPayment), cutoff); err != nil {
		return nil, err
	}
	for _, g := range groups {
		if _, err := tx.ExecContext(ctx, releaseCapacitySQL, g.Quantity, g.Quantity, g.AvailabilityID); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return groups, nil
}
