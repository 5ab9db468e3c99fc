package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/trailpass/experience-booking/internal/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// SlotRepo provides data access to availability_slots and slot_prices.
// All timestamps are stored in UTC.  The reserved_count column is only
// ever mutated through Reserve and Release, which perform conditional
// atomic arithmetic in the database; there is no read-modify-write
// path for the counter anywhere in the repository.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a SlotRepo bound to the provided database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying handle for callers that need to open a
// transaction spanning multiple repositories.
func (r *SlotRepo) DB() *sql.DB { return r.db }

// Create inserts a slot together with its price entries in a single
// transaction and populates the generated ID and timestamps.
func (r *SlotRepo) Create(ctx context.Context, slot *model.AvailabilitySlot) error {
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
	if err := r.createTx(ctx, tx, slot); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// CreateBulk inserts multiple slots with their prices in one
// transaction.  Either all slots are created or none.
func (r *SlotRepo) CreateBulk(ctx context.Context, slots []*model.AvailabilitySlot) error {
	if len(slots) == 0 {
		return nil
	}
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
	for _, slot := range slots {
		if err := r.createTx(ctx, tx, slot); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *SlotRepo) createTx(ctx context.Context, tx *sql.Tx, slot *model.AvailabilitySlot) error {
	const q = `INSERT INTO availability_slots (product_id, slot_start, total_capacity, reserved_count, stored_status, is_active)
	           VALUES (?, ?, ?, 0, ?, ?)`
	var stored sql.NullString
	if slot.StoredStatus != "" {
		stored = sql.NullString{String: string(slot.StoredStatus), Valid: true}
	}
	res, err := tx.ExecContext(ctx, q,
		slot.ProductID,
		slot.SlotStart.UTC().Format(dbTimeLayout),
		slot.TotalCapacity,
		stored,
		slot.IsActive,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	slot.ID = uint64(id)
	slot.ReservedCount = 0
	if len(slot.Prices) > 0 {
		// Multi-row insert for the price entries.
		query := `INSERT INTO slot_prices (availability_id, person_type, unit_price_cents) VALUES `
		args := make([]interface{}, 0, len(slot.Prices)*3)
		for i, p := range slot.Prices {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, slot.ID, string(p.PersonType), p.UnitPriceCents)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	// Query back timestamps set by the database.
	const sel = `SELECT created_at, updated_at FROM availability_slots WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, slot.ID).Scan(&slot.CreatedAt, &slot.UpdatedAt)
}

// GetByID loads a slot and its prices.  Returns ErrSlotNotFound when
// the id does not resolve.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (*model.AvailabilitySlot, error) {
	const q = `SELECT id, product_id, slot_start, total_capacity, reserved_count, stored_status, is_active, created_at, updated_at
	           FROM availability_slots WHERE id = ?`
	slot := &model.AvailabilitySlot{}
	var stored sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&slot.ID, &slot.ProductID, &slot.SlotStart, &slot.TotalCapacity, &slot.ReservedCount,
		&stored, &slot.IsActive, &slot.CreatedAt, &slot.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}
	if stored.Valid {
		slot.StoredStatus = model.SlotStatus(stored.String)
	}
	prices, err := r.pricesFor(ctx, []uint64{slot.ID})
	if err != nil {
		return nil, err
	}
	slot.Prices = prices[slot.ID]
	return slot, nil
}

// SlotListQuery defines filters and pagination for listing slots.
type SlotListQuery struct {
	ProductID uint64
	DateFrom  time.Time // zero means unbounded
	DateTo    time.Time // zero means unbounded
	Page      int
	PageSize  int
}

// ListByProduct returns slots for a product ordered by start time, plus
// the total match count for pagination.  Listing never mutates
// reserved_count; the effective status is derived by the caller.
func (r *SlotRepo) ListByProduct(ctx context.Context, q SlotListQuery) ([]model.AvailabilitySlot, int64, error) {
	where := []string{"product_id = ?", "is_active = 1"}
	args := []any{q.ProductID}
	if !q.DateFrom.IsZero() {
		where = append(where, "slot_start >= ?")
		args = append(args, q.DateFrom.UTC().Format(dbTimeLayout))
	}
	if !q.DateTo.IsZero() {
		where = append(where, "slot_start <= ?")
		args = append(args, q.DateTo.UTC().Format(dbTimeLayout))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*) FROM availability_slots WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size < 1 {
		size = 20
	}
	dataSQL := `SELECT id, product_id, slot_start, total_capacity, reserved_count, stored_status, is_active, created_at, updated_at
	            FROM availability_slots
	            WHERE ` + cond + `
	            ORDER BY slot_start ASC
	            LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), size, (page-1)*size)
	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	slots := make([]model.AvailabilitySlot, 0, size)
	ids := make([]uint64, 0, size)
	for rows.Next() {
		var s model.AvailabilitySlot
		var stored sql.NullString
		if err := rows.Scan(
			&s.ID, &s.ProductID, &s.SlotStart, &s.TotalCapacity, &s.ReservedCount,
			&stored, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		if stored.Valid {
			s.StoredStatus = model.SlotStatus(stored.String)
		}
		slots = append(slots, s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) > 0 {
		prices, err := r.pricesFor(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for i := range slots {
			slots[i].Prices = prices[slots[i].ID]
		}
	}
	return slots, total, nil
}

// pricesFor loads price entries for a set of slots in one query.
func (r *SlotRepo) pricesFor(ctx context.Context, ids []uint64) (map[uint64][]model.PriceEntry, error) {
	placeholders := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}
	q := `SELECT availability_id, person_type, unit_price_cents
	      FROM slot_prices
	      WHERE availability_id IN (` + strings.Join(placeholders, ",") + `)
	      ORDER BY availability_id, person_type`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[uint64][]model.PriceEntry, len(ids))
	for rows.Next() {
		var slotID uint64
		var pt string
		var cents int64
		if err := rows.Scan(&slotID, &pt, &cents); err != nil {
			return nil, err
		}
		out[slotID] = append(out[slotID], model.PriceEntry{PersonType: model.PersonType(pt), UnitPriceCents: cents})
	}
	return out, rows.Err()
}

// Reserve atomically claims qty units of capacity.  The capacity bound
// is folded into the UPDATE itself, so the check and the increment are
// a single conditional statement; concurrent callers cannot both pass
// on the last units.  Returns ErrCapacityExceeded when the bound would
// be violated and ErrSlotNotFound when the slot does not exist.
func (r *SlotRepo) Reserve(ctx context.Context, id uint64, qty int) error {
	const q = `UPDATE availability_slots
	           SET reserved_count = reserved_count + ?
	           WHERE id = ? AND reserved_count + ? <= total_capacity`
	res, err := r.db.ExecContext(ctx, q, qty, id, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// Distinguish a missing slot from a full one.
		var exists uint64
		err := r.db.QueryRowContext(ctx, `SELECT id FROM availability_slots WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSlotNotFound
		}
		if err != nil {
			return err
		}
		return ErrCapacityExceeded
	}
	return nil
}

// releaseCapacitySQL returns qty units of capacity, clamping at zero
// rather than underflowing.  Shared with the hold and booking repos,
// which fold the same decrement into their transition transactions.
const releaseCapacitySQL = `UPDATE availability_slots
           SET reserved_count = IF(reserved_count >= ?, reserved_count - ?, 0)
           WHERE id = ?`

// Release atomically returns qty units of capacity.
func (r *SlotRepo) Release(ctx context.Context, id uint64, qty int) error {
	_, err := r.db.ExecContext(ctx, releaseCapacitySQL, qty, qty, id)
	return err
}

// SetStoredStatus records an admin override on a slot.  Passing the
// empty status clears the override so the derived status applies again.
func (r *SlotRepo) SetStoredStatus(ctx context.Context, id uint64, status model.SlotStatus) error {
	var stored sql.NullString
	if status != "" {
		stored = sql.NullString{String: string(status), Valid: true}
	}
	// RowsAffected reports changed rows, not matched rows, so a no-op
	// override would read as missing; check existence separately.
	var exists uint64
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM availability_slots WHERE id = ?`, id).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSlotNotFound
		}
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE availability_slots SET stored_status = ? WHERE id = ?`, stored, id)
	return err
}
