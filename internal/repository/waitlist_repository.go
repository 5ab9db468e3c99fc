package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/trailpass/experience-booking/internal/model"
)

// WaitlistRepo provides data access to waitlist_entries.  Positions
// are assigned monotonically per slot at insert time and never reused;
// promotion always takes the minimum waiting position, which is the
// whole FIFO contract.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

// createRetries bounds how often Create re-reads MAX(position) after
// losing a position race to a concurrent join.
const createRetries = 3

// Create inserts a waiting entry, assigning the next position for the
// slot inside the insert itself.  Two unique keys back the insert: one
// on (availability_id, position), so two concurrent joins can never
// share a position (the loser retries with a fresh MAX), and one on
// (availability_id, user_id, is_active), so the same user can never
// hold two non-terminal entries no matter how the pre-check raced.
// The assigned position is read back onto the entry.
func (r *WaitlistRepo) Create(ctx context.Context, e *model.WaitlistEntry) error {
	const q = `INSERT INTO waitlist_entries (id, availability_id, user_id, position, status)
	           SELECT ?, ?, ?, COALESCE(MAX(position), 0) + 1, ?
	           FROM waitlist_entries WHERE availability_id = ?`
	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		_, err = r.db.ExecContext(ctx, q,
			e.ID.String(), e.AvailabilityID, e.UserID, string(model.WaitlistStatusWaiting), e.AvailabilityID)
		if err == nil {
			break
		}
		var dup *mysql.MySQLError
		if !errors.As(err, &dup) || dup.Number != 1062 {
			return err
		}
		if strings.Contains(dup.Message, "uq_waitlist_active_user") {
			return ErrWaitlistDuplicate
		}
		// Position collision: a concurrent join took the slot's next
		// position between our MAX read and the insert.
	}
	if err != nil {
		return err
	}
	const sel = `SELECT position, created_at FROM waitlist_entries WHERE id = ?`
	if err := r.db.QueryRowContext(ctx, sel, e.ID.String()).Scan(&e.Position, &e.CreatedAt); err != nil {
		return err
	}
	e.Status = model.WaitlistStatusWaiting
	return nil
}

// HasActiveEntry reports whether the user already holds a non-terminal
// entry (waiting or notified) for the slot.
func (r *WaitlistRepo) HasActiveEntry(ctx context.Context, availabilityID, userID uint64) (bool, error) {
	const q = `SELECT 1 FROM waitlist_entries
	           WHERE availability_id = ? AND user_id = ? AND status IN (?, ?)
	           LIMIT 1`
	var one int
	err := r.db.QueryRowContext(ctx, q, availabilityID, userID,
		string(model.WaitlistStatusWaiting), string(model.WaitlistStatusNotified)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PromoteNext transitions the earliest waiting entry for the slot to
// notified and stamps the claim deadline.  The candidate row is locked
// so two concurrent promotions cannot notify the same or out-of-order
// entries.  Returns nil, nil when the queue has no waiting entry.
func (r *WaitlistRepo) PromoteNext(ctx context.Context, availabilityID uint64, now, deadline time.Time) (*model.WaitlistEntry, error) {
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

	const sel = `SELECT id, availability_id, user_id, position, created_at
	             FROM waitlist_entries
	             WHERE availability_id = ? AND status = ?
	             ORDER BY position ASC
	             LIMIT 1
	             FOR UPDATE`
	var rawID string
	e := &model.WaitlistEntry{}
	err = tx.QueryRowContext(ctx, sel, availabilityID, string(model.WaitlistStatusWaiting)).Scan(
		&rawID, &e.AvailabilityID, &e.UserID, &e.Position, &e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ID, err = uuid.Parse(rawID)
	if err != nil {
		return nil, err
	}

	const upd = `UPDATE waitlist_entries SET status = ?, notified_at = ?, expired_at = ? WHERE id = ?`
	notifiedAt := now.UTC()
	claimDeadline := deadline.UTC()
	if _, err := tx.ExecContext(ctx, upd,
		string(model.WaitlistStatusNotified),
		notifiedAt.Format(dbTimeLayout),
		claimDeadline.Format(dbTimeLayout),
		rawID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	e.Status = model.WaitlistStatusNotified
	e.NotifiedAt = &notifiedAt
	e.ExpiredAt = &claimDeadline
	return e, nil
}

// ExpireLapsed marks notified entries whose claim deadline has passed
// as expired and returns the slot ids they were queued on, so the
// caller can promote the next entry per slot.  Idempotent: a second
// run matches nothing.
func (r *WaitlistRepo) ExpireLapsed(ctx context.Context, now time.Time) ([]uint64, error) {
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
	const sel = `SELECT availability_id FROM waitlist_entries
	             WHERE status = ? AND expired_at <= ?
	             FOR UPDATE`
	rows, err := tx.QueryContext(ctx, sel, string(model.WaitlistStatusNotified), cutoff)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint64]struct{})
	var slotIDs []uint64
	for rows.Next() {
		var id uint64
		if scanErr := rows.Scan(&id); scanErr != nil {
			rows.Close()
			return nil, scanErr
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			slotIDs = append(slotIDs, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(slotIDs) == 0 {
		_ = tx.Rollback()
		return nil, nil
	}
	const upd = `UPDATE waitlist_entries SET status = ? WHERE status = ? AND expired_at <= ?`
	if _, err := tx.ExecContext(ctx, upd,
		string(model.WaitlistStatusExpired), string(model.WaitlistStatusNotified), cutoff); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return slotIDs, nil
}

// ConvertActive marks the user's notified entry for the slot as
// converted.  A no-op when the user has no live claim; conversion is a
// courtesy bookkeeping step, not a precondition of booking.
func (r *WaitlistRepo) ConvertActive(ctx context.Context, availabilityID, userID uint64, now time.Time) error {
	const q = `UPDATE waitlist_entries SET status = ?
	           WHERE availability_id = ? AND user_id = ? AND status = ? AND expired_at > ?`
	_, err := r.db.ExecContext(ctx, q,
		string(model.WaitlistStatusConverted),
		availabilityID, userID,
		string(model.WaitlistStatusNotified),
		now.UTC().Format(dbTimeLayout),
	)
	return err
}
