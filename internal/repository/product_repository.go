package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/trailpass/experience-booking/internal/model"
)

// ProductRepo is the storage-backed implementation of the narrow
// catalog lookup the engine consumes.  The full catalog model is owned
// by another service; this table carries only the fields slot creation
// and waitlisting need.
type ProductRepo struct {
	db *sql.DB
}

// NewProductRepo returns a ProductRepo bound to the given database.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

// FindProduct returns the product's type, name and waitlist setting.
// Returns ErrProductNotFound when the id does not resolve.
func (r *ProductRepo) FindProduct(ctx context.Context, id uint64) (*model.Product, error) {
	const q = `SELECT id, type, name, waitlist_enabled FROM products WHERE id = ?`
	p := &model.Product{}
	var ptype string
	err := r.db.QueryRowContext(ctx, q, id).Scan(&p.ID, &ptype, &p.Name, &p.WaitlistEnabled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	p.Type = model.ProductType(ptype)
	return p, nil
}
