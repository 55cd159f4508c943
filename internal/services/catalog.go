package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"missionrewards/internal/apperr"
	"missionrewards/internal/models"
)

// Catalog reads the voucher catalog.
type Catalog struct {
	db *sqlx.DB
}

func NewCatalog(db *sqlx.DB) *Catalog { return &Catalog{db: db} }

// ListVouchers returns every voucher, cheapest first.
func (c *Catalog) ListVouchers(ctx context.Context) ([]models.Voucher, error) {
	out := []models.Voucher{}
	if err := c.db.SelectContext(ctx, &out, `SELECT `+voucherColumns+` FROM vouchers ORDER BY points ASC, id ASC`); err != nil {
		return nil, apperr.Unexpected("could not list vouchers", err)
	}
	return out, nil
}

func (c *Catalog) GetVoucher(ctx context.Context, id int64) (*models.Voucher, error) {
	var v models.Voucher
	if err := c.db.GetContext(ctx, &v, `SELECT `+voucherColumns+` FROM vouchers WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("Voucher not found.")
		}
		return nil, apperr.Unexpected("could not load voucher", err)
	}
	return &v, nil
}
