package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

type seedMission struct {
	Title       string
	Description string
	Points      int64
}

type seedVoucher struct {
	Title     string
	ImagePath string
	Points    int64
}

var sampleMissions = []seedMission{
	{Title: "Plant a tree", Description: "Plant a tree in your neighbourhood and upload a photo of it.", Points: 100},
	{Title: "Bring a reusable bottle", Description: "Use a reusable bottle for the whole day and show us.", Points: 50},
}

var sampleVouchers = []seedVoucher{
	{Title: "Coffee voucher", ImagePath: "vouchers/coffee.png", Points: 500},
	{Title: "Grocery voucher", ImagePath: "vouchers/grocery.png", Points: 1200},
}

// SeedResult counts the rows Seed inserted.
type SeedResult struct {
	Missions int
	Vouchers int
}

// Seed inserts sample missions active on day and sample vouchers. Each table
// is only seeded while it is empty.
func Seed(ctx context.Context, db *sqlx.DB, day time.Time) (SeedResult, error) {
	var res SeedResult
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	empty, err := tableEmpty(ctx, tx, "missions")
	if err != nil {
		return res, err
	}
	if empty {
		activeOn := day.UTC().Format("2006-01-02")
		for _, m := range sampleMissions {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO missions (title, description, points, active_on) VALUES ($1, $2, $3, $4::date)`,
				m.Title, m.Description, m.Points, activeOn); err != nil {
				return res, fmt.Errorf("seed mission %q: %w", m.Title, err)
			}
			res.Missions++
		}
	}

	empty, err = tableEmpty(ctx, tx, "vouchers")
	if err != nil {
		return res, err
	}
	if empty {
		for _, v := range sampleVouchers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vouchers (title, image_path, points) VALUES ($1, $2, $3)`,
				v.Title, v.ImagePath, v.Points); err != nil {
				return res, fmt.Errorf("seed voucher %q: %w", v.Title, err)
			}
			res.Vouchers++
		}
	}

	if err := tx.Commit(); err != nil {
		return SeedResult{}, err
	}
	return res, nil
}

// ErrUserNotFound is returned by PromoteAdmin for an unknown email.
var ErrUserNotFound = errors.New("user not found")

// PromoteAdmin sets the admin flag on the user with email.
func PromoteAdmin(ctx context.Context, db *sqlx.DB, email string) (int64, error) {
	var id int64
	err := db.GetContext(ctx, &id, `UPDATE users SET is_admin = true, updated_at = NOW() WHERE email = $1 RETURNING id`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return id, err
}

func tableEmpty(ctx context.Context, tx *sqlx.Tx, table string) (bool, error) {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM `+table+`)`); err != nil {
		return false, fmt.Errorf("check %s: %w", table, err)
	}
	return !exists, nil
}
