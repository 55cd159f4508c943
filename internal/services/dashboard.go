package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"missionrewards/internal/apperr"
)

type Dashboard struct {
	db *sqlx.DB
}

func NewDashboard(db *sqlx.DB) *Dashboard { return &Dashboard{db: db} }

// Summary is a user's balance alongside mission and redemption counters.
type Summary struct {
	Points             int64 `db:"points" json:"points"`
	MissionsNotStarted int64 `db:"missions_not_started" json:"missions_not_started"`
	MissionsPending    int64 `db:"missions_pending" json:"missions_pending"`
	MissionsCompleted  int64 `db:"missions_completed" json:"missions_completed"`
	PointsEarned       int64 `db:"points_earned" json:"points_earned"`
	VoucherExchanges   int64 `db:"voucher_exchanges" json:"voucher_exchanges"`
	CashRewards        int64 `db:"cash_rewards" json:"cash_rewards"`
	PointsSpent        int64 `db:"points_spent" json:"points_spent"`
}

// Summary aggregates everything in a single round trip using FILTER.
func (d *Dashboard) Summary(ctx context.Context, userID int64) (*Summary, error) {
	var out Summary
	err := d.db.GetContext(ctx, &out, `
		SELECT
			u.points,
			COALESCE(um.not_started, 0) AS missions_not_started,
			COALESCE(um.pending, 0) AS missions_pending,
			COALESCE(um.completed, 0) AS missions_completed,
			COALESCE(um.earned, 0) AS points_earned,
			(SELECT COUNT(*) FROM vouchers_exchange WHERE user_id = u.id) AS voucher_exchanges,
			(SELECT COUNT(*) FROM rewards WHERE user_id = u.id) AS cash_rewards,
			(SELECT COALESCE(SUM(points_spent), 0) FROM vouchers_exchange WHERE user_id = u.id)
				+ (SELECT COALESCE(SUM(points_spent), 0) FROM rewards WHERE user_id = u.id) AS points_spent
		FROM users u
		LEFT JOIN (
			SELECT
				x.user_id,
				COUNT(*) FILTER (WHERE x.status = 'not_started') AS not_started,
				COUNT(*) FILTER (WHERE x.status = 'pending') AS pending,
				COUNT(*) FILTER (WHERE x.status = 'completed') AS completed,
				SUM(m.points) FILTER (WHERE x.status = 'completed') AS earned
			FROM user_missions x
			JOIN missions m ON m.id = x.mission_id
			WHERE x.user_id = $1
			GROUP BY x.user_id
		) um ON um.user_id = u.id
		WHERE u.id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User not found.")
		}
		return nil, apperr.Unexpected("could not load summary", err)
	}
	return &out, nil
}
