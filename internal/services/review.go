package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"missionrewards/internal/apperr"
	"missionrewards/internal/metrics"
	"missionrewards/internal/models"
	"missionrewards/internal/storage"
)

// ProofReview lets administrators settle pending proofs. Approval credits
// the mission's points in the same transaction as the status change.
type ProofReview struct {
	db     *sqlx.DB
	ledger *PointsLedger
	store  storage.Store
	logger *zap.Logger
}

func NewProofReview(db *sqlx.DB, ledger *PointsLedger, store storage.Store, logger *zap.Logger) *ProofReview {
	return &ProofReview{db: db, ledger: ledger, store: store, logger: logger}
}

type ReviewResult struct {
	ProgressID    int64                `json:"user_mission_id"`
	UserID        int64                `json:"user_id"`
	Status        models.MissionStatus `json:"status"`
	PointsAwarded int64                `json:"points_awarded"`
	CurrentPoints int64                `json:"current_points,omitempty"`
}

type Overview struct {
	TotalUsers         int64 `db:"total_users" json:"total_users"`
	TotalMissions      int64 `db:"total_missions" json:"total_missions"`
	PendingReviews     int64 `db:"pending_reviews" json:"pending_reviews"`
	CompletedMissions  int64 `db:"completed_missions" json:"completed_missions"`
	CompletedToday     int64 `db:"completed_today" json:"completed_today"`
	VoucherExchanges   int64 `db:"voucher_exchanges" json:"voucher_exchanges"`
	CashRewards        int64 `db:"cash_rewards" json:"cash_rewards"`
	PointsOutstanding  int64 `db:"points_outstanding" json:"points_outstanding"`
	PointsRedeemed     int64 `db:"points_redeemed" json:"points_redeemed"`
	NewUsersThisWeek   int64 `db:"new_users_this_week" json:"new_users_this_week"`
	ActiveUsersThisDay int64 `db:"active_users_today" json:"active_users_today"`
}

type reviewTarget struct {
	ID     int64                `db:"id"`
	UserID int64                `db:"user_id"`
	Status models.MissionStatus `db:"status"`
	Proof  string               `db:"proof"`
	// Uploaded is set when the proof lives in our store rather than being
	// a link the user supplied.
	Uploaded bool  `db:"proof_uploaded"`
	Points   int64 `db:"points"`
}

// IsAdmin reports whether userID carries the admin flag. Unknown users are
// not admins.
func (r *ProofReview) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	var isAdmin bool
	if err := r.db.QueryRowxContext(ctx, `SELECT is_admin FROM users WHERE id=$1`, userID).Scan(&isAdmin); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, apperr.Unexpected("could not load user", err)
	}
	return isAdmin, nil
}

// ListPending returns proofs awaiting review, oldest submission first.
func (r *ProofReview) ListPending(ctx context.Context) ([]models.MissionProgressDetail, error) {
	out := []models.MissionProgressDetail{}
	err := r.db.SelectContext(ctx, &out, `SELECT `+progressDetailColumns+`, u.username
		FROM user_missions um
		JOIN missions m ON m.id = um.mission_id
		JOIN users u ON u.id = um.user_id
		WHERE um.status = $1
		ORDER BY um.updated_at ASC, um.id ASC`, models.StatusPending)
	if err != nil {
		return nil, apperr.Unexpected("could not list pending proofs", err)
	}
	return out, nil
}

// Approve completes a pending row and credits the mission's points.
func (r *ProofReview) Approve(ctx context.Context, progressID int64) (*ReviewResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Unexpected("could not start transaction", err)
	}
	defer tx.Rollback()

	target, err := r.lockPending(ctx, tx, progressID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE user_missions SET status=$1, updated_at=NOW() WHERE id=$2`,
		models.StatusCompleted, target.ID); err != nil {
		return nil, apperr.Unexpected("could not complete mission", err)
	}
	balance, err := r.ledger.CreditTx(ctx, tx, target.UserID, target.Points)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Unexpected("could not commit approval", err)
	}

	metrics.RecordReview("approved")
	r.logger.Info("mission proof approved",
		zap.Int64("user_mission_id", target.ID),
		zap.Int64("user_id", target.UserID),
		zap.Int64("points", target.Points),
	)
	return &ReviewResult{
		ProgressID:    target.ID,
		UserID:        target.UserID,
		Status:        models.StatusCompleted,
		PointsAwarded: target.Points,
		CurrentPoints: balance,
	}, nil
}

// Reject returns a pending row to not_started so the user can resubmit. A
// rejected upload is removed after commit.
func (r *ProofReview) Reject(ctx context.Context, progressID int64) (*ReviewResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Unexpected("could not start transaction", err)
	}
	defer tx.Rollback()

	target, err := r.lockPending(ctx, tx, progressID)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE user_missions SET status=$1, proof='', proof_uploaded=false, updated_at=NOW() WHERE id=$2`,
		models.StatusNotStarted, target.ID); err != nil {
		return nil, apperr.Unexpected("could not reject mission proof", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, apperr.Unexpected("could not commit rejection", err)
	}

	// Only uploaded proofs are removed; linked URLs are never touched.
	if target.Uploaded && target.Proof != "" {
		deleteDetached(ctx, r.store, r.logger, target.Proof)
	}

	metrics.RecordReview("rejected")
	r.logger.Info("mission proof rejected",
		zap.Int64("user_mission_id", target.ID),
		zap.Int64("user_id", target.UserID),
	)
	return &ReviewResult{
		ProgressID: target.ID,
		UserID:     target.UserID,
		Status:     models.StatusNotStarted,
	}, nil
}

// Overview returns platform-wide counters for the admin dashboard.
func (r *ProofReview) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	err := r.db.GetContext(ctx, &out, `SELECT
		(SELECT COUNT(*) FROM users) AS total_users,
		(SELECT COUNT(*) FROM missions) AS total_missions,
		(SELECT COUNT(*) FROM user_missions WHERE status = 'pending') AS pending_reviews,
		(SELECT COUNT(*) FROM user_missions WHERE status = 'completed') AS completed_missions,
		(SELECT COUNT(*) FROM user_missions WHERE status = 'completed' AND updated_at::date = CURRENT_DATE) AS completed_today,
		(SELECT COUNT(*) FROM vouchers_exchange) AS voucher_exchanges,
		(SELECT COUNT(*) FROM rewards) AS cash_rewards,
		(SELECT COALESCE(SUM(points), 0) FROM users) AS points_outstanding,
		(SELECT COALESCE(SUM(points_spent), 0) FROM vouchers_exchange)
			+ (SELECT COALESCE(SUM(points_spent), 0) FROM rewards) AS points_redeemed,
		(SELECT COUNT(*) FROM users WHERE created_at >= date_trunc('week', CURRENT_DATE)) AS new_users_this_week,
		(SELECT COUNT(DISTINCT user_id) FROM user_missions WHERE updated_at::date = CURRENT_DATE AND status <> 'not_started') AS active_users_today`)
	if err != nil {
		return nil, apperr.Unexpected("could not load overview", err)
	}
	return &out, nil
}

func (r *ProofReview) lockPending(ctx context.Context, tx *sqlx.Tx, progressID int64) (*reviewTarget, error) {
	var target reviewTarget
	err := tx.GetContext(ctx, &target, `SELECT um.id, um.user_id, um.status, um.proof, um.proof_uploaded, m.points
		FROM user_missions um
		JOIN missions m ON m.id = um.mission_id
		WHERE um.id = $1
		FOR UPDATE OF um`, progressID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User mission not found.")
		}
		return nil, apperr.Unexpected("could not load mission progress", err)
	}
	if target.Status != models.StatusPending {
		return nil, apperr.InvalidState("Only proofs awaiting review can be approved or rejected.", string(target.Status))
	}
	return &target, nil
}
