package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"missionrewards/internal/apperr"
	"missionrewards/internal/metrics"
	"missionrewards/internal/models"
	"missionrewards/internal/storage"
)

const progressDetailColumns = `um.id, um.user_id, um.mission_id, um.proof, um.status, um.created_at, um.updated_at,
	m.title, m.description, m.points AS mission_points, m.image_url AS mission_image_url, m.active_on AS mission_active_on`

const progressColumns = `id, user_id, mission_id, proof, status, created_at, updated_at`

// artifactCleanupTimeout bounds the best-effort removal of orphaned uploads.
const artifactCleanupTimeout = 30 * time.Second

// MissionTracker owns the per-user mission progress rows and the
// not_started -> pending transition driven by proof submission.
type MissionTracker struct {
	db     *sqlx.DB
	store  storage.Store
	logger *zap.Logger
}

func NewMissionTracker(db *sqlx.DB, store storage.Store, logger *zap.Logger) *MissionTracker {
	return &MissionTracker{db: db, store: store, logger: logger}
}

// ProofSubmission is the updated progress row plus the stored proof location.
type ProofSubmission struct {
	Progress models.MissionProgress
	ProofURL string
}

// InitializeForNewUser creates a not_started row for every mission that
// exists. It runs on ex so it can share the registration transaction, and it
// never duplicates a (user, mission) pair.
func (t *MissionTracker) InitializeForNewUser(ctx context.Context, ex sqlx.ExecerContext, userID int64) (int64, error) {
	res, err := ex.ExecContext(ctx, `INSERT INTO user_missions (user_id, mission_id, proof, status)
		SELECT $1, id, '', $2 FROM missions
		ON CONFLICT (user_id, mission_id) DO NOTHING`, userID, models.StatusNotStarted)
	if err != nil {
		return 0, apperr.Unexpected("could not assign missions", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Unexpected("could not assign missions", err)
	}
	return n, nil
}

// ListActiveForUser returns the user's progress rows whose mission is active
// on the calendar day of asOf (UTC).
func (t *MissionTracker) ListActiveForUser(ctx context.Context, userID int64, asOf time.Time) ([]models.MissionProgressDetail, error) {
	day := asOf.UTC().Format("2006-01-02")
	out := []models.MissionProgressDetail{}
	err := t.db.SelectContext(ctx, &out, `SELECT `+progressDetailColumns+`
		FROM user_missions um
		JOIN missions m ON m.id = um.mission_id
		WHERE um.user_id = $1 AND m.active_on = $2::date
		ORDER BY m.id`, userID, day)
	if err != nil {
		return nil, apperr.Unexpected("could not list active missions", err)
	}
	return out, nil
}

// GetProgress returns one progress row owned by userID.
func (t *MissionTracker) GetProgress(ctx context.Context, userID, progressID int64) (*models.MissionProgressDetail, error) {
	var d models.MissionProgressDetail
	err := t.db.GetContext(ctx, &d, `SELECT `+progressDetailColumns+`
		FROM user_missions um
		JOIN missions m ON m.id = um.mission_id
		WHERE um.id = $1 AND um.user_id = $2`, progressID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User mission not found or does not belong to you.")
		}
		return nil, apperr.Unexpected("could not load mission progress", err)
	}
	return &d, nil
}

// SubmitProof stores the proof artifact and moves the row from not_started
// to pending. The transition is a single conditional UPDATE, so of two
// concurrent submissions only one succeeds. An artifact uploaded for a
// submission that then fails is deleted again.
func (t *MissionTracker) SubmitProof(ctx context.Context, userID, progressID int64, proof Proof) (*ProofSubmission, error) {
	proof = proof.normalize()
	if err := proof.validate(); err != nil {
		metrics.RecordProofSubmission("invalid")
		return nil, err
	}

	current, err := t.loadOwned(ctx, userID, progressID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.StatusNotStarted {
		metrics.RecordProofSubmission("invalid_state")
		return nil, invalidTransition(current.Status)
	}

	proofURL := proof.URL
	uploaded := false
	if proofURL == "" {
		proofURL, err = t.store.Put(ctx, fmt.Sprintf("proofs/%d", userID), proof.Data, proof.ContentType)
		if err != nil {
			metrics.RecordProofSubmission("upload_failed")
			t.logger.Error("proof upload failed",
				zap.Int64("user_id", userID),
				zap.Int64("user_mission_id", progressID),
				zap.Error(err),
			)
			return nil, apperr.Upstream("Could not store mission proof.", err)
		}
		uploaded = true
	}

	var updated models.MissionProgress
	err = t.db.QueryRowxContext(ctx, `UPDATE user_missions
		SET proof = $1, proof_uploaded = $2, status = $3, updated_at = NOW()
		WHERE id = $4 AND user_id = $5 AND status = $6
		RETURNING `+progressColumns,
		proofURL, uploaded, models.StatusPending, progressID, userID, models.StatusNotStarted).StructScan(&updated)
	if err != nil {
		if uploaded {
			deleteDetached(ctx, t.store, t.logger, proofURL)
		}
		if errors.Is(err, sql.ErrNoRows) {
			// Lost a race with another submission, or the row vanished.
			latest, lerr := t.loadOwned(ctx, userID, progressID)
			if lerr != nil {
				return nil, lerr
			}
			metrics.RecordProofSubmission("invalid_state")
			return nil, invalidTransition(latest.Status)
		}
		return nil, apperr.Unexpected("could not record mission proof", err)
	}

	metrics.RecordProofSubmission("pending")
	t.logger.Info("mission proof submitted",
		zap.Int64("user_id", userID),
		zap.Int64("user_mission_id", progressID),
		zap.Bool("uploaded", uploaded),
	)
	return &ProofSubmission{Progress: updated, ProofURL: proofURL}, nil
}

// ListHistory returns requestedUserID's progress rows, newest first,
// optionally filtered by status. Only the owner may read them.
func (t *MissionTracker) ListHistory(ctx context.Context, actingUserID, requestedUserID int64, statuses []models.MissionStatus) ([]models.MissionProgressDetail, error) {
	if actingUserID != requestedUserID {
		return nil, apperr.Forbidden("You are not allowed to view another user's mission history.")
	}

	filter := make([]string, 0, len(statuses))
	for _, s := range statuses {
		if !s.Valid() {
			return nil, apperr.Field("status", fmt.Sprintf("The selected status %q is invalid.", string(s)))
		}
		filter = append(filter, string(s))
	}

	query := `SELECT ` + progressDetailColumns + `
		FROM user_missions um
		JOIN missions m ON m.id = um.mission_id
		WHERE um.user_id = ?`
	args := []interface{}{requestedUserID}
	if len(filter) > 0 {
		query += ` AND um.status IN (?)`
		args = append(args, filter)
	}
	query += ` ORDER BY um.created_at DESC, um.id DESC`

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, apperr.Unexpected("could not build history query", err)
	}
	out := []models.MissionProgressDetail{}
	if err := t.db.SelectContext(ctx, &out, t.db.Rebind(query), args...); err != nil {
		return nil, apperr.Unexpected("could not list mission history", err)
	}
	return out, nil
}

func (t *MissionTracker) loadOwned(ctx context.Context, userID, progressID int64) (*models.MissionProgress, error) {
	var p models.MissionProgress
	err := t.db.GetContext(ctx, &p, `SELECT `+progressColumns+` FROM user_missions WHERE id = $1 AND user_id = $2`, progressID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFound("User mission not found or does not belong to you.")
		}
		return nil, apperr.Unexpected("could not load mission progress", err)
	}
	return &p, nil
}

// deleteDetached removes a stored artifact on a context that outlives the
// request, so a disconnecting client cannot leave the file behind. Failures
// are logged only.
func deleteDetached(ctx context.Context, store storage.Store, logger *zap.Logger, url string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), artifactCleanupTimeout)
	defer cancel()
	if err := store.Delete(ctx, url); err != nil {
		logger.Warn("could not delete artifact", zap.String("url", url), zap.Error(err))
	}
}

func invalidTransition(status models.MissionStatus) error {
	var msg string
	switch status {
	case models.StatusPending:
		msg = "Mission proof has already been submitted and is awaiting review."
	case models.StatusCompleted:
		msg = "Mission has already been completed."
	default:
		msg = fmt.Sprintf("Mission proof cannot be submitted while the mission is %s.", strings.ReplaceAll(string(status), "_", " "))
	}
	return apperr.InvalidState(msg, string(status))
}
