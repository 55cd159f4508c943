package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"missionrewards/internal/apperr"
	"missionrewards/internal/crypto"
	"missionrewards/internal/metrics"
	"missionrewards/internal/models"
)

const (
	// MinCashAmount is the smallest e-wallet amount that can be requested.
	MinCashAmount int64 = 10000

	kindVoucher = "voucher"
	kindCash    = "cash"
)

// PointsPerCashUnit converts requested cash into points: 1 point buys 10 units.
var PointsPerCashUnit = decimal.RequireFromString("0.1")

// RequiredPointsForCash returns the points needed for amount, rounded up so a
// fractional point is never given away.
func RequiredPointsForCash(amount int64) int64 {
	return decimal.NewFromInt(amount).Mul(PointsPerCashUnit).Ceil().IntPart()
}

// PointsLedger is the only writer of users.points. Every debit happens in a
// transaction holding the user's row lock together with the redemption record.
// Cash reward contact details are stored encrypted.
type PointsLedger struct {
	db       *sqlx.DB
	payout   *PayoutCipher
	logger   *zap.Logger
	newToken func() (string, error)
}

func NewPointsLedger(db *sqlx.DB, payout *PayoutCipher, logger *zap.Logger) *PointsLedger {
	return &PointsLedger{
		db:     db,
		payout: payout,
		logger: logger,
		newToken: func() (string, error) {
			return crypto.RandomToken(crypto.VoucherTokenLength)
		},
	}
}

type VoucherRedemption struct {
	Exchange      models.VoucherExchange
	Voucher       models.Voucher
	CurrentPoints int64
}

type CashRequest struct {
	Amount int64
	Email  string
	Phone  string
}

type CashRedemption struct {
	Reward        models.Reward
	CurrentPoints int64
}

const voucherColumns = `id, title, image_path, points, created_at`

// RedeemForVoucher debits the voucher's point cost and records the exchange
// with a fresh redemption token.
func (l *PointsLedger) RedeemForVoucher(ctx context.Context, userID, voucherID int64) (*VoucherRedemption, error) {
	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Unexpected("could not start transaction", err)
	}
	defer tx.Rollback()

	var v models.Voucher
	if err := tx.GetContext(ctx, &v, `SELECT `+voucherColumns+` FROM vouchers WHERE id=$1`, voucherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.RecordRedemption(kindVoucher, "not_found", 0)
			return nil, apperr.NotFound("Voucher not found.")
		}
		return nil, apperr.Unexpected("could not load voucher", err)
	}

	balance, err := l.debit(ctx, tx, userID, v.Points, "Insufficient points to exchange for this voucher.")
	if err != nil {
		l.recordFailure(kindVoucher, err)
		return nil, err
	}

	token, err := l.newToken()
	if err != nil {
		return nil, apperr.Unexpected("could not generate voucher token", err)
	}

	var ex models.VoucherExchange
	err = tx.QueryRowxContext(ctx, `INSERT INTO vouchers_exchange (user_id, voucher_id, token, points_spent)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, voucher_id, token, points_spent, created_at`,
		userID, v.ID, token, v.Points).StructScan(&ex)
	if err != nil {
		return nil, apperr.Unexpected("could not record voucher exchange", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Unexpected("could not commit voucher exchange", err)
	}

	metrics.RecordRedemption(kindVoucher, "success", v.Points)
	l.logger.Info("voucher redeemed",
		zap.Int64("user_id", userID),
		zap.Int64("voucher_id", v.ID),
		zap.Int64("exchange_id", ex.ID),
		zap.Int64("points_spent", v.Points),
		zap.Int64("balance", balance),
	)
	return &VoucherRedemption{Exchange: ex, Voucher: v, CurrentPoints: balance}, nil
}

// RedeemForCash debits the points equivalent of req.Amount and records an
// e-wallet reward. The payout itself happens outside this service.
func (l *PointsLedger) RedeemForCash(ctx context.Context, userID int64, req CashRequest) (*CashRedemption, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Phone = strings.TrimSpace(req.Phone)
	fields := map[string]string{}
	if req.Amount < MinCashAmount {
		fields["amount"] = fmt.Sprintf("The amount must be at least %d.", MinCashAmount)
	}
	if req.Email == "" {
		fields["email"] = "The email field is required."
	}
	if req.Phone == "" {
		fields["phone"] = "The phone field is required."
	} else if len(req.Phone) > 20 {
		fields["phone"] = "The phone may not be greater than 20 characters."
	}
	if len(fields) > 0 {
		metrics.RecordRedemption(kindCash, "invalid", 0)
		return nil, apperr.Validation("The given data was invalid.", fields)
	}

	required := RequiredPointsForCash(req.Amount)
	contact := models.Reward{Email: req.Email, Phone: req.Phone}
	if err := l.payout.SealReward(&contact); err != nil {
		return nil, apperr.Unexpected("could not encrypt payout details", err)
	}

	tx, err := l.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Unexpected("could not start transaction", err)
	}
	defer tx.Rollback()

	balance, err := l.debit(ctx, tx, userID, required, "Insufficient points for this exchange amount.")
	if err != nil {
		l.recordFailure(kindCash, err)
		return nil, err
	}

	var rw models.Reward
	err = tx.QueryRowxContext(ctx, `INSERT INTO rewards (user_id, email, phone, balance, points_spent)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, email, phone, balance, points_spent, created_at`,
		userID, contact.Email, contact.Phone, req.Amount, required).StructScan(&rw)
	if err != nil {
		return nil, apperr.Unexpected("could not record reward", err)
	}
	if err := l.payout.OpenReward(&rw); err != nil {
		return nil, apperr.Unexpected("could not decrypt payout details", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Unexpected("could not commit reward", err)
	}

	metrics.RecordRedemption(kindCash, "success", required)
	l.logger.Info("points exchanged for cash",
		zap.Int64("user_id", userID),
		zap.Int64("reward_id", rw.ID),
		zap.Int64("amount", req.Amount),
		zap.Int64("points_spent", required),
		zap.Int64("balance", balance),
	)
	return &CashRedemption{Reward: rw, CurrentPoints: balance}, nil
}

// CreditTx adds points to a user inside the caller's transaction and returns
// the new balance.
func (l *PointsLedger) CreditTx(ctx context.Context, tx *sqlx.Tx, userID, points int64) (int64, error) {
	if points <= 0 {
		return 0, fmt.Errorf("credit must be positive, got %d", points)
	}
	var balance int64
	err := tx.GetContext(ctx, &balance,
		`UPDATE users SET points = points + $1, updated_at = NOW() WHERE id=$2 RETURNING points`,
		points, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperr.NotFound("User not found.")
		}
		return 0, apperr.Unexpected("could not credit points", err)
	}
	return balance, nil
}

// debit locks the user's row, checks the balance and writes the new one.
// Concurrent debits for the same user serialize on the row lock.
func (l *PointsLedger) debit(ctx context.Context, tx *sqlx.Tx, userID, points int64, insufficientMsg string) (int64, error) {
	var balance int64
	if err := tx.GetContext(ctx, &balance, `SELECT points FROM users WHERE id=$1 FOR UPDATE`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperr.NotFound("User not found.")
		}
		return 0, apperr.Unexpected("could not load balance", err)
	}
	if balance < points {
		return 0, apperr.InsufficientPoints(insufficientMsg, points, balance)
	}
	newBalance := balance - points
	if _, err := tx.ExecContext(ctx, `UPDATE users SET points=$1, updated_at=NOW() WHERE id=$2`, newBalance, userID); err != nil {
		return 0, apperr.Unexpected("could not update balance", err)
	}
	return newBalance, nil
}

func (l *PointsLedger) recordFailure(kind string, err error) {
	outcome := "error"
	switch apperr.KindOf(err) {
	case apperr.KindInsufficientPoints:
		outcome = "insufficient_points"
	case apperr.KindNotFound:
		outcome = "not_found"
	}
	metrics.RecordRedemption(kind, outcome, 0)
}
