package services

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"missionrewards/internal/apperr"
	"missionrewards/internal/db"
)

// openTestDB connects to TEST_DATABASE_URL, skipping when it is unset. Run
// these with `make test-integration`.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	conn, err := sqlx.Open("pgx", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, conn.PingContext(ctx))
	require.NoError(t, db.RunMigrations(ctx, conn))
	return conn
}

func TestConcurrentRedemptionsNeverOverspend(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	suffix := time.Now().UnixNano()

	var userID, voucherID int64
	require.NoError(t, conn.GetContext(ctx, &userID, `INSERT INTO users (username, email, password_hash, phone_number, points)
		VALUES ($1, $2, 'x', '0812', 1000) RETURNING id`,
		fmt.Sprintf("race-%d", suffix), fmt.Sprintf("race-%d@example.com", suffix)))
	require.NoError(t, conn.GetContext(ctx, &voucherID, `INSERT INTO vouchers (title, points) VALUES ('Race voucher', 300) RETURNING id`))
	t.Cleanup(func() {
		conn.Exec(`DELETE FROM vouchers_exchange WHERE user_id=$1`, userID)
		conn.Exec(`DELETE FROM users WHERE id=$1`, userID)
		conn.Exec(`DELETE FROM vouchers WHERE id=$1`, voucherID)
	})

	ledger := NewPointsLedger(conn, newTestPayoutCipher(t), zap.NewNop())

	var succeeded, rejected atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 10; i++ {
		g.Go(func() error {
			_, err := ledger.RedeemForVoucher(gctx, userID, voucherID)
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperr.Is(err, apperr.KindInsufficientPoints):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(3), succeeded.Load())
	assert.Equal(t, int64(7), rejected.Load())

	var balance, spent int64
	require.NoError(t, conn.GetContext(ctx, &balance, `SELECT points FROM users WHERE id=$1`, userID))
	require.NoError(t, conn.GetContext(ctx, &spent, `SELECT COALESCE(SUM(points_spent), 0) FROM vouchers_exchange WHERE user_id=$1`, userID))
	assert.Equal(t, int64(100), balance)
	assert.Equal(t, int64(1000), balance+spent)
}
