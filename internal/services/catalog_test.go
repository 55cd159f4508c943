package services

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"missionrewards/internal/apperr"
)

func TestListVouchers(t *testing.T) {
	db, mock := newMockDB(t)
	c := NewCatalog(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM vouchers ORDER BY points ASC, id ASC")).
		WillReturnRows(voucherRow(1, 500).AddRow(int64(2), "Cinema ticket", "vouchers/cinema.png", int64(1200), fixedTime))

	out, err := c.ListVouchers(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(500), out[0].Points)
}

func TestGetVoucherNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	c := NewCatalog(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectVoucher)).WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "image_path", "points", "created_at"}))

	_, err := c.GetVoucher(context.Background(), 9)
	requireKind(t, err, apperr.KindNotFound)
}

func TestDashboardSummary(t *testing.T) {
	db, mock := newMockDB(t)
	d := NewDashboard(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users u")).WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"points", "missions_not_started", "missions_pending", "missions_completed",
			"points_earned", "voucher_exchanges", "cash_rewards", "points_spent",
		}).AddRow(int64(300), int64(2), int64(1), int64(3), int64(800), int64(1), int64(0), int64(500)))

	s, err := d.Summary(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(300), s.Points)
	assert.Equal(t, int64(3), s.MissionsCompleted)
	assert.Equal(t, s.PointsEarned-s.PointsSpent, s.Points)
}
