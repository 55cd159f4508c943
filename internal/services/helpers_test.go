package services

import (
	"bytes"
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"missionrewards/internal/apperr"
	"missionrewards/internal/crypto"
)

var fixedTime = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		mockDB.Close()
	})
	return sqlx.NewDb(mockDB, "pgx"), mock
}

// fakeStore records artifacts in memory.
type fakeStore struct {
	puts    []string
	deleted []string
	putErr  error
	// detached records, per Delete, whether the context carried its own
	// deadline instead of the caller's.
	detached []bool
}

func (f *fakeStore) Put(_ context.Context, prefix string, _ []byte, _ string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	url := "https://cdn.example.com/" + prefix + "/artifact.jpg"
	f.puts = append(f.puts, url)
	return url, nil
}

func (f *fakeStore) Delete(ctx context.Context, url string) error {
	_, hasDeadline := ctx.Deadline()
	f.detached = append(f.detached, hasDeadline && ctx.Err() == nil)
	f.deleted = append(f.deleted, url)
	return nil
}

func requireKind(t *testing.T, err error, kind apperr.Kind) *apperr.Error {
	t.Helper()
	require.Error(t, err)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae), "expected *apperr.Error, got %T: %v", err, err)
	require.Equal(t, kind, ae.Kind, ae.Error())
	return ae
}

var userCols = []string{"id", "username", "email", "password_hash", "phone_number", "birth_date", "points", "profile_picture", "is_admin", "created_at", "updated_at"}

func userRow(id int64, hash string, points int64) *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow(id, "budi", "budi@example.com", hash, "081234567890", nil, points, nil, false, fixedTime, fixedTime)
}

var progressCols = []string{"id", "user_id", "mission_id", "proof", "status", "created_at", "updated_at"}

var progressDetailCols = append(append([]string{}, progressCols...),
	"title", "description", "mission_points", "mission_image_url", "mission_active_on")

var testPayoutKey = bytes.Repeat([]byte{0x42}, crypto.KeySize)

func newTestPayoutCipher(t *testing.T) *PayoutCipher {
	t.Helper()
	p, err := NewPayoutCipher(testPayoutKey)
	require.NoError(t, err)
	return p
}

// sealedAs matches a query argument that decrypts to want.
type sealedAs struct {
	cipher *PayoutCipher
	want   string
}

func (s sealedAs) Match(v driver.Value) bool {
	str, ok := v.(string)
	if !ok || str == s.want {
		return false
	}
	plain, err := s.cipher.cipher.Open(str)
	return err == nil && plain == s.want
}
