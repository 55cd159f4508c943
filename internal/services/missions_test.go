package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"missionrewards/internal/apperr"
	"missionrewards/internal/models"
)

const (
	loadOwnedProgress = "FROM user_missions WHERE id = $1 AND user_id = $2"
	markPending       = "SET proof = $1, proof_uploaded = $2, status = $3, updated_at = NOW()"
)

func newTestTracker(t *testing.T) (*MissionTracker, sqlmock.Sqlmock, *fakeStore) {
	db, mock := newMockDB(t)
	store := &fakeStore{}
	return NewMissionTracker(db, store, zap.NewNop()), mock, store
}

func progressRow(id int64, status models.MissionStatus, proof string) *sqlmock.Rows {
	return sqlmock.NewRows(progressCols).AddRow(id, int64(7), int64(3), proof, string(status), fixedTime, fixedTime)
}

func TestInitializeForNewUser(t *testing.T) {
	tr, mock, _ := newTestTracker(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO user_missions (user_id, mission_id, proof, status)")).
		WithArgs(int64(7), "not_started").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := tr.InitializeForNewUser(context.Background(), tr.db, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestInitializeForNewUserSkipsExistingPairs(t *testing.T) {
	tr, mock, _ := newTestTracker(t)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id, mission_id) DO NOTHING")).
		WithArgs(int64(7), "not_started").
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := tr.InitializeForNewUser(context.Background(), tr.db, 7)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListActiveForUser(t *testing.T) {
	tr, mock, _ := newTestTracker(t)
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE um.user_id = $1 AND m.active_on = $2::date")).
		WithArgs(int64(7), "2026-10-17").
		WillReturnRows(sqlmock.NewRows(progressDetailCols).
			AddRow(int64(1), int64(7), int64(3), "", "not_started", fixedTime, fixedTime,
				"Plant a tree", "Plant and photograph a tree.", int64(100), nil, day))

	// 23:30 in UTC-5 is already the 17th in UTC.
	asOf := time.Date(2026, 10, 16, 23, 30, 0, 0, time.FixedZone("EST", -5*3600))
	out, err := tr.ListActiveForUser(context.Background(), 7, asOf)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Plant a tree", out[0].Title)
	assert.Equal(t, int64(100), out[0].MissionPoints)
	assert.Equal(t, models.StatusNotStarted, out[0].Status)
}

func TestListActiveForUserEmpty(t *testing.T) {
	tr, mock, _ := newTestTracker(t)

	mock.ExpectQuery(regexp.QuoteMeta("m.active_on = $2::date")).
		WillReturnRows(sqlmock.NewRows(progressDetailCols))

	out, err := tr.ListActiveForUser(context.Background(), 7, fixedTime)
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestGetProgressNotOwned(t *testing.T) {
	tr, mock, _ := newTestTracker(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE um.id = $1 AND um.user_id = $2")).
		WithArgs(int64(5), int64(8)).
		WillReturnRows(sqlmock.NewRows(progressDetailCols))

	_, err := tr.GetProgress(context.Background(), 8, 5)
	requireKind(t, err, apperr.KindNotFound)
}

func TestSubmitProofUploadsAndMarksPending(t *testing.T) {
	tr, mock, store := newTestTracker(t)

	mock.ExpectQuery(regexp.QuoteMeta(loadOwnedProgress)).WithArgs(int64(5), int64(7)).
		WillReturnRows(progressRow(5, models.StatusNotStarted, ""))
	mock.ExpectQuery(regexp.QuoteMeta(markPending)).
		WithArgs("https://cdn.example.com/proofs/7/artifact.jpg", true, "pending", int64(5), int64(7), "not_started").
		WillReturnRows(progressRow(5, models.StatusPending, "https://cdn.example.com/proofs/7/artifact.jpg"))

	res, err := tr.SubmitProof(context.Background(), 7, 5, Proof{Data: []byte("jpeg"), ContentType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, res.Progress.Status)
	assert.Equal(t, "https://cdn.example.com/proofs/7/artifact.jpg", res.ProofURL)
	assert.Len(t, store.puts, 1)
	assert.Empty(t, store.deleted)
}

func TestSubmitProofAcceptsURL(t *testing.T) {
	tr, mock, store := newTestTracker(t)

	mock.ExpectQuery(regexp.QuoteMeta(loadOwnedProgress)).WithArgs(int64(5), int64(7)).
		WillReturnRows(progressRow(5, models.StatusNotStarted, ""))
	mock.ExpectQuery(regexp.QuoteMeta(markPending)).
		WithArgs("https://i.ibb.co/x/proof.jpg", false, "pending", int64(5), int64(7), "not_started").
		WillReturnRows(progressRow(5, models.StatusPending, "https://i.ibb.co/x/proof.jpg"))

	res, err := tr.SubmitProof(context.Background(), 7, 5, Proof{URL: " https://i.ibb.co/x/proof.jpg "})
	require.NoError(t, err)
	assert.Equal(t, "https://i.ibb.co/x/proof.jpg", res.ProofURL)
	assert.Empty(t, store.puts)
}

func TestSubmitProofRejectsNonStartedRows(t *testing.T) {
	for _, status := range []models.MissionStatus{models.StatusPending, models.StatusCompleted} {
		t.Run(string(status), func(t *testing.T) {
			tr, mock, store := newTestTracker(t)

			mock.ExpectQuery(regexp.QuoteMeta(loadOwnedProgress)).WithArgs(int64(5), int64(7)).
				WillReturnRows(progressRow(5, status, "https://cdn.example.com/old.jpg"))

			_, err := tr.SubmitProof(context.Background(), 7, 5, Proof{Data: []byte("png"), ContentType: "image/png"})
			ae := requireKind(t, err, apperr.KindInvalidState)
			assert.Equal(t, string(status), ae.Details["current_status"])
			assert.Empty(t, store.puts)
		})
	}
}

func TestSubmitProofLostRaceDeletesArtifact(t *testing.T) {
	tr, mock, store := newTestTracker(t)

	mock.ExpectQuery(regexp.QuoteMeta(loadOwnedProgress)).WithArgs(int64(5), int64(7)).
		WillReturnRows(progressRow(5, models.StatusNotStarted, ""))
	mock.ExpectQuery(regexp.QuoteMeta(markPending)).
		WillReturnRows(sqlmock.NewRows(progressCols))
	mock.ExpectQuery(regexp.QuoteMeta(loadOwnedProgress)).WithArgs(int64(5), int64(7)).
		WillReturnRows(progressRow(5, models.StatusPending, "https://cdn.example.com/other.jpg"))

	_, err := tr.SubmitProof(context.Background(), 7, 5, Proof{Data: []byte("mp4"), ContentType: "video/mp4"})
	requireKind(t, err, apperr.KindInvalidState)
	require.Len(t, store.puts, 1)
	assert.Equal(t, store.puts, store.deleted)
	assert.Equal(t, []bool{true}, store.detached)
}

func TestSubmitProofUploadFailure(t *testing.T) {
	tr, mock, store := newTestTracker(t)
	store.putErr = errors.New("connection refused")

	mock.ExpectQuery(regexp.QuoteMeta(loadOwnedProgress)).WithArgs(int64(5), int64(7)).
		WillReturnRows(progressRow(5, models.StatusNotStarted, ""))

	_, err := tr.SubmitProof(context.Background(), 7, 5, Proof{Data: []byte("jpeg"), ContentType: "image/jpeg"})
	requireKind(t, err, apperr.KindUpstream)
}

func TestSubmitProofUnknownRow(t *testing.T) {
	tr, mock, _ := newTestTracker(t)

	mock.ExpectQuery(regexp.QuoteMeta(loadOwnedProgress)).WithArgs(int64(5), int64(8)).
		WillReturnRows(sqlmock.NewRows(progressCols))

	_, err := tr.SubmitProof(context.Background(), 8, 5, Proof{Data: []byte("jpeg"), ContentType: "image/jpeg"})
	requireKind(t, err, apperr.KindNotFound)
}

func TestSubmitProofValidation(t *testing.T) {
	cases := map[string]Proof{
		"missing":        {},
		"both":           {Data: []byte("x"), ContentType: "image/png", URL: "https://example.com/a.png"},
		"bad type":       {Data: []byte("%PDF"), ContentType: "application/pdf"},
		"too large":      {Data: make([]byte, MaxProofSize+1), ContentType: "image/png"},
		"bad url scheme": {URL: "ftp://example.com/a.png"},
		"relative url":   {URL: "/uploads/a.png"},
		"long url":       {URL: "https://example.com/" + strings.Repeat("a", 2048)},
	}
	for name, proof := range cases {
		t.Run(name, func(t *testing.T) {
			tr, _, store := newTestTracker(t)
			_, err := tr.SubmitProof(context.Background(), 7, 5, proof)
			requireKind(t, err, apperr.KindValidation)
			assert.Empty(t, store.puts)
		})
	}
}

func TestProofNormalizeStripsParameters(t *testing.T) {
	p := Proof{ContentType: "Image/JPEG; charset=binary", Data: []byte("x")}.normalize()
	assert.Equal(t, "image/jpeg", p.ContentType)
	assert.NoError(t, p.validate())
}

func TestListHistoryForbidsOtherUsers(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	_, err := tr.ListHistory(context.Background(), 7, 8, nil)
	requireKind(t, err, apperr.KindForbidden)
}

func TestListHistoryRejectsUnknownStatus(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	_, err := tr.ListHistory(context.Background(), 7, 7, []models.MissionStatus{"done"})
	ae := requireKind(t, err, apperr.KindValidation)
	assert.Contains(t, ae.Fields, "status")
}

func TestListHistoryFiltersByStatus(t *testing.T) {
	tr, mock, _ := newTestTracker(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE um.user_id = $1 AND um.status IN ($2, $3) ORDER BY um.created_at DESC, um.id DESC")).
		WithArgs(int64(7), "pending", "completed").
		WillReturnRows(sqlmock.NewRows(progressDetailCols).
			AddRow(int64(2), int64(7), int64(4), "https://cdn.example.com/b.jpg", "completed", fixedTime, fixedTime,
				"Recycle", "Recycle bottles.", int64(50), nil, fixedTime).
			AddRow(int64(1), int64(7), int64(3), "https://cdn.example.com/a.jpg", "pending", fixedTime.Add(-time.Hour), fixedTime,
				"Plant a tree", "Plant a tree.", int64(100), nil, fixedTime))

	out, err := tr.ListHistory(context.Background(), 7, 7,
		[]models.MissionStatus{models.StatusPending, models.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].ID)
}

func TestListHistoryWithoutFilter(t *testing.T) {
	tr, mock, _ := newTestTracker(t)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE um.user_id = $1 ORDER BY")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(progressDetailCols))

	out, err := tr.ListHistory(context.Background(), 7, 7, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
