package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRedemption(t *testing.T) {
	before := testutil.ToFloat64(redemptions.WithLabelValues("voucher", "success"))
	debitedBefore := testutil.ToFloat64(pointsDebited.WithLabelValues("voucher"))

	RecordRedemption("voucher", "success", 500)
	RecordRedemption("voucher", "insufficient_points", 0)

	assert.Equal(t, before+1, testutil.ToFloat64(redemptions.WithLabelValues("voucher", "success")))
	assert.Equal(t, debitedBefore+500, testutil.ToFloat64(pointsDebited.WithLabelValues("voucher")))
}

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/vouchers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/vouchers/{id}", "404"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vouchers/99", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/vouchers/{id}", "404")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordProofSubmission("pending")

	srv := httptest.NewServer(Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), "missionrewards_missions_proof_submissions_total")
}
