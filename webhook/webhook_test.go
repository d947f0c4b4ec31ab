package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecrawl/models"
)

func testNotifier(url, secret string) *Notifier {
	n := New(url, secret, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n.Delays = []time.Duration{0, time.Millisecond, time.Millisecond}
	return n
}

func TestDeliver_SignsBody(t *testing.T) {
	var gotSig string
	var got Event
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		gotSig = r.Header.Get(SignatureHeader)
		assert.Equal(t, "sha256="+Sign("s3cret", body), gotSig)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	summary := &models.RunSummary{RunID: "run-1", Status: models.RunCompleted, Records: 12}
	require.NoError(t, testNotifier(srv.URL, "s3cret").Deliver(context.Background(), RunEvent(summary)))

	assert.NotEmpty(t, gotSig)
	assert.Equal(t, EventRunCompleted, got.Type)
	assert.Equal(t, "run-1", got.RunID)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 12, got.Summary.Records)
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(SignatureHeader))
	}))
	defer srv.Close()

	require.NoError(t, testNotifier(srv.URL, "").Deliver(context.Background(), RunEvent(&models.RunSummary{RunID: "r"})))
}

func TestSend_RetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	err := testNotifier(srv.URL, "").Send(context.Background(), RunEvent(&models.RunSummary{RunID: "r"}))
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestSend_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := testNotifier(srv.URL, "").Send(context.Background(), RunEvent(&models.RunSummary{RunID: "r"}))
	require.Error(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestRunEvent_Types(t *testing.T) {
	assert.Equal(t, EventRunCompleted, RunEvent(&models.RunSummary{Status: models.RunCompleted}).Type)
	assert.Equal(t, EventRunCanceled, RunEvent(&models.RunSummary{Status: models.RunCanceled}).Type)
	assert.Equal(t, EventRunFailed, RunEvent(&models.RunSummary{Status: models.RunFailed}).Type)
}
