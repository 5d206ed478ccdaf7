package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWith(reg, reg)
}

func TestMetrics_Record(t *testing.T) {
	m := newTestMetrics()

	m.RecordRun(OutcomeCompleted, 2*time.Second)
	m.RecordRun(OutcomeBusy, 0)
	m.RecordVerdict("needs_reply")
	m.RecordVerdict("needs_reply")
	m.RecordDraft(false)
	m.RecordDraft(true)
	m.RecordMarkedRead()
	m.RecordError("classify")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(OutcomeCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues(OutcomeBusy)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesTotal.WithLabelValues("needs_reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DraftsTotal.WithLabelValues("reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DraftsTotal.WithLabelValues("attachment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MarkedRead))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("classify")))
}

func TestMetrics_HTTPHandler(t *testing.T) {
	m := newTestMetrics()
	m.RecordHTTPRequest("POST", "/v1/triage/run", "200", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mailtriage_http_requests_total")
}

type recordingReceiver struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *recordingReceiver) SendAlert(_ context.Context, alert *Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, *alert)
	return nil
}

func TestAlertManager(t *testing.T) {
	ctx := context.Background()
	am := NewAlertManager(zap.NewNop())
	rec := &recordingReceiver{}
	am.AddReceiver(rec)
	am.AddReceiver(NewLogAlertReceiver(zap.NewNop()))

	alert := func() *Alert {
		return &Alert{ID: "triage_fatal", Title: "Triage run failed", Level: AlertLevelCritical, Component: "triage"}
	}

	t.Run("激活期间只发送一次", func(t *testing.T) {
		am.TriggerAlert(ctx, alert())
		am.TriggerAlert(ctx, alert())
		assert.Len(t, rec.alerts, 1)
		assert.Len(t, am.GetActiveAlerts(), 1)
	})

	t.Run("解决后发送恢复通知并可再次触发", func(t *testing.T) {
		am.ResolveAlert(ctx, "triage_fatal")
		am.ResolveAlert(ctx, "triage_fatal")
		require.Len(t, rec.alerts, 2)
		assert.True(t, rec.alerts[1].Resolved)
		assert.Empty(t, am.GetActiveAlerts())

		am.TriggerAlert(ctx, alert())
		assert.Len(t, rec.alerts, 3)
	})
}

func TestWebhookAlertReceiver(t *testing.T) {
	t.Run("发送 JSON", func(t *testing.T) {
		var got Alert
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			require.NoError(t, json.Unmarshal(body, &got))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		war := NewWebhookAlertReceiver(srv.URL, nil)
		err := war.SendAlert(context.Background(), &Alert{ID: "a1", Level: AlertLevelWarning})
		require.NoError(t, err)
		assert.Equal(t, "a1", got.ID)
		assert.Equal(t, AlertLevelWarning, got.Level)
	})

	t.Run("非 2xx 返回错误", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := NewWebhookAlertReceiver(srv.URL, nil).SendAlert(context.Background(), &Alert{ID: "a1"})
		assert.Error(t, err)
	})
}
