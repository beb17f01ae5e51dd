package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New("shule")
	m.ObserveRequest(http.MethodGet, "/v1/classes", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest(http.MethodGet, "/v1/classes", http.StatusOK, 10*time.Millisecond)
	m.NotificationsSent.WithLabelValues("attendance").Add(3)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/v1/classes", "200")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.NotificationsSent.WithLabelValues("attendance")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "shule_http_requests_total"))
	assert.True(t, strings.Contains(body, "shule_notifications_sent_total"))
}
