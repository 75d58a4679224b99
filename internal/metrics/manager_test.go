package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_UpstreamOutcomes(t *testing.T) {
	m := NewTestManager()

	m.ObserveUpstream("list", 200, 10*time.Millisecond)
	m.ObserveUpstream("list", 0, time.Second)
	m.ObserveUpstream("create", 400, time.Millisecond)
	m.ObserveUpstream("create", 503, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterUpstreamRequests.WithLabelValues("list", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterUpstreamRequests.WithLabelValues("list", "transport_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterUpstreamRequests.WithLabelValues("create", "client_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterUpstreamRequests.WithLabelValues("create", "error")))
}

func TestManager_CacheAndCounters(t *testing.T) {
	m := NewTestManager()
	m.CacheLookup("notes", true)
	m.CacheLookup("notes", false)
	m.CacheLookup("notes", false)
	m.CacheInvalidated("notes")
	m.StaleDiscarded()
	m.SessionsChanged(2)
	m.SessionsChanged(-1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterCacheLookups.WithLabelValues("notes", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CounterCacheLookups.WithLabelValues("notes", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterCacheInvalidation.WithLabelValues("notes")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CounterStaleDiscarded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GaugeSessions))
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	m.ObserveHTTP("GET", "/notes", 200, time.Millisecond)
	m.ObserveUpstream("list", 200, time.Millisecond)
	m.CacheLookup("notes", true)
	m.CacheInvalidated("notes")
	m.StaleDiscarded()
	m.RateLimited()
	m.NoteCreated()
	m.NoteDeleted()
	m.SessionsChanged(1)
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	m, reg := NewTestManagerAndRegistry()
	m.ObserveHTTP(http.MethodGet, "GET /notes", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "notehub_test_http_requests_total"), body)
	assert.True(t, strings.Contains(body, `route="GET /notes"`), body)
}
