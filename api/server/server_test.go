package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/amitpo23/medici-web03012026-sub000/internal/alert"
	"github.com/amitpo23/medici-web03012026-sub000/internal/config"
	"github.com/amitpo23/medici-web03012026-sub000/internal/monitor"
	"github.com/amitpo23/medici-web03012026-sub000/internal/signals"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	server    *Server
	engine    *alert.Engine
	dbLatency atomic.Int64
}

func newTestEnv(t *testing.T, historyCapacity int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{}
	provider := signals.ProviderFunc{
		ProviderName: "database_latency",
		Fn: func(ctx context.Context) (signals.Snapshot, error) {
			return signals.DatabaseSnapshot{At: time.Now(), ResponseMs: env.dbLatency.Load()}, nil
		},
	}

	env.engine = alert.NewEngine(alert.EngineOptions{
		Providers: []signals.Provider{provider},
		Store:     alert.NewStore(historyCapacity),
	})
	scheduler := monitor.NewScheduler(env.engine, time.Minute, nil)
	t.Cleanup(scheduler.Stop)

	env.server = NewServer(Options{
		Engine:    env.engine,
		Scheduler: scheduler,
		Config: &config.Config{
			RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		},
	})
	t.Cleanup(func() { _ = env.server.Shutdown(context.Background()) })
	return env
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func TestServer_CheckCreatesAndResolvesAlert(t *testing.T) {
	env := newTestEnv(t, 100)

	env.dbLatency.Store(2500)
	code, body := env.do(t, http.MethodPost, "/api/v1/alerts/check", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["transitions"], 1)

	code, body = env.do(t, http.MethodGet, "/api/v1/alerts/active", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(1), body["critical"])
	alerts := body["alerts"].([]interface{})
	first := alerts[0].(map[string]interface{})
	assert.Equal(t, "db_slow", first["type"])
	assert.Equal(t, "database", first["category"])

	env.dbLatency.Store(20)
	code, _ = env.do(t, http.MethodPost, "/api/v1/alerts/check", nil)
	require.Equal(t, http.StatusOK, code)

	_, body = env.do(t, http.MethodGet, "/api/v1/alerts/active", nil)
	assert.Equal(t, float64(0), body["total"])

	_, body = env.do(t, http.MethodGet, "/api/v1/alerts/history", nil)
	history := body["history"].([]interface{})
	require.Len(t, history, 2)
	assert.Equal(t, "resolved", history[0].(map[string]interface{})["transition"])
}

func TestServer_AcknowledgeAndResolve(t *testing.T) {
	env := newTestEnv(t, 100)

	code, body := env.do(t, http.MethodPost, "/api/v1/alerts/test", map[string]string{"severity": "critical"})
	require.Equal(t, http.StatusCreated, code)
	id := body["alert"].(map[string]interface{})["id"].(string)

	code, body = env.do(t, http.MethodPost, "/api/v1/alerts/"+id+"/acknowledge", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["alert"].(map[string]interface{})["acknowledged"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/alerts/does-not-exist/acknowledge", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = env.do(t, http.MethodPost, "/api/v1/alerts/resolve/"+alert.TestAlertType, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "resolved", body["alert"].(map[string]interface{})["status"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/alerts/resolve/"+alert.TestAlertType, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_TestAlert(t *testing.T) {
	env := newTestEnv(t, 100)

	code, body := env.do(t, http.MethodPost, "/api/v1/alerts/test", nil)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "warning", body["alert"].(map[string]interface{})["severity"])

	code, _ = env.do(t, http.MethodPost, "/api/v1/alerts/test", map[string]string{"severity": "catastrophic"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_Thresholds(t *testing.T) {
	env := newTestEnv(t, 100)

	code, body := env.do(t, http.MethodGet, "/api/v1/alerts/thresholds", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1000), body["thresholds"].(map[string]interface{})[alert.ThresholdDBResponse])

	code, body = env.do(t, http.MethodPut, "/api/v1/alerts/thresholds", map[string]float64{
		alert.ThresholdDBResponse: 3000,
		"bogus_threshold":         1,
	})
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []interface{}{"bogus_threshold"}, body["keys"])

	// rejected update changed nothing
	_, body = env.do(t, http.MethodGet, "/api/v1/alerts/thresholds", nil)
	assert.Equal(t, float64(1000), body["thresholds"].(map[string]interface{})[alert.ThresholdDBResponse])

	code, body = env.do(t, http.MethodPut, "/api/v1/alerts/thresholds", map[string]float64{alert.ThresholdDBResponse: 3000})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3000), body["thresholds"].(map[string]interface{})[alert.ThresholdDBResponse])

	// the new threshold applies to the next cycle
	env.dbLatency.Store(2500)
	env.do(t, http.MethodPost, "/api/v1/alerts/check", nil)
	_, body = env.do(t, http.MethodGet, "/api/v1/alerts/active", nil)
	assert.Equal(t, float64(0), body["total"])
}

func TestServer_HistoryLimit(t *testing.T) {
	env := newTestEnv(t, 3)

	for i := 0; i < 5; i++ {
		env.do(t, http.MethodPost, "/api/v1/alerts/test", nil)
		env.do(t, http.MethodPost, "/api/v1/alerts/resolve/"+alert.TestAlertType, nil)
	}

	code, body := env.do(t, http.MethodGet, "/api/v1/alerts/history?limit=50", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(3), body["limit"])
	assert.Len(t, body["history"], 3)

	code, _ = env.do(t, http.MethodGet, "/api/v1/alerts/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestServer_StatsAndRules(t *testing.T) {
	env := newTestEnv(t, 100)
	env.do(t, http.MethodPost, "/api/v1/alerts/test", map[string]string{"severity": "critical"})

	code, body := env.do(t, http.MethodGet, "/api/v1/alerts/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["active"])
	assert.Equal(t, float64(1), body["last_24h"])

	code, body = env.do(t, http.MethodGet, "/api/v1/alerts/rules", nil)
	require.Equal(t, http.StatusOK, code)
	rules := body["rules"].([]interface{})
	assert.Len(t, rules, len(alert.BuiltinRules(alert.DefaultLogCooldown)))
}

func TestServer_EventsWithoutArchive(t *testing.T) {
	env := newTestEnv(t, 100)
	code, _ := env.do(t, http.MethodGet, "/api/v1/alerts/events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, 100)
	code, body := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["scheduler_running"])
}
