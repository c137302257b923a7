package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/probe-tender/config"
	"github.com/onnwee/probe-tender/crypto"
	"github.com/onnwee/probe-tender/health"
	"github.com/onnwee/probe-tender/probe"
	"github.com/onnwee/probe-tender/system"
	"github.com/onnwee/probe-tender/testutil"
)

type fixture struct {
	state       *system.State
	maintenance *config.Maintenance
	deps        Deps
}

// newFixture wires readiness and startup checks against p, the way main does.
func newFixture(t *testing.T, p probe.Prober) *fixture {
	t.Helper()
	m := config.NewMaintenance(false)
	state := system.New(m)
	reg := health.NewRegistry(2 * time.Second)
	reg.Register(health.Readiness, health.NewReadinessCheck(p, time.Second, state))
	reg.Register(health.Startup, health.NewStartupCheck(state, p, time.Second))
	return &fixture{
		state:       state,
		maintenance: m,
		deps: Deps{
			Registry: reg,
			State:    state,
			Config:   &config.Config{HTTPAddr: ":9080", SecretPhrase: config.DefaultSecretPhrase},
			Secrets:  crypto.NewPasswordCodec(nil),
		},
	}
}

func (f *fixture) boot(t *testing.T, p probe.Prober) {
	t.Helper()
	_ = f.state.Initialize(context.Background(), p, time.Second)
}

func serve(t *testing.T, deps Deps, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	NewMux(t.Context(), deps).ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}

func decodeProbe(t *testing.T, rr *httptest.ResponseRecorder) health.ProbeResponse {
	t.Helper()
	var resp health.ProbeResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp), "body=%s", rr.Body.String())
	return resp
}

func reason(t *testing.T, resp health.ProbeResponse, check string) string {
	t.Helper()
	r, ok := resp.Result(check)
	require.True(t, ok, "check %s missing", check)
	v, _ := r.Value("reason")
	return v
}

func TestReadyUp(t *testing.T) {
	f := newFixture(t, probe.AlwaysUp())
	rr := serve(t, f.deps, http.MethodGet, "/health/ready")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	resp := decodeProbe(t, rr)
	assert.Equal(t, health.StatusUp, resp.Status)
	require.Len(t, resp.Checks, 1)
	assert.Equal(t, health.ReadinessCheckName, resp.Checks[0].Name())
}

func TestReadyDependencyDown(t *testing.T) {
	f := newFixture(t, probe.AlwaysDown())
	rr := serve(t, f.deps, http.MethodGet, "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	resp := decodeProbe(t, rr)
	assert.Equal(t, health.StatusDown, resp.Status)
	assert.Equal(t, health.ReasonDependencyUnreachable, reason(t, resp, health.ReadinessCheckName))
}

func TestReadyProbesOnEveryRequest(t *testing.T) {
	p := &testutil.CountingProbe{Err: probe.ErrUnreachable}
	f := newFixture(t, p)

	assert.Equal(t, http.StatusOK, serve(t, f.deps, http.MethodGet, "/health/ready").Code)
	p.Fail.Store(true)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, f.deps, http.MethodGet, "/health/ready").Code)
	p.Fail.Store(false)
	assert.Equal(t, http.StatusOK, serve(t, f.deps, http.MethodGet, "/health/ready").Code)
	assert.Equal(t, int64(3), p.Calls())
}

func TestReadyHangingDependencyIsBounded(t *testing.T) {
	f := newFixture(t, testutil.NewBlockingProbe(t))

	start := time.Now()
	rr := serve(t, f.deps, http.MethodGet, "/health/ready")
	assert.Less(t, time.Since(start), 3*time.Second)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, reason(t, decodeProbe(t, rr), health.ReadinessCheckName), "timed out")
}

func TestReadyMaintenanceIsInformational(t *testing.T) {
	f := newFixture(t, probe.AlwaysUp())
	f.maintenance.Set(true)

	rr := serve(t, f.deps, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, rr.Code)
	r, ok := decodeProbe(t, rr).Result(health.ReadinessCheckName)
	require.True(t, ok)
	v, _ := r.Value("maintenance")
	assert.Equal(t, "true", v)
}

func TestStartedLifecycle(t *testing.T) {
	f := newFixture(t, probe.AlwaysUp())

	rr := serve(t, f.deps, http.MethodGet, "/health/started")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, health.ReasonInitializing, reason(t, decodeProbe(t, rr), health.StartupCheckName))

	f.boot(t, probe.AlwaysUp())

	rr = serve(t, f.deps, http.MethodGet, "/health/started")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, health.StatusUp, decodeProbe(t, rr).Status)
}

func TestStartedDependencyAlwaysFails(t *testing.T) {
	f := newFixture(t, probe.AlwaysDown())
	f.boot(t, probe.AlwaysDown())

	rr := serve(t, f.deps, http.MethodGet, "/health/started")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, health.ReasonStartupDependencyUnreachable, reason(t, decodeProbe(t, rr), health.StartupCheckName))
}

func TestHealthCombinesCategories(t *testing.T) {
	f := newFixture(t, probe.AlwaysUp())

	// readiness UP, startup still booting
	rr := serve(t, f.deps, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	resp := decodeProbe(t, rr)
	require.Len(t, resp.Checks, 2)
	assert.Equal(t, health.ReadinessCheckName, resp.Checks[0].Name())
	assert.Equal(t, health.StartupCheckName, resp.Checks[1].Name())

	f.boot(t, probe.AlwaysUp())
	rr = serve(t, f.deps, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestLivenessAlwaysUp(t *testing.T) {
	f := newFixture(t, probe.AlwaysDown())
	for _, path := range []string{"/health/live", "/healthz"} {
		rr := serve(t, f.deps, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.JSONEq(t, `{"status":"UP","checks":[]}`, rr.Body.String(), path)
	}
}

func TestProbeMethods(t *testing.T) {
	f := newFixture(t, probe.AlwaysDown())

	rr := serve(t, f.deps, http.MethodPost, "/health/ready")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, "GET, HEAD", rr.Header().Get("Allow"))

	rr = serve(t, f.deps, http.MethodHead, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestCorrelationID(t *testing.T) {
	f := newFixture(t, probe.AlwaysUp())
	h := NewMux(t.Context(), f.deps)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "abc-123", rr.Header().Get("X-Correlation-ID"))

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Len(t, rr.Header().Get("X-Correlation-ID"), 36)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, probe.AlwaysUp())

	var before statusResponse
	require.NoError(t, json.NewDecoder(serve(t, f.deps, http.MethodGet, "/status").Body).Decode(&before))
	assert.Equal(t, system.PhaseBooting, before.Phase)
	assert.False(t, before.Initialized)

	f.boot(t, probe.AlwaysUp())
	f.maintenance.Set(true)

	var after statusResponse
	require.NoError(t, json.NewDecoder(serve(t, f.deps, http.MethodGet, "/status").Body).Decode(&after))
	assert.Equal(t, system.PhaseStarted, after.Phase)
	assert.True(t, after.Initialized)
	assert.True(t, after.Maintenance)
	require.NotNil(t, after.Boot)
	assert.True(t, after.Boot.DatabaseReachable)
}

func TestStatusIncludesPoolStats(t *testing.T) {
	database := testutil.SQLiteDB(t)
	f := newFixture(t, probe.SQL{DB: database})
	f.deps.DB = database
	f.boot(t, probe.SQL{DB: database})

	var resp statusResponse
	require.NoError(t, json.NewDecoder(serve(t, f.deps, http.MethodGet, "/status").Body).Decode(&resp))
	require.NotNil(t, resp.Pool)
	assert.GreaterOrEqual(t, resp.Pool.OpenConnections, 1)
}

func TestConfigHidesSecrets(t *testing.T) {
	f := newFixture(t, probe.AlwaysUp())
	f.deps.Config.SecretPhrase = "{xor}LDo8LTor"
	f.deps.Config.EncryptionKey = "c2VjcmV0"

	rr := serve(t, f.deps, http.MethodGet, "/config")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.NotContains(t, body, "LDo8LTor")
	assert.NotContains(t, body, "c2VjcmV0")

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, true, out["SECRET_PHRASE_SET"])
	assert.Equal(t, ":9080", out["HTTP_ADDR"])
}

func TestSecret(t *testing.T) {
	tests := []struct {
		name     string
		phrase   string
		wantCode int
		wantBody string
	}{
		{"sentinel", config.DefaultSecretPhrase, http.StatusInternalServerError, "ERROR: The secret phrase was not set. [defaultSecretPhrase]"},
		{"not encoded", "plain", http.StatusInternalServerError, "ERROR: Could not decrypt the secret phrase. [plain]"},
		{"aes without key", "{aes}AAAA", http.StatusInternalServerError, "ERROR: Could not decrypt the secret phrase. [{aes}AAAA]"},
		{"xor", "{xor}LDo8LTor", http.StatusOK, "SECRET_PHRASE=secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, probe.AlwaysUp())
			f.deps.Config.SecretPhrase = tt.phrase

			rr := serve(t, f.deps, http.MethodGet, "/secret")
			assert.Equal(t, tt.wantCode, rr.Code)
			assert.Equal(t, "text/plain; charset=utf-8", rr.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantBody, rr.Body.String())
		})
	}
}

func TestSecretRequiresAdminWhenConfigured(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "letmein")
	f := newFixture(t, probe.AlwaysUp())
	f.deps.Config.SecretPhrase = "{xor}LDo8LTor"
	h := NewMux(t.Context(), f.deps)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/secret", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/secret", nil)
	req.Header.Set("X-Admin-Token", "letmein")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "SECRET_PHRASE=secret", rr.Body.String())
}

func TestSecretRateLimited(t *testing.T) {
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "2")
	f := newFixture(t, probe.AlwaysUp())
	h := NewMux(t.Context(), f.deps)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/secret", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusInternalServerError, http.StatusInternalServerError, http.StatusTooManyRequests}, codes)
}

func TestNilRegistryServesEmptyProbes(t *testing.T) {
	rr := serve(t, Deps{}, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusOK, rr.Code)
	rr = serve(t, Deps{}, http.MethodGet, "/status")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStartAndShutdown(t *testing.T) {
	f := newFixture(t, probe.AlwaysUp())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, f.deps, ln) }()

	res, err := http.Get(fmt.Sprintf("http://%s/health/ready", ln.Addr()))
	require.NoError(t, err)
	body, _ := io.ReadAll(res.Body)
	_ = res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.True(t, strings.Contains(string(body), `"status":"UP"`), string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartInvalidAddr(t *testing.T) {
	err := Start(t.Context(), Deps{}, "256.0.0.1:99999")
	require.Error(t, err)
}

func TestWriteTimeoutCoversProbeTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  *config.Config
		want time.Duration
	}{
		{"nil config", nil, 30 * time.Second},
		{"short probe timeout keeps floor", &config.Config{ProbeTimeout: 10 * time.Second}, 30 * time.Second},
		{"long probe timeout extends", &config.Config{ProbeTimeout: 45 * time.Second}, 45*time.Second + writeTimeoutMargin},
		{"probe timeout at floor", &config.Config{ProbeTimeout: 30 * time.Second}, 30*time.Second + writeTimeoutMargin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := writeTimeout(tt.cfg)
			assert.Equal(t, tt.want, got)
			if tt.cfg != nil {
				assert.Greater(t, got, tt.cfg.ProbeTimeout)
			}
		})
	}
}
