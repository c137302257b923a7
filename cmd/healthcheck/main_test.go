package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onnwee/probe-tender/testutil"
)

func fakeService(t *testing.T) *testutil.MockService {
	t.Helper()
	m := testutil.NewMockService(t)
	m.RespondJSON("/health/ready", http.StatusOK,
		`{"status":"UP","checks":[{"name":"DatabaseReadinessCheck","status":"UP","data":{"database":"reachable"}}]}`)
	m.RespondJSON("/health/started", http.StatusServiceUnavailable,
		`{"status":"DOWN","checks":[{"name":"DatabaseStartupCheck","status":"DOWN","data":{"reason":"initialization in progress"}}]}`)
	m.RespondJSON("/health/live", http.StatusOK, `not json`)
	return m
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHealthcheckUp(t *testing.T) {
	srv := fakeService(t)
	out, err := execute(t, "--url", srv.URL, "--probe", "ready", "-v")
	require.NoError(t, err)
	assert.Contains(t, out, `"status": "UP"`)
}

func TestHealthcheckDown(t *testing.T) {
	srv := fakeService(t)
	_, err := execute(t, "--url", srv.URL+"/", "--probe", "started")
	require.Error(t, err)
	assert.Equal(t, "probe DOWN (HTTP 503): DatabaseStartupCheck: initialization in progress", err.Error())
}

func TestHealthcheckBadBody(t *testing.T) {
	srv := fakeService(t)
	_, err := execute(t, "--url", srv.URL, "--probe", "live")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "decode response (HTTP 200)"), err.Error())
}

func TestHealthcheckUnknownProbe(t *testing.T) {
	_, err := execute(t, "--probe", "sideways")
	require.EqualError(t, err, `unknown probe "sideways"`)
}

func TestHealthcheckTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(slow.Close)

	start := time.Now()
	_, err := execute(t, "--url", slow.URL, "--timeout", "100ms")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHealthcheckURLFromEnv(t *testing.T) {
	srv := fakeService(t)
	t.Setenv("HEALTHCHECK_URL", srv.URL)
	_, err := execute(t)
	require.NoError(t, err)
}
