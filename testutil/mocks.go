// Package testutil holds fakes shared by package tests: a scripted HTTP service and
// probes with observable behavior.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// MockService is a test server answering configured paths with canned responses.
type MockService struct {
	*httptest.Server

	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
}

// NewMockService starts a MockService that is closed when the test ends.
// Unknown paths answer 404.
func NewMockService(t *testing.T) *MockService {
	t.Helper()
	m := &MockService{handlers: make(map[string]http.HandlerFunc)}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		h, ok := m.handlers[r.URL.Path]
		m.mu.RUnlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle installs h for path.
func (m *MockService) Handle(path string, h http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = h
}

// RespondJSON makes path answer status with body as application/json.
func (m *MockService) RespondJSON(path string, status int, body string) {
	m.Handle(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body)) //nolint:errcheck // test mock response
	})
}
