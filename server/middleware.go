// Package server middleware for the secret endpoint (auth, rate limiting) and CORS.
package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/probe-tender/telemetry"
)

// authConfig holds credentials guarding /secret.
type authConfig struct {
	adminUsername string
	adminPassword string
	adminToken    string
	enabled       bool
}

// loadAuthConfig reads ADMIN_USERNAME, ADMIN_PASSWORD and ADMIN_TOKEN.
func loadAuthConfig() *authConfig {
	username := os.Getenv("ADMIN_USERNAME")
	password := os.Getenv("ADMIN_PASSWORD")
	token := os.Getenv("ADMIN_TOKEN")

	enabled := (username != "" && password != "") || token != ""
	if !enabled {
		slog.Warn("admin authentication not configured, /secret is UNPROTECTED; set ADMIN_USERNAME+ADMIN_PASSWORD or ADMIN_TOKEN for production",
			slog.String("component", "http"))
	}
	return &authConfig{
		adminUsername: username,
		adminPassword: password,
		adminToken:    token,
		enabled:       enabled,
	}
}

// adminAuth accepts an X-Admin-Token header or Basic credentials. With no credentials
// configured every request passes.
func adminAuth(next http.Handler, cfg *authConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !cfg.enabled {
			next.ServeHTTP(w, r)
			return
		}

		if cfg.adminToken != "" {
			token := r.Header.Get("X-Admin-Token")
			if token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(cfg.adminToken)) == 1 {
				next.ServeHTTP(w, r)
				return
			}
		}

		if cfg.adminUsername != "" && cfg.adminPassword != "" {
			if username, password, ok := r.BasicAuth(); ok {
				userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.adminUsername)) == 1
				passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.adminPassword)) == 1
				if userOK && passOK {
					next.ServeHTTP(w, r)
					return
				}
			}
		}

		w.Header().Set("WWW-Authenticate", `Basic realm="probe-tender"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		telemetry.CountSecretRequest("unauthorized")
		telemetry.LoggerWithCorr(r.Context()).Warn("admin auth failed",
			slog.String("path", r.URL.Path), slog.String("remote_addr", r.RemoteAddr), slog.String("component", "http"))
	})
}

type rateLimiterConfig struct {
	enabled        bool
	requestsPerIP  int
	window         time.Duration
	trustedProxies []netip.Prefix
}

// loadRateLimiterConfig reads RATE_LIMIT_ENABLED (default on), RATE_LIMIT_REQUESTS_PER_IP
// (default 10), RATE_LIMIT_WINDOW_SECONDS (default 60) and TRUSTED_PROXIES.
func loadRateLimiterConfig() *rateLimiterConfig {
	return &rateLimiterConfig{
		enabled:        os.Getenv("RATE_LIMIT_ENABLED") != "0",
		requestsPerIP:  getEnvInt("RATE_LIMIT_REQUESTS_PER_IP", 10),
		window:         time.Duration(getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		trustedProxies: parseTrustedProxies(os.Getenv("TRUSTED_PROXIES")),
	}
}

// parseTrustedProxies reads a comma separated list of CIDRs or single addresses.
// Invalid entries are logged and skipped.
func parseTrustedProxies(v string) []netip.Prefix {
	var out []netip.Prefix
	for _, entry := range strings.Split(v, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if p, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			slog.Warn("ignoring invalid TRUSTED_PROXIES entry", slog.String("entry", entry), slog.String("component", "http"))
			continue
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ipRateLimiter is a sliding window limiter keyed by client IP.
type ipRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	cfg      *rateLimiterConfig
}

type visitor struct {
	requests []time.Time
	lastSeen time.Time
}

// newIPRateLimiter starts a janitor goroutine that lives until ctx is done.
func newIPRateLimiter(ctx context.Context, cfg *rateLimiterConfig) *ipRateLimiter {
	rl := &ipRateLimiter{
		visitors: make(map[string]*visitor),
		cfg:      cfg,
	}
	go rl.cleanupLoop(ctx)
	return rl
}

func (rl *ipRateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// cleanup forgets visitors idle for more than two windows.
func (rl *ipRateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.cfg.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

func (rl *ipRateLimiter) allow(ip string) bool {
	if !rl.cfg.enabled {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	v, ok := rl.visitors[ip]
	if !ok {
		rl.visitors[ip] = &visitor{requests: []time.Time{now}, lastSeen: now}
		return true
	}

	cutoff := now.Add(-rl.cfg.window)
	kept := v.requests[:0]
	for _, t := range v.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	v.requests = kept
	v.lastSeen = now

	if len(v.requests) >= rl.cfg.requestsPerIP {
		return false
	}
	v.requests = append(v.requests, now)
	return true
}

// clientIP returns the peer address without its port. X-Forwarded-For is honoured only
// when the peer is a trusted proxy; the chain is then walked right to left and the
// first hop that is not itself a trusted proxy wins.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" || !isTrusted(peer, trusted) {
		return peer
	}
	hops := strings.Split(fwd, ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if i == 0 || !isTrusted(hop, trusted) {
			return hop
		}
	}
	return peer
}

func rateLimitMiddleware(next http.Handler, limiter *ipRateLimiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r, limiter.cfg.trustedProxies)
		if !limiter.allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(int(limiter.cfg.window.Seconds())))
			http.Error(w, "Too Many Requests - rate limit exceeded", http.StatusTooManyRequests)
			telemetry.CountSecretRequest("rate_limited")
			telemetry.LoggerWithCorr(r.Context()).Warn("rate limit exceeded",
				slog.String("ip", ip), slog.String("path", r.URL.Path), slog.String("component", "http"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type corsConfig struct {
	allowedOrigins []string
	permissive     bool
}

// loadCORSConfig is permissive when ENV is unset or dev, unless CORS_PERMISSIVE says otherwise.
func loadCORSConfig() *corsConfig {
	mode := strings.ToLower(os.Getenv("ENV"))
	permissive := mode == "" || mode == "dev" || mode == "development"
	if v := os.Getenv("CORS_PERMISSIVE"); v != "" {
		permissive = v == "1" || v == "true"
	}

	var origins []string
	for _, o := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if !permissive && len(origins) == 0 {
		slog.Warn("CORS restricted mode enabled but no CORS_ALLOWED_ORIGINS configured, all CORS requests will be blocked",
			slog.String("component", "http"))
	}
	return &corsConfig{allowedOrigins: origins, permissive: permissive}
}

const (
	corsMethods = "GET, HEAD, OPTIONS"
	corsHeaders = "Content-Type, Authorization, X-Admin-Token, X-Correlation-ID"
)

func withCORSConfig(next http.Handler, cfg *corsConfig) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case cfg.permissive:
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", corsMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
		case origin != "" && isOriginAllowed(origin, cfg.allowedOrigins):
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", corsMethods)
			w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isOriginAllowed matches exact origins and "*.example.com" wildcard entries.
func isOriginAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if origin == a {
			return true
		}
		if domain, ok := strings.CutPrefix(a, "*."); ok {
			if strings.HasSuffix(origin, "."+domain) || origin == "https://"+domain || origin == "http://"+domain {
				return true
			}
		}
	}
	return false
}
