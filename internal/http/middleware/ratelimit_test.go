package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyBySessionOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	c, _ := gin.CreateTestContext(w)
	c.Request = req

	// IP fallback when no session header.
	key := KeyBySessionOrIP()(c)
	if !strings.HasPrefix(key, "ip:") || !strings.Contains(key, "203.0.113.9") {
		t.Fatalf("expected ip-based key; got %q", key)
	}

	// Prefer the widget's session when present.
	req.Header.Set("X-Session-ID", "s123")
	if key := KeyBySessionOrIP()(c); key != "session:s123" {
		t.Fatalf("expected session-based key; got %q", key)
	}
}

func TestNewRateLimiter_BurstCoercionAndVisitorReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyBySessionOrIP(), nil) // burst<=0 coerced to 1
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}

	lim := rl.getVisitor("k1")
	if lim == nil {
		t.Fatalf("expected limiter")
	}
	if got := rl.getVisitor("k1"); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
}

func TestRateLimiter_getVisitor_GC(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyBySessionOrIP(), nil)
	rl.ttl = 0 // evict anything not seen "now"

	rl.mu.Lock()
	rl.visitors["old"] = &visitor{
		limiter:  rate.NewLimiter(1, 1),
		lastSeen: time.Now().Add(-time.Hour),
	}
	rl.cleanupN = 4999 // next lookup triggers GC
	rl.mu.Unlock()

	rl.getVisitor("fresh")

	rl.mu.Lock()
	_, oldAlive := rl.visitors["old"]
	rl.mu.Unlock()
	if oldAlive {
		t.Fatalf("expected idle bucket to be evicted")
	}
}

type captureRecorder struct {
	mu      sync.Mutex
	allowed []string
	limited []string
}

func (r *captureRecorder) Record(key string, allowed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if allowed {
		r.allowed = append(r.allowed, key)
	} else {
		r.limited = append(r.limited, key)
	}
}

func TestRateLimiterHandler_DeniesAndRecords(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := &captureRecorder{}
	rl := NewRateLimiter(0.0001, 1, KeyBySessionOrIP(), rec)

	r := gin.New()
	r.Use(rl.Handler())
	r.POST("/submit", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set("X-Session-ID", "s1")
		r.ServeHTTP(w, req)
		return w
	}

	if w := do(); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := do()
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["code"] != "rate_limited" {
		t.Fatalf("code = %q", body["code"])
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.allowed) != 1 || len(rec.limited) != 1 {
		t.Fatalf("recorded %d/%d decisions, want 1/1", len(rec.allowed), len(rec.limited))
	}
	if rec.limited[0] != "session:s1" {
		t.Fatalf("limited key = %q", rec.limited[0])
	}
}

func TestRateLimiterHandler_ReplayBypasses(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(0.0001, 1, KeyBySessionOrIP(), nil)

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(ctxKeyRateBypass, true) })
	r.Use(rl.Handler())
	r.POST("/submit", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("replay %d limited: %d", i, w.Code)
		}
	}
}
