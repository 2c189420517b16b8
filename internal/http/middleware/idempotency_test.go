package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestGetIdempotencyKeyAndIsReplay_Defaults(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	if k, ok := GetIdempotencyKey(c); k != "" || ok {
		t.Fatalf("expected empty key when not set")
	}
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false by default")
	}

	// Non-string key value reads as absent; non-bool replay reads as false.
	c.Set(ctxKeyIdemKey, 123)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("expected absent key for non-string value")
	}
	c.Set(ctxKeyIdemReplay, "yes")
	if IsReplay(c) {
		t.Fatalf("expected IsReplay=false for non-bool")
	}
}

func TestIdempotencyValidator_NoHeaderIsNoop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/api/v1/contact", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should not be stashed without header")
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/contact", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIdempotencyValidator_RejectsBadKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{MaxLen: 10}, nil))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, key := range []string{"way-too-long-for-the-cap", "not valid!!"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/x", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status = %d, want 400", key, w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("body: %v", err)
		}
		if body["code"] != "bad_idempotency_key" {
			t.Fatalf("code = %q", body["code"])
		}
	}
}

func TestIdempotencyValidator_ReplayScopedToRouteAndSession(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotIdentity, gotScope string
	lookup := func(_ context.Context, identity, scope, key string, _ time.Time) (bool, error) {
		gotIdentity, gotScope = identity, scope
		return key == "known-key", nil
	}

	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/api/v1/book-appointment", func(c *gin.Context) {
		if IsReplay(c) {
			c.Status(http.StatusOK)
			return
		}
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/book-appointment", nil)
	req.Header.Set(HeaderIdempotencyKey, "known-key")
	req.Header.Set("X-Session-ID", "s42")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want replay short-circuit", w.Code)
	}
	if gotIdentity != "session:s42" {
		t.Fatalf("identity = %q", gotIdentity)
	}
	if gotScope != "/api/v1/book-appointment" {
		t.Fatalf("scope = %q", gotScope)
	}

	// Unknown key: no replay flag, no rate bypass.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/book-appointment", nil)
	req.Header.Set(HeaderIdempotencyKey, "fresh-key")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want normal processing", w.Code)
	}
}
