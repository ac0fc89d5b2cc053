package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func postWithKey(t *testing.T, r *gin.Engine, key, inspector string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/inspections", strings.NewReader("{}"))
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	if inspector != "" {
		req.Header.Set("X-Inspector-ID", inspector)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotencyValidator_NoHeaderIsNoop(t *testing.T) {
	r := newRouter(IdempotencyValidator(IdempotencyOptions{}, nil))
	var key string
	var present bool
	r.POST("/inspections", func(c *gin.Context) {
		key, present = GetIdempotencyKey(c)
		c.Status(http.StatusOK)
	})

	w := postWithKey(t, r, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if present || key != "" {
		t.Fatalf("key=%q present=%v", key, present)
	}
}

func TestIdempotencyValidator_RejectsMalformedKey(t *testing.T) {
	r := newRouter(IdempotencyValidator(IdempotencyOptions{MaxLen: 8}, nil))
	r.POST("/inspections", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, key := range []string{"has spaces", "way-too-long-for-the-cap", "bad|char"} {
		w := postWithKey(t, r, key, "")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("key %q: status = %d", key, w.Code)
		}
		if !strings.Contains(w.Body.String(), "bad_idempotency_key") {
			t.Fatalf("key %q: body = %s", key, w.Body.String())
		}
	}
}

func TestIdempotencyValidator_StashesKey(t *testing.T) {
	r := newRouter(IdempotencyValidator(IdempotencyOptions{}, nil))
	var key string
	r.POST("/inspections", func(c *gin.Context) {
		key, _ = GetIdempotencyKey(c)
		c.Status(http.StatusOK)
	})

	if w := postWithKey(t, r, "scan-001", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if key != "scan-001" {
		t.Fatalf("stashed key = %q", key)
	}
}

func TestIdempotencyValidator_ReplayDetection(t *testing.T) {
	var gotInspector, gotKey string
	lookup := func(_ context.Context, inspectorID, key string, _ time.Time) (bool, error) {
		gotInspector, gotKey = inspectorID, key
		return key == "seen-before", nil
	}
	r := newRouter(InspectorTag(), IdempotencyValidator(IdempotencyOptions{}, lookup))
	var replay, bypass bool
	r.POST("/inspections", func(c *gin.Context) {
		replay = IsReplay(c)
		bypass = IsRateBypass(c)
		c.Status(http.StatusOK)
	})

	postWithKey(t, r, "seen-before", "insp-1")
	if !replay || !bypass {
		t.Fatalf("replay=%v bypass=%v, want both true", replay, bypass)
	}
	if gotInspector != "insp-1" || gotKey != "seen-before" {
		t.Fatalf("lookup saw (%q, %q)", gotInspector, gotKey)
	}

	postWithKey(t, r, "fresh-key", "insp-1")
	if replay || bypass {
		t.Fatalf("fresh key flagged: replay=%v bypass=%v", replay, bypass)
	}
}

func TestIdempotencyValidator_StationFallbackIdentity(t *testing.T) {
	var gotInspector string
	lookup := func(_ context.Context, inspectorID, _ string, _ time.Time) (bool, error) {
		gotInspector = inspectorID
		return false, nil
	}
	r := newRouter(InspectorTag(), IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/inspections", func(c *gin.Context) { c.Status(http.StatusOK) })

	postWithKey(t, r, "some-key", "")
	if gotInspector != "station" {
		t.Fatalf("fallback identity = %q", gotInspector)
	}
}
