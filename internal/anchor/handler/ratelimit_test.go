package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/xanchor-io/xanchor/internal/anchor/handler"
)

func limitedRouter(rps, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handler.RateLimiter(rps, burst))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func pingFrom(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_allowsBurstThenThrottles(t *testing.T) {
	r := limitedRouter(1, 2)

	for i := 0; i < 2; i++ {
		if w := pingFrom(r, "10.0.0.1:1000"); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: got status %d, want 200", i+1, w.Code)
		}
	}

	w := pingFrom(r, "10.0.0.1:1000")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("burst overflow: got status %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After: got %q, want %q", got, "1")
	}

	body := decodeBody(t, w)
	if body["status"] != "error" {
		t.Errorf("throttled body status: got %q, want %q", body["status"], "error")
	}
}

func TestRateLimiter_tracksClientsSeparately(t *testing.T) {
	r := limitedRouter(1, 1)

	if w := pingFrom(r, "10.0.0.1:1000"); w.Code != http.StatusOK {
		t.Fatalf("first client: got status %d, want 200", w.Code)
	}
	if w := pingFrom(r, "10.0.0.1:1000"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("first client over budget: got status %d, want 429", w.Code)
	}

	// A different client keeps its own bucket.
	if w := pingFrom(r, "10.0.0.2:1000"); w.Code != http.StatusOK {
		t.Errorf("second client: got status %d, want 200", w.Code)
	}
}
