package proxy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func newMiddlewareRouter() *gin.Engine {
	router := gin.New()
	router.Use(RequestIDMiddleware(), AccessLogMiddleware(zerolog.Nop()), CORSMiddleware("*"))
	router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(requestIDKey))
	})
	return router
}

func TestCORSMiddleware(t *testing.T) {
	router := newMiddlewareRouter()

	w := get(router, "/ping")
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Origin, X-Requested-With, Content-Type, Accept" {
		t.Errorf("Allow-Headers = %q", got)
	}

	// Error responses carry the headers too.
	if got := get(router, "/missing").Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin on 404 = %q, want *", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	router := newMiddlewareRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	router := newMiddlewareRouter()

	w := get(router, "/ping")
	id := w.Header().Get(HeaderRequestID)
	if id == "" {
		t.Fatal("X-Request-ID should be generated")
	}
	if w.Body.String() != id {
		t.Errorf("context id = %q, header id = %q", w.Body.String(), id)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "caller-id")
	router.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got != "caller-id" {
		t.Errorf("X-Request-ID = %q, want caller-id", got)
	}
}
