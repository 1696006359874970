package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type routes func(e *echo.Echo)

func (r routes) RegisterRoutes(e *echo.Echo) { r(e) }

func TestServerRecoversPanics(t *testing.T) {
	s := NewServer(routes(func(e *echo.Echo) {
		e.GET("/boom", func(c echo.Context) error { panic("boom") })
	}))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestServerCORS(t *testing.T) {
	s := NewServer(routes(func(e *echo.Echo) {
		e.GET("/ok", func(c echo.Context) error { return SuccessResponse(c, "ok") })
	}))

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderOrigin, "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "*" {
		t.Fatalf("expected wildcard CORS origin, got %q", got)
	}

	s = NewServer(nil, WithCORS(false))
	rec = httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	if got := rec.Header().Get(echo.HeaderAccessControlAllowOrigin); got != "" {
		t.Fatalf("CORS disabled but header set: %q", got)
	}
}

func TestAppErrorResponseStatus(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := AppErrorResponse(c, ConflictError("busy")); err != nil {
		t.Fatalf("response: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestServerRequestIDAndBodyLimit(t *testing.T) {
	s := NewServer(routes(func(e *echo.Echo) {
		e.POST("/echo", func(c echo.Context) error { return SuccessResponse(c, "ok") })
	}))

	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("{}")))
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Fatalf("expected 200 with a request id, got %d %q", rec.Code, rec.Header().Get(echo.HeaderXRequestID))
	}

	rec = httptest.NewRecorder()
	big := strings.NewReader(strings.Repeat("x", 128<<10))
	s.Echo().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/echo", big))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}
