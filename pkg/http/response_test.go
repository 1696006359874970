package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAppErrorResponseUsesWrappedStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	cause := errors.New("guard held")
	err := fmt.Errorf("sync: %w", ConflictError("a sync is already running").WithError(cause))
	if e := AppErrorResponse(c, err); e != nil {
		t.Fatalf("write: %v", e)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "guard held") {
		t.Fatalf("cause leaked into body: %s", rec.Body.String())
	}

	var resp struct {
		Status int        `json:"status"`
		Data   []AppError `json:"data"`
	}
	if e := json.Unmarshal(rec.Body.Bytes(), &resp); e != nil {
		t.Fatalf("decode: %v", e)
	}
	if resp.Status != http.StatusConflict || len(resp.Data) != 1 || resp.Data[0].Code != "ERR_CONFLICT" {
		t.Fatalf("unexpected body %+v", resp)
	}
}

func TestAppErrorResponseHidesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if e := AppErrorResponse(c, errors.New("dial tcp: refused")); e != nil {
		t.Fatalf("write: %v", e)
	}
	if rec.Code != http.StatusInternalServerError || strings.Contains(rec.Body.String(), "refused") {
		t.Fatalf("expected opaque 500, got %d %s", rec.Code, rec.Body.String())
	}
}
