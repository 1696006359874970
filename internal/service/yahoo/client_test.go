package yahoo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"Screener/internal/domain/service"
	"Screener/pkg/config"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	cfg := &config.Config{}
	cfg.MetricSource.BaseURL = srv.URL
	cfg.MetricSource.UserAgent = "screener-test"
	return New(cfg)
}

func TestFetchParsesQuoteSummary(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v10/finance/quoteSummary/MC.PA" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("modules") != quoteModules {
			t.Errorf("unexpected modules %q", r.URL.Query().Get("modules"))
		}
		if r.Header.Get("User-Agent") != "screener-test" {
			t.Errorf("user agent not set")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quoteSummary":{"result":[{
			"financialData":{"currentPrice":{"raw":612.4},"returnOnEquity":{"raw":0.2531}},
			"defaultKeyStatistics":{"pegRatio":{"raw":1.8},"trailingPegRatio":{"raw":1.1}}
		}],"error":null}}`))
	})

	rec, err := c.Fetch(context.Background(), "MC.PA")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.Key != "MC.PA" || rec.Price != 612.4 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.ROE == nil || *rec.ROE < 25.30 || *rec.ROE > 25.32 {
		t.Fatalf("roe should be percent, got %v", rec.ROE)
	}
	if rec.PEG == nil || *rec.PEG != 1.1 {
		t.Fatalf("trailing peg should win, got %v", rec.PEG)
	}
	if !rec.ObservedDate.IsZero() {
		t.Fatalf("observed date must be left to the caller")
	}
}

func TestFetchMissingMetricsStayNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"quoteSummary":{"result":[{
			"financialData":{"currentPrice":{"raw":10}},
			"defaultKeyStatistics":{"pegRatio":{"raw":0.9}}
		}]}}`))
	})

	rec, err := c.Fetch(context.Background(), "AAA")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.ROE != nil {
		t.Fatalf("roe should be nil, got %v", *rec.ROE)
	}
	if rec.PEG == nil || *rec.PEG != 0.9 {
		t.Fatalf("peg should fall back to pegRatio, got %v", rec.PEG)
	}
}

func TestFetchFailuresWrapErrFetch(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
		"upstream error": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found"}}}`))
		},
		"empty result": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"quoteSummary":{"result":[]}}`))
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, h)
			if _, err := c.Fetch(context.Background(), "ZZZ"); !errors.Is(err, service.ErrFetch) {
				t.Fatalf("expected ErrFetch, got %v", err)
			}
		})
	}
}

func TestFetchRejectsKeyWithoutLetter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected")
	})
	if _, err := c.Fetch(context.Background(), "---"); !errors.Is(err, service.ErrFetch) {
		t.Fatalf("expected ErrFetch, got %v", err)
	}
}
