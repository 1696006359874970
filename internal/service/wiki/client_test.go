package wiki

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"Screener/pkg/config"
	"Screener/pkg/logger"
)

const page = `<html><body>
<table class="infobox"><tr><th>Founded</th><td>1987</td></tr></table>
<table class="wikitable">
  <tr><th>Company</th><th>Sector</th><th>Ticker</th></tr>
  <tr><td><a href="/wiki/LVMH">LVMH</a><sup>[1]</sup></td><td>Luxury</td><td>MC</td></tr>
  <tr><td>Air Liquide</td><td>Chemicals</td><td> AI </td></tr>
  <tr><td>Placeholder</td><td>-</td><td>---</td></tr>
</table>
</body></html>`

func TestParseConstituentsPicksMatchingTable(t *testing.T) {
	rows, err := ParseConstituents(strings.NewReader(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d (%+v)", len(rows), rows)
	}
	if rows[0].Key != "MC" || rows[0].Name != "LVMH" {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].Key != "AI" {
		t.Fatalf("cell text should be trimmed, got %q", rows[1].Key)
	}
}

func TestParseConstituentsNoTable(t *testing.T) {
	rows, err := ParseConstituents(strings.NewReader(`<table><tr><th>Name</th></tr></table>`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if rows != nil {
		t.Fatalf("expected no rows, got %+v", rows)
	}
}

func TestNormalizeKey(t *testing.T) {
	cases := []struct {
		raw  string
		u    config.Universe
		want string
	}{
		{"MC", config.Universe{SymbolSuffix: ".PA"}, "MC.PA"},
		{"MC.PA", config.Universe{SymbolSuffix: ".PA"}, "MC.PA"},
		{"BRK.B", config.Universe{ReplaceDots: true}, "BRK-B"},
		{" AAPL ", config.Universe{}, "AAPL"},
		{"---", config.Universe{SymbolSuffix: ".PA"}, "---"},
	}
	for _, tc := range cases {
		if got := NormalizeKey(tc.raw, tc.u); got != tc.want {
			t.Errorf("NormalizeKey(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func newConfig(url string) *config.Config {
	cfg := &config.Config{}
	cfg.Universes = []config.Universe{{Name: "CAC40", SourceURL: url, SymbolSuffix: ".PA"}}
	return cfg
}

func TestFetchRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(page))
	}))
	defer srv.Close()

	c := New(newConfig(srv.URL), logger.Nop())
	roster, err := c.FetchRoster(context.Background(), "CAC40")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(roster) != 3 || roster[0].Key != "MC.PA" || roster[0].Universe != "CAC40" {
		t.Fatalf("unexpected roster %+v", roster)
	}
	if keys := roster.Keys(); len(keys) != 2 {
		t.Fatalf("expected 2 valid keys, got %v", keys)
	}
}

func TestFetchRosterFailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(newConfig(srv.URL), logger.Nop())
	roster, err := c.FetchRoster(context.Background(), "CAC40")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(roster) != 0 {
		t.Fatalf("expected empty roster, got %+v", roster)
	}
	if _, err := c.FetchRoster(context.Background(), "DAX"); err == nil {
		t.Fatalf("unknown universe should fail")
	}
}
