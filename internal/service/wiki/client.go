package wiki

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"Screener/internal/domain/models"
	"Screener/internal/domain/service"
	apimetrics "Screener/internal/service/metrics"
	"Screener/pkg/config"
	xhttp "Screener/pkg/http"
	"Screener/pkg/logger"
)

// Client scrapes universe constituents from their wiki pages.
type Client struct {
	cfg    *config.Config
	client *xhttp.Client
	log    *logger.Logger
}

var _ service.RosterSource = (*Client)(nil)

func New(cfg *config.Config, log *logger.Logger, opts ...xhttp.ClientOption) *Client {
	timeout := cfg.Roster.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	base := []xhttp.ClientOption{
		xhttp.WithTimeout(timeout),
		xhttp.WithUserAgent(cfg.MetricSource.UserAgent),
	}
	return &Client{
		cfg:    cfg,
		client: xhttp.NewClient(append(base, opts...)...),
		log:    log,
	}
}

// FetchRoster downloads and parses the universe page. On any failure the
// roster is empty and the cause is returned alongside it.
func (c *Client) FetchRoster(ctx context.Context, universe string) (models.Roster, error) {
	u, ok := c.cfg.Universe(universe)
	if !ok {
		return models.Roster{}, fmt.Errorf("unknown universe %q", universe)
	}

	var body []byte
	start := time.Now()
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    u.SourceURL,
	}, &body)
	apimetrics.Observe("wiki", start, err)
	if err != nil {
		c.log.Warn("roster fetch failed", logger.String("universe", universe), logger.Error(err))
		return models.Roster{}, fmt.Errorf("fetch roster %s: %w", universe, err)
	}

	rows, err := ParseConstituents(bytes.NewReader(body))
	if err != nil {
		c.log.Warn("roster parse failed", logger.String("universe", universe), logger.Error(err))
		return models.Roster{}, fmt.Errorf("parse roster %s: %w", universe, err)
	}
	if len(rows) == 0 {
		c.log.Warn("no constituents table found", logger.String("universe", universe))
		return models.Roster{}, fmt.Errorf("parse roster %s: no constituents table", universe)
	}

	roster := make(models.Roster, 0, len(rows))
	for _, r := range rows {
		roster = append(roster, models.RosterEntry{
			Universe: universe,
			Key:      NormalizeKey(r.Key, u),
			Name:     r.Name,
		})
	}
	c.log.Debug("roster scraped", logger.String("universe", universe), logger.Int("rows", len(roster)))
	return roster, nil
}

// NormalizeKey maps a listed symbol to the metric source's key format.
func NormalizeKey(raw string, u config.Universe) string {
	key := strings.TrimSpace(raw)
	// placeholders stay unchanged so they remain invalid after suffixing
	if !models.IsValidKey(key) {
		return key
	}
	if u.ReplaceDots {
		key = strings.ReplaceAll(key, ".", "-")
	}
	if u.SymbolSuffix != "" && !strings.HasSuffix(key, u.SymbolSuffix) {
		key += u.SymbolSuffix
	}
	return key
}
