package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"Screener/internal/domain/models"
	"Screener/internal/domain/service"
	apimetrics "Screener/internal/service/metrics"
	"Screener/pkg/config"
	xhttp "Screener/pkg/http"
)

const quoteModules = "financialData,defaultKeyStatistics"

// Client implements service.MetricSource against the quoteSummary endpoint.
type Client struct {
	baseURL string
	client  *xhttp.Client
}

var _ service.MetricSource = (*Client)(nil)

// New builds a client with timeout, base URL and user agent from config.
func New(cfg *config.Config, opts ...xhttp.ClientOption) *Client {
	timeout := cfg.MetricSource.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := []xhttp.ClientOption{
		xhttp.WithTimeout(timeout),
		xhttp.WithUserAgent(cfg.MetricSource.UserAgent),
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.MetricSource.BaseURL, "/"),
		client:  xhttp.NewClient(append(base, opts...)...),
	}
}

type rawValue struct {
	Raw *float64 `json:"raw"`
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			FinancialData struct {
				CurrentPrice   rawValue `json:"currentPrice"`
				ReturnOnEquity rawValue `json:"returnOnEquity"`
			} `json:"financialData"`
			DefaultKeyStatistics struct {
				TrailingPegRatio rawValue `json:"trailingPegRatio"`
				PegRatio         rawValue `json:"pegRatio"`
			} `json:"defaultKeyStatistics"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// Fetch returns the current ROE (percent), PEG and price of key.
// ObservedDate is left zero; the caller stamps it.
func (c *Client) Fetch(ctx context.Context, key string) (models.MetricRecord, error) {
	start := time.Now()
	rec, err := c.fetch(ctx, key)
	apimetrics.Observe("yahoo", start, err)
	return rec, err
}

func (c *Client) fetch(ctx context.Context, key string) (models.MetricRecord, error) {
	key = strings.TrimSpace(key)
	if !models.IsValidKey(key) {
		return models.MetricRecord{}, fmt.Errorf("%w: invalid key %q", service.ErrFetch, key)
	}

	var resp quoteSummaryResponse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v10/finance/quoteSummary/" + url.PathEscape(key),
		QueryParams: map[string][]string{
			"modules": {quoteModules},
		},
		Headers: map[string]string{"Accept": "application/json"},
	}, &resp)
	if err != nil {
		return models.MetricRecord{}, fmt.Errorf("%w: %s: %v", service.ErrFetch, key, err)
	}

	qs := resp.QuoteSummary
	if qs.Error != nil {
		return models.MetricRecord{}, fmt.Errorf("%w: %s: %s %s", service.ErrFetch, key, qs.Error.Code, qs.Error.Description)
	}
	if len(qs.Result) == 0 {
		return models.MetricRecord{}, fmt.Errorf("%w: %s: empty result", service.ErrFetch, key)
	}

	r := qs.Result[0]
	rec := models.MetricRecord{Key: key}
	if p := r.FinancialData.CurrentPrice.Raw; p != nil {
		rec.Price = *p
	}
	if v := r.FinancialData.ReturnOnEquity.Raw; v != nil {
		rec.ROE = models.Float(*v * 100)
	}
	if v := r.DefaultKeyStatistics.TrailingPegRatio.Raw; v != nil {
		rec.PEG = models.Float(*v)
	} else if v := r.DefaultKeyStatistics.PegRatio.Raw; v != nil {
		rec.PEG = models.Float(*v)
	}
	return rec, nil
}
