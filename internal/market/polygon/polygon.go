// Package polygon fetches company details, daily aggregates and the latest
// financials from the Polygon.io REST API.
package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"stockiq/internal/api"
	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/types"
)

const (
	Name               = "polygon"
	DefaultBaseURL     = "https://api.polygon.io"
	DefaultTradingDays = 180
	minLookbackDays    = 270
)

var companyKeys = []string{
	"ticker", "name", "description", "market_cap",
	"primary_exchange", "sic_description", "homepage_url",
}

type Config struct {
	APIKey            string
	BaseURL           string
	TradingDays       int
	Timeout           time.Duration
	RequestsPerMinute int
}

type Provider struct {
	client *api.Client
	cfg    Config
	now    func() time.Time
}

var _ interfaces.MarketDataProvider = (*Provider)(nil)

func New(cfg Config) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = DefaultTradingDays
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Provider{
		client: api.NewClient(
			api.WithBaseURL(cfg.BaseURL),
			api.WithTimeout(cfg.Timeout),
			api.WithQueryParam("apiKey", cfg.APIKey),
			api.WithRateLimit(cfg.RequestsPerMinute),
			api.WithLogging(true),
		),
		cfg: cfg,
		now: time.Now,
	}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) FetchSnapshot(ctx context.Context, ticker string) (*types.MarketSnapshot, error) {
	if p.cfg.APIKey == "" {
		return nil, &types.ProviderError{Provider: Name, Err: errors.New("POLYGON_API_KEY is not set")}
	}

	company, err := p.companyDetails(ctx, ticker)
	if err != nil {
		return nil, err
	}
	bars, err := p.dailyAggregates(ctx, ticker)
	if err != nil {
		return nil, err
	}
	financials := p.latestFinancials(ctx, ticker)

	return &types.MarketSnapshot{
		Ticker:     ticker,
		Company:    company,
		Bars:       bars,
		Financials: financials,
		Provider:   Name,
		FetchedAt:  p.now().UTC(),
	}, nil
}

func (p *Provider) get(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := p.client.GET(ctx, path, params)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			return &types.ProviderError{Provider: Name, StatusCode: se.StatusCode, Err: errors.New(se.Body)}
		}
		return &types.ProviderError{Provider: Name, Err: err}
	}
	if err := resp.ParseJSON(out); err != nil {
		return &types.ProviderError{Provider: Name, Err: err}
	}
	return nil
}

func (p *Provider) companyDetails(ctx context.Context, ticker string) (map[string]any, error) {
	var body struct {
		Results map[string]any `json:"results"`
	}
	if err := p.get(ctx, "/v3/reference/tickers/"+url.PathEscape(ticker), nil, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, &types.TickerNotFoundError{Ticker: ticker, Provider: Name}
	}
	company := map[string]any{}
	for _, k := range companyKeys {
		if v, ok := body.Results[k]; ok && v != nil {
			company[k] = v
		}
	}
	return company, nil
}

type aggregate struct {
	T int64   `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

func (p *Provider) dailyAggregates(ctx context.Context, ticker string) ([]types.Bar, error) {
	end := p.now().UTC()
	lookback := 2 * p.cfg.TradingDays
	if lookback < minLookbackDays {
		lookback = minLookbackDays
	}
	start := end.AddDate(0, 0, -lookback)

	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/1/day/%s/%s",
		url.PathEscape(ticker), start.Format(time.DateOnly), end.Format(time.DateOnly))
	params := url.Values{
		"adjusted": {"true"},
		"sort":     {"asc"},
		"limit":    {"50000"},
	}

	var body struct {
		Results []aggregate `json:"results"`
	}
	if err := p.get(ctx, path, params, &body); err != nil {
		return nil, err
	}
	if len(body.Results) == 0 {
		return nil, &types.TickerNotFoundError{Ticker: ticker, Provider: Name, Reason: "no aggregate data"}
	}

	results := body.Results
	if len(results) > p.cfg.TradingDays {
		results = results[len(results)-p.cfg.TradingDays:]
	}
	bars := make([]types.Bar, len(results))
	for i, a := range results {
		bars[i] = types.Bar{Time: a.T, Open: a.O, High: a.H, Low: a.L, Close: a.C, Volume: a.V}
	}
	return bars, nil
}

// latestFinancials never fails the snapshot. Any error means no financials.
func (p *Provider) latestFinancials(ctx context.Context, ticker string) map[string]float64 {
	params := url.Values{
		"ticker": {ticker},
		"limit":  {"1"},
		"sort":   {"filing_date"},
		"order":  {"desc"},
	}
	var body struct {
		Results []map[string]any `json:"results"`
	}
	if err := p.get(ctx, "/vX/reference/financials", params, &body); err != nil {
		logger.Warn(ctx, "Financials unavailable", "ticker", ticker, "error", err)
		return nil
	}
	if len(body.Results) == 0 {
		return nil
	}

	result := body.Results[0]
	metrics, _ := result["metrics"].(map[string]any)
	out := map[string]float64{}
	if v, ok := toFloat(result["market_cap"]); ok && v != 0 {
		out["market_cap"] = v
	} else if v, ok := toFloat(metrics["market_cap"]); ok {
		out["market_cap"] = v
	}
	if v, ok := toFloat(metrics["price_to_earnings_ratio"]); ok {
		out["pe_ratio"] = v
	}
	if v, ok := toFloat(metrics["earnings_per_share"]); ok {
		out["eps"] = v
	}
	if v, ok := toFloat(metrics["dividend_yield"]); ok {
		out["dividend_yield"] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
