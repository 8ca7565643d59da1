// Package yahoo reads daily bars and basic instrument metadata from the
// public Yahoo Finance chart endpoint. It needs no API key and carries no
// financial statements.
package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"stockiq/internal/api"
	"stockiq/internal/interfaces"
	"stockiq/internal/types"
)

const (
	Name               = "yahoo"
	DefaultBaseURL     = "https://query1.finance.yahoo.com"
	DefaultTradingDays = 180
)

type Config struct {
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
		cfg.Timeout = 30 * time.Second
	}
	return &Provider{
		client: api.NewClient(
			api.WithBaseURL(cfg.BaseURL),
			api.WithTimeout(cfg.Timeout),
			api.WithHeaders(api.YahooFinanceHeaders()),
			api.WithRateLimit(cfg.RequestsPerMinute),
			api.WithLogging(true),
		),
		cfg: cfg,
		now: time.Now,
	}
}

func (p *Provider) Name() string { return Name }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta       map[string]any `json:"meta"`
			Timestamp  []int64        `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

var metaKeys = map[string]string{
	"symbol":           "ticker",
	"longName":         "name",
	"shortName":        "short_name",
	"exchangeName":     "primary_exchange",
	"fullExchangeName": "exchange",
	"currency":         "currency",
	"instrumentType":   "instrument_type",
}

func (p *Provider) FetchSnapshot(ctx context.Context, ticker string) (*types.MarketSnapshot, error) {
	chart, err := p.fetchChart(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		return nil, &types.TickerNotFoundError{Ticker: ticker, Provider: Name, Reason: chart.Chart.Error.Description}
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 ||
		len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, &types.TickerNotFoundError{Ticker: ticker, Provider: Name, Reason: "no aggregate data"}
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	bars := make([]types.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, c := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // holidays and halted sessions come back as nulls
		}
		bars = append(bars, types.Bar{
			Time:   ts * 1000,
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: at(quote.Volume, i),
		})
	}
	if len(bars) == 0 {
		return nil, &types.TickerNotFoundError{Ticker: ticker, Provider: Name, Reason: "no aggregate data"}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time < bars[j].Time })
	if len(bars) > p.cfg.TradingDays {
		bars = bars[len(bars)-p.cfg.TradingDays:]
	}

	company := map[string]any{}
	for src, dst := range metaKeys {
		if v, ok := result.Meta[src]; ok && v != nil && v != "" {
			company[dst] = v
		}
	}
	if _, ok := company["ticker"]; !ok {
		company["ticker"] = ticker
	}

	return &types.MarketSnapshot{
		Ticker:    ticker,
		Company:   company,
		Bars:      bars,
		Provider:  Name,
		FetchedAt: p.now().UTC(),
	}, nil
}

func (p *Provider) fetchChart(ctx context.Context, ticker string) (*chartResponse, error) {
	params := url.Values{
		"interval": {"1d"},
		"range":    {chartRange(p.cfg.TradingDays)},
	}
	resp, err := p.client.GET(ctx, "/v8/finance/chart/"+url.PathEscape(ticker), params)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) {
			if se.StatusCode == http.StatusNotFound {
				return nil, &types.TickerNotFoundError{Ticker: ticker, Provider: Name}
			}
			return nil, &types.ProviderError{Provider: Name, StatusCode: se.StatusCode, Err: errors.New(se.Body)}
		}
		return nil, &types.ProviderError{Provider: Name, Err: err}
	}
	var chart chartResponse
	if err := resp.ParseJSON(&chart); err != nil {
		return nil, &types.ProviderError{Provider: Name, Err: fmt.Errorf("decode chart: %w", err)}
	}
	return &chart, nil
}

// chartRange picks the smallest Yahoo range that covers days trading sessions.
func chartRange(days int) string {
	switch {
	case days <= 20:
		return "1mo"
	case days <= 60:
		return "3mo"
	case days <= 120:
		return "6mo"
	case days <= 250:
		return "1y"
	default:
		return "2y"
	}
}

func at(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}
