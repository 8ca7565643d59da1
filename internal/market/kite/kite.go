// Package kite serves daily bars for NSE/BSE listings through the Zerodha
// Kite Connect historical data API.
package kite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"stockiq/internal/interfaces"
	"stockiq/internal/logger"
	"stockiq/internal/types"
)

const (
	Name               = "kite"
	DefaultExchange    = "NSE"
	DefaultTradingDays = 180
	minLookbackDays    = 270
	instrumentTTL      = 12 * time.Hour
)

// kiteAPI is the slice of *kiteconnect.Client the provider uses.
type kiteAPI interface {
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, oi bool) ([]kiteconnect.HistoricalData, error)
}

type Config struct {
	APIKey      string
	AccessToken string
	Exchange    string
	TradingDays int
}

type Provider struct {
	kc          kiteAPI
	cfg         Config
	instruments *instrumentMap
	now         func() time.Time
}

var _ interfaces.MarketDataProvider = (*Provider)(nil)

func New(cfg Config) *Provider {
	kc := kiteconnect.New(cfg.APIKey)
	kc.SetAccessToken(cfg.AccessToken)
	return newProvider(kc, cfg)
}

func newProvider(kc kiteAPI, cfg Config) *Provider {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = DefaultTradingDays
	}
	return &Provider{
		kc:          kc,
		cfg:         cfg,
		instruments: newInstrumentMap(instrumentTTL),
		now:         time.Now,
	}
}

func (p *Provider) Name() string { return Name }

func (p *Provider) FetchSnapshot(ctx context.Context, ticker string) (*types.MarketSnapshot, error) {
	if p.cfg.APIKey == "" || p.cfg.AccessToken == "" {
		return nil, &types.ProviderError{Provider: Name, Err: errors.New("KITE_API_KEY and KITE_ACCESS_TOKEN must be set")}
	}
	if err := p.refreshInstruments(ctx); err != nil {
		return nil, err
	}

	symbol := strings.TrimSuffix(strings.TrimSuffix(ticker, ".NS"), ".BO")
	inst, ok := p.instruments.lookup(symbol)
	if !ok {
		return nil, &types.TickerNotFoundError{Ticker: ticker, Provider: Name, Reason: "no " + p.cfg.Exchange + " listing"}
	}

	if err := ctx.Err(); err != nil {
		return nil, &types.ProviderError{Provider: Name, Err: err}
	}
	end := p.now().UTC()
	lookback := 2 * p.cfg.TradingDays
	if lookback < minLookbackDays {
		lookback = minLookbackDays
	}
	history, err := p.kc.GetHistoricalData(inst.InstrumentToken, "day", end.AddDate(0, 0, -lookback), end, false, false)
	if err != nil {
		return nil, &types.ProviderError{Provider: Name, Err: fmt.Errorf("historical data for %s: %w", symbol, err)}
	}
	if len(history) == 0 {
		return nil, &types.TickerNotFoundError{Ticker: ticker, Provider: Name, Reason: "no aggregate data"}
	}
	if len(history) > p.cfg.TradingDays {
		history = history[len(history)-p.cfg.TradingDays:]
	}

	bars := make([]types.Bar, len(history))
	for i, h := range history {
		bars[i] = types.Bar{
			Time:   h.Date.Time.UnixMilli(),
			Open:   h.Open,
			High:   h.High,
			Low:    h.Low,
			Close:  h.Close,
			Volume: float64(h.Volume),
		}
	}

	company := map[string]any{
		"ticker":           inst.Tradingsymbol,
		"primary_exchange": inst.Exchange,
		"currency":         "INR",
	}
	if inst.Name != "" {
		company["name"] = inst.Name
	}

	return &types.MarketSnapshot{
		Ticker:    ticker,
		Company:   company,
		Bars:      bars,
		Provider:  Name,
		FetchedAt: end,
	}, nil
}

func (p *Provider) refreshInstruments(ctx context.Context) error {
	now := p.now()
	if !p.instruments.stale(now) {
		return nil
	}
	list, err := p.kc.GetInstrumentsByExchange(p.cfg.Exchange)
	if err != nil {
		return &types.ProviderError{Provider: Name, Err: fmt.Errorf("instruments for %s: %w", p.cfg.Exchange, err)}
	}
	p.instruments.replace(list, now)
	logger.Debug(ctx, "Kite instruments loaded", "exchange", p.cfg.Exchange, "count", p.instruments.size())
	return nil
}
