// Package metrics derives the numeric summary and indicator bundle that the
// analysts receive alongside raw bars.
package metrics

import (
	"math"

	"stockiq/internal/interfaces"
	"stockiq/internal/ta"
	"stockiq/internal/types"
)

const (
	tradingDaysPerYear = 252
	barsOneMonth       = 21
	barsThreeMonths    = 63
	barsSixMonths      = 126
)

// FundamentalKeys are copied from provider financials into the bundle when present.
var FundamentalKeys = []string{"market_cap", "pe_ratio", "eps", "dividend_yield"}

type Computer struct{}

var _ interfaces.MetricsComputer = Computer{}

func New() Computer { return Computer{} }

// Compute never fails. Entries that cannot be derived are left out.
func (Computer) Compute(bars []types.Bar, financials map[string]float64) types.MetricsBundle {
	out := types.MetricsBundle{}
	closes, volumes := series(bars)
	if len(closes) == 0 {
		return out
	}

	put(out, "last_close", closes[len(closes)-1])
	put(out, "return_1m", ta.PeriodReturn(closes, barsOneMonth))
	put(out, "return_3m", ta.PeriodReturn(closes, barsThreeMonths))
	put(out, "return_6m", ta.PeriodReturn(closes, barsSixMonths))
	put(out, "volatility_annualized", ta.SampleStdDev(ta.PctChanges(closes))*math.Sqrt(tradingDaysPerYear))
	put(out, "max_drawdown", ta.MaxDrawdown(closes))
	if len(volumes) > 0 {
		sum := 0.0
		for _, v := range volumes {
			sum += v
		}
		put(out, "avg_daily_volume", sum/float64(len(volumes)))
	}

	for _, k := range FundamentalKeys {
		if v, ok := financials[k]; ok {
			put(out, k, v)
		}
	}
	return out
}

// Indicators computes the technical bundle handed to the technical analyst.
func (Computer) Indicators(bars []types.Bar) types.Indicators {
	out := types.Indicators{}
	var highs, lows, closes []float64
	for _, b := range bars {
		if math.IsNaN(b.Close) {
			continue
		}
		highs = append(highs, b.High)
		lows = append(lows, b.Low)
		closes = append(closes, b.Close)
	}
	if len(closes) == 0 {
		return out
	}

	put(out, "sma_20", ta.SMA(closes, 20))
	put(out, "sma_50", ta.SMA(closes, 50))
	put(out, "sma_200", ta.SMA(closes, 200))
	put(out, "rsi_14", ta.RSI(closes, 14))
	put(out, "atr_14", ta.ATR(highs, lows, closes, 14))

	mid, up, low := ta.Bollinger(closes, 20, 2)
	put(out, "bb_middle", mid)
	put(out, "bb_upper", up)
	put(out, "bb_lower", low)

	hi52, lo52 := ta.Range(highs, lows, tradingDaysPerYear)
	put(out, "high_52w", hi52)
	put(out, "low_52w", lo52)
	return out
}

func series(bars []types.Bar) (closes, volumes []float64) {
	closes = make([]float64, 0, len(bars))
	for _, b := range bars {
		if math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			continue
		}
		closes = append(closes, b.Close)
		if !math.IsNaN(b.Volume) {
			volumes = append(volumes, b.Volume)
		}
	}
	return closes, volumes
}

func put(m map[string]float64, key string, v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	m[key] = v
}
