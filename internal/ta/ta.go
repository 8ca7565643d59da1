// Package ta holds the indicator math. Every function returns NaN when the
// series is too short for the requested window.
package ta

import "math"

func SMA(closes []float64, n int) float64 {
	if len(closes) < n || n <= 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range closes[len(closes)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// RSI uses simple averages of gains and losses over the last period changes.
func RSI(closes []float64, period int) float64 {
	if len(closes) < period+1 || period <= 0 {
		return math.NaN()
	}
	gain, loss := 0.0, 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	if loss == 0 {
		return 100.0
	}
	rs := gain / loss
	return 100.0 - (100.0 / (1.0 + rs))
}

// StdDev is the population standard deviation of the last n values.
func StdDev(vals []float64, n int) float64 {
	if len(vals) < n || n <= 0 {
		return math.NaN()
	}
	m := SMA(vals, n)
	s := 0.0
	for _, v := range vals[len(vals)-n:] {
		d := v - m
		s += d * d
	}
	return math.Sqrt(s / float64(n))
}

// SampleStdDev is the n-1 standard deviation of all values.
func SampleStdDev(vals []float64) float64 {
	if len(vals) < 2 {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	s := 0.0
	for _, v := range vals {
		d := v - mean
		s += d * d
	}
	return math.Sqrt(s / float64(len(vals)-1))
}

func Bollinger(closes []float64, n int, k float64) (mid, up, low float64) {
	mid = SMA(closes, n)
	sd := StdDev(closes, n)
	return mid, mid + k*sd, mid - k*sd
}

func ATR(highs, lows, closes []float64, period int) float64 {
	if len(highs) != len(lows) || len(lows) != len(closes) || period <= 0 {
		return math.NaN()
	}
	if len(closes) < period+1 {
		return math.NaN()
	}
	sum := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		tr := math.Max(highs[i]-lows[i], math.Max(
			math.Abs(highs[i]-closes[i-1]),
			math.Abs(lows[i]-closes[i-1]),
		))
		sum += tr
	}
	return sum / float64(period)
}

// PctChanges returns close-to-close fractional changes, skipping zero bases.
func PctChanges(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// PeriodReturn compares the last close with the close bars periods earlier.
// It needs at least bars+1 closes.
func PeriodReturn(closes []float64, bars int) float64 {
	if bars <= 0 || len(closes) <= bars {
		return math.NaN()
	}
	start := closes[len(closes)-bars-1]
	if start == 0 {
		return math.NaN()
	}
	return closes[len(closes)-1]/start - 1
}

// MaxDrawdown is the most negative close/running-peak - 1. It is never positive.
func MaxDrawdown(closes []float64) float64 {
	if len(closes) == 0 {
		return math.NaN()
	}
	peak := math.Inf(-1)
	worst := 0.0
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak <= 0 {
			continue
		}
		if dd := c/peak - 1; dd < worst {
			worst = dd
		}
	}
	return worst
}

// Range scans the last n bars and returns the highest high and lowest low.
func Range(highs, lows []float64, n int) (high, low float64) {
	if len(highs) == 0 || len(highs) != len(lows) || n <= 0 {
		return math.NaN(), math.NaN()
	}
	start := len(highs) - n
	if start < 0 {
		start = 0
	}
	high, low = math.Inf(-1), math.Inf(1)
	for i := start; i < len(highs); i++ {
		high = math.Max(high, highs[i])
		low = math.Min(low, lows[i])
	}
	return high, low
}
