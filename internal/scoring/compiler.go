// Package scoring merges a technical and a fundamental verdict into one
// weighted verdict. It is pure and deterministic.
package scoring

import (
	"github.com/shopspring/decimal"

	"stockiq/internal/types"
)

const (
	minTopReasons = 2
	maxTopReasons = 4
	minKeyRisks   = 1
	maxKeyRisks   = 3
	highlights    = 2
)

// DefaultWeights favour fundamentals slightly.
func DefaultWeights() types.Weights {
	return types.Weights{Technical: 0.45, Fundamental: 0.55}
}

// FinalScore is the weighted sum rounded half away from zero, which is
// half-up for every score the schemas allow. It is not clamped.
func FinalScore(t, f int, w types.Weights) int {
	sum := decimal.NewFromInt(int64(t)).Mul(decimal.NewFromFloat(w.Technical)).
		Add(decimal.NewFromInt(int64(f)).Mul(decimal.NewFromFloat(w.Fundamental)))
	return int(sum.Round(0).IntPart())
}

// FinalConfidence is the weighted sum clamped to [0, 1].
func FinalConfidence(t, f float64, w types.Weights) float64 {
	sum := decimal.NewFromFloat(t).Mul(decimal.NewFromFloat(w.Technical)).
		Add(decimal.NewFromFloat(f).Mul(decimal.NewFromFloat(w.Fundamental)))
	switch {
	case sum.LessThan(decimal.Zero):
		return 0
	case sum.GreaterThan(decimal.NewFromInt(1)):
		return 1
	}
	return sum.InexactFloat64()
}

// SignalForScore maps a score to its band. Out of range scores saturate.
func SignalForScore(score int) types.Signal {
	switch {
	case score >= 80:
		return types.StrongBuy
	case score >= 65:
		return types.Buy
	case score >= 45:
		return types.Neutral
	case score >= 25:
		return types.Sell
	default:
		return types.StrongSell
	}
}

// Compile builds the compiled scorecard arithmetically. Ticker and as-of are
// taken from the technical verdict.
func Compile(t *types.TechnicalScorecard, f *types.FundamentalScorecard, w types.Weights) types.CompiledScorecard {
	score := FinalScore(t.Score, f.Score, w)
	return types.CompiledScorecard{
		Ticker:          t.Ticker,
		AsOf:            t.AsOf,
		Weights:         w,
		FinalScore:      score,
		FinalConfidence: FinalConfidence(t.Confidence, f.Confidence, w),
		FinalSignal:     SignalForScore(score),
		Components: types.Components{
			Technical:   component(t.Score, t.Confidence, t.Signal, t.Reasons),
			Fundamental: component(f.Score, f.Confidence, f.Signal, f.Reasons),
		},
		TopReasons: Pool(t.Reasons, f.Reasons, minTopReasons, maxTopReasons),
		KeyRisks:   Pool(t.Risks, f.Risks, minKeyRisks, maxKeyRisks),
	}
}

func component(score int, confidence float64, signal types.Signal, reasons []string) types.Component {
	return types.Component{
		Score:      score,
		Confidence: confidence,
		Signal:     string(signal),
		Highlights: Pool(reasons, nil, highlights, highlights),
	}
}
