package scoring

import (
	"math"

	"stockiq/internal/types"
)

// Tolerance bounds how far a model-compiled scorecard may drift from Compile.
type Tolerance struct {
	Score      int
	Confidence float64
}

func DefaultTolerance() Tolerance {
	return Tolerance{Score: 1, Confidence: 0.02}
}

// Check compares a model-compiled scorecard with the arithmetic result for the
// same inputs. The returned error is an *types.OracleMismatchError.
func Check(got *types.CompiledScorecard, t *types.TechnicalScorecard, f *types.FundamentalScorecard, w types.Weights, tol Tolerance) error {
	want := Compile(t, f, w)

	if !closeEnough(got.Weights.Technical, w.Technical, 1e-9) || !closeEnough(got.Weights.Fundamental, w.Fundamental, 1e-9) {
		return &types.OracleMismatchError{Field: "weights", Got: got.Weights, Want: w}
	}
	if abs(got.FinalScore-want.FinalScore) > tol.Score {
		return &types.OracleMismatchError{Field: "final_score", Got: got.FinalScore, Want: want.FinalScore}
	}
	if !closeEnough(got.FinalConfidence, want.FinalConfidence, tol.Confidence) {
		return &types.OracleMismatchError{Field: "final_confidence", Got: got.FinalConfidence, Want: want.FinalConfidence}
	}
	if got.FinalSignal != SignalForScore(got.FinalScore) {
		return &types.OracleMismatchError{Field: "final_signal", Got: got.FinalSignal, Want: SignalForScore(got.FinalScore)}
	}
	if got.Components.Technical.Score != t.Score || got.Components.Fundamental.Score != f.Score {
		return &types.OracleMismatchError{
			Field: "components.score",
			Got:   [2]int{got.Components.Technical.Score, got.Components.Fundamental.Score},
			Want:  [2]int{t.Score, f.Score},
		}
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func closeEnough(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps+1e-12
}
