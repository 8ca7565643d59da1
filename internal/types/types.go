package types

import (
	"regexp"
	"strings"
	"time"
)

var tickerPattern = regexp.MustCompile(`^[A-Z.\-]{1,10}$`)

// NormalizeTicker trims and upper-cases s. Applying it twice yields the same value.
func NormalizeTicker(s string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	if !tickerPattern.MatchString(t) {
		return "", &InvalidTickerError{Input: s}
	}
	return t, nil
}

// Bar is one daily OHLCV aggregate. Time is epoch milliseconds.
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (b Bar) Date() time.Time {
	return time.UnixMilli(b.Time).UTC()
}

type MarketSnapshot struct {
	Ticker     string             `json:"ticker"`
	Company    map[string]any     `json:"company"`
	Bars       []Bar              `json:"bars"`
	Financials map[string]float64 `json:"financials,omitempty"`
	Headlines  []string           `json:"headlines,omitempty"`
	Provider   string             `json:"provider"`
	FetchedAt  time.Time          `json:"fetched_at"`
}

type MetricsBundle map[string]float64

type Indicators map[string]float64

type Event struct {
	Author  string
	Partial bool
	Text    string
}

type SchemaKind string

const (
	SchemaNone        SchemaKind = ""
	SchemaScorecard   SchemaKind = "scorecard"
	SchemaTechnical   SchemaKind = "technical_scorecard"
	SchemaFundamental SchemaKind = "fundamental_scorecard"
	SchemaCompiled    SchemaKind = "compiler_scorecard"
)

type ModelRequest struct {
	Analyst     string
	Model       string
	Instruction string
	Prompt      string
	Schema      SchemaKind
}

type AnalysisResult struct {
	Ticker            string             `json:"ticker"`
	ReportMarkdown    string             `json:"report_markdown"`
	Metrics           MetricsBundle      `json:"metrics"`
	Scorecard         Scorecard          `json:"scorecard"`
	CompilerScorecard *CompiledScorecard `json:"compiler_scorecard"`
	AsOf              string             `json:"as_of"`
}
