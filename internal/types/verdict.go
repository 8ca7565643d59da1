package types

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Signal string

const (
	StrongBuy  Signal = "strong_buy"
	Buy        Signal = "buy"
	Neutral    Signal = "neutral"
	Sell       Signal = "sell"
	StrongSell Signal = "strong_sell"
)

type Scorecard struct {
	Score     int    `json:"score" validate:"gte=0,lte=100"`
	ShortTerm string `json:"short_term" validate:"oneof='Buy' 'Not Buy'"`
	MidTerm   string `json:"mid_term" validate:"oneof='Buy' 'Not Buy'"`
	LongTerm  string `json:"long_term" validate:"oneof='Buy' 'Not Buy'"`
	Rationale string `json:"rationale"`
}

type Timeframe struct {
	Trend string `json:"trend" validate:"oneof=up down sideways"`
	Notes string `json:"notes"`
}

type Timeframes struct {
	ShortTerm  Timeframe `json:"short_term"`
	MediumTerm Timeframe `json:"medium_term"`
	LongTerm   Timeframe `json:"long_term"`
}

type KeyLevels struct {
	Support    []float64 `json:"support" validate:"len=2"`
	Resistance []float64 `json:"resistance" validate:"len=2"`
}

type TechnicalScorecard struct {
	Agent      string     `json:"agent" validate:"eq=technical"`
	Ticker     string     `json:"ticker"`
	AsOf       string     `json:"as_of"`
	Score      int        `json:"score" validate:"gte=0,lte=100"`
	Confidence float64    `json:"confidence" validate:"gte=0,lte=1"`
	Signal     Signal     `json:"signal" validate:"oneof=strong_buy buy neutral sell strong_sell"`
	Timeframes Timeframes `json:"timeframes"`
	KeyLevels  KeyLevels  `json:"key_levels"`
	Reasons    []string   `json:"reasons" validate:"min=3,max=6"`
	Risks      []string   `json:"risks" validate:"min=1,max=3"`
}

type Quality struct {
	Profitability int `json:"profitability" validate:"gte=0,lte=100"`
	Growth        int `json:"growth" validate:"gte=0,lte=100"`
	BalanceSheet  int `json:"balance_sheet" validate:"gte=0,lte=100"`
	CashFlow      int `json:"cash_flow" validate:"gte=0,lte=100"`
	Valuation     int `json:"valuation" validate:"gte=0,lte=100"`
}

type FundamentalScorecard struct {
	Agent      string   `json:"agent" validate:"eq=fundamental"`
	Ticker     string   `json:"ticker"`
	AsOf       string   `json:"as_of"`
	Score      int      `json:"score" validate:"gte=0,lte=100"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
	Signal     Signal   `json:"signal" validate:"oneof=strong_buy buy neutral sell strong_sell"`
	Quality    Quality  `json:"quality"`
	Reasons    []string `json:"reasons" validate:"min=3,max=6"`
	Risks      []string `json:"risks" validate:"min=1,max=3"`
}

type Weights struct {
	Technical   float64 `json:"technical"`
	Fundamental float64 `json:"fundamental"`
}

type Component struct {
	Score      int      `json:"score" validate:"gte=0,lte=100"`
	Confidence float64  `json:"confidence" validate:"gte=0,lte=1"`
	Signal     string   `json:"signal"`
	Highlights []string `json:"highlights" validate:"len=2"`
}

type Components struct {
	Technical   Component `json:"technical"`
	Fundamental Component `json:"fundamental"`
}

type CompiledScorecard struct {
	Ticker          string     `json:"ticker"`
	AsOf            string     `json:"as_of"`
	Weights         Weights    `json:"weights"`
	FinalScore      int        `json:"final_score" validate:"gte=0,lte=100"`
	FinalConfidence float64    `json:"final_confidence" validate:"gte=0,lte=1"`
	FinalSignal     Signal     `json:"final_signal" validate:"oneof=strong_buy buy neutral sell strong_sell"`
	Components      Components `json:"components"`
	TopReasons      []string   `json:"top_reasons" validate:"min=2,max=4"`
	KeyRisks        []string   `json:"key_risks" validate:"min=1,max=3"`
}

// Validate checks range, enum and length constraints declared on v's fields.
func Validate(v any) error {
	return validate.Struct(v)
}
