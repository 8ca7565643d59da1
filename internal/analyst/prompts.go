package analyst

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"text/template"
	"time"

	"stockiq/internal/types"
)

const (
	PromptNarrative   = "analysis"
	PromptScore       = "score"
	PromptTechnical   = "technical"
	PromptFundamental = "fundamental"
	PromptCompiler    = "compiler"
)

// PromptData fills the named slots of the prompt templates. JSON slots hold
// compact JSON text.
type PromptData struct {
	Ticker          string
	AsOf            string
	CompanyJSON     string
	PriceSummary    string
	MetricsJSON     string
	HeadlinesJSON   string
	PriceDataJSON   string
	IndicatorsJSON  string
	FinancialsJSON  string
	TechnicalJSON   string
	FundamentalJSON string
	WeightsJSON     string
}

const dataBlock = `Data:
Ticker: {{.Ticker}}
As Of (UTC): {{.AsOf}}
`

const narrativeTemplate = `You are an investor-style analysis agent for a single stock.
Use only the provided data. Do not include legal or compliance analysis.
No graphs or charts.

Produce a Markdown report with these headings exactly:
## Company Snapshot
## Recent Performance
## Key Metrics
## Strengths
## Risks
## What to Watch Next
## Not Financial Advice

Requirements:
- Key Metrics must include a small Markdown table derived from the metrics dictionary.
- If a metric or data point is missing, omit it or state it's unavailable.
- No comparisons to other tickers or the market.
- Keep tone concise and investor-friendly.

` + dataBlock + `Company Info (JSON): {{.CompanyJSON}}
Recent Price Summary: {{.PriceSummary}}
Metrics (JSON): {{.MetricsJSON}}
{{- if .HeadlinesJSON}}
Recent Headlines (JSON): {{.HeadlinesJSON}}
{{- end}}
`

const scoreTemplate = `You are a scoring agent for a single stock.
Use only the provided data. Do not include legal or compliance analysis.

Return ONLY a JSON object with these keys (no code fences, no extra text):
- score: integer 0-100
- short_term: "Buy" or "Not Buy"
- mid_term: "Buy" or "Not Buy"
- long_term: "Buy" or "Not Buy"
- rationale: one short paragraph

Guidance:
- Favor higher scores when recent performance and fundamentals are strong with lower drawdowns/volatility.
- Favor lower scores when drawdown is large or volatility is high.
- Keep recommendations consistent with score (higher score -> more "Buy").

` + dataBlock + `Company Info (JSON): {{.CompanyJSON}}
Recent Price Summary: {{.PriceSummary}}
Metrics (JSON): {{.MetricsJSON}}
`

const technicalTemplate = `You are the TECHNICAL ANALYSIS AGENT.

GOAL:
Analyze the ticker using price action + indicators and produce a normalized scoring output for a scorecard.

INPUTS (you will be given as JSON or text):
- ticker: string
- as_of: ISO timestamp
- price_data: array of OHLCV bars (time, open, high, low, close, volume)
- indicators (optional): may include RSI, moving averages, Bollinger bands, ATR, 52-week range

REQUIREMENTS:
1) Use only the provided data. Do not invent prices, events, news, earnings, or fundamentals.
2) Compute or infer trends from the data: short-term momentum, medium-term trend, volatility, support/resistance zones, volume confirmation.
3) Produce a score from 0-100 and a confidence from 0-1.
4) Provide 3-6 concise bullet "reasons" in plain strings.
5) Provide 1-3 "risks" in plain strings.
6) Provide a "signal" label from: ["strong_buy","buy","neutral","sell","strong_sell"].
7) Output MUST be a single JSON object matching the schema below. No extra keys.
8) Return ONLY the JSON object (no code fences, no extra text).

OUTPUT JSON SCHEMA:
{
  "agent": "technical",
  "ticker": "<string>",
  "as_of": "<ISO timestamp>",
  "score": <integer 0-100>,
  "confidence": <number 0-1>,
  "signal": "<one of strong_buy|buy|neutral|sell|strong_sell>",
  "timeframes": {
    "short_term": {"trend": "<up|down|sideways>", "notes": "<string>"},
    "medium_term": {"trend": "<up|down|sideways>", "notes": "<string>"},
    "long_term": {"trend": "<up|down|sideways>", "notes": "<string>"}
  },
  "key_levels": {
    "support": [<number>, <number>],
    "resistance": [<number>, <number>]
  },
  "reasons": ["<string>", "<string>", "<string>"],
  "risks": ["<string>", "<string>"]
}

` + dataBlock + `Price Data (JSON): {{.PriceDataJSON}}
Indicators (JSON): {{.IndicatorsJSON}}
`

const fundamentalTemplate = `You are the FUNDAMENTAL ANALYSIS AGENT.

GOAL:
Evaluate business quality and financial health using ONLY the provided company + financial data, then output a normalized score for the scorecard.

INPUTS (you will be given as JSON or text):
- ticker: string
- as_of: ISO timestamp
- company_json: basic company info (sector, industry, description if provided)
- financials: statements or summarized fields (revenue, earnings, cash flow, balance sheet items, etc)
- metrics: precomputed ratios and growth (margins, returns, leverage, valuation multiples, growth rates, etc)

REQUIREMENTS:
1) Do not use outside knowledge (no news, no recollection, no macro guesses). Only provided data.
2) Assess: profitability, growth quality, balance sheet risk, cash flow durability, valuation reasonableness.
3) Produce a score from 0-100 and a confidence from 0-1.
4) Provide 3-6 concise bullet "reasons" (strings).
5) Provide 1-3 "risks" (strings).
6) Provide a "signal" label from: ["strong_buy","buy","neutral","sell","strong_sell"].
7) Output MUST be a single JSON object matching the schema below. No extra keys.
8) Return ONLY the JSON object (no code fences, no extra text).

OUTPUT JSON SCHEMA:
{
  "agent": "fundamental",
  "ticker": "<string>",
  "as_of": "<ISO timestamp>",
  "score": <integer 0-100>,
  "confidence": <number 0-1>,
  "signal": "<one of strong_buy|buy|neutral|sell|strong_sell>",
  "quality": {
    "profitability": <integer 0-100>,
    "growth": <integer 0-100>,
    "balance_sheet": <integer 0-100>,
    "cash_flow": <integer 0-100>,
    "valuation": <integer 0-100>
  },
  "reasons": ["<string>", "<string>", "<string>"],
  "risks": ["<string>", "<string>"]
}

` + dataBlock + `Company Info (JSON): {{.CompanyJSON}}
Financials (JSON): {{.FinancialsJSON}}
Metrics (JSON): {{.MetricsJSON}}
`

const compilerTemplate = `You are the COMPILER AGENT.

GOAL:
Combine the outputs of:
1) the technical analysis agent JSON
2) the fundamental analysis agent JSON
into ONE final scorecard JSON.

INPUTS:
- ticker
- as_of
- technical_result: JSON object from technical agent (already validated)
- fundamental_result: JSON object from fundamental agent (already validated)
- weights (optional): if missing, default to:
  technical_weight = 0.45
  fundamental_weight = 0.55

RULES:
1) Do not invent facts. Only combine what is provided.
2) Compute:
   final_score = round(technical_score * technical_weight + fundamental_score * fundamental_weight), halves round up
3) Compute:
   final_confidence = clamp( (technical_confidence*technical_weight + fundamental_confidence*fundamental_weight), 0, 1 )
4) Determine final_signal using final_score thresholds:
   - 80-100: "strong_buy"
   - 65-79: "buy"
   - 45-64: "neutral"
   - 25-44: "sell"
   - 0-24: "strong_sell"
5) Provide:
   - top_reasons: pick the best 2-4 reasons from BOTH agents, dedupe similar ones
   - key_risks: pick 1-3 risks from BOTH agents, dedupe similar ones
6) Output MUST be a single JSON object matching the schema below. No extra keys.
7) Return ONLY the JSON object (no code fences, no extra text).

OUTPUT JSON SCHEMA:
{
  "ticker": "<string>",
  "as_of": "<ISO timestamp>",
  "weights": {"technical": <number>, "fundamental": <number>},
  "final_score": <integer 0-100>,
  "final_confidence": <number 0-1>,
  "final_signal": "<one of strong_buy|buy|neutral|sell|strong_sell>",
  "components": {
    "technical": {
      "score": <integer 0-100>,
      "confidence": <number 0-1>,
      "signal": "<string>",
      "highlights": ["<string>", "<string>"]
    },
    "fundamental": {
      "score": <integer 0-100>,
      "confidence": <number 0-1>,
      "signal": "<string>",
      "highlights": ["<string>", "<string>"]
    }
  },
  "top_reasons": ["<string>", "<string>", "<string>"],
  "key_risks": ["<string>", "<string>"]
}

` + dataBlock + `Technical Result (JSON): {{.TechnicalJSON}}
Fundamental Result (JSON): {{.FundamentalJSON}}
Weights (JSON): {{.WeightsJSON}}
`

var prompts = map[string]*template.Template{
	PromptNarrative:   template.Must(template.New(PromptNarrative).Parse(narrativeTemplate)),
	PromptScore:       template.Must(template.New(PromptScore).Parse(scoreTemplate)),
	PromptTechnical:   template.Must(template.New(PromptTechnical).Parse(technicalTemplate)),
	PromptFundamental: template.Must(template.New(PromptFundamental).Parse(fundamentalTemplate)),
	PromptCompiler:    template.Must(template.New(PromptCompiler).Parse(compilerTemplate)),
}

// RenderPrompt fills the named template.
func RenderPrompt(name string, data PromptData) (string, error) {
	tmpl, ok := prompts[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

// CompactJSON renders v for a JSON slot. Nil maps and slices render as {} or [].
func CompactJSON(v any) string {
	switch t := v.(type) {
	case nil:
		return "{}"
	case map[string]any:
		if t == nil {
			return "{}"
		}
	case map[string]float64:
		if t == nil {
			return "{}"
		}
	case types.MetricsBundle:
		if t == nil {
			return "{}"
		}
	case types.Indicators:
		if t == nil {
			return "{}"
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// PriceSummary describes the first and last bar of the window in one line.
func PriceSummary(bars []types.Bar) string {
	if len(bars) == 0 {
		return "No recent price aggregates available."
	}
	first, last := bars[0], bars[len(bars)-1]
	return fmt.Sprintf("From %s to %s, close moved from %s to %s.",
		first.Date().Format(time.DateOnly),
		last.Date().Format(time.DateOnly),
		strconv.FormatFloat(first.Close, 'f', -1, 64),
		strconv.FormatFloat(last.Close, 'f', -1, 64),
	)
}
