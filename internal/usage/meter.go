// Package usage accumulates token usage for one conversation and converts it
// into a cost estimate.
package usage

import "github.com/capitalize-ai/sentiment-support-agent/internal/model"

const tokensPerMillion = 1_000_000

// Rates is a per-million-token price table in USD.
type Rates struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultRates are the gpt-4o-mini list prices.
var DefaultRates = Rates{InputPerMillion: 0.15, OutputPerMillion: 0.60}

// Meter is a running token counter owned by a single conversation. It is not
// safe for concurrent use; each conversation has exactly one driver.
type Meter struct {
	rates  Rates
	input  int
	output int
}

// NewMeter creates an empty meter priced with rates.
func NewMeter(rates Rates) *Meter {
	return &Meter{rates: rates}
}

// Record adds one exchange worth of usage. Negative counts are treated as
// zero so the totals never decrease.
func (m *Meter) Record(inputTokens, outputTokens int) {
	if inputTokens > 0 {
		m.input += inputTokens
	}
	if outputTokens > 0 {
		m.output += outputTokens
	}
}

// InputTokens returns the cumulative prompt tokens.
func (m *Meter) InputTokens() int { return m.input }

// OutputTokens returns the cumulative completion tokens.
func (m *Meter) OutputTokens() int { return m.output }

// TotalTokens returns input plus output tokens.
func (m *Meter) TotalTokens() int { return m.input + m.output }

// Rates returns the price table in use.
func (m *Meter) Rates() Rates { return m.rates }

// Estimate derives the current cost. Values are not rounded.
func (m *Meter) Estimate() model.CostEstimate {
	inputCost := float64(m.input) / tokensPerMillion * m.rates.InputPerMillion
	outputCost := float64(m.output) / tokensPerMillion * m.rates.OutputPerMillion

	return model.CostEstimate{
		InputTokens:  m.input,
		OutputTokens: m.output,
		TotalTokens:  m.input + m.output,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    inputCost + outputCost,
	}
}
