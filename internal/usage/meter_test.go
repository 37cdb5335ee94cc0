package usage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEstimateUsesPerMillionRates(t *testing.T) {
	m := NewMeter(DefaultRates)
	m.Record(100000, 50000)

	est := m.Estimate()
	assert.Equal(t, 100000, est.InputTokens)
	assert.Equal(t, 50000, est.OutputTokens)
	assert.Equal(t, 150000, est.TotalTokens)
	assert.InDelta(t, 0.015, est.InputCost, 1e-9)
	assert.InDelta(t, 0.03, est.OutputCost, 1e-9)
	assert.InDelta(t, 0.045, est.TotalCost, 1e-9)
}

func TestRecordAccumulatesAndNeverDecreases(t *testing.T) {
	m := NewMeter(DefaultRates)
	m.Record(10, 5)
	m.Record(20, 7)
	m.Record(-50, -50)

	assert.Equal(t, 30, m.InputTokens())
	assert.Equal(t, 12, m.OutputTokens())
	assert.Equal(t, 42, m.TotalTokens())
}

func TestEmptyMeterCostsNothing(t *testing.T) {
	est := NewMeter(DefaultRates).Estimate()
	assert.Zero(t, est.TotalTokens)
	assert.Zero(t, est.TotalCost)
}

func TestCustomRates(t *testing.T) {
	m := NewMeter(Rates{InputPerMillion: 3, OutputPerMillion: 15})
	m.Record(1_000_000, 2_000_000)
	assert.InDelta(t, 33.0, m.Estimate().TotalCost, 1e-9)
	assert.Equal(t, 3.0, m.Rates().InputPerMillion)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "999", FormatTokens(999))
	assert.Equal(t, "1.50K", FormatTokens(1500))
	assert.Equal(t, "2.25M", FormatTokens(2_250_000))

	assert.Equal(t, "$0.045000", FormatCost(0.045))

	assert.Equal(t, "42.0s", FormatDuration(42*time.Second))
	assert.Equal(t, "1.5m", FormatDuration(90*time.Second))
	assert.Equal(t, "2.0h", FormatDuration(2*time.Hour))
}
