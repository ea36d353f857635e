package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"breakout-sentry/pkg/types"
)

func testCandles() []types.Candle {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	raw := []struct{ h, l, c float64 }{
		{10, 8, 9},
		{11, 9, 10},
		{12, 10, 11},
		{11, 9, 10},
		{12, 10, 11},
		{13, 11, 12},
	}
	candles := make([]types.Candle, len(raw))
	for i, r := range raw {
		candles[i] = types.Candle{
			OpenTime: base.Add(time.Duration(i) * time.Minute),
			High:     r.h,
			Low:      r.l,
			Close:    r.c,
		}
	}
	return candles
}

func TestATRCalculate(t *testing.T) {
	ac := NewATRCalculator(3)
	// 每根K线的真实波幅都是2（high-low=2且覆盖前收盘）
	atr := ac.Calculate(testCandles())
	assert.InDelta(t, 2.0, atr, 0.001)
}

func TestATRInsufficientData(t *testing.T) {
	ac := NewATRCalculator(14)
	assert.Zero(t, ac.Calculate(testCandles()))
	assert.Zero(t, ac.Calculate(nil))
}

func TestATRNormalized(t *testing.T) {
	ac := NewATRCalculator(3)
	assert.InDelta(t, 2.0, ac.Normalized(2, 100), 0.001)
	assert.Zero(t, ac.Normalized(2, 0))
}
