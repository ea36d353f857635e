package detector

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakout-sentry/pkg/types"
)

// randomWalkCandles 生成带趋势段的随机行情，保证low≤open,close≤high
func randomWalkCandles(n int, seed int64) []types.Candle {
	rng := rand.New(rand.NewSource(seed))
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	candles := make([]types.Candle, n)
	price := 100.0
	for i := range candles {
		open := price
		// 偶尔插入一段急涨/急跌，制造突破场景
		drift := (rng.Float64() - 0.5) * 0.6
		if rng.Intn(20) == 0 {
			drift = (rng.Float64() - 0.5) * 8
		}
		close := open + drift
		high := open
		if close > high {
			high = close
		}
		high += rng.Float64() * 0.3
		low := open
		if close < low {
			low = close
		}
		low -= rng.Float64() * 0.3

		candles[i] = types.Candle{
			Symbol:    "ETH-USDT",
			OpenTime:  base.Add(time.Duration(i) * 5 * time.Minute),
			CloseTime: base.Add(time.Duration(i+1) * 5 * time.Minute),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    rng.Float64() * 100,
			Interval:  "5m",
		}
		price = close
	}
	return candles
}

func TestNewRollingDetectorInvalidWindow(t *testing.T) {
	_, err := NewRollingDetector(0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = NewRollingDetector(-3)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestRollingDetectorNoSignalDuringWarmup(t *testing.T) {
	rd, err := NewRollingDetector(20)
	require.NoError(t, err)

	candles := randomWalkCandles(20, 7)
	for _, c := range candles {
		assert.Empty(t, rd.Push(c))
	}
	assert.True(t, rd.Ready())
	assert.Equal(t, 20, rd.Count())
}

func TestRollingDetectorMatchesBatchDetect(t *testing.T) {
	// 流式逐根推入与批量扫描必须产生完全相同的信号序列
	for _, seed := range []int64{1, 2, 42, 2024} {
		for _, window := range []int{1, 5, 20, 50} {
			candles := randomWalkCandles(400, seed)

			batch, err := Detect(candles, window)
			require.NoError(t, err)

			rd, err := NewRollingDetector(window)
			require.NoError(t, err)

			var streamed []types.BreakoutSignal
			for _, c := range candles {
				streamed = append(streamed, rd.Push(c)...)
			}

			assert.Equal(t, batch, streamed,
				"seed=%d window=%d 流式与批量结果不一致", seed, window)
		}
	}
}

func TestRollingDetectorSingleBreakout(t *testing.T) {
	rd, err := NewRollingDetector(20)
	require.NoError(t, err)

	candles := flatCandles(20)
	for _, c := range candles {
		require.Empty(t, rd.Push(c))
	}

	breaker := candles[19]
	breaker.OpenTime = breaker.OpenTime.Add(15 * time.Minute)
	breaker.Open = 101.5
	breaker.High = 103
	breaker.Close = 102.5

	signals := rd.Push(breaker)
	require.Len(t, signals, 1)
	assert.Equal(t, types.DirectionResistance, signals[0].Direction)
	assert.Equal(t, 100.0, signals[0].Level)
	assert.True(t, signals[0].Confirmed)
}
