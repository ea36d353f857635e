package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandleRow(t *testing.T) {
	row := []string{"1717200000000", "100.5", "102.0", "99.8", "101.2", "345.6", "34879.1", "0", "1"}

	candle, err := ParseCandleRow("BTC-USDT", row, "5m")
	require.NoError(t, err)

	assert.Equal(t, "BTC-USDT", candle.Symbol)
	assert.Equal(t, time.Unix(1717200000, 0), candle.OpenTime)
	assert.Equal(t, time.Unix(1717200000, 0).Add(5*time.Minute), candle.CloseTime)
	assert.Equal(t, 100.5, candle.Open)
	assert.Equal(t, 102.0, candle.High)
	assert.Equal(t, 99.8, candle.Low)
	assert.Equal(t, 101.2, candle.Close)
	assert.Equal(t, 345.6, candle.Volume)
	assert.True(t, candle.Confirmed)
}

func TestParseCandleRowUnconfirmed(t *testing.T) {
	row := []string{"1717200000000", "100", "101", "99", "100.5", "10", "1005", "0", "0"}

	candle, err := ParseCandleRow("ETH-USDT", row, "5m")
	require.NoError(t, err)
	assert.False(t, candle.Confirmed)
}

func TestParseCandleRowErrors(t *testing.T) {
	_, err := ParseCandleRow("BTC-USDT", []string{"1717200000000", "100"}, "5m")
	assert.Error(t, err)

	_, err = ParseCandleRow("BTC-USDT", []string{"bad-ts", "100", "101", "99", "100.5", "10"}, "5m")
	assert.Error(t, err)

	_, err = ParseCandleRow("BTC-USDT", []string{"1717200000000", "x", "101", "99", "100.5", "10"}, "5m")
	assert.Error(t, err)
}

func TestGetIntervalDuration(t *testing.T) {
	assert.Equal(t, time.Minute, getIntervalDuration("1m"))
	assert.Equal(t, 4*time.Hour, getIntervalDuration("4H"))
	assert.Equal(t, 24*time.Hour, getIntervalDuration("1D"))
	// 未知周期回退到默认值
	assert.Equal(t, 15*time.Minute, getIntervalDuration("9m"))
}
