package fetcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOKXCandleRow(t *testing.T) {
	row := []string{"1717200000000", "100.5", "102.0", "99.8", "101.2", "345.6", "34879.1", "0", "1"}

	candle, err := ParseOKXCandleRow("BTC-USDT", row, "15m")
	require.NoError(t, err)

	assert.Equal(t, "BTC-USDT", candle.Symbol)
	assert.Equal(t, time.Unix(1717200000, 0), candle.OpenTime)
	assert.Equal(t, time.Unix(1717200000, 0).Add(15*time.Minute), candle.CloseTime)
	assert.Equal(t, 100.5, candle.Open)
	assert.Equal(t, 102.0, candle.High)
	assert.Equal(t, 99.8, candle.Low)
	assert.Equal(t, 101.2, candle.Close)
	assert.Equal(t, 345.6, candle.Volume)
	assert.Equal(t, "15m", candle.Interval)
	assert.True(t, candle.Confirmed)
}

func TestParseOKXCandleRowForming(t *testing.T) {
	// confirm=0 表示K线尚未收盘
	row := []string{"1717200000000", "100", "101", "99", "100.5", "10", "1005", "0", "0"}

	candle, err := ParseOKXCandleRow("ETH-USDT", row, "5m")
	require.NoError(t, err)
	assert.False(t, candle.Confirmed)
}

func TestParseOKXCandleRowShortRow(t *testing.T) {
	// 缺少confirm列时按已收盘处理（历史接口不返回该列）
	row := []string{"1717200000000", "100", "101", "99", "100.5", "10"}

	candle, err := ParseOKXCandleRow("ETH-USDT", row, "5m")
	require.NoError(t, err)
	assert.True(t, candle.Confirmed)

	_, err = ParseOKXCandleRow("ETH-USDT", []string{"1717200000000", "100"}, "5m")
	assert.Error(t, err)
}

func TestParseOKXCandleRowBadNumbers(t *testing.T) {
	row := []string{"not-a-ts", "100", "101", "99", "100.5", "10"}
	_, err := ParseOKXCandleRow("BTC-USDT", row, "5m")
	assert.Error(t, err)

	row = []string{"1717200000000", "abc", "101", "99", "100.5", "10"}
	_, err = ParseOKXCandleRow("BTC-USDT", row, "5m")
	assert.Error(t, err)
}

func TestBarDuration(t *testing.T) {
	assert.Equal(t, time.Minute, BarDuration("1m"))
	assert.Equal(t, 15*time.Minute, BarDuration("15m"))
	assert.Equal(t, time.Hour, BarDuration("1H"))
	assert.Equal(t, 24*time.Hour, BarDuration("1D"))
	// 未知周期回退到默认值
	assert.Equal(t, 5*time.Minute, BarDuration("7m"))
}
