package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakout-sentry/pkg/types"
)

// flatCandles 生成n根横盘K线：high=100, low=90, open=close=95
func flatCandles(n int) []types.Candle {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, n)
	for i := range candles {
		candles[i] = types.Candle{
			Symbol:    "BTC-USDT",
			OpenTime:  base.Add(time.Duration(i) * 15 * time.Minute),
			CloseTime: base.Add(time.Duration(i+1) * 15 * time.Minute),
			Open:      95,
			High:      100,
			Low:       90,
			Close:     95,
			Volume:    10,
			Interval:  "15m",
		}
	}
	return candles
}

func TestDetectInsufficientHistory(t *testing.T) {
	// 19根K线 + window=20 → 空结果，不是错误
	candles := flatCandles(19)
	signals, err := Detect(candles, DefaultWindow)
	require.NoError(t, err)
	assert.Empty(t, signals)

	// 刚好等于窗口长度：没有可检测的索引
	signals, err = Detect(flatCandles(20), DefaultWindow)
	require.NoError(t, err)
	assert.Empty(t, signals)

	signals, err = Detect(nil, DefaultWindow)
	require.NoError(t, err)
	assert.Empty(t, signals)
}

func TestDetectInvalidWindow(t *testing.T) {
	candles := flatCandles(30)

	_, err := Detect(candles, 0)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Detect(candles, -5)
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestDetectResistanceBreakoutConfirmed(t *testing.T) {
	// 前20根横盘（阻力100），第21根开盘101.5收盘102.5，
	// 102.5 > 100*1.002=100.2 触发；开盘和收盘都越过100 → 确认
	candles := flatCandles(21)
	candles[20].Open = 101.5
	candles[20].Close = 102.5
	candles[20].High = 103

	signals, err := Detect(candles, 20)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, types.DirectionResistance, sig.Direction)
	assert.Equal(t, candles[20].OpenTime, sig.Time)
	assert.Equal(t, 102.5, sig.Price)
	assert.Equal(t, 100.0, sig.Level)
	assert.True(t, sig.Confirmed)
}

func TestDetectResistanceBreakoutUnconfirmed(t *testing.T) {
	// 收盘100.5 > 100.2触发，但开盘99.5未越过100 → 不确认
	candles := flatCandles(21)
	candles[20].Open = 99.5
	candles[20].Close = 100.5
	candles[20].High = 101

	signals, err := Detect(candles, 20)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, types.DirectionResistance, signals[0].Direction)
	assert.False(t, signals[0].Confirmed)
}

func TestDetectSupportBreakdown(t *testing.T) {
	// 支撑90，收盘89.5 < 90*0.998=89.82触发；开盘88也在支撑下方 → 确认
	candles := flatCandles(21)
	candles[20].Open = 88
	candles[20].Low = 87
	candles[20].Close = 89.5

	signals, err := Detect(candles, 20)
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, types.DirectionSupport, sig.Direction)
	assert.Equal(t, 89.5, sig.Price)
	assert.Equal(t, 90.0, sig.Level)
	assert.True(t, sig.Confirmed)
}

func TestDetectThresholdBoundary(t *testing.T) {
	// 收盘正好等于阈值不触发（严格大于）
	candles := flatCandles(21)
	candles[20].Close = 100 * 1.002
	candles[20].High = 101

	signals, err := Detect(candles, 20)
	require.NoError(t, err)
	assert.Empty(t, signals)

	// 刚刚超过阈值则触发
	candles[20].Close = 100.21
	signals, err = Detect(candles, 20)
	require.NoError(t, err)
	assert.Len(t, signals, 1)
}

func TestDetectBothDirectionsSameCandle(t *testing.T) {
	// 两个阈值检查相互独立、不互斥。正常K线下（low≤high）
	// 阻力位≥支撑位，收盘价不可能同时满足两个条件；但算法
	// 对畸形数据不做防御（见错误处理设计），当窗口极值倒挂时
	// 同一根K线会发出两条信号，且阻力信号在前。
	candles := []types.Candle{
		{OpenTime: time.Unix(1000, 0), Open: 30, High: 10, Low: 50, Close: 30}, // 畸形：high<low
		{OpenTime: time.Unix(2000, 0), Open: 30, High: 31, Low: 29, Close: 30},
	}

	signals, err := Detect(candles, 1)
	require.NoError(t, err)
	require.Len(t, signals, 2)
	assert.Equal(t, types.DirectionResistance, signals[0].Direction)
	assert.Equal(t, types.DirectionSupport, signals[1].Direction)
	assert.Equal(t, signals[0].Time, signals[1].Time)
}

func TestDetectOrderingAndEmissionOrder(t *testing.T) {
	// 多个触发点时信号按K线时间非降序输出
	candles := flatCandles(40)
	candles[25].Open = 101
	candles[25].Close = 103
	candles[25].High = 104
	candles[30].Open = 86
	candles[30].Low = 85
	candles[30].Close = 87

	signals, err := Detect(candles, 20)
	require.NoError(t, err)
	require.NotEmpty(t, signals)

	for i := 1; i < len(signals); i++ {
		assert.False(t, signals[i].Time.Before(signals[i-1].Time),
			"信号必须按时间非降序输出")
	}

	// 所有信号的时间都对应索引≥window的输入K线
	for _, sig := range signals {
		found := false
		for i := 20; i < len(candles); i++ {
			if candles[i].OpenTime.Equal(sig.Time) {
				found = true
				break
			}
		}
		assert.True(t, found, "信号时间必须来自索引≥window的K线")
	}
}

func TestDetectWindowExcludesCurrentCandle(t *testing.T) {
	// 基线窗口不包含当前K线：当前K线的新高不应抬高自己的阻力位
	candles := flatCandles(21)
	candles[20].Open = 101
	candles[20].High = 200 // 当前K线的最高价不参与基线
	candles[20].Close = 102

	signals, err := Detect(candles, 20)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, 100.0, signals[0].Level)
}

func TestDetectSlidingBaseline(t *testing.T) {
	// 突破后新高进入后续窗口，相同价格不再触发
	candles := flatCandles(22)
	candles[20].Open = 101
	candles[20].High = 105
	candles[20].Close = 103
	// 第22根收盘103：窗口已含high=105，103 < 105*1.002 → 无信号
	candles[21].Open = 103
	candles[21].High = 104
	candles[21].Close = 103

	signals, err := Detect(candles, 20)
	require.NoError(t, err)
	require.Len(t, signals, 1)
	assert.Equal(t, candles[20].OpenTime, signals[0].Time)
}

func TestDetectIdempotent(t *testing.T) {
	candles := flatCandles(40)
	candles[25].Open = 101
	candles[25].Close = 103
	candles[25].High = 104

	first, err := Detect(candles, 20)
	require.NoError(t, err)
	second, err := Detect(candles, 20)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDetectDoesNotMutateInput(t *testing.T) {
	candles := flatCandles(25)
	candles[22].Open = 101
	candles[22].Close = 103

	before := make([]types.Candle, len(candles))
	copy(before, candles)

	_, err := Detect(candles, 20)
	require.NoError(t, err)
	assert.Equal(t, before, candles)
}
