package analyzer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakout-sentry/internal/storage"
	"breakout-sentry/pkg/types"
)

// mockNotifier 记录收到的预警
type mockNotifier struct {
	alerts []*types.BreakoutAlert
}

func (m *mockNotifier) SendAlert(alert *types.BreakoutAlert) error {
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockNotifier) SendBatchAlerts(alerts []*types.BreakoutAlert) error {
	m.alerts = append(m.alerts, alerts...)
	return nil
}

// seedFlatMarket 向状态管理器写入n根横盘K线（阻力100/支撑90）
func seedFlatMarket(sm *storage.StateManager, symbol string, n int) time.Time {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		sm.Store(types.Candle{
			Symbol:   symbol,
			OpenTime: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:     95, High: 100, Low: 90, Close: 95,
			Interval: "5m",
		})
	}
	return base.Add(time.Duration(n) * 5 * time.Minute)
}

func TestAnalyzeSymbolEmitsBreakoutAlert(t *testing.T) {
	sm := storage.NewStateManager(types.RedisConfig{}, 100)
	nextOpen := seedFlatMarket(sm, "BTC-USDT", 20)

	// 突破K线：开盘收盘都越过阻力100
	sm.Store(types.Candle{
		Symbol:   "BTC-USDT",
		OpenTime: nextOpen,
		Open:     101.5, High: 103, Low: 101, Close: 102.5,
		Interval: "5m",
	})

	mn := &mockNotifier{}
	ae := NewAnalysisEngine(sm, mn, 20, 10)

	alerts := ae.AnalyzeSymbol("BTC-USDT")
	require.Len(t, alerts, 1)

	sig := alerts[0].Signal
	assert.Equal(t, types.DirectionResistance, sig.Direction)
	assert.Equal(t, 102.5, sig.Price)
	assert.True(t, sig.Confirmed)
	assert.Greater(t, alerts[0].ATRValue, 0.0)
	assert.Greater(t, alerts[0].ATRPercent, 0.0)
}

func TestAnalyzeSymbolDoesNotRealert(t *testing.T) {
	sm := storage.NewStateManager(types.RedisConfig{}, 100)
	nextOpen := seedFlatMarket(sm, "BTC-USDT", 20)
	sm.Store(types.Candle{
		Symbol:   "BTC-USDT",
		OpenTime: nextOpen,
		Open:     101.5, High: 103, Low: 101, Close: 102.5,
		Interval: "5m",
	})

	ae := NewAnalysisEngine(sm, &mockNotifier{}, 20, 10)

	first := ae.AnalyzeSymbol("BTC-USDT")
	require.Len(t, first, 1)

	// 同一根K线第二次扫描不再告警
	second := ae.AnalyzeSymbol("BTC-USDT")
	assert.Empty(t, second)
}

func TestAnalyzeAllSendsAlerts(t *testing.T) {
	sm := storage.NewStateManager(types.RedisConfig{}, 100)
	nextOpen := seedFlatMarket(sm, "BTC-USDT", 20)
	sm.Store(types.Candle{
		Symbol:   "BTC-USDT",
		OpenTime: nextOpen,
		Open:     101.5, High: 103, Low: 101, Close: 102.5,
		Interval: "5m",
	})
	seedFlatMarket(sm, "ETH-USDT", 10) // 历史不足，不产生信号

	mn := &mockNotifier{}
	ae := NewAnalysisEngine(sm, mn, 20, 10)
	ae.AnalyzeAll()

	require.Len(t, mn.alerts, 1)
	assert.Equal(t, "BTC-USDT", mn.alerts[0].Signal.Symbol)
}

func TestRecentSignalsSummary(t *testing.T) {
	ss := NewSignalSummary(3)
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ss.Record(types.BreakoutSignal{
			Symbol:    "BTC-USDT",
			Time:      base.Add(time.Duration(i) * time.Minute),
			Direction: types.DirectionResistance,
			Price:     float64(100 + i),
		})
	}
	ss.Record(types.BreakoutSignal{
		Symbol:    "BTC-USDT",
		Time:      base,
		Direction: types.DirectionSupport,
		Price:     90,
	})

	recent := ss.Recent(types.DirectionResistance, 2)
	require.Len(t, recent, 2)
	// 按时间降序，最新的在前
	assert.Equal(t, 104.0, recent[0].Price)
	assert.Equal(t, 103.0, recent[1].Price)

	// limit=3 → 最多保留3条
	all := ss.Recent(types.DirectionResistance, 10)
	assert.Len(t, all, 3)

	support := ss.Recent(types.DirectionSupport, 10)
	require.Len(t, support, 1)
	assert.Equal(t, 90.0, support[0].Price)

	assert.Nil(t, ss.Recent(types.DirectionResistance, 0))
}
