package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breakout-sentry/pkg/types"
)

func candleAt(minute int, close float64) types.Candle {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return types.Candle{
		Symbol:   "BTC-USDT",
		OpenTime: base.Add(time.Duration(minute) * time.Minute),
		Open:     close,
		High:     close + 1,
		Low:      close - 1,
		Close:    close,
		Interval: "1m",
	}
}

func TestCandleSeriesAppendAndSnapshot(t *testing.T) {
	cs := NewCandleSeries(10)
	cs.Upsert(candleAt(0, 100))
	cs.Upsert(candleAt(1, 101))
	cs.Upsert(candleAt(2, 102))

	snap := cs.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, 100.0, snap[0].Close)
	assert.Equal(t, 102.0, snap[2].Close)

	// 快照是副本，修改不影响内部数据
	snap[0].Close = 999
	assert.Equal(t, 100.0, cs.Snapshot()[0].Close)
}

func TestCandleSeriesUpsertReplacesFormingBar(t *testing.T) {
	// 相同开盘时间视为未收盘K线的实时更新，原地替换
	cs := NewCandleSeries(10)
	cs.Upsert(candleAt(0, 100))
	cs.Upsert(candleAt(0, 105))

	assert.Equal(t, 1, cs.Len())
	assert.Equal(t, 105.0, cs.Latest().Close)
}

func TestCandleSeriesDropsOutOfOrder(t *testing.T) {
	cs := NewCandleSeries(10)
	cs.Upsert(candleAt(5, 100))
	cs.Upsert(candleAt(3, 90)) // 乱序，丢弃

	assert.Equal(t, 1, cs.Len())
	assert.Equal(t, 100.0, cs.Latest().Close)
}

func TestCandleSeriesBounded(t *testing.T) {
	cs := NewCandleSeries(5)
	for i := 0; i < 8; i++ {
		cs.Upsert(candleAt(i, float64(100+i)))
	}

	snap := cs.Snapshot()
	require.Len(t, snap, 5)
	// 保留最新的5根
	assert.Equal(t, 103.0, snap[0].Close)
	assert.Equal(t, 107.0, snap[4].Close)
}

func TestCandleSeriesLatestEmpty(t *testing.T) {
	cs := NewCandleSeries(5)
	assert.Nil(t, cs.Latest())
}

func TestStateManagerMemoryMode(t *testing.T) {
	// 未配置Redis → 纯内存模式
	sm := NewStateManager(types.RedisConfig{}, 10)

	sm.Store(candleAt(0, 100))
	sm.Store(candleAt(1, 101))

	other := candleAt(0, 50)
	other.Symbol = "ETH-USDT"
	sm.Store(other)

	assert.ElementsMatch(t, []string{"BTC-USDT", "ETH-USDT"}, sm.GetAllSymbols())
	assert.Len(t, sm.SnapshotCandles("BTC-USDT"), 2)
	assert.Len(t, sm.SnapshotCandles("ETH-USDT"), 1)
	assert.Nil(t, sm.SnapshotCandles("SOL-USDT"))

	stats := sm.GetRedisStats()
	assert.Equal(t, false, stats["redis_enabled"])
	assert.Equal(t, 2, stats["memory_symbols"])
}
