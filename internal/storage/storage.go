package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"breakout-sentry/pkg/types"
)

// CandleSeries 单个交易对的有界K线序列，按开盘时间升序
type CandleSeries struct {
	data    []types.Candle
	maxBars int
	mutex   sync.RWMutex
}

// NewCandleSeries 创建K线序列，maxBars为保留的最大K线数
func NewCandleSeries(maxBars int) *CandleSeries {
	return &CandleSeries{
		data:    make([]types.Candle, 0, maxBars),
		maxBars: maxBars,
	}
}

// Upsert 插入或更新一根K线。
// 开盘时间与末尾K线相同视为未收盘K线的实时更新，原地替换；
// 晚于末尾的追加；早于末尾的乱序数据直接丢弃（数据源保证时间升序）。
func (cs *CandleSeries) Upsert(candle types.Candle) {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	n := len(cs.data)
	if n > 0 {
		last := cs.data[n-1]
		if candle.OpenTime.Equal(last.OpenTime) {
			cs.data[n-1] = candle
			return
		}
		if candle.OpenTime.Before(last.OpenTime) {
			return
		}
	}

	cs.data = append(cs.data, candle)

	// 超出上限时裁掉最旧的K线
	if len(cs.data) > cs.maxBars {
		cs.data = cs.data[len(cs.data)-cs.maxBars:]
	}
}

// Snapshot 返回当前序列的副本，供检测器扫描（检测器不持有引用）
func (cs *CandleSeries) Snapshot() []types.Candle {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	result := make([]types.Candle, len(cs.data))
	copy(result, cs.data)
	return result
}

// Latest 返回最新一根K线，序列为空返回nil
func (cs *CandleSeries) Latest() *types.Candle {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()

	if len(cs.data) == 0 {
		return nil
	}
	latest := cs.data[len(cs.data)-1]
	return &latest
}

// Len 当前K线数量
func (cs *CandleSeries) Len() int {
	cs.mutex.RLock()
	defer cs.mutex.RUnlock()
	return len(cs.data)
}

// StateManager 状态管理器：维护各交易对的K线序列，可选Redis备份
type StateManager struct {
	series      map[string]*CandleSeries
	mutex       sync.RWMutex
	maxBars     int
	redisClient *redis.Client
	useRedis    bool
}

// NewStateManager 创建状态管理器。
// maxBars决定每个交易对内存中保留多少根K线，需要覆盖检测窗口。
func NewStateManager(redisConfig types.RedisConfig, maxBars int) *StateManager {
	sm := &StateManager{
		series:  make(map[string]*CandleSeries),
		maxBars: maxBars,
	}

	// 尝试连接Redis
	if redisConfig.URL != "" {
		sm.redisClient = redis.NewClient(&redis.Options{
			Addr:     redisConfig.URL,
			Password: redisConfig.Password,
			DB:       redisConfig.DB,
		})

		// 测试连接
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_, err := sm.redisClient.Ping(ctx).Result()
		if err != nil {
			zap.L().Warn("⚠️ Redis连接失败，使用纯内存模式", zap.Error(err))
			sm.useRedis = false
		} else {
			zap.L().Info("✅ Redis连接成功")
			sm.useRedis = true
		}
	} else {
		zap.L().Info("🔧 未配置Redis，使用纯内存模式")
		sm.useRedis = false
	}

	return sm
}

// Store 存入一根K线，已收盘的K线异步备份到Redis
func (sm *StateManager) Store(candle types.Candle) {
	sm.mutex.Lock()
	series := sm.series[candle.Symbol]
	if series == nil {
		series = NewCandleSeries(sm.maxBars)
		sm.series[candle.Symbol] = series
	}
	sm.mutex.Unlock()

	series.Upsert(candle)

	if sm.useRedis && candle.Confirmed {
		go sm.backupToRedis(candle)
	}
}

// backupToRedis 备份收盘K线到Redis Sorted Set，以开盘时间为分数
func (sm *StateManager) backupToRedis(candle types.Candle) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf("sentry:candles:%s", candle.Symbol)
	value, err := json.Marshal(candle)
	if err != nil {
		zap.L().Warn("序列化K线数据失败", zap.Error(err))
		return
	}

	err = sm.redisClient.ZAdd(ctx, key, &redis.Z{
		Score:  float64(candle.OpenTime.Unix()),
		Member: value,
	}).Err()
	if err != nil {
		zap.L().Warn("Redis存储失败", zap.String("symbol", candle.Symbol), zap.Error(err))
		return
	}

	// 只保留最近24小时数据
	sm.redisClient.Expire(ctx, key, 24*time.Hour)
	cutoff := float64(time.Now().Add(-24 * time.Hour).Unix())
	sm.redisClient.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%.0f", cutoff))
}

// SnapshotCandles 获取指定交易对的K线序列副本，不存在返回nil
func (sm *StateManager) SnapshotCandles(symbol string) []types.Candle {
	sm.mutex.RLock()
	series := sm.series[symbol]
	sm.mutex.RUnlock()

	if series == nil {
		return nil
	}
	return series.Snapshot()
}

// GetAllSymbols 获取当前持有数据的所有交易对
func (sm *StateManager) GetAllSymbols() []string {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	symbols := make([]string, 0, len(sm.series))
	for symbol := range sm.series {
		symbols = append(symbols, symbol)
	}
	return symbols
}

// GetRedisStats 获取存储统计信息
func (sm *StateManager) GetRedisStats() map[string]interface{} {
	sm.mutex.RLock()
	memorySymbols := len(sm.series)
	sm.mutex.RUnlock()

	stats := map[string]interface{}{
		"redis_enabled":  sm.useRedis,
		"memory_symbols": memorySymbols,
	}

	if sm.useRedis {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		keys, err := sm.redisClient.Keys(ctx, "sentry:candles:*").Result()
		if err == nil {
			stats["redis_keys"] = len(keys)
		} else {
			stats["redis_error"] = err.Error()
		}
	}

	return stats
}
