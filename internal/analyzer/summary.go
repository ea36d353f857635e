package analyzer

import (
	"sort"
	"sync"

	"breakout-sentry/pkg/types"
)

// SignalSummary 按方向维护最近的突破信号，供展示层查询。
// 只在内存中保留，进程重启后清空（信号历史不做持久化）。
type SignalSummary struct {
	byDirection map[types.Direction][]types.BreakoutSignal
	limit       int
	mutex       sync.RWMutex
}

// NewSignalSummary 创建信号汇总器，limit为每个方向保留的最大数量
func NewSignalSummary(limit int) *SignalSummary {
	if limit <= 0 {
		limit = 10
	}
	return &SignalSummary{
		byDirection: make(map[types.Direction][]types.BreakoutSignal),
		limit:       limit,
	}
}

// Record 记录一条信号
func (ss *SignalSummary) Record(signal types.BreakoutSignal) {
	ss.mutex.Lock()
	defer ss.mutex.Unlock()

	list := append(ss.byDirection[signal.Direction], signal)

	// 按时间降序，最新的在前
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Time.After(list[j].Time)
	})

	if len(list) > ss.limit {
		list = list[:ss.limit]
	}
	ss.byDirection[signal.Direction] = list
}

// Recent 获取某方向最近的n条信号副本，按时间降序。
// n大于已有数量时返回全部，n≤0返回nil。
func (ss *SignalSummary) Recent(direction types.Direction, n int) []types.BreakoutSignal {
	if n <= 0 {
		return nil
	}

	ss.mutex.RLock()
	defer ss.mutex.RUnlock()

	list := ss.byDirection[direction]
	if len(list) == 0 {
		return nil
	}
	if n > len(list) {
		n = len(list)
	}

	result := make([]types.BreakoutSignal, n)
	copy(result, list[:n])
	return result
}
