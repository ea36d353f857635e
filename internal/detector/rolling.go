package detector

import (
	"breakout-sentry/pkg/types"
)

// extremeEntry 单调队列条目，idx为K线在整个序列中的序号
type extremeEntry struct {
	idx   int
	value float64
}

// RollingDetector 流式突破检测器。
//
// 逐根推入K线，用单调队列维护滑动窗口内的最高价/最低价，
// 整体O(n)。比较语义与Detect完全一致（严格大于/小于、
// 1.002/0.998系数作用于未放大的极值），对相同的K线序列，
// 逐根Push产生的信号与一次性Detect的结果完全相同。
//
// 非并发安全：同一实例必须由单个goroutine按时间顺序喂入K线。
type RollingDetector struct {
	window int
	count  int // 已推入的K线数

	maxDQ []extremeEntry // 按high单调递减
	minDQ []extremeEntry // 按low单调递增
}

// NewRollingDetector 创建流式检测器，window必须为正整数
func NewRollingDetector(window int) (*RollingDetector, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	return &RollingDetector{
		window: window,
		maxDQ:  make([]extremeEntry, 0, window),
		minDQ:  make([]extremeEntry, 0, window),
	}, nil
}

// Push 推入下一根K线，返回该K线触发的突破信号（0~2条，阻力信号在前）。
// 前window根K线只用于建立基线，不会产生信号。
func (rd *RollingDetector) Push(current types.Candle) []types.BreakoutSignal {
	i := rd.count
	rd.count++

	var signals []types.BreakoutSignal

	if i >= rd.window {
		// 基线窗口为 [i-window, i-1]，先剔除超龄的队首条目
		minIdx := i - rd.window
		for len(rd.maxDQ) > 0 && rd.maxDQ[0].idx < minIdx {
			rd.maxDQ = rd.maxDQ[1:]
		}
		for len(rd.minDQ) > 0 && rd.minDQ[0].idx < minIdx {
			rd.minDQ = rd.minDQ[1:]
		}

		resistance := rd.maxDQ[0].value
		support := rd.minDQ[0].value

		if current.Close > resistance*resistanceFactor {
			signals = append(signals, types.BreakoutSignal{
				Symbol:    current.Symbol,
				Time:      current.OpenTime,
				Direction: types.DirectionResistance,
				Price:     current.Close,
				Level:     resistance,
				Confirmed: current.Close > resistance && current.Open > resistance,
			})
		}
		if current.Close < support*supportFactor {
			signals = append(signals, types.BreakoutSignal{
				Symbol:    current.Symbol,
				Time:      current.OpenTime,
				Direction: types.DirectionSupport,
				Price:     current.Close,
				Level:     support,
				Confirmed: current.Close < support && current.Open < support,
			})
		}
	}

	// 当前K线进入单调队列，作为后续K线的基线成员
	for len(rd.maxDQ) > 0 && rd.maxDQ[len(rd.maxDQ)-1].value <= current.High {
		rd.maxDQ = rd.maxDQ[:len(rd.maxDQ)-1]
	}
	rd.maxDQ = append(rd.maxDQ, extremeEntry{idx: i, value: current.High})

	for len(rd.minDQ) > 0 && rd.minDQ[len(rd.minDQ)-1].value >= current.Low {
		rd.minDQ = rd.minDQ[:len(rd.minDQ)-1]
	}
	rd.minDQ = append(rd.minDQ, extremeEntry{idx: i, value: current.Low})

	return signals
}

// Count 已推入的K线数量
func (rd *RollingDetector) Count() int {
	return rd.count
}

// Ready 是否已积累足够的基线历史
func (rd *RollingDetector) Ready() bool {
	return rd.count >= rd.window
}
