package detector

import (
	"errors"

	"breakout-sentry/pkg/types"
)

// DefaultWindow 默认回看窗口长度
const DefaultWindow = 20

// 突破触发阈值：收盘价需越过通道水平外加0.2%的余量才触发信号。
// 确认判定使用未放大的原始水平，与触发阈值是两个独立的谓词。
const (
	resistanceFactor = 1.002
	supportFactor    = 0.998
)

// ErrInvalidWindow 窗口长度非法（必须为正整数）
var ErrInvalidWindow = errors.New("detector: window must be a positive integer")

// Detect 扫描时间升序的K线序列，检测阻力位突破与支撑位跌破。
//
// 对每个索引i（从window到末尾），以前window根K线（不含当前K线）的
// 最高价作为阻力位、最低价作为支撑位：
//   - 收盘价 > 阻力位×1.002 → 发出RESISTANCE信号
//   - 收盘价 < 支撑位×0.998 → 发出SUPPORT信号
//
// 两个检查相互独立，同一根K线最多可发出两条信号（阻力信号在前）。
// Confirmed要求开盘价和收盘价都严格越过未放大的水平。
//
// K线数量不足window时返回空结果（历史不足，不算错误）；
// window ≤ 0返回ErrInvalidWindow（快速失败，不做静默钳制）。
// 纯函数：不修改也不保留输入，可并发调用。
func Detect(candles []types.Candle, window int) ([]types.BreakoutSignal, error) {
	if window <= 0 {
		return nil, ErrInvalidWindow
	}
	if len(candles) < window {
		return nil, nil
	}

	var signals []types.BreakoutSignal

	for i := window; i < len(candles); i++ {
		// 基线窗口 [i-window, i-1]，不含当前K线
		resistance := candles[i-window].High
		support := candles[i-window].Low
		for j := i - window + 1; j < i; j++ {
			if candles[j].High > resistance {
				resistance = candles[j].High
			}
			if candles[j].Low < support {
				support = candles[j].Low
			}
		}

		current := candles[i]

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

	return signals, nil
}
