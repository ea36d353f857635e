package types

import "time"

// Direction 突破方向
type Direction string

const (
	// DirectionResistance 向上突破阻力位
	DirectionResistance Direction = "RESISTANCE"
	// DirectionSupport 向下跌破支撑位
	DirectionSupport Direction = "SUPPORT"
)

// BreakoutSignal 突破信号
//
// Time等于触发K线的开盘时间，Price为触发K线的收盘价。
// Confirmed仅当开盘价和收盘价都严格越过未放大的通道水平时为true
// （跳空式突破确认，区别于仅收盘价越过的边缘突破）。
type BreakoutSignal struct {
	Symbol    string    `json:"symbol"`
	Time      time.Time `json:"time"`
	Direction Direction `json:"direction"`
	Price     float64   `json:"price"`
	Level     float64   `json:"level"` // 被突破的阻力/支撑水平（未放大）
	Confirmed bool      `json:"confirmed"`
}

// BreakoutAlert 突破预警（信号 + 通知上下文）
type BreakoutAlert struct {
	Signal     BreakoutSignal `json:"signal"`
	ATRValue   float64        `json:"atr_value"`   // 预警时的ATR值，0表示数据不足
	ATRPercent float64        `json:"atr_percent"` // ATR相对价格的百分比
	AlertTime  time.Time      `json:"alert_time"`
}
