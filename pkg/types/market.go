package types

import "time"

// Candle K线数据结构（通用市场数据）
//
// 约定：OpenTime在同一序列内严格递增且唯一；Low ≤ Open, Close ≤ High。
// 检测器不会校验也不会修改K线数据，序列排序由数据源保证。
type Candle struct {
	Symbol    string    `json:"symbol"`
	OpenTime  time.Time `json:"open_time"`
	CloseTime time.Time `json:"close_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Interval  string    `json:"interval"` // 15m
	Confirmed bool      `json:"confirmed"` // K线是否已收盘
}
