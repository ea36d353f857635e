package websocket

import (
	"fmt"
	"strconv"
	"time"

	"breakout-sentry/pkg/types"
)

// parseTimestamp 解析时间戳（毫秒）
func parseTimestamp(ts string) (time.Time, error) {
	timestamp, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(timestamp/1000, (timestamp%1000)*1000000), nil
}

// parseFloat 解析浮点数
func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

// ParseCandleRow 解析OKX K线行。
// 格式: [timestamp, open, high, low, close, volume, volCcy, volCcyQuote, confirm]，
// confirm为"1"表示该K线已收盘；行内不足9列时按已收盘处理。
func ParseCandleRow(symbol string, row []string, interval string) (*types.Candle, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("K线数据格式不正确: 只有%d列", len(row))
	}

	openTime, err := parseTimestamp(row[0])
	if err != nil {
		return nil, fmt.Errorf("解析开盘时间失败: %v", err)
	}

	open, err := parseFloat(row[1])
	if err != nil {
		return nil, fmt.Errorf("解析开盘价失败: %v", err)
	}

	high, err := parseFloat(row[2])
	if err != nil {
		return nil, fmt.Errorf("解析最高价失败: %v", err)
	}

	low, err := parseFloat(row[3])
	if err != nil {
		return nil, fmt.Errorf("解析最低价失败: %v", err)
	}

	closePrice, err := parseFloat(row[4])
	if err != nil {
		return nil, fmt.Errorf("解析收盘价失败: %v", err)
	}

	volume, err := parseFloat(row[5])
	if err != nil {
		return nil, fmt.Errorf("解析成交量失败: %v", err)
	}

	confirmed := true
	if len(row) >= 9 {
		confirmed = row[8] == "1"
	}

	return &types.Candle{
		Symbol:    symbol,
		OpenTime:  openTime,
		CloseTime: openTime.Add(getIntervalDuration(interval)),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		Interval:  interval,
		Confirmed: confirmed,
	}, nil
}

// getIntervalDuration 获取时间间隔的Duration
func getIntervalDuration(interval string) time.Duration {
	switch interval {
	case "1m":
		return time.Minute
	case "3m":
		return 3 * time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1H":
		return time.Hour
	case "2H":
		return 2 * time.Hour
	case "4H":
		return 4 * time.Hour
	case "6H":
		return 6 * time.Hour
	case "12H":
		return 12 * time.Hour
	case "1D":
		return 24 * time.Hour
	default:
		return 15 * time.Minute // 默认15分钟
	}
}
