package fetcher

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"breakout-sentry/pkg/types"
)

// HistoryFetcher 历史K线数据获取器，用于流式引擎启动时预热检测窗口
type HistoryFetcher struct {
	baseURL    string
	proxy      string
	timeout    time.Duration
	httpClient *http.Client
}

// OKXHistoryResponse OKX历史K线API响应
type OKXHistoryResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// NewHistoryFetcher 创建历史K线获取器
func NewHistoryFetcher(proxy string, timeout time.Duration) *HistoryFetcher {
	client := &http.Client{
		Timeout: timeout,
	}

	// 设置代理
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil {
			client.Transport = &http.Transport{
				Proxy: http.ProxyURL(proxyURL),
			}
		}
	}

	return &HistoryFetcher{
		baseURL:    "https://www.okx.com/api/v5/market",
		proxy:      proxy,
		timeout:    timeout,
		httpClient: client,
	}
}

// FetchHistoryCandles 获取历史K线数据，按时间从旧到新返回
func (h *HistoryFetcher) FetchHistoryCandles(symbol, interval string, limit int) ([]*types.Candle, error) {
	requestURL := fmt.Sprintf("%s/candles?instId=%s&bar=%s&limit=%d",
		h.baseURL, symbol, interval, limit)

	zap.L().Info("📊 获取历史K线数据",
		zap.String("symbol", symbol),
		zap.String("interval", interval),
		zap.Int("limit", limit))

	req, err := http.NewRequest("GET", requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %v", err)
	}

	req.Header.Set("User-Agent", "Breakout-Sentry/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP响应错误: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %v", err)
	}

	var okxResponse OKXHistoryResponse
	if err := json.Unmarshal(body, &okxResponse); err != nil {
		return nil, fmt.Errorf("解析JSON失败: %v", err)
	}

	if okxResponse.Code != "0" {
		return nil, fmt.Errorf("OKX API返回错误: code=%s, msg=%s", okxResponse.Code, okxResponse.Msg)
	}

	candles := make([]*types.Candle, 0, len(okxResponse.Data))
	for _, row := range okxResponse.Data {
		candle, err := h.parseCandleRow(symbol, row, interval)
		if err != nil {
			zap.L().Warn("解析历史K线数据失败", zap.Error(err))
			continue
		}

		// 预热窗口只要已收盘的K线
		if !candle.Confirmed {
			continue
		}

		candles = append(candles, candle)
	}

	zap.L().Info("✅ 历史K线数据获取完成",
		zap.String("symbol", symbol),
		zap.Int("requested", limit),
		zap.Int("received", len(candles)))

	// OKX返回的数据是从新到旧排序，需要反转为从旧到新
	h.reverseCandles(candles)

	return candles, nil
}

// parseCandleRow 解析OKX K线行
func (h *HistoryFetcher) parseCandleRow(symbol string, row []string, interval string) (*types.Candle, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("K线数据格式不正确")
	}

	timestamp, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("解析时间戳失败: %v", err)
	}

	open, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return nil, fmt.Errorf("解析开盘价失败: %v", err)
	}

	high, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return nil, fmt.Errorf("解析最高价失败: %v", err)
	}

	low, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return nil, fmt.Errorf("解析最低价失败: %v", err)
	}

	closePrice, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return nil, fmt.Errorf("解析收盘价失败: %v", err)
	}

	volume, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return nil, fmt.Errorf("解析成交量失败: %v", err)
	}

	confirmed := true
	if len(row) >= 9 {
		confirmed = row[8] == "1"
	}

	openTime := time.Unix(timestamp/1000, (timestamp%1000)*1000000)
	return &types.Candle{
		Symbol:    symbol,
		OpenTime:  openTime,
		CloseTime: openTime.Add(h.parseIntervalToDuration(interval)),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		Interval:  interval,
		Confirmed: confirmed,
	}, nil
}

// parseIntervalToDuration 解析时间间隔字符串为Duration
func (h *HistoryFetcher) parseIntervalToDuration(interval string) time.Duration {
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
	case "1H", "1h":
		return time.Hour
	case "2H", "2h":
		return 2 * time.Hour
	case "4H", "4h":
		return 4 * time.Hour
	case "6H", "6h":
		return 6 * time.Hour
	case "12H", "12h":
		return 12 * time.Hour
	case "1D", "1d":
		return 24 * time.Hour
	default:
		return 5 * time.Minute
	}
}

// reverseCandles 反转K线数组（从新到旧 → 从旧到新）
func (h *HistoryFetcher) reverseCandles(candles []*types.Candle) {
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
}

// FetchMultipleSymbolsHistory 批量获取多个交易对的历史数据
func (h *HistoryFetcher) FetchMultipleSymbolsHistory(symbols []string, interval string, limit int) (map[string][]*types.Candle, error) {
	result := make(map[string][]*types.Candle)

	for i, symbol := range symbols {
		// 限速：10次/2s，所以每个请求间隔200毫秒
		if i > 0 {
			time.Sleep(200 * time.Millisecond)
		}

		candles, err := h.FetchHistoryCandles(symbol, interval, limit)
		if err != nil {
			zap.L().Error("获取历史K线失败",
				zap.String("symbol", symbol),
				zap.Error(err))
			// 继续处理其他交易对，不中断整个过程
			continue
		}

		result[symbol] = candles

		zap.L().Debug("✅ 完成历史数据获取",
			zap.String("symbol", symbol),
			zap.Int("candles_count", len(candles)))
	}

	return result, nil
}
