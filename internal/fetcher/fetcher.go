package fetcher

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	okxcommon "github.com/nntaoli-project/goex/v2/okx/common"
	"go.uber.org/zap"

	"breakout-sentry/internal/storage"
	"breakout-sentry/pkg/types"
)

// DataFetcher K线数据获取器：定时轮询OKX行情API，填充状态管理器
type DataFetcher struct {
	storage    *storage.StateManager
	symbols    []string
	bar        string
	limit      int
	interval   time.Duration
	okxClient  *okxcommon.OKxV5
	httpClient *http.Client // 自定义HTTP客户端，支持代理
}

// NewDataFetcher 创建数据获取器
func NewDataFetcher(stateManager *storage.StateManager, alertConfig types.AlertConfig, fetchConfig types.FetchConfig, networkConfig types.NetworkConfig) *DataFetcher {
	// 使用goex v2 OKX客户端
	client := okxcommon.New()

	timeout := networkConfig.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: false,
			},
		},
	}

	// 如果配置了代理，则使用代理
	if networkConfig.Proxy != "" {
		proxyURL, err := url.Parse(networkConfig.Proxy)
		if err == nil {
			httpClient.Transport.(*http.Transport).Proxy = http.ProxyURL(proxyURL)
			zap.L().Info("✅ 已配置HTTP代理", zap.String("proxy", networkConfig.Proxy))
		} else {
			zap.L().Warn("⚠️ 代理地址格式错误", zap.Error(err))
		}
	}

	fetchInterval := fetchConfig.Interval
	if fetchInterval == 0 {
		fetchInterval = time.Minute
	}

	limit := fetchConfig.Limit
	if limit <= 0 {
		limit = 100
	}

	zap.L().Info("✅ 初始化goex v2 OKX客户端",
		zap.Duration("timeout", timeout),
		zap.Strings("symbols", alertConfig.Symbols),
		zap.String("bar", alertConfig.Interval))

	return &DataFetcher{
		storage:    stateManager,
		symbols:    alertConfig.Symbols,
		bar:        alertConfig.Interval,
		limit:      limit,
		interval:   fetchInterval,
		okxClient:  client,
		httpClient: httpClient,
	}
}

// Start 启动轮询，阻塞直到ctx取消
func (f *DataFetcher) Start(ctx context.Context) {
	zap.L().Info("🚀 数据获取器启动，开始轮询OKX V5 K线数据...")

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	// 立即执行一次
	f.fetchAndStore()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("📴 数据获取器已停止")
			return
		case <-ticker.C:
			f.fetchAndStore()
		}
	}
}

// fetchAndStore 拉取所有监控交易对的K线并入库
func (f *DataFetcher) fetchAndStore() {
	start := time.Now()
	stored := 0

	for i, symbol := range f.symbols {
		// OKX行情接口限速，请求之间稍作间隔
		if i > 0 {
			time.Sleep(150 * time.Millisecond)
		}

		candles, err := f.getCandles(symbol)
		if err != nil {
			zap.L().Error("❌ 获取K线数据失败",
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}

		for _, candle := range candles {
			f.storage.Store(candle)
		}
		stored += len(candles)
	}

	zap.L().Info("✅ K线轮询完成",
		zap.Int("symbols", len(f.symbols)),
		zap.Int("candles", stored),
		zap.Duration("elapsed", time.Since(start)))
}

// okxCandleResponse OKX K线接口响应
type okxCandleResponse struct {
	Code string     `json:"code"`
	Msg  string     `json:"msg"`
	Data [][]string `json:"data"`
}

// getCandles 拉取单个交易对的最近K线，带重试
func (f *DataFetcher) getCandles(symbol string) ([]types.Candle, error) {
	// 重试机制：最多重试3次
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			zap.L().Info("🔄 重试获取数据",
				zap.String("symbol", symbol),
				zap.Int("attempt", attempt))
			time.Sleep(time.Duration(attempt) * time.Second)
		}

		// 直接使用自定义HTTP客户端发送请求，绕过goex库对代理的限制
		apiURL := fmt.Sprintf("https://www.okx.com/api/v5/market/candles?instId=%s&bar=%s&limit=%d",
			symbol, f.bar, f.limit)

		resp, err := f.httpClient.Get(apiURL)
		if err != nil {
			lastErr = fmt.Errorf("HTTP请求失败(第%d次尝试): %v", attempt, err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("读取响应失败(第%d次尝试): %v", attempt, err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("HTTP状态码错误(第%d次尝试): %d", attempt, resp.StatusCode)
			continue
		}

		var apiResp okxCandleResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			lastErr = fmt.Errorf("解析API响应失败(第%d次尝试): %v", attempt, err)
			continue
		}

		if apiResp.Code != "0" {
			lastErr = fmt.Errorf("API返回错误(第%d次尝试): %s - %s", attempt, apiResp.Code, apiResp.Msg)
			continue
		}

		candles := make([]types.Candle, 0, len(apiResp.Data))
		for _, row := range apiResp.Data {
			candle, err := ParseOKXCandleRow(symbol, row, f.bar)
			if err != nil {
				zap.L().Warn("解析K线数据失败", zap.Error(err))
				continue
			}
			candles = append(candles, candle)
		}

		// OKX返回的数据是从新到旧排序，需要反转为从旧到新
		reverseCandles(candles)

		return candles, nil
	}

	return nil, lastErr
}

// ParseOKXCandleRow 解析OKX行情K线行
// 格式: [ts, open, high, low, close, vol, volCcy, volCcyQuote, confirm]
func ParseOKXCandleRow(symbol string, row []string, bar string) (types.Candle, error) {
	if len(row) < 6 {
		return types.Candle{}, fmt.Errorf("K线数据格式不正确: %d列", len(row))
	}

	ts, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("解析时间戳失败: %v", err)
	}

	open, err := strconv.ParseFloat(row[1], 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("解析开盘价失败: %v", err)
	}

	high, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("解析最高价失败: %v", err)
	}

	low, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("解析最低价失败: %v", err)
	}

	close, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("解析收盘价失败: %v", err)
	}

	volume, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return types.Candle{}, fmt.Errorf("解析成交量失败: %v", err)
	}

	// 最后一列为收盘标记，"1"表示K线已完结
	confirmed := true
	if len(row) >= 9 {
		confirmed = row[8] == "1"
	}

	openTime := time.Unix(ts/1000, (ts%1000)*1000000)
	duration := BarDuration(bar)

	return types.Candle{
		Symbol:    symbol,
		OpenTime:  openTime,
		CloseTime: openTime.Add(duration),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
		Interval:  bar,
		Confirmed: confirmed,
	}, nil
}

// BarDuration 获取K线周期对应的Duration
func BarDuration(bar string) time.Duration {
	switch bar {
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
		return 5 * time.Minute // 默认5分钟
	}
}

// reverseCandles 反转K线数组（从新到旧 → 从旧到新）
func reverseCandles(candles []types.Candle) {
	for i, j := 0, len(candles)-1; i < j; i, j = i+1, j-1 {
		candles[i], candles[j] = candles[j], candles[i]
	}
}
