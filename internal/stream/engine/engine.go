package engine

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"breakout-sentry/internal/analyzer"
	"breakout-sentry/internal/detector"
	"breakout-sentry/internal/notifier"
	"breakout-sentry/internal/stream/database"
	"breakout-sentry/internal/stream/fetcher"
	"breakout-sentry/internal/stream/websocket"
	"breakout-sentry/pkg/types"
)

// shard 一个工作协程的输入通道和它负责的交易对检测器。
// 同一交易对的K线始终路由到同一分片，保证检测器按时间顺序收到数据。
type shard struct {
	ch        chan *types.Candle
	detectors map[string]*detector.RollingDetector
}

// BreakoutEngine 流式突破检测引擎
type BreakoutEngine struct {
	config         types.StreamConfig
	wsClient       *websocket.Client
	historyFetcher *fetcher.HistoryFetcher
	dbManager      *database.Manager
	notifier       notifier.Interface
	summary        *analyzer.SignalSummary

	shards []*shard

	// 处理通道
	signalChan chan types.BreakoutSignal

	// 待持久化的K线
	pendingCandles []*types.Candle
	pendingMutex   sync.Mutex

	// 控制
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// 统计
	processedCandles int64
	detectedSignals  int64
	statsMutex       sync.RWMutex
}

// NewBreakoutEngine 创建流式突破检测引擎
func NewBreakoutEngine(config types.StreamConfig, wsConfig types.WebSocketConfig, dbConfig types.MySQLConfig, notifyService notifier.Interface, proxy string) (*BreakoutEngine, error) {
	ctx, cancel := context.WithCancel(context.Background())

	// 创建WebSocket客户端
	wsClient := websocket.NewClient(wsConfig.OKXEndpoint, proxy, wsConfig)

	// 需要持久化时创建数据库管理器
	var dbManager *database.Manager
	if config.Persist {
		var err error
		dbManager, err = database.NewManager(dbConfig)
		if err != nil {
			cancel()
			return nil, err
		}
	}

	// 创建历史数据获取器
	historyFetcher := fetcher.NewHistoryFetcher(proxy, 30*time.Second)

	workers := config.Workers
	if workers <= 0 {
		workers = 4
	}
	shards := make([]*shard, workers)
	for i := range shards {
		shards[i] = &shard{
			ch:        make(chan *types.Candle, 2000),
			detectors: make(map[string]*detector.RollingDetector),
		}
	}

	engine := &BreakoutEngine{
		config:         config,
		wsClient:       wsClient,
		historyFetcher: historyFetcher,
		dbManager:      dbManager,
		notifier:       notifyService,
		summary:        analyzer.NewSignalSummary(config.RecentLimit),
		shards:         shards,
		signalChan:     make(chan types.BreakoutSignal, 1000),
		ctx:            ctx,
		cancel:         cancel,
	}

	return engine, nil
}

// Start 启动引擎
func (be *BreakoutEngine) Start() error {
	if !be.config.Enabled {
		zap.L().Info("🚫 流式突破检测未启用")
		return nil
	}

	zap.L().Info("🚀 启动流式突破检测引擎",
		zap.Strings("symbols", be.config.Symbols),
		zap.String("interval", be.config.Interval),
		zap.Int("window", be.config.Window),
		zap.Int("workers", len(be.shards)))

	// 1. 用历史K线预热检测窗口
	if err := be.initializeHistoryData(); err != nil {
		return fmt.Errorf("初始化历史数据失败: %v", err)
	}

	// 2. 连接WebSocket
	if err := be.wsClient.Connect(); err != nil {
		return err
	}

	// 3. 订阅K线数据
	if err := be.wsClient.Subscribe(be.config.Symbols, be.config.Interval); err != nil {
		return err
	}

	// 4. 启动各个处理协程
	be.startWorkers()

	zap.L().Info("✅ 流式突破检测引擎启动成功")

	return nil
}

// startWorkers 启动工作协程
func (be *BreakoutEngine) startWorkers() {
	// 启动WebSocket数据读取
	be.wsClient.StartReading()

	// 启动K线数据收集器
	be.wg.Add(1)
	go be.candleCollector()

	// 启动K线处理器，每个分片一个worker
	for i, s := range be.shards {
		be.wg.Add(1)
		go be.candleProcessor(i, s)
	}

	// 启动信号处理器
	be.wg.Add(1)
	go be.signalProcessor()

	// 启动数据库持久化器
	if be.dbManager != nil {
		be.wg.Add(1)
		go be.databasePersister()
	}
}

// shardFor 计算交易对所属的分片
func (be *BreakoutEngine) shardFor(symbol string) *shard {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return be.shards[h.Sum32()%uint32(len(be.shards))]
}

// candleCollector 从WebSocket读取K线，按交易对分发到对应分片
func (be *BreakoutEngine) candleCollector() {
	defer be.wg.Done()

	candleSource := be.wsClient.GetCandleChannel()

	for {
		select {
		case <-be.ctx.Done():
			return
		case candle := <-candleSource:
			if candle == nil {
				continue
			}

			s := be.shardFor(candle.Symbol)
			select {
			case s.ch <- candle:
			default:
				zap.L().Warn("K线处理通道满，丢弃数据",
					zap.String("symbol", candle.Symbol))
			}

			if be.dbManager != nil {
				be.pendingMutex.Lock()
				be.pendingCandles = append(be.pendingCandles, candle)
				be.pendingMutex.Unlock()
			}
		}
	}
}

// candleProcessor 分片工作协程，按顺序喂给对应交易对的滚动检测器
func (be *BreakoutEngine) candleProcessor(workerID int, s *shard) {
	defer be.wg.Done()

	zap.L().Debug("启动K线处理器", zap.Int("worker_id", workerID))

	for {
		select {
		case <-be.ctx.Done():
			return
		case candle := <-s.ch:
			if candle == nil {
				continue
			}

			be.processCandle(s, candle, workerID)
		}
	}
}

// processCandle 处理单根K线
func (be *BreakoutEngine) processCandle(s *shard, candle *types.Candle, workerID int) {
	rd := s.detectors[candle.Symbol]
	if rd == nil {
		var err error
		rd, err = detector.NewRollingDetector(be.windowSize())
		if err != nil {
			zap.L().Error("创建滚动检测器失败", zap.Error(err))
			return
		}
		s.detectors[candle.Symbol] = rd
	}

	signals := rd.Push(*candle)
	for _, signal := range signals {
		select {
		case be.signalChan <- signal:
			be.incrementSignalCount()
			zap.L().Info("🎯 发现突破信号",
				zap.String("symbol", signal.Symbol),
				zap.String("direction", string(signal.Direction)),
				zap.Float64("price", signal.Price),
				zap.Float64("level", signal.Level),
				zap.Bool("confirmed", signal.Confirmed),
				zap.Int("worker_id", workerID))
		default:
			zap.L().Warn("信号处理通道满", zap.String("symbol", signal.Symbol))
		}
	}

	be.incrementCandleCount()
}

// signalProcessor 信号处理器
func (be *BreakoutEngine) signalProcessor() {
	defer be.wg.Done()

	zap.L().Debug("启动信号处理器")

	for {
		select {
		case <-be.ctx.Done():
			return
		case signal := <-be.signalChan:
			be.processSignal(signal)
		}
	}
}

// processSignal 处理突破信号：记入汇总并推送通知
func (be *BreakoutEngine) processSignal(signal types.BreakoutSignal) {
	be.summary.Record(signal)

	alert := &types.BreakoutAlert{
		Signal:    signal,
		AlertTime: time.Now(),
	}

	if err := be.notifier.SendAlert(alert); err != nil {
		zap.L().Error("发送突破通知失败",
			zap.Error(err),
			zap.String("symbol", signal.Symbol))
	}
}

// databasePersister 数据库持久化器
func (be *BreakoutEngine) databasePersister() {
	defer be.wg.Done()

	ticker := time.NewTicker(30 * time.Second) // 每30秒持久化一次K线数据
	defer ticker.Stop()

	for {
		select {
		case <-be.ctx.Done():
			be.flushPendingCandles()
			return
		case <-ticker.C:
			be.flushPendingCandles()
		}
	}
}

// flushPendingCandles 批量写入累积的K线
func (be *BreakoutEngine) flushPendingCandles() {
	be.pendingMutex.Lock()
	candles := be.pendingCandles
	be.pendingCandles = nil
	be.pendingMutex.Unlock()

	if len(candles) == 0 {
		return
	}

	if err := be.dbManager.BatchSaveCandles(candles); err != nil {
		zap.L().Error("持久化K线数据失败",
			zap.Error(err),
			zap.Int("count", len(candles)))
	}
}

// initializeHistoryData 用历史K线预热各交易对的检测窗口。
// 预热阶段产生的信号属于历史行情，直接丢弃，只告警启动之后的新突破。
func (be *BreakoutEngine) initializeHistoryData() error {
	zap.L().Info("📚 开始初始化历史K线数据",
		zap.Strings("symbols", be.config.Symbols))

	// 额外10根作为缓冲
	historyLimit := be.windowSize() + 10

	historyData, err := be.historyFetcher.FetchMultipleSymbolsHistory(
		be.config.Symbols,
		be.config.Interval,
		historyLimit,
	)
	if err != nil {
		return fmt.Errorf("获取历史数据失败: %v", err)
	}

	totalCandles := 0
	for symbol, candles := range historyData {
		if len(candles) == 0 {
			zap.L().Warn("⚠️ 历史数据为空", zap.String("symbol", symbol))
			continue
		}

		rd, err := detector.NewRollingDetector(be.windowSize())
		if err != nil {
			return err
		}
		for _, candle := range candles {
			rd.Push(*candle) // 丢弃预热信号
		}
		be.shardFor(symbol).detectors[symbol] = rd
		totalCandles += len(candles)

		// 历史K线同样归档
		if be.dbManager != nil {
			if err := be.dbManager.BatchSaveCandles(candles); err != nil {
				zap.L().Error("批量保存历史K线失败",
					zap.String("symbol", symbol),
					zap.Error(err))
			}
		}

		zap.L().Info("✅ 历史数据初始化完成",
			zap.String("symbol", symbol),
			zap.Int("candles_count", len(candles)),
			zap.Time("oldest", candles[0].OpenTime),
			zap.Time("newest", candles[len(candles)-1].OpenTime))
	}

	zap.L().Info("🎉 所有历史K线数据初始化完成",
		zap.Int("symbols_count", len(historyData)),
		zap.Int("total_candles", totalCandles))

	return nil
}

// windowSize 检测窗口大小
func (be *BreakoutEngine) windowSize() int {
	if be.config.Window > 0 {
		return be.config.Window
	}
	return detector.DefaultWindow
}

// RecentSignals 获取某方向最近的n条信号
func (be *BreakoutEngine) RecentSignals(direction types.Direction, n int) []types.BreakoutSignal {
	return be.summary.Recent(direction, n)
}

// incrementCandleCount 增加K线计数
func (be *BreakoutEngine) incrementCandleCount() {
	be.statsMutex.Lock()
	be.processedCandles++
	be.statsMutex.Unlock()
}

// incrementSignalCount 增加信号计数
func (be *BreakoutEngine) incrementSignalCount() {
	be.statsMutex.Lock()
	be.detectedSignals++
	be.statsMutex.Unlock()
}

// GetStats 获取统计信息
func (be *BreakoutEngine) GetStats() map[string]interface{} {
	be.statsMutex.RLock()
	defer be.statsMutex.RUnlock()

	return map[string]interface{}{
		"processed_candles": be.processedCandles,
		"detected_signals":  be.detectedSignals,
		"ws_connected":      be.wsClient.IsConnected(),
		"enabled":           be.config.Enabled,
		"symbols":           be.config.Symbols,
		"interval":          be.config.Interval,
		"window":            be.windowSize(),
	}
}

// GetDatabaseManager 获取数据库管理器，未开启持久化时为nil
func (be *BreakoutEngine) GetDatabaseManager() *database.Manager {
	return be.dbManager
}

// Stop 停止引擎
func (be *BreakoutEngine) Stop() error {
	zap.L().Info("🛑 停止流式突破检测引擎")

	// 取消上下文
	be.cancel()

	// 关闭WebSocket连接
	if err := be.wsClient.Close(); err != nil {
		zap.L().Error("关闭WebSocket连接失败", zap.Error(err))
	}

	// 等待所有协程结束
	done := make(chan struct{})
	go func() {
		be.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ 所有工作协程已停止")
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 停止超时，强制退出")
	}

	// 关闭数据库连接
	if be.dbManager != nil {
		if err := be.dbManager.Close(); err != nil {
			zap.L().Error("关闭数据库连接失败", zap.Error(err))
		}
	}

	zap.L().Info("✅ 流式突破检测引擎已停止")

	return nil
}
