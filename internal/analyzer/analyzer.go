package analyzer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"breakout-sentry/internal/detector"
	"breakout-sentry/internal/indicators"
	"breakout-sentry/internal/notifier"
	"breakout-sentry/internal/storage"
	"breakout-sentry/pkg/types"
)

// atrLength ATR上下文的计算长度
const atrLength = 14

// AnalysisEngine 突破分析引擎。
//
// 定时扫描各交易对的K线序列，调用检测器找出突破信号，
// 过滤掉已经告警过的K线（按交易对维护高水位时间），
// 附加ATR波动率上下文后交给通知器。
type AnalysisEngine struct {
	stateManager *storage.StateManager
	notifier     notifier.Interface
	window       int
	atrCalc      *indicators.ATRCalculator
	summary      *SignalSummary

	lastAlerted map[string]time.Time // 每个交易对最近已告警的K线时间
	mutex       sync.RWMutex
}

// NewAnalysisEngine 创建分析引擎。window≤0时回退到检测器默认窗口。
func NewAnalysisEngine(stateManager *storage.StateManager, notifyService notifier.Interface, window, recentLimit int) *AnalysisEngine {
	if window <= 0 {
		window = detector.DefaultWindow
	}
	return &AnalysisEngine{
		stateManager: stateManager,
		notifier:     notifyService,
		window:       window,
		atrCalc:      indicators.NewATRCalculator(atrLength),
		summary:      NewSignalSummary(recentLimit),
		lastAlerted:  make(map[string]time.Time),
	}
}

// AnalyzeAll 分析所有交易对，触发的预警批量发送
func (ae *AnalysisEngine) AnalyzeAll() {
	symbols := ae.stateManager.GetAllSymbols()
	if len(symbols) == 0 {
		return
	}

	zap.L().Info("🔍 开始突破分析", zap.Int("symbols", len(symbols)))

	// 并发分析各个交易对，收集预警
	var wg sync.WaitGroup
	var alertMutex sync.Mutex
	alerts := make([]*types.BreakoutAlert, 0)

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			for _, alert := range ae.AnalyzeSymbol(sym) {
				alertMutex.Lock()
				alerts = append(alerts, alert)
				alertMutex.Unlock()
			}
		}(symbol)
	}
	wg.Wait()

	// 批量发送预警
	if len(alerts) > 0 {
		ae.sendBatchAlerts(alerts)
		zap.L().Info("✅ 分析完成", zap.Int("alerts", len(alerts)))
	} else {
		zap.L().Info("✅ 分析完成，暂无突破信号")
	}
}

// AnalyzeSymbol 分析单个交易对，返回尚未告警过的突破预警
func (ae *AnalysisEngine) AnalyzeSymbol(symbol string) []*types.BreakoutAlert {
	candles := ae.stateManager.SnapshotCandles(symbol)

	signals, err := detector.Detect(candles, ae.window)
	if err != nil {
		zap.L().Error("❌ 突破检测失败", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	if len(signals) == 0 {
		return nil
	}

	// ATR上下文对本轮所有信号共用（基于同一份快照）
	atrValue := ae.atrCalc.Calculate(candles)
	var atrPercent float64
	if len(candles) > 0 {
		atrPercent = ae.atrCalc.Normalized(atrValue, candles[len(candles)-1].Close)
	}

	watermark := ae.getWatermark(symbol)
	var alerts []*types.BreakoutAlert

	for _, signal := range signals {
		// 只告警高水位之后的新K线，避免同一突破反复推送
		if !signal.Time.After(watermark) {
			continue
		}

		ae.summary.Record(signal)
		alerts = append(alerts, &types.BreakoutAlert{
			Signal:     signal,
			ATRValue:   atrValue,
			ATRPercent: atrPercent,
			AlertTime:  time.Now(),
		})

		if signal.Time.After(watermark) {
			watermark = signal.Time
		}
	}

	if len(alerts) > 0 {
		ae.setWatermark(symbol, watermark)
	}

	return alerts
}

// RecentSignals 获取某方向最近的n条信号，按时间降序
func (ae *AnalysisEngine) RecentSignals(direction types.Direction, n int) []types.BreakoutSignal {
	return ae.summary.Recent(direction, n)
}

// sendBatchAlerts 批量发送预警，批量失败时降级为单个发送
func (ae *AnalysisEngine) sendBatchAlerts(alerts []*types.BreakoutAlert) {
	if len(alerts) == 0 {
		return
	}

	if len(alerts) == 1 {
		if err := ae.notifier.SendAlert(alerts[0]); err != nil {
			zap.L().Error("❌ 发送预警失败",
				zap.String("symbol", alerts[0].Signal.Symbol),
				zap.Error(err))
		}
		return
	}

	if err := ae.notifier.SendBatchAlerts(alerts); err != nil {
		zap.L().Error("❌ 批量发送预警失败", zap.Error(err))
		// 降级为单个发送
		for _, alert := range alerts {
			if singleErr := ae.notifier.SendAlert(alert); singleErr != nil {
				zap.L().Error("❌ 单个预警发送失败",
					zap.String("symbol", alert.Signal.Symbol),
					zap.Error(singleErr))
			}
		}
	}
}

func (ae *AnalysisEngine) getWatermark(symbol string) time.Time {
	ae.mutex.RLock()
	defer ae.mutex.RUnlock()
	return ae.lastAlerted[symbol]
}

func (ae *AnalysisEngine) setWatermark(symbol string, t time.Time) {
	ae.mutex.Lock()
	defer ae.mutex.Unlock()
	if t.After(ae.lastAlerted[symbol]) {
		ae.lastAlerted[symbol] = t
	}
}
