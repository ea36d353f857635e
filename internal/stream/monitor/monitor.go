package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"breakout-sentry/internal/stream/engine"
	"breakout-sentry/pkg/types"
)

// Monitor 流式引擎运行监控器
type Monitor struct {
	engine *engine.BreakoutEngine
	config types.StreamConfig

	ctx    context.Context
	cancel context.CancelFunc

	metrics *Metrics
}

// Metrics 运行指标
type Metrics struct {
	StartTime        time.Time `json:"start_time"`
	ProcessedCandles int64     `json:"processed_candles"`
	DetectedSignals  int64     `json:"detected_signals"`
	SignalFrequency  float64   `json:"signal_frequency"` // 信号/小时
	WSConnected      bool      `json:"ws_connected"`
	LastUpdateTime   time.Time `json:"last_update_time"`
}

// NewMonitor 创建监控器
func NewMonitor(breakoutEngine *engine.BreakoutEngine, config types.StreamConfig) *Monitor {
	ctx, cancel := context.WithCancel(context.Background())

	return &Monitor{
		engine: breakoutEngine,
		config: config,
		ctx:    ctx,
		cancel: cancel,
		metrics: &Metrics{
			StartTime: time.Now(),
		},
	}
}

// Start 启动监控
func (m *Monitor) Start() {
	if !m.config.Enabled {
		return
	}

	zap.L().Info("📊 启动引擎运行监控器")

	go m.reportLoop()
}

// reportLoop 报告循环
func (m *Monitor) reportLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.updateMetrics()
			m.generateReport()
		}
	}
}

// updateMetrics 从引擎统计刷新指标
func (m *Monitor) updateMetrics() {
	engineStats := m.engine.GetStats()

	if processed, ok := engineStats["processed_candles"].(int64); ok {
		m.metrics.ProcessedCandles = processed
	}
	if detected, ok := engineStats["detected_signals"].(int64); ok {
		m.metrics.DetectedSignals = detected
	}
	if connected, ok := engineStats["ws_connected"].(bool); ok {
		m.metrics.WSConnected = connected
	}

	// 计算信号频率（信号/小时）
	runTime := time.Since(m.metrics.StartTime).Hours()
	if runTime > 0 {
		m.metrics.SignalFrequency = float64(m.metrics.DetectedSignals) / runTime
	}

	m.metrics.LastUpdateTime = time.Now()
}

// generateReport 输出运行报告
func (m *Monitor) generateReport() {
	runTime := time.Since(m.metrics.StartTime)

	zap.L().Info("📈 流式引擎运行报告",
		zap.Duration("run_time", runTime),
		zap.Int64("processed_candles", m.metrics.ProcessedCandles),
		zap.Int64("detected_signals", m.metrics.DetectedSignals),
		zap.Float64("signal_frequency", m.metrics.SignalFrequency),
		zap.Bool("ws_connected", m.metrics.WSConnected))

	// 输出各方向最近的信号
	for _, direction := range []types.Direction{types.DirectionResistance, types.DirectionSupport} {
		for _, signal := range m.engine.RecentSignals(direction, 3) {
			zap.L().Info("📊 最近突破信号",
				zap.String("symbol", signal.Symbol),
				zap.String("direction", string(signal.Direction)),
				zap.Float64("price", signal.Price),
				zap.Float64("level", signal.Level),
				zap.Bool("confirmed", signal.Confirmed),
				zap.Time("time", signal.Time))
		}
	}
}

// GetMetrics 获取当前运行指标
func (m *Monitor) GetMetrics() *Metrics {
	m.updateMetrics()
	return m.metrics
}

// GetMetricsJSON 获取JSON格式的运行指标
func (m *Monitor) GetMetricsJSON() (string, error) {
	metrics := m.GetMetrics()
	data, err := json.MarshalIndent(metrics, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PrintFormattedReport 打印格式化报告
func (m *Monitor) PrintFormattedReport() {
	metrics := m.GetMetrics()
	runTime := time.Since(metrics.StartTime)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("📈 流式突破检测运行报告")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("🕐 运行时间: %s\n", runTime.Truncate(time.Second))
	fmt.Printf("📊 处理K线: %d\n", metrics.ProcessedCandles)
	fmt.Printf("🎯 突破信号: %d\n", metrics.DetectedSignals)
	fmt.Printf("🔄 信号频率: %.2f信号/小时\n", metrics.SignalFrequency)
	fmt.Printf("🔌 WebSocket: %v\n", metrics.WSConnected)
	fmt.Println(strings.Repeat("-", 80))

	for _, direction := range []types.Direction{types.DirectionResistance, types.DirectionSupport} {
		for _, signal := range m.engine.RecentSignals(direction, 3) {
			fmt.Printf("💹 %s %s: $%.6f (水平 $%.6f) %s\n",
				signal.Symbol,
				signal.Direction,
				signal.Price,
				signal.Level,
				signal.Time.Format("01-02 15:04"))
		}
	}

	fmt.Println(strings.Repeat("=", 80) + "\n")
}

// Stop 停止监控
func (m *Monitor) Stop() {
	zap.L().Info("🛑 停止引擎运行监控器")
	m.cancel()
}
