package scheduler

import (
	"context"
	"fmt"
	"time"

	"breakout-sentry/internal/analyzer"
	"breakout-sentry/internal/fetcher"
	"breakout-sentry/internal/storage"
)

// Scheduler 调度器
type Scheduler struct {
	dataFetcher    *fetcher.DataFetcher
	analysisEngine *analyzer.AnalysisEngine
	stateManager   *storage.StateManager
	barPeriod      time.Duration // 分析周期，与K线周期对齐
}

func NewScheduler(dataFetcher *fetcher.DataFetcher, analysisEngine *analyzer.AnalysisEngine, stateManager *storage.StateManager, barPeriod time.Duration) *Scheduler {
	if barPeriod <= 0 {
		barPeriod = 5 * time.Minute
	}
	return &Scheduler{
		dataFetcher:    dataFetcher,
		analysisEngine: analysisEngine,
		stateManager:   stateManager,
		barPeriod:      barPeriod,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	fmt.Println("🚀 调度器启动中...")

	// 启动数据获取器
	go s.dataFetcher.Start(ctx)

	// 计算下一个K线对齐的时间点
	nextBarTime := calculateNextBarTime(time.Now(), s.barPeriod)
	waitDuration := time.Until(nextBarTime)

	fmt.Printf("⏳ 等待同步到下一个K线时间点 %s（等待 %v）...\n",
		nextBarTime.Format("15:04:05"), waitDuration)

	select {
	case <-ctx.Done():
		return
	case <-time.After(waitDuration):
		fmt.Printf("✅ 已同步到K线时间 %s，开始突破分析\n",
			time.Now().Format("15:04:05"))
	}

	// 对齐到K线时间循环分析
	s.startBarAlignedAnalysis(ctx)
}

func (s *Scheduler) runAnalysis() {
	fmt.Printf("\n--- 突破分析任务 [%s] ---\n", time.Now().Format("15:04:05"))

	// 显示存储状态
	stats := s.stateManager.GetRedisStats()
	fmt.Printf("📊 存储状态: 内存中%d个交易对", stats["memory_symbols"])
	if stats["redis_enabled"].(bool) {
		if redisKeys, ok := stats["redis_keys"]; ok {
			fmt.Printf(", Redis中%d个key", redisKeys)
		}
	} else {
		fmt.Printf(", Redis未启用")
	}
	fmt.Println()

	s.analysisEngine.AnalyzeAll()
	fmt.Println("--- 分析任务完成 ---")
}

// calculateNextBarTime 计算now之后下一个与K线周期对齐的时间点。
// 周期不足1分钟或超过1小时时退化为简单加周期。
func calculateNextBarTime(now time.Time, period time.Duration) time.Time {
	periodMinutes := int(period.Minutes())
	if periodMinutes < 1 || periodMinutes > 60 {
		return now.Add(period)
	}

	// 当前小时内的分钟数向上取整到下一个周期倍数
	currentMinute := now.Minute()
	nextAlignedMinute := ((currentMinute / periodMinutes) + 1) * periodMinutes

	// 超过60分钟则进入下一小时
	if nextAlignedMinute >= 60 {
		next := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, now.Location())
		return next.Add(time.Hour)
	}

	return time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), nextAlignedMinute, 0, 0, now.Location())
}

// startBarAlignedAnalysis 启动对齐到K线时间的分析循环
func (s *Scheduler) startBarAlignedAnalysis(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			fmt.Println("📴 调度器已停止")
			return
		default:
			s.runAnalysis()

			// 计算下一次分析时间（下一个K线时间点）
			nextAnalysisTime := calculateNextBarTime(time.Now(), s.barPeriod)
			waitDuration := time.Until(nextAnalysisTime)

			fmt.Printf("⏰ 下次分析时间: %s（等待 %v）\n",
				nextAnalysisTime.Format("15:04:05"), waitDuration)

			select {
			case <-ctx.Done():
				fmt.Println("📴 调度器已停止")
				return
			case <-time.After(waitDuration):
				continue
			}
		}
	}
}
