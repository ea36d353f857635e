package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"breakout-sentry/internal/analyzer"
	"breakout-sentry/internal/fetcher"
	"breakout-sentry/internal/notifier"
	"breakout-sentry/internal/scheduler"
	"breakout-sentry/internal/storage"
	"breakout-sentry/internal/stream/engine"
	"breakout-sentry/internal/stream/monitor"
	"breakout-sentry/pkg/types"
)

// App 应用程序管理器
type App struct {
	config *types.Config
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewApp 创建应用程序实例
func NewApp(config *types.Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	return &App{
		config: config,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start 启动应用程序
func (app *App) Start() {
	// 启动REST轮询监控路径
	if app.config.Alert.Enabled {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.startPollingSystem()
		}()
	}

	// 启动WebSocket流式检测路径
	if app.config.Stream.Enabled {
		app.wg.Add(1)
		go func() {
			defer app.wg.Done()
			app.startStreamEngine()
		}()
	}

	if !app.config.Alert.Enabled && !app.config.Stream.Enabled {
		zap.L().Warn("⚠️ 轮询监控和流式检测均未启用，没有任何工作路径")
	}

	zap.L().Info("✅ Breakout Sentry 已启动")
}

// Stop 停止应用程序
func (app *App) Stop() {
	zap.L().Info("🛑 收到停止信号，正在优雅关闭...")
	app.cancel()

	// 等待所有goroutine结束，最多等待30秒
	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("✅ Breakout Sentry 已安全关闭")
	case <-time.After(30 * time.Second):
		zap.L().Warn("⚠️ 强制关闭超时")
	}
}

// WaitForShutdown 等待关闭信号
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}

// newNotifier 根据配置选择通知服务（优先级：钉钉 > PushPlus > 控制台）
func (app *App) newNotifier() notifier.Interface {
	if app.config.DingTalk.WebhookURL != "" {
		return notifier.NewDingTalkNotifier(app.config.DingTalk.WebhookURL, app.config.DingTalk.Secret)
	}
	if app.config.PushPlus.UserToken != "" {
		return notifier.NewPushPlusNotifier(app.config.PushPlus.UserToken, app.config.PushPlus.To)
	}
	return notifier.NewConsoleNotifier()
}

// startPollingSystem 启动REST轮询监控系统
func (app *App) startPollingSystem() {
	zap.L().Info("📊 启动轮询突破监控系统")

	// 初始化各模块
	stateManager := storage.NewStateManager(app.config.Redis, app.config.Fetch.Limit)
	dataFetcher := fetcher.NewDataFetcher(stateManager, app.config.Alert, app.config.Fetch, app.config.Network)

	notifyService := app.newNotifier()

	analysisEngine := analyzer.NewAnalysisEngine(stateManager, notifyService, app.config.Alert.Window, app.config.Alert.RecentLimit)
	taskScheduler := scheduler.NewScheduler(dataFetcher, analysisEngine, stateManager, fetcher.BarDuration(app.config.Alert.Interval))

	// 启动调度器
	taskScheduler.Start(app.ctx)
}

// startStreamEngine 启动流式突破检测引擎
func (app *App) startStreamEngine() {
	zap.L().Info("📈 启动流式突破检测引擎")

	// WebSocket配置
	wsConfig := types.WebSocketConfig{
		OKXEndpoint:          "wss://ws.okx.com:8443/ws/v5/public",
		ReconnectInterval:    5 * time.Second,
		PingInterval:         20 * time.Second,
		MaxReconnectAttempts: 10,
	}

	// 创建流式引擎
	breakoutEngine, err := engine.NewBreakoutEngine(
		app.config.Stream,
		wsConfig,
		app.config.Database.MySQL,
		app.newNotifier(),
		app.config.Network.Proxy,
	)
	if err != nil {
		zap.L().Error("❌ 创建流式引擎失败", zap.Error(err))
		return
	}

	// 启动流式引擎
	if err := breakoutEngine.Start(); err != nil {
		zap.L().Error("❌ 启动流式引擎失败", zap.Error(err))
		return
	}

	// 创建运行监控器
	runMonitor := monitor.NewMonitor(breakoutEngine, app.config.Stream)
	runMonitor.Start()

	// 等待上下文取消
	<-app.ctx.Done()

	zap.L().Info("🛑 停止流式突破检测引擎")

	// 停止监控和引擎
	runMonitor.Stop()

	if err := breakoutEngine.Stop(); err != nil {
		zap.L().Error("❌ 停止流式引擎失败", zap.Error(err))
	}
}
