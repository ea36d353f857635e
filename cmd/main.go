package main

import (
	"log"

	"go.uber.org/zap"

	"breakout-sentry/pkg/config"
	"breakout-sentry/pkg/logger"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("加载配置失败:", err)
	}

	// 初始化日志
	appLogger := logger.Init(cfg.Log)
	defer appLogger.Sync()

	zap.L().Info("🚀 Breakout Sentry 启动中...")

	// 创建并启动应用
	app := NewApp(cfg)
	app.Start()

	// 等待中断信号
	app.WaitForShutdown()

	// 优雅关闭
	app.Stop()
}
