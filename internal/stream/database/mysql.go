package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"breakout-sentry/pkg/types"
)

// Manager 数据库管理器。只归档K线原始数据，
// 突破信号本身不落库，进程重启后由历史K线重新推导。
type Manager struct {
	db     *gorm.DB
	config types.MySQLConfig
}

// Candle 数据库K线模型
type Candle struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"type:varchar(20);not null;index:idx_symbol_time" json:"symbol"`
	OpenTime  int64     `gorm:"not null;index:idx_symbol_time" json:"open_time"`
	CloseTime int64     `gorm:"not null;index:idx_close_time" json:"close_time"`
	Open      float64   `gorm:"type:decimal(20,8);not null" json:"open"`
	High      float64   `gorm:"type:decimal(20,8);not null" json:"high"`
	Low       float64   `gorm:"type:decimal(20,8);not null" json:"low"`
	Close     float64   `gorm:"type:decimal(20,8);not null" json:"close"`
	Volume    float64   `gorm:"type:decimal(20,8);not null" json:"volume"`
	Interval  string    `gorm:"type:varchar(10);not null;default:'5m'" json:"interval"`
	CreatedAt time.Time `json:"created_at"`
}

// NewManager 创建数据库管理器
func NewManager(config types.MySQLConfig) (*Manager, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		config.Username,
		config.Password,
		config.Host,
		config.Port,
		config.Database,
	)

	// 配置GORM日志
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 生产环境使用Silent
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %v", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取数据库实例失败: %v", err)
	}

	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	manager := &Manager{
		db:     db,
		config: config,
	}

	// 自动迁移表结构
	if err := manager.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %v", err)
	}

	zap.L().Info("✅ MySQL数据库连接成功",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("database", config.Database))

	return manager, nil
}

// AutoMigrate 自动迁移表结构
func (m *Manager) AutoMigrate() error {
	return m.db.AutoMigrate(&Candle{})
}

// SaveCandle 保存单根K线数据
func (m *Manager) SaveCandle(candle *types.Candle) error {
	dbCandle := &Candle{
		Symbol:    candle.Symbol,
		OpenTime:  candle.OpenTime.Unix(),
		CloseTime: candle.CloseTime.Unix(),
		Open:      candle.Open,
		High:      candle.High,
		Low:       candle.Low,
		Close:     candle.Close,
		Volume:    candle.Volume,
		Interval:  candle.Interval,
		CreatedAt: time.Now(),
	}

	return m.db.Create(dbCandle).Error
}

// BatchSaveCandles 批量保存K线数据
func (m *Manager) BatchSaveCandles(candles []*types.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// 转换为数据库模型
	dbCandles := make([]Candle, 0, len(candles))
	for _, candle := range candles {
		dbCandles = append(dbCandles, Candle{
			Symbol:    candle.Symbol,
			OpenTime:  candle.OpenTime.Unix(),
			CloseTime: candle.CloseTime.Unix(),
			Open:      candle.Open,
			High:      candle.High,
			Low:       candle.Low,
			Close:     candle.Close,
			Volume:    candle.Volume,
			Interval:  candle.Interval,
			CreatedAt: time.Now(),
		})
	}

	// 分批处理避免单个事务过大
	tx := m.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	batchSize := 100
	for i := 0; i < len(dbCandles); i += batchSize {
		end := i + batchSize
		if end > len(dbCandles) {
			end = len(dbCandles)
		}

		batch := dbCandles[i:end]
		if err := tx.CreateInBatches(batch, len(batch)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("批量插入K线数据失败: %v", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("提交批量插入事务失败: %v", err)
	}

	zap.L().Debug("✅ 批量保存K线数据完成",
		zap.Int("count", len(candles)),
		zap.String("first_symbol", candles[0].Symbol))

	return nil
}

// GetCandles 获取K线数据，按开盘时间倒序
func (m *Manager) GetCandles(symbol string, interval string, limit int) ([]*types.Candle, error) {
	var dbCandles []Candle
	err := m.db.Where("symbol = ? AND `interval` = ?", symbol, interval).
		Order("open_time DESC").
		Limit(limit).
		Find(&dbCandles).Error

	if err != nil {
		return nil, err
	}

	var candles []*types.Candle
	for _, dbCandle := range dbCandles {
		candles = append(candles, &types.Candle{
			Symbol:    dbCandle.Symbol,
			OpenTime:  time.Unix(dbCandle.OpenTime, 0),
			CloseTime: time.Unix(dbCandle.CloseTime, 0),
			Open:      dbCandle.Open,
			High:      dbCandle.High,
			Low:       dbCandle.Low,
			Close:     dbCandle.Close,
			Volume:    dbCandle.Volume,
			Interval:  dbCandle.Interval,
			Confirmed: true,
		})
	}

	return candles, nil
}

// Close 关闭数据库连接
func (m *Manager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 检查数据库连接健康状态
func (m *Manager) Health() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
