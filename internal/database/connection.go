package database

import (
	"fmt"
	"time"

	"github.com/mroshb/reward_engine/internal/config"
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(cfg *config.Config) (*gorm.DB, error) {
	return Open(cfg.GetDSN(), cfg.AppEnv == "development")
}

// Open connects to PostgreSQL. Verbose logs every statement.
func Open(dsn string, verbose bool) (*gorm.DB, error) {
	logLevel := gormlogger.Error
	if verbose {
		logLevel = gormlogger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	logger.Info("Database connected")
	return db, nil
}

// Models lists every table in migration order.
func Models() []interface{} {
	return []interface{}{
		&models.Account{},
		&models.AccountItem{},
		&models.AccountBadge{},
		&models.LedgerEntry{},
		&models.IdempotencyKey{},
		&models.QuotaCounter{},
		&models.FreeCredit{},
		&models.RewardConfig{},
		&models.PrizeEntry{},
		&models.DrawRecord{},
		&models.RedemptionCode{},
		&models.SlotConfig{},
		&models.SlotSymbol{},
		&models.MatchRule{},
		&models.SlotDraw{},
		&models.ScratchConfig{},
		&models.ScratchPrize{},
		&models.ScratchCard{},
		&models.PredictionMarket{},
		&models.MarketOption{},
		&models.Bet{},
		&models.TaskDefinition{},
		&models.TaskProgress{},
		&models.TaskEvent{},
		&models.TaskClaim{},
		&models.TaskStreak{},
		&models.SigninRecord{},
		&models.ExchangeItem{},
		&models.ExchangeRecord{},
		&models.AchievementDefinition{},
		&models.AccountAchievement{},
		&models.BadgeShowcase{},
	}
}

func AutoMigrate(db *gorm.DB) error {
	logger.Info("Running database migrations...")

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	// The balance cache must never go negative, whatever writes it.
	if err := db.Exec(`DO $$ BEGIN
		ALTER TABLE accounts ADD CONSTRAINT chk_account_balance CHECK (balance >= 0);
	EXCEPTION WHEN duplicate_object THEN NULL; END $$`).Error; err != nil {
		return fmt.Errorf("failed to add balance constraint: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}
