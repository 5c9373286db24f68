package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mroshb/reward_engine/internal/api"
	"github.com/mroshb/reward_engine/internal/config"
	"github.com/mroshb/reward_engine/internal/database"
	"github.com/mroshb/reward_engine/internal/jobs"
	"github.com/mroshb/reward_engine/internal/middleware"
	"github.com/mroshb/reward_engine/internal/models"
	"github.com/mroshb/reward_engine/internal/security"
	"github.com/mroshb/reward_engine/internal/selector"
	"github.com/mroshb/reward_engine/internal/services"
	"github.com/mroshb/reward_engine/pkg/logger"
	"github.com/mroshb/reward_engine/telegram"
)

func main() {
	bootstrapAdmin := flag.String("bootstrap-admin", "", "promote this external ID to admin, print an API token and exit")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.AppEnv)
	defer logger.Sync()

	logger.Info("Starting reward engine...")

	if cfg.AppEnv == "production" {
		if err := cfg.ValidateProductionSecurity(); err != nil {
			logger.Fatal("Production security validation failed", err)
		}
		logger.Info("Production security validation passed")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		logger.Fatal("Failed to run migrations", err)
	}
	if err := database.SeedDefaults(db); err != nil {
		logger.Warn("Failed to seed defaults", "error", err)
	}

	store := services.NewStore(db)
	periods := services.NewPeriods(cfg.Location())
	credit := services.NewCreditSource(store, periods)
	granter := services.NewPrizeGranter(store)
	tasks := services.NewTaskService(store, periods)
	src := selector.CryptoSource{}

	svc := api.Services{
		Accounts: services.NewAccountService(store, credit, cfg.WelcomePoints),
		Signins: services.NewSigninService(store, tasks, periods, services.SigninRewards{
			BasePoints:     cfg.SigninBasePoints,
			MilestoneDays:  cfg.SigninMilestoneDays,
			MilestoneBonus: cfg.SigninMilestoneBonus,
		}),
		Gacha:   services.NewGachaService(store, credit, granter, tasks, src),
		Slot:    services.NewSlotService(store, credit, tasks, src),
		Scratch: services.NewScratchService(store, credit, granter, tasks, src),
		Markets: services.NewMarketService(store, tasks, services.MarketDefaults{
			FeeRate: cfg.MarketDefaultFeeRate,
			MinBet:  cfg.MarketDefaultMinBet,
		}),
		Tasks:        tasks,
		Exchange:     services.NewExchangeService(store, tasks),
		Achievements: services.NewAchievementService(store),
		Admin:        services.NewAdminService(store),
	}

	if *bootstrapAdmin != "" {
		if err := promote(svc.Accounts, store, cfg, *bootstrapAdmin); err != nil {
			logger.Fatal("Failed to bootstrap admin", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := jobs.NewScheduler(svc.Markets, store.Ledger, cfg.Location())
	if err := scheduler.Start(ctx, cfg.MarketSweepCron, cfg.LedgerAuditCron); err != nil {
		logger.Fatal("Failed to start scheduler", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerAccount, cfg.RateLimitPerIP, cfg.RateLimitWindow)
	app := api.NewApp(api.NewHandler(svc), cfg.JWTSecret, limiter)

	go func() {
		if err := app.Listen(":" + cfg.AppPort); err != nil {
			logger.Fatal("HTTP server failed", err)
		}
	}()
	logger.Info("HTTP API listening", "port", cfg.AppPort)

	var bot *telegram.Bot
	if cfg.BotToken != "" {
		bot, err = telegram.InitBot(cfg, telegram.Services{
			Accounts: svc.Accounts,
			Signins:  svc.Signins,
			Gacha:    svc.Gacha,
			Slot:     svc.Slot,
			Scratch:  svc.Scratch,
			Markets:  svc.Markets,
			Tasks:    svc.Tasks,
		})
		if err != nil {
			logger.Fatal("Failed to initialize bot", err)
		}
		logger.Info("Bot started successfully", "env", cfg.AppEnv)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down gracefully...")
	if bot != nil {
		bot.Stop()
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	cancel()
	scheduler.Stop()
	limiter.Stop()
	logger.Info("Reward engine stopped")
}

// promote makes externalID an admin, creating the account if needed, and
// prints a bearer token for it.
func promote(accounts *services.AccountService, store *services.Store, cfg *config.Config, externalID string) error {
	account, _, err := accounts.EnsureAccount(context.Background(), externalID, externalID)
	if err != nil {
		return err
	}
	if err := store.Accounts.SetRole(account.ID, models.RoleAdmin); err != nil {
		return err
	}
	token, err := security.GenerateJWT(account.ID, models.RoleAdmin, cfg.JWTSecret, 30*24*time.Hour)
	if err != nil {
		return err
	}
	logger.Info("Admin promoted", "account_id", account.ID, "external_id", externalID)
	fmt.Println(token)
	return nil
}
