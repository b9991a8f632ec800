package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"credit-service/internal/biz"
	"credit-service/internal/conf"
	"credit-service/internal/pkg/logger"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/env"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

// dailyResetSpec fires at 00:00:00 UTC.
const dailyResetSpec = "0 0 0 * * *"

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

// CronApp holds the use cases run by the scheduler.
type CronApp struct {
	resetUseCase *biz.ResetUseCase
}

func main() {
	flag.Parse()

	_ = godotenv.Load()

	c := config.New(
		config.WithSource(
			env.NewSource(),
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	loggerInstance := logger.NewLogger(loggerConfig(bc.Log))
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "credit-cron",
	)
	logHelper := log.NewHelper(loggerInstance)

	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	cronScheduler := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))

	_, err = cronScheduler.AddFunc(dailyResetSpec, func() {
		logHelper.Info("[CRON] Starting daily limit reset...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		count, err := app.resetUseCase.ResetDailyLimits(ctx)
		if err != nil {
			logHelper.Errorf("[CRON] Error resetting daily limits: %v", err)
			return
		}
		logHelper.Infof("[CRON] Finished daily limit reset: count=%d", count)
	})
	if err != nil {
		logHelper.Errorf("Failed to add daily reset job: %v", err)
	}

	cronScheduler.Start()
	logHelper.Info("Cron jobs started, daily limit reset at 00:00 UTC")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")

	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		logHelper.Info("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		logHelper.Info("Cron jobs forced to stop after timeout")
	}
}

func loggerConfig(c *conf.Log) *logger.Config {
	lc := &logger.Config{
		Level:         "info",
		Format:        "json",
		Output:        "stdout",
		FilePath:      "logs/credit-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}
	if c != nil {
		if c.Level != "" {
			lc.Level = c.Level
		}
		if c.Format != "" {
			lc.Format = c.Format
		}
	}
	return lc
}
