package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"bili_checkin/internal/config"
	"bili_checkin/internal/engine"
	"bili_checkin/internal/logbus"
	"bili_checkin/internal/notify"
	"bili_checkin/internal/provider/standard"
	"bili_checkin/internal/report"
)

func main() {
	configPath := flag.String("config", "./config.yaml", "path to config.yaml")
	envPath := flag.String("env", ".env", "path to dotenv file")
	checkOnly := flag.Bool("check", false, "only verify that each cookie is logged in")
	once := flag.Bool("once", false, "run once even when a cron schedule is configured")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envPath)
	if err != nil {
		logbus.NewConsoleLogger("info").Fatal("配置加载失败", zap.Error(err))
	}

	logger := logbus.NewConsoleLogger(cfg.Log.Level)
	defer func() { _ = logger.Sync() }()

	bus := logbus.New(500)
	bus.Tee(logger)

	eng := engine.New(engine.Options{
		Provider: standard.New(cfg.Provider, bus),
		Bus:      bus,
		Task:     cfg.Task,
	})
	dispatcher := notify.FromConfig(cfg.Notify, bus)
	loc := cfg.Schedule.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *checkOnly {
		statuses, err := eng.CheckAll(ctx, cfg.Accounts.Cookies)
		if err != nil {
			bus.Log("error", "登录检查失败", map[string]any{"error": err.Error()})
		}
		if err != nil || !engine.AllLoggedIn(statuses) {
			stop()
			_ = logger.Sync()
			os.Exit(1)
		}
		return
	}

	run := func() {
		results, err := eng.RunAll(ctx, cfg.Accounts.Cookies)
		if err != nil {
			bus.Log("error", "任务执行失败", map[string]any{"error": err.Error()})
			return
		}
		dispatcher.Notify(ctx, notify.Message{
			Title:   report.Title,
			Content: report.Format(results, time.Now().In(loc)),
		})
	}

	if cfg.Schedule.Cron == "" || *once {
		run()
		return
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(zap.NewStdLog(logger)))),
	)
	if _, err := c.AddFunc(cfg.Schedule.Cron, run); err != nil {
		logger.Fatal("定时表达式无效", zap.String("cron", cfg.Schedule.Cron), zap.Error(err))
	}
	c.Start()
	bus.Log("info", "定时任务已启动", map[string]any{"cron": cfg.Schedule.Cron, "timezone": loc.String()})

	<-ctx.Done()
	bus.Log("info", "收到退出信号，等待当前任务结束", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	select {
	case <-c.Stop().Done():
	case <-shutdownCtx.Done():
	}
	bus.Log("info", "已退出", nil)
}
