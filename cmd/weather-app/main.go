package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tnphung/weather-app/internal/api"
	"github.com/tnphung/weather-app/internal/config"
	"github.com/tnphung/weather-app/internal/core"
	"github.com/tnphung/weather-app/internal/logger"
	"github.com/tnphung/weather-app/internal/owm"
	"github.com/tnphung/weather-app/internal/store"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.Infof("Config loaded from %s", *configPath)

	if cfg.OpenWeather.AppID == "" {
		logger.Warn("openweather app_id is empty, upstream lookups will fail")
	}

	// 初始化存储
	db, err := store.New(cfg.Database.Path)
	if err != nil {
		logger.Errorf("Failed to init database: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Infof("Database initialized at %s", cfg.Database.Path)

	// 核心组件
	clock := core.SystemClock{}
	source := owm.NewClient(cfg.OpenWeather.BaseURL, cfg.OpenWeather.AppID, cfg.OpenWeather.Timeout())
	quota := core.NewQuotaTracker(db, clock, cfg.Quota.Limit, cfg.Quota.Window())
	countries := core.NewCountryTable(db)
	cache := core.NewReportCache(db, source, clock, cfg.Cache.TTL())
	coord := core.NewCoordinator(quota, countries, cache, db)
	logger.Infof("Quota: %d calls per %v, cache ttl %v", quota.Limit(), quota.Window(), cfg.Cache.TTL())

	// 后台清理
	if cfg.Janitor.Enabled {
		janitor := core.NewJanitor(db, clock, cfg.Janitor.Interval(), cfg.Cache.Retention(), cfg.Logging.RetentionDays)
		janitor.Start()
		defer janitor.Stop()
		logger.Infof("Janitor started (interval: %v)", cfg.Janitor.Interval())
	}

	// 设置路由
	weatherHandler := api.NewWeatherHandler(coord, cfg.Issuance.KeysPerRequest)
	adminHandler := api.NewAdminHandler(db, countries, cfg)
	r := api.SetupRouter(cfg, weatherHandler, adminHandler)

	// 使用 http.Server 以支持 Graceful Shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 监听 SIGINT / SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvErr := make(chan error, 1)
	go func() {
		logger.Infof("weather-app starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	// 等待信号或服务器错误
	select {
	case err := <-srvErr:
		if err != nil {
			logger.Errorf("Failed to start server: %v", err)
			return
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received, draining connections...")
	}

	// 给在途请求 15 秒的时间完成
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP server shutdown error: %v", err)
	}

	logger.Info("Server stopped gracefully")
}
