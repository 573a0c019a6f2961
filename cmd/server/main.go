// Package main はスマートロックサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"smartlock-service/config"
	"smartlock-service/internal/app"
	"smartlock-service/internal/domain"
	"smartlock-service/internal/handler"
	"smartlock-service/internal/infra"
	"smartlock-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg)

	clock := infra.NewWallClock(ctx, clockwork.NewRealClock(), cfg.FactoryTime)

	// ストア初期化（マウントできなくても起動は続け、照合はすべて否認する）
	credentials, closeStore, err := app.OpenCredentials(ctx, cfg, clock)
	switch {
	case errors.Is(err, domain.ErrStoreNotMounted):
		slog.Error("credential store unavailable, all codes will be rejected", "error", err)
	case err != nil:
		slog.Error("failed to open credential store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// 壊れたレコードは残したまま起動し、該当する照合は常に失敗する
	if _, err := credentials.Provision(ctx); err != nil {
		slog.Error("provisioning incomplete, affected codes will be rejected", "error", err)
	}

	// DI
	queue := infra.NewEventQueue(clock)
	lock := usecase.NewLockController(app.NewActuator(cfg), infra.NewLogIndicator(clock), queue, cfg.RelockInterval)
	recovery := usecase.NewRecoveryService(credentials)
	dispatcher := usecase.NewDispatcher(credentials, recovery, lock, clock)
	h := handler.NewLockHandler(queue, dispatcher, lock, credentials, cfg.DeviceName)
	router := handler.NewRouter(h, cfg)

	runCtx, stopQueue := context.WithCancel(ctx)
	defer stopQueue()
	go func() {
		if err := queue.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("event queue stopped", "error", err)
		}
	}()

	// 起動時は常に施錠状態から始める
	if err := queue.Call(ctx, func() { lock.Lock(ctx) }); err != nil {
		slog.Error("failed to lock on boot", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		queue.Close()
	}()

	slog.Info("starting server",
		"port", cfg.Port,
		"device_name", cfg.DeviceName,
		"store_driver", cfg.StoreDriver,
		"relock_interval", cfg.RelockInterval.String(),
	)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
