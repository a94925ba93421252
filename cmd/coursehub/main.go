// Package main запускает HTTP-сервер платформы курсов coursehub.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/coursehub-system/internal/cache"
	"github.com/mmeshcher/coursehub-system/internal/config"
	"github.com/mmeshcher/coursehub-system/internal/handler"
	"github.com/mmeshcher/coursehub-system/internal/middleware"
	"github.com/mmeshcher/coursehub-system/internal/payment"
	"github.com/mmeshcher/coursehub-system/internal/repository"
	"github.com/mmeshcher/coursehub-system/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	gateway := payment.NewClient(cfg.RazorpayAddress, cfg.RazorpayKeyID, cfg.RazorpaySecret,
		cfg.WebhookSecret, cfg.Sandbox)
	if cfg.Sandbox {
		sugar.Warn("payment gateway runs in sandbox mode, signature checks are bypassed")
	}

	// Кэш курсов необязателен: без Redis сервис работает напрямую с базой.
	var courseCache service.CourseCache
	if cfg.RedisAddress != "" {
		redisCache, err := cache.NewCourseCache(cfg.RedisAddress)
		if err != nil {
			sugar.Warnw("course cache unavailable, continuing without it", "error", err.Error())
		} else {
			defer redisCache.Close()
			courseCache = redisCache
		}
	}

	svc := service.NewService(repo, gateway, courseCache)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting coursehub server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
