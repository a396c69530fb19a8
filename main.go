package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/chaos-io/rmbg/cache"
	"github.com/chaos-io/rmbg/compose"
	"github.com/chaos-io/rmbg/config"
	"github.com/chaos-io/rmbg/handler"
	"github.com/chaos-io/rmbg/metrics"
	"github.com/chaos-io/rmbg/rembg"
	"github.com/chaos-io/rmbg/service"
	"github.com/chaos-io/rmbg/storage"
	"github.com/chaos-io/rmbg/util"
	nhttp "github.com/chaos-io/rmbg/util/http"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	_ = godotenv.Load()

	configPath := os.Getenv("RMBG_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	if err := util.InitLogger(cfg.Server.Mode()); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.Sync()

	util.Logger.Info("starting rmbg server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("model", cfg.Model.ID))

	remover, err := buildRemover(cfg)
	if err != nil {
		util.Logger.Fatal("failed to initialize background remover", zap.Error(err))
	}

	level, _ := compose.ParseCompression(cfg.Server.PNGCompression)
	m := metrics.New()
	svcOpts := []service.Option{service.WithRemoveObserver(m.ObserveRemove)}
	handlerOpts := []handler.Option{
		handler.WithMetrics(m),
		handler.WithMaxUpload(cfg.Server.MaxUpload),
		handler.WithVersion(Version),
	}

	// Redis 不可用时关闭缓存，服务照常运行
	if cfg.Redis.Addr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		c, err := cache.New(ctx, cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		cancel()
		if err != nil {
			util.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			util.Logger.Info("redis connected successfully", zap.String("addr", cfg.Redis.Addr))
			defer c.Close()
			svcOpts = append(svcOpts, service.WithCache(c))
		}
	}

	if cfg.Storage.Dir != "" {
		store, err := storage.New(cfg.Storage.Dir)
		if err != nil {
			util.Logger.Fatal("failed to create result storage", zap.Error(err))
		}
		janitor, err := storage.StartJanitor(store, cfg.Storage.Cleanup, cfg.Storage.Retention)
		if err != nil {
			util.Logger.Fatal("failed to start result janitor", zap.Error(err))
		}
		defer janitor.Stop()

		svcOpts = append(svcOpts, service.WithStore(store))
		handlerOpts = append(handlerOpts, handler.WithStore(store))
	}

	svc := service.NewBackgroundService(remover, service.Options{
		Model:           cfg.Model.ID,
		MaxUpload:       cfg.Server.MaxUpload,
		MaxPixels:       cfg.Server.MaxPixels,
		Compression:     level,
		SkipTransparent: cfg.Model.SkipTransparent,
	}, svcOpts...)

	gin.SetMode(cfg.Server.Mode())
	r := handler.NewRouter(handler.NewRemoveHandler(svc, handlerOpts...), handler.RouterConfig{
		RateLimit: cfg.Server.RateLimit,
		Burst:     cfg.Server.Burst,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		util.Logger.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	util.Logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		util.Logger.Error("server forced to shutdown", zap.Error(err))
	}
}

// buildRemover 按配置组装后端：先远程推理服务，再 remove.bg
func buildRemover(cfg *config.Config) (rembg.Chain, error) {
	var chain rembg.Chain

	if cfg.Model.Endpoint != "" {
		r, err := rembg.NewInferenceRemover(rembg.InferenceConfig{
			Endpoint:  cfg.Model.Endpoint,
			Model:     cfg.Model.ID,
			Device:    cfg.Model.Device,
			InputSize: cfg.Model.InputSize,
			Timeout:   cfg.Model.Timeout,
		}, nhttp.NewHTTPClientWithTimeout(cfg.Model.Timeout))
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)
	}

	if cfg.RemoveBG.APIKey != "" {
		r, err := rembg.NewRemoveBGRemover(rembg.RemoveBGConfig{
			Endpoint: cfg.RemoveBG.Endpoint,
			APIKey:   cfg.RemoveBG.APIKey,
			Timeout:  cfg.RemoveBG.Timeout,
		}, nhttp.NewHTTPClientWithTimeout(cfg.RemoveBG.Timeout))
		if err != nil {
			return nil, err
		}
		chain = append(chain, r)
	}

	if len(chain) == 0 {
		return nil, errors.New("no model backend configured: set RMBG_ENDPOINT or REMOVE_BG_API_KEY")
	}
	return chain, nil
}
