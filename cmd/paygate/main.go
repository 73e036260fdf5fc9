// Command paygate serves payment-gated resources: it loads price
// configuration from an external store, challenges unpaid requests with
// 402, verifies payment proofs through a facilitator, and proxies or
// streams the protected resource once payment settles.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/x402-labs/paygate"
	paygatehttp "github.com/x402-labs/paygate/http"
	"github.com/x402-labs/paygate/internal/config"
	"github.com/x402-labs/paygate/internal/server"
	"github.com/x402-labs/paygate/registry"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if os.Getenv("GIN_MODE") != "release" {
		if err := godotenv.Load(); err != nil {
			logger.Info(".env file not found, reading from environment")
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("could not load configuration", "error", err)
		os.Exit(1)
	}
	gin.SetMode(cfg.GinMode)

	ctx := context.Background()

	facilitatorAuth, err := config.ResolveSecret(ctx, cfg.FacilitatorAuth)
	if err != nil {
		logger.Error("could not resolve facilitator credentials", "error", err)
		os.Exit(1)
	}

	var source registry.Source
	if cfg.ConfigDir != "" {
		source = registry.DirSource{Dir: cfg.ConfigDir}
	} else {
		source = registry.NewHTTPSource(cfg.ConfigURL)
	}

	reg := registry.New(source, logger)
	if err := reg.Load(ctx); err != nil {
		logger.Error("could not load price registry", "error", err)
		os.Exit(1)
	}

	if cfg.ReloadInterval > 0 {
		go reloadLoop(ctx, reg, cfg.ReloadInterval, logger)
	}

	facilitator := &paygatehttp.FacilitatorClient{
		BaseURL:       cfg.FacilitatorURL,
		VerifyOnly:    cfg.VerifyOnly,
		Authorization: facilitatorAuth,
	}

	recorder := paygate.NewRecorder()

	router, err := server.New(server.Options{
		Registry:    reg,
		Facilitator: facilitator,
		Recorder:    recorder,
		FrontendURL: cfg.FrontendURL,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("could not build router", "error", err)
		os.Exit(1)
	}

	logger.Info("paygate listening", "port", cfg.Port, "facilitator", cfg.FacilitatorURL)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// reloadLoop refreshes the registry snapshot; a failed reload keeps the
// previous snapshot serving.
func reloadLoop(ctx context.Context, reg *registry.Registry, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if err := reg.Load(ctx); err != nil {
			logger.Warn("registry reload failed, keeping previous snapshot", "error", err)
		}
	}
}
