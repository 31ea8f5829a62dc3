// Command minusx is the conversational analytics backend.
//
// It serves the chat orchestration API, proxied SQL execution against
// customer warehouses, CSV uploads, and editor autocomplete. Configuration
// comes from minusx.toml plus MINUSX_* environment overrides.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/minusxai/minusx/analyst"
	"github.com/minusxai/minusx/connect"
	"github.com/minusxai/minusx/internal/api"
	"github.com/minusxai/minusx/internal/config"
	"github.com/minusxai/minusx/observer"
	"github.com/minusxai/minusx/provider/resolve"
)

func main() {
	configPath := flag.String("config", os.Getenv("MINUSX_CONFIG"), "path to the TOML config file")
	flag.Parse()

	cfg := config.Load(*configPath)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(cfg.Server.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	llm, err := resolve.Provider(resolve.Config{
		APIKey:           cfg.LLM.APIKey,
		Model:            cfg.LLM.Model,
		BaseURL:          cfg.LLM.BaseURL,
		Name:             cfg.LLM.Provider,
		MaxTokens:        cfg.LLM.MaxTokens,
		RetryMaxAttempts: cfg.LLM.Retries,
		RetryTimeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		RPM:              cfg.LLM.RPM,
		TPM:              cfg.LLM.TPM,
		Logger:           logger,
	})
	if err != nil {
		logger.Error("provider setup failed", "error", err)
		os.Exit(1)
	}

	serverOpts := []api.Option{
		api.WithLogger(logger),
		api.WithProduction(cfg.Server.Production),
	}
	managerOpts := []connect.ManagerOption{connect.WithLogger(logger)}

	if cfg.Observer.Enabled {
		pricing := make(map[string]observer.ModelPricing, len(cfg.Observer.Pricing))
		for model, p := range cfg.Observer.Pricing {
			pricing[model] = observer.ModelPricing{
				InputPerMillion:  p.Input,
				OutputPerMillion: p.Output,
			}
		}
		inst, shutdown, err := observer.Init(ctx, pricing)
		if err != nil {
			logger.Error("observer setup failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				logger.Warn("observer shutdown", "error", err)
			}
		}()

		llm = observer.WrapProvider(llm, cfg.LLM.Model, inst)
		serverOpts = append(serverOpts,
			api.WithTracer(observer.NewTracer()),
			api.WithTaskCompletionHook(observer.TaskCompletionHook(inst)),
		)
		managerOpts = append(managerOpts, connect.WithConnectorWrapper(observer.WrapConnector(inst)))
	}

	analyst.Register(analyst.Config{
		Provider: llm,
		Model:    cfg.LLM.Model,
		MaxSteps: cfg.LLM.MaxSteps,
	})

	manager := connect.NewManager(cfg.ControlPlane.BaseURL, cfg.Data.Dir, managerOpts...)
	defer manager.CloseAll()

	server := api.NewServer(manager, cfg.Data.Dir, serverOpts...)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: server.Routes(),
		// Chat turns hold the connection while agents run; generous
		// timeouts keep long tool loops from being cut off mid-stream.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "production", cfg.Server.Production)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	logger.Info("stopped")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
