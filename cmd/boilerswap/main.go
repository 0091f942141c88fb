package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/boilerswap/backend/internal/account"
	"github.com/boilerswap/backend/internal/auth"
	"github.com/boilerswap/backend/internal/config"
	"github.com/boilerswap/backend/internal/httpapi"
	"github.com/boilerswap/backend/internal/janitor"
	"github.com/boilerswap/backend/internal/limiters"
	"github.com/boilerswap/backend/internal/mailer"
	"github.com/boilerswap/backend/internal/metrics"
	"github.com/boilerswap/backend/internal/password"
	"github.com/boilerswap/backend/internal/pending"
	"github.com/boilerswap/backend/internal/session"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "boilerswap",
		Short:        "BoilerSwap marketplace backend",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Server.APITokenSecret == "" {
		return errors.New("API_TOKEN_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		MaxRetries:   2,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	var users account.Store
	if cfg.Database.DSN != "" {
		pg, err := account.OpenPostgres(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("opening user store: %w", err)
		}
		defer pg.Close()
		users = pg
	} else {
		logger.Warn("DATABASE_URL not set, using the in-memory user store")
		users = account.NewMemoryStore()
	}

	sender := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUser,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.From,
	})
	dispatcher := mailer.NewDispatcher(sender, logger, 256)
	defer dispatcher.Close()

	hasher, err := password.New(password.DefaultConfig())
	if err != nil {
		return fmt.Errorf("configuring hasher: %w", err)
	}

	m := metrics.New(cfg.Metrics.Enabled)
	locks := limiters.NewLock(rdb)
	sessions := session.NewStore(rdb, cfg.Auth.MaxSessions)

	authCfg := auth.DefaultConfig()
	authCfg.MaxSessions = cfg.Auth.MaxSessions
	engine, err := auth.New(authCfg, users, pending.NewStore(rdb), sessions,
		locks, hasher, dispatcher, logger, m)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	sweeper := janitor.New(sessions, logger)
	if err := sweeper.Start(janitor.DefaultSchedule); err != nil {
		return fmt.Errorf("starting janitor: %w", err)
	}
	defer sweeper.Stop()

	apiCfg := httpapi.DefaultConfig()
	apiCfg.AllowedOrigin = cfg.Server.FrontendURL
	apiCfg.TokenSecret = []byte(cfg.Server.APITokenSecret)
	api, err := httpapi.NewServer(apiCfg, engine, locks, m, logger)
	if err != nil {
		return fmt.Errorf("building http server: %w", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
