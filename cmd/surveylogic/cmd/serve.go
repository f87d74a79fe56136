package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/surveylogic/internal/core/api"
	"github.com/solatis/surveylogic/internal/core/auth"
	"github.com/solatis/surveylogic/internal/core/cache"
	"github.com/solatis/surveylogic/internal/core/config"
	"github.com/solatis/surveylogic/internal/core/db"
	"github.com/solatis/surveylogic/internal/core/server"
	"github.com/solatis/surveylogic/internal/rules"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the visibility service (gRPC and REST)",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "listen host")
	serveCmd.Flags().Int("port", 50051, "gRPC server port")
	serveCmd.Flags().Int("http-port", 8080, "REST and metrics port (0 disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("http-port") {
		cfg.HTTPPort, _ = cmd.Flags().GetInt("http-port")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	database, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := requireMigrations(ctx, database); err != nil {
		return err
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	store := db.NewStore(database, queries, db.WithMaxRules(cfg.MaxRulesPerSurvey))

	var source api.RuleSource = store
	if cfg.CacheURL != "" {
		client, err := cache.NewClient(ctx, cfg.CacheURL)
		if err != nil {
			return err
		}
		defer client.Close()
		source = cache.NewRuleCache(client, store, cfg.CacheTTL, logger)
		logger.Info("rule cache enabled", "ttl", cfg.CacheTTL)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set SL_HMAC_SECRET environment variable)")
	}
	authenticator := auth.NewAuthenticator(secrets, queries)

	metrics := api.NewMetrics()
	engine := rules.NewEngine(rules.WithLogger(logger), rules.WithObserver(metrics))

	service, err := api.NewVisibilityService(source, engine, cfg.RequestTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, authenticator, metrics)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errChan := make(chan error, 2)
	logger.Info("starting surveylogic",
		"version", Version,
		"grpc_addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	var httpServer *server.HTTPServer
	if cfg.HTTPPort != 0 {
		router := api.NewRouter(service, api.RouterConfig{
			Auth:    authenticator.Middleware,
			Metrics: metrics,
			Ready:   database.PingContext,
		})
		httpServer, err = server.NewHTTPServer(cfg, router)
		if err != nil {
			return fmt.Errorf("failed to create HTTP server: %w", err)
		}
		logger.Info("starting REST listener", "http_addr", fmt.Sprintf("%s:%d", cfg.Host, cfg.HTTPPort))
		go func() {
			errChan <- httpServer.Start(ctx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case runErr = <-errChan:
		logger.Error("server stopped", "error", runErr)
	case sig := <-sigChan:
		logger.Info("shutting down gracefully", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP shutdown incomplete", "error", err)
		}
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// requireMigrations refuses to serve against a schema with pending migrations.
func requireMigrations(ctx context.Context, database *sqlx.DB) error {
	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'surveylogic migrate up' first", s.ID)
		}
	}
	return nil
}
