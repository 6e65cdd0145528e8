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

	"sceneit-backend/internal/config"
	"sceneit-backend/internal/database"
	"sceneit-backend/internal/logging"
	"sceneit-backend/internal/server"
	"sceneit-backend/internal/store"
	"sceneit-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

const dbConnectRetries = 5

var envFile string

var rootCmd = &cobra.Command{
	Use:           "sceneit-server",
	Short:         "scene-it media tracking backend",
	Long:          `REST backend for tracking watched, read and played media. Runs the HTTP server by default.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to an optional .env file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// loadConfig reads configuration and installs the logger it describes.
func loadConfig() (*config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}

// newDeps builds every store over the one pool. Collections is built here
// too although no route serves it yet; its tables are migrated with the rest.
func newDeps(cfg *config.AppConfig, dbpool *pgxpool.Pool, rdb *redis.Client) server.Deps {
	return server.Deps{
		Users:          store.NewPostgresUserStore(dbpool),
		Media:          store.NewPostgresMediaStore(dbpool),
		Collections:    store.NewPostgresCollectionStore(dbpool),
		Hasher:         utils.NewPasswordHasher(cfg.BcryptCost),
		Tokens:         utils.NewTokenService(cfg.JWTSecret, cfg.TokenMaxAge),
		DB:             dbpool,
		Redis:          rdb,
		CORSOrigins:    cfg.CORSOrigins,
		AuthRateLimit:  cfg.AuthRateLimit,
		AuthRateWindow: cfg.AuthRateWindow,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	slog.Info("scene-it backend starting", slog.String("port", cfg.ServerPort))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.AutoMigrate {
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	dbpool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, dbConnectRetries)
	if err != nil {
		return err
	}
	defer dbpool.Close()
	slog.Info("connected to postgres")

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = database.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		slog.Info("auth rate limiter enabled",
			slog.Int("limit", cfg.AuthRateLimit),
			slog.Duration("window", cfg.AuthRateWindow),
		)
	}

	gin.SetMode(cfg.GinMode)
	r := server.NewRouter(newDeps(cfg, dbpool, rdb))

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-quit:
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("server exiting")
	return nil
}
