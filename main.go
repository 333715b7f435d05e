package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahmadzakiakmal/ecommerce/cartstore"
	"github.com/ahmadzakiakmal/ecommerce/config"
	"github.com/ahmadzakiakmal/ecommerce/logging"
	"github.com/ahmadzakiakmal/ecommerce/repository"
	"github.com/ahmadzakiakmal/ecommerce/server"
	"github.com/ahmadzakiakmal/ecommerce/shop"
	"github.com/ahmadzakiakmal/ecommerce/srvreg"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("ecommerce", pflag.ContinueOnError)
	verbose := flags.BoolP("verbose", "v", false, "Mirror every log sink to the console")
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: ecommerce [-v]")
		fmt.Fprintln(os.Stderr, "Configuration is read from config.yaml, .env and SHOP_* environment variables.")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument %q\n", flags.Arg(0))
		flags.Usage()
		return 2
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to load configuration: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return 1
	}

	logs, err := logging.New(logging.Options{Dir: cfg.LogDir, Verbose: *verbose, Level: cfg.LogLevel})
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to set up logging: %v\n", err)
		return 1
	}
	defer logs.Close()
	logger := logs.For("app")

	logger.Info().Msg("===========================================")
	logger.Info().Msg("   E-Commerce Backend - Starting Up")
	logger.Info().Msg("===========================================")
	logger.Info().Msgf("   HTTP Port: %s", cfg.HTTPPort)
	logger.Info().Msgf("   Database: %s:%s/%s", cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseName)
	logger.Info().Msgf("   Cache: %s", cfg.CacheDriver)

	// Initialize repository
	logger.Info().Msg("📦 Initializing database...")
	repo := repository.NewRepository(logger.With().Str("component", "database").Logger())
	pool := repository.PoolOptions{MaxOpenConns: cfg.DatabaseMaxOpenConns, MaxIdleConns: cfg.DatabaseMaxIdleConns}
	if err := repo.ConnectDB(cfg.GetDSN(), cfg.DatabaseConnectAttempts, pool, cfg.DatabaseSeed); err != nil {
		logger.Error().Err(err).Msg("❌ Failed to connect to database")
		return 1
	}
	defer repo.Close()

	// Initialize cart store
	logger.Info().Msg("🛒 Initializing cart store...")
	carts, err := openCartStore(cfg, logger.With().Str("component", "cache").Logger())
	if err != nil {
		logger.Error().Err(err).Msg("❌ Failed to open cart store")
		return 1
	}
	defer carts.Close()

	// Initialize service registry
	shopServices := shop.New(repo, carts, logs, shop.Options{ScanCount: cfg.CacheScanCount})
	serviceRegistry := srvreg.NewServiceRegistry(shopServices, repo, carts, logger)
	serviceRegistry.RegisterDefaultServices()

	// Initialize web server
	webServer := server.NewWebServer(cfg.HTTPPort, serviceRegistry, cfg.RequestTimeout, logger)
	if err := webServer.Start(); err != nil {
		logger.Error().Err(err).Msg("❌ Failed to start web server")
		return 1
	}

	logger.Info().Msg("===========================================")
	logger.Info().Msgf("   Listening on: http://localhost:%s", cfg.HTTPPort)
	logger.Info().Msg("===========================================")

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("🛑 Shutdown signal received, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := webServer.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("❌ Error during server shutdown")
	}

	logger.Info().Msg("✓ E-Commerce Backend stopped")
	return 0
}

// openCartStore opens the configured cart backend
func openCartStore(cfg *config.Config, logger zerolog.Logger) (cartstore.Store, error) {
	switch cfg.CacheDriver {
	case config.CacheBadger:
		store, err := cartstore.OpenBadger(cfg.BadgerPath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		store, err := cartstore.DialRedis(ctx, cartstore.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}
