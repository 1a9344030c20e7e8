package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sandwichproject/coordinator/internal/auth"
	"github.com/sandwichproject/coordinator/internal/config"
	"github.com/sandwichproject/coordinator/internal/database"
	"github.com/sandwichproject/coordinator/internal/logging"
	"github.com/sandwichproject/coordinator/internal/metrics"
	"github.com/sandwichproject/coordinator/internal/server"
	"github.com/sandwichproject/coordinator/internal/storage"
	"github.com/sandwichproject/coordinator/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sandwich-api",
		Short: "Sandwich collection coordination backend",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Primary database driver (sqlite, mysql)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "MySQL data source name")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")
	cmd.PersistentFlags().String("cookie-name", defaults.GetString("auth.cookie_name"), "Session cookie name")
	cmd.PersistentFlags().StringSlice("cors-origins", nil, "Allowed CORS origins (empty reflects any origin)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.cookie_name", "cookie-name")
	bindFlag(cmd, "cors.allowed_origins", "cors-origins")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storageMetrics, err := metrics.NewStorageMetrics(registry)
	if err != nil {
		return err
	}
	httpMetrics, err := metrics.NewHTTPMetrics(registry)
	if err != nil {
		return err
	}

	var db *gorm.DB
	defer func() {
		if closeErr := database.Close(db); closeErr != nil {
			logger.Warn("failed to close database", zap.Error(closeErr))
		}
	}()

	// A primary that cannot be opened leaves the API running on the in-memory store.
	facade := storage.NewFacade(storage.FacadeConfig{
		Primary: func() (storage.Store, error) {
			opened, err := database.Open(database.Config{
				Driver: appConfig.DatabaseDriver,
				Path:   appConfig.DatabasePath,
				DSN:    appConfig.DatabaseDSN,
			}, logger)
			if err != nil {
				return nil, err
			}
			db = opened
			durable, err := storage.NewDurableStore(opened, logger)
			if err != nil {
				return nil, err
			}
			return durable, nil
		},
		Logger:  logger,
		Metrics: storageMetrics,
	})

	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(appConfig.AuthSigningSecret),
		Issuer:        appConfig.AuthIssuer,
		CookieName:    appConfig.AuthCookieName,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(users.ServiceConfig{
		Directory: facade,
		CacheTTL:  appConfig.UserCacheTTL,
		Logger:    logger.Named("users"),
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Repository:     facade,
		Sessions:       sessions,
		Users:          userService,
		Realtime:       server.NewRealtimeDispatcher(),
		Metrics:        httpMetrics,
		Gatherer:       registry,
		AllowedOrigins: appConfig.CORSAllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("address", appConfig.HTTPAddress),
			zap.String("database_driver", appConfig.DatabaseDriver),
			zap.Bool("degraded", facade.Degraded()),
		)
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appConfig.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
