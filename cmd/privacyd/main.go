package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/suprachakra/AeroFusionXR-sub002/internal/api"
	"github.com/suprachakra/AeroFusionXR-sub002/internal/config"
	"github.com/suprachakra/AeroFusionXR-sub002/internal/lifecycle"
	"github.com/suprachakra/AeroFusionXR-sub002/internal/observability/metrics"
	"github.com/suprachakra/AeroFusionXR-sub002/internal/privacy"
	"github.com/suprachakra/AeroFusionXR-sub002/pkg/models"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "privacyd",
		Short: "Privacy-preserving computation daemon",
		Long: `privacyd runs the privacy core for passenger analytics: budgeted
differentially private queries, secure aggregation across sites, federated
training coordination, and data retention enforcement.`,
		Version: "0.1.0",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./privacyd.yaml)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.WithFields(logrus.Fields{
		"total_epsilon":  cfg.Privacy.TotalEpsilon,
		"sweep_interval": cfg.Retention.SweepInterval,
	}).Info("Starting privacy daemon")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ledger, err := privacy.NewPrivacyLedger(cfg.Privacy.TotalEpsilon, cfg.Privacy.Delta)
	if err != nil {
		return err
	}

	engine, err := privacy.NewDifferentialPrivacyEngine(ledger, privacy.NewQueryAccountant(), logger)
	if err != nil {
		return err
	}

	pm, err := metrics.NewPrivacyMetrics(&metrics.Config{
		Enabled:   cfg.Metrics.Enabled,
		Path:      cfg.Metrics.Path,
		Namespace: cfg.Metrics.Namespace,
	}, logger)
	if err != nil {
		return err
	}
	engine.SetMetrics(pm)

	store, err := buildRecordStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	policies, err := buildPolicyStore(cfg)
	if err != nil {
		return err
	}

	manager, err := lifecycle.NewDataLifecycleManager(lifecycle.ManagerConfig{
		SweepInterval:         cfg.Retention.SweepInterval,
		MaxDestructionRetries: cfg.Retention.MaxDestructionRetries,
		RetryBackoff:          cfg.Retention.RetryBackoff,
	}, store, policies, lifecycle.NewAuditLog(), lifecycle.NewKeyVault(), logger)
	if err != nil {
		return err
	}
	manager.SetMetrics(pm)

	go manager.RunSweeper(ctx)
	go publishBudget(ctx, ledger, pm)

	handler := api.NewHandler(engine, manager, pm, logger)
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = pm.Handler()
	}
	router := handler.SetupRoutes(metricsHandler, cfg.Metrics.Path)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("Shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}

	logger.Info("Privacy daemon stopped")
	return nil
}

func buildRecordStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (lifecycle.RecordStore, error) {
	if !cfg.Redis.Enabled {
		return lifecycle.NewMemoryRecordStore(), nil
	}

	store, err := lifecycle.NewRedisRecordStore(&lifecycle.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := store.Connect(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func buildPolicyStore(cfg *config.Config) (*lifecycle.RetentionPolicyStore, error) {
	if len(cfg.Retention.Policies) == 0 {
		return lifecycle.NewRetentionPolicyStore(lifecycle.DefaultPolicies())
	}

	policies := make([]models.RetentionPolicy, 0, len(cfg.Retention.Policies))
	for _, p := range cfg.Retention.Policies {
		policies = append(policies, models.RetentionPolicy{
			Classification:    models.Classification(p.Classification),
			RetentionPeriod:   p.RetentionPeriod,
			DestructionMethod: models.DestructionMethod(p.DestructionMethod),
			BackupRetention:   p.BackupRetention,
		})
	}
	return lifecycle.NewRetentionPolicyStore(policies)
}

// publishBudget keeps the ledger gauges current
func publishBudget(ctx context.Context, ledger *privacy.PrivacyLedger, pm *metrics.PrivacyMetrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.SetBudget(ledger.Remaining(), ledger.Spent())
		}
	}
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}
