package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evogene-server/internal/api"
	"github.com/evogene-server/internal/auth"
	"github.com/evogene-server/internal/config"
	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/health"
	"github.com/evogene-server/internal/logging"
	"github.com/evogene-server/internal/predict"
	"github.com/evogene-server/internal/router"
	"github.com/evogene-server/internal/task"
	"github.com/evogene-server/internal/variant"
	"github.com/evogene-server/pkg/external"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	// janitorInterval is how often expired task results are purged
	janitorInterval = 15 * time.Minute
	healthTimeout   = 3 * time.Second
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "evogene",
	Short: "EvoGene medical analysis server",
	Long: `EvoGene routes free-text medical questions to variant scoring,
brain scan and diabetes analyses and synthesizes patient-friendly reports.

Running without a subcommand starts the HTTP server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file (default: ./config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates configuration and builds the logger
func loadConfig() (*config.Manager, *logrus.Logger, error) {
	configManager, err := config.NewManager(configFile)
	if err != nil {
		return nil, nil, err
	}
	if err := configManager.Validate(); err != nil {
		return nil, nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	logger, err := logging.New(configManager.GetConfig().Logging)
	if err != nil {
		return nil, nil, err
	}
	return configManager, logger, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	configManager, logger, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := configManager.GetConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
	}).Info("Starting EvoGene server")

	store, err := openStorage(ctx, configManager, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	breakers := external.NewBreakerRegistry(logger)
	llm := newLanguageModel(ctx, cfg.LLM, breakers, logger)

	checker := health.NewChecker(healthTimeout, logger, store.checks...)
	checker.Register(health.NewBreakerCheck(breakers.States))

	var cache variant.Cache
	if cfg.Cache.Enabled {
		client, err := external.NewCacheClient(ctx, cfg.Cache)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, extraction cache disabled")
		} else {
			defer client.Close()
			cache = client
		}
	}

	var diabetes domain.DiabetesPredictor
	if model, err := predict.LoadDiabetesModel(cfg.Diabetes.ModelPath); err != nil {
		logger.WithError(err).Warn("Diabetes model not loaded")
		checker.Register(health.Static("diabetes_model", health.StateWarning, "model artifact not loaded"))
	} else {
		logger.WithField("version", model.Version()).Info("Diabetes model loaded")
		diabetes = model
	}

	if cfg.Evo.Endpoint == "" {
		logger.Warn("Variant scoring endpoint is not configured")
	}

	extractor := variant.NewExtractor(llm, cache, cfg.Cache.DefaultTTL, logger)
	nodes := router.NewNodes(extractor, external.NewEvoClient(cfg.Evo), diabetes, llm, logger)
	graph := router.NewGraph(router.NewClassifier(router.DefaultRules), nodes, logger)

	pool := task.NewPool(cfg.Worker, store.tasks, logger)
	go task.RunJanitor(ctx, store.tasks, cfg.Storage.TaskResultTTL, janitorInterval, logger)

	issuer, err := newIssuer(configManager, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(cfg, api.Dependencies{
		Chat:       router.NewService(graph, store.sessions, logger),
		Tasks:      pool,
		Accounts:   auth.NewService(store.records, issuer, cfg.Auth.BcryptCost, logger),
		Issuer:     issuer,
		Records:    store.records,
		Diabetes:   diabetes,
		Classifier: external.NewImagingClient(cfg.Imaging, breakers),
		Breakers:   breakers,
		Backends:   store.backends(),
		Health:     checker,
	}, logger)

	serveErr := server.Start(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.DrainTimeout)
	defer cancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		logger.WithError(err).Warn("Background tasks cancelled during shutdown")
	}

	if serveErr != nil {
		return serveErr
	}
	logger.Info("EvoGene server stopped")
	return nil
}

// newLanguageModel returns the Gemini client, or a model that fails every
// call when no API key is configured
func newLanguageModel(ctx context.Context, cfg domain.LLMConfig, breakers *external.BreakerRegistry, logger *logrus.Logger) domain.LanguageModel {
	client, err := external.NewGeminiClient(ctx, cfg, breakers, logger)
	if err != nil {
		logger.WithError(err).Warn("Language model unavailable, extraction and synthesis will report errors")
		return external.UnconfiguredModel{}
	}
	return client
}

// newIssuer creates the token issuer. Outside production a missing secret is
// replaced by a random per-process one.
func newIssuer(configManager *config.Manager, logger *logrus.Logger) (*auth.Issuer, error) {
	authConfig := configManager.GetConfig().Auth
	if authConfig.JWTSecret == "" && !configManager.IsProduction() {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating jwt secret: %w", err)
		}
		authConfig.JWTSecret = hex.EncodeToString(secret)
		logger.Warn("auth.jwt_secret not set, tokens will not survive a restart")
	}
	return auth.NewIssuer(authConfig)
}
