package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eventia/affiliations/internal/affiliation/events"
	"github.com/eventia/affiliations/internal/affiliation/gateway"
	"github.com/eventia/affiliations/internal/affiliation/handlers"
	"github.com/eventia/affiliations/internal/affiliation/workflow"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config struct for YAML configuration
type Config struct {
	HTTPPort       int      `yaml:"HTTP_PORT"`
	BackendURL     string   `yaml:"BACKEND_URL"`
	BackendTimeout int      `yaml:"BACKEND_TIMEOUT_SECONDS"`
	JWTSecret      string   `yaml:"JWT_SECRET"`
	KafkaBrokers   []string `yaml:"KAFKA_BROKERS"`
	Topic          string   `yaml:"TOPIC"`
	AllowedOrigins []string `yaml:"ALLOWED_ORIGINS"`
}

func main() {
	logger := initLogger()
	defer func(logger *zap.Logger) {
		err := logger.Sync()
		if err != nil {
			logger.Error("failed to sync logger", zap.Error(err))
		}
	}(logger)

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	client := gateway.NewClient(&gateway.Config{
		BaseURL: cfg.BackendURL,
		Timeout: time.Duration(cfg.BackendTimeout) * time.Second,
	}, logger)

	if err := waitForBackend(client); err != nil {
		logger.Fatal("backend not reachable", zap.Error(err))
	}

	producer, err := events.NewProducer(cfg.KafkaBrokers, logger, cfg.Topic)
	if err != nil {
		logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	workflowSvc := workflow.NewService(client, producer, logger)
	handler := handlers.NewHandler(workflowSvc, client, logger)
	router := handlers.NewRouter(handler, cfg.JWTSecret, cfg.AllowedOrigins, logger)
	server := handlers.NewServer(cfg.HTTPPort, router, logger)

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	waitForShutdown(server, logger)
}

// initLogger initializes a Zap production logger.
func initLogger() *zap.Logger {
	logger, _ := zap.NewProduction()
	return logger
}

// loadConfig loads configuration. Use real config tooling (e.g. Viper) in production.
func loadConfig() (*Config, error) {
	configPath := filepath.Join("internal", "affiliation", "config", "config.yaml")
	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	var cfg Config
	err = yaml.Unmarshal(file, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// waitForBackend probes the backend until it answers. Startup is the
// only place a retry loop lives; workflow operations are never retried.
func waitForBackend(client *gateway.Client) error {
	return backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return client.Ping(ctx)
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 10))
}

// waitForShutdown blocks until an interrupt or SIGTERM is received, then shuts down the server.
func waitForShutdown(server *handlers.Server, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	server.Stop()
	logger.Info("Server stopped properly")
}
