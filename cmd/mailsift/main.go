package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/cache"
	"github.com/mailsift/mailsift/internal/classifier"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/logger"
	"github.com/mailsift/mailsift/internal/ner"
	"github.com/mailsift/mailsift/internal/pii"
	"github.com/mailsift/mailsift/internal/server"
	"github.com/mailsift/mailsift/internal/vault"
	"github.com/mailsift/mailsift/internal/websocket"
)

var (
	version = "1.0.0"
	commit  = "dev"
	date    = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
		healthCheck = flag.Bool("health-check", false, "Perform health check and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("mailsift %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	}

	if *healthCheck {
		performHealthCheck()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting mailsift",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("build_date", date),
		zap.Int("port", cfg.Server.Port),
	)

	nerProvider, err := ner.NewProvider(cfg.NER, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize NER provider", zap.Error(err))
	}
	if closer, ok := nerProvider.(*ner.ONNXProvider); ok {
		defer closer.Close()
	}

	masker, err := pii.New(cfg.Detection, nerProvider, log)
	if err != nil {
		log.Fatal("Failed to initialize masker", zap.Error(err))
	}

	cls, err := classifier.New(cfg.Classifier, log.Logger)
	if err != nil {
		log.Fatal("Failed to initialize classifier", zap.Error(err))
	}
	defer cls.Close()

	store, err := newVault(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize vault", zap.Error(err))
	}
	defer store.Close()

	var recordCache *cache.RecordCache
	if cfg.Cache.Enabled {
		recordCache, err = cache.NewRecordCache(cfg.Cache, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize record cache", zap.Error(err))
		}
		defer recordCache.Close()
	}

	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(cfg.WebSocket, log.Logger)
		go hub.Run()
	}

	srv := server.New(server.Options{
		Config:     cfg,
		Logger:     log,
		Masker:     masker,
		Classifier: cls,
		Vault:      store,
		Cache:      recordCache,
		Hub:        hub,
	})

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Error("Server error", zap.Error(err))
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			os.Exit(1)
		}

		log.Info("Server shutdown complete")
	}
}

// newVault selects the vault driver. The access key may come from the
// environment for parity with container deployments.
func newVault(cfg *config.Config, log *logger.Logger) (vault.Vault, error) {
	vaultCfg := cfg.Vault
	if key := os.Getenv("EMAIL_ACCESS_KEY"); key != "" {
		vaultCfg.AccessKey = key
	}

	switch vaultCfg.Driver {
	case "postgres":
		return vault.NewStore(vaultCfg, log.Logger)
	case "memory":
		log.Warn("Using in-memory vault; records will not survive restarts")
		return vault.NewMemory(vaultCfg.AccessKey), nil
	default:
		return nil, fmt.Errorf("unknown vault driver: %s", vaultCfg.Driver)
	}
}

// performHealthCheck performs a health check against the running server
func performHealthCheck() {
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	resp, err := client.Get("http://localhost:8080/health")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: HTTP %d\n", resp.StatusCode)
		os.Exit(1)
	}

	fmt.Println("Health check passed")
	os.Exit(0)
}
