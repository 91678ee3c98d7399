package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/classifier"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/etl"
	"github.com/mailsift/mailsift/internal/logger"
	"github.com/mailsift/mailsift/internal/ner"
	"github.com/mailsift/mailsift/internal/pii"
	"github.com/mailsift/mailsift/internal/vault"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		inputFile  = flag.String("input", "", "Input dataset file (CSV, Parquet, or JSON lines)")
		exportPath = flag.String("export", "", "Write masked rows as a Parquet file after ingestion")
		batchSize  = flag.Int("batch-size", 0, "Override configured batch size")
		workers    = flag.Int("workers", 0, "Override configured worker count")
		classify   = flag.Bool("classify", false, "Classify each masked email during ingestion")
	)
	flag.Parse()

	if *inputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s --input dataset.csv [options]\n\nOptions:\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *batchSize > 0 {
		cfg.ETL.BatchSize = *batchSize
	}
	if *workers > 0 {
		cfg.ETL.WorkerCount = *workers
	}
	if *classify {
		cfg.ETL.Classify = true
	}

	log.Info("Starting mailsift dataset ingestion",
		zap.String("input", *inputFile),
		zap.Int("batch_size", cfg.ETL.BatchSize),
		zap.Int("workers", cfg.ETL.WorkerCount))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling ingestion")
		cancel()
	}()

	if _, err := os.Stat(*inputFile); os.IsNotExist(err) {
		log.Fatal("Input file does not exist", zap.String("file", *inputFile))
	}

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

	var cls classifier.Classifier
	if cfg.ETL.Classify {
		cls, err = classifier.New(cfg.Classifier, log.Logger)
		if err != nil {
			log.Fatal("Failed to initialize classifier", zap.Error(err))
		}
		defer cls.Close()
	}

	store, err := newVault(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize vault", zap.Error(err))
	}
	defer store.Close()

	pipeline := etl.NewPipeline(masker, store, cls, cfg.ETL, log.Logger)

	result, err := pipeline.ProcessFile(ctx, *inputFile)
	if err != nil {
		log.Fatal("Ingestion failed", zap.Error(err))
	}

	log.Info("Ingestion finished",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("duplicates", result.Duplicates),
		zap.Int64("entities_masked", result.EntitiesMasked),
		zap.Duration("duration", result.Duration),
		zap.Float64("records_per_second",
			float64(result.TotalRecords)/result.Duration.Seconds()))
	if len(result.Errors) > 0 {
		log.Warn("Ingestion completed with errors", zap.Strings("errors", result.Errors))
	}

	if *exportPath != "" {
		if err := pipeline.ExportMasked(*exportPath); err != nil {
			log.Fatal("Export failed", zap.Error(err))
		}
	}
}

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
