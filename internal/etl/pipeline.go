// Package etl ingests mailbox datasets in bulk: each email is masked,
// saved to the vault, and optionally classified, with the masked rows
// exportable as a Parquet training set.
package etl

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/classifier"
	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/pii"
	"github.com/mailsift/mailsift/internal/vault"
)

// Pipeline runs dataset ingestion through the masking pipeline.
type Pipeline struct {
	masker     *pii.Masker
	vault      vault.Vault
	classifier classifier.Classifier // nil when classification is off
	cfg        config.ETLConfig
	logger     *zap.Logger

	mu       sync.Mutex
	exported []MaskedExport
}

// NewPipeline creates a pipeline. The classifier may be nil; ingestion
// then stores records without categories.
func NewPipeline(masker *pii.Masker, v vault.Vault, cls classifier.Classifier, cfg config.ETLConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		masker:     masker,
		vault:      v,
		classifier: cls,
		cfg:        cfg,
		logger:     logger,
	}
}

// ProcessFile ingests one dataset file.
func (p *Pipeline) ProcessFile(ctx context.Context, filePath string) (*Result, error) {
	start := time.Now()
	result := &Result{}

	format := DetectFileFormat(filePath)
	p.logger.Info("Starting dataset ingestion",
		zap.String("file", filePath),
		zap.String("format", string(format)),
		zap.Int("batch_size", p.cfg.BatchSize),
		zap.Int("workers", p.cfg.WorkerCount))

	p.mu.Lock()
	p.exported = nil
	p.mu.Unlock()

	var err error
	switch format {
	case FormatCSV:
		err = p.processCSV(ctx, filePath, result)
	case FormatParquet:
		err = p.processParquet(ctx, filePath, result)
	case FormatJSON:
		err = p.processJSON(ctx, filePath, result)
	default:
		err = fmt.Errorf("unsupported file format: %s", format)
	}
	if err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	p.logger.Info("Dataset ingestion completed",
		zap.Int64("total_records", result.TotalRecords),
		zap.Int64("processed_ok", result.ProcessedOK),
		zap.Int64("processed_failed", result.ProcessedFailed),
		zap.Int64("duplicates", result.Duplicates),
		zap.Int64("entities_masked", result.EntitiesMasked),
		zap.Duration("duration", result.Duration))

	return result, nil
}

func (p *Pipeline) processCSV(ctx context.Context, filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	emailCol := columnIndex(header, "email")
	if emailCol < 0 {
		return fmt.Errorf("CSV has no email column")
	}
	typeCol := columnIndex(header, "type")

	return p.processBatches(ctx, func() ([]*EmailRecord, error) {
		var batch []*EmailRecord
		for len(batch) < p.cfg.BatchSize {
			row, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read CSV record", zap.Error(err))
				continue
			}
			if emailCol >= len(row) {
				continue
			}
			rec := &EmailRecord{Email: strings.TrimSpace(row[emailCol])}
			if typeCol >= 0 && typeCol < len(row) {
				rec.Type = strings.TrimSpace(row[typeCol])
			}
			if rec.Email != "" {
				batch = append(batch, rec)
			}
		}
		return batch, nil
	}, result)
}

func (p *Pipeline) processParquet(ctx context.Context, filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open Parquet file: %w", err)
	}
	defer file.Close()

	reader := parquet.NewReader(file)
	defer reader.Close()

	return p.processBatches(ctx, func() ([]*EmailRecord, error) {
		var batch []*EmailRecord
		for len(batch) < p.cfg.BatchSize {
			var rec EmailRecord
			err := reader.Read(&rec)
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read Parquet record", zap.Error(err))
				continue
			}
			if strings.TrimSpace(rec.Email) != "" {
				cp := rec
				batch = append(batch, &cp)
			}
		}
		return batch, nil
	}, result)
}

func (p *Pipeline) processJSON(ctx context.Context, filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open JSON file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)

	return p.processBatches(ctx, func() ([]*EmailRecord, error) {
		var batch []*EmailRecord
		for len(batch) < p.cfg.BatchSize {
			var rec EmailRecord
			err := decoder.Decode(&rec)
			if err == io.EOF {
				break
			}
			if err != nil {
				p.logger.Warn("Failed to read JSON record", zap.Error(err))
				continue
			}
			if strings.TrimSpace(rec.Email) != "" {
				cp := rec
				batch = append(batch, &cp)
			}
		}
		return batch, nil
	}, result)
}

func (p *Pipeline) processBatches(ctx context.Context, readBatch func() ([]*EmailRecord, error), result *Result) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := readBatch()
		if err != nil {
			return fmt.Errorf("failed to read batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}

		p.processBatch(ctx, batch, result)
		result.TotalRecords += int64(len(batch))

		if p.cfg.ProgressReport > 0 && result.TotalRecords%int64(p.cfg.ProgressReport) == 0 {
			p.logger.Info("Ingestion progress",
				zap.Int64("records", result.TotalRecords),
				zap.Int64("failed", result.ProcessedFailed))
		}
	}
}

// processBatch fans a batch out over the worker pool. Each email is masked,
// saved, and optionally classified; failures are counted, not fatal.
func (p *Pipeline) processBatch(ctx context.Context, batch []*EmailRecord, result *Result) {
	workers := p.cfg.WorkerCount
	if workers <= 0 {
		workers = 1
	}

	var (
		wg         sync.WaitGroup
		jobs       = make(chan *EmailRecord)
		ok         int64
		failed     int64
		duplicates int64
		entities   int64
		errsMu     sync.Mutex
		errs       []string
	)

	detectStart := time.Now()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				if err := p.ingestOne(ctx, rec, &duplicates, &entities); err != nil {
					atomic.AddInt64(&failed, 1)
					errsMu.Lock()
					if len(errs) < 10 {
						errs = append(errs, err.Error())
					}
					errsMu.Unlock()
					continue
				}
				atomic.AddInt64(&ok, 1)
			}
		}()
	}

	for _, rec := range batch {
		select {
		case <-ctx.Done():
		case jobs <- rec:
		}
	}
	close(jobs)
	wg.Wait()

	result.ProcessedOK += atomic.LoadInt64(&ok)
	result.ProcessedFailed += atomic.LoadInt64(&failed)
	result.Duplicates += atomic.LoadInt64(&duplicates)
	result.EntitiesMasked += atomic.LoadInt64(&entities)
	result.DetectionTime += time.Since(detectStart)
	result.Errors = append(result.Errors, errs...)
}

// ingestOne masks one email, saves it, and classifies if configured.
// Transient save failures are retried per the retry config.
func (p *Pipeline) ingestOne(ctx context.Context, rec *EmailRecord, duplicates, entities *int64) error {
	res, err := p.masker.ProcessText(ctx, rec.Email)
	if err != nil {
		return fmt.Errorf("masking failed: %w", err)
	}
	atomic.AddInt64(entities, int64(len(res.Entities)))

	record := &vault.MaskedRecord{
		MaskedText:   res.MaskedText,
		OriginalText: res.Original,
		Entities:     res.Manifest,
	}
	record.ID = vault.RecordID(record.MaskedText, record.Entities)

	// The id is content-derived, so a repeated email is an exact hit.
	if _, lookupErr := p.vault.Masked(ctx, record.ID); lookupErr == nil {
		atomic.AddInt64(duplicates, 1)
		return nil
	}

	var id string
	for attempt := 0; ; attempt++ {
		id, err = p.vault.Save(ctx, record)
		if err == nil {
			break
		}
		if attempt >= p.cfg.MaxRetries {
			return fmt.Errorf("save failed after %d attempts: %w", attempt+1, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.RetryDelay):
		}
	}

	category := rec.Type
	if p.classifier != nil && p.cfg.Classify {
		category, err = p.classifier.Classify(ctx, res.MaskedText)
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}
	}
	if category != "" {
		if err := p.vault.SetCategory(ctx, id, category); err != nil {
			return fmt.Errorf("failed to set category: %w", err)
		}
	}

	p.mu.Lock()
	p.exported = append(p.exported, MaskedExport{
		RecordID:    id,
		MaskedEmail: res.MaskedText,
		Category:    category,
	})
	p.mu.Unlock()
	return nil
}

// ExportMasked writes the masked rows of the last run as a Parquet file
// suitable for classifier training.
func (p *Pipeline) ExportMasked(path string) error {
	p.mu.Lock()
	rows := make([]MaskedExport, len(p.exported))
	copy(rows, p.exported)
	p.mu.Unlock()

	if len(rows) == 0 {
		return fmt.Errorf("nothing to export")
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewWriter(file)
	for i := range rows {
		if err := writer.Write(&rows[i]); err != nil {
			return fmt.Errorf("failed to write export row: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize export: %w", err)
	}

	p.logger.Info("Masked dataset exported",
		zap.String("path", path),
		zap.Int("rows", len(rows)))
	return nil
}

func columnIndex(header []string, name string) int {
	for i, col := range header {
		if strings.EqualFold(strings.TrimSpace(col), name) {
			return i
		}
	}
	return -1
}
