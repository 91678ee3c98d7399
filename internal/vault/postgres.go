package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/config"
)

// Store is the PostgreSQL-backed vault.
type Store struct {
	db        *sqlx.DB
	accessKey string
	logger    *zap.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS masked_records (
	id            TEXT PRIMARY KEY,
	masked_text   TEXT NOT NULL,
	original_text TEXT NOT NULL,
	entities      JSONB NOT NULL,
	category      TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_masked_records_masked_text
	ON masked_records (masked_text, created_at DESC);`

// NewStore connects to PostgreSQL and ensures the schema exists.
func NewStore(cfg config.VaultConfig, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	store := &Store{
		db:        db,
		accessKey: cfg.AccessKey,
		logger:    logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	logger.Info("Vault store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return store, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save writes a record atomically. The insert is an upsert on the
// content-derived id, so concurrent saves of the same content cannot lose
// records and re-saving is idempotent.
func (s *Store) Save(ctx context.Context, rec *MaskedRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = RecordID(rec.MaskedText, rec.Entities)
	}

	entities, err := json.Marshal(rec.Entities)
	if err != nil {
		return "", fmt.Errorf("failed to encode manifest: %w", err)
	}

	query := `
		INSERT INTO masked_records (id, masked_text, original_text, entities, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.MaskedText, rec.OriginalText, entities, rec.Category); err != nil {
		s.logger.Error("Failed to save masked record", zap.Error(err))
		return "", fmt.Errorf("failed to save record: %w", err)
	}

	s.logger.Debug("Masked record saved", zap.String("record_id", rec.ID))
	return rec.ID, nil
}

// Lookup returns the newest record matching the masked text exactly. The
// access key is verified before the database is touched.
func (s *Store) Lookup(ctx context.Context, maskedText, accessKey string) (*MaskedRecord, error) {
	if err := checkKey(s.accessKey, accessKey); err != nil {
		return nil, err
	}

	query := `
		SELECT id, masked_text, original_text, entities, category, created_at
		FROM masked_records
		WHERE masked_text = $1
		ORDER BY created_at DESC
		LIMIT 1`

	return s.queryRecord(ctx, query, maskedText)
}

// LookupID returns the record with the given id, credential-gated.
func (s *Store) LookupID(ctx context.Context, id, accessKey string) (*MaskedRecord, error) {
	if err := checkKey(s.accessKey, accessKey); err != nil {
		return nil, err
	}

	query := `
		SELECT id, masked_text, original_text, entities, category, created_at
		FROM masked_records
		WHERE id = $1`

	return s.queryRecord(ctx, query, id)
}

// Masked returns the redacted view of a record by id.
func (s *Store) Masked(ctx context.Context, id string) (*MaskedRecord, error) {
	query := `
		SELECT id, masked_text, original_text, entities, category, created_at
		FROM masked_records
		WHERE id = $1`

	rec, err := s.queryRecord(ctx, query, id)
	if err != nil {
		return nil, err
	}
	return rec.Redacted(), nil
}

// SetCategory attaches the classifier's category to a stored record.
func (s *Store) SetCategory(ctx context.Context, id, category string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE masked_records SET category = $2 WHERE id = $1`, id, category)
	if err != nil {
		return fmt.Errorf("failed to set category: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryRecord(ctx context.Context, query string, arg interface{}) (*MaskedRecord, error) {
	var (
		rec      MaskedRecord
		entities []byte
	)

	row := s.db.QueryRowContext(ctx, query, arg)
	err := row.Scan(&rec.ID, &rec.MaskedText, &rec.OriginalText, &entities,
		&rec.Category, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("Vault lookup failed", zap.Error(err))
		return nil, fmt.Errorf("vault lookup failed: %w", err)
	}

	if err := json.Unmarshal(entities, &rec.Entities); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &rec, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var _ Vault = (*Store)(nil)

// maskDatabaseURL masks sensitive information in database URL for logging
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
