package etl

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/logger"
	"github.com/mailsift/mailsift/internal/pii"
	"github.com/mailsift/mailsift/internal/vault"
)

func testPipeline(t *testing.T, v vault.Vault) *Pipeline {
	t.Helper()
	masker, err := pii.New(config.DetectionConfig{
		Enabled:   true,
		Detectors: []string{"all"},
	}, nil, logger.Nop())
	if err != nil {
		t.Fatalf("pii.New: %v", err)
	}
	return NewPipeline(masker, v, nil, config.ETLConfig{
		BatchSize:      10,
		WorkerCount:    2,
		MaxRetries:     1,
		RetryDelay:     time.Millisecond,
		ProgressReport: 100,
	}, zap.NewNop())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestProcessFileCSV(t *testing.T) {
	csv := "email,type\n" +
		"\"Hi, mail me at a@b.co thanks\",Request\n" +
		"\"Server down, call 555-123-4567 now\",Incident\n"
	path := writeFile(t, "mails.csv", csv)

	store := vault.NewMemory("k")
	p := testPipeline(t, store)

	result, err := p.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	if result.TotalRecords != 2 || result.ProcessedOK != 2 {
		t.Errorf("result = %+v, want 2 records processed", result)
	}
	if result.ProcessedFailed != 0 {
		t.Errorf("failed = %d, want 0", result.ProcessedFailed)
	}
	if result.EntitiesMasked != 2 {
		t.Errorf("entities_masked = %d, want 2 (one email, one phone)", result.EntitiesMasked)
	}
}

func TestProcessFileCSVCarriesCategory(t *testing.T) {
	csv := "email,type\n" +
		"\"mail me at a@b.co\",Incident\n"
	path := writeFile(t, "mails.csv", csv)

	store := vault.NewMemory("k")
	p := testPipeline(t, store)

	if _, err := p.ProcessFile(context.Background(), path); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	id := vault.RecordID("mail me at [EMAIL_1]", pii.Manifest{
		{PlaceholderIndex: 1, Type: pii.TypeEmail, Value: "a@b.co", Span: [2]int{11, 17}},
	})
	rec, err := store.Masked(context.Background(), id)
	if err != nil {
		t.Fatalf("Masked: %v", err)
	}
	if rec.Category != "Incident" {
		t.Errorf("category = %q, want Incident from the dataset column", rec.Category)
	}
}

func TestProcessFileCountsDuplicates(t *testing.T) {
	csv := "email,type\n" +
		"\"mail me at a@b.co\",Request\n" +
		"\"mail me at a@b.co\",Request\n"
	path := writeFile(t, "mails.csv", csv)

	store := vault.NewMemory("k")
	p := testPipeline(t, store)

	result, err := p.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if result.Duplicates != 1 {
		t.Errorf("duplicates = %d, want 1", result.Duplicates)
	}
}

func TestProcessFileJSONLines(t *testing.T) {
	jsonl := `{"email":"ping a@b.co about this","type":"Request"}` + "\n" +
		`{"email":"also c@d.co please","type":"Request"}` + "\n"
	path := writeFile(t, "mails.json", jsonl)

	store := vault.NewMemory("k")
	p := testPipeline(t, store)

	result, err := p.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}
	if result.ProcessedOK != 2 {
		t.Errorf("processed_ok = %d, want 2", result.ProcessedOK)
	}
}

func TestDetectFileFormat(t *testing.T) {
	tests := map[string]FileFormat{
		"data.csv":     FormatCSV,
		"data.parquet": FormatParquet,
		"data.json":    FormatJSON,
		"data.jsonl":   FormatJSON,
		"data.txt":     FormatCSV,
	}
	for name, want := range tests {
		if got := DetectFileFormat(name); got != want {
			t.Errorf("DetectFileFormat(%s) = %s, want %s", name, got, want)
		}
	}
}

func TestExportMaskedWithoutRun(t *testing.T) {
	p := testPipeline(t, vault.NewMemory("k"))
	if err := p.ExportMasked(filepath.Join(t.TempDir(), "out.parquet")); err == nil {
		t.Fatalf("expected error when nothing was ingested")
	}
}
