package etl

import (
	"strings"
	"time"
)

// EmailRecord is a single email from an input dataset.
type EmailRecord struct {
	Email string `csv:"email" parquet:"email" json:"email"`
	Type  string `csv:"type" parquet:"type" json:"type"`
}

// MaskedExport is one row of the masked dataset written for classifier
// training. It carries no original text.
type MaskedExport struct {
	RecordID    string `parquet:"record_id" json:"record_id"`
	MaskedEmail string `parquet:"masked_email" json:"masked_email"`
	Category    string `parquet:"category" json:"category"`
}

// Result summarizes a dataset run.
type Result struct {
	TotalRecords    int64         `json:"total_records"`
	ProcessedOK     int64         `json:"processed_ok"`
	ProcessedFailed int64         `json:"processed_failed"`
	Duplicates      int64         `json:"duplicates"`
	EntitiesMasked  int64         `json:"entities_masked"`
	Duration        time.Duration `json:"duration"`
	DetectionTime   time.Duration `json:"detection_time"`
	DatabaseTime    time.Duration `json:"database_time"`
	Errors          []string      `json:"errors,omitempty"`
}

// FileFormat identifies a supported dataset format.
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat picks the format from the file extension. JSON input is
// expected as one object per line.
func DetectFileFormat(filename string) FileFormat {
	switch {
	case strings.HasSuffix(filename, ".parquet"):
		return FormatParquet
	case strings.HasSuffix(filename, ".json"), strings.HasSuffix(filename, ".jsonl"):
		return FormatJSON
	default:
		return FormatCSV
	}
}
