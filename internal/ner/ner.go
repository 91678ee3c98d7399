// Package ner provides name-entity providers for the detection pipeline.
// The engine consumes them through the pii.Provider interface, so any
// conforming implementation can supply unstructured candidates.
package ner

import (
	"fmt"

	"github.com/mailsift/mailsift/internal/config"
	"go.uber.org/zap"
)

// NewProvider builds the configured provider. "disabled" yields nil, which
// the masker treats as no unstructured producer.
func NewProvider(cfg config.NERConfig, logger *zap.Logger) (Provider, error) {
	switch cfg.Type {
	case "onnx":
		return NewONNXProvider(cfg, logger)
	case "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ner provider type: %s", cfg.Type)
	}
}
