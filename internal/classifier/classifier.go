// Package classifier assigns a support category to a masked email body.
// Classification runs on masked text only, so no PII reaches the model.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/config"
)

// Support categories. The set is closed; every classifier returns one of
// these.
const (
	CategoryChange   = "Change"
	CategoryIncident = "Incident"
	CategoryProblem  = "Problem"
	CategoryRequest  = "Request"
)

// Categories lists all categories in model label order.
var Categories = []string{CategoryChange, CategoryIncident, CategoryProblem, CategoryRequest}

// Classifier assigns a category to a masked email body.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, maskedText string) (string, error)
	Close() error
}

// New builds the configured classifier.
func New(cfg config.ClassifierConfig, logger *zap.Logger) (Classifier, error) {
	switch cfg.Type {
	case "onnx":
		return NewONNXClassifier(cfg, logger)
	case "keyword":
		return NewKeywordClassifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown classifier type: %s", cfg.Type)
	}
}

// KeywordClassifier is the model-free fallback. It scores categories by
// keyword hits and defaults to Request, the most common support category.
type KeywordClassifier struct {
	logger *zap.Logger
}

// NewKeywordClassifier creates the keyword-scoring classifier.
func NewKeywordClassifier(logger *zap.Logger) *KeywordClassifier {
	return &KeywordClassifier{logger: logger}
}

var categoryKeywords = map[string][]string{
	CategoryIncident: {
		"outage", "down", "crash", "crashed", "error", "failed", "failure",
		"unavailable", "not working", "broken", "urgent", "incident",
	},
	CategoryProblem: {
		"recurring", "again", "keeps", "repeatedly", "root cause",
		"intermittent", "slow", "degraded", "every time", "persists",
	},
	CategoryChange: {
		"update", "change", "modify", "upgrade", "migrate", "switch",
		"replace", "rename", "reschedule", "move",
	},
	CategoryRequest: {
		"request", "please provide", "need access", "would like", "how do i",
		"can you", "grant", "enable", "activate", "new account",
	},
}

// Name identifies the classifier in logs.
func (k *KeywordClassifier) Name() string { return "keyword" }

// Classify scores each category by keyword occurrences in the lowercased
// text. Ties resolve in Categories order; zero hits means Request.
func (k *KeywordClassifier) Classify(ctx context.Context, maskedText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lower := strings.ToLower(maskedText)
	best, bestScore := CategoryRequest, 0
	for _, cat := range Categories {
		score := 0
		for _, kw := range categoryKeywords[cat] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best, bestScore = cat, score
		}
	}
	return best, nil
}

// Close is a no-op for the keyword classifier.
func (k *KeywordClassifier) Close() error { return nil }
