package pii

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/logger"
	"go.uber.org/zap"
)

// ErrEmptyText is returned when a caller submits empty or whitespace-only
// input; detection is never attempted on degenerate text.
var ErrEmptyText = errors.New("input text is empty")

// Provider produces candidate entities for unstructured PII classes. The
// engine works with any conforming implementation; candidates are tagged
// SourceNER and enter reconciliation like any other producer's.
type Provider interface {
	Name() string
	Detect(ctx context.Context, text string) ([]Entity, error)
}

// Masker runs the full detection pipeline: pattern scanners and the NER
// provider in parallel, contextual verification, reconciliation, masking.
type Masker struct {
	ner     Provider
	enabled map[EntityType]bool
	window  int
	logger  *logger.Logger
}

// New creates a masker from the detection configuration.
func New(cfg config.DetectionConfig, ner Provider, log *logger.Logger) (*Masker, error) {
	enabled, err := resolveDetectors(cfg.Detectors)
	if err != nil {
		return nil, fmt.Errorf("failed to configure detectors: %w", err)
	}

	window := cfg.ContextWindow
	if window <= 0 {
		window = DefaultContextWindow
	}

	m := &Masker{
		ner:     ner,
		enabled: enabled,
		window:  window,
		logger:  log,
	}

	nerName := "none"
	if ner != nil {
		nerName = ner.Name()
	}
	log.Info("PII masker initialized",
		zap.Int("pattern_rules", len(enabled)),
		zap.Int("context_window", window),
		zap.String("ner_provider", nerName),
	)
	return m, nil
}

// resolveDetectors expands the configured detector list ("all" or explicit
// class names) into the enabled set.
func resolveDetectors(names []string) (map[EntityType]bool, error) {
	enabled := make(map[EntityType]bool, len(patternRules))
	for _, name := range names {
		if name == "all" {
			for _, rule := range patternRules {
				enabled[rule.Type] = true
			}
			continue
		}
		found := false
		for _, rule := range patternRules {
			if string(rule.Type) == name {
				enabled[rule.Type] = true
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown detector: %s", name)
		}
	}
	return enabled, nil
}

// ProcessText detects, verifies, reconciles, and masks PII in one text.
// Pattern classes and the NER provider run concurrently; reconciliation is
// the per-request barrier. The call is pure with respect to shared state
// and safe to run in parallel across requests.
func (m *Masker) ProcessText(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	var (
		wg         sync.WaitGroup
		patternOut []Entity
		nerOut     []Entity
		nerErr     error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		patternOut = DetectPatterns(text, m.enabled)
	}()

	if m.ner != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			nerOut, nerErr = m.ner.Detect(ctx, text)
		}()
	}
	wg.Wait()

	if nerErr != nil {
		return nil, fmt.Errorf("ner detection failed: %w", nerErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := make([]Entity, 0, len(patternOut)+len(nerOut))
	for _, cand := range patternOut {
		if NeedsVerification(cand.Type) && !VerifyContext(text, cand, m.window) {
			continue
		}
		candidates = append(candidates, cand)
	}
	candidates = append(candidates, nerOut...)

	entities := Reconcile(candidates)
	masked, manifest, err := Mask(text, entities)
	if err != nil {
		return nil, err
	}

	findings := summarize(entities)
	if len(findings) > 0 {
		m.logger.Debug("PII detected and masked",
			zap.Int("entities", len(entities)),
			zap.Any("findings", findings),
		)
	}

	return &Result{
		MaskedText: masked,
		Entities:   entities,
		Manifest:   manifest,
		Findings:   findings,
		Original:   text,
	}, nil
}

// summarize aggregates an entity set into type/count findings, ordered by
// type name so output is stable.
func summarize(entities []Entity) []Finding {
	counts := make(map[EntityType]int)
	for _, e := range entities {
		counts[e.Type]++
	}

	types := make([]EntityType, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	findings := make([]Finding, 0, len(types))
	for _, t := range types {
		findings = append(findings, Finding{EntityType: t, Count: counts[t]})
	}
	return findings
}
