package ner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/config"
	"github.com/mailsift/mailsift/internal/pii"
)

// Provider is the interface name providers implement; it is the engine's
// pii.Provider contract.
type Provider = pii.Provider

// ONNXProvider detects personal names with a multilingual token
// classification model served through ONNX Runtime.
type ONNXProvider struct {
	tokenizer *tokenizers.Tokenizer
	session   *ort.DynamicAdvancedSession
	id2label  map[int]string
	maxLength int
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewONNXProvider loads the tokenizer, label mapping, and model session.
func NewONNXProvider(cfg config.NERConfig, logger *zap.Logger) (*ONNXProvider, error) {
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	} else if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX Runtime environment: %w", err)
		}
	}

	tk, err := tokenizers.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	id2label, err := loadLabels(cfg.LabelsPath)
	if err != nil {
		tk.Close()
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask"}, []string{"logits"}, nil)
	if err != nil {
		tk.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 512
	}

	logger.Info("ONNX name provider ready",
		zap.String("model", cfg.ModelPath),
		zap.Int("labels", len(id2label)),
		zap.Int("max_length", maxLength))

	return &ONNXProvider{
		tokenizer: tk,
		session:   session,
		id2label:  id2label,
		maxLength: maxLength,
		logger:    logger,
	}, nil
}

// loadLabels reads the id2label mapping exported alongside the model.
func loadLabels(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read label mapping: %w", err)
	}

	var raw struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse label mapping: %w", err)
	}

	id2label := make(map[int]string, len(raw.ID2Label))
	for idStr, label := range raw.ID2Label {
		id, err := strconv.Atoi(idStr)
		if err != nil {
			return nil, fmt.Errorf("invalid label id %q: %w", idStr, err)
		}
		id2label[id] = label
	}
	if len(id2label) == 0 {
		return nil, fmt.Errorf("label mapping is empty")
	}
	return id2label, nil
}

// Name identifies the provider in logs.
func (p *ONNXProvider) Name() string { return "onnx" }

// Detect runs token classification over the text and returns full_name
// candidates with byte spans into the original text.
func (p *ONNXProvider) Detect(ctx context.Context, text string) ([]pii.Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	enc := p.tokenizer.EncodeWithOptions(text, true,
		tokenizers.WithReturnAttentionMask(),
		tokenizers.WithReturnOffsets(),
	)

	seqLen := len(enc.IDs)
	if seqLen > p.maxLength {
		seqLen = p.maxLength
	}
	if seqLen == 0 {
		return nil, nil
	}

	inputIDs := make([]int64, seqLen)
	attention := make([]int64, seqLen)
	for i := 0; i < seqLen; i++ {
		inputIDs[i] = int64(enc.IDs[i])
		attention[i] = int64(enc.AttentionMask[i])
	}

	labels, err := p.run(inputIDs, attention)
	if err != nil {
		return nil, err
	}

	return p.collectNames(text, enc.Offsets[:seqLen], attention, labels), nil
}

// run executes the session and returns the argmax label per token. The
// session holds per-call tensor state, so calls are serialized.
func (p *ONNXProvider) run(inputIDs, attention []int64) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	seqLen := len(inputIDs)
	shape := ort.NewShape(1, int64(seqLen))

	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attention)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := p.session.Run([]ort.Value{idsTensor, maskTensor}, outputs); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}
	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected logits tensor type")
	}
	defer logitsTensor.Destroy()

	logits := logitsTensor.GetData()
	numLabels := len(p.id2label)
	if len(logits) < seqLen*numLabels {
		return nil, fmt.Errorf("logits shape mismatch: got %d values for %d tokens", len(logits), seqLen)
	}

	labels := make([]string, seqLen)
	for i := 0; i < seqLen; i++ {
		best, bestScore := 0, logits[i*numLabels]
		for j := 1; j < numLabels; j++ {
			if score := logits[i*numLabels+j]; score > bestScore {
				best, bestScore = j, score
			}
		}
		labels[i] = p.id2label[best]
	}
	return labels, nil
}

// collectNames groups contiguous person-labeled tokens into entities.
func (p *ONNXProvider) collectNames(text string, offsets []tokenizers.Offset, attention []int64, labels []string) []pii.Entity {
	var (
		out        []pii.Entity
		start, end = -1, -1
	)

	flush := func() {
		if start >= 0 && end > start && end <= len(text) {
			out = append(out, pii.Entity{
				Type:   pii.TypeFullName,
				Start:  start,
				End:    end,
				Value:  text[start:end],
				Source: pii.SourceNER,
			})
		}
		start, end = -1, -1
	}

	for i, label := range labels {
		// Special tokens carry a zero-width offset; skip them without
		// breaking a span in progress.
		if attention[i] == 0 || offsets[i][0] == offsets[i][1] {
			continue
		}
		if !isPersonLabel(label) {
			flush()
			continue
		}
		// B- opens a new entity even when it directly follows one.
		if strings.HasPrefix(label, "B-") && start >= 0 {
			flush()
		}
		tokStart, tokEnd := int(offsets[i][0]), int(offsets[i][1])
		if start < 0 {
			start = tokStart
		}
		end = tokEnd
	}
	flush()
	return out
}

// isPersonLabel matches the person tags emitted by common multilingual NER
// models (B-PER/I-PER, B-PERSON/I-PERSON).
func isPersonLabel(label string) bool {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
	return trimmed == "PER" || trimmed == "PERSON"
}

// Close releases the tokenizer and session.
func (p *ONNXProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
	if p.tokenizer != nil {
		p.tokenizer.Close()
		p.tokenizer = nil
	}
	return nil
}
