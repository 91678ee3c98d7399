package classifier

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/config"
)

// ONNXClassifier runs a fine-tuned sequence classification model over the
// masked body and picks the highest-scoring category.
type ONNXClassifier struct {
	tokenizer *tokenizers.Tokenizer
	session   *ort.DynamicAdvancedSession
	maxLength int
	logger    *zap.Logger
	mu        sync.Mutex
}

// NewONNXClassifier loads the tokenizer and model session.
func NewONNXClassifier(cfg config.ClassifierConfig, logger *zap.Logger) (*ONNXClassifier, error) {
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

	logger.Info("ONNX classifier ready",
		zap.String("model", cfg.ModelPath),
		zap.Int("max_length", maxLength))

	return &ONNXClassifier{
		tokenizer: tk,
		session:   session,
		maxLength: maxLength,
		logger:    logger,
	}, nil
}

// Name identifies the classifier in logs.
func (c *ONNXClassifier) Name() string { return "onnx" }

// Classify tokenizes the masked body, runs the model, and returns the
// argmax category.
func (c *ONNXClassifier) Classify(ctx context.Context, maskedText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	enc := c.tokenizer.EncodeWithOptions(maskedText, true,
		tokenizers.WithReturnAttentionMask(),
	)

	seqLen := len(enc.IDs)
	if seqLen > c.maxLength {
		seqLen = c.maxLength
	}
	if seqLen == 0 {
		return "", fmt.Errorf("tokenizer produced no tokens")
	}

	inputIDs := make([]int64, seqLen)
	attention := make([]int64, seqLen)
	for i := 0; i < seqLen; i++ {
		inputIDs[i] = int64(enc.IDs[i])
		attention[i] = int64(enc.AttentionMask[i])
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor(shape, inputIDs)
	if err != nil {
		return "", fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, attention)
	if err != nil {
		return "", fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	outputs := []ort.Value{nil}
	if err := c.session.Run([]ort.Value{idsTensor, maskTensor}, outputs); err != nil {
		return "", fmt.Errorf("inference failed: %w", err)
	}
	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return "", fmt.Errorf("unexpected logits tensor type")
	}
	defer logitsTensor.Destroy()

	logits := logitsTensor.GetData()
	if len(logits) < len(Categories) {
		return "", fmt.Errorf("logits shape mismatch: got %d values for %d categories",
			len(logits), len(Categories))
	}

	best, bestScore := 0, logits[0]
	for i := 1; i < len(Categories); i++ {
		if logits[i] > bestScore {
			best, bestScore = i, logits[i]
		}
	}
	return Categories[best], nil
}

// Close releases the tokenizer and session.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Destroy()
		c.session = nil
	}
	if c.tokenizer != nil {
		c.tokenizer.Close()
		c.tokenizer = nil
	}
	return nil
}
