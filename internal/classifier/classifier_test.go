package classifier

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/mailsift/mailsift/internal/config"
)

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier(zap.NewNop())

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "incident language",
			text: "The payment service is down and every request crashed with an error",
			want: CategoryIncident,
		},
		{
			name: "problem language",
			text: "This keeps happening again, the sync is slow every time and the issue persists",
			want: CategoryProblem,
		},
		{
			name: "change language",
			text: "Please update my billing address and migrate the account to the new plan",
			want: CategoryChange,
		},
		{
			name: "request language",
			text: "I would like a new account, please provide credentials and grant dashboard access",
			want: CategoryRequest,
		},
		{
			name: "no keywords defaults to request",
			text: "hello [FULL_NAME_1], see [EMAIL_1]",
			want: CategoryRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestKeywordClassifierDeterministic(t *testing.T) {
	c := NewKeywordClassifier(zap.NewNop())
	text := "the server is down, need access restored"

	first, err := c.Classify(context.Background(), text)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	for i := 0; i < 20; i++ {
		got, err := c.Classify(context.Background(), text)
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		if got != first {
			t.Fatalf("classification flipped: %q vs %q", got, first)
		}
	}
}

func TestKeywordClassifierCancelledContext(t *testing.T) {
	c := NewKeywordClassifier(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Classify(ctx, "anything"); err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}

func TestNewRejectsUnknownType(t *testing.T) {
	if _, err := New(config.ClassifierConfig{Type: "bayes"}, zap.NewNop()); err == nil {
		t.Fatalf("expected error for unknown classifier type")
	}
}
