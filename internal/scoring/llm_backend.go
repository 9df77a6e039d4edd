package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"basegraph.app/triage/common/llm"
)

const adjustPromptVersion = "v1"

var adjustSchema = llm.GenerateSchema[AdjustmentReply]()

// LLMBackend adapts an llm.Client into a Backend, retrying transient
// provider failures with exponential backoff.
type LLMBackend struct {
	client     llm.Client
	maxRetries uint64
	baseDelay  time.Duration
}

func NewLLMBackend(client llm.Client, maxRetries int) *LLMBackend {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &LLMBackend{
		client:     client,
		maxRetries: uint64(maxRetries),
		baseDelay:  time.Second,
	}
}

func (b *LLMBackend) Adjust(ctx context.Context, prompt string) (string, error) {
	backoff := retry.WithMaxRetries(b.maxRetries, retry.NewExponential(b.baseDelay))

	var (
		content string
		attempt int
	)
	start := time.Now()
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		resp, err := b.client.Complete(ctx, llm.Request{
			UserPrompt:  prompt,
			SchemaName:  "urgency_adjustment",
			Schema:      adjustSchema,
			MaxTokens:   512,
			Temperature: llm.Temp(0.1),
		})
		if err != nil {
			if llm.IsRetryable(ctx, err) {
				slog.WarnContext(ctx, "urgency adjustment retry", "attempt", attempt, "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		content = resp.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("urgency adjustment after %d attempts: %w", attempt, err)
	}

	slog.DebugContext(ctx, "urgency adjustment completed",
		"model", b.client.Model(),
		"prompt_version", adjustPromptVersion,
		"attempts", attempt,
		"latency_ms", time.Since(start).Milliseconds())

	return content, nil
}
