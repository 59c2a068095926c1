// Package extract converts transcript text and follow-up answers into typed
// partial sales records via an external text-understanding call.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/dealflow-ai/qualification-platform/internal/llm"
	"github.com/dealflow-ai/qualification-platform/internal/model"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
	"github.com/dealflow-ai/qualification-platform/pkg/metrics"
)

// Extractor delegates to an LLM and defensively parses its output.
type Extractor struct {
	client     llm.Client
	modelName  string
	timeout    time.Duration
	maxRetries int
	logger     *logger.Logger
}

// New creates an extractor. maxRetries bounds retries for timeout-class
// failures only; malformed responses are never retried.
func New(client llm.Client, modelName string, timeout time.Duration, maxRetries int, log *logger.Logger) *Extractor {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Extractor{
		client:     client,
		modelName:  modelName,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     log,
	}
}

// Extract turns text into a typed partial record. When known is non-nil the
// call is a follow-up turn: the prompt is seeded with the already-known
// fields so the model extracts only the delta. The merge itself is the
// caller's job.
func (e *Extractor) Extract(ctx context.Context, text string, known *model.SalesCallRecord) (*model.SalesCallRecord, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	var prompt string
	if known != nil {
		prompt = followUpPrompt(text, known)
	} else {
		prompt = transcriptPrompt(text)
	}

	req := &llm.CompletionRequest{
		Model:  e.modelName,
		System: systemPrompt,
		Messages: []llm.ChatMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: 4096,
	}

	var resp *llm.CompletionResponse

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		start := time.Now()
		r, err := e.client.Complete(callCtx, req)
		elapsed := time.Since(start).Seconds()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
				metrics.RecordExtraction(e.client.Name(), "timeout", elapsed)
				e.logger.Warn("extraction call timed out, will retry",
					zap.Duration("timeout", e.timeout))
				return fmt.Errorf("%w: %v", ErrExtractionTimeout, err)
			}
			metrics.RecordExtraction(e.client.Name(), "error", elapsed)
			return backoff.Permanent(err)
		}

		metrics.RecordExtraction(e.client.Name(), "ok", elapsed)
		metrics.RecordLLMTokens(r.Model, r.TokensIn, r.TokensOut)
		resp = r
		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.maxRetries)),
		ctx,
	)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}

	rec, err := parseResponse(resp.Content)
	if err != nil {
		e.logger.Warn("extraction response unusable",
			zap.String("provider", e.client.Name()),
			zap.Int("response_len", len(resp.Content)))
		return nil, err
	}

	rec.SourceText = text
	return rec, nil
}
