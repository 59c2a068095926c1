package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealflow-ai/qualification-platform/internal/llm"
	"github.com/dealflow-ai/qualification-platform/internal/meddic"
	"github.com/dealflow-ai/qualification-platform/internal/model"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
)

type fakeLLM struct {
	responses []string
	errs      []error
	calls     int
	lastReq   *llm.CompletionRequest
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	i := f.calls
	f.calls++
	f.lastReq = req

	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	content := ""
	if i < len(f.responses) {
		content = f.responses[i]
	} else if len(f.responses) > 0 {
		content = f.responses[len(f.responses)-1]
	}
	return &llm.CompletionResponse{Content: content, Model: "fake-model"}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

const goodResponse = `{
	"contact": {"name": "Sarah Chen", "email": "sarah@acme.com", "title": "VP of Operations"},
	"account": {"name": "Acme Corp", "industry": "Manufacturing", "size": "500"},
	"opportunity": {"amount": "$250,000", "close_date": "end of Q3"},
	"meddic": {
		"metrics": "30% reduction in processing time",
		"identify_pain": "manual reconciliation eats two days a week"
	}
}`

func newExtractor(client llm.Client) *Extractor {
	return New(client, "", time.Second, 0, logger.NewNop())
}

func TestExtractTranscript(t *testing.T) {
	client := &fakeLLM{responses: []string{goodResponse}}
	e := newExtractor(client)

	rec, err := e.Extract(context.Background(), "the transcript", nil)
	require.NoError(t, err)

	assert.Equal(t, "Sarah Chen", rec.Contact.Name)
	assert.Equal(t, "Acme Corp", rec.Account.Name)
	assert.Equal(t, "$250,000", rec.Opportunity.Amount)
	assert.Equal(t, "30% reduction in processing time", rec.MEDDIC[meddic.FieldMetrics])
	assert.Equal(t, "the transcript", rec.SourceText)
	assert.Equal(t, 1, client.calls)
}

func TestExtractStripsMarkdownFences(t *testing.T) {
	client := &fakeLLM{responses: []string{"```json\n" + goodResponse + "\n```"}}
	e := newExtractor(client)

	rec, err := e.Extract(context.Background(), "the transcript", nil)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", rec.Account.Name)
}

func TestExtractEmptyInput(t *testing.T) {
	client := &fakeLLM{}
	e := newExtractor(client)

	_, err := e.Extract(context.Background(), "   \n\t ", nil)
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, 0, client.calls, "no model call for empty input")
}

func TestExtractMalformedNotRetried(t *testing.T) {
	client := &fakeLLM{responses: []string{"I'm sorry, I can't help with that."}}
	e := New(client, "", time.Second, 3, logger.NewNop())

	_, err := e.Extract(context.Background(), "the transcript", nil)
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, 1, client.calls, "malformed responses must not be retried")
}

func TestExtractPermanentErrorNotRetried(t *testing.T) {
	client := &fakeLLM{errs: []error{errors.New("invalid api key")}}
	e := New(client, "", time.Second, 3, logger.NewNop())

	_, err := e.Extract(context.Background(), "the transcript", nil)
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
}

func TestExtractTimeoutRetried(t *testing.T) {
	client := &fakeLLM{
		errs:      []error{context.DeadlineExceeded, nil},
		responses: []string{"", goodResponse},
	}
	e := New(client, "", time.Second, 1, logger.NewNop())

	rec, err := e.Extract(context.Background(), "the transcript", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, "Acme Corp", rec.Account.Name)
}

func TestExtractTimeoutExhaustsRetries(t *testing.T) {
	client := &fakeLLM{
		errs: []error{context.DeadlineExceeded, context.DeadlineExceeded},
	}
	e := New(client, "", time.Second, 1, logger.NewNop())

	_, err := e.Extract(context.Background(), "the transcript", nil)
	require.ErrorIs(t, err, ErrExtractionTimeout)
	assert.Equal(t, 2, client.calls)
}

func TestExtractFollowUpPromptListsOutstandingFields(t *testing.T) {
	client := &fakeLLM{responses: []string{goodResponse}}
	e := newExtractor(client)

	known := model.NewSalesCallRecord()
	known.MEDDIC[meddic.FieldMetrics] = "30% faster"
	known.MEDDIC[meddic.FieldChampion] = "Sarah"

	_, err := e.Extract(context.Background(), "the buyer is the CFO", known)
	require.NoError(t, err)

	require.NotNil(t, client.lastReq)
	require.Len(t, client.lastReq.Messages, 1)
	prompt := client.lastReq.Messages[0].Content
	assert.Contains(t, prompt, "Outstanding fields:")
	assert.Contains(t, prompt, meddic.FieldEconomicBuyer)
	assert.Contains(t, prompt, "Already known")
	assert.Contains(t, prompt, "30% faster")
}
