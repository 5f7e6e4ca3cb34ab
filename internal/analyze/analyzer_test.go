package analyze

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veritrust/veritrust/internal/config"
	"github.com/veritrust/veritrust/internal/llm"
	"github.com/veritrust/veritrust/internal/models"
)

// scriptedProvider returns each queued outcome in order.
type scriptedProvider struct {
	mu       sync.Mutex
	outcomes []outcome
	calls    int
	block    chan struct{}
}

type outcome struct {
	reply string
	err   error
}

func (p *scriptedProvider) GenerateJSON(ctx context.Context, req llm.Request) (string, error) {
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls >= len(p.outcomes) {
		return "", errors.New("no scripted outcome left")
	}
	o := p.outcomes[p.calls]
	p.calls++
	return o.reply, o.err
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func testAnalysisConfig() *config.AnalysisConfig {
	return &config.AnalysisConfig{
		TimeoutSeconds: 5,
		MaxRetries:     2,
		MaxUploadBytes: 1 << 20,
		PreviewLength:  100,
	}
}

func textRequest() *models.VerifyRequest {
	return &models.VerifyRequest{
		Type:    models.ContentTypeText,
		Content: "the moon is made of cheese",
	}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	provider := &scriptedProvider{outcomes: []outcome{
		{reply: replyJSON(t, validReply())},
	}}
	a := NewAnalyzer(testAnalysisConfig(), provider)

	result, err := a.Analyze(context.Background(), "user-1", textRequest())
	require.NoError(t, err)
	assert.Equal(t, models.RiskHigh, result.RiskLevel)
	assert.Equal(t, 1, provider.callCount())
}

func TestAnalyzeRetriesTransientOnly(t *testing.T) {
	t.Run("network failure retried then succeeds", func(t *testing.T) {
		provider := &scriptedProvider{outcomes: []outcome{
			{err: fakeNetError{}},
			{reply: replyJSON(t, validReply())},
		}}
		a := NewAnalyzer(testAnalysisConfig(), provider)

		result, err := a.Analyze(context.Background(), "user-1", textRequest())
		require.NoError(t, err)
		assert.NotNil(t, result)
		assert.Equal(t, 2, provider.callCount())
	})

	t.Run("auth failure is not retried", func(t *testing.T) {
		provider := &scriptedProvider{outcomes: []outcome{
			{err: llm.ErrAuth},
			{reply: replyJSON(t, validReply())},
		}}
		a := NewAnalyzer(testAnalysisConfig(), provider)

		_, err := a.Analyze(context.Background(), "user-1", textRequest())
		assert.ErrorIs(t, err, llm.ErrAuth)
		assert.Equal(t, 1, provider.callCount())
	})

	t.Run("empty reply is not retried", func(t *testing.T) {
		provider := &scriptedProvider{outcomes: []outcome{
			{err: llm.ErrEmptyReply},
		}}
		a := NewAnalyzer(testAnalysisConfig(), provider)

		_, err := a.Analyze(context.Background(), "user-1", textRequest())
		assert.ErrorIs(t, err, llm.ErrEmptyReply)
		assert.Equal(t, 1, provider.callCount())
	})

	t.Run("retry budget is bounded", func(t *testing.T) {
		provider := &scriptedProvider{outcomes: []outcome{
			{err: fakeNetError{}},
			{err: fakeNetError{}},
			{err: fakeNetError{}},
			{err: fakeNetError{}},
		}}
		a := NewAnalyzer(testAnalysisConfig(), provider)

		_, err := a.Analyze(context.Background(), "user-1", textRequest())
		require.Error(t, err)
		// maxRetries=2 means three attempts total.
		assert.Equal(t, 3, provider.callCount())
	})
}

func TestAnalyzeMalformedReplyNotRetried(t *testing.T) {
	provider := &scriptedProvider{outcomes: []outcome{
		{reply: "definitely not json"},
	}}
	a := NewAnalyzer(testAnalysisConfig(), provider)

	_, err := a.Analyze(context.Background(), "user-1", textRequest())
	assert.ErrorIs(t, err, ErrEngineReply)
	assert.Equal(t, 1, provider.callCount())
}

func TestAnalyzeInvalidMode(t *testing.T) {
	a := NewAnalyzer(testAnalysisConfig(), &scriptedProvider{})
	req := textRequest()
	req.Mode = "forensic-deluxe"

	_, err := a.Analyze(context.Background(), "user-1", req)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAnalyzeDuplicateSubmissionGuard(t *testing.T) {
	block := make(chan struct{})
	provider := &scriptedProvider{
		outcomes: []outcome{{reply: `{}`}},
		block:    block,
	}
	a := NewAnalyzer(testAnalysisConfig(), provider)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		a.Analyze(context.Background(), "user-1", textRequest())
	}()

	<-started
	// Give the first call time to take the slot.
	require.Eventually(t, func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		_, busy := a.inflight["user-1"]
		return busy
	}, time.Second, 5*time.Millisecond)

	_, err := a.Analyze(context.Background(), "user-1", textRequest())
	assert.ErrorIs(t, err, ErrBusy)

	// A different user is unaffected by the guard.
	otherProvider := &scriptedProvider{outcomes: []outcome{{reply: replyJSON(t, validReply())}}}
	other := NewAnalyzer(testAnalysisConfig(), otherProvider)
	_, err = other.Analyze(context.Background(), "user-2", textRequest())
	assert.NoError(t, err)

	close(block)
	<-done

	// The slot is released after completion.
	_, busy := a.inflight["user-1"]
	assert.False(t, busy)
}
