package analyze

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/veritrust/veritrust/internal/config"
	"github.com/veritrust/veritrust/internal/llm"
	"github.com/veritrust/veritrust/internal/models"
)

// ErrBusy indicates a verification is already in flight for the same user.
var ErrBusy = errors.New("an analysis is already in progress")

// Analyzer orchestrates one verification: encode, prompt, infer, normalize.
// It enforces a hard per-attempt timeout and a bounded retry with
// exponential backoff on transient network failure only; auth failures,
// empty replies and malformed JSON are never retried.
type Analyzer struct {
	provider   llm.Provider
	encoder    *Encoder
	normalizer *Normalizer
	timeout    time.Duration
	maxRetries int

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewAnalyzer creates an analyzer from configuration.
func NewAnalyzer(cfg *config.AnalysisConfig, provider llm.Provider) *Analyzer {
	return &Analyzer{
		provider:   provider,
		encoder:    NewEncoder(cfg.MaxUploadBytes),
		normalizer: NewNormalizer(cfg.PreviewLength),
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		maxRetries: cfg.MaxRetries,
		inflight:   make(map[string]struct{}),
	}
}

// Analyze runs the full pipeline for one submission. At most one inference
// call is in flight per user; concurrent submissions fail fast with ErrBusy.
func (a *Analyzer) Analyze(ctx context.Context, userID string, req *models.VerifyRequest) (*models.VerificationResult, error) {
	if !a.acquire(userID) {
		return nil, ErrBusy
	}
	defer a.release(userID)

	start := time.Now()

	in, err := a.encoder.Encode(req)
	if err != nil {
		return nil, err
	}

	mode := req.Mode
	if mode == "" {
		mode = models.ModeStandard
	}
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: unknown analysis mode %q", ErrInvalidInput, mode)
	}

	schema := BuildSchema(mode)
	llmReq := llm.DefaultRequest()
	llmReq.System = SystemInstruction
	llmReq.Prompt = BuildInstruction(in, mode)
	llmReq.Schema = schema
	if in.Media != nil {
		llmReq.Media = &llm.InlineMedia{MIMEType: in.MIMEType, Data: in.Media}
	}

	raw, err := a.generateWithRetry(ctx, llmReq)
	if err != nil {
		return nil, err
	}

	result, err := a.normalizer.Normalize(raw, in, mode, schema)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("id", result.ID).
		Str("type", string(result.Type)).
		Str("mode", string(result.Mode)).
		Str("risk_level", string(result.RiskLevel)).
		Float64("fake_probability", result.FakeProbability).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Analysis complete")

	return result, nil
}

func (a *Analyzer) generateWithRetry(ctx context.Context, req llm.Request) (string, error) {
	backoff := 500 * time.Millisecond

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, a.timeout)
		raw, err := a.provider.GenerateJSON(attemptCtx, req)
		cancel()

		if err == nil {
			return raw, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			// Caller gave up; do not burn further attempts.
			return "", err
		}
		if !isTransient(err) {
			return "", err
		}

		if attempt < a.maxRetries {
			log.Warn().Err(err).Int("attempt", attempt+1).Msg("Transient inference failure, retrying")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			backoff *= 2
		}
	}

	return "", lastErr
}

// isTransient reports whether a remote failure is worth retrying. Retrying
// an auth rejection or a malformed reply cannot help.
func isTransient(err error) bool {
	if errors.Is(err, llm.ErrAuth) || errors.Is(err, llm.ErrEmptyReply) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (a *Analyzer) acquire(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, busy := a.inflight[userID]; busy {
		return false
	}
	a.inflight[userID] = struct{}{}
	return true
}

func (a *Analyzer) release(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.inflight, userID)
}
