package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/austinfhunter/voyageai"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultVoyageModel = "voyage-3.5-lite"
	defaultTimeout     = 3 * time.Second

	// Upstream rate budget. Corpus builds and bursty request traffic
	// share the same limiter so the provider is never hammered.
	defaultRateLimit = 20 // requests per second
	defaultRateBurst = 40
)

// VoyageConfig configures the VoyageAI-backed provider.
type VoyageConfig struct {
	APIKey    string
	Model     string        // default: voyage-3.5-lite
	Timeout   time.Duration // per-call deadline, default 3s
	RateLimit rate.Limit    // default 20 rps
	RateBurst int           // default 40
}

// VoyageProvider implements Provider on top of the VoyageAI API.
type VoyageProvider struct {
	client  *voyageai.VoyageClient
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewVoyageProvider creates a rate-limited VoyageAI embedding provider.
func NewVoyageProvider(cfg VoyageConfig, logger *zap.Logger) *VoyageProvider {
	model := cfg.Model
	if model == "" {
		model = defaultVoyageModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	limit := cfg.RateLimit
	if limit == 0 {
		limit = defaultRateLimit
	}
	burst := cfg.RateBurst
	if burst == 0 {
		burst = defaultRateBurst
	}

	return &VoyageProvider{
		client: voyageai.NewClient(&voyageai.VoyageClientOpts{
			Key: cfg.APIKey,
		}),
		model:   model,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Embed returns the embedding for a single text. The call is bounded by
// the configured timeout so a slow upstream converts into a skipped
// check instead of blocking the request.
func (p *VoyageProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("VoyageProvider.Embed: %w: %v", ErrUnavailable, err)
	}

	resp, err := p.client.Embed([]string{text}, p.model, nil)
	if err != nil {
		p.logger.Warn("voyage embed call failed",
			zap.String("model", p.model),
			zap.Error(err),
		)
		return nil, fmt.Errorf("VoyageProvider.Embed: %w: %v", ErrUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("VoyageProvider.Embed: %w: empty response", ErrUnavailable)
	}

	return resp.Data[0].Embedding, nil
}
