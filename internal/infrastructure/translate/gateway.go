// Package translate turns text from one language into another using a primary
// LLM provider, a chain of public fallback providers, and finally a
// deterministic placeholder. It never returns an error.
package translate

import (
	"context"
	"strings"
	"time"

	"github.com/hilthontt/parley/internal/infrastructure/configs"
	"github.com/hilthontt/parley/internal/infrastructure/logging"
	"github.com/hilthontt/parley/internal/infrastructure/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	ModeSequential = configs.ModeSequential
	ModeConcurrent = configs.ModeConcurrent

	sourceIdentity    = "identity"
	sourcePlaceholder = "placeholder"
)

type Options struct {
	// Primary is nil when no credential is configured.
	Primary         Provider
	PrimaryTimeout  time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	Fallbacks       []Provider
	FallbackTimeout time.Duration
	Mode            string
	// RatePerSecond throttles each provider separately. Zero disables it.
	RatePerSecond float64
	Logger        logging.Logger
	Metrics       *metrics.Metrics
}

type Gateway struct {
	opts     Options
	limiters map[string]*rate.Limiter
	logger   logging.Logger
	metrics  *metrics.Metrics
}

func NewGateway(opts Options) *Gateway {
	if opts.PrimaryTimeout <= 0 {
		opts.PrimaryTimeout = 15 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryBackoff < 0 {
		opts.RetryBackoff = 0
	}
	if opts.FallbackTimeout <= 0 {
		opts.FallbackTimeout = 5 * time.Second
	}
	if opts.Mode == "" {
		opts.Mode = ModeSequential
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	g := &Gateway{
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
		logger:   opts.Logger,
		metrics:  opts.Metrics,
	}

	if opts.RatePerSecond > 0 {
		providers := append([]Provider{}, opts.Fallbacks...)
		if opts.Primary != nil {
			providers = append(providers, opts.Primary)
		}
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		for _, p := range providers {
			g.limiters[p.Name()] = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
		}
	}
	return g
}

// New builds the production gateway from configuration.
func New(cfg configs.TranslationConfig, logger logging.Logger, m *metrics.Metrics) *Gateway {
	client := NewHTTPClient()

	var primary Provider
	if cfg.APIKey != "" {
		primary = &OpenAIProvider{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			HTTPClient: client,
		}
	}

	return NewGateway(Options{
		Primary:        primary,
		PrimaryTimeout: cfg.PrimaryTimeout,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
		Fallbacks: []Provider{
			&LibreProvider{BaseURL: cfg.LibreURL, HTTPClient: client},
			&MyMemoryProvider{BaseURL: cfg.MyMemoryURL, HTTPClient: client},
			&GoogleProvider{BaseURL: cfg.GoogleURL, HTTPClient: client},
		},
		FallbackTimeout: cfg.FallbackTimeout,
		Mode:            cfg.FallbackMode,
		RatePerSecond:   cfg.RatePerSecond,
		Logger:          logger,
		Metrics:         m,
	})
}

// HasPrimary reports whether an LLM credential is configured.
func (g *Gateway) HasPrimary() bool {
	return g.opts.Primary != nil
}

func (g *Gateway) Translate(ctx context.Context, text, from, to string) string {
	if strings.TrimSpace(text) == "" || SameLanguage(from, to) {
		g.recordResult(sourceIdentity)
		return text
	}

	if g.opts.Primary != nil {
		if result, ok := g.translatePrimary(ctx, text, from, to); ok {
			g.recordResult(g.opts.Primary.Name())
			return result
		}
	}

	var (
		result string
		source string
		ok     bool
	)
	if g.opts.Mode == ModeConcurrent {
		result, source, ok = g.translateConcurrent(ctx, text, from, to)
	} else {
		result, source, ok = g.translateSequential(ctx, text, from, to)
	}
	if ok {
		g.recordResult(source)
		return result
	}

	g.logger.Warn(logging.Translation, logging.Fallback, "all providers failed, using placeholder", map[logging.ExtraKey]any{
		"From": from,
		"To":   to,
	})
	g.recordResult(sourcePlaceholder)
	return Placeholder(text, from, to)
}

func (g *Gateway) translatePrimary(ctx context.Context, text, from, to string) (string, bool) {
	for attempt := 1; attempt <= g.opts.MaxRetries; attempt++ {
		result, ok := g.call(ctx, g.opts.Primary, g.opts.PrimaryTimeout, text, from, to, attempt)
		if ok {
			return result, true
		}
		if attempt == g.opts.MaxRetries {
			break
		}

		backoff := time.Duration(attempt) * g.opts.RetryBackoff
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(backoff):
		}
	}
	return "", false
}

func (g *Gateway) translateSequential(ctx context.Context, text, from, to string) (string, string, bool) {
	for _, p := range g.opts.Fallbacks {
		if result, ok := g.call(ctx, p, g.opts.FallbackTimeout, text, from, to, 1); ok {
			return result, p.Name(), true
		}
	}
	return "", "", false
}

// translateConcurrent runs every fallback at once and keeps the first
// satisfying result in chain order.
func (g *Gateway) translateConcurrent(ctx context.Context, text, from, to string) (string, string, bool) {
	type outcome struct {
		result string
		ok     bool
	}
	outcomes := make([]outcome, len(g.opts.Fallbacks))

	var eg errgroup.Group
	for i, p := range g.opts.Fallbacks {
		i, p := i, p
		eg.Go(func() error {
			result, ok := g.call(ctx, p, g.opts.FallbackTimeout, text, from, to, 1)
			outcomes[i] = outcome{result: result, ok: ok}
			return nil
		})
	}
	_ = eg.Wait()

	for i, o := range outcomes {
		if o.ok {
			return o.result, g.opts.Fallbacks[i].Name(), true
		}
	}
	return "", "", false
}

// call performs one throttled, time-boxed provider call and applies the
// satisfied check.
func (g *Gateway) call(ctx context.Context, p Provider, timeout time.Duration, text, from, to string, attempt int) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	extra := map[logging.ExtraKey]any{
		logging.Provider: p.Name(),
		logging.Attempt:  attempt,
	}

	if lim, ok := g.limiters[p.Name()]; ok {
		if err := lim.Wait(ctx); err != nil {
			extra[logging.ErrorMessage] = err.Error()
			g.logger.Warn(logging.Translation, logging.RateLimiting, "provider throttled", extra)
			g.recordAttempt(p.Name(), "throttled", 0)
			return "", false
		}
	}

	start := time.Now()
	result, err := p.Translate(ctx, text, from, to)
	elapsed := time.Since(start)

	if err != nil {
		extra[logging.ErrorMessage] = err.Error()
		g.logger.Warn(logging.Translation, logging.ExternalService, "translation provider failed", extra)
		g.recordAttempt(p.Name(), "error", elapsed)
		return "", false
	}
	if !Satisfied(result, to) {
		g.logger.Debug(logging.Translation, logging.ExternalService, "translation rejected by script check", extra)
		g.recordAttempt(p.Name(), "rejected", elapsed)
		return "", false
	}

	g.recordAttempt(p.Name(), "success", elapsed)
	return strings.TrimSpace(result), true
}

func (g *Gateway) recordAttempt(provider, outcome string, elapsed time.Duration) {
	if g.metrics == nil {
		return
	}
	g.metrics.TranslationAttempts.WithLabelValues(provider, outcome).Inc()
	if elapsed > 0 {
		g.metrics.TranslationDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	}
}

func (g *Gateway) recordResult(source string) {
	if g.metrics == nil {
		return
	}
	g.metrics.TranslationResults.WithLabelValues(source).Inc()
}
