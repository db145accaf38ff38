package aiengine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ceylontrails/tour-plan-api/app/observability/metrics"
	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// RetryConfig bounds the retry-with-backoff policy around engine calls.
type RetryConfig struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryConfig keeps the window short: planning calls are interactive.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Ensure implementation satisfies the interface
var _ Client = (*ResilientClient)(nil)

// ResilientClient decorates a Client with bounded retries and a circuit
// breaker keyed on consecutive failures. The inner transport stays
// single-attempt; composing this wrapper is the orchestrator's choice.
type ResilientClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
	logger  *slog.Logger
}

func NewResilientClient(inner Client, retry RetryConfig, logger *slog.Logger) *ResilientClient {
	settings := gobreaker.Settings{
		Name:    "ai-engine",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("AI engine circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	}
	return &ResilientClient{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		retry:   retry,
		logger:  logger,
	}
}

func (rc *ResilientClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return execute(rc, ctx, "chat", func() (*ChatResponse, error) { return rc.inner.Chat(ctx, req) })
}

func (rc *ResilientClient) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	return execute(rc, ctx, "recommend", func() (*RecommendResponse, error) { return rc.inner.Recommend(ctx, req) })
}

func (rc *ResilientClient) PredictCrowd(ctx context.Context, req CrowdRequest) (*CrowdResponse, error) {
	return execute(rc, ctx, "crowd-predict", func() (*CrowdResponse, error) { return rc.inner.PredictCrowd(ctx, req) })
}

func (rc *ResilientClient) EventImpact(ctx context.Context, req EventImpactRequest) (*EventImpactResponse, error) {
	return execute(rc, ctx, "event-impact", func() (*EventImpactResponse, error) { return rc.inner.EventImpact(ctx, req) })
}

func (rc *ResilientClient) GoldenHour(ctx context.Context, req GoldenHourRequest) (*GoldenHourResponse, error) {
	return execute(rc, ctx, "golden-hour", func() (*GoldenHourResponse, error) { return rc.inner.GoldenHour(ctx, req) })
}

func (rc *ResilientClient) Health(ctx context.Context) (*HealthStatus, error) {
	// Health probes answer "is the engine up right now"; retrying would only
	// delay the answer.
	return rc.inner.Health(ctx)
}

func execute[T any](rc *ResilientClient, ctx context.Context, op string, call func() (*T, error)) (*T, error) {
	result, err := rc.breaker.Execute(func() (interface{}, error) {
		policy := backoff.NewExponentialBackOff()
		policy.InitialInterval = rc.retry.InitialInterval
		policy.MaxInterval = rc.retry.MaxInterval

		var out *T
		retryErr := backoff.Retry(func() error {
			v, callErr := call()
			if callErr != nil {
				if !retryable(callErr) {
					return backoff.Permanent(callErr)
				}
				rc.logger.Warn("AI engine call failed, will retry",
					slog.String("operation", op),
					slog.Any("error", callErr),
				)
				return callErr
			}
			out = v
			return nil
		}, backoff.WithContext(backoff.WithMaxRetries(policy, rc.retry.MaxRetries), ctx))
		if retryErr != nil {
			return nil, retryErr
		}
		return out, nil
	})
	if err != nil {
		metrics.Get().EngineFailuresTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
		))
		return nil, err
	}
	return result.(*T), nil
}

// retryable reports whether another attempt could change the outcome.
// Client-side 4xx replies won't; transport faults and 5xx might.
func retryable(err error) bool {
	var upstream *types.UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Status >= 500
	}
	if errors.Is(err, types.ErrEngineDecode) {
		return false
	}
	return errors.Is(err, types.ErrEngineTimeout) || errors.Is(err, types.ErrEngineUnreachable)
}
