package aiengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/ceylontrails/tour-plan-api/internal/types"
)

const defaultTimeout = 30 * time.Second

// Location is the engine's wire shape for a selected place. The caller-facing
// imageUrl field travels as image_url on the wire.
type Location struct {
	Name       string   `json:"name"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	ImageURL   string   `json:"image_url,omitempty"`
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// ChatRequest drives both plan generation and refinement. An empty ThreadID
// tells the engine to mint a fresh conversation.
type ChatRequest struct {
	ThreadID          string         `json:"thread_id,omitempty"`
	Message           string         `json:"message,omitempty"`
	SelectedLocations []Location     `json:"selected_locations"`
	StartDate         string         `json:"start_date,omitempty"`
	EndDate           string         `json:"end_date,omitempty"`
	Preferences       map[string]any `json:"preferences,omitempty"`
}

// ChatResponse is the engine's planning reply, passed through to the caller
// verbatim by the orchestrator.
type ChatResponse struct {
	ThreadID    string                `json:"thread_id"`
	Response    string                `json:"response"`
	Itinerary   []types.ItineraryItem `json:"itinerary"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
	Constraints map[string]any        `json:"constraints,omitempty"`
	Warnings    []string              `json:"warnings,omitempty"`
	Tips        []string              `json:"tips,omitempty"`
}

// RecommendRequest asks the engine for places near a point.
type RecommendRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	RadiusKm  float64  `json:"radius_km,omitempty"`
	Interests []string `json:"interests,omitempty"`
	Limit     int      `json:"limit,omitempty"`
}

type RecommendResponse struct {
	Recommendations []Location     `json:"recommendations"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// CrowdRequest asks for a crowd-level prediction at a place and time.
type CrowdRequest struct {
	LocationName string  `json:"location_name"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	Date         string  `json:"date"`
	Time         string  `json:"time,omitempty"`
}

type CrowdResponse struct {
	LocationName string  `json:"location_name"`
	Prediction   string  `json:"prediction"`
	Confidence   float64 `json:"confidence,omitempty"`
}

// EventImpactRequest asks how scheduled events disturb a visit window.
type EventImpactRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Date      string  `json:"date"`
}

type EventImpactResponse struct {
	Impact string           `json:"impact"`
	Events []map[string]any `json:"events,omitempty"`
}

// GoldenHourRequest asks for photography lighting windows at a location.
type GoldenHourRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Date      string  `json:"date"`
}

type GoldenHourResponse struct {
	Sunrise         string `json:"sunrise"`
	Sunset          string `json:"sunset"`
	GoldenHourStart string `json:"golden_hour_start"`
	GoldenHourEnd   string `json:"golden_hour_end"`
	LightingQuality string `json:"lighting_quality,omitempty"`
}

// HealthStatus is the engine's dedicated availability signal.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// Client is the engine's REST surface. One HTTP round trip per call, no
// retries, no caching. Retry policy belongs to the caller that composes a
// ResilientClient, never to the transport.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error)
	PredictCrowd(ctx context.Context, req CrowdRequest) (*CrowdResponse, error)
	EventImpact(ctx context.Context, req EventImpactRequest) (*EventImpactResponse, error)
	GoldenHour(ctx context.Context, req GoldenHourRequest) (*GoldenHourResponse, error)
	Health(ctx context.Context) (*HealthStatus, error)
}

// Ensure implementation satisfies the interface
var _ Client = (*HTTPClient)(nil)

// HTTPClient is the stateless resty-backed implementation of Client.
type HTTPClient struct {
	client  *resty.Client
	baseURL string
	logger  *slog.Logger
}

// NewHTTPClient creates an engine client against baseURL. A zero timeout
// falls back to the default.
func NewHTTPClient(baseURL string, timeout time.Duration, logger *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		client:  resty.New().SetTimeout(timeout),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

func (c *HTTPClient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var out ChatResponse
	if err := c.post(ctx, "/api/chat", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Recommend(ctx context.Context, req RecommendRequest) (*RecommendResponse, error) {
	var out RecommendResponse
	if err := c.post(ctx, "/api/recommend", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) PredictCrowd(ctx context.Context, req CrowdRequest) (*CrowdResponse, error) {
	var out CrowdResponse
	if err := c.post(ctx, "/api/crowd/predict", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) EventImpact(ctx context.Context, req EventImpactRequest) (*EventImpactResponse, error) {
	var out EventImpactResponse
	if err := c.post(ctx, "/api/events/impact", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GoldenHour(ctx context.Context, req GoldenHourRequest) (*GoldenHourResponse, error) {
	var out GoldenHourResponse
	if err := c.post(ctx, "/api/physics/golden-hour", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Health(ctx context.Context) (*HealthStatus, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.endpoint("/api/health"))
	if err != nil {
		return nil, c.transportError("health", err)
	}
	return decodeResponse[HealthStatus](c, "health", resp)
}

func (c *HTTPClient) post(ctx context.Context, path string, body any, out any) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(c.endpoint(path))
	if err != nil {
		return c.transportError(path, err)
	}
	if resp.IsError() {
		return &types.UpstreamError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	if err := json.Unmarshal(resp.Bytes(), out); err != nil {
		c.logger.Error("Failed to decode AI engine payload", slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("%w: %s: %v", types.ErrEngineDecode, path, err)
	}
	return nil
}

func decodeResponse[T any](c *HTTPClient, path string, resp *resty.Response) (*T, error) {
	if resp.IsError() {
		return nil, &types.UpstreamError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	var out T
	if err := json.Unmarshal(resp.Bytes(), &out); err != nil {
		c.logger.Error("Failed to decode AI engine payload", slog.String("path", path), slog.Any("error", err))
		return nil, fmt.Errorf("%w: %s: %v", types.ErrEngineDecode, path, err)
	}
	return &out, nil
}

// transportError classifies a failed round trip: deadline overruns become
// ErrEngineTimeout, everything else ErrEngineUnreachable.
func (c *HTTPClient) transportError(path string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		c.logger.Warn("AI engine call timed out", slog.String("path", path), slog.Any("error", err))
		return fmt.Errorf("%w: %s: %v", types.ErrEngineTimeout, path, err)
	}
	c.logger.Warn("AI engine unreachable", slog.String("path", path), slog.Any("error", err))
	return fmt.Errorf("%w: %s: %v", types.ErrEngineUnreachable, path, err)
}

func (c *HTTPClient) endpoint(path string) string {
	if c.baseURL == "" {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return c.baseURL + path
	}
	return c.baseURL + "/" + path
}
