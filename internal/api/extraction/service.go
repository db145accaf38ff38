package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// systemInstruction pins the model to the four allowed fields. Guessing
// unstated stations is explicitly forbidden so the caller can drive a
// clarification prompt instead of acting on an invented value.
const systemInstruction = `You extract travel details from a user's message.
Respond with a JSON object containing exactly these keys: "origin", "destination", "departure_date", "departure_time".
Use null for any field the user did not state. Do not guess stations; keep what the user said.
Dates as YYYY-MM-DD, times as HH:MM where stated.`

// CompletionClient is the slice of the OpenAI client the extractor needs.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Ensure implementation satisfies the interface
var _ Service = (*ServiceImpl)(nil)

// Service pulls structured trip fields out of free text.
type Service interface {
	Extract(ctx context.Context, message string, seed types.TripDetails) (*types.TripExtraction, error)
}

// ServiceImpl issues exactly one structured-output completion per call.
type ServiceImpl struct {
	llm    CompletionClient
	model  string
	logger *slog.Logger
}

func NewService(llm CompletionClient, model string, logger *slog.Logger) *ServiceImpl {
	if model == "" {
		model = DefaultModel
	}
	return &ServiceImpl{llm: llm, model: model, logger: logger}
}

// Extract merges the model's answer with the caller's seed: a non-empty model
// value wins, otherwise the seed value is kept. MissingFields lists every
// field still empty after the merge. Fails with ErrNoContent or
// ErrMalformedResponse; no retry, no partial result.
func (s *ServiceImpl) Extract(ctx context.Context, message string, seed types.TripDetails) (*types.TripExtraction, error) {
	ctx, span := otel.Tracer("ExtractionService").Start(ctx, "Extract", trace.WithAttributes(
		attribute.String("llm.model", s.model),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Extract"))

	resp, err := s.llm.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		l.ErrorContext(ctx, "Completion call failed", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion call failed")
		return nil, fmt.Errorf("trip detail completion: %w", err)
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if content == "" {
		l.WarnContext(ctx, "Completion returned no content")
		span.SetStatus(codes.Error, "no content")
		return nil, types.ErrNoContent
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		l.WarnContext(ctx, "Completion content not parseable", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed content")
		return nil, fmt.Errorf("%w: %v", types.ErrMalformedResponse, err)
	}

	extracted := types.TripDetails{
		Origin:        merge(raw, "origin", seed.Origin),
		Destination:   merge(raw, "destination", seed.Destination),
		DepartureDate: merge(raw, "departure_date", seed.DepartureDate),
		DepartureTime: merge(raw, "departure_time", seed.DepartureTime),
	}

	var missing []string
	if extracted.Origin == "" {
		missing = append(missing, "origin")
	}
	if extracted.Destination == "" {
		missing = append(missing, "destination")
	}
	if extracted.DepartureDate == "" {
		missing = append(missing, "departureDate")
	}
	if extracted.DepartureTime == "" {
		missing = append(missing, "departureTime")
	}

	l.InfoContext(ctx, "Trip details extracted", slog.Int("missing_fields", len(missing)))
	span.SetStatus(codes.Ok, "extracted")
	return &types.TripExtraction{
		Extracted:     extracted,
		MissingFields: missing,
		Raw:           content,
	}, nil
}

// merge picks the model's value when it normalizes to non-empty, else the seed.
func merge(raw map[string]any, key, seed string) string {
	if v := normalize(raw[key]); v != "" {
		return v
	}
	return seed
}

// normalize maps null and blank strings to absent; other scalars stringify.
func normalize(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", val))
	}
}
