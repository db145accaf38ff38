package timetable

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"resty.dev/v3"

	"github.com/ceylontrails/tour-plan-api/internal/types"
)

const (
	// DefaultBaseURL matches the locally-run timetable service.
	DefaultBaseURL = "http://localhost:8001/api/timetable"
	lookupTimeout  = 15 * time.Second
)

// Client looks up transit schedules. A missing or unreachable schedule is a
// normal domain outcome, so Lookup never returns an error: failures fold into
// Timetable{Success:false, Error:…} with the query fields echoed back.
type Client struct {
	client  *resty.Client
	baseURL string
	logger  *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:  resty.New().SetTimeout(lookupTimeout),
		baseURL: baseURL,
		logger:  logger,
	}
}

// Lookup fetches the schedule for one service/date/time triple.
func (c *Client) Lookup(ctx context.Context, q types.TimetableQuery) types.Timetable {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"service_id":     q.ServiceID,
			"departure_date": q.DepartureDate,
			"departure_time": q.DepartureTime,
		}).
		Get(c.baseURL)
	if err != nil {
		c.logger.WarnContext(ctx, "Timetable lookup failed",
			slog.String("service_id", q.ServiceID),
			slog.Any("error", err),
		)
		return c.unknown(q, err.Error())
	}
	if resp.IsError() {
		return c.unknown(q, fmt.Sprintf("timetable service returned status %d", resp.StatusCode()))
	}

	// Success is a pointer so an upstream body without the field can be told
	// apart from an explicit success:false.
	var body struct {
		Success *bool                  `json:"success"`
		Entries []types.TimetableEntry `json:"entries"`
		Error   string                 `json:"error"`
	}
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		c.logger.WarnContext(ctx, "Timetable payload undecodable",
			slog.String("service_id", q.ServiceID),
			slog.Any("error", err),
		)
		return c.unknown(q, fmt.Sprintf("malformed timetable payload: %v", err))
	}

	// The upstream's own "schedule unknown" verdict is a domain outcome and
	// passes through; only the query echo is ours.
	tt := types.Timetable{
		Success:       body.Success == nil || *body.Success,
		ServiceID:     q.ServiceID,
		DepartureDate: q.DepartureDate,
		DepartureTime: q.DepartureTime,
		Entries:       body.Entries,
	}
	if !tt.Success {
		tt.Error = body.Error
		if tt.Error == "" {
			tt.Error = "timetable service reported no schedule"
		}
	}
	return tt
}

func (c *Client) unknown(q types.TimetableQuery, message string) types.Timetable {
	return types.Timetable{
		Success:       false,
		ServiceID:     q.ServiceID,
		DepartureDate: q.DepartureDate,
		DepartureTime: q.DepartureTime,
		Error:         message,
	}
}
