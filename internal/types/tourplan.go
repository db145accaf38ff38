package types

import (
	"time"

	"github.com/google/uuid"
)

// SelectedLocation is a caller-supplied place the plan should cover. It lives
// for the duration of a single generate/refine call.
type SelectedLocation struct {
	Name       string   `json:"name"`
	Latitude   float64  `json:"latitude"`
	Longitude  float64  `json:"longitude"`
	ImageURL   string   `json:"imageUrl,omitempty"`
	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// ItineraryItem is one scheduled activity as the AI engine returns it.
// Day and Order are pointers so an absent field can be told apart from zero:
// a missing day defaults to 1, a missing order to the item's array index.
type ItineraryItem struct {
	Time            string `json:"time"`
	Location        string `json:"location"`
	Activity        string `json:"activity"`
	DurationMinutes int    `json:"duration_minutes"`
	CrowdPrediction string `json:"crowd_prediction,omitempty"`
	LightingQuality string `json:"lighting_quality,omitempty"`
	Notes           string `json:"notes,omitempty"`
	Day             *int   `json:"day,omitempty"`
	Order           *int   `json:"order,omitempty"`
}

// TripItineraryItem is the persisted shape of an itinerary item.
type TripItineraryItem struct {
	Order           int    `json:"order"`
	Time            string `json:"time"`
	LocationName    string `json:"locationName"`
	Activity        string `json:"activity"`
	DurationMinutes int    `json:"durationMinutes"`
	Notes           string `json:"notes,omitempty"`
	CrowdPrediction string `json:"crowdPrediction,omitempty"`
	LightingQuality string `json:"lightingQuality,omitempty"`
}

// PlanResult is what generate/refine hand back to the caller: the engine's
// payload verbatim plus the thread identifier that continues the conversation.
type PlanResult struct {
	ThreadID    string          `json:"threadId"`
	Response    string          `json:"response"`
	Itinerary   []ItineraryItem `json:"itinerary"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Constraints map[string]any  `json:"constraints,omitempty"`
	Warnings    []string        `json:"warnings,omitempty"`
	Tips        []string        `json:"tips,omitempty"`
}

// GenerateParams carries the inputs of a fresh plan generation.
type GenerateParams struct {
	SelectedLocations []SelectedLocation `json:"selectedLocations"`
	StartDate         string             `json:"startDate"`
	EndDate           string             `json:"endDate"`
	Preferences       map[string]any     `json:"preferences,omitempty"`
	Message           string             `json:"message,omitempty"`
}

// RefineParams continues an existing conversation thread.
type RefineParams struct {
	ThreadID          string             `json:"threadId"`
	Message           string             `json:"message"`
	SelectedLocations []SelectedLocation `json:"selectedLocations"`
	StartDate         string             `json:"startDate"`
	EndDate           string             `json:"endDate"`
	Preferences       map[string]any     `json:"preferences,omitempty"`
}

// AcceptParams materializes a refined plan into a durable trip.
type AcceptParams struct {
	ThreadID    string          `json:"threadId"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Itinerary   []ItineraryItem `json:"itinerary"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
}

// PlanSession is the server-side ownership record for a conversation thread.
// The thread itself lives in the AI engine; this row only answers "whose
// conversation is this and is it still fresh".
type PlanSession struct {
	ThreadID       string    `json:"threadId"`
	UserID         uuid.UUID `json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Expired reports whether the session's freshness window has passed.
func (s *PlanSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// SessionStatus values returned by the session endpoint.
const (
	SessionStatusActive  = "active"
	SessionStatusExpired = "expired"
	// SessionStatusUnknown means no ownership record exists for the thread.
	// The engine may still recognize it; we don't fabricate "active".
	SessionStatusUnknown = "unknown"
)

// PlanSessionStatus is the session endpoint's response body.
type PlanSessionStatus struct {
	ThreadID string `json:"threadId"`
	Status   string `json:"status"`
}
