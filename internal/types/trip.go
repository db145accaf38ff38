package types

import (
	"time"

	"github.com/google/uuid"
)

// TripSpec is everything the orchestrator derives for a trip at accept time.
// Destinations holds the distinct location names across the itinerary;
// StartDate/EndDate span the itinerary's day indices, anchored at acceptance.
type TripSpec struct {
	UserID       uuid.UUID           `json:"userId"`
	Title        string              `json:"title"`
	Description  string              `json:"description,omitempty"`
	Destinations []string            `json:"destinations"`
	StartDate    time.Time           `json:"startDate"`
	EndDate      time.Time           `json:"endDate"`
	Itinerary    []TripItineraryItem `json:"itinerary"`
	GeneratedBy  string              `json:"generatedBy"`
	AIMetadata   map[string]any      `json:"aiMetadata,omitempty"`
}

// SavedTrip is the durable representation of an accepted plan, owned by the
// trip store once created.
type SavedTrip struct {
	ID           uuid.UUID           `json:"id"`
	UserID       uuid.UUID           `json:"userId"`
	Title        string              `json:"title"`
	Description  string              `json:"description,omitempty"`
	Destinations []string            `json:"destinations"`
	StartDate    time.Time           `json:"startDate"`
	EndDate      time.Time           `json:"endDate"`
	Itinerary    []TripItineraryItem `json:"itinerary"`
	GeneratedBy  string              `json:"generatedBy"`
	AIMetadata   map[string]any      `json:"aiMetadata,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
}

// ScoredPreference is one weighted interest from the preferences aggregator.
type ScoredPreference struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}
