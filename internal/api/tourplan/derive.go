package tourplan

import (
	"time"

	"github.com/ceylontrails/tour-plan-api/internal/types"
)

// deriveDestinations collects the distinct location names across the
// itinerary, first-seen order. Uniqueness is the invariant; order is not
// significant to callers.
func deriveDestinations(itinerary []types.ItineraryItem) []string {
	seen := make(map[string]struct{}, len(itinerary))
	destinations := make([]string, 0, len(itinerary))
	for _, item := range itinerary {
		if item.Location == "" {
			continue
		}
		if _, ok := seen[item.Location]; ok {
			continue
		}
		seen[item.Location] = struct{}{}
		destinations = append(destinations, item.Location)
	}
	return destinations
}

// deriveDaySpan returns max(day) - min(day) across the itinerary, with a
// missing day defaulting to 1. Trip length is inferred purely from the spread
// of day indices the engine returned, not from calendar dates.
func deriveDaySpan(itinerary []types.ItineraryItem) int {
	if len(itinerary) == 0 {
		return 0
	}
	minDay, maxDay := 0, 0
	for i, item := range itinerary {
		day := 1
		if item.Day != nil {
			day = *item.Day
		}
		if i == 0 || day < minDay {
			minDay = day
		}
		if i == 0 || day > maxDay {
			maxDay = day
		}
	}
	return maxDay - minDay
}

// deriveTripDates anchors the trip at acceptance time and stretches it across
// the itinerary's day span.
func deriveTripDates(itinerary []types.ItineraryItem, now time.Time) (time.Time, time.Time) {
	start := now.UTC()
	return start, start.AddDate(0, 0, deriveDaySpan(itinerary))
}

// buildItineraryItems maps engine items to the persisted shape. Order
// defaults to the zero-based array index when the engine omitted it.
func buildItineraryItems(itinerary []types.ItineraryItem) []types.TripItineraryItem {
	items := make([]types.TripItineraryItem, 0, len(itinerary))
	for i, item := range itinerary {
		order := i
		if item.Order != nil {
			order = *item.Order
		}
		items = append(items, types.TripItineraryItem{
			Order:           order,
			Time:            item.Time,
			LocationName:    item.Location,
			Activity:        item.Activity,
			DurationMinutes: item.DurationMinutes,
			Notes:           item.Notes,
			CrowdPrediction: item.CrowdPrediction,
			LightingQuality: item.LightingQuality,
		})
	}
	return items
}
