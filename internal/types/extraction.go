package types

// TripDetails are the four free-text fields the extractor is allowed to pull
// out of a message. Empty string means absent.
type TripDetails struct {
	Origin        string `json:"origin,omitempty"`
	Destination   string `json:"destination,omitempty"`
	DepartureDate string `json:"departureDate,omitempty"`
	DepartureTime string `json:"departureTime,omitempty"`
}

// TripExtraction is the per-call extraction result: the merged fields, the
// fields still empty after merging with the caller's seed, and the raw model
// content for debugging. Never persisted.
type TripExtraction struct {
	Extracted     TripDetails `json:"extracted"`
	MissingFields []string    `json:"missingFields"`
	Raw           string      `json:"raw,omitempty"`
}
