package types

// TimetableQuery identifies one schedule lookup against the timetable service.
type TimetableQuery struct {
	ServiceID     string `json:"service_id"`
	DepartureDate string `json:"departure_date"`
	DepartureTime string `json:"departure_time"`
}

// TimetableEntry is one departure option within a returned schedule.
type TimetableEntry struct {
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	Duration      string `json:"duration,omitempty"`
	Platform      string `json:"platform,omitempty"`
	Operator      string `json:"operator,omitempty"`
}

// Timetable is the lookup outcome. "Schedule unknown" is a normal result for
// obscure service IDs, not a fault, so transport failures fold into
// Success=false with Error set instead of surfacing as an error value. The
// query fields are always echoed back so callers can correlate.
type Timetable struct {
	Success       bool             `json:"success"`
	ServiceID     string           `json:"service_id"`
	DepartureDate string           `json:"departure_date"`
	DepartureTime string           `json:"departure_time"`
	Entries       []TimetableEntry `json:"entries,omitempty"`
	Error         string           `json:"error,omitempty"`
}
