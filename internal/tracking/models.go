package tracking

import "time"

// LocationPoint is a single GPS fix. Points are never mutated once written.
type LocationPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// PathDocument is one worker's route on one project for one local calendar day.
// Locations are append-only.
type PathDocument struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	ProjectID string          `json:"project_id"`
	Date      string          `json:"date"`
	Locations []LocationPoint `json:"locations"`
}

// WorkerPath is the display form of a PathDocument, rebuilt on every update.
type WorkerPath struct {
	UserID    string          `json:"user_id"`
	UserName  string          `json:"user_name"`
	Role      string          `json:"role,omitempty"`
	Locations []LocationPoint `json:"locations"`
	Color     string          `json:"color"`
	DistanceM float64         `json:"distance_m"`
}

// Start and End are the marker points of a path.
func (p WorkerPath) Start() (LocationPoint, bool) {
	if len(p.Locations) == 0 {
		return LocationPoint{}, false
	}
	return p.Locations[0], true
}

func (p WorkerPath) End() (LocationPoint, bool) {
	if len(p.Locations) == 0 {
		return LocationPoint{}, false
	}
	return p.Locations[len(p.Locations)-1], true
}

type AppendResult struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	PointCount int    `json:"point_count"`
	// Appended is false when the point was already recorded.
	Appended bool `json:"appended"`
}

// ChangeEvent is published on the change feed after each successful append.
type ChangeEvent struct {
	Type      string        `json:"type"`
	ProjectID string        `json:"project_id"`
	UserID    string        `json:"user_id"`
	Date      string        `json:"date"`
	Point     LocationPoint `json:"point"`
}

const EventPathUpdated = "path_updated"
