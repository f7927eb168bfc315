package mapview

import (
	"sync"

	"backend-forestguard/internal/shared/geo"
	"backend-forestguard/internal/tracking"
)

// Selection holds the worker isolated on the map. The zero value shows all workers.
type Selection struct {
	mu       sync.RWMutex
	workerID string
}

func (s *Selection) Select(workerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workerID = workerID
}

func (s *Selection) SelectAll() {
	s.Select("")
}

// Reset is SelectAll; called when the active project changes.
func (s *Selection) Reset() {
	s.SelectAll()
}

// Selected returns the isolated worker id, false meaning all workers.
func (s *Selection) Selected() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.workerID, s.workerID != ""
}

func (s *Selection) Displayed(paths []tracking.WorkerPath) []tracking.WorkerPath {
	id, _ := s.Selected()
	return Filter(paths, id)
}

// Filter keeps the path of workerID, or every path when workerID is empty.
func Filter(paths []tracking.WorkerPath, workerID string) []tracking.WorkerPath {
	if workerID == "" {
		return paths
	}
	for _, p := range paths {
		if p.UserID == workerID {
			return []tracking.WorkerPath{p}
		}
	}
	return []tracking.WorkerPath{}
}

// Lasso keeps, per path, the points inside polygon and drops paths left empty.
func Lasso(paths []tracking.WorkerPath, polygon []geo.Point) []tracking.WorkerPath {
	var out []tracking.WorkerPath
	for _, p := range paths {
		var inside []tracking.LocationPoint
		for _, l := range p.Locations {
			if geo.PointInPolygon(geo.Point{Lat: l.Latitude, Lng: l.Longitude}, polygon) {
				inside = append(inside, l)
			}
		}
		if len(inside) == 0 {
			continue
		}
		p.Locations = inside
		out = append(out, p)
	}
	return out
}
