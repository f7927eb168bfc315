package livemap

import (
	"sort"

	"backend-forestguard/internal/shared/geo"
	"backend-forestguard/internal/tracking"
	"backend-forestguard/internal/workers"

	"github.com/cespare/xxhash/v2"
)

const UnknownUser = "Unknown User"

var Palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#46f0f0", "#f032e6", "#bcf60c", "#008080", "#9a6324",
}

// ColorFor hashes the user id into Palette, so a worker keeps its colour
// whatever order documents arrive in.
func ColorFor(userID string) string {
	return Palette[xxhash.Sum64String(userID)%uint64(len(Palette))]
}

// BuildPaths turns path documents into display paths. Names are resolved
// against dir; points are put in timestamp order and exact repeats dropped.
func BuildPaths(docs []tracking.PathDocument, dir workers.Directory) []tracking.WorkerPath {
	paths := make([]tracking.WorkerPath, 0, len(docs))
	for _, d := range docs {
		p := tracking.WorkerPath{
			UserID:    d.UserID,
			UserName:  UnknownUser,
			Locations: normalize(d.Locations),
			Color:     ColorFor(d.UserID),
		}
		if w, ok := dir[d.UserID]; ok {
			if w.Name != "" {
				p.UserName = w.Name
			}
			p.Role = w.Role(d.ProjectID)
		}

		pts := make([]geo.Point, len(p.Locations))
		for i, l := range p.Locations {
			pts[i] = geo.Point{Lat: l.Latitude, Lng: l.Longitude}
		}
		p.DistanceM = geo.PathDistanceM(pts)

		paths = append(paths, p)
	}

	sort.Slice(paths, func(i, j int) bool {
		if paths[i].UserName != paths[j].UserName {
			return paths[i].UserName < paths[j].UserName
		}
		return paths[i].UserID < paths[j].UserID
	})
	return paths
}

type pointKey struct {
	lat, lng float64
	ts       int64
}

func normalize(in []tracking.LocationPoint) []tracking.LocationPoint {
	out := make([]tracking.LocationPoint, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	seen := make(map[pointKey]struct{}, len(out))
	kept := out[:0]
	for _, l := range out {
		k := pointKey{lat: l.Latitude, lng: l.Longitude, ts: l.Timestamp.UnixNano()}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, l)
	}
	return kept
}
