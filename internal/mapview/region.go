package mapview

import (
	"context"
	"math"

	"backend-forestguard/internal/tracking"
)

const (
	// PaddingFactor widens the bounding box so edge points are not on the frame.
	PaddingFactor = 1.2
	// MinSpan keeps a single-point path from producing a zero-area viewport.
	MinSpan = 0.005

	DefaultLatitudeSpan  = 0.0922
	DefaultLongitudeSpan = 0.0421
)

type Region struct {
	CenterLatitude  float64 `json:"center_latitude"`
	CenterLongitude float64 `json:"center_longitude"`
	LatitudeSpan    float64 `json:"latitude_span"`
	LongitudeSpan   float64 `json:"longitude_span"`
}

// Contains reports whether the coordinate is inside center ± span/2 on both axes.
func (r Region) Contains(lat, lng float64) bool {
	return math.Abs(lat-r.CenterLatitude) <= r.LatitudeSpan/2 &&
		math.Abs(lng-r.CenterLongitude) <= r.LongitudeSpan/2
}

// ComputeRegion frames every point of paths. It reports false when there is no point.
func ComputeRegion(paths []tracking.WorkerPath) (Region, bool) {
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLng, maxLng := math.Inf(1), math.Inf(-1)
	n := 0
	for _, p := range paths {
		for _, l := range p.Locations {
			minLat = math.Min(minLat, l.Latitude)
			maxLat = math.Max(maxLat, l.Latitude)
			minLng = math.Min(minLng, l.Longitude)
			maxLng = math.Max(maxLng, l.Longitude)
			n++
		}
	}
	if n == 0 {
		return Region{}, false
	}

	return Region{
		CenterLatitude:  (minLat + maxLat) / 2,
		CenterLongitude: (minLng + maxLng) / 2,
		LatitudeSpan:    math.Max((maxLat-minLat)*PaddingFactor, MinSpan),
		LongitudeSpan:   math.Max((maxLng-minLng)*PaddingFactor, MinSpan),
	}, true
}

func RegionAround(lat, lng float64) Region {
	return Region{
		CenterLatitude:  lat,
		CenterLongitude: lng,
		LatitudeSpan:    DefaultLatitudeSpan,
		LongitudeSpan:   DefaultLongitudeSpan,
	}
}

// Locator yields the device's current position.
type Locator interface {
	CurrentPosition(ctx context.Context) (tracking.LocationPoint, error)
}

// Fallback frames the device position, or def when there is no locator or no fix.
func Fallback(ctx context.Context, locator Locator, def Region) Region {
	if locator == nil {
		return def
	}
	p, err := locator.CurrentPosition(ctx)
	if err != nil {
		return def
	}
	return RegionAround(p.Latitude, p.Longitude)
}

// Frame is ComputeRegion with the empty-state fallback applied.
func Frame(ctx context.Context, paths []tracking.WorkerPath, locator Locator, def Region) Region {
	if r, ok := ComputeRegion(paths); ok {
		return r
	}
	return Fallback(ctx, locator, def)
}
