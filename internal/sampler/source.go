package sampler

import (
	"context"
	"encoding/xml"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"

	"backend-forestguard/internal/tracking"
)

// StaticSource reports a fixed position, stamped with the current time.
type StaticSource struct {
	Latitude  float64
	Longitude float64
	Now       func() time.Time
}

func (StaticSource) PermissionGranted(context.Context) (bool, error) { return true, nil }

func (s StaticSource) CurrentPosition(ctx context.Context) (tracking.LocationPoint, error) {
	if err := ctx.Err(); err != nil {
		return tracking.LocationPoint{}, err
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return tracking.LocationPoint{Latitude: s.Latitude, Longitude: s.Longitude, Timestamp: now()}, nil
}

// ReplaySource walks a recorded track one point per fix. Points are stamped
// with the current time so they land in today's path.
type ReplaySource struct {
	mu     sync.Mutex
	points []tracking.LocationPoint
	next   int
	loop   bool
	now    func() time.Time
}

func NewReplaySource(points []tracking.LocationPoint, loop bool) *ReplaySource {
	return &ReplaySource{points: points, loop: loop, now: time.Now}
}

// OpenReplaySource reads the track points of a GPX file.
func OpenReplaySource(path string, loop bool) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open gpx")
	}
	defer f.Close()

	points, err := ParseGPX(f)
	if err != nil {
		return nil, err
	}
	return NewReplaySource(points, loop), nil
}

func (*ReplaySource) PermissionGranted(context.Context) (bool, error) { return true, nil }

func (r *ReplaySource) CurrentPosition(ctx context.Context) (tracking.LocationPoint, error) {
	if err := ctx.Err(); err != nil {
		return tracking.LocationPoint{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.points) {
		if !r.loop || len(r.points) == 0 {
			return tracking.LocationPoint{}, errors.Wrap(ErrLocationUnavailable, "track exhausted")
		}
		r.next = 0
	}
	p := r.points[r.next]
	r.next++
	p.Timestamp = r.now()
	return p, nil
}

type gpxDoc struct {
	Tracks []struct {
		Segments []struct {
			Points []gpxPoint `xml:"trkpt"`
		} `xml:"trkseg"`
	} `xml:"trk"`
}

type gpxPoint struct {
	Lat  float64 `xml:"lat,attr"`
	Lon  float64 `xml:"lon,attr"`
	Time string  `xml:"time"`
}

// ParseGPX returns the track points of every segment in document order.
// Point times are kept when present.
func ParseGPX(r io.Reader) ([]tracking.LocationPoint, error) {
	var doc gpxDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode gpx")
	}

	var points []tracking.LocationPoint
	for _, trk := range doc.Tracks {
		for _, seg := range trk.Segments {
			for _, p := range seg.Points {
				lp := tracking.LocationPoint{Latitude: p.Lat, Longitude: p.Lon}
				if p.Time != "" {
					ts, err := time.Parse(time.RFC3339, p.Time)
					if err != nil {
						return nil, errors.Wrapf(err, "gpx point time %q", p.Time)
					}
					lp.Timestamp = ts
				}
				points = append(points, lp)
			}
		}
	}
	if len(points) == 0 {
		return nil, errors.New("gpx has no track points")
	}
	return points, nil
}
