package sampler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const trackGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk>
    <name>Parcela 4</name>
    <trkseg>
      <trkpt lat="-12.1000" lon="-77.0000"><time>2024-05-01T15:00:00Z</time></trkpt>
      <trkpt lat="-12.1050" lon="-77.0050"><time>2024-05-01T15:00:10Z</time></trkpt>
    </trkseg>
    <trkseg>
      <trkpt lat="-12.1100" lon="-77.0100"></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParseGPX(t *testing.T) {
	points, err := ParseGPX(strings.NewReader(trackGPX))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[1].Latitude != -12.105 || points[1].Longitude != -77.005 {
		t.Fatalf("unexpected point %+v", points[1])
	}
	if !points[0].Timestamp.Equal(t0) {
		t.Fatalf("expected time %v, got %v", t0, points[0].Timestamp)
	}
	if !points[2].Timestamp.IsZero() {
		t.Fatalf("point without time should stay zero")
	}
}

func TestParseGPXRejectsEmpty(t *testing.T) {
	if _, err := ParseGPX(strings.NewReader(`<gpx></gpx>`)); err == nil {
		t.Fatalf("expected error for empty track")
	}
	if _, err := ParseGPX(strings.NewReader(`<gpx><trk>`)); err == nil {
		t.Fatalf("expected error for malformed xml")
	}
}

func TestReplaySource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.gpx")
	if err := os.WriteFile(path, []byte(trackGPX), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := OpenReplaySource(path, false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p, err := src.CurrentPosition(ctx)
		if err != nil {
			t.Fatalf("fix %d: %v", i, err)
		}
		if !p.Timestamp.Equal(now) {
			t.Fatalf("replayed points take the current time")
		}
	}
	if _, err := src.CurrentPosition(ctx); !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("expected ErrLocationUnavailable after the track ends, got %v", err)
	}
}

func TestReplaySourceLoops(t *testing.T) {
	points, err := ParseGPX(strings.NewReader(trackGPX))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	src := NewReplaySource(points, true)
	var last float64
	for i := 0; i < 4; i++ {
		p, err := src.CurrentPosition(context.Background())
		if err != nil {
			t.Fatalf("fix %d: %v", i, err)
		}
		last = p.Latitude
	}
	if last != -12.1 {
		t.Fatalf("expected the track to restart, got %v", last)
	}
}

func TestStaticSource(t *testing.T) {
	src := StaticSource{Latitude: -12.0464, Longitude: -77.0428, Now: func() time.Time { return t0 }}
	ok, _ := src.PermissionGranted(context.Background())
	if !ok {
		t.Fatalf("static source is always permitted")
	}
	p, err := src.CurrentPosition(context.Background())
	if err != nil || p.Latitude != -12.0464 || !p.Timestamp.Equal(t0) {
		t.Fatalf("unexpected fix %+v err=%v", p, err)
	}
}
