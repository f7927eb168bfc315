package sampler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"backend-forestguard/internal/alert"
	"backend-forestguard/internal/metrics"
	"backend-forestguard/internal/tracking"
)

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 10 * time.Second

var (
	ErrPermissionDenied    = errors.New("location permission denied")
	ErrLocationUnavailable = errors.New("location unavailable")
)

// Source is the device's location provider.
type Source interface {
	PermissionGranted(ctx context.Context) (bool, error)
	CurrentPosition(ctx context.Context) (tracking.LocationPoint, error)
}

// Recorder stores a sampled point for a worker in a project.
type Recorder interface {
	Record(ctx context.Context, userID, projectID string, point tracking.LocationPoint) error
}

type RecorderFunc func(ctx context.Context, userID, projectID string, point tracking.LocationPoint) error

func (f RecorderFunc) Record(ctx context.Context, userID, projectID string, point tracking.LocationPoint) error {
	return f(ctx, userID, projectID, point)
}

// Recorders hands a point to every recorder in order. The first recorder is
// the path writer and only its error is returned; failures of the others are
// logged and do not drop the sample.
type Recorders []Recorder

func (rs Recorders) Record(ctx context.Context, userID, projectID string, point tracking.LocationPoint) error {
	var primary error
	for i, r := range rs {
		err := r.Record(ctx, userID, projectID, point)
		if err == nil {
			continue
		}
		if i == 0 {
			primary = err
			continue
		}
		log.Printf("secondary record failed: user=%s project=%s err=%v", userID, projectID, err)
	}
	return primary
}

type Config struct {
	Interval  time.Duration
	UserID    string
	ProjectID string
	// AlertOnUnavailable raises an alert for a missing fix; it is always logged.
	AlertOnUnavailable bool
}

type Sampler struct {
	src     Source
	rec     Recorder
	cfg     Config
	alerter alert.Alerter
}

func New(src Source, rec Recorder, cfg Config, alerter alert.Alerter) *Sampler {
	if alerter == nil {
		alerter = alert.LogAlerter{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Sampler{src: src, rec: rec, cfg: cfg, alerter: alerter}
}

// Sample takes one fix. It fails with ErrPermissionDenied when location access
// was not granted and with ErrLocationUnavailable when no fix could be had.
func (s *Sampler) Sample(ctx context.Context) (tracking.LocationPoint, error) {
	granted, err := s.src.PermissionGranted(ctx)
	if err != nil {
		return tracking.LocationPoint{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}
	if !granted {
		return tracking.LocationPoint{}, ErrPermissionDenied
	}

	point, err := s.src.CurrentPosition(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrLocationUnavailable) {
			return tracking.LocationPoint{}, err
		}
		return tracking.LocationPoint{}, fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = time.Now()
	}
	return point, nil
}

// Run samples until ctx is done. The next tick is scheduled only once the
// previous sample and its write have settled, so cycles never overlap.
// A denied permission stops the loop and is returned.
func (s *Sampler) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		if err := s.cycle(ctx); err != nil {
			return err
		}
		timer.Reset(s.cfg.Interval)
	}
}

func (s *Sampler) cycle(ctx context.Context) error {
	point, err := s.Sample(ctx)
	switch {
	case errors.Is(err, ErrPermissionDenied):
		metrics.Samples.WithLabelValues("permission_denied").Inc()
		log.Printf("sampling stopped: user=%s err=%v", s.cfg.UserID, err)
		s.alerter.Alert("Permiso denegado", "Se necesita permiso de ubicación para registrar el recorrido")
		return err
	case err != nil:
		if ctx.Err() != nil {
			return nil
		}
		metrics.Samples.WithLabelValues("unavailable").Inc()
		log.Printf("location fix failed: user=%s err=%v", s.cfg.UserID, err)
		if s.cfg.AlertOnUnavailable {
			s.alerter.Alert("Ubicación no disponible", err.Error())
		}
		return nil
	}

	if err := s.rec.Record(ctx, s.cfg.UserID, s.cfg.ProjectID, point); err != nil {
		metrics.Samples.WithLabelValues("write_failed").Inc()
		log.Printf("sample dropped: user=%s project=%s err=%v", s.cfg.UserID, s.cfg.ProjectID, err)
		return nil
	}
	metrics.Samples.WithLabelValues("ok").Inc()
	return nil
}
