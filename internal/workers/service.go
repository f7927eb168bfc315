package workers

import (
	"context"
	"encoding/json"
	"time"

	"backend-forestguard/internal/db"
	"backend-forestguard/internal/tracking"

	"github.com/pkg/errors"
)

var (
	ErrDirectoryRead = errors.New("worker directory read failed")
	ErrUnknownWorker = errors.New("unknown worker")
)

type Service struct {
	db  db.Querier
	now func() time.Time
}

func NewService(db db.Querier) *Service {
	return &Service{db: db, now: time.Now}
}

// LoadWorkers reads the whole directory and keeps the workers holding a role in
// projectID. Volumes are tens of workers, so there is no paging or caching.
func (s *Service) LoadWorkers(ctx context.Context, projectID string) (Directory, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, email, proyectos, location, last_location_update
		FROM usuarios
	`)
	if err != nil {
		return nil, errors.Wrapf(ErrDirectoryRead, "%v", err)
	}
	defer rows.Close()

	dir := Directory{}
	for rows.Next() {
		var w Worker
		var projects, location []byte
		if err := rows.Scan(&w.ID, &w.Name, &w.Email, &projects, &location, &w.LastLocationUpdate); err != nil {
			return nil, errors.Wrapf(ErrDirectoryRead, "scan: %v", err)
		}
		if len(projects) > 0 {
			if err := json.Unmarshal(projects, &w.Projects); err != nil {
				return nil, errors.Wrapf(ErrDirectoryRead, "decode proyectos of %s: %v", w.ID, err)
			}
		}
		if !w.AssignedTo(projectID) {
			continue
		}
		if len(location) > 0 {
			var p tracking.LocationPoint
			if err := json.Unmarshal(location, &p); err == nil {
				w.Location = &p
			}
		}
		dir[w.ID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(ErrDirectoryRead, "%v", err)
	}
	return dir, nil
}

// UpdateLocation stores the worker's last known position.
func (s *Service) UpdateLocation(ctx context.Context, userID string, point tracking.LocationPoint) error {
	if point.Timestamp.IsZero() {
		point.Timestamp = s.now()
	}
	point.Timestamp = point.Timestamp.UTC()
	encoded, err := json.Marshal(point)
	if err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE usuarios SET location=$2::jsonb, last_location_update=$3
		WHERE id=$1
	`, userID, string(encoded), point.Timestamp)
	if err != nil {
		return errors.Wrapf(err, "update location of %s", userID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrap(ErrUnknownWorker, userID)
	}
	return nil
}

// Record adapts UpdateLocation to the sampler's recorder shape.
func (s *Service) Record(ctx context.Context, userID, _ string, point tracking.LocationPoint) error {
	return s.UpdateLocation(ctx, userID, point)
}
