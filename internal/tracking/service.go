package tracking

import (
	"context"
	"encoding/json"
	"time"

	"backend-forestguard/internal/db"
	"backend-forestguard/internal/metrics"
	"backend-forestguard/internal/stream"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const dateLayout = "2006-01-02"

var (
	ErrStoreWrite       = errors.New("path store write failed")
	ErrStoreRead        = errors.New("path store read failed")
	ErrDocumentNotFound = errors.New("path document not found")
	ErrInvalidPoint     = errors.New("invalid location point")
)

type Service struct {
	db  db.Querier
	hub *stream.Hub
	loc *time.Location
	now func() time.Time
}

// NewService keys documents by the calendar day in loc (UTC when nil).
func NewService(db db.Querier, hub *stream.Hub, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: db, hub: hub, loc: loc, now: time.Now}
}

// DateOf formats the wall-clock day of ts in loc as YYYY-MM-DD.
func DateOf(ts time.Time, loc *time.Location) string {
	return ts.In(loc).Format(dateLayout)
}

func DocumentKey(projectID, userID, date string) string {
	return projectID + "_" + userID + "_" + date
}

// Today is the current local day used as the default query date.
func (s *Service) Today() string {
	return DateOf(s.now(), s.loc)
}

// ParseDate validates a YYYY-MM-DD value; empty means today.
func (s *Service) ParseDate(value string) (string, error) {
	if value == "" {
		return s.Today(), nil
	}
	if _, err := time.ParseInLocation(dateLayout, value, s.loc); err != nil {
		return "", errors.New("date format must be YYYY-MM-DD")
	}
	return value, nil
}

// AppendPoint records a point in the worker's document for the point's local day.
// The document is created on the first point of the day; a point already present
// is not appended again.
func (s *Service) AppendPoint(ctx context.Context, userID, projectID string, point LocationPoint) (AppendResult, error) {
	if userID == "" || projectID == "" {
		return AppendResult{}, errors.Wrap(ErrInvalidPoint, "user and project required")
	}
	if point.Latitude < -90 || point.Latitude > 90 || point.Longitude < -180 || point.Longitude > 180 {
		return AppendResult{}, errors.Wrapf(ErrInvalidPoint, "coordinates out of range (%f, %f)", point.Latitude, point.Longitude)
	}
	if point.Timestamp.IsZero() {
		point.Timestamp = s.now()
	}
	point.Timestamp = point.Timestamp.UTC()

	date := DateOf(point.Timestamp, s.loc)
	key := DocumentKey(projectID, userID, date)

	encoded, err := json.Marshal(point)
	if err != nil {
		return AppendResult{}, errors.Wrap(err, "encode point")
	}

	// A point already in the array matches no row in the conflict update, so
	// nothing is returned and nothing is rewritten.
	var count int
	appended := true
	err = s.db.QueryRow(ctx, `
		INSERT INTO ubicaciones_recorrido (id, user_id, project_id, date, locations)
		VALUES ($1,$2,$3,$4, jsonb_build_array($5::jsonb))
		ON CONFLICT (id) DO UPDATE
		SET locations = ubicaciones_recorrido.locations || jsonb_build_array($5::jsonb)
		WHERE NOT ubicaciones_recorrido.locations @> jsonb_build_array($5::jsonb)
		RETURNING jsonb_array_length(locations)
	`, key, userID, projectID, date, string(encoded)).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		appended = false
		err = s.db.QueryRow(ctx, `
			SELECT jsonb_array_length(locations) FROM ubicaciones_recorrido WHERE id=$1
		`, key).Scan(&count)
	}
	if err != nil {
		metrics.StoreWriteFailures.Inc()
		return AppendResult{}, errors.Wrapf(ErrStoreWrite, "append %s: %v", key, err)
	}
	if !appended {
		return AppendResult{ID: key, Date: date, PointCount: count}, nil
	}
	metrics.PointsAppended.Inc()

	if s.hub != nil {
		payload, _ := json.Marshal(ChangeEvent{
			Type:      EventPathUpdated,
			ProjectID: projectID,
			UserID:    userID,
			Date:      date,
			Point:     point,
		})
		s.hub.Broadcast(stream.Topic(projectID, date), payload)
	}

	return AppendResult{ID: key, Date: date, PointCount: count, Appended: true}, nil
}

// Record adapts AppendPoint to the sampler's recorder shape.
func (s *Service) Record(ctx context.Context, userID, projectID string, point LocationPoint) error {
	_, err := s.AppendPoint(ctx, userID, projectID, point)
	return err
}

// Documents returns every path document of a project on a day.
func (s *Service) Documents(ctx context.Context, projectID, date string) ([]PathDocument, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, project_id, date, locations
		FROM ubicaciones_recorrido
		WHERE project_id=$1 AND date=$2
	`, projectID, date)
	if err != nil {
		return nil, errors.Wrapf(ErrStoreRead, "documents %s/%s: %v", projectID, date, err)
	}
	defer rows.Close()

	var docs []PathDocument
	for rows.Next() {
		var d PathDocument
		var raw []byte
		if err := rows.Scan(&d.ID, &d.UserID, &d.ProjectID, &d.Date, &raw); err != nil {
			return nil, errors.Wrapf(ErrStoreRead, "scan document: %v", err)
		}
		if err := decodeLocations(raw, &d); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(ErrStoreRead, "documents %s/%s: %v", projectID, date, err)
	}
	return docs, nil
}

func (s *Service) Document(ctx context.Context, projectID, userID, date string) (PathDocument, error) {
	key := DocumentKey(projectID, userID, date)
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, project_id, date, locations
		FROM ubicaciones_recorrido WHERE id=$1
	`, key)

	var d PathDocument
	var raw []byte
	if err := row.Scan(&d.ID, &d.UserID, &d.ProjectID, &d.Date, &raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PathDocument{}, errors.Wrap(ErrDocumentNotFound, key)
		}
		return PathDocument{}, errors.Wrapf(ErrStoreRead, "document %s: %v", key, err)
	}
	if err := decodeLocations(raw, &d); err != nil {
		return PathDocument{}, err
	}
	return d, nil
}

func decodeLocations(raw []byte, d *PathDocument) error {
	if len(raw) == 0 {
		d.Locations = []LocationPoint{}
		return nil
	}
	if err := json.Unmarshal(raw, &d.Locations); err != nil {
		return errors.Wrapf(ErrStoreRead, "decode locations of %s: %v", d.ID, err)
	}
	return nil
}
