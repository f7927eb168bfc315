package livemap

import (
	"strconv"
	"strings"

	"backend-forestguard/internal/mapview"
	"backend-forestguard/internal/shared/geo"
	"backend-forestguard/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
)

type DateParser interface {
	ParseDate(value string) (string, error)
}

// MapView is the payload of both the map snapshot and the live map feed.
type MapView struct {
	ProjectID string                `json:"project_id"`
	Date      string                `json:"date"`
	Selected  string                `json:"selected,omitempty"`
	Workers   []LegendEntry         `json:"workers"`
	Paths     []tracking.WorkerPath `json:"paths"`
	Region    mapview.Region        `json:"region"`
}

// LegendEntry lists a worker with a path, including those filtered out.
type LegendEntry struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Color    string `json:"color"`
}

func Legend(paths []tracking.WorkerPath) []LegendEntry {
	legend := make([]LegendEntry, 0, len(paths))
	for _, p := range paths {
		legend = append(legend, LegendEntry{UserID: p.UserID, UserName: p.UserName, Color: p.Color})
	}
	return legend
}

// ParsePolygon reads "lat,lng;lat,lng;..." with at least three vertices.
func ParsePolygon(value string) ([]geo.Point, error) {
	parts := strings.Split(value, ";")
	if len(parts) < 3 {
		return nil, errors.New("polygon needs at least three lat,lng vertices")
	}
	polygon := make([]geo.Point, 0, len(parts))
	for _, part := range parts {
		latlng := strings.Split(strings.TrimSpace(part), ",")
		if len(latlng) != 2 {
			return nil, errors.Errorf("bad polygon vertex %q", part)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latlng[0]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "polygon vertex %q", part)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(latlng[1]), 64)
		if err != nil {
			return nil, errors.Wrapf(err, "polygon vertex %q", part)
		}
		polygon = append(polygon, geo.Point{Lat: lat, Lng: lng})
	}
	return polygon, nil
}

// RegisterRoutes serves the map view of a project's day. def frames the map
// when nobody has recorded a point yet. A polygon query keeps only the points
// inside it.
func RegisterRoutes(r fiber.Router, sub *Subscriber, dates DateParser, def mapview.Region) {
	r.Get("/projects/:projectID", func(c *fiber.Ctx) error {
		date, err := dates.ParseDate(c.Query("date"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		var polygon []geo.Point
		if raw := c.Query("polygon"); raw != "" {
			if polygon, err = ParsePolygon(raw); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
		}
		projectID := c.Params("projectID")

		paths, err := sub.Snapshot(c.Context(), projectID, date)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}

		displayed := mapview.Filter(paths, c.Query("worker"))
		if polygon != nil {
			displayed = mapview.Lasso(displayed, polygon)
			if displayed == nil {
				displayed = []tracking.WorkerPath{}
			}
		}
		return c.JSON(MapView{
			ProjectID: projectID,
			Date:      date,
			Selected:  c.Query("worker"),
			Workers:   Legend(paths),
			Paths:     displayed,
			Region:    mapview.Frame(c.Context(), displayed, nil, def),
		})
	})
}
