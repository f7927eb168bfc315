package monitor

import (
	"context"
	"log"
	"time"

	"backend-forestguard/internal/livemap"
	"backend-forestguard/internal/mapview"
	"backend-forestguard/internal/session"
	"backend-forestguard/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type Dates interface {
	Today() string
	ParseDate(value string) (string, error)
}

// rolloverEvery is how often a feed without a fixed date checks for a new day.
var rolloverEvery = time.Minute

// command is a client message on the live map feed.
type command struct {
	Action    string `json:"action"`
	WorkerID  string `json:"worker_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
}

const (
	actionSelect    = "select"
	actionSelectAll = "select_all"
	actionProject   = "project"
)

// RegisterRoutes serves the live map: every change to the followed project's
// paths pushes the full map view. Clients switch worker or project with
// command messages; without a date query the feed follows the current day.
func RegisterRoutes(r fiber.Router, sub PathSubscriber, dates Dates, def mapview.Region) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if raw := c.Query("date"); raw != "" {
			date, err := dates.ParseDate(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			c.Locals("date", date)
		}
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	})

	r.Get("/ws/:projectID", websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)
		today := dates.Today
		fixed, _ := c.Locals("date").(string)
		if fixed != "" {
			today = func() string { return fixed }
		}

		dirty := make(chan struct{}, 1)
		state := session.New(userID, c.Params("projectID"))
		mon := New(state, sub, Options{
			Today:   today,
			Default: def,
			OnChange: func(View) {
				select {
				case dirty <- struct{}{}:
				default:
				}
			},
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if worker := c.Query("worker"); worker != "" {
			mon.Select(worker)
		}
		if err := mon.Start(ctx); err != nil {
			_ = c.WriteJSON(fiber.Map{"error": err.Error()})
			mon.Close()
			return
		}
		defer mon.Close()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				var cmd command
				if err := c.ReadJSON(&cmd); err != nil {
					return
				}
				switch cmd.Action {
				case actionSelect:
					mon.Select(cmd.WorkerID)
				case actionSelectAll:
					mon.SelectAll()
				case actionProject:
					if cmd.ProjectID != "" {
						state.SetProject(cmd.ProjectID)
					}
				}
			}
		}()

		tick := time.NewTicker(rolloverEvery)
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				if fixed != "" {
					continue
				}
				if err := mon.Rollover(); err != nil {
					log.Printf("map feed rollover failed: user=%s err=%v", userID, err)
				}
			case <-dirty:
				if err := c.WriteJSON(toMapView(mon.View(ctx))); err != nil {
					return
				}
			}
		}
	}))
}

func toMapView(v View) livemap.MapView {
	paths := v.Paths
	if paths == nil {
		paths = []tracking.WorkerPath{}
	}
	return livemap.MapView{
		ProjectID: v.ProjectID,
		Date:      v.Date,
		Selected:  v.Selected,
		Workers:   livemap.Legend(v.All),
		Paths:     paths,
		Region:    v.Region,
	}
}
