package monitor

import (
	"context"
	"log"
	"sync"

	"backend-forestguard/internal/livemap"
	"backend-forestguard/internal/mapview"
	"backend-forestguard/internal/session"
	"backend-forestguard/internal/tracking"
)

type PathSubscriber interface {
	Subscribe(ctx context.Context, projectID, date string, onUpdate func([]tracking.WorkerPath)) (*livemap.Subscription, error)
}

// View is what the map renders: the displayed paths, the full legend and the frame.
type View struct {
	ProjectID string
	Date      string
	Selected  string
	All       []tracking.WorkerPath
	Paths     []tracking.WorkerPath
	Region    mapview.Region
}

type Options struct {
	// Today returns the local day to follow.
	Today func() string
	// Locator and Default frame the map when no path has a point.
	Locator mapview.Locator
	Default mapview.Region
	// OnChange is called after every path update or selection change. It must
	// not switch the session's project.
	OnChange func(View)
}

// Monitor follows the active project of a session. Switching project resets
// the selection and replaces the path subscription.
type Monitor struct {
	state     *session.State
	sub       PathSubscriber
	opts      Options
	selection mapview.Selection

	mu         sync.Mutex
	ctx        context.Context
	current    *livemap.Subscription
	generation int
	projectID  string
	date       string
	paths      []tracking.WorkerPath
	stopWatch  func()
	closed     bool
}

func New(state *session.State, sub PathSubscriber, opts Options) *Monitor {
	return &Monitor{state: state, sub: sub, opts: opts}
}

func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()

	m.stopWatch = m.state.OnProjectChange(func(_, current string) {
		m.selection.Reset()
		if err := m.follow(current); err != nil {
			log.Printf("monitor resubscribe failed: project=%s err=%v", current, err)
		}
	})
	return m.follow(m.state.CurrentProject())
}

// Rollover follows the new day once Today changes.
func (m *Monitor) Rollover() error {
	m.mu.Lock()
	stale := m.date != m.opts.Today()
	projectID := m.projectID
	m.mu.Unlock()
	if !stale {
		return nil
	}
	return m.follow(projectID)
}

func (m *Monitor) follow(projectID string) error {
	date := m.opts.Today()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.generation++
	gen := m.generation
	old := m.current
	m.current = nil
	m.projectID = projectID
	m.date = date
	m.paths = nil
	ctx := m.ctx
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
	if projectID == "" {
		m.notify()
		return nil
	}

	sub, err := m.sub.Subscribe(ctx, projectID, date, func(paths []tracking.WorkerPath) {
		m.update(gen, paths)
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	if gen != m.generation || m.closed {
		m.mu.Unlock()
		sub.Close()
		return nil
	}
	m.current = sub
	m.mu.Unlock()
	return nil
}

func (m *Monitor) update(gen int, paths []tracking.WorkerPath) {
	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return
	}
	m.paths = paths
	m.mu.Unlock()
	m.notify()
}

func (m *Monitor) Select(workerID string) {
	m.selection.Select(workerID)
	m.notify()
}

func (m *Monitor) SelectAll() {
	m.selection.SelectAll()
	m.notify()
}

func (m *Monitor) Displayed() []tracking.WorkerPath {
	m.mu.Lock()
	paths := m.paths
	m.mu.Unlock()
	return m.selection.Displayed(paths)
}

func (m *Monitor) Region(ctx context.Context) mapview.Region {
	return mapview.Frame(ctx, m.Displayed(), m.opts.Locator, m.opts.Default)
}

func (m *Monitor) View(ctx context.Context) View {
	m.mu.Lock()
	v := View{ProjectID: m.projectID, Date: m.date, All: m.paths}
	m.mu.Unlock()

	v.Selected, _ = m.selection.Selected()
	v.Paths = mapview.Filter(v.All, v.Selected)
	v.Region = mapview.Frame(ctx, v.Paths, m.opts.Locator, m.opts.Default)
	return v
}

func (m *Monitor) notify() {
	if m.opts.OnChange == nil {
		return
	}
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	m.opts.OnChange(m.View(ctx))
}

// Close stops watching the session and releases the subscription.
func (m *Monitor) Close() {
	if m.stopWatch != nil {
		m.stopWatch()
	}
	m.mu.Lock()
	m.closed = true
	m.generation++
	old := m.current
	m.current = nil
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}
}
