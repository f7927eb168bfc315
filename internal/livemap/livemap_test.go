package livemap

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"backend-forestguard/internal/alert"
	"backend-forestguard/internal/metrics"
	"backend-forestguard/internal/stream"
	"backend-forestguard/internal/tracking"
	"backend-forestguard/internal/workers"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

var (
	t0       = time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	errStore = errors.New("store down")
)

type fakeStore struct {
	mu      sync.Mutex
	docs    map[string][]tracking.PathDocument
	dir     workers.Directory
	docErr  error
	dirErr  error
	queries int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: map[string][]tracking.PathDocument{}, dir: workers.Directory{}}
}

func (f *fakeStore) Documents(_ context.Context, projectID, date string) ([]tracking.PathDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.docErr != nil {
		return nil, f.docErr
	}
	return append([]tracking.PathDocument(nil), f.docs[projectID+"/"+date]...), nil
}

func (f *fakeStore) LoadWorkers(_ context.Context, projectID string) (workers.Directory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dirErr != nil {
		return nil, f.dirErr
	}
	out := workers.Directory{}
	for id, w := range f.dir {
		if w.AssignedTo(projectID) {
			out[id] = w
		}
	}
	return out, nil
}

func (f *fakeStore) put(doc tracking.PathDocument) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := doc.ProjectID + "/" + doc.Date
	for i, d := range f.docs[key] {
		if d.UserID == doc.UserID {
			f.docs[key][i] = doc
			return
		}
	}
	f.docs[key] = append(f.docs[key], doc)
}

func (f *fakeStore) addWorker(w workers.Worker) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dir[w.ID] = w
}

func pt(lat, lng float64, offset time.Duration) tracking.LocationPoint {
	return tracking.LocationPoint{Latitude: lat, Longitude: lng, Timestamp: t0.Add(offset)}
}

func doc(projectID, userID string, points ...tracking.LocationPoint) tracking.PathDocument {
	return tracking.PathDocument{
		ID:        tracking.DocumentKey(projectID, userID, "2024-05-01"),
		UserID:    userID,
		ProjectID: projectID,
		Date:      "2024-05-01",
		Locations: points,
	}
}

func TestBuildPathsOrdersAndDeduplicates(t *testing.T) {
	d := doc("P1", "U1",
		pt(-12.11, -77.01, 10*time.Second),
		pt(-12.10, -77.00, 0),
		pt(-12.11, -77.01, 10*time.Second),
		pt(-12.12, -77.02, 10*time.Second),
	)
	paths := BuildPaths([]tracking.PathDocument{d}, workers.Directory{
		"U1": {ID: "U1", Name: "Ana", Projects: map[string]string{"P1": workers.RoleOperator}},
	})

	if len(paths) != 1 {
		t.Fatalf("expected one path")
	}
	p := paths[0]
	if p.UserName != "Ana" || p.Role != workers.RoleOperator {
		t.Fatalf("unexpected identity: %+v", p)
	}
	if len(p.Locations) != 3 {
		t.Fatalf("expected duplicate collapsed, got %d points", len(p.Locations))
	}
	for i := 1; i < len(p.Locations); i++ {
		if p.Locations[i].Timestamp.Before(p.Locations[i-1].Timestamp) {
			t.Fatalf("points out of order at %d", i)
		}
	}
	if p.DistanceM <= 0 {
		t.Fatalf("expected distance")
	}
	if start, _ := p.Start(); start.Latitude != -12.10 {
		t.Fatalf("unexpected start marker")
	}
	if len(d.Locations) != 4 || d.Locations[0].Latitude != -12.11 {
		t.Fatalf("document points must not be modified")
	}
}

func TestBuildPathsUnknownUserAndStableColor(t *testing.T) {
	docs := []tracking.PathDocument{doc("P1", "U1", pt(1, 1, 0)), doc("P1", "U2", pt(2, 2, 0))}
	forward := BuildPaths(docs, nil)
	reversed := BuildPaths([]tracking.PathDocument{docs[1], docs[0]}, nil)

	for _, p := range forward {
		if p.UserName != UnknownUser {
			t.Fatalf("expected unresolved name, got %q", p.UserName)
		}
	}
	colors := map[string]string{}
	for _, p := range forward {
		colors[p.UserID] = p.Color
	}
	for _, p := range reversed {
		if colors[p.UserID] != p.Color {
			t.Fatalf("colour of %s changed with document order", p.UserID)
		}
	}
	if ColorFor("U1") != ColorFor("U1") {
		t.Fatalf("colour must be deterministic")
	}
}

func collect() (func([]tracking.WorkerPath), <-chan []tracking.WorkerPath) {
	ch := make(chan []tracking.WorkerPath, 16)
	return func(p []tracking.WorkerPath) { ch <- p }, ch
}

func next(t *testing.T, ch <-chan []tracking.WorkerPath) []tracking.WorkerPath {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for update")
	}
	return nil
}

func TestSubscribeDeliversUpdates(t *testing.T) {
	store := newFakeStore()
	store.put(doc("P1", "U1", pt(-12.10, -77.00, 0)))
	hub := stream.NewHub(nil)
	sub := NewSubscriber(store, store, hub, &alert.Recorder{})

	onUpdate, updates := collect()
	s, err := sub.Subscribe(context.Background(), "P1", "2024-05-01", onUpdate)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()

	first := next(t, updates)
	if len(first) != 1 || first[0].UserName != UnknownUser {
		t.Fatalf("unexpected initial paths: %+v", first)
	}

	// a worker assigned mid-day is resolved on the next change
	store.addWorker(workers.Worker{ID: "U1", Name: "Ana", Projects: map[string]string{"P1": workers.RoleFeller}})
	store.put(doc("P1", "U1", pt(-12.10, -77.00, 0), pt(-12.11, -77.01, 10*time.Second)))
	hub.Broadcast(stream.Topic("P1", "2024-05-01"), []byte(`{}`))

	second := next(t, updates)
	if len(second) != 1 || len(second[0].Locations) != 2 || second[0].UserName != "Ana" {
		t.Fatalf("unexpected updated paths: %+v", second)
	}
}

func TestSubscribeIgnoresOtherTopics(t *testing.T) {
	store := newFakeStore()
	hub := stream.NewHub(nil)
	sub := NewSubscriber(store, store, hub, &alert.Recorder{})

	onUpdate, updates := collect()
	s, err := sub.Subscribe(context.Background(), "P1", "2024-05-01", onUpdate)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()
	next(t, updates)

	hub.Broadcast(stream.Topic("P2", "2024-05-01"), []byte(`{}`))
	hub.Broadcast(stream.Topic("P1", "2024-05-02"), []byte(`{}`))

	select {
	case <-updates:
		t.Fatalf("unexpected update from another project or day")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	store := newFakeStore()
	hub := stream.NewHub(nil)
	sub := NewSubscriber(store, store, hub, &alert.Recorder{})

	onUpdate, updates := collect()
	s, err := sub.Subscribe(context.Background(), "P1", "2024-05-01", onUpdate)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	next(t, updates)

	s.Close()
	s.Close()
	select {
	case <-s.Done():
	default:
		t.Fatalf("expected subscription stopped")
	}

	hub.Broadcast(stream.Topic("P1", "2024-05-01"), []byte(`{}`))
	select {
	case <-updates:
		t.Fatalf("update delivered after close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionReleasedWhenContextEnds(t *testing.T) {
	store := newFakeStore()
	hub := stream.NewHub(nil)
	sub := NewSubscriber(store, store, hub, &alert.Recorder{})

	clients := testutil.ToFloat64(metrics.StreamClients)
	active := testutil.ToFloat64(metrics.ActiveSubscriptions)

	ctx, cancel := context.WithCancel(context.Background())
	onUpdate, updates := collect()
	s, err := sub.Subscribe(ctx, "P1", "2024-05-01", onUpdate)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	next(t, updates)
	if got := testutil.ToFloat64(metrics.StreamClients); got != clients+1 {
		t.Fatalf("expected one more hub client, got %v", got-clients)
	}

	cancel()
	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("subscription did not stop with its context")
	}

	if got := testutil.ToFloat64(metrics.StreamClients); got != clients {
		t.Fatalf("hub client leaked: %v registered", got-clients)
	}
	if got := testutil.ToFloat64(metrics.ActiveSubscriptions); got != active {
		t.Fatalf("subscription gauge leaked: %v", got-active)
	}

	hub.Broadcast(stream.Topic("P1", "2024-05-01"), []byte(`{}`))
	select {
	case <-updates:
		t.Fatalf("update delivered after the context ended")
	case <-time.After(50 * time.Millisecond):
	}

	s.Close()
	if got := testutil.ToFloat64(metrics.ActiveSubscriptions); got != active {
		t.Fatalf("close after release must not decrement again")
	}
}

func TestSubscribeInitialLoadError(t *testing.T) {
	store := newFakeStore()
	store.docErr = errStore
	alerts := &alert.Recorder{}
	hub := stream.NewHub(nil)

	_, err := NewSubscriber(store, store, hub, alerts).Subscribe(context.Background(), "P1", "2024-05-01", func([]tracking.WorkerPath) {
		t.Fatalf("no update expected")
	})
	if !errors.Is(err, errStore) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(alerts.Alerts()) != 1 {
		t.Fatalf("expected one alert")
	}
}

func TestSubscribeDirectoryErrorDegrades(t *testing.T) {
	store := newFakeStore()
	store.dirErr = errStore
	store.put(doc("P1", "U1", pt(1, 1, 0)))
	alerts := &alert.Recorder{}

	onUpdate, updates := collect()
	s, err := NewSubscriber(store, store, stream.NewHub(nil), alerts).Subscribe(context.Background(), "P1", "2024-05-01", onUpdate)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()

	paths := next(t, updates)
	if len(paths) != 1 || paths[0].UserName != UnknownUser {
		t.Fatalf("expected unresolved path, got %+v", paths)
	}
	if len(alerts.Alerts()) != 1 {
		t.Fatalf("expected directory alert")
	}
}

func TestSubscribeRefreshErrorAlerts(t *testing.T) {
	store := newFakeStore()
	alerts := &alert.Recorder{}
	hub := stream.NewHub(nil)

	onUpdate, updates := collect()
	s, err := NewSubscriber(store, store, hub, alerts).Subscribe(context.Background(), "P1", "2024-05-01", onUpdate)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer s.Close()
	next(t, updates)

	store.mu.Lock()
	store.docErr = errStore
	store.mu.Unlock()
	hub.Broadcast(stream.Topic("P1", "2024-05-01"), []byte(`{}`))

	deadline := time.Now().Add(time.Second)
	for len(alerts.Alerts()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(alerts.Alerts()) != 1 {
		t.Fatalf("expected refresh alert")
	}
}
