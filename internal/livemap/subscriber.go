package livemap

import (
	"context"
	"log"
	"sync"

	"backend-forestguard/internal/alert"
	"backend-forestguard/internal/metrics"
	"backend-forestguard/internal/stream"
	"backend-forestguard/internal/tracking"
	"backend-forestguard/internal/workers"
)

type DocumentSource interface {
	Documents(ctx context.Context, projectID, date string) ([]tracking.PathDocument, error)
}

type DirectorySource interface {
	LoadWorkers(ctx context.Context, projectID string) (workers.Directory, error)
}

// Subscriber keeps a live view of a project's paths for one day.
type Subscriber struct {
	docs    DocumentSource
	dir     DirectorySource
	hub     *stream.Hub
	alerter alert.Alerter
}

func NewSubscriber(docs DocumentSource, dir DirectorySource, hub *stream.Hub, alerter alert.Alerter) *Subscriber {
	if alerter == nil {
		alerter = alert.LogAlerter{}
	}
	return &Subscriber{docs: docs, dir: dir, hub: hub, alerter: alerter}
}

// Snapshot loads the current paths. Names come from a fresh directory load; if
// that load fails the paths are still returned with unresolved names.
func (s *Subscriber) Snapshot(ctx context.Context, projectID, date string) ([]tracking.WorkerPath, error) {
	dir, err := s.dir.LoadWorkers(ctx, projectID)
	if err != nil {
		s.alerter.Alert("Error al cargar trabajadores", err.Error())
		dir = workers.Directory{}
	}

	docs, err := s.docs.Documents(ctx, projectID, date)
	if err != nil {
		return nil, err
	}
	return BuildPaths(docs, dir), nil
}

type Subscription struct {
	ProjectID string
	Date      string

	hub    *stream.Hub
	client *stream.Client
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Subscribe delivers the full path set to onUpdate now and again after every
// change to the project's documents for date. onUpdate runs on one goroutine
// at a time and is never called after Close returns, so Close must not be
// called from inside onUpdate.
func (s *Subscriber) Subscribe(ctx context.Context, projectID, date string, onUpdate func([]tracking.WorkerPath)) (*Subscription, error) {
	client := s.hub.Register(stream.Topic(projectID, date))

	paths, err := s.Snapshot(ctx, projectID, date)
	if err != nil {
		s.hub.Unregister(client)
		s.alerter.Alert("Error al cargar recorridos", err.Error())
		return nil, err
	}
	onUpdate(paths)

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		ProjectID: projectID,
		Date:      date,
		hub:       s.hub,
		client:    client,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	metrics.ActiveSubscriptions.Inc()

	go func() {
		defer func() {
			s.hub.Unregister(client)
			metrics.ActiveSubscriptions.Dec()
			close(sub.done)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-client.Send:
				if !ok {
					return
				}
				drain(client.Send)
				if ctx.Err() != nil {
					return
				}
				s.refresh(ctx, projectID, date, onUpdate)
			}
		}
	}()
	return sub, nil
}

func (s *Subscriber) refresh(ctx context.Context, projectID, date string, onUpdate func([]tracking.WorkerPath)) {
	paths, err := s.Snapshot(ctx, projectID, date)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.SubscriptionRefreshes.WithLabelValues("error").Inc()
		log.Printf("path subscription refresh failed: project=%s date=%s err=%v", projectID, date, err)
		s.alerter.Alert("Error al actualizar recorridos", err.Error())
		return
	}
	if ctx.Err() != nil {
		return
	}
	metrics.SubscriptionRefreshes.WithLabelValues("ok").Inc()
	onUpdate(paths)
}

// drain coalesces queued notifications; one reload covers all of them.
func drain(ch <-chan []byte) {
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

// Close stops delivery and waits for an in-flight update to finish. Ending
// the context passed to Subscribe releases the subscription as well.
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.cancel()
		sub.hub.Unregister(sub.client)
		<-sub.done
	})
}

// Done is closed once the subscription has stopped and released its hub client.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}
