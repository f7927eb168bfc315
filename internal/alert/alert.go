package alert

import (
	"log"
	"sync"
)

// Alerter reports a failure to the person operating the app. Alerts are
// informational; nothing is retried on their behalf.
type Alerter interface {
	Alert(title, message string)
}

type LogAlerter struct{}

func (LogAlerter) Alert(title, message string) {
	log.Printf("ALERT title=%q message=%q", title, message)
}

// Recorder keeps alerts in memory so callers can inspect what was raised.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

type Alert struct {
	Title   string
	Message string
}

func (r *Recorder) Alert(title, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, Alert{Title: title, Message: message})
}

func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}
