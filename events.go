package paygate

import (
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	// PaymentEventAttempt indicates a request reached a priced endpoint.
	PaymentEventAttempt PaymentEventType = "attempt"

	// PaymentEventGranted indicates the gate admitted the request.
	PaymentEventGranted PaymentEventType = "granted"

	// PaymentEventDenied indicates the gate refused the request.
	PaymentEventDenied PaymentEventType = "denied"
)

// PaymentEvent is one gate lifecycle event, emitted per terminal state and
// on attempt. Used for logging and for the per-resource counters behind
// the stats endpoint.
type PaymentEvent struct {
	// Type is the event type.
	Type PaymentEventType

	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Resource is the protected resource the event concerns.
	Resource string

	// Network is the settlement network, when known.
	Network string

	// Amount is the advertised price, when known.
	Amount string

	// Code is the denial code for denied events.
	Code DenialCode
}

// ResourceStats holds monotonically increasing counters for one resource.
type ResourceStats struct {
	attempts atomic.Int64
	granted  atomic.Int64
	denied   atomic.Int64
	rejected atomic.Int64
}

// StatsSnapshot is a point-in-time copy of one resource's counters.
type StatsSnapshot struct {
	Attempts int64 `json:"attempts"`
	Granted  int64 `json:"granted"`
	Denied   int64 `json:"denied"`
	Rejected int64 `json:"rejected"`
}

// Recorder accumulates per-resource payment counters. Safe for concurrent
// use by many in-flight gates; counters are lock-free.
type Recorder struct {
	stats *xsync.MapOf[string, *ResourceStats]
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{stats: xsync.NewMapOf[string, *ResourceStats]()}
}

// Record applies one event to the counters.
func (r *Recorder) Record(ev PaymentEvent) {
	if ev.Resource == "" {
		return
	}
	s, _ := r.stats.LoadOrCompute(ev.Resource, func() *ResourceStats {
		return &ResourceStats{}
	})
	switch ev.Type {
	case PaymentEventAttempt:
		s.attempts.Add(1)
	case PaymentEventGranted:
		s.granted.Add(1)
	case PaymentEventDenied:
		s.denied.Add(1)
		if ev.Code == CodePaymentRejected {
			s.rejected.Add(1)
		}
	}
}

// Snapshot returns a copy of every resource's counters.
func (r *Recorder) Snapshot() map[string]StatsSnapshot {
	out := make(map[string]StatsSnapshot)
	r.stats.Range(func(resource string, s *ResourceStats) bool {
		out[resource] = StatsSnapshot{
			Attempts: s.attempts.Load(),
			Granted:  s.granted.Load(),
			Denied:   s.denied.Load(),
			Rejected: s.rejected.Load(),
		}
		return true
	})
	return out
}
