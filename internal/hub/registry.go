package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hutanwatch/forest-monitor/internal/classifier"
	"github.com/hutanwatch/forest-monitor/internal/telemetry"
	"go.uber.org/zap"
)

// Event is one live update pushed to every connected observer: the original
// message plus the area classification computed after it was applied.
type Event struct {
	Type       string            `json:"type"`
	Payload    telemetry.Message `json:"payload"`
	AreaStatus classifier.Status `json:"area_status"`
	AreaValues classifier.Values `json:"area_values"`
}

// NewTelemetryEvent builds the broadcast event for one accepted message.
func NewTelemetryEvent(msg telemetry.Message, assessment classifier.Assessment) Event {
	return Event{
		Type:       "telemetry",
		Payload:    msg,
		AreaStatus: assessment.Status,
		AreaValues: assessment.Values,
	}
}

// Observer is one live connection receiving broadcast frames. Enqueue must
// not block; it reports false when the frame was dropped. An observer that
// stops draining loses frames, never stalls the registry or its peers.
// Observers announce their own disconnection, which is when Unregister runs;
// the registry never removes one proactively.
type Observer interface {
	Enqueue(frame []byte) bool
}

// Registry tracks live observers and fans each event out to all of them.
// The bounded queue decouples the ingestion pipeline from fan-out latency:
// Broadcast never blocks the message callback, and a single dispatch
// goroutine preserves event order for every observer.
type Registry struct {
	logger *zap.Logger
	queue  chan Event

	mu        sync.Mutex
	observers map[Observer]struct{}
}

// NewRegistry creates a registry with the given broadcast queue depth.
func NewRegistry(buffer int, logger *zap.Logger) *Registry {
	if buffer <= 0 {
		buffer = 1
	}
	return &Registry{
		logger:    logger,
		queue:     make(chan Event, buffer),
		observers: make(map[Observer]struct{}),
	}
}

// Register adds an observer to the live set.
func (r *Registry) Register(o Observer) {
	r.mu.Lock()
	r.observers[o] = struct{}{}
	count := len(r.observers)
	r.mu.Unlock()

	r.logger.Info("observer registered", zap.Int("observers", count))
}

// Unregister removes an observer; safe to call more than once.
func (r *Registry) Unregister(o Observer) {
	r.mu.Lock()
	_, known := r.observers[o]
	delete(r.observers, o)
	count := len(r.observers)
	r.mu.Unlock()

	if known {
		r.logger.Info("observer unregistered", zap.Int("observers", count))
	}
}

// Broadcast enqueues an event for fan-out. If the queue is full the event
// is dropped with a diagnostic; live delivery is best-effort.
func (r *Registry) Broadcast(event Event) {
	select {
	case r.queue <- event:
	default:
		r.logger.Warn("broadcast queue full, dropping event",
			zap.String("sensor_id", event.Payload.SensorID))
	}
}

// Run drains the broadcast queue until the context is cancelled. Each event
// is marshalled once so every observer receives a byte-identical frame.
func (r *Registry) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-r.queue:
			r.dispatch(event)
		}
	}
}

func (r *Registry) dispatch(event Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("failed to marshal broadcast event", zap.Error(err))
		return
	}

	r.mu.Lock()
	observers := make([]Observer, 0, len(r.observers))
	for o := range r.observers {
		observers = append(observers, o)
	}
	r.mu.Unlock()

	for _, o := range observers {
		if !o.Enqueue(frame) {
			r.logger.Warn("observer not draining, frame dropped")
		}
	}
}
