package provisioning

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"
)

// Observer defines the interface for structured observability during preparation.
type Observer interface {
	// Event emits a structured event
	Event(event Event)

	// Progress reports progress for a phase
	Progress(phase string, current, total int)

	// WithFields returns a new Observer with additional context fields
	WithFields(fields map[string]string) Observer
}

// Event represents a structured preparation event.
type Event struct {
	Type      EventType         // Type of event
	Phase     string            // Phase name (e.g., "lock", "pki")
	Message   string            // Human-readable message
	Resource  string            // Resource name or path if applicable
	Timestamp time.Time         // When the event occurred
	Fields    map[string]string // Additional contextual fields
}

// EventType represents the type of preparation event.
type EventType string

const (
	// EventPhaseStarted indicates a phase has started.
	EventPhaseStarted EventType = "phase.started"
	// EventPhaseCompleted indicates a phase completed successfully.
	EventPhaseCompleted EventType = "phase.completed"
	// EventPhaseFailed indicates a phase failed.
	EventPhaseFailed EventType = "phase.failed"

	// EventResourceCreated indicates a file was written.
	EventResourceCreated EventType = "resource.created"
	// EventResourceExists indicates an existing file was reused.
	EventResourceExists EventType = "resource.exists"

	// EventValidationWarning indicates a non fatal problem.
	EventValidationWarning EventType = "validation.warning"

	// EventProgress indicates progress through the pipeline.
	EventProgress EventType = "progress"

	// EventPipelineCompleted indicates every phase completed.
	EventPipelineCompleted EventType = "pipeline.completed"
)

// LogrObserver implements Observer on top of a logr.Logger. Phase progress
// and resource events are logged at debug verbosity.
type LogrObserver struct {
	log           logr.Logger
	contextFields map[string]string
}

// NewLogrObserver creates an observer writing to log.
func NewLogrObserver(log logr.Logger) *LogrObserver {
	return &LogrObserver{
		log:           log,
		contextFields: make(map[string]string),
	}
}

// Event implements Observer interface.
func (o *LogrObserver) Event(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	kv := o.keysAndValues(event)
	switch event.Type {
	case EventPhaseFailed:
		o.log.Error(nil, event.Message, kv...)
	case EventPhaseStarted, EventResourceCreated, EventResourceExists, EventProgress:
		o.log.V(1).Info(event.Message, kv...)
	default:
		o.log.Info(event.Message, kv...)
	}
}

// Progress implements Observer interface.
func (o *LogrObserver) Progress(phase string, current, total int) {
	o.Event(Event{
		Type:    EventProgress,
		Phase:   phase,
		Message: fmt.Sprintf("phase %d/%d", current, total),
	})
}

// WithFields implements Observer interface.
func (o *LogrObserver) WithFields(fields map[string]string) Observer {
	newFields := make(map[string]string, len(o.contextFields)+len(fields))
	for k, v := range o.contextFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &LogrObserver{log: o.log, contextFields: newFields}
}

func (o *LogrObserver) keysAndValues(event Event) []any {
	kv := []any{"event", string(event.Type)}
	if event.Phase != "" {
		kv = append(kv, "phase", event.Phase)
	}
	if event.Resource != "" {
		kv = append(kv, "resource", event.Resource)
	}

	merged := make(map[string]string, len(o.contextFields)+len(event.Fields))
	for k, v := range o.contextFields {
		merged[k] = v
	}
	for k, v := range event.Fields {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kv = append(kv, k, merged[k])
	}
	return kv
}

// Helper functions for common events

// LogPhaseStart logs a phase start event.
func LogPhaseStart(observer Observer, phase string) {
	observer.Event(Event{
		Type:    EventPhaseStarted,
		Phase:   phase,
		Message: "starting",
	})
}

// LogPhaseComplete logs a phase completion event.
func LogPhaseComplete(observer Observer, phase string, duration time.Duration) {
	observer.Event(Event{
		Type:    EventPhaseCompleted,
		Phase:   phase,
		Message: fmt.Sprintf("%s completed in %v", phase, duration.Round(time.Millisecond)),
	})
}

// LogPhaseFailed logs a phase failure event.
func LogPhaseFailed(observer Observer, phase string, err error) {
	observer.Event(Event{
		Type:    EventPhaseFailed,
		Phase:   phase,
		Message: fmt.Sprintf("%s failed: %v", phase, err),
	})
}

// LogResourceCreated logs that a file was written.
func LogResourceCreated(observer Observer, phase, resourceType, path string) {
	observer.Event(Event{
		Type:     EventResourceCreated,
		Phase:    phase,
		Resource: path,
		Message:  fmt.Sprintf("%s written", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}

// LogResourceExists logs that an existing file was reused.
func LogResourceExists(observer Observer, phase, resourceType, path string) {
	observer.Event(Event{
		Type:     EventResourceExists,
		Phase:    phase,
		Resource: path,
		Message:  fmt.Sprintf("%s reused", resourceType),
		Fields: map[string]string{
			"type": resourceType,
		},
	})
}

// LogWarning logs a non fatal problem.
func LogWarning(observer Observer, phase, message string) {
	observer.Event(Event{
		Type:    EventValidationWarning,
		Phase:   phase,
		Message: message,
	})
}
