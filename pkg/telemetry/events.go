package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event in the warden engine.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// RunID is the associated run ID, if applicable.
	RunID string `json:"run_id,omitempty"`

	// Policy is the associated policy name, if applicable.
	Policy string `json:"policy,omitempty"`

	// ResourceType is the associated resource type, if applicable.
	ResourceType string `json:"resource_type,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeRunStarted      = "run.started"
	EventTypeRunCompleted    = "run.completed"
	EventTypeRunFailed       = "run.failed"
	EventTypePolicyEvaluated = "policy.evaluated"
	EventTypePolicyViolation = "policy.violation"
	EventTypeSchemaBuilt     = "schema.built"
	EventTypeError           = "error"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	filters     []EventFilter
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		filters:     make([]EventFilter, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers. With async publishing
// the event is buffered; otherwise it is delivered on the caller's
// goroutine before Publish returns.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Apply global filters
	ep.mu.RLock()
	for _, filter := range ep.filters {
		if !filter(event) {
			ep.mu.RUnlock()
			return nil // Event filtered out
		}
	}
	ep.mu.RUnlock()

	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishRunStarted publishes a run started event.
func (ep *EventPublisher) PublishRunStarted(runID, mode string, policyCount int) error {
	return ep.Publish(Event{
		Type:    EventTypeRunStarted,
		Source:  "executor",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s started in %s mode with %d policies", runID, mode, policyCount),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"mode":     mode,
			"policies": policyCount,
		},
	})
}

// PublishRunCompleted publishes a run completed event.
func (ep *EventPublisher) PublishRunCompleted(runID, status string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeRunCompleted,
		Source:  "executor",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s completed with status: %s", runID, status),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"duration": duration.Seconds(),
		},
	})
}

// PublishRunFailed publishes a run failed event.
func (ep *EventPublisher) PublishRunFailed(runID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeRunFailed,
		Source:  "executor",
		RunID:   runID,
		Message: fmt.Sprintf("Run %s failed: %s", runID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishPolicyEvaluated publishes an event for one evaluated policy.
func (ep *EventPublisher) PublishPolicyEvaluated(runID, policy, resourceType, status string, matched int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:         EventTypePolicyEvaluated,
		Source:       "executor",
		RunID:        runID,
		Policy:       policy,
		ResourceType: resourceType,
		Message:      fmt.Sprintf("Policy %s evaluated: %s (%d resources)", policy, status, matched),
		Level:        EventLevelInfo,
		Data: map[string]interface{}{
			"status":   status,
			"matched":  matched,
			"duration": duration.Seconds(),
		},
	})
}

// PublishPolicyViolation publishes a schema violation event.
func (ep *EventPublisher) PublishPolicyViolation(policy, path, message string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "validator",
		Policy:  policy,
		Message: fmt.Sprintf("Policy %s violates the schema at %s: %s", policy, path, message),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"path":   path,
			"reason": message,
		},
	})
}

// PublishSchemaBuilt publishes a schema composition event.
func (ep *EventPublisher) PublishSchemaBuilt(resourceCount int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeSchemaBuilt,
		Source:  "schema-builder",
		Message: fmt.Sprintf("Schema document composed for %d resource types", resourceCount),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"resources": resourceCount,
			"duration":  duration.Seconds(),
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// AddFilter adds a global event filter.
func (ep *EventPublisher) AddFilter(filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.filters = append(ep.filters, filter)
}

// processEvents processes events from the buffer asynchronously.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)
	flush := time.NewTicker(flushInterval(ep.config))
	defer flush.Stop()

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			// Flush batch if it reaches max size
			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-flush.C:
			if len(batch) > 0 {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Drain the buffer and flush remaining events before shutting down
			for {
				select {
				case event := <-ep.buffer:
					batch = append(batch, event)
				default:
					if len(batch) > 0 {
						ep.flushBatch(batch)
					}
					return
				}
			}
		}
	}
}

func flushInterval(cfg EventsConfig) time.Duration {
	if cfg.FlushInterval > 0 {
		return cfg.FlushInterval
	}
	return 5 * time.Second
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers. Subscribers run on
// the delivering goroutine; slow subscribers delay the batch, not the
// publishers.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	entries := make([]subscriberEntry, len(ep.subscribers))
	copy(entries, ep.subscribers)
	ep.mu.RUnlock()

	for _, entry := range entries {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByRunID creates a filter that only allows events for a specific run.
func FilterByRunID(runID string) EventFilter {
	return func(event Event) bool {
		return event.RunID == runID
	}
}

// FilterByPolicy creates a filter that only allows events for a specific policy.
func FilterByPolicy(policy string) EventFilter {
	return func(event Event) bool {
		return event.Policy == policy
	}
}
