package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is a notable occurrence inside the test store.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Owner     string                 `json:"owner,omitempty"`
	TestName  string                 `json:"test_name,omitempty"`
	Message   string                 `json:"message"`
	Level     string                 `json:"level"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypeTestWritten     = "test.written"
	EventTypeReportSubmitted = "report.submitted"
	EventTypeSchemaMigrated  = "schema.migrated"
	EventTypeImportCompleted = "import.completed"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher fans events out to subscribers, synchronously or from a
// background goroutine.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
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
	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	if !cfg.Enabled {
		return ep, nil
	}

	if cfg.EnableAsync {
		if cfg.BufferSize <= 0 {
			cancel()
			return nil, fmt.Errorf("event buffer size must be positive, got: %d", cfg.BufferSize)
		}
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if ep == nil || !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.config.EnableAsync {
		select {
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
		}
		select {
		case ep.buffer <- event:
			return nil
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishTestWritten publishes a test written event.
func (ep *EventPublisher) PublishTestWritten(owner, name string, version int) error {
	return ep.Publish(Event{
		Type:     EventTypeTestWritten,
		Source:   "stores",
		Owner:    owner,
		TestName: name,
		Message:  fmt.Sprintf("Test %s stored for %s at version %d", name, owner, version),
		Level:    EventLevelInfo,
		Data: map[string]interface{}{
			"version": version,
		},
	})
}

// PublishReportSubmitted publishes a report submitted event.
func (ep *EventPublisher) PublishReportSubmitted(owner, name, runID string, success bool) error {
	level := EventLevelInfo
	if !success {
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:     EventTypeReportSubmitted,
		Source:   "stores",
		Owner:    owner,
		TestName: name,
		Message:  fmt.Sprintf("Report %s stored for test %s (success=%t)", runID, name, success),
		Level:    level,
		Data: map[string]interface{}{
			"run_id":  runID,
			"success": success,
		},
	})
}

// PublishSchemaMigrated publishes a schema migrated event.
func (ep *EventPublisher) PublishSchemaMigrated(version uint) error {
	return ep.Publish(Event{
		Type:    EventTypeSchemaMigrated,
		Source:  "stores",
		Message: fmt.Sprintf("Schema at version %d", version),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"version": version,
		},
	})
}

// PublishImportCompleted publishes an import completed event.
func (ep *EventPublisher) PublishImportCompleted(root string, imported, failed int) error {
	level := EventLevelInfo
	switch {
	case failed > 0 && imported == 0:
		level = EventLevelError
	case failed > 0:
		level = EventLevelWarning
	}
	return ep.Publish(Event{
		Type:    EventTypeImportCompleted,
		Source:  "importer",
		Message: fmt.Sprintf("Imported %d tests from %s (%d failed)", imported, root, failed),
		Level:   level,
		Data: map[string]interface{}{
			"root":     root,
			"imported": imported,
			"failed":   failed,
		},
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents delivers buffered events until shutdown, then drains the buffer.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown stops the publisher and waits for buffered events to be delivered.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if ep == nil {
		return nil
	}
	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
