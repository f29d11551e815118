package events

import (
	"sync"
	"time"
)

// EventType represents the type of event
type EventType string

const (
	EventElectionStarted   EventType = "election.started"
	EventElectionWon       EventType = "election.won"
	EventElectionConceded  EventType = "election.conceded"
	EventRecoveryStarted   EventType = "recovery.started"
	EventRecoveryCommitted EventType = "recovery.committed"
	EventRecoveryAborted   EventType = "recovery.aborted"
	EventTakeoverStarted   EventType = "takeover.started"
	EventTakeoverCompleted EventType = "takeover.completed"
	EventNodeBanned        EventType = "node.banned"
	EventNodeFlagsChanged  EventType = "node.flags_changed"
	EventSelfBanned        EventType = "node.self_banned"
)

// Event represents a cluster event
type Event struct {
	ID        string
	Type      EventType
	Timestamp time.Time
	Message   string
	Metadata  map[string]string
}

// Subscriber is a channel that receives events
type Subscriber chan *Event

// recentCapacity bounds how many published events the broker retains
// for Recent, independent of whether anyone is subscribed.
const recentCapacity = 200

// Broker manages event subscriptions and distribution
type Broker struct {
	subscribers map[Subscriber]bool
	mu          sync.RWMutex
	eventCh     chan *Event
	stopCh      chan struct{}

	recentMu sync.Mutex
	recent   []Event
}

// NewBroker creates a new event broker
func NewBroker() *Broker {
	return &Broker{
		subscribers: make(map[Subscriber]bool),
		eventCh:     make(chan *Event, 100), // Buffer up to 100 events
		stopCh:      make(chan struct{}),
	}
}

// Start begins the broker's event distribution loop
func (b *Broker) Start() {
	go b.run()
}

// Stop stops the broker
func (b *Broker) Stop() {
	close(b.stopCh)
}

// Subscribe creates a new subscription and returns a channel
func (b *Broker) Subscribe() Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := make(Subscriber, 50) // Buffer per subscriber
	b.subscribers[sub] = true
	return sub
}

// Unsubscribe removes a subscription
func (b *Broker) Unsubscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.subscribers, sub)
	close(sub)
}

// Publish publishes an event to all subscribers
func (b *Broker) Publish(event *Event) {
	// Set timestamp if not set
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.recentMu.Lock()
	b.recent = append(b.recent, *event)
	if len(b.recent) > recentCapacity {
		b.recent = b.recent[len(b.recent)-recentCapacity:]
	}
	b.recentMu.Unlock()

	select {
	case b.eventCh <- event:
	case <-b.stopCh:
	default:
		// The broker queue is full: drop the event rather than block.
	}
}

// Recent returns up to limit of the most recently published events,
// oldest first. limit <= 0 returns every retained event, up to
// recentCapacity.
func (b *Broker) Recent(limit int) []Event {
	b.recentMu.Lock()
	defer b.recentMu.Unlock()

	if limit <= 0 || limit > len(b.recent) {
		limit = len(b.recent)
	}
	out := make([]Event, limit)
	copy(out, b.recent[len(b.recent)-limit:])
	return out
}

func (b *Broker) run() {
	for {
		select {
		case event := <-b.eventCh:
			b.broadcast(event)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Broker) broadcast(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber buffer full, skip
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
