package server

import (
	"context"
	"sync"
	"time"
)

const (
	RealtimeEventMessageCreated = "message-created"
	RealtimeEventMessageDeleted = "message-deleted"
	realtimeEventHeartbeat      = "heartbeat"
	realtimeSourceBackend       = "sandwich-api"
)

// RealtimeMessage announces a message board change. An empty UserID addresses
// every connected subscriber.
type RealtimeMessage struct {
	UserID    string
	EventType string
	MessageID int64
	ThreadID  int64
	Timestamp time.Time
}

// RealtimeDispatcher fans message events out to per-user stream subscribers.
// Slow subscribers drop events instead of blocking publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a stream for the user until ctx ends or cleanup runs.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, userID string) (<-chan RealtimeMessage, func()) {
	if userID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(userID, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(userID, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the event to the subscribers of message.UserID, or to every
// subscriber when UserID is empty.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now().UTC()
	}
	for _, subscriber := range d.targets(message.UserID) {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// SubscriberCount reports how many streams are currently registered.
func (d *RealtimeDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	count := 0
	for _, subscribers := range d.subscribers {
		count += len(subscribers)
	}
	return count
}

func (d *RealtimeDispatcher) targets(userID string) []*realtimeSubscriber {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var copies []*realtimeSubscriber
	if userID != "" {
		for _, subscriber := range d.subscribers[userID] {
			copies = append(copies, subscriber)
		}
		return copies
	}
	for _, subscribers := range d.subscribers {
		for _, subscriber := range subscribers {
			copies = append(copies, subscriber)
		}
	}
	return copies
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(userID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[userID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(userID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}
