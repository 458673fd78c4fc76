// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package event

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	EventQueueSize      = 20
	AsyncQueueSize      = 1000
	AsyncWorkerPoolSize = 2
)

type EventType string

type EventSubscriberId int

type EventHandlerFunc func(Event)

type Event struct {
	Timestamp time.Time
	Data      any
	Type      EventType
}

func NewEvent(eventType EventType, eventData any) Event {
	return Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      eventData,
	}
}

type asyncEvent struct {
	eventType EventType
	event     Event
}

type EventBus struct {
	subscribers map[EventType]map[EventSubscriberId]*channelSubscriber
	metrics     *eventMetrics
	logger      *slog.Logger
	asyncQueue  chan asyncEvent
	stopCh      chan struct{}
	lastSubId   EventSubscriberId
	asyncWg     sync.WaitGroup
	mu          sync.RWMutex
	stopMu      sync.RWMutex
	stopped     bool
}

// NewEventBus creates a new EventBus and starts its async workers
func NewEventBus(
	promRegistry prometheus.Registerer,
	logger *slog.Logger,
) *EventBus {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	e := &EventBus{
		subscribers: make(map[EventType]map[EventSubscriberId]*channelSubscriber),
		logger:      logger,
		asyncQueue:  make(chan asyncEvent, AsyncQueueSize),
		stopCh:      make(chan struct{}),
	}
	if promRegistry != nil {
		e.initMetrics(promRegistry)
	}
	for range AsyncWorkerPoolSize {
		e.asyncWg.Add(1)
		go e.asyncWorker()
	}
	return e
}

func (e *EventBus) asyncWorker() {
	defer e.asyncWg.Done()
	for {
		select {
		case <-e.stopCh:
			return
		case ae := <-e.asyncQueue:
			e.Publish(ae.eventType, ae.event)
		}
	}
}

// channelSubscriber delivers events on a buffered channel. Deliver blocks
// while the buffer is full, until the subscriber is closed.
type channelSubscriber struct {
	ch        chan Event
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func newChannelSubscriber(buffer int) *channelSubscriber {
	return &channelSubscriber{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}
}

func (c *channelSubscriber) Deliver(evt Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- evt:
	case <-c.done:
	}
}

func (c *channelSubscriber) Close() {
	// Wake up a blocked Deliver before taking the write lock
	c.closeOnce.Do(func() { close(c.done) })
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}

// Subscribe allows a consumer to receive events of a particular type via a channel
func (e *EventBus) Subscribe(
	eventType EventType,
) (EventSubscriberId, <-chan Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	chSub := newChannelSubscriber(EventQueueSize)
	subId := e.lastSubId + 1
	e.lastSubId = subId
	if _, ok := e.subscribers[eventType]; !ok {
		e.subscribers[eventType] = make(map[EventSubscriberId]*channelSubscriber)
	}
	e.subscribers[eventType][subId] = chSub
	if e.metrics != nil {
		e.metrics.subscribers.WithLabelValues(string(eventType)).Inc()
	}
	return subId, chSub.ch
}

// SubscribeFunc allows a consumer to receive events of a particular type via a callback function
func (e *EventBus) SubscribeFunc(
	eventType EventType,
	handlerFunc EventHandlerFunc,
) EventSubscriberId {
	subId, evtCh := e.Subscribe(eventType)
	go func() {
		for evt := range evtCh {
			handlerFunc(evt)
		}
	}()
	return subId
}

// Unsubscribe stops delivery of events for a particular type for an existing subscriber
func (e *EventBus) Unsubscribe(eventType EventType, subId EventSubscriberId) {
	e.mu.Lock()
	var subToClose *channelSubscriber
	if evtTypeSubs, ok := e.subscribers[eventType]; ok {
		if sub, ok := evtTypeSubs[subId]; ok {
			subToClose = sub
			delete(evtTypeSubs, subId)
			if len(evtTypeSubs) == 0 {
				delete(e.subscribers, eventType)
			}
			if e.metrics != nil {
				e.metrics.subscribers.WithLabelValues(string(eventType)).Dec()
			}
		}
	}
	e.mu.Unlock()
	if subToClose != nil {
		subToClose.Close()
	}
}

// Publish sends an event to all subscribers of its type, blocking on
// subscribers with a full buffer
func (e *EventBus) Publish(eventType EventType, evt Event) {
	e.mu.RLock()
	subs := make([]*channelSubscriber, 0, len(e.subscribers[eventType]))
	for _, sub := range e.subscribers[eventType] {
		subs = append(subs, sub)
	}
	e.mu.RUnlock()
	for _, sub := range subs {
		sub.Deliver(evt)
	}
	if e.metrics != nil {
		e.metrics.eventsTotal.WithLabelValues(string(eventType)).Inc()
	}
}

// PublishAsync enqueues an event for delivery by the worker pool. It returns
// false if the bus is stopped or the queue is full.
func (e *EventBus) PublishAsync(eventType EventType, evt Event) bool {
	e.stopMu.RLock()
	defer e.stopMu.RUnlock()
	if e.stopped {
		return false
	}
	select {
	case e.asyncQueue <- asyncEvent{eventType: eventType, event: evt}:
		return true
	default:
		e.logger.Warn(
			fmt.Sprintf("async event queue full, dropping %s event", eventType),
			"component", "event",
		)
		if e.metrics != nil {
			e.metrics.dropped.WithLabelValues(string(eventType)).Inc()
		}
		return false
	}
}

// Stop halts the async workers and closes all subscriber channels
func (e *EventBus) Stop() {
	e.stopMu.Lock()
	if e.stopped {
		e.stopMu.Unlock()
		return
	}
	e.stopped = true
	close(e.stopCh)
	e.stopMu.Unlock()
	e.asyncWg.Wait()

	e.mu.Lock()
	subsCopy := e.subscribers
	e.subscribers = make(map[EventType]map[EventSubscriberId]*channelSubscriber)
	e.mu.Unlock()
	for _, evtTypeSubs := range subsCopy {
		for _, sub := range evtTypeSubs {
			sub.Close()
		}
	}
	if e.metrics != nil {
		e.metrics.subscribers.Reset()
	}
}
