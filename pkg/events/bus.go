package events

import (
	"sync"
	"time"

	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/rs/zerolog"
)

// Topic identifies an event stream on the bus.
type Topic string

const (
	TopicMarketData Topic = "MARKET_DATA"
	TopicSignal     Topic = "SIGNAL"
)

// SignalAction is the requested trade direction.
type SignalAction string

const (
	ActionBuy  SignalAction = "BUY"
	ActionSell SignalAction = "SELL"
)

// Event is anything that can travel over the bus.
type Event interface {
	GetTopic() Topic
	GetTimestamp() time.Time
}

// MarketDataEvent carries one bar to subscribed strategies.
type MarketDataEvent struct {
	Bar marketdata.Bar
}

func (e MarketDataEvent) GetTopic() Topic         { return TopicMarketData }
func (e MarketDataEvent) GetTimestamp() time.Time { return e.Bar.Timestamp }

// SignalEvent is a strategy's request to trade. Execution always happens at
// the timestamp of the bar currently being replayed, not the signal's own
// timestamp.
type SignalEvent struct {
	Symbol     string
	Action     SignalAction
	Price      float64
	Quantity   float64
	Reason     string
	Confidence float64 // [0, 1]
	Timestamp  time.Time
}

func (e SignalEvent) GetTopic() Topic         { return TopicSignal }
func (e SignalEvent) GetTimestamp() time.Time { return e.Timestamp }

// Handler is invoked synchronously during Publish.
type Handler func(Event)

// Subscription is a bounded queue of events for one consumer.
type Subscription struct {
	topic Topic
	ch    chan Event
}

// TryNext returns the next queued event without blocking.
func (s *Subscription) TryNext() (Event, bool) {
	select {
	case ev := <-s.ch:
		return ev, true
	default:
		return nil, false
	}
}

// Len returns the number of queued events.
func (s *Subscription) Len() int {
	return len(s.ch)
}

// EventBus is an in-process pub/sub for one backtest run.
//
// Scheduling is single-threaded cooperative: the engine publishes one
// MarketDataEvent, handler subscribers (strategies) run inline and may publish
// SignalEvents, and the engine then drains the signal subscription before
// advancing to the next bar. Publish never blocks; if a subscription's queue
// is full the event is dropped with a warning.
type EventBus struct {
	mu        sync.RWMutex
	queueSize int
	handlers  map[Topic][]Handler
	subs      map[Topic][]*Subscription
	logger    zerolog.Logger
}

// NewEventBus creates a bus whose channel subscriptions hold queueSize events.
func NewEventBus(queueSize int, logger zerolog.Logger) *EventBus {
	if queueSize <= 0 {
		queueSize = 1000
	}
	return &EventBus{
		queueSize: queueSize,
		handlers:  make(map[Topic][]Handler),
		subs:      make(map[Topic][]*Subscription),
		logger:    logger,
	}
}

// SubscribeFunc registers a handler called inline on every Publish to topic.
func (b *EventBus) SubscribeFunc(topic Topic, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Subscribe returns a bounded queue subscription for the topic.
func (b *EventBus) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan Event, b.queueSize),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[topic] = append(b.subs[topic], sub)
	return sub
}

// Publish delivers the event to all handler and queue subscribers of its topic.
func (b *EventBus) Publish(event Event) {
	topic := event.GetTopic()

	b.mu.RLock()
	handlers := b.handlers[topic]
	subs := b.subs[topic]
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			b.logger.Warn().
				Str("topic", string(topic)).
				Time("timestamp", event.GetTimestamp()).
				Msg("Subscription queue full, dropping event")
		}
	}
}
