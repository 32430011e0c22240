package events

import (
	"testing"
	"time"

	"github.com/quantforge/backtester/pkg/marketdata"
	"github.com/rs/zerolog"
)

func testBar(ts time.Time, close float64) marketdata.Bar {
	return marketdata.Bar{
		Symbol:    "SPY",
		Timestamp: ts,
		Open:      close,
		High:      close,
		Low:       close,
		Close:     close,
		Volume:    1000,
		Timeframe: "1Min",
	}
}

func TestBus_HandlersRunInline(t *testing.T) {
	bus := NewEventBus(10, zerolog.Nop())

	var got []float64
	bus.SubscribeFunc(TopicMarketData, func(ev Event) {
		md := ev.(MarketDataEvent)
		got = append(got, md.Bar.Close)
	})

	now := time.Now()
	bus.Publish(MarketDataEvent{Bar: testBar(now, 100)})
	bus.Publish(MarketDataEvent{Bar: testBar(now.Add(time.Minute), 101)})

	if len(got) != 2 || got[0] != 100 || got[1] != 101 {
		t.Errorf("handler deliveries = %v, want [100 101] in publish order", got)
	}
}

func TestBus_TopicIsolation(t *testing.T) {
	bus := NewEventBus(10, zerolog.Nop())

	var marketData, signals int
	bus.SubscribeFunc(TopicMarketData, func(Event) { marketData++ })
	bus.SubscribeFunc(TopicSignal, func(Event) { signals++ })

	bus.Publish(MarketDataEvent{Bar: testBar(time.Now(), 100)})
	bus.Publish(SignalEvent{Symbol: "SPY", Action: ActionBuy, Timestamp: time.Now()})

	if marketData != 1 || signals != 1 {
		t.Errorf("deliveries = %d/%d, want 1/1", marketData, signals)
	}
}

func TestBus_SubscriptionDrain(t *testing.T) {
	bus := NewEventBus(10, zerolog.Nop())
	sub := bus.Subscribe(TopicSignal)

	now := time.Now()
	bus.Publish(SignalEvent{Symbol: "SPY", Action: ActionBuy, Price: 100, Timestamp: now})
	bus.Publish(SignalEvent{Symbol: "SPY", Action: ActionSell, Price: 101, Timestamp: now})

	if sub.Len() != 2 {
		t.Fatalf("queued = %d, want 2", sub.Len())
	}

	first, ok := sub.TryNext()
	if !ok || first.(SignalEvent).Action != ActionBuy {
		t.Errorf("first = %v, want BUY", first)
	}
	second, ok := sub.TryNext()
	if !ok || second.(SignalEvent).Action != ActionSell {
		t.Errorf("second = %v, want SELL", second)
	}
	if _, ok := sub.TryNext(); ok {
		t.Error("drained subscription should report empty")
	}
}

func TestBus_FullQueueDropsEvent(t *testing.T) {
	bus := NewEventBus(1, zerolog.Nop())
	sub := bus.Subscribe(TopicSignal)

	now := time.Now()
	bus.Publish(SignalEvent{Symbol: "SPY", Action: ActionBuy, Timestamp: now})
	// Queue of one is full; this event is dropped, not blocked on.
	bus.Publish(SignalEvent{Symbol: "SPY", Action: ActionSell, Timestamp: now})

	if sub.Len() != 1 {
		t.Fatalf("queued = %d, want 1 after drop", sub.Len())
	}
	ev, _ := sub.TryNext()
	if ev.(SignalEvent).Action != ActionBuy {
		t.Errorf("surviving event = %v, want the first BUY", ev)
	}
}

func TestBus_HandlerMayPublish(t *testing.T) {
	bus := NewEventBus(10, zerolog.Nop())
	signals := bus.Subscribe(TopicSignal)

	bus.SubscribeFunc(TopicMarketData, func(ev Event) {
		md := ev.(MarketDataEvent)
		bus.Publish(SignalEvent{
			Symbol:    md.Bar.Symbol,
			Action:    ActionBuy,
			Price:     md.Bar.Close,
			Timestamp: md.Bar.Timestamp,
		})
	})

	bus.Publish(MarketDataEvent{Bar: testBar(time.Now(), 100)})

	sig, ok := signals.TryNext()
	if !ok {
		t.Fatal("signal produced by a handler should be queued before Publish returns")
	}
	if sig.(SignalEvent).Price != 100 {
		t.Errorf("signal price = %v, want 100", sig.(SignalEvent).Price)
	}
}
