package events

import "github.com/kelindar/event"

// Delivery decides what happens when a bridged channel is full.
type Delivery int

const (
	// DropNewest keeps what is already buffered. Event streams use it so a
	// slow reader sees a gap rather than reordered history.
	DropNewest Delivery = iota
	// KeepLatest evicts the oldest buffered value to make room. Frame ticks
	// use it so a reader always wakes for the newest frame.
	KeepLatest
)

// SubscribeToChannel forwards events of type T into ch without blocking the
// bus. Huma's SSE handler and the frame streams select on channels, the bus
// calls back, so this bridges the two.
func SubscribeToChannel[T Event](bus *Bus, ch chan any, mode Delivery) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		deliver(ch, e, mode)
	})
}

func deliver(ch chan any, v any, mode Delivery) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		if mode == DropNewest {
			return
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscriptions collects unsubscribe functions so a handler can release
// all of them with one deferred call.
type Subscriptions []func()

// Cancel unsubscribes everything.
func (s Subscriptions) Cancel() {
	for _, unsub := range s {
		unsub()
	}
}
