package reason

import (
	"context"
	"sync"
)

// operation is the two-channel progressive-operation primitive shared by
// boot, completion, and reply: an unbuffered notification channel paired with
// a result future. Sends block until the consumer picks the notification up,
// so a slow consumer applies backpressure to the producer. Resolution closes
// the channel; a consumer that only wants the final value calls wait, which
// drains any remaining notifications first.
//
// Multiple goroutines may send concurrently. The gate makes resolve wait for
// in-flight sends before closing the notification channel, and sends that
// arrive after resolution are dropped, so a late producer can never send on
// the closed channel.
type operation[E any, R any] struct {
	events chan E
	done   chan struct{}
	gate   sync.RWMutex
	result R
	err    error
}

func newOperation[E any, R any]() *operation[E, R] {
	return &operation[E, R]{
		events: make(chan E),
		done:   make(chan struct{}),
	}
}

// send delivers one notification. It returns without delivering when ctx is
// cancelled or the operation has resolved, so an abandoned consumer cannot
// wedge the producer.
func (o *operation[E, R]) send(ctx context.Context, event E) {
	o.gate.RLock()
	defer o.gate.RUnlock()

	select {
	case <-o.done:
		return
	default:
	}

	select {
	case o.events <- event:
	case <-ctx.Done():
	case <-o.done:
	}
}

// resolve records the terminal value and closes the notification channel.
// Must be called exactly once. Closing done first unblocks any in-flight
// sends; the write lock then waits them out before the channel closes.
func (o *operation[E, R]) resolve(result R, err error) {
	o.result = result
	o.err = err
	close(o.done)

	o.gate.Lock()
	close(o.events)
	o.gate.Unlock()
}

// wait drains remaining notifications and returns the resolution.
func (o *operation[E, R]) wait(ctx context.Context) (R, error) {
	for {
		select {
		case _, ok := <-o.events:
			if !ok {
				<-o.done
				return o.result, o.err
			}
		case <-ctx.Done():
			var zero R
			return zero, ctx.Err()
		}
	}
}
