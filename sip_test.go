package reason

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestOperationDeliversEventsThenResult(t *testing.T) {
	op := newOperation[int, string]()

	go func() {
		ctx := context.Background()
		for i := 1; i <= 3; i++ {
			op.send(ctx, i)
		}
		op.resolve("done", nil)
	}()

	var events []int
	for event := range op.events {
		events = append(events, event)
	}

	result, err := op.wait(context.Background())
	if err != nil {
		t.Fatalf("Expected clean resolution, got %v", err)
	}
	if result != "done" {
		t.Errorf("Expected result 'done', got %q", result)
	}
	if len(events) != 3 || events[0] != 1 || events[2] != 3 {
		t.Errorf("Expected events 1..3, got %v", events)
	}
}

func TestOperationWaitDrainsUnconsumedEvents(t *testing.T) {
	op := newOperation[int, string]()

	go func() {
		ctx := context.Background()
		for i := 0; i < 10; i++ {
			op.send(ctx, i)
		}
		op.resolve("drained", nil)
	}()

	// The consumer never touches the events channel; wait must not deadlock
	// against the blocking producer.
	result, err := op.wait(context.Background())
	if err != nil {
		t.Fatalf("Expected clean resolution, got %v", err)
	}
	if result != "drained" {
		t.Errorf("Expected result 'drained', got %q", result)
	}
}

func TestOperationWaitSurfacesError(t *testing.T) {
	op := newOperation[int, string]()
	failure := errors.New("stream broke")

	go op.resolve("", failure)

	if _, err := op.wait(context.Background()); !errors.Is(err, failure) {
		t.Errorf("Expected resolution error, got %v", err)
	}
}

func TestOperationWaitHonorsContext(t *testing.T) {
	op := newOperation[int, string]()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Nothing ever resolves; wait must return once the context expires.
	if _, err := op.wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline error, got %v", err)
	}
}

func TestOperationResolveWithConcurrentSenders(t *testing.T) {
	// A boot forwards executor log lines from dedicated goroutines while the
	// main producer resolves on readiness. Late sends must be dropped, never
	// delivered on the closed channel. Iterated to shake the race out.
	for i := 0; i < 200; i++ {
		op := newOperation[int, struct{}]()
		ctx, cancel := context.WithCancel(context.Background())

		forwarders := &sync.WaitGroup{}
		for f := 0; f < 2; f++ {
			forwarders.Add(1)
			go func() {
				defer forwarders.Done()
				for n := 0; ; n++ {
					select {
					case <-ctx.Done():
						return
					default:
					}
					op.send(ctx, n)
				}
			}()
		}

		// Consume a few events, then resolve while the forwarders are still
		// mid-send.
		for range op.events {
			break
		}
		cancel()
		op.resolve(struct{}{}, nil)

		if _, err := op.wait(context.Background()); err != nil {
			t.Fatalf("Expected clean resolution, got %v", err)
		}
		forwarders.Wait()
	}
}

func TestOperationSendAfterResolveIsDropped(t *testing.T) {
	op := newOperation[int, string]()
	op.resolve("already done", nil)

	// Must neither panic nor block.
	op.send(context.Background(), 1)

	result, err := op.wait(context.Background())
	if err != nil {
		t.Fatalf("Expected clean resolution, got %v", err)
	}
	if result != "already done" {
		t.Errorf("Expected result to survive a late send, got %q", result)
	}
}

func TestOperationSendReturnsOnCancelledContext(t *testing.T) {
	op := newOperation[int, string]()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	finished := make(chan struct{})
	go func() {
		op.send(ctx, 1)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Send blocked despite cancelled context")
	}
}
