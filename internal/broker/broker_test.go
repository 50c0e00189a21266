package broker

import (
	"sync"
	"testing"
	"time"
)

func TestSubscribeAndPublish(t *testing.T) {
	b := New()
	ch := b.Subscribe("checkout")
	defer b.Unsubscribe("checkout", ch)

	b.Publish("checkout", Event{Action: ActionCreated, ReportID: "r1"})

	select {
	case ev := <-ch:
		if ev.ReportID != "r1" || ev.Action != ActionCreated {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event on channel")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch := b.Subscribe("checkout")
	b.Unsubscribe("checkout", ch)

	b.Publish("checkout", Event{Action: ActionCreated, ReportID: "r1"})

	select {
	case <-ch:
		t.Fatal("should not receive after unsubscribe")
	case <-time.After(50 * time.Millisecond):
		// success
	}

	if n := b.Subscribers("checkout"); n != 0 {
		t.Fatalf("Subscribers = %d, want 0", n)
	}
}

func TestCrossProjectIsolation(t *testing.T) {
	b := New()
	ch1 := b.Subscribe("checkout")
	ch2 := b.Subscribe("billing")
	defer b.Unsubscribe("checkout", ch1)
	defer b.Unsubscribe("billing", ch2)

	b.Publish("checkout", Event{Action: ActionCreated, ReportID: "r1"})

	select {
	case <-ch1:
		// expected
	case <-time.After(100 * time.Millisecond):
		t.Fatal("checkout subscriber should have received event")
	}

	select {
	case <-ch2:
		t.Fatal("billing subscriber should not receive event from checkout publish")
	case <-time.After(50 * time.Millisecond):
		// expected
	}
}

func TestLatestEventWins(t *testing.T) {
	b := New()
	ch := b.Subscribe("checkout")
	defer b.Unsubscribe("checkout", ch)

	// Publish multiple times without reading; should not block
	b.Publish("checkout", Event{Action: ActionCreated, ReportID: "r1"})
	b.Publish("checkout", Event{Action: ActionCreated, ReportID: "r2"})
	b.Publish("checkout", Event{Action: ActionDeleted, ReportID: "r1"})

	select {
	case ev := <-ch:
		if ev.Action != ActionDeleted || ev.ReportID != "r1" {
			t.Fatalf("got %+v, want latest delete event", ev)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected an event")
	}

	select {
	case ev := <-ch:
		t.Fatalf("expected no further events, got %+v", ev)
	case <-time.After(50 * time.Millisecond):
		// expected
	}
}

func TestConcurrentAccess(t *testing.T) {
	b := New()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := b.Subscribe("checkout")
			b.Publish("checkout", Event{Action: ActionCreated, ReportID: "r"})
			b.Unsubscribe("checkout", ch)
		}()
	}

	wg.Wait()

	if n := b.Subscribers("checkout"); n != 0 {
		t.Fatalf("Subscribers = %d after all unsubscribed, want 0", n)
	}
}
