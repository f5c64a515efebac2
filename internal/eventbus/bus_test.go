package eventbus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypePlanGenerated, Data: PlanGenerated{Days: 3}})

	select {
	case e := <-ch:
		if e.Type != TypePlanGenerated {
			t.Errorf("type = %q", e.Type)
		}
		if e.Time.IsZero() {
			t.Error("no timestamp stamped")
		}
		if got, ok := e.Data.(PlanGenerated); !ok || got.Days != 3 {
			t.Errorf("payload = %#v", e.Data)
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	t.Parallel()
	b := New()
	_, unsub := b.Subscribe(1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Nobody drains; extra events must be dropped, not block.
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: TypeConfigReloaded})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	t.Parallel()
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	// Publishing after unsubscribe must not panic.
	b.Publish(Event{Type: TypePlanRedistributed})

	if _, ok := <-ch; ok {
		t.Error("channel not closed after unsubscribe")
	}
}
