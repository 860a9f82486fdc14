package events

import "testing"

func TestSubscribeReceivesPublishedEvents(t *testing.T) {
	b := New(4)
	_, ch := b.Subscribe()

	b.Publish(Event{Kind: BuildStarted})
	b.Publish(Event{Kind: TaskStarted, TaskName: "api/compile"})

	e1 := <-ch
	if e1.Kind != BuildStarted {
		t.Fatalf("first event kind = %s, want BuildStarted", e1.Kind)
	}
	e2 := <-ch
	if e2.Kind != TaskStarted || e2.TaskName != "api/compile" {
		t.Fatalf("second event = %+v, want TaskStarted/api/compile", e2)
	}
}

func TestLateSubscriberMissesEarlierEvents(t *testing.T) {
	b := New(4)
	b.Publish(Event{Kind: BuildStarted})

	_, ch := b.Subscribe()
	b.Publish(Event{Kind: TaskStarted, TaskName: "api/compile"})

	e := <-ch
	if e.Kind != TaskStarted {
		t.Fatalf("first received event = %+v, want only the post-subscription TaskStarted", e)
	}
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event %+v", extra)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(4)
	id, ch := b.Subscribe()
	b.Unsubscribe(id)

	_, ok := <-ch
	if ok {
		t.Fatal("expected channel to be closed after Unsubscribe")
	}
}

func TestPublishDropsOldestWhenFullAndNotifiesOnceRoomFrees(t *testing.T) {
	b := New(2)
	_, ch := b.Subscribe()

	b.Publish(Event{Kind: TaskStarted, TaskName: "1"})
	b.Publish(Event{Kind: TaskStarted, TaskName: "2"})
	// Buffer full (cap 2): this evicts "1" rather than blocking.
	b.Publish(Event{Kind: TaskStarted, TaskName: "3"})

	if e := <-ch; e.TaskName != "2" {
		t.Fatalf("first remaining event = %+v, want TaskName 2 (oldest dropped)", e)
	}
	// A slot is now free; the next publish should flush the pending drop
	// notice into it before evicting again for the new event.
	b.Publish(Event{Kind: TaskStarted, TaskName: "4"})

	notice := <-ch
	if notice.Kind != DroppedEvents || notice.DroppedCount != 1 {
		t.Fatalf("notice = %+v, want DroppedEvents{DroppedCount:1}", notice)
	}
	last := <-ch
	if last.TaskName != "4" {
		t.Fatalf("last event = %+v, want TaskName 4", last)
	}
}

func TestPublishDoesNotBlockWithNoSubscribers(t *testing.T) {
	b := New(1)
	b.Publish(Event{Kind: BuildStarted})
}
