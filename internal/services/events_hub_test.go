package services

import (
	"testing"
	"time"
)

func TestEventsHubDeliversToOwnAccountOnly(t *testing.T) {
	hub := NewEventsHub()

	chA, cancelA := hub.Subscribe("acct-a")
	defer cancelA()
	chB, cancelB := hub.Subscribe("acct-b")
	defer cancelB()

	hub.Publish("acct-a", EventTypeSettingsUpdated)

	select {
	case ev := <-chA:
		if ev.AccountID != "acct-a" || ev.Type != EventTypeSettingsUpdated {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber for acct-a received nothing")
	}

	select {
	case ev := <-chB:
		t.Errorf("subscriber for acct-b received %+v", ev)
	default:
	}
}

func TestEventsHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewEventsHub()

	ch, cancel := hub.Subscribe("acct-a")
	cancel()

	hub.Publish("acct-a", EventTypeSettingsUpdated)

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("received an event after unsubscribe")
		}
	default:
	}
}

func TestEventsHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	hub := NewEventsHub()

	_, cancel := hub.Subscribe("acct-a")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.Publish("acct-a", EventTypeSettingsUpdated)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
