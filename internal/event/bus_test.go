package event

import (
	"testing"

	"github.com/softcask/filetrack/internal/callsite"
)

func TestSubscribePublish(t *testing.T) {
	bus := NewBus()

	var got []Event
	bus.Subscribe("handle.opened", func(e Event) {
		got = append(got, e)
	})

	bus.Publish(NewHandleOpenedEvent("a.txt", "w", "open", callsite.At("x.go", 1)))
	bus.Publish(NewHandleClosedEvent("a.txt", "close", callsite.At("x.go", 2)))

	if len(got) != 1 {
		t.Fatalf("handler called %d times, want 1", len(got))
	}
	opened, ok := got[0].(HandleOpenedEvent)
	if !ok {
		t.Fatalf("event type = %T, want HandleOpenedEvent", got[0])
	}
	if opened.Filename != "a.txt" || opened.Mode != "w" {
		t.Errorf("event = %+v, want a.txt/w", opened)
	}
}

func TestSubscribeAll(t *testing.T) {
	bus := NewBus()

	count := 0
	bus.SubscribeAll(func(Event) { count++ })

	bus.Publish(NewHandleOpenedEvent("a.txt", "r", "open", callsite.Site{}))
	bus.Publish(NewAnomalyEvent("entry_close", "close of untracked handle", callsite.Site{}))
	bus.Publish(NewHandleLeakedEvent("a.txt", "r", "open", callsite.Site{}))

	if count != 3 {
		t.Errorf("wildcard handler called %d times, want 3", count)
	}
}

func TestSpecificHandlersRunBeforeWildcard(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribeAll(func(Event) { order = append(order, "wildcard") })
	bus.Subscribe("handle.opened", func(Event) { order = append(order, "specific") })

	bus.Publish(NewHandleOpenedEvent("a.txt", "r", "open", callsite.Site{}))

	if len(order) != 2 || order[0] != "specific" || order[1] != "wildcard" {
		t.Errorf("dispatch order = %v, want [specific wildcard]", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	id := bus.Subscribe("handle.closed", func(Event) { count++ })

	bus.Publish(NewHandleClosedEvent("a.txt", "close", callsite.Site{}))
	if !bus.Unsubscribe(id) {
		t.Error("Unsubscribe() = false, want true")
	}
	bus.Publish(NewHandleClosedEvent("a.txt", "close", callsite.Site{}))

	if count != 1 {
		t.Errorf("handler called %d times, want 1", count)
	}
	if bus.Unsubscribe(id) {
		t.Error("Unsubscribe() of a removed id = true, want false")
	}
}

func TestPanickingHandlerDoesNotBlockDelivery(t *testing.T) {
	bus := NewBus()

	delivered := false
	bus.Subscribe("handle.opened", func(Event) { panic("boom") })
	bus.Subscribe("handle.opened", func(Event) { delivered = true })

	bus.Publish(NewHandleOpenedEvent("a.txt", "r", "open", callsite.Site{}))

	if !delivered {
		t.Error("second handler should still run after the first panics")
	}
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		name string
		ev   Event
		want string
	}{
		{"opened", NewHandleOpenedEvent("f", "r", "open", callsite.Site{}), "handle.opened"},
		{"mode changed", NewHandleModeChangedEvent("f", "a", callsite.Site{}), "handle.mode_changed"},
		{"closed", NewHandleClosedEvent("f", "close", callsite.Site{}), "handle.closed"},
		{"double close", NewDoubleCloseEvent("f", callsite.Site{}, callsite.Site{}), "handle.double_close"},
		{"leaked", NewHandleLeakedEvent("f", "r", "open", callsite.Site{}), "handle.leaked"},
		{"anomaly", NewAnomalyEvent("op", "detail", callsite.Site{}), "registry.anomaly"},
		{"remove refused", NewRemoveRefusedEvent("f", callsite.Site{}), "remove.refused"},
		{"external change", NewExternalChangeEvent("f", "write"), "watch.external_change"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ev.EventType(); got != tt.want {
				t.Errorf("EventType() = %q, want %q", got, tt.want)
			}
			if tt.ev.Timestamp().IsZero() {
				t.Error("Timestamp() should be set")
			}
		})
	}
}
