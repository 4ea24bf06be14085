package sse

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestBroker(t *testing.T, throttle time.Duration) *Broker {
	t.Helper()
	b := NewBroker(throttle)
	t.Cleanup(b.Close)
	return b
}

// recv reads one message from ch or fails after a timeout.
func recv(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return ""
	}
}

func expectNone(t *testing.T, ch chan []byte) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected event %q", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := newTestBroker(t, time.Second)

	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("ClientCount = %d, want 1", n)
	}

	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("ClientCount after unsubscribe = %d, want 0", n)
	}
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
}

func TestPublishDeliversToAllClients(t *testing.T) {
	b := newTestBroker(t, time.Second)

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()

	b.Publish(Event{Type: "ping", Data: map[string]string{"k": "v"}})

	for _, ch := range []chan []byte{ch1, ch2} {
		msg := recv(t, ch)
		if !strings.Contains(msg, "event: ping") {
			t.Errorf("message = %q, want event name ping", msg)
		}
		if !strings.Contains(msg, `"k":"v"`) {
			t.Errorf("message = %q, want data payload", msg)
		}
	}
}

func TestPublishRefreshEventShape(t *testing.T) {
	b := newTestBroker(t, time.Second)
	ch := b.Subscribe()

	b.PublishRefresh(KindAnchors, "text.123")

	msg := recv(t, ch)
	if !strings.Contains(msg, "event: anchors.updated") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, `{"nodeId":"text.123"}`) {
		t.Errorf("message = %q", msg)
	}
	expectNone(t, ch)
}

func TestLinkRefreshTriggersGraphEvent(t *testing.T) {
	b := newTestBroker(t, time.Second)
	ch := b.Subscribe()

	b.PublishRefresh(KindLinks, "text.1")

	first := recv(t, ch)
	if !strings.Contains(first, "event: links.updated") {
		t.Errorf("first = %q", first)
	}
	second := recv(t, ch)
	if !strings.Contains(second, "event: graph.updated") {
		t.Errorf("second = %q", second)
	}
}

func TestGraphEventThrottled(t *testing.T) {
	b := newTestBroker(t, time.Hour)
	ch := b.Subscribe()

	b.PublishRefresh(KindLinks, "text.1")
	recv(t, ch) // links.updated
	recv(t, ch) // graph.updated

	// A second link change inside the throttle window emits no graph event.
	b.PublishRefresh(KindLinks, "text.2")
	msg := recv(t, ch)
	if !strings.Contains(msg, "event: links.updated") {
		t.Errorf("message = %q", msg)
	}
	expectNone(t, ch)
}

func TestContentRefreshDoesNotTouchGraph(t *testing.T) {
	b := newTestBroker(t, time.Second)
	ch := b.Subscribe()

	b.PublishRefresh(KindContent, "text.1")

	msg := recv(t, ch)
	if !strings.Contains(msg, "event: node.updated") {
		t.Errorf("message = %q", msg)
	}
	expectNone(t, ch)
}

func TestServeHTTPStreamsEvents(t *testing.T) {
	b := newTestBroker(t, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest("GET", "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Wait for the handler to register its subscription.
	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	b.PublishRefresh(KindAnchors, "text.9")
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: anchors.updated") {
		t.Errorf("body = %q", body)
	}
	if !strings.Contains(body, `"nodeId":"text.9"`) {
		t.Errorf("body = %q", body)
	}
}

func TestFullClientBufferDoesNotBlock(t *testing.T) {
	b := newTestBroker(t, time.Second)
	ch := b.Subscribe()

	// Overflow the client buffer; the broker must keep running.
	for i := 0; i < 200; i++ {
		b.Publish(Event{Type: "flood", Data: i})
	}

	// It must still answer control requests promptly.
	deadline := time.After(2 * time.Second)
	count := make(chan int, 1)
	go func() { count <- b.ClientCount() }()
	select {
	case n := <-count:
		if n != 1 {
			t.Errorf("ClientCount = %d, want 1", n)
		}
	case <-deadline:
		t.Fatal("broker blocked on full client buffer")
	}
	_ = ch
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe()

	b.Close()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("channel open after Close")
	}
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount after Close = %d", n)
	}

	// Post-close operations are no-ops.
	b.Publish(Event{Type: "late"})
	b.PublishRefresh(KindAnchors, "text.1")
	late := b.Subscribe()
	if _, ok := <-late; ok {
		t.Error("post-close Subscribe returned open channel")
	}
}
