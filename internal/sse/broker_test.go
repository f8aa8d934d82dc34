package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// next waits for one frame on ch.
func next(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
	return ""
}

// drain returns every frame already queued on ch.
func drain(ch chan []byte) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		default:
			return out
		}
	}
}

func subscribed(t *testing.T, b *Broker) chan []byte {
	t.Helper()
	ch := b.Subscribe()
	t.Cleanup(func() { b.Unsubscribe(ch) })
	return ch
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d, want 0", n)
	}
	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}
	b.Unsubscribe(ch)
	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after unsubscribe, want 0", n)
	}
}

func TestPublish_FrameFormatAndSequence(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := subscribed(t, b)

	b.Publish(Event{Type: TypeNoteCreated, Data: map[string]string{"path": "a.md"}})
	b.Publish(Event{Type: TypeNoteDeleted, Data: map[string]string{"path": "b.md"}})

	if got, want := next(t, ch), "id: 1\nevent: note.created\ndata: {\"path\":\"a.md\"}\n\n"; got != want {
		t.Errorf("first = %q, want %q", got, want)
	}
	if got := next(t, ch); !strings.HasPrefix(got, "id: 2\nevent: note.deleted\n") {
		t.Errorf("second = %q", got)
	}
}

func TestNotifyAndOpen(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := subscribed(t, b)

	b.Notify(`Collecting backlinks for "Topic"...`)
	if err := b.Open(context.Background(), "Topic_backlinks.md"); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if got, want := next(t, ch), "id: 1\nevent: notice\ndata: {\"message\":\"Collecting backlinks for \\\"Topic\\\"...\"}\n\n"; got != want {
		t.Errorf("notice = %q, want %q", got, want)
	}
	if got, want := next(t, ch), "id: 2\nevent: view.open\ndata: {\"path\":\"Topic_backlinks.md\"}\n\n"; got != want {
		t.Errorf("view = %q, want %q", got, want)
	}
}

func TestPublishNoteEvent_IndexThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := subscribed(t, b)

	b.PublishNoteEvent("created", "a.md")
	b.PublishNoteEvent("updated", "b.md")
	time.Sleep(50 * time.Millisecond)

	var notes, index int
	for _, msg := range drain(ch) {
		if strings.Contains(msg, "event: "+TypeIndexUpdated) {
			index++
		} else {
			notes++
		}
	}
	if notes != 2 {
		t.Errorf("note events = %d, want 2", notes)
	}
	if index != 1 {
		t.Errorf("index events = %d, want 1 (throttled)", index)
	}
}

func TestPublishNoteEvent_UnknownKindIgnored(t *testing.T) {
	b := NewBroker(time.Millisecond)
	defer b.Close()
	ch := subscribed(t, b)

	b.PublishNoteEvent("renamed", "a.md")
	b.Notify("sentinel")

	if got := next(t, ch); !strings.Contains(got, "event: notice") {
		t.Errorf("first message = %q, want the notice", got)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100*time.Millisecond, WithHeartbeat(20*time.Millisecond))
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give the handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1 from handler", n)
	}

	b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"path": "x.md"}})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: note.updated") {
		t.Errorf("handler output missing event: %q", body)
	}
	if !strings.Contains(body, ": keepalive\n\n") {
		t.Errorf("handler output missing heartbeat: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}

	time.Sleep(50 * time.Millisecond)
	if n := b.ClientCount(); n != 0 {
		t.Errorf("clients = %d after disconnect, want 0", n)
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := subscribed(t, b)

	// One more than the client buffer must not block the loop.
	for i := 0; i < clientBuffer+6; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
	time.Sleep(50 * time.Millisecond)
	if got := len(drain(ch)); got != clientBuffer {
		t.Errorf("delivered = %d, want %d", got, clientBuffer)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if n := b.ClientCount(); n != 1 {
		t.Fatalf("clients = %d, want 1", n)
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if n := b.ClientCount(); n != 0 {
		t.Fatalf("clients = %d after close, want 0", n)
	}

	// No-ops after close.
	b.Publish(Event{Type: TypeNoteUpdated, Data: map[string]string{"path": "x.md"}})
	b.PublishNoteEvent("updated", "x.md")
	b.Notify("late")
	b.Close()
}
