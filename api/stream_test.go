package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"taskboard/domain"
	"taskboard/state"
	"taskboard/storage"
)

func TestStreamBrokerFanOut(t *testing.T) {
	b := newStreamBroker()
	a := b.subscribe()
	c := b.subscribe()
	defer b.unsubscribe(a)
	defer b.unsubscribe(c)

	b.publish(state.Notification{Kind: state.KindStateChanged})
	for name, ch := range map[string]chan state.Notification{"a": a, "c": c} {
		select {
		case n := <-ch:
			if n.Kind != state.KindStateChanged {
				t.Fatalf("%s: kind = %s", name, n.Kind)
			}
		default:
			t.Fatalf("%s: no notification delivered", name)
		}
	}
}

func TestStreamBrokerNeverBlocksOnSlowClient(t *testing.T) {
	b := newStreamBroker()
	slow := b.subscribe()
	defer b.unsubscribe(slow)

	// Overrun the client buffer; publish must keep returning.
	done := make(chan struct{})
	go func() {
		for i := 0; i < streamClientBuffer*3; i++ {
			b.publish(state.Notification{Kind: state.KindStateChanged})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow client")
	}
	if len(slow) != streamClientBuffer {
		t.Fatalf("buffered = %d, want %d", len(slow), streamClientBuffer)
	}
}

func TestStreamEventsDeliversSnapshotAndMutations(t *testing.T) {
	store := storage.New(storage.NewMemoryBackend(), testLogger())
	c := state.New(store, testLogger())
	t.Cleanup(c.Close)

	broker := newStreamBroker()
	unsub := c.SubscribeAll(broker.publish)
	t.Cleanup(unsub)

	e := echo.New()
	e.GET("/api/stream", streamEvents(c, broker))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	served := make(chan struct{})
	go func() {
		e.ServeHTTP(rec, req)
		close(served)
	}()

	// Wait for the handler to subscribe before mutating.
	deadline := time.Now().Add(time.Second)
	for broker.clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream handler never subscribed")
		}
		time.Sleep(time.Millisecond)
	}

	board, err := domain.NewBoard("Streamed", domain.BoardOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.AddBoard(board); err != nil {
		t.Fatal(err)
	}

	// Give the handler a moment to flush the mutation events, then stop it.
	// The recorder body is only read once the handler has returned.
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-served:
	case <-time.After(time.Second):
		t.Fatal("handler did not stop on context cancel")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "Streamed") {
		t.Fatalf("mutation never reached the stream, body: %q", body)
	}
	if !strings.HasPrefix(body, "event: state-changed\n") {
		t.Fatalf("stream does not open with the snapshot event: %q", body)
	}
	if !strings.Contains(body, "event: boards-changed\n") {
		t.Fatalf("targeted notification missing from stream: %q", body)
	}
	if rec.Header().Get(echo.HeaderContentType) != "text/event-stream" {
		t.Fatalf("content type = %q", rec.Header().Get(echo.HeaderContentType))
	}
}
