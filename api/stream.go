package api

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"taskboard/domain"
	"taskboard/state"
)

const (
	// streamClientBuffer bounds the per-client notification backlog. A slow
	// client that overruns it misses events and re-syncs from /api/state.
	streamClientBuffer = 8
	heartbeatInterval  = 25 * time.Second
)

// streamBroker fans container notifications out to SSE clients. Sends never
// block: a full client channel drops the event for that client only.
type streamBroker struct {
	mu   sync.Mutex
	subs map[chan state.Notification]struct{}
}

func newStreamBroker() *streamBroker {
	return &streamBroker{subs: make(map[chan state.Notification]struct{})}
}

func (b *streamBroker) subscribe() chan state.Notification {
	ch := make(chan state.Notification, streamClientBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *streamBroker) unsubscribe(ch chan state.Notification) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

func (b *streamBroker) publish(n state.Notification) {
	b.mu.Lock()
	for ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
	b.mu.Unlock()
}

func (b *streamBroker) clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// streamEvent is the SSE payload: the notification kind plus the state
// snapshot it carried.
type streamEvent struct {
	Kind      string          `json:"kind"`
	Operation string          `json:"operation,omitempty"`
	Timestamp int64           `json:"timestamp"`
	State     domain.AppState `json:"state"`
}

// streamEvents serves the SSE notification stream. Each client first gets a
// snapshot event, then one event per notification, with comment heartbeats in
// between so intermediaries keep the connection alive.
func streamEvents(store StateStore, broker *streamBroker) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ch := broker.subscribe()
		defer broker.unsubscribe(ch)

		snapshot := streamEvent{
			Kind:      string(state.KindStateChanged),
			Timestamp: domain.NowMillis(),
			State:     store.GetState(),
		}
		if err := writeEvent(c, snapshot); err != nil {
			return err
		}
		flusher.Flush()

		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		ctx := c.Request().Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case n := <-ch:
				ev := streamEvent{
					Kind:      string(n.Kind),
					Operation: n.Operation,
					Timestamp: n.Timestamp,
					State:     n.State,
				}
				if err := writeEvent(c, ev); err != nil {
					return err
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := fmt.Fprint(c.Response(), ": keep-alive\n\n"); err != nil {
					return err
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(c echo.Context, ev streamEvent) error {
	data, err := sonic.ConfigStd.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.Response(), "event: %s\ndata: %s\n\n", ev.Kind, data)
	return err
}
