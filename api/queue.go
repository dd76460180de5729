package api

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskboard/state"
)

const (
	queueSendAttempts = 5
	queueSendTimeout  = 30 * time.Second
	queueRetryInitial = 250 * time.Millisecond
	queueRetryMax     = 30 * time.Second
)

// QueueMessenger is the slice of the Azure queue client the sink uses.
type QueueMessenger interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// NewQueueClient connects to an Azure Storage Queue with the retry profile
// used across the service fleet.
func NewQueueClient(connStr, name string) (*azqueue.QueueClient, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	return azqueue.NewQueueClientFromConnectionString(connStr, name, &opts)
}

// queueMessage is what the sink puts on the wire per notification.
type queueMessage struct {
	Kind      string `json:"kind"`
	Operation string `json:"operation,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// QueueSink forwards state notifications to an external queue through a
// bounded buffer and a single worker. It never blocks a mutation: when the
// buffer is full the oldest pending message is dropped and counted.
type QueueSink struct {
	queue  QueueMessenger
	logger *log.Logger

	ch     chan queueMessage
	stopCh chan struct{}
	wg     sync.WaitGroup
	unsub  func()

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// NewQueueSink starts the sink worker over the given queue client.
func NewQueueSink(queue QueueMessenger, buffer int, logger *log.Logger) *QueueSink {
	if queue == nil {
		panic("api.NewQueueSink: queue is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	if buffer <= 0 {
		buffer = 256
	}
	q := &QueueSink{
		queue:  queue,
		logger: logger,
		ch:     make(chan queueMessage, buffer),
		stopCh: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

// Attach subscribes the sink to the notifier. Saved confirmations are not
// forwarded; external consumers care about state changes, not our durability
// handshake.
func (q *QueueSink) Attach(notifier Notifier) {
	q.unsub = notifier.SubscribeAll(func(n state.Notification) {
		if n.Kind == state.KindSaved {
			return
		}
		q.offer(queueMessage{Kind: string(n.Kind), Operation: n.Operation, Timestamp: n.Timestamp})
	})
}

// offer hands the message to the worker without blocking. On overflow it
// drops the oldest pending message to make room.
func (q *QueueSink) offer(msg queueMessage) {
	for {
		select {
		case q.ch <- msg:
			return
		default:
		}
		select {
		case old := <-q.ch:
			q.dropped.Add(1)
			q.logger.WithField("kind", old.Kind).Warn("queue.sink.overflow")
		default:
		}
	}
}

func (q *QueueSink) run() {
	defer q.wg.Done()
	for {
		select {
		case msg := <-q.ch:
			q.deliver(msg)
		case <-q.stopCh:
			// Drain what is already buffered, then stop.
			for {
				select {
				case msg := <-q.ch:
					q.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (q *QueueSink) deliver(msg queueMessage) {
	data, err := sonic.ConfigStd.Marshal(msg)
	if err != nil {
		q.logger.WithError(err).Error("queue.sink.marshal.failed")
		return
	}
	for attempt := 0; attempt < queueSendAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoffDelay(attempt, queueRetryInitial, queueRetryMax))
			select {
			case <-timer.C:
			case <-q.stopCh:
			}
			timer.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), queueSendTimeout)
		_, err = q.queue.EnqueueMessage(ctx, string(data), nil)
		cancel()
		if err == nil {
			q.delivered.Add(1)
			return
		}
	}
	q.logger.WithError(err).WithField("kind", msg.Kind).Error("queue.sink.enqueue.abandoned")
}

// QueueSinkStats is a point-in-time snapshot of sink traffic.
type QueueSinkStats struct {
	Buffered  int    `json:"buffered"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
}

// Stats reports sink traffic counters.
func (q *QueueSink) Stats() QueueSinkStats {
	return QueueSinkStats{
		Buffered:  len(q.ch),
		Delivered: q.delivered.Load(),
		Dropped:   q.dropped.Load(),
	}
}

// Close detaches from the notifier, drains the buffer and stops the worker.
func (q *QueueSink) Close() {
	if q.unsub != nil {
		q.unsub()
	}
	close(q.stopCh)
	q.wg.Wait()
}

func backoffDelay(attempt int, initial, max time.Duration) time.Duration {
	if attempt <= 0 {
		return initial
	}
	backoff := float64(initial) * math.Pow(2, float64(attempt-1))
	if backoff > float64(max) {
		backoff = float64(max)
	}
	jitter := 0.2 * backoff
	return time.Duration(backoff + (rand.Float64()-0.5)*2*jitter)
}
