package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/inkpost/inkpost/internal/metrics"
)

const (
	// StreamKey is the Redis stream holding queued mail.
	StreamKey = "stream:mail"
	// DeadLetterStreamKey receives messages that could not be delivered.
	DeadLetterStreamKey = "stream:mail:dlq"
	// ConsumerGroup is the Redis consumer group of mail workers.
	ConsumerGroup = "mailers"

	maxStreamLen     = 10000
	maxDeadLetterLen = 10000
)

// StreamSender enqueues messages on a Redis stream. A Worker delivers them.
type StreamSender struct {
	redis *redis.Client
}

// NewStreamSender creates a StreamSender.
func NewStreamSender(client *redis.Client) *StreamSender {
	return &StreamSender{redis: client}
}

// Send appends msg to the mail stream.
func (s *StreamSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	err = s.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: maxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{"payload": string(data)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd mail: %w", err)
	}
	return nil
}

// Worker defaults.
const (
	DefaultBatchSize     = 10
	DefaultBlockTimeout  = 5 * time.Second
	DefaultClaimIdle     = time.Minute
	DefaultClaimInterval = 30 * time.Second
)

// Worker reads the mail stream through a consumer group and hands each
// message to a delivery Sender, retrying with backoff before dead-lettering.
type Worker struct {
	redis       *redis.Client
	delivery    Sender
	logger      *slog.Logger
	metrics     metrics.Recorder
	consumerID  string
	batchSize   int
	block       time.Duration
	claimIdle   time.Duration
	claimEvery  time.Duration
	maxAttempts int
	retryDelay  func(failed int) time.Duration

	lastClaim time.Time

	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewWorker creates a mail worker.
func NewWorker(client *redis.Client, delivery Sender, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:       client,
		delivery:    delivery,
		logger:      logger.With("component", "notify.worker", "consumer_id", consumerID),
		metrics:     recorder,
		consumerID:  consumerID,
		batchSize:   DefaultBatchSize,
		block:       DefaultBlockTimeout,
		claimIdle:   DefaultClaimIdle,
		claimEvery:  DefaultClaimInterval,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  NextRetryDelay,
	}
}

// Run processes the stream until ctx is cancelled or Shutdown is called.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	err := w.redis.XGroupCreateMkStream(ctx, StreamKey, ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("mail worker started")

	for {
		if ctx.Err() != nil {
			w.logger.Info("mail worker stopping")
			return nil
		}
		if err := w.processOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("process error", "error", err)
			sleep(ctx, time.Second)
		}
	}
}

// Shutdown stops the worker and waits for the current message to finish.
// A worker shut down before Run never starts. It matches server.ShutdownFunc.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	w.stopped = true
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		w.logger.Warn("mail worker shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) processOnce(ctx context.Context) error {
	w.updateQueueDepth(ctx)

	messages, err := w.claimStale(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending mail", "error", err)
	}
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	for _, msg := range messages {
		w.handle(ctx, msg)
	}
	return nil
}

func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{StreamKey, ">"},
		Count:    int64(w.batchSize),
		Block:    w.block,
	}).Result()
	if errors.Is(err, redis.Nil) || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	return streams[0].Messages, nil
}

// claimStale takes over messages another consumer read but never acked.
func (w *Worker) claimStale(ctx context.Context) ([]redis.XMessage, error) {
	if time.Since(w.lastClaim) < w.claimEvery {
		return nil, nil
	}
	w.lastClaim = time.Now()

	messages, _, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   StreamKey,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    "0-0",
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	return messages, nil
}

// handle delivers one stream entry and always acks it, either after
// delivery or after dead-lettering.
func (w *Worker) handle(ctx context.Context, entry redis.XMessage) {
	msg, err := decodeEntry(entry)
	if err != nil {
		w.deadLetter(ctx, entry, "invalid_payload", err.Error())
		w.ack(ctx, entry.ID)
		return
	}

	if err := w.deliver(ctx, msg); err != nil {
		if ctx.Err() != nil {
			// Left pending; another consumer or the next run reclaims it.
			return
		}
		w.deadLetter(ctx, entry, "delivery_failed", err.Error())
	}
	w.ack(ctx, entry.ID)
}

func (w *Worker) deliver(ctx context.Context, msg Message) error {
	var lastErr error
	for attempt := 1; ; attempt++ {
		start := time.Now()
		lastErr = w.delivery.Send(ctx, msg)
		w.metrics.ObserveNotificationDuration(time.Since(start))
		if lastErr == nil {
			w.metrics.IncNotification(metrics.NotificationSent)
			return nil
		}
		w.metrics.IncNotification(metrics.NotificationFailed)

		if IsExhausted(attempt, w.maxAttempts) {
			return lastErr
		}
		delay := w.retryDelay(attempt - 1)
		w.logger.Warn("mail delivery failed, retrying",
			"attempt", attempt,
			"backoff_seconds", delay.Seconds(),
			"error", lastErr,
		)
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

func (w *Worker) deadLetter(ctx context.Context, entry redis.XMessage, reason, detail string) {
	w.logger.Warn("dead-lettering mail", "message_id", entry.ID, "reason", reason, "detail", detail)

	err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStreamKey,
		MaxLen: maxDeadLetterLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      entry.ID,
			"reason":           reason,
			"detail":           detail,
			"payload":          entry.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		w.logger.Error("failed to write mail dead-letter", "message_id", entry.ID, "error", err)
	}
	w.metrics.IncNotification(metrics.NotificationDeadLettered)
}

func (w *Worker) ack(ctx context.Context, id string) {
	if err := w.redis.XAck(ctx, StreamKey, ConsumerGroup, id).Err(); err != nil {
		w.logger.Error("failed to ack mail", "message_id", id, "error", err)
	}
}

func (w *Worker) updateQueueDepth(ctx context.Context) {
	groups, err := w.redis.XInfoGroups(ctx, StreamKey).Result()
	if err != nil {
		return
	}
	for _, g := range groups {
		if g.Name == ConsumerGroup {
			w.metrics.SetMailQueueDepth(g.Pending + g.Lag)
			return
		}
	}
}

func decodeEntry(entry redis.XMessage) (Message, error) {
	var msg Message
	payload, ok := entry.Values["payload"].(string)
	if !ok {
		return msg, errors.New("payload field missing or not a string")
	}
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return msg, fmt.Errorf("unmarshal payload: %w", err)
	}
	if err := msg.Validate(); err != nil {
		return msg, err
	}
	return msg, nil
}

// sleep waits for d or ctx cancellation and reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// NewConsumerID builds a consumer name unique to this process.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "mailer"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}
