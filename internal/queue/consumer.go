package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/muluken16/E-liberary/internal/activity"
)

// Handler processes one delivery body.  A returned error rejects the
// message without requeue.
type Handler func(ctx context.Context, body []byte) error

// Consumer reads the purchase queue with a reconnect loop.
type Consumer struct {
	URL      string
	Queue    string
	Prefetch int
	Log      zerolog.Logger
}

// Run dials the broker and consumes until ctx is cancelled.  Dial failures
// back off exponentially up to 30s.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	if c.Queue == "" {
		c.Queue = DefaultPurchaseQueue
	}
	if c.Prefetch <= 0 {
		c.Prefetch = 50
	}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			c.Log.Warn().Err(err).Dur("retry_in", backoff).Msg("failed to dial broker")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn, handle)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Log.Warn().Err(err).Msg("consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, handle Handler) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.Prefetch, 0, false); err != nil {
		c.Log.Warn().Err(err).Msg("set QoS failed")
	}
	if _, err := declareQueue(ch, c.Queue); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := handle(ctx, d.Body); err != nil {
				c.Log.Error().Err(err).Msg("handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Recorder turns purchase events into activity entries and lines in an
// append-only log file.
type Recorder struct {
	Store   activity.Store
	LogPath string

	mu sync.Mutex
}

// Handle decodes a PurchaseCompletedEvent and records it.
func (r *Recorder) Handle(ctx context.Context, body []byte) error {
	var ev PurchaseCompletedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if r.Store != nil {
		user := ev.UserEmail
		if user == "" && ev.UserID != nil {
			user = fmt.Sprintf("user:%d", *ev.UserID)
		}
		if err := r.Store.Add(ctx, activity.NewEntry(user, "purchased", "book", ev.BookID, ev.CompletedAt)); err != nil {
			return fmt.Errorf("activity add: %w", err)
		}
	}
	if r.LogPath == "" {
		return nil
	}
	return r.appendLine(FormatLogLine(ev))
}

func (r *Recorder) appendLine(line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(r.LogPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(r.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatLogLine renders ev as a single human-friendly line.
func FormatLogLine(ev PurchaseCompletedEvent) string {
	user := "anonymous"
	if ev.UserID != nil {
		user = fmt.Sprintf("%d", *ev.UserID)
	}
	expires := "never"
	if ev.ExpiresAt != nil {
		expires = ev.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s] Purchase completed | payment_id=%d | tx_ref=%s | user_id=%s | book_id=%d | book=%q | type=%s | amount=%s %s | expires=%s\n",
		ev.CompletedAt.UTC().Format(time.RFC3339), ev.PaymentID, ev.TransactionID, user, ev.BookID, ev.BookTitle,
		ev.PurchaseType, ev.Amount, ev.Currency, expires)
}
