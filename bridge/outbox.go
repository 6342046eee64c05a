package bridge

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"soliver/observability"
)

var (
	outboxPendingBucket = []byte("outbox/pending")
	outboxSentBucket    = []byte("outbox/sent")
	outboxMetaBucket    = []byte("outbox/meta")
	outboxSeqKey        = []byte("next_seq")
)

var errOutboxClosed = errors.New("bridge: outbox closed")

const defaultDispatchInterval = 2 * time.Second

// outboxRecord is the durable form of a queued notice.
type outboxRecord struct {
	ID         string   `json:"id"`
	Nonce      uint32   `json:"nonce"`
	Payload    []byte   `json:"payload"`
	Finality   Finality `json:"finality"`
	EnqueuedAt int64    `json:"enqueuedAt"`
	Attempts   int      `json:"attempts"`
	Sequence   uint64   `json:"sequence,omitempty"`
	SentAt     int64    `json:"sentAt,omitempty"`
}

// Outbox is a durable store-and-forward queue in front of another Notifier.
// Publish enqueues the notice in the same synchronous call that the ledger
// mutation observes, and a background dispatcher drains the queue towards the
// guardian relayer with at-least-once delivery.
//
// Publish returns the local enqueue sequence; the guardian sequence is
// recorded on the sent record once the inner notifier accepts the notice.
type Outbox struct {
	db       *bolt.DB
	inner    Notifier
	logger   *slog.Logger
	interval time.Duration
	nowFn    func() time.Time
}

// OutboxOption customises Outbox construction.
type OutboxOption func(*Outbox)

// WithDispatchInterval overrides the queue drain interval.
func WithDispatchInterval(d time.Duration) OutboxOption {
	return func(o *Outbox) {
		if d > 0 {
			o.interval = d
		}
	}
}

// NewOutbox opens (or creates) the outbox database at path and wires it to the
// inner notifier that performs the actual cross-chain publish.
func NewOutbox(path string, inner Notifier, logger *slog.Logger, opts ...OutboxOption) (*Outbox, error) {
	if inner == nil {
		return nil, errors.New("bridge: outbox requires an inner notifier")
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bridge: open outbox: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{outboxPendingBucket, outboxSentBucket, outboxMetaBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("bridge: prepare outbox buckets: %w", err)
	}
	outbox := &Outbox{
		db:       db,
		inner:    inner,
		logger:   logger,
		interval: defaultDispatchInterval,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
	if outbox.logger == nil {
		outbox.logger = slog.Default()
	}
	for _, opt := range opts {
		opt(outbox)
	}
	return outbox, nil
}

// Publish durably enqueues the notice and returns the local enqueue sequence.
func (o *Outbox) Publish(msg Message) (uint64, error) {
	if o == nil || o.db == nil {
		return 0, errOutboxClosed
	}
	record := outboxRecord{
		ID:         uuid.NewString(),
		Nonce:      msg.Nonce,
		Payload:    append([]byte(nil), msg.Payload...),
		Finality:   msg.Finality,
		EnqueuedAt: o.nowFn().Unix(),
	}
	var seq uint64
	err := o.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(outboxMetaBucket)
		seq = binary.BigEndian.Uint64(metaSeq(meta))
		next := make([]byte, 8)
		binary.BigEndian.PutUint64(next, seq+1)
		if err := meta.Put(outboxSeqKey, next); err != nil {
			return err
		}
		encoded, err := json.Marshal(record)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return tx.Bucket(outboxPendingBucket).Put(key, encoded)
	})
	if err != nil {
		return 0, fmt.Errorf("bridge: enqueue notice: %w", err)
	}
	observability.Bridge().SetOutboxPending(o.Pending())
	return seq, nil
}

func metaSeq(meta *bolt.Bucket) []byte {
	if raw := meta.Get(outboxSeqKey); len(raw) == 8 {
		return raw
	}
	return make([]byte, 8)
}

// Pending returns the number of queued notices awaiting dispatch.
func (o *Outbox) Pending() int {
	if o == nil || o.db == nil {
		return 0
	}
	count := 0
	_ = o.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(outboxPendingBucket).Stats().KeyN
		return nil
	})
	return count
}

// Run drains the queue until the context is cancelled. Delivery is
// at-least-once: a notice stays pending until the inner notifier accepts it.
func (o *Outbox) Run(ctx context.Context) {
	if o == nil {
		return
	}
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.dispatchOnce()
		}
	}
}

// dispatchOnce attempts to deliver every pending notice in FIFO order and
// stops at the first failure so ordering is preserved.
func (o *Outbox) dispatchOnce() {
	type pendingEntry struct {
		key    []byte
		record outboxRecord
	}
	var queue []pendingEntry
	_ = o.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(outboxPendingBucket).ForEach(func(k, v []byte) error {
			var record outboxRecord
			if err := json.Unmarshal(v, &record); err != nil {
				return err
			}
			queue = append(queue, pendingEntry{key: append([]byte(nil), k...), record: record})
			return nil
		})
	})
	for _, entry := range queue {
		started := time.Now()
		seq, err := o.inner.Publish(Message{
			Nonce:    entry.record.Nonce,
			Payload:  entry.record.Payload,
			Finality: entry.record.Finality,
		})
		observability.Bridge().ObservePublish(time.Since(started), err)
		if err != nil {
			entry.record.Attempts++
			o.logger.Warn("outbox dispatch failed",
				slog.String("notice", entry.record.ID),
				slog.Int("attempts", entry.record.Attempts),
				slog.Any("error", err))
			o.persistAttempt(entry.key, entry.record)
			break
		}
		entry.record.Sequence = seq
		entry.record.SentAt = o.nowFn().Unix()
		if err := o.markSent(entry.key, entry.record); err != nil {
			o.logger.Error("outbox mark-sent failed",
				slog.String("notice", entry.record.ID),
				slog.Any("error", err))
			break
		}
	}
	observability.Bridge().SetOutboxPending(o.Pending())
}

func (o *Outbox) persistAttempt(key []byte, record outboxRecord) {
	_ = o.db.Update(func(tx *bolt.Tx) error {
		encoded, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return tx.Bucket(outboxPendingBucket).Put(key, encoded)
	})
}

func (o *Outbox) markSent(key []byte, record outboxRecord) error {
	return o.db.Update(func(tx *bolt.Tx) error {
		encoded, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := tx.Bucket(outboxSentBucket).Put(key, encoded); err != nil {
			return err
		}
		return tx.Bucket(outboxPendingBucket).Delete(key)
	})
}

// Close flushes and closes the underlying database.
func (o *Outbox) Close() error {
	if o == nil || o.db == nil {
		return nil
	}
	return o.db.Close()
}
