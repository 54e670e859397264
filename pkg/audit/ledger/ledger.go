package ledger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/aegis/pkg/audit"
	"mercator-hq/aegis/pkg/audit/storage"
)

// Config contains configuration for the ledger client.
type Config struct {
	// BacklogLimit is the maximum number of sealed records awaiting
	// delivery to the store. Once exceeded, Append rejects with
	// audit.ErrBacklogExceeded and decision issuance must stop.
	// Default: 1000
	BacklogLimit int

	// RetryInterval is the initial delay between delivery retries when
	// the store is unavailable. Default: 250ms
	RetryInterval time.Duration

	// MaxRetryInterval caps the exponential retry backoff.
	// Default: 5 seconds
	MaxRetryInterval time.Duration

	// AppendTimeout bounds a single store delivery attempt.
	// Default: 5 seconds
	AppendTimeout time.Duration

	// Observer, if set, receives delivery outcomes and backlog depth.
	// Used for metrics.
	Observer Observer
}

// Observer receives ledger delivery events.
type Observer interface {
	// AppendObserved reports one store delivery attempt.
	AppendObserved(status string, duration time.Duration)

	// BacklogObserved reports the pending backlog depth.
	BacklogObserved(depth int)
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() *Config {
	return &Config{
		BacklogLimit:     1000,
		RetryInterval:    250 * time.Millisecond,
		MaxRetryInterval: 5 * time.Second,
		AppendTimeout:    5 * time.Second,
	}
}

// Ledger converts decisions into hash-chained records and forwards them to
// the durable store.
//
// Sealing (sequence assignment and hashing) happens under a single logical
// writer: each record's hash depends on the prior record, so two appends
// can never interleave. Delivery to the store is asynchronous with
// at-least-once redelivery; sealed-but-undelivered records are the backlog,
// and a full backlog rejects new appends rather than ever dropping one.
type Ledger struct {
	store  storage.Store
	config *Config
	logger *slog.Logger

	mu       sync.Mutex
	nextSeq  uint64
	lastHash string
	closed   bool

	pending chan *audit.Record
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a ledger over the given store, resuming the chain from the
// store's last record if one exists.
func New(store storage.Store, config *Config) (*Ledger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BacklogLimit <= 0 {
		config.BacklogLimit = 1000
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = 250 * time.Millisecond
	}
	if config.MaxRetryInterval < config.RetryInterval {
		config.MaxRetryInterval = 5 * time.Second
	}
	if config.AppendTimeout <= 0 {
		config.AppendTimeout = 5 * time.Second
	}

	l := &Ledger{
		store:    store,
		config:   config,
		logger:   slog.Default().With("component", "audit.ledger"),
		lastHash: audit.GenesisHash,
		pending:  make(chan *audit.Record, config.BacklogLimit),
		done:     make(chan struct{}),
	}

	last, err := store.Last(context.Background())
	if err != nil {
		return nil, err
	}
	if last != nil {
		l.nextSeq = last.Seq + 1
		l.lastHash = last.Hash
	}

	l.wg.Add(1)
	go l.forwarder()

	l.logger.Info("audit ledger initialized",
		"next_seq", l.nextSeq,
		"backlog_limit", config.BacklogLimit,
	)
	return l, nil
}

// Append seals the record onto the chain and queues it for delivery. It
// returns the sealed record (sequence and hash assigned).
//
// Cancellation is honored only before sealing: once a record has a chain
// position it will be delivered, or retried until the ledger closes. When
// the delivery backlog is full, Append fails with audit.ErrBacklogExceeded
// and the record is NOT sealed; the caller must not issue the decision.
func (l *Ledger) Append(ctx context.Context, record *audit.Record) (*audit.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, audit.NewStoreError("ledger", "append", context.Canceled)
	}
	if len(l.pending) >= l.config.BacklogLimit {
		l.mu.Unlock()
		l.observeBacklog()
		return nil, audit.ErrBacklogExceeded
	}

	record.Seal(l.nextSeq, l.lastHash)
	l.nextSeq++
	l.lastHash = record.Hash

	// Capacity was checked under the same lock, so this cannot block.
	l.pending <- record
	l.mu.Unlock()

	l.observeBacklog()
	return record, nil
}

// Backlog returns the number of sealed records still awaiting delivery.
func (l *Ledger) Backlog() int {
	return len(l.pending)
}

// NextSeq returns the sequence number the next append will receive.
func (l *Ledger) NextSeq() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nextSeq
}

// Close stops accepting appends, flushes the backlog to the store, and
// shuts down the forwarder. Every sealed record gets a final delivery
// attempt; a record the store still refuses at shutdown is abandoned and
// logged with its sequence number, so Close never hangs on a dead store.
func (l *Ledger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.pending)
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()
	return nil
}

// forwarder drains the pending queue into the store, retrying each record
// with exponential backoff until it is accepted. Delivery order matches
// commit order.
func (l *Ledger) forwarder() {
	defer l.wg.Done()

	for record := range l.pending {
		l.deliver(record)
		l.observeBacklog()
	}
}

// deliver writes one record to the store, retrying with backoff until it
// is accepted or the ledger is closing. While the ledger runs a record is
// never dropped; only a shutdown with the store still refusing it can
// abandon one, and that abandonment is logged.
func (l *Ledger) deliver(record *audit.Record) {
	backoff := l.config.RetryInterval

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), l.config.AppendTimeout)
		start := time.Now()
		err := l.store.Append(ctx, record)
		cancel()

		if l.config.Observer != nil {
			status := "ok"
			if err != nil {
				status = "retry"
			}
			l.config.Observer.AppendObserved(status, time.Since(start))
		}

		if err == nil {
			return
		}

		l.logger.Warn("audit store append failed, will retry",
			"seq", record.Seq,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-time.After(backoff):
		case <-l.done:
			l.logger.Error("abandoning audit record at shutdown, store unavailable",
				"seq", record.Seq,
				"attempts", attempt,
				"error", err,
			)
			return
		}
		backoff *= 2
		if backoff > l.config.MaxRetryInterval {
			backoff = l.config.MaxRetryInterval
		}
	}
}

func (l *Ledger) observeBacklog() {
	if l.config.Observer != nil {
		l.config.Observer.BacklogObserved(len(l.pending))
	}
}
