// Package journal buffers bridge events and writes them to the event store
// in batches. Recording never blocks the caller: when the flush queue is
// full the batch is dropped and counted.
package journal

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/thenexusengine/tne_adtalos/internal/bridge"
	"github.com/thenexusengine/tne_adtalos/internal/config"
	"github.com/thenexusengine/tne_adtalos/internal/metrics"
	"github.com/thenexusengine/tne_adtalos/internal/storage"
	"github.com/thenexusengine/tne_adtalos/pkg/breaker"
	"github.com/thenexusengine/tne_adtalos/pkg/logger"
)

// Store persists batches of events
type Store interface {
	InsertBatch(ctx context.Context, events []storage.EventRecord) error
}

// Metrics receives per-batch outcomes
type Metrics interface {
	RecordJournal(result string, n int)
}

// Config sizes the journal
type Config struct {
	BufferSize    int
	Workers       int
	QueueSize     int
	FlushTimeout  time.Duration
	FlushInterval time.Duration
}

// DefaultConfig returns the journal defaults
func DefaultConfig() Config {
	return Config{
		BufferSize:    config.DefaultJournalBufferSize,
		Workers:       config.JournalFlushWorkers,
		QueueSize:     config.JournalFlushQueueSize,
		FlushTimeout:  config.JournalFlushTimeout,
		FlushInterval: config.JournalFlushInterval,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.FlushTimeout <= 0 {
		c.FlushTimeout = d.FlushTimeout
	}
}

// Journal is a bridge.Observer writing events through a bounded worker pool
type Journal struct {
	cfg     Config
	store   Store
	breaker *breaker.Breaker
	metrics Metrics

	mu     sync.Mutex
	buffer []storage.EventRecord
	closed bool

	flushQueue chan []storage.EventRecord
	stopCh     chan struct{}
	wg         sync.WaitGroup

	total          atomic.Int64
	written        atomic.Int64
	failed         atomic.Int64
	droppedEvents  atomic.Int64
	droppedBatches atomic.Int64
}

// Stats contains counters for monitoring the journal
type Stats struct {
	TotalEvents    int64         `json:"total_events"`
	WrittenEvents  int64         `json:"written_events"`
	FailedEvents   int64         `json:"failed_events"`
	DroppedEvents  int64         `json:"dropped_events"`
	DroppedBatches int64         `json:"dropped_batches"`
	BufferedEvents int           `json:"buffered_events"`
	QueuedBatches  int           `json:"queued_batches"`
	Breaker        breaker.Stats `json:"breaker"`
}

// New starts the flush workers. A nil breaker gets the default one.
func New(store Store, cfg Config, cb *breaker.Breaker, m Metrics) *Journal {
	cfg.applyDefaults()
	if cb == nil {
		cb = breaker.New(breaker.DefaultConfig("journal"))
	}

	j := &Journal{
		cfg:        cfg,
		store:      store,
		breaker:    cb,
		metrics:    m,
		buffer:     make([]storage.EventRecord, 0, cfg.BufferSize),
		flushQueue: make(chan []storage.EventRecord, cfg.QueueSize),
		stopCh:     make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		j.wg.Add(1)
		go j.flushWorker()
	}
	if cfg.FlushInterval > 0 {
		j.wg.Add(1)
		go j.tick()
	}

	return j
}

// OnBridgeEvent implements bridge.Observer
func (j *Journal) OnBridgeEvent(ev bridge.Event) {
	j.Record(recordFrom(ev))
}

func recordFrom(ev bridge.Event) storage.EventRecord {
	return storage.EventRecord{
		ID:          ev.ID,
		Kind:        string(ev.Kind),
		Format:      ev.FormatLabel,
		PlacementID: ev.PlacementID,
		AttemptID:   ev.AttemptID,
		Outcome:     string(ev.Outcome),
		Callback:    ev.Callback,
		Reason:      ev.Reason,
		ErrorCode:   string(ev.ErrorCode),
		NetworkCode: ev.NetworkCode,
		Message:     ev.Message,
		OccurredAt:  ev.Time,
	}
}

// Record buffers one event and queues the buffer once it is full
func (j *Journal) Record(rec storage.EventRecord) {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		j.drop(1, false)
		return
	}
	j.total.Add(1)
	j.buffer = append(j.buffer, rec)
	if len(j.buffer) >= j.cfg.BufferSize {
		j.enqueueLocked(j.swap())
	}
	j.mu.Unlock()
}

// swap must be called with mu held
func (j *Journal) swap() []storage.EventRecord {
	if len(j.buffer) == 0 {
		return nil
	}
	batch := j.buffer
	j.buffer = make([]storage.EventRecord, 0, j.cfg.BufferSize)
	return batch
}

// enqueueLocked must be called with mu held. The queue is closed only
// after closed is set, so a sender holding mu never sees a closed channel.
func (j *Journal) enqueueLocked(batch []storage.EventRecord) {
	if batch == nil {
		return
	}
	select {
	case j.flushQueue <- batch:
	default:
		j.drop(len(batch), true)
		logger.Journal().Warn().Int("events", len(batch)).Msg("journal queue full, dropping batch")
	}
}

func (j *Journal) drop(n int, batch bool) {
	j.droppedEvents.Add(int64(n))
	if batch {
		j.droppedBatches.Add(1)
	}
	j.record(metrics.ResultDropped, n)
}

func (j *Journal) record(result string, n int) {
	if j.metrics != nil {
		j.metrics.RecordJournal(result, n)
	}
}

func (j *Journal) tick() {
	defer j.wg.Done()
	ticker := time.NewTicker(j.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.mu.Lock()
			if !j.closed {
				j.enqueueLocked(j.swap())
			}
			j.mu.Unlock()
		case <-j.stopCh:
			return
		}
	}
}

func (j *Journal) flushWorker() {
	defer j.wg.Done()
	for batch := range j.flushQueue {
		ctx, cancel := context.WithTimeout(context.Background(), j.cfg.FlushTimeout)
		//nolint:errcheck // failures are counted and logged in write
		_ = j.write(ctx, batch)
		cancel()
	}
}

func (j *Journal) write(ctx context.Context, batch []storage.EventRecord) error {
	err := j.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		return j.store.InsertBatch(ctx, batch)
	})
	if err != nil {
		j.failed.Add(int64(len(batch)))
		j.record(metrics.ResultFailed, len(batch))
		logger.Journal().Warn().Err(err).Int("events", len(batch)).Msg("journal write failed")
		return err
	}
	j.written.Add(int64(len(batch)))
	j.record(metrics.ResultWritten, len(batch))
	return nil
}

// Flush writes the current buffer synchronously
func (j *Journal) Flush(ctx context.Context) error {
	j.mu.Lock()
	batch := j.swap()
	j.mu.Unlock()

	if batch == nil {
		return nil
	}
	return j.write(ctx, batch)
}

// Close writes what is buffered, drains queued batches and stops the
// workers. Events recorded afterwards are dropped.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	j.mu.Unlock()

	close(j.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), j.cfg.FlushTimeout)
	defer cancel()
	err := j.Flush(ctx)

	close(j.flushQueue)
	j.wg.Wait()
	j.breaker.Close()

	return err
}

// Stats returns the journal counters
func (j *Journal) Stats() Stats {
	j.mu.Lock()
	buffered := len(j.buffer)
	j.mu.Unlock()

	return Stats{
		TotalEvents:    j.total.Load(),
		WrittenEvents:  j.written.Load(),
		FailedEvents:   j.failed.Load(),
		DroppedEvents:  j.droppedEvents.Load(),
		DroppedBatches: j.droppedBatches.Load(),
		BufferedEvents: buffered,
		QueuedBatches:  len(j.flushQueue),
		Breaker:        j.breaker.Stats(),
	}
}

var _ bridge.Observer = (*Journal)(nil)
