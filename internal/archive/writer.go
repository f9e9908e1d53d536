package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/notify-channel/internal/dispatch"
	"github.com/rickgao/notify-channel/internal/notification"
)

// Schema creates the archive table.
const Schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	kind        TEXT NOT NULL,
	type        TEXT NOT NULL,
	title       TEXT NOT NULL,
	message     TEXT NOT NULL,
	payload     JSONB,
	created_at  TIMESTAMPTZ NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
)`

const insertSQL = `
	INSERT INTO notifications (id, user_id, kind, type, title, message, payload, created_at, received_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (id) DO NOTHING
`

// DB is the subset of pgxpool.Pool the writer uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Recorder receives archive metrics. A nil Recorder records nothing.
type Recorder interface {
	ArchiveQueued(n int)
	ArchiveInserted(n int)
	ArchiveFailed()
}

type nopRecorder struct{}

func (nopRecorder) ArchiveQueued(int)   {}
func (nopRecorder) ArchiveInserted(int) {}
func (nopRecorder) ArchiveFailed()      {}

// Source provides notifications to archive.
type Source interface {
	OnNotification(kind notification.Kind, handler func(notification.Envelope)) dispatch.Disposer
}

// Record is one archived row.
type Record struct {
	ID         string
	UserID     string
	Kind       notification.Kind
	Type       string
	Title      string
	Message    string
	Payload    json.RawMessage
	CreatedAt  time.Time
	ReceivedAt time.Time
}

// NewRecord converts an envelope received for userID.
func NewRecord(env notification.Envelope, userID string, receivedAt time.Time) Record {
	createdAt := env.CreatedAt
	if createdAt.IsZero() {
		createdAt = receivedAt
	}
	return Record{
		ID:         env.ID,
		UserID:     userID,
		Kind:       env.Kind,
		Type:       env.Kind.Type(),
		Title:      env.Title,
		Message:    env.Message,
		Payload:    env.Raw,
		CreatedAt:  createdAt,
		ReceivedAt: receivedAt,
	}
}

// WriterConfig controls batching.
type WriterConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

// WriterStats counts writer activity.
type WriterStats struct {
	Inserts   int64
	Conflicts int64
	Flushes   int64
	Errors    int64
}

// Writer batches queued records into the notifications table.
type Writer struct {
	cfg     WriterConfig
	db      DB
	queue   *Queue[Record]
	userID  string
	metrics Recorder
	logger  *slog.Logger
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex // Serializes flushes and guards stats
	stats WriterStats
}

// NewWriter creates a writer for userID's notifications.
func NewWriter(cfg WriterConfig, db DB, queue *Queue[Record], userID string, metrics Recorder, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	return &Writer{
		cfg:     cfg,
		db:      db,
		queue:   queue,
		userID:  userID,
		metrics: metrics,
		logger:  logger.With("component", "archive"),
		now:     time.Now,
	}
}

// EnsureSchema creates the notifications table if needed.
func (w *Writer) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create notifications table: %w", err)
	}
	return nil
}

// Attach queues every known notification kind from src. The returned func
// detaches the writer.
func (w *Writer) Attach(src Source) func() {
	var disposers []dispatch.Disposer
	for _, kind := range notification.KnownKinds() {
		disposers = append(disposers, src.OnNotification(kind, w.Enqueue))
	}
	return func() {
		for _, d := range disposers {
			d()
		}
	}
}

// Enqueue queues env for archiving. It never blocks.
func (w *Writer) Enqueue(env notification.Envelope) {
	if !w.queue.Push(NewRecord(env, w.userID, w.now())) {
		w.logger.Debug("archive closed, notification not queued", "id", env.ID)
		return
	}
	w.metrics.ArchiveQueued(w.queue.Len())
}

// Start begins consuming the queue.
func (w *Writer) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.loop(ctx)

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the queue, waits for the loop and flushes what is left
// using ctx.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	w.queue.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
		return ctx.Err()
	}

	// Final flush
	for w.queue.Len() > 0 {
		if err := w.flush(ctx); err != nil {
			return err
		}
	}
	w.logger.Info("archive writer stopped")
	return nil
}

// Stats returns current counters.
func (w *Writer) Stats() WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Writer) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.queue.Ready():
			for w.queue.Len() >= w.cfg.BatchSize {
				if err := w.flush(ctx); err != nil {
					break
				}
			}
		case <-ticker.C:
			for w.queue.Len() > 0 {
				if err := w.flush(ctx); err != nil {
					break
				}
			}
		}
	}
}

// flush writes one batch. Failed batches are dropped and counted.
func (w *Writer) flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	rows := w.queue.Drain(w.cfg.BatchSize)
	w.metrics.ArchiveQueued(w.queue.Len())
	if len(rows) == 0 {
		return nil
	}

	start := time.Now()
	conflicts, err := w.batchInsert(ctx, rows)
	if err != nil {
		w.stats.Errors++
		w.metrics.ArchiveFailed()
		w.logger.Error("batch insert failed", "error", err, "count", len(rows))
		return err
	}

	inserted := len(rows) - conflicts
	w.stats.Inserts += int64(inserted)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.metrics.ArchiveInserted(inserted)

	w.logger.Debug("flushed notifications",
		"count", len(rows),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *Writer) batchInsert(ctx context.Context, rows []Record) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		var payload any
		if len(r.Payload) > 0 {
			payload = r.Payload
		}
		batch.Queue(insertSQL,
			r.ID, r.UserID, string(r.Kind), r.Type, r.Title, r.Message,
			payload, r.CreatedAt, r.ReceivedAt,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
