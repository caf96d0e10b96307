package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exproctor-backend/internal/config"
	"github.com/stemsi/exproctor-backend/internal/model"
	"github.com/stemsi/exproctor-backend/internal/observability"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ProctorLogQueue is the producer side of the proctor log pipeline.
type ProctorLogQueue struct {
	rdb *redis.Client
}

// NewProctorLogQueue creates a new ProctorLogQueue.
func NewProctorLogQueue(rdb *redis.Client) *ProctorLogQueue {
	return &ProctorLogQueue{rdb: rdb}
}

// Enqueue pushes an entry for the worker to persist.
func (q *ProctorLogQueue) Enqueue(ctx context.Context, entry model.ProctorLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal proctor log: %w", err)
	}
	return q.rdb.RPush(ctx, config.WorkerKey.PersistProctorLogsQueue, data).Err()
}

// ProctorLogWriter persists proctor log entries.
type ProctorLogWriter interface {
	CopyLogs(ctx context.Context, entries []model.ProctorLogEntry) (int64, error)
	Insert(ctx context.Context, e *model.ProctorLogEntry) error
}

// ProctorLogWorker drains the proctor log queue into Postgres in batches.
type ProctorLogWorker struct {
	logs ProctorLogWriter
	rdb  *redis.Client
	log  zerolog.Logger

	// backoff is how long to pause after requeueing failed entries.
	backoff time.Duration
}

// NewProctorLogWorker creates a new ProctorLogWorker.
func NewProctorLogWorker(logs ProctorLogWriter, rdb *redis.Client, log zerolog.Logger) *ProctorLogWorker {
	return &ProctorLogWorker{
		logs:    logs,
		rdb:     rdb,
		log:     log.With().Str("component", "proctor_log_worker").Logger(),
		backoff: 2 * time.Second,
	}
}

// Start runs until ctx is cancelled, then flushes what it has buffered.
func (w *ProctorLogWorker) Start(ctx context.Context) {
	w.log.Info().Msg("ProctorLogWorker started")

	buffer := make([]model.ProctorLogEntry, 0, BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Flush on size or age.
		if len(buffer) > 0 {
			if len(buffer) >= BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.flushSafe(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		// 2. Graceful shutdown.
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. BLPop blocks for PollTimeout and returns immediately if data exists.
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistProctorLogsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		if len(result) < 2 {
			continue
		}

		var entry model.ProctorLogEntry
		if err := json.Unmarshal([]byte(result[1]), &entry); err != nil {
			// Malformed entries cannot be retried.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed proctor log")
			observability.ProctorLogs().WithLabelValues("discarded").Inc()
			continue
		}

		buffer = append(buffer, entry)
	}
}

// flushSafe attempts a bulk copy, then row-by-row insert, then requeue.
func (w *ProctorLogWorker) flushSafe(ctx context.Context, batch []model.ProctorLogEntry) {
	n, err := w.logs.CopyLogs(ctx, batch)
	if err == nil {
		observability.ProctorLogs().WithLabelValues("persisted").Add(float64(n))
		return
	}

	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk copy failed, attempting row-by-row recovery")
	w.fallbackInsert(ctx, batch)
}

func (w *ProctorLogWorker) fallbackInsert(ctx context.Context, batch []model.ProctorLogEntry) {
	var requeueList []model.ProctorLogEntry

	for i := range batch {
		entry := batch[i]
		if err := w.logs.Insert(ctx, &entry); err != nil {
			w.log.Error().Err(err).Int("student_id", entry.StudentID).Msg("Insert failed, requeueing")
			requeueList = append(requeueList, entry)
			continue
		}
		observability.ProctorLogs().WithLabelValues("persisted").Inc()
	}

	if len(requeueList) > 0 {
		w.requeue(ctx, requeueList)
	}
}

func (w *ProctorLogWorker) requeue(ctx context.Context, items []model.ProctorLogEntry) {
	pipe := w.rdb.Pipeline()
	for _, e := range items {
		data, _ := json.Marshal(e)
		pipe.RPush(ctx, config.WorkerKey.PersistProctorLogsQueue, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		w.log.Error().Err(err).Int("count", len(items)).Msg("CRITICAL: Failed to requeue proctor logs. Data loss occurred.")
		observability.ProctorLogs().WithLabelValues("lost").Add(float64(len(items)))
		return
	}

	w.log.Info().Int("count", len(items)).Msg("Requeued failed proctor logs")
	observability.ProctorLogs().WithLabelValues("requeued").Add(float64(len(items)))
	// Avoid thrashing while the database is down.
	time.Sleep(w.backoff)
}

func (w *ProctorLogWorker) shutdown(buffer []model.ProctorLogEntry) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.flushSafe(shutdownCtx, buffer)
	}
}
