package service

import (
	"context"
	"fmt"
	"time"

	"shipment-consolidator/internal/models"
	"shipment-consolidator/internal/recordstore"
	"shipment-consolidator/internal/retry"
	"shipment-consolidator/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Write operations
const (
	opWriteInstructions = "write_instructions"
	opMarkProcessed     = "mark_processed"
)

// ChunkError records one bulk call that failed after retries
type ChunkError struct {
	Chunk int
	Size  int
	Err   error
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (%d records): %v", e.Chunk, e.Size, e.Err)
}

// WriteReport is the outcome of a chunked bulk operation
type WriteReport struct {
	Attempted int
	Written   []models.ShipmentInstruction
	MarkedIDs []string
	Failures  []ChunkError
}

// Succeeded returns how many records were committed
func (r WriteReport) Succeeded() int {
	return len(r.Written) + len(r.MarkedIDs)
}

// BatchWriter commits shipment instructions and marks source orders processed
type BatchWriter struct {
	store       recordstore.Store
	storeID     string
	chunkSize   int
	concurrency int
	policy      retry.Policy
	logger      *zap.Logger
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(store recordstore.Store, instructionStoreID string, chunkSize, concurrency int, policy retry.Policy) *BatchWriter {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchWriter{
		store:       store,
		storeID:     instructionStoreID,
		chunkSize:   chunkSize,
		concurrency: concurrency,
		policy:      policy,
		logger:      util.GetLogger(),
	}
}

// WriteInstructions writes instructions in chunks. A failed chunk is reported and
// does not stop the others; Written holds the instructions of successful chunks
// in input order.
func (w *BatchWriter) WriteInstructions(ctx context.Context, instrs []models.ShipmentInstruction) WriteReport {
	ctx, span := util.StartSpan(ctx, "BatchWriter.WriteInstructions")
	defer span.End()

	chunks := recordstore.Chunk(instrs, w.chunkSize)
	errs := w.runChunks(ctx, len(chunks), func(ctx context.Context, i int) error {
		records := make([]models.Record, len(chunks[i]))
		for j, instr := range chunks[i] {
			records[j] = instr.ToRecord()
		}
		return w.withRetry(ctx, opWriteInstructions, func(ctx context.Context) error {
			_, err := w.store.BulkWrite(ctx, w.storeID, records)
			return err
		})
	})

	report := WriteReport{Attempted: len(instrs)}
	for i, chunk := range chunks {
		if errs[i] != nil {
			report.Failures = append(report.Failures, ChunkError{Chunk: i, Size: len(chunk), Err: errs[i]})
			continue
		}
		report.Written = append(report.Written, chunk...)
	}
	w.logReport(opWriteInstructions, w.storeID, report)
	return report
}

// MarkProcessed moves the given source order records to "shipment request issued".
// Duplicate ids are collapsed.
func (w *BatchWriter) MarkProcessed(ctx context.Context, source, storeID string, ids []string) WriteReport {
	ctx, span := util.StartSpan(ctx, "BatchWriter.MarkProcessed")
	defer span.End()

	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	chunks := recordstore.Chunk(unique, w.chunkSize)
	errs := w.runChunks(ctx, len(chunks), func(ctx context.Context, i int) error {
		updates := make([]recordstore.Update, len(chunks[i]))
		for j, id := range chunks[i] {
			updates[j] = recordstore.Update{
				ID:     id,
				Record: models.Record{models.FieldStatus: models.OrderStatusIssued},
			}
		}
		return w.withRetry(ctx, opMarkProcessed, func(ctx context.Context) error {
			_, err := w.store.BulkUpdate(ctx, storeID, updates)
			return err
		})
	})

	report := WriteReport{Attempted: len(unique)}
	for i, chunk := range chunks {
		if errs[i] != nil {
			report.Failures = append(report.Failures, ChunkError{Chunk: i, Size: len(chunk), Err: errs[i]})
			continue
		}
		report.MarkedIDs = append(report.MarkedIDs, chunk...)
	}
	util.OrdersMarkedTotal.WithLabelValues(source).Add(float64(len(report.MarkedIDs)))
	w.logReport(opMarkProcessed, storeID, report)
	return report
}

// runChunks calls fn for every chunk index with at most w.concurrency in flight
// and returns the error of each chunk by index
func (w *BatchWriter) runChunks(ctx context.Context, n int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

func (w *BatchWriter) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	policy := w.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		util.StoreRetriesTotal.WithLabelValues(op).Inc()
		w.logger.Warn("Retrying bulk call",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}
	err := retry.Do(ctx, policy, fn)
	if err != nil {
		util.ChunkFailuresTotal.WithLabelValues(op).Inc()
	}
	return err
}

func (w *BatchWriter) logReport(op, storeID string, r WriteReport) {
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("store_id", storeID),
		zap.Int("attempted", r.Attempted),
		zap.Int("succeeded", r.Succeeded()),
		zap.Int("failed_chunks", len(r.Failures)),
	}
	if len(r.Failures) > 0 {
		w.logger.Error("Bulk operation finished with failures", append(fields, zap.Error(r.Failures[0].Err))...)
		return
	}
	w.logger.Info("Bulk operation finished", fields...)
}
