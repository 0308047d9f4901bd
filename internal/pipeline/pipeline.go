package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/couchcryptid/batch-geocoder-service/internal/observability"
)

// BatchExtractor reads up to batchSize requests from the source. It may
// return requests together with an error; those requests were fetched and
// still need a result.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.JobRequest, error)
}

// BatchProcessor geocodes a batch of requests. Results are index-aligned with
// the requests, and failures are carried in the results.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, reqs []domain.JobRequest) []domain.JobResult
}

// BatchLoader writes request results to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, results []domain.JobResult) error
}

// Pipeline orchestrates the extract-geocode-load loop.
type Pipeline struct {
	extractor BatchExtractor
	processor BatchProcessor
	loader    BatchLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
	batchSize int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, proc BatchProcessor, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor: e,
		processor: proc,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
		batchSize: batchSize,
	}
}

// CheckReadiness returns nil if the pipeline has loaded at least one batch,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not processed any requests yet")
	}
	return nil
}

// Run executes the batch geocoding loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processBatch(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processBatch runs one extract-geocode-load cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processBatch(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	start := time.Now()

	reqs, extractErr := p.extractor.ExtractBatch(ctx, p.batchSize)
	if extractErr != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", extractErr, "fetched", len(reqs))
	}

	if len(reqs) == 0 {
		if extractErr != nil {
			return p.backoffOrStop(ctx, backoff, maxBackoff)
		}
		return ctx.Err() == nil
	}

	p.metrics.RequestsConsumed.Add(float64(len(reqs)))
	p.metrics.BatchSize.Observe(float64(len(reqs)))
	*backoff = 200 * time.Millisecond

	loaded, ok := p.processAndLoad(ctx, reqs, backoff, maxBackoff)
	if !ok {
		return false
	}

	if loaded > 0 {
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}
	if extractErr != nil {
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}
	return true
}

// processAndLoad geocodes the batch, loads every result (failures included),
// and commits offsets. A request is committed only after its result is
// written, and a failed load is retried with the same results so no later
// commit can skip past them. Returns the number of loaded results and false
// if the pipeline should stop.
func (p *Pipeline) processAndLoad(ctx context.Context, reqs []domain.JobRequest, backoff *time.Duration, maxBackoff time.Duration) (int, bool) {
	results := p.processor.ProcessBatch(ctx, reqs)
	if ctx.Err() != nil {
		return 0, false
	}

	records, failed := 0, 0
	for i := range results {
		if results[i].Failed() {
			failed++
			continue
		}
		records += len(results[i].Records)
	}

	for attempt := 1; ; attempt++ {
		err := p.loader.LoadBatch(ctx, results)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return 0, false
		}
		p.logger.Error("load batch failed, retrying", "error", err, "batch_size", len(results),
			"attempt", attempt, "backoff", *backoff)
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			return 0, false
		}
	}
	*backoff = 200 * time.Millisecond

	p.metrics.RecordsProduced.Add(float64(records))
	if failed > 0 {
		p.logger.Warn("batch contained failed requests", "failed", failed, "batch_size", len(reqs))
	}

	for _, req := range reqs {
		p.commitOffset(ctx, req)
	}

	return len(results), true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, req domain.JobRequest) {
	if req.Commit == nil {
		return
	}
	if err := req.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err, "request_id", req.RequestID,
			"topic", req.Topic, "partition", req.Partition, "offset", req.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
