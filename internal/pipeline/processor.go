package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/couchcryptid/batch-geocoder-service/internal/observability"
	"github.com/couchcryptid/batch-geocoder-service/internal/plugin"
	"github.com/couchcryptid/batch-geocoder-service/internal/query"
)

// Processor runs geocoding requests, one plugin instance per request. It is
// safe for concurrent use; the geocoder and reprojector are shared.
type Processor struct {
	geocoder    domain.Geocoder
	reprojector domain.Reprojector
	remote      bool
	concurrency int
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewProcessor creates a Processor. When remote is false every request runs
// as a dry run regardless of its own flag.
func NewProcessor(geocoder domain.Geocoder, rp domain.Reprojector, remote bool, concurrency int,
	metrics *observability.Metrics, logger *slog.Logger) *Processor {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Processor{
		geocoder:    geocoder,
		reprojector: rp,
		remote:      remote,
		concurrency: concurrency,
		metrics:     metrics,
		logger:      logger,
	}
}

// Process runs a single request to completion. Failures are reported in the
// result rather than returned.
func (p *Processor) Process(ctx context.Context, req domain.JobRequest) domain.JobResult {
	start := time.Now()
	defer func() { p.metrics.RequestDuration.Observe(time.Since(start).Seconds()) }()
	logger := p.logger.With("request_id", req.RequestID)
	res := domain.JobResult{RequestID: req.RequestID}

	if req.DecodeErr != nil {
		res.Err = req.DecodeErr
		p.recordFailure(logger, res.Err)
		return res
	}

	params, err := query.ParamsFromMap(req.Parameters)
	if err != nil {
		res.Err = err
		p.recordFailure(logger, err)
		return res
	}

	pl := plugin.New(p.geocoder, p.reprojector, logger)
	defer pl.Detach()

	if err := pl.Apply(params); err != nil {
		res.Err = err
		p.recordFailure(logger, err)
		return res
	}

	if req.DryRun || !p.remote {
		err = pl.TestExecute(ctx)
	} else {
		err = pl.Execute(ctx)
	}
	if err != nil {
		res.Err = err
		p.recordFailure(logger, err)
		return res
	}

	res.Records = pl.Results()
	res.Customizations = pl.Customizations()
	res.Properties = pl.CustomizationProperties()

	p.metrics.MatchesPerRequest.Observe(float64(len(res.Records)))
	logger.Debug("request processed", "records", len(res.Records), "dry_run", req.DryRun || !p.remote)
	return res
}

// ProcessBatch runs every request with bounded concurrency. Results are
// index-aligned with reqs.
func (p *Processor) ProcessBatch(ctx context.Context, reqs []domain.JobRequest) []domain.JobResult {
	results := make([]domain.JobResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range reqs {
		g.Go(func() error {
			results[i] = p.Process(ctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Processor) recordFailure(logger *slog.Logger, err error) {
	kind := domain.ErrorLabel(err)
	p.metrics.RequestFailures.WithLabelValues(kind).Inc()
	if kind == "geocoder" {
		logger.Error("request failed", "error", err, "kind", kind)
		return
	}
	logger.Warn("request rejected", "error", err, "kind", kind)
}
