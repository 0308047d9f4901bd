// Package plugin is the per-request execution entry point. A host creates one
// Plugin per request, sets its parameters, runs Execute (or TestExecute for a
// dry run), and reads the records back.
package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/batch-geocoder-service/internal/adapter/dummy"
	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/couchcryptid/batch-geocoder-service/internal/projector"
	"github.com/couchcryptid/batch-geocoder-service/internal/query"
)

// OutputSRID is the reference system of every record location.
const OutputSRID = domain.SRIDBCAlbers

type state int

const (
	attached state = iota
	detached
)

// Plugin runs a single request. It is not safe for concurrent use; instances
// share only the geocoder and reprojector passed to New.
type Plugin struct {
	geocoder    domain.Geocoder
	reprojector domain.Reprojector
	logger      *slog.Logger
	state       state

	builder        *query.Builder
	records        []domain.Record
	customizations []map[string]any
}

// New attaches a fresh request instance to geocoder.
func New(geocoder domain.Geocoder, rp domain.Reprojector, logger *slog.Logger) *Plugin {
	return &Plugin{
		geocoder:    geocoder,
		reprojector: rp,
		logger:      logger,
		builder:     query.NewBuilder(),
	}
}

// Builder exposes the request's query builder for typed parameter setting.
func (p *Plugin) Builder() *query.Builder {
	return p.builder
}

// Apply sets every supplied request parameter.
func (p *Plugin) Apply(params query.Params) error {
	return p.builder.Apply(params)
}

// Execute resolves the query, calls the geocoder once, and projects the
// matches in the order the geocoder returned them.
func (p *Plugin) Execute(ctx context.Context) error {
	if p.state == detached {
		return domain.ErrDetached
	}
	q, err := p.builder.ResolveAndValidate(p.geocoder.EngineConfig(), p.reprojector)
	if err != nil {
		return err
	}
	sr, err := p.geocoder.Geocode(ctx, q)
	if err != nil {
		return fmt.Errorf("geocode: %w", err)
	}
	p.project(sr, p.geocoder.PresentationConfig())
	p.logger.Debug("request executed", "your_id", q.YourID, "matches", len(sr.Matches),
		"execution_time_ms", sr.ExecutionTime)
	return nil
}

// TestExecute follows Execute's validation and projection but takes its
// matches from the deterministic stand-in engine.
func (p *Plugin) TestExecute(_ context.Context) error {
	if p.state == detached {
		return domain.ErrDetached
	}
	q, err := p.builder.ResolveAndValidate(p.geocoder.EngineConfig(), p.reprojector)
	if err != nil {
		return err
	}
	sr := dummy.Results(q)
	p.project(sr, nil)
	p.logger.Debug("dry run executed", "your_id", q.YourID, "matches", len(sr.Matches))
	return nil
}

func (p *Plugin) project(sr domain.SearchResults, presentation *domain.PresentationConfig) {
	pr := projector.New(OutputSRID, p.reprojector, presentation, p.logger)
	p.records = make([]domain.Record, 0, len(sr.Matches))
	p.customizations = make([]map[string]any, 0, len(sr.Matches))
	for _, m := range sr.Matches {
		p.records = append(p.records, pr.Project(m, sr))
		p.customizations = append(p.customizations, pr.Customization(m))
	}
}

// Results returns the projected records. It is empty until a successful run.
func (p *Plugin) Results() []domain.Record {
	return p.records
}

// Customizations returns the per-record presentation hints, index-aligned
// with Results.
func (p *Plugin) Customizations() []map[string]any {
	return p.customizations
}

// CustomizationProperties are the plugin-level serializer hints.
func (p *Plugin) CustomizationProperties() map[string]any {
	return map[string]any{"kmlWriteNulls": true}
}

// Detach releases the geocoder. The instance cannot run again.
func (p *Plugin) Detach() {
	p.geocoder = nil
	p.state = detached
}

// Detached reports whether Detach has been called.
func (p *Plugin) Detached() bool {
	return p.state == detached
}
