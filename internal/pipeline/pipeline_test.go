package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/batch-geocoder-service/internal/adapter/dummy"
	"github.com/couchcryptid/batch-geocoder-service/internal/domain"
	"github.com/couchcryptid/batch-geocoder-service/internal/observability"
	"github.com/couchcryptid/batch-geocoder-service/internal/pipeline"
	"github.com/couchcryptid/batch-geocoder-service/internal/reproject"
)

// --- mocks ---

type mockExtractor struct {
	batches [][]domain.JobRequest
	errs    []error // returned alongside the batch at the same index
	index   atomic.Int64
	err     error
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, _ int) ([]domain.JobRequest, error) {
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Add(1) - 1)
	if i >= len(m.batches) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	return m.batches[i], err
}

type mockProcessor struct {
	fail map[string]error
}

func (m *mockProcessor) ProcessBatch(_ context.Context, reqs []domain.JobRequest) []domain.JobResult {
	out := make([]domain.JobResult, len(reqs))
	for i, req := range reqs {
		out[i] = domain.JobResult{RequestID: req.RequestID}
		if err, ok := m.fail[req.RequestID]; ok {
			out[i].Err = err
			continue
		}
		out[i].Records = []domain.Record{{YourID: req.RequestID}}
	}
	return out
}

type mockLoader struct {
	mu       sync.Mutex
	loaded   []domain.JobResult
	attempts [][]domain.JobResult
	failures int // calls that fail with err before loads succeed
	err      error
}

func (m *mockLoader) LoadBatch(_ context.Context, results []domain.JobResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, results)
	if m.failures > 0 {
		m.failures--
		return m.err
	}
	m.loaded = append(m.loaded, results...)
	return nil
}

func committing(id string, mu *sync.Mutex, committed *[]string) domain.JobRequest {
	r := request(id, nil)
	r.Commit = func(_ context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		*committed = append(*committed, id)
		return nil
	}
	return r
}

type mockGeocoder struct {
	calls atomic.Int64
	err   error
}

func (m *mockGeocoder) Geocode(_ context.Context, q domain.Query) (domain.SearchResults, error) {
	m.calls.Add(1)
	if m.err != nil {
		return domain.SearchResults{}, m.err
	}
	return dummy.Results(q), nil
}

func (m *mockGeocoder) EngineConfig() domain.EngineConfig { return domain.DefaultEngineConfig() }

func (m *mockGeocoder) PresentationConfig() *domain.PresentationConfig { return nil }

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func newProcessor(g domain.Geocoder, remote bool) *pipeline.Processor {
	return pipeline.NewProcessor(g, reproject.New(), remote, 4, newTestMetrics(), slog.Default())
}

func request(id string, params map[string]any) domain.JobRequest {
	return domain.JobRequest{RequestID: id, Parameters: params}
}

// --- Pipeline tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	commits := atomic.Int64{}
	req := request("req-1", nil)
	req.Commit = func(_ context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.JobRequest{{req}}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockProcessor{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 1)
	assert.Equal(t, "req-1", ldr.loaded[0].RequestID)
	assert.Equal(t, int64(1), commits.Load())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{} // no requests, will block
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockProcessor{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_FailedRequestsLoadedAndCommitted(t *testing.T) {
	var committed []string
	var mu sync.Mutex

	ext := &mockExtractor{batches: [][]domain.JobRequest{{
		committing("ok", &mu, &committed), committing("bad", &mu, &committed),
	}}}
	proc := &mockProcessor{fail: map[string]error{
		"bad": domain.ConsistencyError("parcelPoint", "required when extrapolate is true"),
	}}
	ldr := &mockLoader{}

	p := pipeline.New(ext, proc, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 2)
	assert.False(t, ldr.loaded[0].Failed())
	assert.True(t, ldr.loaded[1].Failed())
	if diff := cmp.Diff([]string{"ok", "bad"}, committed); diff != "" {
		t.Fatalf("committed mismatch (-want +got):\n%s", diff)
	}
}

func TestPipeline_Run_LoadErrorRetriesSameResults(t *testing.T) {
	var committed []string
	var mu sync.Mutex

	ext := &mockExtractor{batches: [][]domain.JobRequest{
		{committing("a-1", &mu, &committed), committing("a-2", &mu, &committed)},
		{committing("b-1", &mu, &committed)},
	}}
	ldr := &mockLoader{failures: 2, err: errors.New("broker unavailable")}

	p := pipeline.New(ext, &mockProcessor{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, p.Run(ctx))

	// Two failed attempts and the successful retry all carry batch A; B
	// is only extracted afterwards.
	require.Len(t, ldr.attempts, 4)
	for _, attempt := range ldr.attempts[1:3] {
		if diff := cmp.Diff(ldr.attempts[0], attempt, cmpopts.EquateErrors()); diff != "" {
			t.Fatalf("retry carried different results (-first +retry):\n%s", diff)
		}
	}

	ids := make([]string, 0, len(ldr.loaded))
	for _, res := range ldr.loaded {
		ids = append(ids, res.RequestID)
	}
	assert.Equal(t, []string{"a-1", "a-2", "b-1"}, ids)
	assert.Equal(t, []string{"a-1", "a-2", "b-1"}, committed)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_LoadErrorStopsWithoutCommitOnShutdown(t *testing.T) {
	commitCalled := atomic.Bool{}
	req := request("req-1", nil)
	req.Commit = func(_ context.Context) error {
		commitCalled.Store(true)
		return nil
	}

	ext := &mockExtractor{batches: [][]domain.JobRequest{{req}}}
	ldr := &mockLoader{failures: 1 << 30, err: errors.New("broker unavailable")}

	p := pipeline.New(ext, &mockProcessor{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.False(t, commitCalled.Load())
	assert.Empty(t, ldr.loaded)
	assert.GreaterOrEqual(t, len(ldr.attempts), 2, "load should be retried")
	assert.Equal(t, int64(1), ext.index.Load(), "no batch extracted past the unloaded one")
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_PartialBatchProcessedBeforeBackoff(t *testing.T) {
	var committed []string
	var mu sync.Mutex

	ext := &mockExtractor{
		batches: [][]domain.JobRequest{{committing("p-1", &mu, &committed), committing("p-2", &mu, &committed)}},
		errs:    []error{errors.New("fetch message: connection reset")},
	}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockProcessor{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 2)
	assert.Equal(t, []string{"p-1", "p-2"}, committed)
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("connection refused")}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockProcessor{}, ldr, slog.Default(), newTestMetrics(), 10)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

// --- Processor tests ---

func TestProcessor_Process_DryRun(t *testing.T) {
	g := &mockGeocoder{}
	proc := newProcessor(g, true)

	req := request("req-1", map[string]any{"addressString": "1207 Douglas St, Victoria", "yourId": "row-1"})
	req.DryRun = true

	res := proc.Process(context.Background(), req)

	require.NoError(t, res.Err)
	assert.Equal(t, "req-1", res.RequestID)
	require.NotEmpty(t, res.Records)
	assert.Equal(t, "row-1", res.Records[0].YourID)
	assert.Len(t, res.Customizations, len(res.Records))
	assert.Equal(t, true, res.Properties["kmlWriteNulls"])
	assert.Zero(t, g.calls.Load(), "dry run must not reach the geocoder")
}

func TestProcessor_Process_RemoteDisabledForcesDryRun(t *testing.T) {
	g := &mockGeocoder{}
	proc := newProcessor(g, false)

	res := proc.Process(context.Background(), request("req-1", map[string]any{"addressString": "1207 Douglas"}))

	require.NoError(t, res.Err)
	assert.NotEmpty(t, res.Records)
	assert.Zero(t, g.calls.Load())
}

func TestProcessor_Process_Execute(t *testing.T) {
	g := &mockGeocoder{}
	proc := newProcessor(g, true)

	res := proc.Process(context.Background(), request("req-1", map[string]any{"addressString": "1207 Douglas"}))

	require.NoError(t, res.Err)
	assert.NotEmpty(t, res.Records)
	assert.Equal(t, int64(1), g.calls.Load())
}

func TestProcessor_Process_Failures(t *testing.T) {
	tests := []struct {
		name  string
		req   domain.JobRequest
		label string
	}{
		{
			name:  "decode error",
			req:   domain.JobRequest{RequestID: "r", DecodeErr: domain.ParamError("", "malformed request message", errors.New("eof"))},
			label: "parameter",
		},
		{
			name:  "malformed value",
			req:   request("r", map[string]any{"maxResults": "many"}),
			label: "parameter",
		},
		{
			name:  "out of range",
			req:   request("r", map[string]any{"maxResults": json.Number("5000")}),
			label: "parameter",
		},
		{
			name:  "extrapolate without parcel point",
			req:   request("r", map[string]any{"addressString": "1207 Douglas", "extrapolate": true}),
			label: "consistency",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := &mockGeocoder{}
			res := newProcessor(g, true).Process(context.Background(), tc.req)

			require.Error(t, res.Err)
			assert.Equal(t, tc.label, domain.ErrorLabel(res.Err))
			assert.Empty(t, res.Records)
			assert.Zero(t, g.calls.Load())
		})
	}
}

func TestProcessor_Process_GeocoderError(t *testing.T) {
	g := &mockGeocoder{err: errors.New("upstream 503")}
	res := newProcessor(g, true).Process(context.Background(), request("r", map[string]any{"addressString": "x"}))

	require.Error(t, res.Err)
	assert.Equal(t, "geocoder", domain.ErrorLabel(res.Err))
}

func TestProcessor_Process_ObservesDurationForEveryOutcome(t *testing.T) {
	metrics := newTestMetrics()
	proc := pipeline.NewProcessor(&mockGeocoder{}, reproject.New(), true, 1, metrics, slog.Default())
	ctx := context.Background()

	proc.Process(ctx, request("ok", map[string]any{"addressString": "1207 Douglas"}))
	proc.Process(ctx, request("malformed", map[string]any{"maxResults": "many"}))
	proc.Process(ctx, request("inconsistent", map[string]any{"extrapolate": true}))
	proc.Process(ctx, domain.JobRequest{RequestID: "poison", DecodeErr: domain.ParamError("", "malformed request message", nil)})

	var m dto.Metric
	require.NoError(t, metrics.RequestDuration.Write(&m))
	assert.Equal(t, uint64(4), m.GetHistogram().GetSampleCount())
}

func TestProcessor_ProcessBatch_PreservesOrder(t *testing.T) {
	proc := newProcessor(&mockGeocoder{}, true)

	reqs := make([]domain.JobRequest, 20)
	for i := range reqs {
		reqs[i] = request(string(rune('a'+i)), map[string]any{"addressString": "1207 Douglas"})
	}
	reqs[7].Parameters = map[string]any{"maxResults": json.Number("0")}

	results := proc.ProcessBatch(context.Background(), reqs)

	require.Len(t, results, len(reqs))
	for i := range reqs {
		assert.Equal(t, reqs[i].RequestID, results[i].RequestID)
	}
	assert.True(t, results[7].Failed())
	assert.False(t, results[8].Failed())
}
