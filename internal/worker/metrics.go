package worker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName     = "github.com/GoSecreto/UniMem/worker"
	latencyWindow = 1000
)

// Metrics records worker activity twice: through the OpenTelemetry meter for
// whatever provider the process installs, and in atomic counters that back
// /api/status.
type Metrics struct {
	startTime time.Time

	hooksCounter        metric.Int64Counter
	observationsCounter metric.Int64Counter
	handoffsCounter     metric.Int64Counter
	summariesCounter    metric.Int64Counter
	searchesCounter     metric.Int64Counter
	hookDuration        metric.Float64Histogram

	recentLatencies []time.Duration
	latenciesMu     sync.Mutex

	hooksReceived     atomic.Int64
	hookErrors        atomic.Int64
	observationsSaved atomic.Int64
	promptsSaved      atomic.Int64
	handoffsCreated   atomic.Int64
	handoffsPickedUp  atomic.Int64
	summariesSaved    atomic.Int64
	searches          atomic.Int64
	contextFiles      atomic.Int64
}

// NewMetrics creates the instruments on the global meter provider.
func NewMetrics() *Metrics {
	return NewMetricsWithMeter(otel.Meter(meterName))
}

// NewMetricsWithMeter creates the instruments on meter.
func NewMetricsWithMeter(meter metric.Meter) *Metrics {
	m := &Metrics{
		startTime:       time.Now(),
		recentLatencies: make([]time.Duration, 0, latencyWindow),
	}

	var err error
	if m.hooksCounter, err = meter.Int64Counter("unimem.hooks.received",
		metric.WithDescription("Hook events received by the worker")); err != nil {
		log.Warn().Err(err).Msg("Failed to create hooks counter")
	}
	if m.observationsCounter, err = meter.Int64Counter("unimem.observations.saved",
		metric.WithDescription("Observations stored")); err != nil {
		log.Warn().Err(err).Msg("Failed to create observations counter")
	}
	if m.handoffsCounter, err = meter.Int64Counter("unimem.handoffs.created",
		metric.WithDescription("Handoffs created")); err != nil {
		log.Warn().Err(err).Msg("Failed to create handoffs counter")
	}
	if m.summariesCounter, err = meter.Int64Counter("unimem.summaries.saved",
		metric.WithDescription("Rolling summaries upserted")); err != nil {
		log.Warn().Err(err).Msg("Failed to create summaries counter")
	}
	if m.searchesCounter, err = meter.Int64Counter("unimem.searches",
		metric.WithDescription("Search requests served")); err != nil {
		log.Warn().Err(err).Msg("Failed to create searches counter")
	}
	if m.hookDuration, err = meter.Float64Histogram("unimem.hook.duration",
		metric.WithDescription("Hook handling latency"), metric.WithUnit("ms")); err != nil {
		log.Warn().Err(err).Msg("Failed to create hook duration histogram")
	}
	return m
}

// RecordHook records one handled hook event.
func (m *Metrics) RecordHook(ctx context.Context, hookType string, d time.Duration, failed bool) {
	m.hooksReceived.Add(1)
	if failed {
		m.hookErrors.Add(1)
	}
	attrs := metric.WithAttributes(attribute.String("hook", hookType), attribute.Bool("error", failed))
	if m.hooksCounter != nil {
		m.hooksCounter.Add(ctx, 1, attrs)
	}
	if m.hookDuration != nil {
		m.hookDuration.Record(ctx, float64(d.Microseconds())/1000, attrs)
	}

	m.latenciesMu.Lock()
	m.recentLatencies = append(m.recentLatencies, d)
	if len(m.recentLatencies) > latencyWindow {
		m.recentLatencies = m.recentLatencies[len(m.recentLatencies)-latencyWindow:]
	}
	m.latenciesMu.Unlock()
}

// RecordObservation records a stored observation.
func (m *Metrics) RecordObservation(ctx context.Context, cli string) {
	m.observationsSaved.Add(1)
	if m.observationsCounter != nil {
		m.observationsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("cli", cli)))
	}
}

// RecordPrompt records a stored user prompt.
func (m *Metrics) RecordPrompt() {
	m.promptsSaved.Add(1)
}

// RecordHandoff records a created handoff.
func (m *Metrics) RecordHandoff(ctx context.Context, reason string) {
	m.handoffsCreated.Add(1)
	if m.handoffsCounter != nil {
		m.handoffsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	}
}

// RecordPickup records a consumed handoff.
func (m *Metrics) RecordPickup() {
	m.handoffsPickedUp.Add(1)
}

// RecordSummary records an upserted rolling summary.
func (m *Metrics) RecordSummary(ctx context.Context) {
	m.summariesSaved.Add(1)
	if m.summariesCounter != nil {
		m.summariesCounter.Add(ctx, 1)
	}
}

// RecordSearch records a served search.
func (m *Metrics) RecordSearch(ctx context.Context) {
	m.searches.Add(1)
	if m.searchesCounter != nil {
		m.searchesCounter.Add(ctx, 1)
	}
}

// RecordContextFile records a written context file.
func (m *Metrics) RecordContextFile() {
	m.contextFiles.Add(1)
}

// Stats is a point-in-time copy of the counters.
type Stats struct {
	Uptime            string  `json:"uptime"`
	HooksReceived     int64   `json:"hooks_received"`
	HookErrors        int64   `json:"hook_errors"`
	ObservationsSaved int64   `json:"observations_saved"`
	PromptsSaved      int64   `json:"prompts_saved"`
	HandoffsCreated   int64   `json:"handoffs_created"`
	HandoffsPickedUp  int64   `json:"handoffs_picked_up"`
	SummariesSaved    int64   `json:"summaries_saved"`
	Searches          int64   `json:"searches"`
	ContextFiles      int64   `json:"context_files_written"`
	HookP50Ms         float64 `json:"hook_p50_ms"`
	HookP95Ms         float64 `json:"hook_p95_ms"`
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() Stats {
	p50, p95 := m.percentiles()
	return Stats{
		Uptime:            time.Since(m.startTime).Round(time.Second).String(),
		HooksReceived:     m.hooksReceived.Load(),
		HookErrors:        m.hookErrors.Load(),
		ObservationsSaved: m.observationsSaved.Load(),
		PromptsSaved:      m.promptsSaved.Load(),
		HandoffsCreated:   m.handoffsCreated.Load(),
		HandoffsPickedUp:  m.handoffsPickedUp.Load(),
		SummariesSaved:    m.summariesSaved.Load(),
		Searches:          m.searches.Load(),
		ContextFiles:      m.contextFiles.Load(),
		HookP50Ms:         p50,
		HookP95Ms:         p95,
	}
}

func (m *Metrics) percentiles() (p50, p95 float64) {
	m.latenciesMu.Lock()
	sorted := append([]time.Duration(nil), m.recentLatencies...)
	m.latenciesMu.Unlock()

	if len(sorted) == 0 {
		return 0, 0
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	at := func(q float64) float64 {
		idx := int(q * float64(len(sorted)-1))
		return float64(sorted[idx].Microseconds()) / 1000
	}
	return at(0.50), at(0.95)
}
