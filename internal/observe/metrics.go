// Package observe provides application-wide observability primitives for
// Scannerbot: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Scannerbot metrics.
const meterName = "github.com/brvfd/scannerbot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Tuning ---

	// TuneDuration tracks how long a full tune procedure takes, including
	// all settle intervals and verify retries.
	TuneDuration metric.Float64Histogram

	// TuneRetries counts verify-retry iterations across all tunes.
	TuneRetries metric.Int64Counter

	// ModeSwitches counts demodulation mode switches.
	ModeSwitches metric.Int64Counter

	// --- Audio path ---

	// BlocksDelivered counts sample blocks delivered by the demodulation
	// chain into the sink.
	BlocksDelivered metric.Int64Counter

	// BytesBuffered tracks the number of PCM bytes currently queued in the
	// sink.
	BytesBuffered metric.Int64UpDownCounter

	// SquelchedReads counts playback reads answered with silence because
	// the squelch was closed.
	SquelchedReads metric.Int64Counter

	// ChunksServed counts playback chunks served to the voice transport.
	ChunksServed metric.Int64Counter

	// --- Transport ---

	// VoiceConnections tracks the number of live Discord voice
	// connections.
	VoiceConnections metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// tuneBuckets defines histogram bucket boundaries (in seconds) sized for
// the tune procedure: a clean run is a few hundred milliseconds, a full
// retry loop just over a second.
var tuneBuckets = []float64{
	0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 3, 5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TuneDuration, err = m.Float64Histogram("scannerbot.tune.duration",
		metric.WithDescription("Duration of a full tune procedure."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(tuneBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TuneRetries, err = m.Int64Counter("scannerbot.tune.retries",
		metric.WithDescription("Total tuner verify-retry iterations."),
	); err != nil {
		return nil, err
	}
	if met.ModeSwitches, err = m.Int64Counter("scannerbot.mode.switches",
		metric.WithDescription("Total demodulation mode switches."),
	); err != nil {
		return nil, err
	}

	if met.BlocksDelivered, err = m.Int64Counter("scannerbot.sink.blocks_delivered",
		metric.WithDescription("Sample blocks delivered into the playback sink."),
	); err != nil {
		return nil, err
	}
	if met.BytesBuffered, err = m.Int64UpDownCounter("scannerbot.sink.bytes_buffered",
		metric.WithDescription("PCM bytes currently buffered in the playback sink."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.SquelchedReads, err = m.Int64Counter("scannerbot.sink.squelched_reads",
		metric.WithDescription("Playback reads answered with silence due to closed squelch."),
	); err != nil {
		return nil, err
	}
	if met.ChunksServed, err = m.Int64Counter("scannerbot.sink.chunks_served",
		metric.WithDescription("Playback chunks served to the voice transport."),
	); err != nil {
		return nil, err
	}

	if met.VoiceConnections, err = m.Int64UpDownCounter("scannerbot.voice.connections",
		metric.WithDescription("Number of live Discord voice connections."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("scannerbot.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordTune records the duration and retry count of one completed tune
// procedure.
func (m *Metrics) RecordTune(ctx context.Context, took time.Duration, retries int) {
	m.TuneDuration.Record(ctx, took.Seconds())
	if retries > 0 {
		m.TuneRetries.Add(ctx, int64(retries))
	}
}
