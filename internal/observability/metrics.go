package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/noisemap/core"
)

// PropagationCollector bundles Prometheus metrics for propagation runs. It
// implements core.MetricsRecorder.
type PropagationCollector struct {
	gatherer prometheus.Gatherer

	ReceiversEvaluated   prometheus.Counter
	ReceiverFailures     prometheus.Counter
	ReceiverDuration     prometheus.Histogram
	FreeFieldTests       prometheus.Counter
	MemoizedTests        prometheus.Counter
	SourceSamples        prometheus.Counter
	MirrorImages         prometheus.Counter
	ReflectionCandidates prometheus.Counter
	ReflectionPaths      prometheus.Counter

	SceneSources   prometheus.Gauge
	SceneWalls     prometheus.Gauge
	SceneReceivers prometheus.Gauge
}

// NewPropagationCollector registers propagation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewPropagationCollector(reg prometheus.Registerer) (*PropagationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &PropagationCollector{gatherer: gatherer}
	counters := []struct {
		dst  *prometheus.Counter
		name string
		help string
	}{
		{&c.ReceiversEvaluated, "noisemap_receivers_evaluated_total", "Receivers whose level was computed."},
		{&c.ReceiverFailures, "noisemap_receiver_failures_total", "Receivers aborted by a visibility oracle failure."},
		{&c.FreeFieldTests, "noisemap_free_field_tests_total", "Line-of-sight tests sent to the visibility oracle."},
		{&c.MemoizedTests, "noisemap_memoized_free_field_tests_total", "Line-of-sight results reused from the preceding identical sample."},
		{&c.SourceSamples, "noisemap_source_samples_total", "Source sample points within range of a receiver."},
		{&c.MirrorImages, "noisemap_mirror_images_total", "Mirror receiver images generated."},
		{&c.ReflectionCandidates, "noisemap_reflection_candidates_total", "Reflection paths submitted to validation."},
		{&c.ReflectionPaths, "noisemap_reflection_paths_total", "Reflection paths found valid."},
	}
	for _, def := range counters {
		counter, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: def.name,
			Help: def.help,
		}), def.name)
		if err != nil {
			return nil, err
		}
		*def.dst = counter
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "noisemap_receiver_duration_seconds",
		Help:    "Time spent evaluating a single receiver.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}), "noisemap_receiver_duration_seconds")
	if err != nil {
		return nil, err
	}
	c.ReceiverDuration = duration

	gauges := []struct {
		dst  *prometheus.Gauge
		name string
		help string
	}{
		{&c.SceneSources, "noisemap_scene_sources", "Sources in the scene being evaluated."},
		{&c.SceneWalls, "noisemap_scene_walls", "Walls in the scene being evaluated."},
		{&c.SceneReceivers, "noisemap_scene_receivers", "Receivers in the scene being evaluated."},
	}
	for _, def := range gauges {
		gauge, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: def.name,
			Help: def.help,
		}), def.name)
		if err != nil {
			return nil, err
		}
		*def.dst = gauge
	}
	return c, nil
}

// ObserveReceiver records the work done for one receiver.
func (c *PropagationCollector) ObserveReceiver(stats core.ReceiverStats, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.ReceiversEvaluated.Inc()
	c.ReceiverDuration.Observe(elapsed.Seconds())
	c.FreeFieldTests.Add(float64(stats.FreeFieldTests))
	c.MemoizedTests.Add(float64(stats.MemoizedTests))
	c.SourceSamples.Add(float64(stats.SourceSamples))
	c.MirrorImages.Add(float64(stats.MirrorImages))
	c.ReflectionCandidates.Add(float64(stats.ReflectionCandidates))
	c.ReflectionPaths.Add(float64(stats.ReflectionPaths))
}

// IncReceiverFailures counts a receiver aborted by an oracle failure.
func (c *PropagationCollector) IncReceiverFailures() {
	if c == nil {
		return
	}
	c.ReceiverFailures.Inc()
}

// SetSceneCounts publishes the size of the scene being evaluated.
func (c *PropagationCollector) SetSceneCounts(sources, walls, receivers int) {
	if c == nil {
		return
	}
	c.SceneSources.Set(float64(sources))
	c.SceneWalls.Set(float64(walls))
	c.SceneReceivers.Set(float64(receivers))
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PropagationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *PropagationCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
