// internal/utils/metrics.go
package utils

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Corphon/ViralGen/internal/models"
)

// MetricsCollector collects application metrics
type MetricsCollector struct {
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram

	mu sync.RWMutex
}

// Counter metric
type Counter struct {
	name  string
	value int64 // atomic
}

// Gauge metric
type Gauge struct {
	name  string
	value int64 // atomic
}

// Histogram metric (count, sum, min, max)
type Histogram struct {
	name  string
	count int64
	sum   int64
	min   int64
	max   int64
	mu    sync.Mutex
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// NewMetricsCollector creates an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// GetMetricsCollector returns the process-wide collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector()
	})
	return globalMetrics
}

func (m *MetricsCollector) counter(name string) *Counter {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()
	if exists {
		return counter
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// Double-check after acquiring write lock
	if counter, exists = m.counters[name]; !exists {
		counter = &Counter{name: name}
		m.counters[name] = counter
	}
	return counter
}

func (m *MetricsCollector) gauge(name string) *Gauge {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()
	if exists {
		return gauge
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gauge, exists = m.gauges[name]; !exists {
		gauge = &Gauge{name: name}
		m.gauges[name] = gauge
	}
	return gauge
}

// IncrementCounter increments a counter metric
func (m *MetricsCollector) IncrementCounter(name string) {
	atomic.AddInt64(&m.counter(name).value, 1)
}

// AddCounter adds a value to a counter metric
func (m *MetricsCollector) AddCounter(name string, value int64) {
	atomic.AddInt64(&m.counter(name).value, value)
}

// GetCounterValue gets the current value of a counter
func (m *MetricsCollector) GetCounterValue(name string) int64 {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}
	return atomic.LoadInt64(&counter.value)
}

// IncGauge increments a gauge metric
func (m *MetricsCollector) IncGauge(name string) {
	atomic.AddInt64(&m.gauge(name).value, 1)
}

// DecGauge decrements a gauge metric
func (m *MetricsCollector) DecGauge(name string) {
	atomic.AddInt64(&m.gauge(name).value, -1)
}

// GetGauge gets the current value of a gauge
func (m *MetricsCollector) GetGauge(name string) int64 {
	m.mu.RLock()
	gauge, exists := m.gauges[name]
	m.mu.RUnlock()

	if !exists {
		return 0
	}
	return atomic.LoadInt64(&gauge.value)
}

// RecordHistogram records a value in a histogram
func (m *MetricsCollector) RecordHistogram(name string, value int64) {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		histogram, exists = m.histograms[name]
		if !exists {
			histogram = &Histogram{name: name, min: value, max: value}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.mu.Lock()
	defer histogram.mu.Unlock()

	histogram.count++
	histogram.sum += value
	if value < histogram.min {
		histogram.min = value
	}
	if value > histogram.max {
		histogram.max = value
	}
}

// GetMetrics returns a snapshot of all metrics
func (m *MetricsCollector) GetMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]int64, len(m.counters))
	for name, counter := range m.counters {
		counters[name] = atomic.LoadInt64(&counter.value)
	}

	gauges := make(map[string]int64, len(m.gauges))
	for name, gauge := range m.gauges {
		gauges[name] = atomic.LoadInt64(&gauge.value)
	}

	histograms := make(map[string]map[string]int64, len(m.histograms))
	for name, histogram := range m.histograms {
		histogram.mu.Lock()
		histograms[name] = map[string]int64{
			"count": histogram.count,
			"sum":   histogram.sum,
			"min":   histogram.min,
			"max":   histogram.max,
		}
		histogram.mu.Unlock()
	}

	return map[string]interface{}{
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

// GenerationMetrics records pipeline-level metrics
type GenerationMetrics struct {
	metrics *MetricsCollector
	logger  *Logger
}

// NewGenerationMetrics creates a metrics recorder; nil arguments fall back to the globals
func NewGenerationMetrics(metrics *MetricsCollector, logger *Logger) *GenerationMetrics {
	if metrics == nil {
		metrics = GetMetricsCollector()
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &GenerationMetrics{metrics: metrics, logger: logger}
}

// Collector returns the underlying collector
func (gm *GenerationMetrics) Collector() *MetricsCollector {
	return gm.metrics
}

// StartGeneration marks a generation as in flight; call the returned func when done
func (gm *GenerationMetrics) StartGeneration() func() {
	gm.metrics.IncGauge("generations_in_flight")
	return func() { gm.metrics.DecGauge("generations_in_flight") }
}

// RecordLLMRequest records one successful call to the provider
func (gm *GenerationMetrics) RecordLLMRequest(provider, model string, tokensUsed int, duration time.Duration) {
	gm.metrics.IncrementCounter("llm_requests_total")
	gm.metrics.IncrementCounter("llm_requests_" + provider)
	gm.metrics.AddCounter("llm_tokens_total", int64(tokensUsed))
	gm.metrics.RecordHistogram("llm_response_time_ms", duration.Milliseconds())

	gm.logger.Info("LLM request completed", map[string]interface{}{
		"provider": provider,
		"model":    model,
		"tokens":   tokensUsed,
		"duration": duration.Milliseconds(),
	})
}

// RecordTransportFailure records a failed provider call
func (gm *GenerationMetrics) RecordTransportFailure(provider, model string, terr *models.TransportError) {
	gm.metrics.IncrementCounter("llm_failures_total")
	gm.metrics.IncrementCounter("llm_failures_" + string(terr.Kind))
	if terr.StatusCode > 0 {
		gm.metrics.IncrementCounter("llm_failures_status_" + strconv.Itoa(terr.StatusCode))
	}

	gm.logger.Warn("LLM request failed", map[string]interface{}{
		"provider": provider,
		"model":    model,
		"kind":     terr.Kind,
		"status":   terr.StatusCode,
	})
}

// RecordFallback records a switch to an alternate model identifier
func (gm *GenerationMetrics) RecordFallback(from, to string) {
	gm.metrics.IncrementCounter("llm_model_fallbacks_total")
	gm.logger.Warn("Falling back to alternate model", map[string]interface{}{
		"from": from,
		"to":   to,
	})
}

// RecordExtraction records how well the generated text followed the grammar
func (gm *GenerationMetrics) RecordExtraction(report models.ExtractionReport) {
	gm.metrics.IncrementCounter("extractions_total")
	gm.metrics.AddCounter("extraction_sentinel_fields_total", int64(len(report.SentinelFields)))
	if !report.OuterDelimiterFound {
		gm.metrics.IncrementCounter("extractions_missing_outer_delimiter")
	}
	if report.Degraded() {
		gm.metrics.IncrementCounter("extractions_degraded")
	}
	if report.Recovered {
		gm.metrics.IncrementCounter("extractions_recovered")
		gm.logger.Error("Extraction recovered from failure", map[string]interface{}{
			"failure": report.Failure,
		})
	}
}

// RecordAPIRequest records metrics for an API request
func (gm *GenerationMetrics) RecordAPIRequest(endpoint, method string, statusCode int, duration time.Duration) {
	gm.metrics.IncrementCounter("api_requests_total")
	gm.metrics.IncrementCounter("api_requests_" + method + "_" + endpoint)
	gm.metrics.RecordHistogram("api_response_time_ms", duration.Milliseconds())
	gm.metrics.IncrementCounter("api_responses_" + strconv.Itoa(statusCode/100) + "xx")

	gm.logger.Debug("API request completed", map[string]interface{}{
		"endpoint": endpoint,
		"method":   method,
		"status":   statusCode,
		"duration": duration.Milliseconds(),
	})
}
