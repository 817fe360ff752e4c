package helper

import (
	"context"
	"maps"
	"sync"
	"time"
)

// MetricsCollectorSpy is a MetricsCollector implementation that captures metrics calls for testing.
type MetricsCollectorSpy struct {
	durationRecords []SpyDurationRecord
	counterRecords  []SpyCounterRecord
	valueRecords    []SpyValueRecord
	contextCalls    int
	mu              sync.Mutex
}

// SpyDurationRecord represents a recorded duration metric call.
type SpyDurationRecord struct {
	Metric   string
	Duration time.Duration
	Labels   map[string]string
}

// SpyCounterRecord represents a recorded counter increment call.
type SpyCounterRecord struct {
	Metric string
	Labels map[string]string
}

// SpyValueRecord represents a recorded value metric call.
type SpyValueRecord struct {
	Metric string
	Value  float64
	Labels map[string]string
}

// NewMetricsCollectorSpy creates a new MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{}
}

// RecordDuration implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.durationRecords = append(s.durationRecords, SpyDurationRecord{Metric: metric, Duration: duration, Labels: maps.Clone(labels)})
}

// IncrementCounter implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) IncrementCounter(metric string, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counterRecords = append(s.counterRecords, SpyCounterRecord{Metric: metric, Labels: maps.Clone(labels)})
}

// RecordValue implements the MetricsCollector interface.
func (s *MetricsCollectorSpy) RecordValue(metric string, value float64, labels map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.valueRecords = append(s.valueRecords, SpyValueRecord{Metric: metric, Value: value, Labels: maps.Clone(labels)})
}

// GetDurationRecords returns a copy of all captured duration records.
func (s *MetricsCollectorSpy) GetDurationRecords() []SpyDurationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyDurationRecord(nil), s.durationRecords...)
}

// GetCounterRecords returns a copy of all captured counter records.
func (s *MetricsCollectorSpy) GetCounterRecords() []SpyCounterRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyCounterRecord(nil), s.counterRecords...)
}

// GetValueRecords returns a copy of all captured value records.
func (s *MetricsCollectorSpy) GetValueRecords() []SpyValueRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyValueRecord(nil), s.valueRecords...)
}

// ContextCalls returns how many calls went through the context-aware methods.
func (s *MetricsCollectorSpy) ContextCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.contextCalls
}

// MetricRecordMatcher provides a fluent interface for checking metric records.
type MetricRecordMatcher struct {
	labels map[string]string
	value  float64
	found  bool
}

// HasDurationRecordForMetric starts a fluent chain to check a duration record.
func (s *MetricsCollectorSpy) HasDurationRecordForMetric(metric string) *MetricRecordMatcher {
	for _, record := range s.GetDurationRecords() {
		if record.Metric == metric {
			return &MetricRecordMatcher{labels: record.Labels, value: record.Duration.Seconds(), found: true}
		}
	}

	return &MetricRecordMatcher{}
}

// HasCounterRecordForMetric starts a fluent chain to check a counter record.
func (s *MetricsCollectorSpy) HasCounterRecordForMetric(metric string) *MetricRecordMatcher {
	for _, record := range s.GetCounterRecords() {
		if record.Metric == metric {
			return &MetricRecordMatcher{labels: record.Labels, value: 1, found: true}
		}
	}

	return &MetricRecordMatcher{}
}

// HasValueRecordForMetric starts a fluent chain to check a value record.
func (s *MetricsCollectorSpy) HasValueRecordForMetric(metric string) *MetricRecordMatcher {
	for _, record := range s.GetValueRecords() {
		if record.Metric == metric {
			return &MetricRecordMatcher{labels: record.Labels, value: record.Value, found: true}
		}
	}

	return &MetricRecordMatcher{}
}

// WithLabel checks if the record has the given label.
func (m *MetricRecordMatcher) WithLabel(key, value string) *MetricRecordMatcher {
	if m.found && m.labels[key] != value {
		m.found = false
	}

	return m
}

// WithStatus checks the status label.
func (m *MetricRecordMatcher) WithStatus(status string) *MetricRecordMatcher {
	return m.WithLabel("status", status)
}

// WithValue checks the recorded value.
func (m *MetricRecordMatcher) WithValue(value float64) *MetricRecordMatcher {
	if m.found && m.value != value {
		m.found = false
	}

	return m
}

// Assert returns true if all conditions in the fluent chain were met.
func (m *MetricRecordMatcher) Assert() bool {
	return m.found
}

// ContextualMetricsCollectorSpy additionally implements the context-aware collector methods.
type ContextualMetricsCollectorSpy struct {
	*MetricsCollectorSpy
}

// NewContextualMetricsCollectorSpy creates a new ContextualMetricsCollectorSpy.
func NewContextualMetricsCollectorSpy() *ContextualMetricsCollectorSpy {
	return &ContextualMetricsCollectorSpy{MetricsCollectorSpy: NewMetricsCollectorSpy()}
}

// RecordDurationContext implements the ContextualMetricsCollector interface.
func (s *ContextualMetricsCollectorSpy) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	s.countContextCall()
	s.RecordDuration(metric, duration, labels)
}

// IncrementCounterContext implements the ContextualMetricsCollector interface.
func (s *ContextualMetricsCollectorSpy) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	s.countContextCall()
	s.IncrementCounter(metric, labels)
}

// RecordValueContext implements the ContextualMetricsCollector interface.
func (s *ContextualMetricsCollectorSpy) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	s.countContextCall()
	s.RecordValue(metric, value, labels)
}

func (s *ContextualMetricsCollectorSpy) countContextCall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextCalls++
}
