package oteladapters_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AntonStoeckl/model-history-go/history"
	"github.com/AntonStoeckl/model-history-go/history/oteladapters"
	. "github.com/AntonStoeckl/model-history-go/testutil/helper" //nolint:revive
)

func givenManualReader() (*sdkmetric.ManualReader, metric.Meter) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	return reader, provider.Meter("history-test")
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var resourceMetrics metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &resourceMetrics))

	return resourceMetrics
}

func findMetric(t *testing.T, resourceMetrics metricdata.ResourceMetrics, name string) metricdata.Metrics {
	t.Helper()

	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return m
			}
		}
	}

	t.Fatalf("metric %s not found", name)

	return metricdata.Metrics{}
}

func hasMetric(resourceMetrics metricdata.ResourceMetrics, name string) bool {
	for _, scopeMetrics := range resourceMetrics.ScopeMetrics {
		for _, m := range scopeMetrics.Metrics {
			if m.Name == name {
				return true
			}
		}
	}

	return false
}

func Test_MetricsCollector_RecordDuration_RecordsSecondsHistogram(t *testing.T) {
	// setup
	reader, meter := givenManualReader()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	collector.RecordDuration("history_write_duration_seconds", 150*time.Millisecond, map[string]string{"model": "User", "status": "success"})

	// assert
	found := findMetric(t, collect(t, reader), "history_write_duration_seconds")
	assert.Equal(t, "s", found.Unit)

	histogram, ok := found.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(1), histogram.DataPoints[0].Count)
	assert.InDelta(t, 0.15, histogram.DataPoints[0].Sum, 0.001)

	expected := attribute.NewSet(attribute.String("model", "User"), attribute.String("status", "success"))
	assert.True(t, histogram.DataPoints[0].Attributes.Equals(&expected))
}

func Test_MetricsCollector_IncrementCounter_AddsPerLabelSet(t *testing.T) {
	// setup
	reader, meter := givenManualReader()
	collector := oteladapters.NewMetricsCollector(meter)
	ctx := context.Background()

	// act
	collector.IncrementCounter("history_write_errors_total", map[string]string{"error_type": "persist"})
	collector.IncrementCounterContext(ctx, "history_write_errors_total", map[string]string{"error_type": "persist"})
	collector.IncrementCounterContext(ctx, "history_write_errors_total", map[string]string{"error_type": "user_func"})

	// assert
	sum, ok := findMetric(t, collect(t, reader), "history_write_errors_total").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 2)

	byType := make(map[string]int64)
	for _, point := range sum.DataPoints {
		errorType, _ := point.Attributes.Value("error_type")
		byType[errorType.AsString()] = point.Value
	}
	assert.Equal(t, map[string]int64{"persist": 2, "user_func": 1}, byType)
}

func Test_MetricsCollector_RecordValue_KeepsLastValue(t *testing.T) {
	// setup
	reader, meter := givenManualReader()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	collector.RecordValue("history_write_rows", 3, nil)
	collector.RecordValueContext(context.Background(), "history_write_rows", 5, nil)

	// assert
	gauge, ok := findMetric(t, collect(t, reader), "history_write_rows").Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 5.0, gauge.DataPoints[0].Value, 0.0001)
}

// failingMeter refuses to create any instrument.
type failingMeter struct {
	metric.Meter
}

func (m failingMeter) Float64Histogram(string, ...metric.Float64HistogramOption) (metric.Float64Histogram, error) {
	return nil, errors.New("histogram creation failed")
}

func (m failingMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return nil, errors.New("counter creation failed")
}

func (m failingMeter) Float64Gauge(string, ...metric.Float64GaugeOption) (metric.Float64Gauge, error) {
	return nil, errors.New("gauge creation failed")
}

func Test_MetricsCollector_WhenInstrumentCannotBeCreated_DropsMeasurement(t *testing.T) {
	// setup
	_, meter := givenManualReader()
	collector := oteladapters.NewMetricsCollector(failingMeter{Meter: meter})
	ctx := context.Background()

	// act & assert
	assert.NotPanics(t, func() {
		collector.RecordDuration("d", time.Second, nil)
		collector.RecordDurationContext(ctx, "d", time.Second, nil)
		collector.IncrementCounter("c", nil)
		collector.IncrementCounterContext(ctx, "c", nil)
		collector.RecordValue("v", 1, nil)
		collector.RecordValueContext(ctx, "v", 1, nil)
	})
}

func Test_MetricsCollector_WhenUsedConcurrently_CountsEveryIncrement(t *testing.T) {
	// setup
	reader, meter := givenManualReader()
	collector := oteladapters.NewMetricsCollector(meter)

	// act
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.IncrementCounter("history_events_suppressed_total", map[string]string{"model": "User"})
		}()
	}
	wg.Wait()

	// assert
	sum, ok := findMetric(t, collect(t, reader), "history_events_suppressed_total").Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(20), sum.DataPoints[0].Value)
}

func Test_MetricsCollector_WhenWiredIntoTracker_RecordsHistoryWrites(t *testing.T) {
	// setup
	ctx := context.Background()
	reader, meter := givenManualReader()
	users := givenSQLiteUsers(t, CreateSQLiteEngine(t), history.WithMetrics(oteladapters.NewMetricsCollector(meter)))

	// act
	_, err := users.BulkCreate(ctx, []history.Record{{"name": "Ada"}, {"name": "Grace"}}, history.WriteOptions{})

	// assert
	require.NoError(t, err)
	resourceMetrics := collect(t, reader)

	histogram, ok := findMetric(t, resourceMetrics, "history_write_duration_seconds").Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.Equal(t, uint64(2), histogram.DataPoints[0].Count)

	eventKind, _ := histogram.DataPoints[0].Attributes.Value("event_kind")
	assert.Equal(t, "CREATED", eventKind.AsString())
	assert.True(t, hasMetric(resourceMetrics, "history_write_rows"))
	assert.False(t, hasMetric(resourceMetrics, "history_write_errors_total"))
}
