package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/shelfbalance/stock-rebalancer-go/rebalance/oteladapters"
)

func collectorForTest(t *testing.T) (*oteladapters.MetricsCollector, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return oteladapters.NewMetricsCollector(provider.Meter("test")), reader
}

func collectedMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) metricdata.Metrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name == name {
				return m
			}
		}
	}

	t.Fatalf("metric %q was not collected", name)
	return metricdata.Metrics{}
}

func Test_MetricsCollector_RecordDuration_CreatesHistogram(t *testing.T) {
	// arrange
	collector, reader := collectorForTest(t)

	// act
	collector.RecordDuration("librarystore_load_snapshot_duration_seconds",
		250*time.Millisecond, map[string]string{"status": "success"})

	// assert
	m := collectedMetric(t, reader, "librarystore_load_snapshot_duration_seconds")

	histogram, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, histogram.DataPoints, 1)
	assert.InDelta(t, 0.25, histogram.DataPoints[0].Sum, 0.001)
}

func Test_MetricsCollector_IncrementCounter_Accumulates(t *testing.T) {
	collector, reader := collectorForTest(t)

	collector.IncrementCounter("rebalance_transfers_applied_total", nil)
	collector.IncrementCounter("rebalance_transfers_applied_total", nil)
	collector.IncrementCounter("rebalance_transfers_applied_total", nil)

	m := collectedMetric(t, reader, "rebalance_transfers_applied_total")

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(3), sum.DataPoints[0].Value)
}

func Test_MetricsCollector_RecordValue_CreatesGauge(t *testing.T) {
	collector, reader := collectorForTest(t)

	collector.RecordValue("rebalance_books_moved_total", 42, nil)

	m := collectedMetric(t, reader, "rebalance_books_moved_total")

	gauge, ok := m.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.Equal(t, float64(42), gauge.DataPoints[0].Value)
}

func Test_MetricsCollector_ContextVariants_RecordAsWell(t *testing.T) {
	collector, reader := collectorForTest(t)
	ctx := context.Background()

	collector.RecordDurationContext(ctx, "duration_metric", time.Second, nil)
	collector.IncrementCounterContext(ctx, "counter_metric", map[string]string{"status": "conflict"})
	collector.RecordValueContext(ctx, "gauge_metric", 7, nil)

	collectedMetric(t, reader, "duration_metric")
	collectedMetric(t, reader, "counter_metric")
	collectedMetric(t, reader, "gauge_metric")
}

func Test_MetricsCollector_ReusesInstruments_ForSameName(t *testing.T) {
	collector, reader := collectorForTest(t)

	collector.IncrementCounter("reused_counter", nil)
	collector.IncrementCounter("reused_counter", nil)

	m := collectedMetric(t, reader, "reused_counter")

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	// a second instrument for the same name would split the data points
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
}
