package domain

import "time"

// Trend is the direction a metric is moving.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDegrading Trend = "degrading"
)

// AvailabilityMetrics holds current vs. target availability, in percent.
type AvailabilityMetrics struct {
	Current float64 `json:"current"`
	Target  float64 `json:"target"`
	Trend   Trend   `json:"trend"`
}

// PerformanceMetrics holds latency and error figures.
type PerformanceMetrics struct {
	LatencyMs  float64 `json:"latency_ms"`
	Throughput float64 `json:"throughput"`
	ErrorRate  float64 `json:"error_rate"` // percent
	Trend      Trend   `json:"trend"`
}

// ReliabilityMetrics holds mean-time figures.
type ReliabilityMetrics struct {
	MTBF        time.Duration `json:"mtbf"`
	MTTR        time.Duration `json:"mttr"`
	FailureRate float64       `json:"failure_rate"`
}

// CapacityMetric is one resource's utilization and growth.
type CapacityMetric struct {
	Used          float64 `json:"used"`            // percent
	GrowthPerHour float64 `json:"growth_per_hour"` // percentage points per hour
}

// CapacityMetrics groups the tracked resources.
type CapacityMetrics struct {
	CPU     CapacityMetric `json:"cpu"`
	Memory  CapacityMetric `json:"memory"`
	Storage CapacityMetric `json:"storage"`
	Network CapacityMetric `json:"network"`
}

// Resources returns the capacity metrics keyed by resource name, in a
// stable order.
func (c CapacityMetrics) Resources() []NamedCapacity {
	return []NamedCapacity{
		{Name: "cpu", Metric: c.CPU},
		{Name: "memory", Metric: c.Memory},
		{Name: "storage", Metric: c.Storage},
		{Name: "network", Metric: c.Network},
	}
}

// NamedCapacity pairs a resource name with its metric.
type NamedCapacity struct {
	Name   string
	Metric CapacityMetric
}

// SystemMetrics is a point-in-time snapshot of platform health signals.
// It holds only value fields so copies never alias.
type SystemMetrics struct {
	CollectedAt  time.Time           `json:"collected_at"`
	Availability AvailabilityMetrics `json:"availability"`
	Performance  PerformanceMetrics  `json:"performance"`
	Reliability  ReliabilityMetrics  `json:"reliability"`
	Capacity     CapacityMetrics     `json:"capacity"`
}
