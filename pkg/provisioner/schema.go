package provisioner

import "fmt"

// The canonical table set. Every tenant database gets exactly these six
// tables; pkg/bootstrap's Source cross-link references them by name.
const (
	TableLogs             = "otel_logs"
	TableTraces           = "otel_traces"
	TableSessions         = "hyperdx_sessions"
	TableMetricsGauge     = "otel_metrics_gauge"
	TableMetricsSum       = "otel_metrics_sum"
	TableMetricsHistogram = "otel_metrics_histogram"
)

// logsTableDDL mirrors the canonical OTel-collector ClickHouse exporter
// logs schema: time-partitioned, 30-day TTL, bloom-filter indexes on the
// resource/log attribute maps, a tokenized index on body for full-text
// search.
func logsTableDDL(database string) string {
	table := fmt.Sprintf("%s.%s", quoteIdent(database), quoteIdent(TableLogs))
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Timestamp DateTime64(9) CODEC(Delta, ZSTD(1)),
	TraceId String CODEC(ZSTD(1)),
	SpanId String CODEC(ZSTD(1)),
	SeverityText LowCardinality(String) CODEC(ZSTD(1)),
	SeverityNumber Int32 CODEC(ZSTD(1)),
	ServiceName LowCardinality(String) CODEC(ZSTD(1)),
	Body String CODEC(ZSTD(1)),
	ResourceAttributes Map(LowCardinality(String), String) CODEC(ZSTD(1)),
	LogAttributes Map(LowCardinality(String), String) CODEC(ZSTD(1)),
	INDEX idx_res_attr_key mapKeys(ResourceAttributes) TYPE bloom_filter(0.01) GRANULARITY 1,
	INDEX idx_res_attr_value mapValues(ResourceAttributes) TYPE bloom_filter(0.01) GRANULARITY 1,
	INDEX idx_log_attr_key mapKeys(LogAttributes) TYPE bloom_filter(0.01) GRANULARITY 1,
	INDEX idx_log_attr_value mapValues(LogAttributes) TYPE bloom_filter(0.01) GRANULARITY 1,
	INDEX idx_body Body TYPE tokenbf_v1(32768, 3, 0) GRANULARITY 1
) ENGINE = MergeTree
PARTITION BY toDate(Timestamp)
ORDER BY (ServiceName, toUnixTimestamp(Timestamp))
TTL toDateTime(Timestamp) + toIntervalDay(30)
SETTINGS index_granularity = 8192`, table)
}

// tracesTableDDL mirrors the canonical traces schema: span events stored as
// parallel arrays and a min-max skip index on Duration for fast percentile
// filtering.
func tracesTableDDL(database string) string {
	table := fmt.Sprintf("%s.%s", quoteIdent(database), quoteIdent(TableTraces))
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Timestamp DateTime64(9) CODEC(Delta, ZSTD(1)),
	TraceId String CODEC(ZSTD(1)),
	SpanId String CODEC(ZSTD(1)),
	ParentSpanId String CODEC(ZSTD(1)),
	ServiceName LowCardinality(String) CODEC(ZSTD(1)),
	SpanName LowCardinality(String) CODEC(ZSTD(1)),
	Duration UInt64 CODEC(ZSTD(1)),
	StatusCode LowCardinality(String) CODEC(ZSTD(1)),
	SpanAttributes Map(LowCardinality(String), String) CODEC(ZSTD(1)),
	Events.Timestamp Array(DateTime64(9)) CODEC(ZSTD(1)),
	Events.Name Array(LowCardinality(String)) CODEC(ZSTD(1)),
	Events.Attributes Array(Map(LowCardinality(String), String)) CODEC(ZSTD(1)),
	INDEX idx_duration Duration TYPE minmax GRANULARITY 1
) ENGINE = MergeTree
PARTITION BY toDate(Timestamp)
ORDER BY (ServiceName, toUnixTimestamp(Timestamp))
TTL toDateTime(Timestamp) + toIntervalDay(30)
SETTINGS index_granularity = 8192`, table)
}

// sessionsTableDDL mirrors the logs table's schema plus a materialized
// session_id column.
func sessionsTableDDL(database string) string {
	table := fmt.Sprintf("%s.%s", quoteIdent(database), quoteIdent(TableSessions))
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Timestamp DateTime64(9) CODEC(Delta, ZSTD(1)),
	TraceId String CODEC(ZSTD(1)),
	SpanId String CODEC(ZSTD(1)),
	SeverityText LowCardinality(String) CODEC(ZSTD(1)),
	ServiceName LowCardinality(String) CODEC(ZSTD(1)),
	Body String CODEC(ZSTD(1)),
	ResourceAttributes Map(LowCardinality(String), String) CODEC(ZSTD(1)),
	LogAttributes Map(LowCardinality(String), String) CODEC(ZSTD(1)),
	SessionId String MATERIALIZED LogAttributes['rr-web.session-id'] CODEC(ZSTD(1)),
	INDEX idx_session_id SessionId TYPE bloom_filter(0.01) GRANULARITY 1
) ENGINE = MergeTree
PARTITION BY toDate(Timestamp)
ORDER BY (ServiceName, SessionId, toUnixTimestamp(Timestamp))
TTL toDateTime(Timestamp) + toIntervalDay(30)
SETTINGS index_granularity = 8192`, table)
}

func metricsGaugeTableDDL(database string) string {
	return metricTableDDL(database, TableMetricsGauge)
}

func metricsSumTableDDL(database string) string {
	return metricTableDDL(database, TableMetricsSum)
}

func metricsHistogramTableDDL(database string) string {
	table := fmt.Sprintf("%s.%s", quoteIdent(database), quoteIdent(TableMetricsHistogram))
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Timestamp DateTime64(9) CODEC(Delta, ZSTD(1)),
	MetricName LowCardinality(String) CODEC(ZSTD(1)),
	ServiceName LowCardinality(String) CODEC(ZSTD(1)),
	Attributes Map(LowCardinality(String), String) CODEC(ZSTD(1)),
	Count UInt64 CODEC(ZSTD(1)),
	Sum Float64 CODEC(ZSTD(1)),
	BucketCounts Array(UInt64) CODEC(ZSTD(1)),
	ExplicitBounds Array(Float64) CODEC(ZSTD(1))
) ENGINE = MergeTree
PARTITION BY toDate(Timestamp)
ORDER BY (ServiceName, MetricName, toUnixTimestamp(Timestamp))
TTL toDateTime(Timestamp) + toIntervalDay(30)
SETTINGS index_granularity = 8192`, table)
}

func metricTableDDL(database, tableName string) string {
	table := fmt.Sprintf("%s.%s", quoteIdent(database), quoteIdent(tableName))
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	Timestamp DateTime64(9) CODEC(Delta, ZSTD(1)),
	MetricName LowCardinality(String) CODEC(ZSTD(1)),
	ServiceName LowCardinality(String) CODEC(ZSTD(1)),
	Attributes Map(LowCardinality(String), String) CODEC(ZSTD(1)),
	Value Float64 CODEC(ZSTD(1))
) ENGINE = MergeTree
PARTITION BY toDate(Timestamp)
ORDER BY (ServiceName, MetricName, toUnixTimestamp(Timestamp))
TTL toDateTime(Timestamp) + toIntervalDay(30)
SETTINGS index_granularity = 8192`, table)
}
