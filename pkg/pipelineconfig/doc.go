/*
Package pipelineconfig implements the pure function from a shard id to
the collector config that shard's collector should be running.

Grounded on cuemby-warren's pkg/metrics/collector.go's deterministic-output
discipline (collect the same inputs, emit the same shape, every time) and
enriched with the OTel Collector config shapes (receivers/processors/
exporters/service.pipelines) visible across the pack's OTel-adjacent
examples. Config is a tagged union of NopConfig and TenantConfig, each
serializing itself through orderedMap rather than a plain Go struct, so
the byte layout never drifts if a field is added or reordered later —
config-hash stability depends on it.
*/
package pipelineconfig
