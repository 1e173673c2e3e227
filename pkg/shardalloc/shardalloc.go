package shardalloc

import (
	"fmt"

	"github.com/hyperdx/ingest-control/pkg/apierr"
)

// ShardName renders the canonical identifier for shard index i, the same
// string form carried in IngestionToken.AssignedShard and the OpAMP
// hdx.shard_id identifying attribute.
func ShardName(i int) string {
	return fmt.Sprintf("shard-%d", i)
}

// Occupied builds the occupied-shard set from a snapshot of assigned-shard
// values pulled from active tokens. Empty strings (an unassigned token) are
// ignored.
func Occupied(assignedShards []string) map[string]bool {
	occupied := make(map[string]bool, len(assignedShards))
	for _, s := range assignedShards {
		if s != "" {
			occupied[s] = true
		}
	}
	return occupied
}

// Allocate returns the lowest-index shard not present in occupied, among
// shard-0 .. shard-(shardCount-1). It fails with a SHARDS_EXHAUSTED apierr
// once every shard has at least one team assigned.
func Allocate(shardCount int, occupied map[string]bool) (string, error) {
	for i := 0; i < shardCount; i++ {
		name := ShardName(i)
		if !occupied[name] {
			return name, nil
		}
	}
	return "", apierr.New(apierr.ShardsExhausted, fmt.Sprintf("no free shard among %d shards", shardCount))
}
