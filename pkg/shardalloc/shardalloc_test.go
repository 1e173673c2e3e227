package shardalloc

import (
	"testing"

	"github.com/hyperdx/ingest-control/pkg/apierr"
)

func TestShardName(t *testing.T) {
	if got := ShardName(0); got != "shard-0" {
		t.Errorf("ShardName(0) = %q, want %q", got, "shard-0")
	}
	if got := ShardName(7); got != "shard-7" {
		t.Errorf("ShardName(7) = %q, want %q", got, "shard-7")
	}
}

func TestOccupied(t *testing.T) {
	occ := Occupied([]string{"shard-0", "", "shard-2", "shard-0"})

	if len(occ) != 2 {
		t.Errorf("Occupied() has %d entries, want 2", len(occ))
	}
	if !occ["shard-0"] || !occ["shard-2"] {
		t.Error("Occupied() missing expected shard entries")
	}
	if occ["shard-1"] {
		t.Error("Occupied() should not contain shard-1")
	}
}

func TestAllocate_FirstFreeLowestIndex(t *testing.T) {
	occupied := map[string]bool{"shard-0": true, "shard-1": true}

	got, err := Allocate(4, occupied)
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if got != "shard-2" {
		t.Errorf("Allocate() = %q, want %q", got, "shard-2")
	}
}

func TestAllocate_EmptyOccupiedReturnsShardZero(t *testing.T) {
	got, err := Allocate(3, map[string]bool{})
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if got != "shard-0" {
		t.Errorf("Allocate() = %q, want %q", got, "shard-0")
	}
}

func TestAllocate_Exhausted(t *testing.T) {
	occupied := map[string]bool{"shard-0": true, "shard-1": true, "shard-2": true}

	_, err := Allocate(3, occupied)
	if err == nil {
		t.Fatal("Allocate() expected error when all shards occupied")
	}
	if apierr.KindOf(err) != apierr.ShardsExhausted {
		t.Errorf("Allocate() error kind = %v, want %v", apierr.KindOf(err), apierr.ShardsExhausted)
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	occupied := map[string]bool{"shard-1": true}

	for i := 0; i < 10; i++ {
		got, err := Allocate(5, occupied)
		if err != nil {
			t.Fatalf("Allocate() error = %v", err)
		}
		if got != "shard-0" {
			t.Errorf("Allocate() = %q, want deterministic %q", got, "shard-0")
		}
	}
}
