/*
Package shardalloc implements the control plane's shard assignment policy: a
pure, deterministic function from "how many shards exist" and "which are
already taken" to the next free one.

It intentionally carries no state of its own — pkg/registry supplies the
occupied set computed from a snapshot of active tokens, and this package
decides which shard-<n> a newly created team should land on. Keeping the
decision pure makes shard selection trivial to unit test and to reason about
independently of the Raft log that actually persists the assignment.
*/
package shardalloc
