/*
Package registry implements the ingestion token registry, atop
pkg/cluster (Raft) and pkg/storage (bbolt).

Every mutating operation — create, rotate, revoke, assign_shard, and
mark_used's timestamp write — goes through a single cluster.Apply call so
it is durable and linearizable before the caller's response returns, the
same "serialize command → apply → observe" discipline as cuemby-warren's
pkg/manager.CreateNode and friends. Reads (list, resolve) go straight to
the local storage.Store, since a single-node Raft cluster's local state is
always caught up with its own log.

Rotate is the one operation with an atomicity requirement beyond "goes
through Apply": no observer may ever see both the pre- and post-rotate
plaintexts resolve. This package satisfies it by submitting the
revoke-old and create-new as one Raft command (cluster.OpRotateToken)
rather than two; the FSM writes the revoked record before the new one, so
the two are never active at the same moment. Those are two separate store
writes, so a resolve() that runs between them finds neither token active.
*/
package registry
