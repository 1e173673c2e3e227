/*
Package cluster runs the single-node Raft log that backs the ingestion
token registry, giving pkg/registry linearizable reads/writes ("no torn
reads", "read-your-writes") without a bespoke consensus protocol.

# Architecture

Cluster wraps a *raft.Raft over the same three stores cuemby-warren uses:
raft-boltdb for the log and stable store, raft's file snapshot store for
compaction, and pkg/storage.BoltStore underneath the FSM for the actual
domain records. Every mutation pkg/registry and pkg/bootstrap want to make
goes through Apply(cmd), which serializes a Command{Op, Data} the same way
cuemby-warren's pkg/manager does, submits it to the Raft log, and blocks
until the local FSM has applied it.

# Scope

This repository runs Raft single-node: Bootstrap starts a one-member
cluster so every write still goes through the log (giving the FSM's
single-writer semantics and a consistent snapshot/restore story) without
requiring a multi-node join handshake, certificate issuance, or an
internal RPC surface cuemby-warren's mTLS gRPC Join() provided. Multi-node
operation is future work, not excluded by design — the FSM and Command
format place no single-node assumption in the log itself.
*/
package cluster
