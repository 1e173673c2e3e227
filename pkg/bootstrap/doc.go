/*
Package bootstrap implements the tenant bootstrap orchestrator, run once
per team, at team creation.

Grounded on cuemby-warren's pkg/manager orchestration style: a short ordered
sequence of dependent calls where a later step's failure is logged and
left for the next retry rather than unwound, because every step (storage DDL,
the ManagedConnection upsert, Source creation) is independently idempotent.
The one piece of this package with no cuemby-warren analogue is the cross-link
pass: the four canonical sources form a complete directed graph by id,
created node-first with no edges, then patched in a second pass once all
four exist — an acyclic construction of what is otherwise a cyclic
reference structure.
*/
package bootstrap
