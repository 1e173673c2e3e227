/*
Package storage provides BoltDB-backed persistence for the control plane's
state: teams, ingestion tokens, managed connections, and sources.

# Architecture

Every table lives in its own bucket inside one BoltDB file,
<dataDir>/ingestcp.db, with each record stored as its JSON encoding keyed by
ID:

	teams                {team id -> Team}
	tokens               {token id -> IngestionToken}
	tokens_by_hash       {token hash -> token id}   secondary index
	managed_connections  {team id -> connectionRecord}
	sources              {source id -> Source}

pkg/cluster's Raft FSM is the only caller of the mutating methods: every
write reaches BoltStore after being committed to the Raft log, so a method
here never needs to coordinate with concurrent writers itself — BoltDB's
single-writer transaction model is enough.

# Secondary index

tokens_by_hash exists so GetTokenByHash, which backs the hot-path resolve()
operation, never scans the full token table. putToken keeps both buckets in
lockstep inside one transaction, including deleting the prior hash entry
when an update changes TokenHash on an existing token ID.

# Secrets at rest

types.ManagedConnection tags Password with `json:"-"` so API responses never
echo it, but the control plane still has to persist the encrypted ciphertext
pkg/security.SecretsManager produced. connectionRecord is a private mirror
struct used only inside this package that serializes Password; callers ask
for it via GetManagedConnection's includeSecret argument.

# Listing

ListTokensByTeam and ListSourcesByTeam filter a full bucket scan in Go
rather than maintaining a by-team secondary index, following the same
trade-off cuemby-warren's ListContainersByService/ListContainersByNode made:
control-plane tenant counts are small enough that an index would add
write-path complexity without a measurable read win.
*/
package storage
