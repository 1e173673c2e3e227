/*
Package types defines the core data structures of the ingestion control plane.

This package contains the domain model shared by every other package: teams,
ingestion tokens, managed storage connections, canonical sources, and the
in-memory OpAMP agent state. These types are the vocabulary the rest of the
control plane is written in — the token registry, the provisioner, the
bootstrap orchestrator, and the collector-config synthesizer all operate on
them directly rather than on their own private shapes.

# Core Types

Team:
  - The tenant identity. Owns zero or more IngestionTokens and at most one
    ManagedConnection.

IngestionToken:
  - The canonical durable record for an ingestion credential. Never carries
    the plaintext token — only its hash and display prefix.

ManagedConnection:
  - The control plane's record of a tenant's provisioned database endpoint
    and write credential.

Source:
  - The query-time description of one kind of tenant data (log, trace,
    metric, session), cross-linked to the other three kinds for the same
    team.

AgentState:
  - Ephemeral, in-memory record of the last OpAMP heartbeat seen from a
    given collector instance.

# Thread Safety

Types in this package carry no synchronization of their own: callers
(pkg/storage, pkg/agentregistry) are responsible for serializing writes.
Values returned from those packages are always copies, safe to read without
further locking.

# See Also

  - pkg/storage for persistence
  - pkg/registry for the token lifecycle built on these types
  - pkg/pipelineconfig for how ManagedConnection + Source become a collector
    pipeline configuration
*/
package types
