package types

import "time"

// Team is the identity of a tenant.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TokenStatus is the lifecycle state of an IngestionToken.
type TokenStatus string

const (
	TokenStatusActive  TokenStatus = "active"
	TokenStatusRevoked TokenStatus = "revoked"
)

// IngestionToken is the canonical durable record of an ingestion credential.
// The plaintext token itself is never stored; only TokenHash and TokenPrefix
// survive past the moment of issuance.
type IngestionToken struct {
	ID            string      `json:"id"`
	TeamID        string      `json:"team_id"`
	TokenHash     string      `json:"token_hash"`
	TokenPrefix   string      `json:"token_prefix"`
	Status        TokenStatus `json:"status"`
	AssignedShard string      `json:"assigned_shard"`
	Description   string      `json:"description,omitempty"`
	LastUsedAt    *time.Time  `json:"last_used_at,omitempty"`
	RevokedAt     *time.Time  `json:"revoked_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// ManagedConnection is the control plane's record of a tenant's provisioned
// storage endpoint. Password is write-on-create: readers must opt in to
// fetching it (see pkg/storage.Store.GetManagedConnection's includeSecret
// argument). The json:"-" tag keeps it out of any HTTP response built from
// this type; internal replication (pkg/storage's connectionRecord, pkg/
// cluster's managedConnectionPayload) serializes Password through a
// separate mirror type instead of this one.
type ManagedConnection struct {
	TeamID    string `json:"team_id"`
	Host      string `json:"host"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"-"`
	IsManaged bool   `json:"is_managed"`
}

// SourceKind identifies which signal a Source describes.
type SourceKind string

const (
	SourceKindLog     SourceKind = "log"
	SourceKindTrace   SourceKind = "trace"
	SourceKindMetric  SourceKind = "metric"
	SourceKindSession SourceKind = "session"
)

// Source is the canonical query-time description of one signal kind for a
// team, cross-linked to the other three kinds that make up the same team's
// complete source graph.
type Source struct {
	ID       string     `json:"id"`
	TeamID   string     `json:"team_id"`
	Kind     SourceKind `json:"kind"`
	Name     string     `json:"name"`
	Database string     `json:"database"`
	// Tables holds the canonical table name(s) this source reads from.
	// Every kind but metric has exactly one entry; metric lists the three
	// otel_metrics_{gauge,sum,histogram} tables.
	Tables []string `json:"tables"`

	LogSourceID     string `json:"log_source_id,omitempty"`
	TraceSourceID   string `json:"trace_source_id,omitempty"`
	MetricSourceID  string `json:"metric_source_id,omitempty"`
	SessionSourceID string `json:"session_source_id,omitempty"`
}

// AgentCapabilities is a bitfield mirroring the subset of OpAMP's
// AgentCapabilities the server cares about. Values match the bit
// positions upstream opamp.proto assigns them (AcceptsRemoteConfig =
// 0x02, ReportsRemoteConfig = 0x1000) rather than a locally convenient
// 1<<iota sequence, since this field is decoded verbatim off the wire
// from a real collector and must line up with what it actually sends.
type AgentCapabilities uint64

const (
	AgentCapabilityAcceptsRemoteConfig AgentCapabilities = 0x02
	AgentCapabilityReportsRemoteConfig AgentCapabilities = 0x1000
)

func (c AgentCapabilities) Has(flag AgentCapabilities) bool {
	return c&flag != 0
}

// AgentConfigState is the per-agent state machine driven purely by inbound
// heartbeats (there is no server-initiated push).
type AgentConfigState string

const (
	AgentStateUnknown       AgentConfigState = "UNKNOWN"
	AgentStateRegistered    AgentConfigState = "REGISTERED"
	AgentStateConfigured    AgentConfigState = "CONFIGURED"
	AgentStateConfigChanged AgentConfigState = "CONFIG_CHANGED"
)

// AgentState is the ephemeral, in-memory record of the last heartbeat seen
// from a single collector instance.
type AgentState struct {
	InstanceUID           []byte            `json:"instance_uid"`
	IdentifyingAttributes map[string]string `json:"identifying_attributes"`
	Capabilities          AgentCapabilities `json:"capabilities"`
	LastConfigHash        []byte            `json:"last_config_hash,omitempty"`
	State                 AgentConfigState  `json:"state"`
	LastSeenAt            time.Time         `json:"last_seen_at"`
}

// ShardIDOf returns the hdx.shard_id identifying attribute, if present.
func (a *AgentState) ShardIDOf() (string, bool) {
	if a == nil {
		return "", false
	}
	v, ok := a.IdentifyingAttributes["hdx.shard_id"]
	return v, ok
}
