package cluster

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/hyperdx/ingest-control/pkg/storage"
	"github.com/hyperdx/ingest-control/pkg/types"
)

// Command is one state-change operation in the Raft log.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// Op values dispatched by FSM.Apply. Every one of pkg/registry's and
// pkg/bootstrap's mutations maps to exactly one of these.
const (
	OpCreateTeam           = "create_team"
	OpCreateToken          = "create_token"
	OpUpdateToken          = "update_token"
	OpRotateToken          = "rotate_token"
	OpPutManagedConnection = "put_managed_connection"
	OpCreateSource         = "create_source"
	OpDeleteSource         = "delete_source"
)

// RotateTokenPayload is the argument to OpRotateToken: both halves of a
// rotate() apply in one FSM.Apply call, revoke first and create second, so
// the old and new tokens are never active at the same time. They are two
// separate store writes; a resolve() between them finds neither active.
type RotateTokenPayload struct {
	Revoked *types.IngestionToken `json:"revoked"`
	Next    *types.IngestionToken `json:"next"`
}

// managedConnectionPayload is the Raft-wire DTO for a ManagedConnection.
// types.ManagedConnection tags Password json:"-" so an HTTP response never
// echoes the secret back to a caller, but the Raft log entry and
// snapshot/restore cycle are internal replication, not an API response —
// they need the encrypted ciphertext to actually reach every replica's
// store. OpPutManagedConnection and Snapshot marshal through this mirror
// instead of the domain type directly, the same way storage.connectionRecord
// mirrors types.ManagedConnection for BoltDB.
type managedConnectionPayload struct {
	TeamID    string `json:"team_id"`
	Host      string `json:"host"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	IsManaged bool   `json:"is_managed"`
}

func newManagedConnectionPayload(c *types.ManagedConnection) managedConnectionPayload {
	return managedConnectionPayload{
		TeamID:    c.TeamID,
		Host:      c.Host,
		Database:  c.Database,
		Username:  c.Username,
		Password:  c.Password,
		IsManaged: c.IsManaged,
	}
}

func (p managedConnectionPayload) toDomain() *types.ManagedConnection {
	return &types.ManagedConnection{
		TeamID:    p.TeamID,
		Host:      p.Host,
		Database:  p.Database,
		Username:  p.Username,
		Password:  p.Password,
		IsManaged: p.IsManaged,
	}
}

// MarshalManagedConnection encodes conn for use as an OpPutManagedConnection
// Command's Data, carrying Password through despite the domain type's
// json:"-" tag. Callers building that command (pkg/bootstrap) must use this
// instead of json.Marshal on the domain type directly.
func MarshalManagedConnection(conn *types.ManagedConnection) ([]byte, error) {
	return json.Marshal(newManagedConnectionPayload(conn))
}

// FSM implements raft.FSM over pkg/storage.Store.
type FSM struct {
	mu    sync.RWMutex
	store storage.Store
}

// NewFSM constructs an FSM over the given store.
func NewFSM(store storage.Store) *FSM {
	return &FSM{store: store}
}

// Apply dispatches a committed Raft log entry to the backing store.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case OpCreateTeam:
		var team types.Team
		if err := json.Unmarshal(cmd.Data, &team); err != nil {
			return err
		}
		return f.store.CreateTeam(&team)

	case OpCreateToken:
		var token types.IngestionToken
		if err := json.Unmarshal(cmd.Data, &token); err != nil {
			return err
		}
		return f.store.CreateToken(&token)

	case OpUpdateToken:
		var token types.IngestionToken
		if err := json.Unmarshal(cmd.Data, &token); err != nil {
			return err
		}
		return f.store.UpdateToken(&token)

	case OpRotateToken:
		var payload RotateTokenPayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return err
		}
		if err := f.store.UpdateToken(payload.Revoked); err != nil {
			return fmt.Errorf("failed to revoke old token during rotate: %w", err)
		}
		return f.store.CreateToken(payload.Next)

	case OpPutManagedConnection:
		var payload managedConnectionPayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return err
		}
		return f.store.PutManagedConnection(payload.toDomain())

	case OpCreateSource:
		var source types.Source
		if err := json.Unmarshal(cmd.Data, &source); err != nil {
			return err
		}
		return f.store.CreateSource(&source)

	case OpDeleteSource:
		var sourceID string
		if err := json.Unmarshal(cmd.Data, &sourceID); err != nil {
			return err
		}
		return f.store.DeleteSource(sourceID)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot captures a point-in-time copy of every bucket for Raft log
// compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	teams, err := f.store.ListTeams()
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	tokens, err := f.store.ListTokens()
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	conns, err := f.store.ListManagedConnections()
	if err != nil {
		return nil, fmt.Errorf("failed to list managed connections: %w", err)
	}
	connPayloads := make([]managedConnectionPayload, len(conns))
	for i, conn := range conns {
		connPayloads[i] = newManagedConnectionPayload(conn)
	}

	var sources []*types.Source
	for _, team := range teams {
		teamSources, err := f.store.ListSourcesByTeam(team.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list sources for team %s: %w", team.ID, err)
		}
		sources = append(sources, teamSources...)
	}

	return &Snapshot{
		Teams:              teams,
		Tokens:             tokens,
		ManagedConnections: connPayloads,
		Sources:            sources,
	}, nil
}

// Restore upserts every record of a snapshot into the FSM's backing store,
// invoked when a replica restarts or joins the cluster. Records already in
// the store that the snapshot lacks are not removed.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snapshot Snapshot
	if err := json.NewDecoder(rc).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, team := range snapshot.Teams {
		if err := f.store.CreateTeam(team); err != nil {
			return fmt.Errorf("failed to restore team: %w", err)
		}
	}
	for _, token := range snapshot.Tokens {
		if err := f.store.CreateToken(token); err != nil {
			return fmt.Errorf("failed to restore token: %w", err)
		}
	}
	for _, conn := range snapshot.ManagedConnections {
		if err := f.store.PutManagedConnection(conn.toDomain()); err != nil {
			return fmt.Errorf("failed to restore managed connection: %w", err)
		}
	}
	for _, source := range snapshot.Sources {
		if err := f.store.CreateSource(source); err != nil {
			return fmt.Errorf("failed to restore source: %w", err)
		}
	}

	return nil
}

// Snapshot is the serialized point-in-time state of every bucket.
type Snapshot struct {
	Teams              []*types.Team              `json:"teams"`
	Tokens             []*types.IngestionToken    `json:"tokens"`
	ManagedConnections []managedConnectionPayload `json:"managed_connections"`
	Sources            []*types.Source            `json:"sources"`
}

// Persist writes the snapshot to sink as JSON.
func (s *Snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

// Release is a no-op; the snapshot holds no external resources.
func (s *Snapshot) Release() {}
