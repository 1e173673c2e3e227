package storage

import (
	"github.com/hyperdx/ingest-control/pkg/types"
)

// Store is the persistence interface backing the control plane's Raft FSM.
// Every mutating method is applied from inside fsm.Apply and must be an
// upsert: the FSM replays the same command on every replica, so Create and
// Update share one code path keyed by ID.
type Store interface {
	// Teams
	CreateTeam(team *types.Team) error
	GetTeam(id string) (*types.Team, error)
	ListTeams() ([]*types.Team, error)

	// Ingestion tokens. GetTokenByHash backs resolve() and must not require
	// a full table scan — callers hit it on every authenticated ingest
	// request.
	CreateToken(token *types.IngestionToken) error
	GetToken(id string) (*types.IngestionToken, error)
	GetTokenByHash(hash string) (*types.IngestionToken, error)
	ListTokens() ([]*types.IngestionToken, error)
	ListTokensByTeam(teamID string) ([]*types.IngestionToken, error)
	UpdateToken(token *types.IngestionToken) error

	// ManagedConnection is one-per-team. includeSecret controls whether the
	// decrypted-at-rest Password field is populated; API handlers must
	// always pass false.
	PutManagedConnection(conn *types.ManagedConnection) error
	GetManagedConnection(teamID string, includeSecret bool) (*types.ManagedConnection, error)
	// ListManagedConnections is used by pkg/cluster's Raft snapshot/restore
	// path, so it always includes the encrypted password.
	ListManagedConnections() ([]*types.ManagedConnection, error)

	// Sources
	CreateSource(source *types.Source) error
	GetSource(id string) (*types.Source, error)
	ListSourcesByTeam(teamID string) ([]*types.Source, error)
	DeleteSource(id string) error

	Close() error
}
