package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/hyperdx/ingest-control/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketTeams              = []byte("teams")
	bucketTokens             = []byte("tokens")
	bucketTokensByHash       = []byte("tokens_by_hash")
	bucketManagedConnections = []byte("managed_connections")
	bucketSources            = []byte("sources")
)

// BoltStore implements Store on top of a single BoltDB file.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the control plane's BoltDB file
// under dataDir and ensures every bucket exists.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "ingestcp.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketTeams,
			bucketTokens,
			bucketTokensByHash,
			bucketManagedConnections,
			bucketSources,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Team operations

func (s *BoltStore) CreateTeam(team *types.Team) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTeams)
		data, err := json.Marshal(team)
		if err != nil {
			return err
		}
		return b.Put([]byte(team.ID), data)
	})
}

func (s *BoltStore) GetTeam(id string) (*types.Team, error) {
	var team types.Team
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTeams)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("team not found: %s", id)
		}
		return json.Unmarshal(data, &team)
	})
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (s *BoltStore) ListTeams() ([]*types.Team, error) {
	var teams []*types.Team
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTeams)
		return b.ForEach(func(k, v []byte) error {
			var team types.Team
			if err := json.Unmarshal(v, &team); err != nil {
				return err
			}
			teams = append(teams, &team)
			return nil
		})
	})
	return teams, err
}

// Ingestion token operations

func (s *BoltStore) CreateToken(token *types.IngestionToken) error {
	return s.putToken(token)
}

func (s *BoltStore) UpdateToken(token *types.IngestionToken) error {
	return s.putToken(token) // upsert, same as create
}

func (s *BoltStore) putToken(token *types.IngestionToken) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		tokens := tx.Bucket(bucketTokens)
		byHash := tx.Bucket(bucketTokensByHash)

		// Drop the stale hash-index entry when an update changes this ID's
		// TokenHash, so two entries never point at one token.
		if existing := tokens.Get([]byte(token.ID)); existing != nil {
			var prev types.IngestionToken
			if err := json.Unmarshal(existing, &prev); err == nil && prev.TokenHash != token.TokenHash {
				if err := byHash.Delete([]byte(prev.TokenHash)); err != nil {
					return err
				}
			}
		}

		data, err := json.Marshal(token)
		if err != nil {
			return err
		}
		if err := tokens.Put([]byte(token.ID), data); err != nil {
			return err
		}
		return byHash.Put([]byte(token.TokenHash), []byte(token.ID))
	})
}

func (s *BoltStore) GetToken(id string) (*types.IngestionToken, error) {
	var token types.IngestionToken
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokens)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("ingestion token not found: %s", id)
		}
		return json.Unmarshal(data, &token)
	})
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *BoltStore) GetTokenByHash(hash string) (*types.IngestionToken, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		byHash := tx.Bucket(bucketTokensByHash)
		idBytes := byHash.Get([]byte(hash))
		if idBytes == nil {
			return fmt.Errorf("ingestion token not found for hash")
		}
		id = string(idBytes)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetToken(id)
}

func (s *BoltStore) ListTokens() ([]*types.IngestionToken, error) {
	var tokens []*types.IngestionToken
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTokens)
		return b.ForEach(func(k, v []byte) error {
			var token types.IngestionToken
			if err := json.Unmarshal(v, &token); err != nil {
				return err
			}
			tokens = append(tokens, &token)
			return nil
		})
	})
	return tokens, err
}

func (s *BoltStore) ListTokensByTeam(teamID string) ([]*types.IngestionToken, error) {
	tokens, err := s.ListTokens()
	if err != nil {
		return nil, err
	}

	var filtered []*types.IngestionToken
	for _, token := range tokens {
		if token.TeamID == teamID {
			filtered = append(filtered, token)
		}
	}
	return filtered, nil
}

// ManagedConnection operations.
//
// connectionRecord mirrors types.ManagedConnection but, unlike the API-facing
// type, serializes Password: the wire DTO hides the secret from HTTP
// responses via `json:"-"`, but the storage layer must still persist the
// encrypted ciphertext SecretsManager produced.
type connectionRecord struct {
	TeamID    string `json:"team_id"`
	Host      string `json:"host"`
	Database  string `json:"database"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	IsManaged bool   `json:"is_managed"`
}

func (s *BoltStore) PutManagedConnection(conn *types.ManagedConnection) error {
	rec := connectionRecord{
		TeamID:    conn.TeamID,
		Host:      conn.Host,
		Database:  conn.Database,
		Username:  conn.Username,
		Password:  conn.Password,
		IsManaged: conn.IsManaged,
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketManagedConnections)
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return b.Put([]byte(conn.TeamID), data)
	})
}

func (s *BoltStore) GetManagedConnection(teamID string, includeSecret bool) (*types.ManagedConnection, error) {
	var rec connectionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketManagedConnections)
		data := b.Get([]byte(teamID))
		if data == nil {
			return fmt.Errorf("managed connection not found for team: %s", teamID)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}

	conn := &types.ManagedConnection{
		TeamID:    rec.TeamID,
		Host:      rec.Host,
		Database:  rec.Database,
		Username:  rec.Username,
		IsManaged: rec.IsManaged,
	}
	if includeSecret {
		conn.Password = rec.Password
	}
	return conn, nil
}

func (s *BoltStore) ListManagedConnections() ([]*types.ManagedConnection, error) {
	var conns []*types.ManagedConnection
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketManagedConnections)
		return b.ForEach(func(k, v []byte) error {
			var rec connectionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			conns = append(conns, &types.ManagedConnection{
				TeamID:    rec.TeamID,
				Host:      rec.Host,
				Database:  rec.Database,
				Username:  rec.Username,
				Password:  rec.Password,
				IsManaged: rec.IsManaged,
			})
			return nil
		})
	})
	return conns, err
}

// Source operations

func (s *BoltStore) CreateSource(source *types.Source) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSources)
		data, err := json.Marshal(source)
		if err != nil {
			return err
		}
		return b.Put([]byte(source.ID), data)
	})
}

func (s *BoltStore) GetSource(id string) (*types.Source, error) {
	var source types.Source
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSources)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("source not found: %s", id)
		}
		return json.Unmarshal(data, &source)
	})
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func (s *BoltStore) ListSourcesByTeam(teamID string) ([]*types.Source, error) {
	var sources []*types.Source
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSources)
		return b.ForEach(func(k, v []byte) error {
			var source types.Source
			if err := json.Unmarshal(v, &source); err != nil {
				return err
			}
			if source.TeamID == teamID {
				sources = append(sources, &source)
			}
			return nil
		})
	})
	return sources, err
}

func (s *BoltStore) DeleteSource(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSources)
		return b.Delete([]byte(id))
	})
}
