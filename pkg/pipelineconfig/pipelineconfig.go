// Package pipelineconfig implements the collector-config synthesizer:
// a pure function from a shard id to the OpAMP RemoteConfig payload that
// shard's collector should be running.
//
// Config is a tagged union (NopConfig | TenantConfig) serialized through
// an explicit MarshalJSON on each variant rather than relying on default
// struct-tag marshaling, so the byte layout is pinned regardless of how
// the Go struct definitions evolve — config-hash stability at the
// collector depends on identical inputs always producing identical
// bytes.
package pipelineconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hyperdx/ingest-control/pkg/apierr"
	"github.com/hyperdx/ingest-control/pkg/log"
	"github.com/hyperdx/ingest-control/pkg/storage"
	"github.com/hyperdx/ingest-control/pkg/types"
)

// Config is implemented by NopConfig and TenantConfig.
type Config interface {
	// Kind distinguishes the two variants for callers that need to branch
	// without a type switch (e.g. metrics labeling).
	Kind() string
	// MarshalJSON produces the deterministic wire payload.
	MarshalJSON() ([]byte, error)
}

// NopConfig is emitted when a shard has zero bound teams, more than one
// bound team with no resolvable ManagedConnection, or its bound team's
// ManagedConnection is missing. It runs a health-check-only collector:
// receivers open, pipelines go nowhere.
type NopConfig struct{}

func (NopConfig) Kind() string { return "nop" }

func (c NopConfig) MarshalJSON() ([]byte, error) {
	doc := orderedMap{
		{"receivers", orderedMap{
			{"otlp", orderedMap{
				{"protocols", orderedMap{
					{"grpc", orderedMap{{"endpoint", "0.0.0.0:4317"}}},
					{"http", orderedMap{{"endpoint", "0.0.0.0:4318"}}},
				}},
			}},
		}},
		{"exporters", orderedMap{
			{"nop", orderedMap{}},
		}},
		{"extensions", orderedMap{
			{"health_check", orderedMap{}},
		}},
		{"service", orderedMap{
			{"extensions", []string{"health_check"}},
			{"pipelines", orderedMap{
				{"logs/nop", orderedMap{
					{"receivers", []string{"otlp"}},
					{"exporters", []string{"nop"}},
				}},
				{"traces/nop", orderedMap{
					{"receivers", []string{"otlp"}},
					{"exporters", []string{"nop"}},
				}},
				{"metrics/nop", orderedMap{
					{"receivers", []string{"otlp"}},
					{"exporters", []string{"nop"}},
				}},
			}},
		}},
	}
	return doc.MarshalJSON()
}

// TenantConfig is emitted when exactly one team resolves to a shard (or
// the lexicographically smallest of several, when a one-tenant-per-shard
// violation has put more than one team on it) and that team has a
// ManagedConnection.
type TenantConfig struct {
	TeamID   string
	Database string
	Username string
	Password string
}

func (TenantConfig) Kind() string { return "tenant" }

func (c TenantConfig) MarshalJSON() ([]byte, error) {
	hyperdxReceiver := orderedMap{
		{"protocols", orderedMap{
			{"grpc", orderedMap{{"endpoint", "0.0.0.0:4317"}}},
			{"http", orderedMap{
				{"endpoint", "0.0.0.0:4318"},
				{"include_metadata", true},
				{"cors", orderedMap{{"allowed_origins", []string{"*"}}}},
			}},
		}},
	}

	exporter := orderedMap{
		{"endpoint", "${env:CLICKHOUSE_ENDPOINT}"},
		{"database", c.Database},
		{"username", c.Username},
		{"password", c.Password},
		{"ttl", "720h"},
		{"retry_on_failure", orderedMap{
			{"enabled", true},
			{"initial_interval", "5s"},
			{"max_interval", "30s"},
			{"max_elapsed_time", "300s"},
		}},
	}

	pipeline := orderedMap{
		{"receivers", []string{"otlp/hyperdx"}},
		{"processors", []string{"memory_limiter", "batch"}},
		{"exporters", []string{"clickhouse"}},
	}

	doc := orderedMap{
		{"receivers", orderedMap{
			{"otlp/hyperdx", hyperdxReceiver},
		}},
		{"processors", orderedMap{
			{"memory_limiter", orderedMap{
				{"check_interval", "1s"},
				{"limit_percentage", 80},
				{"spike_limit_percentage", 25},
			}},
			{"batch", orderedMap{}},
		}},
		{"exporters", orderedMap{
			{"clickhouse", exporter},
		}},
		{"service", orderedMap{
			{"pipelines", orderedMap{
				{"logs", pipeline},
				{"traces", pipeline},
				{"metrics", pipeline},
			}},
		}},
	}
	return doc.MarshalJSON()
}

// orderedMap is a JSON object serialized in declaration order instead of
// encoding/json's default alphabetical-by-struct-field (or, for a plain
// map[string]any, sorted-by-key) order, so the field order above is the
// field order on the wire.
type orderedMap []orderedEntry

type orderedEntry struct {
	key   string
	value interface{}
}

func (m orderedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// passwordDecrypter is satisfied by *security.SecretsManager. Scoped to
// the one method this package needs so it doesn't import pkg/security
// just to name a type (and so tests can pass nil for plaintext fixtures).
type passwordDecrypter interface {
	DecryptPassword(encoded string) (string, error)
}

// Synthesizer reads the ingestion token registry's durable state and
// produces a Config for a shard.
type Synthesizer struct {
	store   storage.Store
	secrets passwordDecrypter
}

// New constructs a Synthesizer. secrets decrypts the ManagedConnection
// password at rest (pkg/bootstrap encrypts it on write); pass nil only in
// tests that store plaintext passwords directly.
func New(store storage.Store, secrets passwordDecrypter) *Synthesizer {
	return &Synthesizer{store: store, secrets: secrets}
}

// Synthesize resolves a shard id to a collector config in four steps:
// find the teams bound to the shard, fall back to a nop config if none
// or if provisioning never completed, and otherwise build a tenant
// pipeline pointed at that team's managed connection.
func (s *Synthesizer) Synthesize(shardID string) (Config, error) {
	teamIDs, err := s.boundTeams(shardID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to list tokens for shard", err)
	}

	if len(teamIDs) == 0 {
		return NopConfig{}, nil
	}

	teamID := teamIDs[0]
	if len(teamIDs) > 1 {
		sort.Strings(teamIDs)
		teamID = teamIDs[0]
		log.Logger.Warn().Str("shard_id", shardID).Strs("team_ids", teamIDs).
			Msg("synthesize: multiple teams bound to one shard, one-tenant-per-shard violation, using lexicographically smallest")
	}

	conn, err := s.store.GetManagedConnection(teamID, true)
	if err != nil {
		log.Logger.Error().Err(err).Str("shard_id", shardID).Str("team_id", teamID).
			Msg("synthesize: no managed connection for bound team, emitting nop config")
		return NopConfig{}, nil
	}

	password := conn.Password
	if s.secrets != nil {
		password, err = s.secrets.DecryptPassword(conn.Password)
		if err != nil {
			log.Logger.Error().Err(err).Str("shard_id", shardID).Str("team_id", teamID).
				Msg("synthesize: failed to decrypt managed connection password, emitting nop config")
			return NopConfig{}, nil
		}
	}

	return TenantConfig{
		TeamID:   teamID,
		Database: conn.Database,
		Username: conn.Username,
		Password: password,
	}, nil
}

// boundTeams returns the distinct, order-stable set of team ids with an
// active token assigned to shardID.
func (s *Synthesizer) boundTeams(shardID string) ([]string, error) {
	tokens, err := s.store.ListTokens()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var teamIDs []string
	for _, t := range tokens {
		if t.Status != types.TokenStatusActive || t.AssignedShard != shardID {
			continue
		}
		if !seen[t.TeamID] {
			seen[t.TeamID] = true
			teamIDs = append(teamIDs, t.TeamID)
		}
	}
	return teamIDs, nil
}

// ConfigHash computes the SHA-256 hash OpAMP's RemoteConfig carries
// alongside the serialized bytes, letting a collector (and this server)
// cheaply detect whether a config actually changed.
func ConfigHash(cfg Config) ([]byte, error) {
	data, err := cfg.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal config for hashing: %w", err)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}
