// Package registry implements the ingestion token registry: the durable
// record of (team, hashed token, shard, status, audit timestamps)
// and the seven operations defined over it. Every mutation is
// submitted through pkg/cluster so it is durable and linearizable before a
// caller observes its effect, mirroring how cuemby-warren's pkg/manager
// funnels every CreateX/UpdateX through a single Apply(cmd) call.
package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hyperdx/ingest-control/pkg/apierr"
	"github.com/hyperdx/ingest-control/pkg/cluster"
	"github.com/hyperdx/ingest-control/pkg/log"
	"github.com/hyperdx/ingest-control/pkg/metrics"
	"github.com/hyperdx/ingest-control/pkg/shardalloc"
	"github.com/hyperdx/ingest-control/pkg/storage"
	"github.com/hyperdx/ingest-control/pkg/tokencodec"
	"github.com/hyperdx/ingest-control/pkg/types"
)

// Registry is the ingestion token registry. It reads from storage.Store
// directly (local, already-applied state) and writes through
// cluster.Cluster.Apply so that every replica sees mutations in log order.
type Registry struct {
	cluster    *cluster.Cluster
	store      storage.Store
	shardCount int
}

// New constructs a Registry. shardCount is the SHARD_COUNT configuration
// value, fixed for the Registry's lifetime; changing it takes a restart
// (see DESIGN.md's Open Question 1 for the shrink case).
func New(c *cluster.Cluster, store storage.Store, shardCount int) *Registry {
	return &Registry{cluster: c, store: store, shardCount: shardCount}
}

// CreateResult is returned by Create and Rotate: the plaintext token,
// visible exactly once, plus the durable record with no plaintext in it.
type CreateResult struct {
	PlaintextToken string
	Record         *types.IngestionToken
}

// EnsureTeam upserts a Team record if it doesn't already exist (idempotent,
// used by the HTTP layer and by pkg/bootstrap before provisioning).
func (r *Registry) EnsureTeam(teamID, name string) (*types.Team, error) {
	if existing, err := r.store.GetTeam(teamID); err == nil {
		return existing, nil
	}

	team := &types.Team{ID: teamID, Name: name, CreatedAt: time.Now().UTC()}
	data, err := json.Marshal(team)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal team: %w", err)
	}
	if err := r.cluster.Apply(cluster.Command{Op: cluster.OpCreateTeam, Data: data}); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	metrics.TeamsTotal.Inc()
	return team, nil
}

// Create issues a new ingestion token for teamID. If the team already has
// an active token, the new one inherits its assigned_shard; otherwise a
// fresh shard is allocated against the current occupancy snapshot.
func (r *Registry) Create(teamID, description string) (*CreateResult, error) {
	shard, err := r.shardForNewToken(teamID)
	if err != nil {
		return nil, err
	}

	plaintext, err := tokencodec.Generate()
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to generate token", err)
	}

	now := time.Now().UTC()
	record := &types.IngestionToken{
		ID:            uuid.NewString(),
		TeamID:        teamID,
		TokenHash:     tokencodec.Hash(plaintext),
		TokenPrefix:   tokencodec.DisplayPrefix(plaintext),
		Status:        types.TokenStatusActive,
		AssignedShard: shard,
		Description:   description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := r.applyCreateToken(record); err != nil {
		return nil, err
	}

	metrics.TokensTotal.WithLabelValues(string(types.TokenStatusActive)).Inc()
	log.WithTeamID(teamID).Info().Str("token_id", record.ID).Str("shard", shard).Msg("ingestion token created")

	return &CreateResult{PlaintextToken: plaintext, Record: record}, nil
}

// shardForNewToken implements the shard-selection policy: inherit an
// existing active token's shard, or allocate a fresh one.
func (r *Registry) shardForNewToken(teamID string) (string, error) {
	existing, err := r.store.ListTokensByTeam(teamID)
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "failed to list team tokens", err)
	}
	for _, t := range existing {
		if t.Status == types.TokenStatusActive {
			return t.AssignedShard, nil
		}
	}

	all, err := r.store.ListTokens()
	if err != nil {
		return "", apierr.Wrap(apierr.Internal, "failed to list tokens", err)
	}
	var assigned []string
	for _, t := range all {
		if t.Status == types.TokenStatusActive {
			assigned = append(assigned, t.AssignedShard)
		}
	}

	shard, err := shardalloc.Allocate(r.shardCount, shardalloc.Occupied(assigned))
	if err != nil {
		metrics.ShardsExhaustedTotal.Inc()
		return "", err
	}
	return shard, nil
}

// List returns every token for teamID, newest first, never containing
// plaintext.
func (r *Registry) List(teamID string) ([]*types.IngestionToken, error) {
	tokens, err := r.store.ListTokensByTeam(teamID)
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to list tokens", err)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].CreatedAt.After(tokens[j].CreatedAt) })
	return tokens, nil
}

// Rotate atomically replaces token tokenID with a freshly generated token:
// the new record becomes active and the old one is revoked as part of the
// same logical step, so there is never a moment where both plaintexts
// resolve. Both mutations are a single Raft command; the FSM writes the
// revoke before the create, so a concurrent resolve() may briefly find
// neither token active, never both.
func (r *Registry) Rotate(teamID, tokenID string) (*CreateResult, error) {
	old, err := r.store.GetToken(tokenID)
	if err != nil || old.TeamID != teamID {
		return nil, apierr.New(apierr.NotFound, "ingestion token not found")
	}

	plaintext, err := tokencodec.Generate()
	if err != nil {
		return nil, apierr.Wrap(apierr.Internal, "failed to generate token", err)
	}

	now := time.Now().UTC()
	next := &types.IngestionToken{
		ID:            uuid.NewString(),
		TeamID:        teamID,
		TokenHash:     tokencodec.Hash(plaintext),
		TokenPrefix:   tokencodec.DisplayPrefix(plaintext),
		Status:        types.TokenStatusActive,
		AssignedShard: old.AssignedShard,
		Description:   old.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	revoked := *old
	revoked.Status = types.TokenStatusRevoked
	revoked.RevokedAt = &now
	revoked.UpdatedAt = now

	if err := r.applyRotate(&revoked, next); err != nil {
		return nil, err
	}

	metrics.TokensTotal.WithLabelValues(string(types.TokenStatusActive)).Inc()
	log.WithTeamID(teamID).Info().Str("old_token_id", old.ID).Str("new_token_id", next.ID).Msg("ingestion token rotated")

	return &CreateResult{PlaintextToken: plaintext, Record: next}, nil
}

// Revoke transitions tokenID to revoked, setting RevokedAt. Revoking an
// already-revoked token is idempotent.
func (r *Registry) Revoke(teamID, tokenID string) (*types.IngestionToken, error) {
	token, err := r.store.GetToken(tokenID)
	if err != nil || token.TeamID != teamID {
		return nil, apierr.New(apierr.NotFound, "ingestion token not found")
	}

	if token.Status == types.TokenStatusRevoked {
		return token, nil
	}

	now := time.Now().UTC()
	token.Status = types.TokenStatusRevoked
	token.RevokedAt = &now
	token.UpdatedAt = now

	if err := r.applyUpdateToken(token); err != nil {
		return nil, err
	}

	log.WithTeamID(teamID).Info().Str("token_id", tokenID).Msg("ingestion token revoked")
	return token, nil
}

// ResolveResult is what Resolve returns for a matching active token.
type ResolveResult struct {
	TokenID       string
	TeamID        string
	AssignedShard string
}

// Resolve looks up the active token whose hash matches plaintext. It never
// raises: a miss, a hash mismatch, and a revoked token are all a nil result.
func (r *Registry) Resolve(plaintext string) (*ResolveResult, error) {
	token, err := r.store.GetTokenByHash(tokencodec.Hash(plaintext))
	if err != nil {
		return nil, nil
	}
	if token.Status != types.TokenStatusActive {
		return nil, nil
	}
	return &ResolveResult{TokenID: token.ID, TeamID: token.TeamID, AssignedShard: token.AssignedShard}, nil
}

// MarkUsed updates last_used_at for tokenID. Errors are swallowed — this
// runs on the ingest hot path and must never fail a request.
func (r *Registry) MarkUsed(tokenID string) {
	token, err := r.store.GetToken(tokenID)
	if err != nil {
		return
	}
	now := time.Now().UTC()
	token.LastUsedAt = &now
	token.UpdatedAt = now
	if err := r.applyUpdateToken(token); err != nil {
		log.Logger.Warn().Err(err).Str("token_id", tokenID).Msg("failed to record token use")
	}
}

// AssignShard is the administrative override path: it reassigns tokenID to
// shard regardless of current occupancy, logging a warning if doing so
// would put more than one team on that shard (a policy violation of the
// one-tenant-per-shard invariant, but not an error).
func (r *Registry) AssignShard(teamID, tokenID, shard string) (*types.IngestionToken, error) {
	token, err := r.store.GetToken(tokenID)
	if err != nil || token.TeamID != teamID {
		return nil, apierr.New(apierr.NotFound, "ingestion token not found")
	}

	if occupied, other := r.shardOccupiedByOtherTeam(shard, teamID); occupied {
		log.Logger.Warn().Str("shard", shard).Str("team_id", teamID).Str("other_team_id", other).
			Msg("assign_shard: reassigning to a shard already occupied by another team (one-tenant-per-shard violation, permitted as operator override)")
	}

	token.AssignedShard = shard
	token.UpdatedAt = time.Now().UTC()
	if err := r.applyUpdateToken(token); err != nil {
		return nil, err
	}
	return token, nil
}

func (r *Registry) shardOccupiedByOtherTeam(shard, teamID string) (bool, string) {
	all, err := r.store.ListTokens()
	if err != nil {
		return false, ""
	}
	for _, t := range all {
		if t.Status == types.TokenStatusActive && t.AssignedShard == shard && t.TeamID != teamID {
			return true, t.TeamID
		}
	}
	return false, ""
}

func (r *Registry) applyCreateToken(token *types.IngestionToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "failed to marshal token", err)
	}
	if err := r.cluster.Apply(cluster.Command{Op: cluster.OpCreateToken, Data: data}); err != nil {
		return apierr.Wrap(apierr.Internal, "failed to apply create_token", err)
	}
	return nil
}

func (r *Registry) applyUpdateToken(token *types.IngestionToken) error {
	data, err := json.Marshal(token)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "failed to marshal token", err)
	}
	if err := r.cluster.Apply(cluster.Command{Op: cluster.OpUpdateToken, Data: data}); err != nil {
		return apierr.Wrap(apierr.Internal, "failed to apply update_token", err)
	}
	return nil
}

// applyRotate submits both the revoke and the create as a single Raft
// command so the FSM applies them atomically: no interleaved resolve() from
// another goroutine can observe the old token revoked without the new one
// existing, or vice versa.
func (r *Registry) applyRotate(revoked, next *types.IngestionToken) error {
	payload := cluster.RotateTokenPayload{Revoked: revoked, Next: next}
	data, err := json.Marshal(payload)
	if err != nil {
		return apierr.Wrap(apierr.Internal, "failed to marshal rotate payload", err)
	}
	if err := r.cluster.Apply(cluster.Command{Op: cluster.OpRotateToken, Data: data}); err != nil {
		return apierr.Wrap(apierr.Internal, "failed to apply rotate_token", err)
	}
	return nil
}
