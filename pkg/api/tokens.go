package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperdx/ingest-control/pkg/apierr"
	"github.com/hyperdx/ingest-control/pkg/types"
)

// tokenDTO is the shape GET /ingestion-tokens returns: never the
// plaintext, only a display prefix.
type tokenDTO struct {
	ID            string     `json:"id"`
	TokenPrefix   string     `json:"token_prefix"`
	Status        string     `json:"status"`
	AssignedShard string     `json:"assigned_shard"`
	Description   string     `json:"description,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

func newTokenDTO(t *types.IngestionToken) tokenDTO {
	return tokenDTO{
		ID:            t.ID,
		TokenPrefix:   t.TokenPrefix,
		Status:        string(t.Status),
		AssignedShard: t.AssignedShard,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
		LastUsedAt:    t.LastUsedAt,
		RevokedAt:     t.RevokedAt,
	}
}

type listTokensResponse struct {
	Data []tokenDTO `json:"data"`
}

// handleListTokens implements GET /ingestion-tokens.
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := s.registry.List(teamFromContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	resp := listTokensResponse{Data: make([]tokenDTO, 0, len(tokens))}
	for _, t := range tokens {
		resp.Data = append(resp.Data, newTokenDTO(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// tokenRecordDTO is the record half of the create/rotate response. It has
// no assigned_shard field, including on a team's first create, which is
// when a shard is allocated.
type tokenRecordDTO struct {
	ID          string    `json:"id"`
	TokenPrefix string    `json:"token_prefix"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type createTokenResponse struct {
	Token       string         `json:"token"`
	TokenRecord tokenRecordDTO `json:"token_record"`
}

type createTokenRequest struct {
	Description string `json:"description"`
}

// handleCreateToken implements POST /ingestion-tokens.
func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureLeader(); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "cluster not ready", err))
		return
	}

	var req createTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := s.registry.Create(teamFromContext(r), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createTokenResponse{
		Token: result.PlaintextToken,
		TokenRecord: tokenRecordDTO{
			ID:          result.Record.ID,
			TokenPrefix: result.Record.TokenPrefix,
			Status:      string(result.Record.Status),
			CreatedAt:   result.Record.CreatedAt,
		},
	})
}

// handleRotateToken implements POST /ingestion-tokens/:id/rotate.
func (s *Server) handleRotateToken(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureLeader(); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "cluster not ready", err))
		return
	}

	tokenID := chi.URLParam(r, "id")
	result, err := s.registry.Rotate(teamFromContext(r), tokenID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, createTokenResponse{
		Token: result.PlaintextToken,
		TokenRecord: tokenRecordDTO{
			ID:          result.Record.ID,
			TokenPrefix: result.Record.TokenPrefix,
			Status:      string(result.Record.Status),
			CreatedAt:   result.Record.CreatedAt,
		},
	})
}

// handleDeleteToken implements DELETE /ingestion-tokens/:id: 200 on
// success, 404 if the token doesn't exist or belongs to another team
// (registry.Revoke predicates on team_id) — unlike sources, tokens report
// NOT_FOUND rather than a silent no-op 200, since a 404 here leaks
// nothing an authenticated caller doesn't already know: its own token
// ids.
func (s *Server) handleDeleteToken(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureLeader(); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "cluster not ready", err))
		return
	}

	tokenID := chi.URLParam(r, "id")
	if _, err := s.registry.Revoke(teamFromContext(r), tokenID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type assignShardRequest struct {
	AssignedShard string `json:"assigned_shard"`
}

type assignShardResponse struct {
	ID            string `json:"id"`
	AssignedShard string `json:"assigned_shard"`
}

// handleAssignShard implements PATCH /ingestion-tokens/:id/shard, the
// administrative override path of the assign_shard operation.
func (s *Server) handleAssignShard(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureLeader(); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "cluster not ready", err))
		return
	}

	var req assignShardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.AssignedShard == "" {
		writeError(w, apierr.New(apierr.Invalid, "assigned_shard is required"))
		return
	}

	tokenID := chi.URLParam(r, "id")
	token, err := s.registry.AssignShard(teamFromContext(r), tokenID, req.AssignedShard)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, assignShardResponse{ID: token.ID, AssignedShard: token.AssignedShard})
}
