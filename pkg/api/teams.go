package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hyperdx/ingest-control/pkg/apierr"
	"github.com/hyperdx/ingest-control/pkg/log"
)

type createTeamRequest struct {
	Name string `json:"name"`
}

type createTeamResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// handleCreateTeam implements team signup. It isn't part of the tenant
// CRUD surface a UI would expose, but the bootstrap orchestrator has to
// be invoked from somewhere, and a registered team is a precondition for
// every other tenant operation.
//
// Bootstrap runs in the background: provisioning a tenant's ClickHouse
// database is slow and its failure must never block team creation, so
// the HTTP response returns as soon as the team record itself is durable.
func (s *Server) handleCreateTeam(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureLeader(); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "cluster not ready", err))
		return
	}

	var req createTeamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name == "" {
		writeError(w, apierr.New(apierr.Invalid, "name is required"))
		return
	}

	teamID := uuid.NewString()
	team, err := s.registry.EnsureTeam(teamID, req.Name)
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "failed to create team", err))
		return
	}

	if s.bootstrap != nil {
		go func(teamID string) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			s.bootstrap.Bootstrap(ctx, teamID)
		}(team.ID)
	} else {
		log.WithTeamID(team.ID).Warn().Msg("team created with no bootstrap orchestrator configured, storage will not be provisioned")
	}

	writeJSON(w, http.StatusOK, createTeamResponse{ID: team.ID, Name: team.Name, CreatedAt: team.CreatedAt})
}
