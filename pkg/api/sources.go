package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperdx/ingest-control/pkg/apierr"
	"github.com/hyperdx/ingest-control/pkg/cluster"
	"github.com/hyperdx/ingest-control/pkg/types"
)

// sourceDTO mirrors the cross-linked canonical Source record.
type sourceDTO struct {
	ID              string            `json:"id"`
	Kind            types.SourceKind  `json:"kind"`
	Name            string            `json:"name"`
	Database        string            `json:"database"`
	Tables          []string          `json:"tables"`
	LogSourceID     string            `json:"log_source_id,omitempty"`
	TraceSourceID   string            `json:"trace_source_id,omitempty"`
	MetricSourceID  string            `json:"metric_source_id,omitempty"`
	SessionSourceID string            `json:"session_source_id,omitempty"`
}

func newSourceDTO(s *types.Source) sourceDTO {
	return sourceDTO{
		ID:              s.ID,
		Kind:            s.Kind,
		Name:            s.Name,
		Database:        s.Database,
		Tables:          s.Tables,
		LogSourceID:     s.LogSourceID,
		TraceSourceID:   s.TraceSourceID,
		MetricSourceID:  s.MetricSourceID,
		SessionSourceID: s.SessionSourceID,
	}
}

type listSourcesResponse struct {
	Data []sourceDTO `json:"data"`
}

// handleListSources implements GET /sources: tenant-scoped, a team only
// ever sees its own four canonical sources.
func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.store.ListSourcesByTeam(teamFromContext(r))
	if err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "failed to list sources", err))
		return
	}
	resp := listSourcesResponse{Data: make([]sourceDTO, 0, len(sources))}
	for _, src := range sources {
		resp.Data = append(resp.Data, newSourceDTO(src))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeleteSource implements DELETE /sources/:id. It always answers
// 200: a source id the caller doesn't own is simply left untouched rather
// than reported 404, so the response never betrays whether the id exists
// at all. This is a stricter reading of "cross-tenant reads should not
// leak existence" than the token endpoints apply, since a source id
// isn't a secret the caller already holds the way an owned token id is.
func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	if err := s.ensureLeader(); err != nil {
		writeError(w, apierr.Wrap(apierr.Internal, "cluster not ready", err))
		return
	}

	id := chi.URLParam(r, "id")
	source, err := s.store.GetSource(id)
	if err == nil && source.TeamID == teamFromContext(r) {
		if err := s.deleteSource(id); err != nil {
			writeError(w, apierr.Wrap(apierr.Internal, "failed to delete source", err))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteSource(id string) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	return s.cluster.Apply(cluster.Command{Op: cluster.OpDeleteSource, Data: data})
}
