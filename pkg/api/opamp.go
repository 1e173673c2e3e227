package api

import (
	"io"
	"net/http"

	"github.com/hyperdx/ingest-control/pkg/log"
	"github.com/hyperdx/ingest-control/pkg/metrics"
	"github.com/hyperdx/ingest-control/pkg/opamp"
	"github.com/hyperdx/ingest-control/pkg/pipelineconfig"
	"github.com/hyperdx/ingest-control/pkg/types"
)

const opampContentType = "application/x-protobuf"

// serverCapabilitiesOffersRemoteConfig mirrors upstream opamp.proto's
// ServerCapabilities_ServerCapabilities_OffersRemoteConfig (0x02) — the
// only server capability bit this control plane actually exercises.
const serverCapabilitiesOffersRemoteConfig = 0x02

// maxOpAMPBody bounds how much of a heartbeat body this endpoint will
// read before giving up; real AgentToServer messages carrying only
// identifying attributes and a capabilities bitfield are a few hundred
// bytes.
const maxOpAMPBody = 1 << 20

// handleOpAMP implements the agent-management endpoint: decode an
// AgentToServer frame, update the agent registry, optionally synthesize
// and attach a remote config, and answer with a signed ServerToAgent
// frame.
func (s *Server) handleOpAMP(w http.ResponseWriter, r *http.Request) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.OpAMPRequestDuration)

	if r.Header.Get("Content-Type") != opampContentType {
		metrics.OpAMPRequestsTotal.WithLabelValues("unsupported_media_type").Inc()
		http.Error(w, "unsupported content type, expected "+opampContentType, http.StatusUnsupportedMediaType)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxOpAMPBody))
	if err != nil {
		metrics.OpAMPRequestsTotal.WithLabelValues("decode_error").Inc()
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	msg, err := opamp.DecodeAgentToServer(body)
	if err != nil {
		metrics.OpAMPRequestsTotal.WithLabelValues("decode_error").Inc()
		log.Logger.Warn().Err(err).Msg("opamp: failed to decode AgentToServer")
		http.Error(w, "malformed AgentToServer message", http.StatusBadRequest)
		return
	}

	agent := s.agents.Process(msg.InstanceUID, msg.IdentifyingAttributes, types.AgentCapabilities(msg.Capabilities))
	metrics.AgentsConnected.Set(float64(s.agents.Len()))

	resp := &opamp.ServerToAgent{
		InstanceUID:  agent.InstanceUID,
		Capabilities: serverCapabilitiesOffersRemoteConfig,
	}

	if agent.Capabilities.Has(types.AgentCapabilityAcceptsRemoteConfig) {
		shardID, ok := agent.ShardIDOf()
		if !ok {
			metrics.OpAMPRequestsTotal.WithLabelValues("agent_misconfigured").Inc()
			log.WithInstanceUID(agent.InstanceUID).Error().
				Msg("opamp: agent accepts remote config but sent no hdx.shard_id identifying attribute; set OTEL_RESOURCE_ATTRIBUTES")
			http.Error(w, "agent misconfigured: missing hdx.shard_id", http.StatusInternalServerError)
			return
		}

		rc, err := s.buildRemoteConfig(shardID)
		if err != nil {
			metrics.OpAMPRequestsTotal.WithLabelValues("internal_error").Inc()
			log.WithShardID(shardID).Error().Err(err).Msg("opamp: failed to synthesize collector config")
			http.Error(w, "failed to synthesize collector config", http.StatusInternalServerError)
			return
		}
		resp.RemoteConfig = rc
		s.agents.RecordConfigDelivered(agent.InstanceUID, rc.Hash)
	}

	metrics.OpAMPRequestsTotal.WithLabelValues("ok").Inc()
	w.Header().Set("Content-Type", opampContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(opamp.EncodeServerToAgent(resp))
}

func (s *Server) buildRemoteConfig(shardID string) (*opamp.RemoteConfig, error) {
	cfg, err := s.synthesizer.Synthesize(shardID)
	if err != nil {
		return nil, err
	}

	body, err := cfg.MarshalJSON()
	if err != nil {
		return nil, err
	}

	hash, err := pipelineconfig.ConfigHash(cfg)
	if err != nil {
		return nil, err
	}

	metrics.ConfigSynthesisTotal.WithLabelValues(cfg.Kind()).Inc()

	return &opamp.RemoteConfig{
		Body:        body,
		ContentType: "application/json",
		Hash:        hash,
	}, nil
}
