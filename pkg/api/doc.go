// Package api implements the control plane's two HTTP surfaces:
//
//   - the session-authenticated tenant surface (/teams, /ingestion-tokens,
//     /sources), routed with github.com/go-chi/chi/v5.
//   - the unauthenticated, binary OpAMP endpoint at /v1/opamp, which
//     decodes a framed AgentToServer message (pkg/opamp), drives the agent
//     registry (pkg/agentregistry) and the collector-config synthesizer
//     (pkg/pipelineconfig), and returns a signed ServerToAgent frame.
//
// chi is adopted from the wider retrieval pack rather than cuemby-warren's
// own pkg/api, which is a gRPC service secured with mTLS client
// certificates (see DESIGN.md for why that surface was dropped): OpAMP's
// wire contract is plain HTTP carrying a single protobuf message, not a
// gRPC method, and the tenant-facing CRUD here is plain REST.
//
// Session/cookie authentication is explicitly out of scope. requireTeam
// assumes an upstream proxy has already authenticated the caller and
// forwards the resolved team id the way a reverse proxy forwards
// X-Forwarded-For; it does not itself verify a session.
package api
