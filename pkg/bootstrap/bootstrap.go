// Package bootstrap implements the tenant bootstrap orchestrator: the
// multi-step sequence run once, at team creation, to stand up a tenant's
// storage and the canonical source graph that the collector-config
// synthesizer (pkg/pipelineconfig) later reads.
//
// The orchestration style mirrors cuemby-warren's pkg/manager CreateX
// methods: a short ordered sequence of calls, each step's failure logged
// and treated as non-fatal to the overall operation rather than rolled
// back, because every step downstream is idempotent and safe to retry.
package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/hyperdx/ingest-control/pkg/cluster"
	"github.com/hyperdx/ingest-control/pkg/log"
	"github.com/hyperdx/ingest-control/pkg/provisioner"
	"github.com/hyperdx/ingest-control/pkg/security"
	"github.com/hyperdx/ingest-control/pkg/storage"
	"github.com/hyperdx/ingest-control/pkg/types"
)

// Orchestrator runs Bootstrap for a team.
type Orchestrator struct {
	cluster             *cluster.Cluster
	store               storage.Store
	provisioner         *provisioner.Provisioner
	secrets             *security.SecretsManager
	provisioningEnabled bool
	analyticalHost      string
}

// Config holds the orchestrator's dependencies.
type Config struct {
	Cluster             *cluster.Cluster
	Store               storage.Store
	Provisioner         *provisioner.Provisioner
	Secrets             *security.SecretsManager
	ProvisioningEnabled bool
	// AnalyticalHost is recorded on the ManagedConnection as the endpoint
	// collectors should write to; it is not necessarily the admin host the
	// Provisioner talks to.
	AnalyticalHost string
}

// New constructs an Orchestrator.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		cluster:             cfg.Cluster,
		store:               cfg.Store,
		provisioner:         cfg.Provisioner,
		secrets:             cfg.Secrets,
		provisioningEnabled: cfg.ProvisioningEnabled,
		analyticalHost:      cfg.AnalyticalHost,
	}
}

// Bootstrap provisions tenant storage and the four canonical sources for
// teamID. Every step after the first is attempted even if an earlier one
// failed, since the team can always retry bootstrap later and nothing
// here is destructive.
func (o *Orchestrator) Bootstrap(ctx context.Context, teamID string) {
	if err := o.ensureStorage(ctx, teamID); err != nil {
		log.WithTeamID(teamID).Error().Err(err).Msg("bootstrap: tenant storage provisioning failed, will retry on next bootstrap call")
	}

	if err := o.ensureSources(teamID); err != nil {
		log.WithTeamID(teamID).Error().Err(err).Msg("bootstrap: source graph creation failed")
	}
}

// ensureStorage runs tenant storage provisioning and upserts the
// resulting ManagedConnection. A no-op, not an error, when provisioning
// is disabled or a connection already exists for teamID.
func (o *Orchestrator) ensureStorage(ctx context.Context, teamID string) error {
	if !o.provisioningEnabled {
		return nil
	}
	if _, err := o.store.GetManagedConnection(teamID, false); err == nil {
		return nil
	}

	result, err := o.provisioner.EnsureTenantStorage(ctx, teamID)
	if err != nil {
		return fmt.Errorf("ensure tenant storage: %w", err)
	}

	encrypted, err := o.secrets.EncryptPassword(result.Password)
	if err != nil {
		return fmt.Errorf("encrypt tenant password: %w", err)
	}

	conn := &types.ManagedConnection{
		TeamID:    teamID,
		Host:      o.analyticalHost,
		Database:  result.Database,
		Username:  result.Username,
		Password:  encrypted,
		IsManaged: true,
	}
	data, err := cluster.MarshalManagedConnection(conn)
	if err != nil {
		return fmt.Errorf("marshal managed connection: %w", err)
	}
	if err := o.cluster.Apply(cluster.Command{Op: cluster.OpPutManagedConnection, Data: data}); err != nil {
		return fmt.Errorf("apply put_managed_connection: %w", err)
	}

	log.WithTeamID(teamID).Info().Str("database", result.Database).Msg("managed connection recorded")
	return nil
}

// canonicalSources describes, per kind, the table set a freshly created
// Source should reference.
var canonicalSources = []struct {
	kind   types.SourceKind
	name   string
	tables []string
}{
	{types.SourceKindLog, "Logs", []string{provisioner.TableLogs}},
	{types.SourceKindTrace, "Traces", []string{provisioner.TableTraces}},
	{types.SourceKindSession, "Sessions", []string{provisioner.TableSessions}},
	{types.SourceKindMetric, "Metrics", []string{
		provisioner.TableMetricsGauge,
		provisioner.TableMetricsSum,
		provisioner.TableMetricsHistogram,
	}},
}

// ensureSources creates any of the four canonical sources that don't yet
// exist, then, once all four are present, patches each with the other
// three's ids to complete the cross-link graph. Cross-linking runs every
// time (not just on first creation) so a team bootstrapped before all
// four kinds existed still ends up fully linked.
func (o *Orchestrator) ensureSources(teamID string) error {
	conn, err := o.store.GetManagedConnection(teamID, false)
	if err != nil {
		return fmt.Errorf("managed connection required before creating sources: %w", err)
	}

	existing, err := o.store.ListSourcesByTeam(teamID)
	if err != nil {
		return fmt.Errorf("list existing sources: %w", err)
	}
	byKind := make(map[types.SourceKind]*types.Source, len(existing))
	for _, s := range existing {
		byKind[s.Kind] = s
	}

	for _, c := range canonicalSources {
		if _, ok := byKind[c.kind]; ok {
			continue
		}
		source := &types.Source{
			ID:       uuid.NewString(),
			TeamID:   teamID,
			Kind:     c.kind,
			Name:     c.name,
			Database: conn.Database,
			Tables:   c.tables,
		}
		if err := o.applyCreateSource(source); err != nil {
			return fmt.Errorf("create %s source: %w", c.kind, err)
		}
		byKind[c.kind] = source
	}

	if len(byKind) < len(canonicalSources) {
		// Not all four kinds exist yet (a prior call failed partway);
		// cross-linking runs on the next successful bootstrap attempt.
		return nil
	}

	return o.crossLink(teamID, byKind)
}

// crossLink patches every source with the other three's ids, forming a
// complete directed graph between the four canonical sources. It
// re-applies unconditionally; create_source is an upsert keyed by id, so
// this is safe to run on every bootstrap call.
func (o *Orchestrator) crossLink(teamID string, byKind map[types.SourceKind]*types.Source) error {
	logSrc := byKind[types.SourceKindLog]
	traceSrc := byKind[types.SourceKindTrace]
	metricSrc := byKind[types.SourceKindMetric]
	sessionSrc := byKind[types.SourceKindSession]

	linked := []*types.Source{
		withLinks(logSrc, logSrc, traceSrc, metricSrc, sessionSrc),
		withLinks(traceSrc, logSrc, traceSrc, metricSrc, sessionSrc),
		withLinks(metricSrc, logSrc, traceSrc, metricSrc, sessionSrc),
		withLinks(sessionSrc, logSrc, traceSrc, metricSrc, sessionSrc),
	}

	for _, s := range linked {
		if err := o.applyCreateSource(s); err != nil {
			return fmt.Errorf("cross-link %s source: %w", s.Kind, err)
		}
	}

	return nil
}

func withLinks(s, logSrc, traceSrc, metricSrc, sessionSrc *types.Source) *types.Source {
	cp := *s
	cp.LogSourceID = logSrc.ID
	cp.TraceSourceID = traceSrc.ID
	cp.MetricSourceID = metricSrc.ID
	cp.SessionSourceID = sessionSrc.ID
	return &cp
}

func (o *Orchestrator) applyCreateSource(source *types.Source) error {
	data, err := json.Marshal(source)
	if err != nil {
		return fmt.Errorf("marshal source: %w", err)
	}
	return o.cluster.Apply(cluster.Command{Op: cluster.OpCreateSource, Data: data})
}
