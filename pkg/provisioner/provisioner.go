// Package provisioner implements the idempotent tenant-storage
// provisioner: database, user, grants, and canonical tables materialized
// against the analytical store for a team.
package provisioner

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/hyperdx/ingest-control/pkg/apierr"
	"github.com/hyperdx/ingest-control/pkg/log"
	"github.com/hyperdx/ingest-control/pkg/metrics"
)

const statementTimeout = 10 * time.Second

// Config addresses the analytical store's admin endpoint.
type Config struct {
	Host     string
	User     string
	Password string
}

// Provisioner runs the tenant database/table/grant DDL sequence against a
// ClickHouse admin connection.
type Provisioner struct {
	conn driver.Conn
}

// New opens an admin connection to the analytical store. The connection is
// reused across every team's provisioning run.
func New(cfg Config) (*Provisioner, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Host},
		Auth: clickhouse.Auth{
			Username: cfg.User,
			Password: cfg.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open clickhouse admin connection: %w", err)
	}
	return &Provisioner{conn: conn}, nil
}

// Result is returned exactly once from EnsureTenantStorage; the caller is
// responsible for persisting it as the team's ManagedConnection.
type Result struct {
	Database string
	Username string
	Password string
}

// EnsureTenantStorage runs the full idempotent DDL sequence for teamID:
// database, user, grants, then the six canonical tables. Every statement is
// safe to re-run — CREATE ... IF NOT EXISTS and an idempotent
// GRANT. identifiers are derived deterministically from teamID so a second
// call against the same team reuses the same database/username.
func (p *Provisioner) EnsureTenantStorage(ctx context.Context, teamID string) (*Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ProvisioningDuration)

	database := "tenant_" + sanitizeIdent(teamID)
	username := "tenant_" + sanitizeIdent(teamID)

	password, err := generatePassword()
	if err != nil {
		metrics.ProvisioningFailuresTotal.Inc()
		return nil, apierr.Wrap(apierr.ProvisioningFailed, "failed to generate tenant password", err)
	}

	statements := []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", quoteIdent(database)),
		fmt.Sprintf("CREATE USER IF NOT EXISTS %s IDENTIFIED BY %s", quoteIdent(username), quoteLiteral(password)),
		fmt.Sprintf("GRANT SELECT, INSERT, ALTER, CREATE, DROP, TRUNCATE ON %s.* TO %s", quoteIdent(database), quoteIdent(username)),
		logsTableDDL(database),
		tracesTableDDL(database),
		sessionsTableDDL(database),
		metricsGaugeTableDDL(database),
		metricsSumTableDDL(database),
		metricsHistogramTableDDL(database),
	}

	for i, stmt := range statements {
		stmtCtx, cancel := context.WithTimeout(ctx, statementTimeout)
		err := p.conn.Exec(stmtCtx, stmt)
		cancel()
		if err != nil {
			metrics.ProvisioningFailuresTotal.Inc()
			log.Logger.Error().Err(err).Str("team_id", teamID).Int("statement_index", i).
				Msg("tenant storage provisioning step failed")
			return nil, apierr.Wrap(apierr.ProvisioningFailed, fmt.Sprintf("ddl statement %d failed", i), err)
		}
	}

	log.WithTeamID(teamID).Info().Str("database", database).Msg("tenant storage provisioned")
	return &Result{Database: database, Username: username, Password: password}, nil
}

// Close closes the underlying admin connection.
func (p *Provisioner) Close() error {
	return p.conn.Close()
}

func generatePassword() (string, error) {
	buf := make([]byte, 24) // 48 hex chars
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// sanitizeIdent strips anything but alphanumerics and underscores from a
// team id before it's embedded in a database/user name, and drops the
// identifier-quoting character itself.
func sanitizeIdent(s string) string {
	s = strings.ReplaceAll(s, "`", "")
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-':
			b.WriteRune('_')
		}
	}
	return b.String()
}

// quoteIdent wraps an identifier in ClickHouse's backtick quoting.
func quoteIdent(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "") + "`"
}

// quoteLiteral single-quotes a string literal, escaping embedded single
// quotes.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
