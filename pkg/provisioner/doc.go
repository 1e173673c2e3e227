/*
Package provisioner implements the tenant storage provisioner.

It drives the analytical store (ClickHouse, via
github.com/ClickHouse/clickhouse-go/v2) the same way cuemby-warren's
pkg/manager provisions a container's backing resources before it is
scheduled: a short, ordered sequence of idempotent calls, each wrapped in
apierr so the caller can distinguish a provisioning failure (non-fatal —
bootstrap logs it and retries on the next call) from anything else.

Every DDL statement in schema.go is CREATE ... IF NOT EXISTS; the grant is
a plain GRANT, which ClickHouse treats as idempotent. Re-running
EnsureTenantStorage against an already-provisioned team is always safe,
and deliberately does not rotate the tenant password — pkg/bootstrap only
calls this once per team and persists the returned credentials.
*/
package provisioner
