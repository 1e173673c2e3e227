/*
Package log provides structured logging for the ingestion control plane
using zerolog.

A single package-level Logger is configured once via Init, then every other
package derives component loggers from it (WithComponent, WithTeamID,
WithShardID, WithInstanceUID) instead of threading a logger through every
constructor.

Secrets — ingestion token plaintexts and tenant database passwords — must
never reach a log field. Callers pass opaque ids (team id, token id, shard
id) to the With* helpers, never the credential itself.
*/
package log
