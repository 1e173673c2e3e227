// Package config reads the ingestion control plane's configuration:
// defaults, an optional YAML overlay, then environment variables, in that
// order of increasing precedence.
package config
