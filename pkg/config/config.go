// Package config loads the ingestion control plane's runtime configuration:
// typed environment variables with defaults, optionally overlaid by a YAML
// file. Environment variables always win over the file, and the file always
// wins over the built-in default, mirroring the layering cmd/warren's flags
// imply for cluster init.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables this control plane exposes.
type Config struct {
	// ShardCount is the number of ingestion shards available for
	// allocation; SHARD_COUNT, default 1.
	ShardCount int `yaml:"shard_count"`

	// ProvisioningEnabled toggles whether team creation runs the tenant
	// storage provisioner; PROVISIONING_ENABLED, default false.
	ProvisioningEnabled bool `yaml:"provisioning_enabled"`

	// AdminHost/AdminUser/AdminPassword address the analytical store's
	// admin endpoint used by pkg/provisioner.
	AdminHost     string `yaml:"admin_host"`
	AdminUser     string `yaml:"admin_user"`
	AdminPassword string `yaml:"admin_password"`

	// QueryHost is the analytical store endpoint tenants query against.
	// Collectors do not receive it: their clickhouse exporter's endpoint is
	// the CLICKHOUSE_ENDPOINT env reference.
	QueryHost string `yaml:"query_host"`

	// OpAMPPort and APIPort are the listen ports for the two HTTP
	// surfaces in pkg/api.
	OpAMPPort int `yaml:"opamp_port"`
	APIPort   int `yaml:"api_port"`

	// DataDir holds the BoltDB file and the Raft log/stable/snapshot
	// directory.
	DataDir string `yaml:"data_dir"`

	// NodeID and BindAddr configure the single-node Raft cluster.
	NodeID   string `yaml:"node_id"`
	BindAddr string `yaml:"bind_addr"`

	// EncryptionKeySeed derives the AES-256 key pkg/security uses to
	// encrypt tenant database passwords at rest. INGESTCP_ENCRYPTION_KEY.
	EncryptionKeySeed string `yaml:"encryption_key_seed"`

	// AgentTTLSeconds is the agent-registry inactivity TTL (see
	// DESIGN.md's Open Question 3).
	AgentTTLSeconds int `yaml:"agent_ttl_seconds"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the built-in defaults, before any file or environment
// overlay is applied.
func Default() Config {
	return Config{
		ShardCount:          1,
		ProvisioningEnabled: false,
		AdminHost:           "localhost:9000",
		QueryHost:           "localhost:9000",
		OpAMPPort:           4320,
		APIPort:             8080,
		DataDir:             "./data",
		NodeID:              "node-1",
		BindAddr:            "127.0.0.1:9200",
		EncryptionKeySeed:   "dev-only-insecure-seed",
		AgentTTLSeconds:     300,
		LogLevel:            "info",
		LogJSON:             false,
	}
}

// Load builds a Config starting from Default, overlaying yamlPath if
// non-empty, then overlaying any set environment variables. An empty
// yamlPath is not an error — the defaults and environment are enough to run
// a development instance.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", yamlPath, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("SHARD_COUNT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ShardCount = n
		}
	}
	if v, ok := os.LookupEnv("PROVISIONING_ENABLED"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.ProvisioningEnabled = b
		}
	}
	if v, ok := os.LookupEnv("CLICKHOUSE_ADMIN_HOST"); ok {
		cfg.AdminHost = v
	}
	if v, ok := os.LookupEnv("CLICKHOUSE_ADMIN_USER"); ok {
		cfg.AdminUser = v
	}
	if v, ok := os.LookupEnv("CLICKHOUSE_ADMIN_PASSWORD"); ok {
		cfg.AdminPassword = v
	}
	if v, ok := os.LookupEnv("CLICKHOUSE_QUERY_HOST"); ok {
		cfg.QueryHost = v
	}
	if v, ok := os.LookupEnv("OPAMP_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OpAMPPort = n
		}
	}
	if v, ok := os.LookupEnv("API_PORT"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.APIPort = n
		}
	}
	if v, ok := os.LookupEnv("DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := os.LookupEnv("NODE_ID"); ok {
		cfg.NodeID = v
	}
	if v, ok := os.LookupEnv("BIND_ADDR"); ok {
		cfg.BindAddr = v
	}
	if v, ok := os.LookupEnv("INGESTCP_ENCRYPTION_KEY"); ok {
		cfg.EncryptionKeySeed = v
	}
	if v, ok := os.LookupEnv("AGENT_TTL_SECONDS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AgentTTLSeconds = n
		}
	}
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("LOG_JSON"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.LogJSON = b
		}
	}
}
