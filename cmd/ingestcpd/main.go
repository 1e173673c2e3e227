package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperdx/ingest-control/pkg/agentregistry"
	"github.com/hyperdx/ingest-control/pkg/api"
	"github.com/hyperdx/ingest-control/pkg/bootstrap"
	"github.com/hyperdx/ingest-control/pkg/cluster"
	"github.com/hyperdx/ingest-control/pkg/config"
	"github.com/hyperdx/ingest-control/pkg/log"
	"github.com/hyperdx/ingest-control/pkg/pipelineconfig"
	"github.com/hyperdx/ingest-control/pkg/provisioner"
	"github.com/hyperdx/ingest-control/pkg/registry"
	"github.com/hyperdx/ingest-control/pkg/security"
	"github.com/hyperdx/ingest-control/pkg/storage"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "ingestcpd",
	Short:   "Multi-tenant OpenTelemetry ingestion control plane",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("ingestcpd version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file overlaying defaults")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(teamCmd)
	rootCmd.AddCommand(tokenCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane: Raft cluster, tenant API, and OpAMP endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open storage: %w", err)
		}

		c, err := cluster.NewCluster(cluster.Config{
			NodeID:   cfg.NodeID,
			BindAddr: cfg.BindAddr,
			DataDir:  cfg.DataDir,
		}, store)
		if err != nil {
			return fmt.Errorf("failed to construct cluster: %w", err)
		}
		if err := c.Bootstrap(); err != nil {
			return fmt.Errorf("failed to bootstrap cluster: %w", err)
		}

		secrets, err := security.NewSecretsManager(security.DeriveKey(cfg.EncryptionKeySeed))
		if err != nil {
			return fmt.Errorf("failed to construct secrets manager: %w", err)
		}

		var prov *provisioner.Provisioner
		if cfg.ProvisioningEnabled {
			prov, err = provisioner.New(provisioner.Config{
				Host:     cfg.AdminHost,
				User:     cfg.AdminUser,
				Password: cfg.AdminPassword,
			})
			if err != nil {
				return fmt.Errorf("failed to construct provisioner: %w", err)
			}
		}

		boot := bootstrap.New(bootstrap.Config{
			Cluster:             c,
			Store:               store,
			Provisioner:         prov,
			Secrets:             secrets,
			ProvisioningEnabled: cfg.ProvisioningEnabled,
			AnalyticalHost:      cfg.QueryHost,
		})

		reg := registry.New(c, store, cfg.ShardCount)
		synth := pipelineconfig.New(store, secrets)
		agents := agentregistry.New(time.Duration(cfg.AgentTTLSeconds) * time.Second)
		defer agents.Close()

		srv := api.NewServer(api.Config{
			Cluster:     c,
			Store:       store,
			Registry:    reg,
			Bootstrap:   boot,
			Synthesizer: synth,
			Agents:      agents,
		})

		// OPAMP_PORT and API_PORT are two distinct listeners over the same
		// router: OpAMP's collectors and the tenant-facing CRUD clients are
		// different populations of caller and get separate ports, but there
		// is nothing handler-specific about either port, so one chi.Router
		// serves both.
		apiAddr := fmt.Sprintf(":%d", cfg.APIPort)
		opampAddr := fmt.Sprintf(":%d", cfg.OpAMPPort)

		apiServer := &http.Server{Addr: apiAddr, Handler: srv.Router()}
		opampServer := &http.Server{Addr: opampAddr, Handler: srv.Router()}

		errCh := make(chan error, 2)
		go func() {
			log.Logger.Info().Str("addr", apiAddr).Msg("serving tenant API")
			if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
		go func() {
			log.Logger.Info().Str("addr", opampAddr).Msg("serving opamp endpoint")
			if err := opampServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("opamp server: %w", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			log.Logger.Info().Msg("shutting down")
		case err := <-errCh:
			log.Logger.Error().Err(err).Msg("server error, shutting down")
		}

		apiServer.Close()
		opampServer.Close()
		if err := c.Shutdown(); err != nil {
			log.Logger.Error().Err(err).Msg("cluster shutdown failed")
		}
		return store.Close()
	},
}

// dialRegistry opens the same local BoltDB and Raft cluster the running
// daemon uses, for CLI subcommands that mutate state directly against the
// data directory rather than over HTTP. Every CLI subcommand operates
// against a single-node cluster co-located with the daemon's DataDir; there
// is no remote-admin transport in this control plane (see DESIGN.md).
func dialRegistry(cfg config.Config) (*registry.Registry, func(), error) {
	store, err := storage.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}

	c, err := cluster.NewCluster(cluster.Config{
		NodeID:   cfg.NodeID,
		BindAddr: cfg.BindAddr,
		DataDir:  cfg.DataDir,
	}, store)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to construct cluster: %w", err)
	}
	if err := c.Bootstrap(); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to bootstrap cluster: %w", err)
	}

	for i := 0; i < 50; i++ {
		if c.IsLeader() {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	cleanup := func() {
		c.Shutdown()
		store.Close()
	}
	return registry.New(c, store, cfg.ShardCount), cleanup, nil
}

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage teams",
}

var teamCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a team",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		id, _ := cmd.Flags().GetString("id")
		if id == "" {
			return fmt.Errorf("--id is required")
		}

		reg, cleanup, err := dialRegistry(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		team, err := reg.EnsureTeam(id, args[0])
		if err != nil {
			return fmt.Errorf("failed to create team: %w", err)
		}
		fmt.Printf("Team created: %s (%s)\n", team.Name, team.ID)
		return nil
	},
}

func init() {
	teamCmd.AddCommand(teamCreateCmd)
	teamCreateCmd.Flags().String("id", "", "Team id (required)")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage ingestion tokens",
}

var tokenCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an ingestion token for a team",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		teamID, _ := cmd.Flags().GetString("team")
		description, _ := cmd.Flags().GetString("description")
		if teamID == "" {
			return fmt.Errorf("--team is required")
		}

		reg, cleanup, err := dialRegistry(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := reg.Create(teamID, description)
		if err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}
		fmt.Printf("Token: %s\n", result.PlaintextToken)
		fmt.Printf("ID: %s\nAssigned shard: %s\n", result.Record.ID, result.Record.AssignedShard)
		return nil
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a team's ingestion tokens",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		teamID, _ := cmd.Flags().GetString("team")
		if teamID == "" {
			return fmt.Errorf("--team is required")
		}

		reg, cleanup, err := dialRegistry(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		tokens, err := reg.List(teamID)
		if err != nil {
			return fmt.Errorf("failed to list tokens: %w", err)
		}
		if len(tokens) == 0 {
			fmt.Println("No tokens found")
			return nil
		}
		fmt.Printf("%-36s %-10s %-10s %-12s\n", "ID", "STATUS", "SHARD", "PREFIX")
		for _, t := range tokens {
			fmt.Printf("%-36s %-10s %-10s %-12s\n", t.ID, t.Status, t.AssignedShard, t.TokenPrefix)
		}
		return nil
	},
}

var tokenRotateCmd = &cobra.Command{
	Use:   "rotate ID",
	Short: "Rotate an ingestion token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		teamID, _ := cmd.Flags().GetString("team")
		if teamID == "" {
			return fmt.Errorf("--team is required")
		}

		reg, cleanup, err := dialRegistry(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := reg.Rotate(teamID, args[0])
		if err != nil {
			return fmt.Errorf("failed to rotate token: %w", err)
		}
		fmt.Printf("New token: %s\nID: %s\n", result.PlaintextToken, result.Record.ID)
		return nil
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke ID",
	Short: "Revoke an ingestion token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		teamID, _ := cmd.Flags().GetString("team")
		if teamID == "" {
			return fmt.Errorf("--team is required")
		}

		reg, cleanup, err := dialRegistry(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		if _, err := reg.Revoke(teamID, args[0]); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
		fmt.Printf("Token revoked: %s\n", args[0])
		return nil
	},
}

var tokenAssignShardCmd = &cobra.Command{
	Use:   "assign-shard ID SHARD",
	Short: "Administratively reassign a token's shard, bypassing normal allocation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		teamID, _ := cmd.Flags().GetString("team")
		if teamID == "" {
			return fmt.Errorf("--team is required")
		}

		reg, cleanup, err := dialRegistry(cfg)
		if err != nil {
			return err
		}
		defer cleanup()

		token, err := reg.AssignShard(teamID, args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to assign shard: %w", err)
		}
		fmt.Printf("Token %s now on shard %s\n", token.ID, token.AssignedShard)
		return nil
	},
}

func init() {
	tokenCmd.AddCommand(tokenCreateCmd, tokenListCmd, tokenRotateCmd, tokenRevokeCmd, tokenAssignShardCmd)
	for _, c := range []*cobra.Command{tokenCreateCmd, tokenListCmd, tokenRotateCmd, tokenRevokeCmd, tokenAssignShardCmd} {
		c.Flags().String("team", "", "Team id (required)")
	}
	tokenCreateCmd.Flags().String("description", "", "Human-readable description for the token")
}
