package cluster

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/hyperdx/ingest-control/pkg/log"
	"github.com/hyperdx/ingest-control/pkg/storage"
)

const (
	retainSnapshotCount = 2
	raftTimeout         = 10 * time.Second
)

// Config configures a single-node Cluster.
type Config struct {
	// NodeID identifies this server in the Raft configuration.
	NodeID string
	// BindAddr is the TCP address the Raft transport listens on.
	BindAddr string
	// DataDir holds the Raft log, stable store, and snapshot directory.
	DataDir string
}

// Cluster wraps a single-node raft.Raft instance over an FSM backed by
// pkg/storage.Store. Every mutation goes through Apply so that it is
// durable and linearizable before a caller observes its effect.
type Cluster struct {
	config Config
	raft   *raft.Raft
	fsm    *FSM
	store  storage.Store

	transport *raft.NetworkTransport
	logStore  raft.LogStore
	stableStore raft.StableStore
	snapshots  raft.SnapshotStore
}

// NewCluster constructs a Cluster, opening its Raft log/stable/snapshot
// stores under cfg.DataDir but not yet starting the Raft server. Call
// Bootstrap to do that.
func NewCluster(cfg Config, store storage.Store) (*Cluster, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bind address: %w", err)
	}

	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, raftTimeout, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, retainSnapshotCount, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot store: %w", err)
	}

	boltPath := filepath.Join(cfg.DataDir, "raft.db")
	logStableStore, err := raftboltdb.NewBoltStore(boltPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create raft bolt store: %w", err)
	}

	fsm := NewFSM(store)

	return &Cluster{
		config:      cfg,
		fsm:         fsm,
		store:       store,
		transport:   transport,
		logStore:    logStableStore,
		stableStore: logStableStore,
		snapshots:   snapshots,
	}, nil
}

// Bootstrap starts the Raft server as a single-voter cluster. It is safe
// to call only once, on a fresh or previously-bootstrapped data directory.
func (c *Cluster) Bootstrap() error {
	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(c.config.NodeID)

	// Tuned for a single-node deployment: fast leader establishment, no
	// network round trips to wait out. Matches cuemby-warren's manager
	// timings exactly.
	raftConfig.HeartbeatTimeout = 500 * time.Millisecond
	raftConfig.ElectionTimeout = 500 * time.Millisecond
	raftConfig.CommitTimeout = 50 * time.Millisecond
	raftConfig.LeaderLeaseTimeout = 250 * time.Millisecond

	r, err := raft.NewRaft(raftConfig, c.fsm, c.logStore, c.stableStore, c.snapshots, c.transport)
	if err != nil {
		return fmt.Errorf("failed to create raft instance: %w", err)
	}
	c.raft = r

	hasState, err := raft.HasExistingState(c.logStore, c.stableStore, c.snapshots)
	if err != nil {
		return fmt.Errorf("failed to check existing raft state: %w", err)
	}

	if !hasState {
		configuration := raft.Configuration{
			Servers: []raft.Server{
				{
					ID:      raftConfig.LocalID,
					Address: c.transport.LocalAddr(),
				},
			},
		}
		future := r.BootstrapCluster(configuration)
		if err := future.Error(); err != nil {
			return fmt.Errorf("failed to bootstrap cluster: %w", err)
		}
	}

	log.Logger.Info().Str("node_id", c.config.NodeID).Str("bind_addr", c.config.BindAddr).Msg("raft cluster bootstrapped")
	return nil
}

// Apply serializes cmd and submits it to the Raft log, blocking until it
// has been committed and locally applied.
func (c *Cluster) Apply(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	future := c.raft.Apply(data, raftTimeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("failed to apply command: %w", err)
	}

	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok && err != nil {
			return fmt.Errorf("command application failed: %w", err)
		}
	}

	return nil
}

// IsLeader reports whether this node currently holds Raft leadership.
func (c *Cluster) IsLeader() bool {
	return c.raft.State() == raft.Leader
}

// LeaderAddr returns the address of the current Raft leader, or empty if
// none is known.
func (c *Cluster) LeaderAddr() string {
	addr, _ := c.raft.LeaderWithID()
	return string(addr)
}

// Stats returns the underlying raft.Raft's diagnostic stats map. No HTTP
// endpoint exposes it.
func (c *Cluster) Stats() map[string]string {
	return c.raft.Stats()
}

// Shutdown gracefully stops the Raft server and closes the underlying
// stores.
func (c *Cluster) Shutdown() error {
	if c.raft != nil {
		if err := c.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("failed to shutdown raft: %w", err)
		}
	}
	if bs, ok := c.logStore.(*raftboltdb.BoltStore); ok {
		return bs.Close()
	}
	return nil
}
