// Package agentregistry implements the in-memory registry of the last
// heartbeat seen from each collector instance.
//
// Grounded on johnjansen-torua's ShardRegistry: a map guarded by a
// sync.RWMutex, read operations returning copies so a caller can never
// observe or mutate the registry's internal state, writes taking the
// exclusive lock and never holding it across external I/O.
package agentregistry

import (
	"encoding/hex"
	"sync"
	"time"

	"github.com/hyperdx/ingest-control/pkg/log"
	"github.com/hyperdx/ingest-control/pkg/types"
)

// DefaultInactivityTTL is the floor for sweeping agents that have stopped
// heartbeating. See DESIGN.md's Open Question 3.
const DefaultInactivityTTL = 5 * time.Minute

// Registry is the agent registry: keyed by instance_uid, safe for
// concurrent Process calls from many shards' collectors.
type Registry struct {
	mu            sync.RWMutex
	agents        map[string]*types.AgentState
	inactivityTTL time.Duration

	stop chan struct{}
}

// New constructs a Registry and starts its inactivity sweep goroutine.
// Call Close to stop it.
func New(inactivityTTL time.Duration) *Registry {
	if inactivityTTL <= 0 {
		inactivityTTL = DefaultInactivityTTL
	}
	r := &Registry{
		agents:        make(map[string]*types.AgentState),
		inactivityTTL: inactivityTTL,
		stop:          make(chan struct{}),
	}
	go r.sweepLoop()
	return r
}

func keyFor(instanceUID []byte) string {
	return hex.EncodeToString(instanceUID)
}

// Process merges an inbound heartbeat's identifying attributes and
// capabilities into the stored entry for instanceUID, creating it (as
// UNKNOWN→REGISTERED) if absent, and returns a copy of the merged state.
// A nil identifyingAttributes or zero capabilities value leaves the
// stored value unchanged, matching OpAMP's delta-update semantics: an
// agent only reports what changed since its last heartbeat.
//
// Process never touches State beyond the initial REGISTERED transition —
// the CONFIGURED/CONFIG_CHANGED transitions are driven by
// RecordConfigDelivered, called by the OpAMP handler only when it
// actually has a config to hand back.
func (r *Registry) Process(instanceUID []byte, identifyingAttributes map[string]string, capabilities types.AgentCapabilities) *types.AgentState {
	key := keyFor(instanceUID)
	now := time.Now().UTC()

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.agents[key]
	if !ok {
		state = &types.AgentState{
			InstanceUID: instanceUID,
			State:       types.AgentStateRegistered,
		}
		r.agents[key] = state
	}

	if identifyingAttributes != nil {
		if state.IdentifyingAttributes == nil {
			state.IdentifyingAttributes = make(map[string]string, len(identifyingAttributes))
		}
		for k, v := range identifyingAttributes {
			state.IdentifyingAttributes[k] = v
		}
	}
	if capabilities != 0 {
		state.Capabilities = capabilities
	}
	state.LastSeenAt = now

	return copyState(state)
}

// RecordConfigDelivered transitions instanceUID's state upon the server
// actually handing it a RemoteConfig: CONFIGURED the first time, or
// CONFIG_CHANGED if hash differs from the last one delivered. It is a
// no-op (returns nil) if instanceUID has never been seen by Process.
func (r *Registry) RecordConfigDelivered(instanceUID []byte, hash []byte) *types.AgentState {
	key := keyFor(instanceUID)

	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.agents[key]
	if !ok {
		return nil
	}

	if state.LastConfigHash != nil && !bytesEqual(state.LastConfigHash, hash) {
		state.State = types.AgentStateConfigChanged
	} else {
		state.State = types.AgentStateConfigured
	}
	state.LastConfigHash = hash

	return copyState(state)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Get returns a copy of the stored state for instanceUID, or nil if
// unknown.
func (r *Registry) Get(instanceUID []byte) *types.AgentState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	state, ok := r.agents[keyFor(instanceUID)]
	if !ok {
		return nil
	}
	return copyState(state)
}

// Len returns the current number of tracked agents, surfaced on /metrics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Close stops the inactivity sweep goroutine.
func (r *Registry) Close() {
	close(r.stop)
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.inactivityTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	cutoff := time.Now().UTC().Add(-r.inactivityTTL)

	r.mu.Lock()
	var evicted int
	for key, state := range r.agents {
		if state.LastSeenAt.Before(cutoff) {
			delete(r.agents, key)
			evicted++
		}
	}
	r.mu.Unlock()

	if evicted > 0 {
		log.Logger.Info().Int("evicted", evicted).Msg("agent registry: swept inactive agents")
	}
}

func copyState(s *types.AgentState) *types.AgentState {
	cp := *s
	if s.IdentifyingAttributes != nil {
		cp.IdentifyingAttributes = make(map[string]string, len(s.IdentifyingAttributes))
		for k, v := range s.IdentifyingAttributes {
			cp.IdentifyingAttributes[k] = v
		}
	}
	if s.LastConfigHash != nil {
		cp.LastConfigHash = append([]byte(nil), s.LastConfigHash...)
	}
	return &cp
}
