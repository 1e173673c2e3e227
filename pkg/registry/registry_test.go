package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperdx/ingest-control/pkg/cluster"
	"github.com/hyperdx/ingest-control/pkg/storage"
	"github.com/hyperdx/ingest-control/pkg/types"
)

// newTestRegistry boots a single-node Raft cluster over a fresh BoltDB,
// waits for leadership (the same polling pattern cuemby-warren's
// scheduler_test.go uses against manager.NewManager), and returns a
// Registry over it with the given shard count.
func newTestRegistry(t *testing.T, shardCount int) *Registry {
	t.Helper()

	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c, err := cluster.NewCluster(cluster.Config{
		NodeID:   "test-node",
		BindAddr: "127.0.0.1:0",
		DataDir:  t.TempDir(),
	}, store)
	require.NoError(t, err)
	require.NoError(t, c.Bootstrap())
	t.Cleanup(func() { c.Shutdown() })

	for i := 0; i < 50; i++ {
		if c.IsLeader() {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.True(t, c.IsLeader(), "cluster did not elect itself leader in time")

	return New(c, store, shardCount)
}

func TestCreate_FirstTokenAllocatesShard(t *testing.T) {
	r := newTestRegistry(t, 2)
	_, err := r.EnsureTeam("team-1", "acme")
	require.NoError(t, err)

	res, err := r.Create("team-1", "")
	require.NoError(t, err)
	require.NotEmpty(t, res.PlaintextToken)
	require.Equal(t, "shard-0", res.Record.AssignedShard)
	require.Equal(t, types.TokenStatusActive, res.Record.Status)
}

func TestCreate_SecondTokenSameTeamInheritsShard(t *testing.T) {
	r := newTestRegistry(t, 2)
	r.EnsureTeam("team-1", "acme")

	first, err := r.Create("team-1", "")
	require.NoError(t, err)

	second, err := r.Create("team-1", "second key")
	require.NoError(t, err)
	require.Equal(t, first.Record.AssignedShard, second.Record.AssignedShard)
}

func TestCreate_ShardsExhausted(t *testing.T) {
	r := newTestRegistry(t, 1)
	r.EnsureTeam("team-a", "a")
	r.EnsureTeam("team-b", "b")

	_, err := r.Create("team-a", "")
	require.NoError(t, err)

	_, err = r.Create("team-b", "")
	require.Error(t, err)
}

func TestResolve_RoundTrip(t *testing.T) {
	r := newTestRegistry(t, 1)
	r.EnsureTeam("team-1", "acme")

	created, err := r.Create("team-1", "")
	require.NoError(t, err)

	res, err := r.Resolve(created.PlaintextToken)
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, "team-1", res.TeamID)
	require.Equal(t, created.Record.AssignedShard, res.AssignedShard)
}

func TestResolve_UnknownTokenReturnsNilNotError(t *testing.T) {
	r := newTestRegistry(t, 1)
	res, err := r.Resolve("hdx_ingest_does-not-exist")
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestRotate_OldPlaintextStopsResolvingNewDoes(t *testing.T) {
	r := newTestRegistry(t, 1)
	r.EnsureTeam("team-1", "acme")

	created, err := r.Create("team-1", "")
	require.NoError(t, err)

	rotated, err := r.Rotate("team-1", created.Record.ID)
	require.NoError(t, err)
	require.NotEqual(t, created.PlaintextToken, rotated.PlaintextToken)

	oldRes, err := r.Resolve(created.PlaintextToken)
	require.NoError(t, err)
	require.Nil(t, oldRes, "pre-rotate plaintext must stop resolving")

	newRes, err := r.Resolve(rotated.PlaintextToken)
	require.NoError(t, err)
	require.NotNil(t, newRes)
	require.Equal(t, "team-1", newRes.TeamID)
	require.Equal(t, created.Record.AssignedShard, newRes.AssignedShard)
}

func TestRevoke_TokenStopsResolving(t *testing.T) {
	r := newTestRegistry(t, 1)
	r.EnsureTeam("team-1", "acme")

	created, err := r.Create("team-1", "")
	require.NoError(t, err)

	_, err = r.Revoke("team-1", created.Record.ID)
	require.NoError(t, err)

	res, err := r.Resolve(created.PlaintextToken)
	require.NoError(t, err)
	require.Nil(t, res)
}

func TestRevoke_NotFound(t *testing.T) {
	r := newTestRegistry(t, 1)
	r.EnsureTeam("team-1", "acme")
	_, err := r.Revoke("team-1", "does-not-exist")
	require.Error(t, err)
}

func TestList_NewestFirstNoPlaintext(t *testing.T) {
	r := newTestRegistry(t, 1)
	r.EnsureTeam("team-1", "acme")

	first, err := r.Create("team-1", "first")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := r.Create("team-1", "second")
	require.NoError(t, err)

	list, err := r.List("team-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, second.Record.ID, list[0].ID)
	require.Equal(t, first.Record.ID, list[1].ID)
	for _, tok := range list {
		require.NotEmpty(t, tok.TokenHash, "sanity: hash must be present internally")
	}
}

func TestAssignShard_OverridePermittedWithWarnLog(t *testing.T) {
	r := newTestRegistry(t, 2)
	r.EnsureTeam("team-a", "a")
	r.EnsureTeam("team-b", "b")

	a, err := r.Create("team-a", "")
	require.NoError(t, err)
	b, err := r.Create("team-b", "")
	require.NoError(t, err)
	require.NotEqual(t, a.Record.AssignedShard, b.Record.AssignedShard)

	updated, err := r.AssignShard("team-b", b.Record.ID, a.Record.AssignedShard)
	require.NoError(t, err)
	require.Equal(t, a.Record.AssignedShard, updated.AssignedShard)
}

func TestMarkUsed_SwallowsErrorsForUnknownToken(t *testing.T) {
	r := newTestRegistry(t, 1)
	require.NotPanics(t, func() { r.MarkUsed("does-not-exist") })
}
