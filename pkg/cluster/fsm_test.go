package cluster

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperdx/ingest-control/pkg/storage"
	"github.com/hyperdx/ingest-control/pkg/types"
)

// fakeSnapshotSink is a minimal in-memory raft.SnapshotSink for exercising
// FSM.Snapshot/Persist without a real raft.SnapshotStore.
type fakeSnapshotSink struct {
	buf bytes.Buffer
}

func (s *fakeSnapshotSink) Write(p []byte) (int, error) { return s.buf.Write(p) }
func (s *fakeSnapshotSink) Close() error                { return nil }
func (s *fakeSnapshotSink) ID() string                  { return "test-snapshot" }
func (s *fakeSnapshotSink) Cancel() error                { return nil }
func (s *fakeSnapshotSink) readCloser() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(s.buf.Bytes()))
}

func newTestFSM(t *testing.T) (*FSM, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewFSM(store), store
}

func applyCommand(t *testing.T, fsm *FSM, op string, payload interface{}) interface{} {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	cmd := Command{Op: op, Data: data}
	cmdBytes, err := json.Marshal(cmd)
	require.NoError(t, err)
	return fsm.Apply(&raft.Log{Data: cmdBytes})
}

// applyManagedConnection applies an OpPutManagedConnection command built the
// way real callers (pkg/bootstrap) must build it, through
// MarshalManagedConnection rather than applyCommand's generic json.Marshal
// on the domain type — the domain type's Password field is tagged json:"-"
// and would otherwise come through empty.
func applyManagedConnection(t *testing.T, fsm *FSM, conn *types.ManagedConnection) interface{} {
	t.Helper()
	data, err := MarshalManagedConnection(conn)
	require.NoError(t, err)
	cmdBytes, err := json.Marshal(Command{Op: OpPutManagedConnection, Data: data})
	require.NoError(t, err)
	return fsm.Apply(&raft.Log{Data: cmdBytes})
}

func TestFSMApply_CreateTeam(t *testing.T) {
	fsm, store := newTestFSM(t)

	team := &types.Team{ID: "team-1", Name: "acme"}
	result := applyCommand(t, fsm, OpCreateTeam, team)
	assert.Nil(t, result)

	got, err := store.GetTeam("team-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", got.Name)
}

func TestFSMApply_CreateAndUpdateToken(t *testing.T) {
	fsm, store := newTestFSM(t)

	token := &types.IngestionToken{
		ID:        "tok-1",
		TeamID:    "team-1",
		TokenHash: "hash-a",
		Status:    types.TokenStatusActive,
	}
	require.Nil(t, applyCommand(t, fsm, OpCreateToken, token))

	got, err := store.GetTokenByHash("hash-a")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.ID)

	// update: same ID, new hash
	token.TokenHash = "hash-b"
	require.Nil(t, applyCommand(t, fsm, OpUpdateToken, token))

	_, err = store.GetTokenByHash("hash-a")
	assert.Error(t, err, "stale hash index entry should be gone after the hash changed")

	got, err = store.GetTokenByHash("hash-b")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got.ID)
}

func TestFSMApply_RotateToken(t *testing.T) {
	fsm, store := newTestFSM(t)

	token := &types.IngestionToken{
		ID: "tok-1", TeamID: "team-1", TokenHash: "hash-a", Status: types.TokenStatusActive,
	}
	require.Nil(t, applyCommand(t, fsm, OpCreateToken, token))

	revoked := *token
	revoked.Status = types.TokenStatusRevoked
	next := &types.IngestionToken{
		ID: "tok-2", TeamID: "team-1", TokenHash: "hash-b", Status: types.TokenStatusActive,
	}

	result := applyCommand(t, fsm, OpRotateToken, RotateTokenPayload{Revoked: &revoked, Next: next})
	assert.Nil(t, result)

	old, err := store.GetToken("tok-1")
	require.NoError(t, err)
	assert.Equal(t, types.TokenStatusRevoked, old.Status)

	_, err = store.GetTokenByHash("hash-a")
	assert.Error(t, err, "revoked token's hash index entry must be gone")

	got, err := store.GetTokenByHash("hash-b")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", got.ID)
}

func TestFSMApply_PutManagedConnectionAndSource(t *testing.T) {
	fsm, store := newTestFSM(t)

	conn := &types.ManagedConnection{TeamID: "team-1", Host: "ch-1", Password: "ciphertext"}
	require.Nil(t, applyManagedConnection(t, fsm, conn))

	got, err := store.GetManagedConnection("team-1", true)
	require.NoError(t, err)
	assert.Equal(t, "ciphertext", got.Password)

	source := &types.Source{ID: "src-1", TeamID: "team-1", Kind: types.SourceKindLog}
	require.Nil(t, applyCommand(t, fsm, OpCreateSource, source))

	sources, err := store.ListSourcesByTeam("team-1")
	require.NoError(t, err)
	require.Len(t, sources, 1)

	require.Nil(t, applyCommand(t, fsm, OpDeleteSource, "src-1"))
	sources, err = store.ListSourcesByTeam("team-1")
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestFSMApply_UnknownOp(t *testing.T) {
	fsm, _ := newTestFSM(t)
	result := applyCommand(t, fsm, "not_a_real_op", map[string]string{})
	assert.Error(t, result.(error))
}

func TestFSMSnapshotRestore_RoundTrip(t *testing.T) {
	fsm, store := newTestFSM(t)

	require.Nil(t, applyCommand(t, fsm, OpCreateTeam, &types.Team{ID: "team-1", Name: "acme"}))
	require.Nil(t, applyCommand(t, fsm, OpCreateToken, &types.IngestionToken{
		ID: "tok-1", TeamID: "team-1", TokenHash: "hash-a", Status: types.TokenStatusActive,
	}))
	require.Nil(t, applyManagedConnection(t, fsm, &types.ManagedConnection{
		TeamID: "team-1", Host: "ch-1", Password: "ciphertext",
	}))
	require.Nil(t, applyCommand(t, fsm, OpCreateSource, &types.Source{
		ID: "src-1", TeamID: "team-1", Kind: types.SourceKindTrace,
	}))

	snap, err := fsm.Snapshot()
	require.NoError(t, err)

	sink := &fakeSnapshotSink{}
	require.NoError(t, snap.Persist(sink))
	snap.Release()

	restoreStore, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { restoreStore.Close() })
	restored := NewFSM(restoreStore)

	require.NoError(t, restored.Restore(sink.readCloser()))

	team, err := restoreStore.GetTeam("team-1")
	require.NoError(t, err)
	assert.Equal(t, "acme", team.Name)

	token, err := restoreStore.GetToken("tok-1")
	require.NoError(t, err)
	assert.Equal(t, "hash-a", token.TokenHash)

	conn, err := restoreStore.GetManagedConnection("team-1", true)
	require.NoError(t, err)
	assert.Equal(t, "ciphertext", conn.Password)

	sources, err := restoreStore.ListSourcesByTeam("team-1")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, types.SourceKindTrace, sources[0].Kind)
}
