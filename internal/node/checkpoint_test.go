package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpointViewRoundTrip(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("snapshot content.")))

	require.NoError(t, s.Checkpoint("a.txt", "v1", "alice"))

	content, err := s.ViewCheckpoint("a.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, "snapshot content.", string(content))
}

func TestCheckpointDuplicateTagRejected(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.Checkpoint("a.txt", "v1", "alice"))
	assert.Error(t, s.Checkpoint("a.txt", "v1", "alice"))
}

func TestCheckpointImmutableToLaterEdits(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("original.")))
	require.NoError(t, s.Checkpoint("a.txt", "v1", "alice"))

	require.NoError(t, s.WriteContent("a.txt", []byte("changed.")))

	content, err := s.ViewCheckpoint("a.txt", "v1")
	require.NoError(t, err)
	assert.Equal(t, "original.", string(content))
}

func TestListCheckpointsOrdered(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.Checkpoint("a.txt", "v1", "alice"))
	require.NoError(t, s.Checkpoint("a.txt", "v2", "alice"))

	metas, err := s.ListCheckpoints("a.txt")
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "v1", metas[0].Tag)
	assert.Equal(t, "v2", metas[1].Tag)
}

func TestRevertRestoresCheckpointAndAllowsUndo(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("original.")))
	require.NoError(t, s.Checkpoint("a.txt", "v1", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("newer.")))

	require.NoError(t, s.Revert("a.txt", "v1", "alice"))
	content, err := s.ReadContent("a.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, "original.", string(content))

	require.NoError(t, s.Undo("a.txt"))
	content, err = s.ReadContent("a.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, "newer.", string(content))
}

func TestViewMissingCheckpointErrors(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	_, err := s.ViewCheckpoint("a.txt", "missing")
	assert.Error(t, err)
}
