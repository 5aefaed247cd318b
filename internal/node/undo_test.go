package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupUndoRestoresPreviousContent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("version one.")))

	require.NoError(t, s.Backup("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("version two.")))

	require.NoError(t, s.Undo("a.txt"))

	content, err := s.ReadContent("a.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, "version one.", string(content))
}

func TestUndoNewestUnusedFirst(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("v1.")))
	require.NoError(t, s.Backup("a.txt", "alice"))

	require.NoError(t, s.WriteContent("a.txt", []byte("v2.")))
	require.NoError(t, s.Backup("a.txt", "alice"))

	require.NoError(t, s.WriteContent("a.txt", []byte("v3.")))

	require.NoError(t, s.Undo("a.txt"))
	content, err := s.ReadContent("a.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, "v2.", string(content))

	require.NoError(t, s.Undo("a.txt"))
	content, err = s.ReadContent("a.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, "v1.", string(content))
}

func TestUndoExhaustedHistoryErrors(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("only version.")))

	assert.Error(t, s.Undo("a.txt"))
}

func TestUndoSkipsAlreadyUsedEntries(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("v1.")))
	require.NoError(t, s.Backup("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("v2.")))

	require.NoError(t, s.Undo("a.txt"))
	assert.Error(t, s.Undo("a.txt"))
}
