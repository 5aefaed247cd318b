package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir())
	require.NoError(t, s.Init())
	return s
}

func TestStoreCreateReadDelete(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("hello world.")))

	content, err := s.ReadContent("a.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, "hello world.", string(content))

	require.NoError(t, s.Delete("a.txt"))
	assert.Nil(t, s.Get("a.txt"))

	_, err = s.ReadContent("a.txt", "alice")
	assert.Error(t, err)
}

func TestStoreCreateDuplicateRejected(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	assert.Error(t, s.Create("a.txt", "alice"))
}

func TestStoreMetadataPersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(dir)
	require.NoError(t, s.Init())
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.WriteContent("a.txt", []byte("one two three.")))
	require.NoError(t, s.AddACL("a.txt", "bob", 2))

	reloaded := NewStore(dir)
	require.NoError(t, reloaded.Init())

	meta := reloaded.Get("a.txt")
	require.NotNil(t, meta)
	assert.Equal(t, "alice", meta.Owner)
	assert.EqualValues(t, 3, meta.WordCount)
	require.Len(t, meta.ACL, 1)
	assert.Equal(t, "bob", meta.ACL[0].Identity)
}

func TestCheckPermissionOwnerAndACL(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.AddACL("a.txt", "bob", 1))

	meta := s.Get("a.txt")
	assert.True(t, meta.CheckPermission("alice", 2))
	assert.True(t, meta.CheckPermission("bob", 1))
	assert.False(t, meta.CheckPermission("bob", 2))
	assert.False(t, meta.CheckPermission("carol", 1))
}

func TestRewriteFolderPrefix(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	require.NoError(t, s.SetFolder("a.txt", "docs/old"))

	touched, err := s.RewriteFolderPrefix("docs/old", "docs/new")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, touched)
	assert.Equal(t, "docs/new", s.Get("a.txt").Folder)
}

func TestSweepOrphanSwaps(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Create("a.txt", "alice"))
	_, err := s.openSwap("a.txt", 1, 42)
	require.NoError(t, err)
	assert.True(t, s.hasSwap("a.txt", 1, 42))

	require.NoError(t, s.SweepOrphanSwaps())
	assert.False(t, s.hasSwap("a.txt", 1, 42))
}
