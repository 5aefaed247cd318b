package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *FileRecord {
	return &FileRecord{
		Name:  "notes.txt",
		Owner: "alice",
		ACL: []ACLEntry{
			{Identity: "bob", Permission: PermRead},
			{Identity: "carol", Permission: PermWrite},
		},
		WordCount:      12,
		CharCount:      64,
		Created:        1000,
		Modified:       2000,
		LastAccessed:   3000,
		LastAccessedBy: "bob",
		Folder:         "shared/notes",
	}
}

func TestFileRecordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	rec := sampleRecord()

	require.NoError(t, EncodeFileRecord(&buf, rec))
	assert.Equal(t, RecordSize, buf.Len())

	got, err := DecodeFileRecord(&buf)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestFileRecordEmptyACL(t *testing.T) {
	var buf bytes.Buffer
	rec := &FileRecord{Name: "a.txt", Owner: "alice"}

	require.NoError(t, EncodeFileRecord(&buf, rec))
	got, err := DecodeFileRecord(&buf)
	require.NoError(t, err)
	assert.Empty(t, got.ACL)
}

func TestFileRecordTooManyACLEntries(t *testing.T) {
	rec := sampleRecord()
	for i := 0; i < MaxACLEntries; i++ {
		rec.ACL = append(rec.ACL, ACLEntry{Identity: "x", Permission: PermRead})
	}

	var buf bytes.Buffer
	err := EncodeFileRecord(&buf, rec)
	assert.Error(t, err)
}

func TestEndpointRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	ep := Endpoint{IP: "127.0.0.1", Port: 9001}

	require.NoError(t, EncodeEndpoint(&buf, ep))
	got, err := DecodeEndpoint(&buf)
	require.NoError(t, err)
	assert.Equal(t, ep, got)
}

func TestPermissionSatisfies(t *testing.T) {
	assert.True(t, PermWrite.Satisfies(PermRead))
	assert.True(t, PermRead.Satisfies(PermRead))
	assert.False(t, PermRead.Satisfies(PermWrite))
	assert.True(t, PermWrite.Satisfies(PermNone))
}

func TestMetadataRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	m := Metadata{
		WordCount:      4,
		CharCount:      20,
		Created:        100,
		LastModified:   200,
		LastAccessed:   300,
		LastAccessedBy: "alice",
	}
	require.NoError(t, EncodeMetadata(&buf, m))
	got, err := DecodeMetadata(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}
