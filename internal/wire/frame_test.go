package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello world")

	err := WriteFrame(&buf, MsgCreate, 1, 2, "a.txt", payload)
	require.NoError(t, err)

	frame, err := ReadFrame(&buf)
	require.NoError(t, err)

	assert.Equal(t, MsgCreate, frame.Header.MsgType)
	assert.Equal(t, uint16(1), frame.Header.Source)
	assert.Equal(t, uint16(2), frame.Header.Dest)
	assert.Equal(t, "a.txt", frame.Header.Name)
	assert.Equal(t, payload, frame.Payload)
}

func TestWriteFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgAck, 0, 0, "", nil))

	frame, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgAck, frame.Header.MsgType)
	assert.Empty(t, frame.Payload)
}

func TestWriteFrameNameTooLong(t *testing.T) {
	var buf bytes.Buffer
	longName := make([]byte, NameFieldSize+1)
	err := WriteFrame(&buf, MsgCreate, 0, 0, string(longName), nil)
	assert.Error(t, err)
}

func TestWriteFramePayloadTooLarge(t *testing.T) {
	var buf bytes.Buffer
	payload := make([]byte, MaxPayloadSize+1)
	err := WriteFrame(&buf, MsgWrite, 0, 0, "f", payload)
	assert.Error(t, err)
}

func TestReadFrameRejectsOversizedPayloadLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, MsgWrite, 0, 0, "f", []byte("ok")))

	// Corrupt payload_length in place to exceed MaxPayloadSize.
	encoded := buf.Bytes()
	byteOrder.PutUint32(encoded[4:8], MaxPayloadSize+1)

	_, err := ReadFrame(bytes.NewReader(encoded))
	assert.Error(t, err)
}

func TestMsgTypeStringKnownAndUnknown(t *testing.T) {
	assert.Equal(t, "CREATE", MsgCreate.String())
	assert.Contains(t, MsgType(9999).String(), "MsgType")
}
