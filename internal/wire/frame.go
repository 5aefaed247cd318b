// Package wire implements the fixed binary frame header and message
// catalogue shared by the Client<->Directory and Directory<->Node links.
//
// Every frame is a fixed header followed by an opaque payload. The header
// layout must stay byte-exact to interoperate with anything else speaking
// this protocol, so it is encoded with encoding/binary over a fixed-size
// struct rather than through a general-purpose serializer.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// NameFieldSize is the fixed width of a frame's name field, in bytes.
const NameFieldSize = 256

// MaxPayloadSize bounds PayloadLength to protect against a hostile or
// corrupt peer claiming an unbounded frame body.
const MaxPayloadSize = 16 * 1024 * 1024

// byteOrder fixes the wire's integer encoding. The source leaves this to
// the host; this implementation pins little-endian.
var byteOrder = binary.LittleEndian

// MsgType enumerates every frame type exchanged on the binary links.
type MsgType uint16

const (
	MsgUnknown MsgType = iota

	// Client <-> Directory
	MsgRegisterClient
	MsgAck
	MsgError
	MsgCreate
	MsgDelete
	MsgUndo
	MsgRead
	MsgWrite
	MsgStream
	MsgCheckpoint
	MsgViewCheckpoint
	MsgRevert
	MsgListCheckpoints
	MsgLocateFile
	MsgReadRedirect
	MsgLocateResponse
	MsgAddAccess
	MsgRemAccess
	MsgInfoResponse
	MsgListResponse
	MsgViewResponse
	MsgSSDeadReport
	MsgMove
	MsgChown
	MsgInfo
	MsgView
	MsgViewFolder
	MsgExec

	// Node <-> Directory
	MsgRegister
	MsgRegisterFile
	MsgRegisterComplete
	MsgInternalRead
	MsgInternalData
	MsgInternalGetMetadata
	MsgInternalMetadataResp
	MsgInternalAddAccess
	MsgInternalRemAccess
	MsgInternalSetOwner
	MsgInternalSetFolder
)

var msgTypeNames = map[MsgType]string{
	MsgUnknown:              "UNKNOWN",
	MsgRegisterClient:       "REGISTER_CLIENT",
	MsgAck:                  "ACK",
	MsgError:                "ERROR",
	MsgCreate:               "CREATE",
	MsgDelete:               "DELETE",
	MsgUndo:                 "UNDO",
	MsgRead:                 "READ",
	MsgWrite:                "WRITE",
	MsgStream:               "STREAM",
	MsgCheckpoint:           "CHECKPOINT",
	MsgViewCheckpoint:       "VIEWCHECKPOINT",
	MsgRevert:               "REVERT",
	MsgListCheckpoints:      "LISTCHECKPOINTS",
	MsgLocateFile:           "LOCATE_FILE",
	MsgReadRedirect:         "READ_REDIRECT",
	MsgLocateResponse:       "LOCATE_RESPONSE",
	MsgAddAccess:            "ADD_ACCESS",
	MsgRemAccess:            "REM_ACCESS",
	MsgInfoResponse:         "INFO_RESPONSE",
	MsgListResponse:         "LIST_RESPONSE",
	MsgViewResponse:         "VIEW_RESPONSE",
	MsgSSDeadReport:         "SS_DEAD_REPORT",
	MsgMove:                 "MOVE",
	MsgChown:                "CHOWN",
	MsgInfo:                 "INFO",
	MsgView:                 "VIEW",
	MsgViewFolder:           "VIEWFOLDER",
	MsgExec:                 "EXEC",
	MsgRegister:             "REGISTER",
	MsgRegisterFile:         "REGISTER_FILE",
	MsgRegisterComplete:     "REGISTER_COMPLETE",
	MsgInternalRead:         "INTERNAL_READ",
	MsgInternalData:         "INTERNAL_DATA",
	MsgInternalGetMetadata:  "INTERNAL_GET_METADATA",
	MsgInternalMetadataResp: "INTERNAL_METADATA_RESP",
	MsgInternalAddAccess:    "INTERNAL_ADD_ACCESS",
	MsgInternalRemAccess:    "INTERNAL_REM_ACCESS",
	MsgInternalSetOwner:     "INTERNAL_SET_OWNER",
	MsgInternalSetFolder:    "INTERNAL_SET_FOLDER",
}

func (t MsgType) String() string {
	if name, ok := msgTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MsgType(%d)", uint16(t))
}

// rawHeader is the exact on-wire layout: msg_type, source, dest
// (all u16), payload_length (u32), then a fixed 256-byte name field.
type rawHeader struct {
	MsgType       uint16
	Source        uint16
	Dest          uint16
	PayloadLength uint32
	Name          [NameFieldSize]byte
}

// HeaderSize is the fixed encoded size of a frame header, in bytes.
const HeaderSize = 2 + 2 + 2 + 4 + NameFieldSize

// Header is the decoded form of a frame's fixed fields.
type Header struct {
	MsgType       MsgType
	Source        uint16
	Dest          uint16
	PayloadLength uint32
	Name          string
}

// Frame is a complete decoded message: header plus opaque payload bytes.
type Frame struct {
	Header  Header
	Payload []byte
}

func encodeName(s string) [NameFieldSize]byte {
	var buf [NameFieldSize]byte
	n := copy(buf[:], s)
	_ = n
	return buf
}

func decodeName(buf [NameFieldSize]byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// WriteFrame encodes and writes a complete frame: header then payload.
func WriteFrame(w io.Writer, msgType MsgType, source, dest uint16, name string, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("wire: payload of %d bytes exceeds max %d", len(payload), MaxPayloadSize)
	}
	if len(name) > NameFieldSize {
		return fmt.Errorf("wire: name field %q exceeds %d bytes", name, NameFieldSize)
	}

	raw := rawHeader{
		MsgType:       uint16(msgType),
		Source:        source,
		Dest:          dest,
		PayloadLength: uint32(len(payload)),
		Name:          encodeName(name),
	}

	if err := binary.Write(w, byteOrder, raw.MsgType); err != nil {
		return fmt.Errorf("wire: write msg_type: %w", err)
	}
	if err := binary.Write(w, byteOrder, raw.Source); err != nil {
		return fmt.Errorf("wire: write source: %w", err)
	}
	if err := binary.Write(w, byteOrder, raw.Dest); err != nil {
		return fmt.Errorf("wire: write dest: %w", err)
	}
	if err := binary.Write(w, byteOrder, raw.PayloadLength); err != nil {
		return fmt.Errorf("wire: write payload_length: %w", err)
	}
	if _, err := w.Write(raw.Name[:]); err != nil {
		return fmt.Errorf("wire: write name: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("wire: write payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads and decodes a complete frame from r.
func ReadFrame(r io.Reader) (*Frame, error) {
	var raw rawHeader

	if err := binary.Read(r, byteOrder, &raw.MsgType); err != nil {
		return nil, err
	}
	if err := binary.Read(r, byteOrder, &raw.Source); err != nil {
		return nil, fmt.Errorf("wire: read source: %w", err)
	}
	if err := binary.Read(r, byteOrder, &raw.Dest); err != nil {
		return nil, fmt.Errorf("wire: read dest: %w", err)
	}
	if err := binary.Read(r, byteOrder, &raw.PayloadLength); err != nil {
		return nil, fmt.Errorf("wire: read payload_length: %w", err)
	}
	if _, err := io.ReadFull(r, raw.Name[:]); err != nil {
		return nil, fmt.Errorf("wire: read name: %w", err)
	}

	if raw.PayloadLength > MaxPayloadSize {
		return nil, fmt.Errorf("wire: payload_length %d exceeds max %d", raw.PayloadLength, MaxPayloadSize)
	}

	payload := make([]byte, raw.PayloadLength)
	if raw.PayloadLength > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("wire: read payload: %w", err)
		}
	}

	return &Frame{
		Header: Header{
			MsgType:       MsgType(raw.MsgType),
			Source:        raw.Source,
			Dest:          raw.Dest,
			PayloadLength: raw.PayloadLength,
			Name:          decodeName(raw.Name),
		},
		Payload: payload,
	}, nil
}
