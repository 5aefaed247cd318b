package logger

import "log/slog"

// Standard field keys for structured logging across the Directory, Node,
// and Client. Use these keys consistently so log lines can be grepped and
// aggregated the same way regardless of which component emitted them.
const (
	KeyIdentity  = "identity"   // authenticated client identity
	KeyFilename  = "filename"   // file name
	KeyFolder    = "folder"     // folder path
	KeySentence  = "sentence"   // 1-based sentence index
	KeyTag       = "tag"        // checkpoint tag
	KeyVerb      = "verb"       // protocol verb (READ, WRITE, UNDO, ...)
	KeyMsgType   = "msg_type"   // binary frame message type
	KeyNodeSlot  = "node_slot"  // Node registry slot index
	KeyNodeAddr  = "node_addr"  // Node public ip:port
	KeyClientIP  = "client_ip"  // client source IP
	KeyRemoteFd  = "remote_fd"  // remote connection file descriptor
	KeySessionID = "session_id" // per-connection session identifier
	KeyDuration  = "duration_ms"
	KeyError     = "error"
	KeyErrorCode = "error_code"
	KeyOperation = "operation"
)

// Identity returns a slog.Attr for the acting identity.
func Identity(id string) slog.Attr { return slog.String(KeyIdentity, id) }

// Filename returns a slog.Attr for a file name.
func Filename(name string) slog.Attr { return slog.String(KeyFilename, name) }

// Folder returns a slog.Attr for a folder path.
func Folder(path string) slog.Attr { return slog.String(KeyFolder, path) }

// Sentence returns a slog.Attr for a 1-based sentence index.
func Sentence(n int) slog.Attr { return slog.Int(KeySentence, n) }

// Tag returns a slog.Attr for a checkpoint tag.
func Tag(tag string) slog.Attr { return slog.String(KeyTag, tag) }

// Verb returns a slog.Attr for a text-protocol verb.
func Verb(v string) slog.Attr { return slog.String(KeyVerb, v) }

// MsgType returns a slog.Attr for a binary frame message type.
func MsgType(t string) slog.Attr { return slog.String(KeyMsgType, t) }

// NodeSlot returns a slog.Attr for a Node registry slot index.
func NodeSlot(slot int) slog.Attr { return slog.Int(KeyNodeSlot, slot) }

// NodeAddr returns a slog.Attr for a Node's public address.
func NodeAddr(addr string) slog.Attr { return slog.String(KeyNodeAddr, addr) }

// ClientIP returns a slog.Attr for the client's source IP.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// SessionID returns a slog.Attr for a per-connection session identifier.
func SessionID(id string) slog.Attr { return slog.String(KeySessionID, id) }

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDuration, ms) }

// Err returns a slog.Attr for an error, or a no-op attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorCode returns a slog.Attr for a wire-level error code such as ERR_404.
func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }

// Operation returns a slog.Attr for the sub-operation being performed.
func Operation(op string) slog.Attr { return slog.String(KeyOperation, op) }
