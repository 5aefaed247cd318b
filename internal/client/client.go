// Package client implements the Arbor client's session state machine: a
// handshake to the Directory, then per-command either a binary exchange on
// that link or a redirect to a fresh text-protocol link against a Node.
package client

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/wire"
	"github.com/arborfs/arbor/internal/wireerr"
)

// Client holds the Directory session: its control connection and the
// identity that authenticated it.
type Client struct {
	directoryAddr string
	identity      string
	out           io.Writer

	conn net.Conn
}

// New returns a Client for directoryAddr, authenticating as identity.
// Output from commands is written to out.
func New(directoryAddr, identity string, out io.Writer) *Client {
	return &Client{directoryAddr: directoryAddr, identity: identity, out: out}
}

// Connect dials the Directory and performs the REGISTER_CLIENT handshake.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := net.Dial("tcp", c.directoryAddr)
	if err != nil {
		return fmt.Errorf("client: dial directory: %w", err)
	}

	if err := wire.WriteFrame(conn, wire.MsgRegisterClient, 0, 0, c.identity, nil); err != nil {
		conn.Close()
		return fmt.Errorf("client: send handshake: %w", err)
	}
	reply, err := wire.ReadFrame(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("client: read handshake reply: %w", err)
	}
	if reply.Header.MsgType != wire.MsgAck {
		conn.Close()
		if werr, ok := wireerr.As(parseWireError(reply)); ok {
			return werr
		}
		return fmt.Errorf("client: directory rejected handshake")
	}

	c.conn = conn
	return nil
}

// Reconnect closes the current Directory link and re-authenticates. Used
// after EXEC, which the Directory closes at end of output (spec.md §4.4).
func (c *Client) Reconnect(ctx context.Context) error {
	c.Close()
	return c.Connect(ctx)
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func parseWireError(f *wire.Frame) error {
	if f.Header.MsgType != wire.MsgError {
		return nil
	}
	return wireerr.NewInternal(string(f.Payload))
}

// dispatch sends a request frame on the Directory link and returns its
// reply, translating an ERROR frame into a Go error.
func (c *Client) dispatch(msgType wire.MsgType, name string, payload []byte) (*wire.Frame, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("client: not connected")
	}
	if err := wire.WriteFrame(c.conn, msgType, 0, 0, name, payload); err != nil {
		return nil, err
	}
	reply, err := wire.ReadFrame(c.conn)
	if err != nil {
		return nil, err
	}
	if reply.Header.MsgType == wire.MsgError {
		return reply, fmt.Errorf("%s", string(reply.Payload))
	}
	return reply, nil
}

// newSessionID is a convenience for log contexts built around one REPL run;
// the Directory link itself carries no per-command id.
func newSessionID() string { return uuid.NewString() }

func logContext(ctx context.Context, identity string) context.Context {
	return logger.WithContext(ctx, logger.NewLogContext(newSessionID(), "").WithIdentity(identity))
}
