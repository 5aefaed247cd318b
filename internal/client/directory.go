package client

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/arborfs/arbor/internal/wire"
)

// Create sends CREATE and reports the Directory's ACK/ERROR.
func (c *Client) Create(name string) error {
	_, err := c.dispatch(wire.MsgCreate, name, nil)
	return err
}

// Delete sends DELETE.
func (c *Client) Delete(name string) error {
	_, err := c.dispatch(wire.MsgDelete, name, nil)
	return err
}

// Undo sends the Directory-forwarded UNDO, used outside of an open WRITE
// session on a Node (the Directory holds no lock state of its own; it
// simply forwards to the owning Node).
func (c *Client) Undo(name string) error {
	_, err := c.dispatch(wire.MsgUndo, name, nil)
	return err
}

// Move renames every file under oldPrefix to live under newPrefix.
func (c *Client) Move(oldPrefix, newPrefix string) error {
	_, err := c.dispatch(wire.MsgMove, oldPrefix, []byte(newPrefix))
	return err
}

// Chown reassigns name's owner to newOwner.
func (c *Client) Chown(name, newOwner string) error {
	_, err := c.dispatch(wire.MsgChown, name, []byte(newOwner))
	return err
}

// Grant adds or updates identity's ACL entry for name.
func (c *Client) Grant(name, identity string, perm wire.Permission) error {
	var buf bytes.Buffer
	if err := wire.EncodeAccessControl(&buf, wire.AccessControl{Identity: identity, Permission: perm}); err != nil {
		return err
	}
	_, err := c.dispatch(wire.MsgAddAccess, name, buf.Bytes())
	return err
}

// Revoke removes identity's ACL entry for name.
func (c *Client) Revoke(name, identity string) error {
	_, err := c.dispatch(wire.MsgRemAccess, name, []byte(identity))
	return err
}

// SSDeadReport tells the Directory a Node at ip:port is unreachable.
func (c *Client) SSDeadReport(ip string, port int32) error {
	var buf bytes.Buffer
	if err := wire.EncodeEndpoint(&buf, wire.Endpoint{IP: ip, Port: port}); err != nil {
		return err
	}
	_, err := c.dispatch(wire.MsgSSDeadReport, "", buf.Bytes())
	return err
}

// Locate resolves name to its owning Node's address without a permission
// check, so a caller can target an access request at the right Node.
func (c *Client) Locate(name string) (wire.Endpoint, error) {
	reply, err := c.dispatch(wire.MsgLocateFile, name, nil)
	if err != nil {
		return wire.Endpoint{}, err
	}
	return wire.DecodeEndpoint(bytes.NewReader(reply.Payload))
}

// Redirect asks the Directory to authorize msgType against name and hand
// back the owning Node's address, for every command that finishes on the
// Node's text protocol (READ, WRITE, STREAM, CHECKPOINT, VIEWCHECKPOINT,
// REVERT, LISTCHECKPOINTS).
func (c *Client) Redirect(msgType wire.MsgType, name string) (wire.Endpoint, error) {
	reply, err := c.dispatch(msgType, name, nil)
	if err != nil {
		return wire.Endpoint{}, err
	}
	return wire.DecodeEndpoint(bytes.NewReader(reply.Payload))
}

// Info fetches and prints name's full record.
func (c *Client) Info(name string) error {
	reply, err := c.dispatch(wire.MsgInfo, name, nil)
	if err != nil {
		return err
	}
	fmt.Fprint(c.out, string(reply.Payload))
	return nil
}

// View renders the root listing (files and folders with no folder of
// their own). long refreshes statistics from each owning Node first.
func (c *Client) View(long bool) error {
	return c.renderListing("", long)
}

// ViewFolder renders folder's immediate children.
func (c *Client) ViewFolder(folder string, long bool) error {
	return c.renderListing(folder, long)
}

func (c *Client) renderListing(folder string, long bool) error {
	msgType := wire.MsgView
	if folder != "" {
		msgType = wire.MsgViewFolder
	}
	var flag byte
	if long {
		flag = 1
	}
	reply, err := c.dispatch(msgType, folder, []byte{flag})
	if err != nil {
		return err
	}
	return printListing(c.out, string(reply.Payload))
}

// Exec sends EXEC and streams back the raw combined output of running
// name's content as a shell command; the Directory performs the lookup
// and permission check, fetches the content from the owning Node, and
// runs it in its own host shell. The
// Directory closes this connection once the output ends, so the caller
// must call Reconnect afterward to continue the session.
func (c *Client) Exec(name string) error {
	if err := wire.WriteFrame(c.conn, wire.MsgExec, 0, 0, name, nil); err != nil {
		return err
	}

	var out strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if err != nil {
			break
		}
	}
	fmt.Fprint(c.out, out.String())
	return nil
}
