package node

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/wire"
)

// controlLink owns the Node's persistent control connection to the
// Directory: the REGISTER/REGISTER_FILE/REGISTER_COMPLETE handshake, then
// a read loop answering Directory-dispatched INTERNAL_* and
// directory-mediated CREATE/DELETE/UNDO requests (a folder move arrives
// as INTERNAL_SET_FOLDER). Writes are
// serialized so an unsolicited notification never interleaves with a
// reply mid-frame.
type controlLink struct {
	node *Node
	conn net.Conn

	writeMu sync.Mutex
}

func dialControl(ctx context.Context, n *Node, dirAddr, publicAddr string) (*controlLink, error) {
	conn, err := net.Dial("tcp", dirAddr)
	if err != nil {
		return nil, fmt.Errorf("node: dial directory: %w", err)
	}

	link := &controlLink{node: n, conn: conn}

	host, portStr, err := net.SplitHostPort(publicAddr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("node: parse public address: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("node: parse public port: %w", err)
	}
	if host == "" {
		host = "127.0.0.1"
	}

	var buf bytes.Buffer
	if err := wire.EncodeEndpoint(&buf, wire.Endpoint{IP: host, Port: int32(port)}); err != nil {
		conn.Close()
		return nil, err
	}
	if err := wire.WriteFrame(conn, wire.MsgRegister, 0, 0, "", buf.Bytes()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("node: send REGISTER: %w", err)
	}

	ack, err := wire.ReadFrame(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("node: read REGISTER ack: %w", err)
	}
	if ack.Header.MsgType == wire.MsgError {
		conn.Close()
		return nil, fmt.Errorf("node: directory refused registration: %s", ack.Header.Name)
	}

	for _, meta := range n.Store.All() {
		var rbuf bytes.Buffer
		if err := wire.EncodeFileRecord(&rbuf, meta.toRecord()); err != nil {
			conn.Close()
			return nil, err
		}
		if err := wire.WriteFrame(conn, wire.MsgRegisterFile, 0, 0, meta.Name, rbuf.Bytes()); err != nil {
			conn.Close()
			return nil, fmt.Errorf("node: send REGISTER_FILE: %w", err)
		}
	}
	if err := wire.WriteFrame(conn, wire.MsgRegisterComplete, 0, 0, "", nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("node: send REGISTER_COMPLETE: %w", err)
	}

	logger.InfoCtx(ctx, "node registered with directory", logger.NodeAddr(dirAddr))
	return link, nil
}

// run answers every Directory-dispatched request on the control link
// until it fails or ctx is cancelled.
func (c *controlLink) run(ctx context.Context) {
	for {
		frame, err := wire.ReadFrame(c.conn)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.WarnCtx(ctx, "control link read failed", logger.Err(err))
				return
			}
		}
		c.handle(ctx, frame)
	}
}

func (c *controlLink) reply(msgType wire.MsgType, name string, payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wire.WriteFrame(c.conn, msgType, 0, 0, name, payload)
}

func (c *controlLink) handle(ctx context.Context, frame *wire.Frame) {
	name := frame.Header.Name

	switch frame.Header.MsgType {
	case wire.MsgInternalRead:
		content, err := c.node.Store.ReadContent(name, "directory")
		if err != nil {
			_ = c.reply(wire.MsgError, err.Error(), nil)
			return
		}
		_ = c.reply(wire.MsgInternalData, name, content)

	case wire.MsgInternalGetMetadata:
		meta := c.node.Store.Get(name)
		if meta == nil {
			_ = c.reply(wire.MsgError, "not found: "+name, nil)
			return
		}
		var buf bytes.Buffer
		_ = wire.EncodeMetadata(&buf, wire.Metadata{
			WordCount:      meta.WordCount,
			CharCount:      meta.Size,
			Created:        meta.Created,
			LastModified:   meta.Modified,
			LastAccessed:   meta.LastAccessed,
			LastAccessedBy: meta.LastAccessedBy,
		})
		_ = c.reply(wire.MsgInternalMetadataResp, name, buf.Bytes())

	case wire.MsgInternalAddAccess:
		ac, err := wire.DecodeAccessControl(bytes.NewReader(frame.Payload))
		if err != nil {
			_ = c.reply(wire.MsgError, "bad payload", nil)
			return
		}
		if err := c.node.Store.AddACL(name, ac.Identity, ac.Permission); err != nil {
			_ = c.reply(wire.MsgError, err.Error(), nil)
			return
		}
		_ = c.reply(wire.MsgAck, "", nil)

	case wire.MsgInternalRemAccess:
		identity := string(frame.Payload)
		if err := c.node.Store.RemoveACL(name, identity); err != nil {
			_ = c.reply(wire.MsgError, err.Error(), nil)
			return
		}
		_ = c.reply(wire.MsgAck, "", nil)

	case wire.MsgInternalSetOwner:
		identity := string(frame.Payload)
		if err := c.node.Store.SetOwner(name, identity); err != nil {
			logger.WarnCtx(ctx, "set owner failed", logger.Err(err))
		}
		// No ACK expected, per the wire catalogue.

	case wire.MsgInternalSetFolder:
		folder := string(frame.Payload)
		if err := c.node.Store.SetFolder(name, folder); err != nil {
			_ = c.reply(wire.MsgError, err.Error(), nil)
			return
		}
		_ = c.reply(wire.MsgAck, "", nil)

	case wire.MsgCreate:
		if err := c.node.Store.Create(name, string(frame.Payload)); err != nil {
			_ = c.reply(wire.MsgError, err.Error(), nil)
			return
		}
		_ = c.reply(wire.MsgAck, "", nil)

	case wire.MsgDelete:
		if err := c.node.Store.Delete(name); err != nil {
			_ = c.reply(wire.MsgError, err.Error(), nil)
			return
		}
		_ = c.reply(wire.MsgAck, "", nil)

	case wire.MsgUndo:
		err := c.node.Store.Undo(name)
		c.node.Metrics.ObserveUndo(err == nil)
		if err != nil {
			_ = c.reply(wire.MsgError, err.Error(), nil)
			return
		}
		_ = c.reply(wire.MsgAck, "", nil)

	default:
		logger.WarnCtx(ctx, "unhandled control frame", logger.MsgType(frame.Header.MsgType.String()))
	}
}

// notifyDirectoryACLChange tells the Directory about a locally-approved
// access request so its in-memory ACL copy, which gates redirects, stays
// in sync. Fire-and-forget: the Directory is not required to reply. A
// denied request never reaches here, since it makes no ACL change for
// the Directory to mirror.
func (n *Node) notifyDirectoryACLChange(file, identity string, perm wire.Permission) {
	if n.control == nil {
		return
	}
	var buf bytes.Buffer
	_ = wire.EncodeAccessControl(&buf, wire.AccessControl{Identity: identity, Permission: perm})
	_ = n.control.reply(wire.MsgAddAccess, file, buf.Bytes())
}
