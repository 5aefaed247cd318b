package directory

import (
	"bytes"
	"context"
	"net"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/wire"
)

// handleNodeRegistration completes a Node's REGISTER handshake: claim a
// registry slot, ACK, then drain the REGISTER_FILE sync phase into the
// trie until REGISTER_COMPLETE. The connection itself outlives this
// function, owned from here on by the slot's connection actor.
func (d *Directory) handleNodeRegistration(ctx context.Context, conn net.Conn, frame *wire.Frame) {
	ep, err := wire.DecodeEndpoint(bytes.NewReader(frame.Payload))
	if err != nil {
		logger.WarnCtx(ctx, "malformed REGISTER payload", logger.Err(err))
		_ = conn.Close()
		return
	}

	slot, err := d.Registry.Register(ep.IP, int(ep.Port), conn)
	if err != nil {
		logger.WarnCtx(ctx, "node registration rejected", logger.NodeAddr(addrString(ep.IP, int(ep.Port))), logger.Err(err))
		werr, _ := asWireErr(err)
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, "", []byte(werr.BinaryText()))
		_ = conn.Close()
		return
	}

	logger.InfoCtx(ctx, "node registered", logger.NodeSlot(slot.Index), logger.NodeAddr(addrString(ep.IP, int(ep.Port))))

	if err := wire.WriteFrame(conn, wire.MsgAck, 0, uint16(slot.Index), "", nil); err != nil {
		d.Purge(ctx, slot.Index)
		return
	}

	for {
		f, err := wire.ReadFrame(conn)
		if err != nil {
			logger.WarnCtx(ctx, "node sync phase interrupted", logger.NodeSlot(slot.Index), logger.Err(err))
			d.Purge(ctx, slot.Index)
			return
		}

		switch f.Header.MsgType {
		case wire.MsgRegisterFile:
			rec, err := wire.DecodeFileRecord(bytes.NewReader(f.Payload))
			if err != nil {
				logger.WarnCtx(ctx, "malformed REGISTER_FILE payload", logger.NodeSlot(slot.Index), logger.Err(err))
				continue
			}
			if err := d.Index.Insert(fromWireRecord(rec, slot.Index)); err != nil {
				logger.WarnCtx(ctx, "duplicate file at registration", logger.Filename(rec.Name), logger.NodeSlot(slot.Index))
			}
		case wire.MsgRegisterComplete:
			logger.InfoCtx(ctx, "node sync complete", logger.NodeSlot(slot.Index))
			onFailure := func(s int) { d.Purge(ctx, s) }
			slot.StartActor(onFailure, d.onNodeACLPush)
			return
		default:
			logger.WarnCtx(ctx, "unexpected frame during node sync", logger.NodeSlot(slot.Index), logger.MsgType(f.Header.MsgType.String()))
		}
	}
}
