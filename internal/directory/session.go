package directory

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/wire"
	"github.com/arborfs/arbor/internal/wireerr"
)

// handleClientSession drives one Client's Directory-side session from its
// REGISTER_CLIENT handshake to disconnect, routing framed requests by
// type per spec.md §4.6.
func (d *Directory) handleClientSession(ctx context.Context, conn net.Conn, handshake *wire.Frame) {
	defer conn.Close()

	identity := handshake.Header.Name
	if identity == "" {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, "", []byte(wireerr.NewBadRequest("missing identity").BinaryText()))
		return
	}

	sessionID := uuid.NewString()
	lc := logger.NewLogContext(sessionID, conn.RemoteAddr().String()).WithIdentity(identity)
	ctx = logger.WithContext(ctx, lc)

	d.Users.Add(identity)
	defer d.Users.Remove(identity)

	if err := wire.WriteFrame(conn, wire.MsgAck, 0, 0, "", nil); err != nil {
		return
	}
	logger.InfoCtx(ctx, "client session started", logger.SessionID(sessionID))

	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			logger.InfoCtx(ctx, "client session ended", logger.Err(err))
			return
		}
		d.routeClientFrame(ctx, conn, identity, frame)
	}
}

func (d *Directory) routeClientFrame(ctx context.Context, conn net.Conn, identity string, frame *wire.Frame) {
	name := frame.Header.Name
	start := time.Now()
	ok := true

	defer func() {
		d.Metrics.ObserveDispatch(frame.Header.MsgType.String(), ok, time.Since(start))
	}()

	switch frame.Header.MsgType {
	case wire.MsgCreate:
		ok = d.replyErr(conn, name, d.handleCreate(ctx, identity, name))
	case wire.MsgDelete:
		ok = d.replyErr(conn, name, d.handleDelete(ctx, identity, name))
	case wire.MsgUndo:
		ok = d.replyErr(conn, name, d.handleUndoForward(ctx, identity, name))

	case wire.MsgRead, wire.MsgWrite, wire.MsgStream, wire.MsgCheckpoint,
		wire.MsgViewCheckpoint, wire.MsgRevert, wire.MsgListCheckpoints:
		ok = d.handleContentRedirect(ctx, conn, identity, frame.Header.MsgType, name)
	case wire.MsgLocateFile:
		ok = d.handleLocate(ctx, conn, name)

	case wire.MsgAddAccess:
		ok = d.handleAddAccess(ctx, conn, identity, name, frame.Payload)
	case wire.MsgRemAccess:
		ok = d.handleRemAccess(ctx, conn, identity, name, frame.Payload)

	case wire.MsgView:
		ok = d.handleListing(ctx, conn, "", frame.Payload)
	case wire.MsgViewFolder:
		ok = d.handleListing(ctx, conn, name, frame.Payload)
	case wire.MsgInfo:
		ok = d.handleInfo(ctx, conn, name)

	case wire.MsgMove:
		ok = d.handleMove(ctx, conn, name, frame.Payload)
	case wire.MsgChown:
		ok = d.handleChown(ctx, conn, identity, name, frame.Payload)

	case wire.MsgSSDeadReport:
		d.handleDeadReport(ctx, frame.Payload)
		ok = d.replyErr(conn, name, nil)

	case wire.MsgExec:
		d.handleExec(ctx, conn, identity, name)
		ok = false // EXEC closes the connection; no further frames on it

	default:
		logger.WarnCtx(ctx, "unhandled client frame", logger.MsgType(frame.Header.MsgType.String()))
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(wireerr.NewBadRequest("unsupported message type").BinaryText()))
	}
}

func (d *Directory) replyErr(conn net.Conn, name string, err error) bool {
	if err != nil {
		werr, _ := asWireErr(err)
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(werr.BinaryText()))
		return false
	}
	_ = wire.WriteFrame(conn, wire.MsgAck, 0, 0, name, nil)
	return true
}

func (d *Directory) handleCreate(ctx context.Context, identity, name string) error {
	if d.Index.Get(name) != nil {
		return errDuplicateFile(name)
	}
	slot := d.Registry.Next()
	if slot == nil {
		return errNoNodesAvailable
	}

	reply, err := slot.Dispatch(ctx, wire.MsgCreate, name, []byte(identity))
	if err != nil {
		return err
	}
	if reply.Header.MsgType == wire.MsgError {
		return wireerr.NewInternal(string(reply.Payload))
	}

	now := time.Now().Unix()
	return d.Index.Insert(&FileRecord{
		Name:     name,
		NodeSlot: slot.Index,
		Owner:    identity,
		Created:  now,
		Modified: now,
	})
}

func (d *Directory) handleDelete(ctx context.Context, identity, name string) error {
	rec := d.Index.Get(name)
	if rec == nil {
		return errFileNotFound(name)
	}
	if rec.Owner != identity {
		return errNotOwner
	}

	slot := d.Registry.Get(rec.NodeSlot)
	if slot != nil && slot.Active() {
		if _, err := slot.Dispatch(ctx, wire.MsgDelete, name, nil); err != nil {
			logger.WarnCtx(ctx, "node refused or was unreachable for delete; directory record still removed",
				logger.Filename(name), logger.Err(err))
		}
	}

	if _, err := d.Index.Delete(name); err != nil {
		return err
	}
	d.Cache.Invalidate(name)
	return nil
}

func (d *Directory) handleUndoForward(ctx context.Context, identity, name string) error {
	rec := d.Index.Get(name)
	if rec == nil {
		return errFileNotFound(name)
	}
	if !rec.CheckPermission(identity, wire.PermWrite) {
		return errPermissionDenied
	}
	slot := d.Registry.Get(rec.NodeSlot)
	if slot == nil || !slot.Active() {
		return errSlotInactive
	}
	reply, err := slot.Dispatch(ctx, wire.MsgUndo, name, nil)
	if err != nil {
		return err
	}
	if reply.Header.MsgType == wire.MsgError {
		return wireerr.NewConflict(string(reply.Payload))
	}
	return nil
}

// handleContentRedirect answers every command that moves to the Node's
// direct text protocol: locate the file, check the matching permission
// level, and hand back its Node's address. LOCATE_FILE has its own
// handler that skips the permission check entirely.
func (d *Directory) handleContentRedirect(ctx context.Context, conn net.Conn, identity string, msgType wire.MsgType, name string) bool {
	rec := d.Index.Get(name)
	if rec == nil {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errFileNotFound(name).BinaryText()))
		return false
	}

	required := wire.PermRead
	switch msgType {
	case wire.MsgWrite, wire.MsgCheckpoint, wire.MsgRevert:
		required = wire.PermWrite
	}
	if !rec.CheckPermission(identity, required) {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errPermissionDenied.BinaryText()))
		return false
	}

	slot := d.Registry.Get(rec.NodeSlot)
	if slot == nil || !slot.Active() {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errSlotInactive.BinaryText()))
		return false
	}

	return d.sendRedirect(conn, wire.MsgReadRedirect, name, slot)
}

func (d *Directory) handleLocate(ctx context.Context, conn net.Conn, name string) bool {
	rec := d.Index.Get(name)
	if rec == nil {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errFileNotFound(name).BinaryText()))
		return false
	}
	slot := d.Registry.Get(rec.NodeSlot)
	if slot == nil || !slot.Active() {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errSlotInactive.BinaryText()))
		return false
	}
	return d.sendRedirect(conn, wire.MsgLocateResponse, name, slot)
}

func (d *Directory) sendRedirect(conn net.Conn, msgType wire.MsgType, name string, slot *Slot) bool {
	ip, port := slot.Addr()
	var buf bytes.Buffer
	if err := wire.EncodeEndpoint(&buf, wire.Endpoint{IP: ip, Port: int32(port)}); err != nil {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(wireerr.NewInternal(err.Error()).BinaryText()))
		return false
	}
	if err := wire.WriteFrame(conn, msgType, 0, uint16(slot.Index), name, buf.Bytes()); err != nil {
		return false
	}
	return true
}

func (d *Directory) handleAddAccess(ctx context.Context, conn net.Conn, identity, name string, payload []byte) bool {
	ac, err := wire.DecodeAccessControl(bytes.NewReader(payload))
	if err != nil {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(wireerr.NewBadRequest("malformed ADD_ACCESS payload").BinaryText()))
		return false
	}
	return d.replyErr(conn, name, d.Grant(ctx, name, identity, ac.Identity, ac.Permission))
}

func (d *Directory) handleRemAccess(ctx context.Context, conn net.Conn, identity, name string, payload []byte) bool {
	target := string(bytes.TrimRight(payload, "\x00"))
	if target == "" {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(wireerr.NewBadRequest("malformed REM_ACCESS payload").BinaryText()))
		return false
	}
	return d.replyErr(conn, name, d.Revoke(ctx, name, identity, target))
}

func (d *Directory) handleListing(ctx context.Context, conn net.Conn, folder string, payload []byte) bool {
	long := len(payload) > 0 && payload[0] != 0
	text, err := d.BuildListing(ctx, folder, long)
	if err != nil {
		werr, _ := asWireErr(err)
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, folder, []byte(werr.BinaryText()))
		return false
	}
	msgType := wire.MsgViewResponse
	if folder != "" {
		msgType = wire.MsgListResponse
	}
	if err := wire.WriteFrame(conn, msgType, 0, 0, folder, []byte(text)); err != nil {
		return false
	}
	return true
}

func (d *Directory) handleInfo(ctx context.Context, conn net.Conn, name string) bool {
	rec := d.Index.Get(name)
	if rec == nil {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errFileNotFound(name).BinaryText()))
		return false
	}
	if err := wire.WriteFrame(conn, wire.MsgInfoResponse, 0, 0, name, []byte(formatInfo(rec))); err != nil {
		return false
	}
	return true
}

func (d *Directory) handleMove(ctx context.Context, conn net.Conn, oldPrefix string, payload []byte) bool {
	newPrefix := string(bytes.TrimRight(payload, "\x00"))
	n, err := d.Move(ctx, oldPrefix, newPrefix)
	if err != nil {
		werr, _ := asWireErr(err)
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, oldPrefix, []byte(werr.BinaryText()))
		return false
	}
	logger.InfoCtx(ctx, "folder moved", logger.Folder(oldPrefix), logger.Operation("move"), slog.Int("renamed", n))
	_ = wire.WriteFrame(conn, wire.MsgAck, 0, 0, oldPrefix, nil)
	return true
}

func (d *Directory) handleChown(ctx context.Context, conn net.Conn, identity, name string, payload []byte) bool {
	newOwner := string(bytes.TrimRight(payload, "\x00"))
	if newOwner == "" {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(wireerr.NewBadRequest("missing new owner").BinaryText()))
		return false
	}
	return d.replyErr(conn, name, d.Chown(ctx, name, identity, newOwner))
}

func (d *Directory) handleDeadReport(ctx context.Context, payload []byte) {
	ep, err := wire.DecodeEndpoint(bytes.NewReader(payload))
	if err != nil {
		logger.WarnCtx(ctx, "malformed SS_DEAD_REPORT payload", logger.Err(err))
		return
	}

	for i := 0; i < d.Registry.Len(); i++ {
		slot := d.Registry.Get(i)
		if slot == nil || !slot.Active() {
			continue
		}
		ip, port := slot.Addr()
		if ip == ep.IP && port == int(ep.Port) {
			d.Purge(ctx, i)
			return
		}
	}
}
