package directory

import (
	"bytes"
	"context"
	"net"
	"os/exec"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/wire"
	"github.com/arborfs/arbor/internal/wireerr"
)

// handleExec implements EXEC: read permission check, fetch the file's
// bytes from its owning Node over the control link, run them through the
// host shell, and stream combined output back raw. The connection closes
// when done regardless of outcome, per spec.md §4.4 — the Client must
// reconnect and re-authenticate for its next command.
func (d *Directory) handleExec(ctx context.Context, conn net.Conn, identity, name string) {
	defer conn.Close()

	if !d.EnableExec {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errExecDisabled.BinaryText()))
		return
	}

	rec := d.Index.Get(name)
	if rec == nil {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errFileNotFound(name).BinaryText()))
		return
	}
	if !rec.CheckPermission(identity, wire.PermRead) {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errPermissionDenied.BinaryText()))
		return
	}

	slot := d.Registry.Get(rec.NodeSlot)
	if slot == nil || !slot.Active() {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(errSlotInactive.BinaryText()))
		return
	}

	reply, err := slot.Dispatch(ctx, wire.MsgInternalRead, name, nil)
	if err != nil {
		werr, _ := asWireErr(err)
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(werr.BinaryText()))
		return
	}
	if reply.Header.MsgType != wire.MsgInternalData {
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, name, []byte(wireerr.NewInternal("node could not supply file content").BinaryText()))
		return
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", string(reply.Payload))
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		logger.WarnCtx(ctx, "exec command failed", logger.Filename(name), logger.Err(err))
	}

	if _, err := conn.Write(out.Bytes()); err != nil {
		logger.WarnCtx(ctx, "exec output write failed", logger.Filename(name), logger.Err(err))
	}
}
