package directory

import (
	"context"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/wire"
)

// Move renames every record under oldPrefix to newPrefix and pushes
// INTERNAL_SET_FOLDER to each affected Node. Partial failure is logged,
// not rolled back, per spec.md §4.3.
func (d *Directory) Move(ctx context.Context, oldPrefix, newPrefix string) (int, error) {
	renamed := d.Index.rewriteFolderPrefix(oldPrefix, newPrefix)

	for _, r := range renamed {
		slot := d.Registry.Get(r.slot)
		if slot == nil || !slot.Active() {
			logger.WarnCtx(ctx, "move could not notify inactive node", logger.Filename(r.name), logger.NodeSlot(r.slot))
			continue
		}
		if _, err := slot.Dispatch(ctx, wire.MsgInternalSetFolder, r.name, []byte(newPrefix)); err != nil {
			logger.WarnCtx(ctx, "move notification failed", logger.Filename(r.name), logger.Err(err))
		}
	}
	return len(renamed), nil
}

// Chown reassigns a file's owner and notifies its Node. Only the current
// owner may reassign it.
func (d *Directory) Chown(ctx context.Context, name, requester, newOwner string) error {
	rec, err := d.requireOwner(name, requester)
	if err != nil {
		return err
	}

	if err := d.Index.Mutate(name, func(r *FileRecord) error {
		r.Owner = newOwner
		return nil
	}); err != nil {
		return err
	}

	slot := d.Registry.Get(rec.NodeSlot)
	if slot != nil {
		slot.FireAndForget(wire.MsgInternalSetOwner, name, []byte(newOwner))
	}
	return nil
}
