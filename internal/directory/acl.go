package directory

import (
	"bytes"
	"context"

	"github.com/arborfs/arbor/internal/wire"
)

// Grant adds or replaces identity's ACL entry for name and pushes the
// change to the owning Node so the two copies stay consistent. The owner
// itself is never placed in its own ACL: CheckPermission already grants
// the owner everything, and an ACL entry for them would be redundant
// state to keep in sync.
func (d *Directory) Grant(ctx context.Context, name, requester, identity string, perm wire.Permission) error {
	rec, err := d.requireOwner(name, requester)
	if err != nil {
		return err
	}
	if identity == rec.Owner {
		return nil
	}

	if err := d.Index.Mutate(name, func(r *FileRecord) error {
		for i := range r.ACL {
			if r.ACL[i].Identity == identity {
				r.ACL[i].Permission = perm
				return nil
			}
		}
		if len(r.ACL) >= wire.MaxACLEntries {
			return errACLFull
		}
		r.ACL = append(r.ACL, wire.ACLEntry{Identity: identity, Permission: perm})
		return nil
	}); err != nil {
		return err
	}

	return d.pushACL(ctx, rec.NodeSlot, wire.MsgInternalAddAccess, name, identity, perm)
}

// Revoke removes identity's ACL entry for name, if present, and pushes the
// change to the owning Node.
func (d *Directory) Revoke(ctx context.Context, name, requester, identity string) error {
	rec, err := d.requireOwner(name, requester)
	if err != nil {
		return err
	}

	if err := d.Index.Mutate(name, func(r *FileRecord) error {
		for i := range r.ACL {
			if r.ACL[i].Identity == identity {
				r.ACL = append(r.ACL[:i], r.ACL[i+1:]...)
				return nil
			}
		}
		return nil
	}); err != nil {
		return err
	}

	return d.pushACL(ctx, rec.NodeSlot, wire.MsgInternalRemAccess, name, identity, wire.PermNone)
}

func (d *Directory) requireOwner(name, requester string) (*FileRecord, error) {
	rec := d.Index.Get(name)
	if rec == nil {
		return nil, errFileNotFound(name)
	}
	if rec.Owner != requester {
		return nil, errNotOwner
	}
	return rec, nil
}

func (d *Directory) pushACL(ctx context.Context, slot int, msgType wire.MsgType, name, identity string, perm wire.Permission) error {
	s := d.Registry.Get(slot)
	if s == nil || !s.Active() {
		return errSlotInactive
	}

	var buf bytes.Buffer
	if err := wire.EncodeAccessControl(&buf, wire.AccessControl{Identity: identity, Permission: perm}); err != nil {
		return err
	}

	reply, err := s.Dispatch(ctx, msgType, name, buf.Bytes())
	if err != nil {
		return err
	}
	if reply.Header.MsgType == wire.MsgError {
		return errPermissionDenied
	}
	return nil
}

// onNodeACLPush applies an unsolicited ADD_ACCESS/REM_ACCESS notification
// from a Node that resolved an access request directly with a requester
// over its own text protocol, keeping the Directory's ACL copy (the one
// its own permission checks consult) in sync without a round trip.
func (d *Directory) onNodeACLPush(slot int, frame *wire.Frame) {
	ac, err := wire.DecodeAccessControl(bytes.NewReader(frame.Payload))
	if err != nil {
		return
	}
	name := frame.Header.Name

	_ = d.Index.Mutate(name, func(r *FileRecord) error {
		if r.NodeSlot != slot {
			return nil
		}
		switch frame.Header.MsgType {
		case wire.MsgAddAccess:
			for i := range r.ACL {
				if r.ACL[i].Identity == ac.Identity {
					r.ACL[i].Permission = ac.Permission
					return nil
				}
			}
			r.ACL = append(r.ACL, wire.ACLEntry{Identity: ac.Identity, Permission: ac.Permission})
		case wire.MsgRemAccess:
			for i := range r.ACL {
				if r.ACL[i].Identity == ac.Identity {
					r.ACL = append(r.ACL[:i], r.ACL[i+1:]...)
					return nil
				}
			}
		}
		return nil
	})
}
