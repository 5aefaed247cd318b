package directory

import (
	"context"
	"net"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/metrics"
	"github.com/arborfs/arbor/internal/wire"
)

// Directory is the central coordinator: the file-name index, the location
// cache, the Node registry, the active-user set, and the listener that
// accepts both Client and Node connections on a single port.
type Directory struct {
	Index    *Index
	Cache    *LocationCache
	Registry *Registry
	Users    *ActiveUsers
	Metrics  *metrics.Directory

	EnableExec bool
}

// New builds a Directory ready to Start. m may be a nil-safe no-op facade
// when metrics are disabled.
func New(cacheCapacity, registryCapacity int, enableExec bool, m *metrics.Directory) *Directory {
	return &Directory{
		Index:      NewIndex(),
		Cache:      NewLocationCache(cacheCapacity),
		Registry:   NewRegistry(registryCapacity),
		Users:      NewActiveUsers(),
		Metrics:    m,
		EnableExec: enableExec,
	}
}

// Locate resolves name to its owning Node slot, consulting the location
// cache before falling back to the trie.
func (d *Directory) Locate(name string) (int, bool) {
	if slot, ok := d.Cache.Get(name); ok {
		d.Metrics.ObserveCacheHit()
		return slot, true
	}
	d.Metrics.ObserveCacheMiss()
	rec := d.Index.Get(name)
	if rec == nil {
		return 0, false
	}
	d.Cache.Put(name, rec.NodeSlot)
	return rec.NodeSlot, true
}

// Purge deactivates slot and removes every file record it owned, the
// shared path for both a failed control dispatch and an explicit
// SS_DEAD_REPORT from a Client.
func (d *Directory) Purge(ctx context.Context, slot int) {
	d.Registry.Deactivate(slot)
	removed := d.Index.PurgeByNode(slot)
	for _, name := range removed {
		d.Cache.Invalidate(name)
	}
	d.Cache.InvalidateNode(slot)
	d.Metrics.ObservePurge()
	logger.WarnCtx(ctx, "node purged", logger.NodeSlot(slot))
}

// Start listens on addr until ctx is cancelled, handing each accepted
// connection to a dedicated goroutine that multiplexes on the first
// frame's message type.
func (d *Directory) Start(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	logger.InfoCtx(ctx, "directory listening", logger.NodeAddr(addr))

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go d.handleConnection(ctx, conn)
	}
}

// handleConnection reads the first frame off a freshly accepted
// connection to tell a Node's REGISTER handshake apart from a Client's
// REGISTER_CLIENT handshake, then hands the connection to the matching
// long-lived loop.
func (d *Directory) handleConnection(ctx context.Context, conn net.Conn) {
	frame, err := wire.ReadFrame(conn)
	if err != nil {
		logger.WarnCtx(ctx, "discarding connection with unreadable handshake", logger.Err(err))
		_ = conn.Close()
		return
	}

	switch frame.Header.MsgType {
	case wire.MsgRegister:
		d.handleNodeRegistration(ctx, conn, frame)
	case wire.MsgRegisterClient:
		d.handleClientSession(ctx, conn, frame)
	default:
		logger.WarnCtx(ctx, "unexpected handshake frame", logger.MsgType(frame.Header.MsgType.String()))
		_ = conn.Close()
	}
}
