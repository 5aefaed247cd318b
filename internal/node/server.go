package node

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/metrics"
)

// Node is the storage server: its disk-backed Store, sentence lock table,
// open-client registry, and the control link back to the Directory.
type Node struct {
	Store   *Store
	Locks   *LockTable
	Metrics *metrics.Node

	publicAddr string
	dirAddr    string

	connIDSeq atomic.Int64

	clientsMu sync.Mutex
	clients   map[string]net.Conn

	control *controlLink
}

// New constructs a Node backed by store, ready to Start.
func New(store *Store, publicAddr, dirAddr string, m *metrics.Node) *Node {
	return &Node{
		Store:      store,
		Locks:      NewLockTable(),
		Metrics:    m,
		publicAddr: publicAddr,
		dirAddr:    dirAddr,
		clients:    make(map[string]net.Conn),
	}
}

func (n *Node) nextConnID() int {
	return int(n.connIDSeq.Add(1))
}

func (n *Node) trackClient(sessionID string, conn net.Conn) {
	n.clientsMu.Lock()
	defer n.clientsMu.Unlock()
	n.clients[sessionID] = conn
}

func (n *Node) untrackClient(sessionID string) {
	n.clientsMu.Lock()
	defer n.clientsMu.Unlock()
	delete(n.clients, sessionID)
}

// CloseAllClients forcibly closes every tracked connection, for shutdown.
func (n *Node) CloseAllClients() {
	n.clientsMu.Lock()
	defer n.clientsMu.Unlock()
	for _, c := range n.clients {
		_ = c.Close()
	}
}

// Start initializes storage, connects to the Directory, and serves the
// public listener until ctx is cancelled.
func (n *Node) Start(ctx context.Context, sweepSwaps bool) error {
	if err := n.Store.Init(); err != nil {
		return err
	}
	if sweepSwaps {
		if err := n.Store.SweepOrphanSwaps(); err != nil {
			logger.WarnCtx(ctx, "swap sweep failed", logger.Err(err))
		}
	}

	control, err := dialControl(ctx, n, n.dirAddr, n.publicAddr)
	if err != nil {
		return err
	}
	n.control = control
	go control.run(ctx)

	listener, err := net.Listen("tcp", n.publicAddr)
	if err != nil {
		return err
	}
	logger.InfoCtx(ctx, "node public listener started", logger.NodeAddr(n.publicAddr))

	go func() {
		<-ctx.Done()
		_ = listener.Close()
		n.CloseAllClients()
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
		go n.handleClient(conn)
	}
}
