package client

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/arborfs/arbor/internal/wire"
)

// fakeDirectory accepts one connection on a loopback listener and hands it
// to handle, so Client methods can be driven against a scripted peer
// without a real Directory.
func fakeDirectory(t *testing.T, handle func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handle(conn)
	}()
	return ln.Addr().String()
}

func TestClientConnectHandshake(t *testing.T) {
	addr := fakeDirectory(t, func(conn net.Conn) {
		defer conn.Close()
		frame, err := wire.ReadFrame(conn)
		if err != nil || frame.Header.MsgType != wire.MsgRegisterClient || frame.Header.Name != "alice" {
			return
		}
		_ = wire.WriteFrame(conn, wire.MsgAck, 0, 0, "", nil)
	})

	c := New(addr, "alice", &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()
}

func TestClientConnectRejected(t *testing.T) {
	addr := fakeDirectory(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = wire.ReadFrame(conn)
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, "", []byte("identity already active"))
	})

	c := New(addr, "bob", &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Connect(ctx); err == nil {
		t.Fatal("expected handshake rejection to surface as an error")
	}
}

func TestClientCreateTranslatesErrorFrame(t *testing.T) {
	addr := fakeDirectory(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = wire.ReadFrame(conn)
		_ = wire.WriteFrame(conn, wire.MsgAck, 0, 0, "", nil)

		frame, err := wire.ReadFrame(conn)
		if err != nil || frame.Header.MsgType != wire.MsgCreate || frame.Header.Name != "exists.txt" {
			return
		}
		_ = wire.WriteFrame(conn, wire.MsgError, 0, 0, "exists.txt", []byte("conflict: file already exists"))
	})

	c := New(addr, "alice", &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	if err := c.Create("exists.txt"); err == nil {
		t.Fatal("expected CREATE conflict to surface as an error")
	}
}

func TestClientLocateDecodesEndpoint(t *testing.T) {
	addr := fakeDirectory(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = wire.ReadFrame(conn)
		_ = wire.WriteFrame(conn, wire.MsgAck, 0, 0, "", nil)

		frame, err := wire.ReadFrame(conn)
		if err != nil || frame.Header.MsgType != wire.MsgLocateFile {
			return
		}
		var buf bytes.Buffer
		_ = wire.EncodeEndpoint(&buf, wire.Endpoint{IP: "10.0.0.5", Port: 9100})
		_ = wire.WriteFrame(conn, wire.MsgLocateResponse, 0, 0, frame.Header.Name, buf.Bytes())
	})

	c := New(addr, "alice", &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	ep, err := c.Locate("notes.txt")
	if err != nil {
		t.Fatalf("locate: %v", err)
	}
	if ep.IP != "10.0.0.5" || ep.Port != 9100 {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
}

func TestClientDispatchFailsWhenNotConnected(t *testing.T) {
	c := New("127.0.0.1:0", "alice", &bytes.Buffer{})
	if err := c.Create("a.txt"); err == nil {
		t.Fatal("expected dispatch before Connect to fail")
	}
}
