package client

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/arborfs/arbor/internal/wire"
)

func TestRunDispatchesCreateThenExits(t *testing.T) {
	created := make(chan string, 1)
	addr := fakeDirectory(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = wire.ReadFrame(conn)
		_ = wire.WriteFrame(conn, wire.MsgAck, 0, 0, "", nil)

		frame, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}
		if frame.Header.MsgType == wire.MsgCreate {
			created <- frame.Header.Name
			_ = wire.WriteFrame(conn, wire.MsgAck, 0, 0, frame.Header.Name, nil)
		}
	})

	var out bytes.Buffer
	c := New(addr, "alice", &out)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	in := strings.NewReader("CREATE notes.txt\nEXIT\n")
	if err := c.Run(ctx, in); err != nil {
		t.Fatalf("run: %v", err)
	}

	select {
	case name := <-created:
		if name != "notes.txt" {
			t.Fatalf("unexpected created file: %s", name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for CREATE to reach the fake directory")
	}
}

func TestRunReportsUnrecognizedCommand(t *testing.T) {
	addr := fakeDirectory(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = wire.ReadFrame(conn)
		_ = wire.WriteFrame(conn, wire.MsgAck, 0, 0, "", nil)
	})

	var out bytes.Buffer
	c := New(addr, "alice", &out)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer c.Close()

	in := strings.NewReader("FROBNICATE\nEXIT\n")
	if err := c.Run(ctx, in); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out.String(), "unrecognized command") {
		t.Fatalf("expected an unrecognized-command message, got %q", out.String())
	}
}

func TestEndpointAddrFormatsHostPort(t *testing.T) {
	got := endpointAddr(wire.Endpoint{IP: "10.0.0.1", Port: 9000})
	if got != "10.0.0.1:9000" {
		t.Fatalf("unexpected address: %s", got)
	}
}
