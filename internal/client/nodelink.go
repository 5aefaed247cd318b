package client

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
)

// NodeLink drives the line-based text protocol against a single Node,
// opened fresh for every Directory redirect (spec.md §2).
type NodeLink struct {
	conn   net.Conn
	reader *bufio.Reader
	out    io.Writer
}

// DialNode opens addr and performs the USER handshake.
func DialNode(addr, identity string, out io.Writer) (*NodeLink, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial node: %w", err)
	}
	link := &NodeLink{conn: conn, reader: bufio.NewReader(conn), out: out}

	if err := link.writeLine("USER " + identity); err != nil {
		conn.Close()
		return nil, err
	}
	line, err := link.readLine()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !strings.HasPrefix(line, "OK_200") {
		conn.Close()
		return nil, fmt.Errorf("client: node rejected handshake: %s", line)
	}
	return link, nil
}

func (l *NodeLink) Close() error { return l.conn.Close() }

func (l *NodeLink) writeLine(line string) error {
	_, err := l.conn.Write([]byte(line + "\n"))
	return err
}

func (l *NodeLink) readLine() (string, error) {
	line, err := l.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func errFromLine(line string) error {
	if strings.HasPrefix(line, "ERR_") {
		return fmt.Errorf("%s", line)
	}
	return nil
}

// Read sends READ and prints the file's content.
func (l *NodeLink) Read(name string) error {
	if err := l.writeLine("READ " + name); err != nil {
		return err
	}
	status, err := l.readLine()
	if err != nil {
		return err
	}
	if err := errFromLine(status); err != nil {
		return err
	}
	if status == "OK_200 EMPTY_FILE" {
		return nil
	}
	return l.printUntil("END_OF_FILE")
}

// printUntil echoes lines to out until sentinel is read, exclusive.
func (l *NodeLink) printUntil(sentinel string) error {
	for {
		line, err := l.readLine()
		if err != nil {
			return err
		}
		if line == sentinel {
			return nil
		}
		fmt.Fprintln(l.out, line)
	}
}

// Write opens an interactive WRITE session on sentence n of name, applying
// edits read as "<word_index> <content>" lines from edits until it yields
// an empty line, then commits with ETIRW.
func (l *NodeLink) Write(name string, n int, edits *bufio.Reader) error {
	if err := l.writeLine(fmt.Sprintf("WRITE %s %d", name, n)); err != nil {
		return err
	}
	status, err := l.readLine()
	if err != nil {
		return err
	}
	if err := errFromLine(status); err != nil {
		return err
	}

	for {
		fmt.Fprint(l.out, "edit (blank line to commit)> ")
		line, err := edits.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if err := l.writeLine(line); err != nil {
			return err
		}
		reply, err := l.readLine()
		if err != nil {
			return err
		}
		if err := errFromLine(reply); err != nil {
			fmt.Fprintln(l.out, reply)
			continue
		}
		fmt.Fprintln(l.out, reply)
	}

	if err := l.writeLine("ETIRW " + name); err != nil {
		return err
	}
	reply, err := l.readLine()
	if err != nil {
		return err
	}
	if err := errFromLine(reply); err != nil {
		return err
	}
	fmt.Fprintln(l.out, reply)
	return nil
}

// Undo sends UNDO on this Node link. The REPL's UNDO command does not use
// it; it goes through the Directory (Client.Undo).
func (l *NodeLink) Undo(name string) error {
	return l.simple("UNDO " + name)
}

// Stream plays back STREAM, printing each word as it arrives. The client
// never sends STOP or PAUSE itself. control is read only after the Node
// reports STREAM_PAUSED, for the line to send back (RESUME or anything
// else); when control is nil, RESUME is sent.
func (l *NodeLink) Stream(name string, control *bufio.Reader) error {
	if err := l.writeLine("STREAM " + name); err != nil {
		return err
	}
	status, err := l.readLine()
	if err != nil {
		return err
	}
	if err := errFromLine(status); err != nil {
		return err
	}
	if status == "OK_200 EMPTY_FILE_STREAM" {
		return nil
	}

	for {
		word, err := l.readLine()
		if err != nil {
			return err
		}
		switch word {
		case "STREAM_COMPLETE", "STREAM_STOPPED":
			fmt.Fprintln(l.out)
			return nil
		case "STREAM_PAUSED":
			fmt.Fprint(l.out, "\n[paused] RESUME or STOP> ")
			if control == nil {
				if err := l.writeLine("RESUME"); err != nil {
					return err
				}
				continue
			}
			cmd, err := control.ReadString('\n')
			if err != nil {
				return err
			}
			if err := l.writeLine(strings.TrimSpace(cmd)); err != nil {
				return err
			}
		default:
			fmt.Fprint(l.out, word+" ")
		}
	}
}

// Checkpoint sends CHECKPOINT <file> <tag>.
func (l *NodeLink) Checkpoint(name, tag string) error {
	return l.simple(fmt.Sprintf("CHECKPOINT %s %s", name, tag))
}

// ViewCheckpoint prints tag's saved content.
func (l *NodeLink) ViewCheckpoint(name, tag string) error {
	if err := l.writeLine(fmt.Sprintf("VIEWCHECKPOINT %s %s", name, tag)); err != nil {
		return err
	}
	status, err := l.readLine()
	if err != nil {
		return err
	}
	if err := errFromLine(status); err != nil {
		return err
	}
	return l.printUntil("END_OF_CHECKPOINT")
}

// ListCheckpoints prints every saved tag for name.
func (l *NodeLink) ListCheckpoints(name string) error {
	if err := l.writeLine("LISTCHECKPOINTS " + name); err != nil {
		return err
	}
	status, err := l.readLine()
	if err != nil {
		return err
	}
	if err := errFromLine(status); err != nil {
		return err
	}
	return l.printUntil("END_OF_LIST")
}

// Revert sends REVERT <file> <tag>.
func (l *NodeLink) Revert(name, tag string) error {
	return l.simple(fmt.Sprintf("REVERT %s %s", name, tag))
}

// RequestAccess sends REQUESTACCESS <file> <-R|-W>.
func (l *NodeLink) RequestAccess(name, flag string) error {
	return l.simple(fmt.Sprintf("REQUESTACCESS %s %s", name, flag))
}

// ViewRequests prints pending access requests for name, or for every file
// the caller owns when name is empty.
func (l *NodeLink) ViewRequests(name string) error {
	if err := l.writeLine(strings.TrimSpace("VIEWREQUESTS " + name)); err != nil {
		return err
	}
	status, err := l.readLine()
	if err != nil {
		return err
	}
	if err := errFromLine(status); err != nil {
		return err
	}
	return l.printUntil("END_OF_REQUESTS")
}

// ApproveRequest sends APPROVEREQUEST <file> <requester>.
func (l *NodeLink) ApproveRequest(name, requester string) error {
	return l.simple(fmt.Sprintf("APPROVEREQUEST %s %s", name, requester))
}

// DenyRequest sends DENYREQUEST <file> <requester>.
func (l *NodeLink) DenyRequest(name, requester string) error {
	return l.simple(fmt.Sprintf("DENYREQUEST %s %s", name, requester))
}

// simple sends line and prints the single-line OK_2xx/ERR reply.
func (l *NodeLink) simple(line string) error {
	if err := l.writeLine(line); err != nil {
		return err
	}
	reply, err := l.readLine()
	if err != nil {
		return err
	}
	if err := errFromLine(reply); err != nil {
		return err
	}
	fmt.Fprintln(l.out, reply)
	return nil
}

// Exit sends EXIT and closes the link.
func (l *NodeLink) Exit() error {
	_ = l.writeLine("EXIT")
	return l.Close()
}
