package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/wire"
)

// Run reads verb-prefixed commands from in until EXIT or EOF, dispatching
// each to the Directory link or, for content commands, to a freshly
// redirected Node link.
func (c *Client) Run(ctx context.Context, in io.Reader) error {
	ctx = logContext(ctx, c.identity)
	reader := bufio.NewReader(in)

	for {
		fmt.Fprint(c.out, "arbor> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		verb, rest := splitVerb(line)
		if verb == "EXIT" {
			return nil
		}
		if err := c.runCommand(ctx, verb, rest, reader); err != nil {
			fmt.Fprintln(c.out, err)
			logger.WarnCtx(ctx, "command failed", logger.Verb(verb), logger.Err(err))
		}
	}
}

func splitVerb(line string) (verb, rest string) {
	parts := strings.SplitN(line, " ", 2)
	verb = parts[0]
	if len(parts) == 2 {
		rest = strings.TrimSpace(parts[1])
	}
	return
}

func endpointAddr(ep wire.Endpoint) string {
	return fmt.Sprintf("%s:%d", ep.IP, ep.Port)
}

func (c *Client) runCommand(ctx context.Context, verb, rest string, in *bufio.Reader) error {
	switch verb {
	case "CREATE":
		return c.Create(rest)
	case "DELETE":
		return c.Delete(rest)
	case "UNDO":
		return c.Undo(rest)
	case "MOVE":
		return c.dispatchTwoArgs(rest, "usage: MOVE <old_prefix> <new_prefix>", func(a, b string) error {
			return c.Move(a, b)
		})
	case "CHOWN":
		return c.dispatchTwoArgs(rest, "usage: CHOWN <file> <new_owner>", func(a, b string) error {
			return c.Chown(a, b)
		})
	case "GRANT":
		return c.runGrant(rest)
	case "REVOKE":
		return c.dispatchTwoArgs(rest, "usage: REVOKE <file> <identity>", func(a, b string) error {
			return c.Revoke(a, b)
		})
	case "LOCATE":
		ep, err := c.Locate(rest)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, endpointAddr(ep))
		return nil
	case "SSDEADREPORT":
		return c.runSSDeadReport(rest)
	case "VIEW":
		return c.View(strings.TrimSpace(rest) == "-l")
	case "VIEWFOLDER":
		folder, long := splitLongFlag(rest)
		return c.ViewFolder(folder, long)
	case "INFO":
		return c.Info(rest)
	case "EXEC":
		if err := c.Exec(rest); err != nil {
			return err
		}
		return c.Reconnect(ctx)
	case "READ":
		return c.withNodeLink(rest, wire.MsgRead, func(link *NodeLink, name string) error {
			return link.Read(name)
		})
	case "WRITE":
		return c.runWrite(rest, in)
	case "STREAM":
		return c.withNodeLink(rest, wire.MsgStream, func(link *NodeLink, name string) error {
			return link.Stream(name, in)
		})
	case "CHECKPOINT":
		return c.runFileTag(rest, "usage: CHECKPOINT <file> <tag>", wire.MsgCheckpoint, func(link *NodeLink, name, tag string) error {
			return link.Checkpoint(name, tag)
		})
	case "VIEWCHECKPOINT":
		return c.runFileTag(rest, "usage: VIEWCHECKPOINT <file> <tag>", wire.MsgViewCheckpoint, func(link *NodeLink, name, tag string) error {
			return link.ViewCheckpoint(name, tag)
		})
	case "LISTCHECKPOINTS":
		return c.withNodeLink(rest, wire.MsgListCheckpoints, func(link *NodeLink, name string) error {
			return link.ListCheckpoints(name)
		})
	case "REVERT":
		return c.runFileTag(rest, "usage: REVERT <file> <tag>", wire.MsgRevert, func(link *NodeLink, name, tag string) error {
			return link.Revert(name, tag)
		})
	case "REQUESTACCESS":
		return c.runRequestAccess(rest)
	case "VIEWREQUESTS":
		// Requests are tracked per-Node, so unlike the text protocol's
		// bare VIEWREQUESTS (every file on the Node the caller owns), the REPL always
		// targets one file's owning Node.
		if rest == "" {
			return fmt.Errorf("usage: VIEWREQUESTS <file>")
		}
		return c.withNodeLink(rest, wire.MsgLocateFile, func(link *NodeLink, name string) error {
			return link.ViewRequests(name)
		})
	case "APPROVEREQUEST":
		return c.runResolveRequest(rest, true)
	case "DENYREQUEST":
		return c.runResolveRequest(rest, false)
	default:
		return fmt.Errorf("unrecognized command: %s", verb)
	}
}

func splitLongFlag(rest string) (arg string, long bool) {
	fields := strings.Fields(rest)
	for _, f := range fields {
		if f == "-l" {
			long = true
			continue
		}
		arg = f
	}
	return
}

func (c *Client) dispatchTwoArgs(rest, usage string, fn func(a, b string) error) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return fmt.Errorf("%s", usage)
	}
	return fn(parts[0], parts[1])
}

func (c *Client) runGrant(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 3 {
		return fmt.Errorf("usage: GRANT <file> <identity> <-R|-W>")
	}
	var perm wire.Permission
	switch parts[2] {
	case "-R":
		perm = wire.PermRead
	case "-W":
		perm = wire.PermWrite
	default:
		return fmt.Errorf("permission flag must be -R or -W")
	}
	return c.Grant(parts[0], parts[1], perm)
}

func (c *Client) runSSDeadReport(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return fmt.Errorf("usage: SSDEADREPORT <ip> <port>")
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("port must be an integer")
	}
	return c.SSDeadReport(parts[0], int32(port))
}

// withNodeLink redirects to name's owning Node via msgType and runs fn
// against a freshly dialed NodeLink, always closing it afterward.
func (c *Client) withNodeLink(name string, msgType wire.MsgType, fn func(link *NodeLink, name string) error) error {
	if name == "" {
		return fmt.Errorf("usage: %s <file>", msgType.String())
	}
	ep, err := c.Redirect(msgType, name)
	if err != nil {
		return err
	}
	link, err := DialNode(endpointAddr(ep), c.identity, c.out)
	if err != nil {
		return err
	}
	defer link.Exit()
	return fn(link, name)
}

func (c *Client) runFileTag(rest, usage string, msgType wire.MsgType, fn func(link *NodeLink, name, tag string) error) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return fmt.Errorf("%s", usage)
	}
	name, tag := parts[0], parts[1]
	ep, err := c.Redirect(msgType, name)
	if err != nil {
		return err
	}
	link, err := DialNode(endpointAddr(ep), c.identity, c.out)
	if err != nil {
		return err
	}
	defer link.Exit()
	return fn(link, name, tag)
}

func (c *Client) runWrite(rest string, in *bufio.Reader) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return fmt.Errorf("usage: WRITE <file> <sentence_index>")
	}
	name := parts[0]
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("sentence index must be an integer")
	}
	ep, err := c.Redirect(wire.MsgWrite, name)
	if err != nil {
		return err
	}
	link, err := DialNode(endpointAddr(ep), c.identity, c.out)
	if err != nil {
		return err
	}
	defer link.Exit()
	return link.Write(name, n, in)
}

// runRequestAccess locates name without a permission check (the request
// itself is what asks for one) and sends REQUESTACCESS on the owning Node.
func (c *Client) runRequestAccess(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return fmt.Errorf("usage: REQUESTACCESS <file> <-R|-W>")
	}
	name, flag := parts[0], parts[1]
	ep, err := c.Locate(name)
	if err != nil {
		return err
	}
	link, err := DialNode(endpointAddr(ep), c.identity, c.out)
	if err != nil {
		return err
	}
	defer link.Exit()
	return link.RequestAccess(name, flag)
}

func (c *Client) runResolveRequest(rest string, approve bool) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return fmt.Errorf("usage: APPROVEREQUEST|DENYREQUEST <file> <requester>")
	}
	name, requester := parts[0], parts[1]
	ep, err := c.Locate(name)
	if err != nil {
		return err
	}
	link, err := DialNode(endpointAddr(ep), c.identity, c.out)
	if err != nil {
		return err
	}
	defer link.Exit()
	if approve {
		return link.ApproveRequest(name, requester)
	}
	return link.DenyRequest(name, requester)
}
