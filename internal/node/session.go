package node

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/arborfs/arbor/internal/logger"
	"github.com/arborfs/arbor/internal/wire"
	"github.com/arborfs/arbor/internal/wireerr"
	"github.com/google/uuid"
)

// clientSession is one worker handling a direct Client<->Node text
// connection: USER handshake, then verb-prefixed commands until EXIT or
// disconnect.
type clientSession struct {
	node     *Node
	conn     net.Conn
	reader   *bufio.Reader
	sessionID string
	connID   int
	identity string

	// openWrites tracks sentence indices the session currently holds a
	// lock on, for the session's own WRITE -> ETIRW bookkeeping.
	openWrites map[int]string
}

func (n *Node) handleClient(conn net.Conn) {
	connID := n.nextConnID()
	sess := &clientSession{
		node:       n,
		conn:       conn,
		reader:     bufio.NewReader(conn),
		sessionID:  uuid.NewString(),
		connID:     connID,
		openWrites: make(map[int]string),
	}

	n.trackClient(sess.sessionID, conn)
	defer n.untrackClient(sess.sessionID)
	defer conn.Close()
	defer n.Locks.ReleaseAll(sess.sessionID)
	defer sess.cleanupSwaps()

	ctx := logger.WithContext(context.Background(), logger.NewLogContext(sess.sessionID, conn.RemoteAddr().String()))

	if err := sess.handshake(); err != nil {
		logger.WarnCtx(ctx, "client handshake failed", logger.Err(err))
		return
	}
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithIdentity(sess.identity))
	logger.InfoCtx(ctx, "client session started", logger.Identity(sess.identity))

	for {
		line, err := sess.reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			continue
		}

		verb, rest := splitVerb(line)
		logCtx := logger.WithContext(ctx, logger.FromContext(ctx).WithVerb(verb))
		if verb == "EXIT" {
			logger.InfoCtx(logCtx, "client exited")
			return
		}
		if err := sess.dispatch(logCtx, verb, rest); err != nil {
			logger.WarnCtx(logCtx, "command failed", logger.Err(err))
		}
	}
}

func (s *clientSession) cleanupSwaps() {
	for sentence, file := range s.openWrites {
		s.node.Store.removeSwap(file, sentence, s.connID)
	}
}

func splitVerb(line string) (verb, rest string) {
	parts := strings.SplitN(line, " ", 2)
	verb = parts[0]
	if len(parts) == 2 {
		rest = parts[1]
	}
	return
}

func (s *clientSession) handshake() error {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return err
	}
	line = strings.TrimSpace(line)
	verb, rest := splitVerb(line)
	if verb != "USER" || rest == "" {
		return s.writeLine("ERR_400 expected USER <identity>")
	}
	s.identity = rest
	return s.writeLine("OK_200 USER_ACCEPTED")
}

func (s *clientSession) writeLine(line string) error {
	_, err := s.conn.Write([]byte(line + "\n"))
	return err
}

func (s *clientSession) writeErr(err error) error {
	if werr, ok := wireerr.As(err); ok {
		return s.writeLine(werr.TextLine())
	}
	return s.writeLine(wireerr.NewInternal(err.Error()).TextLine())
}

func (s *clientSession) dispatch(ctx context.Context, verb, rest string) error {
	switch verb {
	case "CREATE":
		return s.handleCreate(rest)
	case "DELETE":
		return s.handleDelete(rest)
	case "READ":
		return s.handleRead(rest)
	case "WRITE":
		return s.handleWriteOpen(rest)
	case "ETIRW":
		return s.handleCommit(rest)
	case "UNDO":
		return s.handleUndo(rest)
	case "STREAM":
		return s.handleStream(rest)
	case "CHECKPOINT":
		return s.handleCheckpoint(rest)
	case "VIEWCHECKPOINT":
		return s.handleViewCheckpoint(rest)
	case "LISTCHECKPOINTS":
		return s.handleListCheckpoints(rest)
	case "REVERT":
		return s.handleRevert(rest)
	case "REQUESTACCESS":
		return s.handleRequestAccess(rest)
	case "VIEWREQUESTS":
		return s.handleViewRequests(rest)
	case "APPROVEREQUEST":
		return s.handleResolveRequest(rest, true)
	case "DENYREQUEST":
		return s.handleResolveRequest(rest, false)
	default:
		// A bare content line inside an open WRITE session:
		// "<word_index> <content>".
		if len(s.openWrites) > 0 {
			return s.handleWriteLine(verb, rest)
		}
		return s.writeErr(wireerr.NewBadRequest("unrecognized command: " + verb))
	}
}

func (s *clientSession) handleCreate(name string) error {
	if name == "" {
		return s.writeErr(wireerr.NewBadRequest("missing filename"))
	}
	if err := s.node.Store.Create(name, s.identity); err != nil {
		return s.writeErr(err)
	}
	return s.writeLine("OK_200 CREATED")
}

func (s *clientSession) handleDelete(name string) error {
	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if meta.Owner != s.identity {
		return s.writeErr(errPermissionDenied)
	}
	if err := s.node.Store.Delete(name); err != nil {
		return s.writeErr(err)
	}
	return s.writeLine("OK_200 DELETED")
}

func (s *clientSession) handleRead(name string) error {
	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if !meta.CheckPermission(s.identity, wire.PermRead) {
		return s.writeErr(errPermissionDenied)
	}

	content, err := s.node.Store.ReadContent(name, s.identity)
	if err != nil {
		return s.writeErr(err)
	}
	if len(content) == 0 {
		return s.writeLine("OK_200 EMPTY_FILE")
	}
	if err := s.writeLine("OK_200 FILE_CONTENT"); err != nil {
		return err
	}
	if err := s.writeLine(string(content)); err != nil {
		return err
	}
	return s.writeLine("END_OF_FILE")
}

func (s *clientSession) handleWriteOpen(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return s.writeErr(wireerr.NewBadRequest("usage: WRITE <file> <n>"))
	}
	name := parts[0]
	n, err := strconv.Atoi(parts[1])
	if err != nil {
		return s.writeErr(wireerr.NewBadRequest("sentence index must be an integer"))
	}

	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if !meta.CheckPermission(s.identity, wire.PermWrite) {
		return s.writeErr(errPermissionDenied)
	}

	content, err := s.node.Store.ReadContent(name, s.identity)
	if err != nil {
		return s.writeErr(err)
	}
	sentences := SplitSentences(Tokenize(string(content)))
	min, max := WritableSlots(sentences)
	if n < min || n > max {
		return s.writeErr(wireerr.NewNotFound("sentence", strconv.Itoa(n)))
	}

	if err := s.node.Locks.Acquire(name, n, s.sessionID); err != nil {
		return s.writeErr(err)
	}
	// The swap file itself is created lazily, on the first edit line
	// (handleWriteLine), so a WRITE/ETIRW pair with no edits leaves no
	// swap behind and takes no backup.
	s.openWrites[n] = name
	return s.writeLine("OK_200 WRITE MODE ENABLED")
}

func (s *clientSession) handleWriteLine(wordIndexStr, content string) error {
	wordIndex, err := strconv.Atoi(wordIndexStr)
	if err != nil {
		return s.writeErr(wireerr.NewBadRequest("expected \"<word_index> <content>\""))
	}

	// A session may hold several open sentences; the edit goes to one of
	// them. With more than one open, which one receives it follows map
	// iteration order and is not defined.
	var sentence int
	var name string
	for n, f := range s.openWrites {
		sentence, name = n, f
	}
	if name == "" {
		return s.writeErr(wireerr.NewBadRequest("no open WRITE session"))
	}

	if _, err := s.node.Store.openSwap(name, sentence, s.connID); err != nil {
		return s.writeErr(err)
	}
	swapText, err := s.node.Store.readSwap(name, sentence, s.connID)
	if err != nil {
		return s.writeErr(err)
	}
	sentences := SplitSentences(Tokenize(swapText))
	idx := sentence - 1
	for idx >= len(sentences) {
		sentences = append(sentences, Sentence{})
	}

	updated, err := InsertWord(sentences[idx], wordIndex, content)
	if err != nil {
		return s.writeErr(err)
	}
	sentences[idx] = updated

	if err := s.node.Store.writeSwap(name, sentence, s.connID, JoinSentences(sentences)); err != nil {
		return s.writeErr(err)
	}
	return s.writeLine("OK_200 EDIT APPLIED")
}

func (s *clientSession) handleCommit(nameArg string) error {
	var sentence int
	var name string
	if nameArg != "" {
		name = nameArg
		for n, f := range s.openWrites {
			if f == name {
				sentence = n
			}
		}
	} else {
		for n, f := range s.openWrites {
			sentence, name = n, f
		}
	}
	if name == "" {
		return s.writeErr(wireerr.NewBadRequest("no open WRITE session"))
	}

	defer func() {
		s.node.Locks.Release(name, sentence, s.sessionID)
		delete(s.openWrites, sentence)
	}()

	if !s.node.Store.hasSwap(name, sentence, s.connID) {
		return s.writeLine("OK_200 WRITE COMPLETED")
	}

	liveContent, err := s.node.Store.ReadContent(name, s.identity)
	if err != nil {
		return s.writeErr(err)
	}
	swapText, err := s.node.Store.readSwap(name, sentence, s.connID)
	if err != nil {
		return s.writeErr(err)
	}

	merged := Merge(string(liveContent), swapText, sentence)

	if err := s.node.Store.Backup(name, s.identity); err != nil {
		return s.writeErr(err)
	}
	if err := s.node.Store.WriteContent(name, []byte(merged)); err != nil {
		return s.writeErr(err)
	}
	s.node.Store.removeSwap(name, sentence, s.connID)
	s.node.Metrics.ObserveCommit()

	return s.writeLine("OK_200 WRITE COMPLETED")
}

func (s *clientSession) handleUndo(name string) error {
	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if meta.Owner != s.identity {
		return s.writeErr(errPermissionDenied)
	}
	if s.node.Locks.AnyLocked(name) {
		return s.writeErr(errFileHasLocks)
	}

	err := s.node.Store.Undo(name)
	s.node.Metrics.ObserveUndo(err == nil)
	if err != nil {
		return s.writeErr(err)
	}
	return s.writeLine("OK_200 UNDO COMPLETED")
}

func (s *clientSession) handleStream(name string) error {
	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if !meta.CheckPermission(s.identity, wire.PermRead) {
		return s.writeErr(errPermissionDenied)
	}

	content, err := s.node.Store.ReadContent(name, s.identity)
	if err != nil {
		return s.writeErr(err)
	}
	words := Tokenize(string(content))
	if len(words) == 0 {
		return s.writeLine("OK_200 EMPTY_FILE_STREAM")
	}

	outcome, err := StreamWords(s.conn, s.reader, words, s.writeLine)
	if err != nil {
		return err
	}
	if outcome == StreamCompleted {
		s.node.Metrics.ObserveStreamComplete()
		return s.writeLine("STREAM_COMPLETE")
	}
	return nil
}

func (s *clientSession) handleCheckpoint(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return s.writeErr(wireerr.NewBadRequest("usage: CHECKPOINT <file> <tag>"))
	}
	name, tag := parts[0], parts[1]

	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if !meta.CheckPermission(s.identity, wire.PermWrite) {
		return s.writeErr(errPermissionDenied)
	}
	if s.node.Locks.AnyLocked(name) {
		return s.writeErr(errFileHasLocks)
	}

	if err := s.node.Store.Checkpoint(name, tag, s.identity); err != nil {
		return s.writeErr(err)
	}
	return s.writeLine("OK_200 CHECKPOINT CREATED")
}

func (s *clientSession) handleViewCheckpoint(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return s.writeErr(wireerr.NewBadRequest("usage: VIEWCHECKPOINT <file> <tag>"))
	}
	name, tag := parts[0], parts[1]

	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if !meta.CheckPermission(s.identity, wire.PermRead) {
		return s.writeErr(errPermissionDenied)
	}

	content, err := s.node.Store.ViewCheckpoint(name, tag)
	if err != nil {
		return s.writeErr(err)
	}
	if err := s.writeLine("OK_200 CHECKPOINT_CONTENT"); err != nil {
		return err
	}
	if err := s.writeLine(string(content)); err != nil {
		return err
	}
	return s.writeLine("END_OF_CHECKPOINT")
}

func (s *clientSession) handleListCheckpoints(name string) error {
	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if !meta.CheckPermission(s.identity, wire.PermRead) {
		return s.writeErr(errPermissionDenied)
	}

	metas, err := s.node.Store.ListCheckpoints(name)
	if err != nil {
		return s.writeErr(err)
	}
	if err := s.writeLine("OK_200 CHECKPOINTS"); err != nil {
		return err
	}
	for _, m := range metas {
		if err := s.writeLine(fmt.Sprintf("%s %d %s %d", m.Tag, m.Timestamp, m.Creator, m.Size)); err != nil {
			return err
		}
	}
	return s.writeLine("END_OF_LIST")
}

func (s *clientSession) handleRevert(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return s.writeErr(wireerr.NewBadRequest("usage: REVERT <file> <tag>"))
	}
	name, tag := parts[0], parts[1]

	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if !meta.CheckPermission(s.identity, wire.PermWrite) {
		return s.writeErr(errPermissionDenied)
	}
	if s.node.Locks.AnyLocked(name) {
		return s.writeErr(errFileHasLocks)
	}

	if err := s.node.Store.Revert(name, tag, s.identity); err != nil {
		return s.writeErr(err)
	}
	return s.writeLine("OK_200 REVERTED")
}

func (s *clientSession) handleRequestAccess(rest string) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return s.writeErr(wireerr.NewBadRequest("usage: REQUESTACCESS <file> <-R|-W>"))
	}
	name, flag := parts[0], parts[1]

	var perm wire.Permission
	switch flag {
	case "-R":
		perm = wire.PermRead
	case "-W":
		perm = wire.PermWrite
	default:
		return s.writeErr(wireerr.NewBadRequest("permission flag must be -R or -W"))
	}

	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if meta.Owner == s.identity {
		return s.writeErr(wireerr.NewBadRequest("owner already has full access"))
	}
	if meta.CheckPermission(s.identity, perm) {
		return s.writeErr(wireerr.NewBadRequest("already holds requested permission"))
	}

	if err := s.node.Store.RequestAccess(name, s.identity, perm); err != nil {
		return s.writeErr(err)
	}
	return s.writeLine("OK_200 REQUEST RECORDED")
}

func (s *clientSession) handleViewRequests(rest string) error {
	var names []string
	if rest != "" {
		meta := s.node.Store.Get(rest)
		if meta == nil {
			return s.writeErr(errFileNotFound(rest))
		}
		if meta.Owner != s.identity {
			return s.writeErr(errPermissionDenied)
		}
		names = []string{rest}
	} else {
		for _, m := range s.node.Store.All() {
			if m.Owner == s.identity {
				names = append(names, m.Name)
			}
		}
	}

	if err := s.writeLine("OK_200 REQUESTS"); err != nil {
		return err
	}
	for _, name := range names {
		reqs, err := s.node.Store.ViewRequests(name)
		if err != nil {
			return s.writeErr(err)
		}
		for _, r := range reqs {
			if r.Status != RequestPending {
				continue
			}
			if err := s.writeLine(fmt.Sprintf("%s %s %s %d", name, r.Requester, r.Permission, r.Timestamp)); err != nil {
				return err
			}
		}
	}
	return s.writeLine("END_OF_REQUESTS")
}

func (s *clientSession) handleResolveRequest(rest string, approve bool) error {
	parts := strings.Fields(rest)
	if len(parts) != 2 {
		return s.writeErr(wireerr.NewBadRequest("usage: APPROVEREQUEST|DENYREQUEST <file> <requester>"))
	}
	name, requester := parts[0], parts[1]

	meta := s.node.Store.Get(name)
	if meta == nil {
		return s.writeErr(errFileNotFound(name))
	}
	if meta.Owner != s.identity {
		return s.writeErr(errPermissionDenied)
	}

	resolved, err := s.node.Store.ResolveRequest(name, requester, approve)
	if err != nil {
		return s.writeErr(err)
	}

	if approve {
		s.node.notifyDirectoryACLChange(name, resolved.Requester, resolved.Permission)
		return s.writeLine("OK_200 REQUEST APPROVED")
	}
	return s.writeLine("OK_200 REQUEST DENIED")
}
