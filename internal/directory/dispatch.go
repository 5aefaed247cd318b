package directory

import (
	"context"

	"github.com/arborfs/arbor/internal/wire"
)

// dispatchRequest is one work item handed to a slot's connection actor:
// a frame to send, and a one-shot channel to carry back the matching
// reply once the reader loop sees it.
type dispatchRequest struct {
	msgType wire.MsgType
	name    string
	payload []byte
	reply   chan dispatchReply
}

type dispatchReply struct {
	frame *wire.Frame
	err   error
}

// runActor owns a slot's control connection with a writer half and a
// reader half: the writer drains dispatch requests in order, the reader
// matches each inbound frame to the oldest outstanding request, unless
// the frame is one of the few types a Node can send unprompted (an ACL
// change a client resolved directly against the Node), which never
// appear as a reply to anything the Directory sent.
func (s *Slot) runActor(onFailure func(slot int), onPush func(slot int, frame *wire.Frame)) {
	go s.readerLoop(onFailure, onPush)
	s.writerLoop(onFailure)
}

func (s *Slot) writerLoop(onFailure func(slot int)) {
	for {
		select {
		case req := <-s.work:
			s.mu.RLock()
			conn := s.conn
			s.mu.RUnlock()

			if err := wire.WriteFrame(conn, req.msgType, 0, uint16(s.Index), req.name, req.payload); err != nil {
				if req.reply != nil {
					req.reply <- dispatchReply{err: err}
				}
				onFailure(s.Index)
				return
			}
			if req.reply != nil {
				s.pushPending(req.reply)
			}
		case <-s.done:
			return
		}
	}
}

func (s *Slot) readerLoop(onFailure func(slot int), onPush func(slot int, frame *wire.Frame)) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	for {
		frame, err := wire.ReadFrame(conn)
		if err != nil {
			s.failPending(err)
			onFailure(s.Index)
			return
		}

		if isNodePush(frame.Header.MsgType) {
			onPush(s.Index, frame)
			continue
		}

		reply, ok := s.popPending()
		if !ok {
			continue
		}
		reply <- dispatchReply{frame: frame}
	}
}

// isNodePush reports whether t is a message type a Node sends without the
// Directory having asked for it. ADD_ACCESS/REM_ACCESS are otherwise only
// Client->Directory types, so their arrival on a Node's control link is
// unambiguous.
func isNodePush(t wire.MsgType) bool {
	switch t {
	case wire.MsgAddAccess, wire.MsgRemAccess:
		return true
	default:
		return false
	}
}

func (s *Slot) pushPending(reply chan dispatchReply) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pendingQueue = append(s.pendingQueue, reply)
}

func (s *Slot) popPending() (chan dispatchReply, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if len(s.pendingQueue) == 0 {
		return nil, false
	}
	reply := s.pendingQueue[0]
	s.pendingQueue = s.pendingQueue[1:]
	return reply, true
}

func (s *Slot) failPending(err error) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for _, reply := range s.pendingQueue {
		reply <- dispatchReply{err: err}
	}
	s.pendingQueue = nil
}

// Dispatch sends one request and waits for its reply, serialised through
// the slot's connection actor.
func (s *Slot) Dispatch(ctx context.Context, msgType wire.MsgType, name string, payload []byte) (*wire.Frame, error) {
	if !s.Active() {
		return nil, errSlotInactive
	}

	reply := make(chan dispatchReply, 1)
	select {
	case s.work <- dispatchRequest{msgType: msgType, name: name, payload: payload, reply: reply}:
	case <-s.done:
		return nil, errSlotInactive
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-reply:
		return r.frame, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// FireAndForget enqueues a request that expects no reply, per the wire
// catalogue's INTERNAL_SET_OWNER ("no ACK"). It does not block past the
// work channel hand-off.
func (s *Slot) FireAndForget(msgType wire.MsgType, name string, payload []byte) {
	if !s.Active() {
		return
	}
	select {
	case s.work <- dispatchRequest{msgType: msgType, name: name, payload: payload}:
	case <-s.done:
	}
}
