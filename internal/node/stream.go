package node

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"time"
)

// streamWordDelay is the pause between words during STREAM, per the spec.
const streamWordDelay = 100 * time.Millisecond

// StreamOutcome reports how a STREAM session ended.
type StreamOutcome int

const (
	StreamCompleted StreamOutcome = iota
	StreamStopped
	StreamAborted
)

// StreamWords streams words one at a time with a pause between each,
// polling conn non-blockingly between words for STOP/PAUSE control lines.
// reader must be fed from the same connection as conn so in-band control
// lines are observed.
func StreamWords(conn net.Conn, reader *bufio.Reader, words []string, send func(string) error) (StreamOutcome, error) {
	for _, word := range words {
		if err := send(word); err != nil {
			return StreamAborted, err
		}

		deadline := time.Now().Add(streamWordDelay)
		for {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				break
			}

			_ = conn.SetReadDeadline(time.Now().Add(remaining))
			line, err := reader.ReadString('\n')
			_ = conn.SetReadDeadline(time.Time{})

			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					continue
				}
				return StreamAborted, err
			}

			switch strings.TrimSpace(line) {
			case "STOP":
				if err := send("STREAM_STOPPED"); err != nil {
					return StreamAborted, err
				}
				return StreamStopped, nil
			case "PAUSE":
				if err := send("STREAM_PAUSED"); err != nil {
					return StreamAborted, err
				}
				resume, err := reader.ReadString('\n')
				if err != nil {
					return StreamAborted, err
				}
				if strings.TrimSpace(resume) != "RESUME" {
					return StreamAborted, fmt.Errorf("node: stream aborted: expected RESUME, got %q", resume)
				}
				deadline = time.Now().Add(streamWordDelay)
			default:
				// Unrecognized input during the quiet window is ignored.
				deadline = time.Now().Add(streamWordDelay)
			}
		}
	}
	return StreamCompleted, nil
}
