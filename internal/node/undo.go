package node

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// undoEntry is one line of a file's undo journal: timestamp, backup
// filename, acting identity, and a used flag consumed by the newest-first
// scan in Undo.
type undoEntry struct {
	Timestamp int64
	Backup    string
	Identity  string
	Used      bool
}

func (e undoEntry) format() string {
	used := "0"
	if e.Used {
		used = "1"
	}
	return strings.Join([]string{strconv.FormatInt(e.Timestamp, 10), e.Backup, e.Identity, used}, "|")
}

func parseUndoEntry(line string) (undoEntry, error) {
	fields := strings.Split(line, "|")
	if len(fields) != 4 {
		return undoEntry{}, fmt.Errorf("node: malformed undo entry: %q", line)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return undoEntry{}, err
	}
	return undoEntry{
		Timestamp: ts,
		Backup:    fields[1],
		Identity:  fields[2],
		Used:      fields[3] == "1",
	}, nil
}

func (s *Store) readUndoJournal(name string) ([]undoEntry, error) {
	f, err := os.Open(s.undoPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []undoEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		e, err := parseUndoEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

func (s *Store) writeUndoJournal(name string, entries []undoEntry) error {
	f, err := os.Create(s.undoPath(name))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := w.WriteString(e.format() + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Backup copies the current live content of name to a timestamped backup
// under versions/ and appends an unused undo entry, invoked immediately
// before every committed write.
func (s *Store) Backup(name, identity string) error {
	content, err := os.ReadFile(s.contentPath(name))
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		content = nil
	}

	ts := time.Now().UnixNano()
	backupName := fmt.Sprintf("%s.%d.bak", name, ts)
	if err := os.WriteFile(filepath.Join(s.versionsDir(), backupName), content, 0o644); err != nil {
		return err
	}

	entries, err := s.readUndoJournal(name)
	if err != nil {
		return err
	}
	entries = append(entries, undoEntry{Timestamp: ts, Backup: backupName, Identity: identity, Used: false})
	return s.writeUndoJournal(name, entries)
}

// Undo scans the journal newest-first for the first unused entry, restores
// its backup over the live file, and marks it used. Returns errNoHistory
// when every entry is exhausted.
func (s *Store) Undo(name string) error {
	entries, err := s.readUndoJournal(name)
	if err != nil {
		return err
	}

	idx := -1
	for i := len(entries) - 1; i >= 0; i-- {
		if !entries[i].Used {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errNoHistory
	}

	backupPath := filepath.Join(s.versionsDir(), entries[idx].Backup)
	content, err := os.ReadFile(backupPath)
	if err != nil {
		return err
	}

	if err := s.WriteContent(name, content); err != nil {
		return err
	}

	entries[idx].Used = true
	return s.writeUndoJournal(name, entries)
}
