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

// checkpointMeta is one line of a file's checkpoint metadata: timestamp,
// tag, creator identity, and snapshot size.
type checkpointMeta struct {
	Timestamp int64
	Tag       string
	Creator   string
	Size      int64
}

func (m checkpointMeta) format() string {
	return strings.Join([]string{
		strconv.FormatInt(m.Timestamp, 10), m.Tag, m.Creator, strconv.FormatInt(m.Size, 10),
	}, ",")
}

func parseCheckpointMeta(line string) (checkpointMeta, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return checkpointMeta{}, fmt.Errorf("node: malformed checkpoint meta: %q", line)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return checkpointMeta{}, err
	}
	size, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return checkpointMeta{}, err
	}
	return checkpointMeta{Timestamp: ts, Tag: fields[1], Creator: fields[2], Size: size}, nil
}

func (s *Store) readCheckpointMeta(name string) ([]checkpointMeta, error) {
	f, err := os.Open(s.checkpointMetaPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var metas []checkpointMeta
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m, err := parseCheckpointMeta(line)
		if err != nil {
			continue
		}
		metas = append(metas, m)
	}
	return metas, scanner.Err()
}

func (s *Store) writeCheckpointMeta(name string, metas []checkpointMeta) error {
	f, err := os.Create(s.checkpointMetaPath(name))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, m := range metas {
		if _, err := w.WriteString(m.format() + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Checkpoint writes an immutable tagged snapshot of name's current
// content. Fails if tag already exists for this file.
func (s *Store) Checkpoint(name, tag, creator string) error {
	metas, err := s.readCheckpointMeta(name)
	if err != nil {
		return err
	}
	for _, m := range metas {
		if m.Tag == tag {
			return errCheckpointExists(tag)
		}
	}

	content, err := os.ReadFile(s.contentPath(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(s.checkpointsDir(name), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.checkpointsDir(name), tag), content, 0o644); err != nil {
		return err
	}

	metas = append(metas, checkpointMeta{
		Timestamp: time.Now().Unix(),
		Tag:       tag,
		Creator:   creator,
		Size:      int64(len(content)),
	})
	return s.writeCheckpointMeta(name, metas)
}

// ViewCheckpoint returns a tagged snapshot's content.
func (s *Store) ViewCheckpoint(name, tag string) ([]byte, error) {
	path := filepath.Join(s.checkpointsDir(name), tag)
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errNoCheckpoint(tag)
		}
		return nil, err
	}
	return content, nil
}

// ListCheckpoints returns every checkpoint's metadata for name.
func (s *Store) ListCheckpoints(name string) ([]checkpointMeta, error) {
	return s.readCheckpointMeta(name)
}

// Revert restores name's live content to a checkpoint's snapshot, taking
// a pre-revert backup first so a single UNDO can restore the pre-revert
// state.
func (s *Store) Revert(name, tag, identity string) error {
	content, err := s.ViewCheckpoint(name, tag)
	if err != nil {
		return err
	}
	if err := s.Backup(name, identity); err != nil {
		return err
	}
	return s.WriteContent(name, content)
}
