// Package node implements the storage Node: its on-disk layout, sentence
// lock table, three-way commit merge, undo journal, checkpoint set,
// access request log, and streaming and direct-client protocols.
package node

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arborfs/arbor/internal/wire"
	"github.com/arborfs/arbor/internal/wireerr"
)

// FileMeta is the Node's authoritative on-disk record for one file:
// the wire file record plus the byte size of its content.
type FileMeta struct {
	Name           string
	Size           int64
	WordCount      int64
	Created        int64
	Modified       int64
	LastAccessed   int64
	LastAccessedBy string
	Owner          string
	Folder         string
	ACL            []wire.ACLEntry
}

func (m *FileMeta) toRecord() *wire.FileRecord {
	return &wire.FileRecord{
		Name:           m.Name,
		Owner:          m.Owner,
		ACL:            m.ACL,
		WordCount:      m.WordCount,
		CharCount:      m.Size,
		Created:        m.Created,
		Modified:       m.Modified,
		LastAccessed:   m.LastAccessed,
		LastAccessedBy: m.LastAccessedBy,
		Folder:         m.Folder,
	}
}

// CheckPermission reports whether identity may act on this file at the
// requested level: the owner always succeeds, otherwise the ACL must carry
// an entry whose permission is at least the requested one.
func (m *FileMeta) CheckPermission(identity string, requested wire.Permission) bool {
	if identity == m.Owner {
		return true
	}
	for _, e := range m.ACL {
		if e.Identity == identity {
			return e.Permission.Satisfies(requested)
		}
	}
	return false
}

func fromRecord(rec *wire.FileRecord, size int64) *FileMeta {
	return &FileMeta{
		Name:           rec.Name,
		Size:           size,
		WordCount:      rec.WordCount,
		Created:        rec.Created,
		Modified:       rec.Modified,
		LastAccessed:   rec.LastAccessed,
		LastAccessedBy: rec.LastAccessedBy,
		Owner:          rec.Owner,
		Folder:         rec.Folder,
		ACL:            rec.ACL,
	}
}

// Store owns one Node's base directory: files/, metadata/, undo/,
// versions/, checkpoints/, checkpoint_meta/, access_requests/, logs/.
type Store struct {
	base string

	mu    sync.RWMutex
	files map[string]*FileMeta
}

func NewStore(base string) *Store {
	return &Store{base: base, files: make(map[string]*FileMeta)}
}

func (s *Store) filesDir() string           { return filepath.Join(s.base, "files") }
func (s *Store) metadataPath() string       { return filepath.Join(s.base, "metadata", "metadata.txt") }
func (s *Store) undoPath(name string) string {
	return filepath.Join(s.base, "undo", name+".undo")
}
func (s *Store) versionsDir() string { return filepath.Join(s.base, "versions") }
func (s *Store) checkpointsDir(name string) string {
	return filepath.Join(s.base, "checkpoints", name)
}
func (s *Store) checkpointMetaPath(name string) string {
	return filepath.Join(s.base, "checkpoint_meta", name+".meta")
}
func (s *Store) accessRequestsPath(name string) string {
	return filepath.Join(s.base, "access_requests", name+".requests")
}
func (s *Store) logsDir() string { return filepath.Join(s.base, "logs") }

func (s *Store) contentPath(name string) string {
	return filepath.Join(s.filesDir(), name)
}

// Init creates the base directory layout and loads metadata.txt.
func (s *Store) Init() error {
	dirs := []string{
		s.filesDir(),
		filepath.Join(s.base, "metadata"),
		filepath.Join(s.base, "undo"),
		s.versionsDir(),
		filepath.Join(s.base, "checkpoints"),
		filepath.Join(s.base, "checkpoint_meta"),
		filepath.Join(s.base, "access_requests"),
		s.logsDir(),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("node store: create %s: %w", d, err)
		}
	}
	return s.loadMetadata()
}

var swapFileRe = regexp.MustCompile(`_\d+_\d+\.swap$`)

// SweepOrphanSwaps deletes every *_<digits>_<digits>.swap file left under
// files/ by a previous run before the public listener opens.
func (s *Store) SweepOrphanSwaps() error {
	entries, err := os.ReadDir(s.filesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if swapFileRe.MatchString(e.Name()) {
			_ = os.Remove(filepath.Join(s.filesDir(), e.Name()))
		}
	}
	return nil
}

// loadMetadata parses metadata.txt: one comma-delimited record per line,
// fields filename,size,word_count,created,modified,last_accessed,
// last_accessed_by|-,owner|-,folder|-,acl_count,acl_entries where
// acl_entries is a semicolon-separated list of identity:perm pairs.
func (s *Store) loadMetadata() error {
	f, err := os.Open(s.metadataPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	s.mu.Lock()
	defer s.mu.Unlock()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		meta, err := parseMetadataLine(line)
		if err != nil {
			continue
		}
		s.files[meta.Name] = meta
	}
	return scanner.Err()
}

func parseMetadataLine(line string) (*FileMeta, error) {
	fields := strings.Split(line, ",")
	if len(fields) < 11 {
		return nil, fmt.Errorf("node store: malformed metadata line: %q", line)
	}

	m := &FileMeta{Name: fields[0]}
	var err error
	if m.Size, err = strconv.ParseInt(fields[1], 10, 64); err != nil {
		return nil, err
	}
	if m.WordCount, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
		return nil, err
	}
	if m.Created, err = strconv.ParseInt(fields[3], 10, 64); err != nil {
		return nil, err
	}
	if m.Modified, err = strconv.ParseInt(fields[4], 10, 64); err != nil {
		return nil, err
	}
	if m.LastAccessed, err = strconv.ParseInt(fields[5], 10, 64); err != nil {
		return nil, err
	}
	m.LastAccessedBy = unblank(fields[6])
	m.Owner = unblank(fields[7])
	m.Folder = unblank(fields[8])

	aclCount, err := strconv.Atoi(fields[9])
	if err != nil {
		return nil, err
	}
	aclField := strings.Join(fields[10:], ",")
	if aclCount > 0 && aclField != "" {
		for _, entry := range strings.Split(aclField, ";") {
			if entry == "" {
				continue
			}
			parts := strings.SplitN(entry, ":", 2)
			if len(parts) != 2 {
				continue
			}
			perm, _ := strconv.Atoi(parts[1])
			m.ACL = append(m.ACL, wire.ACLEntry{Identity: parts[0], Permission: wire.Permission(perm)})
		}
	}
	return m, nil
}

func unblank(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

func blank(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatMetadataLine(m *FileMeta) string {
	aclParts := make([]string, 0, len(m.ACL))
	for _, e := range m.ACL {
		aclParts = append(aclParts, fmt.Sprintf("%s:%d", e.Identity, e.Permission))
	}
	return strings.Join([]string{
		m.Name,
		strconv.FormatInt(m.Size, 10),
		strconv.FormatInt(m.WordCount, 10),
		strconv.FormatInt(m.Created, 10),
		strconv.FormatInt(m.Modified, 10),
		strconv.FormatInt(m.LastAccessed, 10),
		blank(m.LastAccessedBy),
		blank(m.Owner),
		blank(m.Folder),
		strconv.Itoa(len(m.ACL)),
		strings.Join(aclParts, ";"),
	}, ",")
}

// saveMetadataLocked rewrites metadata.txt from the in-memory table. Caller
// must hold s.mu.
func (s *Store) saveMetadataLocked() error {
	f, err := os.Create(s.metadataPath())
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, m := range s.files {
		if _, err := w.WriteString(formatMetadataLine(m) + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// All returns a snapshot of every file record, for REGISTER_FILE sync.
func (s *Store) All() []*FileMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*FileMeta, 0, len(s.files))
	for _, m := range s.files {
		cp := *m
		out = append(out, &cp)
	}
	return out
}

// Get returns a copy of the metadata for name, or nil if absent.
func (s *Store) Get(name string) *FileMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.files[name]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// Create registers a brand-new, empty file owned by identity.
func (s *Store) Create(name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[name]; exists {
		return wireerr.NewConflict("file already exists: " + name)
	}

	now := time.Now().Unix()
	if err := os.WriteFile(s.contentPath(name), nil, 0o644); err != nil {
		return err
	}

	s.files[name] = &FileMeta{
		Name:     name,
		Owner:    owner,
		Created:  now,
		Modified: now,
	}
	return s.saveMetadataLocked()
}

// Delete removes a file's content and metadata.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[name]; !exists {
		return errFileNotFound(name)
	}
	delete(s.files, name)
	_ = os.Remove(s.contentPath(name))
	_ = os.Remove(s.undoPath(name))
	_ = os.RemoveAll(s.checkpointsDir(name))
	_ = os.Remove(s.checkpointMetaPath(name))
	_ = os.Remove(s.accessRequestsPath(name))
	return s.saveMetadataLocked()
}

// ReadContent returns a file's raw bytes and updates last-access metadata.
func (s *Store) ReadContent(name, identity string) ([]byte, error) {
	s.mu.Lock()
	m, ok := s.files[name]
	if !ok {
		s.mu.Unlock()
		return nil, errFileNotFound(name)
	}
	m.LastAccessed = time.Now().Unix()
	m.LastAccessedBy = identity
	err := s.saveMetadataLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return os.ReadFile(s.contentPath(name))
}

// WriteContent atomically replaces a file's content and refreshes its
// size/word-count/modified metadata.
func (s *Store) WriteContent(name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.files[name]
	if !ok {
		return errFileNotFound(name)
	}

	tmp := s.contentPath(name) + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.contentPath(name)); err != nil {
		return err
	}

	m.Size = int64(len(content))
	m.WordCount = int64(len(Tokenize(string(content))))
	m.Modified = time.Now().Unix()
	return s.saveMetadataLocked()
}

// SetOwner updates a file's owner (INTERNAL_SET_OWNER).
func (s *Store) SetOwner(name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.files[name]
	if !ok {
		return errFileNotFound(name)
	}
	m.Owner = owner
	return s.saveMetadataLocked()
}

// SetFolder updates a file's folder path (INTERNAL_SET_FOLDER).
func (s *Store) SetFolder(name, folder string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.files[name]
	if !ok {
		return errFileNotFound(name)
	}
	m.Folder = folder
	return s.saveMetadataLocked()
}

// RewriteFolderPrefix updates every file whose folder begins with oldPrefix
// to newPrefix, for a folder rename/move. Returns the names touched.
func (s *Store) RewriteFolderPrefix(oldPrefix, newPrefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []string
	for _, m := range s.files {
		if m.Folder == oldPrefix || strings.HasPrefix(m.Folder, oldPrefix+"/") {
			m.Folder = newPrefix + strings.TrimPrefix(m.Folder, oldPrefix)
			touched = append(touched, m.Name)
		}
	}
	if len(touched) > 0 {
		if err := s.saveMetadataLocked(); err != nil {
			return nil, err
		}
	}
	return touched, nil
}

// AddACL appends or upgrades an ACL entry for identity.
func (s *Store) AddACL(name, identity string, perm wire.Permission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.files[name]
	if !ok {
		return errFileNotFound(name)
	}
	for i, e := range m.ACL {
		if e.Identity == identity {
			m.ACL[i].Permission = perm
			return s.saveMetadataLocked()
		}
	}
	m.ACL = append(m.ACL, wire.ACLEntry{Identity: identity, Permission: perm})
	return s.saveMetadataLocked()
}

// RemoveACL deletes identity's ACL entry, if present.
func (s *Store) RemoveACL(name, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.files[name]
	if !ok {
		return errFileNotFound(name)
	}
	for i, e := range m.ACL {
		if e.Identity == identity {
			m.ACL = append(m.ACL[:i], m.ACL[i+1:]...)
			break
		}
	}
	return s.saveMetadataLocked()
}
