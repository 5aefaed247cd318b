// Package directory implements the Directory coordinator: the file-name
// trie and location cache, the Node registry and per-slot dispatch, ACL
// enforcement, execute, and the Client/Node session loops.
package directory

import (
	"sort"
	"strings"
	"sync"

	"github.com/arborfs/arbor/internal/wire"
)

// FileRecord is the Directory's in-memory record for one file: routing to
// the owning Node slot plus the ACL and cached statistics needed to answer
// permission checks and listings without contacting the Node.
type FileRecord struct {
	Name           string
	NodeSlot       int
	Owner          string
	Folder         string
	WordCount      int64
	CharCount      int64
	Created        int64
	Modified       int64
	LastAccessed   int64
	LastAccessedBy string
	ACL            []wire.ACLEntry
}

func (r *FileRecord) clone() *FileRecord {
	cp := *r
	cp.ACL = append([]wire.ACLEntry(nil), r.ACL...)
	return &cp
}

// CheckPermission reports whether identity may act on this record at the
// requested level: the owner always succeeds, otherwise some ACL entry
// must carry a permission at least as strong as requested.
func (r *FileRecord) CheckPermission(identity string, requested wire.Permission) bool {
	if identity == r.Owner {
		return true
	}
	for _, e := range r.ACL {
		if e.Identity == identity {
			return e.Permission.Satisfies(requested)
		}
	}
	return false
}

func fromWireRecord(rec *wire.FileRecord, slot int) *FileRecord {
	return &FileRecord{
		Name:           rec.Name,
		NodeSlot:       slot,
		Owner:          rec.Owner,
		Folder:         rec.Folder,
		WordCount:      rec.WordCount,
		CharCount:      rec.CharCount,
		Created:        rec.Created,
		Modified:       rec.Modified,
		LastAccessed:   rec.LastAccessed,
		LastAccessedBy: rec.LastAccessedBy,
		ACL:            append([]wire.ACLEntry(nil), rec.ACL...),
	}
}

// trieNode is one byte of a stored name: children advance one byte
// further, record is non-nil only on the node terminating a stored name.
type trieNode struct {
	children map[byte]*trieNode
	record   *FileRecord
}

func newTrieNode() *trieNode { return &trieNode{children: make(map[byte]*trieNode)} }

// Index is the Directory's file-name trie. Insert, locate, delete, mutate,
// and purge-by-node all serialise on a single registry-wide lock, per the
// trie's documented invariant.
type Index struct {
	mu   sync.RWMutex
	root *trieNode
}

func NewIndex() *Index {
	return &Index{root: newTrieNode()}
}

func (idx *Index) walk(name string, create bool) *trieNode {
	n := idx.root
	for i := 0; i < len(name); i++ {
		b := name[i]
		child, ok := n.children[b]
		if !ok {
			if !create {
				return nil
			}
			child = newTrieNode()
			n.children[b] = child
		}
		n = child
	}
	return n
}

// Insert adds a brand-new record, failing with Conflict if the name is
// already present.
func (idx *Index) Insert(rec *FileRecord) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := idx.walk(rec.Name, true)
	if n.record != nil {
		return errDuplicateFile(rec.Name)
	}
	n.record = rec.clone()
	return nil
}

// Get returns a copy of the record for name, or nil if absent.
func (idx *Index) Get(name string) *FileRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := idx.walk(name, false)
	if n == nil || n.record == nil {
		return nil
	}
	return n.record.clone()
}

// Delete removes and returns the record for name, or NotFound if absent.
func (idx *Index) Delete(name string) (*FileRecord, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.walk(name, false)
	if n == nil || n.record == nil {
		return nil, errFileNotFound(name)
	}
	rec := n.record
	n.record = nil
	return rec, nil
}

// Mutate applies fn to the live record for name under the trie lock, so
// read-modify-write ACL and metadata updates are atomic with respect to
// concurrent lookups.
func (idx *Index) Mutate(name string, fn func(*FileRecord) error) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	n := idx.walk(name, false)
	if n == nil || n.record == nil {
		return errFileNotFound(name)
	}
	return fn(n.record)
}

// All returns every record, ordered by name for deterministic listings.
func (idx *Index) All() []*FileRecord {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []*FileRecord
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		if n.record != nil {
			out = append(out, n.record.clone())
		}
		keys := make([]byte, 0, len(n.children))
		for b := range n.children {
			keys = append(keys, b)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		for _, b := range keys {
			walk(n.children[b])
		}
	}
	walk(idx.root)
	return out
}

type renamedFile struct {
	name string
	slot int
}

// rewriteFolderPrefix updates every record whose folder path is oldPrefix
// or begins with oldPrefix+"/" to the equivalent path under newPrefix,
// returning the set of renamed files for Node notification.
func (idx *Index) rewriteFolderPrefix(oldPrefix, newPrefix string) []renamedFile {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var renamed []renamedFile
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		if n.record != nil {
			r := n.record
			switch {
			case r.Folder == oldPrefix:
				r.Folder = newPrefix
				renamed = append(renamed, renamedFile{name: r.Name, slot: r.NodeSlot})
			case strings.HasPrefix(r.Folder, oldPrefix+"/"):
				r.Folder = newPrefix + r.Folder[len(oldPrefix):]
				renamed = append(renamed, renamedFile{name: r.Name, slot: r.NodeSlot})
			}
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(idx.root)
	return renamed
}

// PurgeByNode removes every record owned by slot, returning the names
// removed.
func (idx *Index) PurgeByNode(slot int) []string {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var removed []string
	var walk func(n *trieNode)
	walk = func(n *trieNode) {
		if n.record != nil && n.record.NodeSlot == slot {
			removed = append(removed, n.record.Name)
			n.record = nil
		}
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(idx.root)
	return removed
}
