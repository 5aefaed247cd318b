package directory

import (
	"testing"

	"github.com/arborfs/arbor/internal/wire"
)

func TestIndexInsertGetDelete(t *testing.T) {
	idx := NewIndex()
	rec := &FileRecord{Name: "a.txt", Owner: "alice", NodeSlot: 2}
	if err := idx.Insert(rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got := idx.Get("a.txt")
	if got == nil || got.Owner != "alice" || got.NodeSlot != 2 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// returned record must be a copy
	got.Owner = "mallory"
	if again := idx.Get("a.txt"); again.Owner != "alice" {
		t.Fatalf("Get leaked a mutable reference: %+v", again)
	}

	deleted, err := idx.Delete("a.txt")
	if err != nil || deleted.Name != "a.txt" {
		t.Fatalf("delete: %+v, %v", deleted, err)
	}
	if idx.Get("a.txt") != nil {
		t.Fatal("expected record gone after delete")
	}
}

func TestIndexDuplicateRejected(t *testing.T) {
	idx := NewIndex()
	if err := idx.Insert(&FileRecord{Name: "a.txt", Owner: "alice"}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := idx.Insert(&FileRecord{Name: "a.txt", Owner: "bob"}); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
}

func TestIndexDeleteMissing(t *testing.T) {
	idx := NewIndex()
	if _, err := idx.Delete("nope.txt"); err == nil {
		t.Fatal("expected NotFound on delete of missing file")
	}
}

func TestIndexMutate(t *testing.T) {
	idx := NewIndex()
	_ = idx.Insert(&FileRecord{Name: "a.txt", Owner: "alice", WordCount: 1})

	err := idx.Mutate("a.txt", func(r *FileRecord) error {
		r.WordCount = 42
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if got := idx.Get("a.txt"); got.WordCount != 42 {
		t.Fatalf("mutate did not persist: %+v", got)
	}

	if err := idx.Mutate("missing.txt", func(*FileRecord) error { return nil }); err == nil {
		t.Fatal("expected NotFound mutating missing file")
	}
}

func TestIndexAllOrdered(t *testing.T) {
	idx := NewIndex()
	for _, name := range []string{"c.txt", "a.txt", "b.txt"} {
		_ = idx.Insert(&FileRecord{Name: name, Owner: "alice"})
	}
	all := idx.All()
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Name >= all[i].Name {
			t.Fatalf("All() not sorted: %v", all)
		}
	}
}

func TestPurgeByNode(t *testing.T) {
	idx := NewIndex()
	_ = idx.Insert(&FileRecord{Name: "a.txt", Owner: "alice", NodeSlot: 0})
	_ = idx.Insert(&FileRecord{Name: "b.txt", Owner: "alice", NodeSlot: 1})
	_ = idx.Insert(&FileRecord{Name: "c.txt", Owner: "alice", NodeSlot: 0})

	removed := idx.PurgeByNode(0)
	if len(removed) != 2 {
		t.Fatalf("expected 2 removed, got %d: %v", len(removed), removed)
	}
	if idx.Get("a.txt") != nil || idx.Get("c.txt") != nil {
		t.Fatal("purged records still present")
	}
	if idx.Get("b.txt") == nil {
		t.Fatal("unrelated record should survive purge")
	}
}

func TestRewriteFolderPrefix(t *testing.T) {
	idx := NewIndex()
	_ = idx.Insert(&FileRecord{Name: "a.txt", Owner: "alice", Folder: "docs", NodeSlot: 0})
	_ = idx.Insert(&FileRecord{Name: "b.txt", Owner: "alice", Folder: "docs/sub", NodeSlot: 1})
	_ = idx.Insert(&FileRecord{Name: "c.txt", Owner: "alice", Folder: "other", NodeSlot: 2})

	renamed := idx.rewriteFolderPrefix("docs", "archive")
	if len(renamed) != 2 {
		t.Fatalf("expected 2 renamed, got %d: %v", len(renamed), renamed)
	}
	if idx.Get("a.txt").Folder != "archive" {
		t.Fatalf("exact-prefix folder not rewritten: %+v", idx.Get("a.txt"))
	}
	if idx.Get("b.txt").Folder != "archive/sub" {
		t.Fatalf("nested folder not rewritten: %+v", idx.Get("b.txt"))
	}
	if idx.Get("c.txt").Folder != "other" {
		t.Fatalf("unrelated folder should not change: %+v", idx.Get("c.txt"))
	}
}

func TestCheckPermissionOwnerAndACL(t *testing.T) {
	rec := &FileRecord{
		Name:  "a.txt",
		Owner: "alice",
		ACL: []wire.ACLEntry{
			{Identity: "bob", Permission: wire.PermRead},
			{Identity: "carol", Permission: wire.PermWrite},
		},
	}

	if !rec.CheckPermission("alice", wire.PermWrite) {
		t.Fatal("owner must always succeed")
	}
	if !rec.CheckPermission("bob", wire.PermRead) {
		t.Fatal("bob has read")
	}
	if rec.CheckPermission("bob", wire.PermWrite) {
		t.Fatal("bob lacks write")
	}
	if !rec.CheckPermission("carol", wire.PermRead) {
		t.Fatal("write implies read")
	}
	if rec.CheckPermission("mallory", wire.PermRead) {
		t.Fatal("stranger must be denied")
	}
}
