package directory

import "testing"

func TestLocationCacheGetPutInvalidate(t *testing.T) {
	c := NewLocationCache(4)

	if _, ok := c.Get("a.txt"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("a.txt", 3)
	slot, ok := c.Get("a.txt")
	if !ok || slot != 3 {
		t.Fatalf("expected hit slot 3, got %d, %v", slot, ok)
	}

	c.Invalidate("a.txt")
	if _, ok := c.Get("a.txt"); ok {
		t.Fatal("expected miss after invalidate")
	}
}

func TestLocationCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLocationCache(2)
	c.Put("a.txt", 0)
	c.Put("b.txt", 1)

	// touch a.txt so b.txt becomes the LRU victim
	c.Get("a.txt")
	c.Put("c.txt", 2)

	if _, ok := c.Get("b.txt"); ok {
		t.Fatal("expected b.txt evicted as least recently used")
	}
	if _, ok := c.Get("a.txt"); !ok {
		t.Fatal("a.txt should have survived, it was touched")
	}
	if _, ok := c.Get("c.txt"); !ok {
		t.Fatal("c.txt should be present, it was just inserted")
	}
}

func TestLocationCacheInvalidateNode(t *testing.T) {
	c := NewLocationCache(8)
	c.Put("a.txt", 1)
	c.Put("b.txt", 1)
	c.Put("c.txt", 2)

	c.InvalidateNode(1)

	if _, ok := c.Get("a.txt"); ok {
		t.Fatal("a.txt should be purged with its node")
	}
	if _, ok := c.Get("b.txt"); ok {
		t.Fatal("b.txt should be purged with its node")
	}
	if _, ok := c.Get("c.txt"); !ok {
		t.Fatal("c.txt belongs to a different node and should survive")
	}
}

func TestLocationCacheLenAndCapacity(t *testing.T) {
	c := NewLocationCache(1)
	c.Put("a.txt", 0)
	if c.Len() != 1 {
		t.Fatalf("expected len 1, got %d", c.Len())
	}
	c.Put("b.txt", 0)
	if c.Len() != 1 {
		t.Fatalf("capacity 1 must evict down to 1 entry, got %d", c.Len())
	}
}
