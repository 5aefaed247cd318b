package directory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/arborfs/arbor/internal/wire"
)

// ListingRow is one line of a VIEW/VIEWFOLDER reply: a file or a synthetic
// directory entry standing in for a folder prefix.
type ListingRow struct {
	Type         byte // 'F' or 'D'
	Name         string
	WordCount    int64
	CharCount    int64
	LastAccessed int64
	Owner        string
}

// FormatListing renders rows as a header line followed by one
// comma-separated line per row — plain enough to satisfy the wire
// catalogue's "printable text" payload, structured enough for the Client
// to re-tabulate with its own table renderer.
func FormatListing(rows []ListingRow) string {
	var b strings.Builder
	b.WriteString("TYPE,NAME,WORDS,CHARS,LAST_ACCESSED,OWNER\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%c,%s,%d,%d,%d,%s\n", r.Type, r.Name, r.WordCount, r.CharCount, r.LastAccessed, r.Owner)
	}
	return b.String()
}

// childFolder returns the immediate child segment of folder relative to
// prefix, or "" if folder does not live strictly under prefix.
func childFolder(prefix, folder string) string {
	if prefix == "" {
		if folder == "" {
			return ""
		}
		if i := strings.IndexByte(folder, '/'); i >= 0 {
			return folder[:i]
		}
		return folder
	}
	if !strings.HasPrefix(folder, prefix+"/") {
		return ""
	}
	rest := folder[len(prefix)+1:]
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return prefix + "/" + rest[:i]
	}
	return prefix + "/" + rest
}

// BuildListing answers VIEW (folder == "") and VIEWFOLDER, optionally
// refreshing every listed file's statistics from its owning Node first.
func (d *Directory) BuildListing(ctx context.Context, folder string, long bool) (string, error) {
	records := d.Index.All()

	if long {
		d.refreshMetadata(ctx, records)
		records = d.Index.All()
	}

	childDirs := map[string]bool{}
	var rows []ListingRow
	for _, rec := range records {
		if rec.Folder == folder {
			rows = append(rows, ListingRow{
				Type:         'F',
				Name:         rec.Name,
				WordCount:    rec.WordCount,
				CharCount:    rec.CharCount,
				LastAccessed: rec.LastAccessed,
				Owner:        rec.Owner,
			})
			continue
		}
		if child := childFolder(folder, rec.Folder); child != "" {
			childDirs[child] = true
		}
	}

	for name := range childDirs {
		rows = append(rows, ListingRow{Type: 'D', Name: name})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Type != rows[j].Type {
			return rows[i].Type < rows[j].Type
		}
		return rows[i].Name < rows[j].Name
	})

	return FormatListing(rows), nil
}

func (d *Directory) refreshMetadata(ctx context.Context, records []*FileRecord) {
	var wg sync.WaitGroup
	for _, rec := range records {
		slot := d.Registry.Get(rec.NodeSlot)
		if slot == nil || !slot.Active() {
			continue
		}
		wg.Add(1)
		go func(name string, slot *Slot) {
			defer wg.Done()
			reply, err := slot.Dispatch(ctx, wire.MsgInternalGetMetadata, name, nil)
			if err != nil || reply.Header.MsgType != wire.MsgInternalMetadataResp {
				return
			}
			m, err := wire.DecodeMetadata(bytes.NewReader(reply.Payload))
			if err != nil {
				return
			}
			_ = d.Index.Mutate(name, func(r *FileRecord) error {
				r.WordCount = m.WordCount
				r.CharCount = m.CharCount
				r.Modified = m.LastModified
				r.LastAccessed = m.LastAccessed
				r.LastAccessedBy = m.LastAccessedBy
				return nil
			})
		}(rec.Name, slot)
	}
	wg.Wait()
}

// formatInfo renders a single file's full record as key=value lines for
// INFO_RESPONSE, listing the ACL separately from the owner per the
// owner-invariance property.
func formatInfo(rec *FileRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name=%s\n", rec.Name)
	fmt.Fprintf(&b, "owner=%s\n", rec.Owner)
	fmt.Fprintf(&b, "folder=%s\n", rec.Folder)
	fmt.Fprintf(&b, "node_slot=%d\n", rec.NodeSlot)
	fmt.Fprintf(&b, "word_count=%d\n", rec.WordCount)
	fmt.Fprintf(&b, "char_count=%d\n", rec.CharCount)
	fmt.Fprintf(&b, "created=%d\n", rec.Created)
	fmt.Fprintf(&b, "modified=%d\n", rec.Modified)
	fmt.Fprintf(&b, "last_accessed=%d\n", rec.LastAccessed)
	fmt.Fprintf(&b, "last_accessed_by=%s\n", rec.LastAccessedBy)
	for _, e := range rec.ACL {
		fmt.Fprintf(&b, "acl=%s:%s\n", e.Identity, e.Permission.String())
	}
	return b.String()
}
