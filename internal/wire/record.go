package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// IdentityFieldSize is the fixed width of an identity/IP field in payloads
// that carry one (owner, ACL identity, last_accessed_by, register IP).
const IdentityFieldSize = 64

// MaxACLEntries bounds a file record's ACL, per the data model.
const MaxACLEntries = 10

// Permission is the access level granted to a non-owner identity.
type Permission uint32

const (
	PermNone Permission = iota
	PermRead
	PermWrite
)

func (p Permission) String() string {
	switch p {
	case PermNone:
		return "none"
	case PermRead:
		return "read"
	case PermWrite:
		return "write"
	default:
		return "unknown"
	}
}

// Satisfies reports whether p grants at least the requested permission.
func (p Permission) Satisfies(requested Permission) bool {
	return p >= requested
}

// ACLEntry is one (identity, permission) pair.
type ACLEntry struct {
	Identity   string
	Permission Permission
}

// FileRecord is the wire layout of a file record, shared between
// REGISTER_FILE (Node->Directory) and internal metadata exchanges.
type FileRecord struct {
	Name            string
	Owner           string
	ACL             []ACLEntry
	WordCount       int64
	CharCount       int64
	Created         int64
	Modified        int64
	LastAccessed    int64
	LastAccessedBy  string
	Folder          string
}

func fixedString(s string, size int) ([]byte, error) {
	if len(s) > size {
		return nil, fmt.Errorf("wire: field %q exceeds fixed width %d", s, size)
	}
	buf := make([]byte, size)
	copy(buf, s)
	return buf, nil
}

func readFixedString(r io.Reader, size int) (string, error) {
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	n := bytes.IndexByte(buf, 0)
	if n < 0 {
		n = len(buf)
	}
	return string(buf[:n]), nil
}

// EncodeFileRecord writes rec in the exact layout documented for the wire:
// name[256], owner[64], acl[10 x (identity[64], perm:u32)], acl_count:i32,
// word_count:i64, char_count:i64, created:i64, modified:i64,
// last_accessed:i64, last_accessed_by[64], folder[256].
func EncodeFileRecord(w io.Writer, rec *FileRecord) error {
	if len(rec.ACL) > MaxACLEntries {
		return fmt.Errorf("wire: record %q has %d ACL entries, max %d", rec.Name, len(rec.ACL), MaxACLEntries)
	}

	name, err := fixedString(rec.Name, NameFieldSize)
	if err != nil {
		return err
	}
	owner, err := fixedString(rec.Owner, IdentityFieldSize)
	if err != nil {
		return err
	}

	if _, err := w.Write(name); err != nil {
		return err
	}
	if _, err := w.Write(owner); err != nil {
		return err
	}

	for i := 0; i < MaxACLEntries; i++ {
		var identity string
		var perm uint32
		if i < len(rec.ACL) {
			identity = rec.ACL[i].Identity
			perm = uint32(rec.ACL[i].Permission)
		}
		idBuf, err := fixedString(identity, IdentityFieldSize)
		if err != nil {
			return err
		}
		if _, err := w.Write(idBuf); err != nil {
			return err
		}
		if err := binary.Write(w, byteOrder, perm); err != nil {
			return err
		}
	}

	if err := binary.Write(w, byteOrder, int32(len(rec.ACL))); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, rec.WordCount); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, rec.CharCount); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, rec.Created); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, rec.Modified); err != nil {
		return err
	}
	if err := binary.Write(w, byteOrder, rec.LastAccessed); err != nil {
		return err
	}

	lastBy, err := fixedString(rec.LastAccessedBy, IdentityFieldSize)
	if err != nil {
		return err
	}
	if _, err := w.Write(lastBy); err != nil {
		return err
	}

	folder, err := fixedString(rec.Folder, NameFieldSize)
	if err != nil {
		return err
	}
	if _, err := w.Write(folder); err != nil {
		return err
	}

	return nil
}

// DecodeFileRecord reads a file record previously written by EncodeFileRecord.
func DecodeFileRecord(r io.Reader) (*FileRecord, error) {
	rec := &FileRecord{}

	name, err := readFixedString(r, NameFieldSize)
	if err != nil {
		return nil, fmt.Errorf("wire: read record name: %w", err)
	}
	rec.Name = name

	owner, err := readFixedString(r, IdentityFieldSize)
	if err != nil {
		return nil, fmt.Errorf("wire: read record owner: %w", err)
	}
	rec.Owner = owner

	type slot struct {
		identity string
		perm     uint32
	}
	slots := make([]slot, MaxACLEntries)
	for i := 0; i < MaxACLEntries; i++ {
		identity, err := readFixedString(r, IdentityFieldSize)
		if err != nil {
			return nil, fmt.Errorf("wire: read acl identity %d: %w", i, err)
		}
		var perm uint32
		if err := binary.Read(r, byteOrder, &perm); err != nil {
			return nil, fmt.Errorf("wire: read acl perm %d: %w", i, err)
		}
		slots[i] = slot{identity, perm}
	}

	var aclCount int32
	if err := binary.Read(r, byteOrder, &aclCount); err != nil {
		return nil, fmt.Errorf("wire: read acl_count: %w", err)
	}
	if aclCount < 0 || int(aclCount) > MaxACLEntries {
		return nil, fmt.Errorf("wire: acl_count %d out of range", aclCount)
	}
	rec.ACL = make([]ACLEntry, 0, aclCount)
	for i := 0; i < int(aclCount); i++ {
		rec.ACL = append(rec.ACL, ACLEntry{Identity: slots[i].identity, Permission: Permission(slots[i].perm)})
	}

	if err := binary.Read(r, byteOrder, &rec.WordCount); err != nil {
		return nil, fmt.Errorf("wire: read word_count: %w", err)
	}
	if err := binary.Read(r, byteOrder, &rec.CharCount); err != nil {
		return nil, fmt.Errorf("wire: read char_count: %w", err)
	}
	if err := binary.Read(r, byteOrder, &rec.Created); err != nil {
		return nil, fmt.Errorf("wire: read created: %w", err)
	}
	if err := binary.Read(r, byteOrder, &rec.Modified); err != nil {
		return nil, fmt.Errorf("wire: read modified: %w", err)
	}
	if err := binary.Read(r, byteOrder, &rec.LastAccessed); err != nil {
		return nil, fmt.Errorf("wire: read last_accessed: %w", err)
	}

	lastBy, err := readFixedString(r, IdentityFieldSize)
	if err != nil {
		return nil, fmt.Errorf("wire: read last_accessed_by: %w", err)
	}
	rec.LastAccessedBy = lastBy

	folder, err := readFixedString(r, NameFieldSize)
	if err != nil {
		return nil, fmt.Errorf("wire: read folder: %w", err)
	}
	rec.Folder = folder

	return rec, nil
}

// RecordSize is the fixed encoded size of a FileRecord, in bytes.
const RecordSize = NameFieldSize + IdentityFieldSize +
	MaxACLEntries*(IdentityFieldSize+4) + 4 +
	8 + 8 + 8 + 8 + 8 + IdentityFieldSize + NameFieldSize

// Endpoint is an (ip, port) pair, used by REGISTER, READ_REDIRECT,
// LOCATE_RESPONSE, and SS_DEAD_REPORT payloads.
type Endpoint struct {
	IP   string
	Port int32
}

// EncodeEndpoint writes an (ip[64], port:i32) payload.
func EncodeEndpoint(w io.Writer, ep Endpoint) error {
	ipBuf, err := fixedString(ep.IP, IdentityFieldSize)
	if err != nil {
		return err
	}
	if _, err := w.Write(ipBuf); err != nil {
		return err
	}
	return binary.Write(w, byteOrder, ep.Port)
}

// DecodeEndpoint reads an (ip[64], port:i32) payload.
func DecodeEndpoint(r io.Reader) (Endpoint, error) {
	ip, err := readFixedString(r, IdentityFieldSize)
	if err != nil {
		return Endpoint{}, err
	}
	var port int32
	if err := binary.Read(r, byteOrder, &port); err != nil {
		return Endpoint{}, err
	}
	return Endpoint{IP: ip, Port: port}, nil
}

// AccessControl is the payload of ADD_ACCESS / INTERNAL_ADD_ACCESS.
type AccessControl struct {
	Identity   string
	Permission Permission
}

func EncodeAccessControl(w io.Writer, ac AccessControl) error {
	idBuf, err := fixedString(ac.Identity, IdentityFieldSize)
	if err != nil {
		return err
	}
	if _, err := w.Write(idBuf); err != nil {
		return err
	}
	return binary.Write(w, byteOrder, uint32(ac.Permission))
}

func DecodeAccessControl(r io.Reader) (AccessControl, error) {
	identity, err := readFixedString(r, IdentityFieldSize)
	if err != nil {
		return AccessControl{}, err
	}
	var perm uint32
	if err := binary.Read(r, byteOrder, &perm); err != nil {
		return AccessControl{}, err
	}
	return AccessControl{Identity: identity, Permission: Permission(perm)}, nil
}

// Metadata is the payload of INTERNAL_METADATA_RESP.
type Metadata struct {
	WordCount      int64
	CharCount      int64
	Created        int64
	LastModified   int64
	LastAccessed   int64
	LastAccessedBy string
}

func EncodeMetadata(w io.Writer, m Metadata) error {
	for _, v := range []int64{m.WordCount, m.CharCount, m.Created, m.LastModified, m.LastAccessed} {
		if err := binary.Write(w, byteOrder, v); err != nil {
			return err
		}
	}
	lastBy, err := fixedString(m.LastAccessedBy, IdentityFieldSize)
	if err != nil {
		return err
	}
	_, err = w.Write(lastBy)
	return err
}

func DecodeMetadata(r io.Reader) (Metadata, error) {
	var m Metadata
	fields := []*int64{&m.WordCount, &m.CharCount, &m.Created, &m.LastModified, &m.LastAccessed}
	for _, f := range fields {
		if err := binary.Read(r, byteOrder, f); err != nil {
			return Metadata{}, err
		}
	}
	lastBy, err := readFixedString(r, IdentityFieldSize)
	if err != nil {
		return Metadata{}, err
	}
	m.LastAccessedBy = lastBy
	return m, nil
}
