package node

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arborfs/arbor/internal/wire"
)

// AccessRequestStatus is the lifecycle state of an access request entry.
type AccessRequestStatus string

const (
	RequestPending  AccessRequestStatus = "pending"
	RequestApproved AccessRequestStatus = "approved"
	RequestDenied   AccessRequestStatus = "denied"
)

// AccessRequest is one line of a file's access request log.
type AccessRequest struct {
	Timestamp  int64
	Requester  string
	Permission wire.Permission
	Status     AccessRequestStatus
}

func (r AccessRequest) format() string {
	return strings.Join([]string{
		strconv.FormatInt(r.Timestamp, 10), r.Requester, strconv.Itoa(int(r.Permission)), string(r.Status),
	}, ",")
}

func parseAccessRequest(line string) (AccessRequest, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 4 {
		return AccessRequest{}, fmt.Errorf("node: malformed access request: %q", line)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return AccessRequest{}, err
	}
	perm, err := strconv.Atoi(fields[2])
	if err != nil {
		return AccessRequest{}, err
	}
	return AccessRequest{
		Timestamp:  ts,
		Requester:  fields[1],
		Permission: wire.Permission(perm),
		Status:     AccessRequestStatus(fields[3]),
	}, nil
}

func (s *Store) readAccessRequests(name string) ([]AccessRequest, error) {
	f, err := os.Open(s.accessRequestsPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var reqs []AccessRequest
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r, err := parseAccessRequest(line)
		if err != nil {
			continue
		}
		reqs = append(reqs, r)
	}
	return reqs, scanner.Err()
}

func (s *Store) writeAccessRequests(name string, reqs []AccessRequest) error {
	f, err := os.Create(s.accessRequestsPath(name))
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, r := range reqs {
		if _, err := w.WriteString(r.format() + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}

// RequestAccess appends a pending request, rejecting a second pending
// request for the same (file, requester, permission).
func (s *Store) RequestAccess(name, requester string, perm wire.Permission) error {
	reqs, err := s.readAccessRequests(name)
	if err != nil {
		return err
	}
	for _, r := range reqs {
		if r.Requester == requester && r.Permission == perm && r.Status == RequestPending {
			return errDuplicateRequest
		}
	}
	reqs = append(reqs, AccessRequest{
		Timestamp:  time.Now().Unix(),
		Requester:  requester,
		Permission: perm,
		Status:     RequestPending,
	})
	return s.writeAccessRequests(name, reqs)
}

// ViewRequests returns every request for name.
func (s *Store) ViewRequests(name string) ([]AccessRequest, error) {
	return s.readAccessRequests(name)
}

// ResolveRequest marks the newest pending request by requester approved or
// denied. approve also records the grant in the file's ACL via AddACL.
func (s *Store) ResolveRequest(name, requester string, approve bool) (*AccessRequest, error) {
	reqs, err := s.readAccessRequests(name)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := len(reqs) - 1; i >= 0; i-- {
		if reqs[i].Requester == requester && reqs[i].Status == RequestPending {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errNoPendingRequest
	}

	if approve {
		reqs[idx].Status = RequestApproved
	} else {
		reqs[idx].Status = RequestDenied
	}
	if err := s.writeAccessRequests(name, reqs); err != nil {
		return nil, err
	}

	resolved := reqs[idx]
	if approve {
		if err := s.AddACL(name, requester, resolved.Permission); err != nil {
			return nil, err
		}
	}
	return &resolved, nil
}
