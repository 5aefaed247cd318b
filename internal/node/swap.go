package node

import (
	"fmt"
	"os"
	"path/filepath"
)

// swapPath builds the scratch edit path for a (file, sentence, connection)
// triple: <file>_<sentence>_<connID>.swap under files/.
func (s *Store) swapPath(file string, sentence, connID int) string {
	return filepath.Join(s.filesDir(), fmt.Sprintf("%s_%d_%d.swap", file, sentence, connID))
}

// openSwap seeds a swap file from the live file's current content if the
// swap does not already exist, and returns its path.
func (s *Store) openSwap(file string, sentence, connID int) (string, error) {
	path := s.swapPath(file, sentence, connID)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	content, err := os.ReadFile(s.contentPath(file))
	if err != nil && !os.IsNotExist(err) {
		return "", err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) readSwap(file string, sentence, connID int) (string, error) {
	content, err := os.ReadFile(s.swapPath(file, sentence, connID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(content), nil
}

func (s *Store) writeSwap(file string, sentence, connID int, content string) error {
	return os.WriteFile(s.swapPath(file, sentence, connID), []byte(content), 0o644)
}

func (s *Store) hasSwap(file string, sentence, connID int) bool {
	_, err := os.Stat(s.swapPath(file, sentence, connID))
	return err == nil
}

func (s *Store) removeSwap(file string, sentence, connID int) {
	_ = os.Remove(s.swapPath(file, sentence, connID))
}
