package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"
)

// readJSON decodes path into out. A missing or malformed file leaves out untouched
// and reports found=false so callers fall back to an empty collection.
func readJSON(path string, out any) (bool, error) {
	data, errRead := os.ReadFile(path)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("file store: read %s: %w", filepath.Base(path), errRead)
	}
	if len(data) == 0 {
		return false, nil
	}
	if errUnmarshal := json.Unmarshal(data, out); errUnmarshal != nil {
		log.WithError(errUnmarshal).WithField("file", path).Warn("file store: malformed collection, treating as empty")
		return false, nil
	}
	return true, nil
}

// writeJSON persists value atomically: the document is written to a temp file in the
// same directory and renamed over the target.
func writeJSON(path string, value any) error {
	data, errMarshal := json.MarshalIndent(value, "", "  ")
	if errMarshal != nil {
		return fmt.Errorf("file store: marshal %s: %w", filepath.Base(path), errMarshal)
	}
	dir := filepath.Dir(path)
	if errMkdir := os.MkdirAll(dir, 0o700); errMkdir != nil {
		return fmt.Errorf("file store: create dir: %w", errMkdir)
	}
	tmp, errTemp := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if errTemp != nil {
		return fmt.Errorf("file store: create temp: %w", errTemp)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = os.Remove(tmpName)
	}
	if _, errWrite := tmp.Write(data); errWrite != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file store: write temp: %w", errWrite)
	}
	if errSync := tmp.Sync(); errSync != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("file store: sync temp: %w", errSync)
	}
	if errClose := tmp.Close(); errClose != nil {
		cleanup()
		return fmt.Errorf("file store: close temp: %w", errClose)
	}
	if errChmod := os.Chmod(tmpName, 0o600); errChmod != nil {
		cleanup()
		return fmt.Errorf("file store: chmod temp: %w", errChmod)
	}
	if errRename := os.Rename(tmpName, path); errRename != nil {
		cleanup()
		return fmt.Errorf("file store: replace %s: %w", filepath.Base(path), errRename)
	}
	return nil
}

// KeyedMutex hands out one mutex per key. Entries are never evicted; the key
// space is the tenant set.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedMutex constructs an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its release func.
func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
