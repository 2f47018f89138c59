package core

// tag_store.go implements named mutable pointers (tag/HEAD,
// tag/<peer-alias>, tag/epoch/<n>) with per-tag exclusive in-process locking
// so concurrent synchronizer tasks can safely update distinct tags.
// Grounded on the teacher's atomic write style (blob_store.go) plus the
// per-peer-id bookkeeping already present in the teacher's replication
// config (PeerThreshold, Fanout) reimagined as a lock table.

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// TagStore manages the tag/ directory of a blockchain root: small files
// holding an opaque byte payload (usually a raw 32-byte block hash).
type TagStore struct {
	root string
	mu   sync.Mutex
	locks map[string]*sync.Mutex
}

func NewTagStore(root string) (*TagStore, error) {
	dir := filepath.Join(root, "tag")
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("tag store init: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "epoch"), 0o755); err != nil {
		return nil, fmt.Errorf("tag store init: %w", err)
	}
	return &TagStore{root: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (t *TagStore) lockFor(name string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[name]
	if !ok {
		l = &sync.Mutex{}
		t.locks[name] = l
	}
	return l
}

func (t *TagStore) path(name string) string { return filepath.Join(t.root, name) }

// Set atomically writes payload under the named tag, serialized per tag
// via an in-process exclusive lock plus the usual temp+rename commit.
func (t *TagStore) Set(name string, payload []byte) error {
	l := t.lockFor(name)
	l.Lock()
	defer l.Unlock()

	target := t.path(name)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("tag set %s: %w", name, err)
	}
	tmpPath := filepath.Join(t.root, "tmp", uuid.NewString())
	if err := os.WriteFile(tmpPath, payload, 0o644); err != nil {
		return fmt.Errorf("tag set %s: %w", name, err)
	}
	f, err := os.OpenFile(tmpPath, os.O_WRONLY, 0o644)
	if err == nil {
		_ = f.Sync()
		f.Close()
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("tag set %s: %w", name, err)
	}
	return nil
}

// Get returns the tag's payload, or ErrNotFound if the tag does not
// exist.
func (t *TagStore) Get(name string) ([]byte, error) {
	data, err := os.ReadFile(t.path(name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("tag get %s: %w", name, err)
	}
	return data, nil
}

// GetHash is a convenience wrapper for tags whose payload is a raw
// 32-byte hash.
func (t *TagStore) GetHash(name string) (Hash, error) {
	data, err := t.Get(name)
	if err != nil {
		return Hash{}, err
	}
	if len(data) != 32 {
		return Hash{}, fmt.Errorf("tag %s: %w", name, ErrTruncated)
	}
	var h Hash
	copy(h[:], data)
	return h, nil
}

// SetHash is a convenience wrapper mirroring GetHash.
func (t *TagStore) SetHash(name string, h Hash) error { return t.Set(name, h[:]) }

// Exists reports whether the named tag exists.
func (t *TagStore) Exists(name string) bool {
	_, err := os.Stat(t.path(name))
	return err == nil
}

// EpochTagName returns the tag name for an epoch's pack hash pointer,
// e.g. "epoch/42".
func EpochTagName(epoch uint64) string { return filepath.Join("epoch", fmt.Sprintf("%d", epoch)) }

const HeadTag = "HEAD"
