package core

// blob_store.go implements the loose, content-addressed block store: one
// file per hash under blob/, with writes staged through blob/tmp and
// committed via fsync+rename. Grounded on the teacher's storage.go
// NewStorage/diskLRU wiring (logrus logger field, directory under a
// configured root) but the write path itself follows the spec's atomic
// write-to-temp-then-rename requirement rather than the teacher's
// gateway-pin flow.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// BlobStore is the loose-object store rooted at <root>/blob.
type BlobStore struct {
	root   string
	logger *log.Logger
}

// NewBlobStore creates the blob/ and blob/tmp/ directories under root if
// they don't already exist.
func NewBlobStore(root string, logger *log.Logger) (*BlobStore, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	dir := filepath.Join(root, "blob")
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("blob store init: %w", err)
	}
	return &BlobStore{root: dir, logger: logger}, nil
}

func (s *BlobStore) path(h Hash) string {
	return filepath.Join(s.root, h.Hex())
}

// Write atomically stores bytes under hash: write to blob/tmp/<uuid>,
// fsync, rename to blob/<hex-hash>. Duplicate writes of the same hash
// are tolerated — content is deterministic, so last write wins.
func (s *BlobStore) Write(hash Hash, data []byte) error {
	tmpPath := filepath.Join(s.root, "tmp", uuid.NewString())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("blob write %s: %w", hash.Short(), err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("blob write %s: %w", hash.Short(), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("blob fsync %s: %w", hash.Short(), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("blob close %s: %w", hash.Short(), err)
	}
	if err := os.Rename(tmpPath, s.path(hash)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("blob rename %s: %w", hash.Short(), err)
	}
	s.logger.Debugf("blob: wrote %s (%d bytes)", hash.Short(), len(data))
	return nil
}

// Read returns the blob's raw bytes, or ErrNotFound if absent.
func (s *BlobStore) Read(hash Hash) ([]byte, error) {
	data, err := os.ReadFile(s.path(hash))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("blob read %s: %w", hash.Short(), err)
	}
	return data, nil
}

// Exists reports whether a loose blob for hash is present.
func (s *BlobStore) Exists(hash Hash) bool {
	_, err := os.Stat(s.path(hash))
	return err == nil
}

// Delete removes a loose blob, used only by EpochPacker once the block
// has been safely written into a pack.
func (s *BlobStore) Delete(hash Hash) error {
	err := os.Remove(s.path(hash))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("blob delete %s: %w", hash.Short(), err)
	}
	return nil
}
