package core

// storage.go composes BlobStore, the on-disk packs and TagStore into the
// single Storage facade the rest of the engine talks to: locating a
// block wherever it lives (loose or packed), reading it, and resolving
// tags to blocks. Grounded on the teacher's NewStorage wiring (struct
// holding a logger plus collaborator handles) generalized from an IPFS
// gateway wrapper to this content-addressed pack store.

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// LocationKind distinguishes a loose blob from a packed record.
type LocationKind uint8

const (
	LocationLoose LocationKind = iota
	LocationPacked
)

// BlockLocation is either Loose(hash) or Packed(packhash, offset).
type BlockLocation struct {
	Kind     LocationKind
	PackHash Hash
	Offset   uint64
}

// Storage is the facade over a blockchain root directory: blob/,
// pack/, index/ and tag/.
type Storage struct {
	root   string
	logger *log.Logger

	Blobs *BlobStore
	Tags  *TagStore

	mu          sync.Mutex
	indexCache  map[Hash]*IndexFile
	packOrder   []Hash // most-recently-accessed first
	readerCache map[Hash]*PackReader
}

// NewStorage opens (creating if necessary) the on-disk layout rooted at
// root: blob/, pack/, index/ and tag/. Temp files left in pack/tmp and
// index/tmp by an interrupted earlier run are removed first.
func NewStorage(root string, logger *log.Logger) (*Storage, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	for _, d := range []string{"pack", "index"} {
		if err := os.RemoveAll(filepath.Join(root, d, "tmp")); err != nil {
			return nil, fmt.Errorf("storage clean %s/tmp: %w", d, err)
		}
	}
	for _, d := range []string{"blob", "pack", "index", "tag"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return nil, fmt.Errorf("storage init %s: %w", d, err)
		}
	}
	blobs, err := NewBlobStore(root, logger)
	if err != nil {
		return nil, err
	}
	tags, err := NewTagStore(root)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		root:        root,
		logger:      logger,
		Blobs:       blobs,
		Tags:        tags,
		indexCache:  make(map[Hash]*IndexFile),
		readerCache: make(map[Hash]*PackReader),
	}
	if err := s.loadPackList(); err != nil {
		return nil, err
	}
	logger.Infof("storage: root %s (%d packs)", root, len(s.packOrder))
	return s, nil
}

// Root returns the blockchain root directory.
func (s *Storage) Root() string { return s.root }

func (s *Storage) loadPackList() error {
	entries, err := os.ReadDir(filepath.Join(s.root, "pack"))
	if err != nil {
		return fmt.Errorf("storage list packs: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == "tmp" {
			continue
		}
		var h Hash
		if _, err := fmt.Sscanf(e.Name(), "%x", &h); err != nil {
			continue
		}
		s.packOrder = append(s.packOrder, h)
	}
	return nil
}

func (s *Storage) touchPack(h Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.packOrder {
		if p == h {
			s.packOrder = append(s.packOrder[:i], s.packOrder[i+1:]...)
			break
		}
	}
	s.packOrder = append([]Hash{h}, s.packOrder...)
}

// RegisterPack adds a newly finalized pack to the lookup order (most
// recently written goes first, mirroring the cache-friendly order the
// spec asks block_location to scan in).
func (s *Storage) RegisterPack(packHash Hash) {
	s.mu.Lock()
	already := false
	for _, p := range s.packOrder {
		if p == packHash {
			already = true
			break
		}
	}
	if !already {
		s.packOrder = append([]Hash{packHash}, s.packOrder...)
	}
	s.mu.Unlock()
}

func (s *Storage) indexFor(packHash Hash) (*IndexFile, error) {
	s.mu.Lock()
	idx, ok := s.indexCache[packHash]
	s.mu.Unlock()
	if ok {
		return idx, nil
	}
	idx, err := LoadIndex(s.root, packHash)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.indexCache[packHash] = idx
	s.mu.Unlock()
	return idx, nil
}

func (s *Storage) readerFor(packHash Hash) (*PackReader, error) {
	s.mu.Lock()
	r, ok := s.readerCache[packHash]
	s.mu.Unlock()
	if ok {
		return r, nil
	}
	r, err := OpenPackReader(s.root, packHash)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.readerCache[packHash] = r
	s.mu.Unlock()
	return r, nil
}

// BlockLocationOf finds where hash lives: blob dir first (constant
// cost), then each pack index in most-recently-accessed order.
func (s *Storage) BlockLocationOf(hash Hash) (BlockLocation, bool) {
	if s.Blobs.Exists(hash) {
		return BlockLocation{Kind: LocationLoose}, true
	}
	s.mu.Lock()
	order := make([]Hash, len(s.packOrder))
	copy(order, s.packOrder)
	s.mu.Unlock()

	for _, packHash := range order {
		idx, err := s.indexFor(packHash)
		if err != nil {
			s.logger.Warnf("storage: skipping unreadable index %s: %v", packHash.Short(), err)
			continue
		}
		if off, ok := idx.Find(hash); ok {
			s.touchPack(packHash)
			return BlockLocation{Kind: LocationPacked, PackHash: packHash, Offset: off}, true
		}
	}
	return BlockLocation{}, false
}

// ReadAt reads the raw bytes for hash given its location.
func (s *Storage) ReadAt(loc BlockLocation, hash Hash) ([]byte, error) {
	switch loc.Kind {
	case LocationLoose:
		return s.Blobs.Read(hash)
	case LocationPacked:
		r, err := s.readerFor(loc.PackHash)
		if err != nil {
			return nil, err
		}
		return r.ReadAt(loc.Offset)
	default:
		return nil, ErrNotFound
	}
}

// Read locates and reads a block's raw bytes in one call.
func (s *Storage) Read(hash Hash) ([]byte, error) {
	loc, ok := s.BlockLocationOf(hash)
	if !ok {
		return nil, ErrNotFound
	}
	return s.ReadAt(loc, hash)
}

// GetBlockFromTag resolves a tag to a hash, then reads and decodes the
// block it names.
func (s *Storage) GetBlockFromTag(name string) (Hash, *Block, error) {
	h, err := s.Tags.GetHash(name)
	if err != nil {
		return Hash{}, nil, err
	}
	raw, err := s.Read(h)
	if err != nil {
		return h, nil, err
	}
	b, err := DecodeBlock(raw)
	if err != nil {
		return h, nil, err
	}
	return h, b, nil
}

// ReconcileLooseVersusPacked deletes the loose copy of hash once it is
// confirmed present and readable inside a finalized pack: the tie-break
// the spec requires after EpochPacker finalization.
func (s *Storage) ReconcileLooseVersusPacked(hash Hash) error {
	loc, ok := s.BlockLocationOf(hash)
	if !ok || loc.Kind != LocationPacked {
		return nil
	}
	if !s.Blobs.Exists(hash) {
		return nil
	}
	if _, err := s.ReadAt(loc, hash); err != nil {
		return fmt.Errorf("storage reconcile %s: %w", hash.Short(), err)
	}
	return s.Blobs.Delete(hash)
}

// SortedPackHashes returns known pack hashes sorted ascending, a stable
// order independent of access history.
func (s *Storage) SortedPackHashes() []Hash {
	s.mu.Lock()
	out := make([]Hash, len(s.packOrder))
	copy(out, s.packOrder)
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		for k := range out[i] {
			if out[i][k] != out[j][k] {
				return out[i][k] < out[j][k]
			}
		}
		return false
	})
	return out
}

// IndexOf exposes the loaded index for a pack, loading and caching it
// on first use.
func (s *Storage) IndexOf(packHash Hash) (*IndexFile, error) { return s.indexFor(packHash) }
