package core

// index_file.go implements the per-pack index: magic INDX, a 256-entry
// cumulative fanout table, a bloom filter, then parallel sorted-hash and
// offset arrays. Grounded on spec.md §4.3/§6 for the exact layout; the
// bloom filter itself is backed by github.com/bits-and-blooms/bitset,
// already an indirect dependency of the teacher's libp2p stack and
// promoted here to a direct, exercised dependency.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/google/uuid"
)

var indexMagic = [4]byte{'I', 'N', 'D', 'X'}

const (
	indexVersion    uint32 = 1
	indexHeaderSize        = 16 + 256*4 // magic+version+bloomsize+reserved, then fanout table
	bloomHashCount          = 4
)

// bloomSizeFor implements the spec's step function from entry count to
// bloom filter size in bytes.
func bloomSizeFor(n int) uint32 {
	switch {
	case n <= 4096:
		return 4 * 1024
	case n <= 20_000:
		return 8 * 1024
	case n <= 136_000:
		return 16 * 1024
	default:
		return 32 * 1024
	}
}

// bloomPositions derives bloomHashCount independent bit positions from
// non-overlapping 4-byte slices of the hash, deterministic so writer and
// reader agree without exchanging any extra state.
func bloomPositions(h Hash, nbits uint) [bloomHashCount]uint {
	var pos [bloomHashCount]uint
	for i := 0; i < bloomHashCount; i++ {
		v := binary.BigEndian.Uint32(h[i*4 : i*4+4])
		pos[i] = uint(v) % nbits
	}
	return pos
}

// BuildIndex constructs the in-memory index image for a set of pack
// entries: sorts by hash, builds the fanout table and the bloom filter.
func BuildIndex(entries []PackEntry) *IndexFile {
	sorted := make([]PackEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Hash[:], sorted[j].Hash[:]) < 0
	})

	bloomSize := bloomSizeFor(len(sorted))
	bits := bitset.New(uint(bloomSize) * 8)
	var fanout [256]uint32
	for _, e := range sorted {
		fanout[e.Hash[0]]++
		for _, p := range bloomPositions(e.Hash, uint(bloomSize)*8) {
			bits.Set(p)
		}
	}
	for i := 1; i < 256; i++ {
		fanout[i] += fanout[i-1]
	}

	idx := &IndexFile{bloomSize: bloomSize, fanout: fanout, bloom: bits, entries: sorted}
	return idx
}

// IndexFile is the in-memory representation of a pack's index,
// loadable from or writable to disk.
type IndexFile struct {
	bloomSize uint32
	fanout    [256]uint32
	bloom     *bitset.BitSet
	entries   []PackEntry // sorted by hash
}

// WriteTo serializes the index to <root>/index/<packhash> atomically.
func (idx *IndexFile) WriteTo(root string, packHash Hash) error {
	dir := filepath.Join(root, "index")
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return fmt.Errorf("index write init: %w", err)
	}
	buf := new(bytes.Buffer)
	buf.Write(indexMagic[:])
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], indexVersion)
	buf.Write(v[:])
	var bs [4]byte
	binary.BigEndian.PutUint32(bs[:], idx.bloomSize)
	buf.Write(bs[:])
	buf.Write([]byte{0, 0, 0, 0}) // reserved
	for _, f := range idx.fanout {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], f)
		buf.Write(b[:])
	}
	// idx.bloom.MarshalBinary prefixes an 8-byte bit-length header before
	// the word dump; the on-disk layout has no room for it, so the raw
	// words are written directly instead, sized to exactly bloomSize.
	bloomBytes := make([]byte, idx.bloomSize)
	for i, w := range idx.bloom.Bytes() {
		binary.BigEndian.PutUint64(bloomBytes[i*8:], w)
	}
	buf.Write(bloomBytes)
	for _, e := range idx.entries {
		buf.Write(e.Hash[:])
	}
	for _, e := range idx.entries {
		var off [8]byte
		binary.BigEndian.PutUint64(off[:], e.Offset)
		buf.Write(off[:])
	}

	tmpPath := filepath.Join(dir, "tmp", uuid.NewString())
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("index write temp: %w", err)
	}
	f, err := os.OpenFile(tmpPath, os.O_WRONLY, 0o644)
	if err == nil {
		_ = f.Sync()
		f.Close()
	}
	finalPath := filepath.Join(dir, packHash.Hex())
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("index write rename: %w", err)
	}
	return nil
}

// LoadIndex reads and parses an index file for packHash from disk.
func LoadIndex(root string, packHash Hash) (*IndexFile, error) {
	path := filepath.Join(root, "index", packHash.Hex())
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("index read %s: %w", packHash.Short(), err)
	}
	if len(data) < indexHeaderSize {
		return nil, ErrTruncated
	}
	if !bytes.Equal(data[0:4], indexMagic[:]) {
		return nil, ErrInvalidMagic
	}
	version := binary.BigEndian.Uint32(data[4:8])
	if version != indexVersion {
		return nil, ErrInvalidMagic
	}
	bloomSize := binary.BigEndian.Uint32(data[8:12])

	idx := &IndexFile{bloomSize: bloomSize}
	off := 16
	for i := 0; i < 256; i++ {
		if off+4 > len(data) {
			return nil, ErrTruncated
		}
		idx.fanout[i] = binary.BigEndian.Uint32(data[off : off+4])
		off += 4
	}
	if off+int(bloomSize) > len(data) {
		return nil, ErrTruncated
	}
	words := make([]uint64, int(bloomSize)/8)
	for i := range words {
		words[i] = binary.BigEndian.Uint64(data[off+i*8 : off+i*8+8])
	}
	idx.bloom = bitset.From(words)
	off += int(bloomSize)

	count := int(idx.fanout[255])
	hashesEnd := off + count*32
	offsetsEnd := hashesEnd + count*8
	if offsetsEnd > len(data) {
		return nil, ErrTruncated
	}
	idx.entries = make([]PackEntry, count)
	for i := 0; i < count; i++ {
		var h Hash
		copy(h[:], data[off+i*32:off+i*32+32])
		idx.entries[i].Hash = h
	}
	for i := 0; i < count; i++ {
		o := hashesEnd + i*8
		idx.entries[i].Offset = binary.BigEndian.Uint64(data[o : o+8])
	}
	return idx, nil
}

// Find looks up hash in the index: fanout narrows to the hash's bucket,
// the bloom filter gives a fast negative, then a linear scan over the
// (small) bucket confirms the match.
func (idx *IndexFile) Find(hash Hash) (uint64, bool) {
	if idx.bloom != nil {
		for _, p := range bloomPositions(hash, uint(idx.bloomSize)*8) {
			if !idx.bloom.Test(p) {
				return 0, false
			}
		}
	}
	start := uint32(0)
	if hash[0] > 0 {
		start = idx.fanout[hash[0]-1]
	}
	end := idx.fanout[hash[0]]
	for i := start; i < end; i++ {
		if idx.entries[i].Hash == hash {
			return idx.entries[i].Offset, true
		}
	}
	return 0, false
}

// Len returns the number of entries in the index.
func (idx *IndexFile) Len() int { return len(idx.entries) }
