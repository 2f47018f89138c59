package core

// pack_file.go implements the append-only epoch pack format: magic
// ADAPACK1, a u32 version, then a sequence of <u32 size><payload><pad>
// records, content-addressed by the running Blake2b-256 hash of the
// concatenated payloads. Grounded on the spec's §6 binary layout and the
// teacher's atomic temp-then-rename write style already used in
// blob_store.go.

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

var packMagic = [8]byte{'A', 'D', 'A', 'P', 'A', 'C', 'K', '1'}

const packVersion uint32 = 1

// PackEntry records where a hash ended up inside a finalized pack: the
// offset points at the record's size prefix, as required for IndexFile
// construction.
type PackEntry struct {
	Hash   Hash
	Offset uint64
}

// PackWriter accumulates entries into a single pack file. It is owned by
// exactly one task until Finalize or Abort is called.
type PackWriter struct {
	dir     string
	tmpPath string
	file    *os.File
	hasher  *blake2bState
	offset  uint64
	entries []PackEntry
	sealed  bool
}

// NewPackWriter opens a fresh temp file under <root>/pack/tmp to receive
// Append calls.
func NewPackWriter(root string) (*PackWriter, error) {
	dir := filepath.Join(root, "pack")
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		return nil, fmt.Errorf("pack writer init: %w", err)
	}
	tmpPath := filepath.Join(dir, "tmp", uuid.NewString())
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pack writer open: %w", err)
	}
	var header [12]byte
	copy(header[:8], packMagic[:])
	binary.BigEndian.PutUint32(header[8:], packVersion)
	if _, err := f.Write(header[:]); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("pack writer header: %w", err)
	}
	hasher, err := newBlake2b256()
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, err
	}
	return &PackWriter{dir: dir, tmpPath: tmpPath, file: f, hasher: hasher, offset: 12}, nil
}

// Append writes a length-prefixed, 4-byte-padded record and folds its
// payload into the running content hash.
func (w *PackWriter) Append(hash Hash, data []byte) error {
	if w.sealed {
		return ErrPackSealed
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.file.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("pack append %s: %w", hash.Short(), err)
	}
	if _, err := w.file.Write(data); err != nil {
		return fmt.Errorf("pack append %s: %w", hash.Short(), err)
	}
	pad := (4 - (len(data) % 4)) % 4
	if pad > 0 {
		if _, err := w.file.Write(make([]byte, pad)); err != nil {
			return fmt.Errorf("pack append %s: %w", hash.Short(), err)
		}
	}
	w.hasher.Write(data)
	w.entries = append(w.entries, PackEntry{Hash: hash, Offset: w.offset})
	w.offset += uint64(4 + len(data) + pad)
	return nil
}

// Finalize closes the temp file, renames it to pack/<packhash>, and
// returns the pack's content hash plus the (hash, offset) entries for
// index construction.
func (w *PackWriter) Finalize() (Hash, []PackEntry, error) {
	if w.sealed {
		return Hash{}, nil, ErrPackSealed
	}
	w.sealed = true
	if err := w.file.Sync(); err != nil {
		w.file.Close()
		os.Remove(w.tmpPath)
		return Hash{}, nil, fmt.Errorf("pack finalize sync: %w", err)
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.tmpPath)
		return Hash{}, nil, fmt.Errorf("pack finalize close: %w", err)
	}
	packHash := w.hasher.Sum()
	finalPath := filepath.Join(w.dir, packHash.Hex())
	if err := os.Rename(w.tmpPath, finalPath); err != nil {
		return Hash{}, nil, fmt.Errorf("pack finalize rename: %w", err)
	}
	return packHash, w.entries, nil
}

// Abort discards the in-progress pack, leaving no committed artifact.
// Safe to call after a cancellation signal between Append calls.
func (w *PackWriter) Abort() {
	if w.sealed {
		return
	}
	w.sealed = true
	w.file.Close()
	os.Remove(w.tmpPath)
}

//---------------------------------------------------------------------
// Reader
//---------------------------------------------------------------------

// PackReader provides random access into a finalized pack file by
// offset, used by Storage once IndexFile has located an entry.
type PackReader struct {
	file *os.File
}

// OpenPackReader opens the finalized pack file identified by packHash
// for reading.
func OpenPackReader(root string, packHash Hash) (*PackReader, error) {
	path := filepath.Join(root, "pack", packHash.Hex())
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("pack open %s: %w", packHash.Short(), err)
	}
	magic := make([]byte, 12)
	if _, err := f.ReadAt(magic, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	if string(magic[:8]) != string(packMagic[:]) {
		f.Close()
		return nil, ErrInvalidMagic
	}
	return &PackReader{file: f}, nil
}

// ReadAt seeks to offset (the record's size prefix) and reads that
// record's payload.
func (r *PackReader) ReadAt(offset uint64) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := r.file.ReadAt(lenBuf, int64(offset)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	n := binary.BigEndian.Uint32(lenBuf)
	data := make([]byte, n)
	if n > 0 {
		if _, err := r.file.ReadAt(data, int64(offset)+4); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
	}
	return data, nil
}

func (r *PackReader) Close() error { return r.file.Close() }
