package core

import "testing"

func makeEntries(n int) []PackEntry {
	entries := make([]PackEntry, n)
	for i := 0; i < n; i++ {
		entries[i] = PackEntry{Hash: blake2b256([]byte{byte(i), byte(i >> 8)}), Offset: uint64(i * 37)}
	}
	return entries
}

func TestBuildIndexSortedAndFanoutTotal(t *testing.T) {
	entries := makeEntries(50)
	idx := BuildIndex(entries)

	if idx.Len() != len(entries) {
		t.Fatalf("Len() = %d, want %d", idx.Len(), len(entries))
	}
	for i := 1; i < idx.Len(); i++ {
		if string(idx.entries[i-1].Hash[:]) > string(idx.entries[i].Hash[:]) {
			t.Fatalf("entries not sorted at index %d", i)
		}
	}
	if idx.fanout[255] != uint32(len(entries)) {
		t.Fatalf("fanout[255] = %d, want %d", idx.fanout[255], len(entries))
	}
	for i := 1; i < 256; i++ {
		if idx.fanout[i] < idx.fanout[i-1] {
			t.Fatalf("fanout not monotonic at %d", i)
		}
	}
}

func TestIndexFindAllEntries(t *testing.T) {
	entries := makeEntries(30)
	idx := BuildIndex(entries)
	for _, e := range entries {
		off, ok := idx.Find(e.Hash)
		if !ok {
			t.Fatalf("Find missed entry %x", e.Hash)
		}
		if off != e.Offset {
			t.Fatalf("Find offset = %d, want %d", off, e.Offset)
		}
	}
}

func TestIndexFindMissingHash(t *testing.T) {
	entries := makeEntries(10)
	idx := BuildIndex(entries)
	missing := blake2b256([]byte("definitely-not-in-the-index"))
	if _, ok := idx.Find(missing); ok {
		t.Fatalf("Find reported a hash that was never indexed")
	}
}

func TestIndexWriteToLoadIndexRoundTrip(t *testing.T) {
	root := t.TempDir()
	entries := makeEntries(25)
	idx := BuildIndex(entries)
	packHash := blake2b256([]byte("pack-1"))

	if err := idx.WriteTo(root, packHash); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	loaded, err := LoadIndex(root, packHash)
	if err != nil {
		t.Fatalf("LoadIndex: %v", err)
	}
	if loaded.Len() != idx.Len() {
		t.Fatalf("loaded Len() = %d, want %d", loaded.Len(), idx.Len())
	}
	for _, e := range entries {
		off, ok := loaded.Find(e.Hash)
		if !ok || off != e.Offset {
			t.Fatalf("loaded index lookup failed for %x: off=%d ok=%v", e.Hash, off, ok)
		}
	}
}

func TestLoadIndexMissingFile(t *testing.T) {
	root := t.TempDir()
	if _, err := LoadIndex(root, blake2b256([]byte("nope"))); err != ErrNotFound {
		t.Fatalf("LoadIndex on missing file: got %v, want ErrNotFound", err)
	}
}
