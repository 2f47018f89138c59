package core

import "testing"

func TestStorageReadLooseBlock(t *testing.T) {
	s, err := NewStorage(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	blk := sampleBoundaryBlock()
	blk.PreviousHeader = Hash{}
	raw := EncodeBlock(blk)
	h := blk.Hash()

	if err := s.Blobs.Write(h, raw); err != nil {
		t.Fatalf("Blobs.Write: %v", err)
	}

	loc, ok := s.BlockLocationOf(h)
	if !ok || loc.Kind != LocationLoose {
		t.Fatalf("BlockLocationOf = %+v, %v; want loose", loc, ok)
	}
	got, err := s.Read(h)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(raw) {
		t.Fatalf("Read returned different bytes than written")
	}
}

func TestStorageReadPackedBlockAndReconcile(t *testing.T) {
	root := t.TempDir()
	s, err := NewStorage(root, nil)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	blk := sampleBoundaryBlock()
	blk.PreviousHeader = Hash{}
	raw := EncodeBlock(blk)
	h := blk.Hash()

	if err := s.Blobs.Write(h, raw); err != nil {
		t.Fatalf("Blobs.Write: %v", err)
	}

	w, err := NewPackWriter(root)
	if err != nil {
		t.Fatalf("NewPackWriter: %v", err)
	}
	if err := w.Append(h, raw); err != nil {
		t.Fatalf("Append: %v", err)
	}
	packHash, entries, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	idx := BuildIndex(entries)
	if err := idx.WriteTo(root, packHash); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	s.RegisterPack(packHash)

	if err := s.ReconcileLooseVersusPacked(h); err != nil {
		t.Fatalf("ReconcileLooseVersusPacked: %v", err)
	}
	if s.Blobs.Exists(h) {
		t.Fatalf("loose copy still present after reconcile")
	}

	loc, ok := s.BlockLocationOf(h)
	if !ok || loc.Kind != LocationPacked {
		t.Fatalf("BlockLocationOf after reconcile = %+v, %v; want packed", loc, ok)
	}
	got, err := s.Read(h)
	if err != nil || string(got) != string(raw) {
		t.Fatalf("Read after reconcile = %q, %v", got, err)
	}
}

func TestStorageGetBlockFromTag(t *testing.T) {
	s, err := NewStorage(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	blk := sampleBoundaryBlock()
	blk.PreviousHeader = Hash{}
	raw := EncodeBlock(blk)
	h := blk.Hash()
	if err := s.Blobs.Write(h, raw); err != nil {
		t.Fatalf("Blobs.Write: %v", err)
	}
	if err := s.Tags.SetHash(HeadTag, h); err != nil {
		t.Fatalf("SetHash: %v", err)
	}

	gotHash, gotBlock, err := s.GetBlockFromTag(HeadTag)
	if err != nil {
		t.Fatalf("GetBlockFromTag: %v", err)
	}
	if gotHash != h {
		t.Fatalf("GetBlockFromTag hash = %x, want %x", gotHash, h)
	}
	if gotBlock.Kind != KindBoundary {
		t.Fatalf("GetBlockFromTag block kind = %v, want Boundary", gotBlock.Kind)
	}
}
