package core

import (
	"errors"
	"sync"
	"testing"
)

func TestTagStoreSetGetHash(t *testing.T) {
	ts, err := NewTagStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTagStore: %v", err)
	}
	if ts.Exists(HeadTag) {
		t.Fatalf("HEAD reported present before Set")
	}
	if _, err := ts.GetHash(HeadTag); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetHash before Set: got %v, want ErrNotFound", err)
	}

	h := blake2b256([]byte("tip"))
	if err := ts.SetHash(HeadTag, h); err != nil {
		t.Fatalf("SetHash: %v", err)
	}
	if !ts.Exists(HeadTag) {
		t.Fatalf("HEAD not reported present after Set")
	}
	got, err := ts.GetHash(HeadTag)
	if err != nil {
		t.Fatalf("GetHash: %v", err)
	}
	if got != h {
		t.Fatalf("GetHash = %x, want %x", got, h)
	}
}

func TestTagStoreEpochTagName(t *testing.T) {
	ts, err := NewTagStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTagStore: %v", err)
	}
	name := EpochTagName(42)
	h := blake2b256([]byte("epoch-42-pack"))
	if err := ts.SetHash(name, h); err != nil {
		t.Fatalf("SetHash: %v", err)
	}
	got, err := ts.GetHash(name)
	if err != nil || got != h {
		t.Fatalf("GetHash(%s) = %x, %v; want %x, nil", name, got, err, h)
	}
}

func TestTagStoreConcurrentSetSameTag(t *testing.T) {
	ts, err := NewTagStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewTagStore: %v", err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h := blake2b256([]byte{byte(i)})
			_ = ts.SetHash("HEAD", h)
		}(i)
	}
	wg.Wait()
	if _, err := ts.GetHash("HEAD"); err != nil {
		t.Fatalf("GetHash after concurrent writers: %v", err)
	}
}
