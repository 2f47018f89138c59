package core

// chain_iterator.go implements ChainIterator's forward (iter_from) and
// reverse (iter_to) lazy traversals described in spec.md §4.8. Grounded
// on the teacher's ChainForkManager (core/chain_fork_manager.go), which
// already walked parent pointers to resolve branches; repurposed here
// into a restartable sequence over Storage instead of a fork-resolution
// index.

import (
	"fmt"
)

// ChainIterator yields blocks one at a time in either forward
// (child-after-parent) or reverse (child-to-parent) order. It is
// restartable from any hash it has yielded: Reset positions it to start
// from that hash again.
type ChainIterator struct {
	storage *Storage
	hashes  []Hash // in yield order (tip first for a reverse iterator)
	pos     int
	reverse bool
}

// NewChainIteratorFrom builds a forward iterator: starting at
// startHash, yielding blocks up to and including the local HEAD. It
// walks parent pointers from HEAD back to startHash and reverses the
// result, since only backward (previous_header) links are stored.
func NewChainIteratorFrom(storage *Storage, startHash Hash) (*ChainIterator, error) {
	head, err := storage.Tags.GetHash(HeadTag)
	if err != nil {
		return nil, fmt.Errorf("chain iterator: resolve HEAD: %w", err)
	}
	var hashes []Hash
	cur := head
	for {
		hashes = append(hashes, cur)
		if cur == startHash {
			break
		}
		raw, err := storage.Read(cur)
		if err != nil {
			return nil, fmt.Errorf("chain iterator: read %s: %w", cur.Short(), err)
		}
		blk, err := DecodeBlock(raw)
		if err != nil {
			return nil, fmt.Errorf("chain iterator: decode %s: %w", cur.Short(), err)
		}
		if blk.PreviousHeader.IsZero() && cur != startHash {
			return nil, fmt.Errorf("chain iterator: %s is not reachable from HEAD", startHash.Short())
		}
		cur = blk.PreviousHeader
	}
	for i, j := 0, len(hashes)-1; i < j; i, j = i+1, j-1 {
		hashes[i], hashes[j] = hashes[j], hashes[i]
	}
	return &ChainIterator{storage: storage, hashes: hashes}, nil
}

// NewChainIteratorTo builds a reverse iterator: starting at startHash,
// yielding blocks parent-ward back to genesis (a block whose
// PreviousHeader is the zero hash).
func NewChainIteratorTo(storage *Storage, startHash Hash) (*ChainIterator, error) {
	var hashes []Hash
	cur := startHash
	for {
		hashes = append(hashes, cur)
		raw, err := storage.Read(cur)
		if err != nil {
			return nil, fmt.Errorf("chain iterator: read %s: %w", cur.Short(), err)
		}
		blk, err := DecodeBlock(raw)
		if err != nil {
			return nil, fmt.Errorf("chain iterator: decode %s: %w", cur.Short(), err)
		}
		if blk.PreviousHeader.IsZero() {
			break
		}
		cur = blk.PreviousHeader
	}
	return &ChainIterator{storage: storage, hashes: hashes, reverse: true}, nil
}

// Next returns the next (hash, block, raw) triple in the iterator's
// direction, or ok=false once exhausted.
func (it *ChainIterator) Next() (hash Hash, block *Block, raw []byte, ok bool, err error) {
	if it.pos >= len(it.hashes) {
		return Hash{}, nil, nil, false, nil
	}
	var h Hash
	if it.reverse {
		h = it.hashes[it.pos]
	} else {
		h = it.hashes[it.pos]
	}
	it.pos++
	raw, err = it.storage.Read(h)
	if err != nil {
		return Hash{}, nil, nil, false, fmt.Errorf("chain iterator: read %s: %w", h.Short(), err)
	}
	blk, err := DecodeBlock(raw)
	if err != nil {
		return Hash{}, nil, nil, false, fmt.Errorf("chain iterator: decode %s: %w", h.Short(), err)
	}
	return h, blk, raw, true, nil
}

// Reset repositions the iterator to restart from resumeHash, which must
// be one of the hashes the iterator would yield.
func (it *ChainIterator) Reset(resumeHash Hash) error {
	for i, h := range it.hashes {
		if h == resumeHash {
			it.pos = i
			return nil
		}
	}
	return fmt.Errorf("chain iterator: %s is not part of this sequence", resumeHash.Short())
}

// Remaining reports how many blocks are left to yield.
func (it *ChainIterator) Remaining() int { return len(it.hashes) - it.pos }
