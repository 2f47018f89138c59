package core

// epoch_packer.go moves a stable epoch's loose blobs into a single pack
// plus index, registering an `epoch/<n>` tag. Grounded on spec.md §4.5
// and the teacher's Replicator (replication.go → synchronizer.go),
// which already walks a chain of blocks and drives a writer/ledger
// pair; EpochPacker reuses that parent-walk shape against Storage.

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// EpochPacker packs a closed epoch's blocks into a single pack+index
// and tags it.
type EpochPacker struct {
	storage     *Storage
	logger      *log.Logger
	deleteLoose bool
}

// NewEpochPacker builds a packer bound to storage. deleteLoose controls
// whether packed blobs are removed from the loose store afterwards.
func NewEpochPacker(storage *Storage, logger *log.Logger, deleteLoose bool) *EpochPacker {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &EpochPacker{storage: storage, logger: logger, deleteLoose: deleteLoose}
}

// PackEpoch walks parents from lastBlockOfEpoch back to the epoch's
// boundary block (inclusive), then writes them forward into a fresh
// pack. It is a no-op if the epoch's tag already exists (idempotence).
func (p *EpochPacker) PackEpoch(epoch uint64, lastBlockOfEpoch Hash) (Hash, error) {
	tagName := EpochTagName(epoch)
	if p.storage.Tags.Exists(tagName) {
		packHash, err := p.storage.Tags.GetHash(tagName)
		if err != nil {
			return Hash{}, err
		}
		return packHash, nil
	}

	type walked struct {
		hash Hash
		raw  []byte
	}
	var stack []walked

	cur := lastBlockOfEpoch
	for {
		raw, err := p.storage.Read(cur)
		if err != nil {
			return Hash{}, fmt.Errorf("epoch packer: missing parent %s: %w", cur.Short(), err)
		}
		blk, err := DecodeBlock(raw)
		if err != nil {
			return Hash{}, fmt.Errorf("epoch packer: decode %s: %w", cur.Short(), err)
		}
		if blk.Epoch() != epoch {
			return Hash{}, fmt.Errorf("epoch packer: block %s has epoch %d, expected %d", cur.Short(), blk.Epoch(), epoch)
		}
		stack = append(stack, walked{hash: cur, raw: raw})
		if blk.Kind == KindBoundary {
			break
		}
		cur = blk.PreviousHeader
	}

	writer, err := NewPackWriter(p.storage.Root())
	if err != nil {
		return Hash{}, err
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if err := writer.Append(stack[i].hash, stack[i].raw); err != nil {
			writer.Abort()
			return Hash{}, err
		}
	}
	packHash, entries, err := writer.Finalize()
	if err != nil {
		return Hash{}, err
	}
	idx := BuildIndex(entries)
	if err := idx.WriteTo(p.storage.Root(), packHash); err != nil {
		return Hash{}, err
	}
	p.storage.RegisterPack(packHash)
	if err := p.storage.Tags.SetHash(tagName, packHash); err != nil {
		return Hash{}, err
	}

	if p.deleteLoose {
		for _, w := range stack {
			if err := p.storage.Blobs.Delete(w.hash); err != nil {
				p.logger.Warnf("epoch packer: failed to delete loose blob %s: %v", w.hash.Short(), err)
			}
		}
	}

	p.logger.Infof("epoch packer: epoch %d packed as %s (%d blocks)", epoch, packHash.Short(), len(stack))
	return packHash, nil
}
