package core

// synchronizer.go implements the per-peer pull sync loop described in
// spec.md §4.7: tip comparison, fetch-range computation, streaming
// blocks into BlobStore or an in-progress pack, epoch-boundary
// finalization and tag bookkeeping. Grounded on the teacher's
// Replicator/ReplicationConfig (core/replication.go), which already
// modeled fanout, per-peer fetch timeouts and batch sizes as a plain
// config struct; golang.org/x/sync/errgroup — ungrounded in the
// teacher, adopted from the broader ecosystem per SPEC_FULL's
// DOMAIN STACK table — bounds the multi-peer fan-out this file adds on
// top of the teacher's sequential design.

import (
	"bytes"
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PeerHandle names one configured remote peer: its wire address and the
// alias used for its per-peer tip tag.
type PeerHandle struct {
	Alias   string
	Address string
}

// Synchronizer pulls blocks from a set of configured peers into
// Storage, verifying nothing itself — ChainState verification happens
// independently via ChainIterator, per spec.md's "independently walks"
// design.
type Synchronizer struct {
	storage          *Storage
	host             *NetHost
	params           ChainParameters
	logger           *log.Logger
	metrics          *Metrics
	maxParallelPeers int
}

// NewSynchronizer builds a Synchronizer bound to storage and host,
// using the given chain parameters for epoch-stability-depth math.
// metrics may be nil, in which case observations are skipped.
func NewSynchronizer(storage *Storage, host *NetHost, params ChainParameters, logger *log.Logger, metrics *Metrics, maxParallelPeers int) *Synchronizer {
	if logger == nil {
		logger = log.StandardLogger()
	}
	if maxParallelPeers <= 0 {
		maxParallelPeers = 1
	}
	return &Synchronizer{storage: storage, host: host, params: params, logger: logger, metrics: metrics, maxParallelPeers: maxParallelPeers}
}

// SyncAll pulls from every configured peer, bounding concurrency to
// maxParallelPeers via errgroup, then advances local HEAD by forward().
// A single peer's failure does not abort the others — each error is
// logged and that peer is skipped, per spec.md §5's "peer-level I/O
// errors do not abort the whole synchronizer" rule.
func (s *Synchronizer) SyncAll(ctx context.Context, peers []PeerHandle) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxParallelPeers)

	if s.metrics != nil {
		s.metrics.SetPeerCount(len(peers))
	}

	for _, ph := range peers {
		ph := ph
		g.Go(func() error {
			if err := s.syncOnePeer(gctx, ph); err != nil {
				s.logger.Warnf("synchronizer: peer %s failed: %v", ph.Alias, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := s.forward(peers); err != nil {
		return err
	}
	if s.metrics != nil {
		if h, err := s.storage.Tags.GetHash(HeadTag); err == nil {
			if _, date, err := s.hashDate(h); err == nil {
				s.metrics.SetHead(date)
			}
		}
	}
	return nil
}

func (s *Synchronizer) peerTipTag(alias string) string { return alias }

// syncOnePeer implements the single-peer pull described in spec.md
// §4.7 steps 1-6.
func (s *Synchronizer) syncOnePeer(ctx context.Context, ph PeerHandle) error {
	peer, err := s.host.Dial(ctx, ph.Address)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	if err := peer.Handshake(ctx, s.params.ProtocolMagic, ph.Alias); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	localHash, localDate, err := s.localTip(ph.Alias)
	if err != nil {
		return fmt.Errorf("local tip: %w", err)
	}

	remoteHash, remoteDate, err := peer.GetTip(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerTipUnknown, err)
	}

	switch {
	case localDate.Equal(remoteDate):
		if localHash == remoteHash {
			return s.storage.Tags.SetHash(s.peerTipTag(ph.Alias), remoteHash)
		}
		return s.refetchFromOurTip(ctx, peer, ph, localHash)
	case localDate.After(remoteDate):
		if s.storage.Blobs.Exists(remoteHash) {
			return s.storage.Tags.SetHash(s.peerTipTag(ph.Alias), remoteHash)
		}
		if loc, ok := s.storage.BlockLocationOf(remoteHash); ok {
			_ = loc
			return s.storage.Tags.SetHash(s.peerTipTag(ph.Alias), remoteHash)
		}
		return s.refetchFromOurTip(ctx, peer, ph, localHash)
	default:
		return s.fetchRange(ctx, peer, ph, localHash, remoteHash, remoteDate)
	}
}

func (s *Synchronizer) refetchFromOurTip(ctx context.Context, peer *Peer, ph PeerHandle, localHash Hash) error {
	remoteHash, remoteDate, err := peer.GetTip(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPeerTipUnknown, err)
	}
	return s.fetchRange(ctx, peer, ph, localHash, remoteHash, remoteDate)
}

func (s *Synchronizer) localTip(alias string) (Hash, BlockDate, error) {
	h, err := s.storage.Tags.GetHash(s.peerTipTag(alias))
	if err == ErrNotFound {
		if h2, err2 := s.storage.Tags.GetHash(HeadTag); err2 == nil {
			return s.hashDate(h2)
		}
		return Hash{}, BlockDate{}, nil
	}
	if err != nil {
		return Hash{}, BlockDate{}, err
	}
	return s.hashDate(h)
}

func (s *Synchronizer) hashDate(h Hash) (Hash, BlockDate, error) {
	if h.IsZero() {
		return h, BlockDate{}, nil
	}
	raw, err := s.storage.Read(h)
	if err != nil {
		return h, BlockDate{}, err
	}
	blk, err := DecodeBlock(raw)
	if err != nil {
		return h, BlockDate{}, err
	}
	return h, blk.Date(), nil
}

// fetchRange streams (local, remote] via the peer, routing each block
// either to BlobStore (if it is in the unstable tail) or into an
// in-progress epoch pack, finalizing packs as epoch boundaries pass.
func (s *Synchronizer) fetchRange(ctx context.Context, peer *Peer, ph PeerHandle, from, to Hash, toDate BlockDate) error {
	headers, err := peer.GetBlockHeaders(ctx, from, to)
	if err != nil {
		return fmt.Errorf("get headers: %w", err)
	}

	firstUnstableEpoch := s.firstUnstableEpoch(toDate)

	var writer *PackWriter
	var writerEpoch uint64
	var writerOpen bool

	finalizePack := func(epoch uint64) error {
		if !writerOpen {
			return nil
		}
		packBytes := writer.offset
		packHash, entries, err := writer.Finalize()
		if err != nil {
			return err
		}
		idx := BuildIndex(entries)
		if err := idx.WriteTo(s.storage.Root(), packHash); err != nil {
			return err
		}
		s.storage.RegisterPack(packHash)
		if err := s.storage.Tags.SetHash(EpochTagName(epoch), packHash); err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.ObservePackWritten(int(packBytes))
		}
		writerOpen = false
		return nil
	}

	prev := from
	for _, hash := range headers {
		select {
		case <-ctx.Done():
			if writerOpen {
				writer.Abort()
			}
			return ctx.Err()
		default:
		}

		var raw []byte
		fetchErr := peer.GetBlocks(ctx, prev, hash, func(_ Hash, data []byte) error {
			raw = data
			return nil
		})
		if fetchErr != nil {
			if writerOpen {
				writer.Abort()
			}
			return fmt.Errorf("get blocks: %w", fetchErr)
		}
		blk, err := DecodeBlock(raw)
		if err != nil {
			if writerOpen {
				writer.Abort()
			}
			if s.metrics != nil {
				s.metrics.ObserveBlockRejected()
			}
			return fmt.Errorf("decode block %s: %w", hash.Short(), err)
		}
		if s.metrics != nil {
			s.metrics.ObserveBlockFetched()
		}

		switch {
		case blk.Epoch() >= firstUnstableEpoch:
			if err := s.storage.Blobs.Write(hash, raw); err != nil {
				return err
			}
		case blk.Kind == KindBoundary && !writerOpen:
			if err := finalizePack(writerEpoch); err != nil {
				return err
			}
			w, err := NewPackWriter(s.storage.Root())
			if err != nil {
				return err
			}
			writer, writerEpoch, writerOpen = w, blk.Epoch(), true
			if err := writer.Append(hash, raw); err != nil {
				writer.Abort()
				return err
			}
		default:
			if blk.Kind == KindBoundary {
				if err := finalizePack(writerEpoch); err != nil {
					return err
				}
				if err := s.storage.Tags.SetHash(s.peerTipTag(ph.Alias), prev); err != nil {
					return err
				}
			}
			if !writerOpen {
				w, err := NewPackWriter(s.storage.Root())
				if err != nil {
					return err
				}
				writer, writerEpoch, writerOpen = w, blk.Epoch(), true
			}
			if err := writer.Append(hash, raw); err != nil {
				writer.Abort()
				return err
			}
		}
		prev = hash
	}

	if writerOpen {
		if err := finalizePack(writerEpoch); err != nil {
			return err
		}
	}

	return s.storage.Tags.SetHash(s.peerTipTag(ph.Alias), to)
}

// firstUnstableEpoch computes the epoch at or after which blocks may
// still be rolled back, per spec.md §4.7 step 3.
func (s *Synchronizer) firstUnstableEpoch(remoteDate BlockDate) uint64 {
	k := s.params.EpochStabilityDepth
	if uint64(remoteDate.LocalSlot) <= k {
		return satSub(remoteDate.Epoch, 1)
	}
	return remoteDate.Epoch
}

// forward advances HEAD to the maximum per-peer tip by (epoch, slot),
// with deterministic tie-breaking: prefer a hash already reachable from
// the current HEAD, else the lexicographically smallest hash.
func (s *Synchronizer) forward(peers []PeerHandle) error {
	var best Hash
	var bestDate BlockDate
	haveBest := false

	head, _ := s.storage.Tags.GetHash(HeadTag)

	for _, ph := range peers {
		h, err := s.storage.Tags.GetHash(s.peerTipTag(ph.Alias))
		if err != nil {
			continue
		}
		_, date, err := s.hashDate(h)
		if err != nil {
			continue
		}
		if !haveBest || date.After(bestDate) {
			best, bestDate, haveBest = h, date, true
			continue
		}
		if date.Equal(bestDate) && h != best {
			best = tieBreak(head, best, h)
		}
	}
	if !haveBest {
		return nil
	}
	return s.storage.Tags.SetHash(HeadTag, best)
}

func tieBreak(head, a, b Hash) Hash {
	if a == head {
		return a
	}
	if b == head {
		return b
	}
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a
	}
	return b
}
