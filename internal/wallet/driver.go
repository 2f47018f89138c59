package wallet

// Package wallet describes the interface an address-tracking wallet
// would implement to consume this engine's locally verified chain.
// Key management, HD derivation and signing are explicit non-goals of
// this repo; this package only grounds the boundary a real wallet
// would sit behind. Grounded on the teacher's WalletService
// (walletserver/services/wallet_service.go), trimmed down to the
// surface a wallet needs from a synced chain instead of the HD-key
// operations the teacher's wallet service exposed.

import "cardanogo/core"

// SyncDriver is implemented by anything that wants to follow the
// locally verified chain block by block, e.g. a wallet tracking its
// own UTxOs. Observe is called once per block in chain order; a
// driver decides for itself which outputs or inputs belong to it.
type SyncDriver interface {
	Observe(hash core.Hash, block *core.Block) error
}

// WalkFromGenesis drives driver over every block between genesis and
// tip, in chain order, using a ChainIterator rather than re-reading
// Storage directly. It stops and returns the first error Observe
// reports.
func WalkFromGenesis(storage *core.Storage, tip core.Hash, driver SyncDriver) error {
	it, err := core.NewChainIteratorTo(storage, tip)
	if err != nil {
		return err
	}

	var hashes []core.Hash
	var blocks []*core.Block
	for {
		h, blk, _, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		hashes = append(hashes, h)
		blocks = append(blocks, blk)
	}

	for i := len(hashes) - 1; i >= 0; i-- {
		if err := driver.Observe(hashes[i], blocks[i]); err != nil {
			return err
		}
	}
	return nil
}

// UtxoTracker is a minimal SyncDriver that tallies the total value of
// outputs paid to a fixed set of addresses, demonstrating the
// interface without implementing a full wallet. Address carries a
// byte-slice Attributes field, so membership is Equal-based rather
// than a map lookup.
type UtxoTracker struct {
	Addresses []core.Address
	Total     uint64
}

func (t *UtxoTracker) owns(addr core.Address) bool {
	for _, a := range t.Addresses {
		if a.Equal(addr) {
			return true
		}
	}
	return false
}

// Observe implements SyncDriver.
func (t *UtxoTracker) Observe(_ core.Hash, block *core.Block) error {
	if block.Kind != core.KindMain {
		return nil
	}
	for _, tx := range block.Main.Body.Transactions {
		for _, out := range tx.Outputs {
			if t.owns(out.Address) {
				t.Total += out.Value
			}
		}
	}
	return nil
}
