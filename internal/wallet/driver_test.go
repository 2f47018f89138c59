package wallet

import (
	"testing"

	"cardanogo/core"
)

func fakeHash(seed byte) core.Hash {
	var h core.Hash
	for i := range h {
		h[i] = seed
	}
	return h
}

func TestUtxoTrackerSumsOwnedOutputs(t *testing.T) {
	s, err := core.NewStorage(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}

	mine := core.Address{Root: fakeHash(1)}
	theirs := core.Address{Root: fakeHash(2)}

	boundary := &core.Block{
		Kind:     core.KindBoundary,
		Boundary: &core.BoundaryBlock{Epoch: 0, SlotLeaders: []core.StakeholderId{core.StakeholderId(fakeHash(3))}},
	}
	if err := s.Blobs.Write(boundary.Hash(), core.EncodeBlock(boundary)); err != nil {
		t.Fatalf("write boundary: %v", err)
	}

	main := &core.Block{
		Kind:           core.KindMain,
		PreviousHeader: boundary.Hash(),
		Main: &core.MainBlock{
			SlotID:    core.SlotId{Epoch: 0, SlotId: 0},
			LeaderPK:  []byte("leader"),
			Signature: core.BlockSignature{Kind: core.SigDirect, Signature: []byte("sig")},
			Body: core.MainBody{Transactions: []core.TxAux{
				{Outputs: []core.TxOut{{Address: mine, Value: 10}, {Address: theirs, Value: 99}}},
			}},
		},
	}
	if err := s.Blobs.Write(main.Hash(), core.EncodeBlock(main)); err != nil {
		t.Fatalf("write main: %v", err)
	}
	if err := s.Tags.SetHash(core.HeadTag, main.Hash()); err != nil {
		t.Fatalf("set HEAD: %v", err)
	}

	tracker := &UtxoTracker{Addresses: []core.Address{mine}}
	if err := WalkFromGenesis(s, main.Hash(), tracker); err != nil {
		t.Fatalf("WalkFromGenesis: %v", err)
	}
	if tracker.Total != 10 {
		t.Fatalf("Total = %d, want 10 (only the owned output)", tracker.Total)
	}
}
