package core

import "testing"

func leaderStakeholders(pks ...string) (map[StakeholderId]StakeInfo, []StakeholderId) {
	stakes := make(map[StakeholderId]StakeInfo)
	leaders := make([]StakeholderId, len(pks))
	for i, pk := range pks {
		id := StakeholderId(blake2b256([]byte(pk)))
		stakes[id] = StakeInfo{DelegatePK: []byte(pk), Weight: 1}
		leaders[i] = id
	}
	return stakes, leaders
}

func genesisChainState(t *testing.T, utxos map[TxoPointer]TxOut) *ChainState {
	t.Helper()
	stakes, leaders := leaderStakeholders("leader-0", "leader-1")
	cfg := GenesisConfig{
		Params: ChainParameters{
			FeePolicy:         ConstantFeePolicy(0),
			UpdateProposalThd: 1,
			UpdateVoteThd:     1,
		},
		Stakeholders:    stakes,
		BootSlotLeaders: leaders,
		AvvmUtxos:       utxos,
		AdoptedVersion:  BlockVersion{Major: 1},
	}
	return NewChainStateFromGenesis(cfg, nil)
}

func signedMainBlock(prev Hash, leaderPK []byte, slot SlotId, body MainBody) *Block {
	return &Block{
		Kind:           KindMain,
		PreviousHeader: prev,
		Main: &MainBlock{
			SlotID:    slot,
			LeaderPK:  leaderPK,
			Signature: BlockSignature{Kind: SigDirect, Signature: []byte("sig")},
			Body:      body,
			Extra:     ExtraData{BlockVersion: BlockVersion{Major: 1}},
		},
	}
}

func TestVerifyBlockGenesisRequiresBoundaryFirst(t *testing.T) {
	cs := genesisChainState(t, nil)
	blk := signedMainBlock(Hash{}, []byte("leader-0"), SlotId{Epoch: 0, SlotId: 0}, MainBody{})
	raw := EncodeBlock(blk)
	if err := cs.VerifyBlock(blk.Hash(), blk, raw); err != ErrBlockDateInFuture {
		t.Fatalf("first block must be a boundary block: got %v, want ErrBlockDateInFuture", err)
	}
}

func TestVerifyBlockLinkageAndLeader(t *testing.T) {
	cs := genesisChainState(t, nil)

	boundary := &Block{Kind: KindBoundary, Boundary: &BoundaryBlock{
		Epoch:       0,
		SlotLeaders: []StakeholderId{StakeholderId(blake2b256([]byte("leader-0")))},
	}}
	braw := EncodeBlock(boundary)
	if err := cs.VerifyBlock(boundary.Hash(), boundary, braw); err != nil {
		t.Fatalf("boundary block should verify cleanly: %v", err)
	}

	main := signedMainBlock(boundary.Hash(), []byte("leader-0"), SlotId{Epoch: 0, SlotId: 0}, MainBody{})
	mraw := EncodeBlock(main)
	if err := cs.VerifyBlock(main.Hash(), main, mraw); err != nil {
		t.Fatalf("main block with correct leader should verify: %v", err)
	}

	wrongParent := signedMainBlock(blake2b256([]byte("not-the-parent")), []byte("leader-0"), SlotId{Epoch: 0, SlotId: 1}, MainBody{})
	wraw := EncodeBlock(wrongParent)
	if err := cs.VerifyBlock(wrongParent.Hash(), wrongParent, wraw); err != ErrWrongPreviousBlock {
		t.Fatalf("wrong parent: got %v, want ErrWrongPreviousBlock", err)
	}
}

func TestVerifyBlockWrongLeaderRejected(t *testing.T) {
	cs := genesisChainState(t, nil)
	boundary := &Block{Kind: KindBoundary, Boundary: &BoundaryBlock{
		Epoch:       0,
		SlotLeaders: []StakeholderId{StakeholderId(blake2b256([]byte("leader-0")))},
	}}
	_ = cs.VerifyBlock(boundary.Hash(), boundary, EncodeBlock(boundary))

	main := signedMainBlock(boundary.Hash(), []byte("impostor"), SlotId{Epoch: 0, SlotId: 0}, MainBody{})
	if err := cs.VerifyBlock(main.Hash(), main, EncodeBlock(main)); err != ErrWrongSlotLeader {
		t.Fatalf("wrong leader: got %v, want ErrWrongSlotLeader", err)
	}
}

func TestVerifyBlockProxyLightRejected(t *testing.T) {
	cs := genesisChainState(t, nil)
	boundary := &Block{Kind: KindBoundary, Boundary: &BoundaryBlock{
		Epoch:       0,
		SlotLeaders: []StakeholderId{StakeholderId(blake2b256([]byte("leader-0")))},
	}}
	_ = cs.VerifyBlock(boundary.Hash(), boundary, EncodeBlock(boundary))

	main := signedMainBlock(boundary.Hash(), []byte("leader-0"), SlotId{Epoch: 0, SlotId: 0}, MainBody{})
	main.Main.Signature.Kind = SigProxyLight
	if err := cs.VerifyBlock(main.Hash(), main, EncodeBlock(main)); err != ErrUnsupportedBlockSignature {
		t.Fatalf("proxy-light signature: got %v, want ErrUnsupportedBlockSignature", err)
	}
}

func TestVerifyBlockUtxoSpendAndConservation(t *testing.T) {
	fundingTxID := blake2b256([]byte("genesis-tx"))
	fundPtr := TxoPointer{TxID: fundingTxID, Index: 0}
	addr := Address{Root: blake2b256(append([]byte("ATPubKey:"), []byte("spender-pk")...))}
	cs := genesisChainState(t, map[TxoPointer]TxOut{
		fundPtr: {Address: addr, Value: 100},
	})

	boundary := &Block{Kind: KindBoundary, Boundary: &BoundaryBlock{
		Epoch:       0,
		SlotLeaders: []StakeholderId{StakeholderId(blake2b256([]byte("leader-0")))},
	}}
	_ = cs.VerifyBlock(boundary.Hash(), boundary, EncodeBlock(boundary))

	tx := TxAux{
		Inputs:  []TxoPointer{fundPtr},
		Outputs: []TxOut{{Address: addr, Value: 100}},
		Witnesses: []Witness{
			{Kind: WitnessPk, PublicKey: []byte("spender-pk")},
		},
	}
	main := signedMainBlock(boundary.Hash(), []byte("leader-0"), SlotId{Epoch: 0, SlotId: 0}, MainBody{Transactions: []TxAux{tx}})

	before := cs.UtxoCount()
	if err := cs.VerifyBlock(main.Hash(), main, EncodeBlock(main)); err != nil {
		t.Fatalf("spending tx should verify: %v", err)
	}
	if cs.UtxoCount() != before {
		t.Fatalf("UTxO count changed: spend one, create one should net to unchanged, got %d -> %d", before, cs.UtxoCount())
	}
	if err := cs.processOneTx(&tx); err != ErrMissingUtxo {
		t.Fatalf("spending the same input twice should fail with ErrMissingUtxo, got %v", err)
	}
}

func TestVerifyBlockFailureStillAdvancesState(t *testing.T) {
	cs := genesisChainState(t, nil)
	boundary := &Block{Kind: KindBoundary, Boundary: &BoundaryBlock{
		Epoch: 0,
		SlotLeaders: []StakeholderId{
			StakeholderId(blake2b256([]byte("leader-0"))),
			StakeholderId(blake2b256([]byte("leader-1"))),
		},
	}}
	_ = cs.VerifyBlock(boundary.Hash(), boundary, EncodeBlock(boundary))

	bogusTx := TxAux{
		Inputs:  []TxoPointer{{TxID: blake2b256([]byte("nonexistent")), Index: 0}},
		Outputs: []TxOut{{Value: 5}},
	}
	main := signedMainBlock(boundary.Hash(), []byte("leader-0"), SlotId{Epoch: 0, SlotId: 0}, MainBody{Transactions: []TxAux{bogusTx}})

	err := cs.VerifyBlock(main.Hash(), main, EncodeBlock(main))
	if err != ErrMissingUtxo {
		t.Fatalf("got %v, want ErrMissingUtxo", err)
	}

	next := signedMainBlock(main.Hash(), []byte("leader-1"), SlotId{Epoch: 0, SlotId: 1}, MainBody{})
	if err := cs.VerifyBlock(next.Hash(), next, EncodeBlock(next)); err != nil {
		t.Fatalf("chain should continue past a failed block's hash: %v", err)
	}
}

func TestReconstructAddressRejectsScriptWitness(t *testing.T) {
	_, _, err := reconstructAddress(Witness{Kind: WitnessScript}, nil)
	if err == nil {
		t.Fatalf("script witnesses should be rejected")
	}
}
