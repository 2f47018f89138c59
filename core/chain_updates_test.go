package core

import "testing"

func newTestChainState(t *testing.T, stakeholders map[StakeholderId]StakeInfo) *ChainState {
	t.Helper()
	cfg := GenesisConfig{
		Params: ChainParameters{
			UpdateProposalThd: 1,
			UpdateVoteThd:     1,
			Softfork:          SoftforkRule{Init: stakeFractionScale, Min: 100_000, Decrement: 10_000},
		},
		Stakeholders:    stakeholders,
		BootSlotLeaders: []StakeholderId{},
		AdoptedVersion:  BlockVersion{Major: 1},
	}
	return NewChainStateFromGenesis(cfg, nil)
}

func stakeholderSet(pks ...string) map[StakeholderId]StakeInfo {
	out := make(map[StakeholderId]StakeInfo)
	for _, pk := range pks {
		id := StakeholderId(blake2b256([]byte(pk)))
		out[id] = StakeInfo{DelegatePK: []byte(pk), Weight: 1}
	}
	return out
}

func TestSatSubSaturates(t *testing.T) {
	if got := satSub(5, 10); got != 0 {
		t.Fatalf("satSub(5,10) = %d, want 0", got)
	}
	if got := satSub(10, 5); got != 5 {
		t.Fatalf("satSub(10,5) = %d, want 5", got)
	}
}

func TestSoftforkThresholdDecaysToMin(t *testing.T) {
	rule := SoftforkRule{Init: 900_000, Min: 100_000, Decrement: 100_000}
	if got := softforkThreshold(rule, 0, 0); got != 900_000 {
		t.Fatalf("threshold at 0 elapsed = %d, want 900000", got)
	}
	if got := softforkThreshold(rule, 0, 5); got != 400_000 {
		t.Fatalf("threshold at 5 elapsed = %d, want 400000", got)
	}
	if got := softforkThreshold(rule, 0, 100); got != rule.Min {
		t.Fatalf("threshold should clamp to Min, got %d", got)
	}
}

func TestHandleUpdatePayloadProposalAndApproval(t *testing.T) {
	stakes := stakeholderSet("voter-a", "voter-b", "voter-c")
	cs := newTestChainState(t, stakes)

	proposal := &UpdateProposal{From: []byte("voter-a"), BlockVersion: BlockVersion{Major: 2}}
	key := proposalKey(proposal)

	err := cs.handleUpdatePayload(BlockDate{Epoch: 1}, UpdatePayload{Proposal: proposal})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, ok := cs.activeProposals[key]; !ok {
		t.Fatalf("proposal was not registered as active")
	}

	votes := []UpdateVote{
		{ProposalId: key, VoterPK: []byte("voter-a"), Approve: true},
		{ProposalId: key, VoterPK: []byte("voter-b"), Approve: true},
	}
	if err := cs.handleUpdatePayload(BlockDate{Epoch: 1, LocalSlot: 1}, UpdatePayload{Votes: votes}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	if _, stillActive := cs.activeProposals[key]; stillActive {
		t.Fatalf("proposal should have been promoted out of activeProposals on majority approval")
	}
	if _, competing := cs.competingProposals[proposal.BlockVersion]; !competing {
		t.Fatalf("approved proposal should become a competing proposal")
	}
}

func TestHandleUpdatePayloadUnknownProposerAndVoter(t *testing.T) {
	cs := newTestChainState(t, stakeholderSet("known"))

	proposal := &UpdateProposal{From: []byte("stranger"), BlockVersion: BlockVersion{Major: 3}}
	err := cs.handleUpdatePayload(BlockDate{Epoch: 1}, UpdatePayload{Proposal: proposal})
	if err != ErrUnknownProposer {
		t.Fatalf("propose from unknown stakeholder: got %v, want ErrUnknownProposer", err)
	}

	vote := UpdateVote{ProposalId: Hash{}, VoterPK: []byte("stranger"), Approve: true}
	err = cs.handleUpdatePayload(BlockDate{Epoch: 1}, UpdatePayload{Votes: []UpdateVote{vote}})
	if err != ErrUnknownVoter {
		t.Fatalf("vote from unknown stakeholder: got %v, want ErrUnknownVoter", err)
	}
}

func TestHandleUpdatePayloadDuplicateProposal(t *testing.T) {
	cs := newTestChainState(t, stakeholderSet("a"))
	proposal := &UpdateProposal{From: []byte("a"), BlockVersion: BlockVersion{Major: 4}}

	if err := cs.handleUpdatePayload(BlockDate{Epoch: 1}, UpdatePayload{Proposal: proposal}); err != nil {
		t.Fatalf("first proposal: %v", err)
	}
	if err := cs.handleUpdatePayload(BlockDate{Epoch: 1}, UpdatePayload{Proposal: proposal}); err != ErrDuplicateProposal {
		t.Fatalf("duplicate proposal: got %v, want ErrDuplicateProposal", err)
	}
}

func TestHandleUpdatePayloadVoteMatchesByProposalId(t *testing.T) {
	stakes := stakeholderSet("x", "y")
	cs := newTestChainState(t, stakes)

	p1 := &UpdateProposal{From: []byte("x"), BlockVersion: BlockVersion{Major: 5}}
	p2 := &UpdateProposal{From: []byte("y"), BlockVersion: BlockVersion{Major: 6}}
	if err := cs.handleUpdatePayload(BlockDate{Epoch: 1}, UpdatePayload{Proposal: p1}); err != nil {
		t.Fatalf("propose p1: %v", err)
	}
	if err := cs.handleUpdatePayload(BlockDate{Epoch: 1}, UpdatePayload{Proposal: p2}); err != nil {
		t.Fatalf("propose p2: %v", err)
	}

	key2 := proposalKey(p2)
	vote := UpdateVote{ProposalId: key2, VoterPK: []byte("x"), Approve: true}
	if err := cs.handleUpdatePayload(BlockDate{Epoch: 1}, UpdatePayload{Votes: []UpdateVote{vote}}); err != nil {
		t.Fatalf("vote: %v", err)
	}

	ap2, ok := cs.activeProposals[key2]
	if !ok {
		t.Fatalf("p2 should still be active")
	}
	if len(ap2.Votes) != 1 || ap2.Votes[0].ProposalId != key2 {
		t.Fatalf("vote recorded against wrong proposal: %+v", ap2.Votes)
	}

	key1 := proposalKey(p1)
	ap1, ok := cs.activeProposals[key1]
	if !ok || len(ap1.Votes) != 0 {
		t.Fatalf("vote for p2 must not be recorded against p1: %+v", ap1)
	}
}
