package core

// chain_updates.go implements the update-voting sub-machine described in
// spec.md §4.10: proposal registration, per-vote stake thresholds and
// tallying, plus the softfork adoption-threshold arithmetic boundary
// blocks evaluate against competing proposals. Grounded on the
// teacher's ConsensusWeights/WeightConfig (core/consensus_weights.go) which
// already expressed a coefficient-driven threshold calculation; this
// file generalizes that shape to stake-fraction thresholds expressed in
// parts-per-quadrillion, matching the spec's `× 10^15` convention.

const stakeFractionScale = 1_000_000_000_000_000 // 10^15

func (cs *ChainState) stakeOf(id StakeholderId) (StakeInfo, bool) {
	s, ok := cs.stakeholders[id]
	return s, ok
}

func (cs *ChainState) stakeholderByDelegatePK(pk []byte) (StakeholderId, StakeInfo, bool) {
	for id, s := range cs.stakeholders {
		if bytesEqual(s.DelegatePK, pk) {
			return id, s, true
		}
	}
	return StakeholderId{}, StakeInfo{}, false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (cs *ChainState) stakeFraction(weight uint64) uint64 {
	if cs.totalStakeWeight == 0 {
		return 0
	}
	return weight * stakeFractionScale / cs.totalStakeWeight
}

// proposalKey identifies an active proposal: Blake2b-256 over its RLP
// encoding, matching the spec's `Blake2b-256(cbor(proposal))`.
func proposalKey(p *UpdateProposal) Hash {
	rp := rlpUpdateProposal{
		From:            p.From,
		VersionMajor:    p.BlockVersion.Major,
		VersionMinor:    p.BlockVersion.Minor,
		VersionRev:      p.BlockVersion.Rev,
		Modifier:        toRLPModifier(p.Modifier),
		SoftwareAppName: p.Software.AppName,
		SoftwareVersion: p.Software.Version,
	}
	data := mustRLPEncode(rp)
	return blake2b256(data)
}

// handleUpdatePayload implements the §4.10 state machine for one
// block's UpdatePayload. It mutates cs in place and returns the first
// error encountered, per the engine-wide "error priority, state still
// advances" rule.
func (cs *ChainState) handleUpdatePayload(date BlockDate, up UpdatePayload) error {
	var firstErr error
	note := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if up.Proposal != nil {
		p := up.Proposal
		_, stake, ok := cs.stakeholderByDelegatePK(p.From)
		if !ok {
			note(ErrUnknownProposer)
		} else if cs.stakeFraction(stake.Weight) < cs.params.UpdateProposalThd {
			note(ErrInsufficientProposerStake)
		} else {
			key := proposalKey(p)
			if _, exists := cs.activeProposals[key]; exists {
				note(ErrDuplicateProposal)
			} else {
				if p.Modifier.HasReservedFields() {
					cs.logger.Warnf("chain state: update proposal %s sets reserved fields; parsed but never applied", key.Short())
				}
				cs.activeProposals[key] = ActiveProposal{Date: date, Proposal: *p}
			}
		}
	}

	for _, vote := range up.Votes {
		_, stake, ok := cs.stakeholderByDelegatePK(vote.VoterPK)
		if !ok {
			note(ErrUnknownVoter)
			continue
		}
		if cs.stakeFraction(stake.Weight) < cs.params.UpdateVoteThd {
			note(ErrInsufficientVoterStake)
			continue
		}
		ap, matched := cs.activeProposals[vote.ProposalId]
		if !matched {
			note(ErrMissingProposal)
			continue
		}
		ap.Votes = append(ap.Votes, vote)
		cs.activeProposals[vote.ProposalId] = ap
		matchedKey := vote.ProposalId

		var forStake, totalStake uint64
		for _, v := range ap.Votes {
			_, s, ok := cs.stakeholderByDelegatePK(v.VoterPK)
			if !ok {
				continue
			}
			totalStake += s.Weight
			if v.Approve {
				forStake += s.Weight
			}
		}
		if cs.totalStakeWeight > 0 && forStake*2 > cs.totalStakeWeight {
			delete(cs.activeProposals, matchedKey)
			if !ap.Proposal.BlockVersion.Equal(cs.adoptedVersion) {
				cs.competingProposals[ap.Proposal.BlockVersion] = CompetingProposal{
					Proposal:         ap.Proposal,
					ConfirmationDate: date,
					Issuers:          make(map[StakeholderId]struct{}),
				}
			}
		} else if cs.totalStakeWeight > 0 && (totalStake-forStake)*2 > cs.totalStakeWeight {
			delete(cs.activeProposals, matchedKey)
		}
	}

	return firstErr
}

// satSub performs a saturating unsigned subtraction: a-b, clamped to 0
// instead of wrapping, per DESIGN.md Open Question 1.
func satSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// softforkThreshold computes the adoption threshold for a competing
// proposal confirmed confirmationEpoch epochs ago, as of currentEpoch.
func softforkThreshold(rule SoftforkRule, confirmationEpoch, currentEpoch uint64) uint64 {
	elapsed := satSub(currentEpoch, confirmationEpoch)
	decayed := satSub(rule.Init, elapsed*rule.Decrement)
	if decayed < rule.Min {
		return rule.Min
	}
	return decayed
}

// evaluateCompetingProposals runs the boundary-block adoption check:
// any competitor whose issuer-weighted stake fraction clears its decayed
// softfork threshold is adopted into chain_parameters and removed from
// the competitor set.
func (cs *ChainState) evaluateCompetingProposals(date BlockDate) {
	for version, cp := range cs.competingProposals {
		var stake uint64
		for id := range cp.Issuers {
			if s, ok := cs.stakeOf(id); ok {
				stake += s.Weight
			}
		}
		threshold := softforkThreshold(cs.params.Softfork, cp.ConfirmationDate.Epoch, date.Epoch)
		if cs.stakeFraction(stake) >= threshold {
			cs.applyModifier(cp.Proposal.Modifier)
			cs.adoptedVersion = version
			delete(cs.competingProposals, version)
		}
	}
}

// applyModifier copies the four size-limit fields a BlockVersionModifier
// may carry into chain_parameters. Fee policy and threshold fields are
// reserved and never applied — see DESIGN.md Open Question 3.
func (cs *ChainState) applyModifier(m BlockVersionModifier) {
	if m.MaxBlockSize != nil {
		cs.params.MaxBlockSize = *m.MaxBlockSize
	}
	if m.MaxHeaderSize != nil {
		cs.params.MaxHeaderSize = *m.MaxHeaderSize
	}
	if m.MaxTxSize != nil {
		cs.params.MaxTxSize = *m.MaxTxSize
	}
	if m.MaxProposalSize != nil {
		cs.params.MaxProposalSize = *m.MaxProposalSize
	}
}
