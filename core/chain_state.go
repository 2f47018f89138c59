package core

// chain_state.go implements ChainState and its central operation,
// VerifyBlock: stateless checks, chain linkage, leader and version
// policy, transaction/UTxO validation and boundary-block handling, per
// spec.md §4.9. Grounded on the teacher's Ledger (core/ledger.go,
// WAL-backed UTXO map guarded by a single mutex) generalized from an
// account-style ledger to the spec's pointer-keyed UTxO set and
// block-by-block verifier.

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// ChainState is the mutable, single-owner verifier state: the UTxO set,
// the active slot-leader schedule, adopted protocol version and
// in-flight update proposals.
type ChainState struct {
	mu      sync.Mutex
	logger  *log.Logger
	metrics *Metrics

	params ChainParameters

	havePrevBlock bool
	prevBlock     Hash
	havePrevDate  bool
	prevDate      BlockDate

	slotLeaders    []StakeholderId
	adoptedVersion BlockVersion

	stakeholders     map[StakeholderId]StakeInfo
	totalStakeWeight uint64

	utxos map[TxoPointer]TxOut

	activeProposals    map[Hash]ActiveProposal
	competingProposals map[BlockVersion]CompetingProposal
}

// GenesisConfig seeds a fresh ChainState: AVVM distribution (genesis
// UTxOs) and the bootstrap stakeholder/leader schedule.
type GenesisConfig struct {
	Params          ChainParameters
	Stakeholders    map[StakeholderId]StakeInfo
	BootSlotLeaders []StakeholderId
	AvvmUtxos       map[TxoPointer]TxOut
	AdoptedVersion  BlockVersion
}

// NewChainStateFromGenesis builds a ChainState with no previous block,
// so the first VerifyBlock call must be a Boundary(epoch_start) block.
func NewChainStateFromGenesis(cfg GenesisConfig, logger *log.Logger) *ChainState {
	if logger == nil {
		logger = log.StandardLogger()
	}
	var total uint64
	for _, s := range cfg.Stakeholders {
		total += s.Weight
	}
	utxos := make(map[TxoPointer]TxOut, len(cfg.AvvmUtxos))
	for k, v := range cfg.AvvmUtxos {
		utxos[k] = v
	}
	return &ChainState{
		logger:             logger,
		params:             cfg.Params,
		slotLeaders:        cfg.BootSlotLeaders,
		adoptedVersion:     cfg.AdoptedVersion,
		stakeholders:       cfg.Stakeholders,
		totalStakeWeight:   total,
		utxos:              utxos,
		activeProposals:    make(map[Hash]ActiveProposal),
		competingProposals: make(map[BlockVersion]CompetingProposal),
	}
}

// Checkpoint is the serializable snapshot taken at an epoch boundary so
// a ChainState can be resumed without replaying the whole chain.
type Checkpoint struct {
	LastBlock Hash
	LastDate  BlockDate
	Utxos     map[TxoPointer]TxOut
}

// NewChainStateFromCheckpoint resumes verification from a prior
// checkpoint plus the genesis-derived parameters and stake table.
func NewChainStateFromCheckpoint(cfg GenesisConfig, cp Checkpoint, logger *log.Logger) *ChainState {
	cs := NewChainStateFromGenesis(cfg, logger)
	cs.havePrevBlock = true
	cs.prevBlock = cp.LastBlock
	cs.havePrevDate = true
	cs.prevDate = cp.LastDate
	cs.utxos = make(map[TxoPointer]TxOut, len(cp.Utxos))
	for k, v := range cp.Utxos {
		cs.utxos[k] = v
	}
	return cs
}

// Checkpoint captures the current state for persistence at an epoch
// boundary.
func (cs *ChainState) Checkpoint() Checkpoint {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	snap := make(map[TxoPointer]TxOut, len(cs.utxos))
	for k, v := range cs.utxos {
		snap[k] = v
	}
	return Checkpoint{LastBlock: cs.prevBlock, LastDate: cs.prevDate, Utxos: snap}
}

// Parameters returns the chain's current (possibly softfork-adjusted)
// parameters.
func (cs *ChainState) Parameters() ChainParameters {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.params
}

// UtxoCount reports the live UTxO set size, used by tests asserting
// conservation of value.
func (cs *ChainState) UtxoCount() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.utxos)
}

// SetMetrics attaches a Metrics sink that VerifyBlock reports to. It may
// be called once at startup; passing nil disables reporting.
func (cs *ChainState) SetMetrics(m *Metrics) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.metrics = m
}

//---------------------------------------------------------------------
// VerifyBlock
//---------------------------------------------------------------------

// VerifyBlock validates hash/block/raw against the current state and
// mutates the state to reflect the block's observable effects
// regardless of outcome, returning the first error encountered (or nil).
// This "state always advances" behavior is intentional — see DESIGN.md
// Open Question 2 — so that a full verify_chain walk can keep going and
// produce a complete error report instead of stopping at the first bad
// block.
func (cs *ChainState) VerifyBlock(hash Hash, block *Block, raw []byte) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	note(cs.checkStateless(hash, block, raw))
	note(cs.checkChainLinkage(block))

	if block.Kind == KindMain {
		note(cs.checkLeader(block.Main))
		note(cs.checkVersionPolicy(block))
		note(cs.processTransactions(block.Main))
		if err := cs.handleUpdatePayload(block.Date(), block.Main.Body.Update); err != nil {
			note(err)
		}
	} else {
		note(cs.handleBoundary(block.Boundary, block.Date()))
	}

	cs.havePrevBlock = true
	cs.prevBlock = hash
	cs.havePrevDate = true
	cs.prevDate = block.Date()

	if cs.metrics != nil {
		if firstErr != nil {
			cs.metrics.ObserveValidationError(firstErr.Error())
		}
		cs.metrics.SetUtxoSetSize(len(cs.utxos))
		cs.metrics.SetHead(block.Date())
	}

	return firstErr
}

func (cs *ChainState) checkStateless(hash Hash, block *Block, raw []byte) error {
	if blake2b.Sum256(raw) != [32]byte(hash) {
		return fmt.Errorf("core: block hash mismatch for %s", hash.Short())
	}
	if block.Kind != KindMain {
		return nil
	}
	switch block.Main.Signature.Kind {
	case SigProxyLight:
		return ErrUnsupportedBlockSignature
	case SigDirect, SigProxyHeavy:
		// Signature cryptography (the Ed25519 check over MainToSign, and
		// for ProxyHeavy the delegation-certificate chain) is delegated
		// to the transport layer that produced raw; this engine treats
		// raw's hash match as the stateless proof of integrity and does
		// not re-derive keys here.
		return nil
	default:
		return fmt.Errorf("core: unknown block signature kind %d", block.Main.Signature.Kind)
	}
}

func (cs *ChainState) checkChainLinkage(block *Block) error {
	if cs.havePrevBlock && block.PreviousHeader != cs.prevBlock {
		return ErrWrongPreviousBlock
	}
	if !cs.havePrevBlock && !block.PreviousHeader.IsZero() {
		return ErrWrongPreviousBlock
	}

	date := block.Date()
	if !cs.havePrevDate {
		if block.Kind != KindBoundary {
			// No boundary has been seen yet to open this block's epoch.
			return ErrBlockDateInFuture
		}
		return nil
	}
	prev := cs.prevDate
	if !date.After(prev) {
		return ErrBlockDateInPast
	}
	if block.Kind == KindBoundary {
		if date.Epoch != prev.Epoch+1 {
			return ErrBlockDateInFuture
		}
	} else if date.Epoch != prev.Epoch {
		return ErrBlockDateInFuture
	}
	return nil
}

func (cs *ChainState) checkLeader(m *MainBlock) error {
	idx := int(m.SlotID.SlotId)
	if idx < 0 || idx >= len(cs.slotLeaders) {
		return ErrNonExistentSlot
	}
	expected := cs.slotLeaders[idx]
	actual := StakeholderId(blake2b.Sum256(m.LeaderPK))
	if expected != actual {
		return ErrWrongSlotLeader
	}
	return nil
}

func (cs *ChainState) checkVersionPolicy(block *Block) error {
	m := block.Main
	v := m.Extra.BlockVersion
	if v.Equal(cs.adoptedVersion) {
		return nil
	}
	cp, ok := cs.competingProposals[v]
	if !ok {
		return ErrWrongBlockVersion
	}
	if block.Date().After(cp.ConfirmationDate) || block.Date().Equal(cp.ConfirmationDate) {
		cp.Issuers[StakeholderId(blake2b.Sum256(m.LeaderPK))] = struct{}{}
		cs.competingProposals[v] = cp
		return nil
	}
	return ErrWrongBlockVersion
}

func (cs *ChainState) handleBoundary(b *BoundaryBlock, date BlockDate) error {
	if len(b.SlotLeaders) == 0 {
		return ErrEmptyLeaderSchedule
	}
	cs.slotLeaders = b.SlotLeaders
	cs.evaluateCompetingProposals(date)
	return nil
}

//---------------------------------------------------------------------
// Transaction / UTxO validation
//---------------------------------------------------------------------

func (cs *ChainState) processTransactions(m *MainBlock) error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for i := range m.Body.Transactions {
		note(cs.processOneTx(&m.Body.Transactions[i]))
	}
	return firstErr
}

func (cs *ChainState) processOneTx(tx *TxAux) error {
	id := tx.ID()
	var inputAmount uint64
	var nrRedeems int

	for i, in := range tx.Inputs {
		out, ok := cs.utxos[in]
		if !ok {
			return ErrMissingUtxo
		}
		delete(cs.utxos, in)

		if i < len(tx.Witnesses) {
			w := tx.Witnesses[i]
			reconstructed, redeem, err := reconstructAddress(w, out.Address.Attributes)
			if err != nil {
				return err
			}
			if redeem {
				nrRedeems++
			}
			if !reconstructed.Equal(out.Address) {
				return ErrAddressMismatch
			}
		}

		next := inputAmount + out.Value
		if next < inputAmount {
			return ErrInputsTooBig
		}
		inputAmount = next
	}

	var outputAmount uint64
	for _, o := range tx.Outputs {
		next := outputAmount + o.Value
		if next < outputAmount {
			return ErrOutputsTooBig
		}
		outputAmount = next
	}

	var minFee uint64
	if len(tx.Inputs) == 0 || nrRedeems != len(tx.Inputs) {
		fee, err := cs.params.FeePolicy.CalculateForTxAux(tx, tx.Witnesses)
		if err != nil {
			return err
		}
		minFee = fee
	}
	total := outputAmount + minFee
	if total < outputAmount || total > inputAmount {
		return ErrOutputsExceedInputs
	}

	for idx, o := range tx.Outputs {
		ptr := TxoPointer{TxID: id, Index: uint32(idx)}
		if _, exists := cs.utxos[ptr]; exists {
			return ErrDuplicateTxo
		}
		cs.utxos[ptr] = o
	}
	return nil
}

// reconstructAddress rebuilds the spending address implied by a witness
// and the stored output's address attributes, per spec.md §4.9's three
// witness variants. It reports whether the witness was a redeem witness
// (counted toward the fee-free "all redeems" exemption).
func reconstructAddress(w Witness, attrs []byte) (Address, bool, error) {
	switch w.Kind {
	case WitnessPk:
		tagged := append([]byte("ATPubKey:"), attrs...)
		root := blake2b256(append(tagged, w.PublicKey...))
		return Address{Root: root, Attributes: attrs}, false, nil
	case WitnessRedeem:
		tagged := append([]byte("ATRedeem:"), attrs...)
		root := blake2b256(append(tagged, w.PublicKey...))
		return Address{Root: root, Attributes: attrs}, true, nil
	case WitnessScript:
		return Address{}, false, fmt.Errorf("core: script witnesses are not supported")
	default:
		return Address{}, false, fmt.Errorf("core: unknown witness kind %d", w.Kind)
	}
}
