package core

// chain_types.go centralises the data model shared by the rest of the
// package: Hash, BlockDate, the Boundary/Main block union, UTxO
// pointers/outputs and chain parameters. Grounded on the teacher's
// common_structs.go (one file holding every cross-module struct, no
// functions beyond simple accessors) but repurposed entirely around a
// Cardano-style pack-addressed chain instead of a generic account ledger.

import (
	"fmt"
)

//---------------------------------------------------------------------
// Hash
//---------------------------------------------------------------------

// Hash is a 32-byte Blake2b-256 digest, used as block id, pack id and
// transaction id throughout the engine.
type Hash [32]byte

func (h Hash) Hex() string { return fmt.Sprintf("%x", h[:]) }

func (h Hash) Short() string {
	s := h.Hex()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + "…" + s[len(s)-4:]
}

func (h Hash) IsZero() bool { return h == Hash{} }

//---------------------------------------------------------------------
// Epoch / slot
//---------------------------------------------------------------------

// SlotsPerEpoch is the default epoch length; overridable per network via
// ChainParameters when a config specifies network.epoch_slots.
const SlotsPerEpoch = 21600

// BlockDate identifies a block's position in the chain. Boundary blocks
// carry LocalSlot == -1; main blocks carry 0 <= LocalSlot < epoch slots.
type BlockDate struct {
	Epoch     uint64
	LocalSlot int32
}

func BoundaryDate(epoch uint64) BlockDate { return BlockDate{Epoch: epoch, LocalSlot: -1} }

func (d BlockDate) IsBoundary() bool { return d.LocalSlot < 0 }

// After reports whether d is strictly later than o: by epoch first, then
// by local slot, with a boundary date sorting before any main slot of
// the same epoch.
func (d BlockDate) After(o BlockDate) bool {
	if d.Epoch != o.Epoch {
		return d.Epoch > o.Epoch
	}
	return d.LocalSlot > o.LocalSlot
}

func (d BlockDate) Equal(o BlockDate) bool { return d == o }

func (d BlockDate) String() string {
	if d.IsBoundary() {
		return fmt.Sprintf("%d.boundary", d.Epoch)
	}
	return fmt.Sprintf("%d.%d", d.Epoch, d.LocalSlot)
}

//---------------------------------------------------------------------
// Stakeholders
//---------------------------------------------------------------------

type StakeholderId Hash

func (s StakeholderId) Hex() string { return Hash(s).Hex() }

// StakeInfo is the stake-weight entry for one stakeholder: the public
// key authorized to sign on its behalf and its voting/leader weight.
type StakeInfo struct {
	DelegatePK []byte
	Weight     uint64
}

//---------------------------------------------------------------------
// Block version / update payload
//---------------------------------------------------------------------

// BlockVersion identifies a protocol version a block claims adherence to.
type BlockVersion struct {
	Major uint16
	Minor uint16
	Rev   uint16
}

func (v BlockVersion) String() string     { return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Rev) }
func (v BlockVersion) Equal(o BlockVersion) bool { return v == o }

type SoftwareVersion struct {
	AppName string
	Version uint32
}

// SoftforkRule is the (init, min, decrement) triple governing the
// adoption threshold of a competing block version.
type SoftforkRule struct {
	Init      uint64 // fraction * 1e15
	Min       uint64
	Decrement uint64
}

// BlockVersionModifier is the body of an update proposal. Only the four
// size-limit fields are ever applied on adoption; the rest are retained
// for forward compatibility and logged at WARN, never applied — see
// DESIGN.md Open Question 3.
type BlockVersionModifier struct {
	MaxBlockSize      *uint64
	MaxHeaderSize     *uint64
	MaxTxSize         *uint64
	MaxProposalSize   *uint64
	MpcThd            *uint64
	HeavyDelThd       *uint64
	UpdateVoteThd     *uint64
	UpdateProposalThd *uint64
	Softfork          *SoftforkRule
	UnlockStakeEpoch  *uint64
}

// HasReservedFields reports whether any field this engine never applies
// is populated.
func (m BlockVersionModifier) HasReservedFields() bool {
	return m.MpcThd != nil || m.HeavyDelThd != nil || m.UpdateVoteThd != nil ||
		m.UpdateProposalThd != nil || m.Softfork != nil || m.UnlockStakeEpoch != nil
}

type UpdateProposal struct {
	From         []byte
	BlockVersion BlockVersion
	Modifier     BlockVersionModifier
	Software     SoftwareVersion
}

type UpdateVote struct {
	ProposalId Hash
	VoterPK    []byte
	Approve    bool
}

type UpdatePayload struct {
	Proposal *UpdateProposal
	Votes    []UpdateVote
}

//---------------------------------------------------------------------
// Signature variants
//---------------------------------------------------------------------

type BlockSignatureKind uint8

const (
	SigDirect BlockSignatureKind = iota
	SigProxyLight
	SigProxyHeavy
)

// DelegationCertificate authorizes Delegate to sign on Issuer's behalf
// for block production within an epoch range.
type DelegationCertificate struct {
	Issuer        []byte
	Delegate      []byte
	EpochRange    [2]uint64
	ProtocolMagic uint32
	Signature     []byte
}

// BlockSignature is the tagged union of the three ways a block may be
// signed. ProxyLight certificates are accepted on the wire but rejected
// by ChainState.VerifyBlock with ErrUnsupportedBlockSignature — see
// DESIGN.md Open Question 4.
type BlockSignature struct {
	Kind        BlockSignatureKind
	Signature   []byte
	Certificate *DelegationCertificate
	Opaque      []byte
}

//---------------------------------------------------------------------
// Addresses / transactions / UTxO
//---------------------------------------------------------------------

type Address struct {
	Root       Hash
	Attributes []byte
}

func (a Address) Equal(o Address) bool {
	return a.Root == o.Root && string(a.Attributes) == string(o.Attributes)
}

// TxoPointer identifies a transaction output by its originating
// transaction id and output index.
type TxoPointer struct {
	TxID  Hash
	Index uint32
}

// Less gives TxoPointer a total order (TxID then Index), relied on by
// ChainState's deterministic UTxO enumeration.
func (p TxoPointer) Less(o TxoPointer) bool {
	if p.TxID != o.TxID {
		for i := range p.TxID {
			if p.TxID[i] != o.TxID[i] {
				return p.TxID[i] < o.TxID[i]
			}
		}
	}
	return p.Index < o.Index
}

type TxOut struct {
	Address Address
	Value   uint64
}

type WitnessKind uint8

const (
	WitnessPk WitnessKind = iota
	WitnessRedeem
	WitnessScript
)

type Witness struct {
	Kind      WitnessKind
	PublicKey []byte
	Signature []byte
}

type TxAux struct {
	Inputs    []TxoPointer
	Outputs   []TxOut
	Witnesses []Witness
}

// ID returns the transaction's canonical identifier: Blake2b-256 over
// its RLP encoding of inputs and outputs (witnesses are excluded, as in
// the original UTxO design, so signatures don't affect the txid).
func (tx *TxAux) ID() Hash { return blake2b256(EncodeTxBody(tx)) }

//---------------------------------------------------------------------
// Body / extra-data
//---------------------------------------------------------------------

type ExtraData struct {
	BlockVersion    BlockVersion
	SoftwareVersion SoftwareVersion
}

type MainBody struct {
	Transactions []TxAux
	Update       UpdatePayload
}

type SlotId struct {
	Epoch  uint64
	SlotId uint32
}

//---------------------------------------------------------------------
// Block union
//---------------------------------------------------------------------

type BlockKind uint8

const (
	KindBoundary BlockKind = iota
	KindMain
)

// BoundaryBlock marks an epoch start: it publishes the slot-leader
// schedule and chain difficulty baseline for the new epoch.
type BoundaryBlock struct {
	Epoch       uint64
	SlotLeaders []StakeholderId
	Difficulty  uint64
}

// MainBlock carries a slot id, parent pointer, leader key, signature and
// body.
type MainBlock struct {
	SlotID          SlotId
	LeaderPK        []byte
	Signature       BlockSignature
	Body            MainBody
	Extra           ExtraData
	ChainDifficulty uint64
}

// Block is the tagged union of boundary and main blocks. Exactly one of
// Boundary/Main is populated, selected by Kind.
type Block struct {
	Kind           BlockKind
	PreviousHeader Hash
	Boundary       *BoundaryBlock
	Main           *MainBlock
}

func (b *Block) Date() BlockDate {
	if b.Kind == KindBoundary {
		return BoundaryDate(b.Boundary.Epoch)
	}
	return BlockDate{Epoch: b.Main.SlotID.Epoch, LocalSlot: int32(b.Main.SlotID.SlotId)}
}

func (b *Block) Epoch() uint64 { return b.Date().Epoch }

// Hash returns the block's canonical identifier: Blake2b-256 over its
// RLP encoding.
func (b *Block) Hash() Hash { return blake2b256(EncodeBlock(b)) }

//---------------------------------------------------------------------
// Chain parameters
//---------------------------------------------------------------------

type ChainParameters struct {
	ProtocolMagic       uint32
	EpochSlots          uint64
	MaxBlockSize        uint64
	MaxHeaderSize       uint64
	MaxTxSize            uint64
	MaxProposalSize     uint64
	FeePolicy           FeePolicy
	UpdateProposalThd   uint64
	UpdateVoteThd       uint64
	Softfork            SoftforkRule
	EpochStabilityDepth uint64
}

//---------------------------------------------------------------------
// Proposal bookkeeping
//---------------------------------------------------------------------

type ActiveProposal struct {
	Date     BlockDate
	Proposal UpdateProposal
	Votes    []UpdateVote
}

type CompetingProposal struct {
	Proposal         UpdateProposal
	ConfirmationDate BlockDate
	Issuers          map[StakeholderId]struct{}
}
