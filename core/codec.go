package core

// codec.go provides the RLP-based wire/pack encoding for blocks and
// transactions, grounded on the teacher's replication.go and ledger.go
// which already depend on github.com/ethereum/go-ethereum/rlp for
// framing block payloads over the wire. RLP stands in for the original
// CBOR encoding: both are compact, self-describing, length-prefixed
// binary formats, and rlp.EncodeToBytes/DecodeBytes give the same
// "encode struct, get deterministic bytes" contract CBOR would.

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// mustRLPEncode encodes v and panics on failure; used only for internal,
// always-well-formed structs (e.g. proposal identity hashing) where an
// encode error would indicate a programming bug, not bad input.
func mustRLPEncode(v interface{}) []byte {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		panic("core: rlp encode: " + err.Error())
	}
	return b
}

// rlpTxAux mirrors TxAux with RLP-friendly fixed-width fields.
type rlpTxoPointer struct {
	TxID  Hash
	Index uint32
}

type rlpAddress struct {
	Root       Hash
	Attributes []byte
}

type rlpTxOut struct {
	Address rlpAddress
	Value   uint64
}

type rlpWitness struct {
	Kind      uint8
	PublicKey []byte
	Signature []byte
}

type rlpTxAux struct {
	Inputs    []rlpTxoPointer
	Outputs   []rlpTxOut
	Witnesses []rlpWitness
}

func toRLPTxAux(tx *TxAux) rlpTxAux {
	out := rlpTxAux{}
	for _, in := range tx.Inputs {
		out.Inputs = append(out.Inputs, rlpTxoPointer{TxID: in.TxID, Index: in.Index})
	}
	for _, o := range tx.Outputs {
		out.Outputs = append(out.Outputs, rlpTxOut{
			Address: rlpAddress{Root: o.Address.Root, Attributes: o.Address.Attributes},
			Value:   o.Value,
		})
	}
	for _, w := range tx.Witnesses {
		out.Witnesses = append(out.Witnesses, rlpWitness{Kind: uint8(w.Kind), PublicKey: w.PublicKey, Signature: w.Signature})
	}
	return out
}

// EncodeTxBody encodes only the spending-relevant parts of a
// transaction (inputs and outputs), excluding witnesses, so that
// TxAux.ID is stable across re-signing.
func EncodeTxBody(tx *TxAux) []byte {
	full := toRLPTxAux(tx)
	full.Witnesses = nil
	b, err := rlp.EncodeToBytes(full)
	if err != nil {
		panic("core: encode tx body: " + err.Error())
	}
	return b
}

// EncodeTx encodes the full transaction, including witnesses, for
// inclusion in a pack record or wire message.
func EncodeTx(tx *TxAux) []byte {
	b, err := rlp.EncodeToBytes(toRLPTxAux(tx))
	if err != nil {
		panic("core: encode tx: " + err.Error())
	}
	return b
}

func fromRLPTxAux(r rlpTxAux) *TxAux {
	tx := &TxAux{}
	for _, in := range r.Inputs {
		tx.Inputs = append(tx.Inputs, TxoPointer{TxID: in.TxID, Index: in.Index})
	}
	for _, o := range r.Outputs {
		tx.Outputs = append(tx.Outputs, TxOut{
			Address: Address{Root: o.Address.Root, Attributes: o.Address.Attributes},
			Value:   o.Value,
		})
	}
	for _, w := range r.Witnesses {
		tx.Witnesses = append(tx.Witnesses, Witness{Kind: WitnessKind(w.Kind), PublicKey: w.PublicKey, Signature: w.Signature})
	}
	return tx
}

// DecodeTx decodes a full transaction (inputs, outputs and witnesses)
// from its RLP encoding.
func DecodeTx(data []byte) (*TxAux, error) {
	var r rlpTxAux
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return nil, err
	}
	return fromRLPTxAux(r), nil
}

//---------------------------------------------------------------------
// Block encoding
//---------------------------------------------------------------------

type rlpSoftforkRule struct {
	Init, Min, Decrement uint64
}

type rlpBlockVersionModifier struct {
	HasMaxBlockSize, HasMaxHeaderSize, HasMaxTxSize, HasMaxProposalSize bool
	MaxBlockSize, MaxHeaderSize, MaxTxSize, MaxProposalSize             uint64
	HasReserved                                                        bool
}

func toRLPModifier(m BlockVersionModifier) rlpBlockVersionModifier {
	out := rlpBlockVersionModifier{HasReserved: m.HasReservedFields()}
	if m.MaxBlockSize != nil {
		out.HasMaxBlockSize, out.MaxBlockSize = true, *m.MaxBlockSize
	}
	if m.MaxHeaderSize != nil {
		out.HasMaxHeaderSize, out.MaxHeaderSize = true, *m.MaxHeaderSize
	}
	if m.MaxTxSize != nil {
		out.HasMaxTxSize, out.MaxTxSize = true, *m.MaxTxSize
	}
	if m.MaxProposalSize != nil {
		out.HasMaxProposalSize, out.MaxProposalSize = true, *m.MaxProposalSize
	}
	return out
}

func fromRLPModifier(r rlpBlockVersionModifier) BlockVersionModifier {
	var m BlockVersionModifier
	if r.HasMaxBlockSize {
		v := r.MaxBlockSize
		m.MaxBlockSize = &v
	}
	if r.HasMaxHeaderSize {
		v := r.MaxHeaderSize
		m.MaxHeaderSize = &v
	}
	if r.HasMaxTxSize {
		v := r.MaxTxSize
		m.MaxTxSize = &v
	}
	if r.HasMaxProposalSize {
		v := r.MaxProposalSize
		m.MaxProposalSize = &v
	}
	return m
}

type rlpUpdateProposal struct {
	From             []byte
	VersionMajor     uint16
	VersionMinor     uint16
	VersionRev       uint16
	Modifier         rlpBlockVersionModifier
	SoftwareAppName  string
	SoftwareVersion  uint32
}

type rlpUpdateVote struct {
	ProposalId Hash
	VoterPK    []byte
	Approve    bool
}

type rlpUpdatePayload struct {
	HasProposal bool
	Proposal    rlpUpdateProposal
	Votes       []rlpUpdateVote
}

type rlpBlockSignature struct {
	Kind          uint8
	Signature     []byte
	HasCert       bool
	CertIssuer    []byte
	CertDelegate  []byte
	CertEpochLo   uint64
	CertEpochHi   uint64
	CertMagic     uint32
	CertSignature []byte
	Opaque        []byte
}

type rlpBoundaryBlock struct {
	Epoch       uint64
	SlotLeaders []Hash
	Difficulty  uint64
}

type rlpMainBlock struct {
	SlotEpoch        uint64
	SlotId           uint32
	LeaderPK         []byte
	Signature        rlpBlockSignature
	Transactions     []rlpTxAux
	Update           rlpUpdatePayload
	ExtraVersionMaj  uint16
	ExtraVersionMin  uint16
	ExtraVersionRev  uint16
	ExtraSoftAppName string
	ExtraSoftVersion uint32
	ChainDifficulty  uint64
}

type rlpBlock struct {
	Kind           uint8
	PreviousHeader Hash
	HasBoundary    bool
	Boundary       rlpBoundaryBlock
	HasMain        bool
	Main           rlpMainBlock
}

// EncodeBlock encodes a Block to its canonical RLP representation,
// used both for content-addressing (hashing) and for PackFile records.
func EncodeBlock(b *Block) []byte {
	out := rlpBlock{Kind: uint8(b.Kind), PreviousHeader: b.PreviousHeader}
	switch b.Kind {
	case KindBoundary:
		out.HasBoundary = true
		leaders := make([]Hash, len(b.Boundary.SlotLeaders))
		for i, l := range b.Boundary.SlotLeaders {
			leaders[i] = Hash(l)
		}
		out.Boundary = rlpBoundaryBlock{Epoch: b.Boundary.Epoch, SlotLeaders: leaders, Difficulty: b.Boundary.Difficulty}
	case KindMain:
		out.HasMain = true
		m := b.Main
		sig := rlpBlockSignature{Kind: uint8(m.Signature.Kind), Signature: m.Signature.Signature, Opaque: m.Signature.Opaque}
		if m.Signature.Certificate != nil {
			c := m.Signature.Certificate
			sig.HasCert = true
			sig.CertIssuer = c.Issuer
			sig.CertDelegate = c.Delegate
			sig.CertEpochLo = c.EpochRange[0]
			sig.CertEpochHi = c.EpochRange[1]
			sig.CertMagic = c.ProtocolMagic
			sig.CertSignature = c.Signature
		}
		var txs []rlpTxAux
		for i := range m.Body.Transactions {
			txs = append(txs, toRLPTxAux(&m.Body.Transactions[i]))
		}
		var up rlpUpdatePayload
		if m.Body.Update.Proposal != nil {
			p := m.Body.Update.Proposal
			up.HasProposal = true
			up.Proposal = rlpUpdateProposal{
				From:            p.From,
				VersionMajor:    p.BlockVersion.Major,
				VersionMinor:    p.BlockVersion.Minor,
				VersionRev:      p.BlockVersion.Rev,
				Modifier:        toRLPModifier(p.Modifier),
				SoftwareAppName: p.Software.AppName,
				SoftwareVersion: p.Software.Version,
			}
		}
		for _, v := range m.Body.Update.Votes {
			up.Votes = append(up.Votes, rlpUpdateVote{ProposalId: v.ProposalId, VoterPK: v.VoterPK, Approve: v.Approve})
		}
		out.Main = rlpMainBlock{
			SlotEpoch:        m.SlotID.Epoch,
			SlotId:           m.SlotID.SlotId,
			LeaderPK:         m.LeaderPK,
			Signature:        sig,
			Transactions:     txs,
			Update:           up,
			ExtraVersionMaj:  m.Extra.BlockVersion.Major,
			ExtraVersionMin:  m.Extra.BlockVersion.Minor,
			ExtraVersionRev:  m.Extra.BlockVersion.Rev,
			ExtraSoftAppName: m.Extra.SoftwareVersion.AppName,
			ExtraSoftVersion: m.Extra.SoftwareVersion.Version,
			ChainDifficulty:  m.ChainDifficulty,
		}
	}
	b2, err := rlp.EncodeToBytes(out)
	if err != nil {
		panic("core: encode block: " + err.Error())
	}
	return b2
}

// DecodeBlock decodes a Block from its canonical RLP representation.
func DecodeBlock(data []byte) (*Block, error) {
	var r rlpBlock
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return nil, err
	}
	b := &Block{Kind: BlockKind(r.Kind), PreviousHeader: r.PreviousHeader}
	if r.HasBoundary {
		leaders := make([]StakeholderId, len(r.Boundary.SlotLeaders))
		for i, l := range r.Boundary.SlotLeaders {
			leaders[i] = StakeholderId(l)
		}
		b.Boundary = &BoundaryBlock{Epoch: r.Boundary.Epoch, SlotLeaders: leaders, Difficulty: r.Boundary.Difficulty}
	}
	if r.HasMain {
		m := r.Main
		sig := BlockSignature{Kind: BlockSignatureKind(m.Signature.Kind), Signature: m.Signature.Signature, Opaque: m.Signature.Opaque}
		if m.Signature.HasCert {
			sig.Certificate = &DelegationCertificate{
				Issuer:        m.Signature.CertIssuer,
				Delegate:      m.Signature.CertDelegate,
				EpochRange:    [2]uint64{m.Signature.CertEpochLo, m.Signature.CertEpochHi},
				ProtocolMagic: m.Signature.CertMagic,
				Signature:     m.Signature.CertSignature,
			}
		}
		var txs []TxAux
		for _, t := range m.Transactions {
			txs = append(txs, *fromRLPTxAux(t))
		}
		var up UpdatePayload
		if m.Update.HasProposal {
			p := m.Update.Proposal
			up.Proposal = &UpdateProposal{
				From:         p.From,
				BlockVersion: BlockVersion{Major: p.VersionMajor, Minor: p.VersionMinor, Rev: p.VersionRev},
				Modifier:     fromRLPModifier(p.Modifier),
				Software:     SoftwareVersion{AppName: p.SoftwareAppName, Version: p.SoftwareVersion},
			}
		}
		for _, v := range m.Update.Votes {
			up.Votes = append(up.Votes, UpdateVote{ProposalId: v.ProposalId, VoterPK: v.VoterPK, Approve: v.Approve})
		}
		b.Main = &MainBlock{
			SlotID:    SlotId{Epoch: m.SlotEpoch, SlotId: m.SlotId},
			LeaderPK:  m.LeaderPK,
			Signature: sig,
			Body:      MainBody{Transactions: txs, Update: up},
			Extra: ExtraData{
				BlockVersion:    BlockVersion{Major: m.ExtraVersionMaj, Minor: m.ExtraVersionMin, Rev: m.ExtraVersionRev},
				SoftwareVersion: SoftwareVersion{AppName: m.ExtraSoftAppName, Version: m.ExtraSoftVersion},
			},
			ChainDifficulty: m.ChainDifficulty,
		}
	}
	return b, nil
}
