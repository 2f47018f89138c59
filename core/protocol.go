package core

// protocol.go defines the wire message types and RLP framing described
// in spec.md §6: length-prefixed frames carrying one of a small set of
// request/response message kinds, demultiplexed over a lightweight
// connection id. Grounded on the teacher's replication.go (which framed
// block ranges over a peer-manager abstraction) combined with the
// libp2p stream model peer.go already wires up: one logical request
// maps to one libp2p stream tagged with a LightConnId, closed on
// completion.

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/rlp"
)

// ProtocolID is the libp2p stream protocol identifier this engine
// speaks.
const ProtocolID = "/cardanogo/sync/1.0.0"

// MessageKind enumerates the wire messages spec.md §6 requires.
type MessageKind uint16

const (
	MsgHandshake MessageKind = iota
	MsgGetBlockHeaders
	MsgBlockHeaders
	MsgGetBlocks
	MsgBlock
	MsgAnnounceTx
	MsgTxContents
	MsgSubscribe
	MsgGetTip
	MsgTip
	MsgSendTransaction
)

// LightConnId tags a frame with the logical request it belongs to, so a
// single multiplexed stream can interleave several in-flight requests.
type LightConnId uint32

// Frame is one length-prefixed wire message: <u32 len><u32 connID><u16 msgID><payload>.
type Frame struct {
	ConnId  LightConnId
	Kind    MessageKind
	Payload []byte
}

// WriteFrame serializes and writes one frame to w.
func WriteFrame(w io.Writer, f Frame) error {
	body := make([]byte, 4+2+len(f.Payload))
	binary.BigEndian.PutUint32(body[0:4], uint32(f.ConnId))
	binary.BigEndian.PutUint16(body[4:6], uint16(f.Kind))
	copy(body[6:], f.Payload)

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(body)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return fmt.Errorf("protocol: write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("protocol: write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Frame{}, fmt.Errorf("protocol: read frame length: %w", err)
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n < 6 {
		return Frame{}, fmt.Errorf("protocol: %w: frame shorter than header", ErrTruncated)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("protocol: read frame body: %w", err)
	}
	return Frame{
		ConnId:  LightConnId(binary.BigEndian.Uint32(body[0:4])),
		Kind:    MessageKind(binary.BigEndian.Uint16(body[4:6])),
		Payload: body[6:],
	}, nil
}

//---------------------------------------------------------------------
// Message payloads
//---------------------------------------------------------------------

type HandshakeMsg struct {
	ProtocolMagic uint32
	NodeID        string
	Nonce         uint64
}

type GetBlockHeadersMsg struct {
	From  []Hash
	HasTo bool
	To    Hash
}

type BlockHeadersMsg struct {
	OK      bool
	Headers []Hash
	Err     string
}

type GetBlocksMsg struct {
	From Hash
	To   Hash
}

type BlockMsg struct {
	OK  bool
	Raw []byte
	Err string
}

type AnnounceTxMsg struct {
	TxID Hash
}

type TxContentsMsg struct {
	OK   bool
	Raw  []byte
	Err  string
}

type SubscribeMsg struct {
	Topic string
}

type GetTipMsg struct{}

// TipMsg.LocalSlot carries BlockDate.LocalSlot (int32, -1 for a boundary
// block) as a uint32 two's-complement bit pattern: go-ethereum's rlp
// only serializes unsigned integer kinds, so the signed field is cast
// at the Peer.GetTip boundary instead of on the wire.
type TipMsg struct {
	OK        bool
	Hash      Hash
	Epoch     uint64
	LocalSlot uint32
	Err       string
}

type SendTransactionMsg struct {
	Raw []byte
}

func encodePayload(v interface{}) []byte {
	b, err := rlp.EncodeToBytes(v)
	if err != nil {
		panic("core: encode protocol payload: " + err.Error())
	}
	return b
}

func decodePayload(data []byte, v interface{}) error {
	return rlp.DecodeBytes(data, v)
}
