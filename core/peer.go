package core

// peer.go implements the Peer abstraction from spec.md §4.6:
// handshake/get_tip/get_blocks/send_transaction over a libp2p transport,
// one short-lived stream per logical request. Grounded on the teacher's
// Node (formerly network.go), which already wires a libp2p host, mDNS
// discovery and gossipsub; Peer reuses that host but replaces pubsub
// broadcast with direct request/response streams framed via protocol.go.

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/libp2p/go-libp2p"
	libp2phost "github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	p2ppeer "github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	log "github.com/sirupsen/logrus"
)

// NetHost wraps a libp2p host configured to speak ProtocolID, serving
// as the local endpoint both for dialing out to peers and accepting
// their requests.
type NetHost struct {
	host          libp2phost.Host
	protocolMagic uint32
	nodeID        string
	logger        *log.Logger
	nonce         uint64

	onGetBlockHeaders func(GetBlockHeadersMsg) BlockHeadersMsg
	onGetBlocks       func(GetBlocksMsg, func(Hash, []byte) error) error
	onGetTip          func() TipMsg
	onSendTransaction func(SendTransactionMsg)
}

// NetHostConfig configures NewNetHost.
type NetHostConfig struct {
	ListenAddr     string
	ProtocolMagic  uint32
	NodeID         string
	DiscoveryTag   string
	BootstrapPeers []string
}

// NewNetHost creates a libp2p host listening at cfg.ListenAddr and
// registers the sync protocol stream handler.
func NewNetHost(cfg NetHostConfig, logger *log.Logger) (*NetHost, error) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		return nil, fmt.Errorf("peer: create host: %w", err)
	}
	nh := &NetHost{host: h, protocolMagic: cfg.ProtocolMagic, nodeID: cfg.NodeID, logger: logger}
	h.SetStreamHandler(ProtocolID, nh.handleStream)

	if cfg.DiscoveryTag != "" {
		mdns.NewMdnsService(h, cfg.DiscoveryTag, mdnsNotifee{nh})
	}
	for _, addr := range cfg.BootstrapPeers {
		info, err := p2ppeer.AddrInfoFromString(addr)
		if err != nil {
			logger.Warnf("peer: invalid bootstrap addr %s: %v", addr, err)
			continue
		}
		if err := h.Connect(context.Background(), *info); err != nil {
			logger.Warnf("peer: bootstrap connect %s: %v", addr, err)
		}
	}
	return nh, nil
}

// SetHandlers wires the callbacks this host answers incoming requests
// with; typically bound to Storage/ChainIterator/Synchronizer methods.
func (nh *NetHost) SetHandlers(
	onGetBlockHeaders func(GetBlockHeadersMsg) BlockHeadersMsg,
	onGetBlocks func(GetBlocksMsg, func(Hash, []byte) error) error,
	onGetTip func() TipMsg,
	onSendTransaction func(SendTransactionMsg),
) {
	nh.onGetBlockHeaders = onGetBlockHeaders
	nh.onGetBlocks = onGetBlocks
	nh.onGetTip = onGetTip
	nh.onSendTransaction = onSendTransaction
}

func (nh *NetHost) Close() error { return nh.host.Close() }

type mdnsNotifee struct{ nh *NetHost }

func (m mdnsNotifee) HandlePeerFound(info p2ppeer.AddrInfo) {
	if info.ID == m.nh.host.ID() {
		return
	}
	if err := m.nh.host.Connect(context.Background(), info); err != nil {
		m.nh.logger.Warnf("peer: mdns connect %s: %v", info.ID, err)
	}
}

// handleStream serves one inbound connection: frames are read and
// dispatched until the remote closes the stream.
func (nh *NetHost) handleStream(s network.Stream) {
	defer s.Close()
	rw := bufio.NewReadWriter(bufio.NewReader(s), bufio.NewWriter(s))
	for {
		f, err := ReadFrame(rw)
		if err != nil {
			return
		}
		resp := nh.dispatch(f)
		if err := WriteFrame(rw, resp); err != nil {
			return
		}
		if err := rw.Flush(); err != nil {
			return
		}
	}
}

func (nh *NetHost) dispatch(f Frame) Frame {
	switch f.Kind {
	case MsgHandshake:
		var hs HandshakeMsg
		_ = decodePayload(f.Payload, &hs)
		reply := HandshakeMsg{ProtocolMagic: nh.protocolMagic, NodeID: nh.nodeID, Nonce: atomic.AddUint64(&nh.nonce, 1)}
		return Frame{ConnId: f.ConnId, Kind: MsgHandshake, Payload: encodePayload(reply)}
	case MsgGetTip:
		var resp TipMsg
		if nh.onGetTip != nil {
			resp = nh.onGetTip()
		} else {
			resp = TipMsg{Err: "tip handler not configured"}
		}
		return Frame{ConnId: f.ConnId, Kind: MsgTip, Payload: encodePayload(resp)}
	case MsgGetBlockHeaders:
		var req GetBlockHeadersMsg
		_ = decodePayload(f.Payload, &req)
		var resp BlockHeadersMsg
		if nh.onGetBlockHeaders != nil {
			resp = nh.onGetBlockHeaders(req)
		} else {
			resp = BlockHeadersMsg{Err: "headers handler not configured"}
		}
		return Frame{ConnId: f.ConnId, Kind: MsgBlockHeaders, Payload: encodePayload(resp)}
	case MsgGetBlocks:
		var req GetBlocksMsg
		_ = decodePayload(f.Payload, &req)
		if nh.onGetBlocks == nil {
			return Frame{ConnId: f.ConnId, Kind: MsgBlock, Payload: encodePayload(BlockMsg{Err: "blocks handler not configured"})}
		}
		// For the request/response framing used here, get_blocks is
		// served as a single response carrying only the last block the
		// handler emits, rather than a stream, since the caller
		// (Synchronizer) already requests one block at a time.
		var last BlockMsg
		err := nh.onGetBlocks(req, func(h Hash, raw []byte) error {
			last = BlockMsg{OK: true, Raw: raw}
			return nil
		})
		if err != nil {
			last = BlockMsg{Err: err.Error()}
		}
		return Frame{ConnId: f.ConnId, Kind: MsgBlock, Payload: encodePayload(last)}
	case MsgSendTransaction:
		var req SendTransactionMsg
		_ = decodePayload(f.Payload, &req)
		if nh.onSendTransaction != nil {
			nh.onSendTransaction(req)
		}
		return Frame{ConnId: f.ConnId, Kind: MsgSendTransaction, Payload: nil}
	default:
		return Frame{ConnId: f.ConnId, Kind: f.Kind, Payload: nil}
	}
}

//---------------------------------------------------------------------
// Peer — outbound side
//---------------------------------------------------------------------

// Peer wraps a connection to one remote node. At most one task owns a
// Peer at a time; each logical request opens and closes its own stream
// (a "light connection" in the spec's terms).
type Peer struct {
	host   libp2phost.Host
	id     p2ppeer.ID
	logger *log.Logger
	mu     sync.Mutex
	connID uint32
}

// Dial opens a Peer handle to addr (a libp2p multiaddr with peer id).
func (nh *NetHost) Dial(ctx context.Context, addr string) (*Peer, error) {
	info, err := p2ppeer.AddrInfoFromString(addr)
	if err != nil {
		return nil, fmt.Errorf("peer: parse addr %s: %w", addr, err)
	}
	if err := nh.host.Connect(ctx, *info); err != nil {
		return nil, fmt.Errorf("peer: connect %s: %w", addr, err)
	}
	return &Peer{host: nh.host, id: info.ID, logger: nh.logger}, nil
}

func (p *Peer) nextConnID() LightConnId {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connID++
	return LightConnId(p.connID)
}

func (p *Peer) roundTrip(ctx context.Context, kind MessageKind, payload []byte) (Frame, error) {
	s, err := p.host.NewStream(ctx, p.id, ProtocolID)
	if err != nil {
		return Frame{}, fmt.Errorf("peer: open stream: %w", err)
	}
	defer s.Close()

	rw := bufio.NewReadWriter(bufio.NewReader(s), bufio.NewWriter(s))
	req := Frame{ConnId: p.nextConnID(), Kind: kind, Payload: payload}
	if err := WriteFrame(rw, req); err != nil {
		return Frame{}, err
	}
	if err := rw.Flush(); err != nil {
		return Frame{}, fmt.Errorf("peer: flush request: %w", err)
	}
	resp, err := ReadFrame(rw)
	if err != nil {
		return Frame{}, fmt.Errorf("peer: read response: %w", err)
	}
	return resp, nil
}

// Handshake exchanges protocol version and network id with the peer,
// failing with ErrIncompatibleMagic on mismatch.
func (p *Peer) Handshake(ctx context.Context, protocolMagic uint32, nodeID string) error {
	resp, err := p.roundTrip(ctx, MsgHandshake, encodePayload(HandshakeMsg{ProtocolMagic: protocolMagic, NodeID: nodeID}))
	if err != nil {
		return err
	}
	var hs HandshakeMsg
	if err := decodePayload(resp.Payload, &hs); err != nil {
		return fmt.Errorf("peer: decode handshake: %w", err)
	}
	if hs.ProtocolMagic != protocolMagic {
		return ErrIncompatibleMagic
	}
	return nil
}

// GetTip fetches the peer's current chain tip.
func (p *Peer) GetTip(ctx context.Context) (Hash, BlockDate, error) {
	resp, err := p.roundTrip(ctx, MsgGetTip, encodePayload(GetTipMsg{}))
	if err != nil {
		return Hash{}, BlockDate{}, err
	}
	var tip TipMsg
	if err := decodePayload(resp.Payload, &tip); err != nil {
		return Hash{}, BlockDate{}, fmt.Errorf("peer: decode tip: %w", err)
	}
	if !tip.OK {
		return Hash{}, BlockDate{}, fmt.Errorf("peer: get tip: %s", tip.Err)
	}
	return tip.Hash, BlockDate{Epoch: tip.Epoch, LocalSlot: int32(tip.LocalSlot)}, nil
}

// GetBlockHeaders fetches the ordered hash sequence between from and to
// (inclusive of to), used by Synchronizer to learn the fetch plan
// before streaming block bodies one at a time via GetBlocks.
func (p *Peer) GetBlockHeaders(ctx context.Context, from Hash, to Hash) ([]Hash, error) {
	resp, err := p.roundTrip(ctx, MsgGetBlockHeaders, encodePayload(GetBlockHeadersMsg{From: []Hash{from}, HasTo: true, To: to}))
	if err != nil {
		return nil, err
	}
	var hdrs BlockHeadersMsg
	if err := decodePayload(resp.Payload, &hdrs); err != nil {
		return nil, fmt.Errorf("peer: decode headers: %w", err)
	}
	if !hdrs.OK {
		return nil, fmt.Errorf("peer: get headers: %s", hdrs.Err)
	}
	return hdrs.Headers, nil
}

// GetBlocks requests (from, to] and invokes onBlock exactly once, with
// hash `to` and the raw bytes of the last block the remote returned.
// The wire exchange is a single request/response, so earlier blocks of
// a multi-block range are not delivered; Synchronizer calls GetBlocks
// once per hash when walking a range.
func (p *Peer) GetBlocks(ctx context.Context, from, to Hash, onBlock func(hash Hash, raw []byte) error) error {
	resp, err := p.roundTrip(ctx, MsgGetBlocks, encodePayload(GetBlocksMsg{From: from, To: to}))
	if err != nil {
		return err
	}
	var blk BlockMsg
	if err := decodePayload(resp.Payload, &blk); err != nil {
		return fmt.Errorf("peer: decode block: %w", err)
	}
	if !blk.OK {
		return fmt.Errorf("peer: get blocks: %s", blk.Err)
	}
	return onBlock(to, blk.Raw)
}

// SendTransaction fire-and-forgets a transaction to the peer.
func (p *Peer) SendTransaction(ctx context.Context, tx *TxAux) error {
	_, err := p.roundTrip(ctx, MsgSendTransaction, encodePayload(SendTransactionMsg{Raw: EncodeTx(tx)}))
	return err
}

// ID returns the peer's libp2p identity, used as its alias for
// per-peer tag bookkeeping.
func (p *Peer) ID() string { return p.id.String() }
