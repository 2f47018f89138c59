package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func startTestHost(t *testing.T, magic uint32) *NetHost {
	t.Helper()
	nh, err := NewNetHost(NetHostConfig{ListenAddr: "/ip4/127.0.0.1/tcp/0", ProtocolMagic: magic, NodeID: "test-node"}, nil)
	if err != nil {
		t.Fatalf("NewNetHost: %v", err)
	}
	t.Cleanup(func() { nh.Close() })
	return nh
}

func dialAddrOf(nh *NetHost) string {
	addrs := nh.host.Addrs()
	return fmt.Sprintf("%s/p2p/%s", addrs[0].String(), nh.host.ID().String())
}

func TestPeerHandshakeSucceedsOnMatchingMagic(t *testing.T) {
	server := startTestHost(t, 42)
	client := startTestHost(t, 42)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	peer, err := client.Dial(ctx, dialAddrOf(server))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := peer.Handshake(ctx, 42, "client-node"); err != nil {
		t.Fatalf("Handshake: %v", err)
	}
}

func TestPeerHandshakeRejectsMismatchedMagic(t *testing.T) {
	server := startTestHost(t, 1)
	client := startTestHost(t, 2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	peer, err := client.Dial(ctx, dialAddrOf(server))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := peer.Handshake(ctx, 2, "client-node"); err != ErrIncompatibleMagic {
		t.Fatalf("Handshake across mismatched magic: got %v, want ErrIncompatibleMagic", err)
	}
}

func TestPeerGetTipAndGetBlockHeaders(t *testing.T) {
	server := startTestHost(t, 7)
	tipHash := blake2b256([]byte("server-tip"))
	headerHashes := []Hash{blake2b256([]byte("h1")), blake2b256([]byte("h2"))}

	server.SetHandlers(
		func(req GetBlockHeadersMsg) BlockHeadersMsg {
			return BlockHeadersMsg{OK: true, Headers: headerHashes}
		},
		nil,
		func() TipMsg {
			return TipMsg{OK: true, Hash: tipHash, Epoch: 3, LocalSlot: 9}
		},
		nil,
	)

	client := startTestHost(t, 7)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	peer, err := client.Dial(ctx, dialAddrOf(server))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	gotHash, gotDate, err := peer.GetTip(ctx)
	if err != nil {
		t.Fatalf("GetTip: %v", err)
	}
	if gotHash != tipHash || gotDate.Epoch != 3 || gotDate.LocalSlot != 9 {
		t.Fatalf("GetTip = %x, %v; want %x, epoch=3 slot=9", gotHash, gotDate, tipHash)
	}

	headers, err := peer.GetBlockHeaders(ctx, Hash{}, tipHash)
	if err != nil {
		t.Fatalf("GetBlockHeaders: %v", err)
	}
	if len(headers) != len(headerHashes) {
		t.Fatalf("GetBlockHeaders returned %d headers, want %d", len(headers), len(headerHashes))
	}
}

func TestPeerGetBlocksDeliversRawPayload(t *testing.T) {
	server := startTestHost(t, 3)
	payload := []byte("raw-block-bytes")
	server.SetHandlers(nil, func(req GetBlocksMsg, emit func(Hash, []byte) error) error {
		return emit(req.To, payload)
	}, nil, nil)

	client := startTestHost(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	peer, err := client.Dial(ctx, dialAddrOf(server))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	var got []byte
	to := blake2b256([]byte("block-hash"))
	err = peer.GetBlocks(ctx, Hash{}, to, func(h Hash, raw []byte) error {
		got = raw
		return nil
	})
	if err != nil {
		t.Fatalf("GetBlocks: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("GetBlocks delivered %q, want %q", got, payload)
	}
}
