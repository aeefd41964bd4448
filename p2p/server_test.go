package p2p

import (
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/internal/metrics"
	"github.com/luxfi/execd/internal/xlog"
	"github.com/luxfi/execd/triedb"
)

func newTestStore(t *testing.T) (*store.Store, common.Hash) {
	t.Helper()
	s := store.New(triedb.NewMemoryDB())
	genesis := &types.Header{Difficulty: big.NewInt(0), Number: 0, GasLimit: 30_000_000, Timestamp: 0}
	if err := s.PutHeader(genesis); err != nil {
		t.Fatalf("put genesis: %v", err)
	}
	hash := genesis.Hash()
	s.SetCanonical(0, hash)
	s.SetChainData(store.ChainData{GenesisHash: hash, Latest: 0, TotalDifficulty: big.NewInt(0)})
	return s, hash
}

func newTestServer(t *testing.T, name byte) *Server {
	t.Helper()
	st, genesis := newTestStore(t)
	return NewServer(Config{
		Self:      &Node{ID: NodeID{name}},
		NetworkID: 1,
		Genesis:   genesis,
		Store:     st,
		Log:       xlog.Default(),
		Metrics:   metrics.New(),
	})
}

func TestServerHandshakeAndPeerRegistration(t *testing.T) {
	a := newTestServer(t, 1)
	b := newTestServer(t, 2)

	if err := a.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer a.Close()
	addr := a.listener.Addr().(*net.TCPAddr)

	if err := b.Dial(&Node{ID: a.self.ID, IP: addr.IP, TCP: uint16(addr.Port)}); err != nil {
		t.Fatalf("Dial: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if a.Peers().Len() == 1 && b.Peers().Len() == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("peers never registered: a=%d b=%d", a.Peers().Len(), b.Peers().Len())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServerGetBlockHeaders(t *testing.T) {
	st, genesis := newTestStore(t)
	srv := NewServer(Config{
		Self:      &Node{ID: NodeID{1}},
		NetworkID: 1,
		Genesis:   genesis,
		Store:     st,
	})

	client, serverSide := MsgPipe()
	defer client.Close()
	defer serverSide.Close()
	go srv.servePeer(serverSide, NewPeer(NodeID{2}, "test", nil))

	req := &GetBlockHeadersPacket{RequestID: 7, Origin: HashOrNumber{Number: 0}, Amount: 1}
	payload, err := encodeGetBlockHeaders(req)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := client.WriteMsg(Msg{Code: GetBlockHeadersMsg, Payload: payload}); err != nil {
		t.Fatalf("WriteMsg: %v", err)
	}

	msg, err := client.ReadMsg()
	if err != nil {
		t.Fatalf("ReadMsg: %v", err)
	}
	if msg.Code != BlockHeadersMsg {
		t.Fatalf("got code 0x%x, want BlockHeadersMsg", msg.Code)
	}
	resp, err := decodeBlockHeaders(msg.Payload)
	if err != nil {
		t.Fatalf("decodeBlockHeaders: %v", err)
	}
	if resp.RequestID != req.RequestID {
		t.Fatalf("request id mismatch: got %d want %d", resp.RequestID, req.RequestID)
	}
	if len(resp.Headers) != 1 || resp.Headers[0].Number != 0 {
		t.Fatalf("expected genesis header, got %+v", resp.Headers)
	}
}
