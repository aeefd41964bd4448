package p2p

import (
	"fmt"
	"math/big"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/internal/metrics"
	"github.com/luxfi/execd/internal/xlog"
)

// perPeerRateLimit bounds how many request messages one peer session may
// send per second; a peer that exceeds it is sent a disconnect and its
// session ends. This is the
// backpressure spec §5 asks the P2P channels to apply, sized generously
// enough that a well-behaved syncing peer never trips it.
const perPeerRateLimit = 50

// Server accepts and dials RLPx sessions, runs the devp2p Hello/Status
// handshake on each, and answers the eth sub-protocol's block/receipt
// request messages out of Store. Node discovery (populating Table from
// bootnodes and FINDNODE-style lookups) is handled at the interface level
// DESIGN.md records: Table itself is fully implemented, but this Server
// does not speak discv4/discv5's UDP wire format, treating peer discovery
// as an external collaborator's job the way spec §6 scopes it.
type Server struct {
	self      *Node
	networkID uint64
	genesis   common.Hash
	caps      []Cap

	store *store.Store
	table *Table
	peers *PeerSet

	log     *xlog.Logger
	metrics *metrics.Registry

	listener net.Listener
}

// Config collects a Server's construction parameters.
type Config struct {
	Self      *Node
	NetworkID uint64
	Genesis   common.Hash
	Store     *store.Store
	Log       *xlog.Logger
	Metrics   *metrics.Registry
}

// NewServer wires a Server over st, ready to Listen or Dial.
func NewServer(cfg Config) *Server {
	s := &Server{
		self:      cfg.Self,
		networkID: cfg.NetworkID,
		genesis:   cfg.Genesis,
		caps:      []Cap{{Name: "eth", Version: ETH68}},
		store:     cfg.Store,
		table:     NewTable(cfg.Self.ID),
		log:       cfg.Log,
		metrics:   cfg.Metrics,
	}
	var peerCount func(int)
	if s.metrics != nil {
		peerCount = func(n int) { s.metrics.PeerCount.Set(float64(n)) }
	}
	s.peers = NewPeerSet(peerCount)
	return s
}

// AddBootnode seeds the routing table with a known-good entry point, as the
// --bootnodes flag's enode URLs are parsed into.
func (s *Server) AddBootnode(n *Node) { s.table.AddNode(*n) }

// Peers returns the server's live peer set.
func (s *Server) Peers() *PeerSet { return s.peers }

// Table returns the server's Kademlia routing table.
func (s *Server) Table() *Table { return s.table }

// Listen starts accepting inbound RLPx connections on addr until Close is
// called; each accepted connection is handshaken and served on its own
// goroutine.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = ln
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.serveConn(conn, false)
	}
}

// Dial opens an outbound session to n and serves it on the calling
// goroutine's behalf via a detached goroutine, mirroring Listen's handling
// of an inbound connection.
func (s *Server) Dial(n *Node) error {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("%s:%d", n.IP, n.TCP), 10*time.Second)
	if err != nil {
		return err
	}
	go s.serveConn(conn, true)
	return nil
}

func (s *Server) serveConn(conn net.Conn, initiator bool) {
	defer conn.Close()

	session := NewRLPxSession(conn)
	if err := session.Handshake(initiator); err != nil {
		s.logWarn("rlpx handshake failed", err)
		return
	}

	local := &HelloPacket{Version: baseProtocolVersion, ClientID: "execd/v0", Caps: s.caps, NodeID: s.self.ID}
	remoteHello, err := performHandshake(session, local)
	if err != nil {
		s.logWarn("base protocol handshake failed", err)
		return
	}

	peer := NewPeer(remoteHello.NodeID, conn.RemoteAddr().String(), remoteHello.Caps)
	if err := s.statusHandshake(session, peer); err != nil {
		s.logWarn("status handshake failed", err)
		return
	}

	if err := s.peers.Register(peer); err != nil {
		s.logWarn("peer registration failed", err)
		return
	}
	defer s.peers.Unregister(peer.ID())
	s.table.AddNode(Node{ID: peer.ID()})

	s.servePeer(session, peer)
}

func (s *Server) logWarn(msg string, err error) {
	if s.log != nil {
		s.log.Warn("p2p: "+msg, "err", err)
	}
}

// statusHandshake exchanges StatusPackets so both sides confirm they share
// a network ID and genesis hash before any block data changes hands.
func (s *Server) statusHandshake(session Transport, peer *Peer) error {
	local := s.localStatus()
	payload, err := encodeStatus(&local)
	if err != nil {
		return err
	}
	sendErr := make(chan error, 1)
	go func() { sendErr <- session.WriteMsg(Msg{Code: StatusMsg, Payload: payload}) }()

	msg, err := session.ReadMsg()
	if werr := <-sendErr; werr != nil {
		return werr
	}
	if err != nil {
		return err
	}
	if msg.Code != StatusMsg {
		return fmt.Errorf("p2p: expected status message, got code 0x%02x", msg.Code)
	}
	remote, err := decodeStatus(msg.Payload)
	if err != nil {
		return err
	}
	if remote.NetworkID != s.networkID {
		return fmt.Errorf("p2p: network id mismatch: remote=%d local=%d", remote.NetworkID, s.networkID)
	}
	if remote.Genesis != s.genesis {
		return fmt.Errorf("p2p: genesis hash mismatch: remote=%s local=%s", remote.Genesis, s.genesis)
	}
	peer.SetVersion(uint(remote.ProtocolVersion))
	peer.SetHead(remote.Head, 0, remote.TD)
	return nil
}

func (s *Server) localStatus() StatusPacket {
	cd := s.store.ChainData()
	head, _ := s.store.GetCanonicalHash(cd.Latest)
	td := cd.TotalDifficulty
	if td == nil {
		td = new(big.Int)
	}
	return StatusPacket{ProtocolVersion: ETH68, NetworkID: s.networkID, TD: td, Head: head, Genesis: s.genesis}
}

// servePeer runs the request/response loop for one established peer
// session until it disconnects or misbehaves, applying a per-peer token
// bucket so one noisy peer can't starve the others' turnaround time.
func (s *Server) servePeer(session Transport, peer *Peer) {
	limiter := rate.NewLimiter(rate.Limit(perPeerRateLimit), perPeerRateLimit)
	for {
		msg, err := session.ReadMsg()
		if err != nil {
			return
		}
		if !limiter.Allow() {
			sendDisconnect(session, DiscTooManyPeers)
			return
		}
		if err := s.handleMsg(session, msg); err != nil {
			s.logWarn(fmt.Sprintf("peer %s protocol error", peer.ID()), err)
			sendDisconnect(session, DiscSubprotoError)
			return
		}
	}
}

func (s *Server) handleMsg(session Transport, msg Msg) error {
	switch msg.Code {
	case GetBlockHeadersMsg:
		return s.handleGetBlockHeaders(session, msg)
	case GetBlockBodiesMsg:
		return s.handleGetBlockBodies(session, msg)
	case GetReceiptsMsg:
		return s.handleGetReceipts(session, msg)
	case PingMsg:
		return session.WriteMsg(Msg{Code: PongMsg})
	case DisconnectMsg:
		return fmt.Errorf("peer requested disconnect: %s", disconnectReasonOf(msg))
	default:
		return nil
	}
}

func (s *Server) handleGetBlockHeaders(session Transport, msg Msg) error {
	req, err := decodeGetBlockHeaders(msg.Payload)
	if err != nil {
		return err
	}
	headers := s.collectHeaders(req)
	payload, err := encodeBlockHeaders(&BlockHeadersPacket{RequestID: req.RequestID, Headers: headers})
	if err != nil {
		return err
	}
	return session.WriteMsg(Msg{Code: BlockHeadersMsg, Payload: payload})
}

// maxHeadersServe bounds one GetBlockHeaders response (and the concurrent
// fetch it drives), mirroring mainstream eth/68 servers' own per-request cap
// so a peer can't force an unbounded burst of parallel store reads.
const maxHeadersServe = 192

func (s *Server) collectHeaders(req *GetBlockHeadersPacket) []*types.Header {
	number, ok := s.resolveOrigin(req.Origin)
	if !ok {
		return nil
	}
	amount := req.Amount
	if amount > maxHeadersServe {
		amount = maxHeadersServe
	}

	numbers := make([]uint64, 0, amount)
	for i := uint64(0); i < amount; i++ {
		numbers = append(numbers, number)
		if req.Reverse {
			if number < req.Skip+1 {
				break
			}
			number -= req.Skip + 1
		} else {
			number += req.Skip + 1
		}
	}

	fetched, err := s.store.GetHeaderRange(numbers)
	if err != nil {
		return nil
	}
	var headers []*types.Header
	for _, h := range fetched {
		if h == nil {
			break
		}
		headers = append(headers, h)
	}
	return headers
}

func (s *Server) resolveOrigin(origin HashOrNumber) (uint64, bool) {
	if !origin.IsHash() {
		return origin.Number, true
	}
	n, err := s.store.GetNumberByHash(origin.Hash)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *Server) handleGetBlockBodies(session Transport, msg Msg) error {
	req, err := decodeGetBlockBodies(msg.Payload)
	if err != nil {
		return err
	}
	var bodies []*BlockBody
	for _, hash := range req.Hashes {
		body, err := s.store.GetBody(hash)
		if err != nil {
			bodies = append(bodies, nil)
			continue
		}
		bodies = append(bodies, &BlockBody{Transactions: body.Transactions, Withdrawals: body.Withdrawals})
	}
	payload, err := encodeBlockBodies(&BlockBodiesPacket{RequestID: req.RequestID, Bodies: bodies})
	if err != nil {
		return err
	}
	return session.WriteMsg(Msg{Code: BlockBodiesMsg, Payload: payload})
}

func (s *Server) handleGetReceipts(session Transport, msg Msg) error {
	req, err := decodeGetReceipts(msg.Payload)
	if err != nil {
		return err
	}
	var receipts [][]*types.Receipt
	for _, hash := range req.Hashes {
		r, err := s.store.GetReceipts(hash)
		if err != nil {
			receipts = append(receipts, nil)
			continue
		}
		receipts = append(receipts, r)
	}
	payload, err := encodeReceipts(&ReceiptsPacket{RequestID: req.RequestID, Receipts: receipts})
	if err != nil {
		return err
	}
	return session.WriteMsg(Msg{Code: ReceiptsMsg, Payload: payload})
}

// Close stops accepting inbound connections.
func (s *Server) Close() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
