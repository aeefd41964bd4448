package p2p

import (
	"errors"
	"math/big"
	"sync"

	"github.com/luxfi/execd/common"
)

var (
	ErrPeerAlreadyRegistered = errors.New("p2p: peer already registered")
	ErrPeerNotRegistered     = errors.New("p2p: peer not registered")
)

// Peer is a connected remote node, past the base-protocol handshake and
// tracked for as long as the eth sub-protocol session with it stays open.
type Peer struct {
	id      NodeID
	addr    string
	caps    []Cap
	version uint

	mu         sync.RWMutex
	head       common.Hash
	td         *big.Int
	headNumber uint64
}

// NewPeer constructs a Peer from the HelloPacket exchange's outcome.
func NewPeer(id NodeID, addr string, caps []Cap) *Peer {
	return &Peer{id: id, addr: addr, caps: append([]Cap(nil), caps...), td: new(big.Int)}
}

func (p *Peer) ID() NodeID          { return p.id }
func (p *Peer) RemoteAddr() string  { return p.addr }
func (p *Peer) Caps() []Cap         { return append([]Cap(nil), p.caps...) }

func (p *Peer) SetVersion(v uint) { p.mu.Lock(); defer p.mu.Unlock(); p.version = v }
func (p *Peer) Version() uint     { p.mu.RLock(); defer p.mu.RUnlock(); return p.version }

// SetHead records the peer's self-reported chain head, as learned from its
// Status message or a NewBlock announcement.
func (p *Peer) SetHead(hash common.Hash, number uint64, td *big.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.head = hash
	p.headNumber = number
	if td != nil {
		p.td = new(big.Int).Set(td)
	}
}

func (p *Peer) Head() (common.Hash, uint64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.head, p.headNumber
}

func (p *Peer) TD() *big.Int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return new(big.Int).Set(p.td)
}

// PeerSet is the node's live peer table: every eth-sub-protocol session the
// server has completed a Status exchange with.
type PeerSet struct {
	mu    sync.RWMutex
	peers map[NodeID]*Peer

	// onChange, if set, is called (outside the lock) on every Register and
	// Unregister, letting the server keep internal/metrics.Registry's
	// PeerCount gauge in sync without PeerSet importing the metrics package.
	onChange func(count int)
}

func NewPeerSet(onChange func(count int)) *PeerSet {
	return &PeerSet{peers: make(map[NodeID]*Peer), onChange: onChange}
}

func (ps *PeerSet) Register(p *Peer) error {
	ps.mu.Lock()
	if _, exists := ps.peers[p.id]; exists {
		ps.mu.Unlock()
		return ErrPeerAlreadyRegistered
	}
	ps.peers[p.id] = p
	n := len(ps.peers)
	ps.mu.Unlock()
	ps.notify(n)
	return nil
}

func (ps *PeerSet) Unregister(id NodeID) error {
	ps.mu.Lock()
	if _, exists := ps.peers[id]; !exists {
		ps.mu.Unlock()
		return ErrPeerNotRegistered
	}
	delete(ps.peers, id)
	n := len(ps.peers)
	ps.mu.Unlock()
	ps.notify(n)
	return nil
}

func (ps *PeerSet) notify(n int) {
	if ps.onChange != nil {
		ps.onChange(n)
	}
}

func (ps *PeerSet) Peer(id NodeID) *Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return ps.peers[id]
}

func (ps *PeerSet) Len() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.peers)
}

func (ps *PeerSet) Peers() []*Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	out := make([]*Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		out = append(out, p)
	}
	return out
}

// BestPeer returns the registered peer advertising the highest total
// difficulty, or nil if the set is empty.
func (ps *PeerSet) BestPeer() *Peer {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	var best *Peer
	for _, p := range ps.peers {
		if best == nil || p.TD().Cmp(best.TD()) > 0 {
			best = p
		}
	}
	return best
}
