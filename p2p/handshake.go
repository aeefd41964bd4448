package p2p

import (
	"errors"
	"fmt"

	"github.com/luxfi/execd/rlp"
)

// Base protocol (devp2p) message codes, exchanged before any sub-protocol
// message once the RLPx transport is up.
const (
	HelloMsg      = 0x00
	DisconnectMsg = 0x01
	PingMsg       = 0x02
	PongMsg       = 0x03
)

// baseProtocolVersion is the devp2p base-protocol version this node speaks.
const baseProtocolVersion = 5

var (
	ErrIncompatibleVersion = errors.New("p2p: incompatible base protocol version")
	ErrNoMatchingCaps      = errors.New("p2p: no matching sub-protocol capability")
)

// Cap names one sub-protocol capability a peer advertises, e.g. {"eth", 68}.
type Cap struct {
	Name    string
	Version uint
}

func (c Cap) String() string { return fmt.Sprintf("%s/%d", c.Name, c.Version) }

// HelloPacket is the capability-handshake message: the first thing either
// side sends after the RLPx transport comes up.
type HelloPacket struct {
	Version    uint64
	ClientID   string
	Caps       []Cap
	ListenPort uint64
	NodeID     NodeID
}

// encodeHello/decodeHello use this module's own RLP encoder (rlp.Value),
// the same wire format the trie, accounts, transactions and receipts are
// built on, rather than a one-off binary layout for a message this small.
func encodeHello(h *HelloPacket) []byte {
	caps := make([]rlp.Value, len(h.Caps))
	for i, c := range h.Caps {
		caps[i] = rlp.List(rlp.String([]byte(c.Name)), rlp.Uint64(uint64(c.Version)))
	}
	return rlp.Encode(rlp.List(
		rlp.Uint64(h.Version),
		rlp.String([]byte(h.ClientID)),
		rlp.List(caps...),
		rlp.Uint64(h.ListenPort),
		rlp.String(h.NodeID[:]),
	))
}

func decodeHello(data []byte) (*HelloPacket, error) {
	v, rest, err := rlp.Decode(data)
	if err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("p2p: malformed hello packet: %w", err)
	}
	items, err := v.Items()
	if err != nil || len(items) != 5 {
		return nil, errors.New("p2p: hello packet must be a 5-element list")
	}
	h := &HelloPacket{}
	if h.Version, err = items[0].Uint64(); err != nil {
		return nil, err
	}
	clientID, err := items[1].Bytes()
	if err != nil {
		return nil, err
	}
	h.ClientID = string(clientID)

	capItems, err := items[2].Items()
	if err != nil {
		return nil, err
	}
	h.Caps = make([]Cap, 0, len(capItems))
	for i, ci := range capItems {
		fields, err := ci.Items()
		if err != nil || len(fields) != 2 {
			return nil, fmt.Errorf("p2p: malformed cap entry %d", i)
		}
		name, err := fields[0].Bytes()
		if err != nil {
			return nil, err
		}
		ver, err := fields[1].Uint64()
		if err != nil {
			return nil, err
		}
		h.Caps = append(h.Caps, Cap{Name: string(name), Version: uint(ver)})
	}

	if h.ListenPort, err = items[3].Uint64(); err != nil {
		return nil, err
	}
	nodeID, err := items[4].Bytes()
	if err != nil {
		return nil, err
	}
	if len(nodeID) != 32 {
		return nil, fmt.Errorf("p2p: hello packet node id must be 32 bytes, got %d", len(nodeID))
	}
	copy(h.NodeID[:], nodeID)
	return h, nil
}

// DisconnectReason is the devp2p disconnect reason code sent in a
// DisconnectMsg payload.
type DisconnectReason uint8

const (
	DiscRequested      DisconnectReason = 0x00
	DiscNetworkError   DisconnectReason = 0x01
	DiscProtocolError  DisconnectReason = 0x02
	DiscUselessPeer    DisconnectReason = 0x03
	DiscTooManyPeers   DisconnectReason = 0x04
	DiscAlreadyPeered  DisconnectReason = 0x05
	DiscSubprotoError  DisconnectReason = 0x10
)

func (r DisconnectReason) String() string {
	switch r {
	case DiscRequested:
		return "requested"
	case DiscNetworkError:
		return "network error"
	case DiscProtocolError:
		return "protocol error"
	case DiscUselessPeer:
		return "useless peer"
	case DiscTooManyPeers:
		return "too many peers"
	case DiscAlreadyPeered:
		return "already peered"
	case DiscSubprotoError:
		return "sub-protocol error"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(r))
	}
}

// performHandshake exchanges HelloPackets over tr and returns the remote
// side's, failing if the base protocol version is too old or no
// sub-protocol capability is shared.
func performHandshake(tr Transport, local *HelloPacket) (*HelloPacket, error) {
	sendErr := make(chan error, 1)
	go func() {
		sendErr <- tr.WriteMsg(Msg{Code: HelloMsg, Payload: encodeHello(local)})
	}()

	msg, err := tr.ReadMsg()
	if werr := <-sendErr; werr != nil {
		return nil, fmt.Errorf("p2p: hello write: %w", werr)
	}
	if err != nil {
		return nil, fmt.Errorf("p2p: hello read: %w", err)
	}
	if msg.Code == DisconnectMsg {
		return nil, fmt.Errorf("p2p: remote disconnected during handshake: %s", disconnectReasonOf(msg))
	}
	if msg.Code != HelloMsg {
		return nil, fmt.Errorf("p2p: expected hello, got message code 0x%02x", msg.Code)
	}
	remote, err := decodeHello(msg.Payload)
	if err != nil {
		return nil, err
	}
	if remote.Version < baseProtocolVersion {
		sendDisconnect(tr, DiscProtocolError)
		return nil, fmt.Errorf("%w: remote=%d local=%d", ErrIncompatibleVersion, remote.Version, baseProtocolVersion)
	}
	if len(MatchingCaps(local.Caps, remote.Caps)) == 0 {
		sendDisconnect(tr, DiscUselessPeer)
		return nil, ErrNoMatchingCaps
	}
	return remote, nil
}

func disconnectReasonOf(msg Msg) DisconnectReason {
	if len(msg.Payload) == 0 {
		return DisconnectReason(0xff)
	}
	return DisconnectReason(msg.Payload[0])
}

// sendDisconnect best-efforts a disconnect message; the write runs
// detached since the remote may already have stopped reading.
func sendDisconnect(tr Transport, reason DisconnectReason) {
	go func() {
		_ = tr.WriteMsg(Msg{Code: DisconnectMsg, Payload: []byte{byte(reason)}})
	}()
}

// MatchingCaps returns the capabilities local and remote both advertise
// with an identical name and version.
func MatchingCaps(local, remote []Cap) []Cap {
	var out []Cap
	for _, l := range local {
		for _, r := range remote {
			if l == r {
				out = append(out, l)
			}
		}
	}
	return out
}
