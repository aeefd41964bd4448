// Package p2p implements the node-discovery and RLPx session layer spec §6
// describes at the interface level: a Kademlia-style routing table and an
// encrypted, framed peer transport carrying the devp2p base protocol and the
// eth sub-protocol's block/receipt propagation messages. It deliberately
// does not pull in a private consensus-layer networking stack (DESIGN.md's
// dropped-teacher-deps note); everything here is self-contained and grounded
// on the core types this module already defines.
package p2p

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/luxfi/execd/common"
)

// NodeID is a node's 32-byte discovery identifier.
type NodeID [32]byte

func (id NodeID) String() string { return hex.EncodeToString(id[:]) }
func (id NodeID) IsZero() bool   { return id == NodeID{} }

// ParseNodeID parses a hex-encoded (optionally "0x"-prefixed) node ID.
func ParseNodeID(s string) (NodeID, error) {
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return NodeID{}, err
	}
	if len(b) != 32 {
		return NodeID{}, fmt.Errorf("p2p: node ID must be 32 bytes, got %d", len(b))
	}
	var id NodeID
	copy(id[:], b)
	return id, nil
}

// Node is a discoverable peer: its identity plus the endpoints a dialer
// connects to (TCP for RLPx sessions, UDP for discovery traffic).
type Node struct {
	ID  NodeID
	IP  net.IP
	TCP uint16
	UDP uint16
}

// String renders n as an enode:// URL, go-ethereum's interchange format for
// bootnodes and static peer lists.
func (n *Node) String() string {
	s := fmt.Sprintf("enode://%s@%s:%d", n.ID, ipOrLoopback(n.IP), n.TCP)
	if n.UDP != 0 && n.UDP != n.TCP {
		s += fmt.Sprintf("?discport=%d", n.UDP)
	}
	return s
}

func ipOrLoopback(ip net.IP) string {
	if ip == nil {
		return "127.0.0.1"
	}
	return ip.String()
}

// ParseNode parses an enode://<id>@<ip>:<tcp>[?discport=<udp>] URL, the
// format --bootnodes entries and static-peer config use.
func ParseNode(rawurl string) (*Node, error) {
	const prefix = "enode://"
	if !strings.HasPrefix(rawurl, prefix) {
		return nil, errors.New("p2p: enode URL missing enode:// prefix")
	}
	rest := rawurl[len(prefix):]

	at := strings.Index(rest, "@")
	if at < 0 {
		return nil, errors.New("p2p: enode URL missing @ separator")
	}
	id, err := ParseNodeID(rest[:at])
	if err != nil {
		return nil, fmt.Errorf("p2p: enode URL id: %w", err)
	}

	hostPort := rest[at+1:]
	query := ""
	if q := strings.Index(hostPort, "?"); q >= 0 {
		hostPort, query = hostPort[:q], hostPort[q+1:]
	}
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil, fmt.Errorf("p2p: enode URL host:port: %w", err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("p2p: enode URL has invalid IP %q", host)
	}
	tcpPort, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, fmt.Errorf("p2p: enode URL has invalid TCP port: %w", err)
	}

	node := &Node{ID: id, IP: ip, TCP: uint16(tcpPort), UDP: uint16(tcpPort)}
	for _, param := range strings.Split(query, "&") {
		if name, val, ok := strings.Cut(param, "="); ok && name == "discport" {
			udpPort, err := strconv.ParseUint(val, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("p2p: enode URL has invalid discport: %w", err)
			}
			node.UDP = uint16(udpPort)
		}
	}
	return node, nil
}

// keccakDistance is the spec's own distance metric: the leading-zero-bit
// count of keccak(a) XOR keccak(b), rather than a raw XOR over the node IDs
// themselves. Two adjacent raw IDs can therefore land in very different
// buckets, which is the point: it keeps routing-table placement from being
// gameable by an adversary who gets to pick their own node ID.
func keccakDistance(a, b NodeID) int {
	ha := common.Keccak256Hash(a[:])
	hb := common.Keccak256Hash(b[:])
	return leadingZeroBits(ha, hb)
}

func leadingZeroBits(a, b common.Hash) int {
	for i := 0; i < common.HashLength; i++ {
		x := a[i] ^ b[i]
		if x != 0 {
			n := 0
			for bit := 7; bit >= 0; bit-- {
				if x&(1<<uint(bit)) != 0 {
					break
				}
				n++
			}
			return i*8 + n
		}
	}
	return common.HashLength * 8
}
