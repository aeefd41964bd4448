package p2p

import "testing"

func TestHelloEncodeDecodeRoundTrip(t *testing.T) {
	h := &HelloPacket{
		Version:    baseProtocolVersion,
		ClientID:   "execd/v0",
		Caps:       []Cap{{Name: "eth", Version: ETH68}},
		ListenPort: 30303,
		NodeID:     NodeID{1, 2, 3},
	}
	got, err := decodeHello(encodeHello(h))
	if err != nil {
		t.Fatalf("decodeHello: %v", err)
	}
	if got.Version != h.Version || got.ClientID != h.ClientID || got.ListenPort != h.ListenPort {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.NodeID != h.NodeID {
		t.Fatalf("node id mismatch: got %s want %s", got.NodeID, h.NodeID)
	}
	if len(got.Caps) != 1 || got.Caps[0] != h.Caps[0] {
		t.Fatalf("caps mismatch: %+v", got.Caps)
	}
}

func TestPerformHandshakeSucceedsOnMatchingCaps(t *testing.T) {
	a, b := MsgPipe()
	defer a.Close()
	defer b.Close()

	localA := &HelloPacket{Version: baseProtocolVersion, ClientID: "a", Caps: []Cap{{Name: "eth", Version: ETH68}}, NodeID: NodeID{1}}
	localB := &HelloPacket{Version: baseProtocolVersion, ClientID: "b", Caps: []Cap{{Name: "eth", Version: ETH68}}, NodeID: NodeID{2}}

	type result struct {
		remote *HelloPacket
		err    error
	}
	doneA := make(chan result, 1)
	doneB := make(chan result, 1)
	go func() { r, err := performHandshake(a, localA); doneA <- result{r, err} }()
	go func() { r, err := performHandshake(b, localB); doneB <- result{r, err} }()

	ra := <-doneA
	rb := <-doneB
	if ra.err != nil {
		t.Fatalf("side A handshake failed: %v", ra.err)
	}
	if rb.err != nil {
		t.Fatalf("side B handshake failed: %v", rb.err)
	}
	if ra.remote.NodeID != localB.NodeID {
		t.Fatalf("side A got wrong remote node id")
	}
	if rb.remote.NodeID != localA.NodeID {
		t.Fatalf("side B got wrong remote node id")
	}
}

func TestPerformHandshakeFailsOnNoMatchingCaps(t *testing.T) {
	a, b := MsgPipe()
	defer a.Close()
	defer b.Close()

	localA := &HelloPacket{Version: baseProtocolVersion, Caps: []Cap{{Name: "eth", Version: ETH68}}, NodeID: NodeID{1}}
	localB := &HelloPacket{Version: baseProtocolVersion, Caps: []Cap{{Name: "snap", Version: 1}}, NodeID: NodeID{2}}

	errCh := make(chan error, 2)
	go func() { _, err := performHandshake(a, localA); errCh <- err }()
	go func() { _, err := performHandshake(b, localB); errCh <- err }()

	e1, e2 := <-errCh, <-errCh
	if e1 == nil && e2 == nil {
		t.Fatal("expected at least one side to fail with no matching caps")
	}
}

func TestMatchingCaps(t *testing.T) {
	local := []Cap{{Name: "eth", Version: 68}, {Name: "snap", Version: 1}}
	remote := []Cap{{Name: "eth", Version: 68}, {Name: "les", Version: 4}}
	got := MatchingCaps(local, remote)
	if len(got) != 1 || got[0].Name != "eth" {
		t.Fatalf("MatchingCaps = %+v, want [eth/68]", got)
	}
}
