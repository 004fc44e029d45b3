package registry

import (
	"testing"

	"peerbus/pkg/protocol"
)

func TestOwnAddressesCopy(t *testing.T) {
	r := New()
	r.SetOwnAddress(protocol.UnicastInbound, "10.0.0.1:5000")
	r.SetOwnAddress(protocol.BroadcastInbound, "10.0.0.1:5001")

	am := r.OwnAddresses()
	if am[protocol.UnicastInbound] != "10.0.0.1:5000" {
		t.Fatalf("unexpected unicast addr: %q", am[protocol.UnicastInbound])
	}
	// mutating the copy must not leak into the registry
	am[protocol.UnicastInbound] = "changed"
	if got := r.OwnAddresses()[protocol.UnicastInbound]; got != "10.0.0.1:5000" {
		t.Fatalf("registry mutated through copy: %q", got)
	}
}

func TestRecordPeerMergesAddresses(t *testing.T) {
	r := New()
	r.RecordPeer("worker-1", protocol.AddressMap{protocol.UnicastInbound: "10.0.0.2:6000"})
	r.RecordPeer("worker-1", protocol.AddressMap{protocol.BroadcastInbound: "10.0.0.2:6001"})

	pr, ok := r.Peer("worker-1")
	if !ok {
		t.Fatalf("peer missing")
	}
	if len(pr.Addresses) != 2 {
		t.Fatalf("want merged addresses, got %#v", pr.Addresses)
	}
	if pr.ConnectedAt.IsZero() {
		t.Fatalf("ConnectedAt not set")
	}
}

func TestRecordExchange(t *testing.T) {
	r := New()
	r.RecordPeer("worker-1", nil)
	r.RecordExchange("worker-1", 128)
	r.RecordExchange("worker-1", 64)

	pr, _ := r.Peer("worker-1")
	if pr.MsgsOut != 2 || pr.BytesOut != 192 {
		t.Fatalf("counters mismatch: msgs=%d bytes=%d", pr.MsgsOut, pr.BytesOut)
	}

	r.Forget("worker-1")
	if _, ok := r.Peer("worker-1"); ok {
		t.Fatalf("peer still present after Forget")
	}
	if names := r.PeerNames(); len(names) != 0 {
		t.Fatalf("unexpected names: %v", names)
	}
}
