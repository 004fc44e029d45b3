package protocol

import (
	"encoding/json"
	"testing"
)

func TestChannelKindText(t *testing.T) {
	for _, k := range []ChannelKind{UnicastInbound, BroadcastInbound} {
		b, err := k.MarshalText()
		if err != nil {
			t.Fatalf("marshal %v: %v", k, err)
		}
		var back ChannelKind
		if err := back.UnmarshalText(b); err != nil {
			t.Fatalf("unmarshal %q: %v", b, err)
		}
		if back != k {
			t.Fatalf("roundtrip mismatch: %v != %v", back, k)
		}
	}
}

func TestChannelKindRejectsUnknown(t *testing.T) {
	if _, err := ChannelUnknown.MarshalText(); err == nil {
		t.Fatalf("expected error marshaling unknown kind")
	}
	var k ChannelKind
	if err := k.UnmarshalText([]byte("multicast")); err == nil {
		t.Fatalf("expected error unmarshaling bogus kind")
	}
}

func TestAddressMapJSONKeys(t *testing.T) {
	am := AddressMap{UnicastInbound: "127.0.0.1:4000", BroadcastInbound: "127.0.0.1:4001"}
	b, err := json.Marshal(am)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back AddressMap
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back[UnicastInbound] != am[UnicastInbound] || back[BroadcastInbound] != am[BroadcastInbound] {
		t.Fatalf("roundtrip mismatch: %#v", back)
	}
}
