package protocol

import "fmt"

// ChannelKind is the closed enumeration of inbound channel kinds a process
// advertises to its peers. It keys both the local address registry and the
// peer address-exchange wire format, decoupled from any transport library's
// internal constants.
type ChannelKind int

const (
	ChannelUnknown ChannelKind = iota
	// UnicastInbound: connect to this address to reach the peer directly.
	UnicastInbound
	// BroadcastInbound: connect to this address to register the peer as a
	// broadcast subscriber.
	BroadcastInbound
)

func (k ChannelKind) String() string {
	switch k {
	case UnicastInbound:
		return "unicast-inbound"
	case BroadcastInbound:
		return "broadcast-inbound"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so ChannelKind can key
// serialized address maps.
func (k ChannelKind) MarshalText() ([]byte, error) {
	if k != UnicastInbound && k != BroadcastInbound {
		return nil, fmt.Errorf("protocol: unrecognized channel kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ChannelKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "unicast-inbound":
		*k = UnicastInbound
	case "broadcast-inbound":
		*k = BroadcastInbound
	default:
		return fmt.Errorf("protocol: unrecognized channel kind %q", string(text))
	}
	return nil
}

// AddressMap maps a channel kind to a transport address string.
type AddressMap map[ChannelKind]string

// PeerAddressTable is the wire contract with the external discovery
// collaborator: peer name -> channel kind -> address.
type PeerAddressTable map[string]AddressMap
