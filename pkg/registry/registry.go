// Package registry keeps the driver's address bookkeeping: the process's own
// bound addresses per channel kind, and per-peer records of advertised
// addresses and exchange counters.
package registry

import (
	"sync"
	"time"

	"peerbus/pkg/protocol"
)

// PeerRecord holds what the driver knows about one connected peer.
type PeerRecord struct {
	Name        string
	Addresses   protocol.AddressMap
	ConnectedAt time.Time
	MsgsOut     uint64
	BytesOut    uint64
}

// Registry is safe for concurrent use. Peer entries are never removed during
// normal operation; Forget exists for teardown bookkeeping only.
type Registry struct {
	mu    sync.RWMutex
	own   protocol.AddressMap
	peers map[string]*PeerRecord
}

func New() *Registry {
	return &Registry{
		own:   make(protocol.AddressMap),
		peers: make(map[string]*PeerRecord),
	}
}

// SetOwnAddress records the local bind address for a channel kind.
func (r *Registry) SetOwnAddress(kind protocol.ChannelKind, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.own[kind] = addr
}

// OwnAddresses returns a copy of the local bind addresses, suitable for
// distribution to peers by the discovery collaborator.
func (r *Registry) OwnAddresses() protocol.AddressMap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(protocol.AddressMap, len(r.own))
	for k, v := range r.own {
		out[k] = v
	}
	return out
}

// RecordPeer stores (or merges) a peer's advertised addresses.
func (r *Registry) RecordPeer(name string, addrs protocol.AddressMap) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pr := r.peers[name]
	if pr == nil {
		pr = &PeerRecord{Name: name, Addresses: make(protocol.AddressMap), ConnectedAt: time.Now()}
		r.peers[name] = pr
	}
	for k, v := range addrs {
		pr.Addresses[k] = v
	}
}

// Peer returns a snapshot of a peer record.
func (r *Registry) Peer(name string) (PeerRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pr := r.peers[name]
	if pr == nil {
		return PeerRecord{}, false
	}
	out := *pr
	out.Addresses = make(protocol.AddressMap, len(pr.Addresses))
	for k, v := range pr.Addresses {
		out.Addresses[k] = v
	}
	return out, true
}

// PeerNames returns a snapshot of known peer names.
func (r *Registry) PeerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.peers))
	for name := range r.peers {
		out = append(out, name)
	}
	return out
}

// RecordExchange bumps outbound counters for a peer.
func (r *Registry) RecordExchange(name string, bytes uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if pr := r.peers[name]; pr != nil {
		pr.MsgsOut++
		pr.BytesOut += bytes
	}
}

// Forget drops a peer record.
func (r *Registry) Forget(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, name)
}
