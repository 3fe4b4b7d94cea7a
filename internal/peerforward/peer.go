// Package peerforward implements the Peer-Forwarding Decorator (C5):
// it wraps a processor that requires cluster-wide key affinity so that all
// events sharing a key land on the same node.
package peerforward

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"
)

// PeerID identifies a node in the cluster.
type PeerID string

// PeerSet reports the cluster's current membership. Peer membership and
// hashing are provided by an external peer forwarder; Owner below only
// needs the live set and self identity it exposes.
type PeerSet interface {
	Self() PeerID
	Live() []PeerID
}

// hashKey is the rendezvous-hashing scoring function: xxhash is the fast
// non-cryptographic hash this corpus already standardizes on for
// partitioning (teacher go.mod; also used for Kafka partition assignment).
func hashKey(s string) uint64 {
	return xxhash.Sum64String(s)
}

// Owner deterministically selects the peer (or self) that owns key, given
// the live peer set. Rendezvous (highest-random-weight)
// hashing means membership changes remap the minimum possible number of
// keys, unlike a naive hash-mod-N scheme.
func Owner(key string, peers PeerSet) (PeerID, bool) {
	live := peers.Live()
	nodes := make([]string, 0, len(live)+1)
	nodes = append(nodes, string(peers.Self()))
	for _, p := range live {
		nodes = append(nodes, string(p))
	}
	if len(nodes) == 0 {
		return "", false
	}
	ring := rendezvous.New(nodes, hashKey)
	return PeerID(ring.Lookup(key)), true
}
