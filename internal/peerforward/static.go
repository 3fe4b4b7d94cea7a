package peerforward

import "strings"

// StaticCluster is the simplest PeerSet/AddressBook pair: a fixed membership
// list supplied once at process startup. It never changes membership at
// runtime; a real deployment would swap this for a gossip- or
// registry-backed implementation satisfying the same two interfaces.
type StaticCluster struct {
	self      PeerID
	live      []PeerID
	addresses map[PeerID]string
}

// NewStaticCluster builds a cluster from a self peer ID and a set of
// "id=host:port" peer entries. Entries without an "=" are treated as IDs
// with no forwarding address and are dropped from the address book but kept
// in the live set.
func NewStaticCluster(self PeerID, peers []string) *StaticCluster {
	c := &StaticCluster{self: self, addresses: map[PeerID]string{}}
	for _, entry := range peers {
		id, addr, ok := strings.Cut(entry, "=")
		peer := PeerID(id)
		if peer == self {
			continue
		}
		c.live = append(c.live, peer)
		if ok {
			c.addresses[peer] = addr
		}
	}
	return c
}

func (c *StaticCluster) Self() PeerID   { return c.self }
func (c *StaticCluster) Live() []PeerID { return c.live }

func (c *StaticCluster) Address(peer PeerID) (string, bool) {
	addr, ok := c.addresses[peer]
	return addr, ok
}
