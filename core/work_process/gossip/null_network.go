package gossip

import "github.com/libp2p/go-libp2p/core/peer"

// NullNetwork is a network without peers. Used by a standalone node
type NullNetwork struct{}

func (NullNetwork) Send(peer.ID, Message) {}

func (NullNetwork) Broadcast(Message, ...peer.ID) int {
	return 0
}
