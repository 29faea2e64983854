package core

// Layered fan-out dissemination for admitted nodes. Peers sit in layers;
// each peer forwards to a fixed fanout of peers in the next layer, and a
// per-peer dedup set stops retransmission storms. This in-process form
// backs single-binary deployments and tests; the datagram transport in
// front of it is an external collaborator.

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Packet is one unit of dissemination.
type Packet struct {
	ID              uint64
	Data            []byte
	RetransmitCount uint32
	Origin          string
}

type horizonPeer struct {
	id        string
	layer     int
	neighbors []string

	mu       sync.Mutex
	received map[uint64]struct{}

	inbox chan Packet
}

// HorizonNetwork fans packets out across peer layers.
type HorizonNetwork struct {
	mu     sync.Mutex
	peers  map[string]*horizonPeer
	layers [][]string
	fanout int
	logger *log.Logger
}

func NewHorizonNetwork(fanout int, lg *log.Logger) *HorizonNetwork {
	if lg == nil {
		lg = log.StandardLogger()
	}
	if fanout <= 0 {
		fanout = 3
	}
	return &HorizonNetwork{
		peers:  make(map[string]*horizonPeer),
		fanout: fanout,
		logger: lg,
	}
}

// AddNode registers a peer on the given layer and returns its delivery
// channel.
func (h *HorizonNetwork) AddNode(id string, layer int) (<-chan Packet, error) {
	if layer < 0 {
		return nil, fmt.Errorf("negative layer %d", layer)
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.peers[id]; ok {
		return nil, fmt.Errorf("peer %s already registered", id)
	}
	peer := &horizonPeer{
		id:       id,
		layer:    layer,
		received: make(map[uint64]struct{}),
		inbox:    make(chan Packet, 100),
	}
	for len(h.layers) <= layer {
		h.layers = append(h.layers, nil)
	}
	h.layers[layer] = append(h.layers[layer], id)
	h.peers[id] = peer

	h.rebuildNeighborhoods()
	return peer.inbox, nil
}

// rebuildNeighborhoods recomputes each peer's forward set: slot i of a
// layer feeds slots i*fanout..(i+1)*fanout-1 of the next layer. Callers
// hold h.mu.
func (h *HorizonNetwork) rebuildNeighborhoods() {
	for layer := 0; layer < len(h.layers); layer++ {
		for idx, id := range h.layers[layer] {
			var neighbors []string
			if layer+1 < len(h.layers) {
				next := h.layers[layer+1]
				for target := idx * h.fanout; target < (idx+1)*h.fanout; target++ {
					if target < len(next) {
						neighbors = append(neighbors, next[target])
					}
				}
			}
			h.peers[id].neighbors = neighbors
		}
	}
}

// Neighbors reports the current forward set of a peer.
func (h *HorizonNetwork) Neighbors(id string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	peer, ok := h.peers[id]
	if !ok {
		return nil
	}
	return append([]string(nil), peer.neighbors...)
}

// Broadcast injects data at the first layer and lets it cascade.
func (h *HorizonNetwork) Broadcast(ctx context.Context, origin string, data []byte) error {
	var idBytes [8]byte
	if _, err := rand.Read(idBytes[:]); err != nil {
		return err
	}
	packet := Packet{
		ID:     binary.LittleEndian.Uint64(idBytes[:]),
		Data:   data,
		Origin: origin,
	}

	h.mu.Lock()
	var first []string
	if len(h.layers) > 0 {
		first = append(first, h.layers[0]...)
	}
	h.mu.Unlock()
	if len(first) == 0 {
		return fmt.Errorf("no peers registered")
	}

	for _, id := range first {
		if err := h.deliver(ctx, id, packet); err != nil {
			return err
		}
	}
	return nil
}

// deliver hands a packet to one peer and forwards it down the layers.
// Duplicate packet ids are dropped at the receiving peer.
func (h *HorizonNetwork) deliver(ctx context.Context, id string, packet Packet) error {
	h.mu.Lock()
	peer, ok := h.peers[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown peer %s", id)
	}

	peer.mu.Lock()
	if _, seen := peer.received[packet.ID]; seen {
		peer.mu.Unlock()
		return nil
	}
	peer.received[packet.ID] = struct{}{}
	peer.mu.Unlock()

	select {
	case peer.inbox <- packet:
	case <-ctx.Done():
		return ctx.Err()
	default:
		h.logger.WithField("peer", id).Warn("inbox full, packet dropped")
	}

	forwarded := packet
	forwarded.RetransmitCount++
	h.mu.Lock()
	neighbors := append([]string(nil), peer.neighbors...)
	h.mu.Unlock()
	for _, neighbor := range neighbors {
		if err := h.deliver(ctx, neighbor, forwarded); err != nil {
			return err
		}
	}
	return nil
}

// GossipNode serialises an admitted node and cascades it, satisfying the
// mempool's Gossiper.
func (h *HorizonNetwork) GossipNode(ctx context.Context, node *GraphNode) error {
	return h.Broadcast(ctx, node.ID, node.ToBytes())
}
