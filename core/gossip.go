package core

// The gossip overlay lives outside the core; the mempool only needs a way
// to hand freshly admitted nodes to it.

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Gossiper forwards admitted nodes to peers.
type Gossiper interface {
	GossipNode(ctx context.Context, node *GraphNode) error
}

// LogGossiper is the single-node stand-in: it records what would have been
// forwarded and drops it.
type LogGossiper struct {
	Logger *log.Logger
}

func (g *LogGossiper) GossipNode(_ context.Context, node *GraphNode) error {
	lg := g.Logger
	if lg == nil {
		lg = log.StandardLogger()
	}
	lg.WithFields(log.Fields{
		"node":  node.ID,
		"prevs": len(node.PrevNodes),
	}).Debug("gossip suppressed, no overlay attached")
	return nil
}
