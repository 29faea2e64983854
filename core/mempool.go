package core

// In-memory DAG of admitted, unpacked transactions.
//
// Admission attaches each new node to the tips with the lowest reference
// counts and bumps their counters before the node becomes visible. Once
// the pool reaches the packing interval, the best-referenced proportion of
// the graph is serialized, signed by the validator and persisted under the
// signature; the packed nodes leave memory. A storage failure aborts the
// pack with the pool untouched.

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	defaultPackIntervalCount = 2500
	defaultPackMinRefs       = 5
	defaultPackProportion    = 0.45

	// tipFanout is how many predecessors a new node references.
	tipFanout = 5
)

type Mempool struct {
	account *SignerPair
	store   *Store
	gossip  Gossiper
	logger  *log.Logger

	mu    sync.RWMutex
	nodes map[NodeID]*GraphNode

	packIntervalCount int
	packMinRefs       uint32
	packProportion    float64
}

// NewMempool wires a mempool for the given validator account.
func NewMempool(account *SignerPair, store *Store, gossip Gossiper, lg *log.Logger) *Mempool {
	if lg == nil {
		lg = log.StandardLogger()
	}
	return &Mempool{
		account:           account,
		store:             store,
		gossip:            gossip,
		logger:            lg,
		nodes:             make(map[NodeID]*GraphNode),
		packIntervalCount: defaultPackIntervalCount,
		packMinRefs:       defaultPackMinRefs,
		packProportion:    defaultPackProportion,
	}
}

// SetIntervalCount overrides the packing trigger size.
func (m *Mempool) SetIntervalCount(count int) { m.packIntervalCount = count }

// SetMinReferences overrides the maturity threshold for packing.
func (m *Mempool) SetMinReferences(count uint32) { m.packMinRefs = count }

// SetProportion overrides the fraction of the pool packed per pass.
func (m *Mempool) SetProportion(p float64) { m.packProportion = p }

// Len returns the number of nodes currently in the pool.
func (m *Mempool) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Node returns the node under id, if present.
func (m *Mempool) Node(id NodeID) (*GraphNode, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok
}

func (m *Mempool) validateItem(tx *Transaction) error {
	if tx.Digest == nil || tx.Signer == nil {
		return ErrMissingSignature
	}
	if len(tx.Instructions) == 0 {
		return ErrInvalidNodeInput
	}
	if len(tx.Digest) < SigLen {
		return ErrInvalidNodeInput
	}
	return nil
}

// AddGenesis seeds a fresh pool with its first node.
func (m *Mempool) AddGenesis(tx *Transaction) error {
	if err := m.validateItem(tx); err != nil {
		return err
	}
	nodeID, err := tx.CreateID()
	if err != nil {
		return ErrInvalidNodeID
	}

	node := NewGraphNode(nodeID, tx.Instructions, nil)
	m.mu.Lock()
	m.nodes[nodeID] = node
	m.mu.Unlock()

	m.logger.WithField("node", nodeID).Info("genesis node admitted")
	return nil
}

// AddItem admits a signed transaction: validates it, references the
// current tips, and inserts the new node. Reference increments land before
// the node becomes visible in the map.
func (m *Mempool) AddItem(ctx context.Context, tx *Transaction) error {
	if err := m.validateItem(tx); err != nil {
		return err
	}
	nodeID, err := tx.CreateID()
	if err != nil {
		return ErrInvalidNodeID
	}

	refNodes := m.pendingNodes()
	if len(refNodes) == 0 {
		return ErrMissingGenesisNode
	}
	if err := ctx.Err(); err != nil {
		// Cancelled between validation and the reference pass; no
		// predecessor has been touched yet.
		return err
	}

	// Predecessor counters are bumped in id order so overlapping
	// admissions cannot deadlock.
	refIDs := make([]NodeID, 0, len(refNodes))
	for _, ref := range refNodes {
		refIDs = append(refIDs, ref.ID)
	}
	sort.Strings(refIDs)
	byID := make(map[NodeID]*GraphNode, len(refNodes))
	for _, ref := range refNodes {
		byID[ref.ID] = ref
	}
	for _, id := range refIDs {
		byID[id].addReference()
	}

	prev := make([]NodeID, 0, len(refNodes))
	for _, ref := range refNodes {
		prev = append(prev, ref.ID)
	}
	node := NewGraphNode(nodeID, tx.Instructions, prev)

	m.mu.Lock()
	m.nodes[nodeID] = node
	size := len(m.nodes)
	m.mu.Unlock()

	if m.gossip != nil {
		if err := m.gossip.GossipNode(ctx, node); err != nil {
			m.logger.WithError(err).Warn("gossip failed")
		}
	}

	if size >= m.packIntervalCount {
		if err := m.Pack(); err != nil {
			return err
		}
	}
	return nil
}

// refSnapshot pairs a node handle with the reference count observed at
// snapshot time, so sorting never holds a lock.
type refSnapshot struct {
	node *GraphNode
	refs uint32
}

func (m *Mempool) snapshotNodes() []refSnapshot {
	m.mu.RLock()
	snap := make([]refSnapshot, 0, len(m.nodes))
	for _, n := range m.nodes {
		snap = append(snap, refSnapshot{node: n, refs: n.References()})
	}
	m.mu.RUnlock()
	return snap
}

// pendingNodes returns up to tipFanout nodes with the lowest reference
// counts. Ties break on node id so the order stays consistent across
// calls.
func (m *Mempool) pendingNodes() []*GraphNode {
	snap := m.snapshotNodes()
	sort.SliceStable(snap, func(i, j int) bool {
		if snap[i].refs != snap[j].refs {
			return snap[i].refs < snap[j].refs
		}
		return snap[i].node.ID < snap[j].node.ID
	})
	limit := min(tipFanout, len(snap))
	out := make([]*GraphNode, 0, limit)
	for _, s := range snap[:limit] {
		out = append(out, s.node)
	}
	return out
}

// packableNodes returns the top proportion of the pool by reference count,
// keeping only nodes at or above the maturity threshold.
func (m *Mempool) packableNodes() []*GraphNode {
	snap := m.snapshotNodes()
	sort.SliceStable(snap, func(i, j int) bool {
		if snap[i].refs != snap[j].refs {
			return snap[i].refs > snap[j].refs
		}
		return snap[i].node.ID < snap[j].node.ID
	})
	limit := min(int(math.Ceil(float64(len(snap))*m.packProportion)), len(snap))
	out := make([]*GraphNode, 0, limit)
	for _, s := range snap[:limit] {
		if s.refs >= m.packMinRefs {
			out = append(out, s.node)
		}
	}
	return out
}

// Pack serializes the mature region of the graph into a signed checkpoint,
// persists it under the signature and prunes the packed nodes. On storage
// failure the pool is left unchanged.
func (m *Mempool) Pack() error {
	nodes := m.packableNodes()
	if len(nodes) == 0 {
		return nil
	}

	var body []byte
	for _, n := range nodes {
		body = append(body, n.ToBytes()...)
	}

	signed := m.account.Sign(body)
	signature := signed[:SigLen]

	if err := m.store.Put(signature, body); err != nil {
		return fmt.Errorf("%w: %v", ErrPutCheckpoint, err)
	}

	m.mu.Lock()
	for _, n := range nodes {
		delete(m.nodes, n.ID)
	}
	remaining := len(m.nodes)
	m.mu.Unlock()

	m.logger.WithFields(log.Fields{
		"packed":    len(nodes),
		"remaining": remaining,
	}).Info("checkpoint written")
	return nil
}

// Checkpoint loads a checkpoint body by its signature key and decodes the
// node records.
func (m *Mempool) Checkpoint(signature []byte) ([]*GraphNode, error) {
	body, err := m.store.Get(signature)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return nil, nil
	}
	var nodes []*GraphNode
	offset := 0
	for offset < len(body) {
		node, n, err := GraphNodeFromBytes(body[offset:])
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		offset += n
	}
	return nodes, nil
}
