package core

// Graph nodes. A node's reference count says how many successors point at
// it; the counter sits behind its own lock so concurrent admissions touch
// disjoint predecessors without a global lock.
//
// Wire format (checkpoint bodies only):
//
//	id_len (u8) || id utf8 || instr_bytes_len (u64 LE) || instrs ||
//	prev_bytes_len (u64 LE) || prev ids utf8 || references (u32 LE)
//
// Consecutive prev ids are not individually prefixed; the decoder splits
// them by the node's own id length, which holds for the equal-sized ids
// this node produces.

import (
	"encoding/binary"
	"sync"
)

// NodeID is the textual display address identifying a node.
type NodeID = string

type GraphNode struct {
	ID           NodeID
	Instructions []*Instruction
	PrevNodes    []NodeID

	refMu      sync.RWMutex
	references uint32
}

// NewGraphNode builds a node over a transaction's instructions.
func NewGraphNode(id NodeID, instructions []*Instruction, prevNodes []NodeID) *GraphNode {
	return &GraphNode{ID: id, Instructions: instructions, PrevNodes: prevNodes}
}

// References reads the current reference count.
func (n *GraphNode) References() uint32 {
	n.refMu.RLock()
	defer n.refMu.RUnlock()
	return n.references
}

// addReference increments the counter under the writer lock.
func (n *GraphNode) addReference() {
	n.refMu.Lock()
	n.references++
	n.refMu.Unlock()
}

// SetReferences overwrites the counter. Used when rebuilding nodes from a
// checkpoint body and by tests forcing maturity.
func (n *GraphNode) SetReferences(v uint32) {
	n.refMu.Lock()
	n.references = v
	n.refMu.Unlock()
}

// ToBytes renders the checkpoint wire form of the node.
func (n *GraphNode) ToBytes() []byte {
	b := make([]byte, 0, 1+len(n.ID)+16)
	b = append(b, byte(len(n.ID)))
	b = append(b, n.ID...)

	instrBytes := make([]byte, 0, 64)
	for _, instr := range n.Instructions {
		instrBytes = append(instrBytes, instr.ToBytes()...)
	}
	b = appendU64LE(b, uint64(len(instrBytes)))
	b = append(b, instrBytes...)

	prevBytes := 0
	for _, prev := range n.PrevNodes {
		prevBytes += len(prev)
	}
	b = appendU64LE(b, uint64(prevBytes))
	for _, prev := range n.PrevNodes {
		b = append(b, prev...)
	}

	var ref [4]byte
	binary.LittleEndian.PutUint32(ref[:], n.References())
	return append(b, ref[:]...)
}

// GraphNodeFromBytes decodes one node record and returns the next offset,
// so a checkpoint body can be walked record by record.
func GraphNodeFromBytes(b []byte) (*GraphNode, int, error) {
	offset := 0
	if !boundsOK(b, offset, 1) {
		return nil, 0, ErrByteMismatch
	}
	idLen := int(b[offset])
	offset++
	if idLen == 0 || !boundsOK(b, offset, idLen) {
		return nil, 0, ErrByteMismatch
	}
	id := string(b[offset : offset+idLen])
	offset += idLen

	if !boundsOK(b, offset, 8) {
		return nil, 0, ErrByteMismatch
	}
	instrBytesLen := int(binary.LittleEndian.Uint64(b[offset : offset+8]))
	offset += 8
	if !boundsOK(b, offset, instrBytesLen) {
		return nil, 0, ErrByteMismatch
	}
	var instructions []*Instruction
	instrEnd := offset + instrBytesLen
	for offset < instrEnd {
		instr, next, err := readInstruction(b, offset)
		if err != nil {
			return nil, 0, err
		}
		if next > instrEnd {
			return nil, 0, ErrByteMismatch
		}
		instructions = append(instructions, instr)
		offset = next
	}

	if !boundsOK(b, offset, 8) {
		return nil, 0, ErrByteMismatch
	}
	prevBytesLen := int(binary.LittleEndian.Uint64(b[offset : offset+8]))
	offset += 8
	if !boundsOK(b, offset, prevBytesLen) {
		return nil, 0, ErrByteMismatch
	}
	var prevNodes []NodeID
	if prevBytesLen > 0 {
		if prevBytesLen%idLen != 0 {
			return nil, 0, ErrByteMismatch
		}
		for n := 0; n < prevBytesLen/idLen; n++ {
			prevNodes = append(prevNodes, string(b[offset:offset+idLen]))
			offset += idLen
		}
	}

	if !boundsOK(b, offset, 4) {
		return nil, 0, ErrByteMismatch
	}
	references := binary.LittleEndian.Uint32(b[offset : offset+4])
	offset += 4

	node := NewGraphNode(id, instructions, prevNodes)
	node.SetReferences(references)
	return node, offset, nil
}
