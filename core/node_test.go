package core

import (
	"errors"
	"testing"
)

func TestGraphNodeRoundTrip(t *testing.T) {
	node := NewGraphNode(
		NewDisplayAddress().String(),
		[]*Instruction{NewInstruction(CurrencyTransfer, []byte{1, 2, 3})},
		nil,
	)
	// prev ids share the length of the node's own id.
	prev := NewDisplayAddress()
	for len(prev.String()) != len(node.ID) {
		prev = NewDisplayAddress()
	}
	node.PrevNodes = []NodeID{prev.String()}
	node.SetReferences(1)

	decoded, n, err := GraphNodeFromBytes(node.ToBytes())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if n != len(node.ToBytes()) {
		t.Fatalf("consumed %d of %d bytes", n, len(node.ToBytes()))
	}
	if decoded.ID != node.ID {
		t.Fatalf("id changed: %q vs %q", decoded.ID, node.ID)
	}
	if len(decoded.Instructions) != 1 || !decoded.Instructions[0].Equal(node.Instructions[0]) {
		t.Fatalf("instructions did not survive")
	}
	if len(decoded.PrevNodes) != 1 || decoded.PrevNodes[0] != node.PrevNodes[0] {
		t.Fatalf("prev nodes did not survive: %v", decoded.PrevNodes)
	}
	if decoded.References() != 1 {
		t.Fatalf("references=%d want 1", decoded.References())
	}
}

func TestGraphNodeDecodeShortInput(t *testing.T) {
	node := NewGraphNode("node1", []*Instruction{NewInstruction(CurrencyTransfer, nil)}, nil)
	raw := node.ToBytes()
	for _, cut := range []int{0, 1, 3, len(raw) - 1} {
		if _, _, err := GraphNodeFromBytes(raw[:cut]); !errors.Is(err, ErrByteMismatch) {
			t.Fatalf("decode of %d-byte prefix: %v", cut, err)
		}
	}
}

func TestGraphNodeBodyWalk(t *testing.T) {
	a := NewGraphNode("node1", []*Instruction{NewInstruction(CurrencyTransfer, []byte{9})}, nil)
	b := NewGraphNode("node2", []*Instruction{NewInstruction(ContractCall, nil)}, []NodeID{"node1"})
	body := append(a.ToBytes(), b.ToBytes()...)

	first, n, err := GraphNodeFromBytes(body)
	if err != nil {
		t.Fatalf("first decode failed: %v", err)
	}
	second, m, err := GraphNodeFromBytes(body[n:])
	if err != nil {
		t.Fatalf("second decode failed: %v", err)
	}
	if first.ID != "node1" || second.ID != "node2" || n+m != len(body) {
		t.Fatalf("body walk mismatch: %q %q %d/%d", first.ID, second.ID, n+m, len(body))
	}
}
