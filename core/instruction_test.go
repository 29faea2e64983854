package core

import (
	"errors"
	"math/big"
	"testing"
)

// TestInstructionKindTags pins the wire tags; they must never move.
func TestInstructionKindTags(t *testing.T) {
	tags := map[InstructionKind]uint8{
		ContractCall:     0,
		ContractDeploy:   1,
		CurrencyTransfer: 2,
		CurrencyCreate:   3,
		CurrencyMint:     4,
		CurrencyUpdate:   5,
		NFTBundleCreate:  6,
		NFTBundleUpdate:  7,
		NFTMint:          8,
		NFTTransfer:      9,
	}
	for kind, tag := range tags {
		if uint8(kind) != tag {
			t.Fatalf("kind %s has tag %d want %d", kind, uint8(kind), tag)
		}
	}
	if _, err := InstructionKindFromByte(10); !errors.Is(err, ErrInvalidInstructionType) {
		t.Fatalf("tag 10 decoded")
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	instr := NewInstruction(CurrencyTransfer, []byte{1, 2, 3})
	decoded, err := InstructionFromBytes(instr.ToBytes())
	if err != nil {
		t.Fatalf("InstructionFromBytes failed: %v", err)
	}
	if !instr.Equal(decoded) {
		t.Fatalf("round trip changed the instruction: %+v vs %+v", instr, decoded)
	}
}

func TestInstructionShortInput(t *testing.T) {
	instr := NewInstruction(ContractDeploy, []byte("binary goes here"))
	raw := instr.ToBytes()
	for _, cut := range []int{0, 1, 4, len(raw) - 1} {
		if _, err := InstructionFromBytes(raw[:cut]); err == nil {
			t.Fatalf("decode of %d-byte prefix succeeded", cut)
		}
	}
}

func TestCurrencyTransferPayload(t *testing.T) {
	currency := NewDisplayAddress()
	recipient := NewDisplayAddress()
	amount := new(big.Int)
	amount.SetString("340282366920938463463374607431768211455", 10) // max u128

	instr := NewCurrencyTransfer(currency, amount, recipient)
	if instr.DataLength != DALen+16+DALen {
		t.Fatalf("payload length=%d", instr.DataLength)
	}
	p, err := parseCurrencyTransfer(instr.Data)
	if err != nil {
		t.Fatalf("parseCurrencyTransfer failed: %v", err)
	}
	if p.currency != currency.Array() || p.recipient != recipient.Array() {
		t.Fatalf("addresses did not survive the payload")
	}
	if p.amount.Cmp(amount) != 0 {
		t.Fatalf("amount=%s want %s", p.amount, amount)
	}
}

func TestInstructionBaseCostTable(t *testing.T) {
	if CurrencyTransfer.BaseCost().Sign() != 0 {
		t.Fatalf("default base cost is not zero")
	}
	SetInstructionBaseCost(CurrencyTransfer, 7)
	defer SetInstructionBaseCost(CurrencyTransfer, 0)
	if CurrencyTransfer.BaseCost().Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("base cost override did not take")
	}
}
