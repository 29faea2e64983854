package core

// Transaction envelope and codec.
//
// Canonical layout when signed:
//
//	instructions_count (u64 LE) || instr_0 .. instr_n-1 ||
//	reserved_gas (u128 LE) || priority_fee (u128 LE) ||
//	timestamp (u64 LE) || signer (1312) || digest (2420 + sig bytes)
//
// The signing bytes omit signer and digest. A decoded byte string whose
// tail is too short to hold a signer yields a valid unsigned transaction.

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"
)

type Transaction struct {
	Instructions []*Instruction
	ReservedGas  *big.Int
	PriorityFee  *big.Int
	Timestamp    uint64
	Signer       []byte
	Digest       []byte
}

// NewTransaction starts an unsigned transaction stamped with the current
// time.
func NewTransaction(reservedGas, priorityFee *big.Int) *Transaction {
	return &Transaction{
		ReservedGas: new(big.Int).Set(reservedGas),
		PriorityFee: new(big.Int).Set(priorityFee),
		Timestamp:   uint64(time.Now().Unix()),
	}
}

// AddInstruction appends an instruction to the envelope.
func (tx *Transaction) AddInstruction(instr *Instruction) {
	tx.Instructions = append(tx.Instructions, instr)
}

// IsSigned reports whether both signer and digest are present.
func (tx *Transaction) IsSigned() bool {
	return tx.Signer != nil && tx.Digest != nil
}

// SigBytes renders the message handed to the signer: the canonical
// encoding without signer and digest.
func (tx *Transaction) SigBytes() []byte {
	b := make([]byte, 0, 8+u128Len*2+8)
	b = appendU64LE(b, uint64(len(tx.Instructions)))
	for _, instr := range tx.Instructions {
		b = append(b, instr.ToBytes()...)
	}
	b = appendU128LE(b, tx.ReservedGas)
	b = appendU128LE(b, tx.PriorityFee)
	b = appendU64LE(b, tx.Timestamp)
	return b
}

// ToBytes renders the canonical signed encoding. Unsigned transactions
// have no canonical form.
func (tx *Transaction) ToBytes() ([]byte, error) {
	if !tx.IsSigned() {
		return nil, ErrNotSigned
	}
	b := tx.SigBytes()
	b = append(b, tx.Signer...)
	b = append(b, tx.Digest...)
	return b, nil
}

// TransactionFromBytes decodes linearly with bounds checks at every step.
func TransactionFromBytes(b []byte) (*Transaction, error) {
	offset := 0
	if !boundsOK(b, offset, 8) {
		return nil, ErrByteMismatch
	}
	count := binary.LittleEndian.Uint64(b[offset : offset+8])
	offset += 8

	// The count is attacker-controlled; capacity grows with actual decoded
	// records, never with the claimed figure.
	instructions := make([]*Instruction, 0, 8)
	for n := uint64(0); n < count; n++ {
		instr, next, err := readInstruction(b, offset)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, instr)
		offset = next
	}

	if !boundsOK(b, offset, u128Len) {
		return nil, ErrByteMismatch
	}
	reservedGas := u128FromLE(b[offset : offset+u128Len])
	offset += u128Len

	if !boundsOK(b, offset, u128Len) {
		return nil, ErrByteMismatch
	}
	priorityFee := u128FromLE(b[offset : offset+u128Len])
	offset += u128Len

	if !boundsOK(b, offset, 8) {
		return nil, ErrByteMismatch
	}
	timestamp := binary.LittleEndian.Uint64(b[offset : offset+8])
	offset += 8

	tx := &Transaction{
		Instructions: instructions,
		ReservedGas:  reservedGas,
		PriorityFee:  priorityFee,
		Timestamp:    timestamp,
	}

	// Anything beyond the timestamp is signer material; a short tail means
	// the transaction travelled unsigned.
	if len(b)-offset >= PubKeyLen {
		tx.Signer = append([]byte(nil), b[offset:offset+PubKeyLen]...)
		offset += PubKeyLen
		tx.Digest = append([]byte(nil), b[offset:]...)
	}
	return tx, nil
}

// Sign derives the digest over the signing bytes and attaches the signer.
func (tx *Transaction) Sign(kp *SignerPair) error {
	msg := tx.SigBytes()
	tx.Digest = kp.Sign(msg)
	tx.Signer = kp.PublicKeyBytes()
	return nil
}

// Verify recomputes the signing bytes and checks the digest against the
// embedded signer key.
func (tx *Transaction) Verify() (bool, error) {
	if !tx.IsSigned() {
		return false, ErrNotSigned
	}
	kp, err := VerifierPairFromBytes(tx.Signer)
	if err != nil {
		return false, err
	}
	return kp.Verify(tx.SigBytes(), tx.Digest)
}

// VerifyExt checks the digest against an externally supplied key.
func (tx *Transaction) VerifyExt(kp *VerifierPair) (bool, error) {
	if tx.Digest == nil {
		return false, ErrNotSigned
	}
	return kp.Verify(tx.SigBytes(), tx.Digest)
}

// SignerDA returns the display address of the signer, if any.
func (tx *Transaction) SignerDA() (*DisplayAddress, error) {
	if tx.Signer == nil {
		return nil, ErrNotSigned
	}
	return DisplayAddressFromPK(tx.Signer)
}

// CreateID derives the node id for this transaction from its timestamp
// seed.
func (tx *Transaction) CreateID() (string, error) {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], tx.Timestamp)
	return DisplayAddressFromSeed(seed[:]).String(), nil
}

// Equal reports field-wise equality, used by round-trip checks.
func (tx *Transaction) Equal(o *Transaction) bool {
	if o == nil ||
		len(tx.Instructions) != len(o.Instructions) ||
		tx.ReservedGas.Cmp(o.ReservedGas) != 0 ||
		tx.PriorityFee.Cmp(o.PriorityFee) != 0 ||
		tx.Timestamp != o.Timestamp ||
		!bytes.Equal(tx.Signer, o.Signer) ||
		!bytes.Equal(tx.Digest, o.Digest) {
		return false
	}
	for n := range tx.Instructions {
		if !tx.Instructions[n].Equal(o.Instructions[n]) {
			return false
		}
	}
	return true
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("tx{instrs=%d gas=%s fee=%s ts=%d signed=%t}",
		len(tx.Instructions), tx.ReservedGas, tx.PriorityFee, tx.Timestamp, tx.IsSigned())
}
