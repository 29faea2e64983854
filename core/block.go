package core

// Signed transaction blocks. Checkpoints carry the DAG's history; blocks
// are the flat envelope used when exchanging batches of transactions with
// peers that do not speak the graph form. Unlike the little-endian ledger
// records, block framing is big-endian.

import (
	"crypto/rand"
	"math/big"
)

// MaxBlockTransactions bounds how many transactions one block may carry.
const MaxBlockTransactions = 1024

type Block struct {
	Index        uint64
	PreviousHash []byte
	Nonce        *big.Int
	Transactions []*Transaction
	ValidatorKey []byte
	Signature    []byte
}

// NewBlock starts an unsigned block for the given validator.
func NewBlock(index uint64, validator *SignerPair, previousHash []byte) (*Block, error) {
	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	return &Block{
		Index:        index,
		PreviousHash: previousHash,
		Nonce:        nonce,
		ValidatorKey: validator.PublicKeyBytes(),
	}, nil
}

func generateNonce() (*big.Int, error) {
	var raw [u128Len]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw[:]), nil
}

// AddTransaction appends a signed transaction; unsigned envelopes and
// overfull blocks are rejected.
func (b *Block) AddTransaction(tx *Transaction) error {
	if len(b.Transactions) >= MaxBlockTransactions {
		return ErrInvalidNodeInput
	}
	if !tx.IsSigned() {
		return ErrNotSigned
	}
	b.Transactions = append(b.Transactions, tx)
	return nil
}

// ToBytes renders the signing bytes of the block: index, previous hash,
// nonce, validator key and every transaction envelope, big-endian.
func (b *Block) ToBytes() ([]byte, error) {
	out := make([]byte, 0, 8+len(b.PreviousHash)+u128Len+len(b.ValidatorKey))
	var idx [8]byte
	for i := 0; i < 8; i++ {
		idx[7-i] = byte(b.Index >> (8 * i))
	}
	out = append(out, idx[:]...)
	out = append(out, b.PreviousHash...)

	nonce := make([]byte, u128Len)
	b.Nonce.FillBytes(nonce)
	out = append(out, nonce...)
	out = append(out, b.ValidatorKey...)

	for _, tx := range b.Transactions {
		raw, err := tx.ToBytes()
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}
	return out, nil
}

// SignDetached signs the block body and attaches the signature.
func (b *Block) SignDetached(kp *SignerPair) error {
	msg, err := b.ToBytes()
	if err != nil {
		return err
	}
	b.Signature = kp.Sign(msg)
	return nil
}

// Verify checks a signature over the block body.
func (b *Block) Verify(kp *VerifierPair, signature []byte) (bool, error) {
	if b.Signature == nil {
		return false, ErrNotSigned
	}
	msg, err := b.ToBytes()
	if err != nil {
		return false, err
	}
	return kp.Verify(msg, signature)
}

// DeriveNext chains a fresh signed block onto a previous one.
func DeriveNext(previous *Block, validator *SignerPair) (*Block, error) {
	prevBytes, err := previous.ToBytes()
	if err != nil {
		return nil, err
	}
	block, err := NewBlock(previous.Index+1, validator, prevBytes)
	if err != nil {
		return nil, err
	}
	if err := block.SignDetached(validator); err != nil {
		return nil, err
	}
	return block, nil
}
