package core

import (
	"errors"
	"math/big"
	"testing"
)

func signedTransaction(t *testing.T, kp *SignerPair) *Transaction {
	t.Helper()
	tx := NewTransaction(big.NewInt(100), big.NewInt(10))
	tx.AddInstruction(NewInstruction(CurrencyTransfer, []byte{1, 2, 3}))
	if err := tx.Sign(kp); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	return tx
}

func TestTransactionSignVerify(t *testing.T) {
	kp, err := NewSignerPair()
	if err != nil {
		t.Fatalf("NewSignerPair failed: %v", err)
	}
	tx := signedTransaction(t, kp)

	ok, err := tx.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !ok {
		t.Fatalf("own signature rejected")
	}

	ok, err = tx.VerifyExt(&VerifierPair{pub: kp.pub})
	if err != nil || !ok {
		t.Fatalf("VerifyExt=%t err=%v", ok, err)
	}
}

// TestTransactionBytesRoundTrip serializes a signed transaction and
// expects field-wise equality after decoding.
func TestTransactionBytesRoundTrip(t *testing.T) {
	kp, err := NewSignerPair()
	if err != nil {
		t.Fatalf("NewSignerPair failed: %v", err)
	}
	tx := signedTransaction(t, kp)

	raw, err := tx.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes failed: %v", err)
	}
	decoded, err := TransactionFromBytes(raw)
	if err != nil {
		t.Fatalf("TransactionFromBytes failed: %v", err)
	}
	if !tx.Equal(decoded) {
		t.Fatalf("round trip changed the transaction")
	}

	ok, err := decoded.Verify()
	if err != nil || !ok {
		t.Fatalf("decoded transaction does not verify: ok=%t err=%v", ok, err)
	}
}

func TestUnsignedTransactionHasNoCanonicalForm(t *testing.T) {
	tx := NewTransaction(big.NewInt(1), big.NewInt(0))
	tx.AddInstruction(NewInstruction(CurrencyTransfer, nil))
	if _, err := tx.ToBytes(); !errors.Is(err, ErrNotSigned) {
		t.Fatalf("err=%v want ErrNotSigned", err)
	}
	if _, err := tx.Verify(); !errors.Is(err, ErrNotSigned) {
		t.Fatalf("verify err=%v want ErrNotSigned", err)
	}
}

// TestTransactionDecodeUnsigned: a byte string ending right after the
// timestamp decodes as a valid unsigned transaction.
func TestTransactionDecodeUnsigned(t *testing.T) {
	kp, err := NewSignerPair()
	if err != nil {
		t.Fatalf("NewSignerPair failed: %v", err)
	}
	tx := signedTransaction(t, kp)
	raw, err := tx.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes failed: %v", err)
	}

	unsignedLen := len(tx.SigBytes())
	decoded, err := TransactionFromBytes(raw[:unsignedLen])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.IsSigned() {
		t.Fatalf("truncated envelope decoded as signed")
	}
	if decoded.Timestamp != tx.Timestamp || decoded.ReservedGas.Cmp(tx.ReservedGas) != 0 {
		t.Fatalf("unsigned fields did not survive")
	}
}

// TestTransactionDecodeShortInput: anything shorter than count + two u128
// + timestamp fails with ErrByteMismatch.
func TestTransactionDecodeShortInput(t *testing.T) {
	short := make([]byte, 8+16+16+8-1)
	if _, err := TransactionFromBytes(short); !errors.Is(err, ErrByteMismatch) {
		t.Fatalf("err=%v want ErrByteMismatch", err)
	}
}

func TestTransactionCreateID(t *testing.T) {
	tx := NewTransaction(big.NewInt(0), big.NewInt(0))
	id1, err := tx.CreateID()
	if err != nil {
		t.Fatalf("CreateID failed: %v", err)
	}
	id2, err := tx.CreateID()
	if err != nil {
		t.Fatalf("CreateID failed: %v", err)
	}
	if id1 == "" || id1 == id2 {
		t.Fatalf("ids must be nonempty and salted: %q %q", id1, id2)
	}
}
