package core

import (
	"bytes"
	"math/big"
	"testing"

	log "github.com/sirupsen/logrus"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	lg := log.New()
	lg.SetLevel(log.ErrorLevel)
	s, err := OpenStore(t.TempDir(), lg)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStorePutGet(t *testing.T) {
	s := newTestStore(t)
	key := NewDisplayAddress().Bytes()
	value := []byte("hello world")

	if err := s.Put(key, value); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("got %q want %q", got, value)
	}

	missing, err := s.Get([]byte("absent"))
	if err != nil || missing != nil {
		t.Fatalf("missing key: value=%v err=%v", missing, err)
	}
}

func TestStoreAsyncPutGet(t *testing.T) {
	s := newTestStore(t)
	key := NewDisplayAddress().Bytes()
	value := []byte("hello world")

	if err := <-s.AsyncPut(key, value); err != nil {
		t.Fatalf("AsyncPut failed: %v", err)
	}
	res := <-s.AsyncGet(key)
	if res.Err != nil {
		t.Fatalf("AsyncGet failed: %v", res.Err)
	}
	if !bytes.Equal(res.Value, value) {
		t.Fatalf("got %q want %q", res.Value, value)
	}
}

func TestStoreAsyncAfterClose(t *testing.T) {
	lg := log.New()
	s, err := OpenStore(t.TempDir(), lg)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := <-s.AsyncPut([]byte("k"), []byte("v")); err == nil {
		t.Fatalf("AsyncPut after close succeeded")
	}
}

func TestStoreBalances(t *testing.T) {
	s := newTestStore(t)
	owner := NewDisplayAddress()
	native := NativeTokenDA()

	bal, err := s.Balance(owner, native)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if bal.Sign() != 0 {
		t.Fatalf("fresh balance=%s want 0", bal)
	}

	want := big.NewInt(123456789)
	if err := s.SetBalance(owner, native, want); err != nil {
		t.Fatalf("SetBalance failed: %v", err)
	}
	bal, err = s.Balance(owner, native)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if bal.Cmp(want) != 0 {
		t.Fatalf("balance=%s want %s", bal, want)
	}
}

func TestStoreContractState(t *testing.T) {
	s := newTestStore(t)
	contractID := []byte("contract-1")
	slots := [][]byte{[]byte("a"), nil, []byte("state value")}

	if err := s.PutContractState(contractID, slots); err != nil {
		t.Fatalf("PutContractState failed: %v", err)
	}
	got, err := s.GetContractState(contractID)
	if err != nil {
		t.Fatalf("GetContractState failed: %v", err)
	}
	if len(got) != len(slots) {
		t.Fatalf("slot count=%d want %d", len(got), len(slots))
	}
	for i := range slots {
		if !bytes.Equal(got[i], slots[i]) {
			t.Fatalf("slot %d=%q want %q", i, got[i], slots[i])
		}
	}

	missing, err := s.GetContractState([]byte("nobody"))
	if err != nil || missing != nil {
		t.Fatalf("missing state: %v %v", missing, err)
	}
}

func TestStoreContractAccount(t *testing.T) {
	s := newTestStore(t)
	account := &ContractAccount{
		ID:            NewDisplayAddress().Array(),
		ProgramBinary: []byte{0x00, 0x61, 0x73, 0x6d},
	}
	if err := s.PutContractAccount(account); err != nil {
		t.Fatalf("PutContractAccount failed: %v", err)
	}
	id, err := DisplayAddressFromBytes(account.ID[:])
	if err != nil {
		t.Fatalf("id: %v", err)
	}
	got, err := s.GetContractAccount(id)
	if err != nil {
		t.Fatalf("GetContractAccount failed: %v", err)
	}
	if got == nil || !bytes.Equal(got.ProgramBinary, account.ProgramBinary) {
		t.Fatalf("record did not survive: %+v", got)
	}
}
