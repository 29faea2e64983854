package core

import (
	"errors"
	"math/big"
	"testing"
)

func TestCurrencyHolderDataRoundTrip(t *testing.T) {
	h := &CurrencyHolderData{
		Currency: NewDisplayAddress().Array(),
		Amount:   big.NewInt(1000),
	}
	decoded, err := CurrencyHolderDataFromBytes(h.ToBytes())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Currency != h.Currency || decoded.Amount.Cmp(h.Amount) != 0 {
		t.Fatalf("fields did not survive: %+v", decoded)
	}
}

func TestNFTHolderDataRoundTrip(t *testing.T) {
	h := &NFTHolderData{
		Name:     "Test NFT",
		URI:      "https://127.0.0.1",
		Creators: []DABytes{NewDisplayAddress().Array(), NewDisplayAddress().Array()},
	}
	decoded, err := NFTHolderDataFromBytes(h.ToBytes())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Name != h.Name || decoded.URI != h.URI || len(decoded.Creators) != 2 {
		t.Fatalf("fields did not survive: %+v", decoded)
	}
	for i := range h.Creators {
		if decoded.Creators[i] != h.Creators[i] {
			t.Fatalf("creator %d changed", i)
		}
	}
}

func TestNFTHolderDataShortInput(t *testing.T) {
	h := &NFTHolderData{Name: "n", URI: "u", Creators: []DABytes{NewDisplayAddress().Array()}}
	raw := h.ToBytes()
	if _, err := NFTHolderDataFromBytes(raw[:len(raw)-1]); !errors.Is(err, ErrByteMismatch) {
		t.Fatalf("err=%v want ErrByteMismatch", err)
	}
}
