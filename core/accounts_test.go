package core

import (
	"bytes"
	"errors"
	"testing"
)

func TestUserAccountRoundTrip(t *testing.T) {
	a := &UserAccount{
		ID:             NewDisplayAddress().Array(),
		DataAccountIDs: []DABytes{NewDisplayAddress().Array(), NewDisplayAddress().Array()},
	}
	decoded, err := UserAccountFromBytes(a.ToBytes())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.ID != a.ID || len(decoded.DataAccountIDs) != 2 {
		t.Fatalf("fields did not survive: %+v", decoded)
	}
	for i := range a.DataAccountIDs {
		if decoded.DataAccountIDs[i] != a.DataAccountIDs[i] {
			t.Fatalf("data account id %d changed", i)
		}
	}
}

func TestContractAccountRoundTrip(t *testing.T) {
	state := NewDisplayAddress().Array()
	tests := []*ContractAccount{
		{ID: NewDisplayAddress().Array(), StateAccountID: &state, ProgramBinary: []byte{0, 1, 2, 3}},
		{ID: NewDisplayAddress().Array(), ProgramBinary: []byte("wasm")},
	}
	for _, a := range tests {
		decoded, err := ContractAccountFromBytes(a.ToBytes())
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded.ID != a.ID || !bytes.Equal(decoded.ProgramBinary, a.ProgramBinary) {
			t.Fatalf("fields did not survive: %+v", decoded)
		}
		if (decoded.StateAccountID == nil) != (a.StateAccountID == nil) {
			t.Fatalf("optional state id did not survive")
		}
		if a.StateAccountID != nil && *decoded.StateAccountID != *a.StateAccountID {
			t.Fatalf("state id changed")
		}
	}
}

func TestDataAccountRoundTrip(t *testing.T) {
	a := &DataAccount{
		ID:      NewDisplayAddress().Array(),
		Owner:   NewDisplayAddress().Array(),
		Updater: NewDisplayAddress().Array(),
		Data:    []byte("holder payload"),
	}
	decoded, err := DataAccountFromBytes(a.ToBytes())
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.ID != a.ID || decoded.Owner != a.Owner || decoded.Updater != a.Updater || !bytes.Equal(decoded.Data, a.Data) {
		t.Fatalf("fields did not survive: %+v", decoded)
	}
}

func TestCurrencyAccountRoundTrip(t *testing.T) {
	minter := NewDisplayAddress().Array()
	tests := []*CurrencyAccount{
		{
			ID:        NewDisplayAddress().Array(),
			Owner:     NewDisplayAddress().Array(),
			Decimals:  12,
			Minter:    &minter,
			ShortName: "csm",
			LongName:  "cesium token",
		},
		{
			ID:       NewDisplayAddress().Array(),
			Owner:    NewDisplayAddress().Array(),
			Decimals: 0,
		},
	}
	for _, a := range tests {
		decoded, err := CurrencyAccountFromBytes(a.ToBytes())
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if decoded.ID != a.ID || decoded.Owner != a.Owner || decoded.Decimals != a.Decimals ||
			decoded.ShortName != a.ShortName || decoded.LongName != a.LongName {
			t.Fatalf("fields did not survive: %+v", decoded)
		}
		if (decoded.Minter == nil) != (a.Minter == nil) {
			t.Fatalf("optional minter did not survive")
		}
	}
}

func TestAccountDecodersRejectShortInput(t *testing.T) {
	user := (&UserAccount{ID: NewDisplayAddress().Array()}).ToBytes()
	data := (&DataAccount{}).ToBytes()
	currency := (&CurrencyAccount{ShortName: "x"}).ToBytes()
	contract := (&ContractAccount{ProgramBinary: []byte{1}}).ToBytes()

	cases := [][]byte{
		user[:len(user)-1],
		data[:len(data)-1],
		currency[:len(currency)-1],
		contract[:len(contract)-1],
		nil,
	}
	decoders := []func([]byte) error{
		func(b []byte) error { _, err := UserAccountFromBytes(b); return err },
		func(b []byte) error { _, err := DataAccountFromBytes(b); return err },
		func(b []byte) error { _, err := CurrencyAccountFromBytes(b); return err },
		func(b []byte) error { _, err := ContractAccountFromBytes(b); return err },
	}
	for i, raw := range cases {
		for j, decode := range decoders {
			if raw == nil {
				if err := decode(raw); !errors.Is(err, ErrByteMismatch) {
					t.Fatalf("decoder %d on nil input: %v", j, err)
				}
				continue
			}
			// Only the matching decoder is guaranteed to fail on its own
			// truncated record.
			if i == j {
				if err := decode(raw); !errors.Is(err, ErrByteMismatch) {
					t.Fatalf("decoder %d accepted truncated input: %v", j, err)
				}
			}
		}
	}
}

func TestCurrencyAccountRejectsBadOptionalLen(t *testing.T) {
	a := &CurrencyAccount{ID: NewDisplayAddress().Array(), Owner: NewDisplayAddress().Array()}
	raw := a.ToBytes()
	// minter_len sits after id, owner and decimals.
	raw[DALen*2+1] = 2
	if _, err := CurrencyAccountFromBytes(raw); !errors.Is(err, ErrByteMismatch) {
		t.Fatalf("err=%v want ErrByteMismatch", err)
	}
}

func TestCurrencyAccountRejectsInvalidUTF8(t *testing.T) {
	a := &CurrencyAccount{
		ID:        NewDisplayAddress().Array(),
		Owner:     NewDisplayAddress().Array(),
		ShortName: "ok",
	}
	raw := a.ToBytes()
	// Corrupt the short-name payload with a lone continuation byte.
	raw[len(raw)-4-2] = 0xff
	if _, err := CurrencyAccountFromBytes(raw); !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("err=%v want ErrInvalidUTF8", err)
	}
}
