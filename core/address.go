package core

// Display addresses are 32-byte identity tags. For ML-DSA keys the public
// key and the display address are not interchangeable: the address is a
// one-way SHA3-256 hash of the key and merely identifies it. Textual form
// is base-58 over the raw 32 bytes.

import (
	"bytes"
	"crypto/rand"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// DALen is the byte length of a display address.
const DALen = 32

// DABytes is the raw form of a display address, usable as a map key.
type DABytes = [DALen]byte

type DisplayAddress struct {
	da DABytes
}

// NewDisplayAddress returns a fresh random address from the OS CSPRNG.
func NewDisplayAddress() *DisplayAddress {
	var d DisplayAddress
	if _, err := rand.Read(d.da[:]); err != nil {
		// The OS CSPRNG is the one dependency we cannot run without.
		panic(err)
	}
	return &d
}

// DisplayAddressFromSeed derives an address from seed material mixed with a
// random nonce, so repeated calls over the same seed yield distinct ids.
func DisplayAddressFromSeed(seed []byte) *DisplayAddress {
	var nonce [8]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		panic(err)
	}
	h := sha3.New256()
	h.Write(seed)
	h.Write(nonce[:])

	var d DisplayAddress
	copy(d.da[:], h.Sum(nil))
	return &d
}

// DisplayAddressFromPK hashes a public key into its display address.
func DisplayAddressFromPK(pk []byte) (*DisplayAddress, error) {
	if len(pk) != PubKeyLen {
		return nil, ErrInvalidDisplayAddress
	}
	h := sha3.Sum256(pk)
	var d DisplayAddress
	copy(d.da[:], h[:])
	return &d, nil
}

// DisplayAddressFromBytes validates and copies a raw 32-byte address.
func DisplayAddressFromBytes(b []byte) (*DisplayAddress, error) {
	if len(b) != DALen {
		return nil, ErrInvalidDisplayAddress
	}
	var d DisplayAddress
	copy(d.da[:], b)
	return &d, nil
}

// DisplayAddressFromString decodes a textual address. Well-known token
// addresses resolve to their fixed byte form directly, without base-58
// decoding.
func DisplayAddressFromString(s string) (*DisplayAddress, error) {
	if tok, ok := StandardTokenFromAddress(s); ok {
		return DisplayAddressFromBytes(tok.DA())
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, ErrInvalidDisplayAddress
	}
	return DisplayAddressFromBytes(raw)
}

// Bytes returns the raw 32-byte address.
func (d *DisplayAddress) Bytes() []byte {
	return d.da[:]
}

// Array returns the raw address as a value type, usable as a map key.
func (d *DisplayAddress) Array() DABytes {
	return d.da
}

// Equal reports byte equality with another address.
func (d *DisplayAddress) Equal(o *DisplayAddress) bool {
	return o != nil && bytes.Equal(d.da[:], o.da[:])
}

// String renders the base-58 textual form.
func (d *DisplayAddress) String() string {
	return base58.Encode(d.da[:])
}
