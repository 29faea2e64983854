package core

// Holder payload codecs carried inside data accounts: a currency position
// and the NFT descriptor.

import "math/big"

// CurrencyHolderData layout: currency(32) | amount (u128 LE).
type CurrencyHolderData struct {
	Currency DABytes
	Amount   *big.Int
}

func (h *CurrencyHolderData) ToBytes() []byte {
	b := make([]byte, 0, DALen+u128Len)
	b = append(b, h.Currency[:]...)
	b = appendU128LE(b, h.Amount)
	return b
}

func CurrencyHolderDataFromBytes(b []byte) (*CurrencyHolderData, error) {
	offset := 0
	if !boundsOK(b, offset, DALen) {
		return nil, ErrByteMismatch
	}
	var h CurrencyHolderData
	copy(h.Currency[:], b[offset:offset+DALen])
	offset += DALen

	if !boundsOK(b, offset, u128Len) {
		return nil, ErrByteMismatch
	}
	h.Amount = u128FromLE(b[offset : offset+u128Len])
	return &h, nil
}

// NFTHolderData layout: name_len:u32 | name | uri_len:u32 | uri |
// creator_count:u32 | creator_0(32) .. creator_n-1(32).
type NFTHolderData struct {
	Name     string
	URI      string
	Creators []DABytes
}

func (h *NFTHolderData) ToBytes() []byte {
	b := make([]byte, 0, 12+len(h.Name)+len(h.URI)+len(h.Creators)*DALen)
	b = appendU32LE(b, uint32(len(h.Name)))
	b = append(b, h.Name...)
	b = appendU32LE(b, uint32(len(h.URI)))
	b = append(b, h.URI...)
	b = appendU32LE(b, uint32(len(h.Creators)))
	for _, c := range h.Creators {
		b = append(b, c[:]...)
	}
	return b
}

func NFTHolderDataFromBytes(b []byte) (*NFTHolderData, error) {
	var (
		h   NFTHolderData
		err error
	)
	offset := 0
	h.Name, offset, err = readString(b, offset)
	if err != nil {
		return nil, err
	}
	h.URI, offset, err = readString(b, offset)
	if err != nil {
		return nil, err
	}

	count, offset, err := readU32(b, offset)
	if err != nil {
		return nil, err
	}
	if !boundsOK(b, offset, int(count)*DALen) {
		return nil, ErrByteMismatch
	}
	for n := uint32(0); n < count; n++ {
		var c DABytes
		copy(c[:], b[offset:offset+DALen])
		h.Creators = append(h.Creators, c)
		offset += DALen
	}
	return &h, nil
}
