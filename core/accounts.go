package core

// Binary account records. All four kinds share a 32-byte id and serialize
// as length-prefixed little-endian records (u32 prefixes). Optional slots
// carry a 0-or-1 length field ahead of the value.

import "unicode/utf8"

// UserAccount layout: id(32) | count:u32 | id_0(32) .. id_n-1(32).
type UserAccount struct {
	ID             DABytes
	DataAccountIDs []DABytes
}

func (a *UserAccount) ToBytes() []byte {
	b := make([]byte, 0, DALen+4+len(a.DataAccountIDs)*DALen)
	b = append(b, a.ID[:]...)
	b = appendU32LE(b, uint32(len(a.DataAccountIDs)))
	for _, id := range a.DataAccountIDs {
		b = append(b, id[:]...)
	}
	return b
}

func UserAccountFromBytes(b []byte) (*UserAccount, error) {
	offset := 0
	var a UserAccount
	if !boundsOK(b, offset, DALen) {
		return nil, ErrByteMismatch
	}
	copy(a.ID[:], b[offset:offset+DALen])
	offset += DALen

	count, offset, err := readU32(b, offset)
	if err != nil {
		return nil, err
	}
	for n := uint32(0); n < count; n++ {
		if !boundsOK(b, offset, DALen) {
			return nil, ErrByteMismatch
		}
		var id DABytes
		copy(id[:], b[offset:offset+DALen])
		a.DataAccountIDs = append(a.DataAccountIDs, id)
		offset += DALen
	}
	return &a, nil
}

// ContractAccount layout:
// id(32) | state_len:u32 | state_id(32) if state_len>0 | bin_len:u32 | binary.
type ContractAccount struct {
	ID             DABytes
	StateAccountID *DABytes
	ProgramBinary  []byte
}

func (a *ContractAccount) ToBytes() []byte {
	b := make([]byte, 0, DALen+4+DALen+4+len(a.ProgramBinary))
	b = append(b, a.ID[:]...)
	if a.StateAccountID != nil {
		b = appendU32LE(b, 1)
		b = append(b, a.StateAccountID[:]...)
	} else {
		b = appendU32LE(b, 0)
	}
	b = appendU32LE(b, uint32(len(a.ProgramBinary)))
	b = append(b, a.ProgramBinary...)
	return b
}

func ContractAccountFromBytes(b []byte) (*ContractAccount, error) {
	offset := 0
	var a ContractAccount
	if !boundsOK(b, offset, DALen) {
		return nil, ErrByteMismatch
	}
	copy(a.ID[:], b[offset:offset+DALen])
	offset += DALen

	stateLen, offset, err := readU32(b, offset)
	if err != nil {
		return nil, err
	}
	switch stateLen {
	case 0:
	case 1:
		if !boundsOK(b, offset, DALen) {
			return nil, ErrByteMismatch
		}
		var id DABytes
		copy(id[:], b[offset:offset+DALen])
		a.StateAccountID = &id
		offset += DALen
	default:
		return nil, ErrByteMismatch
	}

	binLen, offset, err := readU32(b, offset)
	if err != nil {
		return nil, err
	}
	if !boundsOK(b, offset, int(binLen)) {
		return nil, ErrByteMismatch
	}
	a.ProgramBinary = append([]byte(nil), b[offset:offset+int(binLen)]...)
	return &a, nil
}

// DataAccount layout: id(32) | owner(32) | updater(32) | data_len:u32 | data.
type DataAccount struct {
	ID      DABytes
	Owner   DABytes
	Updater DABytes
	Data    []byte
}

func (a *DataAccount) ToBytes() []byte {
	b := make([]byte, 0, DALen*3+4+len(a.Data))
	b = append(b, a.ID[:]...)
	b = append(b, a.Owner[:]...)
	b = append(b, a.Updater[:]...)
	b = appendU32LE(b, uint32(len(a.Data)))
	b = append(b, a.Data...)
	return b
}

func DataAccountFromBytes(b []byte) (*DataAccount, error) {
	offset := 0
	var a DataAccount
	for _, dst := range []*DABytes{&a.ID, &a.Owner, &a.Updater} {
		if !boundsOK(b, offset, DALen) {
			return nil, ErrByteMismatch
		}
		copy(dst[:], b[offset:offset+DALen])
		offset += DALen
	}

	dataLen, offset, err := readU32(b, offset)
	if err != nil {
		return nil, err
	}
	if !boundsOK(b, offset, int(dataLen)) {
		return nil, ErrByteMismatch
	}
	a.Data = append([]byte(nil), b[offset:offset+int(dataLen)]...)
	return &a, nil
}

// CurrencyAccount layout:
// id(32) | owner(32) | decimals:u8 | minter_len:u32 | minter(32) if
// minter_len>0 | short_len:u32 | short | long_len:u32 | long.
type CurrencyAccount struct {
	ID        DABytes
	Owner     DABytes
	Decimals  uint8
	Minter    *DABytes
	ShortName string
	LongName  string
}

func (a *CurrencyAccount) ToBytes() []byte {
	b := make([]byte, 0, DALen*3+1+12+len(a.ShortName)+len(a.LongName))
	b = append(b, a.ID[:]...)
	b = append(b, a.Owner[:]...)
	b = append(b, a.Decimals)
	if a.Minter != nil {
		b = appendU32LE(b, 1)
		b = append(b, a.Minter[:]...)
	} else {
		b = appendU32LE(b, 0)
	}
	b = appendU32LE(b, uint32(len(a.ShortName)))
	b = append(b, a.ShortName...)
	b = appendU32LE(b, uint32(len(a.LongName)))
	b = append(b, a.LongName...)
	return b
}

func CurrencyAccountFromBytes(b []byte) (*CurrencyAccount, error) {
	offset := 0
	var a CurrencyAccount
	if !boundsOK(b, offset, DALen*2+1) {
		return nil, ErrByteMismatch
	}
	copy(a.ID[:], b[offset:offset+DALen])
	offset += DALen
	copy(a.Owner[:], b[offset:offset+DALen])
	offset += DALen
	a.Decimals = b[offset]
	offset++

	minterLen, offset, err := readU32(b, offset)
	if err != nil {
		return nil, err
	}
	switch minterLen {
	case 0:
	case 1:
		if !boundsOK(b, offset, DALen) {
			return nil, ErrByteMismatch
		}
		var id DABytes
		copy(id[:], b[offset:offset+DALen])
		a.Minter = &id
		offset += DALen
	default:
		return nil, ErrByteMismatch
	}

	a.ShortName, offset, err = readString(b, offset)
	if err != nil {
		return nil, err
	}
	a.LongName, _, err = readString(b, offset)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func readU32(b []byte, offset int) (uint32, int, error) {
	if !boundsOK(b, offset, 4) {
		return 0, 0, ErrByteMismatch
	}
	v := uint32(b[offset]) | uint32(b[offset+1])<<8 | uint32(b[offset+2])<<16 | uint32(b[offset+3])<<24
	return v, offset + 4, nil
}

func readString(b []byte, offset int) (string, int, error) {
	n, offset, err := readU32(b, offset)
	if err != nil {
		return "", 0, err
	}
	if !boundsOK(b, offset, int(n)) {
		return "", 0, ErrByteMismatch
	}
	raw := b[offset : offset+int(n)]
	if !utf8.Valid(raw) {
		return "", 0, ErrInvalidUTF8
	}
	return string(raw), offset + int(n), nil
}
