package core

// Instruction model and codec. The numeric kind tags are part of the wire
// format and must stay stable.

import (
	"fmt"
	"math/big"
	"sync"
)

// InstructionKind tags the payload format of an instruction.
type InstructionKind uint8

const (
	// Smart contracts.
	ContractCall InstructionKind = iota
	ContractDeploy
	// Currencies.
	CurrencyTransfer
	CurrencyCreate
	CurrencyMint // only works if the caller is the currency mint authority
	CurrencyUpdate
	// NFTs.
	NFTBundleCreate
	NFTBundleUpdate
	NFTMint // a bundle can be specified, but only if its update authority is the caller
	NFTTransfer

	numInstructionKinds
)

// InstructionKindFromByte maps a wire tag to its kind.
func InstructionKindFromByte(b byte) (InstructionKind, error) {
	if b >= byte(numInstructionKinds) {
		return 0, ErrInvalidInstructionType
	}
	return InstructionKind(b), nil
}

func (k InstructionKind) String() string {
	switch k {
	case ContractCall:
		return "contract_call"
	case ContractDeploy:
		return "contract_deploy"
	case CurrencyTransfer:
		return "currency_transfer"
	case CurrencyCreate:
		return "currency_create"
	case CurrencyMint:
		return "currency_mint"
	case CurrencyUpdate:
		return "currency_update"
	case NFTBundleCreate:
		return "nft_bundle_create"
	case NFTBundleUpdate:
		return "nft_bundle_update"
	case NFTMint:
		return "nft_mint"
	case NFTTransfer:
		return "nft_transfer"
	}
	return fmt.Sprintf("instruction(%d)", uint8(k))
}

// Per-kind base costs. All zero today; the table exists so the values can
// rise without a wire change.
var (
	baseCostMu sync.RWMutex
	baseCosts  [numInstructionKinds]uint64
)

// BaseCost returns the flat gas cost charged for the kind during
// pre-flight.
func (k InstructionKind) BaseCost() *big.Int {
	baseCostMu.RLock()
	defer baseCostMu.RUnlock()
	if k >= numInstructionKinds {
		return new(big.Int)
	}
	return new(big.Int).SetUint64(baseCosts[k])
}

// SetInstructionBaseCost overrides the flat cost of a kind.
func SetInstructionBaseCost(k InstructionKind, cost uint64) {
	baseCostMu.Lock()
	defer baseCostMu.Unlock()
	if k < numInstructionKinds {
		baseCosts[k] = cost
	}
}

// Instruction is a single ledger operation inside a transaction.
type Instruction struct {
	Kind       InstructionKind
	DataLength uint32
	Data       []byte
}

// NewInstruction builds an instruction over an opaque payload.
func NewInstruction(kind InstructionKind, data []byte) *Instruction {
	return &Instruction{
		Kind:       kind,
		DataLength: uint32(len(data)),
		Data:       data,
	}
}

// NewCurrencyTransfer builds the fixed transfer payload:
// currency (32) || amount (u128 LE) || recipient (32).
func NewCurrencyTransfer(currency *DisplayAddress, amount *big.Int, recipient *DisplayAddress) *Instruction {
	data := make([]byte, 0, DALen+u128Len+DALen)
	data = append(data, currency.Bytes()...)
	data = appendU128LE(data, amount)
	data = append(data, recipient.Bytes()...)
	return NewInstruction(CurrencyTransfer, data)
}

// ToBytes renders the canonical encoding:
// kind (u8) || data_length (u32 LE) || data.
func (i *Instruction) ToBytes() []byte {
	bytes := make([]byte, 0, 1+4+len(i.Data))
	bytes = append(bytes, byte(i.Kind))
	bytes = appendU32LE(bytes, i.DataLength)
	bytes = append(bytes, i.Data...)
	return bytes
}

// InstructionFromBytes decodes a single instruction, bounds-checking each
// field.
func InstructionFromBytes(b []byte) (*Instruction, error) {
	if len(b) < 5 {
		return nil, ErrNoInstructions
	}
	instr, _, err := readInstruction(b, 0)
	return instr, err
}

// readInstruction decodes one instruction at offset and returns the next
// offset. Shared with the transaction and node decoders.
func readInstruction(b []byte, offset int) (*Instruction, int, error) {
	if !boundsOK(b, offset, 1) {
		return nil, 0, ErrByteMismatch
	}
	kind, err := InstructionKindFromByte(b[offset])
	if err != nil {
		return nil, 0, err
	}
	offset++

	if !boundsOK(b, offset, 4) {
		return nil, 0, ErrByteMismatch
	}
	dataLen := int(uint32(b[offset]) | uint32(b[offset+1])<<8 | uint32(b[offset+2])<<16 | uint32(b[offset+3])<<24)
	offset += 4

	if !boundsOK(b, offset, dataLen) {
		return nil, 0, ErrByteMismatch
	}
	data := make([]byte, dataLen)
	copy(data, b[offset:offset+dataLen])
	offset += dataLen

	return &Instruction{Kind: kind, DataLength: uint32(dataLen), Data: data}, offset, nil
}

// currencyTransferPayload is the parsed form of a CurrencyTransfer body.
type currencyTransferPayload struct {
	currency  DABytes
	amount    *big.Int
	recipient DABytes
}

func parseCurrencyTransfer(data []byte) (*currencyTransferPayload, error) {
	offset := 0
	if !boundsOK(data, offset, DALen) {
		return nil, ErrByteMismatch
	}
	var p currencyTransferPayload
	copy(p.currency[:], data[offset:offset+DALen])
	offset += DALen

	if !boundsOK(data, offset, u128Len) {
		return nil, ErrByteMismatch
	}
	p.amount = u128FromLE(data[offset : offset+u128Len])
	offset += u128Len

	if !boundsOK(data, offset, DALen) {
		return nil, ErrByteMismatch
	}
	copy(p.recipient[:], data[offset:offset+DALen])
	return &p, nil
}

// Equal reports field-wise equality, used by round-trip checks.
func (i *Instruction) Equal(o *Instruction) bool {
	if o == nil || i.Kind != o.Kind || i.DataLength != o.DataLength {
		return false
	}
	if len(i.Data) != len(o.Data) {
		return false
	}
	for n := range i.Data {
		if i.Data[n] != o.Data[n] {
			return false
		}
	}
	return true
}
