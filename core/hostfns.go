package core

// Host ABI registered under the "env" import module. Every function
// charges the gas meter before doing work; a trap raised here carries the
// precise error back to the invoker through the host context.

import (
	"bytes"
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"
)

// Per-call gas charges for host functions.
const (
	hostCostState    = 10
	hostCostCommit   = 50
	hostCostAccounts = 25
	hostCostGenID    = 15
)

// hostCtx is shared by the host closures of one invocation. The memory
// handle is attached after instantiation; guests cannot call imports
// before that point.
type hostCtx struct {
	env   *ContractEnv
	store *Store
	meter *GasMeter
	mem   *wasmer.Memory

	// err preserves the first host-side failure so the invoker can
	// surface it instead of an opaque trap.
	err error
}

func (h *hostCtx) fail(err error) ([]wasmer.Value, error) {
	if h.err == nil {
		h.err = err
	}
	return nil, err
}

func (h *hostCtx) memory() ([]byte, error) {
	if h.mem == nil {
		return nil, ErrMemoryNotInitialized
	}
	return h.mem.Data(), nil
}

func i32Params(n int) []*wasmer.ValueType {
	kinds := make([]wasmer.ValueKind, n)
	for i := range kinds {
		kinds[i] = wasmer.I32
	}
	return wasmer.NewValueTypes(kinds...)
}

var (
	noResults  = wasmer.NewValueTypes()
	i64Results = wasmer.NewValueTypes(wasmer.I64)
)

// registerHost builds the "env" import object over the invocation context.
func registerHost(store *wasmer.Store, h *hostCtx) *wasmer.ImportObject {
	imports := wasmer.NewImportObject()

	hDefineState := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(1), noResults),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostState); err != nil {
				return h.fail(err)
			}
			if h.env.State.Initialized {
				return h.fail(fmt.Errorf("%w: state already defined", ErrInvalidHostCall))
			}
			slots := args[0].I32()
			if slots < 0 {
				return h.fail(fmt.Errorf("%w: negative slot count", ErrInvalidHostCall))
			}
			h.env.State.Initialized = true
			h.env.State.Data = make([][]byte, slots)
			return []wasmer.Value{}, nil
		})

	hGetState := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(1), i64Results),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostState); err != nil {
				return h.fail(err)
			}
			idx := int(args[0].I32())
			if idx < 0 || idx >= len(h.env.State.Data) {
				return h.fail(fmt.Errorf("%w: state slot %d", ErrArrayOutOfBounds, idx))
			}
			mem, err := h.memory()
			if err != nil {
				return h.fail(err)
			}
			ptr, length, err := allocate(mem, h.env, h.env.State.Data[idx])
			if err != nil {
				return h.fail(err)
			}
			return []wasmer.Value{wasmer.NewI64(packPtr(ptr, length))}, nil
		})

	hChangeState := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(3), noResults),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostState); err != nil {
				return h.fail(err)
			}
			idx := int(args[0].I32())
			if idx < 0 || idx >= len(h.env.State.Data) {
				return h.fail(fmt.Errorf("%w: state slot %d", ErrArrayOutOfBounds, idx))
			}
			mem, err := h.memory()
			if err != nil {
				return h.fail(err)
			}
			value, err := readGuest(mem, args[1].I32(), args[2].I32())
			if err != nil {
				return h.fail(err)
			}
			h.env.State.Data[idx] = value
			return []wasmer.Value{}, nil
		})

	hCommitState := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(0), noResults),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostCommit); err != nil {
				return h.fail(err)
			}
			if err := h.commitState(); err != nil {
				return h.fail(err)
			}
			return []wasmer.Value{}, nil
		})

	hInitializeDataAccount := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(4), i64Results),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostAccounts); err != nil {
				return h.fail(err)
			}
			return h.initDataAccount(args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32(), h.env.ContractID)
		})

	hInitializeIndependentDataAccount := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(6), i64Results),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostAccounts); err != nil {
				return h.fail(err)
			}
			mem, err := h.memory()
			if err != nil {
				return h.fail(err)
			}
			updateAuth, err := readGuest(mem, args[4].I32(), args[5].I32())
			if err != nil {
				return h.fail(err)
			}
			return h.initDataAccount(args[0].I32(), args[1].I32(), args[2].I32(), args[3].I32(), updateAuth)
		})

	hUpdateDataAccount := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(4), noResults),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostAccounts); err != nil {
				return h.fail(err)
			}
			mem, err := h.memory()
			if err != nil {
				return h.fail(err)
			}
			owner, err := readGuest(mem, args[0].I32(), args[1].I32())
			if err != nil {
				return h.fail(err)
			}
			if bytes.Equal(owner, h.env.ContractID) || bytes.Equal(owner, h.env.CallerID) {
				return h.fail(fmt.Errorf("%w: cannot update own account data", ErrInvalidHostCall))
			}
			data, err := readGuest(mem, args[2].I32(), args[3].I32())
			if err != nil {
				return h.fail(err)
			}
			for _, item := range h.env.AccountData.Data {
				if bytes.Equal(item.Owner, owner) {
					item.Data = data
					return []wasmer.Value{}, nil
				}
			}
			return h.fail(fmt.Errorf("%w: unknown data account", ErrInvalidHostCall))
		})

	hCommitAccountData := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(0), noResults),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostCommit); err != nil {
				return h.fail(err)
			}
			if err := h.commitAccountData(); err != nil {
				return h.fail(err)
			}
			return []wasmer.Value{}, nil
		})

	hCommitAll := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(0), noResults),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostCommit); err != nil {
				return h.fail(err)
			}
			if h.env.State.Committed || h.env.AccountData.Committed {
				return h.fail(fmt.Errorf("%w: already committed", ErrInvalidHostCall))
			}
			if err := h.commitState(); err != nil {
				return h.fail(err)
			}
			if err := h.commitAccountData(); err != nil {
				return h.fail(err)
			}
			return []wasmer.Value{}, nil
		})

	hGenID := wasmer.NewFunction(store,
		wasmer.NewFunctionType(i32Params(0), i64Results),
		func(args []wasmer.Value) ([]wasmer.Value, error) {
			if err := h.meter.Consume(hostCostGenID); err != nil {
				return h.fail(err)
			}
			id := NewDisplayAddress()
			if h.env.MemOffset+DALen > MaxMemoryOffset {
				return h.fail(ErrMemoryOutOfBounds)
			}
			mem, err := h.memory()
			if err != nil {
				return h.fail(err)
			}
			if int(h.env.MemOffset)+DALen > len(mem) {
				return h.fail(ErrMemoryOutOfBounds)
			}
			ptr := h.env.MemOffset
			copy(mem[ptr:], id.Bytes())
			h.env.MemOffset += DALen
			return []wasmer.Value{wasmer.NewI64(packPtr(ptr, DALen))}, nil
		})

	imports.Register(hostImportModule, map[string]wasmer.IntoExtern{
		"h_define_state":                       hDefineState,
		"h_get_state":                          hGetState,
		"h_change_state":                       hChangeState,
		"h_commit_state":                       hCommitState,
		"h_initialize_data_account":            hInitializeDataAccount,
		"h_initialize_independent_data_account": hInitializeIndependentDataAccount,
		"h_update_data_account":                hUpdateDataAccount,
		"h_commit_account_data":                hCommitAccountData,
		"h_commit_all":                         hCommitAll,
		"h_gen_id":                             hGenID,
	})
	return imports
}

// initDataAccount stages a new data account and writes its raw id into
// guest memory, returning the packed (ptr, len).
func (h *hostCtx) initDataAccount(ownerPtr, ownerLen, dataPtr, dataLen int32, updateAuth []byte) ([]wasmer.Value, error) {
	mem, err := h.memory()
	if err != nil {
		return h.fail(err)
	}
	owner, err := readGuest(mem, ownerPtr, ownerLen)
	if err != nil {
		return h.fail(err)
	}
	data, err := readGuest(mem, dataPtr, dataLen)
	if err != nil {
		return h.fail(err)
	}

	id := NewDisplayAddress()
	h.env.AccountData.Data[id.String()] = &AccountDataItem{
		Owner:      owner,
		UpdateAuth: append([]byte(nil), updateAuth...),
		Data:       data,
	}

	ptr, length, err := allocate(mem, h.env, id.Bytes())
	if err != nil {
		return h.fail(err)
	}
	return []wasmer.Value{wasmer.NewI64(packPtr(ptr, length))}, nil
}

// commitState persists the slot vector once per invocation.
func (h *hostCtx) commitState() error {
	if h.env.State.Committed {
		return fmt.Errorf("%w: state already committed", ErrInvalidHostCall)
	}
	if h.store != nil {
		if err := h.store.PutContractState(h.env.ContractID, h.env.State.Data); err != nil {
			return err
		}
	}
	h.env.State.Committed = true
	return nil
}

// commitAccountData persists the staged data accounts once per invocation.
func (h *hostCtx) commitAccountData() error {
	if h.env.AccountData.Committed {
		return fmt.Errorf("%w: account data already committed", ErrInvalidHostCall)
	}
	if h.store != nil {
		for idStr, item := range h.env.AccountData.Data {
			id, err := DisplayAddressFromString(idStr)
			if err != nil {
				return err
			}
			record := &DataAccount{Data: item.Data}
			copy(record.ID[:], id.Bytes())
			copy(record.Owner[:], item.Owner)
			copy(record.Updater[:], item.UpdateAuth)
			if err := h.store.PutDataAccount(record); err != nil {
				return err
			}
		}
	}
	h.env.AccountData.Committed = true
	return nil
}
