package core

// Contract execution on a single-pass compiling WASM host. Admission runs
// first (imports, caps, loop heuristic); the invoked function's static
// computational cost is charged up front and host calls draw down the rest
// of the budget. Exhaustion anywhere coerces the call into ErrOutOfGas.
//
// The compiled instance owns exactly one exported linear memory named
// "memory"; parameters are pre-written at successive offsets and handed to
// the guest as flattened (ptr, len) pairs. A guest memory is never shared
// across threads: each invocation compiles and runs on the calling
// goroutine.

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/wasmerio/wasmer-go/wasmer"
)

// initializeExport is reserved for contract construction and rejected by
// ExecuteContractFunction.
const initializeExport = "initialize"

// GasMeter tracks unit usage against the invocation budget.
type GasMeter struct {
	used  uint64
	limit uint64
}

func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Consume draws cost units and fails once the budget is exhausted.
func (g *GasMeter) Consume(cost uint64) error {
	if g.used+cost > g.limit {
		return fmt.Errorf("%w: %d/%d units", ErrOutOfGas, g.used+cost, g.limit)
	}
	g.used += cost
	return nil
}

// Used returns the units consumed so far.
func (g *GasMeter) Used() uint64 { return g.used }

// Remaining returns the units left in the budget.
func (g *GasMeter) Remaining() uint64 { return g.limit - g.used }

type Runtime struct {
	engine   *wasmer.Engine
	analyzer *Analyzer
	store    *Store
	logger   *log.Logger
}

// NewRuntime wires a runtime with the default admission caps.
func NewRuntime(store *Store, lg *log.Logger) *Runtime {
	if lg == nil {
		lg = log.StandardLogger()
	}
	return &Runtime{
		engine:   wasmer.NewEngine(),
		analyzer: NewAnalyzer(DefaultCompUnitLimitPerFunc, DefaultInstrLimitPerFunc),
		store:    store,
		logger:   lg,
	}
}

// InitializeContract runs the reserved constructor export.
func (r *Runtime) InitializeContract(binary []byte, env *ContractEnv, gasLimit uint64) ([]interface{}, uint64, error) {
	return r.invoke(binary, initializeExport, env, nil, gasLimit)
}

// ExecuteContractFunction runs a named export with the given parameters.
// The constructor cannot be re-entered this way.
func (r *Runtime) ExecuteContractFunction(binary []byte, funcName string, env *ContractEnv, params [][]byte, gasLimit uint64) ([]interface{}, uint64, error) {
	if funcName == "" || funcName == initializeExport {
		return nil, 0, fmt.Errorf("%w: invalid function name %q", ErrInvalidHostCall, funcName)
	}
	return r.invoke(binary, funcName, env, params, gasLimit)
}

func (r *Runtime) invoke(binary []byte, funcName string, env *ContractEnv, params [][]byte, gasLimit uint64) ([]interface{}, uint64, error) {
	functions, err := r.analyzer.Analyze(binary)
	if err != nil {
		return nil, 0, err
	}

	meter := NewGasMeter(gasLimit)
	// Charge the function's static cost up front, the moral equivalent of
	// per-operator metering middleware.
	for _, fn := range functions {
		if !fn.Import && fn.Name == funcName {
			if err := meter.Consume(fn.CompUnits); err != nil {
				return nil, meter.Used(), ErrOutOfGas
			}
			break
		}
	}

	wstore := wasmer.NewStore(r.engine)
	module, err := wasmer.NewModule(wstore, binary)
	if err != nil {
		return nil, meter.Used(), fmt.Errorf("%w: %v", ErrParser, err)
	}

	hctx := &hostCtx{env: env, store: r.store, meter: meter}
	imports := registerHost(wstore, hctx)

	instance, err := wasmer.NewInstance(module, imports)
	if err != nil {
		return nil, meter.Used(), fmt.Errorf("%w: %v", ErrParser, err)
	}

	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, meter.Used(), ErrMemoryNotInitialized
	}
	hctx.mem = mem

	// Pre-write parameters at successive offsets and build the flattened
	// (ptr, len) argument list.
	data := mem.Data()
	offset := uint32(0)
	args := make([]interface{}, 0, len(params)*2)
	for _, param := range params {
		if int(offset)+len(param) > len(data) || offset+uint32(len(param)) > MaxMemoryOffset {
			return nil, meter.Used(), ErrMemoryOutOfBounds
		}
		copy(data[offset:], param)
		args = append(args, int32(offset), int32(len(param)))
		offset += uint32(len(param))
	}
	env.MemOffset = offset

	fn, err := instance.Exports.GetFunction(funcName)
	if err != nil {
		return nil, meter.Used(), fmt.Errorf("%w: export %q", ErrInvalidExportReturnType, funcName)
	}

	raw, err := fn(args...)
	if err != nil {
		if hctx.err != nil {
			if errors.Is(hctx.err, ErrOutOfGas) {
				return nil, meter.Used(), ErrOutOfGas
			}
			return nil, meter.Used(), hctx.err
		}
		if meter.Remaining() == 0 {
			return nil, meter.Used(), ErrOutOfGas
		}
		return nil, meter.Used(), fmt.Errorf("contract trap: %w", err)
	}

	r.logger.WithFields(log.Fields{
		"fn":   funcName,
		"used": meter.Used(),
	}).Debug("contract call finished")

	switch v := raw.(type) {
	case nil:
		return nil, meter.Used(), nil
	case []interface{}:
		return v, meter.Used(), nil
	default:
		return []interface{}{v}, meter.Used(), nil
	}
}
