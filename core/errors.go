package core

// Shared error values for the cesium node core. Call sites wrap these with
// fmt.Errorf("...: %w", err) so callers can match with errors.Is.

import "errors"

// Crypto errors.
var (
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrMismatchedMessage     = errors.New("mismatched message")
	ErrInvalidDisplayAddress = errors.New("invalid display address")
	ErrKeyGeneration         = errors.New("key generation error")
	ErrZkInvalidCommitment   = errors.New("invalid commitment")
	ErrZkInvalidResponse     = errors.New("invalid response")
)

// Codec errors.
var (
	ErrByteMismatch           = errors.New("byte mismatch")
	ErrInvalidInstructionType = errors.New("invalid instruction type")
	ErrInvalidUTF8            = errors.New("invalid utf-8")
	ErrNoInstructions         = errors.New("transaction has no instructions")
	ErrNotSigned              = errors.New("transaction is not signed")
)

// Execution errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOutOfGas          = errors.New("out of gas")
	ErrUnimplemented     = errors.New("unimplemented instruction")
)

// Mempool errors.
var (
	ErrMissingGenesisNode = errors.New("missing genesis node")
	ErrInvalidNodeInput   = errors.New("invalid node input")
	ErrInvalidNodeID      = errors.New("invalid node id")
	ErrMissingSignature   = errors.New("missing signature")
	ErrPutCheckpoint      = errors.New("put checkpoint error")
)

// Analyzer errors.
var (
	ErrDisallowedImport         = errors.New("disallowed import")
	ErrExceededLoopDepth        = errors.New("exceeded loop depth")
	ErrNoBreakCondition         = errors.New("loop has no reachable break condition")
	ErrExceededLoopIterations   = errors.New("exceeded loop iterations")
	ErrExceededInstructionLimit = errors.New("exceeded instruction limit")
	ErrExceededCompUnitLimit    = errors.New("exceeded computational unit limit")
	ErrParser                   = errors.New("bytecode parser error")
)

// Runtime errors.
var (
	ErrMemoryNotInitialized    = errors.New("memory not initialized")
	ErrMemoryOutOfBounds       = errors.New("memory out of bounds")
	ErrMemoryAllocation        = errors.New("memory allocation error")
	ErrArrayOutOfBounds        = errors.New("array out of bounds")
	ErrInvalidExportReturnType = errors.New("invalid export return type")
	ErrInvalidHostCall         = errors.New("invalid host call")
)

// Storage errors.
var (
	ErrStorage = errors.New("storage error")
	ErrAsync   = errors.New("async error")
)
