package core

// Batched instruction execution.
//
// Phase 1 walks the batch once: charges the base fee and per-kind costs,
// fails fast on gas or funds, and decides whether the batch may run
// concurrently. Phase 2 dispatches; the per-instruction semantics are
// identical in both modes. Settlement hands both balance maps to storage
// as one batch.
//
// Concurrent dispatch is only taken when phase 1 can prove that the summed
// worst-case spend per currency stays within the signer's start-of-batch
// balance; otherwise the engine falls back to source order, where the
// running balance check suffices.

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// balanceMap is a keyed balance table permitting concurrent updates with
// per-key atomicity.
type balanceMap struct {
	mu sync.Mutex
	m  map[DABytes]*big.Int
}

func newBalanceMap() *balanceMap {
	return &balanceMap{m: make(map[DABytes]*big.Int)}
}

func (b *balanceMap) set(key DABytes, v *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = new(big.Int).Set(v)
}

// withdraw atomically checks and decrements the balance under key, loading
// it through fetch on first touch. It fails with ErrInsufficientFunds when
// the key cannot cover amount.
func (b *balanceMap) withdraw(key DABytes, amount *big.Int, fetch func() (*big.Int, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	balance, ok := b.m[key]
	if !ok {
		disk, err := fetch()
		if err != nil {
			return err
		}
		if disk.Cmp(amount) < 0 {
			return ErrInsufficientFunds
		}
		balance = new(big.Int).Set(disk)
		b.m[key] = balance
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	balance.Sub(balance, amount)
	return nil
}

// deposit atomically increments the balance under key.
func (b *balanceMap) deposit(key DABytes, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	balance, ok := b.m[key]
	if !ok {
		balance = new(big.Int)
		b.m[key] = balance
	}
	balance.Add(balance, amount)
}

func (b *balanceMap) snapshot() map[DABytes]*big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[DABytes]*big.Int, len(b.m))
	for k, v := range b.m {
		out[k] = new(big.Int).Set(v)
	}
	return out
}

// recipientMap accumulates per-recipient, per-currency credit deltas.
type recipientMap struct {
	mu sync.Mutex
	m  map[DABytes]map[DABytes]*big.Int
}

func newRecipientMap() *recipientMap {
	return &recipientMap{m: make(map[DABytes]map[DABytes]*big.Int)}
}

func (r *recipientMap) deposit(recipient, currency DABytes, amount *big.Int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byCurrency, ok := r.m[recipient]
	if !ok {
		byCurrency = make(map[DABytes]*big.Int)
		r.m[recipient] = byCurrency
	}
	delta, ok := byCurrency[currency]
	if !ok {
		delta = new(big.Int)
		byCurrency[currency] = delta
	}
	delta.Add(delta, amount)
}

func (r *recipientMap) snapshot() map[DABytes]map[DABytes]*big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[DABytes]map[DABytes]*big.Int, len(r.m))
	for recipient, byCurrency := range r.m {
		cp := make(map[DABytes]*big.Int, len(byCurrency))
		for currency, delta := range byCurrency {
			cp[currency] = new(big.Int).Set(delta)
		}
		out[recipient] = cp
	}
	return out
}

// ExecutionResult is what settlement hands to the storage layer.
type ExecutionResult struct {
	SignerBalances  map[DABytes]*big.Int
	RecipientDeltas map[DABytes]map[DABytes]*big.Int
	UsedGas         *big.Int
}

// Engine executes instruction batches against storage and the contract
// runtime.
type Engine struct {
	store   *Store
	runtime *Runtime
	logger  *log.Logger
}

func NewEngine(store *Store, runtime *Runtime, lg *log.Logger) *Engine {
	if lg == nil {
		lg = log.StandardLogger()
	}
	return &Engine{store: store, runtime: runtime, logger: lg}
}

// Execute runs a batch for signer with the given gas allowance and
// settles the resulting balances. On any error the provisional maps are
// discarded; nothing is persisted.
func (e *Engine) Execute(signer *DisplayAddress, instructions []*Instruction, providedGas *big.Int) (*ExecutionResult, error) {
	if providedGas.Cmp(BaseTxFee()) < 0 {
		return nil, ErrOutOfGas
	}

	native := NativeTokenDA()
	diskBalance, err := e.store.Balance(signer, native)
	if err != nil {
		return nil, err
	}
	if diskBalance.Cmp(providedGas) < 0 {
		return nil, ErrInsufficientFunds
	}

	signerBalances := newBalanceMap()
	signerBalances.set(native, diskBalance)

	usedGas := BaseTxFee()
	concurrent := true
	hasCurrencyMint := false
	hasCurrencyTransfer := false

	for _, instr := range instructions {
		cost := instr.Kind.BaseCost()
		usedGas.Add(usedGas, cost)
		if usedGas.Cmp(providedGas) > 0 {
			return nil, ErrOutOfGas
		}
		if err := signerBalances.withdraw(native, cost, zeroBalance); err != nil {
			return nil, err
		}

		switch instr.Kind {
		case ContractCall:
			concurrent = false
		case CurrencyMint:
			hasCurrencyMint = true
			if hasCurrencyTransfer {
				concurrent = false
			}
		case CurrencyTransfer:
			hasCurrencyTransfer = true
			if hasCurrencyMint {
				concurrent = false
			}
		}
	}

	if concurrent && !e.proveSpendBound(signer, instructions) {
		// The pre-flight could not prove the batch stays within the
		// start-of-batch balances, so run it in source order where the
		// running check is authoritative.
		concurrent = false
	}

	recipientDeltas := newRecipientMap()
	var gasMu sync.Mutex // guards usedGas during dispatch

	runOne := func(instr *Instruction) error {
		switch instr.Kind {
		case CurrencyTransfer:
			return e.executeCurrencyTransfer(signer, instr, signerBalances, recipientDeltas)
		case ContractCall:
			return e.executeContractCall(signer, instr, providedGas, usedGas, &gasMu)
		case ContractDeploy, CurrencyCreate, CurrencyMint, CurrencyUpdate,
			NFTBundleCreate, NFTBundleUpdate, NFTMint, NFTTransfer:
			return fmt.Errorf("%w: %s", ErrUnimplemented, instr.Kind)
		}
		return ErrInvalidInstructionType
	}

	if concurrent {
		var g errgroup.Group
		for _, instr := range instructions {
			g.Go(func() error { return runOne(instr) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for _, instr := range instructions {
			if err := runOne(instr); err != nil {
				return nil, err
			}
		}
	}

	res := &ExecutionResult{
		SignerBalances:  signerBalances.snapshot(),
		RecipientDeltas: recipientDeltas.snapshot(),
		UsedGas:         usedGas,
	}
	if err := e.store.CommitBalances(signer, res); err != nil {
		return nil, err
	}
	e.logger.WithFields(log.Fields{
		"signer": signer.String(),
		"instrs": len(instructions),
		"gas":    usedGas.String(),
	}).Debug("batch executed")
	return res, nil
}

func zeroBalance() (*big.Int, error) {
	return new(big.Int), nil
}

// proveSpendBound sums the worst-case spend per currency and checks it
// against the signer's start-of-batch balances. Any parse failure means
// the bound cannot be proven; the actual dispatch will surface the error.
func (e *Engine) proveSpendBound(signer *DisplayAddress, instructions []*Instruction) bool {
	sums := make(map[DABytes]*big.Int)
	for _, instr := range instructions {
		if instr.Kind != CurrencyTransfer {
			continue
		}
		p, err := parseCurrencyTransfer(instr.Data)
		if err != nil {
			return false
		}
		sum, ok := sums[p.currency]
		if !ok {
			sum = new(big.Int)
			sums[p.currency] = sum
		}
		sum.Add(sum, p.amount)
	}
	for currency, sum := range sums {
		balance, err := e.store.Balance(signer, currency)
		if err != nil {
			return false
		}
		if sum.Cmp(balance) > 0 {
			return false
		}
	}
	return true
}

func (e *Engine) executeCurrencyTransfer(signer *DisplayAddress, instr *Instruction, signerBalances *balanceMap, recipientDeltas *recipientMap) error {
	p, err := parseCurrencyTransfer(instr.Data)
	if err != nil {
		return err
	}
	err = signerBalances.withdraw(p.currency, p.amount, func() (*big.Int, error) {
		return e.store.Balance(signer, p.currency)
	})
	if err != nil {
		return err
	}
	recipientDeltas.deposit(p.recipient, p.currency, p.amount)
	return nil
}

// Contract call payload: contract(32) | fn_len:u32 | fn | params (opaque,
// handed to the function as a single argument when present).
func (e *Engine) executeContractCall(signer *DisplayAddress, instr *Instruction, providedGas, usedGas *big.Int, gasMu *sync.Mutex) error {
	if e.runtime == nil {
		return fmt.Errorf("%w: no contract runtime attached", ErrUnimplemented)
	}

	offset := 0
	if !boundsOK(instr.Data, offset, DALen) {
		return ErrByteMismatch
	}
	contractID, err := DisplayAddressFromBytes(instr.Data[offset : offset+DALen])
	if err != nil {
		return err
	}
	offset += DALen

	fnName, offset, err := readString(instr.Data, offset)
	if err != nil {
		return err
	}
	var params [][]byte
	if offset < len(instr.Data) {
		params = append(params, instr.Data[offset:])
	}

	account, err := e.store.GetContractAccount(contractID)
	if err != nil {
		return err
	}
	if account == nil {
		return fmt.Errorf("%w: unknown contract %s", ErrInvalidNodeInput, contractID)
	}

	gasMu.Lock()
	budget := new(big.Int).Sub(providedGas, usedGas)
	gasMu.Unlock()
	if budget.Sign() <= 0 {
		return ErrOutOfGas
	}

	env := NewContractEnv(contractID.String(), signer.String())
	if slots, err := e.store.GetContractState(env.ContractID); err == nil && slots != nil {
		env.State = ContractStateEnv{Initialized: true, Data: slots}
	}

	_, consumed, err := e.runtime.ExecuteContractFunction(account.ProgramBinary, fnName, env, params, budget.Uint64())

	gasMu.Lock()
	usedGas.Add(usedGas, new(big.Int).SetUint64(consumed))
	exhausted := usedGas.Cmp(providedGas) > 0
	gasMu.Unlock()

	if err != nil {
		if errors.Is(err, ErrOutOfGas) {
			return ErrOutOfGas
		}
		return err
	}
	if exhausted {
		return ErrOutOfGas
	}
	return nil
}
