package core

// Key-value persistence for checkpoints, balances and account records.
// Backed by LevelDB at a relative path under the process working
// directory. The process-wide handle is created lazily but its
// construction is explicit: call OpenStore (or let CurrentStore open the
// default path) and Close it on shutdown.
//
// The async variants shift blocking work onto a bounded worker pool so
// callers on the scheduler never block on disk.

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
)

// DefaultDBPath is the store location relative to the working directory.
const DefaultDBPath = ".cesiumdb"

const storeWorkers = 4

type Store struct {
	db     *leveldb.DB
	logger *log.Logger

	jobMu  sync.Mutex
	jobs   chan func()
	closed bool
	wg     sync.WaitGroup
}

// AsyncResult carries the outcome of an asynchronous get.
type AsyncResult struct {
	Value []byte
	Err   error
}

var (
	currentMu    sync.Mutex
	currentStore *Store
)

// OpenStore opens (or creates) the database at path and starts the worker
// pool.
func OpenStore(path string, lg *log.Logger) (*Store, error) {
	if lg == nil {
		lg = log.StandardLogger()
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStorage, path, err)
	}
	s := &Store{
		db:     db,
		logger: lg,
		jobs:   make(chan func(), 128),
	}
	for i := 0; i < storeWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for job := range s.jobs {
				job()
			}
		}()
	}
	lg.WithField("path", path).Info("storage opened")
	return s, nil
}

// CurrentStore returns the process-wide store, opening the default path on
// first use.
func CurrentStore() *Store {
	currentMu.Lock()
	defer currentMu.Unlock()
	if currentStore == nil {
		s, err := OpenStore(DefaultDBPath, log.StandardLogger())
		if err != nil {
			log.Fatalf("storage: %v", err)
		}
		currentStore = s
	}
	return currentStore
}

// SetCurrentStore installs an explicitly constructed store as the
// process-wide handle.
func SetCurrentStore(s *Store) {
	currentMu.Lock()
	defer currentMu.Unlock()
	currentStore = s
}

// Close drains the worker pool and closes the database.
func (s *Store) Close() error {
	s.jobMu.Lock()
	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
	s.jobMu.Unlock()
	s.wg.Wait()
	return s.db.Close()
}

// Put stores a key-value pair.
func (s *Store) Put(key, value []byte) error {
	if err := s.db.Put(key, value, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Get retrieves the value for key. A missing key returns (nil, nil).
func (s *Store) Get(key []byte) ([]byte, error) {
	value, err := s.db.Get(key, nil)
	if err != nil {
		if errors.Is(err, lerrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return value, nil
}

// Has reports whether key exists.
func (s *Store) Has(key []byte) (bool, error) {
	ok, err := s.db.Has(key, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return ok, nil
}

func (s *Store) submit(job func()) error {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()
	if s.closed {
		return fmt.Errorf("%w: store closed", ErrAsync)
	}
	s.jobs <- job
	return nil
}

// AsyncPut stores a key-value pair on the worker pool; the returned
// channel yields exactly one result.
func (s *Store) AsyncPut(key, value []byte) <-chan error {
	out := make(chan error, 1)
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	if err := s.submit(func() {
		out <- s.Put(k, v)
	}); err != nil {
		out <- err
	}
	return out
}

// AsyncGet retrieves a value on the worker pool; the returned channel
// yields exactly one result.
func (s *Store) AsyncGet(key []byte) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	k := append([]byte(nil), key...)
	if err := s.submit(func() {
		value, err := s.Get(k)
		out <- AsyncResult{Value: value, Err: err}
	}); err != nil {
		out <- AsyncResult{Err: err}
	}
	return out
}

// -----------------------------------------------------------------------------
// Ledger record helpers
// -----------------------------------------------------------------------------

func balanceKey(owner *DisplayAddress, currency DABytes) []byte {
	return []byte("balance:" + owner.String() + ":" + string(currency[:]))
}

func contractKey(id *DisplayAddress) []byte {
	return []byte("account:contract:" + id.String())
}

func dataAccountKey(id string) []byte {
	return []byte("account:data:" + id)
}

func contractStateKey(contractID []byte) []byte {
	return append([]byte("state:"), contractID...)
}

// Balance loads the on-disk balance of owner in currency; absent records
// read as zero.
func (s *Store) Balance(owner *DisplayAddress, currency DABytes) (*big.Int, error) {
	raw, err := s.Get(balanceKey(owner, currency))
	if err != nil {
		return nil, err
	}
	if len(raw) != u128Len {
		return new(big.Int), nil
	}
	return u128FromLE(raw), nil
}

// SetBalance writes the absolute balance of owner in currency.
func (s *Store) SetBalance(owner *DisplayAddress, currency DABytes, amount *big.Int) error {
	return s.Put(balanceKey(owner, currency), appendU128LE(nil, amount))
}

// PutContractAccount persists a contract record under its id.
func (s *Store) PutContractAccount(a *ContractAccount) error {
	id, err := DisplayAddressFromBytes(a.ID[:])
	if err != nil {
		return err
	}
	return s.Put(contractKey(id), a.ToBytes())
}

// GetContractAccount loads a contract record; a missing id yields
// (nil, nil).
func (s *Store) GetContractAccount(id *DisplayAddress) (*ContractAccount, error) {
	raw, err := s.Get(contractKey(id))
	if err != nil || raw == nil {
		return nil, err
	}
	return ContractAccountFromBytes(raw)
}

// PutDataAccount persists a data account record under its id.
func (s *Store) PutDataAccount(a *DataAccount) error {
	id, err := DisplayAddressFromBytes(a.ID[:])
	if err != nil {
		return err
	}
	return s.Put(dataAccountKey(id.String()), a.ToBytes())
}

// GetDataAccount loads a data account record by its textual id.
func (s *Store) GetDataAccount(id string) (*DataAccount, error) {
	raw, err := s.Get(dataAccountKey(id))
	if err != nil || raw == nil {
		return nil, err
	}
	return DataAccountFromBytes(raw)
}

// PutContractState persists the state slot vector of a contract.
func (s *Store) PutContractState(contractID []byte, slots [][]byte) error {
	return s.Put(contractStateKey(contractID), encodeStateSlots(slots))
}

// GetContractState loads the state slot vector of a contract; a missing
// record yields (nil, nil).
func (s *Store) GetContractState(contractID []byte) ([][]byte, error) {
	raw, err := s.Get(contractStateKey(contractID))
	if err != nil || raw == nil {
		return nil, err
	}
	return decodeStateSlots(raw)
}

// CommitBalances applies an execution result in a single batch: the
// signer's absolute balances and the recipients' deltas land together or
// not at all.
func (s *Store) CommitBalances(signer *DisplayAddress, res *ExecutionResult) error {
	batch := new(leveldb.Batch)
	for currency, balance := range res.SignerBalances {
		batch.Put(balanceKey(signer, currency), appendU128LE(nil, balance))
	}
	for recipient, delta := range res.RecipientDeltas {
		da, err := DisplayAddressFromBytes(recipient[:])
		if err != nil {
			return err
		}
		// Recipients were not touched by pre-flight, so their balance is
		// read here and folded into the same batch.
		current := map[DABytes]*big.Int{}
		for currency, amount := range delta {
			bal, err := s.Balance(da, currency)
			if err != nil {
				return err
			}
			current[currency] = new(big.Int).Add(bal, amount)
		}
		for currency, balance := range current {
			batch.Put(balanceKey(da, currency), appendU128LE(nil, balance))
		}
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func encodeStateSlots(slots [][]byte) []byte {
	b := appendU32LE(nil, uint32(len(slots)))
	for _, slot := range slots {
		b = appendU32LE(b, uint32(len(slot)))
		b = append(b, slot...)
	}
	return b
}

func decodeStateSlots(b []byte) ([][]byte, error) {
	count, offset, err := readU32(b, 0)
	if err != nil {
		return nil, err
	}
	slots := make([][]byte, 0, count)
	for n := uint32(0); n < count; n++ {
		var slotLen uint32
		slotLen, offset, err = readU32(b, offset)
		if err != nil {
			return nil, err
		}
		if !boundsOK(b, offset, int(slotLen)) {
			return nil, ErrByteMismatch
		}
		slots = append(slots, append([]byte(nil), b[offset:offset+int(slotLen)]...))
		offset += int(slotLen)
	}
	return slots, nil
}
