// Package state implements the State View described in spec §4.4: a
// stateful overlay over the Store, owned by exactly one block executor at
// a time, with cheap snapshot/revert for sub-call rollback.
package state

import (
	"math/big"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/rlp"
	"github.com/luxfi/execd/trie"
)

// storageKey identifies one slot within the overlay's flat storage map.
type storageKey struct {
	addr common.Address
	slot common.Hash
}

// accountObject is the overlay's live view of one account: the account
// tuple plus the storage writes staged against it and its code, kept apart
// from the trie until commit.
type accountObject struct {
	account types.Account
	deleted bool // self-destructed or reset to empty since the last commit
	dirty   bool // touched since the last commit; present in take_updates
	code    []byte
	codeSet bool
}

// journalEntry is one undoable mutation, recorded so a revert_to can walk
// the journal backwards and restore exactly the state a snapshot captured.
type journalEntry interface {
	revert(s *StateDB)
}

// StateDB is the State View overlay. It is not safe for concurrent use:
// spec §4.4 requires it be owned by exactly one executor at a time.
type StateDB struct {
	store *store.Store
	trie  *trie.Trie

	accounts map[common.Address]*accountObject
	storage  map[storageKey]common.Hash

	transient map[storageKey]common.Hash

	journal []journalEntry

	createdThisTx map[common.Address]bool

	warmAccounts mapset.Set[common.Address]
	warmStorage  mapset.Set[storageKey]

	logs []*types.Log

	refund uint64
}

// New opens a State View against root within st's trie-node table.
func New(root common.Hash, st *store.Store) *StateDB {
	return &StateDB{
		store:         st,
		trie:          trie.New(root, common.Hash{}, st.TrieBackend()),
		accounts:      make(map[common.Address]*accountObject),
		storage:       make(map[storageKey]common.Hash),
		transient:     make(map[storageKey]common.Hash),
		createdThisTx: make(map[common.Address]bool),
		warmAccounts:  mapset.NewThreadUnsafeSet[common.Address](),
		warmStorage:   mapset.NewThreadUnsafeSet[storageKey](),
	}
}

func (s *StateDB) getObject(addr common.Address) *accountObject {
	if obj, ok := s.accounts[addr]; ok {
		return obj
	}
	obj := &accountObject{account: types.EmptyAccount()}
	raw, found, err := s.trie.Get(addr.Bytes())
	if err == nil && found {
		if acct, decErr := types.DecodeAccountRLP(raw); decErr == nil {
			obj.account = acct
		}
	}
	s.accounts[addr] = obj
	return obj
}

// GetAccount returns addr's current account tuple, the empty account on a
// miss (spec §4.4).
func (s *StateDB) GetAccount(addr common.Address) types.Account {
	obj := s.getObject(addr)
	if obj.deleted {
		return types.EmptyAccount()
	}
	return obj.account
}

// SetAccount installs a new account tuple for addr, journaling the prior
// value for revert_to.
func (s *StateDB) SetAccount(addr common.Address, acct types.Account) {
	obj := s.getObject(addr)
	prev := obj.account
	prevDeleted := obj.deleted
	s.journal = append(s.journal, &accountChange{addr: addr, prev: prev, prevDeleted: prevDeleted})
	obj.account = acct
	obj.deleted = false
	obj.dirty = true
}

// GetBalance returns addr's balance, zero on a miss.
func (s *StateDB) GetBalance(addr common.Address) *big.Int {
	return s.getObject(addr).account.Balance
}

// GetNonce returns addr's nonce, zero on a miss.
func (s *StateDB) GetNonce(addr common.Address) uint64 {
	return s.getObject(addr).account.Nonce
}

// SetNonce installs addr's nonce directly (used by CREATE/CREATE2 to bump
// the creator's nonce and to set a freshly deployed contract's nonce to 1;
// transaction processing advances the sender's nonce via IncNonce).
func (s *StateDB) SetNonce(addr common.Address, nonce uint64) {
	obj := s.getObject(addr)
	prev := obj.account.Nonce
	s.journal = append(s.journal, &nonceChange{addr: addr, prev: prev})
	obj.account.Nonce = nonce
	obj.dirty = true
}

// GetCodeHash returns addr's code hash, the empty-code hash on a miss.
func (s *StateDB) GetCodeHash(addr common.Address) common.Hash {
	return s.getObject(addr).account.CodeHash
}

// GetCodeSize returns the length of addr's contract code.
func (s *StateDB) GetCodeSize(addr common.Address) int {
	return len(s.GetCode(addr))
}

// Exist reports whether addr has ever been touched this session (non-empty
// account present in the overlay or the underlying trie).
func (s *StateDB) Exist(addr common.Address) bool {
	if obj, ok := s.accounts[addr]; ok {
		return !obj.deleted
	}
	_, found, err := s.trie.Get(addr.Bytes())
	return err == nil && found
}

// Empty reports whether addr is the empty account (spec §3's "must not be
// stored" condition), used by EIP-161 touch-and-delete bookkeeping.
func (s *StateDB) Empty(addr common.Address) bool {
	return s.GetAccount(addr).IsEmpty()
}

// CreateAccount ensures addr has an account object with a zeroed nonce and
// code hash, preserving any balance a prior transfer may already have
// credited to it (the CREATE/CREATE2 "pay before deploy" ordering).
func (s *StateDB) CreateAccount(addr common.Address) {
	obj := s.getObject(addr)
	bal := obj.account.Balance
	acct := types.EmptyAccount()
	acct.Balance = bal
	s.SetAccount(addr, acct)

	s.journal = append(s.journal, &createdChange{addr: addr, wasCreated: s.createdThisTx[addr]})
	s.createdThisTx[addr] = true
}

// CreatedThisTx reports whether addr's account was created (via CREATE or
// CREATE2) earlier in the transaction currently executing, the condition
// EIP-6780 requires for SELFDESTRUCT to actually remove the account rather
// than only sweep its balance.
func (s *StateDB) CreatedThisTx(addr common.Address) bool {
	return s.createdThisTx[addr]
}

// ResetCreatedThisTx clears the created-this-transaction set; the block
// executor calls it once per transaction, before running it, so EIP-6780's
// carve-out never leaks an earlier transaction's CREATE into this one's
// SELFDESTRUCT decision.
func (s *StateDB) ResetCreatedThisTx() {
	s.createdThisTx = make(map[common.Address]bool)
}

// GetStorage returns zero on a miss, per spec §4.4's "storage slot absence
// ⇔ value zero" (invariant 3).
func (s *StateDB) GetStorage(addr common.Address, key common.Hash) common.Hash {
	sk := storageKey{addr, key}
	if v, ok := s.storage[sk]; ok {
		return v
	}
	obj := s.getObject(addr)
	if obj.account.StorageRoot == common.EmptyRootHash || obj.account.StorageRoot.IsZero() {
		return common.Hash{}
	}
	storageTrie := trie.NewStorage(obj.account.StorageRoot, addr.Hash(), s.store.TrieBackend())
	raw, found, err := storageTrie.Get(key.Bytes())
	if err != nil || !found {
		return common.Hash{}
	}
	v, err := decodeStorageValue(raw)
	if err != nil {
		return common.Hash{}
	}
	s.storage[sk] = v
	return v
}

// SetStorage stages a storage write, journaling the previous value.
func (s *StateDB) SetStorage(addr common.Address, key, value common.Hash) {
	sk := storageKey{addr, key}
	prev := s.GetStorage(addr, key)
	s.journal = append(s.journal, &storageChange{key: sk, prev: prev})
	s.storage[sk] = value
	s.getObject(addr).dirty = true
}

// GetTransientStorage returns per-transaction transient storage (EIP-1153);
// it is never persisted and is reset wholesale between transactions via
// ResetTransient.
func (s *StateDB) GetTransientStorage(addr common.Address, key common.Hash) common.Hash {
	return s.transient[storageKey{addr, key}]
}

// SetTransientStorage stages a TSTORE.
func (s *StateDB) SetTransientStorage(addr common.Address, key, value common.Hash) {
	sk := storageKey{addr, key}
	prev := s.transient[sk]
	s.journal = append(s.journal, &transientChange{key: sk, prev: prev, wasSet: true})
	s.transient[sk] = value
}

// ResetTransient clears all transient storage, per spec §4.1/§4.4's "resets
// between transactions".
func (s *StateDB) ResetTransient() {
	s.transient = make(map[storageKey]common.Hash)
}

// AddBalance credits amount to addr's balance.
func (s *StateDB) AddBalance(addr common.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	obj := s.getObject(addr)
	prev := new(big.Int).Set(obj.account.Balance)
	s.journal = append(s.journal, &balanceChange{addr: addr, prev: prev})
	obj.account.Balance = new(big.Int).Add(obj.account.Balance, amount)
	obj.dirty = true
}

// SubBalance debits amount from addr's balance.
func (s *StateDB) SubBalance(addr common.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		return
	}
	obj := s.getObject(addr)
	prev := new(big.Int).Set(obj.account.Balance)
	s.journal = append(s.journal, &balanceChange{addr: addr, prev: prev})
	obj.account.Balance = new(big.Int).Sub(obj.account.Balance, amount)
	obj.dirty = true
}

// IncNonce increments addr's nonce by one.
func (s *StateDB) IncNonce(addr common.Address) {
	obj := s.getObject(addr)
	prev := obj.account.Nonce
	s.journal = append(s.journal, &nonceChange{addr: addr, prev: prev})
	obj.account.Nonce++
	obj.dirty = true
}

// SetCode installs addr's contract code, staging both the bytes (for the
// code mapping) and the resulting code_hash (for the account tuple).
func (s *StateDB) SetCode(addr common.Address, code []byte) {
	obj := s.getObject(addr)
	prevHash := obj.account.CodeHash
	prevCode := obj.code
	prevCodeSet := obj.codeSet
	s.journal = append(s.journal, &codeChange{addr: addr, prevHash: prevHash, prevCode: prevCode, prevCodeSet: prevCodeSet})
	obj.account.CodeHash = common.Keccak256Hash(code)
	obj.code = code
	obj.codeSet = true
	obj.dirty = true
}

// GetCode returns addr's contract code, resolving through the Store's
// code-hash mapping if not staged locally.
func (s *StateDB) GetCode(addr common.Address) []byte {
	obj := s.getObject(addr)
	if obj.codeSet {
		return obj.code
	}
	if obj.account.CodeHash == common.EmptyCodeHash {
		return nil
	}
	code, err := s.store.GetCode(obj.account.CodeHash)
	if err != nil {
		return nil
	}
	return code
}

// SelfDestruct removes addr's account when removeAccount is true (EIP-6780's
// "created in the same transaction" carve-out, per spec §4.3 / invariant 7);
// when it is false the call changes nothing, and sweeping the balance is
// left to the caller.
func (s *StateDB) SelfDestruct(addr common.Address, removeAccount bool) {
	obj := s.getObject(addr)
	if !removeAccount {
		return
	}
	prevDeleted := obj.deleted
	prev := obj.account
	s.journal = append(s.journal, &accountChange{addr: addr, prev: prev, prevDeleted: prevDeleted})
	obj.deleted = true
	obj.account = types.EmptyAccount()
	obj.dirty = true
}

// AddLog appends a log to the current frame's accumulated list.
func (s *StateDB) AddLog(l *types.Log) {
	s.journal = append(s.journal, &logChange{})
	s.logs = append(s.logs, l)
}

// Logs returns every log accumulated so far (not yet discarded by a revert).
func (s *StateDB) Logs() []*types.Log { return s.logs }

// AddRefund increases the gas refund counter tracked for the current
// transaction (SSTORE clearing a nonzero slot, etc).
func (s *StateDB) AddRefund(gas uint64) {
	prev := s.refund
	s.journal = append(s.journal, &refundChange{prev: prev})
	s.refund += gas
}

// SubRefund decreases the gas refund counter (re-dirtying a previously
// cleared slot).
func (s *StateDB) SubRefund(gas uint64) {
	prev := s.refund
	s.journal = append(s.journal, &refundChange{prev: prev})
	if gas > s.refund {
		s.refund = 0
		return
	}
	s.refund -= gas
}

// Refund returns the accumulated gas-refund counter.
func (s *StateDB) Refund() uint64 { return s.refund }

// AddressInAccessList reports whether addr has been touched this
// transaction (warm per EIP-2929).
func (s *StateDB) AddressInAccessList(addr common.Address) bool {
	return s.warmAccounts.Contains(addr)
}

// AddAddressToAccessList marks addr warm, journaling the change, and
// reports whether it was cold (the caller charges the cold-access gas
// delta only on a true return).
func (s *StateDB) AddAddressToAccessList(addr common.Address) (wasCold bool) {
	if s.warmAccounts.Contains(addr) {
		return false
	}
	s.journal = append(s.journal, &accessListAddrChange{addr: addr})
	s.warmAccounts.Add(addr)
	return true
}

// SlotInAccessList reports whether (addr, slot) has been touched this
// transaction.
func (s *StateDB) SlotInAccessList(addr common.Address, slot common.Hash) bool {
	return s.warmStorage.Contains(storageKey{addr, slot})
}

// AddSlotToAccessList marks (addr, slot) warm, reporting whether it was
// cold.
func (s *StateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) (wasCold bool) {
	sk := storageKey{addr, slot}
	if s.warmStorage.Contains(sk) {
		return false
	}
	s.journal = append(s.journal, &accessListSlotChange{key: sk})
	s.warmStorage.Add(sk)
	return true
}

// Snapshot returns an id that RevertTo can later roll back to, per spec
// §4.4's "cheap stacking for sub-call rollback".
func (s *StateDB) Snapshot() int {
	return len(s.journal)
}

// RevertTo undoes every journaled mutation recorded since snapshot id,
// restoring every touched account and slot (invariant: a revert to
// snapshot S restores every account and slot read/written since S).
func (s *StateDB) RevertTo(id int) {
	for i := len(s.journal) - 1; i >= id; i-- {
		s.journal[i].revert(s)
	}
	s.journal = s.journal[:id]
}

// AccountUpdate is one account's net change at the end of a block, handed
// to the executor to apply to the trie in one pass (spec §4.4).
type AccountUpdate struct {
	Address common.Address
	Account types.Account
	Deleted bool
	Code    []byte // non-nil iff new code was installed this block
	Storage map[common.Hash]common.Hash
}

// TakeUpdates returns every account touched since the overlay was opened,
// for the executor to apply to the state trie in one pass.
func (s *StateDB) TakeUpdates() []AccountUpdate {
	var updates []AccountUpdate
	for addr, obj := range s.accounts {
		if !obj.dirty && !obj.deleted {
			continue
		}
		upd := AccountUpdate{Address: addr, Account: obj.account, Deleted: obj.deleted}
		if obj.codeSet {
			upd.Code = obj.code
		}
		storageUpdates := make(map[common.Hash]common.Hash)
		for sk, v := range s.storage {
			if sk.addr == addr {
				storageUpdates[sk.slot] = v
			}
		}
		if len(storageUpdates) > 0 {
			upd.Storage = storageUpdates
		}
		updates = append(updates, upd)
	}
	return updates
}

// Commit applies every dirty account (and its storage) to the underlying
// tries and persists them, returning the new state root. Storage tries are
// committed first so each account's StorageRoot is correct before the
// account tuple itself is written into the state trie.
func (s *StateDB) Commit() (common.Hash, error) {
	for _, upd := range s.TakeUpdates() {
		if upd.Deleted {
			if _, err := s.trie.Remove(upd.Address.Bytes()); err != nil {
				return common.Hash{}, err
			}
			continue
		}
		acct := upd.Account
		if len(upd.Storage) > 0 {
			storageTrie := trie.NewStorage(acct.StorageRoot, upd.Address.Hash(), s.store.TrieBackend())
			for slot, v := range upd.Storage {
				if v == (common.Hash{}) {
					if _, err := storageTrie.Remove(slot.Bytes()); err != nil {
						return common.Hash{}, err
					}
					continue
				}
				if err := storageTrie.Insert(slot.Bytes(), encodeStorageValue(v)); err != nil {
					return common.Hash{}, err
				}
			}
			root, err := storageTrie.Commit()
			if err != nil {
				return common.Hash{}, err
			}
			acct.StorageRoot = root
		}
		if upd.Code != nil {
			s.store.PutCode(upd.Code)
		}
		if err := s.trie.Insert(upd.Address.Bytes(), acct.EncodeRLP()); err != nil {
			return common.Hash{}, err
		}
	}
	return s.trie.Commit()
}

// encodeStorageValue mirrors the teacher's trie storage convention: a slot
// holding zero is never stored (absence means zero, invariant 3); any other
// value is RLP-encoded as its minimal big-endian byte string.
func encodeStorageValue(v common.Hash) []byte {
	return rlp.Encode(rlp.BigInt(new(big.Int).SetBytes(v.Bytes())))
}

func decodeStorageValue(raw []byte) (common.Hash, error) {
	val, rest, err := rlp.Decode(raw)
	if err != nil || len(rest) != 0 {
		return common.Hash{}, types.ErrMalformedAccount
	}
	b, err := val.Bytes()
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b), nil
}
