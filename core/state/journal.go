package state

import (
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
)

// accountChange undoes a full account-tuple replacement (SetAccount,
// SelfDestruct).
type accountChange struct {
	addr        common.Address
	prev        types.Account
	prevDeleted bool
}

func (c *accountChange) revert(s *StateDB) {
	obj := s.accounts[c.addr]
	obj.account = c.prev
	obj.deleted = c.prevDeleted
}

// storageChange undoes a single slot write.
type storageChange struct {
	key  storageKey
	prev common.Hash
}

func (c *storageChange) revert(s *StateDB) {
	if c.prev == (common.Hash{}) {
		delete(s.storage, c.key)
		return
	}
	s.storage[c.key] = c.prev
}

// transientChange undoes a TSTORE.
type transientChange struct {
	key    storageKey
	prev   common.Hash
	wasSet bool
}

func (c *transientChange) revert(s *StateDB) {
	if c.prev == (common.Hash{}) {
		delete(s.transient, c.key)
		return
	}
	s.transient[c.key] = c.prev
}

// balanceChange undoes an AddBalance/SubBalance.
type balanceChange struct {
	addr common.Address
	prev *big.Int
}

func (c *balanceChange) revert(s *StateDB) {
	s.accounts[c.addr].account.Balance = c.prev
}

// nonceChange undoes an IncNonce.
type nonceChange struct {
	addr common.Address
	prev uint64
}

func (c *nonceChange) revert(s *StateDB) {
	s.accounts[c.addr].account.Nonce = c.prev
}

// codeChange undoes a SetCode.
type codeChange struct {
	addr        common.Address
	prevHash    common.Hash
	prevCode    []byte
	prevCodeSet bool
}

func (c *codeChange) revert(s *StateDB) {
	obj := s.accounts[c.addr]
	obj.account.CodeHash = c.prevHash
	obj.code = c.prevCode
	obj.codeSet = c.prevCodeSet
}

// logChange undoes one AddLog by popping the last accumulated log.
type logChange struct{}

func (c *logChange) revert(s *StateDB) {
	s.logs = s.logs[:len(s.logs)-1]
}

// refundChange restores the gas-refund counter to its pre-change value.
type refundChange struct {
	prev uint64
}

func (c *refundChange) revert(s *StateDB) {
	s.refund = c.prev
}

// accessListAddrChange undoes marking an address warm. EIP-2929 access-list
// membership is never supposed to un-warm mid-transaction in practice, but
// a sub-call revert must still restore it so a later snapshot taken before
// the warm-up sees the address cold again.
type accessListAddrChange struct {
	addr common.Address
}

func (c *accessListAddrChange) revert(s *StateDB) {
	s.warmAccounts.Remove(c.addr)
}

// accessListSlotChange undoes marking a storage slot warm.
type accessListSlotChange struct {
	key storageKey
}

func (c *accessListSlotChange) revert(s *StateDB) {
	s.warmStorage.Remove(c.key)
}

// createdChange undoes marking an address as created earlier in the current
// transaction (CreateAccount), restoring EIP-6780's SELFDESTRUCT carve-out
// to whatever it was before a reverted sub-call's CREATE/CREATE2.
type createdChange struct {
	addr       common.Address
	wasCreated bool
}

func (c *createdChange) revert(s *StateDB) {
	if c.wasCreated {
		s.createdThisTx[c.addr] = true
		return
	}
	delete(s.createdThisTx, c.addr)
}
