package state

import (
	"math/big"
	"testing"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/triedb"
)

func newTestStateDB() *StateDB {
	st := store.New(triedb.NewMemoryDB())
	return New(common.Hash{}, st)
}

func TestStateDBGetMissingAccountIsEmpty(t *testing.T) {
	s := newTestStateDB()
	addr := common.HexToAddress("0x01")
	acct := s.GetAccount(addr)
	if !acct.IsEmpty() {
		t.Fatalf("expected empty account, got %+v", acct)
	}
	if v := s.GetStorage(addr, common.HexToHash("0x01")); v != (common.Hash{}) {
		t.Fatalf("expected zero storage on miss, got %v", v)
	}
}

func TestStateDBBalanceNonceRoundTrip(t *testing.T) {
	s := newTestStateDB()
	addr := common.HexToAddress("0x02")
	s.AddBalance(addr, big.NewInt(100))
	s.SubBalance(addr, big.NewInt(40))
	s.IncNonce(addr)
	acct := s.GetAccount(addr)
	if acct.Balance.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("expected balance 60, got %v", acct.Balance)
	}
	if acct.Nonce != 1 {
		t.Fatalf("expected nonce 1, got %d", acct.Nonce)
	}
}

func TestStateDBSnapshotRevert(t *testing.T) {
	s := newTestStateDB()
	addr := common.HexToAddress("0x03")
	s.AddBalance(addr, big.NewInt(10))

	id := s.Snapshot()
	s.AddBalance(addr, big.NewInt(90))
	s.IncNonce(addr)
	s.SetStorage(addr, common.HexToHash("0x01"), common.HexToHash("0xff"))

	if got := s.GetAccount(addr).Balance; got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected balance 100 before revert, got %v", got)
	}

	s.RevertTo(id)

	acct := s.GetAccount(addr)
	if acct.Balance.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("expected balance restored to 10, got %v", acct.Balance)
	}
	if acct.Nonce != 0 {
		t.Fatalf("expected nonce restored to 0, got %d", acct.Nonce)
	}
	if v := s.GetStorage(addr, common.HexToHash("0x01")); v != (common.Hash{}) {
		t.Fatalf("expected storage restored to zero, got %v", v)
	}
}

func TestStateDBNestedSnapshotRevert(t *testing.T) {
	s := newTestStateDB()
	addr := common.HexToAddress("0x04")

	outer := s.Snapshot()
	s.AddBalance(addr, big.NewInt(5))
	inner := s.Snapshot()
	s.AddBalance(addr, big.NewInt(5))
	s.RevertTo(inner)
	if got := s.GetAccount(addr).Balance; got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("expected balance 5 after inner revert, got %v", got)
	}
	s.RevertTo(outer)
	if got := s.GetAccount(addr).Balance; got.Sign() != 0 {
		t.Fatalf("expected balance 0 after outer revert, got %v", got)
	}
}

func TestStateDBAccessListWarmCold(t *testing.T) {
	s := newTestStateDB()
	addr := common.HexToAddress("0x05")
	if !s.AddAddressToAccessList(addr) {
		t.Fatalf("expected first access to be cold")
	}
	if s.AddAddressToAccessList(addr) {
		t.Fatalf("expected second access to be warm")
	}
	if !s.AddressInAccessList(addr) {
		t.Fatalf("expected address to be in access list")
	}

	slot := common.HexToHash("0x01")
	id := s.Snapshot()
	if !s.AddSlotToAccessList(addr, slot) {
		t.Fatalf("expected first slot access to be cold")
	}
	s.RevertTo(id)
	if s.SlotInAccessList(addr, slot) {
		t.Fatalf("expected slot access-list membership reverted")
	}
}

func TestStateDBTransientStorageResets(t *testing.T) {
	s := newTestStateDB()
	addr := common.HexToAddress("0x06")
	key := common.HexToHash("0x01")
	s.SetTransientStorage(addr, key, common.HexToHash("0x2a"))
	if got := s.GetTransientStorage(addr, key); got != common.HexToHash("0x2a") {
		t.Fatalf("expected transient value set, got %v", got)
	}
	s.ResetTransient()
	if got := s.GetTransientStorage(addr, key); got != (common.Hash{}) {
		t.Fatalf("expected transient storage cleared, got %v", got)
	}
}

func TestStateDBCodeAndSelfDestruct(t *testing.T) {
	s := newTestStateDB()
	addr := common.HexToAddress("0x07")
	code := []byte{0x60, 0x01, 0x60, 0x02, 0x01}
	s.SetCode(addr, code)
	if got := s.GetCode(addr); string(got) != string(code) {
		t.Fatalf("expected code round trip, got %x", got)
	}
	acct := s.GetAccount(addr)
	if acct.CodeHash != common.Keccak256Hash(code) {
		t.Fatalf("expected code hash to match")
	}

	s.SelfDestruct(addr, true)
	if got := s.GetAccount(addr); !got.IsEmpty() {
		t.Fatalf("expected account empty after self destruct, got %+v", got)
	}
}

func TestStateDBCommitPersistsAcrossReopen(t *testing.T) {
	backend := triedb.NewMemoryDB()
	st := store.New(backend)
	s := New(common.Hash{}, st)

	addr := common.HexToAddress("0x08")
	s.AddBalance(addr, big.NewInt(777))
	s.IncNonce(addr)
	s.SetStorage(addr, common.HexToHash("0x01"), common.HexToHash("0x2a"))

	root, err := s.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if root == common.EmptyRootHash {
		t.Fatalf("expected non-empty root after commit")
	}

	reopened := New(root, st)
	acct := reopened.GetAccount(addr)
	if acct.Balance.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("expected balance to survive reopen, got %v", acct.Balance)
	}
	if acct.Nonce != 1 {
		t.Fatalf("expected nonce to survive reopen, got %d", acct.Nonce)
	}
	if v := reopened.GetStorage(addr, common.HexToHash("0x01")); v != common.HexToHash("0x2a") {
		t.Fatalf("expected storage to survive reopen, got %v", v)
	}
}

func TestStateDBTakeUpdatesOnlyDirty(t *testing.T) {
	s := newTestStateDB()
	touched := common.HexToAddress("0x09")
	untouched := common.HexToAddress("0x0a")

	s.AddBalance(touched, big.NewInt(1))
	_ = s.GetAccount(untouched) // read-only touch must not appear in updates

	updates := s.TakeUpdates()
	if len(updates) != 1 {
		t.Fatalf("expected exactly one dirty update, got %d", len(updates))
	}
	if updates[0].Address != touched {
		t.Fatalf("expected update for %v, got %v", touched, updates[0].Address)
	}
}

func TestStateDBLogsAccumulateAndRevert(t *testing.T) {
	s := newTestStateDB()
	id := s.Snapshot()
	s.AddLog(&types.Log{Address: common.HexToAddress("0x0b")})
	if len(s.Logs()) != 1 {
		t.Fatalf("expected one log, got %d", len(s.Logs()))
	}
	s.RevertTo(id)
	if len(s.Logs()) != 0 {
		t.Fatalf("expected logs reverted, got %d", len(s.Logs()))
	}
}

func TestStateDBRefundTracking(t *testing.T) {
	s := newTestStateDB()
	s.AddRefund(100)
	s.AddRefund(50)
	s.SubRefund(30)
	if s.Refund() != 120 {
		t.Fatalf("expected refund 120, got %d", s.Refund())
	}
	s.SubRefund(1000)
	if s.Refund() != 0 {
		t.Fatalf("expected refund floored at 0, got %d", s.Refund())
	}
}
