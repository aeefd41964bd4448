package genesis

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/state"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
)

// ErrHashMismatch is returned by Commit when a datadir already has a
// persisted genesis hash that disagrees with the document being loaded —
// the genesis format's "must match subsequent loads" rule.
var ErrHashMismatch = fmt.Errorf("genesis: computed hash does not match the previously persisted genesis hash")

// Allocation is one entry of the genesis "alloc" map: a pre-funded or
// pre-deployed account.
type Allocation struct {
	Balance *big.Int
	Nonce   uint64
	Code    []byte
	Storage map[common.Hash]common.Hash
}

type allocationJSON struct {
	Balance string                       `json:"balance"`
	Nonce   *string                      `json:"nonce,omitempty"`
	Code    *string                      `json:"code,omitempty"`
	Storage map[common.Hash]common.Hash  `json:"storage,omitempty"`
}

func (a *Allocation) UnmarshalJSON(data []byte) error {
	var aux allocationJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	balance, err := parseQuantity(&aux.Balance)
	if err != nil {
		return fmt.Errorf("genesis: alloc balance: %w", err)
	}
	if balance == nil {
		balance = new(big.Int)
	}
	a.Balance = balance
	if nonce, err := parseUint64(aux.Nonce); err != nil {
		return fmt.Errorf("genesis: alloc nonce: %w", err)
	} else {
		a.Nonce = nonce
	}
	if aux.Code != nil {
		a.Code = common.FromHex(*aux.Code)
	}
	a.Storage = aux.Storage
	return nil
}

// Genesis is the full genesis JSON document per spec §6.
type Genesis struct {
	Config     ChainConfig
	Alloc      map[common.Address]Allocation
	Nonce      uint64
	Timestamp  uint64
	ExtraData  []byte
	GasLimit   uint64
	Difficulty *big.Int
	ParentHash common.Hash
	BaseFee    *big.Int // present only when Config already activates London at block 0
}

type genesisJSON struct {
	Config     ChainConfig                 `json:"config"`
	Alloc      map[common.Address]Allocation `json:"alloc"`
	Nonce      *string                     `json:"nonce"`
	Timestamp  *string                     `json:"timestamp"`
	ExtraData  *string                     `json:"extraData"`
	GasLimit   *string                     `json:"gasLimit"`
	Difficulty *string                     `json:"difficulty"`
	ParentHash *common.Hash                `json:"parentHash"`
	BaseFee    *string                     `json:"baseFeePerGas"`
}

// Load reads and parses a genesis JSON document from path.
func Load(path string) (*Genesis, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("genesis: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a genesis JSON document from raw bytes.
func Parse(raw []byte) (*Genesis, error) {
	var aux genesisJSON
	if err := json.Unmarshal(raw, &aux); err != nil {
		return nil, fmt.Errorf("genesis: decode: %w", err)
	}
	g := &Genesis{Config: aux.Config, Alloc: aux.Alloc}
	var err error
	if g.Nonce, err = parseUint64(aux.Nonce); err != nil {
		return nil, err
	}
	if g.Timestamp, err = parseUint64(aux.Timestamp); err != nil {
		return nil, err
	}
	if aux.ExtraData != nil {
		g.ExtraData = common.FromHex(*aux.ExtraData)
	}
	if g.GasLimit, err = parseUint64(aux.GasLimit); err != nil {
		return nil, err
	}
	if g.GasLimit == 0 {
		g.GasLimit = 30_000_000
	}
	if g.Difficulty, err = parseQuantity(aux.Difficulty); err != nil {
		return nil, err
	}
	if g.Difficulty == nil {
		g.Difficulty = new(big.Int)
	}
	if aux.ParentHash != nil {
		g.ParentHash = *aux.ParentHash
	}
	if g.BaseFee, err = parseQuantity(aux.BaseFee); err != nil {
		return nil, err
	}
	if g.BaseFee == nil && g.Config.IsLondon(0) {
		g.BaseFee = big.NewInt(1_000_000_000) // EIP-1559's default initial base fee
	}
	return g, nil
}

// ToBlock applies the allocation map to a fresh State View over st and
// assembles the genesis header. It does not persist anything; call Commit
// to write the header/body/canonical index.
func (g *Genesis) ToBlock(st *store.Store) (*types.Header, error) {
	sdb := state.New(common.Hash{}, st)
	for addr, alloc := range g.Alloc {
		sdb.SetNonce(addr, alloc.Nonce)
		if alloc.Balance != nil && alloc.Balance.Sign() != 0 {
			sdb.AddBalance(addr, alloc.Balance)
		}
		if len(alloc.Code) > 0 {
			sdb.SetCode(addr, alloc.Code)
		}
		for key, value := range alloc.Storage {
			sdb.SetStorage(addr, key, value)
		}
	}
	root, err := sdb.Commit()
	if err != nil {
		return nil, fmt.Errorf("genesis: commit state: %w", err)
	}

	header := &types.Header{
		ParentHash: g.ParentHash,
		StateRoot:  root,
		TxRoot:     common.EmptyRootHash,
		ReceiptRoot: common.EmptyRootHash,
		Difficulty: g.Difficulty,
		Number:     0,
		GasLimit:   g.GasLimit,
		Timestamp:  g.Timestamp,
		ExtraData:  g.ExtraData,
		Nonce:      g.Nonce,
		BaseFee:    g.BaseFee,
	}
	return header, nil
}

// Commit materializes the genesis block into st: writes its header, an
// empty body, and sets it canonical at number 0. If st already has a
// chain-data record for the genesis hash, the newly computed hash must
// match it exactly, per spec §6's "must match subsequent loads" rule.
func (g *Genesis) Commit(st *store.Store) (*types.Header, error) {
	header, err := g.ToBlock(st)
	if err != nil {
		return nil, err
	}
	hash := header.Hash()

	cd := st.ChainData()
	if !cd.GenesisHash.IsZero() {
		if cd.GenesisHash != hash {
			return nil, ErrHashMismatch
		}
		return header, nil
	}

	if err := st.PutHeader(header); err != nil {
		return nil, fmt.Errorf("genesis: put header: %w", err)
	}
	if err := st.PutBody(hash, types.Body{}); err != nil {
		return nil, fmt.Errorf("genesis: put body: %w", err)
	}
	st.SetCanonical(0, hash)
	cd.GenesisHash = hash
	st.SetChainData(cd)
	return header, nil
}
