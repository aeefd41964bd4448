package rpc

import (
	"encoding/json"
	"math/big"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/executor"
	"github.com/luxfi/execd/core/mempool"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/core/vm"
	"github.com/luxfi/execd/trie"
)

// handlerFunc answers one JSON-RPC call; params is the raw, still-encoded
// "params" array from the request.
type handlerFunc func(b *Backend, params json.RawMessage) (any, *Error)

// methodTable is the flat eth_/admin_/debug_ namespace spec §6 names.
var methodTable = map[string]handlerFunc{
	"eth_chainId":                   ethChainID,
	"eth_blockNumber":               ethBlockNumber,
	"eth_getBlockByHash":            ethGetBlockByHash,
	"eth_getBlockByNumber":          ethGetBlockByNumber,
	"eth_getTransactionByHash":      ethGetTransactionByHash,
	"eth_getTransactionReceipt":     ethGetTransactionReceipt,
	"eth_getBalance":                ethGetBalance,
	"eth_getCode":                   ethGetCode,
	"eth_getStorageAt":              ethGetStorageAt,
	"eth_getTransactionCount":       ethGetTransactionCount,
	"eth_getLogs":                   ethGetLogs,
	"eth_getProof":                  ethGetProof,
	"eth_gasPrice":                  ethGasPrice,
	"eth_estimateGas":               ethEstimateGas,
	"eth_call":                      ethCall,
	"eth_sendRawTransaction":        ethSendRawTransaction,
	"eth_syncing":                   ethSyncing,
	"admin_nodeInfo":                adminNodeInfo,
	"debug_getRawBlock":             debugGetRawBlock,
}

func decodeParams(params json.RawMessage, out ...any) *Error {
	var raw []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &raw); err != nil {
			return ErrInvalidParams(err.Error())
		}
	}
	for i, o := range out {
		if i >= len(raw) {
			return nil // missing trailing params default to the zero value
		}
		if err := json.Unmarshal(raw[i], o); err != nil {
			return ErrInvalidParams(err.Error())
		}
	}
	return nil
}

func ethChainID(b *Backend, _ json.RawMessage) (any, *Error) {
	return hexBig{b.chainID()}, nil
}

func ethBlockNumber(b *Backend, _ json.RawMessage) (any, *Error) {
	return hexUint64(b.Store.ChainData().Latest), nil
}

func blockByNumber(b *Backend, number uint64, fullTx bool) (any, *Error) {
	header, err := b.headerByNumber(number)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, ErrInternal(err)
	}
	body, err := b.Store.GetBody(header.Hash())
	if err != nil {
		return nil, ErrInternal(err)
	}
	return newBlockView(header, body, fullTx), nil
}

func ethGetBlockByNumber(b *Backend, params json.RawMessage) (any, *Error) {
	var ref string
	var fullTx bool
	if e := decodeParams(params, &ref, &fullTx); e != nil {
		return nil, e
	}
	number, err := resolveBlockNumber(ref, b.Store.ChainData())
	if err != nil {
		return nil, ErrInvalidParams(err.Error())
	}
	result, e := blockByNumber(b, number, fullTx)
	return result, e
}

func ethGetBlockByHash(b *Backend, params json.RawMessage) (any, *Error) {
	var hash common.Hash
	var fullTx bool
	if e := decodeParams(params, &hash, &fullTx); e != nil {
		return nil, e
	}
	header, err := b.headerByHash(hash)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, ErrInternal(err)
	}
	body, err := b.Store.GetBody(hash)
	if err != nil {
		return nil, ErrInternal(err)
	}
	return newBlockView(header, body, fullTx), nil
}

// findTransaction scans the canonical chain's bodies for hash, since the
// persistence layout (spec §6) indexes receipts and bodies by block hash
// only, not by transaction hash. The pending pool is checked first, since
// a not-yet-mined transaction is the common case for repeated polling.
func findTransaction(b *Backend, hash common.Hash) (tx *types.Transaction, header *types.Header, idx uint, ok bool) {
	if b.Pool != nil {
		if pending := b.Pool.Get(hash); pending != nil {
			return pending, nil, 0, true
		}
	}
	cd := b.Store.ChainData()
	for n := cd.Latest + 1; n > cd.Earliest; n-- {
		h, err := b.headerByNumber(n - 1)
		if err != nil {
			continue
		}
		body, err := b.Store.GetBody(h.Hash())
		if err != nil {
			continue
		}
		for i, t := range body.Transactions {
			if t.Hash() == hash {
				return t, h, uint(i), true
			}
		}
	}
	return nil, nil, 0, false
}

func ethGetTransactionByHash(b *Backend, params json.RawMessage) (any, *Error) {
	var hash common.Hash
	if e := decodeParams(params, &hash); e != nil {
		return nil, e
	}
	if tx, header, idx, ok := findTransaction(b, hash); ok {
		var blockHash common.Hash
		var number uint64
		if header != nil {
			blockHash, number = header.Hash(), header.Number
		}
		return newTxView(tx, blockHash, number, idx), nil
	}
	return nil, nil
}

func ethGetTransactionReceipt(b *Backend, params json.RawMessage) (any, *Error) {
	var hash common.Hash
	if e := decodeParams(params, &hash); e != nil {
		return nil, e
	}
	tx, header, idx, ok := findTransaction(b, hash)
	if !ok || header == nil {
		return nil, nil
	}
	receipts, err := b.Store.GetReceipts(header.Hash())
	if err != nil || int(idx) >= len(receipts) {
		return nil, nil
	}
	from, _ := txSender(tx)
	return newReceiptView(receipts[idx], from, tx.To), nil
}

func ethGetBalance(b *Backend, params json.RawMessage) (any, *Error) {
	var addr common.Address
	var ref string
	if e := decodeParams(params, &addr, &ref); e != nil {
		return nil, e
	}
	header, e := headerForRef(b, ref)
	if e != nil || header == nil {
		return hexBig{new(big.Int)}, e
	}
	sdb := b.stateAt(header)
	return hexBig{sdb.GetBalance(addr)}, nil
}

func ethGetTransactionCount(b *Backend, params json.RawMessage) (any, *Error) {
	var addr common.Address
	var ref string
	if e := decodeParams(params, &addr, &ref); e != nil {
		return nil, e
	}
	header, e := headerForRef(b, ref)
	if e != nil || header == nil {
		return hexUint64(0), e
	}
	sdb := b.stateAt(header)
	return hexUint64(sdb.GetNonce(addr)), nil
}

func ethGetCode(b *Backend, params json.RawMessage) (any, *Error) {
	var addr common.Address
	var ref string
	if e := decodeParams(params, &addr, &ref); e != nil {
		return nil, e
	}
	header, e := headerForRef(b, ref)
	if e != nil || header == nil {
		return hexBytes(nil), e
	}
	sdb := b.stateAt(header)
	return hexBytes(sdb.GetCode(addr)), nil
}

func ethGetStorageAt(b *Backend, params json.RawMessage) (any, *Error) {
	var addr common.Address
	var slot common.Hash
	var ref string
	if e := decodeParams(params, &addr, &slot, &ref); e != nil {
		return nil, e
	}
	header, e := headerForRef(b, ref)
	if e != nil || header == nil {
		return common.Hash{}, e
	}
	sdb := b.stateAt(header)
	return sdb.GetStorage(addr, slot), nil
}

func ethGetLogs(b *Backend, params json.RawMessage) (any, *Error) {
	var filter struct {
		FromBlock string         `json:"fromBlock"`
		ToBlock   string         `json:"toBlock"`
		Address   *common.Address `json:"address"`
		Topics    []common.Hash  `json:"topics"`
		BlockHash *common.Hash   `json:"blockHash"`
	}
	if e := decodeParamsObj(params, &filter); e != nil {
		return nil, e
	}
	cd := b.Store.ChainData()
	from, to := cd.Earliest, cd.Latest
	if filter.FromBlock != "" {
		if n, err := resolveBlockNumber(filter.FromBlock, cd); err == nil {
			from = n
		}
	}
	if filter.ToBlock != "" {
		if n, err := resolveBlockNumber(filter.ToBlock, cd); err == nil {
			to = n
		}
	}
	if filter.BlockHash != nil {
		if n, err := b.Store.GetNumberByHash(*filter.BlockHash); err == nil {
			from, to = n, n
		}
	}
	var out []*logView
	for n := from; n <= to; n++ {
		header, err := b.headerByNumber(n)
		if err != nil {
			continue
		}
		receipts, err := b.Store.GetReceipts(header.Hash())
		if err != nil {
			continue
		}
		for _, r := range receipts {
			for _, l := range r.Logs {
				if filter.Address != nil && l.Address != *filter.Address {
					continue
				}
				if !matchTopics(l.Topics, filter.Topics) {
					continue
				}
				out = append(out, newLogView(l))
			}
		}
	}
	return out, nil
}

func matchTopics(logTopics, wanted []common.Hash) bool {
	if len(wanted) == 0 {
		return true
	}
	if len(wanted) > len(logTopics) {
		return false
	}
	for i, w := range wanted {
		if w != (common.Hash{}) && w != logTopics[i] {
			return false
		}
	}
	return true
}

// proofView is the JSON shape of eth_getProof's result: the account tuple
// plus a Merkle proof for the account itself and each requested slot.
type proofView struct {
	Address      common.Address   `json:"address"`
	Balance      hexBig           `json:"balance"`
	Nonce        hexUint64        `json:"nonce"`
	CodeHash     common.Hash      `json:"codeHash"`
	StorageHash  common.Hash      `json:"storageHash"`
	AccountProof []hexBytes       `json:"accountProof"`
	StorageProof []storageProof   `json:"storageProof"`
}

type storageProof struct {
	Key   common.Hash `json:"key"`
	Value hexBig      `json:"value"`
	Proof []hexBytes  `json:"proof"`
}

func ethGetProof(b *Backend, params json.RawMessage) (any, *Error) {
	var addr common.Address
	var slots []common.Hash
	var ref string
	if e := decodeParams(params, &addr, &slots, &ref); e != nil {
		return nil, e
	}
	header, e := headerForRef(b, ref)
	if e != nil || header == nil {
		return nil, e
	}
	sdb := b.stateAt(header)
	acct := sdb.GetAccount(addr)
	v := &proofView{
		Address:     addr,
		Balance:     hexBig{acct.Balance},
		Nonce:       hexUint64(acct.Nonce),
		CodeHash:    acct.CodeHash,
		StorageHash: acct.StorageRoot,
	}

	accountTrie := trie.New(header.StateRoot, common.Hash{}, b.Store.TrieBackend())
	if proof, err := accountTrie.Prove(addr.Bytes()); err == nil {
		v.AccountProof = toHexBytesSlice(proof)
	}

	storageTrie := trie.NewStorage(acct.StorageRoot, addr.Hash(), b.Store.TrieBackend())
	for _, slot := range slots {
		sp := storageProof{
			Key:   slot,
			Value: hexBig{new(big.Int).SetBytes(sdb.GetStorage(addr, slot).Bytes())},
		}
		if proof, err := storageTrie.Prove(slot.Bytes()); err == nil {
			sp.Proof = toHexBytesSlice(proof)
		}
		v.StorageProof = append(v.StorageProof, sp)
	}
	return v, nil
}

func toHexBytesSlice(raw [][]byte) []hexBytes {
	out := make([]hexBytes, len(raw))
	for i, r := range raw {
		out[i] = r
	}
	return out
}

func ethGasPrice(b *Backend, _ json.RawMessage) (any, *Error) {
	header, err := b.headerByNumber(b.Store.ChainData().Latest)
	if err != nil || header.BaseFee == nil {
		return hexBig{big.NewInt(1)}, nil
	}
	tip := big.NewInt(1)
	return hexBig{new(big.Int).Add(header.BaseFee, tip)}, nil
}

// callArgs is the shared argument shape for eth_call/eth_estimateGas.
type callArgs struct {
	From     *common.Address `json:"from"`
	To       *common.Address `json:"to"`
	Gas      *hexUint64      `json:"gas"`
	GasPrice *string         `json:"gasPrice"`
	Value    *string         `json:"value"`
	Data     hexBytes        `json:"data"`
}

func (a callArgs) value() *big.Int {
	if a.Value == nil {
		return new(big.Int)
	}
	v, _ := parseHexBig(*a.Value)
	if v == nil {
		v = new(big.Int)
	}
	return v
}

func (a callArgs) gasLimit(headerLimit uint64) uint64 {
	if a.Gas == nil {
		return headerLimit
	}
	return uint64(*a.Gas)
}

func ethCall(b *Backend, params json.RawMessage) (any, *Error) {
	var args callArgs
	var ref string
	if e := decodeParams(params, &args, &ref); e != nil {
		return nil, e
	}
	header, e := headerForRef(b, ref)
	if e != nil || header == nil {
		return nil, e
	}
	ret, _, err := runCall(b, header, args, true)
	if err != nil {
		return nil, ErrExecution(err)
	}
	return hexBytes(ret), nil
}

func ethEstimateGas(b *Backend, params json.RawMessage) (any, *Error) {
	var args callArgs
	if e := decodeParams(params, &args); e != nil {
		return nil, e
	}
	header, err := b.headerByNumber(b.Store.ChainData().Latest)
	if err != nil {
		return nil, ErrInternal(err)
	}
	_, gasUsed, err := runCall(b, header, args, false)
	if err != nil {
		return nil, ErrExecution(err)
	}
	return hexUint64(gasUsed), nil
}

// runCall executes args as a message call against a fresh, throwaway State
// View opened on header's post-state root; readOnly selects StaticCall
// (eth_call never mutates the persisted trie either way, since the view is
// discarded, but the static flag also forbids value transfer's side
// effects within the call itself).
func runCall(b *Backend, header *types.Header, args callArgs, readOnly bool) ([]byte, uint64, error) {
	sdb := b.stateAt(header)
	blockCtx := executor.NewBlockContext(header, b.Store)
	blockCtx.GetHash = executor.GetHashFn(header, b.Store)

	var from common.Address
	if args.From != nil {
		from = *args.From
	}
	txCtx := vm.TxContext{Origin: from, GasPrice: new(big.Int)}
	evm := vm.NewEVM(blockCtx, txCtx, sdb, vm.ChainConfig{ChainID: b.chainID()}, vm.Config{NoBaseFee: true})

	gas := args.gasLimit(header.GasLimit)
	var (
		ret      []byte
		leftOver uint64
		err      error
	)
	if args.To != nil {
		if readOnly {
			ret, leftOver, err = evm.StaticCall(from, *args.To, args.Data, gas)
		} else {
			ret, leftOver, err = evm.Call(from, *args.To, args.Data, gas, args.value())
		}
	} else {
		ret, _, leftOver, err = evm.Create(from, args.Data, gas, args.value())
	}
	return ret, gas - leftOver, err
}

func ethSendRawTransaction(b *Backend, params json.RawMessage) (any, *Error) {
	var raw hexBytes
	if e := decodeParams(params, &raw); e != nil {
		return nil, e
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, ErrInvalidParams(err.Error())
	}
	if err := b.Pool.Add(tx, nil); err != nil {
		if err == mempool.ErrMissingSidecar {
			return nil, ErrInvalidParams("blob transaction requires a sidecar; use the dedicated blob submission path")
		}
		return nil, ErrInvalidParams(err.Error())
	}
	return tx.Hash(), nil
}

func ethSyncing(b *Backend, _ json.RawMessage) (any, *Error) {
	return false, nil
}

type nodeInfoView struct {
	Name string `json:"name"`
}

func adminNodeInfo(b *Backend, _ json.RawMessage) (any, *Error) {
	return &nodeInfoView{Name: "execd"}, nil
}

func debugGetRawBlock(b *Backend, params json.RawMessage) (any, *Error) {
	var ref string
	if e := decodeParams(params, &ref); e != nil {
		return nil, e
	}
	number, err := resolveBlockNumber(ref, b.Store.ChainData())
	if err != nil {
		return nil, ErrInvalidParams(err.Error())
	}
	header, err := b.headerByNumber(number)
	if err != nil {
		return nil, ErrInternal(err)
	}
	return hexBytes(header.MarshalBinary()), nil
}

func headerForRef(b *Backend, ref string) (*types.Header, *Error) {
	number, err := resolveBlockNumber(ref, b.Store.ChainData())
	if err != nil {
		return nil, ErrInvalidParams(err.Error())
	}
	header, err := b.headerByNumber(number)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, ErrInternal(err)
	}
	return header, nil
}

func decodeParamsObj(params json.RawMessage, out any) *Error {
	var raw []json.RawMessage
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, &raw); err != nil {
		return ErrInvalidParams(err.Error())
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw[0], out); err != nil {
		return ErrInvalidParams(err.Error())
	}
	return nil
}
