package rpc

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/mempool"
	"github.com/luxfi/execd/core/state"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/genesis"
	"github.com/luxfi/execd/internal/metrics"
	"github.com/luxfi/execd/internal/xlog"
	"github.com/luxfi/execd/triedb"
)

var allocAddr = common.HexToAddress("0x0000000000000000000000000000000000000001")
var allocBalance, _ = new(big.Int).SetString("56bc75e2d63100000", 16)

func testChainConfig() genesis.ChainConfig {
	zero := big.NewInt(0)
	zeroTime := uint64(0)
	return genesis.ChainConfig{
		ChainID:             big.NewInt(0x539),
		HomesteadBlock:      zero,
		EIP150Block:         zero,
		EIP155Block:         zero,
		EIP158Block:         zero,
		ByzantiumBlock:      zero,
		ConstantinopleBlock: zero,
		PetersburgBlock:     zero,
		IstanbulBlock:       zero,
		MuirGlacierBlock:    zero,
		BerlinBlock:         zero,
		LondonBlock:         zero,
		ShanghaiTime:        &zeroTime,
		CancunTime:          &zeroTime,
	}
}

// newTestBackend commits a genesis block allocating extraAlloc on top of
// allocAddr's fixed balance into a fresh in-memory store, then marks it
// canonical-current the way the CLI's startup path would.
func newTestBackend(t *testing.T, extraAlloc map[common.Address]genesis.Allocation) *Backend {
	t.Helper()
	alloc := map[common.Address]genesis.Allocation{
		allocAddr: {Balance: new(big.Int).Set(allocBalance)},
	}
	for addr, a := range extraAlloc {
		alloc[addr] = a
	}
	g := &genesis.Genesis{
		Config:     testChainConfig(),
		Alloc:      alloc,
		GasLimit:   30_000_000,
		Difficulty: new(big.Int),
		BaseFee:    big.NewInt(1_000_000_000),
	}

	st := store.New(triedb.NewMemoryDB())
	header, err := g.Commit(st)
	require.NoError(t, err)

	cd := st.ChainData()
	cd.ChainID = g.Config.ChainID
	cd.Latest = header.Number
	cd.Earliest = header.Number
	cd.Safe = header.Number
	cd.Finalized = header.Number
	cd.Pending = header.Number
	st.SetChainData(cd)

	sdb := state.New(header.StateRoot, st)
	pool := mempool.New(mempool.DefaultConfig(), sdb)
	return NewBackend(st, pool, &g.Config)
}

func rawParams(t *testing.T, vals ...any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(vals)
	require.NoError(t, err)
	return raw
}

func TestEthChainIDAndBlockNumber(t *testing.T) {
	b := newTestBackend(t, nil)

	res, rpcErr := ethChainID(b, nil)
	require.Nil(t, rpcErr)
	require.Equal(t, hexBig{big.NewInt(0x539)}, res)

	res, rpcErr = ethBlockNumber(b, nil)
	require.Nil(t, rpcErr)
	require.Equal(t, hexUint64(0), res)
}

func TestEthGetBalanceResolvesBlockTags(t *testing.T) {
	b := newTestBackend(t, nil)

	res, rpcErr := ethGetBalance(b, rawParams(t, allocAddr, "latest"))
	require.Nil(t, rpcErr)
	bal, ok := res.(hexBig)
	require.True(t, ok)
	require.Equal(t, 0, bal.Int.Cmp(allocBalance))
}

func TestEthGetBalanceUnknownAddressIsZero(t *testing.T) {
	b := newTestBackend(t, nil)

	res, rpcErr := ethGetBalance(b, rawParams(t, common.Address{0xaa}, "latest"))
	require.Nil(t, rpcErr)
	require.Equal(t, 0, res.(hexBig).Int.Sign())
}

func TestEthGetCodeEmptyForEOA(t *testing.T) {
	b := newTestBackend(t, nil)

	res, rpcErr := ethGetCode(b, rawParams(t, allocAddr, "latest"))
	require.Nil(t, rpcErr)
	require.Empty(t, res.(hexBytes))
}

func TestEthGetTransactionCountZeroForFreshAccount(t *testing.T) {
	b := newTestBackend(t, nil)

	res, rpcErr := ethGetTransactionCount(b, rawParams(t, allocAddr, "latest"))
	require.Nil(t, rpcErr)
	require.Equal(t, hexUint64(0), res)
}

func TestEthGetBlockByNumberLatestReturnsGenesis(t *testing.T) {
	b := newTestBackend(t, nil)

	res, rpcErr := ethGetBlockByNumber(b, rawParams(t, "latest", false))
	require.Nil(t, rpcErr)
	view, ok := res.(*blockView)
	require.True(t, ok)
	require.Equal(t, hexUint64(0), view.Number)
}

func TestEthGetBlockByNumberUnknownReturnsNil(t *testing.T) {
	b := newTestBackend(t, nil)

	res, rpcErr := ethGetBlockByNumber(b, rawParams(t, "0x64", false))
	require.Nil(t, rpcErr)
	require.Nil(t, res)
}

func signLegacyTx(t *testing.T, tx *types.Transaction, key *secp256k1.PrivateKey) {
	t.Helper()
	hash := tx.SigningHash()
	sig := ecdsa.SignCompact(key, hash.Bytes(), false)
	rawV := sig[0] - 27
	tx.R = new(big.Int).SetBytes(sig[1:33])
	tx.S = new(big.Int).SetBytes(sig[33:65])
	v := new(big.Int).Lsh(tx.ChainID, 1)
	v.Add(v, big.NewInt(35+int64(rawV)))
	tx.V = v
}

func pubkeyToAddress(pub *secp256k1.PublicKey) common.Address {
	uncompressed := pub.SerializeUncompressed()
	hash := common.Keccak256(uncompressed[1:])
	var addr common.Address
	copy(addr[:], hash[12:])
	return addr
}

func TestEthSendRawTransactionAcceptsWellFormedTx(t *testing.T) {
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	from := pubkeyToAddress(key.PubKey())

	b := newTestBackend(t, map[common.Address]genesis.Allocation{
		from: {Balance: big.NewInt(1_000_000_000_000_000_000)},
	})

	tx := &types.Transaction{
		Type:     types.LegacyTxType,
		ChainID:  big.NewInt(0x539),
		Nonce:    0,
		GasPrice: big.NewInt(1_000_000_000),
		GasLimit: 21000,
		To:       &common.Address{0x02},
		Value:    big.NewInt(1),
	}
	signLegacyTx(t, tx, key)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)

	res, rpcErr := ethSendRawTransaction(b, rawParams(t, hexBytes(raw)))
	require.Nil(t, rpcErr)
	require.Equal(t, tx.Hash(), res)
	require.NotNil(t, b.Pool.Get(tx.Hash()))
}

func TestEthSendRawTransactionRejectsMalformed(t *testing.T) {
	b := newTestBackend(t, nil)

	_, rpcErr := ethSendRawTransaction(b, rawParams(t, hexBytes{0xff, 0x00}))
	require.NotNil(t, rpcErr)
	require.Equal(t, CodeInvalidParams, rpcErr.Code)
}

func TestEthCallAgainstZeroCodeAddress(t *testing.T) {
	b := newTestBackend(t, nil)
	to := common.Address{0x02}

	args := callArgs{To: &to}
	argsRaw, err := json.Marshal(args)
	require.NoError(t, err)

	res, rpcErr := ethCall(b, json.RawMessage(`[`+string(argsRaw)+`,"latest"]`))
	require.Nil(t, rpcErr)
	require.Empty(t, res.(hexBytes))
}

func TestEthEstimateGasPlainTransferUsesNoExecutionGas(t *testing.T) {
	b := newTestBackend(t, nil)
	to := common.Address{0x02}

	args := callArgs{To: &to}
	argsRaw, err := json.Marshal(args)
	require.NoError(t, err)

	res, rpcErr := ethEstimateGas(b, json.RawMessage(`[`+string(argsRaw)+`]`))
	require.Nil(t, rpcErr)
	used, ok := res.(hexUint64)
	require.True(t, ok)
	require.Zero(t, uint64(used))
}

func TestEthGetProofReturnsAccountProof(t *testing.T) {
	b := newTestBackend(t, nil)

	res, rpcErr := ethGetProof(b, rawParams(t, allocAddr, []common.Hash{}, "latest"))
	require.Nil(t, rpcErr)
	view, ok := res.(*proofView)
	require.True(t, ok)
	require.NotEmpty(t, view.AccountProof)
	require.Equal(t, 0, view.Balance.Int.Cmp(allocBalance))
}

func TestServerDispatchUnknownMethod(t *testing.T) {
	b := newTestBackend(t, nil)
	srv := NewServer(b, xlog.New(xlog.Config{Level: zapcore.ErrorLevel}), metrics.New())

	resp := srv.dispatch(request{JSONRPC: "2.0", Method: "eth_bogus"})
	require.NotNil(t, resp.Error)
	require.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestServerDispatchKnownMethod(t *testing.T) {
	b := newTestBackend(t, nil)
	srv := NewServer(b, xlog.New(xlog.Config{Level: zapcore.ErrorLevel}), metrics.New())

	resp := srv.dispatch(request{JSONRPC: "2.0", Method: "eth_chainId"})
	require.Nil(t, resp.Error)
	require.Equal(t, hexBig{big.NewInt(0x539)}, resp.Result)
}

func TestResolveBlockNumberTagsAndHex(t *testing.T) {
	cd := store.ChainData{Latest: 10, Earliest: 0, Safe: 8, Finalized: 7, Pending: 11}

	n, err := resolveBlockNumber("latest", cd)
	require.NoError(t, err)
	require.Equal(t, uint64(10), n)

	n, err = resolveBlockNumber("safe", cd)
	require.NoError(t, err)
	require.Equal(t, uint64(8), n)

	n, err = resolveBlockNumber("0x5", cd)
	require.NoError(t, err)
	require.Equal(t, uint64(5), n)
}
