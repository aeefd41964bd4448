package rpc

import (
	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
)

// blockView is the JSON shape of eth_getBlockBy{Hash,Number}'s result: the
// header fields plus either full transaction objects or just their hashes,
// mirroring go-ethereum's RPCMarshalBlock convention.
type blockView struct {
	Number           hexUint64     `json:"number"`
	Hash             common.Hash   `json:"hash"`
	ParentHash       common.Hash   `json:"parentHash"`
	Nonce            hexUint64     `json:"nonce"`
	MixHash          common.Hash   `json:"mixHash"`
	StateRoot        common.Hash   `json:"stateRoot"`
	TransactionsRoot common.Hash   `json:"transactionsRoot"`
	ReceiptsRoot     common.Hash   `json:"receiptsRoot"`
	Miner            common.Address `json:"miner"`
	Difficulty       hexBig        `json:"difficulty"`
	ExtraData        hexBytes      `json:"extraData"`
	GasLimit         hexUint64     `json:"gasLimit"`
	GasUsed          hexUint64     `json:"gasUsed"`
	Timestamp        hexUint64     `json:"timestamp"`
	BaseFeePerGas    *hexBig       `json:"baseFeePerGas,omitempty"`
	WithdrawalsRoot  *common.Hash  `json:"withdrawalsRoot,omitempty"`
	BlobGasUsed      *hexUint64    `json:"blobGasUsed,omitempty"`
	ExcessBlobGas    *hexUint64    `json:"excessBlobGas,omitempty"`
	ParentBeaconRoot *common.Hash  `json:"parentBeaconBlockRoot,omitempty"`
	Transactions     []any         `json:"transactions"`
}

func newBlockView(header *types.Header, body types.Body, fullTx bool) *blockView {
	hash := header.Hash()
	v := &blockView{
		Number:           hexUint64(header.Number),
		Hash:             hash,
		ParentHash:       header.ParentHash,
		Nonce:            hexUint64(header.Nonce),
		MixHash:          header.MixHash,
		StateRoot:        header.StateRoot,
		TransactionsRoot: header.TxRoot,
		ReceiptsRoot:     header.ReceiptRoot,
		Miner:            header.Coinbase,
		Difficulty:       hexBig{header.Difficulty},
		ExtraData:        header.ExtraData,
		GasLimit:         hexUint64(header.GasLimit),
		GasUsed:          hexUint64(header.GasUsed),
		Timestamp:        hexUint64(header.Timestamp),
		WithdrawalsRoot:  header.WithdrawalsRoot,
		ParentBeaconRoot: header.ParentBeaconRoot,
	}
	if header.BaseFee != nil {
		v.BaseFeePerGas = &hexBig{header.BaseFee}
	}
	if header.BlobGasUsed != nil {
		bg := hexUint64(*header.BlobGasUsed)
		v.BlobGasUsed = &bg
	}
	if header.ExcessBlobGas != nil {
		eg := hexUint64(*header.ExcessBlobGas)
		v.ExcessBlobGas = &eg
	}
	for i, tx := range body.Transactions {
		if fullTx {
			v.Transactions = append(v.Transactions, newTxView(tx, hash, header.Number, uint(i)))
		} else {
			v.Transactions = append(v.Transactions, tx.Hash())
		}
	}
	return v
}

// txView is the JSON shape of a transaction as returned embedded in a
// block or by eth_getTransactionByHash.
type txView struct {
	Hash             common.Hash     `json:"hash"`
	Type             hexUint64       `json:"type"`
	Nonce            hexUint64       `json:"nonce"`
	BlockHash        *common.Hash    `json:"blockHash"`
	BlockNumber      *hexUint64      `json:"blockNumber"`
	TransactionIndex *hexUint64      `json:"transactionIndex"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Value            hexBig          `json:"value"`
	GasPrice         *hexBig         `json:"gasPrice,omitempty"`
	GasFeeCap        *hexBig         `json:"maxFeePerGas,omitempty"`
	GasTipCap        *hexBig         `json:"maxPriorityFeePerGas,omitempty"`
	Gas              hexUint64       `json:"gas"`
	Input            hexBytes        `json:"input"`
	ChainID          *hexBig         `json:"chainId,omitempty"`
	V                hexBig          `json:"v"`
	R                hexBig          `json:"r"`
	S                hexBig          `json:"s"`
}

func newTxView(tx *types.Transaction, blockHash common.Hash, blockNumber uint64, index uint) *txView {
	from, _ := senderOf(tx)
	v := &txView{
		Hash:  tx.Hash(),
		Type:  hexUint64(uint64(tx.Type)),
		Nonce: hexUint64(tx.Nonce),
		From:  from,
		To:    tx.To,
		Value: hexBig{tx.Value},
		Gas:   hexUint64(tx.GasLimit),
		Input: tx.Data,
		V:     hexBig{tx.V},
		R:     hexBig{tx.R},
		S:     hexBig{tx.S},
	}
	if blockHash != (common.Hash{}) {
		v.BlockHash = &blockHash
		bn := hexUint64(blockNumber)
		v.BlockNumber = &bn
		ti := hexUint64(index)
		v.TransactionIndex = &ti
	}
	if tx.GasPrice != nil {
		v.GasPrice = &hexBig{tx.GasPrice}
	}
	if tx.GasFeeCap != nil {
		v.GasFeeCap = &hexBig{tx.GasFeeCap}
	}
	if tx.GasTipCap != nil {
		v.GasTipCap = &hexBig{tx.GasTipCap}
	}
	if tx.ChainID != nil {
		v.ChainID = &hexBig{tx.ChainID}
	}
	return v
}

// receiptView is the JSON shape of eth_getTransactionReceipt's result.
type receiptView struct {
	TransactionHash   common.Hash     `json:"transactionHash"`
	TransactionIndex  hexUint64       `json:"transactionIndex"`
	BlockHash         common.Hash     `json:"blockHash"`
	BlockNumber       hexUint64       `json:"blockNumber"`
	From              common.Address  `json:"from"`
	To                *common.Address `json:"to"`
	CumulativeGasUsed hexUint64       `json:"cumulativeGasUsed"`
	GasUsed           hexUint64       `json:"gasUsed"`
	ContractAddress   *common.Address `json:"contractAddress"`
	Logs              []*logView      `json:"logs"`
	LogsBloom         common.Bloom    `json:"logsBloom"`
	Type              hexUint64       `json:"type"`
	Status            hexUint64       `json:"status"`
}

type logView struct {
	Address          common.Address `json:"address"`
	Topics           []common.Hash  `json:"topics"`
	Data             hexBytes       `json:"data"`
	BlockNumber      hexUint64      `json:"blockNumber"`
	TransactionHash  common.Hash    `json:"transactionHash"`
	TransactionIndex hexUint64      `json:"transactionIndex"`
	BlockHash        common.Hash    `json:"blockHash"`
	LogIndex         hexUint64      `json:"logIndex"`
	Removed          bool           `json:"removed"`
}

func newLogView(l *types.Log) *logView {
	return &logView{
		Address:          l.Address,
		Topics:           l.Topics,
		Data:             l.Data,
		BlockNumber:      hexUint64(l.BlockNumber),
		TransactionHash:  l.TxHash,
		TransactionIndex: hexUint64(l.TxIndex),
		BlockHash:        l.BlockHash,
		LogIndex:         hexUint64(l.LogIndex),
		Removed:          l.Removed,
	}
}

func newReceiptView(r *types.Receipt, from common.Address, to *common.Address) *receiptView {
	logs := make([]*logView, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = newLogView(l)
	}
	return &receiptView{
		TransactionHash:   r.TxHash,
		TransactionIndex:  hexUint64(r.TransactionIndex),
		BlockHash:         r.BlockHash,
		BlockNumber:       hexUint64(r.BlockNumber),
		From:              from,
		To:                to,
		CumulativeGasUsed: hexUint64(r.CumulativeGasUsed),
		GasUsed:           hexUint64(r.GasUsed),
		ContractAddress:   r.ContractAddress,
		Logs:              logs,
		LogsBloom:         r.Bloom,
		Type:              hexUint64(uint64(r.Type)),
		Status:            hexUint64(uint64(r.Status)),
	}
}

func senderOf(tx *types.Transaction) (common.Address, error) {
	return txSender(tx)
}
