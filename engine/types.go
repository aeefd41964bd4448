package engine

import (
	"fmt"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/core/validator"
)

// PayloadID identifies a payload under construction between
// engine_forkchoiceUpdatedV3 (which starts the build) and
// engine_getPayloadV3 (which collects it).
type PayloadID [8]byte

func (id PayloadID) String() string { return fmt.Sprintf("0x%x", id[:]) }

func (id PayloadID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *PayloadID) UnmarshalText(text []byte) error {
	var b hexBytes
	if err := b.UnmarshalText(text); err != nil {
		return err
	}
	if len(b) != 8 {
		return fmt.Errorf("payload id must be 8 bytes, got %d", len(b))
	}
	copy(id[:], b)
	return nil
}

// Withdrawal is the Engine API's wire shape for one validator withdrawal.
type Withdrawal struct {
	Index          hexUint64      `json:"index"`
	ValidatorIndex hexUint64      `json:"validatorIndex"`
	Address        common.Address `json:"address"`
	Amount         hexUint64      `json:"amount"`
}

func newWithdrawal(w *types.Withdrawal) *Withdrawal {
	return &Withdrawal{
		Index:          hexUint64(w.Index),
		ValidatorIndex: hexUint64(w.ValidatorIndex),
		Address:        w.Address,
		Amount:         hexUint64(w.Amount),
	}
}

func (w *Withdrawal) toCore() *types.Withdrawal {
	return &types.Withdrawal{
		Index:          uint64(w.Index),
		ValidatorIndex: uint64(w.ValidatorIndex),
		Address:        w.Address,
		Amount:         uint64(w.Amount),
	}
}

// ExecutionPayloadV3 is the Cancun execution payload: a full block restated
// as a CL-friendly flat JSON object (blob-gas fields added by V3; earlier
// versions are not exposed since spec §6 names only the V3 methods).
type ExecutionPayloadV3 struct {
	ParentHash    common.Hash    `json:"parentHash"`
	FeeRecipient  common.Address `json:"feeRecipient"`
	StateRoot     common.Hash    `json:"stateRoot"`
	ReceiptsRoot  common.Hash    `json:"receiptsRoot"`
	LogsBloom     common.Bloom   `json:"logsBloom"`
	PrevRandao    common.Hash    `json:"prevRandao"`
	BlockNumber   hexUint64      `json:"blockNumber"`
	GasLimit      hexUint64      `json:"gasLimit"`
	GasUsed       hexUint64      `json:"gasUsed"`
	Timestamp     hexUint64      `json:"timestamp"`
	ExtraData     hexBytes       `json:"extraData"`
	BaseFeePerGas hexBig         `json:"baseFeePerGas"`
	BlockHash     common.Hash    `json:"blockHash"`
	Transactions  []hexBytes     `json:"transactions"`
	Withdrawals   []*Withdrawal  `json:"withdrawals"`
	BlobGasUsed   hexUint64      `json:"blobGasUsed"`
	ExcessBlobGas hexUint64      `json:"excessBlobGas"`
}

// newExecutionPayload restates block as the Engine API's wire shape.
func newExecutionPayload(block *types.Block) (*ExecutionPayloadV3, error) {
	header := block.Header
	txs := make([]hexBytes, len(block.Body.Transactions))
	for i, tx := range block.Body.Transactions {
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, err
		}
		txs[i] = raw
	}
	withdrawals := make([]*Withdrawal, len(block.Body.Withdrawals))
	for i, w := range block.Body.Withdrawals {
		withdrawals[i] = newWithdrawal(w)
	}
	var blobGasUsed, excessBlobGas uint64
	if header.BlobGasUsed != nil {
		blobGasUsed = *header.BlobGasUsed
	}
	if header.ExcessBlobGas != nil {
		excessBlobGas = *header.ExcessBlobGas
	}
	return &ExecutionPayloadV3{
		ParentHash:    header.ParentHash,
		FeeRecipient:  header.Coinbase,
		StateRoot:     header.StateRoot,
		ReceiptsRoot:  header.ReceiptRoot,
		LogsBloom:     header.Bloom,
		PrevRandao:    header.MixHash,
		BlockNumber:   hexUint64(header.Number),
		GasLimit:      hexUint64(header.GasLimit),
		GasUsed:       hexUint64(header.GasUsed),
		Timestamp:     hexUint64(header.Timestamp),
		ExtraData:     header.ExtraData,
		BaseFeePerGas: hexBig{header.BaseFee},
		BlockHash:     header.Hash(),
		Transactions:  txs,
		Withdrawals:   withdrawals,
		BlobGasUsed:   hexUint64(blobGasUsed),
		ExcessBlobGas: hexUint64(excessBlobGas),
	}, nil
}

// toBlock parses an incoming payload back into a header/body pair, ready
// for validation and execution. It does not verify BlockHash; the caller
// re-derives it from the reconstructed header and compares.
func (p *ExecutionPayloadV3) toBlock() (*types.Header, types.Body, error) {
	txs := make([]*types.Transaction, len(p.Transactions))
	for i, raw := range p.Transactions {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, types.Body{}, fmt.Errorf("transaction %d: %w", i, err)
		}
		txs[i] = tx
	}
	withdrawals := make([]*types.Withdrawal, len(p.Withdrawals))
	for i, w := range p.Withdrawals {
		withdrawals[i] = w.toCore()
	}
	body := types.Body{Transactions: txs, Withdrawals: withdrawals}

	blobGasUsed := uint64(p.BlobGasUsed)
	excessBlobGas := uint64(p.ExcessBlobGas)
	header := &types.Header{
		ParentHash:      p.ParentHash,
		Coinbase:        p.FeeRecipient,
		StateRoot:       p.StateRoot,
		ReceiptRoot:     p.ReceiptsRoot,
		Bloom:           p.LogsBloom,
		MixHash:         p.PrevRandao,
		Number:          uint64(p.BlockNumber),
		GasLimit:        uint64(p.GasLimit),
		GasUsed:         uint64(p.GasUsed),
		Timestamp:       uint64(p.Timestamp),
		ExtraData:       p.ExtraData,
		BaseFee:         p.BaseFeePerGas.Int,
		BlobGasUsed:     &blobGasUsed,
		ExcessBlobGas:   &excessBlobGas,
		WithdrawalsRoot: withdrawalsRootPtr(withdrawals),
	}
	return header, body, nil
}

// ForkchoiceStateV1 is the three-hash tuple a consensus driver supplies to
// select the canonical chain.
type ForkchoiceStateV1 struct {
	HeadBlockHash      common.Hash `json:"headBlockHash"`
	SafeBlockHash      common.Hash `json:"safeBlockHash"`
	FinalizedBlockHash common.Hash `json:"finalizedBlockHash"`
}

// PayloadAttributesV3 describes the payload a forkchoiceUpdated call should
// start building, if anything.
type PayloadAttributesV3 struct {
	Timestamp             hexUint64      `json:"timestamp"`
	PrevRandao             common.Hash   `json:"prevRandao"`
	SuggestedFeeRecipient  common.Address `json:"suggestedFeeRecipient"`
	Withdrawals            []*Withdrawal  `json:"withdrawals"`
	ParentBeaconBlockRoot  common.Hash    `json:"parentBeaconBlockRoot"`
}

// Payload status values per spec §6/§7.
const (
	StatusValid    = "VALID"
	StatusInvalid  = "INVALID"
	StatusSyncing  = "SYNCING"
	StatusAccepted = "ACCEPTED"
)

// PayloadStatusV1 is the status object every newPayload/forkchoiceUpdated
// response embeds.
type PayloadStatusV1 struct {
	Status          string       `json:"status"`
	LatestValidHash *common.Hash `json:"latestValidHash,omitempty"`
	ValidationError *string      `json:"validationError,omitempty"`
}

// ForkchoiceUpdatedResponse is engine_forkchoiceUpdatedV3's result.
type ForkchoiceUpdatedResponse struct {
	PayloadStatus PayloadStatusV1 `json:"payloadStatus"`
	PayloadID     *PayloadID      `json:"payloadId,omitempty"`
}

// BlobsBundleV1 carries the commitments/proofs/blobs accompanying a built
// payload; always empty here since no blob-carrying transaction is ever
// selected by the builder (see builder.go).
type BlobsBundleV1 struct {
	Commitments []hexBytes `json:"commitments"`
	Proofs      []hexBytes `json:"proofs"`
	Blobs       []hexBytes `json:"blobs"`
}

// GetPayloadV3Response is engine_getPayloadV3's result.
type GetPayloadV3Response struct {
	ExecutionPayload *ExecutionPayloadV3 `json:"executionPayload"`
	BlockValue       hexBig              `json:"blockValue"`
	BlobsBundle      *BlobsBundleV1      `json:"blobsBundle"`
	ShouldOverride   bool                `json:"shouldOverrideBuilder"`
}

// TransitionConfigurationV1 is exchanged by
// engine_exchangeTransitionConfigurationV1; this chain is post-merge from
// genesis, so it always echoes back a zero terminal difficulty/block.
type TransitionConfigurationV1 struct {
	TerminalTotalDifficulty hexBig      `json:"terminalTotalDifficulty"`
	TerminalBlockHash       common.Hash `json:"terminalBlockHash"`
	TerminalBlockNumber     hexUint64   `json:"terminalBlockNumber"`
}

// withdrawalsRootPtr computes a Shanghai+ header's withdrawals root; this
// chain activates Shanghai from genesis, so every header carries one (an
// empty trie root for a payload with no withdrawals, never nil).
func withdrawalsRootPtr(withdrawals []*types.Withdrawal) *common.Hash {
	root := validator.WithdrawalsRoot(withdrawals)
	return &root
}
