package engine

import (
	"encoding/json"
	"fmt"

	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/store"
	"github.com/luxfi/execd/core/types"
	"github.com/luxfi/execd/core/validator"
)

// Error is the Engine API's own JSON-RPC 2.0 error object; kept distinct
// from the public rpc package's since the two surfaces are dispatched by
// separate servers with separate code spaces (the Engine API reserves
// -3200x for its own semantics, per spec §6/§7).
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return e.Message }

const (
	codeParseError     = -32700
	codeInvalidParams  = -32602
	codeInternal       = -32603
	codeUnknownPayload = -38001
	codeInvalidForkchoiceState = -38002
	codeInvalidPayloadAttrs   = -38003
)

func newError(code int, msg string) *Error { return &Error{Code: code, Message: msg} }

// HandlerFunc answers one Engine API call; params is the still-encoded
// JSON-RPC "params" array.
type HandlerFunc func(b *Backend, params json.RawMessage) (any, *Error)

// Methods is the engine_ namespace spec §6 names.
var Methods = map[string]HandlerFunc{
	"engine_exchangeCapabilities":                engineExchangeCapabilities,
	"engine_forkchoiceUpdatedV3":                 engineForkchoiceUpdatedV3,
	"engine_getPayloadV3":                        engineGetPayloadV3,
	"engine_newPayloadV3":                        engineNewPayloadV3,
	"engine_exchangeTransitionConfigurationV1":   engineExchangeTransitionConfigurationV1,
}

func decodeParams(params json.RawMessage, out ...any) *Error {
	var raw []json.RawMessage
	if len(params) > 0 {
		if err := json.Unmarshal(params, &raw); err != nil {
			return newError(codeParseError, err.Error())
		}
	}
	for i, o := range out {
		if i >= len(raw) {
			return nil
		}
		if err := json.Unmarshal(raw[i], o); err != nil {
			return newError(codeInvalidParams, err.Error())
		}
	}
	return nil
}

// engineExchangeCapabilities returns every method name this node serves,
// for the Engine API's capability-negotiation handshake. The caller's own
// list is not read, and no intersection with it is computed.
func engineExchangeCapabilities(b *Backend, params json.RawMessage) (any, *Error) {
	names := make([]string, 0, len(Methods))
	for name := range Methods {
		names = append(names, name)
	}
	return names, nil
}

// engineForkchoiceUpdatedV3 advances the canonical chain to state.Head and,
// if attrs is non-nil, starts building a new payload on top of it.
func engineForkchoiceUpdatedV3(b *Backend, params json.RawMessage) (any, *Error) {
	var state ForkchoiceStateV1
	var attrs *PayloadAttributesV3
	if rpcErr := decodeParams(params, &state, &attrs); rpcErr != nil {
		return nil, rpcErr
	}

	fcState := validator.ForkChoiceState{Head: state.HeadBlockHash, Safe: state.SafeBlockHash, Finalized: state.FinalizedBlockHash}
	if err := b.ForkChoice.Update(fcState); err != nil {
		switch err {
		case validator.ErrUnknownBlock:
			return ForkchoiceUpdatedResponse{PayloadStatus: PayloadStatusV1{Status: StatusSyncing}}, nil
		default:
			return nil, newError(codeInvalidForkchoiceState, err.Error())
		}
	}

	cd := b.Store.ChainData()
	headHeader, err := b.headerByHash(state.HeadBlockHash)
	if err != nil {
		return nil, newError(codeInternal, err.Error())
	}
	cd.Latest = headHeader.Number
	if safeNum, err := b.Store.GetNumberByHash(state.SafeBlockHash); err == nil {
		cd.Safe = safeNum
	}
	if finalizedNum, err := b.Store.GetNumberByHash(state.FinalizedBlockHash); err == nil {
		cd.Finalized = finalizedNum
	}
	b.Store.SetChainData(cd)

	if b.Pool != nil {
		b.Pool.Reconcile(state.HeadBlockHash, b.stateAt(headHeader))
	}

	resp := ForkchoiceUpdatedResponse{
		PayloadStatus: PayloadStatusV1{Status: StatusValid, LatestValidHash: &state.HeadBlockHash},
	}
	if attrs == nil {
		return resp, nil
	}

	block, err := b.buildPayload(headHeader, attrs)
	if err != nil {
		return nil, newError(codeInvalidPayloadAttrs, err.Error())
	}
	id := b.storePayload(block)
	resp.PayloadID = &id
	return resp, nil
}

// engineGetPayloadV3 collects a payload previously started by
// engine_forkchoiceUpdatedV3.
func engineGetPayloadV3(b *Backend, params json.RawMessage) (any, *Error) {
	var id PayloadID
	if rpcErr := decodeParams(params, &id); rpcErr != nil {
		return nil, rpcErr
	}
	block, ok := b.takePayload(id)
	if !ok {
		return nil, newError(codeUnknownPayload, fmt.Sprintf("unknown payload id %s", id))
	}
	payload, err := newExecutionPayload(block)
	if err != nil {
		return nil, newError(codeInternal, err.Error())
	}
	return GetPayloadV3Response{
		ExecutionPayload: payload,
		BlockValue:       hexBig{blockValue(block)},
		BlobsBundle:      &BlobsBundleV1{},
	}, nil
}

// engineNewPayloadV3 validates and imports a payload proposed by another
// party (e.g. the same block another validator built), per the Engine
// API's execution side of block propagation.
func engineNewPayloadV3(b *Backend, params json.RawMessage) (any, *Error) {
	var payload ExecutionPayloadV3
	var blobHashes []common.Hash
	var beaconRoot common.Hash
	if rpcErr := decodeParams(params, &payload, &blobHashes, &beaconRoot); rpcErr != nil {
		return nil, rpcErr
	}

	header, body, err := payload.toBlock()
	if err != nil {
		return invalidStatus(err), nil
	}
	header.ParentBeaconRoot = &beaconRoot

	if header.Hash() != payload.BlockHash {
		return invalidStatus(fmt.Errorf("block hash mismatch")), nil
	}

	parent, err := b.headerByHash(header.ParentHash)
	if err != nil {
		if err == store.ErrNotFound {
			return PayloadStatusV1{Status: StatusSyncing}, nil
		}
		return nil, newError(codeInternal, err.Error())
	}

	if err := validator.ValidateHeader(header, parent, body); err != nil {
		return invalidStatus(err), nil
	}

	sdb := b.stateAt(parent)
	result, err := b.execute(header, body, sdb)
	if err != nil {
		return invalidStatus(err), nil
	}
	// header still carries the payload's claimed roots here; post is what
	// was actually produced by re-execution. ValidatePostExecution rejects
	// any payload whose claim doesn't match before a single byte of it is
	// persisted.
	post := validator.PostExecutionResult{
		StateRoot:    result.StateRoot,
		ReceiptsRoot: validator.ReceiptRoot(result.Receipts),
		Bloom:        types.LogsBloom(result.Logs),
		GasUsed:      result.GasUsed,
	}
	if err := validator.ValidatePostExecution(header, post); err != nil {
		return invalidStatus(err), nil
	}

	if err := b.Store.PutHeader(header); err != nil {
		return nil, newError(codeInternal, err.Error())
	}
	if err := b.Store.PutBody(header.Hash(), body); err != nil {
		return nil, newError(codeInternal, err.Error())
	}
	if err := b.Store.PutReceipts(header.Hash(), result.Receipts); err != nil {
		return nil, newError(codeInternal, err.Error())
	}
	hash := header.Hash()
	return PayloadStatusV1{Status: StatusValid, LatestValidHash: &hash}, nil
}

func invalidStatus(err error) PayloadStatusV1 {
	msg := err.Error()
	return PayloadStatusV1{Status: StatusInvalid, ValidationError: &msg}
}

// engineExchangeTransitionConfigurationV1 is the pre-merge handshake the
// Engine API spec still requires a consensus driver to call once; this
// chain is post-merge from genesis, so it always reports a zero terminal
// difficulty/block regardless of what the caller sent.
func engineExchangeTransitionConfigurationV1(b *Backend, params json.RawMessage) (any, *Error) {
	return TransitionConfigurationV1{TerminalTotalDifficulty: hexBig{}}, nil
}
