package rpc

import (
	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/core/executor"
	"github.com/luxfi/execd/core/types"
)

// txSender recovers a transaction's sender for display purposes; views
// that can't recover a sender (malformed signature) show the zero address
// rather than fail the whole block/tx marshal.
func txSender(tx *types.Transaction) (common.Address, error) {
	if tx.Type == types.PrivilegedTxType {
		return tx.PrivilegedFrom, nil
	}
	addr, err := executor.Sender(tx)
	if err != nil {
		return common.Address{}, err
	}
	return addr, nil
}
