package types

import (
	"github.com/luxfi/execd/common"
	"github.com/luxfi/execd/rlp"
)

// Log is one entry emitted by LOG0..LOG4, per spec §3.
type Log struct {
	Address common.Address
	Topics  []common.Hash // up to 4
	Data    []byte

	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint
	BlockHash   common.Hash
	LogIndex    uint
	Removed     bool // true if the log belongs to a block no longer canonical
}

func (l *Log) rlpValue() rlp.Value {
	topics := make([]rlp.Value, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = rlp.String(t.Bytes())
	}
	return rlp.List(rlp.String(l.Address.Bytes()), rlp.List(topics...), rlp.String(l.Data))
}

// LogsBloom folds a set of logs' addresses and topics into a 2048-bit
// bloom filter, per spec §3.
func LogsBloom(logs []*Log) common.Bloom {
	var b common.Bloom
	for _, l := range logs {
		b.Add(l.Address.Bytes())
		for _, t := range l.Topics {
			b.Add(t.Bytes())
		}
	}
	return b
}

// ReceiptStatus is the post-Byzantium success/failure indicator.
type ReceiptStatus uint64

const (
	ReceiptStatusFailed     ReceiptStatus = 0
	ReceiptStatusSuccessful ReceiptStatus = 1
)

// Receipt records the effects of one executed transaction, per spec §3.
// CumulativeGasUsed is monotone within a block; the last receipt's value
// must equal the header's GasUsed (invariant 2).
type Receipt struct {
	Type              TxType
	Status            ReceiptStatus
	CumulativeGasUsed uint64
	Bloom             common.Bloom
	Logs              []*Log

	TxHash          common.Hash
	ContractAddress *common.Address
	GasUsed         uint64
	BlockHash       common.Hash
	BlockNumber     uint64
	TransactionIndex uint
}

// EncodeRLP serializes the receipt's consensus fields (status, cumulative
// gas, bloom, logs); the rest are derived/indexing metadata never hashed.
func (r *Receipt) EncodeRLP() []byte {
	logs := make([]rlp.Value, len(r.Logs))
	for i, l := range r.Logs {
		logs[i] = l.rlpValue()
	}
	payload := rlp.Encode(rlp.List(
		rlp.Uint64(uint64(r.Status)),
		rlp.Uint64(r.CumulativeGasUsed),
		rlp.String(r.Bloom[:]),
		rlp.List(logs...),
	))
	if r.Type == LegacyTxType {
		return payload
	}
	out := make([]byte, 0, len(payload)+1)
	out = append(out, byte(r.Type))
	return append(out, payload...)
}

// DeriveReceiptRoot commits a set of receipts into a throwaway trie keyed
// by rlp(index), mirroring DeriveTxRoot.
func DeriveReceiptRoot(receipts []*Receipt, commit func(index uint64, encoded []byte) error) error {
	for i, r := range receipts {
		if err := commit(uint64(i), r.EncodeRLP()); err != nil {
			return err
		}
	}
	return nil
}

// DecodeReceiptRLP parses a receipt previously produced by EncodeRLP. The
// derived fields (TxHash, BlockHash, ...) are not part of the consensus
// encoding and are left zero; callers fill them in from indexing context.
func DecodeReceiptRLP(b []byte) (*Receipt, error) {
	typ := LegacyTxType
	payload := b
	if len(b) > 0 && b[0] < 0xc0 {
		typ = TxType(b[0])
		payload = b[1:]
	}
	v, rest, err := rlp.Decode(payload)
	if err != nil || len(rest) != 0 {
		return nil, ErrMalformedTx
	}
	items, err := v.Items()
	if err != nil || len(items) != 4 {
		return nil, ErrMalformedTx
	}
	r := &Receipt{Type: typ}
	status, err := items[0].Uint64()
	if err != nil {
		return nil, ErrMalformedTx
	}
	r.Status = ReceiptStatus(status)
	if r.CumulativeGasUsed, err = items[1].Uint64(); err != nil {
		return nil, ErrMalformedTx
	}
	bloomBytes, err := items[2].Bytes()
	if err != nil {
		return nil, ErrMalformedTx
	}
	copy(r.Bloom[:], bloomBytes)
	logItems, err := items[3].Items()
	if err != nil {
		return nil, ErrMalformedTx
	}
	r.Logs = make([]*Log, len(logItems))
	for i, li := range logItems {
		l, err := decodeLog(li)
		if err != nil {
			return nil, err
		}
		r.Logs[i] = l
	}
	return r, nil
}

func decodeLog(v rlp.Value) (*Log, error) {
	items, err := v.Items()
	if err != nil || len(items) != 3 {
		return nil, ErrMalformedTx
	}
	addrBytes, err := items[0].Bytes()
	if err != nil {
		return nil, ErrMalformedTx
	}
	topicItems, err := items[1].Items()
	if err != nil {
		return nil, ErrMalformedTx
	}
	topics := make([]common.Hash, len(topicItems))
	for i, ti := range topicItems {
		tb, err := ti.Bytes()
		if err != nil {
			return nil, ErrMalformedTx
		}
		topics[i] = common.BytesToHash(tb)
	}
	data, err := items[2].Bytes()
	if err != nil {
		return nil, ErrMalformedTx
	}
	return &Log{Address: common.BytesToAddress(addrBytes), Topics: topics, Data: data}, nil
}
