package entities

import (
	"encoding/json"
	"math/big"
	"slices"

	"github.com/pkg/errors"
)

type TxStatus uint8

const (
	TxFailed  TxStatus = 0
	TxSuccess TxStatus = 1
	TxPending TxStatus = 2
)

// Transaction payload types.
const (
	TxTypeBinary   = "binary"
	TxTypeDeploy   = "deploy"
	TxTypeCall     = "call"
	TxTypeProtocol = "protocol"
	TxTypeDip      = "dip"
)

type TransactionInfo struct {
	Hash      string
	From      Address
	To        Address
	Value     *big.Int
	Timestamp int64
	Height    uint64
	Status    TxStatus
	Type      string
}

type transactionJSON struct {
	Hash      string   `json:"hash"`
	From      Address  `json:"from"`
	To        Address  `json:"to"`
	Value     string   `json:"value"`
	Timestamp int64    `json:"timestamp"`
	Height    uint64   `json:"height"`
	Status    TxStatus `json:"status"`
	Type      string   `json:"type"`
}

func (tx TransactionInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(transactionJSON{
		Hash:      tx.Hash,
		From:      tx.From,
		To:        tx.To,
		Value:     weiString(tx.Value),
		Timestamp: tx.Timestamp,
		Height:    tx.Height,
		Status:    tx.Status,
		Type:      tx.Type,
	})
}

func (tx *TransactionInfo) UnmarshalJSON(data []byte) error {
	var raw transactionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "unmarshalling transaction")
	}
	value, err := ParseWei(raw.Value)
	if err != nil {
		return errors.Wrapf(err, "transaction [%s] value", raw.Hash)
	}
	*tx = TransactionInfo{
		Hash:      raw.Hash,
		From:      raw.From,
		To:        raw.To,
		Value:     value,
		Timestamp: raw.Timestamp,
		Height:    raw.Height,
		Status:    raw.Status,
		Type:      raw.Type,
	}
	return nil
}

// ParseWei reads a non negative decimal integer.
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Wrapf(ErrMalformedRecord, "wei value [%s]", s)
	}
	return v, nil
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// FilterByAddressType keeps transactions whose sender and receiver carry the
// given address types.
func FilterByAddressType(txs []TransactionInfo, from, to AddressType) []TransactionInfo {
	return filter(txs, func(tx TransactionInfo) bool {
		return tx.From.Type() == from && tx.To.Type() == to
	})
}

func FilterSuccessful(txs []TransactionInfo) []TransactionInfo {
	return filter(txs, func(tx TransactionInfo) bool {
		return tx.Status == TxSuccess
	})
}

func FilterByTxType(txs []TransactionInfo, txType string) []TransactionInfo {
	return filter(txs, func(tx TransactionInfo) bool {
		return tx.Type == txType
	})
}

func filter(txs []TransactionInfo, keep func(TransactionInfo) bool) []TransactionInfo {
	filtered := make([]TransactionInfo, 0, len(txs))
	for _, tx := range txs {
		if keep(tx) {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

// SortTransactions orders by height and keeps the relative order of
// transactions inside the same block.
func SortTransactions(txs []TransactionInfo) {
	slices.SortStableFunc(txs, func(a, b TransactionInfo) int {
		switch {
		case a.Height < b.Height:
			return -1
		case a.Height > b.Height:
			return 1
		}
		return 0
	})
}
