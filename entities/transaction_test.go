package entities

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransaction_Filters(t *testing.T) {
	account1 := testAddress(t, AccountAddress, 0x01)
	account2 := testAddress(t, AccountAddress, 0x02)
	contract := testAddress(t, ContractAddress, 0x03)

	txs := []TransactionInfo{
		{Hash: "1", From: account1, To: account2, Value: big.NewInt(1), Height: 3, Status: TxSuccess, Type: TxTypeBinary},
		{Hash: "2", From: account1, To: contract, Value: big.NewInt(1), Height: 1, Status: TxSuccess, Type: TxTypeCall},
		{Hash: "3", From: account2, To: account1, Value: big.NewInt(1), Height: 2, Status: TxFailed, Type: TxTypeBinary},
		{Hash: "4", From: account2, To: contract, Value: big.NewInt(1), Height: 1, Status: TxFailed, Type: TxTypeBinary},
	}

	hashes := func(txs []TransactionInfo) []string {
		var out []string
		for _, tx := range txs {
			out = append(out, tx.Hash)
		}
		return out
	}

	require.Equal(t, []string{"1", "3"}, hashes(FilterByAddressType(txs, AccountAddress, AccountAddress)))
	require.Equal(t, []string{"2", "4"}, hashes(FilterByAddressType(txs, AccountAddress, ContractAddress)))
	require.Equal(t, []string{"1", "2"}, hashes(FilterSuccessful(txs)))
	require.Equal(t, []string{"2"}, hashes(FilterByTxType(txs, TxTypeCall)))
	require.Empty(t, FilterSuccessful(nil))

	SortTransactions(txs)
	require.Equal(t, []string{"2", "4", "3", "1"}, hashes(txs))
}
