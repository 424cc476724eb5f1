package rank

import (
	"context"
	"math/big"
	"sort"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/nebulasio/go-nbre/pkg/dfloat"
	"github.com/pkg/errors"
)

type BalanceProvider interface {
	// GetBalance returns entities.ErrNotFound for unknown accounts.
	GetBalance(ctx context.Context, address entities.Address, height uint64) (*big.Int, error)
}

type balancePoint struct {
	height  uint64
	balance *big.Int
}

// AccountDB derives historical balances for one run: every account's balance
// is read once at the start height and then moved by the run's successful
// transfers.
type AccountDB struct {
	provider BalanceProvider
	unit     dfloat.Float
	history  map[entities.Address][]balancePoint
}

func NewAccountDB(provider BalanceProvider, unit dfloat.Float) *AccountDB {
	return &AccountDB{
		provider: provider,
		unit:     unit,
		history:  make(map[entities.Address][]balancePoint),
	}
}

// Load reads base balances at startHeight and replays txs, which must be
// ordered by height. Accounts unknown to the provider are left out.
func (db *AccountDB) Load(ctx context.Context, startHeight uint64, accounts []entities.Address, txs []entities.TransactionInfo) error {
	for _, account := range accounts {
		balance, err := db.provider.GetBalance(ctx, account, startHeight)
		if errors.Is(err, entities.ErrNotFound) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "getting balance of [%s] at [%d]", account, startHeight)
		}
		db.history[account] = []balancePoint{{height: startHeight, balance: new(big.Int).Set(balance)}}
	}

	for _, tx := range txs {
		if tx.Status != entities.TxSuccess || tx.Value == nil || tx.Value.Sign() == 0 || tx.Height < startHeight {
			continue
		}
		db.move(tx.From, tx.Height, new(big.Int).Neg(tx.Value))
		db.move(tx.To, tx.Height, tx.Value)
	}
	return nil
}

func (db *AccountDB) move(account entities.Address, height uint64, delta *big.Int) {
	points, ok := db.history[account]
	if !ok {
		return
	}
	last := points[len(points)-1]
	balance := new(big.Int).Add(last.balance, delta)
	if last.height == height {
		points[len(points)-1].balance = balance
		return
	}
	db.history[account] = append(points, balancePoint{height: height, balance: balance})
}

// BalanceAt returns the last recorded balance at a height <= height, or the
// base balance for earlier heights.
func (db *AccountDB) BalanceAt(account entities.Address, height uint64) (*big.Int, error) {
	points, ok := db.history[account]
	if !ok {
		return nil, errors.Wrapf(entities.ErrNotFound, "balance of [%s]", account)
	}
	i := sort.Search(len(points), func(i int) bool { return points[i].height > height })
	if i == 0 {
		return points[0].balance, nil
	}
	return points[i-1].balance, nil
}

// Normalize converts a wei amount into whole units.
func (db *AccountDB) Normalize(x dfloat.Float) dfloat.Float {
	return x.Quo(db.unit)
}
