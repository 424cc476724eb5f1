package rank

import (
	"context"
	"math/big"

	"github.com/nebulasio/go-nbre/business/graph"
	"github.com/nebulasio/go-nbre/entities"
	"github.com/nebulasio/go-nbre/pkg/dfloat"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type TransactionProvider interface {
	// ReadTransactions returns the transactions of the inclusive height range.
	ReadTransactions(ctx context.Context, startHeight, endHeight uint64) ([]entities.TransactionInfo, error)
}

type Config struct {
	// BlockInterval is the width of the sub-windows a run is split into.
	BlockInterval uint64
	// TopK is the number of largest window flows kept per account pair.
	TopK int
	// NormalizationUnit converts wei into the unit the formulas work in.
	NormalizationUnit dfloat.Float
	Params            entities.RankParams
}

func DefaultConfig() Config {
	return Config{
		BlockInterval:     128,
		TopK:              graph.DefaultTopK,
		NormalizationUnit: dfloat.MustParse("1e18"),
		Params:            DefaultParams(),
	}
}

type Engine struct {
	transactions TransactionProvider
	balances     BalanceProvider
	config       Config
	logger       *zap.SugaredLogger
}

func NewEngine(transactions TransactionProvider, balances BalanceProvider, config Config, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		transactions: transactions,
		balances:     balances,
		config:       config,
		logger:       logger,
	}
}

// Compute ranks every account active between start and end, inclusive. The
// result is ordered by address.
func (e *Engine) Compute(ctx context.Context, start, end, version uint64) ([]entities.NRInfo, error) {
	score, err := ScoreFor(version)
	if err != nil {
		return nil, err
	}

	raw, err := e.transactions.ReadTransactions(ctx, start, end)
	if err != nil {
		return nil, errors.Wrapf(err, "reading transactions [%d-%d]", start, end)
	}
	entities.SortTransactions(raw)

	transfers := entities.FilterByAddressType(raw, entities.AccountAddress, entities.AccountAddress)
	accounts := distinctAccounts(transfers)
	transfers = entities.FilterSuccessful(transfers)
	e.logger.Debugw("Read transactions", "start", start, "end", end, "raw", len(raw), "transfers", len(transfers), "accounts", len(accounts))

	db := NewAccountDB(e.balances, e.config.NormalizationUnit)
	if err := db.Load(ctx, start, accounts, raw); err != nil {
		return nil, errors.Wrap(err, "loading balances")
	}

	windows := SplitByBlockInterval(transfers, e.config.BlockInterval)
	graphs := make([]*graph.Graph, 0, len(windows))
	for _, txs := range windows {
		g := graph.FromTransactions(txs)
		g.RemoveTimeOrderedCycles()
		g.MergeParallelEdges()
		graphs = append(graphs, g)
	}

	medians, err := e.medians(db, accounts, windows)
	if err != nil {
		return nil, err
	}

	aggregate := graph.Merge(graphs)
	aggregate.MergeTopKParallelEdges(e.config.TopK)

	vals := aggregate.InOutVals()
	degrees := aggregate.InOutDegrees()
	stakes := aggregate.Stakes()

	nrs := make([]entities.NRInfo, 0, len(vals))
	for _, account := range accounts {
		val, ok := vals[account]
		if !ok {
			continue
		}
		median, ok := medians[account]
		if !ok {
			continue
		}

		in := db.Normalize(dfloat.FromBigInt(val.In))
		out := db.Normalize(dfloat.FromBigInt(val.Out))
		weight, err := AccountWeight(in, out)
		if err != nil {
			return nil, errors.Wrapf(err, "weight of [%s]", account)
		}
		s, err := score(e.config.Params, median, weight)
		if err != nil {
			return nil, errors.Wrapf(err, "score of [%s]", account)
		}

		degree := degrees[account]
		nrs = append(nrs, entities.NRInfo{
			Address:   account,
			InDegree:  degree.In,
			OutDegree: degree.Out,
			Degrees:   degree.In + degree.Out,
			InVal:     val.In,
			OutVal:    val.Out,
			InOuts:    stakes[account],
			Median:    median,
			Weight:    weight,
			Score:     s,
		})
	}

	e.logger.Debugw("Computed nr", "start", start, "end", end, "version", version, "windows", len(windows), "accounts", len(nrs))
	return nrs, nil
}

// medians samples each account's balance once per window, at the window's
// highest transaction height, and returns the normalized median clamped at
// zero.
func (e *Engine) medians(db *AccountDB, accounts []entities.Address, windows [][]entities.TransactionInfo) (map[entities.Address]dfloat.Float, error) {
	samples := make(map[entities.Address][]*big.Int, len(accounts))
	for _, txs := range windows {
		maxHeight := txs[len(txs)-1].Height
		for _, account := range accounts {
			balance, err := db.BalanceAt(account, maxHeight)
			if errors.Is(err, entities.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, errors.Wrapf(err, "balance of [%s] at [%d]", account, maxHeight)
			}
			samples[account] = append(samples[account], balance)
		}
	}

	medians := make(map[entities.Address]dfloat.Float, len(samples))
	for account, s := range samples {
		medians[account] = dfloat.Max(db.Normalize(Median(s)), dfloat.Zero())
	}
	return medians, nil
}

// SplitByBlockInterval groups height-ordered transactions into consecutive
// windows of interval blocks starting at the first transaction's height.
// Windows without transactions are omitted.
func SplitByBlockInterval(txs []entities.TransactionInfo, interval uint64) [][]entities.TransactionInfo {
	if interval == 0 || len(txs) == 0 {
		return nil
	}

	first := txs[0].Height
	var windows [][]entities.TransactionInfo
	var current uint64
	for _, tx := range txs {
		idx := (tx.Height - first) / interval
		if len(windows) == 0 || idx != current {
			windows = append(windows, nil)
			current = idx
		}
		windows[len(windows)-1] = append(windows[len(windows)-1], tx)
	}
	return windows
}

func distinctAccounts(txs []entities.TransactionInfo) []entities.Address {
	seen := make(map[entities.Address]struct{})
	var accounts []entities.Address
	for _, tx := range txs {
		for _, a := range []entities.Address{tx.From, tx.To} {
			if _, ok := seen[a]; !ok {
				seen[a] = struct{}{}
				accounts = append(accounts, a)
			}
		}
	}
	entities.SortAddresses(accounts)
	return accounts
}
