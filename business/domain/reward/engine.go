package reward

import (
	"context"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type Ranker interface {
	Scores(ctx context.Context, start, end, version uint64) ([]entities.NRInfo, error)
}

type TransactionProvider interface {
	ReadTransactions(ctx context.Context, startHeight, endHeight uint64) ([]entities.TransactionInfo, error)
}

type DeployerProvider interface {
	// Deployer returns entities.ErrNotFound for unknown contracts.
	Deployer(ctx context.Context, contract entities.Address) (entities.Address, error)
}

type Engine struct {
	ranker       Ranker
	transactions TransactionProvider
	deployers    DeployerProvider
	params       entities.DIPParams
	logger       *zap.SugaredLogger
}

func NewEngine(ranker Ranker, transactions TransactionProvider, deployers DeployerProvider, params entities.DIPParams, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		ranker:       ranker,
		transactions: transactions,
		deployers:    deployers,
		params:       params,
		logger:       logger,
	}
}

// Compute distributes the reward pool of the window [start, end].
func (e *Engine) Compute(ctx context.Context, start, end uint64) ([]entities.DIPInfo, error) {
	nrs, err := e.ranker.Scores(ctx, start, end, e.params.NRVersion)
	if err != nil {
		return nil, errors.Wrapf(err, "ranking [%d-%d]", start, end)
	}

	txs, err := e.transactions.ReadTransactions(ctx, start, end)
	if err != nil {
		return nil, errors.Wrapf(err, "reading transactions [%d-%d]", start, end)
	}

	deployers := make(map[entities.Address]entities.Address)
	seen := make(map[entities.Address]struct{})
	for _, tx := range CallTransactions(txs) {
		if _, ok := seen[tx.To]; ok {
			continue
		}
		seen[tx.To] = struct{}{}
		deployer, err := e.deployers.Deployer(ctx, tx.To)
		if errors.Is(err, entities.ErrNotFound) {
			e.logger.Warnw("Unknown contract deployer", "contract", tx.To.String())
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "getting deployer of [%s]", tx.To)
		}
		deployers[tx.To] = deployer
	}

	dips, err := Distribute(e.params, nrs, txs, deployers)
	if err != nil {
		return nil, errors.Wrap(err, "distributing rewards")
	}
	e.logger.Debugw("Computed dip", "start", start, "end", end, "ranked", len(nrs), "contracts", len(deployers), "rewards", len(dips))
	return dips, nil
}
