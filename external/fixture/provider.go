package fixture

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"os"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/pkg/errors"
)

// Provider serves transactions, balances, deployers and chain status from a
// JSON document instead of a live node.
type Provider struct {
	chain        entities.ChainStatus
	balances     map[entities.Address]*big.Int
	deployers    map[entities.Address]entities.Address
	transactions []entities.TransactionInfo
}

type document struct {
	Chain        entities.ChainStatus                  `json:"chain"`
	Balances     map[entities.Address]string           `json:"balances"`
	Deployers    map[entities.Address]entities.Address `json:"deployers"`
	Transactions []entities.TransactionInfo            `json:"transactions"`
}

func Load(path string) (*Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening fixture")
	}
	defer f.Close()

	return Parse(f)
}

func Parse(r io.Reader) (*Provider, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decoding fixture")
	}

	balances := make(map[entities.Address]*big.Int, len(doc.Balances))
	for address, value := range doc.Balances {
		balance, err := entities.ParseWei(value)
		if err != nil {
			return nil, errors.Wrapf(err, "balance of [%s]", address)
		}
		balances[address] = balance
	}

	txs := doc.Transactions
	entities.SortTransactions(txs)

	chain := doc.Chain
	if chain.TailHeight == 0 && len(txs) > 0 {
		chain.TailHeight = txs[len(txs)-1].Height
	}
	if chain.LibHeight == 0 {
		chain.LibHeight = chain.TailHeight
	}

	return &Provider{
		chain:        chain,
		balances:     balances,
		deployers:    doc.Deployers,
		transactions: txs,
	}, nil
}

func (p *Provider) ReadTransactions(_ context.Context, start, end uint64) ([]entities.TransactionInfo, error) {
	txs := make([]entities.TransactionInfo, 0)
	for _, tx := range p.transactions {
		if tx.Height >= start && tx.Height <= end {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

func (p *Provider) LatestHeight(_ context.Context) (uint64, error) {
	if len(p.transactions) == 0 {
		return 0, nil
	}
	return p.transactions[len(p.transactions)-1].Height, nil
}

// GetBalance returns the fixture balance at any height.
func (p *Provider) GetBalance(_ context.Context, address entities.Address, _ uint64) (*big.Int, error) {
	balance, ok := p.balances[address]
	if !ok {
		return nil, errors.Wrapf(entities.ErrNotFound, "fixture balance of [%s]", address)
	}
	return new(big.Int).Set(balance), nil
}

func (p *Provider) Deployer(_ context.Context, contract entities.Address) (entities.Address, error) {
	deployer, ok := p.deployers[contract]
	if !ok {
		return entities.Address{}, errors.Wrapf(entities.ErrNotFound, "fixture deployer of [%s]", contract)
	}
	return deployer, nil
}

func (p *Provider) GetChainStatus(_ context.Context) (entities.ChainStatus, error) {
	return p.chain, nil
}

func (p *Provider) TailHeight(_ context.Context) (uint64, error) {
	return p.chain.TailHeight, nil
}
