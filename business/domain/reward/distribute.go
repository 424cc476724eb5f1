package reward

import (
	"math/big"
	"slices"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/nebulasio/go-nbre/pkg/dfloat"
	"github.com/pkg/errors"
)

// VoteFunc turns the score of a calling account and its number of calls to
// one contract into that account's vote for the contract.
type VoteFunc func(score dfloat.Float, calls uint64) dfloat.Float

func VoteFor(version uint64) (VoteFunc, error) {
	switch version {
	case 1:
		return voteV1, nil
	case 2:
		return voteV2, nil
	default:
		return nil, errors.Wrapf(entities.ErrUnsupportedVersion, "dip version [%d]", version)
	}
}

func voteV1(score dfloat.Float, calls uint64) dfloat.Float {
	v := score.Mul(dfloat.FromUint64(calls))
	if v.Sign() <= 0 {
		return dfloat.Zero()
	}
	return v
}

func voteV2(score dfloat.Float, calls uint64) dfloat.Float {
	v := score.Mul(dfloat.FromUint64(calls))
	if v.Sign() <= 0 {
		return dfloat.Zero()
	}
	return v.Sqrt()
}

// Participation is min(1, alpha*gamma/(alpha*gamma+beta)) where gamma is the
// share of ranked accounts that called a contract.
func Participation(alpha, beta dfloat.Float, participants, ranked int) dfloat.Float {
	if ranked == 0 || participants == 0 {
		return dfloat.Zero()
	}
	gamma := dfloat.FromInt64(int64(participants)).Quo(dfloat.FromInt64(int64(ranked)))
	ag := alpha.Mul(gamma)
	den := ag.Add(beta)
	if den.Sign() <= 0 {
		if beta.IsZero() && ag.Sign() > 0 {
			return dfloat.One()
		}
		return dfloat.Zero()
	}
	return dfloat.Max(dfloat.Min(ag.Quo(den), dfloat.One()), dfloat.Zero())
}

type callKey struct {
	account  entities.Address
	contract entities.Address
}

// Distribute splits the reward pool among the contracts called in txs,
// proportionally to the votes of their ranked callers. Contracts without a
// known deployer receive nothing. Whatever is not allocated goes back to the
// coinbase as the last entry.
func Distribute(params entities.DIPParams, nrs []entities.NRInfo, txs []entities.TransactionInfo, deployers map[entities.Address]entities.Address) ([]entities.DIPInfo, error) {
	vote, err := VoteFor(params.Version)
	if err != nil {
		return nil, err
	}
	if params.RewardPool == nil || params.RewardPool.Sign() < 0 {
		return nil, errors.Errorf("invalid reward pool [%v]", params.RewardPool)
	}

	scores := make(map[entities.Address]dfloat.Float, len(nrs))
	for _, nr := range nrs {
		scores[nr.Address] = nr.Score
	}

	calls := make(map[callKey]uint64)
	for _, tx := range CallTransactions(txs) {
		if _, ok := scores[tx.From]; !ok {
			continue
		}
		calls[callKey{account: tx.From, contract: tx.To}]++
	}

	keys := make([]callKey, 0, len(calls))
	for k := range calls {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b callKey) int {
		if c := entities.CompareAddresses(a.contract, b.contract); c != 0 {
			return c
		}
		return entities.CompareAddresses(a.account, b.account)
	})

	// votes and their total are exact rationals
	participants := make(map[entities.Address]struct{})
	votes := make(map[entities.Address]*big.Rat)
	var contracts []entities.Address
	total := new(big.Rat)
	for _, k := range keys {
		participants[k.account] = struct{}{}
		v := vote(scores[k.account], calls[k]).Rat()
		if v == nil {
			return nil, errors.Errorf("infinite vote of [%s] for [%s]", k.account, k.contract)
		}
		if _, ok := votes[k.contract]; !ok {
			contracts = append(contracts, k.contract)
			votes[k.contract] = new(big.Rat)
		}
		votes[k.contract].Add(votes[k.contract], v)
		total.Add(total, v)
	}

	lambda := Participation(params.Alpha, params.Beta, len(participants), len(nrs))
	distributable := share(params.RewardPool, lambda.Rat(), big.NewRat(1, 1))

	var dips []entities.DIPInfo
	allocated := new(big.Int)
	if total.Sign() > 0 {
		for _, contract := range contracts {
			deployer, ok := deployers[contract]
			if !ok {
				continue
			}
			reward := share(distributable, votes[contract], total)
			if reward.Sign() <= 0 {
				continue
			}
			dips = append(dips, entities.DIPInfo{Deployer: deployer, Contract: contract, Reward: reward})
			allocated.Add(allocated, reward)
		}
	}

	remainder := new(big.Int).Sub(params.RewardPool, allocated)
	if remainder.Sign() > 0 {
		dips = append(dips, entities.DIPInfo{
			Deployer: params.CoinbaseAddress,
			Contract: params.CoinbaseAddress,
			Reward:   remainder,
		})
	}
	return dips, nil
}

// share is floor(amount * part / total) for a non negative part and a
// positive total.
func share(amount *big.Int, part, total *big.Rat) *big.Int {
	num := new(big.Int).Mul(amount, part.Num())
	num.Mul(num, total.Denom())
	den := new(big.Int).Mul(part.Denom(), total.Num())
	return num.Quo(num, den)
}

// CallTransactions are the successful account to contract calls of txs.
func CallTransactions(txs []entities.TransactionInfo) []entities.TransactionInfo {
	calls := entities.FilterByAddressType(txs, entities.AccountAddress, entities.ContractAddress)
	calls = entities.FilterSuccessful(calls)
	return entities.FilterByTxType(calls, entities.TxTypeCall)
}
