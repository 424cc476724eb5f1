package entities

import (
	"encoding/json"
	"math/big"

	"github.com/nebulasio/go-nbre/pkg/dfloat"
	"github.com/pkg/errors"
)

type DIPParams struct {
	StartBlock      uint64
	BlockInterval   uint64
	RewardAddress   Address
	CoinbaseAddress Address
	Alpha           dfloat.Float
	Beta            dfloat.Float
	// RewardPool is the amount in wei distributed per window.
	RewardPool *big.Int
	Version    uint64
	NRVersion  uint64
}

// DIPParamList is the subset of parameters the node needs to build and
// verify reward transactions.
type DIPParamList struct {
	StartBlock      uint64  `json:"start_block"`
	BlockInterval   uint64  `json:"block_interval"`
	RewardAddress   Address `json:"reward_addr"`
	CoinbaseAddress Address `json:"coinbase_addr"`
}

func (p DIPParams) ParamList() DIPParamList {
	return DIPParamList{
		StartBlock:      p.StartBlock,
		BlockInterval:   p.BlockInterval,
		RewardAddress:   p.RewardAddress,
		CoinbaseAddress: p.CoinbaseAddress,
	}
}

type DIPInfo struct {
	Deployer Address
	Contract Address
	Reward   *big.Int
}

type DIPResult struct {
	Dips []DIPInfo
	Meta *ResultMeta
}

type dipInfoJSON struct {
	Deployer Address `json:"deployer"`
	Contract Address `json:"contract"`
	Reward   string  `json:"reward"`
}

type dipResultJSON struct {
	Dips        []dipInfoJSON `json:"dips"`
	StartHeight *uint64       `json:"start_height,omitempty"`
	EndHeight   *uint64       `json:"end_height,omitempty"`
	Version     *uint64       `json:"version,omitempty"`
}

func (r DIPResult) MarshalJSON() ([]byte, error) {
	out := dipResultJSON{Dips: make([]dipInfoJSON, 0, len(r.Dips))}
	for _, info := range r.Dips {
		out.Dips = append(out.Dips, dipInfoJSON{
			Deployer: info.Deployer,
			Contract: info.Contract,
			Reward:   weiString(info.Reward),
		})
	}
	if r.Meta != nil {
		out.StartHeight, out.EndHeight, out.Version = &r.Meta.StartHeight, &r.Meta.EndHeight, &r.Meta.Version
	}
	return json.Marshal(out)
}

func (r *DIPResult) UnmarshalJSON(data []byte) error {
	var raw dipResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrapf(ErrMalformedRecord, "dip result: %v", err)
	}

	infos := make([]DIPInfo, 0, len(raw.Dips))
	for _, info := range raw.Dips {
		reward, err := ParseWei(info.Reward)
		if err != nil {
			return errors.Wrapf(err, "dip [%s] reward", info.Contract)
		}
		infos = append(infos, DIPInfo{Deployer: info.Deployer, Contract: info.Contract, Reward: reward})
	}

	*r = DIPResult{Dips: infos, Meta: parseMeta(raw.StartHeight, raw.EndHeight, raw.Version)}
	return nil
}
