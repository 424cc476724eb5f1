package entities

import (
	"encoding/json"
	"math/big"

	"github.com/nebulasio/go-nbre/pkg/dfloat"
	"github.com/pkg/errors"
)

// RankParams are the coefficients of the score formula. Version 1 uses
// a, b, c, d, mu and lambda. Version 2 uses a, b, theta, mu and lambda.
type RankParams struct {
	A      dfloat.Float
	B      dfloat.Float
	C      dfloat.Float
	D      dfloat.Float
	Theta  dfloat.Float
	Mu     dfloat.Float
	Lambda dfloat.Float
}

// NRInfo is the rank record of one account.
type NRInfo struct {
	Address   Address
	InDegree  uint64
	OutDegree uint64
	Degrees   uint64
	InVal     *big.Int
	OutVal    *big.Int
	// InOuts is the stake, incoming minus outgoing value.
	InOuts *big.Int
	Median dfloat.Float
	Weight dfloat.Float
	Score  dfloat.Float
}

type NRResult struct {
	NRs  []NRInfo
	Meta *ResultMeta
}

type nrInfoJSON struct {
	Address   Address      `json:"address"`
	InDegree  uint64       `json:"in_degree"`
	OutDegree uint64       `json:"out_degree"`
	Degrees   uint64       `json:"degrees"`
	InVal     string       `json:"in_val"`
	OutVal    string       `json:"out_val"`
	InOuts    string       `json:"in_outs"`
	Median    dfloat.Float `json:"median"`
	Weight    dfloat.Float `json:"weight"`
	Score     dfloat.Float `json:"score"`
}

type nrResultJSON struct {
	NRs         []nrInfoJSON `json:"nrs"`
	StartHeight *uint64      `json:"start_height,omitempty"`
	EndHeight   *uint64      `json:"end_height,omitempty"`
	Version     *uint64      `json:"version,omitempty"`
}

func (r NRResult) MarshalJSON() ([]byte, error) {
	out := nrResultJSON{NRs: make([]nrInfoJSON, 0, len(r.NRs))}
	for _, info := range r.NRs {
		out.NRs = append(out.NRs, nrInfoJSON{
			Address:   info.Address,
			InDegree:  info.InDegree,
			OutDegree: info.OutDegree,
			Degrees:   info.Degrees,
			InVal:     weiString(info.InVal),
			OutVal:    weiString(info.OutVal),
			InOuts:    weiString(info.InOuts),
			Median:    info.Median,
			Weight:    info.Weight,
			Score:     info.Score,
		})
	}
	if r.Meta != nil {
		out.StartHeight, out.EndHeight, out.Version = &r.Meta.StartHeight, &r.Meta.EndHeight, &r.Meta.Version
	}
	return json.Marshal(out)
}

func (r *NRResult) UnmarshalJSON(data []byte) error {
	var raw nrResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrapf(ErrMalformedRecord, "nr result: %v", err)
	}

	infos := make([]NRInfo, 0, len(raw.NRs))
	for _, info := range raw.NRs {
		inVal, err := ParseWei(info.InVal)
		if err != nil {
			return errors.Wrapf(err, "nr [%s] in_val", info.Address)
		}
		outVal, err := ParseWei(info.OutVal)
		if err != nil {
			return errors.Wrapf(err, "nr [%s] out_val", info.Address)
		}
		inOuts, ok := new(big.Int).SetString(info.InOuts, 10)
		if !ok {
			return errors.Wrapf(ErrMalformedRecord, "nr [%s] in_outs [%s]", info.Address, info.InOuts)
		}
		infos = append(infos, NRInfo{
			Address:   info.Address,
			InDegree:  info.InDegree,
			OutDegree: info.OutDegree,
			Degrees:   info.Degrees,
			InVal:     inVal,
			OutVal:    outVal,
			InOuts:    inOuts,
			Median:    info.Median,
			Weight:    info.Weight,
			Score:     info.Score,
		})
	}

	*r = NRResult{NRs: infos, Meta: parseMeta(raw.StartHeight, raw.EndHeight, raw.Version)}
	return nil
}

func parseMeta(start, end, version *uint64) *ResultMeta {
	if start == nil && end == nil && version == nil {
		return nil
	}
	var meta ResultMeta
	if start != nil {
		meta.StartHeight = *start
	}
	if end != nil {
		meta.EndHeight = *end
	}
	if version != nil {
		meta.Version = *version
	}
	return &meta
}
