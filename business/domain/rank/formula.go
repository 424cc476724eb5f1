package rank

import (
	"math/big"
	"slices"

	"github.com/nebulasio/go-nbre/entities"
	"github.com/nebulasio/go-nbre/pkg/dfloat"
	"github.com/pkg/errors"
)

// ScoreFunc combines an account's median balance and weight into its score.
type ScoreFunc func(params entities.RankParams, median, weight dfloat.Float) (dfloat.Float, error)

func ScoreFor(version uint64) (ScoreFunc, error) {
	switch version {
	case 1:
		return scoreV1, nil
	case 2:
		return scoreV2, nil
	default:
		return nil, errors.Wrapf(entities.ErrUnsupportedVersion, "nr version [%d]", version)
	}
}

// DefaultParams are the coefficients the network ships with.
func DefaultParams() entities.RankParams {
	return entities.RankParams{
		A:      dfloat.FromInt64(100),
		B:      dfloat.FromInt64(2),
		C:      dfloat.FromInt64(6),
		D:      dfloat.FromInt64(9),
		Theta:  dfloat.FromInt64(1),
		Mu:     dfloat.FromInt64(1),
		Lambda: dfloat.FromInt64(2),
	}
}

// Median of the samples; an even count averages the two middle values.
func Median(samples []*big.Int) dfloat.Float {
	if len(samples) == 0 {
		return dfloat.Zero()
	}
	sorted := slices.Clone(samples)
	slices.SortFunc(sorted, func(a, b *big.Int) int { return a.Cmp(b) })

	n := len(sorted)
	m := dfloat.FromBigInt(sorted[n/2])
	if n%2 == 0 {
		m = m.Add(dfloat.FromBigInt(sorted[n/2-1])).Quo(dfloat.FromInt64(2))
	}
	return m
}

// AccountWeight is (in+out) * exp(-2 sin^2(pi/4 - atan(out/in))). Balanced
// flows keep their full volume, one-sided flows are damped by exp(-1).
func AccountWeight(in, out dfloat.Float) (dfloat.Float, error) {
	halfPi := dfloat.Pi().Quo(dfloat.FromInt64(2))
	quarterPi := dfloat.Pi().Quo(dfloat.FromInt64(4))

	atan := halfPi
	if !in.IsZero() {
		var err error
		if atan, err = dfloat.Arctan(out.Quo(in)); err != nil {
			return dfloat.Float{}, errors.Wrap(err, "arctan of flow ratio")
		}
	}

	sin, err := dfloat.Sin(quarterPi.Sub(atan))
	if err != nil {
		return dfloat.Float{}, errors.Wrap(err, "sin of flow angle")
	}
	damping, err := dfloat.Exp(dfloat.FromInt64(-2).Mul(sin).Mul(sin))
	if err != nil {
		return dfloat.Float{}, errors.Wrap(err, "exp of flow angle")
	}
	return in.Add(out).Mul(damping), nil
}

// ratio returns num/den, or zero for a zero denominator.
func ratio(num, den dfloat.Float) dfloat.Float {
	if den.IsZero() {
		return dfloat.Zero()
	}
	return num.Quo(den)
}

// scoreV1 is (S*a/(S+b))^mu * (R*c/(R+d))^lambda.
func scoreV1(p entities.RankParams, median, weight dfloat.Float) (dfloat.Float, error) {
	s, err := dfloat.Pow(ratio(median.Mul(p.A), median.Add(p.B)), p.Mu)
	if err != nil {
		return dfloat.Float{}, errors.Wrap(err, "median term")
	}
	r, err := dfloat.Pow(ratio(weight.Mul(p.C), weight.Add(p.D)), p.Lambda)
	if err != nil {
		return dfloat.Float{}, errors.Wrap(err, "weight term")
	}
	return s.Mul(r), nil
}

// scoreV2 is S/(1+(a/S)^(1/b)) * (theta*R/(R+mu))^lambda, zero unless S > 0.
func scoreV2(p entities.RankParams, median, weight dfloat.Float) (dfloat.Float, error) {
	if median.Sign() <= 0 {
		return dfloat.Zero(), nil
	}
	if p.B.IsZero() {
		return dfloat.Float{}, errors.Wrap(dfloat.ErrDomain, "parameter b is zero")
	}

	damping, err := dfloat.Pow(p.A.Quo(median), dfloat.One().Quo(p.B))
	if err != nil {
		return dfloat.Float{}, errors.Wrap(err, "median term")
	}
	s := median.Quo(dfloat.One().Add(damping))

	r, err := dfloat.Pow(ratio(p.Theta.Mul(weight), weight.Add(p.Mu)), p.Lambda)
	if err != nil {
		return dfloat.Float{}, errors.Wrap(err, "weight term")
	}
	return s.Mul(r), nil
}
