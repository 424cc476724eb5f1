package dfloat

import (
	"sync"

	"github.com/pkg/errors"
)

// maxIterations bounds every series expansion. Reaching it is a fatal
// computation error, never a silently truncated result.
const maxIterations = 1000

var (
	ErrNoConvergence = errors.New("series did not converge")
	ErrDomain        = errors.New("argument outside function domain")
)

var (
	zero = FromInt64(0)
	one  = FromInt64(1)

	pi = MustParse("3.14159265358979323846264338327950288419716939937510582097494459")

	// convergence threshold of all series, 2^-Precision
	epsilon = one.mulPow2(-Precision)

	sqrtHalf = FromRat(1, 2).Sqrt()
)

var ln2 = sync.OnceValues(func() (Float, error) {
	// ln(2) = -ln(1/2), expanded around 1 on v = 1/2 - 1
	r, err := lnSeries(FromRat(1, 2).Sub(one))
	if err != nil {
		return Float{}, err
	}
	return r.Neg(), nil
})

func Zero() Float { return zero }
func One() Float  { return one }
func Pi() Float   { return pi }

// converged tests |next-prev| < epsilon without relying on the sign of the
// difference.
func converged(prev, next Float) bool {
	return next.Sub(prev).Cmp(epsilon) < 0 && prev.Sub(next).Cmp(epsilon) < 0
}

// expSeries sums x^i/i!.
func expSeries(x Float) (Float, error) {
	sum, term := one, one
	for i := int64(1); i <= maxIterations; i++ {
		term = term.Mul(x).Quo(FromInt64(i))
		next := sum.Add(term)
		if converged(sum, next) {
			return next, nil
		}
		sum = next
	}
	return Float{}, errors.Wrapf(ErrNoConvergence, "exp(%s)", x)
}

// lnSeries sums (-1)^(i+1) v^i/i, which is ln(1+v) for |v| < 1.
func lnSeries(v Float) (Float, error) {
	sum, pow := zero, one
	for i := int64(1); i <= maxIterations; i++ {
		pow = pow.Mul(v)
		term := pow.Quo(FromInt64(i))
		var next Float
		if i%2 == 0 {
			next = sum.Sub(term)
		} else {
			next = sum.Add(term)
		}
		if converged(sum, next) {
			return next, nil
		}
		sum = next
	}
	return Float{}, errors.Wrapf(ErrNoConvergence, "ln(1+%s)", v)
}

// atanSeries sums (-1)^i x^(2i+1)/(2i+1).
func atanSeries(x Float) (Float, error) {
	sum, pow, x2 := zero, x, x.Mul(x)
	for i := int64(0); i < maxIterations; i++ {
		term := pow.Quo(FromInt64(2*i + 1))
		var next Float
		if i%2 == 0 {
			next = sum.Add(term)
		} else {
			next = sum.Sub(term)
		}
		if converged(sum, next) {
			return next, nil
		}
		sum = next
		pow = pow.Mul(x2)
	}
	return Float{}, errors.Wrapf(ErrNoConvergence, "atan(%s)", x)
}

// sinSeries sums (-1)^i x^(2i+1)/(2i+1)!.
func sinSeries(x Float) (Float, error) {
	sum, term, x2 := zero, x, x.Mul(x)
	for i := int64(0); i < maxIterations; i++ {
		next := sum.Add(term)
		if converged(sum, next) {
			return next, nil
		}
		sum = next
		term = term.Mul(x2).Quo(FromInt64((2*i + 2) * (2*i + 3))).Neg()
	}
	return Float{}, errors.Wrapf(ErrNoConvergence, "sin(%s)", x)
}

// Exp returns e^x. The argument is halved until |x| <= 1 and the series
// result squared back.
func Exp(x Float) (Float, error) {
	if x.IsZero() {
		return one, nil
	}
	if x.IsInf() {
		return Float{}, errors.Wrapf(ErrDomain, "exp(%s)", x)
	}
	if x.Sign() < 0 {
		r, err := Exp(x.Neg())
		if err != nil {
			return Float{}, err
		}
		return one.Quo(r), nil
	}

	halvings := 0
	for x.Cmp(one) > 0 {
		x = x.mulPow2(-1)
		halvings++
	}
	r, err := expSeries(x)
	if err != nil {
		return Float{}, err
	}
	for ; halvings > 0; halvings-- {
		r = r.Mul(r)
	}
	return r, nil
}

// Ln returns the natural logarithm of x > 0. x is split into m·2^k with
// m in [√½, √2) so that ln(m) = ln(1+(m-1)) converges quickly, and
// ln(x) = ln(m) + k·ln(2).
func Ln(x Float) (Float, error) {
	if x.Sign() <= 0 || x.IsInf() {
		return Float{}, errors.Wrapf(ErrDomain, "ln(%s)", x)
	}
	if x.Equal(one) {
		return zero, nil
	}

	mant := newBig()
	k := x.val().MantExp(mant)
	m := Float{mant}
	if m.Cmp(sqrtHalf) < 0 {
		m = m.mulPow2(1)
		k--
	}

	r, err := lnSeries(m.Sub(one))
	if err != nil {
		return Float{}, err
	}
	if k == 0 {
		return r, nil
	}
	l2, err := ln2()
	if err != nil {
		return Float{}, err
	}
	return r.Add(l2.Mul(FromInt64(int64(k)))), nil
}

// Log2 returns ln(x)/ln(2).
func Log2(x Float) (Float, error) {
	r, err := Ln(x)
	if err != nil {
		return Float{}, err
	}
	l2, err := ln2()
	if err != nil {
		return Float{}, err
	}
	return r.Quo(l2), nil
}

// Pow returns exp(y·ln(x)). Negative bases are rejected. 0^y is 0 for
// y > 0 and 1 for y == 0.
func Pow(x, y Float) (Float, error) {
	if y.IsZero() {
		return one, nil
	}
	switch x.Sign() {
	case -1:
		return Float{}, errors.Wrapf(ErrDomain, "pow(%s, %s)", x, y)
	case 0:
		if y.Sign() < 0 {
			return Float{}, errors.Wrapf(ErrDomain, "pow(%s, %s)", x, y)
		}
		return zero, nil
	}
	if x.Equal(one) {
		return one, nil
	}

	l, err := Ln(x)
	if err != nil {
		return Float{}, err
	}
	return Exp(y.Mul(l))
}

// Sin reduces x into [-π, π] before expanding the series.
func Sin(x Float) (Float, error) {
	if x.IsInf() {
		return Float{}, errors.Wrapf(ErrDomain, "sin(%s)", x)
	}
	if x.Abs().Cmp(pi) > 0 {
		twoPi := pi.mulPow2(1)
		q := x.Quo(twoPi)
		if q.Sign() > 0 {
			q = q.Add(FromRat(1, 2))
		} else {
			q = q.Sub(FromRat(1, 2))
		}
		x = x.Sub(FromBigInt(q.Int()).Mul(twoPi))
	}
	return sinSeries(x)
}

// Arctan folds |x| > 1 through π/2 - atan(1/x) and then halves the angle
// once with atan(x) = 2·atan(x/(1+√(1+x²))) before expanding the series.
func Arctan(x Float) (Float, error) {
	if x.IsZero() {
		return zero, nil
	}
	if x.Sign() < 0 {
		r, err := Arctan(x.Neg())
		if err != nil {
			return Float{}, err
		}
		return r.Neg(), nil
	}
	if x.IsInf() {
		return pi.mulPow2(-1), nil
	}
	if x.Cmp(one) > 0 {
		r, err := Arctan(one.Quo(x))
		if err != nil {
			return Float{}, err
		}
		return pi.mulPow2(-1).Sub(r), nil
	}

	y := x.Quo(one.Add(one.Add(x.Mul(x)).Sqrt()))
	r, err := atanSeries(y)
	if err != nil {
		return Float{}, err
	}
	return r.mulPow2(1), nil
}
