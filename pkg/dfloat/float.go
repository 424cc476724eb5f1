// Package dfloat provides a fixed precision software floating point value
// whose arithmetic and transcendental functions produce identical bit
// patterns on every platform. It never touches the hardware float unit.
package dfloat

import (
	"math/big"

	"github.com/pkg/errors"
)

// Precision is the mantissa width in bits of every Float.
const Precision = 128

// Float is an immutable deterministic floating point number.
// The zero value is 0.
type Float struct {
	v *big.Float
}

func newBig() *big.Float {
	return new(big.Float).SetPrec(Precision).SetMode(big.ToNearestEven)
}

func (f Float) val() *big.Float {
	if f.v == nil {
		return newBig()
	}
	return f.v
}

func FromInt64(i int64) Float {
	return Float{newBig().SetInt64(i)}
}

func FromUint64(u uint64) Float {
	return Float{newBig().SetUint64(u)}
}

// FromBigInt rounds i to Precision bits. A nil i is treated as 0.
func FromBigInt(i *big.Int) Float {
	if i == nil {
		return Float{}
	}
	return Float{newBig().SetInt(i)}
}

// FromRat returns num/den rounded to Precision bits.
func FromRat(num, den int64) Float {
	return FromInt64(num).Quo(FromInt64(den))
}

// Parse reads a decimal or scientific notation string produced by String.
func Parse(s string) (Float, error) {
	f, _, err := newBig().Parse(s, 10)
	if err != nil {
		return Float{}, errors.Wrapf(err, "parsing float [%s]", s)
	}
	return Float{f}, nil
}

// MustParse is Parse for package level constants.
func MustParse(s string) Float {
	f, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return f
}

func (f Float) Add(g Float) Float {
	return Float{newBig().Add(f.val(), g.val())}
}

func (f Float) Sub(g Float) Float {
	return Float{newBig().Sub(f.val(), g.val())}
}

func (f Float) Mul(g Float) Float {
	return Float{newBig().Mul(f.val(), g.val())}
}

// Quo returns f/g. Dividing a non zero value by zero yields an infinity,
// 0/0 panics with big.ErrNaN.
func (f Float) Quo(g Float) Float {
	return Float{newBig().Quo(f.val(), g.val())}
}

func (f Float) Neg() Float {
	return Float{newBig().Neg(f.val())}
}

func (f Float) Abs() Float {
	return Float{newBig().Abs(f.val())}
}

// Sqrt panics for negative values, like big.Float.Sqrt.
func (f Float) Sqrt() Float {
	if f.IsZero() {
		return Float{}
	}
	return Float{newBig().Sqrt(f.val())}
}

// mulPow2 returns f·2^k exactly.
func (f Float) mulPow2(k int) Float {
	if f.IsZero() {
		return f
	}
	mant := newBig()
	exp := f.val().MantExp(mant)
	return Float{newBig().SetMantExp(mant, exp+k)}
}

// Cmp returns -1, 0 or +1 as f is less than, equal to or greater than g.
func (f Float) Cmp(g Float) int {
	return f.val().Cmp(g.val())
}

func (f Float) Equal(g Float) bool {
	return f.Cmp(g) == 0
}

func (f Float) Sign() int {
	return f.val().Sign()
}

func (f Float) IsZero() bool {
	return f.Sign() == 0
}

func (f Float) IsInf() bool {
	return f.val().IsInf()
}

// Int truncates f towards zero. Infinities return nil.
func (f Float) Int() *big.Int {
	if f.IsInf() {
		return nil
	}
	i, _ := f.val().Int(nil)
	return i
}

// Rat returns the exact value of f. Infinities return nil.
func (f Float) Rat() *big.Rat {
	if f.IsInf() {
		return nil
	}
	r, _ := f.val().Rat(nil)
	return r
}

// Float64 is lossy and only meant for metrics and logs.
func (f Float) Float64() float64 {
	v, _ := f.val().Float64()
	return v
}

// String prints the shortest decimal representation that parses back to the
// same bit pattern at Precision.
func (f Float) String() string {
	return f.val().Text('g', -1)
}

func (f Float) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

func (f *Float) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

func Max(a, b Float) Float {
	if a.Cmp(b) >= 0 {
		return a
	}
	return b
}

func Min(a, b Float) Float {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}
