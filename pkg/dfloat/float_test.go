package dfloat

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFloat_StringRoundTrip(t *testing.T) {
	values := []Float{
		FromInt64(0),
		FromInt64(-42),
		FromRat(1, 3),
		FromRat(-22, 7),
		Pi(),
		MustParse("1.5e-40"),
		FromBigInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)),
	}

	for _, v := range values {
		t.Run(v.String(), func(t *testing.T) {
			parsed, err := Parse(v.String())
			require.NoError(t, err)
			require.True(t, v.Equal(parsed))
			require.Equal(t, v.String(), parsed.String())
		})
	}
}

func TestFloat_JSON(t *testing.T) {
	type holder struct {
		Value Float `json:"value"`
	}

	data, err := json.Marshal(holder{Value: FromRat(5, 2)})
	require.NoError(t, err)
	require.JSONEq(t, `{"value":"2.5"}`, string(data))

	var got holder
	require.NoError(t, json.Unmarshal(data, &got))
	require.True(t, got.Value.Equal(FromRat(5, 2)))

	err = json.Unmarshal([]byte(`{"value":"abc"}`), &got)
	require.Error(t, err)
}

func TestFloat_Arithmetic(t *testing.T) {
	a, b := FromInt64(6), FromInt64(4)

	require.True(t, a.Add(b).Equal(FromInt64(10)))
	require.True(t, a.Sub(b).Equal(FromInt64(2)))
	require.True(t, a.Mul(b).Equal(FromInt64(24)))
	require.True(t, a.Quo(b).Equal(FromRat(3, 2)))
	require.True(t, b.Sub(a).Abs().Equal(FromInt64(2)))
	require.Equal(t, 1, a.Cmp(b))
	require.True(t, Max(a, b).Equal(a))
	require.True(t, Min(a, b).Equal(b))
	require.True(t, FromInt64(9).Sqrt().Equal(FromInt64(3)))
	require.True(t, Float{}.IsZero())
	require.True(t, FromInt64(5).mulPow2(-1).Equal(FromRat(5, 2)))
}

func TestFloat_Int(t *testing.T) {
	require.Zero(t, big.NewInt(2).Cmp(FromRat(5, 2).Int()))
	require.Zero(t, big.NewInt(-2).Cmp(FromRat(-5, 2).Int()))

	wei, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	require.True(t, ok)
	require.Equal(t, 0, wei.Cmp(FromBigInt(wei).Int()))
}

func TestFloat_Rat(t *testing.T) {
	require.Zero(t, big.NewRat(5, 2).Cmp(FromRat(5, 2).Rat()))
	require.Zero(t, new(big.Rat).Cmp(Float{}.Rat()))

	third := FromRat(1, 3)
	require.NotZero(t, big.NewRat(1, 3).Cmp(third.Rat()))
	back := newBig().SetRat(third.Rat())
	require.Zero(t, back.Cmp(third.val()))
}
