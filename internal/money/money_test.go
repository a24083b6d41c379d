package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestScale(t *testing.T) {
	s, err := Scale("USD")
	require.NoError(t, err)
	require.Equal(t, int32(2), s)

	s, err = Scale("JPY")
	require.NoError(t, err)
	require.Equal(t, int32(0), s)

	_, err = Scale("NOPE")
	require.ErrorIs(t, err, ErrUnknownCurrency)
}

func TestScaleOverride(t *testing.T) {
	SetScaleOverride("XTS", 3)
	defer delete(overrides, "XTS")
	s, err := Scale("XTS")
	require.NoError(t, err)
	require.Equal(t, int32(3), s)
}

func TestRoundBankers(t *testing.T) {
	// round-half-even at scale 2
	require.Equal(t, "0.12", Round(decimal.RequireFromString("0.125"), 2).String())
	require.Equal(t, "0.14", Round(decimal.RequireFromString("0.135"), 2).String())
	require.Equal(t, "1.00", Round(decimal.RequireFromString("1.005"), 2).StringFixed(2))
}

func TestWithinEpsilon(t *testing.T) {
	a := decimal.RequireFromString("100.00")
	b := decimal.RequireFromString("100.0001")
	require.True(t, WithinEpsilon(a, b, 2))

	c := decimal.RequireFromString("100.001")
	require.False(t, WithinEpsilon(a, c, 2))
}

func TestConvert(t *testing.T) {
	foreign := decimal.RequireFromString("100.00")
	rate := decimal.RequireFromString("1.0857")
	require.Equal(t, "108.57", Convert(foreign, rate).StringFixed(2))
}

func TestSideValid(t *testing.T) {
	require.True(t, SideDebit.Valid())
	require.True(t, SideCredit.Valid())
	require.False(t, Side("BOTH").Valid())
}
