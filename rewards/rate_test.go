package rewards

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRate_DefaultIsOneToOne(t *testing.T) {
	assert.Equal(t, int64(100), OneToOne.Points(100))
	assert.True(t, OneToOne.IsOneToOne())

	// Zero value behaves like the default so an unset Rate is safe.
	var zero Rate
	assert.Equal(t, int64(42), zero.Points(42))
	assert.Equal(t, "1", zero.String())
}

func TestRate_FractionalTruncates(t *testing.T) {
	rate, err := ParseRate("1.5")
	require.NoError(t, err)

	assert.Equal(t, int64(15), rate.Points(10))
	assert.Equal(t, int64(4), rate.Points(3), "4.5 points truncates to 4")
	assert.False(t, rate.IsOneToOne())
}

func TestRate_SmallRateCanYieldZero(t *testing.T) {
	rate, err := ParseRate("0.1")
	require.NoError(t, err)

	assert.Equal(t, int64(0), rate.Points(5))
	assert.Equal(t, int64(10), rate.Points(100))
}

func TestRate_RejectsNonPositive(t *testing.T) {
	_, err := ParseRate("0")
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = NewRate(decimal.NewFromInt(-2))
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = ParseRate("abc")
	assert.Error(t, err)
}
