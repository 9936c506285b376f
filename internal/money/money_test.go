package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateApply(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		rate   Rate
		want   Amount
	}{
		{"eight percent of 18.00", Dollars(18, 0), Percent(8), Cents(144)},
		{"eighteen percent of 18.00", Dollars(18, 0), Percent(18), Cents(324)},
		{"rounds half up", Cents(5), Percent(10), Cents(1)},
		{"rounds down below half", Cents(4), Percent(10), Cents(0)},
		{"fractional rate", Dollars(100, 0), Rate(825), Dollars(8, 25)},
		{"negative rounds away from zero", Cents(-5), Percent(10), Cents(-1)},
		{"zero rate", Dollars(50, 0), Rate(0), Cents(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rate.Apply(tt.amount))
		})
	}
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "$22.68", Cents(2268).String())
	assert.Equal(t, "$0.05", Cents(5).String())
	assert.Equal(t, "-$1.50", Cents(-150).String())
	assert.Equal(t, "$0.00", Cents(0).String())
}

func TestRateString(t *testing.T) {
	assert.Equal(t, "8%", Percent(8).String())
	assert.Equal(t, "8.25%", Rate(825).String())
	assert.Equal(t, "8.5%", Rate(850).String())
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Amount
	}{
		{"10", Dollars(10, 0)},
		{"10.5", Dollars(10, 50)},
		{"$10.05", Dollars(10, 5)},
		{"-2.25", Cents(-225)},
		{" 0.99 ", Cents(99)},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "1.234", "abc", "1.", "--5", "1.-5", "+5", "1.+5", "- 5", "1e3"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, Cents(0), Cents(-3).Clamp(0, 100))
	assert.Equal(t, Cents(100), Cents(300).Clamp(0, 100))
	assert.Equal(t, Cents(42), Cents(42).Clamp(0, 100))
}
