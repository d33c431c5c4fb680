package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessRate_ZeroTotalIsNil(t *testing.T) {
	assert.Nil(t, successRate(0, 0))
}

func TestSuccessRate_Computed(t *testing.T) {
	rate := successRate(10, 7)
	require.NotNil(t, rate)
	assert.InDelta(t, 0.7, *rate, 1e-9)

	zero := successRate(10, 0)
	require.NotNil(t, zero)
	assert.Equal(t, 0.0, *zero)
}

func TestWidenToBaseline(t *testing.T) {
	cases := []struct {
		from string
		want string
	}{
		{"2026-03-15", "2026-02-01"},
		{"2026-03-01", "2026-02-01"},
		{"2026-01-10", "2025-12-01"},
	}
	for _, tc := range cases {
		got, err := widenToBaseline(tc.from)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "from %s", tc.from)
	}
}

func TestWidenToBaseline_RejectsMalformed(t *testing.T) {
	_, err := widenToBaseline("March 2026")
	assert.Error(t, err)
}
