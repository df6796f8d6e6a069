package priceguess

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want Tier
		err  bool
	}{
		{in: "easy", want: Easy},
		{in: "Medium", want: Medium},
		{in: " HARD ", want: Hard},
		{in: "cruel", want: Cruel},
		{in: "", err: true},
		{in: "brutal", err: true},
	}

	for _, tc := range tests {
		got, err := ParseTier(tc.in)
		if tc.err {
			assert.ErrorIs(t, err, ErrValidation, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}
}

func TestTier_JSON(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(struct {
		D Tier `json:"d"`
	}{D: Cruel})
	require.NoError(t, err)
	assert.JSONEq(t, `{"d":"cruel"}`, string(data))

	var tier Tier
	require.NoError(t, json.Unmarshal([]byte(`"hard"`), &tier))
	assert.Equal(t, Hard, tier)

	assert.ErrorIs(t, json.Unmarshal([]byte(`"nope"`), &tier), ErrValidation)
	assert.ErrorIs(t, json.Unmarshal([]byte(`3`), &tier), ErrValidation)
}

func TestTier_Multiplier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1.0, Easy.Multiplier())
	assert.Equal(t, 1.5, Medium.Multiplier())
	assert.Equal(t, 2.0, Hard.Multiplier())
	assert.Equal(t, 3.0, Cruel.Multiplier())
	assert.Equal(t, 1.0, Tier(42).Multiplier())
	assert.Equal(t, "tier(42)", Tier(42).String())
}
