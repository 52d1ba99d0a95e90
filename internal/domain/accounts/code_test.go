package accounts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
)

func TestParseCode(t *testing.T) {
	tests := []struct {
		in        string
		class     int
		group     string
		synthetic string
		analytic  string
	}{
		{in: "401", class: 4, group: "40", synthetic: "401"},
		{in: "4111", class: 4, group: "41", synthetic: "4111"},
		{in: "4111.00023", class: 4, group: "41", synthetic: "4111", analytic: "00023"},
		{in: " 5121.BCR ", class: 5, group: "51", synthetic: "5121", analytic: "BCR"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseCode(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.class, c.Class)
			assert.Equal(t, tt.group, c.Group)
			assert.Equal(t, tt.synthetic, c.Synthetic)
			assert.Equal(t, tt.analytic, c.Analytic)
		})
	}
}

func TestParseCode_Malformed(t *testing.T) {
	for _, in := range []string{"", "4", "41", "41111", "0401", "4a1", "401.", "401.bad-suffix", "401.x.y"} {
		_, err := ParseCode(in)
		require.Error(t, err, in)
		assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAccount), in)
	}
}

func TestCode_Parent(t *testing.T) {
	parent, ok := MustParseCode("4426").Parent()
	assert.True(t, ok)
	assert.Equal(t, "442", parent)

	_, ok = MustParseCode("401").Parent()
	assert.False(t, ok)
}

func TestDefaultFunction(t *testing.T) {
	assert.Equal(t, FunctionPassive, DefaultFunction(1))
	assert.Equal(t, FunctionActive, DefaultFunction(3))
	assert.Equal(t, FunctionBifunction, DefaultFunction(4))
	assert.Equal(t, FunctionPassive, DefaultFunction(7))
	assert.Equal(t, FunctionOffBalance, DefaultFunction(8))
	assert.Equal(t, FunctionBifunction, DefaultFunction(9))
}

func TestStaticChart_Resolve(t *testing.T) {
	chart := NewDefaultChart()
	ctx := context.Background()
	company := id.New()

	acc, err := chart.Resolve(ctx, company, "4111.00023")
	require.NoError(t, err)
	assert.Equal(t, "4111", acc.Code)
	assert.Equal(t, FunctionActive, acc.Function)

	_, err = chart.Resolve(ctx, company, "4999")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAccount))

	_, err = chart.Resolve(ctx, company, "44x")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidAccount))
}

func TestStaticChart_MergeDefaultsFunctionByClass(t *testing.T) {
	chart := NewDefaultChart()
	require.NoError(t, chart.Merge([]Account{{Code: "6022", Name: "Cheltuieli privind combustibilii"}}))

	acc, err := chart.Resolve(context.Background(), id.New(), "6022")
	require.NoError(t, err)
	assert.Equal(t, FunctionActive, acc.Function)

	assert.Error(t, chart.Merge([]Account{{Code: "6022.01"}}))
	assert.Error(t, chart.Merge([]Account{{Code: "6023", Function: "Z"}}))
}
