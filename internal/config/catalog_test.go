package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTierCatalog(t *testing.T) {
	holder, err := NewStaticTierCatalogHolder(DefaultTierCatalog())
	require.NoError(t, err)

	catalog := holder.Get()
	basic, ok := catalog.Tiers["basic"]
	require.True(t, ok)
	assert.Equal(t, 300, basic.MonthlyQuotaLimit)
	assert.Equal(t, 30, basic.PeriodDays)
	assert.Equal(t, int64(2900), basic.AmountFen)
	assert.Contains(t, basic.Features, "export")

	pro, ok := catalog.Tiers["pro"]
	require.True(t, ok)
	assert.Equal(t, 1000, pro.MonthlyQuotaLimit)
	assert.Contains(t, pro.Features, "graph_nodes")

	_, ok = catalog.Tiers["free"]
	assert.False(t, ok, "the free tier is not purchasable and stays out of the catalog")
}

func TestStaticTierCatalogHolderValidation(t *testing.T) {
	tests := []struct {
		name    string
		catalog TierCatalog
	}{
		{name: "empty", catalog: TierCatalog{}},
		{
			name: "zero quota",
			catalog: TierCatalog{Tiers: map[string]TierEntry{
				"basic": {MonthlyQuotaLimit: 0, PeriodDays: 30},
			}},
		},
		{
			name: "zero period",
			catalog: TierCatalog{Tiers: map[string]TierEntry{
				"basic": {MonthlyQuotaLimit: 300, PeriodDays: 0},
			}},
		},
		{
			name: "negative amount",
			catalog: TierCatalog{Tiers: map[string]TierEntry{
				"basic": {MonthlyQuotaLimit: 300, PeriodDays: 30, AmountFen: -1},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewStaticTierCatalogHolder(tt.catalog)
			assert.Error(t, err)
		})
	}
}
