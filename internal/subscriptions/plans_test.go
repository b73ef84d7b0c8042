package subscriptions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/enums"
)

func testStripeConfig() config.StripeConfig {
	return config.StripeConfig{
		PriceIndividual: "price_individual",
		PriceTeam:       "price_team",
		PriceEnterprise: "price_enterprise",
	}
}

func TestPlanCatalogResolvesConfiguredPrices(t *testing.T) {
	catalog, err := NewPlanCatalog(testStripeConfig(), nil)
	require.NoError(t, err)

	ctx := context.Background()
	assert.Equal(t, enums.PlanTierIndividual, catalog.TierForPrice(ctx, "price_individual"))
	assert.Equal(t, enums.PlanTierTeam, catalog.TierForPrice(ctx, "price_team"))
	assert.Equal(t, enums.PlanTierEnterprise, catalog.TierForPrice(ctx, "price_enterprise"))
}

func TestPlanCatalogUnknownPriceFailsClosed(t *testing.T) {
	catalog, err := NewPlanCatalog(testStripeConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, enums.PlanTierIndividual, catalog.TierForPrice(context.Background(), "price_mystery"))
}

func TestPlanCatalogPriceForTier(t *testing.T) {
	catalog, err := NewPlanCatalog(testStripeConfig(), nil)
	require.NoError(t, err)

	price, err := catalog.PriceForTier(enums.PlanTierTeam)
	require.NoError(t, err)
	assert.Equal(t, "price_team", price)

	_, err = catalog.PriceForTier(enums.PlanTier("platinum"))
	require.Error(t, err)
}

func TestPlanCatalogRejectsMissingOrDuplicatePrices(t *testing.T) {
	cfg := testStripeConfig()
	cfg.PriceTeam = ""
	_, err := NewPlanCatalog(cfg, nil)
	require.Error(t, err)

	cfg = testStripeConfig()
	cfg.PriceTeam = cfg.PriceIndividual
	_, err = NewPlanCatalog(cfg, nil)
	require.Error(t, err)
}
