package subscriptions

import (
	"context"
	"strings"

	"github.com/commitforge/commitforge-backend/pkg/config"
	"github.com/commitforge/commitforge-backend/pkg/enums"
	pkgerrors "github.com/commitforge/commitforge-backend/pkg/errors"
	"github.com/commitforge/commitforge-backend/pkg/logger"
)

// PlanCatalog maps Stripe price IDs to plan tiers and back. The mapping is
// static per process; unknown prices resolve to the individual tier so a
// billing event is never dropped over an unrecognized price.
type PlanCatalog struct {
	priceToTier map[string]enums.PlanTier
	tierToPrice map[enums.PlanTier]string
	logg        *logger.Logger
}

// NewPlanCatalog builds the lookup from configured price IDs.
func NewPlanCatalog(cfg config.StripeConfig, logg *logger.Logger) (*PlanCatalog, error) {
	prices := map[enums.PlanTier]string{
		enums.PlanTierIndividual: strings.TrimSpace(cfg.PriceIndividual),
		enums.PlanTierTeam:       strings.TrimSpace(cfg.PriceTeam),
		enums.PlanTierEnterprise: strings.TrimSpace(cfg.PriceEnterprise),
	}

	priceToTier := make(map[string]enums.PlanTier, len(prices))
	for tier, price := range prices {
		if price == "" {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe price id missing for plan "+tier.String())
		}
		if _, dup := priceToTier[price]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "duplicate stripe price id "+price)
		}
		priceToTier[price] = tier
	}

	return &PlanCatalog{
		priceToTier: priceToTier,
		tierToPrice: prices,
		logg:        logg,
	}, nil
}

// TierForPrice resolves a Stripe price ID to its plan tier. Unknown prices
// fall back to individual with a warning.
func (c *PlanCatalog) TierForPrice(ctx context.Context, priceID string) enums.PlanTier {
	if tier, ok := c.priceToTier[strings.TrimSpace(priceID)]; ok {
		return tier
	}
	if c.logg != nil {
		c.logg.Warn(c.logg.WithField(ctx, "price_id", priceID), "unknown stripe price, defaulting plan to individual")
	}
	return enums.PlanTierIndividual
}

// PriceForTier returns the Stripe price ID backing a tier.
func (c *PlanCatalog) PriceForTier(tier enums.PlanTier) (string, error) {
	price, ok := c.tierToPrice[tier]
	if !ok || price == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown plan tier "+tier.String())
	}
	return price, nil
}
