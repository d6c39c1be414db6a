package enums

import "fmt"

// CommissionTier identifies one leg of the brand hierarchy commission split.
type CommissionTier string

const (
	CommissionTierProductBrand       CommissionTier = "product_brand"
	CommissionTierProductParentBrand CommissionTier = "product_parent_brand"
	CommissionTierOrderBrand         CommissionTier = "order_brand"
	CommissionTierOrderParentBrand   CommissionTier = "order_parent_brand"
	CommissionTierMaster             CommissionTier = "master"
)

// CommissionTiers lists every tier in settlement order.
var CommissionTiers = []CommissionTier{
	CommissionTierProductBrand,
	CommissionTierProductParentBrand,
	CommissionTierOrderBrand,
	CommissionTierOrderParentBrand,
	CommissionTierMaster,
}

// String implements fmt.Stringer.
func (c CommissionTier) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CommissionTier.
func (c CommissionTier) IsValid() bool {
	for _, candidate := range CommissionTiers {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommissionTier converts raw input into a CommissionTier.
func ParseCommissionTier(value string) (CommissionTier, error) {
	for _, candidate := range CommissionTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commission tier %q", value)
}
