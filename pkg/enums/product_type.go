package enums

import "fmt"

// ProductType selects the fulfillment handler for an order line.
type ProductType string

const (
	ProductTypeData     ProductType = "data"
	ProductTypeAirtime  ProductType = "airtime"
	ProductTypeTV       ProductType = "tv"
	ProductTypeElectric ProductType = "electric"
	ProductTypePackage  ProductType = "package"
	ProductTypeDigital  ProductType = "digital"
	ProductTypeCourse   ProductType = "course"
	ProductTypePhysical ProductType = "physical"
)

var validProductTypes = []ProductType{
	ProductTypeData,
	ProductTypeAirtime,
	ProductTypeTV,
	ProductTypeElectric,
	ProductTypePackage,
	ProductTypeDigital,
	ProductTypeCourse,
	ProductTypePhysical,
}

// String implements fmt.Stringer.
func (p ProductType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProductType.
func (p ProductType) IsValid() bool {
	for _, candidate := range validProductTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsUtility reports whether the product is a bill payment served by a partner.
func (p ProductType) IsUtility() bool {
	switch p {
	case ProductTypeData, ProductTypeAirtime, ProductTypeTV, ProductTypeElectric:
		return true
	}
	return false
}

// ParseProductType converts raw input into a ProductType.
func ParseProductType(value string) (ProductType, error) {
	for _, candidate := range validProductTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product type %q", value)
}
