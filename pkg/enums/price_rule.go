package enums

import "fmt"

// AdjustmentType is how a price rule changes the base price.
type AdjustmentType string

const (
	AdjustmentTypePercentage AdjustmentType = "percentage"
	AdjustmentTypeFixed      AdjustmentType = "fixed"
)

// AdjustmentDirection is whether a price rule raises or lowers the price.
type AdjustmentDirection string

const (
	AdjustmentDirectionIncrease AdjustmentDirection = "increase"
	AdjustmentDirectionDecrease AdjustmentDirection = "decrease"
)

// ParseAdjustmentType converts raw input into an AdjustmentType.
func ParseAdjustmentType(value string) (AdjustmentType, error) {
	switch AdjustmentType(value) {
	case AdjustmentTypePercentage, AdjustmentTypeFixed:
		return AdjustmentType(value), nil
	}
	return "", fmt.Errorf("invalid adjustment type %q", value)
}

// ParseAdjustmentDirection converts raw input into an AdjustmentDirection.
func ParseAdjustmentDirection(value string) (AdjustmentDirection, error) {
	switch AdjustmentDirection(value) {
	case AdjustmentDirectionIncrease, AdjustmentDirectionDecrease:
		return AdjustmentDirection(value), nil
	}
	return "", fmt.Errorf("invalid adjustment direction %q", value)
}
