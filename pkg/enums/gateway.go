package enums

import "fmt"

// Gateway names the rail a payment moves through.
type Gateway string

const (
	GatewayWallet      Gateway = "wallet"
	GatewayPaystack    Gateway = "paystack"
	GatewayFlutterwave Gateway = "flutterwave"
)

var validGateways = []Gateway{
	GatewayWallet,
	GatewayPaystack,
	GatewayFlutterwave,
}

// String implements fmt.Stringer.
func (g Gateway) String() string {
	return string(g)
}

// IsValid reports whether the value is a known Gateway.
func (g Gateway) IsValid() bool {
	for _, candidate := range validGateways {
		if candidate == g {
			return true
		}
	}
	return false
}

// IsExternal reports whether the gateway is a third-party processor.
func (g Gateway) IsExternal() bool {
	return g == GatewayPaystack || g == GatewayFlutterwave
}

// ParseGateway converts raw input into a Gateway.
func ParseGateway(value string) (Gateway, error) {
	for _, candidate := range validGateways {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gateway %q", value)
}
