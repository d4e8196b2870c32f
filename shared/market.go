package shared

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MarketType represents the class of a traded instrument.
type MarketType int

const (
	Stocks MarketType = iota
	Forex
	Crypto
)

// String stringifies the provided market type.
func (m MarketType) String() string {
	switch m {
	case Stocks:
		return "stocks"
	case Forex:
		return "forex"
	case Crypto:
		return "crypto"
	default:
		return "unknown"
	}
}

// ParseMarketType parses a market type from its string form.
func ParseMarketType(str string) (MarketType, error) {
	switch strings.ToLower(strings.TrimSpace(str)) {
	case "stocks", "stock":
		return Stocks, nil
	case "forex", "forexpair":
		return Forex, nil
	case "crypto":
		return Crypto, nil
	default:
		return 0, fmt.Errorf("unknown market type: %s", str)
	}
}

// MarshalJSON stringifies the market type for serialization.
func (m MarketType) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON parses the market type from its serialized string form.
func (m *MarketType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}

	mt, err := ParseMarketType(str)
	if err != nil {
		return err
	}

	*m = mt
	return nil
}
