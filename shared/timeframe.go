package shared

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DateLayout is the format layout for parsing request dates.
	DateLayout = "2006-01-02"
)

// Timeframe represents the market data time period.
type Timeframe int

const (
	OneMinute Timeframe = iota
	FiveMinute
	FifteenMinute
	ThirtyMinute
	OneHour
	FourHour
	OneDay
	OneWeek
	OneMonth
)

// String stringifies the provided timeframe.
func (t Timeframe) String() string {
	switch t {
	case OneMinute:
		return "1m"
	case FiveMinute:
		return "5m"
	case FifteenMinute:
		return "15m"
	case ThirtyMinute:
		return "30m"
	case OneHour:
		return "1h"
	case FourHour:
		return "4h"
	case OneDay:
		return "1d"
	case OneWeek:
		return "1w"
	case OneMonth:
		return "1mo"
	default:
		return "unknown"
	}
}

// Duration returns the nominal bucket width of the timeframe. Weeks and
// months use their calendar approximations, which suffices for comparing
// granularities.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case OneMinute:
		return time.Minute
	case FiveMinute:
		return time.Minute * 5
	case FifteenMinute:
		return time.Minute * 15
	case ThirtyMinute:
		return time.Minute * 30
	case OneHour:
		return time.Hour
	case FourHour:
		return time.Hour * 4
	case OneDay:
		return time.Hour * 24
	case OneWeek:
		return time.Hour * 24 * 7
	case OneMonth:
		return time.Hour * 24 * 30
	default:
		return 0
	}
}

// ParseTimeframe parses a timeframe from its string form.
func ParseTimeframe(str string) (Timeframe, error) {
	switch str {
	case "1m":
		return OneMinute, nil
	case "5m":
		return FiveMinute, nil
	case "15m":
		return FifteenMinute, nil
	case "30m":
		return ThirtyMinute, nil
	case "1h":
		return OneHour, nil
	case "4h":
		return FourHour, nil
	case "1d":
		return OneDay, nil
	case "1w":
		return OneWeek, nil
	case "1mo":
		return OneMonth, nil
	default:
		return 0, fmt.Errorf("unknown timeframe: %s", str)
	}
}

// MarshalJSON stringifies the timeframe for serialization.
func (t Timeframe) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the timeframe from its serialized string form.
func (t *Timeframe) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}

	tf, err := ParseTimeframe(str)
	if err != nil {
		return err
	}

	*t = tf
	return nil
}
