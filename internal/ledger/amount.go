package ledger

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseAmount normalises free-form numeric input into Money. Operator-entered
// fields arrive from the front end as numbers or strings; anything that does
// not parse as a finite number is coerced to 0 so a bad entry never propagates
// NaN into totals.
func ParseAmount(v any) Money {
	switch val := v.(type) {
	case nil:
		return 0
	case Money:
		return val
	case int:
		return Money(val)
	case float64:
		return moneyFromFloat(val)
	case json.Number:
		return parseAmountString(val.String())
	case string:
		return parseAmountString(val)
	default:
		return 0
	}
}

func parseAmountString(s string) Money {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return moneyFromFloat(f)
}

func moneyFromFloat(f float64) Money {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return Money(math.Trunc(f))
}
