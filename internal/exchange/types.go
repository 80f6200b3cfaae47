// Package exchange fetches historical currency exchange rates from the
// PrivatBank public API, one concurrent request per day offset, and formats
// the results for chat broadcast.
package exchange

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// MaxDays caps the requested day range, which also caps the number of
// concurrent outbound requests per batch.
const MaxDays = 10

// DefaultCurrencies is the fixed currency set used by the chat command.
var DefaultCurrencies = []string{"EUR", "USD"}

// ErrDayRange is returned when a requested day count falls outside 1..MaxDays.
var ErrDayRange = fmt.Errorf("the maximum number of days should not exceed %d", MaxDays)

// RateEntry holds one currency's sale and purchase rate for a single date.
type RateEntry struct {
	Currency string
	Sale     decimal.Decimal
	Purchase decimal.Decimal
}

// RateTable maps currency codes to their rates for one calendar date. Date is
// the string the rates API echoes back (DD.MM.YYYY).
type RateTable struct {
	Date  string
	Rates map[string]RateEntry
}

// Currencies returns the table's currency codes in sorted order so callers
// can render rows deterministically.
func (t RateTable) Currencies() []string {
	codes := lo.Keys(t.Rates)
	sort.Strings(codes)
	return codes
}

// Query describes one fetch batch: how many days back to request and which
// currencies to retain. Construct it with NewQuery; the currency set is
// normalized once and the value is immutable afterwards.
type Query struct {
	Days       int
	Currencies []string
}

// NewQuery validates the day count and builds the currency set from the
// defaults plus any extra codes, uppercased, deduplicated, and sorted.
func NewQuery(days int, extra ...string) (Query, error) {
	if days < 1 || days > MaxDays {
		return Query{}, fmt.Errorf("%w: got %d", ErrDayRange, days)
	}

	merged := append(append([]string{}, DefaultCurrencies...), extra...)
	codes := lo.FilterMap(merged, func(code string, _ int) (string, bool) {
		trimmed := strings.ToUpper(strings.TrimSpace(code))
		return trimmed, trimmed != ""
	})
	codes = lo.Uniq(codes)
	sort.Strings(codes)

	return Query{Days: days, Currencies: codes}, nil
}

func (q Query) wants(code string) bool {
	return lo.Contains(q.Currencies, code)
}
