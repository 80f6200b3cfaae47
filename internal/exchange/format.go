package exchange

import "strings"

// Broadcast lines are fixed-width so that every client renders the same
// table. Values longer than the column width are emitted unpadded; the pipe
// separators keep the line parseable either way.
const (
	separatorWidth = 20
	columnWidth    = 6
)

// HeaderLine opens a broadcast rate table.
const HeaderLine = "Currency exchange rate"

// LoadingLine marks the start of a fetch in the chat stream.
func LoadingLine() string {
	return center("loading", separatorWidth, '-')
}

// DateLine renders the dash-padded separator that precedes one day's rows.
func DateLine(date string) string {
	return center(date, separatorWidth, '-')
}

// ColumnHeader renders the column legend for one day's rows.
func ColumnHeader() string {
	return row("Curr", "Sale", "Buy")
}

// RateLine renders one currency's sale and purchase rates.
func RateLine(entry RateEntry) string {
	return row(entry.Currency, entry.Sale.String(), entry.Purchase.String())
}

func row(currency, sale, buy string) string {
	cells := []string{
		center(currency, columnWidth, ' '),
		center(sale, columnWidth, ' '),
		center(buy, columnWidth, ' '),
	}
	return strings.Join(cells, "|")
}

func center(s string, width int, pad byte) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(string(pad), left) + s + strings.Repeat(string(pad), right)
}
