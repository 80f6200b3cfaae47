package exchange

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(baseURL string) *Fetcher {
	f := NewFetcher(baseURL, 5*time.Second, testLogger())
	f.now = func() time.Time {
		return time.Date(2026, time.September, 1, 12, 0, 0, 0, time.UTC)
	}
	return f
}

func rateBody(date string) string {
	return fmt.Sprintf(`{
		"date": %q,
		"bank": "PB",
		"exchangeRate": [
			{"currency": "EUR", "saleRate": 48.5, "purchaseRate": 47.2},
			{"currency": "USD", "saleRate": 41.3, "purchaseRate": 40.8},
			{"currency": "PLN", "saleRate": 11.1, "purchaseRate": 10.9}
		]
	}`, date)
}

// TestFetchReturnsTablesInOffsetOrder verifies that results come back ordered
// by day offset with no duplicate dates, even though requests complete
// concurrently.
func TestFetchReturnsTablesInOffsetOrder(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		// Later offsets answer first to exercise completion-order shuffling.
		if date == "01.09.2026" {
			time.Sleep(50 * time.Millisecond)
		}
		fmt.Fprint(w, rateBody(date))
	}))
	defer ts.Close()

	fetcher := newTestFetcher(ts.URL)
	q, err := NewQuery(3)
	require.NoError(t, err)

	tables, err := fetcher.Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, tables, 3)

	assert.Equal(t, "01.09.2026", tables[0].Date)
	assert.Equal(t, "31.08.2026", tables[1].Date)
	assert.Equal(t, "30.08.2026", tables[2].Date)
}

// TestFetchDropsFailedDays verifies the mixed-success scenario: valid data
// for offset 0 and a 500 for offset 1 yields exactly one table containing
// the requested currencies.
func TestFetchDropsFailedDays(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "31.08.2026" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, rateBody("01.09.2026"))
	}))
	defer ts.Close()

	fetcher := newTestFetcher(ts.URL)
	q, err := NewQuery(2)
	require.NoError(t, err)

	tables, err := fetcher.Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	table := tables[0]
	assert.Equal(t, "01.09.2026", table.Date)
	assert.Equal(t, []string{"EUR", "USD"}, table.Currencies())
	assert.Equal(t, "48.5", table.Rates["EUR"].Sale.String())
	assert.Equal(t, "40.8", table.Rates["USD"].Purchase.String())
}

// TestFetchFiltersCurrencies verifies that only requested currencies are
// retained from the API response.
func TestFetchFiltersCurrencies(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rateBody("01.09.2026"))
	}))
	defer ts.Close()

	fetcher := newTestFetcher(ts.URL)
	q, err := NewQuery(1, "PLN")
	require.NoError(t, err)

	tables, err := fetcher.Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, tables, 1)

	assert.Equal(t, []string{"EUR", "PLN", "USD"}, tables[0].Currencies())
	assert.NotContains(t, tables[0].Rates, "GBP")
}

// TestFetchMalformedBodyDropsDay verifies that an unparseable response drops
// that day without failing the batch.
func TestFetchMalformedBodyDropsDay(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("date") == "01.09.2026" {
			fmt.Fprint(w, "not json at all")
			return
		}
		fmt.Fprint(w, rateBody(r.URL.Query().Get("date")))
	}))
	defer ts.Close()

	fetcher := newTestFetcher(ts.URL)
	q, err := NewQuery(2)
	require.NoError(t, err)

	tables, err := fetcher.Fetch(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, "31.08.2026", tables[0].Date)
}

// TestFetchAllDaysFailedIsEmptyNotError verifies that zero valid days yields
// an empty result, not a failure.
func TestFetchAllDaysFailedIsEmptyNotError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	fetcher := newTestFetcher(ts.URL)
	q, err := NewQuery(3)
	require.NoError(t, err)

	tables, err := fetcher.Fetch(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, tables)
}

// TestFetchRejectsOutOfRangeWithoutRequests verifies the day-range contract:
// no network traffic happens for an invalid day count.
func TestFetchRejectsOutOfRangeWithoutRequests(t *testing.T) {
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		fmt.Fprint(w, rateBody("01.09.2026"))
	}))
	defer ts.Close()

	fetcher := newTestFetcher(ts.URL)

	for _, days := range []int{0, -2, MaxDays + 1} {
		_, err := fetcher.Fetch(context.Background(), Query{Days: days, Currencies: DefaultCurrencies})
		assert.ErrorIs(t, err, ErrDayRange, "days=%d", days)
	}
	assert.Zero(t, requests.Load())
}
