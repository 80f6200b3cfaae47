package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkovalchuk/ratechat/internal/exchange"
)

// TestParseFetchArgs verifies argument validation and currency merging
// without any network involvement.
func TestParseFetchArgs(t *testing.T) {
	t.Run("defaults to one day", func(t *testing.T) {
		q, err := parseFetchArgs(nil)
		require.NoError(t, err)
		assert.Equal(t, 1, q.Days)
		assert.Equal(t, []string{"EUR", "USD"}, q.Currencies)
	})

	t.Run("merges extra currencies", func(t *testing.T) {
		q, err := parseFetchArgs([]string{"2", "pln", "chf"})
		require.NoError(t, err)
		assert.Equal(t, 2, q.Days)
		assert.Equal(t, []string{"CHF", "EUR", "PLN", "USD"}, q.Currencies)
	})

	t.Run("non-numeric day count", func(t *testing.T) {
		_, err := parseFetchArgs([]string{"abc"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "'abc' is not an integer")
	})

	t.Run("negative day count", func(t *testing.T) {
		_, err := parseFetchArgs([]string{"-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "'-1' is not an integer")
	})

	t.Run("out of range day count", func(t *testing.T) {
		_, err := parseFetchArgs([]string{"11"})
		assert.ErrorIs(t, err, exchange.ErrDayRange)
	})
}

// TestFetchCommandPrintsTables runs the fetch command against a mock API and
// checks the rendered output.
func TestFetchCommandPrintsTables(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"date": %q,
			"exchangeRate": [
				{"currency": "EUR", "saleRate": 48.5, "purchaseRate": 47.2},
				{"currency": "USD", "saleRate": 41.3, "purchaseRate": 40.8}
			]
		}`, r.URL.Query().Get("date"))
	}))
	defer ts.Close()

	cmd := newFetchCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"1", "--api-url", ts.URL, "--timing"})

	require.NoError(t, cmd.Execute())

	output := out.String()
	assert.Contains(t, output, "EUR")
	assert.Contains(t, output, "48.5")
	assert.Contains(t, output, "USD")
	assert.Contains(t, output, "elapsed:")
}

// TestFetchCommandRejectsBadDayCountWithoutRequests verifies that invalid
// day counts produce a descriptive error and no outbound traffic.
func TestFetchCommandRejectsBadDayCountWithoutRequests(t *testing.T) {
	var requests atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
	}))
	defer ts.Close()

	for _, dayArg := range []string{"abc", "0", "11", "-4"} {
		cmd := newFetchCmd()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"--api-url", ts.URL, "--", dayArg})

		err := cmd.Execute()
		require.Error(t, err, "day arg %q", dayArg)
	}
	assert.Zero(t, requests.Load())
}
