package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mkovalchuk/ratechat/internal/exchange"
)

func newFetchCmd() *cobra.Command {
	var (
		timing  bool
		apiURL  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch [days] [currency...]",
		Short: "Fetch exchange rates for the past days and print them",
		Long:  "Fetch exchange rates for up to 10 past days (default 1). Extra currency codes are added to the default EUR/USD set.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, args, timing, apiURL, timeout)
		},
	}

	cmd.Flags().BoolVar(&timing, "timing", false, "print total elapsed wall time")
	cmd.Flags().StringVar(&apiURL, "api-url", exchange.DefaultBaseURL, "exchange rates API base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "per-request HTTP timeout")
	return cmd
}

func runFetch(cmd *cobra.Command, args []string, timing bool, apiURL string, timeout time.Duration) error {
	start := time.Now()

	query, err := parseFetchArgs(args)
	if err != nil {
		return err
	}

	logger := newLogger("WARN")
	fetcher := exchange.NewFetcher(apiURL, timeout, logger)

	tables, err := fetcher.Fetch(cmd.Context(), query)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, table := range tables {
		printTable(out, table)
	}
	if timing {
		fmt.Fprintf(out, "elapsed: %s\n", time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// parseFetchArgs validates the positional day count and builds the query
// without touching the network. args[0] is the day count (default "1"); the
// rest are extra currency codes.
func parseFetchArgs(args []string) (exchange.Query, error) {
	dayArg := "1"
	if len(args) > 0 {
		dayArg = args[0]
	}

	days, err := strconv.Atoi(dayArg)
	if err != nil || days < 0 {
		return exchange.Query{}, fmt.Errorf("type '%s' is not an integer", dayArg)
	}

	var extras []string
	if len(args) > 1 {
		extras = args[1:]
	}
	return exchange.NewQuery(days, extras...)
}

func printTable(w io.Writer, t exchange.RateTable) {
	fmt.Fprintln(w, t.Date)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Curr", "Sale", "Buy"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, code := range t.Currencies() {
		entry := t.Rates[code]
		table.Append([]string{entry.Currency, entry.Sale.String(), entry.Purchase.String()})
	}
	table.Render()
}
