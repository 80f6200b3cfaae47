package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the PrivatBank historical exchange rates endpoint.
const DefaultBaseURL = "https://api.privatbank.ua/p24api/exchange_rates"

// apiDateLayout is the date format the rates API expects and echoes.
const apiDateLayout = "02.01.2006"

// apiResponse mirrors the subset of the API body that matters here; other
// fields are ignored.
type apiResponse struct {
	Date         string    `json:"date"`
	ExchangeRate []apiRate `json:"exchangeRate"`
}

type apiRate struct {
	Currency     string          `json:"currency"`
	SaleRate     decimal.Decimal `json:"saleRate"`
	PurchaseRate decimal.Decimal `json:"purchaseRate"`
}

// Fetcher retrieves per-day rate tables from the remote API.
type Fetcher struct {
	client *resty.Client
	log    *slog.Logger
	now    func() time.Time
}

// NewFetcher creates a Fetcher against the given base URL with a per-request
// timeout.
func NewFetcher(baseURL string, timeout time.Duration, log *slog.Logger) *Fetcher {
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)

	return &Fetcher{
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// Fetch issues one request per day offset 0..q.Days-1 concurrently and
// returns the successful tables in offset order regardless of completion
// order. A failed or unparseable day is dropped from the result; it never
// aborts the batch. Zero successful days yields an empty slice, not an error.
func (f *Fetcher) Fetch(ctx context.Context, q Query) ([]RateTable, error) {
	if q.Days < 1 || q.Days > MaxDays {
		return nil, fmt.Errorf("%w: got %d", ErrDayRange, q.Days)
	}

	// Each goroutine writes only its own slot, so ordering is fixed by the
	// offset index, not by completion.
	results := make([]*RateTable, q.Days)
	var wg sync.WaitGroup

	for offset := 0; offset < q.Days; offset++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()

			table, err := f.fetchDay(ctx, offset, q)
			if err != nil {
				f.log.Warn("dropping day from rate batch", "offset", offset, "error", err)
				return
			}
			results[offset] = table
		}(offset)
	}
	wg.Wait()

	tables := make([]RateTable, 0, q.Days)
	for _, table := range results {
		if table != nil {
			tables = append(tables, *table)
		}
	}
	return tables, nil
}

func (f *Fetcher) fetchDay(ctx context.Context, offset int, q Query) (*RateTable, error) {
	date := f.now().AddDate(0, 0, -offset).Format(apiDateLayout)

	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"json": "",
			"date": date,
		}).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("request for %s failed: %w", date, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("rates API returned %d for %s", resp.StatusCode(), date)
	}

	var body apiResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("parsing response for %s: %w", date, err)
	}
	if body.Date == "" {
		body.Date = date
	}

	table := &RateTable{Date: body.Date, Rates: make(map[string]RateEntry)}
	for _, rate := range body.ExchangeRate {
		if !q.wants(rate.Currency) {
			continue
		}
		table.Rates[rate.Currency] = RateEntry{
			Currency: rate.Currency,
			Sale:     rate.SaleRate,
			Purchase: rate.PurchaseRate,
		}
	}
	return table, nil
}
