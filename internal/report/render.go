package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"OptRoll/internal/domain/models"

	"github.com/gocarina/gocsv"
	"github.com/olekukonko/tablewriter"
)

const tableNull = "-"

// WriteCSV writes rows with a header line. Null cells stay empty.
func WriteCSV(w io.Writer, rows []Row) error {
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// WriteCSVFile creates (or truncates) path and writes rows to it.
func WriteCSVFile(path string, rows []Row) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ReadCSV parses rows previously written by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	var rows []Row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

var tableHeader = []string{
	"Date", "Expiry", "DTE", "Und Settle", "Und Last", "Strike",
	"Call", "Call Mid", "Call IV", "Put", "Put Mid", "Put IV",
}

// WriteTable renders a condensed console view of rows.
func WriteTable(w io.Writer, rows []Row) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(tableHeader)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, r := range rows {
		table.Append(cells(
			r.Date, r.ExpiryDate, r.DaysToExpiry, r.UnderlyingSettle, r.UnderlyingLast, r.ATMStrike,
			r.CallTicker, firstNonEmpty(r.CallMid, r.CallSettle), r.CallImpliedVol,
			r.PutTicker, firstNonEmpty(r.PutMid, r.PutSettle), r.PutImpliedVol,
		))
	}
	table.Render()
}

// WriteChain renders an option chain snapshot.
func WriteChain(w io.Writer, chain []models.OptionMarketData) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Ticker", "Type", "Strike", "Expiry", "Settle", "Bid", "Ask", "Volume", "OI", "IV", "Delta"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, m := range chain {
		table.Append(cells(
			m.Contract.Ticker,
			string(m.Contract.OptionType),
			num(&m.Contract.Strike),
			m.Contract.Expiry.String(),
			num(m.Settle), num(m.Bid), num(m.Ask), num(m.Volume), num(m.OpenInterest),
			num(m.ImpliedVol), num(m.Delta),
		))
	}
	table.Render()
}

// WriteHistory renders historical records, one line per security and date.
// Columns are the union of returned fields in sorted order.
func WriteHistory(w io.Writer, records []models.HistoricalRecord) {
	fieldSet := map[models.FieldID]struct{}{}
	for _, r := range records {
		for f := range r.Fields {
			fieldSet[f] = struct{}{}
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, string(f))
	}
	sort.Strings(fields)

	table := tablewriter.NewWriter(w)
	table.SetHeader(append([]string{"Security", "Date"}, fields...))
	for _, r := range records {
		row := []string{r.Security, r.Date.String()}
		for _, f := range fields {
			row = append(row, num(r.Fields.Float(models.FieldID(f))))
		}
		table.Append(cells(row...))
	}
	table.Render()
}

// WriteErrors renders the error list of a response.
func WriteErrors(w io.Writer, errs []models.ErrorDetail) {
	if len(errs) == 0 {
		return
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Time", "Kind", "Message", "Context"})
	table.SetAutoWrapText(false)
	for _, e := range errs {
		table.Append(cells(
			e.Timestamp.UTC().Format(time.RFC3339),
			string(e.Kind),
			e.Error(),
			formatContext(e.Context),
		))
	}
	table.Render()
}

func formatContext(ctx map[string]any) string {
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, ctx[k]))
	}
	return strings.Join(parts, " ")
}

func cells(values ...string) []string {
	for i, v := range values {
		if v == "" {
			values[i] = tableNull
		}
	}
	return values
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
