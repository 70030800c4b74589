// Package csvsource replays market data from CSV files, for offline runs
// and reproducible backtests.
package csvsource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"OptRoll/internal/domain/models"
	drepo "OptRoll/internal/domain/repository"
	xlogger "OptRoll/pkg/logger"
	"OptRoll/pkg/util"

	"cloud.google.com/go/civil"
	"github.com/gocarina/gocsv"
)

const (
	ContractsFile = "contracts.csv"
	QuotesFile    = "quotes.csv"
)

var ErrSourceClosed = errors.New("csvsource: session not open")

// ContractRow is one line of contracts.csv. Listed is optional; an empty
// value means listed since forever.
type ContractRow struct {
	Ticker     string `csv:"ticker"`
	Underlying string `csv:"underlying"`
	Type       string `csv:"type"`
	Strike     string `csv:"strike"`
	Expiry     string `csv:"expiry"`
	Listed     string `csv:"listed"`
}

// QuoteRow is one security on one date in quotes.csv. Empty cells are absent.
type QuoteRow struct {
	Security     string `csv:"security"`
	Date         string `csv:"date"`
	Settle       string `csv:"settle"`
	Last         string `csv:"last"`
	Bid          string `csv:"bid"`
	Ask          string `csv:"ask"`
	Open         string `csv:"open"`
	High         string `csv:"high"`
	Low          string `csv:"low"`
	Volume       string `csv:"volume"`
	OpenInterest string `csv:"open_interest"`
	ImpliedVol   string `csv:"implied_vol"`
	Delta        string `csv:"delta"`
	Gamma        string `csv:"gamma"`
	Theta        string `csv:"theta"`
	Vega         string `csv:"vega"`
}

func (q QuoteRow) values() map[models.FieldID]string {
	return map[models.FieldID]string{
		models.FieldSettle:       q.Settle,
		models.FieldLast:         q.Last,
		models.FieldBid:          q.Bid,
		models.FieldAsk:          q.Ask,
		models.FieldOpen:         q.Open,
		models.FieldHigh:         q.High,
		models.FieldLow:          q.Low,
		models.FieldVolume:       q.Volume,
		models.FieldOpenInterest: q.OpenInterest,
		models.FieldImpliedVol:   q.ImpliedVol,
		models.FieldDelta:        q.Delta,
		models.FieldGamma:        q.Gamma,
		models.FieldTheta:        q.Theta,
		models.FieldVega:         q.Vega,
	}
}

type contract struct {
	row    ContractRow
	expiry civil.Date
	listed *civil.Date
}

type quote struct {
	date civil.Date
	row  QuoteRow
}

// Source serves reference and historical fields from a directory holding
// contracts.csv and quotes.csv. Files are read on Open.
type Source struct {
	dir    string
	logger *xlogger.Logger

	mu        sync.RWMutex
	open      bool
	contracts map[string]contract
	byUnd     map[string][]string
	quotes    map[string][]quote // ascending by date
}

func NewSource(dir string, logger *xlogger.Logger) *Source {
	return &Source{dir: dir, logger: logger}
}

var _ drepo.MarketDataSource = (*Source)(nil)

func (s *Source) Open(ctx context.Context) error {
	var crows []ContractRow
	if err := readFile(filepath.Join(s.dir, ContractsFile), &crows); err != nil {
		return err
	}
	var qrows []QuoteRow
	if err := readFile(filepath.Join(s.dir, QuotesFile), &qrows); err != nil {
		return err
	}

	contracts := make(map[string]contract, len(crows))
	byUnd := make(map[string][]string)
	for i, r := range crows {
		exp, ok := util.ParseDate(r.Expiry)
		if !ok {
			return fmt.Errorf("%s line %d: bad expiry %q", ContractsFile, i+2, r.Expiry)
		}
		listed, ok := util.ParseOptionalDate(r.Listed)
		if !ok {
			return fmt.Errorf("%s line %d: bad listed date %q", ContractsFile, i+2, r.Listed)
		}
		if _, dup := contracts[r.Ticker]; dup {
			continue
		}
		contracts[r.Ticker] = contract{row: r, expiry: exp, listed: listed}
		byUnd[r.Underlying] = append(byUnd[r.Underlying], r.Ticker)
	}

	quotes := make(map[string][]quote)
	for i, r := range qrows {
		d, ok := util.ParseDate(r.Date)
		if !ok {
			return fmt.Errorf("%s line %d: bad date %q", QuotesFile, i+2, r.Date)
		}
		quotes[r.Security] = append(quotes[r.Security], quote{date: d, row: r})
	}
	for _, qs := range quotes {
		sort.SliceStable(qs, func(i, j int) bool { return qs[i].date.Before(qs[j].date) })
	}

	s.mu.Lock()
	s.contracts, s.byUnd, s.quotes, s.open = contracts, byUnd, quotes, true
	s.mu.Unlock()

	s.logger.Info("csv source opened",
		xlogger.String("dir", s.dir),
		xlogger.Int("contracts", len(contracts)),
		xlogger.Int("quotes", len(qrows)),
	)
	return nil
}

func readFile(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := gocsv.UnmarshalFile(f, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.contracts, s.byUnd, s.quotes = nil, nil, nil
	return nil
}

func (s *Source) FetchReferenceFields(ctx context.Context, securities []string, fields []models.FieldID, asOf *civil.Date) models.Response[[]models.ReferenceRecord] {
	out := models.Response[[]models.ReferenceRecord]{Data: make([]models.ReferenceRecord, 0, len(securities))}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		out.AddError(models.NewErrorDetail(models.ErrKindSourceRequest, "reference request", ErrSourceClosed, nil))
		return out
	}

	for _, sec := range securities {
		rec := models.ReferenceRecord{Security: sec, Fields: models.FieldValues{}}
		c, isContract := s.contracts[sec]
		_, isUnderlying := s.byUnd[sec]
		_, hasQuotes := s.quotes[sec]
		if !isContract && !isUnderlying && !hasQuotes {
			rec.Errors = []string{fmt.Sprintf("unknown security %s", sec)}
			out.Data = append(out.Data, rec)
			continue
		}

		q, hasQuote := s.quoteOn(sec, asOf)
		for _, f := range fields {
			switch f {
			case models.FieldChain:
				rec.Fields[f] = s.chain(sec, asOf)
			case models.FieldStrike, models.FieldPutCall, models.FieldExpiry, models.FieldUnderlying:
				if isContract {
					contractField(rec.Fields, f, c)
				}
			default:
				if !hasQuote {
					continue
				}
				if v, ok := parseNum(q.row.values()[f]); ok {
					rec.Fields[f] = v
				}
			}
		}
		out.Data = append(out.Data, rec)
	}
	return out
}

// chain lists contracts on und that are listed and unexpired as of asOf.
func (s *Source) chain(und string, asOf *civil.Date) []string {
	out := make([]string, 0, len(s.byUnd[und]))
	for _, t := range s.byUnd[und] {
		c := s.contracts[t]
		if asOf != nil {
			if c.expiry.Before(*asOf) {
				continue
			}
			if c.listed != nil && c.listed.After(*asOf) {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func contractField(f models.FieldValues, id models.FieldID, c contract) {
	switch id {
	case models.FieldStrike:
		if v, ok := parseNum(c.row.Strike); ok {
			f[id] = v
		}
	case models.FieldPutCall:
		if c.row.Type != "" {
			f[id] = c.row.Type
		}
	case models.FieldExpiry:
		f[id] = c.expiry
	case models.FieldUnderlying:
		if c.row.Underlying != "" {
			f[id] = c.row.Underlying
		}
	}
}

// quoteOn finds the quote dated asOf, or the latest quote when asOf is nil.
func (s *Source) quoteOn(sec string, asOf *civil.Date) (quote, bool) {
	qs := s.quotes[sec]
	if len(qs) == 0 {
		return quote{}, false
	}
	if asOf == nil {
		return qs[len(qs)-1], true
	}
	i := sort.Search(len(qs), func(i int) bool { return !qs[i].date.Before(*asOf) })
	if i < len(qs) && qs[i].date == *asOf {
		return qs[i], true
	}
	return quote{}, false
}

func (s *Source) FetchHistoricalFields(ctx context.Context, securities []string, fields []models.FieldID, start, end civil.Date, periodicity models.Periodicity) models.Response[[]models.HistoricalRecord] {
	out := models.Response[[]models.HistoricalRecord]{Data: []models.HistoricalRecord{}}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		out.AddError(models.NewErrorDetail(models.ErrKindSourceRequest, "historical request", ErrSourceClosed, nil))
		return out
	}
	if periodicity == "" {
		periodicity = models.PeriodicityDaily
	}
	if _, ok := models.ParsePeriodicity(string(periodicity)); !ok {
		out.AddError(models.NewErrorDetail(models.ErrKindSourceRequest, "historical request",
			fmt.Errorf("unsupported periodicity %q", periodicity), nil))
		return out
	}

	for _, sec := range securities {
		qs, ok := s.quotes[sec]
		if !ok {
			out.Data = append(out.Data, models.HistoricalRecord{Security: sec, Errors: []string{fmt.Sprintf("no history for %s", sec)}})
			continue
		}
		for _, q := range periodEnds(qs, start, end, periodicity) {
			rec := models.HistoricalRecord{Security: sec, Date: q.date, Fields: models.FieldValues{}}
			vals := q.row.values()
			for _, f := range fields {
				if v, ok := parseNum(vals[f]); ok {
					rec.Fields[f] = v
				}
			}
			out.Data = append(out.Data, rec)
		}
	}
	return out
}

// periodEnds keeps the last quote of each period within [start, end].
func periodEnds(qs []quote, start, end civil.Date, p models.Periodicity) []quote {
	var out []quote
	lastKey := ""
	for _, q := range qs {
		if q.date.Before(start) || q.date.After(end) {
			continue
		}
		key := periodKey(q.date, p)
		if p != models.PeriodicityDaily && key == lastKey {
			out[len(out)-1] = q
			continue
		}
		out = append(out, q)
		lastKey = key
	}
	return out
}

func periodKey(d civil.Date, p models.Periodicity) string {
	switch p {
	case models.PeriodicityWeekly:
		y, w := d.In(time.UTC).ISOWeek()
		return fmt.Sprintf("%d-W%02d", y, w)
	case models.PeriodicityMonthly:
		return fmt.Sprintf("%d-%02d", d.Year, d.Month)
	case models.PeriodicityQuarterly:
		return fmt.Sprintf("%d-Q%d", d.Year, (int(d.Month)-1)/3+1)
	case models.PeriodicitySemiAnnually:
		return fmt.Sprintf("%d-H%d", d.Year, (int(d.Month)-1)/6+1)
	case models.PeriodicityYearly:
		return strconv.Itoa(d.Year)
	}
	return d.String()
}

func parseNum(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
