package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"OptRoll/internal/domain/models"
	domrepo "OptRoll/internal/domain/repository"
	pkgch "OptRoll/pkg/clickhouse"
	applogger "OptRoll/pkg/logger"

	"cloud.google.com/go/civil"
)

const insertChunk = 2000

// legColumns is the per-leg column suffix list, in insert order.
var legColumns = []string{
	"ticker", "strike", "settle", "last", "bid", "ask",
	"volume", "open_interest", "implied_vol", "delta", "gamma", "theta", "vega",
}

var pointColumns = []string{
	"date", "underlying", "expiry",
	"und_settle", "und_last", "und_bid", "und_ask",
}

func seriesColumns() []string {
	cols := append([]string{}, pointColumns...)
	for _, side := range []string{"call", "put"} {
		for _, c := range legColumns {
			cols = append(cols, side+"_"+c)
		}
	}
	return cols
}

// ClickHouseSeriesStore persists ATM points one row per underlying and date.
// Rewriting a date replaces the earlier row on merge.
type ClickHouseSeriesStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewClickHouseSeriesStore(ch *pkgch.Client, table string, l *applogger.Logger) *ClickHouseSeriesStore {
	if table == "" {
		table = "atm_series"
	}
	if !strings.Contains(table, ".") && ch.Database() != "" {
		table = ch.Database() + "." + table
	}
	return &ClickHouseSeriesStore{db: ch.DB(), table: table, l: l}
}

var _ domrepo.SeriesStorage = (*ClickHouseSeriesStore)(nil)

func (s *ClickHouseSeriesStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

func createTableSQL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	b.WriteString("    date Date,\n")
	b.WriteString("    underlying LowCardinality(String),\n")
	b.WriteString("    expiry Nullable(Date),\n")
	for _, c := range pointColumns[3:] {
		fmt.Fprintf(&b, "    %s Nullable(Float64),\n", c)
	}
	for _, side := range []string{"call", "put"} {
		fmt.Fprintf(&b, "    %s_ticker String,\n", side)
		for _, c := range legColumns[1:] {
			fmt.Fprintf(&b, "    %s_%s Nullable(Float64),\n", side, c)
		}
	}
	b.WriteString("    inserted_at DateTime DEFAULT now()\n")
	b.WriteString(") ENGINE = ReplacingMergeTree(inserted_at)\n")
	b.WriteString("ORDER BY (underlying, date)")
	return b.String()
}

func (s *ClickHouseSeriesStore) StoreSeries(ctx context.Context, points []models.ATMOptionDataPoint) error {
	if len(points) == 0 {
		return nil
	}
	cols := seriesColumns()
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ") + ")"
	start := time.Now()

	for from := 0; from < len(points); from += insertChunk {
		to := from + insertChunk
		if to > len(points) {
			to = len(points)
		}
		values := make([]string, 0, to-from)
		args := make([]interface{}, 0, (to-from)*len(cols))
		for _, p := range points[from:to] {
			values = append(values, placeholder)
			args = append(args, rowArgs(p)...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, strings.Join(cols, ", "), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert %s rows %d-%d: %w", s.table, from, to, err)
		}
	}

	if s.l != nil {
		s.l.Debug("clickhouse store_series ok",
			applogger.String("table", s.table),
			applogger.Int("rows", len(points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

// rowArgs lays out p in seriesColumns order.
func rowArgs(p models.ATMOptionDataPoint) []interface{} {
	args := []interface{}{
		p.Date.In(time.UTC),
		p.UnderlyingTicker,
		nullDate(p.OptionExpiry),
		p.UnderlyingSettle, p.UnderlyingLast, p.UnderlyingBid, p.UnderlyingAsk,
	}
	for _, m := range []*models.OptionMarketData{p.Call, p.Put} {
		if m == nil {
			args = append(args, "")
			for range legColumns[1:] {
				args = append(args, (*float64)(nil))
			}
			continue
		}
		strike := m.Contract.Strike
		args = append(args, m.Contract.Ticker, &strike,
			m.Settle, m.Last, m.Bid, m.Ask,
			m.Volume, m.OpenInterest, m.ImpliedVol, m.Delta, m.Gamma, m.Theta, m.Vega)
	}
	return args
}

func nullDate(d *civil.Date) interface{} {
	if d == nil {
		return nil
	}
	return d.In(time.UTC)
}

// Query returns stored points for underlying in [from, to], ascending.
func (s *ClickHouseSeriesStore) Query(ctx context.Context, underlying string, from, to civil.Date) ([]models.ATMOptionDataPoint, error) {
	q := fmt.Sprintf("SELECT %s FROM %s FINAL WHERE underlying = ? AND date >= ? AND date <= ? ORDER BY date ASC",
		strings.Join(seriesColumns(), ", "), s.table)
	rows, err := s.db.QueryContext(ctx, q, underlying, from.In(time.UTC), to.In(time.UTC))
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_series error",
				applogger.String("table", s.table),
				applogger.String("underlying", underlying),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	out := make([]models.ATMOptionDataPoint, 0, to.DaysSince(from)+1)
	for rows.Next() {
		var r scannedRow
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		out = append(out, r.point())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

type scannedLeg struct {
	ticker string
	vals   [12]*float64 // legColumns[1:]
}

type scannedRow struct {
	date       time.Time
	underlying string
	expiry     *time.Time
	und        [4]*float64
	legs       [2]scannedLeg
}

func (r *scannedRow) dest() []interface{} {
	d := []interface{}{&r.date, &r.underlying, &r.expiry}
	for i := range r.und {
		d = append(d, &r.und[i])
	}
	for i := range r.legs {
		d = append(d, &r.legs[i].ticker)
		for j := range r.legs[i].vals {
			d = append(d, &r.legs[i].vals[j])
		}
	}
	return d
}

func (r *scannedRow) point() models.ATMOptionDataPoint {
	p := models.ATMOptionDataPoint{
		Date:             civil.DateOf(r.date),
		UnderlyingTicker: r.underlying,
		UnderlyingSettle: r.und[0],
		UnderlyingLast:   r.und[1],
		UnderlyingBid:    r.und[2],
		UnderlyingAsk:    r.und[3],
	}
	if r.expiry != nil {
		e := civil.DateOf(*r.expiry)
		p.OptionExpiry = &e
	}
	p.Call = r.legs[0].marketData(p, models.OptionTypeCall)
	p.Put = r.legs[1].marketData(p, models.OptionTypePut)
	return p
}

func (l scannedLeg) marketData(p models.ATMOptionDataPoint, typ models.OptionType) *models.OptionMarketData {
	if l.ticker == "" {
		return nil
	}
	c := models.OptionContract{Ticker: l.ticker, OptionType: typ, Underlying: p.UnderlyingTicker}
	if l.vals[0] != nil {
		c.Strike = *l.vals[0]
	}
	if p.OptionExpiry != nil {
		c.Expiry = *p.OptionExpiry
	}
	v := l.vals
	return &models.OptionMarketData{
		Contract:     c,
		AsOfDate:     p.Date,
		Settle:       v[1],
		Last:         v[2],
		Bid:          v[3],
		Ask:          v[4],
		Volume:       v[5],
		OpenInterest: v[6],
		ImpliedVol:   v[7],
		Delta:        v[8],
		Gamma:        v[9],
		Theta:        v[10],
		Vega:         v[11],
	}
}

func (s *ClickHouseSeriesStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseSeriesStore) Close() error { return nil }
