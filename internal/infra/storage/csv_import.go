package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"mm_backtest/internal/domain"

	"github.com/shopspring/decimal"
)

// Recorder CSV layouts. Columns are matched by header name, case-insensitive;
// optional columns may be absent or empty.
//
//	quotes: ts, bid_price, bid_size, ask_price, ask_size [, mid]
//	trades: ts, price, size, side [, is_liquidation]
//	prices: ts [, mark_price] [, index_price]

// ReadQuotesCSV parses recorded BBO updates.
func ReadQuotesCSV(r io.Reader) ([]domain.Quote, error) {
	var out []domain.Quote
	err := readCSV(r, []string{"ts", "bid_price", "bid_size", "ask_price", "ask_size"}, func(row csvRow) error {
		q := domain.Quote{TsMs: row.ts}
		var err error
		if q.BidPrice, err = row.decimal("bid_price"); err != nil {
			return err
		}
		if q.BidSize, err = row.decimal("bid_size"); err != nil {
			return err
		}
		if q.AskPrice, err = row.decimal("ask_price"); err != nil {
			return err
		}
		if q.AskSize, err = row.decimal("ask_size"); err != nil {
			return err
		}
		mid, err := row.nullDecimal("mid")
		if err != nil {
			return err
		}
		if mid.Valid {
			q.Mid = mid.Decimal
		} else {
			q.Mid = q.BidPrice.Add(q.AskPrice).Div(decimal.NewFromInt(2))
		}
		out = append(out, q)
		return nil
	})
	return out, err
}

// ReadTradesCSV parses recorded public trades.
func ReadTradesCSV(r io.Reader) ([]domain.Trade, error) {
	var out []domain.Trade
	err := readCSV(r, []string{"ts", "price", "size", "side"}, func(row csvRow) error {
		t := domain.Trade{TsMs: row.ts}
		var err error
		if t.Price, err = row.decimal("price"); err != nil {
			return err
		}
		if t.Size, err = row.decimal("size"); err != nil {
			return err
		}
		side, ok := domain.ParseSide(row.get("side"))
		if !ok {
			return fmt.Errorf("invalid side %q", row.get("side"))
		}
		t.Side = side
		if v := row.get("is_liquidation"); v != "" {
			if t.IsLiquidation, err = strconv.ParseBool(v); err != nil {
				return fmt.Errorf("invalid is_liquidation %q", v)
			}
		}
		out = append(out, t)
		return nil
	})
	return out, err
}

// ReadPricesCSV parses recorded mark/index price updates.
func ReadPricesCSV(r io.Reader) ([]domain.PriceUpdate, error) {
	var out []domain.PriceUpdate
	err := readCSV(r, []string{"ts"}, func(row csvRow) error {
		p := domain.PriceUpdate{TsMs: row.ts}
		var err error
		if p.MarkPrice, err = row.nullDecimal("mark_price"); err != nil {
			return err
		}
		if p.IndexPrice, err = row.nullDecimal("index_price"); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, err
}

type csvRow struct {
	ts     int64
	record []string
	cols   map[string]int
}

func (r csvRow) get(name string) string {
	i, ok := r.cols[name]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r csvRow) decimal(name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(r.get(name))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func (r csvRow) nullDecimal(name string) (decimal.NullDecimal, error) {
	v := r.get(name)
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func readCSV(r io.Reader, required []string, fn func(csvRow) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return fmt.Errorf("missing column %q", name)
		}
	}

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}

		row := csvRow{record: record, cols: cols}
		if row.ts, err = strconv.ParseInt(row.get("ts"), 10, 64); err != nil {
			return fmt.Errorf("line %d: invalid ts %q", line, row.get("ts"))
		}
		if err := fn(row); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}
