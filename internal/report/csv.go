package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"mm_backtest/internal/domain"
)

// MarkoutDecimals is the precision of the exported markout column.
const MarkoutDecimals = 4

var csvHeader = []string{
	"timestamp", "side", "order_price", "size", "mid_at_fill",
	"mid_at_horizon", "markout_bps", "mode", "reason_codes",
}

// WriteCSV writes enriched fills as CSV. Null values are empty cells.
// Fields containing separators, quotes or newlines are quoted with internal
// quotes doubled.
func WriteCSV(w io.Writer, fills []domain.EnrichedFill) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, f := range fills {
		row := []string{
			strconv.FormatInt(f.TsMs, 10),
			string(f.Side),
			f.Price.String(),
			f.Size.String(),
			f.MidAtFill.String(),
			"",
			"",
			string(f.Mode),
			strings.Join(f.ReasonCodes, "|"),
		}
		if f.MidAtHorizon != nil {
			row[5] = f.MidAtHorizon.String()
		}
		if f.MarkoutBps != nil {
			row[6] = f.MarkoutBps.StringFixed(MarkoutDecimals)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write fill row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the report to path, creating parent directories.
func WriteCSVFile(path string, fills []domain.EnrichedFill) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := WriteCSV(file, fills); err != nil {
		return err
	}
	return file.Close()
}
