package priceseries

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// CSVSource is a PriceSource backed by a local `date,close` CSV file, the
// simplest collaborator an operator can point the CLI at without standing
// up a real market-data feed. The file is read in full on each call; this
// engine's call volume (a handful of diagnose() calls per run) never
// justifies an in-memory cache layer here.
type CSVSource struct {
	Path string
}

// GetDailyCloses implements PriceSource by parsing Path as
// "date,close\n..." (date formatted YYYY-MM-DD), optionally bounded by
// start/end.
func (s CSVSource) GetDailyCloses(_ context.Context, _ string, start, end *time.Time) ([]time.Time, []float64, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("priceseries: csv source: open %s: %w", s.Path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2

	var dates []time.Time
	var closes []float64
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("priceseries: csv source: %s: %w", s.Path, err)
		}

		d, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, nil, fmt.Errorf("priceseries: csv source: %s: bad date %q: %w", s.Path, rec[0], err)
		}
		if start != nil && d.Before(*start) {
			continue
		}
		if end != nil && d.After(*end) {
			continue
		}

		c, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("priceseries: csv source: %s: bad close %q: %w", s.Path, rec[1], err)
		}

		dates = append(dates, d)
		closes = append(closes, c)
	}

	return dates, closes, nil
}
