package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/cryptorank/internal/domain/frame"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

// LoadPriceFile reads a price history CSV from disk
func LoadPriceFile(path string) (map[string][]frame.PricePoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open price history: %w", err)
	}
	defer f.Close()

	histories, err := ReadPrices(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return histories, nil
}

// ReadPrices parses coin_id,date,price[,volume] rows. Columns are located
// by header name. Rows that fail to parse are skipped and counted.
func ReadPrices(r io.Reader) (map[string][]frame.PricePoint, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty price history")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"coin_id", "date", "price"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	volumeCol, hasVolume := cols["volume"]

	histories := map[string][]frame.PricePoint{}
	skipped := 0
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		p, id, ok := parseRow(record, cols, volumeCol, hasVolume)
		if !ok {
			skipped++
			continue
		}
		histories[id] = append(histories[id], p)
	}

	if skipped > 0 {
		log.Warn().Int("rows", skipped).Msg("skipped unparseable price rows")
	}
	log.Debug().Int("assets", len(histories)).Int("lines", line-1).Msg("price history loaded")
	return histories, nil
}

func parseRow(record []string, cols map[string]int, volumeCol int, hasVolume bool) (frame.PricePoint, string, bool) {
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}

	id := field(cols["coin_id"])
	if id == "" {
		return frame.PricePoint{}, "", false
	}
	date, ok := parseDate(field(cols["date"]))
	if !ok {
		return frame.PricePoint{}, "", false
	}
	price, err := strconv.ParseFloat(field(cols["price"]), 64)
	if err != nil {
		return frame.PricePoint{}, "", false
	}

	p := frame.PricePoint{Date: date, Price: price}
	if hasVolume {
		if v, err := strconv.ParseFloat(field(volumeCol), 64); err == nil {
			p.Volume = v
		}
	}
	return p, id, true
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// WritePrices writes histories in the format ReadPrices accepts
func WritePrices(w io.Writer, histories map[string][]frame.PricePoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"coin_id", "date", "price", "volume"}); err != nil {
		return err
	}
	for _, id := range sortedIDs(histories) {
		for _, p := range histories[id] {
			row := []string{
				id,
				p.Date.UTC().Format("2006-01-02"),
				strconv.FormatFloat(p.Price, 'g', -1, 64),
				strconv.FormatFloat(p.Volume, 'g', -1, 64),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
