package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/straye-as/solar-crm-api/internal/domain"
)

// Accepted timestamp layouts in meter exports
var meterTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseMeterReadings reads interval readings from a utility CSV export.
//
// Columns are timestamp, kWh and an optional kW demand value. A first row
// whose kWh column is not numeric is treated as a header. Blank lines are
// skipped. Timestamps without a zone are read as UTC.
func ParseMeterReadings(r io.Reader) ([]domain.MeterReading, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var readings []domain.MeterReading
	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
			continue
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("line %d: expected at least 2 columns, got %d", line, len(record))
		}

		kwh, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid kWh %q", line, record[1])
		}
		if !isFinite(kwh) {
			return nil, fmt.Errorf("line %d: kWh must be a finite number, got %q", line, record[1])
		}

		at, err := parseMeterTime(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		reading := domain.MeterReading{ReadingAt: at, KWh: kwh}
		if len(record) > 2 && strings.TrimSpace(record[2]) != "" {
			kw, err := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
			if err != nil || !isFinite(kw) {
				return nil, fmt.Errorf("line %d: invalid kW %q", line, record[2])
			}
			reading.KW = &kw
		}
		readings = append(readings, reading)
	}

	return readings, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func parseMeterTime(s string) (time.Time, error) {
	for _, layout := range meterTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}
