package timeseries

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// CSVOptions holds options for CSV loading.
type CSVOptions struct {
	DateColumn  string // Column name for dates (default: auto-detect)
	ValueColumn string // Column name for values (default: auto-detect, else last column)
	DateFormat  string // Date format (default: "2006-01-02")
	HasHeader   bool   // Whether CSV has header row (default: true)
	Delimiter   rune   // Field delimiter (default: ',')
	SkipRows    int    // Number of rows to skip at start
}

// DefaultCSVOptions returns default options for CSV loading.
func DefaultCSVOptions() *CSVOptions {
	return &CSVOptions{
		DateFormat: DateLayout,
		HasHeader:  true,
		Delimiter:  ',',
	}
}

// ErrNoData is returned when a CSV holds no usable rows.
var ErrNoData = errors.New("no valid data found in CSV")

// LoadCSV loads a time series from a CSV file.
func LoadCSV(filename string, opts *CSVOptions) (*Series, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadCSVFromReader(file, opts)
}

// LoadCSVFromReader loads a time series from an io.Reader.
// Rows with missing values (empty, NA, NaN, null) are skipped; a malformed date is an error.
// Rows must already be in chronological order.
func LoadCSVFromReader(r io.Reader, opts *CSVOptions) (*Series, error) {
	if opts == nil {
		opts = DefaultCSVOptions()
	}
	layout := opts.DateFormat
	if layout == "" {
		layout = DateLayout
	}

	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.TrimLeadingSpace = true

	for i := 0; i < opts.SkipRows; i++ {
		if _, err := reader.Read(); err != nil {
			return nil, err
		}
	}

	valueIdx, dateIdx := 1, 0
	if opts.HasHeader {
		header, err := reader.Read()
		if err != nil {
			return nil, err
		}
		valueIdx, dateIdx = findColumns(header, opts)
		if dateIdx == -1 {
			return nil, fmt.Errorf("date column not found in header %v", header)
		}
	}

	var values []float64
	var timestamps []time.Time

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		if valueIdx >= len(record) || dateIdx >= len(record) {
			continue
		}

		valStr := unquote(record[valueIdx])
		if valStr == "" || valStr == "NA" || valStr == "NaN" || valStr == "null" {
			continue
		}
		val, err := strconv.ParseFloat(valStr, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value %q: %w", line, valStr, err)
		}

		ts, err := time.Parse(layout, unquote(record[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid date %q: %w", line, record[dateIdx], err)
		}

		values = append(values, val)
		timestamps = append(timestamps, ts)
	}

	if len(values) == 0 {
		return nil, ErrNoData
	}

	return NewWithTimestamps(timestamps, values)
}

func findColumns(headers []string, opts *CSVOptions) (valueIdx, dateIdx int) {
	valueIdx, dateIdx = -1, -1
	for i, h := range headers {
		h = unquote(h)
		switch {
		case opts.ValueColumn != "" && h == opts.ValueColumn:
			valueIdx = i
		case opts.DateColumn != "" && h == opts.DateColumn:
			dateIdx = i
		case opts.ValueColumn == "" && (h == "y" || h == "value" || h == "Value" || h == "price" || h == "Price"):
			if valueIdx == -1 {
				valueIdx = i
			}
		case opts.DateColumn == "" && (h == "ds" || h == "date" || h == "Date"):
			if dateIdx == -1 {
				dateIdx = i
			}
		}
	}

	// Default to last column if not specified
	if valueIdx == -1 {
		valueIdx = len(headers) - 1
	}
	return valueIdx, dateIdx
}

func unquote(s string) string {
	return strings.TrimSpace(strings.Trim(s, "\""))
}

// WriteCSV writes a series as "date,price" rows.
func WriteCSV(w io.Writer, series *Series) error {
	writer := bufio.NewWriter(w)

	if _, err := writer.WriteString("date,price\n"); err != nil {
		return err
	}
	for i := 0; i < series.Len(); i++ {
		p := series.At(i)
		writer.WriteString(FormatDate(p.Time))
		writer.WriteString(",")
		writer.WriteString(strconv.FormatFloat(p.Value, 'f', -1, 64))
		writer.WriteString("\n")
	}

	return writer.Flush()
}

// SaveCSV saves a time series to a CSV file.
func SaveCSV(series *Series, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := WriteCSV(file, series); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
