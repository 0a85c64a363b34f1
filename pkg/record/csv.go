package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/itohio/godaq/pkg/sample"
)

// CSV writes the corrected session to <Dir>/<label>.csv and, with WriteRaw,
// the uncorrected log to <Dir>/<label>_raw.csv.
//
// Format: a header "V1,V2,...,VN," followed by one row per cycle. Every line
// ends with a trailing comma.
type CSV struct {
	Dir      string
	WriteRaw bool
}

// Path returns the corrected output path for label.
func (c CSV) Path(label string) string {
	return filepath.Join(c.Dir, label+".csv")
}

// RawPath returns the uncorrected output path for label.
func (c CSV) RawPath(label string) string {
	return filepath.Join(c.Dir, label+"_raw.csv")
}

func (c CSV) Write(s Session) error {
	if err := writeFile(c.Path(s.Label), s.Channels, s.Corrected); err != nil {
		return err
	}
	if c.WriteRaw {
		return writeFile(c.RawPath(s.Label), s.Channels, s.Raw)
	}
	return nil
}

func writeFile(path string, channels int, rows []sample.Reading) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &IOError{Op: "close", Path: path, Err: cerr}
		}
	}()

	if err := WriteTable(f, channels, rows); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

// WriteTable writes the header and rows to w.
func WriteTable(w io.Writer, channels int, rows []sample.Reading) error {
	cw := csv.NewWriter(w)

	// The empty last field produces the trailing comma
	record := make([]string, channels+1)
	for c := range channels {
		record[c] = "V" + strconv.Itoa(c+1)
	}
	if err := cw.Write(record); err != nil {
		return err
	}

	for i, row := range rows {
		if len(row) != channels {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), channels)
		}
		for c, v := range row {
			record[c] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by CSV and returns its rows.
func ReadCSV(path string) ([]sample.Reading, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadTable(f)
}

// ReadTable parses a table written by WriteTable.
func ReadTable(r io.Reader) ([]sample.Reading, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("missing header")
	}

	channels := len(records[0]) - 1
	if channels < 1 || records[0][channels] != "" {
		return nil, fmt.Errorf("invalid header %q", records[0])
	}

	rows := make([]sample.Reading, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := make(sample.Reading, channels)
		for c := range channels {
			v, err := strconv.ParseFloat(rec[c], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", i+1, c+1, err)
			}
			row[c] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
