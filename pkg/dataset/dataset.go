// Package dataset reads and writes single columns of CSV files with a header row.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrSource = errors.New("dataset source error")
	ErrSink   = errors.New("dataset sink error")
)

// ReadColumn returns the values of the named column for every data row of r.
func ReadColumn(r io.Reader, column string) ([]string, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: missing header row", ErrSource)
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrSource, err)
	}

	idx := -1
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if strings.TrimSpace(name) == column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("%w: column %q not found in header %v", ErrSource, column, header)
	}

	values := []string{}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSource, err)
		}
		values = append(values, record[idx])
	}

	return values, nil
}

func ReadColumnFile(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSource, err)
	}
	defer f.Close()

	values, err := ReadColumn(f, column)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return values, nil
}

// WriteColumn writes a single-column CSV: the header followed by one row per value.
func WriteColumn(w io.Writer, header string, values []string) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{header}); err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	for _, v := range values {
		if err := cw.Write([]string{v}); err != nil {
			return fmt.Errorf("%w: %v", ErrSink, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	return nil
}

func WriteColumnFile(path, header string, values []string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSink, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %v", ErrSink, cerr)
		}
	}()

	return WriteColumn(f, header, values)
}
