// Package fetcher reads the distribution formats the CMED and NFe
// exports arrive in: semicolon-separated CSV (frequently latin-1
// encoded), xlsx price workbooks, and zip archives wrapping a monthly
// table.
package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// CSVOptions configures CSV reading. The zero value reads a
// semicolon-separated UTF-8 file, the most common shape of the exports.
type CSVOptions struct {
	Delimiter  rune // default ';'
	Latin1     bool // decode ISO 8859-1, seen in older CMED drops
	LazyQuotes bool
	TrimSpace  bool
}

// NewCSVReader builds a csv.Reader over r with the export defaults
// applied. Rows may have a variable field count; callers that need a
// fixed width enforce it themselves.
func NewCSVReader(r io.Reader, opts CSVOptions) *csv.Reader {
	if opts.Latin1 {
		r = transform.NewReader(r, charmap.ISO8859_1.NewDecoder())
	}
	reader := csv.NewReader(r)
	reader.Comma = ';'
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1
	return reader
}

// StreamCSV reads a CSV file and sends rows to a channel. The caller
// must consume the row channel; both channels are closed when
// processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := NewCSVReader(r, opts)
		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// ReadCSV collects every row of a CSV file in memory. Snapshot tables
// are a few hundred thousand rows at worst, which fits comfortably.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) ([][]string, error) {
	var rows [][]string
	rowCh, errCh := StreamCSV(ctx, r, opts)
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return rows, nil
}
