package catalog

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/vigiapreco/cmed-cli/internal/fetcher"
	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/vigency"
)

// emissionLayouts covers the date shapes the NFe exports use.
var emissionLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

// LoadInvoices decodes an NFe line-item export. Column order is free;
// csvutil binds by header name. Blank dates and values decode to zero
// rather than failing the row.
func LoadInvoices(path string) ([]*model.InvoiceLineItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "catalog: open invoice export")
	}
	defer f.Close() //nolint:errcheck

	dec, err := csvutil.NewDecoder(fetcher.NewCSVReader(f, fetcher.CSVOptions{}))
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read invoice header %s", filepath.Base(path))
	}
	dec.Register(decodeEmissionDate)
	dec.Register(decodeMoney)

	var items []*model.InvoiceLineItem
	for {
		var li model.InvoiceLineItem
		if err := dec.Decode(&li); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "catalog: decode invoice row %s", filepath.Base(path))
		}
		items = append(items, &li)
	}
	return items, nil
}

func decodeEmissionDate(data []byte, t *time.Time) error {
	s := strings.TrimSpace(string(data))
	if s == "" {
		*t = time.Time{}
		return nil
	}
	for _, layout := range emissionLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = parsed
			return nil
		}
	}
	return eris.Errorf("catalog: unparseable emission date %q", s)
}

func decodeMoney(data []byte, d *decimal.Decimal) error {
	v := vigency.ParseMoney(string(data))
	if !v.Valid {
		*d = decimal.Zero
		return nil
	}
	*d = v.Decimal
	return nil
}
