// Package catalog loads the CMED price tables and NFe invoice exports
// into the domain model.
package catalog

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/vigiapreco/cmed-cli/internal/fetcher"
	"github.com/vigiapreco/cmed-cli/internal/model"
	"github.com/vigiapreco/cmed-cli/internal/normalize"
	"github.com/vigiapreco/cmed-cli/internal/vigency"
)

// headerMarkers identify the real header row inside a CMED sheet, which
// sits below a variable number of banner rows.
var headerMarkers = []string{"PRINCIPIO ATIVO", "SUBSTANCIA", "CNPJ"}

const headerScanLimit = 100

// LoaderOptions configures snapshot loading.
type LoaderOptions struct {
	Latin1     bool `mapstructure:"latin1"`
	SheetIndex int  `mapstructure:"sheet_index"`
}

// Loader reads monthly CMED price tables from xlsx, csv or zipped csv
// files into snapshots.
type Loader struct {
	opts LoaderOptions
	log  *zap.Logger
}

func NewLoader(opts LoaderOptions) *Loader {
	return &Loader{opts: opts, log: zap.L().With(zap.String("component", "catalog"))}
}

// LoadSnapshots reads one monthly table. The reference month comes from
// the file name; a table without a recognizable header or with zero
// usable rows is an error, not an empty result.
func (l *Loader) LoadSnapshots(ctx context.Context, path string) ([]model.PriceSnapshot, error) {
	ref, err := RefDateFromFilename(path)
	if err != nil {
		return nil, err
	}

	rows, err := l.readRows(ctx, path)
	if err != nil {
		return nil, err
	}

	hi := findHeader(rows)
	if hi < 0 {
		return nil, eris.Errorf("catalog: header row not found in %s", filepath.Base(path))
	}
	cols := mapColumns(rows[hi])
	if cols.name < 0 || cols.ingredient < 0 || cols.registration < 0 || cols.ggrem < 0 {
		return nil, eris.Errorf("catalog: required columns missing in %s", filepath.Base(path))
	}

	var snaps []model.PriceSnapshot
	for _, row := range rows[hi+1:] {
		name := cell(row, cols.name)
		ingredient := cell(row, cols.ingredient)
		if name == "" || ingredient == "" {
			continue
		}
		registration := cell(row, cols.registration)
		ggrem := cell(row, cols.ggrem)
		snaps = append(snaps, model.PriceSnapshot{
			ProductID:        model.ProductID(registration, ggrem),
			ReferenceDate:    ref,
			Name:             name,
			ActiveIngredient: ingredient,
			Laboratory:       cell(row, cols.lab),
			Presentation:     cell(row, cols.presentation),
			TherapeuticClass: cell(row, cols.class),
			Status:           parseStatus(cell(row, cols.status)),
			Regime:           cell(row, cols.regime),
			Registration:     registration,
			GGREM:            ggrem,
			EAN1:             cell(row, cols.ean1),
			EAN2:             cell(row, cols.ean2),
			EAN3:             cell(row, cols.ean3),
			PF0:              vigency.ParseMoney(cell(row, cols.pf0)),
			PF20:             vigency.ParseMoney(cell(row, cols.pf20)),
			PMVG0:            vigency.ParseMoney(cell(row, cols.pmvg0)),
			PMVG20:           vigency.ParseMoney(cell(row, cols.pmvg20)),
			CAP:              parseFlag(cell(row, cols.cap)),
			ICMS0:            parseFlag(cell(row, cols.icms0)),
		})
	}
	if len(snaps) == 0 {
		return nil, eris.Errorf("catalog: no data rows in %s", filepath.Base(path))
	}

	l.log.Info("snapshot table loaded",
		zap.String("file", filepath.Base(path)),
		zap.Time("reference", ref),
		zap.Int("rows", len(snaps)))
	return snaps, nil
}

func (l *Loader) readRows(ctx context.Context, path string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xls":
		rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{SheetIndex: l.opts.SheetIndex})
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read workbook %s", filepath.Base(path))
		}
		return rows, nil
	case ".zip":
		rc, err := fetcher.OpenZipEntry(path, ".csv")
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: open zipped table %s", filepath.Base(path))
		}
		defer rc.Close() //nolint:errcheck
		rows, err := fetcher.ReadCSV(ctx, rc, fetcher.CSVOptions{Latin1: l.opts.Latin1, TrimSpace: true})
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read zipped table %s", filepath.Base(path))
		}
		return rows, nil
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "catalog: open table")
		}
		defer f.Close() //nolint:errcheck
		rows, err := fetcher.ReadCSV(ctx, f, fetcher.CSVOptions{Latin1: l.opts.Latin1, TrimSpace: true})
		if err != nil {
			return nil, eris.Wrapf(err, "catalog: read table %s", filepath.Base(path))
		}
		return rows, nil
	default:
		return nil, eris.Errorf("catalog: unsupported table format %q", filepath.Ext(path))
	}
}

var refDateRe = regexp.MustCompile(`(\d{4})[_-](\d{1,2})`)

// RefDateFromFilename derives the snapshot month from names like
// cmed_2024_01.xlsx or ANVISA_LIMPO_2024-01.csv.
func RefDateFromFilename(path string) (time.Time, error) {
	m := refDateRe.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return time.Time{}, eris.Errorf("catalog: no YYYY_MM reference in file name %q", filepath.Base(path))
	}
	year, month := atoi(m[1]), atoi(m[2])
	if month < 1 || month > 12 {
		return time.Time{}, eris.Errorf("catalog: invalid reference month %d in %q", month, filepath.Base(path))
	}
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

type columns struct {
	name, ingredient, lab, presentation int
	class, status, regime               int
	registration, ggrem                 int
	ean1, ean2, ean3                    int
	pf0, pf20, pmvg0, pmvg20            int
	icms0, cap                          int
}

var headerSpaceRe = regexp.MustCompile(`\s+`)

// normalizeHeader folds a header cell the way the source sheets vary:
// accents dropped, upper-cased, whitespace collapsed, and the stray
// space some months put before "%" removed.
func normalizeHeader(s string) string {
	s = strings.ToUpper(normalize.StripAccents(strings.TrimSpace(s)))
	s = headerSpaceRe.ReplaceAllString(s, " ")
	return strings.ReplaceAll(s, " %", "%")
}

func findHeader(rows [][]string) int {
	limit := len(rows)
	if limit > headerScanLimit {
		limit = headerScanLimit
	}
	for i := 0; i < limit; i++ {
		for _, c := range rows[i] {
			h := normalizeHeader(c)
			for _, marker := range headerMarkers {
				if h == marker {
					return i
				}
			}
		}
	}
	return -1
}

func mapColumns(header []string) columns {
	cols := columns{
		name: -1, ingredient: -1, lab: -1, presentation: -1,
		class: -1, status: -1, regime: -1,
		registration: -1, ggrem: -1,
		ean1: -1, ean2: -1, ean3: -1,
		pf0: -1, pf20: -1, pmvg0: -1, pmvg20: -1,
		icms0: -1, cap: -1,
	}
	set := func(dst *int, i int) {
		if *dst < 0 {
			*dst = i
		}
	}
	for i, c := range header {
		switch normalizeHeader(c) {
		case "PRODUTO":
			set(&cols.name, i)
		case "PRINCIPIO ATIVO", "SUBSTANCIA":
			set(&cols.ingredient, i)
		case "LABORATORIO":
			set(&cols.lab, i)
		case "APRESENTACAO":
			set(&cols.presentation, i)
		case "CLASSE TERAPEUTICA":
			set(&cols.class, i)
		case "TIPO DE PRODUTO (STATUS DO PRODUTO)", "TIPO DE PRODUTO":
			set(&cols.status, i)
		case "REGIME DE PRECO":
			set(&cols.regime, i)
		case "REGISTRO":
			set(&cols.registration, i)
		case "CODIGO GGREM":
			set(&cols.ggrem, i)
		case "EAN 1", "EAN":
			set(&cols.ean1, i)
		case "EAN 2":
			set(&cols.ean2, i)
		case "EAN 3":
			set(&cols.ean3, i)
		case "PF 0%":
			set(&cols.pf0, i)
		case "PF 20%":
			set(&cols.pf20, i)
		case "PMVG 0%":
			set(&cols.pmvg0, i)
		case "PMVG 20%":
			set(&cols.pmvg20, i)
		case "ICMS 0%":
			set(&cols.icms0, i)
		case "CAP":
			set(&cols.cap, i)
		}
	}
	return cols
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseFlag(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "SIM")
}

func parseStatus(s string) model.ProductStatus {
	h := strings.ToUpper(normalize.StripAccents(s))
	switch {
	case strings.Contains(h, "GENERICO"):
		return model.StatusGeneric
	case strings.Contains(h, "SIMILAR"):
		return model.StatusSimilar
	case strings.Contains(h, "ESPECIFICO"):
		return model.StatusSpecific
	case strings.Contains(h, "NOVO"):
		return model.StatusNew
	case strings.Contains(h, "BIOLOGICO"):
		return model.StatusBiological
	default:
		return model.StatusUnknown
	}
}
