package catalog

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/vigiapreco/cmed-cli/internal/model"
)

var snapshotHeader = []string{
	"SUBSTÂNCIA", "CNPJ", "LABORATÓRIO", "CÓDIGO GGREM", "REGISTRO",
	"EAN 1", "EAN 2", "PRODUTO", "APRESENTAÇÃO", "CLASSE TERAPÊUTICA",
	"TIPO DE PRODUTO (STATUS DO PRODUTO)", "REGIME DE PREÇO",
	"PF 0%", "PF 20%", "PMVG 0%", "PMVG 20%", "ICMS 0%", "CAP",
}

var snapshotRow = []string{
	"DIPIRONA MONOIDRATADA", "02.685.377/0001-57", "SANOFI MEDLEY", "500123", "1043500110011",
	"7891058001407", "", "NOVALGINA", "500 MG COM REV CT BL AL PLAS TRANS X 10", "N02BB02",
	"GENÉRICO", "REGULADO",
	"10,50", "12,30", "", "", "SIM", "NÃO",
}

func writeSnapshotXLSX(t *testing.T, name string, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Planilha1")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.Save(path))
	return path
}

func TestLoadSnapshotsXLSX(t *testing.T) {
	path := writeSnapshotXLSX(t, "cmed_2024_01.xlsx", [][]string{
		{"LISTA DE PREÇOS - CONFORME COMUNICADO"},
		snapshotHeader,
		snapshotRow,
		{"", "", "", "", "", "", "", "", "", "", "", "", "", "", "", "", "", ""},
	})

	snaps, err := NewLoader(LoaderOptions{}).LoadSnapshots(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	s := snaps[0]
	assert.Equal(t, "1043500110011-500123", s.ProductID)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), s.ReferenceDate)
	assert.Equal(t, "NOVALGINA", s.Name)
	assert.Equal(t, "DIPIRONA MONOIDRATADA", s.ActiveIngredient)
	assert.Equal(t, model.StatusGeneric, s.Status)
	require.True(t, s.PF0.Valid)
	assert.Equal(t, "10.5", s.PF0.Decimal.String())
	assert.False(t, s.PMVG0.Valid)
	assert.True(t, s.ICMS0)
	assert.False(t, s.CAP)
}

func TestLoadSnapshotsCSVVariantColumns(t *testing.T) {
	// Unaccented "PRINCIPIO ATIVO" instead of "SUBSTÂNCIA".
	content := "PRINCIPIO ATIVO;PRODUTO;REGISTRO;CÓDIGO GGREM;PF 0%\n" +
		"DIPIRONA MONOIDRATADA;NOVALGINA;1043500110011;500123;10,50\n"
	path := filepath.Join(t.TempDir(), "ANVISA_LIMPO_2024_03.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	snaps, err := NewLoader(LoaderOptions{}).LoadSnapshots(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), snaps[0].ReferenceDate)
	assert.Equal(t, "DIPIRONA MONOIDRATADA", snaps[0].ActiveIngredient)
}

func TestLoadSnapshotsZippedCSV(t *testing.T) {
	content := "PRINCIPIO ATIVO;PRODUTO;REGISTRO;CÓDIGO GGREM\n" +
		"METFORMINA;GLIFAGE XR;1558400960010;502002\n"
	zipPath := filepath.Join(t.TempDir(), "cmed_2024_02.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	fw, err := w.Create("precos.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	snaps, err := NewLoader(LoaderOptions{}).LoadSnapshots(context.Background(), zipPath)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "1558400960010-502002", snaps[0].ProductID)
}

func TestLoadSnapshotsHeaderNotFound(t *testing.T) {
	path := writeSnapshotXLSX(t, "cmed_2024_01.xlsx", [][]string{
		{"just", "noise"},
		{"no", "header", "here"},
	})

	_, err := NewLoader(LoaderOptions{}).LoadSnapshots(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "header row not found")
}

func TestLoadSnapshotsZeroRowsIsFatal(t *testing.T) {
	path := writeSnapshotXLSX(t, "cmed_2024_01.xlsx", [][]string{
		snapshotHeader,
	})

	_, err := NewLoader(LoaderOptions{}).LoadSnapshots(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data rows")
}

func TestLoadSnapshotsMissingFile(t *testing.T) {
	_, err := NewLoader(LoaderOptions{}).LoadSnapshots(context.Background(),
		filepath.Join(t.TempDir(), "cmed_2024_01.xlsx"))
	require.Error(t, err)
}

func TestRefDateFromFilename(t *testing.T) {
	got, err := RefDateFromFilename("/data/cmed_2023_07.xlsx")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = RefDateFromFilename("precos.xlsx")
	require.Error(t, err)

	_, err = RefDateFromFilename("cmed_2023_13.xlsx")
	require.Error(t, err)
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "table.csv")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	got, err := FileSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}
