package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeInvoiceCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nfe_itens.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadInvoices(t *testing.T) {
	path := writeInvoiceCSV(t,
		"descricao_produto;codigo_ean;cod_anvisa;data_emissao;valor_unitario;quantidade;razao_social_emitente\n"+
			"DIPIRONA 500MG CX 10;7891058001407;;2024-03-15;12,50;2;FARMA DISTRIBUIDORA LTDA\n"+
			"SORO FISIOLOGICO;;1043500110011;15/03/2024;3.80;10;FARMA DISTRIBUIDORA LTDA\n")

	items, err := LoadInvoices(path)
	require.NoError(t, err)
	require.Len(t, items, 2)

	first := items[0]
	assert.Equal(t, "DIPIRONA 500MG CX 10", first.Description)
	assert.Equal(t, "7891058001407", first.EAN)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), first.EmissionDate)
	assert.Equal(t, "12.5", first.UnitValue.String())
	assert.Equal(t, 2.0, first.Quantity)
	assert.Equal(t, "FARMA DISTRIBUIDORA LTDA", first.Issuer)

	// Slash layout and anglo decimal both decode.
	second := items[1]
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), second.EmissionDate)
	assert.Equal(t, "3.8", second.UnitValue.String())
	assert.Equal(t, "1043500110011", second.Registration)
}

func TestLoadInvoicesBlankOptionalFields(t *testing.T) {
	path := writeInvoiceCSV(t,
		"descricao_produto;data_emissao;valor_unitario\n"+
			"ALGO SEM CODIGO;;\n")

	items, err := LoadInvoices(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].EmissionDate.IsZero())
	assert.True(t, items[0].UnitValue.IsZero())
	assert.Empty(t, items[0].EAN)
}

func TestLoadInvoicesMissingFile(t *testing.T) {
	_, err := LoadInvoices(filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
}
