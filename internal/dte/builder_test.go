package dte

import (
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfuentesc/siidte/internal/server/models"
)

func sampleInvoice(lines int) *models.Invoice {
	inv := &models.Invoice{
		ID:                  42,
		TipoDTE:             33,
		Folio:               42,
		FechaEmision:        time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC),
		RutEmisor:           "76543210-5",
		RazonSocialEmisor:   "Emisor SpA",
		GiroEmisor:          "Servicios informáticos",
		DirOrigen:           "Av. Principal 123",
		ComunaOrigen:        "Santiago",
		RutReceptor:         "12345678-9",
		RazonSocialReceptor: "Cliente Ltda",
		DireccionReceptor:   "Calle Secundaria 45",
		ComunaReceptor:      "Providencia",
		MontoNeto:           100000,
		IVA:                 19000,
		MontoTotal:          119000,
		Estado:              models.EstadoUnsent,
	}
	for i := 0; i < lines; i++ {
		inv.Detalles = append(inv.Detalles, models.InvoiceLine{
			Descripcion: fmt.Sprintf("item-%d", i),
			Cantidad:    float64(i + 1),
			PrecioUnit:  1000,
			MontoNeto:   int64(1000 * (i + 1)),
		})
	}
	return inv
}

func TestBuild_HeaderFields(t *testing.T) {
	out, err := Build(sampleInvoice(1))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))

	root := doc.Root()
	require.Equal(t, "DTE", root.Tag)
	assert.Equal(t, "1.0", root.SelectAttrValue("version", ""))

	documento := root.FindElement("Documento")
	require.NotNil(t, documento)
	assert.Equal(t, "F42", documento.SelectAttrValue("ID", ""))

	assert.Equal(t, "33", documento.FindElement("Encabezado/IdDoc/TipoDTE").Text())
	assert.Equal(t, "42", documento.FindElement("Encabezado/IdDoc/Folio").Text())
	assert.Equal(t, "2025-06-15", documento.FindElement("Encabezado/IdDoc/FchEmis").Text())

	assert.Equal(t, "76543210-5", documento.FindElement("Encabezado/Emisor/RUTEmisor").Text())
	assert.Equal(t, "12345678-9", documento.FindElement("Encabezado/Receptor/RUTRecep").Text())

	assert.Equal(t, "100000", documento.FindElement("Encabezado/Totales/MntNeto").Text())
	assert.Equal(t, "19", documento.FindElement("Encabezado/Totales/TasaIVA").Text())
	assert.Equal(t, "19000", documento.FindElement("Encabezado/Totales/IVA").Text())
	assert.Equal(t, "119000", documento.FindElement("Encabezado/Totales/MntTotal").Text())
}

func TestBuild_LineOrderingAndSequence(t *testing.T) {
	const n = 7
	out, err := Build(sampleInvoice(n))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))

	detalles := doc.Root().FindElements("Documento/Detalle")
	require.Len(t, detalles, n)

	for i, d := range detalles {
		assert.Equal(t, strconv.Itoa(i+1), d.FindElement("NroLinDet").Text(),
			"NroLinDet must be 1-based and contiguous")
		assert.Equal(t, fmt.Sprintf("item-%d", i), d.FindElement("NmbItem").Text(),
			"output order must match input order")
	}
}

func TestBuild_NoLines(t *testing.T) {
	out, err := Build(sampleInvoice(0))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	assert.Empty(t, doc.Root().FindElements("Documento/Detalle"))
}

func TestBuild_Deterministic(t *testing.T) {
	a, err := Build(sampleInvoice(3))
	require.NoError(t, err)
	b, err := Build(sampleInvoice(3))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestBuild_NilInvoice(t *testing.T) {
	_, err := Build(nil)
	require.Error(t, err)
}
