// Package dte serializes invoice data into the tax document XML accepted by
// the SII. Building is a pure transformation: no network, no crypto, no
// storage, so it is testable in isolation and the output depends only on
// the invoice passed in.
package dte

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"github.com/mfuentesc/siidte/internal/server/models"
)

// TasaIVA is the Chilean VAT rate serialized into the totals block.
const TasaIVA = "19"

// Build renders the DTE document for an invoice. Detail lines appear in
// input order with a contiguous, 1-based NroLinDet.
func Build(inv *models.Invoice) ([]byte, error) {
	if inv == nil {
		return nil, fmt.Errorf("nil invoice")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="ISO-8859-1"`)

	dteEl := doc.CreateElement("DTE")
	dteEl.CreateAttr("version", "1.0")

	documento := dteEl.CreateElement("Documento")
	documento.CreateAttr("ID", fmt.Sprintf("F%d", inv.Folio))

	encabezado := documento.CreateElement("Encabezado")

	idDoc := encabezado.CreateElement("IdDoc")
	idDoc.CreateElement("TipoDTE").SetText(strconv.Itoa(inv.TipoDTE))
	idDoc.CreateElement("Folio").SetText(strconv.FormatInt(inv.Folio, 10))
	idDoc.CreateElement("FchEmis").SetText(inv.FechaEmision.Format("2006-01-02"))

	emisor := encabezado.CreateElement("Emisor")
	emisor.CreateElement("RUTEmisor").SetText(inv.RutEmisor)
	emisor.CreateElement("RznSoc").SetText(inv.RazonSocialEmisor)
	emisor.CreateElement("GiroEmis").SetText(inv.GiroEmisor)
	emisor.CreateElement("DirOrigen").SetText(inv.DirOrigen)
	emisor.CreateElement("CmnaOrigen").SetText(inv.ComunaOrigen)

	receptor := encabezado.CreateElement("Receptor")
	receptor.CreateElement("RUTRecep").SetText(inv.RutReceptor)
	receptor.CreateElement("RznSocRecep").SetText(inv.RazonSocialReceptor)
	receptor.CreateElement("DirRecep").SetText(inv.DireccionReceptor)
	receptor.CreateElement("CmnaRecep").SetText(inv.ComunaReceptor)

	totales := encabezado.CreateElement("Totales")
	totales.CreateElement("MntNeto").SetText(strconv.FormatInt(inv.MontoNeto, 10))
	totales.CreateElement("TasaIVA").SetText(TasaIVA)
	totales.CreateElement("IVA").SetText(strconv.FormatInt(inv.IVA, 10))
	totales.CreateElement("MntTotal").SetText(strconv.FormatInt(inv.MontoTotal, 10))

	for i, d := range inv.Detalles {
		detalle := documento.CreateElement("Detalle")
		detalle.CreateElement("NroLinDet").SetText(strconv.Itoa(i + 1))
		detalle.CreateElement("NmbItem").SetText(d.Descripcion)
		detalle.CreateElement("QtyItem").SetText(strconv.FormatFloat(d.Cantidad, 'f', -1, 64))
		detalle.CreateElement("PrcItem").SetText(strconv.FormatInt(d.PrecioUnit, 10))
		detalle.CreateElement("MontoItem").SetText(strconv.FormatInt(d.MontoNeto, 10))
	}

	return doc.WriteToBytes()
}
